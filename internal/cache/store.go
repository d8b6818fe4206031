package cache

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/MimeLyc/skill-translator/pkg/file"
	"github.com/MimeLyc/skill-translator/pkg/log"
	_ "modernc.org/sqlite"
)

const DefaultMaxAge = 30 * 24 * time.Hour

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Store is the SQLite-backed translation cache. It is safe for concurrent
// use; each operation is a single statement, so readers never see a
// partially written entry and concurrent writers for one identity resolve
// last-writer-wins.
type Store struct {
	db     *sql.DB
	maxAge time.Duration
	now    func() time.Time
	misses atomic.Int64
}

type Option func(*Store)

// WithMaxAge sets how long an entry may go unaccessed before Purge(true)
// removes it.
func WithMaxAge(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.maxAge = d
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Open opens or creates the cache database at dbPath and applies pending
// migrations.
func Open(dbPath string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{
		db:     db,
		maxAge: DefaultMaxAge,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Backup copies an existing database file at dbPath to "<name>.bak.db"
// next to it. It returns the backup path, or "" when there was nothing to
// copy.
func Backup(dbPath string) (string, error) {
	if !file.Exists(dbPath) {
		return "", nil
	}
	dst := file.ReplaceExt(dbPath, ".bak.db")
	if _, err := file.Copy(dbPath, dst); err != nil {
		return "", fmt.Errorf("backup %s: %w", dbPath, err)
	}
	if wal := dbPath + "-wal"; file.Exists(wal) {
		if _, err := file.Copy(wal, dst+"-wal"); err != nil {
			return "", fmt.Errorf("backup %s: %w", wal, err)
		}
	}
	return dst, nil
}

// Close checkpoints the write-ahead log into the main file and closes the
// database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE);"); err != nil {
		log.Warn("Cache WAL checkpoint failed: %v", err)
	}
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at INTEGER NOT NULL
	);`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		version := migrationVersion(entry.Name())
		if entry.IsDir() || version <= 0 {
			continue
		}
		var applied int
		if err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version,
		).Scan(&applied); err != nil {
			return fmt.Errorf("check migration %s: %w", entry.Name(), err)
		}
		if applied > 0 {
			continue
		}

		content, err := migrationFiles.ReadFile(path.Join("migrations", entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if err := s.applyMigration(ctx, version, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
		log.Debug("Applied cache migration %s", entry.Name())
	}
	return nil
}

func (s *Store) applyMigration(ctx context.Context, version int, stmt string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`,
		version, s.now().UnixMilli(),
	); err != nil {
		return err
	}
	return tx.Commit()
}

// migrationVersion extracts the leading integer of a migration file name,
// e.g. "001_init.sql" is 1.
func migrationVersion(name string) int {
	end := strings.IndexFunc(name, func(r rune) bool { return r < '0' || r > '9' })
	if end == 0 {
		return 0
	}
	if end < 0 {
		end = len(name)
	}
	n, _ := strconv.Atoi(name[:end])
	return n
}

const entryColumns = `path, content_hash, target_language, translator_version,
	translated_content, translated_hash, metadata_json, created_at, accessed_at, hit_count`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (Entry, error) {
	var (
		e                   Entry
		metaJSON            string
		createdAt, accessed int64
	)
	if err := row.Scan(
		&e.Identity.Path,
		&e.Identity.ContentHash,
		&e.Identity.TargetLanguage,
		&e.Identity.TranslatorVersion,
		&e.TranslatedDocument,
		&e.TranslatedHash,
		&metaJSON,
		&createdAt,
		&accessed,
		&e.AccessCount,
	); err != nil {
		return Entry{}, err
	}
	if err := json.Unmarshal([]byte(metaJSON), &e.Metadata); err != nil {
		log.Warn("Cache entry %s has unreadable metadata: %v", e.Identity, err)
	}
	e.CreatedAt = time.UnixMilli(createdAt).UTC()
	e.LastAccessedAt = time.UnixMilli(accessed).UTC()
	return e, nil
}

// Lookup returns the entry for id. A hit refreshes the entry's access time
// and increments its access count in the same statement.
func (s *Store) Lookup(ctx context.Context, id Identity) (Entry, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE translations
		 SET accessed_at = ?, hit_count = hit_count + 1
		 WHERE cache_key = ?
		 RETURNING `+entryColumns,
		s.now().UnixMilli(), id.Key(),
	)
	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.misses.Add(1)
			return Entry{}, false, nil
		}
		return Entry{}, false, fmt.Errorf("lookup %s: %w", id, err)
	}
	return e, true, nil
}

// Peek returns the entry for id without touching its access bookkeeping.
func (s *Store) Peek(ctx context.Context, id Identity) (Entry, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM translations WHERE cache_key = ?`, id.Key())
	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, false, nil
		}
		return Entry{}, false, fmt.Errorf("peek %s: %w", id, err)
	}
	return e, true, nil
}

// Store writes the translation for id, replacing any previous entry.
func (s *Store) Store(ctx context.Context, id Identity, translated string, meta Metadata) error {
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	now := s.now().UnixMilli()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO translations (
			cache_key, path, content_hash, target_language, translator_version,
			translated_content, translated_hash, metadata_json, created_at, accessed_at, hit_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
		ON CONFLICT(cache_key) DO UPDATE SET
			translated_content=excluded.translated_content,
			translated_hash=excluded.translated_hash,
			metadata_json=excluded.metadata_json,
			created_at=excluded.created_at,
			accessed_at=excluded.accessed_at,
			hit_count=0`,
		id.Key(),
		id.Path,
		id.ContentHash,
		id.TargetLanguage,
		id.TranslatorVersion,
		translated,
		HashContent([]byte(translated)),
		string(metaJSON),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("store %s: %w", id, err)
	}
	return nil
}

// Touch records a hit on id without reading the document. It reports
// whether the entry exists.
func (s *Store) Touch(ctx context.Context, id Identity) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE translations SET accessed_at = ?, hit_count = hit_count + 1 WHERE cache_key = ?`,
		s.now().UnixMilli(), id.Key(),
	)
	if err != nil {
		return false, fmt.Errorf("touch %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Purge removes entries and returns how many were deleted. With
// expiredOnly, only entries not accessed within the max age are removed.
func (s *Store) Purge(ctx context.Context, expiredOnly bool) (int64, error) {
	var (
		res sql.Result
		err error
	)
	if expiredOnly {
		cutoff := s.now().Add(-s.maxAge).UnixMilli()
		res, err = s.db.ExecContext(ctx, `DELETE FROM translations WHERE accessed_at < ?`, cutoff)
	} else {
		res, err = s.db.ExecContext(ctx, `DELETE FROM translations`)
	}
	if err != nil {
		return 0, fmt.Errorf("purge: %w", err)
	}
	return res.RowsAffected()
}

// Stats summarises the cache contents.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var (
		st             Stats
		oldest, newest sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
			COALESCE(SUM(hit_count), 0),
			COALESCE(SUM(LENGTH(CAST(translated_content AS BLOB))), 0),
			MIN(created_at),
			MAX(created_at)
		 FROM translations`,
	).Scan(&st.EntryCount, &st.TotalHits, &st.ContentSizeBytes, &oldest, &newest)
	if err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT page_count * page_size FROM pragma_page_count(), pragma_page_size()`,
	).Scan(&st.StorageSizeBytes); err != nil {
		return Stats{}, fmt.Errorf("storage size: %w", err)
	}

	st.TotalMisses = s.misses.Load()
	if oldest.Valid {
		t := time.UnixMilli(oldest.Int64).UTC()
		st.OldestEntry = &t
		st.OldestEntryAge = s.now().Sub(t).Seconds()
	}
	if newest.Valid {
		t := time.UnixMilli(newest.Int64).UTC()
		st.NewestEntry = &t
	}
	return st, nil
}
