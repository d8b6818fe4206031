package glossary

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/MimeLyc/skill-translator/pkg/log"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

var extensions = []string{".json", ".yaml", ".yml"}

// BaseName returns the term map file name without extension for a
// language pair, using base language codes, e.g. "term_map.en-zh".
func BaseName(sourceLang, targetLang string) string {
	return "term_map." + normalizeLanguageCode(sourceLang) + "-" + normalizeLanguageCode(targetLang)
}

// Load reads a term map from a JSON or YAML file, chosen by extension.
func Load(path string) (TermMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var tm TermMap
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &tm)
	default:
		err = json.Unmarshal(data, &tm)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return tm, nil
}

// normalizeLanguageCode parses a language string and returns its base code.
func normalizeLanguageCode(lang string) string {
	tag, err := language.Parse(lang)
	if err != nil {
		return lang
	}
	base, _ := tag.Base()
	return base.String()
}

type cachedMap struct {
	path    string
	modTime time.Time
	terms   TermMap
}

// Loader resolves the glossary for a language pair from a directory and
// reloads a term map file when its modification time changes.
type Loader struct {
	dir       string
	protected []string

	mu    sync.Mutex
	cache map[string]cachedMap
}

// NewLoader returns a Loader reading term maps from dir. An empty dir
// disables term maps; protected terms still apply.
func NewLoader(dir string, protected []string) *Loader {
	return &Loader{
		dir:       dir,
		protected: cleanTerms(protected),
		cache:     map[string]cachedMap{},
	}
}

func cleanTerms(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// For returns the glossary for translating sourceLang to targetLang. A
// missing or unreadable term map is logged and treated as empty.
func (l *Loader) For(sourceLang, targetLang string) Glossary {
	g := Glossary{Protected: l.protected, Terms: TermMap{}}
	if l.dir == "" {
		return g
	}

	name := BaseName(sourceLang, targetLang)
	for _, ext := range extensions {
		path := filepath.Join(l.dir, name+ext)
		info, err := os.Stat(path)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				log.Warn("Glossary %s unavailable: %v", path, err)
			}
			continue
		}

		l.mu.Lock()
		cached, ok := l.cache[name]
		l.mu.Unlock()
		if ok && cached.path == path && cached.modTime.Equal(info.ModTime()) {
			g.Terms = cached.terms
			return g
		}

		terms, err := Load(path)
		if err != nil {
			log.Warn("Glossary %s ignored: %v", path, err)
			return g
		}
		l.mu.Lock()
		l.cache[name] = cachedMap{path: path, modTime: info.ModTime(), terms: terms}
		l.mu.Unlock()
		log.Info("Loaded %d glossary terms from %s", len(terms), path)
		g.Terms = terms
		return g
	}
	return g
}
