package cache

import "time"

// Metadata describes how a cached translation was produced.
type Metadata struct {
	Model            string  `json:"model,omitempty"`
	SourceLanguage   string  `json:"source_language,omitempty"`
	TargetLanguage   string  `json:"target_language,omitempty"`
	OriginalChars    int     `json:"original_chars"`
	TranslatedChars  int     `json:"translated_chars"`
	ProcessingTimeMs float64 `json:"processing_time_ms"`
	Units            int     `json:"units"`
	DroppedLines     int     `json:"dropped_lines,omitempty"`
}

type Entry struct {
	Identity           Identity
	TranslatedDocument string
	TranslatedHash     string
	Metadata           Metadata
	CreatedAt          time.Time
	LastAccessedAt     time.Time
	AccessCount        int64
}

type Stats struct {
	EntryCount       int64      `json:"total_entries"`
	TotalHits        int64      `json:"total_hits"`
	TotalMisses      int64      `json:"total_misses"`
	ContentSizeBytes int64      `json:"total_size_bytes"`
	StorageSizeBytes int64      `json:"storage_size_bytes"`
	OldestEntry      *time.Time `json:"oldest_entry,omitempty"`
	NewestEntry      *time.Time `json:"newest_entry,omitempty"`
	OldestEntryAge   float64    `json:"oldest_entry_age_seconds"`
}
