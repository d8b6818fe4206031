package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

const hashPrefix = "sha256:"

var hashPattern = regexp.MustCompile(`^sha256:[0-9a-f]{64}$`)

// HashContent returns the algorithm-stamped SHA-256 of b.
func HashContent(b []byte) string {
	sum := sha256.Sum256(b)
	return hashPrefix + hex.EncodeToString(sum[:])
}

// ValidHash reports whether s has the form "sha256:<64 lowercase hex>".
func ValidHash(s string) bool {
	return hashPattern.MatchString(s)
}

// Identity determines a cache entry. Changing any field selects a
// different entry.
type Identity struct {
	Path              string `json:"path"`
	ContentHash       string `json:"content_hash"`
	TargetLanguage    string `json:"target_language"`
	TranslatorVersion string `json:"translator_version"`
}

// Key derives the primary key for id. Fields are NUL-separated so that no
// two distinct identities share a key.
func (id Identity) Key() string {
	joined := strings.Join([]string{id.Path, id.ContentHash, id.TargetLanguage, id.TranslatorVersion}, "\x00")
	return HashContent([]byte(joined))
}

func (id Identity) String() string {
	return id.Path + "@" + id.TargetLanguage + "/" + id.TranslatorVersion
}
