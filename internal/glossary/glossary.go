// Package glossary supplies the terms a translation must keep or map:
// protected names that pass through unchanged and per-language-pair term
// maps loaded from disk.
package glossary

import (
	"slices"
	"strings"
)

// DefaultProtectedTerms are product and protocol names kept in the source
// form.
var DefaultProtectedTerms = []string{"OpenClaw", "ClawHub", "API", "CLI"}

// TermMap maps source language terms to target language terms.
type TermMap map[string]string

// MatchResult holds the glossary entries that occur in a text.
type MatchResult struct {
	Protected []string
	Terms     TermMap
}

// Glossary is the protected-name allowlist plus the term map for one
// language pair.
type Glossary struct {
	Protected []string
	Terms     TermMap
}

// Match keeps only the entries that occur in text. Matching is a
// case-sensitive substring test, which suits proper nouns.
func (g Glossary) Match(text string) MatchResult {
	res := MatchResult{Terms: TermMap{}}
	for _, term := range g.Protected {
		if term != "" && strings.Contains(text, term) && !slices.Contains(res.Protected, term) {
			res.Protected = append(res.Protected, term)
		}
	}
	for source, target := range g.Terms {
		if source != "" && strings.Contains(text, source) {
			res.Terms[source] = target
		}
	}
	return res
}
