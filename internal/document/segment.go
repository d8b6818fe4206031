// Package document splits Markdown skill manuals into typed segments so that
// only prose and the front-matter description are ever sent for translation.
package document

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	DefaultMaxLineLength = 5000
	DefaultChunkSize     = 4000
)

// ErrInvalidEncoding is returned by Validate for input that is not UTF-8.
var ErrInvalidEncoding = errors.New("document is not valid UTF-8")

type Kind int

const (
	KindFrontMatterDelimiter Kind = iota
	KindFrontMatterField
	KindCodeFence
	KindInlineCode
	KindProse
)

var kindNames = map[Kind]string{
	KindFrontMatterDelimiter: "front_matter_delimiter",
	KindFrontMatterField:     "front_matter_field",
	KindCodeFence:            "code_fence",
	KindInlineCode:           "inline_code",
	KindProse:                "prose",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Segment is one contiguous piece of a document. Raw holds the exact source
// bytes; concatenating every Raw in order yields the document minus dropped
// lines.
type Segment struct {
	Kind Kind
	Raw  string
	// Name is the key of a front-matter field.
	Name string
	// Lang is the info-string language of a code fence.
	Lang string
	// Chunk groups prose and inline code into provider-sized pieces. It is
	// -1 for segments outside the body prose.
	Chunk        int
	Translatable bool
	// Value and Style are set for a translatable front-matter field.
	Value string
	Style ScalarStyle
}

// Options tune parsing. Zero values select the defaults.
type Options struct {
	MaxLineLength int
	ChunkSize     int
}

func (o Options) withDefaults() Options {
	if o.MaxLineLength <= 0 {
		o.MaxLineLength = DefaultMaxLineLength
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	return o
}

// Document is the parsed form of a source file.
type Document struct {
	Segments     []Segment
	DroppedLines int
}

// Validate rejects input that cannot be parsed.
func Validate(raw []byte) error {
	if !utf8.Valid(raw) {
		return ErrInvalidEncoding
	}
	return nil
}

// Source returns the document text after line dropping.
func (d *Document) Source() string {
	var b strings.Builder
	for _, seg := range d.Segments {
		b.WriteString(seg.Raw)
	}
	return b.String()
}

// Assemble concatenates segments in order, substituting replacements keyed by
// segment index.
func (d *Document) Assemble(replacements map[int]string) string {
	var b strings.Builder
	for i, seg := range d.Segments {
		if r, ok := replacements[i]; ok {
			b.WriteString(r)
			continue
		}
		b.WriteString(seg.Raw)
	}
	return b.String()
}

// CountKind returns how many segments have kind k.
func (d *Document) CountKind(k Kind) int {
	n := 0
	for _, seg := range d.Segments {
		if seg.Kind == k {
			n++
		}
	}
	return n
}
