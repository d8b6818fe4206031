package document

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrPlaceholderMismatch means a translation lost, duplicated or invented an
// inline code placeholder.
var ErrPlaceholderMismatch = errors.New("inline code placeholders not preserved")

// ErrInvalidField means a translated front-matter value could not be written
// back as a YAML scalar.
var ErrInvalidField = errors.New("translated field is not a valid YAML scalar")

// Placeholder returns the token that stands in for the i-th inline code span
// of a unit.
func Placeholder(i int) string {
	return fmt.Sprintf("___INLINE_CODE_%d___", i)
}

// Unit is one piece of text sent to the translation provider: either the
// description field or one prose chunk with its inline code replaced by
// placeholders.
type Unit struct {
	// First is the index of the first segment covered; Count segments from
	// First are replaced by the unit's output.
	First int
	Count int
	// Text is what gets translated. Leading and trailing whitespace of the
	// chunk is kept aside in Prefix and Suffix.
	Text   string
	Prefix string
	Suffix string

	field *Segment
	codes []string
}

// IsField reports whether the unit is a front-matter field value.
func (u Unit) IsField() bool {
	return u.field != nil
}

// NeedsTranslation is false for units with nothing but whitespace,
// punctuation or placeholders.
func (u Unit) NeedsTranslation() bool {
	text := u.Text
	for i := range u.codes {
		text = strings.ReplaceAll(text, Placeholder(i), "")
	}
	return strings.IndexFunc(text, unicode.IsLetter) >= 0
}

// Placeholders is the number of inline code placeholders in Text.
func (u Unit) Placeholders() int {
	return len(u.codes)
}

// Source returns the original text the unit replaces.
func (u Unit) Source() string {
	if u.field != nil {
		return u.field.Raw
	}
	return u.Prefix + u.restoreCodes(u.Text) + u.Suffix
}

// Restore turns a translation of Text back into document text for the
// covered segments.
func (u Unit) Restore(translated string) (string, error) {
	if u.field != nil {
		rendered := RenderField(*u.field, translated)
		if _, ok := FieldValue(rendered); !ok {
			return "", fmt.Errorf("%w: %s", ErrInvalidField, u.field.Name)
		}
		return rendered, nil
	}
	for i := range u.codes {
		if n := strings.Count(translated, Placeholder(i)); n != 1 {
			return "", fmt.Errorf("%w: %s appears %d times", ErrPlaceholderMismatch, Placeholder(i), n)
		}
	}
	return u.Prefix + u.restoreCodes(strings.TrimSpace(translated)) + u.Suffix, nil
}

func (u Unit) restoreCodes(s string) string {
	if len(u.codes) == 0 {
		return s
	}
	pairs := make([]string, 0, 2*len(u.codes))
	for i, code := range u.codes {
		pairs = append(pairs, Placeholder(i), code)
	}
	return strings.NewReplacer(pairs...).Replace(s)
}

// Apply records the restored output of u in replacements for Assemble.
func (u Unit) Apply(replacements map[int]string, restored string) {
	replacements[u.First] = restored
	for i := u.First + 1; i < u.First+u.Count; i++ {
		replacements[i] = ""
	}
}

// Units groups the translatable content of d. Each prose chunk becomes one
// unit and the description field another; the order follows the document.
func (d *Document) Units() []Unit {
	var units []Unit
	for i := 0; i < len(d.Segments); {
		seg := d.Segments[i]
		switch {
		case seg.Kind == KindFrontMatterField && seg.Translatable:
			field := seg
			units = append(units, Unit{First: i, Count: 1, Text: seg.Value, field: &field})
			i++
		case seg.Chunk >= 0:
			j := i
			for j < len(d.Segments) && d.Segments[j].Chunk == seg.Chunk {
				j++
			}
			units = append(units, chunkUnit(d.Segments[i:j], i))
			i = j
		default:
			i++
		}
	}
	return units
}

func chunkUnit(segs []Segment, first int) Unit {
	u := Unit{First: first, Count: len(segs)}
	var b strings.Builder
	for _, seg := range segs {
		if seg.Kind == KindInlineCode {
			b.WriteString(Placeholder(len(u.codes)))
			u.codes = append(u.codes, seg.Raw)
			continue
		}
		b.WriteString(seg.Raw)
	}
	text := b.String()
	trimmed := strings.TrimLeftFunc(text, unicode.IsSpace)
	u.Prefix = text[:len(text)-len(trimmed)]
	core := strings.TrimRightFunc(trimmed, unicode.IsSpace)
	u.Suffix = trimmed[len(core):]
	u.Text = core
	return u
}
