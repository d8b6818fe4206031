package document

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// DescriptionField is the only front-matter key whose value is translated.
const DescriptionField = "description"

// ScalarStyle records how a front-matter value was written.
type ScalarStyle int

const (
	StylePlain ScalarStyle = iota
	StyleDoubleQuoted
	StyleSingleQuoted
	StyleLiteral
	StyleFolded
)

func styleOf(s yaml.Style) ScalarStyle {
	switch {
	case s&yaml.DoubleQuotedStyle != 0:
		return StyleDoubleQuoted
	case s&yaml.SingleQuotedStyle != 0:
		return StyleSingleQuoted
	case s&yaml.LiteralStyle != 0:
		return StyleLiteral
	case s&yaml.FoldedStyle != 0:
		return StyleFolded
	default:
		return StylePlain
	}
}

// decodeField parses a single "key: value" block and returns its value node.
func decodeField(raw string) (*yaml.Node, bool) {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, false
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) != 1 {
		return nil, false
	}
	m := doc.Content[0]
	if m.Kind != yaml.MappingNode || len(m.Content) != 2 {
		return nil, false
	}
	return m.Content[1], true
}

// classifyDescription marks the field translatable when its value is a
// non-empty string scalar.
func classifyDescription(seg *Segment) {
	v, ok := decodeField(seg.Raw)
	if !ok || v.Kind != yaml.ScalarNode || v.Tag != "!!str" {
		return
	}
	if strings.TrimSpace(v.Value) == "" {
		return
	}
	seg.Translatable = true
	seg.Value = v.Value
	seg.Style = styleOf(v.Style)
}

// FieldValue decodes the scalar value of a front-matter field segment.
func FieldValue(raw string) (string, bool) {
	v, ok := decodeField(raw)
	if !ok || v.Kind != yaml.ScalarNode {
		return "", false
	}
	return v.Value, true
}

// RenderField writes seg's key with a new value, keeping the original
// quoting where it can. Multi-line values become a folded block with
// two-space indentation. Trailing blank and comment lines of the original
// field are kept.
func RenderField(seg Segment, value string) string {
	lines := nonEmptyLines(value)
	if len(lines) == 0 {
		return seg.Raw
	}

	eol := "\n"
	if first, _, _ := strings.Cut(seg.Raw, "\n"); strings.HasSuffix(first, "\r") {
		eol = "\r\n"
	}

	var b strings.Builder
	b.WriteString(seg.Name)
	b.WriteString(":")
	if len(lines) > 1 {
		b.WriteString(" >")
		b.WriteString(eol)
		for _, line := range lines {
			b.WriteString("  ")
			b.WriteString(line)
			b.WriteString(eol)
		}
	} else {
		b.WriteString(" ")
		b.WriteString(quoteScalar(lines[0], seg.Style))
		b.WriteString(eol)
	}
	b.WriteString(trailingTrivia(seg.Raw))
	return b.String()
}

func nonEmptyLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func quoteScalar(v string, style ScalarStyle) string {
	switch style {
	case StyleDoubleQuoted:
		return doubleQuote(v)
	case StyleSingleQuoted:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'"
	default:
		if plainSafe(v) {
			return v
		}
		return doubleQuote(v)
	}
}

func doubleQuote(v string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(v) + `"`
}

// plainSafe reports whether v reads back unchanged as an unquoted string.
func plainSafe(v string) bool {
	if v == "" || v != strings.TrimSpace(v) {
		return false
	}
	node, ok := decodeField("k: " + v + "\n")
	return ok && node.Kind == yaml.ScalarNode && node.Tag == "!!str" &&
		node.Style == 0 && node.Value == v
}

// trailingTrivia returns the blank and top-level comment lines that end raw.
func trailingTrivia(raw string) string {
	lines := splitLines(raw)
	i := len(lines)
	for i > 1 {
		c := lineContent(lines[i-1])
		if strings.TrimSpace(c) != "" && !strings.HasPrefix(c, "#") {
			break
		}
		i--
	}
	return strings.Join(lines[i:], "")
}
