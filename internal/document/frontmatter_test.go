package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseField(t *testing.T, raw string) Segment {
	t.Helper()
	doc := Parse([]byte("---\n"+raw+"---\n"), Options{})
	require.Equal(t, 1, doc.CountKind(KindFrontMatterField), "segments: %+v", doc.Segments)
	return doc.Segments[1]
}

func TestDescriptionClassification(t *testing.T) {
	tests := []struct {
		name         string
		raw          string
		translatable bool
		value        string
		style        ScalarStyle
	}{
		{"double quoted", "description: \"A tool\"\n", true, "A tool", StyleDoubleQuoted},
		{"single quoted", "description: 'It''s a tool'\n", true, "It's a tool", StyleSingleQuoted},
		{"plain", "description: A tool\n", true, "A tool", StylePlain},
		{"folded", "description: >\n  A long\n  tool\n", true, "A long tool\n", StyleFolded},
		{"literal", "description: |\n  line one\n  line two\n", true, "line one\nline two\n", StyleLiteral},
		{"empty", "description:\n", false, "", StylePlain},
		{"number", "description: 42\n", false, "", StylePlain},
		{"list", "description:\n  - a\n  - b\n", false, "", StylePlain},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seg := parseField(t, tt.raw)
			assert.Equal(t, "description", seg.Name)
			assert.Equal(t, tt.raw, seg.Raw)
			assert.Equal(t, tt.translatable, seg.Translatable)
			assert.Equal(t, tt.value, seg.Value)
			assert.Equal(t, tt.style, seg.Style)
		})
	}
}

func TestOtherFieldsNeverTranslatable(t *testing.T) {
	seg := parseField(t, "summary: \"A tool\"\n")
	assert.False(t, seg.Translatable)
}

func TestLinesBeforeFirstKeyStayWithDelimiter(t *testing.T) {
	doc := Parse([]byte("---\n# generated\nname: x\n---\n"), Options{})
	require.Len(t, doc.Segments, 3)
	assert.Equal(t, "---\n# generated\n", doc.Segments[0].Raw)
	assert.Equal(t, "name", doc.Segments[1].Name)
}

func TestRenderField(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		translated string
		want       string
		decoded    string
	}{
		{
			name:       "double quoted keeps quotes and escapes",
			raw:        "description: \"A tool for X\"\n",
			translated: "一个用于 \"X\" 的工具",
			want:       "description: \"一个用于 \\\"X\\\" 的工具\"\n",
			decoded:    "一个用于 \"X\" 的工具",
		},
		{
			name:       "single quoted doubles quotes",
			raw:        "description: 'A tool'\n",
			translated: "It's 工具",
			want:       "description: 'It''s 工具'\n",
			decoded:    "It's 工具",
		},
		{
			name:       "plain stays plain",
			raw:        "description: A tool\n",
			translated: "一个工具",
			want:       "description: 一个工具\n",
			decoded:    "一个工具",
		},
		{
			name:       "plain falls back to quotes",
			raw:        "description: A tool\n",
			translated: "用法: 工具",
			want:       "description: \"用法: 工具\"\n",
			decoded:    "用法: 工具",
		},
		{
			name:       "multi-line becomes folded block",
			raw:        "description: \"A tool\"\n",
			translated: "第一行\n\n第二行\n",
			want:       "description: >\n  第一行\n  第二行\n",
			decoded:    "第一行 第二行\n",
		},
		{
			name:       "block scalar with one line collapses",
			raw:        "description: |\n  A tool\n",
			translated: "一个工具",
			want:       "description: 一个工具\n",
			decoded:    "一个工具",
		},
		{
			name:       "crlf and trailing blank line kept",
			raw:        "description: A tool\r\n\r\n",
			translated: "工具",
			want:       "description: 工具\r\n\r\n",
			decoded:    "工具",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seg := parseField(t, tt.raw)
			require.True(t, seg.Translatable)

			got := RenderField(seg, tt.translated)
			assert.Equal(t, tt.want, got)

			value, ok := FieldValue(got)
			require.True(t, ok)
			assert.Equal(t, tt.decoded, value)
		})
	}
}

func TestRenderFieldEmptyTranslationKeepsSource(t *testing.T) {
	seg := parseField(t, "description: A tool\n")
	assert.Equal(t, seg.Raw, RenderField(seg, "  \n "))
}
