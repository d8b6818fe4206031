package document

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const skillDoc = "---\n" +
	"name: web-monitor\n" +
	"version: \"1.0\"\n" +
	"description: \"A tool for X\"\n" +
	"metadata:\n" +
	"  {\"openclaw\": {\"emoji\": \"x\"}}\n" +
	"---\n" +
	"\n" +
	"# Web Monitor\n" +
	"\n" +
	"Use `monitor add` to watch a page.\n" +
	"\n" +
	"```bash\n" +
	"echo \"hello\"\n" +
	"```\n" +
	"\n" +
	"Done.\n"

func kinds(doc *Document) []Kind {
	out := make([]Kind, len(doc.Segments))
	for i, seg := range doc.Segments {
		out[i] = seg.Kind
	}
	return out
}

func TestParseSkillDocument(t *testing.T) {
	doc := Parse([]byte(skillDoc), Options{})

	assert.Equal(t, []Kind{
		KindFrontMatterDelimiter,
		KindFrontMatterField,
		KindFrontMatterField,
		KindFrontMatterField,
		KindFrontMatterField,
		KindFrontMatterDelimiter,
		KindProse,
		KindInlineCode,
		KindProse,
		KindCodeFence,
		KindProse,
	}, kinds(doc))

	assert.Equal(t, skillDoc, doc.Source())
	assert.Equal(t, skillDoc, doc.Assemble(nil))
	assert.Zero(t, doc.DroppedLines)

	name, version, desc, meta := doc.Segments[1], doc.Segments[2], doc.Segments[3], doc.Segments[4]
	assert.Equal(t, "name", name.Name)
	assert.False(t, name.Translatable)
	assert.Equal(t, "version: \"1.0\"\n", version.Raw)
	assert.False(t, version.Translatable)
	assert.Equal(t, "description", desc.Name)
	assert.True(t, desc.Translatable)
	assert.Equal(t, "A tool for X", desc.Value)
	assert.Equal(t, StyleDoubleQuoted, desc.Style)
	assert.Equal(t, "metadata:\n  {\"openclaw\": {\"emoji\": \"x\"}}\n", meta.Raw)
	assert.False(t, meta.Translatable)

	fence := doc.Segments[9]
	assert.Equal(t, "bash", fence.Lang)
	assert.Equal(t, "```bash\necho \"hello\"\n```\n", fence.Raw)
	assert.False(t, fence.Translatable)

	assert.Equal(t, "`monitor add`", doc.Segments[7].Raw)
	assert.False(t, doc.Segments[7].Translatable)
	assert.Equal(t, doc.Segments[6].Chunk, doc.Segments[8].Chunk)
	assert.NotEqual(t, doc.Segments[6].Chunk, doc.Segments[10].Chunk)
}

func TestParseEmpty(t *testing.T) {
	doc := Parse(nil, Options{})
	assert.Empty(t, doc.Segments)
	assert.Equal(t, "", doc.Assemble(nil))
	assert.Empty(t, doc.Units())
}

func TestParseDropsLongLines(t *testing.T) {
	long := strings.Repeat("a", 11)
	exact := strings.Repeat("b", 10)
	src := "first\n" + long + "\n" + exact + "\nlast"

	doc := Parse([]byte(src), Options{MaxLineLength: 10})

	assert.Equal(t, 1, doc.DroppedLines)
	assert.Equal(t, "first\n"+exact+"\nlast", doc.Source())
}

func TestParseDropsLongLinesByRune(t *testing.T) {
	line := strings.Repeat("字", 10)
	doc := Parse([]byte(line+"\n"), Options{MaxLineLength: 10})
	assert.Zero(t, doc.DroppedLines)
	assert.Equal(t, line+"\n", doc.Source())
}

func TestParseDefaultMaxLineLength(t *testing.T) {
	src := "keep\n" + strings.Repeat("x", DefaultMaxLineLength+1) + "\n"
	doc := Parse([]byte(src), Options{})
	assert.Equal(t, 1, doc.DroppedLines)
	assert.Equal(t, "keep\n", doc.Source())
}

func TestUnterminatedFenceIsProse(t *testing.T) {
	src := "text\n```python\nprint(1)\n"
	doc := Parse([]byte(src), Options{})

	assert.Zero(t, doc.CountKind(KindCodeFence))
	assert.Zero(t, doc.CountKind(KindInlineCode))
	assert.Equal(t, src, doc.Source())
}

func TestUnterminatedFrontMatterIsProse(t *testing.T) {
	src := "---\nname: x\n\nbody\n"
	doc := Parse([]byte(src), Options{})

	assert.Zero(t, doc.CountKind(KindFrontMatterField))
	assert.Zero(t, doc.CountKind(KindFrontMatterDelimiter))
	assert.Equal(t, src, doc.Source())
}

func TestFenceVariants(t *testing.T) {
	t.Run("tilde with longer closer", func(t *testing.T) {
		src := "~~~~ yaml\nkey: v\n~~~~~\n"
		doc := Parse([]byte(src), Options{})
		require.Len(t, doc.Segments, 1)
		assert.Equal(t, KindCodeFence, doc.Segments[0].Kind)
		assert.Equal(t, "yaml", doc.Segments[0].Lang)
	})

	t.Run("shorter run does not close", func(t *testing.T) {
		src := "````\n```\ninner\n````\n"
		doc := Parse([]byte(src), Options{})
		require.Len(t, doc.Segments, 1)
		assert.Equal(t, src, doc.Segments[0].Raw)
	})

	t.Run("indented fence", func(t *testing.T) {
		src := "    ```\n    code\n    ```\n"
		doc := Parse([]byte(src), Options{})
		require.Len(t, doc.Segments, 1)
		assert.Equal(t, KindCodeFence, doc.Segments[0].Kind)
	})

	t.Run("crlf", func(t *testing.T) {
		src := "intro\r\n```go\r\nfmt.Println()\r\n```\r\n"
		doc := Parse([]byte(src), Options{})
		require.Equal(t, 1, doc.CountKind(KindCodeFence))
		assert.Equal(t, src, doc.Source())
	})
}

func TestFenceNestedInListItem(t *testing.T) {
	fence := "    ```bash\n" +
		"    # install the package first\n" +
		"    npm install -g tool\n" +
		"\n" +
		"    # then run it\n" +
		"    tool run\n" +
		"    ```\n"
	src := "# Setup\n\n1. Install the tool:\n\n" + fence + "\nDone.\n"
	doc := Parse([]byte(src), Options{})

	require.Equal(t, 1, doc.CountKind(KindCodeFence))
	for _, seg := range doc.Segments {
		if seg.Kind == KindCodeFence {
			assert.Equal(t, fence, seg.Raw)
			assert.Equal(t, "bash", seg.Lang)
			assert.False(t, seg.Translatable)
		}
	}
	for _, u := range doc.Units() {
		assert.NotContains(t, u.Text, "npm install", "fenced code must not reach the provider")
	}
	assert.Equal(t, src, doc.Assemble(nil))
}

func TestInlineCode(t *testing.T) {
	t.Run("double backticks", func(t *testing.T) {
		doc := Parse([]byte("use ``a ` b`` here\n"), Options{})
		require.Equal(t, 1, doc.CountKind(KindInlineCode))
		assert.Equal(t, "``a ` b``", doc.Segments[1].Raw)
	})

	t.Run("does not cross blank line", func(t *testing.T) {
		doc := Parse([]byte("a `b\n\nc` d\n"), Options{})
		assert.Zero(t, doc.CountKind(KindInlineCode))
	})

	t.Run("unmatched run is text", func(t *testing.T) {
		doc := Parse([]byte("a `` b ` c\n"), Options{})
		assert.Zero(t, doc.CountKind(KindInlineCode))
	})
}

func TestChunking(t *testing.T) {
	para := "aaaa aaaa\n\n"
	doc := Parse([]byte(strings.Repeat(para, 3)), Options{ChunkSize: 20})

	chunks := map[int]bool{}
	for _, seg := range doc.Segments {
		chunks[seg.Chunk] = true
	}
	assert.Len(t, chunks, 3)
	assert.Len(t, doc.Units(), 3)
	assert.Equal(t, strings.Repeat(para, 3), doc.Source())
}

func TestChunkingSplitsLongParagraphByLine(t *testing.T) {
	src := "line one here\nline two here\nline three\n"
	chunks := chunkLines(splitLines(src), 20)
	assert.Equal(t, []string{"line one here\n", "line two here\n", "line three\n"}, chunks)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate([]byte("héllo")))
	assert.ErrorIs(t, Validate([]byte{0xff, 0xfe}), ErrInvalidEncoding)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "code_fence", KindCodeFence.String())
	assert.Equal(t, "kind(99)", Kind(99).String())
}
