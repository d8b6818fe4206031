package document

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var fieldKeyPattern = regexp.MustCompile(`^([A-Za-z0-9_][A-Za-z0-9_.-]*)[ \t]*:(?:[ \t]|$)`)

// Parse splits raw into segments. It never fails: an unterminated front
// matter block or code fence is treated as prose. Callers should run
// Validate first.
func Parse(raw []byte, opts Options) *Document {
	opts = opts.withDefaults()

	lines, dropped := dropLongLines(splitLines(string(raw)), opts.MaxLineLength)
	doc := &Document{DroppedLines: dropped}

	body := lines
	if segs, rest, ok := parseFrontMatter(lines); ok {
		doc.Segments = append(doc.Segments, segs...)
		body = rest
	}

	p := &bodyParser{opts: opts, doc: doc}
	p.parse(body)
	return doc
}

// splitLines splits s after every "\n", keeping the terminators.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func lineContent(line string) string {
	return strings.TrimRight(line, "\r\n")
}

func isBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}

func dropLongLines(lines []string, max int) ([]string, int) {
	kept := make([]string, 0, len(lines))
	dropped := 0
	for _, line := range lines {
		if utf8.RuneCountInString(lineContent(line)) > max {
			dropped++
			continue
		}
		kept = append(kept, line)
	}
	return kept, dropped
}

func isDelimiter(line string) bool {
	return strings.TrimRight(lineContent(line), " \t") == "---"
}

func parseFrontMatter(lines []string) ([]Segment, []string, bool) {
	if len(lines) == 0 || !isDelimiter(lines[0]) {
		return nil, lines, false
	}
	end := -1
	for i := 1; i < len(lines); i++ {
		if isDelimiter(lines[i]) {
			end = i
			break
		}
	}
	if end < 0 {
		return nil, lines, false
	}

	opening := Segment{Kind: KindFrontMatterDelimiter, Raw: lines[0], Chunk: -1}
	var fields []Segment
	for _, line := range lines[1:end] {
		if m := fieldKeyPattern.FindStringSubmatch(lineContent(line)); m != nil {
			fields = append(fields, Segment{
				Kind:  KindFrontMatterField,
				Name:  m[1],
				Raw:   line,
				Chunk: -1,
			})
			continue
		}
		// Continuation lines belong to the field above; anything before
		// the first key stays with the opening delimiter.
		if len(fields) == 0 {
			opening.Raw += line
			continue
		}
		fields[len(fields)-1].Raw += line
	}

	segs := make([]Segment, 0, len(fields)+2)
	segs = append(segs, opening)
	for _, f := range fields {
		if f.Name == DescriptionField {
			classifyDescription(&f)
		}
		segs = append(segs, f)
	}
	segs = append(segs, Segment{Kind: KindFrontMatterDelimiter, Raw: lines[end], Chunk: -1})
	return segs, lines[end+1:], true
}

type bodyParser struct {
	opts  Options
	doc   *Document
	prose []string
	chunk int
}

func (p *bodyParser) parse(lines []string) {
	for i := 0; i < len(lines); {
		if ch, n, lang, ok := fenceOpen(lines[i]); ok {
			if end := fenceClose(lines, i+1, ch, n); end >= 0 {
				p.flushProse()
				p.doc.Segments = append(p.doc.Segments, Segment{
					Kind:  KindCodeFence,
					Lang:  lang,
					Raw:   strings.Join(lines[i:end+1], ""),
					Chunk: -1,
				})
				i = end + 1
				continue
			}
		}
		p.prose = append(p.prose, lines[i])
		i++
	}
	p.flushProse()
}

func leadingSpaces(s string) int {
	return len(s) - len(strings.TrimLeft(s, " \t"))
}

func runLength(s string, from int, ch byte) int {
	n := 0
	for from+n < len(s) && s[from+n] == ch {
		n++
	}
	return n
}

// fenceOpen recognises a ``` or ~~~ opener at any indentation, so fences
// nested in list items are found too.
func fenceOpen(line string) (ch byte, n int, lang string, ok bool) {
	c := lineContent(line)
	indent := leadingSpaces(c)
	if indent >= len(c) {
		return 0, 0, "", false
	}
	ch = c[indent]
	if ch != '`' && ch != '~' {
		return 0, 0, "", false
	}
	n = runLength(c, indent, ch)
	if n < 3 {
		return 0, 0, "", false
	}
	info := strings.TrimSpace(c[indent+n:])
	if ch == '`' && strings.Contains(info, "`") {
		return 0, 0, "", false
	}
	if fields := strings.Fields(info); len(fields) > 0 {
		lang = strings.Trim(fields[0], "{}.")
	}
	return ch, n, lang, true
}

func fenceClose(lines []string, from int, ch byte, n int) int {
	for j := from; j < len(lines); j++ {
		c := lineContent(lines[j])
		indent := leadingSpaces(c)
		if indent >= len(c) || c[indent] != ch {
			continue
		}
		run := runLength(c, indent, ch)
		if run >= n && strings.TrimSpace(c[indent+run:]) == "" {
			return j
		}
	}
	return -1
}

func (p *bodyParser) flushProse() {
	if len(p.prose) == 0 {
		return
	}
	for _, text := range chunkLines(p.prose, p.opts.ChunkSize) {
		p.emitChunk(text)
	}
	p.prose = nil
}

// chunkLines packs paragraphs into chunks of at most limit runes. A
// paragraph over the limit is packed line by line; a single line over the
// limit becomes its own chunk.
func chunkLines(lines []string, limit int) []string {
	var paras [][]string
	var cur []string
	for i, line := range lines {
		cur = append(cur, line)
		if isBlank(line) && (i+1 == len(lines) || !isBlank(lines[i+1])) {
			paras = append(paras, cur)
			cur = nil
		}
	}
	if len(cur) > 0 {
		paras = append(paras, cur)
	}

	var chunks []string
	var b strings.Builder
	size := 0
	add := func(text string) {
		n := utf8.RuneCountInString(text)
		if size > 0 && size+n > limit {
			chunks = append(chunks, b.String())
			b.Reset()
			size = 0
		}
		b.WriteString(text)
		size += n
	}

	for _, para := range paras {
		text := strings.Join(para, "")
		if utf8.RuneCountInString(text) <= limit {
			add(text)
			continue
		}
		for _, line := range para {
			add(line)
		}
	}
	if b.Len() > 0 {
		chunks = append(chunks, b.String())
	}
	return chunks
}

func (p *bodyParser) emitChunk(text string) {
	idx := p.chunk
	p.chunk++

	add := func(kind Kind, raw string) {
		if raw == "" {
			return
		}
		p.doc.Segments = append(p.doc.Segments, Segment{
			Kind:         kind,
			Raw:          raw,
			Chunk:        idx,
			Translatable: kind == KindProse,
		})
	}

	start := 0
	for i := 0; i < len(text); {
		if text[i] != '`' {
			i++
			continue
		}
		n := runLength(text, i, '`')
		end := closingBackticks(text, i+n, n)
		if end < 0 {
			i += n
			continue
		}
		add(KindProse, text[start:i])
		add(KindInlineCode, text[i:end+n])
		i = end + n
		start = i
	}
	add(KindProse, text[start:])
}

// closingBackticks finds the next run of exactly n backticks at or after
// from, stopping at a blank line.
func closingBackticks(s string, from, n int) int {
	for j := from; j < len(s); {
		switch s[j] {
		case '`':
			run := runLength(s, j, '`')
			if run == n {
				return j
			}
			j += run
		case '\n':
			next := s[j+1:]
			if k := strings.IndexByte(next, '\n'); k >= 0 {
				next = next[:k]
			}
			if isBlank(next) {
				return -1
			}
			j++
		default:
			j++
		}
	}
	return -1
}
