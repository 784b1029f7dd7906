package index

import (
	"bytes"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/rualca/librarian-agent/internal/vault"
)

// DefaultMaxChunkChars caps a chunk's length in characters.
const DefaultMaxChunkChars = 2000

var (
	atxRe           = regexp.MustCompile(`^#{1,6}[ \t]`)
	closingHashesRe = regexp.MustCompile(`[ \t]+#+[ \t]*$`)
	paragraphRe     = regexp.MustCompile(`\n{2,}`)
)

type section struct {
	heading string
	body    string
}

// ChunkDocument splits a markdown document into chunks. The front matter is
// dropped, the rest is cut at ATX headings outside code fences (text before the first
// heading is filed under title), and sections longer than maxChars are packed
// paragraph by paragraph into chunks of at most maxChars where possible.
func ChunkDocument(relPath, title, raw string, maxChars int) []Chunk {
	if maxChars <= 0 {
		maxChars = DefaultMaxChunkChars
	}

	var chunks []Chunk
	for _, s := range splitSections(vault.StripFrontmatter(raw), title) {
		for _, t := range packParagraphs(s.body, maxChars) {
			chunks = append(chunks, Chunk{RelPath: relPath, Title: title, Section: s.heading, Text: t})
		}
	}
	return chunks
}

// splitSections cuts body at every line opening with an ATX heading marker,
// except lines inside fenced code blocks. goldmark only locates the fences:
// headings it would fold into HTML blocks or paragraphs still split.
func splitSections(body, title string) []section {
	src := []byte(body)
	code := fencedLines(src)

	var out []section
	heading, pos := title, 0
	add := func(end int) {
		if b := strings.TrimSpace(string(src[pos:end])); b != "" {
			out = append(out, section{heading: heading, body: b})
		}
	}

	for start := 0; start < len(src); {
		end := lineEnd(src, start)
		if !code[start] && atxRe.Match(src[start:end]) {
			add(start)
			heading = headingText(string(src[start:end]))
			pos = end
		}
		start = end + 1
	}
	add(len(src))
	return out
}

// fencedLines returns the start offsets of lines inside fenced code blocks.
func fencedLines(src []byte) map[int]bool {
	doc := goldmark.DefaultParser().Parse(text.NewReader(src))
	lines := map[int]bool{}
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		fc, ok := n.(*ast.FencedCodeBlock)
		if !entering || !ok {
			return ast.WalkContinue, nil
		}
		segs := fc.Lines()
		for i := 0; i < segs.Len(); i++ {
			lines[lineStart(src, segs.At(i).Start)] = true
		}
		return ast.WalkSkipChildren, nil
	})
	return lines
}

func headingText(line string) string {
	t := strings.TrimLeft(line, "#")
	t = closingHashesRe.ReplaceAllString(t, "")
	return strings.TrimSpace(t)
}

func lineStart(src []byte, i int) int {
	return bytes.LastIndexByte(src[:i], '\n') + 1
}

func lineEnd(src []byte, i int) int {
	if j := bytes.IndexByte(src[i:], '\n'); j >= 0 {
		return i + j
	}
	return len(src)
}

// packParagraphs returns body as one piece when it fits, otherwise greedily
// joins blank-line separated paragraphs until the next one would overflow.
// A single paragraph longer than maxChars becomes its own oversize piece.
func packParagraphs(body string, maxChars int) []string {
	if utf8.RuneCountInString(body) <= maxChars {
		return []string{body}
	}

	var out []string
	var buf strings.Builder
	bufLen := 0
	for _, para := range paragraphRe.Split(body, -1) {
		paraLen := utf8.RuneCountInString(para)
		if bufLen > 0 && bufLen+paraLen+2 > maxChars {
			if s := strings.TrimSpace(buf.String()); s != "" {
				out = append(out, s)
			}
			buf.Reset()
			bufLen = 0
		}
		buf.WriteString(para)
		buf.WriteString("\n\n")
		bufLen += paraLen + 2
	}
	if s := strings.TrimSpace(buf.String()); s != "" {
		out = append(out, s)
	}
	return out
}
