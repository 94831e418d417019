// Package layout wraps text into fixed-width lines and groups them into screen pages.
package layout

import (
	"strings"

	"github.com/rivo/uniseg"
	"github.com/spherical/glance/internal/domain"
)

// Engine lays text out for a display of Width characters by MaxLines lines.
type Engine struct {
	Width    int
	MaxLines int
}

// NewEngine returns an engine; non-positive dimensions are raised to 1.
func NewEngine(width, maxLines int) Engine {
	if width < 1 {
		width = 1
	}
	if maxLines < 1 {
		maxLines = 1
	}
	return Engine{Width: width, MaxLines: maxLines}
}

// Layout wraps text and splits the result into pages.
func (e Engine) Layout(text string) []domain.Page {
	return Layout(text, e.Width, e.MaxLines)
}

// Layout wraps text to widthChars and groups the lines into pages of at most
// maxLinesPerPage lines. Empty or whitespace-only text yields no pages.
func Layout(text string, widthChars, maxLinesPerPage int) []domain.Page {
	return Paginate(Wrap(text, widthChars), maxLinesPerPage)
}

// Wrap breaks text into lines no wider than width grapheme clusters.
//
// Every embedded newline starts a new line. Runs of whitespace collapse to a
// single space, and a word is cut only when it alone is wider than a line.
func Wrap(text string, width int) []string {
	if width < 1 {
		width = 1
	}

	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		var cur strings.Builder
		curLen := 0

		flush := func() {
			if curLen > 0 {
				lines = append(lines, cur.String())
				cur.Reset()
				curLen = 0
			}
		}

		for _, word := range strings.Fields(paragraph) {
			wordLen := Measure(word)

			if curLen > 0 && curLen+1+wordLen <= width {
				cur.WriteByte(' ')
				cur.WriteString(word)
				curLen += 1 + wordLen
				continue
			}
			flush()

			if wordLen <= width {
				cur.WriteString(word)
				curLen = wordLen
				continue
			}

			pieces := splitWord(word, width)
			lines = append(lines, pieces[:len(pieces)-1]...)
			tail := pieces[len(pieces)-1]
			cur.WriteString(tail)
			curLen = Measure(tail)
		}
		flush()
	}
	return lines
}

// Paginate groups lines into pages of at most maxLines lines each.
func Paginate(lines []string, maxLines int) []domain.Page {
	if maxLines < 1 {
		maxLines = 1
	}
	if len(lines) == 0 {
		return nil
	}

	pages := make([]domain.Page, 0, (len(lines)+maxLines-1)/maxLines)
	for start := 0; start < len(lines); start += maxLines {
		end := start + maxLines
		if end > len(lines) {
			end = len(lines)
		}
		page := make(domain.Page, end-start)
		copy(page, lines[start:end])
		pages = append(pages, page)
	}
	return pages
}

// Measure returns the number of printable characters (grapheme clusters) in s.
func Measure(s string) int {
	return uniseg.GraphemeClusterCount(s)
}

// splitWord cuts word into chunks of width grapheme clusters. Combining
// sequences are never separated from their base character.
func splitWord(word string, width int) []string {
	var (
		pieces []string
		cur    strings.Builder
		n      int
	)

	g := uniseg.NewGraphemes(word)
	for g.Next() {
		if n == width {
			pieces = append(pieces, cur.String())
			cur.Reset()
			n = 0
		}
		cur.WriteString(g.Str())
		n++
	}
	if n > 0 {
		pieces = append(pieces, cur.String())
	}
	return pieces
}
