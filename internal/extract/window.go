package extract

import (
	"strings"
	"unicode/utf8"

	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/anchor"
	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/textnorm"
)

// foldedWindow is the folded compact form of a window with enough bookkeeping
// to map a byte offset in the folded text back to the original window.
type foldedWindow struct {
	text    string
	c       textnorm.Compact
	runeIdx []int // byte offset in text → compact rune index
}

func foldWindow(window string) foldedWindow {
	c := textnorm.Normalize(window)
	var sb strings.Builder
	idx := make([]int, 0, len(c.Runes))
	for i, r := range anchor.FoldRunes(c.Runes) {
		n, _ := sb.WriteRune(r)
		for k := 0; k < n; k++ {
			idx = append(idx, i)
		}
	}
	return foldedWindow{text: sb.String(), c: c, runeIdx: idx}
}

// origEnd maps an exclusive byte end in the folded text to the exclusive byte
// end in the original window.
func (f foldedWindow) origEnd(end int) int {
	if end <= 0 || end > len(f.runeIdx) {
		return 0
	}
	ri := f.runeIdx[end-1]
	_, e, _ := f.c.Span(ri, ri+1)
	return e
}

// slice returns text[start:min(limit, start+size)], trimmed back to a rune
// boundary.
func slice(text string, start, limit, size int) string {
	if start < 0 {
		start = 0
	}
	if start >= len(text) {
		return ""
	}
	end := start + size
	if limit >= 0 && limit < end {
		end = limit
	}
	if end > len(text) {
		end = len(text)
	}
	for end > start && end < len(text) && !utf8.RuneStart(text[end]) {
		end--
	}
	if end <= start {
		return ""
	}
	return text[start:end]
}
