// Package textnorm builds the compact form of OCR text used for anchor search.
//
// The compact form drops every character OCR engines scatter through a page
// (whitespace, control and format characters, undecodable bytes) and keeps an
// index back to the original text, so that a span found in compact space can
// be projected onto the original for value extraction.
package textnorm

import (
	"unicode"
	"unicode/utf8"
)

// Compact is the noise-free representation of a text plus its index map.
// Index[i] is the byte offset in the original text of the rune Runes[i].
type Compact struct {
	Runes []rune
	Index []int
}

// Normalize builds the compact form of original. It never fails; an empty
// input yields an empty Compact.
func Normalize(original string) Compact {
	c := Compact{
		Runes: make([]rune, 0, len(original)),
		Index: make([]int, 0, len(original)),
	}
	for off := 0; off < len(original); {
		r, size := utf8.DecodeRuneInString(original[off:])
		if !dropped(r, size) {
			c.Runes = append(c.Runes, r)
			c.Index = append(c.Index, off)
		}
		off += size
	}
	return c
}

// dropped reports whether r carries no semantic content for field search.
func dropped(r rune, size int) bool {
	if r == utf8.RuneError && size <= 1 {
		return true
	}
	return unicode.IsSpace(r) || unicode.IsControl(r) || unicode.Is(unicode.Cf, r)
}

// Len returns the number of compact runes.
func (c Compact) Len() int { return len(c.Runes) }

// Text returns the compact runes as a string.
func (c Compact) Text() string { return string(c.Runes) }

// Span projects the compact half-open span [start, end) onto a half-open byte
// span of the original text. The end offset covers the full encoding of the
// last rune. Out-of-range or empty spans return ok=false.
func (c Compact) Span(start, end int) (origStart, origEnd int, ok bool) {
	if start < 0 || end > len(c.Runes) || start >= end {
		return 0, 0, false
	}
	last := end - 1
	return c.Index[start], c.Index[last] + utf8.RuneLen(c.Runes[last]), true
}

// CompactOffset returns the first compact position whose original offset is
// at or after origOffset, or Len() when none is.
func (c Compact) CompactOffset(origOffset int) int {
	lo, hi := 0, len(c.Index)
	for lo < hi {
		mid := (lo + hi) / 2
		if c.Index[mid] < origOffset {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}
