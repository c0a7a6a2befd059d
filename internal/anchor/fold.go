package anchor

import (
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// FoldRune maps r to its comparison form: lower case with diacritics and
// compatibility variants removed ("Ó" → "o", "º" → "o").
func FoldRune(r rune) rune {
	if r < utf8.RuneSelf {
		return unicode.ToLower(r)
	}
	d := norm.NFKD.String(string(r))
	for _, dr := range d {
		if unicode.Is(unicode.Mn, dr) {
			continue
		}
		return unicode.ToLower(dr)
	}
	return unicode.ToLower(r)
}

// FoldRunes folds every rune of rs into a new slice of the same length.
func FoldRunes(rs []rune) []rune {
	out := make([]rune, len(rs))
	for i, r := range rs {
		out[i] = FoldRune(r)
	}
	return out
}

// FoldLabel folds s and drops the characters the compact form drops, so a
// label can be compared directly against folded compact text.
func FoldLabel(s string) []rune {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if unicode.IsSpace(r) || unicode.IsControl(r) || unicode.Is(unicode.Cf, r) || r == utf8.RuneError {
			continue
		}
		out = append(out, FoldRune(r))
	}
	return out
}

// confusion maps folded runes OCR engines commonly swap onto one class rune.
var confusion = map[rune]rune{
	'0': 'o', 'o': 'o', 'q': 'o', 'd': 'o',
	'1': 'l', 'l': 'l', 'i': 'l', '|': 'l', '!': 'l',
	'5': 's', 's': 's',
	'8': 'b', 'b': 'b',
	'2': 'z', 'z': 'z',
	'6': 'g', 'g': 'g',
	'7': 't', 't': 't',
}

func classRunes(rs []rune) []rune {
	out := make([]rune, len(rs))
	for i, r := range rs {
		if c, ok := confusion[r]; ok {
			out[i] = c
		} else {
			out[i] = r
		}
	}
	return out
}
