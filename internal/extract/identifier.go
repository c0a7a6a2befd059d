package extract

import (
	"strings"
	"unicode"
)

// IdentifierKind distinguishes individual from organization identifiers.
type IdentifierKind string

const (
	KindCPF  IdentifierKind = "cpf"  // individual, 11 digits
	KindCNPJ IdentifierKind = "cnpj" // organization, 14 digits
)

const (
	cpfLength  = 11
	cnpjLength = 14
)

// Identifier is a digits-only CPF or CNPJ.
type Identifier struct {
	Digits string
	Kind   IdentifierKind
}

// ParseIdentifier strips every non-digit from s and accepts the result only
// when its length is a valid CPF or CNPJ length.
func ParseIdentifier(s string) (Identifier, bool) {
	var sb strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}
	return identifierFromDigits(sb.String())
}

func identifierFromDigits(d string) (Identifier, bool) {
	switch len(d) {
	case cpfLength:
		return Identifier{Digits: d, Kind: KindCPF}, true
	case cnpjLength:
		return Identifier{Digits: d, Kind: KindCNPJ}, true
	}
	return Identifier{}, false
}

// maxGap is the longest run of separator characters tolerated between two
// digits of one identifier.
const maxGap = 3

func isIdentifierSeparator(b byte) bool {
	switch b {
	case '.', '-', '/', ' ', '\t', '\n', '\r':
		return true
	}
	return false
}

// FindIdentifier scans window for the first digit run that forms a valid
// identifier. Runs tolerate OCR noise between digits. A run with surplus
// digits is cut at a whitespace gap that leaves exactly 14 or 11 digits.
// It returns the identifier, the byte offset just past it, and the raw text
// of the first rejected run when nothing was accepted.
func FindIdentifier(window string) (id Identifier, end int, rejected string, ok bool) {
	for i := 0; i < len(window); {
		if !isDigit(window[i]) {
			i++
			continue
		}
		digits, ends, spaced, next := digitRun(window, i)
		if id, ok := identifierFromDigits(string(digits)); ok {
			return id, ends[len(ends)-1], "", true
		}
		for _, n := range []int{cnpjLength, cpfLength} {
			if n < len(digits) && spaced[n-1] {
				id, _ := identifierFromDigits(string(digits[:n]))
				return id, ends[n-1], "", true
			}
		}
		if rejected == "" && len(digits) >= 6 {
			rejected = strings.TrimSpace(window[i:next])
		}
		i = next
	}
	return Identifier{}, 0, rejected, false
}

// digitRun collects digits starting at i. ends[k] is the offset just past
// digit k; spaced[k] reports whether whitespace follows digit k inside the run.
func digitRun(s string, i int) (digits []byte, ends []int, spaced []bool, next int) {
	j := i
	for j < len(s) && isDigit(s[j]) {
		digits = append(digits, s[j])
		ends = append(ends, j+1)
		spaced = append(spaced, false)
		j++
		k := j
		for k < len(s) && k-j < maxGap && isIdentifierSeparator(s[k]) {
			k++
		}
		if k < len(s) && isDigit(s[k]) && k > j {
			for _, b := range []byte(s[j:k]) {
				if unicode.IsSpace(rune(b)) {
					spaced[len(spaced)-1] = true
				}
			}
			j = k
		}
	}
	return digits, ends, spaced, j
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
