package extract

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var amountRe = regexp.MustCompile(`(?i)([-(−]?)(?:r\$|brl|us\$|\$)?\s*(-?)(\d[\d.,]*\d|\d)`)

// ParseAmount converts a monetary string in European (1.234,56) or US
// (1,234.56) shape into a two-place decimal. Negative values are rejected.
func ParseAmount(s string) (decimal.Decimal, bool) {
	v, _, _, ok := FindAmount(s)
	return v, ok
}

// FindAmount returns the first monetary value in window. Numbers that are
// part of a date or a percentage are skipped. rejected carries the raw text
// of the first number-shaped candidate that could not be normalized.
func FindAmount(window string) (v decimal.Decimal, end int, rejected string, ok bool) {
	for _, m := range amountRe.FindAllStringSubmatchIndex(window, -1) {
		numStart, numEnd := m[6], m[7]
		if numStart > 0 && window[numStart-1] == '/' {
			continue
		}
		if numEnd < len(window) && (window[numEnd] == '/' || window[numEnd] == '%') {
			continue
		}
		raw := window[numStart:numEnd]
		if m[3] > m[2] || m[5] > m[4] {
			if rejected == "" {
				rejected = strings.TrimSpace(window[m[0]:m[1]])
			}
			continue
		}
		d, ok := normalizeAmount(raw)
		if !ok {
			if rejected == "" {
				rejected = raw
			}
			continue
		}
		return d, numEnd, "", true
	}
	return decimal.Decimal{}, 0, rejected, false
}

func normalizeAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimRight(s, ".,")
	lastDot, lastComma := strings.LastIndexByte(s, '.'), strings.LastIndexByte(s, ',')

	var intPart, frac string
	switch {
	case lastDot >= 0 && lastComma >= 0:
		dec, thou := byte(','), byte('.')
		if lastDot > lastComma {
			dec, thou = '.', ','
		}
		i := strings.LastIndexByte(s, dec)
		if strings.IndexByte(s[i+1:], thou) >= 0 || strings.Count(s, string(dec)) > 1 {
			return decimal.Decimal{}, false
		}
		intPart, frac = s[:i], s[i+1:]
		if !validGroups(intPart, thou) || len(frac) == 0 || len(frac) > 2 {
			return decimal.Decimal{}, false
		}
		intPart = strings.ReplaceAll(intPart, string(thou), "")
	case lastDot >= 0 || lastComma >= 0:
		sep := byte('.')
		if lastComma >= 0 {
			sep = ','
		}
		i := strings.LastIndexByte(s, sep)
		tail := len(s) - i - 1
		switch {
		case strings.Count(s, string(sep)) > 1 || tail == 3:
			if !validGroups(s, sep) {
				return decimal.Decimal{}, false
			}
			intPart = strings.ReplaceAll(s, string(sep), "")
		case tail == 1 || tail == 2:
			intPart, frac = s[:i], s[i+1:]
		default:
			return decimal.Decimal{}, false
		}
	default:
		intPart = s
	}

	if intPart == "" {
		intPart = "0"
	}
	num := intPart
	if frac != "" {
		num += "." + frac
	}
	d, err := decimal.NewFromString(num)
	if err != nil || d.IsNegative() {
		return decimal.Decimal{}, false
	}
	return d.Round(2), true
}

// validGroups checks thousands grouping: a leading group of one to three
// digits followed by groups of exactly three.
func validGroups(s string, sep byte) bool {
	groups := strings.Split(s, string(sep))
	if len(groups[0]) == 0 || len(groups[0]) > 3 {
		return len(groups) == 1 && len(groups[0]) > 0
	}
	for _, g := range groups[1:] {
		if len(g) != 3 {
			return false
		}
	}
	return true
}
