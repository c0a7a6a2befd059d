package extract

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const separatorChars = " \t:;-–—=|.,_>"

// CleanFreeText turns the raw window after a label into a single-line value:
// leading separators and blank lines are dropped, whitespace is collapsed and
// the result is capped at maxLen runes on a word boundary.
func CleanFreeText(s string, maxLen int) string {
	s = strings.TrimLeft(s, separatorChars+"\r\n")
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		s = s[:i]
	}
	s = strings.Join(strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r)
	}), " ")
	if maxLen > 0 && utf8.RuneCountInString(s) > maxLen {
		s = string([]rune(s)[:maxLen])
		if i := strings.LastIndexByte(s, ' '); i > 0 {
			s = s[:i]
		}
	}
	return strings.TrimRight(s, separatorChars)
}

var emailRe = regexp.MustCompile(`[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}`)

// FindEmail returns the first e-mail address in window, lower-cased. Spaces
// inserted by OCR are ignored.
func FindEmail(window string) (string, int, bool) {
	fw := foldWindow(window)
	loc := emailRe.FindStringIndex(fw.text)
	if loc == nil {
		return "", 0, false
	}
	return strings.TrimRight(fw.text[loc[0]:loc[1]], "."), fw.origEnd(loc[1]), true
}

var phoneRe = regexp.MustCompile(`(?:\+?55\s*)?\(?\s*\d{2}\s*\)?\s*9?\s*\d{4}\s*[\s.\-]?\s*\d{4}`)

// FindPhone returns the first phone number in window as digits only, with
// area code and without the country prefix.
func FindPhone(window string) (string, int, bool) {
	for _, loc := range phoneRe.FindAllStringIndex(window, -1) {
		var sb strings.Builder
		for _, r := range window[loc[0]:loc[1]] {
			if r >= '0' && r <= '9' {
				sb.WriteRune(r)
			}
		}
		d := sb.String()
		if (len(d) == 12 || len(d) == 13) && strings.HasPrefix(d, "55") {
			d = d[2:]
		}
		if len(d) == 10 || len(d) == 11 {
			return d, loc[1], true
		}
	}
	return "", 0, false
}

var (
	policyTokenRe = regexp.MustCompile(`[A-Za-z0-9][A-Za-z0-9.\-/]*`)
	policyPrefix  = map[string]bool{"n": true, "no": true, "nº": true, "n°": true, "num": true, "numero": true, "número": true}
)

// maxPolicyTokens bounds how far past the label a policy number may start.
const maxPolicyTokens = 4

// FindPolicyNumber returns the first token after the label that contains a
// digit and at least four alphanumerics. Tokens that read as dates are skipped.
func FindPolicyNumber(window string) (string, int, bool) {
	seen := 0
	for _, loc := range policyTokenRe.FindAllStringIndex(window, -1) {
		tok := strings.TrimRight(window[loc[0]:loc[1]], ".-/")
		if policyPrefix[strings.ToLower(tok)] {
			continue
		}
		if seen++; seen > maxPolicyTokens {
			break
		}
		if !strings.ContainsAny(tok, "0123456789") || alnumCount(tok) < 4 {
			continue
		}
		if _, ok := ParseDate(tok); ok && strings.ContainsAny(tok, "/.-") {
			continue
		}
		return strings.ToUpper(tok), loc[0] + len(tok), true
	}
	return "", 0, false
}

func alnumCount(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			n++
		}
	}
	return n
}
