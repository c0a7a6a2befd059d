package extract

import (
	"regexp"
	"strconv"
	"time"
)

// ISODate is the canonical date layout of extracted records.
const ISODate = "2006-01-02"

var (
	numericDateRe = regexp.MustCompile(`(\d{1,4})[/.\-](\d{1,2})[/.\-](\d{4}|\d{2})`)
	textDateRe    = regexp.MustCompile(`(\d{1,2})(?:de|[/.\-])?(` + monthAlternation + `)\.?(?:de|[/.\-])?(\d{4}|\d{2})`)
)

const monthAlternation = `jan(?:eiro)?|fev(?:ereiro)?|feb|mar(?:co)?|abr(?:il)?|apr|mai(?:o)?|may|jun(?:ho)?|jul(?:ho)?|ago(?:sto)?|aug|set(?:embro)?|sep|out(?:ubro)?|oct|nov(?:embro)?|dez(?:embro)?|dec`

var months = map[string]time.Month{
	"jan": time.January, "fev": time.February, "feb": time.February,
	"mar": time.March, "abr": time.April, "apr": time.April,
	"mai": time.May, "may": time.May, "jun": time.June, "jul": time.July,
	"ago": time.August, "aug": time.August, "set": time.September, "sep": time.September,
	"out": time.October, "oct": time.October, "nov": time.November,
	"dez": time.December, "dec": time.December,
}

// DateMatch is a date found inside a window. End is the byte offset in the
// window just past the date text.
type DateMatch struct {
	Value string
	End   int
}

// ParseDate normalizes a single date written in any supported ordering to
// ISO form. Calendrically invalid dates are rejected.
func ParseDate(s string) (string, bool) {
	dates, _ := FindDates(s, 1)
	if len(dates) == 0 {
		return "", false
	}
	return dates[0].Value, true
}

// FindDates returns up to limit valid dates in window, in text order, plus
// the raw text of the first date-shaped candidate that failed validation.
func FindDates(window string, limit int) (found []DateMatch, rejected string) {
	fw := foldWindow(window)

	type cand struct {
		start, end int
		value      string
		ok         bool
	}
	var cands []cand
	prevEnd := 0
	for _, m := range numericDateRe.FindAllStringSubmatchIndex(fw.text, -1) {
		if glued(fw.text, m[0], prevEnd) {
			continue
		}
		prevEnd = m[1]
		v, ok := numericDate(fw.text[m[2]:m[3]], fw.text[m[4]:m[5]], fw.text[m[6]:m[7]])
		cands = append(cands, cand{start: m[0], end: m[1], value: v, ok: ok})
	}
	prevEnd = 0
	for _, m := range textDateRe.FindAllStringSubmatchIndex(fw.text, -1) {
		if glued(fw.text, m[0], prevEnd) {
			continue
		}
		prevEnd = m[1]
		v, ok := textDate(fw.text[m[2]:m[3]], fw.text[m[4]:m[5]], fw.text[m[6]:m[7]])
		cands = append(cands, cand{start: m[0], end: m[1], value: v, ok: ok})
	}

	// Merge both pattern families into text order.
	for i := 1; i < len(cands); i++ {
		for j := i; j > 0 && cands[j].start < cands[j-1].start; j-- {
			cands[j], cands[j-1] = cands[j-1], cands[j]
		}
	}

	lastEnd := -1
	for _, c := range cands {
		if c.start < lastEnd {
			continue
		}
		if !c.ok {
			if rejected == "" {
				rejected = fw.text[c.start:c.end]
			}
			continue
		}
		found = append(found, DateMatch{Value: c.value, End: fw.origEnd(c.end)})
		lastEnd = c.end
		if limit > 0 && len(found) == limit {
			break
		}
	}
	return found, rejected
}

// glued reports whether a match starting at start is the tail of a longer
// digit run rather than a date of its own.
func glued(text string, start, prevEnd int) bool {
	return start > 0 && start != prevEnd && isDigit(text[start-1])
}

func numericDate(a, b, c string) (string, bool) {
	x, _ := strconv.Atoi(a)
	y, _ := strconv.Atoi(b)
	z, _ := strconv.Atoi(c)

	if len(a) == 4 {
		if len(c) > 2 {
			return "", false
		}
		return validDate(x, time.Month(y), z)
	}
	if len(a) > 2 {
		return "", false
	}
	year, ok := expandYear(c, z)
	if !ok {
		return "", false
	}
	if v, ok := validDate(year, time.Month(y), x); ok {
		return v, true
	}
	// Month-first only when the day-first reading is impossible.
	if x <= 12 && y > 12 {
		return validDate(year, time.Month(x), y)
	}
	return "", false
}

func textDate(day, month, year string) (string, bool) {
	d, _ := strconv.Atoi(day)
	z, _ := strconv.Atoi(year)
	m, ok := months[month[:3]]
	if !ok {
		return "", false
	}
	y, ok := expandYear(year, z)
	if !ok {
		return "", false
	}
	return validDate(y, m, d)
}

func expandYear(raw string, v int) (int, bool) {
	switch len(raw) {
	case 2:
		return 2000 + v, true
	case 4:
		return v, true
	}
	return 0, false
}

// validDate round-trips through time.Date so that overflowing values such
// as 31/04 are rejected instead of normalized into the next month.
func validDate(y int, m time.Month, d int) (string, bool) {
	if y < 1900 || y > 2199 || m < 1 || m > 12 || d < 1 {
		return "", false
	}
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	if t.Year() != y || t.Month() != m || t.Day() != d {
		return "", false
	}
	return t.Format(ISODate), true
}
