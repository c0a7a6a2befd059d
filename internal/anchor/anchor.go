// Package anchor locates field labels inside the compact form of OCR text.
package anchor

import (
	"sort"

	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/model"
	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/textnorm"
)

// Method records which search stage produced a match.
type Method string

const (
	MethodExact Method = "exact"
	MethodClass Method = "class" // digit/letter confusion classes
	MethodFuzzy Method = "fuzzy" // bounded edit distance
)

// Label is a printed field name to search for.
type Label struct {
	Field model.Field
	Text  string
}

// Match is one occurrence of a label. Compact offsets index textnorm.Compact
// runes; Start/End are byte offsets into the original text. Both are half-open.
type Match struct {
	Field        model.Field `json:"field"`
	Label        string      `json:"label"`
	CompactStart int         `json:"compact_start"`
	CompactEnd   int         `json:"compact_end"`
	Start        int         `json:"start"`
	End          int         `json:"end"`
	Distance     int         `json:"distance"`
	Method       Method      `json:"method"`
}

// Options tunes the tolerant stages.
type Options struct {
	// MaxEdits caps the edit distance of a fuzzy match.
	MaxEdits int `yaml:"max_edits" mapstructure:"max_edits"`
	// MaxEditRatio caps the edit distance relative to label length.
	MaxEditRatio float64 `yaml:"max_edit_ratio" mapstructure:"max_edit_ratio"`
	// MinFuzzyLength is the shortest folded label eligible for fuzzy search.
	MinFuzzyLength int `yaml:"min_fuzzy_length" mapstructure:"min_fuzzy_length"`
	// ConfusionClasses enables digit/letter confusion-insensitive comparison.
	ConfusionClasses bool `yaml:"confusion_classes" mapstructure:"confusion_classes"`
}

// DefaultOptions returns the tolerances used when config leaves them unset.
func DefaultOptions() Options {
	return Options{
		MaxEdits:         2,
		MaxEditRatio:     0.2,
		MinFuzzyLength:   6,
		ConfusionClasses: true,
	}
}

// Locator searches compact text for labels. It holds no per-document state
// and is safe for concurrent use.
type Locator struct {
	opts Options
}

// NewLocator creates a Locator. Negative tolerances are treated as zero.
func NewLocator(opts Options) *Locator {
	if opts.MaxEdits < 0 {
		opts.MaxEdits = 0
	}
	if opts.MaxEditRatio < 0 {
		opts.MaxEditRatio = 0
	}
	if opts.MinFuzzyLength < 1 {
		opts.MinFuzzyLength = 1
	}
	return &Locator{opts: opts}
}

// Options returns the locator's effective options.
func (l *Locator) Options() Options { return l.opts }

// FindAnchors is a convenience wrapper around NewLocator(opts).Find.
func FindAnchors(c textnorm.Compact, labels []Label, opts Options) []Match {
	return NewLocator(opts).Find(c, labels)
}

// Find returns every match of every label, ordered by original offset and,
// for equal offsets, by label order. A label that is absent contributes nothing.
func (l *Locator) Find(c textnorm.Compact, labels []Label) []Match {
	if c.Len() == 0 || len(labels) == 0 {
		return nil
	}

	folded := FoldRunes(c.Runes)
	var classed []rune

	var out []Match
	for _, lb := range labels {
		pat := FoldLabel(lb.Text)
		if len(pat) == 0 {
			continue
		}

		method := MethodExact
		spans := findExact(folded, pat)

		if len(spans) == 0 && l.opts.ConfusionClasses {
			if classed == nil {
				classed = classRunes(folded)
			}
			method = MethodClass
			spans = findExact(classed, classRunes(pat))
		}

		if len(spans) == 0 && len(pat) >= l.opts.MinFuzzyLength {
			if k := l.budget(len(pat)); k > 0 {
				text, p := folded, pat
				if l.opts.ConfusionClasses {
					text, p = classed, classRunes(pat)
				}
				method = MethodFuzzy
				spans = findApprox(text, p, k)
			}
		}

		for _, sp := range spans {
			start, end, ok := c.Span(sp.start, sp.end)
			if !ok {
				continue
			}
			out = append(out, Match{
				Field:        lb.Field,
				Label:        lb.Text,
				CompactStart: sp.start,
				CompactEnd:   sp.end,
				Start:        start,
				End:          end,
				Distance:     sp.dist,
				Method:       method,
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// budget returns the edit allowance for a folded label of length n.
func (l *Locator) budget(n int) int {
	k := int(float64(n) * l.opts.MaxEditRatio)
	if k > l.opts.MaxEdits {
		k = l.opts.MaxEdits
	}
	return k
}

type span struct {
	start, end, dist int
}

// findExact returns non-overlapping occurrences of pat in text.
func findExact(text, pat []rune) []span {
	var out []span
	m := len(pat)
	for i := 0; i+m <= len(text); {
		if equalAt(text, pat, i) {
			out = append(out, span{start: i, end: i + m})
			i += m
			continue
		}
		i++
	}
	return out
}

func equalAt(text, pat []rune, at int) bool {
	for j, r := range pat {
		if text[at+j] != r {
			return false
		}
	}
	return true
}

// findApprox is Sellers' approximate substring search: edit distance with a
// free start and end in text. Overlapping candidates collapse to the lowest
// distance, the earliest one on ties.
func findApprox(text, pat []rune, k int) []span {
	m := len(pat)
	prev := make([]int, m+1)
	cur := make([]int, m+1)
	prevStart := make([]int, m+1)
	curStart := make([]int, m+1)
	for i := range prev {
		prev[i] = i
	}

	var cands []span
	for j := 1; j <= len(text); j++ {
		cur[0] = 0
		curStart[0] = j
		for i := 1; i <= m; i++ {
			cost := 1
			if pat[i-1] == text[j-1] {
				cost = 0
			}
			best, bs := prev[i-1]+cost, prevStart[i-1]
			if d := prev[i] + 1; d < best || (d == best && prevStart[i] > bs) {
				best, bs = d, prevStart[i]
			}
			if d := cur[i-1] + 1; d < best || (d == best && curStart[i-1] > bs) {
				best, bs = d, curStart[i-1]
			}
			cur[i], curStart[i] = best, bs
		}
		if cur[m] <= k && curStart[m] < j {
			cands = append(cands, span{start: curStart[m], end: j, dist: cur[m]})
		}
		prev, cur = cur, prev
		prevStart, curStart = curStart, prevStart
	}

	var out []span
	for _, c := range cands {
		if n := len(out); n > 0 && c.start < out[n-1].end {
			if c.dist < out[n-1].dist {
				out[n-1] = c
			}
			continue
		}
		out = append(out, c)
	}
	return out
}
