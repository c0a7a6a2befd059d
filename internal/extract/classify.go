package extract

import (
	_ "embed"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/anchor"
	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/model"
	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/textnorm"
)

//go:embed dictionary.yaml
var defaultDictionary []byte

// Tag is a canonical insurer or branch.
type Tag struct {
	Code     string   `yaml:"code"`
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`

	folded []string
}

// Dictionary holds the keyword tables used for classification.
type Dictionary struct {
	Insurers      []Tag `yaml:"insurers"`
	Branches      []Tag `yaml:"branches"`
	DocumentTypes []Tag `yaml:"document_types"`
}

// DefaultDictionary returns the built-in dictionary.
func DefaultDictionary() *Dictionary {
	d, err := ParseDictionary(defaultDictionary)
	if err != nil {
		panic(err)
	}
	return d
}

// ParseDictionary decodes a YAML dictionary and precomputes folded keywords.
func ParseDictionary(data []byte) (*Dictionary, error) {
	var d Dictionary
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, eris.Wrap(err, "extract: parse dictionary")
	}
	for _, tags := range [][]Tag{d.Insurers, d.Branches, d.DocumentTypes} {
		for i := range tags {
			if tags[i].Code == "" {
				return nil, eris.Errorf("extract: dictionary entry %d has no code", i)
			}
			for _, kw := range tags[i].Keywords {
				if f := string(anchor.FoldLabel(kw)); f != "" {
					tags[i].folded = append(tags[i].folded, f)
				}
			}
		}
	}
	return &d, nil
}

// InferInsurer returns the insurer whose keyword matches text. The longest
// matching keyword wins; ties go to the earliest occurrence.
func (d *Dictionary) InferInsurer(text string) (Tag, bool) {
	return bestTag(d.Insurers, foldText(text), false)
}

// InferBranch returns the branch whose keyword matches text, with the same
// preference rules as InferInsurer.
func (d *Dictionary) InferBranch(text string) (Tag, bool) {
	return bestTag(d.Branches, foldText(text), false)
}

// DetectDocumentType classifies text by the earliest document-type keyword,
// since titles come first. It returns DocumentUnknown when nothing matches.
func (d *Dictionary) DetectDocumentType(text string) model.DocumentType {
	t, ok := bestTag(d.DocumentTypes, foldText(text), true)
	if !ok {
		return model.DocumentUnknown
	}
	dt := model.DocumentType(t.Code)
	if !dt.Valid() {
		return model.DocumentUnknown
	}
	return dt
}

func foldText(text string) string {
	return string(anchor.FoldRunes(textnorm.Normalize(text).Runes))
}

func bestTag(tags []Tag, folded string, earliestFirst bool) (Tag, bool) {
	best, bestLen, bestPos := -1, 0, 0
	for i, t := range tags {
		for _, kw := range t.folded {
			pos := strings.Index(folded, kw)
			if pos < 0 {
				continue
			}
			n := utf8.RuneCountInString(kw)
			if best >= 0 && !better(n, pos, bestLen, bestPos, earliestFirst) {
				continue
			}
			best, bestLen, bestPos = i, n, pos
		}
	}
	if best < 0 {
		return Tag{}, false
	}
	return tags[best], true
}

func better(n, pos, bestLen, bestPos int, earliestFirst bool) bool {
	if earliestFirst {
		if pos != bestPos {
			return pos < bestPos
		}
		return n > bestLen
	}
	if n != bestLen {
		return n > bestLen
	}
	return pos < bestPos
}
