package reconcile

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/extract"
	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/model"
)

// legalSuffixes are Brazilian company-type suffixes dropped from the end of
// a normalized name.
var legalSuffixes = map[string]bool{
	"LTDA":   true,
	"SA":     true,
	"ME":     true,
	"MEI":    true,
	"EPP":    true,
	"EIRELI": true,
	"SS":     true,
}

var punctuation = strings.NewReplacer(
	",", " ",
	".", "",
	"'", "",
	"\"", "",
	"/", "",
	"&", " E ",
	"-", " ",
	"(", " ",
	")", " ",
)

// NormalizeName standardizes a person or company name for matching:
//  1. Removing diacritics and converting to uppercase
//  2. Stripping punctuation
//  3. Removing trailing legal suffixes (LTDA, S/A, ME, EIRELI, EPP)
//  4. Collapsing whitespace
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err == nil {
		name = folded
	}
	name = strings.ToUpper(punctuation.Replace(name))

	fields := strings.Fields(name)
	for len(fields) > 1 && legalSuffixes[fields[len(fields)-1]] {
		fields = fields[:len(fields)-1]
	}
	return strings.Join(fields, " ")
}

// Code turns a free-text catalog name into a stable lookup code.
func Code(name string) string {
	return strings.ToLower(strings.ReplaceAll(NormalizeName(name), " ", "_"))
}

// ClientKey is the identity of the client a record refers to: the identifier
// digits when valid, otherwise the normalized name. Empty when neither exists.
func ClientKey(rec model.ExtractedPolicyRecord) string {
	if id, ok := extract.ParseIdentifier(rec.Client.DocumentID); ok {
		return "id:" + id.Digits
	}
	if n := NormalizeName(rec.Client.Name); n != "" {
		return "name:" + n
	}
	return ""
}

// InsurerCode returns the catalog code of the record's insurer.
func InsurerCode(rec model.ExtractedPolicyRecord) string {
	if rec.Policy.InsurerCode != "" {
		return rec.Policy.InsurerCode
	}
	return Code(rec.Policy.InsurerName)
}

// BranchCode returns the catalog code of the record's branch.
func BranchCode(rec model.ExtractedPolicyRecord) string {
	if rec.Policy.BranchCode != "" {
		return rec.Policy.BranchCode
	}
	return Code(rec.Policy.Branch)
}
