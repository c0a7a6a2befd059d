// Package extract turns OCR text into a structured policy record: it locates
// field labels, parses the value window after each one and classifies the
// insurer, branch and document type from a keyword dictionary.
package extract

import (
	"github.com/shopspring/decimal"

	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/anchor"
	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/model"
	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/textnorm"
)

// Windows bounds how many bytes after a label are searched for each kind of
// value. A window also ends at the next label of another field.
type Windows struct {
	Identifier int `yaml:"identifier" mapstructure:"identifier"`
	Date       int `yaml:"date" mapstructure:"date"`
	Period     int `yaml:"period" mapstructure:"period"`
	Amount     int `yaml:"amount" mapstructure:"amount"`
	Text       int `yaml:"text" mapstructure:"text"`
	Object     int `yaml:"object" mapstructure:"object"`
}

// Config configures an Extractor.
type Config struct {
	Anchor        anchor.Options `yaml:"anchor" mapstructure:"anchor"`
	Windows       Windows        `yaml:"windows" mapstructure:"windows"`
	MaxTextLength int            `yaml:"max_text_length" mapstructure:"max_text_length"`
}

// DefaultConfig returns the extraction defaults.
func DefaultConfig() Config {
	return Config{
		Anchor: anchor.DefaultOptions(),
		Windows: Windows{
			Identifier: 64,
			Date:       48,
			Period:     96,
			Amount:     48,
			Text:       120,
			Object:     200,
		},
		MaxTextLength: 120,
	}
}

// Rejection records a value that was found after a label but failed
// normalization.
type Rejection struct {
	Field  model.Field `json:"field"`
	Raw    string      `json:"raw"`
	Reason string      `json:"reason"`
}

// Result is the outcome of one extraction.
type Result struct {
	Record   model.ExtractedPolicyRecord
	Anchors  []anchor.Match
	Rejected []Rejection
}

// Extractor assembles records from OCR text. It is safe for concurrent use.
type Extractor struct {
	cfg     Config
	dict    *Dictionary
	labels  []anchor.Label
	locator *anchor.Locator
}

// New creates an Extractor. A nil dict uses DefaultDictionary.
func New(cfg Config, dict *Dictionary) *Extractor {
	if dict == nil {
		dict = DefaultDictionary()
	}
	def := DefaultConfig()
	if cfg.Windows == (Windows{}) {
		cfg.Windows = def.Windows
	}
	if cfg.MaxTextLength <= 0 {
		cfg.MaxTextLength = def.MaxTextLength
	}
	return &Extractor{
		cfg:     cfg,
		dict:    dict,
		labels:  DefaultLabels,
		locator: anchor.NewLocator(cfg.Anchor),
	}
}

// Dictionary returns the classification dictionary in use.
func (e *Extractor) Dictionary() *Dictionary { return e.dict }

// run holds per-document extraction state.
type run struct {
	e        *Extractor
	text     string
	anchors  []anchor.Match
	limits   []int
	rejected []Rejection
}

// Extract builds a record from text. Fields whose labels are missing or whose
// values fail validation are left empty.
func (e *Extractor) Extract(text string) Result {
	c := textnorm.Normalize(text)
	anchors := dropShadowed(e.locator.Find(c, e.labels))
	r := &run{e: e, text: text, anchors: anchors, limits: foreignLimits(anchors, len(text))}

	var rec model.ExtractedPolicyRecord
	rec.DocumentType = e.dict.DetectDocumentType(text)

	if id, ok := r.identifier(); ok {
		rec.Client.DocumentID = id.Digits
	}
	rec.Client.Name = r.freeText(model.FieldClientName, e.cfg.Windows.Text)
	rec.Client.Email = r.email()
	rec.Client.Phone = r.phone()
	rec.Client.Address = r.freeText(model.FieldClientAddress, e.cfg.Windows.Object)

	rec.Policy.Number = r.policyNumber()
	r.classify(&rec)

	start, startEnd := r.date(model.FieldStartDate, -1)
	end, _ := r.date(model.FieldEndDate, startEnd)
	if start == "" || end == "" {
		if ps, pe, ok := r.period(); ok {
			if start == "" {
				start = ps
			}
			if end == "" {
				end = pe
			}
		}
	}
	rec.Policy.StartDate, rec.Policy.EndDate = start, end

	rec.InsuredObject.Description = r.freeText(model.FieldInsuredObject, e.cfg.Windows.Object)

	net, netEnd, ok := r.amount(model.FieldNetPremium, -1)
	if ok {
		rec.Values.NetPremium = decimal.NewNullDecimal(net)
	}
	if total, _, ok := r.amount(model.FieldTotalPremium, netEnd); ok {
		rec.Values.TotalPremium = decimal.NewNullDecimal(total)
	}

	return Result{Record: rec, Anchors: anchors, Rejected: r.rejected}
}

// dropShadowed resolves overlaps between labels of different fields, such as
// "Segurado" inside "Objeto Segurado". The closer match wins; at equal
// distance a longer match hides a shorter one it contains.
func dropShadowed(ms []anchor.Match) []anchor.Match {
	out := ms[:0:0]
	for i, m := range ms {
		if !shadowed(ms, i) {
			out = append(out, m)
		}
	}
	return out
}

func shadowed(ms []anchor.Match, i int) bool {
	m := ms[i]
	for j, o := range ms {
		if i == j || o.Field == m.Field || o.Start >= m.End || m.Start >= o.End {
			continue
		}
		if o.Distance < m.Distance {
			return true
		}
		if o.Distance == m.Distance && o.Start <= m.Start && o.End >= m.End && o.End-o.Start > m.End-m.Start {
			return true
		}
	}
	return false
}

// foreignLimits computes, for each anchor, the start of the next anchor of a
// different field at or after its end.
func foreignLimits(ms []anchor.Match, textLen int) []int {
	limits := make([]int, len(ms))
	for i, m := range ms {
		limits[i] = textLen
		for _, o := range ms[i+1:] {
			if o.Field != m.Field && o.Start >= m.End {
				limits[i] = o.Start
				break
			}
		}
	}
	return limits
}

// candidates returns the indexes of anchors for field, those starting at or
// after consumed first, each group in text order.
func (r *run) candidates(field model.Field, consumed int) []int {
	var after, before []int
	for i, m := range r.anchors {
		if m.Field != field {
			continue
		}
		if m.Start >= consumed {
			after = append(after, i)
		} else {
			before = append(before, i)
		}
	}
	return append(after, before...)
}

func (r *run) window(i, size int) string {
	return slice(r.text, r.anchors[i].End, r.limits[i], size)
}

func (r *run) reject(field model.Field, raw, reason string) {
	for _, rj := range r.rejected {
		if rj.Field == field {
			return
		}
	}
	r.rejected = append(r.rejected, Rejection{Field: field, Raw: raw, Reason: reason})
}

func (r *run) identifier() (Identifier, bool) {
	var firstRejected string
	for _, i := range r.candidates(model.FieldClientDocument, -1) {
		id, _, rejected, ok := FindIdentifier(r.window(i, r.e.cfg.Windows.Identifier))
		if ok {
			return id, true
		}
		if firstRejected == "" {
			firstRejected = rejected
		}
	}
	if firstRejected != "" {
		r.reject(model.FieldClientDocument, firstRejected, "identifier must have 11 or 14 digits")
	}
	return Identifier{}, false
}

func (r *run) freeText(field model.Field, size int) string {
	for _, i := range r.candidates(field, -1) {
		if v := CleanFreeText(r.window(i, size), r.e.cfg.MaxTextLength); v != "" {
			return v
		}
	}
	return ""
}

func (r *run) email() string {
	for _, i := range r.candidates(model.FieldClientEmail, -1) {
		if v, _, ok := FindEmail(r.window(i, r.e.cfg.Windows.Text)); ok {
			return v
		}
	}
	return ""
}

func (r *run) phone() string {
	for _, i := range r.candidates(model.FieldClientPhone, -1) {
		if v, _, ok := FindPhone(r.window(i, r.e.cfg.Windows.Text)); ok {
			return v
		}
	}
	return ""
}

func (r *run) policyNumber() string {
	for _, i := range r.candidates(model.FieldPolicyNumber, -1) {
		if v, _, ok := FindPolicyNumber(r.window(i, r.e.cfg.Windows.Text)); ok {
			return v
		}
	}
	return ""
}

// classify fills insurer and branch, preferring the labeled value mapped
// through the dictionary, then the raw labeled value, then a whole-text scan.
func (r *run) classify(rec *model.ExtractedPolicyRecord) {
	if raw := r.freeText(model.FieldInsurer, r.e.cfg.Windows.Text); raw != "" {
		if t, ok := r.e.dict.InferInsurer(raw); ok {
			rec.Policy.InsurerName, rec.Policy.InsurerCode = t.Name, t.Code
		} else {
			rec.Policy.InsurerName = raw
		}
	} else if t, ok := r.e.dict.InferInsurer(r.text); ok {
		rec.Policy.InsurerName, rec.Policy.InsurerCode = t.Name, t.Code
	}

	if raw := r.freeText(model.FieldBranch, r.e.cfg.Windows.Text); raw != "" {
		if t, ok := r.e.dict.InferBranch(raw); ok {
			rec.Policy.Branch, rec.Policy.BranchCode = t.Name, t.Code
			return
		}
	}
	if t, ok := r.e.dict.InferBranch(r.text); ok {
		rec.Policy.Branch, rec.Policy.BranchCode = t.Name, t.Code
	}
}

// date returns the first valid date after a field label and the original
// offset just past it.
func (r *run) date(field model.Field, consumed int) (string, int) {
	var firstRejected string
	for _, i := range r.candidates(field, consumed) {
		found, rejected := FindDates(r.window(i, r.e.cfg.Windows.Date), 1)
		if len(found) > 0 {
			return found[0].Value, r.anchors[i].End + found[0].End
		}
		if firstRejected == "" {
			firstRejected = rejected
		}
	}
	if firstRejected != "" {
		r.reject(field, firstRejected, "not a valid calendar date")
	}
	return "", -1
}

// period reads a "start a end" pair after a period label.
func (r *run) period() (string, string, bool) {
	for _, i := range r.candidates(model.FieldPeriod, -1) {
		found, _ := FindDates(r.window(i, r.e.cfg.Windows.Period), 2)
		if len(found) == 2 {
			return found[0].Value, found[1].Value, true
		}
	}
	return "", "", false
}

func (r *run) amount(field model.Field, consumed int) (decimal.Decimal, int, bool) {
	var firstRejected string
	for _, i := range r.candidates(field, consumed) {
		v, end, rejected, ok := FindAmount(r.window(i, r.e.cfg.Windows.Amount))
		if ok {
			return v, r.anchors[i].End + end, true
		}
		if firstRejected == "" {
			firstRejected = rejected
		}
	}
	if firstRejected != "" {
		r.reject(field, firstRejected, "not a valid non-negative amount")
	}
	return decimal.Decimal{}, -1, false
}
