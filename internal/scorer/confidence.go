package scorer

import (
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/anchor"
	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/config"
	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/extract"
	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/model"
)

// Component names used in Evaluation.Components.
const (
	ComponentIdentity     = "client_identity"
	ComponentPolicyNumber = "policy_number"
	ComponentDates        = "date_pair"
	ComponentInsurer      = "insurer"
	ComponentBranch       = "branch"
	ComponentPremium      = "premium"
)

// Evaluation is a score together with the points earned per group.
type Evaluation struct {
	Score      model.ConfidenceScore `json:"score"`
	Components map[string]float64    `json:"components"`
}

// Scorer computes confidence scores. It is deterministic and safe for
// concurrent use.
type Scorer struct {
	cfg          config.ScoringConfig
	max          float64
	placeholders map[string]bool
}

// New creates a Scorer from cfg.
func New(cfg config.ScoringConfig) *Scorer {
	ph := make(map[string]bool, len(cfg.PlaceholderNames))
	for _, p := range cfg.PlaceholderNames {
		ph[foldName(p)] = true
	}
	return &Scorer{cfg: cfg, max: MaxPoints(cfg), placeholders: ph}
}

var defaultScorer = New(DefaultConfig())

// Score scores rec with the default allotment.
func Score(rec model.ExtractedPolicyRecord) model.ConfidenceScore {
	return defaultScorer.Score(rec)
}

// Score returns round(100 * earned / max), clamped to [0, 100], and its category.
func (s *Scorer) Score(rec model.ExtractedPolicyRecord) model.ConfidenceScore {
	return s.Evaluate(rec).Score
}

// Evaluate scores rec and reports the points earned by each group.
func (s *Scorer) Evaluate(rec model.ExtractedPolicyRecord) Evaluation {
	c := s.cfg
	comps := map[string]float64{
		ComponentIdentity:     0,
		ComponentPolicyNumber: 0,
		ComponentDates:        0,
		ComponentInsurer:      0,
		ComponentBranch:       0,
		ComponentPremium:      0,
	}

	switch {
	case rec.Client.MatchedID != "":
		comps[ComponentIdentity] = c.IdentityMatchedWeight
	case validIdentifier(rec.Client.DocumentID):
		comps[ComponentIdentity] = c.IdentityIdentifierWeight
	case s.realName(rec.Client.Name):
		comps[ComponentIdentity] = c.IdentityNameWeight
	}

	if validPolicyNumber(rec.Policy.Number) {
		comps[ComponentPolicyNumber] = c.PolicyNumberWeight
	}

	start, startOK := parseISO(rec.Policy.StartDate)
	end, endOK := parseISO(rec.Policy.EndDate)
	switch {
	case startOK && endOK && !end.Before(start):
		comps[ComponentDates] = c.DatePairWeight
	case startOK || endOK:
		comps[ComponentDates] = c.DateSingleWeight
	}

	if strings.TrimSpace(rec.Policy.InsurerName) != "" || rec.Policy.InsurerCode != "" {
		comps[ComponentInsurer] = c.InsurerWeight
	}
	if strings.TrimSpace(rec.Policy.Branch) != "" || rec.Policy.BranchCode != "" {
		comps[ComponentBranch] = c.BranchWeight
	}

	switch {
	case rec.Values.TotalPremium.Valid && !rec.Values.TotalPremium.Decimal.IsNegative():
		comps[ComponentPremium] = c.TotalPremiumWeight
	case rec.Values.NetPremium.Valid && !rec.Values.NetPremium.Decimal.IsNegative():
		comps[ComponentPremium] = c.NetPremiumWeight
	}

	var earned float64
	for _, v := range comps {
		earned += v
	}

	value := 0
	if s.max > 0 {
		value = int(math.Round(100 * earned / s.max))
	}
	value = min(max(value, 0), 100)

	return Evaluation{
		Score:      model.ConfidenceScore{Value: value, Category: model.CategoryFor(value)},
		Components: comps,
	}
}

func validIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	_, ok := extract.ParseIdentifier(s)
	return ok
}

func validPolicyNumber(s string) bool {
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			n++
		}
	}
	return n >= 4
}

// realName rejects empty names, names with fewer than two letters and
// configured placeholders such as "Não informado".
func (s *Scorer) realName(name string) bool {
	letters := 0
	for _, r := range name {
		if unicode.IsLetter(r) {
			letters++
		}
	}
	if letters < 2 {
		return false
	}
	return !s.placeholders[foldName(name)]
}

func foldName(s string) string {
	var sb strings.Builder
	space := false
	for _, r := range strings.TrimSpace(s) {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space && sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		space = false
		sb.WriteRune(anchor.FoldRune(r))
	}
	return sb.String()
}

func parseISO(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(extract.ISODate, s)
	return t, err == nil
}
