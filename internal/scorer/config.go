// Package scorer estimates how complete and trustworthy an extracted policy
// record is.
package scorer

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/config"
)

// DefaultConfig returns the default point allotment. The maximum total is 100.
func DefaultConfig() config.ScoringConfig {
	return config.ScoringConfig{
		IdentityMatchedWeight:    30,
		IdentityIdentifierWeight: 20,
		IdentityNameWeight:       10,
		PolicyNumberWeight:       15,
		DatePairWeight:           20,
		DateSingleWeight:         10,
		InsurerWeight:            15,
		BranchWeight:             10,
		TotalPremiumWeight:       10,
		NetPremiumWeight:         5,
		PlaceholderNames: []string{
			"nao informado", "nao consta", "segurado", "cliente", "nome", "n/a", "xxx",
		},
	}
}

// MaxPoints returns the points a perfect record earns: the top tier of every
// group.
func MaxPoints(c config.ScoringConfig) float64 {
	return max(c.IdentityMatchedWeight, c.IdentityIdentifierWeight, c.IdentityNameWeight) +
		c.PolicyNumberWeight +
		max(c.DatePairWeight, c.DateSingleWeight) +
		c.InsurerWeight +
		c.BranchWeight +
		max(c.TotalPremiumWeight, c.NetPremiumWeight)
}

// ValidateConfig checks that a ScoringConfig is internally consistent.
func ValidateConfig(c config.ScoringConfig) error {
	var errs []string

	weights := map[string]float64{
		"identity_matched_weight":    c.IdentityMatchedWeight,
		"identity_identifier_weight": c.IdentityIdentifierWeight,
		"identity_name_weight":       c.IdentityNameWeight,
		"policy_number_weight":       c.PolicyNumberWeight,
		"date_pair_weight":           c.DatePairWeight,
		"date_single_weight":         c.DateSingleWeight,
		"insurer_weight":             c.InsurerWeight,
		"branch_weight":              c.BranchWeight,
		"total_premium_weight":       c.TotalPremiumWeight,
		"net_premium_weight":         c.NetPremiumWeight,
	}
	for name, w := range weights {
		if w < 0 {
			errs = append(errs, fmt.Sprintf("%s must be >= 0", name))
		}
	}

	if MaxPoints(c) <= 0 {
		errs = append(errs, "weight sum must be > 0")
	}

	// Tiers must be ordered: a resolved match outranks an identifier, which
	// outranks a name.
	if c.IdentityMatchedWeight < c.IdentityIdentifierWeight || c.IdentityIdentifierWeight < c.IdentityNameWeight {
		errs = append(errs, "identity tiers must satisfy matched >= identifier >= name")
	}
	if c.DatePairWeight < c.DateSingleWeight {
		errs = append(errs, "date_pair_weight must be >= date_single_weight")
	}
	if c.TotalPremiumWeight < c.NetPremiumWeight {
		errs = append(errs, "total_premium_weight must be >= net_premium_weight")
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
