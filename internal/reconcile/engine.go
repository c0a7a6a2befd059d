// Package reconcile resolves the client, insurer and branch of an extracted
// record against the existing catalog.
package reconcile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/agext/levenshtein"

	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/config"
	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/extract"
	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/model"
)

// Resolution is the outcome for one entity.
type Resolution string

const (
	// ResolutionMatched means an existing catalog entry was selected.
	ResolutionMatched Resolution = "matched"
	// ResolutionCreate means a new entry should be created at commit.
	ResolutionCreate Resolution = "create"
	// ResolutionAmbiguous means several entries matched equally well.
	ResolutionAmbiguous Resolution = "ambiguous"
	// ResolutionMissing means the record carries nothing to resolve with.
	ResolutionMissing Resolution = "missing"
)

// Basis records why an entity was matched.
type Basis string

const (
	BasisPin        Basis = "pin"
	BasisIdentifier Basis = "identifier"
	BasisName       Basis = "name"
	BasisCode       Basis = "code"
)

// Candidate is one catalog entry considered for a name match.
type Candidate struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Similarity float64 `json:"similarity"`
}

// EntityResolution is the resolution of one entity.
type EntityResolution struct {
	Resolution Resolution  `json:"resolution"`
	ID         string      `json:"id,omitempty"`
	Basis      Basis       `json:"basis,omitempty"`
	Similarity float64     `json:"similarity,omitempty"`
	Candidates []Candidate `json:"candidates,omitempty"`
}

// Pins are ids chosen by a reviewer. A pin is honored only when the id is
// present in the snapshot.
type Pins struct {
	ClientID  string `json:"client_id,omitempty"`
	InsurerID string `json:"insurer_id,omitempty"`
	BranchID  string `json:"branch_id,omitempty"`
}

// Result is the resolution of a whole record.
type Result struct {
	Client      EntityResolution `json:"client"`
	Insurer     EntityResolution `json:"insurer"`
	Branch      EntityResolution `json:"branch"`
	ClientKey   string           `json:"client_key,omitempty"`
	InsurerCode string           `json:"insurer_code,omitempty"`
	BranchCode  string           `json:"branch_code,omitempty"`
	IgnoredPins []string         `json:"ignored_pins,omitempty"`
}

// AmbiguousMatchError reports that a record's client, insurer or branch
// matched several catalog entries above the similarity threshold.
type AmbiguousMatchError struct {
	Entity     string
	Name       string
	Candidates []Candidate
}

func (e *AmbiguousMatchError) Error() string {
	ids := make([]string, len(e.Candidates))
	for i, c := range e.Candidates {
		ids[i] = c.ID
	}
	return fmt.Sprintf("reconcile: %s %q matches %d records (%s)", e.Entity, e.Name, len(e.Candidates), strings.Join(ids, ", "))
}

// Engine reconciles records. It performs no I/O.
type Engine struct {
	threshold float64
}

// DefaultThreshold is the minimum normalized-name similarity for a match.
const DefaultThreshold = 0.85

// NewEngine creates an Engine from cfg.
func NewEngine(cfg config.ReconcileConfig) *Engine {
	t := cfg.NameThreshold
	if t <= 0 || t > 1 {
		t = DefaultThreshold
	}
	return &Engine{threshold: t}
}

// Reconcile resolves rec against snap. The client is matched by identifier,
// then by name similarity, and otherwise marked for creation. Insurer and
// branch are matched by code, then by name similarity. The first ambiguous
// entity, in that order, is returned as an *AmbiguousMatchError along with
// the Result.
func (e *Engine) Reconcile(rec model.ExtractedPolicyRecord, snap Snapshot, pins Pins) (Result, error) {
	res := Result{
		ClientKey:   ClientKey(rec),
		InsurerCode: InsurerCode(rec),
		BranchCode:  BranchCode(rec),
	}

	res.Client = e.resolveClient(rec, snap, pins.ClientID, &res)
	res.Insurer = e.resolveCatalog(insurerEntries(snap.Insurers), res.InsurerCode, rec.Policy.InsurerName, pins.InsurerID, "insurer", &res)
	res.Branch = e.resolveCatalog(branchEntries(snap.Branches), res.BranchCode, rec.Policy.Branch, pins.BranchID, "branch", &res)

	switch {
	case res.Client.Resolution == ResolutionAmbiguous:
		return res, &AmbiguousMatchError{Entity: "client", Name: rec.Client.Name, Candidates: res.Client.Candidates}
	case res.Insurer.Resolution == ResolutionAmbiguous:
		return res, &AmbiguousMatchError{Entity: "insurer", Name: rec.Policy.InsurerName, Candidates: res.Insurer.Candidates}
	case res.Branch.Resolution == ResolutionAmbiguous:
		return res, &AmbiguousMatchError{Entity: "branch", Name: rec.Policy.Branch, Candidates: res.Branch.Candidates}
	}
	return res, nil
}

func (e *Engine) resolveClient(rec model.ExtractedPolicyRecord, snap Snapshot, pin string, res *Result) EntityResolution {
	if pin != "" {
		if _, ok := snap.Clients[pin]; ok {
			return EntityResolution{Resolution: ResolutionMatched, ID: pin, Basis: BasisPin, Similarity: 1}
		}
		res.IgnoredPins = append(res.IgnoredPins, "client:"+pin)
	}

	clients := sortedClients(snap.Clients)

	digits := ""
	if id, ok := extract.ParseIdentifier(rec.Client.DocumentID); ok {
		digits = id.Digits
		for _, c := range clients {
			if c.DocumentID == digits {
				return EntityResolution{Resolution: ResolutionMatched, ID: c.ID, Basis: BasisIdentifier, Similarity: 1}
			}
		}
	}

	name := NormalizeName(rec.Client.Name)
	if name != "" {
		var hits []Candidate
		for _, c := range clients {
			// A stored identifier that disagrees with the record's rules the
			// candidate out no matter how close the names are.
			if digits != "" && c.DocumentID != "" && c.DocumentID != digits {
				continue
			}
			sim := levenshtein.Similarity(name, NormalizeName(c.Name), nil)
			if sim >= e.threshold {
				hits = append(hits, Candidate{ID: c.ID, Name: c.Name, Similarity: sim})
			}
		}
		sort.SliceStable(hits, func(i, j int) bool { return hits[i].Similarity > hits[j].Similarity })

		switch len(hits) {
		case 0:
		case 1:
			return EntityResolution{Resolution: ResolutionMatched, ID: hits[0].ID, Basis: BasisName, Similarity: hits[0].Similarity}
		default:
			return EntityResolution{Resolution: ResolutionAmbiguous, Candidates: hits}
		}
	}

	if digits == "" && name == "" {
		return EntityResolution{Resolution: ResolutionMissing}
	}
	return EntityResolution{Resolution: ResolutionCreate}
}

// catalogEntry is an insurer or branch as seen by resolveCatalog.
type catalogEntry struct {
	id, code, name string
}

func insurerEntries(m map[string]model.Insurer) []catalogEntry {
	out := make([]catalogEntry, 0, len(m))
	for _, i := range m {
		out = append(out, catalogEntry{id: i.ID, code: i.Code, name: i.Name})
	}
	sort.Slice(out, func(a, b int) bool { return out[a].id < out[b].id })
	return out
}

func branchEntries(m map[string]model.Branch) []catalogEntry {
	out := make([]catalogEntry, 0, len(m))
	for _, b := range m {
		out = append(out, catalogEntry{id: b.ID, code: b.Code, name: b.Name})
	}
	sort.Slice(out, func(a, b int) bool { return out[a].id < out[b].id })
	return out
}

func (e *Engine) resolveCatalog(entries []catalogEntry, code, name, pin, kind string, res *Result) EntityResolution {
	if pin != "" {
		for _, c := range entries {
			if c.id == pin {
				return EntityResolution{Resolution: ResolutionMatched, ID: pin, Basis: BasisPin, Similarity: 1}
			}
		}
		res.IgnoredPins = append(res.IgnoredPins, kind+":"+pin)
	}
	if code == "" {
		return EntityResolution{Resolution: ResolutionMissing}
	}

	for _, c := range entries {
		if strings.EqualFold(c.code, code) {
			return EntityResolution{Resolution: ResolutionMatched, ID: c.id, Basis: BasisCode, Similarity: 1}
		}
	}

	if key := NormalizeName(name); key != "" {
		var hits []Candidate
		for _, c := range entries {
			sim := levenshtein.Similarity(key, NormalizeName(c.name), nil)
			if sim >= e.threshold {
				hits = append(hits, Candidate{ID: c.id, Name: c.name, Similarity: sim})
			}
		}
		sort.SliceStable(hits, func(i, j int) bool { return hits[i].Similarity > hits[j].Similarity })

		switch len(hits) {
		case 0:
		case 1:
			return EntityResolution{Resolution: ResolutionMatched, ID: hits[0].ID, Basis: BasisName, Similarity: hits[0].Similarity}
		default:
			return EntityResolution{Resolution: ResolutionAmbiguous, Candidates: hits}
		}
	}
	return EntityResolution{Resolution: ResolutionCreate}
}

func sortedClients(m map[string]model.Client) []model.Client {
	out := make([]model.Client, 0, len(m))
	for _, c := range m {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
