package reconcile

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/extract"
	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/model"
)

// Lookup is the read side of the persistence collaborator. Finders return
// nil without error when nothing matches.
type Lookup interface {
	GetClient(ctx context.Context, id string) (*model.Client, error)
	GetInsurer(ctx context.Context, id string) (*model.Insurer, error)
	GetBranch(ctx context.Context, id string) (*model.Branch, error)
	FindClientByIdentifier(ctx context.Context, documentID string) (*model.Client, error)
	FindClientsByName(ctx context.Context, name string, limit int) ([]model.Client, error)
	FindInsurerByCode(ctx context.Context, code string) (*model.Insurer, error)
	FindBranchByCode(ctx context.Context, code string) (*model.Branch, error)
	ListInsurers(ctx context.Context) ([]model.Insurer, error)
	ListBranches(ctx context.Context) ([]model.Branch, error)
}

// Snapshot is the slice of the catalog relevant to one record, keyed by id.
// Reconcile only ever returns ids present here.
type Snapshot struct {
	Clients  map[string]model.Client
	Insurers map[string]model.Insurer
	Branches map[string]model.Branch
}

// NewSnapshot returns an empty snapshot.
func NewSnapshot() Snapshot {
	return Snapshot{
		Clients:  make(map[string]model.Client),
		Insurers: make(map[string]model.Insurer),
		Branches: make(map[string]model.Branch),
	}
}

// AddClient adds c to the snapshot.
func (s Snapshot) AddClient(c model.Client) { s.Clients[c.ID] = c }

// AddInsurer adds i to the snapshot.
func (s Snapshot) AddInsurer(i model.Insurer) { s.Insurers[i.ID] = i }

// AddBranch adds b to the snapshot.
func (s Snapshot) AddBranch(b model.Branch) { s.Branches[b.ID] = b }

// BuildSnapshot gathers the catalog entries rec and pins could resolve to.
// nameLimit caps the name-similarity candidates fetched.
func BuildSnapshot(ctx context.Context, l Lookup, rec model.ExtractedPolicyRecord, pins Pins, nameLimit int) (Snapshot, error) {
	snap := NewSnapshot()

	if pins.ClientID != "" {
		c, err := l.GetClient(ctx, pins.ClientID)
		if err != nil {
			return snap, eris.Wrap(err, "reconcile: load pinned client")
		}
		if c != nil {
			snap.AddClient(*c)
		}
	}
	if pins.InsurerID != "" {
		i, err := l.GetInsurer(ctx, pins.InsurerID)
		if err != nil {
			return snap, eris.Wrap(err, "reconcile: load pinned insurer")
		}
		if i != nil {
			snap.AddInsurer(*i)
		}
	}
	if pins.BranchID != "" {
		b, err := l.GetBranch(ctx, pins.BranchID)
		if err != nil {
			return snap, eris.Wrap(err, "reconcile: load pinned branch")
		}
		if b != nil {
			snap.AddBranch(*b)
		}
	}

	if id, ok := extract.ParseIdentifier(rec.Client.DocumentID); ok {
		c, err := l.FindClientByIdentifier(ctx, id.Digits)
		if err != nil {
			return snap, eris.Wrap(err, "reconcile: find client by identifier")
		}
		if c != nil {
			snap.AddClient(*c)
		}
	}

	if name := NormalizeName(rec.Client.Name); name != "" {
		cs, err := l.FindClientsByName(ctx, name, nameLimit)
		if err != nil {
			return snap, eris.Wrap(err, "reconcile: find clients by name")
		}
		for _, c := range cs {
			snap.AddClient(c)
		}
	}

	// Without an exact code hit the whole catalog is loaded so the engine
	// can fall back to name similarity.
	if code := InsurerCode(rec); code != "" {
		i, err := l.FindInsurerByCode(ctx, code)
		if err != nil {
			return snap, eris.Wrap(err, "reconcile: find insurer")
		}
		if i != nil {
			snap.AddInsurer(*i)
		} else if NormalizeName(rec.Policy.InsurerName) != "" {
			all, err := l.ListInsurers(ctx)
			if err != nil {
				return snap, eris.Wrap(err, "reconcile: list insurers")
			}
			for _, i := range all {
				snap.AddInsurer(i)
			}
		}
	}

	if code := BranchCode(rec); code != "" {
		b, err := l.FindBranchByCode(ctx, code)
		if err != nil {
			return snap, eris.Wrap(err, "reconcile: find branch")
		}
		if b != nil {
			snap.AddBranch(*b)
		} else if NormalizeName(rec.Policy.Branch) != "" {
			all, err := l.ListBranches(ctx)
			if err != nil {
				return snap, eris.Wrap(err, "reconcile: list branches")
			}
			for _, b := range all {
				snap.AddBranch(b)
			}
		}
	}

	return snap, nil
}
