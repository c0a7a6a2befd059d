// Package store persists the brokerage catalog (clients, insurers, branches)
// and committed policies.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/config"
	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/model"
)

// ErrConflict marks a write rejected by a uniqueness constraint.
var ErrConflict = eris.New("store: unique constraint violated")

// Store defines the persistence interface for the import pipeline.
// Lookups return nil without error when nothing matches.
type Store interface {
	// Catalog lookups
	GetClient(ctx context.Context, id string) (*model.Client, error)
	GetInsurer(ctx context.Context, id string) (*model.Insurer, error)
	GetBranch(ctx context.Context, id string) (*model.Branch, error)
	FindClientByIdentifier(ctx context.Context, documentID string) (*model.Client, error)
	FindClientsByName(ctx context.Context, name string, limit int) ([]model.Client, error)
	FindInsurerByCode(ctx context.Context, code string) (*model.Insurer, error)
	FindBranchByCode(ctx context.Context, code string) (*model.Branch, error)
	ListInsurers(ctx context.Context) ([]model.Insurer, error)
	ListBranches(ctx context.Context) ([]model.Branch, error)

	// Catalog writes. An empty ID is assigned a new UUID.
	CreateClient(ctx context.Context, c *model.Client) error
	CreateInsurer(ctx context.Context, i *model.Insurer) error
	CreateBranch(ctx context.Context, b *model.Branch) error
	SeedCatalog(ctx context.Context, insurers []model.Insurer, branches []model.Branch) (int, error)

	// Policies are written with their items atomically.
	CreatePolicy(ctx context.Context, p *model.Policy, items []model.PolicyItem) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// New opens the store selected by cfg.Driver.
func New(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "sqlite", "":
		s, err := NewSQLite(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres":
		s, err := NewPostgres(ctx, cfg.DatabaseURL, &PoolConfig{MaxConns: cfg.MaxConns, MinConns: cfg.MinConns})
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}
