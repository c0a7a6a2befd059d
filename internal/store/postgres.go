package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/db"
	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/model"
	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/reconcile"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const (
	pgClientColumns = `id, name, COALESCE(document_id, ''), email, phone, address, created_at`

	pgGetClient        = `SELECT ` + pgClientColumns + ` FROM clients WHERE id = $1`
	pgClientByDocument = `SELECT ` + pgClientColumns + ` FROM clients WHERE document_id = $1`
	pgClientsByName    = `SELECT ` + pgClientColumns + ` FROM clients WHERE name_key = $1 OR name_key % $1 ORDER BY similarity(name_key, $1) DESC, id LIMIT $2`
	pgInsurerByCode    = `SELECT id, code, name, created_at FROM insurers WHERE code = $1`
	pgBranchByCode     = `SELECT id, code, name, created_at FROM branches WHERE code = $1`
	pgListInsurers     = `SELECT id, code, name, created_at FROM insurers ORDER BY id`
	pgListBranches     = `SELECT id, code, name, created_at FROM branches ORDER BY id`
)

// preparedStatements lists the reconciliation lookups prepared on each new connection.
var preparedStatements = map[string]string{
	"get_client":         pgGetClient,
	"client_by_document": pgClientByDocument,
	"clients_by_name":    pgClientsByName,
	"insurer_by_code":    pgInsurerByCode,
	"branch_by_code":     pgBranchByCode,
	"list_insurers":      pgListInsurers,
	"list_branches":      pgListBranches,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE EXTENSION IF NOT EXISTS pg_trgm;

CREATE TABLE IF NOT EXISTS clients (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name        TEXT NOT NULL,
	name_key    TEXT NOT NULL,
	document_id TEXT UNIQUE,
	email       TEXT NOT NULL DEFAULT '',
	phone       TEXT NOT NULL DEFAULT '',
	address     TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_clients_name_key_trgm ON clients USING gin (name_key gin_trgm_ops);

CREATE TABLE IF NOT EXISTS insurers (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	code       TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS branches (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	code       TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS policies (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	client_id     TEXT NOT NULL REFERENCES clients(id),
	insurer_id    TEXT NOT NULL REFERENCES insurers(id),
	branch_id     TEXT NOT NULL REFERENCES branches(id),
	number        TEXT NOT NULL DEFAULT '',
	document_type TEXT NOT NULL DEFAULT '',
	start_date    DATE,
	end_date      DATE,
	net_premium   NUMERIC(14,2),
	total_premium NUMERIC(14,2),
	confidence    INTEGER NOT NULL DEFAULT 0,
	source_name   TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_policies_insurer_number ON policies(insurer_id, number) WHERE number <> '';
CREATE INDEX IF NOT EXISTS idx_policies_client_id ON policies(client_id);

CREATE TABLE IF NOT EXISTS policy_items (
	policy_id   TEXT NOT NULL REFERENCES policies(id) ON DELETE CASCADE,
	position    INTEGER NOT NULL,
	description TEXT NOT NULL,
	amount      NUMERIC(14,2),
	PRIMARY KEY (policy_id, position)
);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) GetClient(ctx context.Context, id string) (*model.Client, error) {
	return pgClient(s.pool.QueryRow(ctx, pgGetClient, id), "postgres: get client "+id)
}

func (s *PostgresStore) FindClientByIdentifier(ctx context.Context, documentID string) (*model.Client, error) {
	return pgClient(s.pool.QueryRow(ctx, pgClientByDocument, documentID), "postgres: find client by identifier")
}

// FindClientsByName ranks clients by trigram similarity of their normalized
// name key against name.
func (s *PostgresStore) FindClientsByName(ctx context.Context, name string, limit int) ([]model.Client, error) {
	if name == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = defaultNameLimit
	}

	rows, err := s.pool.Query(ctx, pgClientsByName, name, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find clients by name")
	}
	defer rows.Close()

	var out []model.Client
	for rows.Next() {
		var c model.Client
		if err := rows.Scan(&c.ID, &c.Name, &c.DocumentID, &c.Email, &c.Phone, &c.Address, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan client")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate clients")
}

func (s *PostgresStore) GetInsurer(ctx context.Context, id string) (*model.Insurer, error) {
	var i model.Insurer
	err := s.pool.QueryRow(ctx,
		`SELECT id, code, name, created_at FROM insurers WHERE id = $1`, id,
	).Scan(&i.ID, &i.Code, &i.Name, &i.CreatedAt)
	if found, err := pgFound(err, "postgres: get insurer "+id); !found {
		return nil, err
	}
	return &i, nil
}

func (s *PostgresStore) FindInsurerByCode(ctx context.Context, code string) (*model.Insurer, error) {
	var i model.Insurer
	err := s.pool.QueryRow(ctx, pgInsurerByCode, code).Scan(&i.ID, &i.Code, &i.Name, &i.CreatedAt)
	if found, err := pgFound(err, "postgres: find insurer "+code); !found {
		return nil, err
	}
	return &i, nil
}

func (s *PostgresStore) GetBranch(ctx context.Context, id string) (*model.Branch, error) {
	var b model.Branch
	err := s.pool.QueryRow(ctx,
		`SELECT id, code, name, created_at FROM branches WHERE id = $1`, id,
	).Scan(&b.ID, &b.Code, &b.Name, &b.CreatedAt)
	if found, err := pgFound(err, "postgres: get branch "+id); !found {
		return nil, err
	}
	return &b, nil
}

func (s *PostgresStore) FindBranchByCode(ctx context.Context, code string) (*model.Branch, error) {
	var b model.Branch
	err := s.pool.QueryRow(ctx, pgBranchByCode, code).Scan(&b.ID, &b.Code, &b.Name, &b.CreatedAt)
	if found, err := pgFound(err, "postgres: find branch "+code); !found {
		return nil, err
	}
	return &b, nil
}

// ListInsurers returns the whole insurer catalog ordered by id.
func (s *PostgresStore) ListInsurers(ctx context.Context) ([]model.Insurer, error) {
	rows, err := s.pool.Query(ctx, pgListInsurers)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list insurers")
	}
	defer rows.Close()

	var out []model.Insurer
	for rows.Next() {
		var i model.Insurer
		if err := rows.Scan(&i.ID, &i.Code, &i.Name, &i.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan insurer")
		}
		out = append(out, i)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate insurers")
}

// ListBranches returns the whole branch catalog ordered by id.
func (s *PostgresStore) ListBranches(ctx context.Context) ([]model.Branch, error) {
	rows, err := s.pool.Query(ctx, pgListBranches)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list branches")
	}
	defer rows.Close()

	var out []model.Branch
	for rows.Next() {
		var b model.Branch
		if err := rows.Scan(&b.ID, &b.Code, &b.Name, &b.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan branch")
		}
		out = append(out, b)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate branches")
}

func (s *PostgresStore) CreateClient(ctx context.Context, c *model.Client) error {
	assignID(&c.ID, &c.CreatedAt)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO clients (id, name, name_key, document_id, email, phone, address, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, c.Name, reconcile.NormalizeName(c.Name), textArg(c.DocumentID), c.Email, c.Phone, c.Address, c.CreatedAt,
	)
	return wrapWrite(err, "postgres: insert client")
}

func (s *PostgresStore) CreateInsurer(ctx context.Context, i *model.Insurer) error {
	assignID(&i.ID, &i.CreatedAt)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO insurers (id, code, name, created_at) VALUES ($1, $2, $3, $4)`,
		i.ID, i.Code, i.Name, i.CreatedAt,
	)
	return wrapWrite(err, "postgres: insert insurer")
}

func (s *PostgresStore) CreateBranch(ctx context.Context, b *model.Branch) error {
	assignID(&b.ID, &b.CreatedAt)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO branches (id, code, name, created_at) VALUES ($1, $2, $3, $4)`,
		b.ID, b.Code, b.Name, b.CreatedAt,
	)
	return wrapWrite(err, "postgres: insert branch")
}

var catalogColumns = []string{"id", "code", "name", "created_at"}

// SeedCatalog bulk-inserts insurers and branches, leaving existing codes untouched.
func (s *PostgresStore) SeedCatalog(ctx context.Context, insurers []model.Insurer, branches []model.Branch) (int, error) {
	insurerRows := make([][]any, 0, len(insurers))
	for _, i := range insurers {
		id, created := i.ID, i.CreatedAt
		assignID(&id, &created)
		insurerRows = append(insurerRows, []any{id, i.Code, i.Name, created})
	}
	n1, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "insurers",
		Columns:      catalogColumns,
		ConflictKeys: []string{"code"},
		DoNothing:    true,
	}, insurerRows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: seed insurers")
	}

	branchRows := make([][]any, 0, len(branches))
	for _, b := range branches {
		id, created := b.ID, b.CreatedAt
		assignID(&id, &created)
		branchRows = append(branchRows, []any{id, b.Code, b.Name, created})
	}
	n2, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "branches",
		Columns:      catalogColumns,
		ConflictKeys: []string{"code"},
		DoNothing:    true,
	}, branchRows)
	if err != nil {
		return int(n1), eris.Wrap(err, "postgres: seed branches")
	}

	return int(n1 + n2), nil
}

var policyItemColumns = []string{"policy_id", "position", "description", "amount"}

// CreatePolicy inserts the policy and COPYs its items in one transaction.
func (s *PostgresStore) CreatePolicy(ctx context.Context, p *model.Policy, items []model.PolicyItem) error {
	assignID(&p.ID, &p.CreatedAt)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: create policy: begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO policies (id, client_id, insurer_id, branch_id, number, document_type, start_date, end_date,
			net_premium, total_premium, confidence, source_name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		p.ID, p.ClientID, p.InsurerID, p.BranchID, p.Number, string(p.DocumentType),
		dateArg(p.StartDate), dateArg(p.EndDate), numericArg(p.NetPremium), numericArg(p.TotalPremium),
		p.Confidence, p.SourceName, p.CreatedAt,
	)
	if err != nil {
		return wrapWrite(err, "postgres: insert policy")
	}

	rows := make([][]any, len(items))
	for i, item := range items {
		rows[i] = []any{p.ID, int32(i), item.Description, numericArg(item.Amount)}
	}
	if _, err := db.CopyFrom(ctx, tx, "policy_items", policyItemColumns, rows); err != nil {
		return wrapWrite(err, "postgres: copy policy items")
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: create policy: commit")
}

// helpers

func pgClient(row pgx.Row, msg string) (*model.Client, error) {
	var c model.Client
	err := row.Scan(&c.ID, &c.Name, &c.DocumentID, &c.Email, &c.Phone, &c.Address, &c.CreatedAt)
	if found, err := pgFound(err, msg); !found {
		return nil, err
	}
	return &c, nil
}

// pgFound folds pgx.ErrNoRows into a nil result.
func pgFound(err error, msg string) (bool, error) {
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrap(err, msg)
	}
	return true, nil
}

func textArg(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

func dateArg(s string) pgtype.Date {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: t, Valid: true}
}

func numericArg(d decimal.NullDecimal) pgtype.Numeric {
	if !d.Valid {
		return pgtype.Numeric{}
	}
	return pgtype.Numeric{Int: d.Decimal.Coefficient(), Exp: d.Decimal.Exponent(), Valid: true}
}
