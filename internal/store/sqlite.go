package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/model"
	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/reconcile"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS clients (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	name_key    TEXT NOT NULL,
	document_id TEXT UNIQUE,
	email       TEXT NOT NULL DEFAULT '',
	phone       TEXT NOT NULL DEFAULT '',
	address     TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS insurers (
	id         TEXT PRIMARY KEY,
	code       TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS branches (
	id         TEXT PRIMARY KEY,
	code       TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS policies (
	id            TEXT PRIMARY KEY,
	client_id     TEXT NOT NULL REFERENCES clients(id),
	insurer_id    TEXT NOT NULL REFERENCES insurers(id),
	branch_id     TEXT NOT NULL REFERENCES branches(id),
	number        TEXT NOT NULL DEFAULT '',
	document_type TEXT NOT NULL DEFAULT '',
	start_date    TEXT,
	end_date      TEXT,
	net_premium   TEXT,
	total_premium TEXT,
	confidence    INTEGER NOT NULL DEFAULT 0,
	source_name   TEXT NOT NULL DEFAULT '',
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS policy_items (
	policy_id   TEXT NOT NULL REFERENCES policies(id),
	position    INTEGER NOT NULL,
	description TEXT NOT NULL,
	amount      TEXT,
	PRIMARY KEY (policy_id, position)
);

CREATE INDEX IF NOT EXISTS idx_clients_name_key ON clients(name_key);
CREATE UNIQUE INDEX IF NOT EXISTS idx_policies_insurer_number ON policies(insurer_id, number) WHERE number <> '';
CREATE INDEX IF NOT EXISTS idx_policies_client_id ON policies(client_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteClientColumns = `id, name, COALESCE(document_id, ''), email, phone, address, created_at`

func (s *SQLiteStore) GetClient(ctx context.Context, id string) (*model.Client, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteClientColumns+` FROM clients WHERE id = ?`, id)
	return scanClient(row, "sqlite: get client")
}

func (s *SQLiteStore) FindClientByIdentifier(ctx context.Context, documentID string) (*model.Client, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteClientColumns+` FROM clients WHERE document_id = ?`, documentID)
	return scanClient(row, "sqlite: find client by identifier")
}

// FindClientsByName returns clients sharing a significant token with name
// (already normalized). Exact key matches sort first.
func (s *SQLiteStore) FindClientsByName(ctx context.Context, name string, limit int) ([]model.Client, error) {
	tokens := nameTokens(name)
	if len(tokens) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = defaultNameLimit
	}

	conds := make([]string, 0, len(tokens))
	args := make([]any, 0, len(tokens)+2)
	for _, tok := range tokens {
		conds = append(conds, `name_key LIKE ?`)
		args = append(args, "%"+tok+"%")
	}
	args = append(args, name, limit)

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteClientColumns+` FROM clients WHERE `+strings.Join(conds, " OR ")+
			` ORDER BY (name_key = ?) DESC, id LIMIT ?`,
		args...,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find clients by name")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Client
	for rows.Next() {
		c, err := scanClient(rows, "sqlite: scan client")
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate clients")
}

func (s *SQLiteStore) GetInsurer(ctx context.Context, id string) (*model.Insurer, error) {
	var i model.Insurer
	err := s.db.QueryRowContext(ctx,
		`SELECT id, code, name, created_at FROM insurers WHERE id = ?`, id,
	).Scan(&i.ID, &i.Code, &i.Name, &i.CreatedAt)
	if found, err := sqliteFound(err, "sqlite: get insurer"); !found {
		return nil, err
	}
	return &i, nil
}

func (s *SQLiteStore) FindInsurerByCode(ctx context.Context, code string) (*model.Insurer, error) {
	var i model.Insurer
	err := s.db.QueryRowContext(ctx,
		`SELECT id, code, name, created_at FROM insurers WHERE code = ?`, code,
	).Scan(&i.ID, &i.Code, &i.Name, &i.CreatedAt)
	if found, err := sqliteFound(err, "sqlite: find insurer"); !found {
		return nil, err
	}
	return &i, nil
}

func (s *SQLiteStore) GetBranch(ctx context.Context, id string) (*model.Branch, error) {
	var b model.Branch
	err := s.db.QueryRowContext(ctx,
		`SELECT id, code, name, created_at FROM branches WHERE id = ?`, id,
	).Scan(&b.ID, &b.Code, &b.Name, &b.CreatedAt)
	if found, err := sqliteFound(err, "sqlite: get branch"); !found {
		return nil, err
	}
	return &b, nil
}

func (s *SQLiteStore) FindBranchByCode(ctx context.Context, code string) (*model.Branch, error) {
	var b model.Branch
	err := s.db.QueryRowContext(ctx,
		`SELECT id, code, name, created_at FROM branches WHERE code = ?`, code,
	).Scan(&b.ID, &b.Code, &b.Name, &b.CreatedAt)
	if found, err := sqliteFound(err, "sqlite: find branch"); !found {
		return nil, err
	}
	return &b, nil
}

// ListInsurers returns the whole insurer catalog ordered by id.
func (s *SQLiteStore) ListInsurers(ctx context.Context) ([]model.Insurer, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, code, name, created_at FROM insurers ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list insurers")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Insurer
	for rows.Next() {
		var i model.Insurer
		if err := rows.Scan(&i.ID, &i.Code, &i.Name, &i.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan insurer")
		}
		out = append(out, i)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate insurers")
}

// ListBranches returns the whole branch catalog ordered by id.
func (s *SQLiteStore) ListBranches(ctx context.Context) ([]model.Branch, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, code, name, created_at FROM branches ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list branches")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Branch
	for rows.Next() {
		var b model.Branch
		if err := rows.Scan(&b.ID, &b.Code, &b.Name, &b.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan branch")
		}
		out = append(out, b)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate branches")
}

func (s *SQLiteStore) CreateClient(ctx context.Context, c *model.Client) error {
	assignID(&c.ID, &c.CreatedAt)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO clients (id, name, name_key, document_id, email, phone, address, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, reconcile.NormalizeName(c.Name), nullString(c.DocumentID), c.Email, c.Phone, c.Address, c.CreatedAt,
	)
	return wrapWrite(err, "sqlite: insert client")
}

func (s *SQLiteStore) CreateInsurer(ctx context.Context, i *model.Insurer) error {
	assignID(&i.ID, &i.CreatedAt)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO insurers (id, code, name, created_at) VALUES (?, ?, ?, ?)`,
		i.ID, i.Code, i.Name, i.CreatedAt,
	)
	return wrapWrite(err, "sqlite: insert insurer")
}

func (s *SQLiteStore) CreateBranch(ctx context.Context, b *model.Branch) error {
	assignID(&b.ID, &b.CreatedAt)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO branches (id, code, name, created_at) VALUES (?, ?, ?, ?)`,
		b.ID, b.Code, b.Name, b.CreatedAt,
	)
	return wrapWrite(err, "sqlite: insert branch")
}

// SeedCatalog inserts insurers and branches whose code is not present yet.
func (s *SQLiteStore) SeedCatalog(ctx context.Context, insurers []model.Insurer, branches []model.Branch) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: seed: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	var n int64
	for _, i := range insurers {
		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO insurers (id, code, name, created_at) VALUES (?, ?, ?, ?)`,
			uuid.New().String(), i.Code, i.Name, now,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: seed insurer %s", i.Code)
		}
		affected, _ := res.RowsAffected()
		n += affected
	}
	for _, b := range branches {
		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO branches (id, code, name, created_at) VALUES (?, ?, ?, ?)`,
			uuid.New().String(), b.Code, b.Name, now,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: seed branch %s", b.Code)
		}
		affected, _ := res.RowsAffected()
		n += affected
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: seed: commit")
	}
	return int(n), nil
}

func (s *SQLiteStore) CreatePolicy(ctx context.Context, p *model.Policy, items []model.PolicyItem) error {
	assignID(&p.ID, &p.CreatedAt)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: create policy: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO policies (id, client_id, insurer_id, branch_id, number, document_type, start_date, end_date,
			net_premium, total_premium, confidence, source_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.ClientID, p.InsurerID, p.BranchID, p.Number, string(p.DocumentType),
		nullString(p.StartDate), nullString(p.EndDate), p.NetPremium, p.TotalPremium,
		p.Confidence, p.SourceName, p.CreatedAt,
	)
	if err != nil {
		return wrapWrite(err, "sqlite: insert policy")
	}

	for i, item := range items {
		item.Position = i
		_, err := tx.ExecContext(ctx,
			`INSERT INTO policy_items (policy_id, position, description, amount) VALUES (?, ?, ?, ?)`,
			p.ID, item.Position, item.Description, item.Amount,
		)
		if err != nil {
			return wrapWrite(err, "sqlite: insert policy item")
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: create policy: commit")
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanClient(row scannable, msg string) (*model.Client, error) {
	var c model.Client
	err := row.Scan(&c.ID, &c.Name, &c.DocumentID, &c.Email, &c.Phone, &c.Address, &c.CreatedAt)
	if found, err := sqliteFound(err, msg); !found {
		return nil, err
	}
	return &c, nil
}

// sqliteFound folds sql.ErrNoRows into a nil result.
func sqliteFound(err error, msg string) (bool, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrap(err, msg)
	}
	return true, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
