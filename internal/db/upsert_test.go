package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBulkUpsert_EmptyRows(t *testing.T) {
	n, err := BulkUpsert(context.TODO(), nil, UpsertConfig{
		Table:        "insurers",
		Columns:      []string{"id", "code", "name"},
		ConflictKeys: []string{"code"},
	}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsert_NoColumns(t *testing.T) {
	_, err := BulkUpsert(context.TODO(), nil, UpsertConfig{
		Table:        "insurers",
		ConflictKeys: []string{"code"},
	}, [][]any{{"1", "porto"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")
}

func TestBulkUpsert_NoConflictKeys(t *testing.T) {
	_, err := BulkUpsert(context.TODO(), nil, UpsertConfig{
		Table:   "insurers",
		Columns: []string{"id", "code"},
	}, [][]any{{"1", "porto"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys specified")
}

func TestBulkUpsert_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cols := []string{"id", "code", "name"}
	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_insurers"`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_insurers"}, cols).WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "insurers"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	n, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "insurers",
		Columns:      cols,
		ConflictKeys: []string{"code"},
		DoNothing:    true,
	}, [][]any{{"a", "porto", "Porto Seguro"}, {"b", "azul", "Azul Seguros"}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_CopyErrorRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cols := []string{"id", "code"}
	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_branches"}, cols).WillReturnError(fmt.Errorf("disk full"))
	mock.ExpectRollback()

	_, err = BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "branches",
		Columns:      cols,
		ConflictKeys: []string{"code"},
	}, [][]any{{"a", "auto"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stage rows for branches")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertSQL(t *testing.T) {
	cfg := UpsertConfig{Table: "insurers", Columns: []string{"id", "code", "name"}, ConflictKeys: []string{"code"}}

	got := upsertSQL(cfg, "_tmp_upsert_insurers", []string{"name"})
	assert.Equal(t, `INSERT INTO "insurers" ("id", "code", "name") SELECT "id", "code", "name" FROM "_tmp_upsert_insurers" ON CONFLICT ("code") DO UPDATE SET "name" = EXCLUDED."name"`, got)

	cfg.DoNothing = true
	got = upsertSQL(cfg, "_tmp_upsert_insurers", nil)
	assert.Contains(t, got, `ON CONFLICT ("code") DO NOTHING`)
}

func TestIdentifier(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"simple", `"simple"`},
		{"catalog.insurers", `"catalog"."insurers"`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, identifier(tt.input).Sanitize())
		})
	}
}

func TestQuoteAndJoin(t *testing.T) {
	assert.Equal(t, `"id", "code", "name"`, quoteAndJoin([]string{"id", "code", "name"}))
}
