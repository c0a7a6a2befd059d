package model

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentType_Valid(t *testing.T) {
	for _, dt := range []DocumentType{DocumentPolicy, DocumentProposal, DocumentBudget, DocumentEndorsement, DocumentCard} {
		assert.True(t, dt.Valid(), dt)
	}
	assert.False(t, DocumentUnknown.Valid())
	assert.False(t, DocumentType("invoice").Valid())
}

func TestExtractedPolicyRecord_Empty(t *testing.T) {
	var rec ExtractedPolicyRecord
	assert.True(t, rec.Empty())

	rec.DocumentType = DocumentPolicy
	assert.True(t, rec.Empty(), "a document type alone is not a field")

	rec.Values.TotalPremium = decimal.NewNullDecimal(decimal.NewFromInt(850))
	assert.False(t, rec.Empty())

	rec = ExtractedPolicyRecord{}
	rec.Policy.BranchCode = "auto"
	assert.False(t, rec.Empty())
}

func TestExtractedPolicyRecord_JSONOmitsAbsentLeaves(t *testing.T) {
	var rec ExtractedPolicyRecord
	rec.Client.Name = "Ana Lima"

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"name":"Ana Lima"`)
	assert.NotContains(t, string(data), "document_id")
	assert.NotContains(t, string(data), "start_date")
}

func TestCategoryFor(t *testing.T) {
	tests := []struct {
		value int
		want  ScoreCategory
	}{
		{100, CategoryExcellent},
		{95, CategoryExcellent},
		{94, CategoryReview},
		{70, CategoryReview},
		{69, CategoryAttention},
		{0, CategoryAttention},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CategoryFor(tt.value), "value %d", tt.value)
	}
}
