package importer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/extract"
	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/model"
	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/reconcile"
)

func TestApplyOverrides(t *testing.T) {
	dict := extract.DefaultDictionary()

	tests := []struct {
		name    string
		key     string
		value   string
		check   func(t *testing.T, rec model.ExtractedPolicyRecord, pins reconcile.Pins)
		wantErr bool
	}{
		{
			name:  "document normalized to digits",
			key:   "client.document_id",
			value: "123.456.789-00",
			check: func(t *testing.T, rec model.ExtractedPolicyRecord, _ reconcile.Pins) {
				assert.Equal(t, "12345678900", rec.Client.DocumentID)
			},
		},
		{name: "document with wrong length", key: "client.document_id", value: "1234", wantErr: true},
		{
			name:  "insurer mapped through dictionary",
			key:   "policy.insurer_name",
			value: "porto seguro",
			check: func(t *testing.T, rec model.ExtractedPolicyRecord, _ reconcile.Pins) {
				assert.Equal(t, "Porto Seguro", rec.Policy.InsurerName)
				assert.Equal(t, "porto", rec.Policy.InsurerCode)
			},
		},
		{
			name:  "unknown insurer kept as typed",
			key:   "policy.insurer_name",
			value: "Seguradora Regional",
			check: func(t *testing.T, rec model.ExtractedPolicyRecord, _ reconcile.Pins) {
				assert.Equal(t, "Seguradora Regional", rec.Policy.InsurerName)
				assert.Empty(t, rec.Policy.InsurerCode)
			},
		},
		{
			name:  "day-first date",
			key:   "policy.end_date",
			value: "15/08/2025",
			check: func(t *testing.T, rec model.ExtractedPolicyRecord, _ reconcile.Pins) {
				assert.Equal(t, "2025-08-15", rec.Policy.EndDate)
			},
		},
		{name: "impossible date", key: "policy.start_date", value: "30/02/2024", wantErr: true},
		{
			name:  "brazilian amount",
			key:   "values.total_premium",
			value: "R$ 1.234,56",
			check: func(t *testing.T, rec model.ExtractedPolicyRecord, _ reconcile.Pins) {
				require.True(t, rec.Values.TotalPremium.Valid)
				assert.Equal(t, "1234.56", rec.Values.TotalPremium.Decimal.StringFixed(2))
			},
		},
		{name: "amount without digits", key: "values.net_premium", value: "abc", wantErr: true},
		{name: "bad email", key: "client.email", value: "not-an-email", wantErr: true},
		{
			name:  "email",
			key:   "client.email",
			value: "ana@example.com",
			check: func(t *testing.T, rec model.ExtractedPolicyRecord, _ reconcile.Pins) {
				assert.Equal(t, "ana@example.com", rec.Client.Email)
			},
		},
		{
			name:  "document type",
			key:   "document_type",
			value: "Endorsement",
			check: func(t *testing.T, rec model.ExtractedPolicyRecord, _ reconcile.Pins) {
				assert.Equal(t, model.DocumentType("endorsement"), rec.DocumentType)
			},
		},
		{name: "unknown document type", key: "document_type", value: "invoice", wantErr: true},
		{
			name:  "client pin",
			key:   "client.id",
			value: "client-7",
			check: func(t *testing.T, _ model.ExtractedPolicyRecord, pins reconcile.Pins) {
				assert.Equal(t, "client-7", pins.ClientID)
			},
		},
		{
			name:  "empty value clears",
			key:   "client.name",
			value: "  ",
			check: func(t *testing.T, rec model.ExtractedPolicyRecord, _ reconcile.Pins) {
				assert.Empty(t, rec.Client.Name)
				assert.Empty(t, rec.Client.MatchedID)
			},
		},
		{name: "unknown key", key: "client.birthday", value: "x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := model.ExtractedPolicyRecord{}
			rec.Client.Name = "Ana Lima"
			rec.Client.MatchedID = "client-1"
			var pins reconcile.Pins

			err := applyOverrides(&rec, &pins, dict, map[string]string{tt.key: tt.value})
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidOverride))
				assert.Contains(t, err.Error(), tt.key)
				return
			}
			require.NoError(t, err)
			tt.check(t, rec, pins)
		})
	}
}

func TestApplyOverrides_AllOrNothing(t *testing.T) {
	rec := model.ExtractedPolicyRecord{}
	rec.Policy.Number = "ABC123"
	var pins reconcile.Pins

	err := applyOverrides(&rec, &pins, extract.DefaultDictionary(), map[string]string{
		"client.id":          "client-1",
		"policy.number":      "XYZ 999",
		"values.net_premium": "-10",
	})
	require.Error(t, err)
	assert.Equal(t, "ABC123", rec.Policy.Number)
	assert.Empty(t, pins.ClientID)
}
