package extract

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/model"
)

const autoPolicy = `APÓLICE DE SEGURO AUTO
Seguradora: Porto Seguro Cia de Seguros Gerais
Número da Apólice: 0531.12.345678
Segurado: João da Silva
CPF: 123.456.789-00
E-mail: joao.silva@example.com
Telefone: (11) 98765-4321
Ramo: Automóvel
Início de Vigência: 01/02/2024
Fim de Vigência: 01/02/2025
Veículo: Honda Civic EXL 2.0 2022
Prêmio Líquido: R$ 1.234,56
Prêmio Total: R$ 1.325,70
`

func newTestExtractor(t *testing.T) *Extractor {
	t.Helper()
	return New(DefaultConfig(), nil)
}

func TestExtract_FullPolicy(t *testing.T) {
	res := newTestExtractor(t).Extract(autoPolicy)
	rec := res.Record

	assert.Equal(t, model.DocumentPolicy, rec.DocumentType)
	assert.Equal(t, model.ClientData{
		Name:       "João da Silva",
		DocumentID: "12345678900",
		Email:      "joao.silva@example.com",
		Phone:      "11987654321",
	}, rec.Client)
	assert.Equal(t, model.PolicyData{
		Number:      "0531.12.345678",
		InsurerName: "Porto Seguro",
		InsurerCode: "porto",
		Branch:      "Automóvel",
		BranchCode:  "auto",
		StartDate:   "2024-02-01",
		EndDate:     "2025-02-01",
	}, rec.Policy)
	assert.Equal(t, "Honda Civic EXL 2.0 2022", rec.InsuredObject.Description)

	require.True(t, rec.Values.NetPremium.Valid)
	require.True(t, rec.Values.TotalPremium.Valid)
	assert.True(t, decimal.RequireFromString("1234.56").Equal(rec.Values.NetPremium.Decimal))
	assert.True(t, decimal.RequireFromString("1325.70").Equal(rec.Values.TotalPremium.Decimal))

	assert.NotEmpty(t, res.Anchors)
	assert.Empty(t, res.Rejected)
}

func TestExtract_NoisyIndividualIdentifier(t *testing.T) {
	res := newTestExtractor(t).Extract("C P F 1 2 3 . 4 5 6 . 7 8 9-00")
	assert.Equal(t, "12345678900", res.Record.Client.DocumentID)
}

func TestExtract_BrandAndPremiumOnly(t *testing.T) {
	res := newTestExtractor(t).Extract("PORTO SEGURO\nPrêmio Total R$ 850,00")
	rec := res.Record

	assert.Empty(t, rec.Client.DocumentID)
	assert.Equal(t, "porto", rec.Policy.InsurerCode)
	require.True(t, rec.Values.TotalPremium.Valid)
	assert.True(t, decimal.RequireFromString("850").Equal(rec.Values.TotalPremium.Decimal))
	assert.Empty(t, rec.Policy.StartDate)
	assert.Empty(t, rec.Policy.EndDate)
}

func TestExtract_PeriodPair(t *testing.T) {
	res := newTestExtractor(t).Extract("Vigência: das 24h de 01/03/2024 às 24h de 01/03/2025")
	assert.Equal(t, "2024-03-01", res.Record.Policy.StartDate)
	assert.Equal(t, "2025-03-01", res.Record.Policy.EndDate)
}

func TestExtract_InvalidDateIsRejectedNotGuessed(t *testing.T) {
	res := newTestExtractor(t).Extract("Início de Vigência: 31/04/2024\nFim de Vigência: 30/04/2025")
	assert.Empty(t, res.Record.Policy.StartDate)
	assert.Equal(t, "2025-04-30", res.Record.Policy.EndDate)
	require.Len(t, res.Rejected, 1)
	assert.Equal(t, model.FieldStartDate, res.Rejected[0].Field)
	assert.Equal(t, "31/04/2024", res.Rejected[0].Raw)
}

func TestExtract_NegativePremiumRejected(t *testing.T) {
	res := newTestExtractor(t).Extract("Prêmio Total: -R$ 100,00")
	assert.False(t, res.Record.Values.TotalPremium.Valid)
	require.Len(t, res.Rejected, 1)
	assert.Equal(t, model.FieldTotalPremium, res.Rejected[0].Field)
}

func TestExtract_LabelInsideLongerLabelIsIgnored(t *testing.T) {
	res := newTestExtractor(t).Extract("Objeto Segurado: Apartamento 42\nSegurado: Maria Souza")
	assert.Equal(t, "Apartamento 42", res.Record.InsuredObject.Description)
	assert.Equal(t, "Maria Souza", res.Record.Client.Name)
}

func TestExtract_UnlabeledInsurerFallsBackToRawText(t *testing.T) {
	res := newTestExtractor(t).Extract("Seguradora: Nova Seguros Regional\nRamo: Transporte")
	assert.Equal(t, "Nova Seguros Regional", res.Record.Policy.InsurerName)
	assert.Empty(t, res.Record.Policy.InsurerCode)
	assert.Empty(t, res.Record.Policy.Branch)
}

func TestExtract_NothingFound(t *testing.T) {
	res := newTestExtractor(t).Extract("lorem ipsum dolor sit amet")
	assert.True(t, res.Record.Empty())
	assert.Empty(t, res.Anchors)
}

func TestExtract_EmptyInput(t *testing.T) {
	res := newTestExtractor(t).Extract("")
	assert.True(t, res.Record.Empty())
	assert.Equal(t, model.DocumentUnknown, res.Record.DocumentType)
}
