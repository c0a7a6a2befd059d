package extract

import (
	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/anchor"
	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/model"
)

// DefaultLabels are the printed field names searched for in policy documents.
// Within a field, earlier labels are tried first for equal offsets.
var DefaultLabels = []anchor.Label{
	{Field: model.FieldClientName, Text: "Nome do Segurado"},
	{Field: model.FieldClientName, Text: "Segurado"},
	{Field: model.FieldClientName, Text: "Proponente"},
	{Field: model.FieldClientName, Text: "Estipulante"},
	{Field: model.FieldClientName, Text: "Titular"},
	{Field: model.FieldClientName, Text: "Cliente"},

	{Field: model.FieldClientDocument, Text: "CPF/CNPJ"},
	{Field: model.FieldClientDocument, Text: "CNPJ"},
	{Field: model.FieldClientDocument, Text: "CPF"},

	{Field: model.FieldClientEmail, Text: "E-mail"},
	{Field: model.FieldClientPhone, Text: "Telefone"},
	{Field: model.FieldClientPhone, Text: "Celular"},
	{Field: model.FieldClientAddress, Text: "Endereço"},

	{Field: model.FieldPolicyNumber, Text: "Número da Apólice"},
	{Field: model.FieldPolicyNumber, Text: "Apólice"},

	{Field: model.FieldInsurer, Text: "Seguradora"},
	{Field: model.FieldInsurer, Text: "Companhia"},

	{Field: model.FieldBranch, Text: "Ramo"},
	{Field: model.FieldBranch, Text: "Produto"},

	{Field: model.FieldStartDate, Text: "Início de Vigência"},
	{Field: model.FieldStartDate, Text: "Início da Vigência"},
	{Field: model.FieldStartDate, Text: "Vigência Inicial"},
	{Field: model.FieldEndDate, Text: "Fim de Vigência"},
	{Field: model.FieldEndDate, Text: "Término de Vigência"},
	{Field: model.FieldEndDate, Text: "Final de Vigência"},
	{Field: model.FieldEndDate, Text: "Vigência Final"},
	{Field: model.FieldPeriod, Text: "Período de Vigência"},
	{Field: model.FieldPeriod, Text: "Vigência"},

	{Field: model.FieldInsuredObject, Text: "Objeto Segurado"},
	{Field: model.FieldInsuredObject, Text: "Bem Segurado"},
	{Field: model.FieldInsuredObject, Text: "Veículo"},
	{Field: model.FieldInsuredObject, Text: "Local de Risco"},

	{Field: model.FieldNetPremium, Text: "Prêmio Líquido"},
	{Field: model.FieldTotalPremium, Text: "Prêmio Total"},
	{Field: model.FieldTotalPremium, Text: "Valor Total"},
	{Field: model.FieldTotalPremium, Text: "Total a Pagar"},
}
