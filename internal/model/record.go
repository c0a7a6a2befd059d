package model

import (
	"github.com/shopspring/decimal"
)

// DocumentType is the kind of source document detected by OCR or by keyword.
type DocumentType string

const (
	DocumentPolicy      DocumentType = "policy"
	DocumentProposal    DocumentType = "proposal"
	DocumentBudget      DocumentType = "budget"
	DocumentEndorsement DocumentType = "endorsement"
	DocumentCard        DocumentType = "card"
	DocumentUnknown     DocumentType = ""
)

// Valid reports whether t is one of the known document types.
func (t DocumentType) Valid() bool {
	switch t {
	case DocumentPolicy, DocumentProposal, DocumentBudget, DocumentEndorsement, DocumentCard:
		return true
	}
	return false
}

// ClientData is the client section of an extracted record. Empty strings mean absent.
type ClientData struct {
	MatchedID  string `json:"matched_id,omitempty"`
	Name       string `json:"name,omitempty"`
	DocumentID string `json:"document_id,omitempty"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Address    string `json:"address,omitempty"`
}

// PolicyData is the policy section of an extracted record.
type PolicyData struct {
	Number      string `json:"number,omitempty"`
	InsurerName string `json:"insurer_name,omitempty"`
	InsurerCode string `json:"insurer_code,omitempty"`
	Branch      string `json:"branch,omitempty"`
	BranchCode  string `json:"branch_code,omitempty"`
	StartDate   string `json:"start_date,omitempty"` // ISO 2006-01-02
	EndDate     string `json:"end_date,omitempty"`
}

// InsuredObject describes what the policy covers.
type InsuredObject struct {
	Description string `json:"description,omitempty"`
}

// PolicyValues holds premium amounts.
type PolicyValues struct {
	NetPremium   decimal.NullDecimal `json:"net_premium"`
	TotalPremium decimal.NullDecimal `json:"total_premium"`
}

// ExtractedPolicyRecord is the structured output of extraction. Every leaf is optional.
type ExtractedPolicyRecord struct {
	DocumentType  DocumentType  `json:"document_type,omitempty"`
	Client        ClientData    `json:"client"`
	Policy        PolicyData    `json:"policy"`
	InsuredObject InsuredObject `json:"insured_object"`
	Values        PolicyValues  `json:"values"`
}

// Empty reports whether no field at all was extracted.
func (r ExtractedPolicyRecord) Empty() bool {
	return r.Client == (ClientData{}) &&
		r.Policy == (PolicyData{}) &&
		r.InsuredObject == (InsuredObject{}) &&
		!r.Values.NetPremium.Valid && !r.Values.TotalPremium.Valid
}
