package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Client is a customer record in the brokerage catalog.
type Client struct {
	ID         string    `json:"id" db:"id"`
	Name       string    `json:"name" db:"name"`
	DocumentID string    `json:"document_id,omitempty" db:"document_id"` // CPF or CNPJ, digits only
	Email      string    `json:"email,omitempty" db:"email"`
	Phone      string    `json:"phone,omitempty" db:"phone"`
	Address    string    `json:"address,omitempty" db:"address"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Insurer is an insurance company in the catalog.
type Insurer struct {
	ID        string    `json:"id" db:"id"`
	Code      string    `json:"code" db:"code"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Branch is an insurance line ("ramo") in the catalog.
type Branch struct {
	ID        string    `json:"id" db:"id"`
	Code      string    `json:"code" db:"code"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Policy is a persisted policy document.
type Policy struct {
	ID           string              `json:"id" db:"id"`
	ClientID     string              `json:"client_id" db:"client_id"`
	InsurerID    string              `json:"insurer_id" db:"insurer_id"`
	BranchID     string              `json:"branch_id" db:"branch_id"`
	Number       string              `json:"number,omitempty" db:"number"`
	DocumentType DocumentType        `json:"document_type" db:"document_type"`
	StartDate    string              `json:"start_date,omitempty" db:"start_date"`
	EndDate      string              `json:"end_date,omitempty" db:"end_date"`
	NetPremium   decimal.NullDecimal `json:"net_premium" db:"net_premium"`
	TotalPremium decimal.NullDecimal `json:"total_premium" db:"total_premium"`
	Confidence   int                 `json:"confidence" db:"confidence"`
	SourceName   string              `json:"source_name,omitempty" db:"source_name"`
	CreatedAt    time.Time           `json:"created_at" db:"created_at"`
}

// PolicyItem is a line attached to a policy (insured object, coverage).
type PolicyItem struct {
	PolicyID    string              `json:"policy_id" db:"policy_id"`
	Position    int                 `json:"position" db:"position"`
	Description string              `json:"description" db:"description"`
	Amount      decimal.NullDecimal `json:"amount" db:"amount"`
}
