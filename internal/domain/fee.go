package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type BreakdownItem struct {
	Item   string          `json:"item"`
	Amount decimal.Decimal `json:"amount"`
}

// FeeStructure is the amount owed per invoice for one school. Breakdown is informational and
// is not required to sum to Amount.
type FeeStructure struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Amount    decimal.Decimal `json:"amount"`
	DueDate   time.Time       `json:"due_date"`
	Breakdown []BreakdownItem `json:"breakdown"`
	SchoolID  string          `json:"school_id"`
	CreatedAt time.Time       `json:"created_at"`
}

type InvoiceStatus string

const (
	InvoiceStatusPending       InvoiceStatus = "PENDING"
	InvoiceStatusPartiallyPaid InvoiceStatus = "PARTIALLY_PAID"
	InvoiceStatusPaid          InvoiceStatus = "PAID"
)

type Invoice struct {
	ID             string          `json:"id"`
	StudentID      string          `json:"student_id"`
	FeeStructureID string          `json:"fee_structure_id"`
	AmountPaid     decimal.Decimal `json:"amount_paid"`
	Status         InvoiceStatus   `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// ApplyPayment adds amount to the cumulative amount paid and recomputes the status against total.
func (i *Invoice) ApplyPayment(amount, total decimal.Decimal) {
	i.AmountPaid = i.AmountPaid.Add(amount)
	if i.AmountPaid.GreaterThanOrEqual(total) {
		i.Status = InvoiceStatusPaid
	} else {
		i.Status = InvoiceStatusPartiallyPaid
	}
}
