package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionTypeTuition TransactionType = "TUITION"
	TransactionTypeTopUp   TransactionType = "TOPUP"
)

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	TransactionStatusFailed    TransactionStatus = "FAILED"
)

// Final reports whether no further status transition is allowed.
func (s TransactionStatus) Final() bool {
	return s == TransactionStatusCompleted || s == TransactionStatusFailed
}

type PaymentMethod string

const (
	PaymentMethodMomo   PaymentMethod = "MOMO"
	PaymentMethodCard   PaymentMethod = "CARD"
	PaymentMethodWallet PaymentMethod = "WALLET"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodMomo, PaymentMethodCard, PaymentMethodWallet:
		return true
	}
	return false
}

type Wallet struct {
	ID        string          `json:"id"`
	StudentID string          `json:"student_id"`
	Balance   decimal.Decimal `json:"balance"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// LedgerTransaction is an append-only entry in a wallet's history. Amount is always positive;
// the direction is implied by Type and by BalanceBefore/BalanceAfter.
type LedgerTransaction struct {
	ID            string            `json:"id"`
	WalletID      string            `json:"wallet_id"`
	Amount        decimal.Decimal   `json:"amount"`
	Type          TransactionType   `json:"type"`
	Status        TransactionStatus `json:"status"`
	Method        PaymentMethod     `json:"method"`
	Reference     *string           `json:"reference,omitempty"`
	Description   string            `json:"description"`
	BalanceBefore decimal.Decimal   `json:"balance_before"`
	BalanceAfter  decimal.Decimal   `json:"balance_after"`
	Date          time.Time         `json:"date"`
}

// WalletView is a wallet together with its most recent transactions.
type WalletView struct {
	Wallet       *Wallet             `json:"wallet"`
	Transactions []LedgerTransaction `json:"transactions"`
}
