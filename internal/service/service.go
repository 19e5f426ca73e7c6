package service

import (
	"context"
	"time"

	"feepay-backend/internal/domain"
	"feepay-backend/internal/gateway/momo"

	"github.com/shopspring/decimal"
)

type SettlementService interface {
	SettlePayment(ctx context.Context, caller domain.Identity, req SettlementRequest) (*SettlementResult, error)
}

type TopUpService interface {
	TopUp(ctx context.Context, caller domain.Identity, req TopUpRequest) (*TopUpResult, error)
	InitiateMobileMoneyTopUp(ctx context.Context, caller domain.Identity, req MobileMoneyTopUpRequest) (*MobileMoneyTopUpResult, error)
	HandleGatewayCallback(ctx context.Context, update GatewayStatusUpdate) (CallbackOutcome, error)
	ReconcilePendingTopUps(ctx context.Context, olderThan time.Duration, limit int) (*ReconcileSummary, error)
}

type WalletService interface {
	PayFromWallet(ctx context.Context, caller domain.Identity, invoiceID string, amount decimal.Decimal) (*domain.Invoice, error)
	GetWallet(ctx context.Context, caller domain.Identity, studentID string) (*domain.WalletView, error)
	GetInvoice(ctx context.Context, caller domain.Identity, invoiceID string) (*domain.Invoice, error)
	ListTransactions(ctx context.Context, caller domain.Identity, query TransactionQuery) ([]domain.LedgerTransaction, int, error)
}

type FeeService interface {
	BroadcastFee(ctx context.Context, caller domain.Identity, target string, details FeeDetails) (*BroadcastResult, error)
	UpdateFee(ctx context.Context, caller domain.Identity, feeID string, details FeeDetails) (*domain.FeeStructure, error)
}

type DeletionService interface {
	DeleteFee(ctx context.Context, caller domain.Identity, feeID, reason string) (*DeletionOutcome, error)
	DeleteStudent(ctx context.Context, caller domain.Identity, studentID, reason string) (*DeletionOutcome, error)
	ListPending(ctx context.Context, caller domain.Identity) ([]domain.DeletionRequest, error)
	Approve(ctx context.Context, caller domain.Identity, requestID string) (*domain.DeletionRequest, error)
	Reject(ctx context.Context, caller domain.Identity, requestID string) (*domain.DeletionRequest, error)
}

// CollectionGateway is the part of the mobile money provider the top-up engine drives.
type CollectionGateway interface {
	RequestToPay(ctx context.Context, req momo.PaymentRequest) error
	GetRequestToPayStatus(ctx context.Context, referenceID string) (*momo.PaymentStatus, error)
}

type SettlementRequest struct {
	StudentID      string
	FeeStructureID string
	Amount         decimal.Decimal
	Method         domain.PaymentMethod
	Reference      *string
}

// SettlementResult carries the invoice after the payment and the ledger rows written for it.
// Overpayment is the part of the amount that did not go towards the fee.
type SettlementResult struct {
	Invoice      *domain.Invoice            `json:"invoice"`
	Overpayment  decimal.Decimal            `json:"overpayment"`
	Transactions []domain.LedgerTransaction `json:"transactions"`
}

type TopUpRequest struct {
	StudentID string
	Amount    decimal.Decimal
	Reference *string
	Method    domain.PaymentMethod
}

type TopUpResult struct {
	Transaction *domain.LedgerTransaction `json:"transaction"`
	Wallet      *domain.Wallet            `json:"wallet"`
}

type MobileMoneyTopUpRequest struct {
	Amount decimal.Decimal
	// Payer is the MSISDN that is asked to approve the collection.
	Payer string
}

// MobileMoneyTopUpResult is the pending transaction of an initiated top-up. GatewayError is
// set when the provider could not be reached; the transaction then stays PENDING until the
// reconciliation poll resolves it.
type MobileMoneyTopUpResult struct {
	Transaction  *domain.LedgerTransaction `json:"transaction"`
	GatewayError string                    `json:"gateway_error,omitempty"`
}

// GatewayStatusUpdate is a provider-reported outcome for a request-to-pay, from either the
// webhook or a status poll.
type GatewayStatusUpdate struct {
	Reference              string
	Status                 string
	FinancialTransactionID string
}

type CallbackOutcome string

const (
	CallbackCompleted        CallbackOutcome = "completed"
	CallbackFailed           CallbackOutcome = "failed"
	CallbackUnknownReference CallbackOutcome = "unknown_reference"
	CallbackAlreadyFinal     CallbackOutcome = "already_final"
	CallbackStillPending     CallbackOutcome = "pending"
)

type ReconcileSummary struct {
	Checked      int `json:"checked"`
	Completed    int `json:"completed"`
	Failed       int `json:"failed"`
	StillPending int `json:"still_pending"`
	Errors       int `json:"errors"`
}

type FeeDetails struct {
	Name      string
	Amount    decimal.Decimal
	DueDate   time.Time
	Breakdown []domain.BreakdownItem
}

// SchoolBroadcast is the outcome of broadcasting a fee to one school. Error is set when the
// school's fee structure and invoices were rolled back.
type SchoolBroadcast struct {
	SchoolID        string `json:"school_id"`
	FeeStructureID  string `json:"fee_structure_id,omitempty"`
	InvoicesCreated int64  `json:"invoices_created"`
	Error           string `json:"error,omitempty"`
}

type BroadcastResult struct {
	Results              []SchoolBroadcast `json:"results"`
	FeeStructuresCreated int               `json:"fee_structures_created"`
	InvoicesCreated      int64             `json:"invoices_created"`
}

// DeletionOutcome reports either a direct delete or the request queued for approval.
type DeletionOutcome struct {
	Deleted bool                    `json:"deleted"`
	Request *domain.DeletionRequest `json:"request,omitempty"`
}

// TransactionQuery is a caller-supplied transaction listing request before role scoping.
type TransactionQuery struct {
	StudentID string
	SchoolID  string
	Types     []domain.TransactionType
	Statuses  []domain.TransactionStatus
	Page      int
	PageSize  int
}
