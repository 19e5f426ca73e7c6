package repository

import (
	"context"
	"time"

	"feepay-backend/internal/domain"

	"github.com/shopspring/decimal"
)

// Methods suffixed ForUpdate take a row lock and must be called inside RunInTx to be
// meaningful; outside a transaction the lock is released when the statement completes.

type WalletRepository interface {
	Create(ctx context.Context, wallet *domain.Wallet) error
	GetByStudentID(ctx context.Context, studentID string) (*domain.Wallet, error)
	GetByStudentIDForUpdate(ctx context.Context, studentID string) (*domain.Wallet, error)
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Wallet, error)
	UpdateBalance(ctx context.Context, walletID string, balance decimal.Decimal) error
	DeleteByStudentID(ctx context.Context, studentID string) error
}

type TransactionRepository interface {
	Create(ctx context.Context, tx *domain.LedgerTransaction) error
	GetByReferenceForUpdate(ctx context.Context, reference string) (*domain.LedgerTransaction, error)
	// MarkCompleted and MarkFailed only transition rows that are still PENDING and report
	// whether a row changed.
	MarkCompleted(ctx context.Context, id string, balanceBefore, balanceAfter decimal.Decimal) (bool, error)
	MarkFailed(ctx context.Context, id string) (bool, error)
	ListRecentByWallet(ctx context.Context, walletID string, limit int) ([]domain.LedgerTransaction, error)
	List(ctx context.Context, filter TransactionFilter) ([]domain.LedgerTransaction, int, error)
	ListStalePending(ctx context.Context, method domain.PaymentMethod, createdBefore time.Time, limit int) ([]domain.LedgerTransaction, error)
	DeleteByWalletID(ctx context.Context, walletID string) error
}

type FeeRepository interface {
	Create(ctx context.Context, fee *domain.FeeStructure) error
	GetByID(ctx context.Context, id string) (*domain.FeeStructure, error)
	Update(ctx context.Context, fee *domain.FeeStructure) error
	// Delete reports whether a row was removed; a missing fee is not an error.
	Delete(ctx context.Context, id string) (bool, error)
	ListBySchool(ctx context.Context, schoolID string) ([]domain.FeeStructure, error)
}

type InvoiceRepository interface {
	// CreateForSchool inserts one PENDING invoice per student enrolled at schoolID in a
	// single statement and returns the number of invoices created.
	CreateForSchool(ctx context.Context, feeStructureID, schoolID string) (int64, error)
	// GetOrCreateForUpdate returns the locked invoice for (studentID, feeStructureID),
	// creating a PENDING one first when none exists. The bool is true when it was created.
	GetOrCreateForUpdate(ctx context.Context, studentID, feeStructureID string) (*domain.Invoice, bool, error)
	GetByID(ctx context.Context, id string) (*domain.Invoice, error)
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Invoice, error)
	UpdatePayment(ctx context.Context, invoice *domain.Invoice) error
	// RecomputeStatuses re-derives the status of every invoice of a fee structure against a
	// new fee amount. amount_paid is left untouched.
	RecomputeStatuses(ctx context.Context, feeStructureID string, feeAmount decimal.Decimal) (int64, error)
	DeleteByFeeStructureID(ctx context.Context, feeStructureID string) (int64, error)
	DeleteByStudentID(ctx context.Context, studentID string) (int64, error)
}

type StudentRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Student, error)
	GetByUserID(ctx context.Context, userID string) (*domain.Student, error)
	Delete(ctx context.Context, id string) error
}

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	Delete(ctx context.Context, id string) error
}

type SchoolRepository interface {
	GetByID(ctx context.Context, id string) (*domain.School, error)
	List(ctx context.Context) ([]domain.School, error)
}

type DeletionRequestRepository interface {
	Create(ctx context.Context, req *domain.DeletionRequest) error
	GetByIDForUpdate(ctx context.Context, id string) (*domain.DeletionRequest, error)
	UpdateStatus(ctx context.Context, req *domain.DeletionRequest) error
	ListPending(ctx context.Context) ([]domain.DeletionRequest, error)
}

// Repositories groups the repositories bound to one connection or transaction.
type Repositories interface {
	Wallets() WalletRepository
	Transactions() TransactionRepository
	Fees() FeeRepository
	Invoices() InvoiceRepository
	Students() StudentRepository
	Users() UserRepository
	Schools() SchoolRepository
	DeletionRequests() DeletionRequestRepository
}

// Store is the ledger store. RunInTx executes fn inside one database transaction: the
// transaction commits when fn returns nil and rolls back otherwise.
type Store interface {
	Repositories
	RunInTx(ctx context.Context, fn func(repos Repositories) error) error
}

// TransactionFilter scopes a transaction listing. Empty fields do not constrain the query.
type TransactionFilter struct {
	StudentID string
	SchoolID  string
	Types     []domain.TransactionType
	Statuses  []domain.TransactionStatus
	Limit     int
	Offset    int
}
