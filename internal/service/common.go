package service

import (
	"context"
	"fmt"
	"time"

	"feepay-backend/internal/domain"
	"feepay-backend/internal/events"
	"feepay-backend/internal/logger"
	"feepay-backend/internal/repository"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

// newReference returns a sortable ledger reference such as PAY-01J9ZQ4V8N6W3C5T2R7K0B1M9D.
func newReference(prefix string) *string {
	ref := prefix + "-" + ulid.Make().String()
	return &ref
}

func requirePositive(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", domain.ErrInvalidInput)
	}
	if hasSubCent(amount) {
		return fmt.Errorf("%w: amount %s has more than two decimal places", domain.ErrInvalidInput, amount)
	}
	return nil
}

// hasSubCent reports whether the amount cannot be stored as a NUMERIC(14,2) without rounding.
// Trailing zeros such as 12.500 are fine.
func hasSubCent(amount decimal.Decimal) bool {
	return !amount.Equal(amount.Round(2))
}

// authorizeStudent loads the student and checks the caller may act on their ledger.
func authorizeStudent(ctx context.Context, repos repository.Repositories, caller domain.Identity, studentID string) (*domain.Student, error) {
	if studentID == "" {
		return nil, fmt.Errorf("%w: student id is required", domain.ErrInvalidInput)
	}
	student, err := repos.Students().GetByID(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if err := checkStudentScope(caller, student); err != nil {
		return nil, err
	}
	return student, nil
}

func checkStudentScope(caller domain.Identity, student *domain.Student) error {
	switch caller.Role {
	case domain.RoleMasterAdmin:
		return nil
	case domain.RoleAdmin, domain.RoleStaff:
		if caller.SchoolID != "" && caller.SchoolID == student.SchoolID {
			return nil
		}
	case domain.RoleStudent:
		if caller.StudentID == student.ID {
			return nil
		}
	}
	return fmt.Errorf("%w: student %s is outside the caller's scope", domain.ErrForbidden, student.ID)
}

func checkSchoolScope(caller domain.Identity, schoolID string) error {
	switch caller.Role {
	case domain.RoleMasterAdmin:
		return nil
	case domain.RoleAdmin, domain.RoleStaff:
		if caller.SchoolID != "" && caller.SchoolID == schoolID {
			return nil
		}
	}
	return fmt.Errorf("%w: school %s is outside the caller's scope", domain.ErrForbidden, schoolID)
}

func transactionEvent(tx domain.LedgerTransaction) events.Event {
	typ := events.TransactionCompleted
	if tx.Status == domain.TransactionStatusFailed {
		typ = events.TransactionFailed
	}
	return events.Event{Type: typ, Key: tx.WalletID, OccurredAt: tx.Date, Payload: tx}
}

// publish sends events collected during a committed transaction. The ledger is already
// durable at this point, so a broker failure is logged and not returned.
func publish(ctx context.Context, publisher events.Publisher, evs []events.Event) {
	if publisher == nil || len(evs) == 0 {
		return
	}
	if err := publisher.Publish(ctx, evs...); err != nil {
		logger.ErrorContext(ctx, "Failed to publish ledger events", "count", len(evs), "error", err)
	}
}

func newTransaction(walletID string, amount decimal.Decimal, typ domain.TransactionType, status domain.TransactionStatus,
	method domain.PaymentMethod, reference *string, description string, before, after decimal.Decimal, now time.Time) *domain.LedgerTransaction {
	return &domain.LedgerTransaction{
		WalletID:      walletID,
		Amount:        amount,
		Type:          typ,
		Status:        status,
		Method:        method,
		Reference:     reference,
		Description:   description,
		BalanceBefore: before,
		BalanceAfter:  after,
		Date:          now,
	}
}
