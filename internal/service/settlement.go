package service

import (
	"context"
	"fmt"
	"time"

	"feepay-backend/internal/domain"
	"feepay-backend/internal/events"
	"feepay-backend/internal/logger"
	"feepay-backend/internal/metrics"
	"feepay-backend/internal/repository"

	"github.com/shopspring/decimal"
)

// SplitPayment divides amount between what is still owed on an invoice and the wallet.
// forFee is min(amount, max(0, feeAmount-amountPaid)) and toWallet is the rest.
func SplitPayment(amount, feeAmount, amountPaid decimal.Decimal) (forFee, toWallet decimal.Decimal) {
	remaining := feeAmount.Sub(amountPaid)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	forFee = decimal.Min(amount, remaining)
	return forFee, amount.Sub(forFee)
}

type settlementService struct {
	store     repository.Store
	publisher events.Publisher
	now       func() time.Time
}

func NewSettlementService(store repository.Store, publisher events.Publisher) SettlementService {
	return &settlementService{store: store, publisher: publisher, now: time.Now}
}

func (s *settlementService) SettlePayment(ctx context.Context, caller domain.Identity, req SettlementRequest) (result *SettlementResult, err error) {
	logger.EnterMethod("settlementService.SettlePayment", "studentID", req.StudentID, "feeStructureID", req.FeeStructureID,
		"amount", req.Amount.StringFixed(2), "method", req.Method)
	start := time.Now()
	defer func() { metrics.ObserveLedger("settle_payment", start, err) }()

	if err := requirePositive(req.Amount); err != nil {
		logger.ExitMethodWithError("settlementService.SettlePayment", err)
		return nil, err
	}
	if !req.Method.Valid() {
		err := fmt.Errorf("%w: unknown payment method %q", domain.ErrInvalidInput, req.Method)
		logger.ExitMethodWithError("settlementService.SettlePayment", err)
		return nil, err
	}
	if req.FeeStructureID == "" {
		err := fmt.Errorf("%w: fee structure id is required", domain.ErrInvalidInput)
		logger.ExitMethodWithError("settlementService.SettlePayment", err)
		return nil, err
	}
	if req.Reference != nil && *req.Reference == "" {
		req.Reference = nil
	}

	var walletID string
	err = s.store.RunInTx(ctx, func(repos repository.Repositories) error {
		student, err := authorizeStudent(ctx, repos, caller, req.StudentID)
		if err != nil {
			return err
		}
		wallet, err := repos.Wallets().GetByStudentIDForUpdate(ctx, req.StudentID)
		if err != nil {
			return err
		}
		walletID = wallet.ID
		fee, err := repos.Fees().GetByID(ctx, req.FeeStructureID)
		if err != nil {
			return err
		}
		if fee.SchoolID != student.SchoolID {
			return fmt.Errorf("%w: fee structure %s", domain.ErrNotFound, req.FeeStructureID)
		}
		invoice, _, err := repos.Invoices().GetOrCreateForUpdate(ctx, req.StudentID, fee.ID)
		if err != nil {
			return err
		}

		forFee, toWallet := SplitPayment(req.Amount, fee.Amount, invoice.AmountPaid)
		now := s.now()
		balance := wallet.Balance
		var written []domain.LedgerTransaction

		if forFee.IsPositive() {
			before := balance
			if req.Method == domain.PaymentMethodWallet {
				if balance.LessThan(forFee) {
					return fmt.Errorf("%w: wallet balance %s is below %s", domain.ErrInsufficientFunds,
						balance.StringFixed(2), forFee.StringFixed(2))
				}
				balance = balance.Sub(forFee)
			}

			invoice.ApplyPayment(forFee, fee.Amount)
			invoice.UpdatedAt = now
			if err := repos.Invoices().UpdatePayment(ctx, invoice); err != nil {
				return err
			}

			ref := req.Reference
			if ref == nil {
				ref = newReference("PAY")
			}
			tuition := newTransaction(wallet.ID, forFee, domain.TransactionTypeTuition, domain.TransactionStatusCompleted,
				req.Method, ref, "Payment for "+fee.Name, before, balance, now)
			if err := repos.Transactions().Create(ctx, tuition); err != nil {
				return err
			}
			written = append(written, *tuition)
		}

		// Money arriving from an external rail that the invoice cannot absorb is kept in the
		// wallet. A WALLET-sourced excess was never debited, so nothing moves.
		if toWallet.IsPositive() && req.Method != domain.PaymentMethodWallet {
			before := balance
			balance = balance.Add(toWallet)
			credit := newTransaction(wallet.ID, toWallet, domain.TransactionTypeTopUp, domain.TransactionStatusCompleted,
				domain.PaymentMethodWallet, newReference("OVP"), "Overpayment credit for "+fee.Name, before, balance, now)
			if err := repos.Transactions().Create(ctx, credit); err != nil {
				return err
			}
			written = append(written, *credit)
		}

		if !balance.Equal(wallet.Balance) {
			if err := repos.Wallets().UpdateBalance(ctx, wallet.ID, balance); err != nil {
				return err
			}
		}

		result = &SettlementResult{Invoice: invoice, Overpayment: toWallet, Transactions: written}
		return nil
	})
	if err != nil {
		logger.ExitMethodWithError("settlementService.SettlePayment", err, "studentID", req.StudentID)
		return nil, err
	}

	evs := make([]events.Event, 0, len(result.Transactions))
	for _, tx := range result.Transactions {
		evs = append(evs, transactionEvent(tx))
	}
	publish(ctx, s.publisher, evs)
	logger.LedgerEvent("settle_payment", walletID, "invoiceID", result.Invoice.ID,
		"invoiceStatus", result.Invoice.Status, "overpayment", result.Overpayment.StringFixed(2))

	logger.ExitMethod("settlementService.SettlePayment", "invoiceID", result.Invoice.ID, "transactions", len(result.Transactions))
	return result, nil
}
