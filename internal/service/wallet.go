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

// RecentTransactionLimit is how many transactions a wallet view carries.
const RecentTransactionLimit = 20

type walletService struct {
	store     repository.Store
	publisher events.Publisher
	now       func() time.Time
}

func NewWalletService(store repository.Store, publisher events.Publisher) WalletService {
	return &walletService{store: store, publisher: publisher, now: time.Now}
}

// PayFromWallet pays an invoice out of the caller's own wallet. The balance must cover the
// requested amount; the debit is then capped at what is still owed, so any excess stays in
// the wallet.
func (s *walletService) PayFromWallet(ctx context.Context, caller domain.Identity, invoiceID string, amount decimal.Decimal) (result *domain.Invoice, err error) {
	logger.EnterMethod("walletService.PayFromWallet", "studentID", caller.StudentID, "invoiceID", invoiceID, "amount", amount.StringFixed(2))
	start := time.Now()
	defer func() { metrics.ObserveLedger("pay_from_wallet", start, err) }()

	if caller.Role != domain.RoleStudent || caller.StudentID == "" {
		err := fmt.Errorf("%w: only students can pay from their wallet", domain.ErrForbidden)
		logger.ExitMethodWithError("walletService.PayFromWallet", err)
		return nil, err
	}
	if err := requirePositive(amount); err != nil {
		logger.ExitMethodWithError("walletService.PayFromWallet", err)
		return nil, err
	}

	var tuition *domain.LedgerTransaction
	err = s.store.RunInTx(ctx, func(repos repository.Repositories) error {
		wallet, err := repos.Wallets().GetByStudentIDForUpdate(ctx, caller.StudentID)
		if err != nil {
			return err
		}
		invoice, err := repos.Invoices().GetByIDForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		if invoice.StudentID != caller.StudentID {
			return fmt.Errorf("%w: invoice %s", domain.ErrNotFound, invoiceID)
		}
		fee, err := repos.Fees().GetByID(ctx, invoice.FeeStructureID)
		if err != nil {
			return err
		}

		if wallet.Balance.LessThan(amount) {
			return fmt.Errorf("%w: wallet balance %s is below %s", domain.ErrInsufficientFunds,
				wallet.Balance.StringFixed(2), amount.StringFixed(2))
		}
		charge, _ := SplitPayment(amount, fee.Amount, invoice.AmountPaid)
		if !charge.IsPositive() {
			return fmt.Errorf("%w: invoice %s is already paid", domain.ErrInvalidInput, invoiceID)
		}

		now := s.now()
		before := wallet.Balance
		after := before.Sub(charge)

		invoice.ApplyPayment(charge, fee.Amount)
		invoice.UpdatedAt = now
		if err := repos.Invoices().UpdatePayment(ctx, invoice); err != nil {
			return err
		}
		tuition = newTransaction(wallet.ID, charge, domain.TransactionTypeTuition, domain.TransactionStatusCompleted,
			domain.PaymentMethodWallet, newReference("PAY"), "Payment for "+fee.Name+" from wallet", before, after, now)
		if err := repos.Transactions().Create(ctx, tuition); err != nil {
			return err
		}
		if err := repos.Wallets().UpdateBalance(ctx, wallet.ID, after); err != nil {
			return err
		}
		result = invoice
		return nil
	})
	if err != nil {
		logger.ExitMethodWithError("walletService.PayFromWallet", err, "invoiceID", invoiceID)
		return nil, err
	}

	publish(ctx, s.publisher, []events.Event{transactionEvent(*tuition)})
	logger.LedgerEvent("pay_from_wallet", tuition.WalletID, "invoiceID", result.ID, "invoiceStatus", result.Status,
		"balance", tuition.BalanceAfter.StringFixed(2))
	logger.ExitMethod("walletService.PayFromWallet", "invoiceID", result.ID, "status", result.Status)
	return result, nil
}

func (s *walletService) GetWallet(ctx context.Context, caller domain.Identity, studentID string) (*domain.WalletView, error) {
	if studentID == "" && caller.Role == domain.RoleStudent {
		studentID = caller.StudentID
	}
	if _, err := authorizeStudent(ctx, s.store, caller, studentID); err != nil {
		return nil, err
	}
	wallet, err := s.store.Wallets().GetByStudentID(ctx, studentID)
	if err != nil {
		return nil, err
	}
	txs, err := s.store.Transactions().ListRecentByWallet(ctx, wallet.ID, RecentTransactionLimit)
	if err != nil {
		return nil, err
	}
	return &domain.WalletView{Wallet: wallet, Transactions: txs}, nil
}

func (s *walletService) GetInvoice(ctx context.Context, caller domain.Identity, invoiceID string) (*domain.Invoice, error) {
	invoice, err := s.store.Invoices().GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if caller.Role == domain.RoleStudent && invoice.StudentID != caller.StudentID {
		return nil, fmt.Errorf("%w: invoice %s", domain.ErrNotFound, invoiceID)
	}
	if _, err := authorizeStudent(ctx, s.store, caller, invoice.StudentID); err != nil {
		return nil, err
	}
	return invoice, nil
}

func (s *walletService) ListTransactions(ctx context.Context, caller domain.Identity, query TransactionQuery) ([]domain.LedgerTransaction, int, error) {
	filter, err := BuildTransactionFilter(caller, query)
	if err != nil {
		return nil, 0, err
	}
	return s.store.Transactions().List(ctx, filter)
}
