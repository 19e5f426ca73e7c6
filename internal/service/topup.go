package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"feepay-backend/internal/domain"
	"feepay-backend/internal/events"
	"feepay-backend/internal/gateway/momo"
	"feepay-backend/internal/logger"
	"feepay-backend/internal/metrics"
	"feepay-backend/internal/repository"

	"github.com/google/uuid"
)

type topUpService struct {
	store     repository.Store
	gateway   CollectionGateway
	publisher events.Publisher
	now       func() time.Time
	newRef    func() string
}

func NewTopUpService(store repository.Store, gateway CollectionGateway, publisher events.Publisher) TopUpService {
	return &topUpService{
		store:     store,
		gateway:   gateway,
		publisher: publisher,
		now:       time.Now,
		newRef:    uuid.NewString,
	}
}

func (s *topUpService) TopUp(ctx context.Context, caller domain.Identity, req TopUpRequest) (result *TopUpResult, err error) {
	logger.EnterMethod("topUpService.TopUp", "studentID", req.StudentID, "amount", req.Amount.StringFixed(2), "method", req.Method)
	start := time.Now()
	defer func() { metrics.ObserveLedger("top_up", start, err) }()

	if err := requirePositive(req.Amount); err != nil {
		logger.ExitMethodWithError("topUpService.TopUp", err)
		return nil, err
	}
	if !req.Method.Valid() {
		err := fmt.Errorf("%w: unknown payment method %q", domain.ErrInvalidInput, req.Method)
		logger.ExitMethodWithError("topUpService.TopUp", err)
		return nil, err
	}
	if req.Reference == nil || *req.Reference == "" {
		req.Reference = newReference("TOP")
	}

	err = s.store.RunInTx(ctx, func(repos repository.Repositories) error {
		if _, err := authorizeStudent(ctx, repos, caller, req.StudentID); err != nil {
			return err
		}
		wallet, err := repos.Wallets().GetByStudentIDForUpdate(ctx, req.StudentID)
		if err != nil {
			return err
		}

		before := wallet.Balance
		after := before.Add(req.Amount)
		tx := newTransaction(wallet.ID, req.Amount, domain.TransactionTypeTopUp, domain.TransactionStatusCompleted,
			req.Method, req.Reference, "Wallet top-up", before, after, s.now())
		if err := repos.Transactions().Create(ctx, tx); err != nil {
			return err
		}
		if err := repos.Wallets().UpdateBalance(ctx, wallet.ID, after); err != nil {
			return err
		}
		wallet.Balance = after
		result = &TopUpResult{Transaction: tx, Wallet: wallet}
		return nil
	})
	if err != nil {
		logger.ExitMethodWithError("topUpService.TopUp", err, "studentID", req.StudentID)
		return nil, err
	}

	publish(ctx, s.publisher, []events.Event{transactionEvent(*result.Transaction)})
	logger.LedgerEvent("top_up", result.Wallet.ID, "transactionID", result.Transaction.ID, "balance", result.Wallet.Balance.StringFixed(2))
	logger.ExitMethod("topUpService.TopUp", "transactionID", result.Transaction.ID)
	return result, nil
}

func (s *topUpService) InitiateMobileMoneyTopUp(ctx context.Context, caller domain.Identity, req MobileMoneyTopUpRequest) (*MobileMoneyTopUpResult, error) {
	logger.EnterMethod("topUpService.InitiateMobileMoneyTopUp", "studentID", caller.StudentID, "amount", req.Amount.StringFixed(2))
	start := time.Now()

	if caller.Role != domain.RoleStudent || caller.StudentID == "" {
		err := fmt.Errorf("%w: only students can top up by mobile money", domain.ErrForbidden)
		logger.ExitMethodWithError("topUpService.InitiateMobileMoneyTopUp", err)
		return nil, err
	}
	if err := requirePositive(req.Amount); err != nil {
		logger.ExitMethodWithError("topUpService.InitiateMobileMoneyTopUp", err)
		return nil, err
	}
	payer := strings.TrimSpace(req.Payer)
	if payer == "" {
		err := fmt.Errorf("%w: payer phone number is required", domain.ErrInvalidInput)
		logger.ExitMethodWithError("topUpService.InitiateMobileMoneyTopUp", err)
		return nil, err
	}

	wallet, err := s.store.Wallets().GetByStudentID(ctx, caller.StudentID)
	if err != nil {
		metrics.ObserveLedger("initiate_momo_top_up", start, err)
		logger.ExitMethodWithError("topUpService.InitiateMobileMoneyTopUp", err)
		return nil, err
	}

	// The balance is not touched until the provider confirms, so before and after are equal
	// here and get their final values when the transaction completes.
	ref := s.newRef()
	tx := newTransaction(wallet.ID, req.Amount, domain.TransactionTypeTopUp, domain.TransactionStatusPending,
		domain.PaymentMethodMomo, &ref, "MoMo Topup from "+payer, wallet.Balance, wallet.Balance, s.now())
	if err := s.store.Transactions().Create(ctx, tx); err != nil {
		metrics.ObserveLedger("initiate_momo_top_up", start, err)
		logger.ExitMethodWithError("topUpService.InitiateMobileMoneyTopUp", err)
		return nil, err
	}
	metrics.ObserveLedger("initiate_momo_top_up", start, nil)

	result := &MobileMoneyTopUpResult{Transaction: tx}
	err = s.gateway.RequestToPay(ctx, momo.PaymentRequest{
		ReferenceID:  ref,
		Amount:       req.Amount,
		ExternalID:   tx.ID,
		Payer:        momo.Party{PartyIDType: "MSISDN", PartyID: payer},
		PayerMessage: "School wallet top-up",
		PayeeNote:    "Wallet top-up " + tx.ID,
	})
	if err != nil {
		logger.Warn("Mobile money request failed, top-up left pending", "transactionID", tx.ID, "reference", ref, "error", err)
		result.GatewayError = err.Error()
	}

	logger.ExitMethod("topUpService.InitiateMobileMoneyTopUp", "transactionID", tx.ID, "reference", ref)
	return result, nil
}

func (s *topUpService) HandleGatewayCallback(ctx context.Context, update GatewayStatusUpdate) (CallbackOutcome, error) {
	logger.EnterMethod("topUpService.HandleGatewayCallback", "reference", update.Reference, "status", update.Status)

	outcome, err := s.applyStatus(ctx, update)
	if err != nil {
		metrics.ObserveCallback("webhook", metrics.Outcome(err))
		logger.ExitMethodWithError("topUpService.HandleGatewayCallback", err, "reference", update.Reference)
		return "", err
	}
	metrics.ObserveCallback("webhook", string(outcome))
	logger.ExitMethod("topUpService.HandleGatewayCallback", "reference", update.Reference, "outcome", outcome)
	return outcome, nil
}

func (s *topUpService) ReconcilePendingTopUps(ctx context.Context, olderThan time.Duration, limit int) (*ReconcileSummary, error) {
	logger.EnterMethod("topUpService.ReconcilePendingTopUps", "olderThan", olderThan.String(), "limit", limit)

	stale, err := s.store.Transactions().ListStalePending(ctx, domain.PaymentMethodMomo, s.now().Add(-olderThan), limit)
	if err != nil {
		logger.ExitMethodWithError("topUpService.ReconcilePendingTopUps", err)
		return nil, err
	}

	summary := &ReconcileSummary{}
	for _, tx := range stale {
		if ctx.Err() != nil {
			break
		}
		if tx.Reference == nil {
			continue
		}
		summary.Checked++
		ref := *tx.Reference

		update := GatewayStatusUpdate{Reference: ref}
		status, err := s.gateway.GetRequestToPayStatus(ctx, ref)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			// the provider never registered the request, typically because initiation failed
			update.Status = momo.StatusFailed
		case err != nil:
			logger.Warn("Status poll failed", "transactionID", tx.ID, "reference", ref, "error", err)
			summary.Errors++
			continue
		default:
			update.Status = status.Status
			update.FinancialTransactionID = status.FinancialTransactionID
		}

		outcome, err := s.applyStatus(ctx, update)
		if err != nil {
			logger.Warn("Failed to apply polled status", "transactionID", tx.ID, "reference", ref, "error", err)
			summary.Errors++
			continue
		}
		metrics.ObserveCallback("poll", string(outcome))
		switch outcome {
		case CallbackCompleted:
			summary.Completed++
		case CallbackFailed:
			summary.Failed++
		case CallbackStillPending:
			summary.StillPending++
		}
	}

	logger.ExitMethod("topUpService.ReconcilePendingTopUps", "checked", summary.Checked, "completed", summary.Completed,
		"failed", summary.Failed, "errors", summary.Errors)
	return summary, nil
}

// applyStatus moves a PENDING top-up to its final state. Replays of a final state and
// references this service never issued are accepted without side effects.
func (s *topUpService) applyStatus(ctx context.Context, update GatewayStatusUpdate) (outcome CallbackOutcome, err error) {
	status := strings.ToUpper(strings.TrimSpace(update.Status))
	switch status {
	case momo.StatusPending:
		return CallbackStillPending, nil
	case momo.StatusSuccessful, momo.StatusFailed:
	default:
		return "", fmt.Errorf("%w: unknown gateway status %q", domain.ErrInvalidInput, update.Status)
	}
	if update.Reference == "" {
		return "", fmt.Errorf("%w: reference is required", domain.ErrInvalidInput)
	}

	start := time.Now()
	var final *domain.LedgerTransaction
	err = s.store.RunInTx(ctx, func(repos repository.Repositories) error {
		tx, err := repos.Transactions().GetByReferenceForUpdate(ctx, update.Reference)
		if errors.Is(err, domain.ErrNotFound) {
			outcome = CallbackUnknownReference
			return nil
		}
		if err != nil {
			return err
		}
		if tx.Status.Final() {
			outcome = CallbackAlreadyFinal
			return nil
		}
		if tx.Type != domain.TransactionTypeTopUp {
			logger.Warn("Gateway status for a non top-up transaction ignored", "transactionID", tx.ID, "type", tx.Type)
			outcome = CallbackAlreadyFinal
			return nil
		}

		if status == momo.StatusFailed {
			changed, err := repos.Transactions().MarkFailed(ctx, tx.ID)
			if err != nil {
				return err
			}
			if !changed {
				outcome = CallbackAlreadyFinal
				return nil
			}
			tx.Status = domain.TransactionStatusFailed
			final, outcome = tx, CallbackFailed
			return nil
		}

		wallet, err := repos.Wallets().GetByIDForUpdate(ctx, tx.WalletID)
		if err != nil {
			return err
		}
		before := wallet.Balance
		after := before.Add(tx.Amount)
		changed, err := repos.Transactions().MarkCompleted(ctx, tx.ID, before, after)
		if err != nil {
			return err
		}
		if !changed {
			outcome = CallbackAlreadyFinal
			return nil
		}
		if err := repos.Wallets().UpdateBalance(ctx, wallet.ID, after); err != nil {
			return err
		}
		tx.Status, tx.BalanceBefore, tx.BalanceAfter = domain.TransactionStatusCompleted, before, after
		final, outcome = tx, CallbackCompleted
		return nil
	})
	if err != nil {
		metrics.ObserveLedger("apply_gateway_status", start, err)
		return "", err
	}

	switch outcome {
	case CallbackUnknownReference:
		logger.Warn("Gateway status for unknown reference", "reference", update.Reference, "status", status)
	case CallbackAlreadyFinal:
		logger.Info("Gateway status replay ignored", "reference", update.Reference, "status", status)
	case CallbackCompleted, CallbackFailed:
		metrics.ObserveLedger("apply_gateway_status", start, nil)
		publish(ctx, s.publisher, []events.Event{transactionEvent(*final)})
		logger.LedgerEvent("gateway_status", final.WalletID, "transactionID", final.ID, "status", final.Status,
			"financialTransactionID", update.FinancialTransactionID, "balance", final.BalanceAfter.StringFixed(2))
	}
	return outcome, nil
}
