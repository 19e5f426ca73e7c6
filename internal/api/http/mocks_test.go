package http

import (
	"context"
	"time"

	"feepay-backend/internal/domain"
	"feepay-backend/internal/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type MockSettlementService struct{ mock.Mock }

func (m *MockSettlementService) SettlePayment(ctx context.Context, caller domain.Identity, req service.SettlementRequest) (*service.SettlementResult, error) {
	args := m.Called(ctx, caller, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SettlementResult), args.Error(1)
}

type MockTopUpService struct{ mock.Mock }

func (m *MockTopUpService) TopUp(ctx context.Context, caller domain.Identity, req service.TopUpRequest) (*service.TopUpResult, error) {
	args := m.Called(ctx, caller, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.TopUpResult), args.Error(1)
}

func (m *MockTopUpService) InitiateMobileMoneyTopUp(ctx context.Context, caller domain.Identity, req service.MobileMoneyTopUpRequest) (*service.MobileMoneyTopUpResult, error) {
	args := m.Called(ctx, caller, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.MobileMoneyTopUpResult), args.Error(1)
}

func (m *MockTopUpService) HandleGatewayCallback(ctx context.Context, update service.GatewayStatusUpdate) (service.CallbackOutcome, error) {
	args := m.Called(ctx, update)
	return args.Get(0).(service.CallbackOutcome), args.Error(1)
}

func (m *MockTopUpService) ReconcilePendingTopUps(ctx context.Context, olderThan time.Duration, limit int) (*service.ReconcileSummary, error) {
	args := m.Called(ctx, olderThan, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ReconcileSummary), args.Error(1)
}

type MockWalletService struct{ mock.Mock }

func (m *MockWalletService) PayFromWallet(ctx context.Context, caller domain.Identity, invoiceID string, amount decimal.Decimal) (*domain.Invoice, error) {
	args := m.Called(ctx, caller, invoiceID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Invoice), args.Error(1)
}

func (m *MockWalletService) GetWallet(ctx context.Context, caller domain.Identity, studentID string) (*domain.WalletView, error) {
	args := m.Called(ctx, caller, studentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.WalletView), args.Error(1)
}

func (m *MockWalletService) GetInvoice(ctx context.Context, caller domain.Identity, invoiceID string) (*domain.Invoice, error) {
	args := m.Called(ctx, caller, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Invoice), args.Error(1)
}

func (m *MockWalletService) ListTransactions(ctx context.Context, caller domain.Identity, query service.TransactionQuery) ([]domain.LedgerTransaction, int, error) {
	args := m.Called(ctx, caller, query)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.LedgerTransaction), args.Int(1), args.Error(2)
}

type MockFeeService struct{ mock.Mock }

func (m *MockFeeService) BroadcastFee(ctx context.Context, caller domain.Identity, target string, details service.FeeDetails) (*service.BroadcastResult, error) {
	args := m.Called(ctx, caller, target, details)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.BroadcastResult), args.Error(1)
}

func (m *MockFeeService) UpdateFee(ctx context.Context, caller domain.Identity, feeID string, details service.FeeDetails) (*domain.FeeStructure, error) {
	args := m.Called(ctx, caller, feeID, details)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FeeStructure), args.Error(1)
}

type MockDeletionService struct{ mock.Mock }

func (m *MockDeletionService) DeleteFee(ctx context.Context, caller domain.Identity, feeID, reason string) (*service.DeletionOutcome, error) {
	args := m.Called(ctx, caller, feeID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DeletionOutcome), args.Error(1)
}

func (m *MockDeletionService) DeleteStudent(ctx context.Context, caller domain.Identity, studentID, reason string) (*service.DeletionOutcome, error) {
	args := m.Called(ctx, caller, studentID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DeletionOutcome), args.Error(1)
}

func (m *MockDeletionService) ListPending(ctx context.Context, caller domain.Identity) ([]domain.DeletionRequest, error) {
	args := m.Called(ctx, caller)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.DeletionRequest), args.Error(1)
}

func (m *MockDeletionService) Approve(ctx context.Context, caller domain.Identity, requestID string) (*domain.DeletionRequest, error) {
	args := m.Called(ctx, caller, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DeletionRequest), args.Error(1)
}

func (m *MockDeletionService) Reject(ctx context.Context, caller domain.Identity, requestID string) (*domain.DeletionRequest, error) {
	args := m.Called(ctx, caller, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DeletionRequest), args.Error(1)
}
