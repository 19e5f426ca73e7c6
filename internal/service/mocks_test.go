package service_test

import (
	"context"

	"feepay-backend/internal/events"
	"feepay-backend/internal/gateway/momo"

	"github.com/stretchr/testify/mock"
)

// MockGateway
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) RequestToPay(ctx context.Context, req momo.PaymentRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *MockGateway) GetRequestToPayStatus(ctx context.Context, referenceID string) (*momo.PaymentStatus, error) {
	args := m.Called(ctx, referenceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*momo.PaymentStatus), args.Error(1)
}

// MockPublisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, evs ...events.Event) error {
	args := m.Called(ctx, evs)
	return args.Error(0)
}

func (m *MockPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}
