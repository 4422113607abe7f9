package service

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/iliyamo/button-game/internal/payment"
	"github.com/iliyamo/button-game/internal/queue"
)

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateCheckoutSession(ctx context.Context, req payment.CheckoutRequest) (payment.CheckoutSession, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(payment.CheckoutSession), args.Error(1)
}

func (m *MockGateway) GetCheckoutSession(ctx context.Context, id string) (payment.CheckoutSession, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(payment.CheckoutSession), args.Error(1)
}

func (m *MockGateway) ConstructEvent(payload []byte, sig string) (payment.Event, error) {
	args := m.Called(payload, sig)
	return args.Get(0).(payment.Event), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishPremiumActivated(ctx context.Context, ev queue.PremiumActivatedEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}
