package service

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/iliyamo/event-ticket-booking/internal/model"
	"github.com/iliyamo/event-ticket-booking/internal/payment"
)

type mockLocker struct{ mock.Mock }

func (m *mockLocker) Acquire(ctx context.Context, eventID uint64, eventSeatIDs []uint64, holderID string) error {
	return m.Called(ctx, eventID, eventSeatIDs, holderID).Error(0)
}

func (m *mockLocker) Release(ctx context.Context, eventID uint64, eventSeatIDs []uint64) error {
	return m.Called(ctx, eventID, eventSeatIDs).Error(0)
}

type mockBookingStore struct{ mock.Mock }

func (m *mockBookingStore) ReconcileStaleHolds(ctx context.Context, eventSeatIDs []uint64) error {
	return m.Called(ctx, eventSeatIDs).Error(0)
}

func (m *mockBookingStore) CreateBookingIfAvailable(ctx context.Context, eventID uint64, eventSeatIDs []uint64, userID uint64, pricePerSeatCents uint64, holdWindow time.Duration) (*model.Booking, error) {
	args := m.Called(ctx, eventID, eventSeatIDs, userID, pricePerSeatCents, holdWindow)
	if b := args.Get(0); b != nil {
		return b.(*model.Booking), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockBookingStore) GetByID(ctx context.Context, bookingID uint64) (*model.Booking, error) {
	args := m.Called(ctx, bookingID)
	if b := args.Get(0); b != nil {
		return b.(*model.Booking), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockBookingStore) SeatIDs(ctx context.Context, bookingID uint64) ([]uint64, error) {
	args := m.Called(ctx, bookingID)
	if ids := args.Get(0); ids != nil {
		return ids.([]uint64), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockBookingStore) FreeBooking(ctx context.Context, bookingID uint64, terminalStatus string) ([]uint64, error) {
	args := m.Called(ctx, bookingID, terminalStatus)
	if ids := args.Get(0); ids != nil {
		return ids.([]uint64), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockBookingStore) ConfirmBookingWithPayment(ctx context.Context, bookingID, paymentID uint64, gatewayPaymentID string) error {
	return m.Called(ctx, bookingID, paymentID, gatewayPaymentID).Error(0)
}

func (m *mockBookingStore) CancelBookingWithPayment(ctx context.Context, bookingID, paymentID uint64, paymentStatus string) ([]uint64, error) {
	args := m.Called(ctx, bookingID, paymentID, paymentStatus)
	if ids := args.Get(0); ids != nil {
		return ids.([]uint64), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockPaymentStore struct{ mock.Mock }

func (m *mockPaymentStore) Create(ctx context.Context, p *model.Payment) error {
	return m.Called(ctx, p).Error(0)
}

func (m *mockPaymentStore) GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*model.Payment, error) {
	args := m.Called(ctx, gatewayOrderID)
	if p := args.Get(0); p != nil {
		return p.(*model.Payment), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockPaymentStore) GetByBookingID(ctx context.Context, bookingID uint64) (*model.Payment, error) {
	args := m.Called(ctx, bookingID)
	if p := args.Get(0); p != nil {
		return p.(*model.Payment), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockGateway struct{ mock.Mock }

func (m *mockGateway) CreateOrder(ctx context.Context, amountCents int64, receipt string) (*payment.Order, error) {
	args := m.Called(ctx, amountCents, receipt)
	if o := args.Get(0); o != nil {
		return o.(*payment.Order), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockGateway) Refund(ctx context.Context, gatewayPaymentID string, amountCents int64) (*payment.Refund, error) {
	args := m.Called(ctx, gatewayPaymentID, amountCents)
	if r := args.Get(0); r != nil {
		return r.(*payment.Refund), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) BookingConfirmed(ctx context.Context, bookingID uint64) {
	m.Called(ctx, bookingID)
}
