package service

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/DoMinHoo/Du-An-Tot-Nghiep--sub000/internal/domain"
	"github.com/DoMinHoo/Du-An-Tot-Nghiep--sub000/internal/event"
	"github.com/DoMinHoo/Du-An-Tot-Nghiep--sub000/internal/repository"
)

// --- Mock Repositories ---

type mockOrderRepository struct {
	mock.Mock
}

func (m *mockOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *mockOrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrderRepository) GetByOrderCode(ctx context.Context, code string) (*domain.Order, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrderRepository) GetByAppTransID(ctx context.Context, appTransID string) (*domain.Order, error) {
	args := m.Called(ctx, appTransID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrderRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Order, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrderRepository) List(ctx context.Context, filter repository.OrderFilter) ([]domain.Order, int, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.Order), args.Int(1), args.Error(2)
}

func (m *mockOrderRepository) TransitionStatus(ctx context.Context, id, fromStatus, toStatus, fromPaymentStatus string, entry domain.StatusHistoryEntry, newPaymentStatus string) error {
	args := m.Called(ctx, id, fromStatus, toStatus, fromPaymentStatus, entry, newPaymentStatus)
	return args.Error(0)
}

func (m *mockOrderRepository) UpdatePaymentStatus(ctx context.Context, id, fromPaymentStatus, toPaymentStatus string, entry *domain.StatusHistoryEntry, gw *repository.GatewayResult) error {
	args := m.Called(ctx, id, fromPaymentStatus, toPaymentStatus, entry, gw)
	return args.Error(0)
}

func (m *mockOrderRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockInventoryRepository struct {
	mock.Mock
}

func (m *mockInventoryRepository) Reserve(ctx context.Context, variantID string, qty int) error {
	args := m.Called(ctx, variantID, qty)
	return args.Error(0)
}

func (m *mockInventoryRepository) Release(ctx context.Context, variantID string, qty int) error {
	args := m.Called(ctx, variantID, qty)
	return args.Error(0)
}

func (m *mockInventoryRepository) IncrementPurchaseCount(ctx context.Context, variantID string, qty int) error {
	args := m.Called(ctx, variantID, qty)
	return args.Error(0)
}

type mockVariantRepository struct {
	mock.Mock
}

func (m *mockVariantRepository) GetByID(ctx context.Context, id string) (*domain.Variant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Variant), args.Error(1)
}

func (m *mockVariantRepository) GetByIDs(ctx context.Context, ids []string) (map[string]domain.Variant, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]domain.Variant), args.Error(1)
}

type mockPromotionRepository struct {
	mock.Mock
}

func (m *mockPromotionRepository) GetByCode(ctx context.Context, code string) (*domain.Promotion, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Promotion), args.Error(1)
}

func (m *mockPromotionRepository) Redeem(ctx context.Context, promotionID, orderCode string) error {
	args := m.Called(ctx, promotionID, orderCode)
	return args.Error(0)
}

func (m *mockPromotionRepository) ReleaseRedemption(ctx context.Context, promotionID, orderCode string) error {
	args := m.Called(ctx, promotionID, orderCode)
	return args.Error(0)
}

type mockCartRepository struct {
	mock.Mock
}

func (m *mockCartRepository) Get(ctx context.Context, owner domain.Identity) (*domain.Cart, error) {
	args := m.Called(ctx, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Cart), args.Error(1)
}

func (m *mockCartRepository) Save(ctx context.Context, owner domain.Identity, cart *domain.Cart) error {
	args := m.Called(ctx, owner, cart)
	return args.Error(0)
}

func (m *mockCartRepository) SaveIfVersion(ctx context.Context, owner domain.Identity, cart *domain.Cart, expectedVersion int64) error {
	args := m.Called(ctx, owner, cart, expectedVersion)
	return args.Error(0)
}

func (m *mockCartRepository) Delete(ctx context.Context, owner domain.Identity) error {
	args := m.Called(ctx, owner)
	return args.Error(0)
}

type mockNotificationRepository struct {
	mock.Mock
}

func (m *mockNotificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

// mockDispatcher records every dispatched event for assertions.
type mockDispatcher struct {
	events []event.DomainEvent
}

func (m *mockDispatcher) Dispatch(_ context.Context, events []event.DomainEvent) {
	m.events = append(m.events, events...)
}

func (m *mockDispatcher) eventTypes() []string {
	types := make([]string, 0, len(m.events))
	for _, e := range m.events {
		types = append(types, e.Type)
	}
	return types
}

// --- Test Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func strPtr(s string) *string {
	return &s
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func farFuture() time.Time {
	return time.Now().Add(365 * 24 * time.Hour)
}
