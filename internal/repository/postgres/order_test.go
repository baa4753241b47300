package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoMinHoo/Du-An-Tot-Nghiep--sub000/internal/domain"
	"github.com/DoMinHoo/Du-An-Tot-Nghiep--sub000/internal/repository"
	"github.com/DoMinHoo/Du-An-Tot-Nghiep--sub000/pkg/database"
	apperrors "github.com/DoMinHoo/Du-An-Tot-Nghiep--sub000/pkg/errors"
)

// --- Test Helpers ---

func newOrderRepo(t *testing.T) (*OrderRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	return NewOrderRepository(mock), mock
}

func sampleAddress() domain.Address {
	return domain.Address{
		FullName:    "Nguyen Van A",
		Phone:       "0901234567",
		Email:       "a@example.com",
		AddressLine: "12 Le Loi",
		Ward:        "Ben Nghe",
		District:    "1",
		City:        "Ho Chi Minh",
	}
}

func sampleOrder() *domain.Order {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Order{
		ID:         "order-001",
		OrderCode:  "ORD-20260901-0001",
		AppTransID: "260901_ORD-20260901-0001",
		UserID:     "user-001",
		Items: []domain.OrderLineItem{
			{VariantID: "var-001", ProductID: "prod-001", Name: "Ao thun", Quantity: 2, UnitSalePrice: 150000},
			{VariantID: "var-002", ProductID: "prod-002", Name: "Quan jean", Quantity: 1, UnitSalePrice: 400000},
		},
		SubtotalAmount:  700000,
		DiscountAmount:  50000,
		ShippingFee:     30000,
		TotalAmount:     680000,
		PaymentMethod:   domain.PaymentMethodCOD,
		Status:          domain.OrderStatusPending,
		PaymentStatus:   domain.PaymentStatusPending,
		ShippingAddress: sampleAddress(),
		StatusHistory: []domain.StatusHistoryEntry{
			{Status: domain.OrderStatusPending, ChangedAt: now, Note: "order created"},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func orderRows(t *testing.T, extraCols ...string) *pgxmock.Rows {
	t.Helper()
	cols := []string{
		"id", "order_code", "app_trans_id", "user_id", "guest_id", "items",
		"subtotal_amount", "discount_amount", "shipping_fee", "total_amount",
		"payment_method", "status", "payment_status", "shipping_address", "promotion",
		"status_history", "gateway_txn_id", "bank_code", "paid_at", "idempotency_key",
		"created_at", "updated_at",
	}
	cols = append(cols, extraCols...)
	return pgxmock.NewRows(cols)
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func orderRowValues(o *domain.Order) []any {
	itemsJSON, _ := json.Marshal(o.Items)
	addressJSON, _ := json.Marshal(o.ShippingAddress)
	historyJSON, _ := json.Marshal(o.StatusHistory)
	var promoJSON []byte
	if o.Promotion != nil {
		promoJSON, _ = json.Marshal(o.Promotion)
	}

	// Optional columns are NULL in the database until set; mirror that here
	// so scans see what a real row delivers.
	var userID, guestID, gatewayTxnID, bankCode, idemKey *string
	if o.UserID != "" {
		userID = &o.UserID
	}
	if o.GuestID != "" {
		guestID = &o.GuestID
	}
	if o.GatewayTxnID != "" {
		gatewayTxnID = &o.GatewayTxnID
	}
	if o.BankCode != "" {
		bankCode = &o.BankCode
	}
	if o.IdempotencyKey != "" {
		idemKey = &o.IdempotencyKey
	}

	return []any{
		o.ID, o.OrderCode, o.AppTransID, userID, guestID, itemsJSON,
		o.SubtotalAmount, o.DiscountAmount, o.ShippingFee, o.TotalAmount,
		o.PaymentMethod, o.Status, o.PaymentStatus, addressJSON, promoJSON,
		historyJSON, gatewayTxnID, bankCode, o.PaidAt, idemKey,
		o.CreatedAt, o.UpdatedAt,
	}
}

// --- Create Tests ---

func TestOrderRepository_Create_Success(t *testing.T) {
	repo, mock := newOrderRepo(t)

	o := sampleOrder()

	mock.ExpectExec("INSERT INTO orders").
		WithArgs(
			o.ID, o.OrderCode, o.AppTransID,
			pgxmock.AnyArg(), pgxmock.AnyArg(), // user_id, guest_id
			pgxmock.AnyArg(), // items JSON
			o.SubtotalAmount, o.DiscountAmount, o.ShippingFee, o.TotalAmount,
			o.PaymentMethod, o.Status, o.PaymentStatus,
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), // address, promotion, history
			pgxmock.AnyArg(), // idempotency key
			o.CreatedAt, o.UpdatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.Create(context.Background(), o)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_Create_DuplicateOrderCode(t *testing.T) {
	repo, mock := newOrderRepo(t)

	mock.ExpectExec("INSERT INTO orders").
		WithArgs(
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnError(errors.New("ERROR: duplicate key value violates unique constraint (SQLSTATE 23505)"))

	err := repo.Create(context.Background(), sampleOrder())
	assert.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrAlreadyExists))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// --- Get Tests ---

func TestOrderRepository_GetByID_Success(t *testing.T) {
	repo, mock := newOrderRepo(t)

	o := sampleOrder()
	rows := orderRows(t).AddRow(orderRowValues(o)...)

	mock.ExpectQuery("SELECT (.+) FROM orders WHERE id =").
		WithArgs(o.ID).
		WillReturnRows(rows)

	got, err := repo.GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.OrderCode, got.OrderCode)
	assert.Equal(t, o.UserID, got.UserID)
	assert.Empty(t, got.GuestID)
	assert.Len(t, got.Items, 2)
	assert.Equal(t, o.ShippingAddress, got.ShippingAddress)
	assert.Len(t, got.StatusHistory, 1)
	assert.Nil(t, got.Promotion)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_GetByID_NullGatewayColumns(t *testing.T) {
	repo, mock := newOrderRepo(t)

	// A freshly created order has NULL gateway_txn_id, bank_code, paid_at
	// and idempotency_key; the scan must tolerate all of them.
	o := sampleOrder()
	rows := orderRows(t).AddRow(
		o.ID, o.OrderCode, o.AppTransID, &o.UserID, nil, mustJSON(t, o.Items),
		o.SubtotalAmount, o.DiscountAmount, o.ShippingFee, o.TotalAmount,
		o.PaymentMethod, o.Status, o.PaymentStatus,
		mustJSON(t, o.ShippingAddress), nil, mustJSON(t, o.StatusHistory),
		nil, nil, nil, nil,
		o.CreatedAt, o.UpdatedAt,
	)

	mock.ExpectQuery("SELECT (.+) FROM orders WHERE id =").
		WithArgs(o.ID).
		WillReturnRows(rows)

	got, err := repo.GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Empty(t, got.GatewayTxnID)
	assert.Empty(t, got.BankCode)
	assert.Nil(t, got.PaidAt)
	assert.Empty(t, got.IdempotencyKey)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_GetByID_NotFound(t *testing.T) {
	repo, mock := newOrderRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM orders WHERE id =").
		WithArgs("missing").
		WillReturnRows(orderRows(t))

	got, err := repo.GetByID(context.Background(), "missing")
	assert.Nil(t, got)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_GetByOrderCode_WithPromotion(t *testing.T) {
	repo, mock := newOrderRepo(t)

	o := sampleOrder()
	o.Promotion = &domain.PromotionSnapshot{
		PromotionID:   "promo-1",
		Code:          "SAVE10",
		DiscountType:  domain.DiscountTypePercentage,
		DiscountValue: 10,
		MaxDiscount:   50000,
	}
	rows := orderRows(t).AddRow(orderRowValues(o)...)

	mock.ExpectQuery("SELECT (.+) FROM orders WHERE order_code =").
		WithArgs(o.OrderCode).
		WillReturnRows(rows)

	got, err := repo.GetByOrderCode(context.Background(), o.OrderCode)
	require.NoError(t, err)
	require.NotNil(t, got.Promotion)
	assert.Equal(t, "SAVE10", got.Promotion.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_GetByIdempotencyKey_Found(t *testing.T) {
	repo, mock := newOrderRepo(t)

	o := sampleOrder()
	o.IdempotencyKey = "idem-123"
	rows := orderRows(t).AddRow(orderRowValues(o)...)

	mock.ExpectQuery("SELECT (.+) FROM orders WHERE idempotency_key =").
		WithArgs("idem-123").
		WillReturnRows(rows)

	got, err := repo.GetByIdempotencyKey(context.Background(), "idem-123")
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// --- TransitionStatus Tests ---

func TestOrderRepository_TransitionStatus_Success(t *testing.T) {
	repo, mock := newOrderRepo(t)

	entry := domain.StatusHistoryEntry{Status: domain.OrderStatusConfirmed, ChangedAt: time.Now().UTC()}

	mock.ExpectExec("UPDATE orders").
		WithArgs(domain.OrderStatusConfirmed, "", pgxmock.AnyArg(), pgxmock.AnyArg(), "order-001", domain.OrderStatusPending, domain.PaymentStatusPending).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.TransitionStatus(context.Background(), "order-001", domain.OrderStatusPending, domain.OrderStatusConfirmed, domain.PaymentStatusPending, entry, "")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_TransitionStatus_Stale(t *testing.T) {
	repo, mock := newOrderRepo(t)

	entry := domain.StatusHistoryEntry{Status: domain.OrderStatusConfirmed, ChangedAt: time.Now().UTC()}

	mock.ExpectExec("UPDATE orders").
		WithArgs(domain.OrderStatusConfirmed, "", pgxmock.AnyArg(), pgxmock.AnyArg(), "order-001", domain.OrderStatusPending, domain.PaymentStatusPending).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("order-001").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	err := repo.TransitionStatus(context.Background(), "order-001", domain.OrderStatusPending, domain.OrderStatusConfirmed, domain.PaymentStatusPending, entry, "")
	assert.ErrorIs(t, err, domain.ErrStaleState)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_TransitionStatus_StalePaymentStatus(t *testing.T) {
	repo, mock := newOrderRepo(t)

	entry := domain.StatusHistoryEntry{Status: domain.OrderStatusCanceled, ChangedAt: time.Now().UTC()}

	// A gateway callback moved payment_status after the caller's read; the
	// pinned WHERE clause matches zero rows and the caller must re-decide.
	mock.ExpectExec("UPDATE orders").
		WithArgs(domain.OrderStatusCanceled, "", pgxmock.AnyArg(), pgxmock.AnyArg(), "order-001", domain.OrderStatusConfirmed, domain.PaymentStatusPending).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("order-001").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	err := repo.TransitionStatus(context.Background(), "order-001", domain.OrderStatusConfirmed, domain.OrderStatusCanceled, domain.PaymentStatusPending, entry, "")
	assert.ErrorIs(t, err, domain.ErrStaleState)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_TransitionStatus_NotFound(t *testing.T) {
	repo, mock := newOrderRepo(t)

	entry := domain.StatusHistoryEntry{Status: domain.OrderStatusConfirmed, ChangedAt: time.Now().UTC()}

	mock.ExpectExec("UPDATE orders").
		WithArgs(domain.OrderStatusConfirmed, "", pgxmock.AnyArg(), pgxmock.AnyArg(), "missing", domain.OrderStatusPending, domain.PaymentStatusPending).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

	err := repo.TransitionStatus(context.Background(), "missing", domain.OrderStatusPending, domain.OrderStatusConfirmed, domain.PaymentStatusPending, entry, "")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// --- UpdatePaymentStatus Tests ---

func TestOrderRepository_UpdatePaymentStatus_Success(t *testing.T) {
	repo, mock := newOrderRepo(t)

	paidAt := time.Now().UTC()
	gw := &repository.GatewayResult{TransactionNo: "14581253", BankCode: "NCB", PaidAt: &paidAt}
	entry := &domain.StatusHistoryEntry{Status: domain.OrderStatusPending, ChangedAt: paidAt, Note: "payment confirmed by gateway"}

	mock.ExpectExec("UPDATE orders").
		WithArgs(domain.PaymentStatusCompleted, "14581253", "NCB", &paidAt, pgxmock.AnyArg(), pgxmock.AnyArg(), "order-001", domain.PaymentStatusPending).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.UpdatePaymentStatus(context.Background(), "order-001", domain.PaymentStatusPending, domain.PaymentStatusCompleted, entry, gw)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_UpdatePaymentStatus_Stale(t *testing.T) {
	repo, mock := newOrderRepo(t)

	mock.ExpectExec("UPDATE orders").
		WithArgs(domain.PaymentStatusCompleted, "", "", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), "order-001", domain.PaymentStatusPending).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("order-001").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	err := repo.UpdatePaymentStatus(context.Background(), "order-001", domain.PaymentStatusPending, domain.PaymentStatusCompleted, nil, nil)
	assert.ErrorIs(t, err, domain.ErrStaleState)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// --- Delete Tests ---

func TestOrderRepository_Delete_Success(t *testing.T) {
	repo, mock := newOrderRepo(t)

	mock.ExpectExec("DELETE FROM orders").
		WithArgs("order-001", domain.OrderStatusCompleted).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	err := repo.Delete(context.Background(), "order-001")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_Delete_CompletedOrderConflict(t *testing.T) {
	repo, mock := newOrderRepo(t)

	mock.ExpectExec("DELETE FROM orders").
		WithArgs("order-001", domain.OrderStatusCompleted).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("order-001").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	err := repo.Delete(context.Background(), "order-001")
	assert.True(t, errors.Is(err, apperrors.ErrConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// --- List Tests ---

func TestOrderRepository_List_ByUserAndStatus(t *testing.T) {
	repo, mock := newOrderRepo(t)

	o := sampleOrder()
	rows := orderRows(t, "total_count").AddRow(append(orderRowValues(o), 1)...)

	userID := "user-001"
	status := domain.OrderStatusPending
	mock.ExpectQuery("SELECT (.+) FROM orders").
		WithArgs(userID, status, 20, 0).
		WillReturnRows(rows)

	orders, total, err := repo.List(context.Background(), repository.OrderFilter{
		UserID: &userID,
		Status: &status,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, orders, 1)
	assert.Equal(t, o.OrderCode, orders[0].OrderCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_List_Empty(t *testing.T) {
	repo, mock := newOrderRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM orders").
		WithArgs(20, 0).
		WillReturnRows(orderRows(t, "total_count"))

	orders, total, err := repo.List(context.Background(), repository.OrderFilter{})
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.Empty(t, orders)
	assert.NoError(t, mock.ExpectationsWereMet())
}
