package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/DoMinHoo/Du-An-Tot-Nghiep--sub000/internal/domain"
	"github.com/DoMinHoo/Du-An-Tot-Nghiep--sub000/internal/repository"
	"github.com/DoMinHoo/Du-An-Tot-Nghiep--sub000/pkg/database"
	apperrors "github.com/DoMinHoo/Du-An-Tot-Nghiep--sub000/pkg/errors"
)

const orderColumns = `id, order_code, app_trans_id, user_id, guest_id, items,
	subtotal_amount, discount_amount, shipping_fee, total_amount,
	payment_method, status, payment_status, shipping_address, promotion,
	status_history, gateway_txn_id, bank_code, paid_at, idempotency_key,
	created_at, updated_at`

// OrderRepository implements repository.OrderRepository using PostgreSQL.
// Line items, the shipping address, the promotion snapshot and the status
// history are stored as JSONB columns on the orders row so an order is one
// self-contained record.
type OrderRepository struct {
	pool database.DBTX
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool database.DBTX) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create inserts a new order with its embedded documents.
func (r *OrderRepository) Create(ctx context.Context, o *domain.Order) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshal order items: %w", err)
	}
	addressJSON, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshal shipping address: %w", err)
	}
	historyJSON, err := json.Marshal(o.StatusHistory)
	if err != nil {
		return fmt.Errorf("marshal status history: %w", err)
	}
	var promoJSON []byte
	if o.Promotion != nil {
		promoJSON, err = json.Marshal(o.Promotion)
		if err != nil {
			return fmt.Errorf("marshal promotion snapshot: %w", err)
		}
	}

	query := `
		INSERT INTO orders (id, order_code, app_trans_id, user_id, guest_id, items,
			subtotal_amount, discount_amount, shipping_fee, total_amount,
			payment_method, status, payment_status, shipping_address, promotion,
			status_history, idempotency_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

	_, err = r.pool.Exec(ctx, query,
		o.ID,
		o.OrderCode,
		o.AppTransID,
		nullIfEmpty(o.UserID),
		nullIfEmpty(o.GuestID),
		itemsJSON,
		o.SubtotalAmount,
		o.DiscountAmount,
		o.ShippingFee,
		o.TotalAmount,
		o.PaymentMethod,
		o.Status,
		o.PaymentStatus,
		addressJSON,
		promoJSON,
		historyJSON,
		nullIfEmpty(o.IdempotencyKey),
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("order", "order_code", o.OrderCode)
		}
		return fmt.Errorf("insert order: %w", err)
	}

	return nil
}

// GetByID retrieves an order by its ID.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return r.getByField(ctx, "id", id)
}

// GetByOrderCode retrieves an order by its human-facing code.
func (r *OrderRepository) GetByOrderCode(ctx context.Context, code string) (*domain.Order, error) {
	return r.getByField(ctx, "order_code", code)
}

// GetByAppTransID retrieves an order by its gateway correlation token.
func (r *OrderRepository) GetByAppTransID(ctx context.Context, appTransID string) (*domain.Order, error) {
	return r.getByField(ctx, "app_trans_id", appTransID)
}

// GetByIdempotencyKey retrieves an order by the client idempotency key it was
// created with.
func (r *OrderRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Order, error) {
	return r.getByField(ctx, "idempotency_key", key)
}

func (r *OrderRepository) getByField(ctx context.Context, field, value string) (*domain.Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE %s = $1`, orderColumns, field)
	row := r.pool.QueryRow(ctx, query, value)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("order", value)
		}
		return nil, err
	}
	return o, nil
}

// List returns orders matching the given filter with the total count.
func (r *OrderRepository) List(ctx context.Context, filter repository.OrderFilter) ([]domain.Order, int, error) {
	var (
		conditions []string
		args       []any
		argIndex   = 1
	)

	if filter.UserID != nil {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", argIndex))
		args = append(args, *filter.UserID)
		argIndex++
	}
	if filter.GuestID != nil {
		conditions = append(conditions, fmt.Sprintf("guest_id = $%d", argIndex))
		args = append(args, *filter.GuestID)
		argIndex++
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, *filter.Status)
		argIndex++
	}
	if filter.PaymentStatus != nil {
		conditions = append(conditions, fmt.Sprintf("payment_status = $%d", argIndex))
		args = append(args, *filter.PaymentStatus)
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	// Use count(*) OVER() for total count in a single query.
	query := fmt.Sprintf(`
		SELECT %s, count(*) OVER() AS total_count
		FROM orders
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		orderColumns, whereClause, argIndex, argIndex+1,
	)

	limit := filter.PerPage
	if limit <= 0 {
		limit = 20
	}
	offset := 0
	if filter.Page > 1 {
		offset = (filter.Page - 1) * limit
	}
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var totalCount int
	orders := make([]domain.Order, 0)

	for rows.Next() {
		o, count, err := scanOrderWithCount(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan order row: %w", err)
		}
		totalCount = count
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate order rows: %w", err)
	}

	return orders, totalCount, nil
}

// TransitionStatus applies a conditional status transition. The WHERE clause
// pins both the current status and the current payment status, so a
// concurrent transition or callback delivery makes this a zero-row update
// instead of a lost one.
func (r *OrderRepository) TransitionStatus(ctx context.Context, id, fromStatus, toStatus, fromPaymentStatus string, entry domain.StatusHistoryEntry, newPaymentStatus string) error {
	entryJSON, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal history entry: %w", err)
	}

	query := `
		UPDATE orders
		SET status = $1,
			payment_status = CASE WHEN $2 <> '' THEN $2 ELSE payment_status END,
			status_history = status_history || $3::jsonb,
			updated_at = $4
		WHERE id = $5 AND status = $6 AND payment_status = $7`

	ct, err := r.pool.Exec(ctx, query, toStatus, newPaymentStatus, entryJSON, time.Now().UTC(), id, fromStatus, fromPaymentStatus)
	if err != nil {
		return fmt.Errorf("transition order status: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return r.zeroRowsError(ctx, id)
	}
	return nil
}

// UpdatePaymentStatus applies a conditional payment-status update, optionally
// appending a history entry and recording gateway correlation fields. The
// history append rides in the same statement so a duplicate callback can
// never append twice.
func (r *OrderRepository) UpdatePaymentStatus(ctx context.Context, id, fromPaymentStatus, toPaymentStatus string, entry *domain.StatusHistoryEntry, gw *repository.GatewayResult) error {
	var (
		txnNo    string
		bankCode string
		paidAt   *time.Time
	)
	if gw != nil {
		txnNo = gw.TransactionNo
		bankCode = gw.BankCode
		paidAt = gw.PaidAt
	}

	var entryJSON []byte
	if entry != nil {
		var err error
		entryJSON, err = json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("marshal history entry: %w", err)
		}
	}

	query := `
		UPDATE orders
		SET payment_status = $1,
			gateway_txn_id = CASE WHEN $2 <> '' THEN $2 ELSE gateway_txn_id END,
			bank_code = CASE WHEN $3 <> '' THEN $3 ELSE bank_code END,
			paid_at = COALESCE($4, paid_at),
			status_history = CASE WHEN $5::jsonb IS NOT NULL THEN status_history || $5::jsonb ELSE status_history END,
			updated_at = $6
		WHERE id = $7 AND payment_status = $8`

	ct, err := r.pool.Exec(ctx, query, toPaymentStatus, txnNo, bankCode, paidAt, entryJSON, time.Now().UTC(), id, fromPaymentStatus)
	if err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return r.zeroRowsError(ctx, id)
	}
	return nil
}

// Delete removes an order unless it is completed.
func (r *OrderRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM orders WHERE id = $1 AND status <> $2`

	ct, err := r.pool.Exec(ctx, query, id, domain.OrderStatusCompleted)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}

	if ct.RowsAffected() == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("check order existence: %w", err)
		}
		if exists {
			return apperrors.Conflict("completed orders cannot be deleted")
		}
		return apperrors.NotFound("order", id)
	}
	return nil
}

// zeroRowsError distinguishes a missing order from a concurrent modification
// after a conditional update matched nothing.
func (r *OrderRepository) zeroRowsError(ctx context.Context, id string) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check order existence: %w", err)
	}
	if exists {
		return domain.ErrStaleState
	}
	return apperrors.NotFound("order", id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	o, _, err := scanOrderInto(row, false)
	return o, err
}

func scanOrderWithCount(row rowScanner) (*domain.Order, int, error) {
	return scanOrderInto(row, true)
}

func scanOrderInto(row rowScanner, withCount bool) (*domain.Order, int, error) {
	var (
		o              domain.Order
		userID         *string
		guestID        *string
		gatewayTxnID   *string
		bankCode       *string
		idempotencyKey *string
		itemsJSON      []byte
		addressJSON    []byte
		promoJSON      []byte
		historyJSON    []byte
		totalCount     int
	)

	dest := []any{
		&o.ID, &o.OrderCode, &o.AppTransID, &userID, &guestID, &itemsJSON,
		&o.SubtotalAmount, &o.DiscountAmount, &o.ShippingFee, &o.TotalAmount,
		&o.PaymentMethod, &o.Status, &o.PaymentStatus, &addressJSON, &promoJSON,
		&historyJSON, &gatewayTxnID, &bankCode, &o.PaidAt, &idempotencyKey,
		&o.CreatedAt, &o.UpdatedAt,
	}
	if withCount {
		dest = append(dest, &totalCount)
	}

	if err := row.Scan(dest...); err != nil {
		return nil, 0, err
	}

	if userID != nil {
		o.UserID = *userID
	}
	if guestID != nil {
		o.GuestID = *guestID
	}
	if gatewayTxnID != nil {
		o.GatewayTxnID = *gatewayTxnID
	}
	if bankCode != nil {
		o.BankCode = *bankCode
	}
	if idempotencyKey != nil {
		o.IdempotencyKey = *idempotencyKey
	}

	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return nil, 0, fmt.Errorf("unmarshal order items: %w", err)
	}
	if err := json.Unmarshal(addressJSON, &o.ShippingAddress); err != nil {
		return nil, 0, fmt.Errorf("unmarshal shipping address: %w", err)
	}
	if err := json.Unmarshal(historyJSON, &o.StatusHistory); err != nil {
		return nil, 0, fmt.Errorf("unmarshal status history: %w", err)
	}
	if len(promoJSON) > 0 && string(promoJSON) != "null" {
		var snap domain.PromotionSnapshot
		if err := json.Unmarshal(promoJSON, &snap); err != nil {
			return nil, 0, fmt.Errorf("unmarshal promotion snapshot: %w", err)
		}
		o.Promotion = &snap
	}

	return &o, totalCount, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// isUniqueViolation checks if the error is a PostgreSQL unique constraint violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
