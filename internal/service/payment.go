package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/DoMinHoo/Du-An-Tot-Nghiep--sub000/internal/domain"
	"github.com/DoMinHoo/Du-An-Tot-Nghiep--sub000/internal/event"
	"github.com/DoMinHoo/Du-An-Tot-Nghiep--sub000/internal/gateway"
	"github.com/DoMinHoo/Du-An-Tot-Nghiep--sub000/internal/repository"
	apperrors "github.com/DoMinHoo/Du-An-Tot-Nghiep--sub000/pkg/errors"
)

// PaymentGateway abstracts the hosted payment page integration.
type PaymentGateway interface {
	BuildPaymentURL(req gateway.PaymentRequest) (string, error)
	VerifyCallback(values url.Values) (*gateway.Callback, error)
}

// PaymentService creates gateway payment sessions and reconciles their
// asynchronous callbacks against orders.
type PaymentService struct {
	orders        repository.OrderRepository
	notifications repository.NotificationRepository
	gateway       PaymentGateway
	dispatcher    EventDispatcher
	logger        *slog.Logger
	expiry        time.Duration
	now           func() time.Time
}

// NewPaymentService creates a new payment service. expiry bounds how long a
// generated payment URL stays valid at the gateway.
func NewPaymentService(
	orders repository.OrderRepository,
	notifications repository.NotificationRepository,
	gw PaymentGateway,
	dispatcher EventDispatcher,
	expiry time.Duration,
	logger *slog.Logger,
) *PaymentService {
	return &PaymentService{
		orders:        orders,
		notifications: notifications,
		gateway:       gw,
		dispatcher:    dispatcher,
		logger:        logger,
		expiry:        expiry,
		now:           time.Now,
	}
}

// CreatePayment builds a signed payment URL for a pending gateway order.
func (s *PaymentService) CreatePayment(ctx context.Context, orderCode, clientIP string) (string, error) {
	order, err := s.orders.GetByOrderCode(ctx, orderCode)
	if err != nil {
		return "", fmt.Errorf("get order for payment: %w", err)
	}
	if order.PaymentMethod != domain.PaymentMethodGateway {
		return "", apperrors.InvalidInput(fmt.Sprintf("order %s does not use gateway payment", orderCode))
	}
	if order.PaymentStatus != domain.PaymentStatusPending {
		return "", apperrors.Conflict(fmt.Sprintf("order %s payment is already %s", orderCode, order.PaymentStatus))
	}

	paymentURL, err := s.gateway.BuildPaymentURL(gateway.PaymentRequest{
		TxnRef:    order.AppTransID,
		Amount:    order.TotalAmount,
		OrderInfo: fmt.Sprintf("Payment for order %s", order.OrderCode),
		IPAddr:    clientIP,
		ExpiresIn: s.expiry,
	})
	if err != nil {
		return "", fmt.Errorf("build payment url: %w", err)
	}

	s.logger.InfoContext(ctx, "payment session created",
		slog.String("order_code", order.OrderCode),
		slog.String("app_trans_id", order.AppTransID),
		slog.Int64("amount", order.TotalAmount),
	)

	return paymentURL, nil
}

// ReconciliationOutcome is the result of processing one gateway callback.
type ReconciliationOutcome struct {
	Status        string     `json:"status"`
	OrderCode     string     `json:"order_code"`
	Amount        int64      `json:"amount"`
	BankCode      string     `json:"bank_code,omitempty"`
	TransactionNo string     `json:"transaction_no,omitempty"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
}

// HandleCallback verifies and applies a gateway return. Processing is
// idempotent: replays of an already-applied callback report the stored
// outcome without mutating the order, and an amount mismatch is rejected
// before any state change.
func (s *PaymentService) HandleCallback(ctx context.Context, values url.Values) (*ReconciliationOutcome, error) {
	cb, err := s.gateway.VerifyCallback(values)
	if err != nil {
		if errors.Is(err, gateway.ErrInvalidSignature) {
			s.logger.WarnContext(ctx, "rejected payment callback with invalid signature",
				slog.String("txn_ref", values.Get("vnp_TxnRef")),
				slog.String("response_code", values.Get("vnp_ResponseCode")),
			)
		}
		return nil, err
	}

	order, err := s.orders.GetByAppTransID(ctx, cb.TxnRef)
	if err != nil {
		return nil, fmt.Errorf("get order for callback %q: %w", cb.TxnRef, err)
	}

	target := domain.PaymentStatusFailed
	switch {
	case cb.Success():
		target = domain.PaymentStatusCompleted
	case cb.Expired():
		target = domain.PaymentStatusExpired
	}

	// Replay of a callback whose effect is already recorded.
	if order.PaymentStatus == target {
		return outcomeFor(order, target), nil
	}

	if cb.Success() && cb.Amount != order.TotalAmount {
		s.logger.ErrorContext(ctx, "payment callback amount mismatch",
			slog.String("order_code", order.OrderCode),
			slog.Int64("expected", order.TotalAmount),
			slog.Int64("received", cb.Amount),
		)
		return nil, apperrors.Conflict(fmt.Sprintf(
			"callback amount %d does not match order total %d", cb.Amount, order.TotalAmount))
	}

	if !order.CanTransitionPaymentTo(target) {
		return nil, apperrors.Conflict(fmt.Sprintf(
			"payment status %q cannot move to %q", order.PaymentStatus, target))
	}

	now := s.now().UTC()
	var (
		entry *domain.StatusHistoryEntry
		gw    *repository.GatewayResult
	)
	if cb.Success() {
		paidAt := cb.PayDate
		if paidAt.IsZero() {
			paidAt = now
		}
		entry = &domain.StatusHistoryEntry{
			Status:    order.Status,
			ChangedAt: now,
			Note:      fmt.Sprintf("payment confirmed by gateway, transaction %s", cb.TransactionNo),
		}
		gw = &repository.GatewayResult{
			TransactionNo: cb.TransactionNo,
			BankCode:      cb.BankCode,
			PaidAt:        &paidAt,
		}
		order.GatewayTxnID = cb.TransactionNo
		order.BankCode = cb.BankCode
		order.PaidAt = &paidAt
	} else {
		entry = &domain.StatusHistoryEntry{
			Status:    order.Status,
			ChangedAt: now,
			Note:      fmt.Sprintf("payment %s, gateway response code %s", target, cb.ResponseCode),
		}
	}

	if err := s.orders.UpdatePaymentStatus(ctx, order.ID, order.PaymentStatus, target, entry, gw); err != nil {
		// A concurrent delivery of the same callback already applied the
		// update; report the outcome it produced.
		if errors.Is(err, domain.ErrStaleState) {
			fresh, getErr := s.orders.GetByID(ctx, order.ID)
			if getErr == nil && fresh.PaymentStatus == target {
				return outcomeFor(fresh, target), nil
			}
			return nil, err
		}
		return nil, fmt.Errorf("update payment status: %w", err)
	}
	order.PaymentStatus = target

	var paidAt time.Time
	if order.PaidAt != nil {
		paidAt = *order.PaidAt
	}
	events := []event.DomainEvent{
		event.PaymentReconciled(order, target, cb.TransactionNo, cb.BankCode, cb.Amount, paidAt),
	}
	if cb.Success() && order.UserID != "" {
		recordNotification(ctx, s.notifications, s.logger, s.now().UTC(), order.UserID,
			"Payment received",
			fmt.Sprintf("Payment for order %s has been confirmed.", order.OrderCode),
			"/orders/"+order.ID,
		)
		events = append(events, event.Notification(order.UserID,
			"Payment received",
			fmt.Sprintf("We received your payment of %d for order %s.", cb.Amount, order.OrderCode),
			"/orders/"+order.ID,
		))
	}
	s.dispatcher.Dispatch(ctx, events)

	s.logger.InfoContext(ctx, "payment callback reconciled",
		slog.String("order_code", order.OrderCode),
		slog.String("payment_status", target),
		slog.String("response_code", cb.ResponseCode),
		slog.String("transaction_no", cb.TransactionNo),
	)

	return outcomeFor(order, target), nil
}

func outcomeFor(order *domain.Order, target string) *ReconciliationOutcome {
	status := "failed"
	if target == domain.PaymentStatusCompleted {
		status = "success"
	}
	return &ReconciliationOutcome{
		Status:        status,
		OrderCode:     order.OrderCode,
		Amount:        order.TotalAmount,
		BankCode:      order.BankCode,
		TransactionNo: order.GatewayTxnID,
		PaidAt:        order.PaidAt,
	}
}
