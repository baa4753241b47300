package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/DoMinHoo/Du-An-Tot-Nghiep--sub000/internal/domain"
	"github.com/DoMinHoo/Du-An-Tot-Nghiep--sub000/internal/event"
	"github.com/DoMinHoo/Du-An-Tot-Nghiep--sub000/internal/repository"
	apperrors "github.com/DoMinHoo/Du-An-Tot-Nghiep--sub000/pkg/errors"
)

// EventDispatcher publishes collected domain events after the primary write
// has committed.
type EventDispatcher interface {
	Dispatch(ctx context.Context, events []event.DomainEvent)
}

// ShippingQuoter prices delivery to an address.
type ShippingQuoter interface {
	Quote(ctx context.Context, addr domain.Address) (int64, error)
}

// OrderService implements order assembly and the order state machine. All
// mutations of status, payment status and history go through this service or
// the payment reconciler; nothing else writes those fields.
type OrderService struct {
	orders        repository.OrderRepository
	inventory     repository.InventoryRepository
	variants      repository.VariantRepository
	promotions    repository.PromotionRepository
	notifications repository.NotificationRepository
	carts         *CartService
	shipping      ShippingQuoter
	dispatcher    EventDispatcher
	logger        *slog.Logger
	now           func() time.Time
}

// NewOrderService creates a new order service.
func NewOrderService(
	orders repository.OrderRepository,
	inventory repository.InventoryRepository,
	variants repository.VariantRepository,
	promotions repository.PromotionRepository,
	notifications repository.NotificationRepository,
	carts *CartService,
	shipping ShippingQuoter,
	dispatcher EventDispatcher,
	logger *slog.Logger,
) *OrderService {
	return &OrderService{
		orders:        orders,
		inventory:     inventory,
		variants:      variants,
		promotions:    promotions,
		notifications: notifications,
		carts:         carts,
		shipping:      shipping,
		dispatcher:    dispatcher,
		logger:        logger,
		now:           time.Now,
	}
}

// BuyNowItemInput is one ad-hoc line for direct purchase without a cart.
type BuyNowItemInput struct {
	VariantID string `json:"variant_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

// CreateOrderInput holds the parameters for creating an order.
type CreateOrderInput struct {
	Owner           domain.Identity
	ShippingAddress domain.Address
	PaymentMethod   string
	CouponCode      string
	// SelectedItemIDs names the cart lines to consume; empty selects the
	// whole cart. Ignored when Items is non-empty.
	SelectedItemIDs []string
	// Items is an ad-hoc buy-now list bypassing the cart.
	Items          []BuyNowItemInput
	ShippingFee    int64
	IdempotencyKey string
}

// CreateOrder turns a cart (or buy-now list) into a durable order: validate,
// price, reserve inventory, redeem the coupon, persist, then fan out side
// effects. Reservations and the redemption are compensated when a later step
// fails; side effects after the order is durable are best-effort.
func (s *OrderService) CreateOrder(ctx context.Context, input CreateOrderInput) (*domain.Order, error) {
	if !input.Owner.Valid() {
		return nil, apperrors.InvalidInput("exactly one of user or guest identity is required")
	}

	// A retried request with the same idempotency key returns the original
	// order without reserving anything again.
	if input.IdempotencyKey != "" {
		existing, err := s.orders.GetByIdempotencyKey(ctx, input.IdempotencyKey)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("check idempotency key: %w", err)
		}
	}

	if !input.ShippingAddress.Complete() {
		return nil, apperrors.InvalidInput("shipping address is incomplete: all recipient and address fields are required")
	}
	if !domain.IsValidPaymentMethod(input.PaymentMethod) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid payment method %q, must be one of: %s",
			input.PaymentMethod, strings.Join(domain.ValidPaymentMethods(), ", ")))
	}
	if input.ShippingFee < 0 {
		return nil, apperrors.InvalidInput("shipping fee cannot be negative")
	}

	lines, fromCart, err := s.resolveOrderItems(ctx, input)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, apperrors.InvalidInput("order has no items")
	}

	// Stock precheck before any mutation; reservation re-checks atomically.
	for _, line := range lines {
		if line.Available < line.Quantity {
			return nil, &domain.InsufficientStockError{
				VariantID:   line.VariantID,
				ProductName: line.Name,
				Requested:   line.Quantity,
				Available:   line.Available,
			}
		}
	}

	var subtotal int64
	items := make([]domain.OrderLineItem, len(lines))
	for i, line := range lines {
		items[i] = domain.OrderLineItem{
			VariantID:     line.VariantID,
			ProductID:     line.ProductID,
			Name:          line.Name,
			Quantity:      line.Quantity,
			UnitSalePrice: line.UnitPrice,
		}
		subtotal += items[i].LineTotal()
	}

	var (
		promo    *domain.Promotion
		snapshot *domain.PromotionSnapshot
		discount int64
	)
	if input.CouponCode != "" {
		promo, err = s.promotions.GetByCode(ctx, input.CouponCode)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil, &domain.PromotionInvalidError{Code: input.CouponCode, Reason: "unknown promotion code"}
			}
			return nil, fmt.Errorf("get promotion: %w", err)
		}
		if err := promo.Validate(subtotal, s.now()); err != nil {
			return nil, err
		}
		snapshot = promo.Snapshot()
		discount = snapshot.Discount(subtotal)
	}

	// The fee comes from the upstream quote when the request carries none.
	shippingFee := input.ShippingFee
	if shippingFee == 0 && s.shipping != nil {
		shippingFee, err = s.shipping.Quote(ctx, input.ShippingAddress)
		if err != nil {
			return nil, fmt.Errorf("quote shipping fee: %w", err)
		}
	}

	totalAmount := subtotal - discount
	if totalAmount < 0 {
		totalAmount = 0
	}
	totalAmount += shippingFee

	now := s.now().UTC()
	orderCode := generateOrderCode(now)
	order := &domain.Order{
		ID:              uuid.New().String(),
		OrderCode:       orderCode,
		AppTransID:      fmt.Sprintf("%s_%s", now.Format("060102"), orderCode),
		UserID:          input.Owner.UserID,
		GuestID:         input.Owner.GuestID,
		Items:           items,
		SubtotalAmount:  subtotal,
		DiscountAmount:  discount,
		ShippingFee:     shippingFee,
		TotalAmount:     totalAmount,
		PaymentMethod:   input.PaymentMethod,
		Status:          domain.OrderStatusPending,
		PaymentStatus:   domain.PaymentStatusPending,
		ShippingAddress: input.ShippingAddress,
		Promotion:       snapshot,
		StatusHistory: []domain.StatusHistoryEntry{
			{Status: domain.OrderStatusPending, ChangedAt: now, Note: "order created"},
		},
		IdempotencyKey: input.IdempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	// Reserve inventory as a set: all or nothing.
	reserved, err := s.reserveAll(ctx, items)
	if err != nil {
		s.releaseAll(ctx, reserved)
		return nil, err
	}

	// Consume the coupon before persisting so an exhausted budget fails the
	// order while everything is still compensatable.
	if promo != nil {
		if err := s.promotions.Redeem(ctx, promo.ID, order.OrderCode); err != nil {
			s.releaseAll(ctx, reserved)
			if errors.Is(err, apperrors.ErrConflict) {
				return nil, &domain.PromotionInvalidError{Code: promo.Code, Reason: "promotion usage limit reached"}
			}
			return nil, fmt.Errorf("redeem promotion: %w", err)
		}
	}

	if err := s.orders.Create(ctx, order); err != nil {
		s.releaseAll(ctx, reserved)
		if promo != nil {
			if relErr := s.promotions.ReleaseRedemption(ctx, promo.ID, order.OrderCode); relErr != nil {
				s.logger.ErrorContext(ctx, "failed to release promotion redemption",
					slog.String("promotion_id", promo.ID),
					slog.String("order_code", order.OrderCode),
					slog.String("error", relErr.Error()),
				)
			}
		}
		return nil, fmt.Errorf("create order: %w", err)
	}

	// The order is durable; everything below is best-effort.
	if fromCart {
		ids := make([]string, len(items))
		for i := range items {
			ids[i] = items[i].VariantID
		}
		if err := s.carts.ConsumeItems(ctx, input.Owner, ids); err != nil {
			s.logger.WarnContext(ctx, "failed to remove consumed cart items",
				slog.String("order_code", order.OrderCode),
				slog.String("error", err.Error()),
			)
		}
	}

	events := []event.DomainEvent{event.OrderCreated(order)}
	if order.UserID != "" {
		recordNotification(ctx, s.notifications, s.logger, s.now().UTC(), order.UserID,
			"Order placed",
			fmt.Sprintf("Your order %s has been placed and is pending confirmation.", order.OrderCode),
			"/orders/"+order.ID,
		)
		// Gateway-paid orders wait for payment confirmation before any
		// success messaging.
		if order.PaymentMethod != domain.PaymentMethodGateway {
			events = append(events, event.Notification(order.UserID,
				"Order confirmation",
				fmt.Sprintf("Order %s received, total %d. We will notify you when it ships.", order.OrderCode, order.TotalAmount),
				"/orders/"+order.ID,
			))
		}
	}
	s.dispatcher.Dispatch(ctx, events)

	s.logger.InfoContext(ctx, "order created",
		slog.String("order_id", order.ID),
		slog.String("order_code", order.OrderCode),
		slog.String("payment_method", order.PaymentMethod),
		slog.Int64("total_amount", order.TotalAmount),
	)

	return order, nil
}

// GetOrder retrieves an order by its ID.
func (s *OrderService) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order by id: %w", err)
	}
	return order, nil
}

// ListOrders returns a filtered, paginated list of orders.
func (s *OrderService) ListOrders(ctx context.Context, filter repository.OrderFilter) ([]domain.Order, int, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PerPage <= 0 {
		filter.PerPage = 20
	}
	if filter.PerPage > 100 {
		filter.PerPage = 100
	}

	orders, total, err := s.orders.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	return orders, total, nil
}

// UpdateOrderInput drives a state-machine transition, a payment-status
// update, or both.
type UpdateOrderInput struct {
	Status        string
	Note          string
	PaymentStatus string
}

// Transition applies a status and/or payment-status update. The conditional
// update in the repository serializes concurrent requests per order: the
// loser gets a stale-state conflict instead of silently overwriting.
func (s *OrderService) Transition(ctx context.Context, id string, input UpdateOrderInput) (*domain.Order, error) {
	if input.Status == "" && input.PaymentStatus == "" {
		return nil, apperrors.InvalidInput("nothing to update: provide status or payment_status")
	}

	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order for update: %w", err)
	}

	if input.Status != "" {
		return s.transitionStatus(ctx, order, input)
	}
	return s.updatePaymentOnly(ctx, order, input.PaymentStatus)
}

func (s *OrderService) transitionStatus(ctx context.Context, order *domain.Order, input UpdateOrderInput) (*domain.Order, error) {
	target := input.Status
	if !domain.IsValidStatus(target) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid status %q, must be one of: %s",
			target, strings.Join(domain.ValidStatuses(), ", ")))
	}
	if !order.CanTransitionTo(target) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("cannot transition from %q to %q", order.Status, target))
	}
	if target == domain.OrderStatusCanceled && strings.TrimSpace(input.Note) == "" {
		return nil, apperrors.InvalidInput("a cancellation note is required")
	}

	// A caller-supplied payment status rides along only if the payment state
	// machine allows it from the current state.
	newPayment := input.PaymentStatus
	if newPayment != "" {
		if !domain.IsValidPaymentStatus(newPayment) {
			return nil, apperrors.InvalidInput(fmt.Sprintf("invalid payment status %q, must be one of: %s",
				newPayment, strings.Join(domain.ValidPaymentStatuses(), ", ")))
		}
		if !order.CanTransitionPaymentTo(newPayment) {
			return nil, apperrors.InvalidInput(fmt.Sprintf("cannot move payment status from %q to %q", order.PaymentStatus, newPayment))
		}
	}

	// Derive the payment-status side effect of the transition.
	switch target {
	case domain.OrderStatusCanceled:
		if order.PaymentMethod == domain.PaymentMethodGateway && order.PaymentStatus == domain.PaymentStatusCompleted {
			// Never auto-refund; flag for manual reconciliation.
			newPayment = domain.PaymentStatusRefundPending
		}
	case domain.OrderStatusCompleted:
		if order.PaymentStatus == domain.PaymentStatusPending {
			// On-delivery collection for COD orders.
			newPayment = domain.PaymentStatusCompleted
		}
	}

	now := s.now().UTC()
	entry := domain.StatusHistoryEntry{Status: target, ChangedAt: now, Note: input.Note}
	if err := s.orders.TransitionStatus(ctx, order.ID, order.Status, target, order.PaymentStatus, entry, newPayment); err != nil {
		return nil, fmt.Errorf("transition order: %w", err)
	}

	fromStatus := order.Status
	order.Status = target
	if newPayment != "" {
		order.PaymentStatus = newPayment
	}
	order.StatusHistory = append(order.StatusHistory, entry)
	order.UpdatedAt = now

	switch target {
	case domain.OrderStatusCanceled:
		// Return every reserved unit to stock.
		for _, item := range order.Items {
			if err := s.inventory.Release(ctx, item.VariantID, item.Quantity); err != nil {
				s.logger.ErrorContext(ctx, "failed to release stock on cancellation",
					slog.String("order_id", order.ID),
					slog.String("variant_id", item.VariantID),
					slog.Int("quantity", item.Quantity),
					slog.String("error", err.Error()),
				)
			}
		}
		if order.UserID != "" {
			recordNotification(ctx, s.notifications, s.logger, s.now().UTC(), order.UserID,
				"Order canceled",
				fmt.Sprintf("Order %s was canceled: %s", order.OrderCode, input.Note),
				"/orders/"+order.ID,
			)
		}
	case domain.OrderStatusCompleted:
		for _, item := range order.Items {
			if err := s.inventory.IncrementPurchaseCount(ctx, item.VariantID, item.Quantity); err != nil {
				s.logger.WarnContext(ctx, "failed to increment purchase count",
					slog.String("variant_id", item.VariantID),
					slog.String("error", err.Error()),
				)
			}
		}
		if order.UserID != "" {
			recordNotification(ctx, s.notifications, s.logger, s.now().UTC(), order.UserID,
				"Order completed",
				fmt.Sprintf("Order %s has been delivered. Thank you for shopping with us.", order.OrderCode),
				"/orders/"+order.ID,
			)
		}
	}

	s.dispatcher.Dispatch(ctx, []event.DomainEvent{
		event.OrderStatusChanged(order, fromStatus, target, input.Note, now),
	})

	s.logger.InfoContext(ctx, "order status updated",
		slog.String("order_id", order.ID),
		slog.String("old_status", fromStatus),
		slog.String("new_status", target),
		slog.String("payment_status", order.PaymentStatus),
	)

	return order, nil
}

// updatePaymentOnly updates paymentStatus without a status transition, e.g.
// confirming a manual refund.
func (s *OrderService) updatePaymentOnly(ctx context.Context, order *domain.Order, target string) (*domain.Order, error) {
	if !domain.IsValidPaymentStatus(target) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid payment status %q, must be one of: %s",
			target, strings.Join(domain.ValidPaymentStatuses(), ", ")))
	}
	if !order.CanTransitionPaymentTo(target) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("cannot move payment status from %q to %q", order.PaymentStatus, target))
	}

	if err := s.orders.UpdatePaymentStatus(ctx, order.ID, order.PaymentStatus, target, nil, nil); err != nil {
		return nil, fmt.Errorf("update payment status: %w", err)
	}

	from := order.PaymentStatus
	order.PaymentStatus = target
	order.UpdatedAt = s.now().UTC()

	if target == domain.PaymentStatusRefunded && order.UserID != "" {
		recordNotification(ctx, s.notifications, s.logger, s.now().UTC(), order.UserID,
			"Refund completed",
			fmt.Sprintf("Your payment for order %s has been refunded.", order.OrderCode),
			"/orders/"+order.ID,
		)
	}

	s.logger.InfoContext(ctx, "payment status updated",
		slog.String("order_id", order.ID),
		slog.String("old_payment_status", from),
		slog.String("new_payment_status", target),
	)

	return order, nil
}

// DeleteOrder removes an order; completed orders are protected.
func (s *OrderService) DeleteOrder(ctx context.Context, id string) error {
	if err := s.orders.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	s.logger.InfoContext(ctx, "order deleted", slog.String("order_id", id))
	return nil
}

// resolveOrderItems materializes the order's line source: a buy-now list, or
// the (optionally filtered) cart. The bool reports whether the cart was the
// source.
func (s *OrderService) resolveOrderItems(ctx context.Context, input CreateOrderInput) ([]ResolvedLine, bool, error) {
	if len(input.Items) > 0 {
		ids := make([]string, 0, len(input.Items))
		for _, item := range input.Items {
			if item.Quantity <= 0 {
				return nil, false, apperrors.InvalidInput("item quantity must be a positive integer")
			}
			ids = append(ids, item.VariantID)
		}
		variants, err := s.variants.GetByIDs(ctx, ids)
		if err != nil {
			return nil, false, fmt.Errorf("resolve buy-now items: %w", err)
		}
		lines := make([]ResolvedLine, 0, len(input.Items))
		for _, item := range input.Items {
			variant, ok := variants[item.VariantID]
			if !ok || !variant.Purchasable() {
				return nil, false, apperrors.NotFound("variant", item.VariantID)
			}
			lines = append(lines, ResolvedLine{
				VariantID: variant.ID,
				ProductID: variant.ProductID,
				Name:      variant.ProductName,
				Quantity:  item.Quantity,
				UnitPrice: variant.CurrentPrice(),
				Available: variant.StockQuantity,
			})
		}
		return lines, false, nil
	}

	resolved, err := s.carts.Resolve(ctx, input.Owner)
	if err != nil {
		return nil, false, err
	}

	if len(input.SelectedItemIDs) == 0 {
		return resolved.Lines, true, nil
	}

	selected := make(map[string]bool, len(input.SelectedItemIDs))
	for _, id := range input.SelectedItemIDs {
		selected[id] = true
	}
	lines := make([]ResolvedLine, 0, len(resolved.Lines))
	for _, line := range resolved.Lines {
		if selected[line.VariantID] {
			lines = append(lines, line)
		}
	}
	return lines, true, nil
}

// reserveAll reserves stock line by line, returning the lines actually
// reserved so the caller can compensate on failure.
func (s *OrderService) reserveAll(ctx context.Context, items []domain.OrderLineItem) ([]domain.OrderLineItem, error) {
	reserved := make([]domain.OrderLineItem, 0, len(items))
	for _, item := range items {
		if err := s.inventory.Reserve(ctx, item.VariantID, item.Quantity); err != nil {
			return reserved, err
		}
		reserved = append(reserved, item)
	}
	return reserved, nil
}

// releaseAll compensates successful reservations after a later step failed.
func (s *OrderService) releaseAll(ctx context.Context, reserved []domain.OrderLineItem) {
	for _, item := range reserved {
		if err := s.inventory.Release(ctx, item.VariantID, item.Quantity); err != nil {
			s.logger.ErrorContext(ctx, "failed to release reservation during rollback",
				slog.String("variant_id", item.VariantID),
				slog.Int("quantity", item.Quantity),
				slog.String("error", err.Error()),
			)
		}
	}
}

// generateOrderCode builds a human-referenceable, collision-resistant code.
func generateOrderCode(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102"), suffix)
}
