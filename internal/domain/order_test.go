package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// ============================================================================
// OrderLineItem.LineTotal Tests
// ============================================================================

func TestLineTotal_BasicCalculation(t *testing.T) {
	item := OrderLineItem{UnitSalePrice: 150000, Quantity: 3}
	assert.Equal(t, int64(450000), item.LineTotal())
}

func TestLineTotal_ZeroQuantity(t *testing.T) {
	item := OrderLineItem{UnitSalePrice: 150000, Quantity: 0}
	assert.Equal(t, int64(0), item.LineTotal())
}

// ============================================================================
// Status Validation Tests
// ============================================================================

func TestValidStatuses_ContainsAllStatuses(t *testing.T) {
	expected := []string{
		OrderStatusPending, OrderStatusConfirmed, OrderStatusShipping,
		OrderStatusCompleted, OrderStatusCanceled,
	}
	assert.ElementsMatch(t, expected, ValidStatuses())
}

func TestIsValidStatus_ValidStatuses(t *testing.T) {
	for _, s := range ValidStatuses() {
		assert.True(t, IsValidStatus(s), "expected %q to be valid", s)
	}
}

func TestIsValidStatus_InvalidStatus(t *testing.T) {
	assert.False(t, IsValidStatus("unknown"))
	assert.False(t, IsValidStatus(""))
	assert.False(t, IsValidStatus("PENDING")) // case-sensitive
}

func TestIsValidPaymentStatus_AllCases(t *testing.T) {
	for _, s := range ValidPaymentStatuses() {
		assert.True(t, IsValidPaymentStatus(s), "expected %q to be valid", s)
	}
	assert.False(t, IsValidPaymentStatus("paid"))
}

func TestIsValidPaymentMethod_AllCases(t *testing.T) {
	for _, m := range ValidPaymentMethods() {
		assert.True(t, IsValidPaymentMethod(m), "expected %q to be valid", m)
	}
	assert.False(t, IsValidPaymentMethod("paypal"))
}

// ============================================================================
// Order State Transition Tests
// ============================================================================

func TestAllowedTransitions_EveryStatusHasEntry(t *testing.T) {
	transitions := AllowedTransitions()
	for _, s := range ValidStatuses() {
		_, ok := transitions[s]
		assert.True(t, ok, "status %q missing from transition table", s)
	}
}

func TestAllowedTransitions_TargetsAreValidStatuses(t *testing.T) {
	for from, targets := range AllowedTransitions() {
		for _, to := range targets {
			assert.True(t, IsValidStatus(to), "transition %s -> %s names unknown status", from, to)
		}
	}
}

func TestCanTransitionTo_PendingToConfirmed(t *testing.T) {
	order := &Order{Status: OrderStatusPending}
	assert.True(t, order.CanTransitionTo(OrderStatusConfirmed))
	assert.True(t, order.CanTransitionTo(OrderStatusCanceled))
}

func TestCanTransitionTo_PendingCannotSkipToCompleted(t *testing.T) {
	order := &Order{Status: OrderStatusPending}
	assert.False(t, order.CanTransitionTo(OrderStatusCompleted))
	assert.False(t, order.CanTransitionTo(OrderStatusShipping))
}

func TestCanTransitionTo_ShippingToCompleted(t *testing.T) {
	order := &Order{Status: OrderStatusShipping}
	assert.True(t, order.CanTransitionTo(OrderStatusCompleted))
	assert.True(t, order.CanTransitionTo(OrderStatusCanceled))
}

func TestCanTransitionTo_CompletedIsTerminal(t *testing.T) {
	order := &Order{Status: OrderStatusCompleted}
	for _, s := range ValidStatuses() {
		assert.False(t, order.CanTransitionTo(s))
	}
	assert.True(t, order.IsTerminal())
}

func TestCanTransitionTo_CanceledIsTerminal(t *testing.T) {
	order := &Order{Status: OrderStatusCanceled}
	for _, s := range ValidStatuses() {
		assert.False(t, order.CanTransitionTo(s))
	}
	assert.True(t, order.IsTerminal())
}

func TestCanTransitionTo_SameStatus(t *testing.T) {
	order := &Order{Status: OrderStatusConfirmed}
	assert.False(t, order.CanTransitionTo(OrderStatusConfirmed))
}

func TestCanTransitionTo_UnknownCurrentStatus(t *testing.T) {
	order := &Order{Status: "nonexistent"}
	assert.False(t, order.CanTransitionTo(OrderStatusConfirmed))
}

// ============================================================================
// Payment Status Transition Tests
// ============================================================================

func TestCanTransitionPaymentTo_PendingOutcomes(t *testing.T) {
	order := &Order{PaymentStatus: PaymentStatusPending}
	assert.True(t, order.CanTransitionPaymentTo(PaymentStatusCompleted))
	assert.True(t, order.CanTransitionPaymentTo(PaymentStatusFailed))
	assert.True(t, order.CanTransitionPaymentTo(PaymentStatusExpired))
	assert.False(t, order.CanTransitionPaymentTo(PaymentStatusRefunded))
}

func TestCanTransitionPaymentTo_RefundFlow(t *testing.T) {
	order := &Order{PaymentStatus: PaymentStatusCompleted}
	assert.True(t, order.CanTransitionPaymentTo(PaymentStatusRefundPending))

	order.PaymentStatus = PaymentStatusRefundPending
	assert.True(t, order.CanTransitionPaymentTo(PaymentStatusRefunded))
	assert.False(t, order.CanTransitionPaymentTo(PaymentStatusCompleted))
}

func TestCanTransitionPaymentTo_FailedIsTerminal(t *testing.T) {
	order := &Order{PaymentStatus: PaymentStatusFailed}
	for _, s := range ValidPaymentStatuses() {
		assert.False(t, order.CanTransitionPaymentTo(s))
	}
}

// ============================================================================
// Address Tests
// ============================================================================

func TestAddressComplete_AllFieldsSet(t *testing.T) {
	addr := Address{
		FullName:    "Nguyen Van A",
		Phone:       "0901234567",
		Email:       "a@example.com",
		AddressLine: "12 Le Loi",
		Ward:        "Ben Nghe",
		District:    "1",
		City:        "Ho Chi Minh",
	}
	assert.True(t, addr.Complete())
}

func TestAddressComplete_MissingField(t *testing.T) {
	addr := Address{
		FullName:    "Nguyen Van A",
		Phone:       "0901234567",
		Email:       "a@example.com",
		AddressLine: "12 Le Loi",
		Ward:        "Ben Nghe",
		District:    "1",
	}
	assert.False(t, addr.Complete())
}
