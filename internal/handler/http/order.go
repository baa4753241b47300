package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/DoMinHoo/Du-An-Tot-Nghiep--sub000/internal/domain"
	"github.com/DoMinHoo/Du-An-Tot-Nghiep--sub000/internal/repository"
	"github.com/DoMinHoo/Du-An-Tot-Nghiep--sub000/internal/service"
	"github.com/DoMinHoo/Du-An-Tot-Nghiep--sub000/pkg/httputil"
	"github.com/DoMinHoo/Du-An-Tot-Nghiep--sub000/pkg/validator"
)

// OrderHandler handles HTTP requests for order endpoints.
type OrderHandler struct {
	service *service.OrderService
	logger  *slog.Logger
}

// NewOrderHandler creates a new order HTTP handler.
func NewOrderHandler(svc *service.OrderService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// BuyNowItemRequest is one ad-hoc line for direct purchase without a cart.
type BuyNowItemRequest struct {
	VariantID string `json:"variant_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gte=1"`
}

// CreateOrderRequest is the JSON request body for creating an order.
type CreateOrderRequest struct {
	ShippingAddress domain.Address      `json:"shipping_address" validate:"required"`
	PaymentMethod   string              `json:"payment_method" validate:"required,oneof=cod bank_transfer vnpay"`
	CouponCode      string              `json:"coupon_code"`
	SelectedItemIDs []string            `json:"selected_item_ids"`
	Items           []BuyNowItemRequest `json:"items" validate:"omitempty,dive"`
	ShippingFee     int64               `json:"shipping_fee" validate:"gte=0"`
}

// UpdateStatusRequest is the JSON request body for updating order status.
type UpdateStatusRequest struct {
	Status        string `json:"status" validate:"omitempty,oneof=pending confirmed shipping completed canceled"`
	Note          string `json:"note"`
	PaymentStatus string `json:"payment_status" validate:"omitempty,oneof=pending completed failed refund_pending refunded expired"`
}

// CancelOrderRequest is the JSON request body for canceling an order.
type CancelOrderRequest struct {
	Note string `json:"note" validate:"required"`
}

// --- Handlers ---

// CreateOrder handles POST /api/v1/orders
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	// Limit request body to 1MB to prevent DoS via large payloads.
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	items := make([]service.BuyNowItemInput, len(req.Items))
	for i, item := range req.Items {
		items[i] = service.BuyNowItemInput{
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
		}
	}

	input := service.CreateOrderInput{
		Owner:           identityFrom(r),
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		CouponCode:      req.CouponCode,
		SelectedItemIDs: req.SelectedItemIDs,
		Items:           items,
		ShippingFee:     req.ShippingFee,
		IdempotencyKey:  r.Header.Get("Idempotency-Key"),
	}

	order, err := h.service.CreateOrder(r.Context(), input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: order})
}

// ListOrders handles GET /api/v1/orders
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	filter := repository.OrderFilter{
		Page:    1,
		PerPage: 20,
	}

	if v := r.URL.Query().Get("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "INVALID_PARAMETER", Message: "page must be a valid positive integer"},
			})
			return
		}
		filter.Page = page
	}
	if v := r.URL.Query().Get("per_page"); v != "" {
		perPage, err := strconv.Atoi(v)
		if err != nil || perPage < 1 || perPage > 100 {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "INVALID_PARAMETER", Message: "per_page must be a valid integer between 1 and 100"},
			})
			return
		}
		filter.PerPage = perPage
	}
	if v := r.URL.Query().Get("status"); v != "" {
		if !domain.IsValidStatus(v) {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "INVALID_PARAMETER", Message: "invalid status filter"},
			})
			return
		}
		filter.Status = &v
	}
	if v := r.URL.Query().Get("payment_status"); v != "" {
		if !domain.IsValidPaymentStatus(v) {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "INVALID_PARAMETER", Message: "invalid payment_status filter"},
			})
			return
		}
		filter.PaymentStatus = &v
	}

	// Non-admin callers only ever see their own orders; the identity scope
	// overrides any user_id query parameter.
	id := identityFrom(r)
	if id.IsAdmin() {
		if v := r.URL.Query().Get("user_id"); v != "" {
			filter.UserID = &v
		}
	} else if id.UserID != "" {
		filter.UserID = &id.UserID
	} else {
		filter.GuestID = &id.GuestID
	}

	orders, total, err := h.service.ListOrders(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(orders, total, filter.Page, filter.PerPage))
}

// GetOrder handles GET /api/v1/orders/{id}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	order, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if !h.canAccess(r, order) {
		// Hide existence from non-owners.
		httputil.WriteJSON(w, http.StatusNotFound, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "NOT_FOUND", Message: "order not found"},
		})
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: order})
}

// UpdateOrderStatus handles PATCH /api/v1/orders/{id}/status (admin only).
func (h *OrderHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}
	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	order, err := h.service.Transition(r.Context(), id, service.UpdateOrderInput{
		Status:        req.Status,
		Note:          req.Note,
		PaymentStatus: req.PaymentStatus,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: order})
}

// CancelOrder handles POST /api/v1/orders/{id}/cancel. Owners may cancel
// their own orders; the state machine decides whether the cancellation is
// still possible.
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}
	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	order, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if !h.canAccess(r, order) {
		httputil.WriteJSON(w, http.StatusNotFound, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "NOT_FOUND", Message: "order not found"},
		})
		return
	}

	updated, err := h.service.Transition(r.Context(), id, service.UpdateOrderInput{
		Status: domain.OrderStatusCanceled,
		Note:   req.Note,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: updated})
}

// DeleteOrder handles DELETE /api/v1/orders/{id} (admin only).
func (h *OrderHandler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.DeleteOrder(r.Context(), id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// canAccess reports whether the caller owns the order or is an admin.
func (h *OrderHandler) canAccess(r *http.Request, order *domain.Order) bool {
	id := identityFrom(r)
	if id.IsAdmin() {
		return true
	}
	if order.UserID != "" {
		return order.UserID == id.UserID
	}
	return order.GuestID == id.GuestID
}
