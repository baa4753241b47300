package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/DoMinHoo/Du-An-Tot-Nghiep--sub000/internal/service"
	"github.com/DoMinHoo/Du-An-Tot-Nghiep--sub000/pkg/httputil"
	"github.com/DoMinHoo/Du-An-Tot-Nghiep--sub000/pkg/validator"
)

// PaymentHandler handles HTTP requests for gateway payment endpoints.
type PaymentHandler struct {
	service *service.PaymentService
	logger  *slog.Logger
}

// NewPaymentHandler creates a new payment HTTP handler.
func NewPaymentHandler(svc *service.PaymentService, logger *slog.Logger) *PaymentHandler {
	return &PaymentHandler{
		service: svc,
		logger:  logger,
	}
}

// CreatePaymentRequest is the JSON request body for opening a payment session.
type CreatePaymentRequest struct {
	OrderCode string `json:"order_code" validate:"required"`
}

// CreatePayment handles POST /api/v1/payments. It returns the signed URL the
// shopper is redirected to.
func (h *PaymentHandler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req CreatePaymentRequest
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

	paymentURL, err := h.service.CreatePayment(r.Context(), req.OrderCode, clientIP(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{
		"payment_url": paymentURL,
	}})
}

// Return handles GET /api/v1/payments/vnpay/return. The gateway redirects the
// shopper here with the signed result in the query string.
func (h *PaymentHandler) Return(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.service.HandleCallback(r.Context(), r.URL.Query())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: outcome})
}

// clientIP returns the originating address, preferring the edge proxy header.
func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}
