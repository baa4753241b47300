package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/DoMinHoo/Du-An-Tot-Nghiep--sub000/internal/service"
	"github.com/DoMinHoo/Du-An-Tot-Nghiep--sub000/pkg/health"
	"github.com/DoMinHoo/Du-An-Tot-Nghiep--sub000/pkg/middleware"
)

// NewRouter creates a chi router with all order engine routes registered.
func NewRouter(
	orderService *service.OrderService,
	cartService *service.CartService,
	paymentService *service.PaymentService,
	healthHandler *health.Handler,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedHeaders = append(corsCfg.AllowedHeaders, "X-Guest-ID", "X-User-Role", "Idempotency-Key")
	r.Use(middleware.CORS(corsCfg))
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("order-engine"))
	r.Use(middleware.Tracing("order-engine"))
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	orderHandler := NewOrderHandler(orderService, logger)
	cartHandler := NewCartHandler(cartService, logger)
	paymentHandler := NewPaymentHandler(paymentService, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(Identity)

		r.Route("/orders", func(r chi.Router) {
			r.Use(RequireIdentity)

			r.Post("/", orderHandler.CreateOrder)
			r.Get("/", orderHandler.ListOrders)
			r.Get("/{id}", orderHandler.GetOrder)
			r.Post("/{id}/cancel", orderHandler.CancelOrder)

			r.Group(func(r chi.Router) {
				r.Use(RequireAdmin)
				r.Patch("/{id}/status", orderHandler.UpdateOrderStatus)
				r.Delete("/{id}", orderHandler.DeleteOrder)
			})
		})

		r.Route("/cart", func(r chi.Router) {
			r.Use(RequireIdentity)

			r.Get("/", cartHandler.GetCart)
			r.Post("/items", cartHandler.AddItem)
			r.Put("/items/{variantID}", cartHandler.UpdateItem)
			r.Post("/merge", cartHandler.Merge)
		})

		r.Route("/payments", func(r chi.Router) {
			r.With(RequireIdentity).Post("/", paymentHandler.CreatePayment)
			// The gateway return carries its own HMAC authentication.
			r.Get("/vnpay/return", paymentHandler.Return)
		})
	})

	return r
}
