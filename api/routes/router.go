package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/shirtforge-backend/api/controllers"
	"github.com/angelmondragon/shirtforge-backend/api/middleware"
	"github.com/angelmondragon/shirtforge-backend/internal/addresses"
	"github.com/angelmondragon/shirtforge-backend/internal/cart"
	"github.com/angelmondragon/shirtforge-backend/internal/catalog"
	"github.com/angelmondragon/shirtforge-backend/internal/inventory"
	"github.com/angelmondragon/shirtforge-backend/internal/manufacturing"
	"github.com/angelmondragon/shirtforge-backend/internal/orders"
	"github.com/angelmondragon/shirtforge-backend/internal/payments"
	"github.com/angelmondragon/shirtforge-backend/internal/tax"
	"github.com/angelmondragon/shirtforge-backend/pkg/config"
	"github.com/angelmondragon/shirtforge-backend/pkg/logger"
	"github.com/angelmondragon/shirtforge-backend/pkg/metrics"
	pkgredis "github.com/angelmondragon/shirtforge-backend/pkg/redis"
)

// Dependencies are the services and infrastructure the HTTP surface needs.
// Nil services make their routes answer 500; nil Redis-backed stores disable
// idempotency and rate limiting.
type Dependencies struct {
	Cart          cart.Service
	Catalog       catalog.Service
	Addresses     addresses.Service
	Orders        orders.Service
	Payments      payments.Service
	Inventory     inventory.Service
	Manufacturing manufacturing.Service
	Tax           tax.Service

	Idempotency pkgredis.IdempotencyStore
	RateLimiter middleware.RateLimiterStore
	Readiness   map[string]controllers.Pinger
	Gatherer    prometheus.Gatherer
	HTTPMetrics *metrics.HTTPMetrics
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.CORS(cfg.App.AllowedOrigins()),
		middleware.Logging(logg, deps.HTTPMetrics),
	)

	verifyPolicy := middleware.NewRateLimitPolicy(
		"payment_verify",
		cfg.Ledger.VerifyRateWindow,
		cfg.Ledger.VerifyRateLimit*2,
		cfg.Ledger.VerifyRateLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, deps.Readiness, logg))
	})
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/razorpay", controllers.RazorpayWebhook(deps.Payments, logg))
	})

	r.Route("/api/v1/catalog", func(r chi.Router) {
		r.Get("/variants", controllers.CatalogVariants(deps.Catalog, logg))
		r.Get("/variant-sizes/{variantSizeId}", controllers.CatalogVariantSize(deps.Catalog, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(deps.Idempotency, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartGet(deps.Cart, logg))
			r.Delete("/", controllers.CartClear(deps.Cart, logg))
			r.Get("/validate", controllers.CartValidate(deps.Cart, logg))
			r.Post("/items", controllers.CartAddItem(deps.Cart, logg))
			r.Patch("/items/{itemId}", controllers.CartUpdateItem(deps.Cart, logg))
			r.Delete("/items/{itemId}", controllers.CartRemoveItem(deps.Cart, logg))
		})

		r.Route("/addresses", func(r chi.Router) {
			r.Get("/", controllers.AddressList(deps.Addresses, logg))
			r.Post("/", controllers.AddressCreate(deps.Addresses, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", controllers.OrderCreate(deps.Orders, logg))
			r.Get("/", controllers.OrderList(deps.Orders, logg))
			r.Get("/{orderId}", controllers.OrderDetail(deps.Orders, logg))
			r.Post("/{orderId}/cancel", controllers.OrderCancel(deps.Orders, logg))
			r.Get("/{orderId}/amount-due", controllers.OrderAmountDue(deps.Orders, deps.Payments, logg))
			r.Get("/{orderId}/invoice-summary", controllers.OrderInvoiceSummary(deps.Orders, deps.Tax, logg))
			r.Post("/{orderId}/payments", controllers.PaymentInitiate(deps.Payments, logg))
			r.Get("/{orderId}/payments/summary", controllers.PaymentSummary(deps.Payments, logg))
		})

		r.With(middleware.RateLimit(verifyPolicy, deps.RateLimiter, logg)).
			Post("/payments/verify", controllers.PaymentVerify(deps.Payments, logg))

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdmin(logg))
			r.Patch("/orders/{orderId}/status", controllers.AdminOrderStatus(deps.Orders, logg))
			r.Get("/orders/{orderId}/materials", controllers.AdminOrderMaterials(deps.Manufacturing, logg))
			r.Get("/orders/{orderId}/feasibility", controllers.AdminOrderFeasibility(deps.Manufacturing, logg))
			r.Post("/orders/{orderId}/materials/deduct", controllers.AdminDeductMaterials(deps.Manufacturing, logg))
			r.Get("/stock/low", controllers.AdminLowStock(deps.Inventory, logg))
			r.Get("/stock/{variantSizeId}", controllers.AdminStockDetail(deps.Inventory, logg))
			r.Post("/stock/{variantSizeId}/restock", controllers.AdminRestock(deps.Inventory, logg))
			r.Get("/materials/low", controllers.AdminLowMaterials(deps.Manufacturing, logg))
		})
	})

	return r
}
