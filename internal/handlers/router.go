package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/supplynet/api/internal/platform/httpx"
)

// RouteRegistrar registers a set of routes against the provided router.
type RouteRegistrar func(r chi.Router)

type routerConfig struct {
	basePath    string
	middlewares []func(http.Handler) http.Handler
	health      *HealthHandlers

	buyer      RouteRegistrar
	provider   RouteRegistrar
	deliveries RouteRegistrar
	invoices   RouteRegistrar
	payments   RouteRegistrar
	webhooks   RouteRegistrar

	authMiddleware func(http.Handler) http.Handler
}

// Option customises the router configuration before construction.
type Option func(*routerConfig)

const (
	defaultAPIPrefix = "/api/v1"
	defaultTimeout   = 60 * time.Second
)

// NewRouter constructs the chi router with shared middleware and the versioned
// route groups. The webhook group is mounted outside the auth middleware: its
// caller authenticates with a signature, not a bearer token.
func NewRouter(opts ...Option) chi.Router {
	cfg := routerConfig{
		basePath: defaultAPIPrefix,
		middlewares: []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Timeout(defaultTimeout),
		},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	r := chi.NewRouter()
	if cfg.health == nil {
		cfg.health = NewHealthHandlers()
	}
	for _, mw := range cfg.middlewares {
		if mw != nil {
			r.Use(mw)
		}
	}

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError(httpx.CodeNotFound, fmt.Sprintf("no route for %s", req.URL.Path), http.StatusNotFound))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("method_not_allowed", fmt.Sprintf("method %s not allowed on %s", req.Method, req.URL.Path), http.StatusMethodNotAllowed))
	})

	r.Get("/healthz", cfg.health.Healthz)
	r.Get("/readyz", cfg.health.Readyz)

	r.Route(cfg.basePath, func(api chi.Router) {
		if cfg.webhooks != nil {
			cfg.webhooks(api)
		}

		api.Group(func(authed chi.Router) {
			if cfg.authMiddleware != nil {
				authed.Use(cfg.authMiddleware)
			}
			mount := func(path string, registrar RouteRegistrar) {
				if registrar == nil {
					return
				}
				authed.Route(path, func(group chi.Router) {
					registrar(group)
				})
			}
			mount("/buyer", cfg.buyer)
			mount("/provider", cfg.provider)
			mount("/deliveries", cfg.deliveries)
			mount("/invoices", cfg.invoices)
			mount("/payments", cfg.payments)
		})
	})

	return r
}

// WithMiddlewares appends additional global middleware to the router.
func WithMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// WithAuthMiddleware sets the middleware guarding every authenticated group.
func WithAuthMiddleware(mw func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) {
		cfg.authMiddleware = mw
	}
}

// WithHealthHandlers overrides the handlers used for /healthz and /readyz.
func WithHealthHandlers(h *HealthHandlers) Option {
	return func(cfg *routerConfig) {
		cfg.health = h
	}
}

// WithBuyerRoutes configures the registrar for the buyer-facing endpoints.
func WithBuyerRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.buyer = reg
	}
}

// WithProviderRoutes configures the registrar for the provider-facing endpoints.
func WithProviderRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.provider = reg
	}
}

// WithDeliveryRoutes configures the registrar for the shared delivery endpoints.
func WithDeliveryRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.deliveries = reg
	}
}

// WithInvoiceRoutes configures the registrar for the shared invoice endpoints.
func WithInvoiceRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.invoices = reg
	}
}

// WithPaymentRoutes configures the registrar for the payment endpoints.
func WithPaymentRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.payments = reg
	}
}

// WithWebhookRoutes configures the registrar mounted outside the auth middleware.
func WithWebhookRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.webhooks = reg
	}
}
