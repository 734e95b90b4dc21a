// 文件路径: internal/api/router.go
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/creamcroissant/orderdesk/internal/api/handler"
	"github.com/creamcroissant/orderdesk/internal/api/middleware"
	"github.com/creamcroissant/orderdesk/internal/config"
	"github.com/creamcroissant/orderdesk/internal/service"
	"github.com/creamcroissant/orderdesk/internal/support/i18n"
)

// Services bundles what the admin API depends on.
type Services struct {
	Orders  service.OrderLifecycleService
	Watches service.WatchService
	Audits  service.AuditService
	Catalog *service.StatusCatalog
	I18n    *i18n.Manager
	Tokens  middleware.TokenParser
	// Ready reports whether local dependencies (the audit database) are usable.
	Ready func(ctx context.Context) error
}

// Options carries the HTTP-facing configuration.
type Options struct {
	HTTP         config.HTTPConfig
	Metrics      config.MetricsConfig
	ForwardToken bool
	// Registry receives HTTP metrics and serves /metrics; nil uses the global registry.
	Registry *prometheus.Registry
}

// NewRouter wires the admin backend routes.
func NewRouter(logger *slog.Logger, services Services, opts Options) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if services.Orders == nil {
		panic("router requires OrderLifecycleService")
	}
	if services.Watches == nil {
		panic("router requires WatchService")
	}
	if services.Audits == nil {
		panic("router requires AuditService")
	}
	// Keep nil interfaces nil so handlers fall back to raw keys.
	var tr handler.Translator
	var matcher middleware.LanguageMatcher
	if services.I18n != nil {
		tr, matcher = services.I18n, services.I18n
	}
	if services.Catalog == nil {
		services.Catalog = service.NewStatusCatalog(tr)
	}

	r := chi.NewRouter()
	r.Use(
		chiMiddleware.RequestID,
		chiMiddleware.RealIP,
	)

	var registerer prometheus.Registerer = prometheus.DefaultRegisterer
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if opts.Registry != nil {
		registerer, gatherer = opts.Registry, opts.Registry
	}
	if opts.Metrics.Enabled {
		mCfg := middleware.DefaultMetricsConfig()
		if opts.Metrics.Namespace != "" {
			mCfg.Namespace = opts.Metrics.Namespace
		}
		mCfg.Registerer = registerer
		r.Use(middleware.NewMetrics(mCfg).Middleware)
	}

	cors := middleware.DefaultCORSConfig()
	if len(opts.HTTP.CORSOrigins) > 0 {
		cors.AllowedOrigins = opts.HTTP.CORSOrigins
	}
	r.Use(
		middleware.CORS(cors),
		middleware.BodyLimit(opts.HTTP.MaxBodyBytes),
		middleware.StructuredLogger(middleware.LoggingConfig{
			Logger:        logger,
			SlowThreshold: 500 * time.Millisecond,
			SkipPaths:     []string{"/healthz", "/metrics"},
		}),
		chiMiddleware.Recoverer,
		chiMiddleware.Compress(5),
		middleware.I18n(matcher),
	)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if services.Ready != nil {
			if err := services.Ready(req.Context()); err != nil {
				logger.Warn("readiness check failed", "error", err)
				handler.RespondHealth(w, http.StatusServiceUnavailable, "unavailable")
				return
			}
		}
		handler.RespondHealth(w, http.StatusOK, "ok")
	})

	if opts.Metrics.Enabled {
		r.With(middleware.MetricsGuard(opts.Metrics.Token)).
			Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	registerAPIRoutes(r, logger, services, tr, opts)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		logger.Warn("unmapped route hit", "method", req.Method, "path", req.URL.Path)
		http.NotFound(w, req)
	})
	return r
}

func registerAPIRoutes(root chi.Router, logger *slog.Logger, services Services, tr handler.Translator, opts Options) {
	orders := handler.NewOrderHandler(services.Orders, services.Catalog, tr, logger)
	statuses := handler.NewStatusHandler(services.Catalog)
	watches := handler.NewWatchHandler(services.Watches, tr, logger)
	audits := handler.NewAuditHandler(services.Audits, tr, logger)

	mutationLimit := middleware.RateLimit(middleware.RateLimitConfig{
		Limit:  opts.HTTP.MutationLimit,
		Window: opts.HTTP.MutationWindow,
	})

	root.Route("/api/v1", func(v1 chi.Router) {
		v1.Use(middleware.AdminGuard(services.Tokens, opts.ForwardToken))

		v1.Get("/statuses", statuses.List)
		v1.Get("/watch", watches.List)
		v1.Get("/audit", audits.List)

		v1.Route("/orders/{id}", func(order chi.Router) {
			order.Get("/", orders.Show)
			order.Get("/history", orders.History)
			order.Get("/progress", orders.Progress)
			order.Get("/audit", audits.ForOrder)
			order.Post("/refresh", orders.Refresh)

			order.Group(func(mut chi.Router) {
				mut.Use(middleware.RequireOperator, mutationLimit)
				mut.Patch("/status", orders.UpdateStatus)
				mut.Post("/cancel", orders.Cancel)
				mut.Post("/assign", orders.Assign)
			})

			order.Post("/watch", watches.Add)
			order.Delete("/watch", watches.Remove)
		})

		v1.With(middleware.RequireOperator).Post("/watch/refresh", watches.RefreshAll)
	})
}
