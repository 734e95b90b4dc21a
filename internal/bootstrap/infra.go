// 文件路径: internal/bootstrap/infra.go
// 模块说明: 组装数据库、订单服务客户端、缓存、令牌与各业务服务。
package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/creamcroissant/orderdesk/internal/auth/token"
	"github.com/creamcroissant/orderdesk/internal/cache"
	"github.com/creamcroissant/orderdesk/internal/config"
	"github.com/creamcroissant/orderdesk/internal/migrations"
	"github.com/creamcroissant/orderdesk/internal/orderclient"
	"github.com/creamcroissant/orderdesk/internal/repository/sqlite"
	"github.com/creamcroissant/orderdesk/internal/service"
	"github.com/creamcroissant/orderdesk/internal/support/i18n"
)

// App bundles everything the commands share.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	DB       *sql.DB
	Store    *sqlite.Store
	Cache    cache.Store
	Client   *orderclient.Client
	Tokens   *token.Manager
	I18n     *i18n.Manager
	Catalog  *service.StatusCatalog
	Orders   service.OrderLifecycleService
	Watches  service.WatchService
	Audits   service.AuditService
	Registry *prometheus.Registry

	SigningKeySource SigningKeySource
}

// Build opens the local database, applies migrations and wires the services.
// The signing key is resolved before the token manager is created, so a
// default key is replaced by one kept in the settings table.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is required / 配置不能为空")
	}
	if logger == nil {
		logger = slog.Default()
	}

	db, err := OpenSQLite(cfg.DB.Path)
	if err != nil {
		return nil, err
	}
	app := &App{Config: cfg, Logger: logger, DB: db}
	if err := app.build(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return app, nil
}

func (a *App) build(ctx context.Context) error {
	cfg := a.Config
	if err := migrations.Up(a.DB); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	a.Store = sqlite.NewStore(a.DB)

	key, source, err := ResolveSigningKey(ctx, a.DB, cfg.Auth.SigningKey)
	if err != nil {
		return err
	}
	cfg.Auth.SigningKey = key
	a.SigningKeySource = source
	if a.Tokens, err = token.NewManager(token.Options{
		SigningKey: []byte(key),
		Issuer:     cfg.Auth.Issuer,
		Audience:   cfg.Auth.Audience,
		TTL:        cfg.Auth.TokenTTL,
		Leeway:     cfg.Auth.Leeway,
	}); err != nil {
		return fmt.Errorf("token manager: %w", err)
	}

	a.I18n, err = i18n.NewManager(i18n.WithDefaultLang(cfg.I18n.DefaultLang), i18n.WithLogger(a.Logger))
	if err != nil {
		return fmt.Errorf("i18n: %w", err)
	}
	if cfg.I18n.Dir != "" {
		if err := a.I18n.LoadFromDir(cfg.I18n.Dir); err != nil {
			return fmt.Errorf("load locales from %s: %w", cfg.I18n.Dir, err)
		}
	}
	a.Catalog = service.NewStatusCatalog(a.I18n)

	retry := orderclient.DefaultRetryConfig()
	retry.Enabled = cfg.OrderService.Retry.Enabled
	if cfg.OrderService.Retry.MaxRetries > 0 {
		retry.MaxRetries = cfg.OrderService.Retry.MaxRetries
	}
	if cfg.OrderService.Retry.InitialInterval > 0 {
		retry.InitialInterval = cfg.OrderService.Retry.InitialInterval
	}
	if cfg.OrderService.Retry.MaxInterval > 0 {
		retry.MaxInterval = cfg.OrderService.Retry.MaxInterval
	}
	if a.Client, err = orderclient.NewClient(orderclient.Options{
		BaseURL: cfg.OrderService.BaseURL,
		Token:   cfg.OrderService.Token,
		Timeout: cfg.OrderService.Timeout,
		Retry:   retry,
		Logger:  a.Logger.With("component", "orderclient"),
	}); err != nil {
		return fmt.Errorf("order client: %w", err)
	}

	a.Cache = cache.NewStore(cache.Options{
		Prefix:          "orderdesk",
		DefaultTTL:      cfg.Cache.TTL,
		CleanupInterval: cfg.Cache.CleanupInterval,
	})

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if a.Orders, err = service.NewOrderLifecycleService(service.OrderLifecycleOptions{
		Gateway:          a.Client,
		Cache:            a.Cache,
		CacheTTL:         cfg.Cache.TTL,
		Audits:           a.Store.Audits(),
		Registerer:       a.Registry,
		MetricsNamespace: cfg.Metrics.Namespace,
		Logger:           a.Logger.With("component", "lifecycle"),
	}); err != nil {
		return err
	}
	a.Watches = service.NewWatchService(a.Store, a.Orders, a.Logger.With("component", "watch"))
	a.Audits = service.NewAuditService(a.Store)
	return nil
}

// Ready pings the local database.
func (a *App) Ready(ctx context.Context) error {
	return a.DB.PingContext(ctx)
}

// Close releases the database handle.
func (a *App) Close() error {
	if a == nil || a.DB == nil {
		return nil
	}
	return a.DB.Close()
}
