package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
)

// DefaultSigningKey is the placeholder key shipped in defaults; serving with it is refused.
const DefaultSigningKey = "change-me"

// Config 汇总应用的全部配置。
type Config struct {
	HTTP         HTTPConfig         `mapstructure:"http"`
	Log          LogConfig          `mapstructure:"log"`
	DB           DBConfig           `mapstructure:"database"`
	Auth         AuthConfig         `mapstructure:"auth"`
	OrderService OrderServiceConfig `mapstructure:"order_service"`
	Cache        CacheConfig        `mapstructure:"cache"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
	Jobs         JobsConfig         `mapstructure:"jobs"`
	Audit        AuditConfig        `mapstructure:"audit"`
	I18n         I18nConfig         `mapstructure:"i18n"`

	// ConfigFile is the file the values were read from, empty when none was found.
	ConfigFile string `mapstructure:"-"`
}

// HTTPConfig 定义 HTTP 服务配置。
type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
	// MutationLimit caps mutating requests per operator within MutationWindow; 0 disables it.
	MutationLimit  int           `mapstructure:"mutation_limit"`
	MutationWindow time.Duration `mapstructure:"mutation_window"`
}

// LogConfig 定义日志配置。
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Format      string `mapstructure:"format"`
	AddSource   bool   `mapstructure:"add_source"`
	Environment string `mapstructure:"environment"`
}

// DBConfig 定义本地审计库配置。
type DBConfig struct {
	Path string `mapstructure:"path"`
}

// AuthConfig 定义管理端令牌配置。
type AuthConfig struct {
	SigningKey string        `mapstructure:"signing_key"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
	Issuer     string        `mapstructure:"issuer"`
	Audience   string        `mapstructure:"audience"`
	Leeway     time.Duration `mapstructure:"leeway"`
}

// OrderServiceConfig 定义上游订单服务的访问方式。
type OrderServiceConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
	// ForwardToken sends the operator's own bearer token upstream instead of Token.
	ForwardToken bool        `mapstructure:"forward_token"`
	Retry        RetryConfig `mapstructure:"retry"`
}

// RetryConfig 只作用于读请求。
type RetryConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	MaxRetries      int           `mapstructure:"max_retries"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
}

// CacheConfig 定义订单视图缓存。
type CacheConfig struct {
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// MetricsConfig 定义 Prometheus 指标配置。
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
	Token     string `mapstructure:"token"`
}

// JobsConfig holds cron specs; an empty spec disables the job.
type JobsConfig struct {
	WatchRefresh string `mapstructure:"watch_refresh"`
	AuditCleanup string `mapstructure:"audit_cleanup"`
}

// AuditConfig 定义审计日志保留时间。
type AuditConfig struct {
	Retention time.Duration `mapstructure:"retention"`
}

// I18nConfig 定义界面语言。
type I18nConfig struct {
	DefaultLang string `mapstructure:"default_lang"`
	Dir         string `mapstructure:"dir"`
}

func (c LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Validate checks what every command needs. Serving additionally requires a real signing key.
func (c *Config) Validate(serving bool) error {
	var errs []error
	base := strings.TrimSpace(c.OrderService.BaseURL)
	if base == "" {
		errs = append(errs, errors.New("order_service.base_url is required"))
	} else if u, err := url.Parse(base); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("order_service.base_url %q is not an absolute url", base))
	}
	if c.OrderService.Timeout < 0 {
		errs = append(errs, errors.New("order_service.timeout must not be negative"))
	}
	if c.Cache.TTL < 0 {
		errs = append(errs, errors.New("cache.ttl must not be negative"))
	}
	if serving {
		if key := strings.TrimSpace(c.Auth.SigningKey); key == "" || key == DefaultSigningKey {
			errs = append(errs, errors.New("auth.signing_key must be set to a non-default value"))
		}
		if c.Metrics.Enabled && strings.TrimSpace(c.Metrics.Token) == "" {
			errs = append(errs, errors.New("metrics.token is required when metrics are enabled"))
		}
	}
	return errors.Join(errs...)
}
