package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. ORDERDESK_ORDER_SERVICE_BASE_URL.
const EnvPrefix = "ORDERDESK"

// Load reads defaults, then the config file (path, or config.yaml in . and
// /etc/orderdesk/), then a .env file, then ORDERDESK_* environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/orderdesk/")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// A missing config.yaml is fine; defaults and env cover everything.
	}

	if err := loadDotEnv(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.ConfigFile = v.ConfigFileUsed()
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", "0.0.0.0:8080")
	v.SetDefault("http.shutdown_timeout", "15s")
	v.SetDefault("http.cors_origins", []string{"*"})
	v.SetDefault("http.max_body_bytes", 1<<20)
	v.SetDefault("http.mutation_limit", 30)
	v.SetDefault("http.mutation_window", "1m")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.add_source", false)
	v.SetDefault("log.environment", "production")

	v.SetDefault("database.path", "data/orderdesk.db")

	v.SetDefault("auth.signing_key", DefaultSigningKey)
	v.SetDefault("auth.token_ttl", "12h")
	v.SetDefault("auth.issuer", "orderdesk")
	v.SetDefault("auth.audience", "orderdesk-admin")
	v.SetDefault("auth.leeway", "30s")

	v.SetDefault("order_service.base_url", "")
	v.SetDefault("order_service.token", "")
	v.SetDefault("order_service.timeout", "30s")
	v.SetDefault("order_service.forward_token", false)
	v.SetDefault("order_service.retry.enabled", true)
	v.SetDefault("order_service.retry.max_retries", 3)
	v.SetDefault("order_service.retry.initial_interval", "200ms")
	v.SetDefault("order_service.retry.max_interval", "2s")

	v.SetDefault("cache.ttl", "15s")
	v.SetDefault("cache.cleanup_interval", "1m")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.namespace", "orderdesk")
	v.SetDefault("metrics.token", "")

	v.SetDefault("jobs.watch_refresh", "@every 1m")
	v.SetDefault("jobs.audit_cleanup", "@daily")

	v.SetDefault("audit.retention", "720h")

	v.SetDefault("i18n.default_lang", "en-US")
	v.SetDefault("i18n.dir", "")
}

func loadDotEnv(v *viper.Viper) error {
	candidates := []string{".", ".."}
	for _, path := range candidates {
		file := filepath.Clean(filepath.Join(path, ".env"))
		if _, err := os.Stat(file); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("stat .env: %w", err)
		}

		// Separate instance so .env keys are not confused with the main config.
		envViper := viper.New()
		envViper.SetConfigFile(file)
		envViper.SetConfigType("env")
		if err := envViper.ReadInConfig(); err != nil {
			return fmt.Errorf("read .env: %w", err)
		}
		bindDotEnv(v, envViper)
		return nil
	}
	return nil
}

// bindDotEnv maps flat .env keys onto the hierarchical config. Values from
// the config file or ORDERDESK_* variables take precedence.
func bindDotEnv(target *viper.Viper, source *viper.Viper) {
	mappings := map[string]string{
		"HTTP_ADDR":           "http.addr",
		"LOG_LEVEL":           "log.level",
		"LOG_FORMAT":          "log.format",
		"DB_PATH":             "database.path",
		"AUTH_SIGNING_KEY":    "auth.signing_key",
		"ORDER_SERVICE_URL":   "order_service.base_url",
		"ORDER_SERVICE_TOKEN": "order_service.token",
		"METRICS_TOKEN":       "metrics.token",
	}
	for oldKey, newKey := range mappings {
		val := source.GetString(oldKey)
		if val == "" || target.InConfig(newKey) {
			continue
		}
		if _, ok := os.LookupEnv(envName(newKey)); ok {
			continue
		}
		target.Set(newKey, val)
	}
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}
