package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/creamcroissant/orderdesk/internal/bootstrap"
	"github.com/creamcroissant/orderdesk/internal/config"
	"github.com/creamcroissant/orderdesk/internal/support/logging"
)

// Build info - injected via ldflags
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var (
	configPath   string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:           "orderdesk",
	Short:         "Order status desk",
	Long:          `orderdesk validates order lifecycle changes against the order-service and tracks delivery progress.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if _, err := parseFormat(outputFormat); err != nil {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default ./config.yaml or /etc/orderdesk/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", string(formatTable), "Output format: table, json or yaml")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "orderdesk %s\n", Version)
			fmt.Fprintf(out, "Commit: %s\n", Commit)
			fmt.Fprintf(out, "Build Time: %s\n", BuildTime)
		},
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	return logging.New(logging.Options{
		Level:     cfg.Log.SlogLevel(),
		Format:    cfg.Log.Format,
		AddSource: cfg.Log.AddSource,
		Attrs:     []any{"service", "orderdesk", "env", cfg.Log.Environment},
	})
}

// openApp loads and validates the config, then wires the services. Callers
// must Close the returned app.
func openApp(ctx context.Context, serving bool) (*bootstrap.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(false); err != nil {
		return nil, err
	}
	app, err := bootstrap.Build(ctx, cfg, newLogger(cfg))
	if err != nil {
		return nil, err
	}
	if serving {
		// the signing key is only settled once Build has resolved it
		if err := cfg.Validate(true); err != nil {
			_ = app.Close()
			return nil, err
		}
	}
	return app, nil
}
