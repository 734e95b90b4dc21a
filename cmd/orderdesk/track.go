package main

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/creamcroissant/orderdesk/internal/tui"
)

func init() {
	var interval time.Duration
	var lang string
	var trackCmd = &cobra.Command{
		Use:   "track [order-id]",
		Short: "Launch the interactive order tracker",
		Long:  "Launch a terminal UI showing delivery progress. Without an order id it starts on the watch list.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer app.Close()

			opts := tui.Options{
				Orders:   app.Orders,
				Watches:  app.Watches,
				Catalog:  app.Catalog,
				Lang:     lang,
				Interval: interval,
				Timeout:  app.Config.OrderService.Timeout,
			}
			if len(args) == 1 {
				opts.OrderID = args[0]
			}

			p := tea.NewProgram(
				tui.NewModel(opts),
				tea.WithAltScreen(),
				tea.WithMouseCellMotion(),
			)
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("run tui: %w", err)
			}
			return nil
		},
	}
	trackCmd.Flags().DurationVar(&interval, "interval", 10*time.Second, "Refresh interval")
	trackCmd.Flags().StringVar(&lang, "lang", "", "Label language, e.g. zh-CN")
	rootCmd.AddCommand(trackCmd)
}
