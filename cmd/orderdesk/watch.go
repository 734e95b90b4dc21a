package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/creamcroissant/orderdesk/internal/repository"
)

func init() {
	var watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Manage the watch list refreshed in the background",
	}

	var label string
	var addCmd = &cobra.Command{
		Use:   "add <order-id>",
		Short: "Watch an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer app.Close()
			w, err := app.Watches.Watch(cmd.Context(), args[0], label, resolveActor())
			if err != nil {
				return err
			}
			return renderWatches(cmd, []*repository.WatchedOrder{w})
		},
	}
	addCmd.Flags().StringVar(&label, "label", "", "Short label shown in the list")
	addCmd.Flags().StringVar(&actorFlag, "actor", "", "Actor recorded with the watch (default: OS user)")
	watchCmd.AddCommand(addCmd)

	watchCmd.AddCommand(&cobra.Command{
		Use:     "rm <order-id>",
		Aliases: []string{"remove"},
		Short:   "Stop watching an order",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer app.Close()
			if err := app.Watches.Unwatch(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Order %s removed from the watch list.\n", args[0])
			return nil
		},
	})

	watchCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List watched orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer app.Close()
			list, err := app.Watches.List(cmd.Context())
			if err != nil {
				return err
			}
			return renderWatches(cmd, list)
		},
	})

	watchCmd.AddCommand(&cobra.Command{
		Use:   "refresh",
		Short: "Refetch every watched order now",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer app.Close()
			result, err := app.Watches.RefreshAll(cmd.Context())
			if err != nil {
				return err
			}
			f, _ := parseFormat(outputFormat)
			return render(cmd.OutOrStdout(), f, result, func(tw *tabwriter.Writer) {
				fmt.Fprintln(tw, "Checked\tChanged\tDropped\tFailed")
				fmt.Fprintf(tw, "%d\t%d\t%d\t%d\n", result.Checked, result.Changed, result.Dropped, result.Failed)
			})
		},
	})
	rootCmd.AddCommand(watchCmd)

	var auditOrder, auditOutcome string
	var auditLimit int
	var auditCmd = &cobra.Command{
		Use:   "audit",
		Short: "List recorded lifecycle mutations",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer app.Close()
			audits, total, err := app.Audits.List(cmd.Context(), repository.AuditFilter{
				OrderID: strings.TrimSpace(auditOrder),
				Outcome: strings.TrimSpace(auditOutcome),
				Limit:   auditLimit,
			})
			if err != nil {
				return err
			}
			f, _ := parseFormat(outputFormat)
			return render(cmd.OutOrStdout(), f, map[string]any{"data": audits, "total": total}, func(tw *tabwriter.Writer) {
				fmt.Fprintln(tw, "Time\tOrder\tAction\tFrom\tTo\tActor\tOutcome\tError")
				for _, a := range audits {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
						time.Unix(a.CreatedAt, 0).Format(time.DateTime), a.OrderID, a.Action,
						a.FromStatus, a.ToStatus, a.Actor, a.Outcome, a.Error)
				}
				fmt.Fprintf(tw, "\n%d of %d entries\n", len(audits), total)
			})
		},
	}
	auditCmd.Flags().StringVar(&auditOrder, "order", "", "Only entries for this order")
	auditCmd.Flags().StringVar(&auditOutcome, "outcome", "", "Only entries with this outcome")
	auditCmd.Flags().IntVarP(&auditLimit, "limit", "l", 50, "Maximum number of entries")
	rootCmd.AddCommand(auditCmd)
}

func renderWatches(cmd *cobra.Command, list []*repository.WatchedOrder) error {
	f, _ := parseFormat(outputFormat)
	return render(cmd.OutOrStdout(), f, list, func(tw *tabwriter.Writer) {
		fmt.Fprintln(tw, "Order\tLabel\tStatus\tChecked\tAdded by")
		for _, w := range list {
			checked := "-"
			if w.LastCheckedAt != nil {
				checked = time.Unix(*w.LastCheckedAt, 0).Format(time.DateTime)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", w.OrderID, w.Label, w.LastStatus, checked, w.AddedBy)
		}
	})
}
