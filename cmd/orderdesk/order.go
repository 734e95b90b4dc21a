package main

import (
	"context"
	"fmt"
	"os/user"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/creamcroissant/orderdesk/internal/lifecycle"
	"github.com/creamcroissant/orderdesk/internal/service"
)

var actorFlag string

func init() {
	var orderCmd = &cobra.Command{
		Use:   "order",
		Short: "Inspect and change orders through the lifecycle rules",
	}
	orderCmd.PersistentFlags().StringVar(&actorFlag, "actor", "", "Actor recorded in the audit log (default: OS user)")

	var showFresh bool
	var showCmd = &cobra.Command{
		Use:   "show <order-id>",
		Short: "Show an order with its progress and allowed actions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOrders(cmd, func(ctx context.Context, orders service.OrderLifecycleService) (*service.OrderView, error) {
				if showFresh {
					return orders.Refresh(ctx, args[0])
				}
				return orders.Order(ctx, args[0])
			})
		},
	}
	showCmd.Flags().BoolVar(&showFresh, "fresh", false, "Bypass the view cache")
	orderCmd.AddCommand(showCmd)

	orderCmd.AddCommand(&cobra.Command{
		Use:   "history <order-id>",
		Short: "List status history, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer app.Close()
			history, err := app.Orders.History(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			f, _ := parseFormat(outputFormat)
			return render(cmd.OutOrStdout(), f, history, func(tw *tabwriter.Writer) {
				writeHistory(tw, history)
			})
		},
	})

	var notes, expect string
	var statusCmd = &cobra.Command{
		Use:   "status <order-id> <status>",
		Short: "Move an order to another status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOrders(cmd, func(ctx context.Context, orders service.OrderLifecycleService) (*service.OrderView, error) {
				return orders.UpdateStatus(ctx, args[0], service.StatusUpdateInput{
					Status:         args[1],
					Notes:          notes,
					ExpectedStatus: expect,
					Actor:          resolveActor(),
				})
			})
		},
	}
	statusCmd.Flags().StringVar(&notes, "notes", "", "Note stored with the change")
	statusCmd.Flags().StringVar(&expect, "expect", "", "Refuse the change unless the order is still in this status")
	orderCmd.AddCommand(statusCmd)

	var reason string
	var cancelCmd = &cobra.Command{
		Use:   "cancel <order-id>",
		Short: "Cancel an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOrders(cmd, func(ctx context.Context, orders service.OrderLifecycleService) (*service.OrderView, error) {
				return orders.Cancel(ctx, args[0], service.CancelInput{Reason: reason, Actor: resolveActor()})
			})
		},
	}
	cancelCmd.Flags().StringVar(&reason, "reason", "", "Cancellation reason (required)")
	orderCmd.AddCommand(cancelCmd)

	var rider, vehicle string
	var assignCmd = &cobra.Command{
		Use:   "assign <order-id>",
		Short: "Assign a rider and optionally a vehicle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(rider) == "" {
				return fmt.Errorf("--rider is required")
			}
			return withOrders(cmd, func(ctx context.Context, orders service.OrderLifecycleService) (*service.OrderView, error) {
				return orders.Assign(ctx, args[0], service.AssignInput{RiderID: rider, VehicleID: vehicle, Actor: resolveActor()})
			})
		},
	}
	assignCmd.Flags().StringVar(&rider, "rider", "", "Rider id")
	assignCmd.Flags().StringVar(&vehicle, "vehicle", "", "Vehicle id")
	orderCmd.AddCommand(assignCmd)

	rootCmd.AddCommand(orderCmd)
}

// withOrders opens the app, runs fn and prints the resulting view.
func withOrders(cmd *cobra.Command, fn func(ctx context.Context, orders service.OrderLifecycleService) (*service.OrderView, error)) error {
	app, err := openApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer app.Close()

	f, _ := parseFormat(outputFormat)
	show := func(view *service.OrderView) error {
		return render(cmd.OutOrStdout(), f, view, func(tw *tabwriter.Writer) {
			writeOrderView(tw, app.Catalog, view)
		})
	}

	view, err := fn(cmd.Context(), app.Orders)
	if err != nil {
		// show where the order actually is before reporting the conflict
		if stale, ok := service.AsStaleState(err); ok && stale.View != nil {
			_ = show(stale.View)
		}
		return err
	}
	return show(view)
}

func resolveActor() string {
	if actor := strings.TrimSpace(actorFlag); actor != "" {
		return actor
	}
	if u, err := user.Current(); err == nil && u.Username != "" {
		return "cli:" + u.Username
	}
	return "cli"
}

func writeOrderView(tw *tabwriter.Writer, catalog *service.StatusCatalog, view *service.OrderView) {
	order := view.Order
	fmt.Fprintf(tw, "Order\t%s\n", order.ID)
	if order.Number != "" {
		fmt.Fprintf(tw, "Number\t%s\n", order.Number)
	}
	fmt.Fprintf(tw, "Status\t%s (%s)\n", catalog.Label("", order.Status), order.Status)
	if order.CustomerName != "" {
		fmt.Fprintf(tw, "Customer\t%s\n", order.CustomerName)
	}
	if order.RiderID != "" {
		fmt.Fprintf(tw, "Rider\t%s %s\n", order.RiderID, order.VehicleID)
	}
	if exc := view.Progress.Exception; exc != nil {
		fmt.Fprintf(tw, "Exception\t%s %s\n", catalog.Label("", exc.Kind), exc.Reason)
	} else {
		steps := make([]string, 0, len(view.Progress.Steps))
		for _, step := range view.Progress.Steps {
			marker := "[ ]"
			switch {
			case step.Completed:
				marker = "[x]"
			case step.Active:
				marker = "[>]"
			}
			steps = append(steps, marker+" "+catalog.Label("", step.Status))
		}
		fmt.Fprintf(tw, "Progress\t%s\n", strings.Join(steps, "  "))
	}
	next := make([]string, 0, len(view.Actions.NextStatuses))
	for _, s := range view.Actions.NextStatuses {
		next = append(next, string(s))
	}
	fmt.Fprintf(tw, "Next\t%s\n", strings.Join(next, ", "))
	fmt.Fprintf(tw, "Can cancel\t%v\n", view.Actions.CanCancel)
	fmt.Fprintf(tw, "Can assign\t%v\n", view.Actions.CanAssign)
	fmt.Fprintf(tw, "Fetched\t%s\n", view.FetchedAt.Local().Format(time.DateTime))
}

func writeHistory(tw *tabwriter.Writer, history []lifecycle.HistoryEntry) {
	fmt.Fprintln(tw, "When\tFrom\tTo\tActor\tNote")
	for _, entry := range history {
		from := "-"
		if entry.From != nil {
			from = string(*entry.From)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			entry.OccurredAt.Local().Format(time.DateTime), from, entry.To, entry.Actor, entry.Note)
	}
}
