package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/creamcroissant/orderdesk/internal/lifecycle"
	"github.com/creamcroissant/orderdesk/internal/repository"
)

// WatchRefreshResult summarises one refresh pass over the watch list.
type WatchRefreshResult struct {
	Checked int `json:"checked"`
	Changed int `json:"changed"`
	Dropped int `json:"dropped"`
	Failed  int `json:"failed"`
}

// WatchService manages orders pinned by operators.
type WatchService interface {
	Watch(ctx context.Context, orderID, label, actor string) (*repository.WatchedOrder, error)
	Unwatch(ctx context.Context, orderID string) error
	List(ctx context.Context) ([]*repository.WatchedOrder, error)
	RefreshAll(ctx context.Context) (WatchRefreshResult, error)
}

type watchService struct {
	watches     repository.WatchRepository
	orders      OrderLifecycleService
	logger      *slog.Logger
	concurrency int
	now         func() time.Time
}

// NewWatchService creates the watch list service.
func NewWatchService(store repository.Store, orders OrderLifecycleService, logger *slog.Logger) WatchService {
	if logger == nil {
		logger = slog.Default()
	}
	return &watchService{
		watches:     store.Watches(),
		orders:      orders,
		logger:      logger,
		concurrency: 4,
		now:         time.Now,
	}
}

// Watch pins an order after checking that the order-service knows it and
// that it has not finished.
func (s *watchService) Watch(ctx context.Context, orderID, label, actor string) (*repository.WatchedOrder, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, fmt.Errorf("%w: order id is required", ErrInvalidInput)
	}
	view, err := s.orders.Order(ctx, orderID)
	if err != nil {
		return nil, err
	}
	// Finished orders are never kept on the watch list.
	if status := view.Order.Status; lifecycle.IsTerminal(status) {
		return nil, &lifecycle.InvalidTransitionError{Current: status, Requested: status, Cause: lifecycle.ErrTerminalStatus}
	}
	watch := &repository.WatchedOrder{
		OrderID: orderID,
		Label:   strings.TrimSpace(label),
		AddedBy: actor,
	}
	if err := s.watches.Upsert(ctx, watch); err != nil {
		return nil, fmt.Errorf("save watch: %w", err)
	}
	if err := s.watches.RecordStatus(ctx, orderID, string(view.Order.Status), s.now().Unix()); err != nil {
		return nil, fmt.Errorf("record watch status: %w", err)
	}
	return s.watches.Find(ctx, orderID)
}

func (s *watchService) Unwatch(ctx context.Context, orderID string) error {
	err := s.watches.Delete(ctx, strings.TrimSpace(orderID))
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *watchService) List(ctx context.Context) ([]*repository.WatchedOrder, error) {
	return s.watches.List(ctx)
}

// RefreshAll refetches every watched order, records the status it is in and
// drops orders that reached a terminal status or no longer exist.
func (s *watchService) RefreshAll(ctx context.Context) (WatchRefreshResult, error) {
	watches, err := s.watches.List(ctx)
	if err != nil {
		return WatchRefreshResult{}, fmt.Errorf("list watches: %w", err)
	}

	var changed, dropped, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, w := range watches {
		w := w
		g.Go(func() error {
			view, err := s.orders.Refresh(gctx, w.OrderID)
			switch {
			case errors.Is(err, ErrNotFound):
				if err := s.watches.Delete(gctx, w.OrderID); err != nil && !errors.Is(err, repository.ErrNotFound) {
					s.logger.Warn("drop missing watched order failed", "order_id", w.OrderID, "error", err)
				}
				dropped.Add(1)
				return nil
			case err != nil:
				s.logger.Warn("refresh watched order failed", "order_id", w.OrderID, "error", err)
				failed.Add(1)
				return nil
			}

			status := view.Order.Status
			if string(status) != w.LastStatus {
				changed.Add(1)
				s.logger.Info("watched order changed status", "order_id", w.OrderID, "from", w.LastStatus, "to", status)
			}
			if lifecycle.IsTerminal(status) {
				if err := s.watches.Delete(gctx, w.OrderID); err != nil && !errors.Is(err, repository.ErrNotFound) {
					return fmt.Errorf("drop watch %s: %w", w.OrderID, err)
				}
				dropped.Add(1)
				return nil
			}
			if err := s.watches.RecordStatus(gctx, w.OrderID, string(status), s.now().Unix()); err != nil && !errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("record watch %s: %w", w.OrderID, err)
			}
			return nil
		})
	}
	err = g.Wait()

	return WatchRefreshResult{
		Checked: len(watches),
		Changed: int(changed.Load()),
		Dropped: int(dropped.Load()),
		Failed:  int(failed.Load()),
	}, err
}
