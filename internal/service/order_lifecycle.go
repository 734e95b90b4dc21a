// 文件路径: internal/service/order_lifecycle.go
// 模块说明: 订单状态生命周期服务。本地校验状态变更，转发给订单服务，并在每次变更后重新拉取订单。
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"

	"github.com/creamcroissant/orderdesk/internal/cache"
	"github.com/creamcroissant/orderdesk/internal/lifecycle"
	"github.com/creamcroissant/orderdesk/internal/orderclient"
	"github.com/creamcroissant/orderdesk/internal/repository"
)

// OrderGateway is the subset of the order-service client the lifecycle service needs.
type OrderGateway interface {
	GetOrder(ctx context.Context, id string) (*orderclient.Order, error)
	GetHistory(ctx context.Context, id string) ([]lifecycle.HistoryEntry, error)
	UpdateStatus(ctx context.Context, id string, req orderclient.UpdateStatusRequest) error
	Cancel(ctx context.Context, id string, req orderclient.CancelRequest) error
	Assign(ctx context.Context, id string, req orderclient.AssignRequest) error
}

// OrderView is everything the portal renders for one order.
type OrderView struct {
	Order     orderclient.Order        `json:"order"`
	History   []lifecycle.HistoryEntry `json:"history"`
	Progress  lifecycle.Progress       `json:"progress"`
	Actions   lifecycle.Actions        `json:"actions"`
	FetchedAt time.Time                `json:"fetched_at"`
}

// StatusUpdateInput is a generic status change. ExpectedStatus, when set,
// must match the current status or the update is refused as stale.
type StatusUpdateInput struct {
	Status         string
	Notes          string
	ExpectedStatus string
	Actor          string
}

// CancelInput cancels an order.
type CancelInput struct {
	Reason string
	Actor  string
}

// AssignInput assigns a rider and optionally a vehicle.
type AssignInput struct {
	RiderID   string
	VehicleID string
	Actor     string
}

// OrderLifecycleService exposes order reads and validated lifecycle mutations.
type OrderLifecycleService interface {
	Order(ctx context.Context, id string) (*OrderView, error)
	History(ctx context.Context, id string) ([]lifecycle.HistoryEntry, error)
	Progress(ctx context.Context, id string) (*lifecycle.Progress, error)
	Refresh(ctx context.Context, id string) (*OrderView, error)
	UpdateStatus(ctx context.Context, id string, in StatusUpdateInput) (*OrderView, error)
	Cancel(ctx context.Context, id string, in CancelInput) (*OrderView, error)
	Assign(ctx context.Context, id string, in AssignInput) (*OrderView, error)
}

// OrderLifecycleOptions wires the lifecycle service.
type OrderLifecycleOptions struct {
	Gateway          OrderGateway
	Cache            cache.Store
	CacheTTL         time.Duration
	Audits           repository.AuditRepository
	Registerer       prometheus.Registerer
	MetricsNamespace string
	Logger           *slog.Logger
	Now              func() time.Time
}

type orderLifecycleService struct {
	gateway  OrderGateway
	views    cache.Store
	cacheTTL time.Duration
	audits   repository.AuditRepository
	metrics  *lifecycleMetrics
	policy   *bluemonday.Policy
	logger   *slog.Logger
	now      func() time.Time

	loads       singleflight.Group
	inFlight    sync.Map
	generations sync.Map
}

// NewOrderLifecycleService builds the service. Cache and Audits are optional.
func NewOrderLifecycleService(opts OrderLifecycleOptions) (OrderLifecycleService, error) {
	if opts.Gateway == nil {
		return nil, errors.New("service: order gateway is required / 订单服务客户端不能为空")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	var views cache.Store
	if opts.Cache != nil {
		views = opts.Cache.Namespace("order_view")
	}
	return &orderLifecycleService{
		gateway:  opts.Gateway,
		views:    views,
		cacheTTL: opts.CacheTTL,
		audits:   opts.Audits,
		metrics:  newLifecycleMetrics(opts.Registerer, opts.MetricsNamespace),
		policy:   bluemonday.StrictPolicy(),
		logger:   logger,
		now:      now,
	}, nil
}

func (s *orderLifecycleService) Order(ctx context.Context, id string) (*OrderView, error) {
	return s.load(ctx, id, false)
}

func (s *orderLifecycleService) History(ctx context.Context, id string) ([]lifecycle.HistoryEntry, error) {
	view, err := s.load(ctx, id, false)
	if err != nil {
		return nil, err
	}
	return view.History, nil
}

func (s *orderLifecycleService) Progress(ctx context.Context, id string) (*lifecycle.Progress, error) {
	view, err := s.load(ctx, id, false)
	if err != nil {
		return nil, err
	}
	return &view.Progress, nil
}

func (s *orderLifecycleService) Refresh(ctx context.Context, id string) (*OrderView, error) {
	return s.load(ctx, id, true)
}

func (s *orderLifecycleService) UpdateStatus(ctx context.Context, id string, in StatusUpdateInput) (*OrderView, error) {
	requested, err := lifecycle.ParseStatus(in.Status)
	if err != nil {
		s.record(ctx, mutation{orderID: id, action: ActionStatus, requested: lifecycle.Status(in.Status), actor: in.Actor}, "", OutcomeRejected, err)
		return nil, fmt.Errorf("service: update status: %w", err)
	}
	var expected lifecycle.Status
	if strings.TrimSpace(in.ExpectedStatus) != "" {
		if expected, err = lifecycle.ParseStatus(in.ExpectedStatus); err != nil {
			return nil, fmt.Errorf("%w: expected status: %v", ErrInvalidInput, err)
		}
	}
	notes := s.sanitize(in.Notes)

	return s.mutate(ctx, mutation{
		orderID:   id,
		action:    ActionStatus,
		requested: requested,
		expected:  expected,
		actor:     in.Actor,
		note:      notes,
		validate: func(current lifecycle.Status) error {
			return lifecycle.ValidateStatusUpdate(current, requested)
		},
		noop: func(current lifecycle.Status) bool {
			return lifecycle.IsNoop(current, requested)
		},
		apply: func(ctx context.Context) error {
			return s.gateway.UpdateStatus(ctx, id, orderclient.UpdateStatusRequest{Status: requested, Notes: notes})
		},
	})
}

func (s *orderLifecycleService) Cancel(ctx context.Context, id string, in CancelInput) (*OrderView, error) {
	reason := s.sanitize(in.Reason)
	return s.mutate(ctx, mutation{
		orderID:   id,
		action:    ActionCancel,
		requested: lifecycle.StatusCancelled,
		actor:     in.Actor,
		note:      reason,
		precheck: func() error {
			// An empty reason is refused before the order is even loaded.
			if reason == "" {
				return lifecycle.ValidateCancel("", reason)
			}
			return nil
		},
		validate: func(current lifecycle.Status) error {
			return lifecycle.ValidateCancel(current, reason)
		},
		apply: func(ctx context.Context) error {
			return s.gateway.Cancel(ctx, id, orderclient.CancelRequest{Reason: reason})
		},
	})
}

func (s *orderLifecycleService) Assign(ctx context.Context, id string, in AssignInput) (*OrderView, error) {
	riderID := strings.TrimSpace(in.RiderID)
	vehicleID := strings.TrimSpace(in.VehicleID)
	if riderID == "" {
		return nil, fmt.Errorf("%w: rider id is required", ErrInvalidInput)
	}
	return s.mutate(ctx, mutation{
		orderID:   id,
		action:    ActionAssign,
		requested: lifecycle.StatusAssigned,
		actor:     in.Actor,
		note:      "rider " + riderID,
		validate:  lifecycle.ValidateAssign,
		apply: func(ctx context.Context) error {
			return s.gateway.Assign(ctx, id, orderclient.AssignRequest{RiderID: riderID, VehicleID: vehicleID})
		},
	})
}

type mutation struct {
	orderID   string
	action    string
	requested lifecycle.Status
	expected  lifecycle.Status
	actor     string
	note      string
	precheck  func() error
	validate  func(current lifecycle.Status) error
	noop      func(current lifecycle.Status) bool
	apply     func(ctx context.Context) error
}

// mutate runs one validated mutation: local checks first, then a single
// order-service call, then a fresh refetch. At most one mutation per order runs at a time.
func (s *orderLifecycleService) mutate(ctx context.Context, m mutation) (*OrderView, error) {
	m.orderID = strings.TrimSpace(m.orderID)
	if m.orderID == "" {
		return nil, orderclient.ErrOrderIDRequired
	}
	if m.precheck != nil {
		if err := m.precheck(); err != nil {
			s.record(ctx, m, "", OutcomeRejected, err)
			return nil, err
		}
	}

	if _, busy := s.inFlight.LoadOrStore(m.orderID, struct{}{}); busy {
		s.metrics.transition(m.action, OutcomeInFlight)
		return nil, ErrMutationInFlight
	}
	defer s.inFlight.Delete(m.orderID)

	view, err := s.load(ctx, m.orderID, false)
	if err != nil {
		return nil, err
	}
	current := view.Order.Status

	if m.expected != "" && m.expected != current {
		// The cached view may simply be old; only the order-service can say.
		if view, err = s.load(ctx, m.orderID, true); err != nil {
			return nil, err
		}
		current = view.Order.Status
		if m.expected != current {
			stale := &StaleStateError{OrderID: m.orderID, Expected: m.expected, Actual: current, View: view}
			s.record(ctx, m, current, OutcomeStale, stale)
			return nil, stale
		}
	}

	if err := m.validate(current); err != nil {
		s.record(ctx, m, current, OutcomeRejected, err)
		return nil, err
	}
	if m.noop != nil && m.noop(current) {
		s.record(ctx, m, current, OutcomeNoop, nil)
		return view, nil
	}

	// Once sent, the request runs to completion even if the caller goes away.
	applyCtx := context.WithoutCancel(ctx)
	applyErr := m.apply(applyCtx)
	s.invalidate(applyCtx, m.orderID)

	if applyErr != nil {
		return nil, s.mutationFailed(applyCtx, m, current, applyErr)
	}

	s.record(applyCtx, m, current, OutcomeAccepted, nil)
	fresh, err := s.load(applyCtx, m.orderID, true)
	if err != nil {
		return nil, fmt.Errorf("service: refetch after %s: %w", m.action, err)
	}
	return fresh, nil
}

func (s *orderLifecycleService) mutationFailed(ctx context.Context, m mutation, current lifecycle.Status, err error) error {
	srvErr, ok := orderclient.AsServerError(err)
	switch {
	case ok && srvErr.Conflict():
		stale := &StaleStateError{OrderID: m.orderID, Expected: current, Cause: err}
		if view, loadErr := s.load(ctx, m.orderID, true); loadErr == nil {
			stale.View = view
			stale.Actual = view.Order.Status
		} else {
			s.logger.Warn("refetch after conflict failed", "order_id", m.orderID, "error", loadErr)
		}
		s.record(ctx, m, current, OutcomeStale, err)
		return stale
	case ok && srvErr.NotFound():
		s.record(ctx, m, current, OutcomeFailed, err)
		return fmt.Errorf("%w: order %s: %v", ErrNotFound, m.orderID, err)
	case ok && srvErr.Unauthorized():
		s.record(ctx, m, current, OutcomeFailed, err)
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	default:
		s.record(ctx, m, current, OutcomeFailed, err)
		return err
	}
}

// load returns the order view, from cache unless fresh is set. Concurrent
// loads of the same order under the same credentials share one upstream
// round trip.
func (s *orderLifecycleService) load(ctx context.Context, id string, fresh bool) (*OrderView, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, orderclient.ErrOrderIDRequired
	}
	key := viewKey(ctx, id)
	if fresh {
		// Do not join a load that may have started before a mutation landed.
		s.loads.Forget(key)
		s.invalidate(ctx, id)
	} else if view, ok := s.cached(ctx, id, key); ok {
		s.metrics.load("cache")
		return view, nil
	}

	ch := s.loads.DoChan(key, func() (any, error) {
		return s.fetch(context.WithoutCancel(ctx), id, key)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		s.metrics.load("upstream")
		view := *res.Val.(*OrderView)
		return &view, nil
	}
}

// viewKey scopes cached views to the forwarded operator token, so a view
// fetched under one token is never served to a caller presenting another.
func viewKey(ctx context.Context, id string) string {
	token := orderclient.TokenFromContext(ctx)
	if token == "" {
		return id
	}
	sum := sha256.Sum256([]byte(token))
	return id + "@" + hex.EncodeToString(sum[:8])
}

// cachedView stamps a view with the order generation it was fetched under.
type cachedView struct {
	Generation uint64    `json:"generation"`
	View       OrderView `json:"view"`
}

func (s *orderLifecycleService) fetch(ctx context.Context, id, key string) (*OrderView, error) {
	gen := s.generation(id)
	order, err := s.gateway.GetOrder(ctx, id)
	if err != nil {
		return nil, mapReadError(id, err)
	}
	history := order.History
	if !order.EmbeddedHistory || len(history) == 0 {
		if history, err = s.gateway.GetHistory(ctx, id); err != nil {
			return nil, mapReadError(id, err)
		}
	}
	order.History = nil

	view := &OrderView{
		Order:     *order,
		History:   history,
		Progress:  lifecycle.Project(order.Status, history),
		Actions:   lifecycle.AllowedActions(order.Status),
		FetchedAt: s.now().UTC(),
	}
	if view.History == nil {
		view.History = []lifecycle.HistoryEntry{}
	}
	// A refresh or mutation since this load started makes its result stale.
	if s.views != nil && s.generation(id) == gen {
		entry := cachedView{Generation: gen, View: *view}
		if err := s.views.SetJSON(ctx, key, entry, s.cacheTTL); err != nil {
			s.logger.Warn("cache order view failed", "order_id", id, "error", err)
		}
	}
	return view, nil
}

func (s *orderLifecycleService) cached(ctx context.Context, id, key string) (*OrderView, bool) {
	if s.views == nil {
		return nil, false
	}
	var entry cachedView
	ok, err := s.views.GetJSON(ctx, key, &entry)
	if err != nil {
		s.logger.Warn("decode cached order view failed", "order_id", id, "error", err)
		s.views.Delete(ctx, key)
		return nil, false
	}
	if !ok || entry.Generation != s.generation(id) {
		return nil, false
	}
	return &entry.View, true
}

// invalidate drops the shared cached view and retires views cached under
// any forwarded token by moving the order to a new generation.
func (s *orderLifecycleService) invalidate(ctx context.Context, id string) {
	counter, _ := s.generations.LoadOrStore(id, new(atomic.Uint64))
	counter.(*atomic.Uint64).Add(1)
	if s.views != nil {
		s.views.Delete(ctx, id)
	}
}

func (s *orderLifecycleService) generation(id string) uint64 {
	if counter, ok := s.generations.Load(id); ok {
		return counter.(*atomic.Uint64).Load()
	}
	return 0
}

func (s *orderLifecycleService) sanitize(raw string) string {
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(raw)))
}

func (s *orderLifecycleService) record(ctx context.Context, m mutation, from lifecycle.Status, outcome string, cause error) {
	s.metrics.transition(m.action, outcome)

	level := slog.LevelInfo
	if outcome == OutcomeFailed {
		level = slog.LevelWarn
	}
	attrs := []any{"order_id", m.orderID, "action", m.action, "from", from, "to", m.requested, "outcome", outcome}
	if m.actor != "" {
		attrs = append(attrs, "actor", m.actor)
	}
	if cause != nil {
		attrs = append(attrs, "error", cause)
	}
	s.logger.Log(ctx, level, "order transition", attrs...)

	if s.audits == nil {
		return
	}
	entry := &repository.TransitionAudit{
		OrderID:    m.orderID,
		Action:     m.action,
		FromStatus: string(from),
		ToStatus:   string(m.requested),
		Actor:      m.actor,
		Note:       m.note,
		Outcome:    outcome,
		CreatedAt:  s.now().Unix(),
	}
	if cause != nil {
		entry.Error = cause.Error()
	}
	if err := s.audits.Create(ctx, entry); err != nil {
		s.logger.Warn("write transition audit failed", "order_id", m.orderID, "error", err)
	}
}

func mapReadError(id string, err error) error {
	srvErr, ok := orderclient.AsServerError(err)
	switch {
	case ok && srvErr.NotFound():
		return fmt.Errorf("%w: order %s", ErrNotFound, id)
	case ok && srvErr.Unauthorized():
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	default:
		return err
	}
}
