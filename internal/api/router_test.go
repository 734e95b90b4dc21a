package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creamcroissant/orderdesk/internal/auth/token"
	"github.com/creamcroissant/orderdesk/internal/config"
	"github.com/creamcroissant/orderdesk/internal/lifecycle"
	"github.com/creamcroissant/orderdesk/internal/orderclient"
	"github.com/creamcroissant/orderdesk/internal/repository"
	"github.com/creamcroissant/orderdesk/internal/service"
	"github.com/creamcroissant/orderdesk/internal/support/i18n"
)

type fakeOrders struct {
	mu        sync.Mutex
	view      *service.OrderView
	readErr   error
	mutateErr error
	updates   []service.StatusUpdateInput
	tokens    []string
}

func (f *fakeOrders) Order(context.Context, string) (*service.OrderView, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	copied := *f.view
	return &copied, nil
}

func (f *fakeOrders) History(ctx context.Context, id string) ([]lifecycle.HistoryEntry, error) {
	view, err := f.Order(ctx, id)
	if err != nil {
		return nil, err
	}
	return view.History, nil
}

func (f *fakeOrders) Progress(ctx context.Context, id string) (*lifecycle.Progress, error) {
	view, err := f.Order(ctx, id)
	if err != nil {
		return nil, err
	}
	return &view.Progress, nil
}

func (f *fakeOrders) Refresh(ctx context.Context, id string) (*service.OrderView, error) {
	return f.Order(ctx, id)
}

func (f *fakeOrders) UpdateStatus(ctx context.Context, id string, in service.StatusUpdateInput) (*service.OrderView, error) {
	f.mu.Lock()
	f.updates = append(f.updates, in)
	f.tokens = append(f.tokens, orderclient.TokenFromContext(ctx))
	f.mu.Unlock()
	if f.mutateErr != nil {
		return nil, f.mutateErr
	}
	return f.Order(ctx, id)
}

func (f *fakeOrders) Cancel(ctx context.Context, id string, _ service.CancelInput) (*service.OrderView, error) {
	if f.mutateErr != nil {
		return nil, f.mutateErr
	}
	return f.Order(ctx, id)
}

func (f *fakeOrders) Assign(ctx context.Context, id string, _ service.AssignInput) (*service.OrderView, error) {
	if f.mutateErr != nil {
		return nil, f.mutateErr
	}
	return f.Order(ctx, id)
}

type fakeWatches struct {
	added []string
}

func (f *fakeWatches) Watch(_ context.Context, orderID, label, actor string) (*repository.WatchedOrder, error) {
	f.added = append(f.added, orderID+"|"+label+"|"+actor)
	return &repository.WatchedOrder{OrderID: orderID, Label: label, AddedBy: actor}, nil
}

func (f *fakeWatches) Unwatch(context.Context, string) error { return service.ErrNotFound }

func (f *fakeWatches) List(context.Context) ([]*repository.WatchedOrder, error) {
	return []*repository.WatchedOrder{}, nil
}

func (f *fakeWatches) RefreshAll(context.Context) (service.WatchRefreshResult, error) {
	return service.WatchRefreshResult{Checked: 1}, nil
}

type fakeAudits struct {
	filters []repository.AuditFilter
}

func (f *fakeAudits) List(_ context.Context, filter repository.AuditFilter) ([]*repository.TransitionAudit, int64, error) {
	f.filters = append(f.filters, filter)
	return []*repository.TransitionAudit{{ID: "a-1", OrderID: filter.OrderID, Outcome: "accepted"}}, 7, nil
}

func (f *fakeAudits) Cleanup(context.Context, time.Duration) (int64, error) { return 0, nil }

type harness struct {
	handler  http.Handler
	orders   *fakeOrders
	watches  *fakeWatches
	audits   *fakeAudits
	tokens   *token.Manager
	operator string
	viewer   string
}

func newHarness(t *testing.T, mutate func(*Options)) *harness {
	t.Helper()
	tokens, err := token.NewManager(token.Options{SigningKey: []byte("test-secret"), Issuer: "orderdesk"})
	require.NoError(t, err)
	manager, err := i18n.NewManager()
	require.NoError(t, err)

	view := &service.OrderView{
		Order:    orderclient.Order{ID: "o-1", Number: "N-1", Status: lifecycle.StatusConfirmed},
		History:  []lifecycle.HistoryEntry{},
		Progress: lifecycle.Project(lifecycle.StatusConfirmed, nil),
		Actions:  lifecycle.AllowedActions(lifecycle.StatusConfirmed),
	}
	h := &harness{
		orders:  &fakeOrders{view: view},
		watches: &fakeWatches{},
		audits:  &fakeAudits{},
		tokens:  tokens,
	}
	h.operator, _, err = tokens.Issue(token.IssueInput{Subject: "ops-1", Role: token.RoleOperator})
	require.NoError(t, err)
	h.viewer, _, err = tokens.Issue(token.IssueInput{Subject: "viewer-1"})
	require.NoError(t, err)

	opts := Options{
		HTTP:     config.HTTPConfig{MaxBodyBytes: 1 << 16},
		Registry: prometheus.NewRegistry(),
	}
	if mutate != nil {
		mutate(&opts)
	}
	h.handler = NewRouter(nil, Services{
		Orders:  h.orders,
		Watches: h.watches,
		Audits:  h.audits,
		I18n:    manager,
		Tokens:  tokens,
	}, opts)
	return h
}

func (h *harness) do(t *testing.T, method, path, bearer, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func TestRouterRequiresToken(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(t, http.MethodGet, "/api/v1/orders/o-1", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/v1/orders/o-1", "not-a-jwt", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestShowOrderLocalizesProgress(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(t, http.MethodGet, "/api/v1/orders/o-1", h.viewer, "", "Accept-Language", "zh-CN,zh;q=0.9")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `"confirmed"`, rec.Header().Get("ETag"))

	body := decodeBody(t, rec)
	data := body["data"].(map[string]any)
	assert.Equal(t, "confirmed", data["order"].(map[string]any)["status"])
	steps := data["progress"].(map[string]any)["steps"].([]any)
	require.Len(t, steps, lifecycle.StepCount)
	assert.Equal(t, "待处理", steps[0].(map[string]any)["label"])

	// shared view is left untouched
	assert.Equal(t, lifecycle.StatusPending.Label(), h.orders.view.Progress.Steps[0].Label)
}

func TestViewerCannotMutate(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(t, http.MethodPatch, "/api/v1/orders/o-1/status", h.viewer, `{"status":"assigned"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, h.orders.updates)
}

func TestUpdateStatusUsesIfMatchAndActor(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(t, http.MethodPatch, "/api/v1/orders/o-1/status", h.operator,
		`{"status":"assigned","notes":"rider on the way"}`, "If-Match", `"confirmed"`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.Len(t, h.orders.updates, 1)
	in := h.orders.updates[0]
	assert.Equal(t, "assigned", in.Status)
	assert.Equal(t, "confirmed", in.ExpectedStatus)
	assert.Equal(t, "ops-1", in.Actor)
	assert.Empty(t, h.orders.tokens[0])

	body := decodeBody(t, rec)
	assert.Equal(t, "Order status updated", body["message"])
}

func TestForwardTokenReachesOrderService(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.ForwardToken = true })

	rec := h.do(t, http.MethodPatch, "/api/v1/orders/o-1/status", h.operator, `{"status":"assigned"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, h.operator, h.orders.tokens[0])
}

func TestMutationErrorMapping(t *testing.T) {
	staleView := &service.OrderView{Order: orderclient.Order{ID: "o-1", Status: lifecycle.StatusDelivered}}
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"stale", &service.StaleStateError{OrderID: "o-1", View: staleView}, http.StatusConflict, "error.stale_state"},
		{"in flight", service.ErrMutationInFlight, http.StatusConflict, "error.in_flight"},
		{"terminal", &lifecycle.InvalidTransitionError{Current: lifecycle.StatusDelivered, Requested: lifecycle.StatusPending, Cause: lifecycle.ErrTerminalStatus}, http.StatusUnprocessableEntity, "error.terminal_status"},
		{"reason", &lifecycle.InvalidTransitionError{Requested: lifecycle.StatusCancelled, Cause: lifecycle.ErrReasonRequired}, http.StatusUnprocessableEntity, "error.reason_required"},
		{"unknown status", fmt.Errorf("service: update status: %w", lifecycle.ErrUnknownStatus), http.StatusBadRequest, "error.invalid_status"},
		{"invalid input", fmt.Errorf("%w: rider id is required", service.ErrInvalidInput), http.StatusBadRequest, "error.bad_request"},
		{"not found", fmt.Errorf("%w: order o-1", service.ErrNotFound), http.StatusNotFound, "error.not_found"},
		{"unauthorized", service.ErrUnauthorized, http.StatusUnauthorized, "error.unauthorized"},
		{"network", &orderclient.NetworkError{Op: "PATCH", Err: errors.New("connection refused")}, http.StatusBadGateway, "error.upstream"},
		{"server", &orderclient.ServerError{StatusCode: http.StatusInternalServerError}, http.StatusBadGateway, "error.upstream"},
		{"internal", errors.New("boom"), http.StatusInternalServerError, "error.internal_server_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, nil)
			h.orders.mutateErr = tc.err

			rec := h.do(t, http.MethodPatch, "/api/v1/orders/o-1/status", h.operator, `{"status":"pending"}`)
			assert.Equal(t, tc.status, rec.Code)
			body := decodeBody(t, rec)
			assert.Equal(t, tc.code, body["code"])
		})
	}
}

func TestStaleResponseCarriesLatestView(t *testing.T) {
	h := newHarness(t, nil)
	h.orders.mutateErr = &service.StaleStateError{
		OrderID: "o-1",
		View:    &service.OrderView{Order: orderclient.Order{ID: "o-1", Status: lifecycle.StatusDelivered}},
	}

	rec := h.do(t, http.MethodPost, "/api/v1/orders/o-1/cancel", h.operator, `{"reason":"customer asked"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	body := decodeBody(t, rec)
	data := body["data"].(map[string]any)
	assert.Equal(t, "delivered", data["order"].(map[string]any)["status"])
}

func TestStaleResponseLocalizesProgress(t *testing.T) {
	h := newHarness(t, nil)
	latest := &service.OrderView{
		Order:    orderclient.Order{ID: "o-1", Status: lifecycle.StatusDelivered},
		Progress: lifecycle.Project(lifecycle.StatusDelivered, nil),
	}
	h.orders.mutateErr = &service.StaleStateError{OrderID: "o-1", View: latest}

	rec := h.do(t, http.MethodPost, "/api/v1/orders/o-1/cancel?lang=zh-CN", h.operator, `{"reason":"customer asked"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	data := decodeBody(t, rec)["data"].(map[string]any)
	steps := data["progress"].(map[string]any)["steps"].([]any)
	require.Len(t, steps, lifecycle.StepCount)
	assert.Equal(t, "待处理", steps[0].(map[string]any)["label"])
	assert.Equal(t, "已送达", steps[4].(map[string]any)["label"])

	assert.Equal(t, lifecycle.StatusDelivered.Label(), latest.Progress.Steps[4].Label)
}

func TestTerminalMessageIsTranslated(t *testing.T) {
	h := newHarness(t, nil)
	h.orders.mutateErr = &lifecycle.InvalidTransitionError{
		Current:   lifecycle.StatusDelivered,
		Requested: lifecycle.StatusPending,
		Cause:     lifecycle.ErrTerminalStatus,
	}

	rec := h.do(t, http.MethodPatch, "/api/v1/orders/o-1/status?lang=zh-CN", h.operator, `{"status":"pending"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decodeBody(t, rec)
	assert.Contains(t, body["error"], "已送达")
}

func TestMalformedBodyIsBadRequest(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(t, http.MethodPost, "/api/v1/orders/o-1/assign", h.operator, `{"riderId":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReadErrors(t *testing.T) {
	h := newHarness(t, nil)
	h.orders.readErr = fmt.Errorf("%w: order o-1", service.ErrNotFound)

	rec := h.do(t, http.MethodGet, "/api/v1/orders/o-1/history", h.viewer, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMutationRateLimit(t *testing.T) {
	h := newHarness(t, func(o *Options) {
		o.HTTP.MutationLimit = 1
		o.HTTP.MutationWindow = time.Minute
	})

	rec := h.do(t, http.MethodPost, "/api/v1/orders/o-1/assign", h.operator, `{"riderId":"r-1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = h.do(t, http.MethodPost, "/api/v1/orders/o-1/assign", h.operator, `{"riderId":"r-1"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// reads are not limited
	rec = h.do(t, http.MethodGet, "/api/v1/orders/o-1", h.operator, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWatchAndAuditRoutes(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(t, http.MethodPost, "/api/v1/orders/o-1/watch", h.viewer, `{"label":"vip"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"o-1|vip|viewer-1"}, h.watches.added)

	rec = h.do(t, http.MethodPost, "/api/v1/orders/o-2/watch", h.viewer, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.do(t, http.MethodDelete, "/api/v1/orders/o-9/watch", h.viewer, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/v1/orders/o-1/audit?limit=10&offset=5&outcome=stale", h.viewer, "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.EqualValues(t, 7, body["total"])
	require.Len(t, h.audits.filters, 1)
	assert.Equal(t, repository.AuditFilter{OrderID: "o-1", Outcome: "stale", Limit: 10, Offset: 5}, h.audits.filters[0])

	rec = h.do(t, http.MethodGet, "/api/v1/audit?limit=abc", h.viewer, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatusesEndpoint(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(t, http.MethodGet, "/api/v1/statuses", h.viewer, "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Len(t, body["data"], len(lifecycle.Statuses()))
	assert.Len(t, body["steps"], lifecycle.StepCount)
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t, func(o *Options) {
		o.Metrics = config.MetricsConfig{Enabled: true, Namespace: "orderdesk", Token: "scrape"}
	})

	rec := h.do(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	h.do(t, http.MethodGet, "/api/v1/orders/o-1", h.viewer, "")

	rec = h.do(t, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(t, http.MethodGet, "/metrics", "scrape", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `route="/api/v1/orders/{id}`)
	assert.NotContains(t, rec.Body.String(), "o-1")
}

func TestHealthReportsUnready(t *testing.T) {
	tokens, err := token.NewManager(token.Options{SigningKey: []byte("k")})
	require.NoError(t, err)
	handler := NewRouter(nil, Services{
		Orders:  &fakeOrders{},
		Watches: &fakeWatches{},
		Audits:  &fakeAudits{},
		Tokens:  tokens,
		Ready:   func(context.Context) error { return errors.New("db closed") },
	}, Options{Registry: prometheus.NewRegistry()})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
