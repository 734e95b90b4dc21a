package orderclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creamcroissant/orderdesk/internal/lifecycle"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(Options{
		BaseURL: srv.URL,
		Token:   "service-token",
		Retry: RetryConfig{
			Enabled:         true,
			MaxRetries:      2,
			InitialInterval: time.Millisecond,
			MaxInterval:     5 * time.Millisecond,
			Multiplier:      2,
		},
	})
	require.NoError(t, err)
	return client
}

func TestGetOrderWrappedEnvelopeWithEmbeddedHistory(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orders/ord-1", r.URL.Path)
		assert.Equal(t, "Bearer service-token", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		_, _ = w.Write([]byte(`{
			"success": true,
			"data": {
				"order": {
					"_id": "ord-1",
					"orderNumber": "A-100",
					"status": "IN_TRANSIT",
					"customer": {"name": "Dana"},
					"riderId": "r-7",
					"createdAt": "2024-05-01T10:00:00Z",
					"order_status_updates": [
						{"status": "picked_up", "created_at": "2024-05-01T10:20:00Z"},
						{"status": "pending", "created_at": "2024-05-01T10:00:00Z", "changed_by": "system"},
						{"status": "warp", "created_at": "2024-05-01T10:05:00Z"}
					]
				}
			}
		}`))
	})

	order, err := client.GetOrder(context.Background(), "ord-1")
	require.NoError(t, err)
	assert.Equal(t, "ord-1", order.ID)
	assert.Equal(t, "A-100", order.Number)
	assert.Equal(t, lifecycle.StatusInTransit, order.Status)
	assert.Equal(t, "Dana", order.CustomerName)
	assert.Equal(t, "r-7", order.RiderID)
	require.NotNil(t, order.CreatedAt)
	assert.True(t, order.EmbeddedHistory)
	require.Len(t, order.History, 2)
	assert.Equal(t, lifecycle.StatusPending, order.History[0].To)
	assert.Equal(t, "system", order.History[0].Actor)
	assert.Equal(t, lifecycle.StatusPickedUp, order.History[1].To)
}

func TestGetOrderBareObject(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status": "pending"}`))
	})

	order, err := client.GetOrder(context.Background(), "ord-2")
	require.NoError(t, err)
	assert.Equal(t, "ord-2", order.ID)
	assert.Equal(t, lifecycle.StatusPending, order.Status)
	assert.False(t, order.EmbeddedHistory)
}

func TestGetOrderUnknownStatusIsMalformed(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"order": {"id": "x", "status": "lost-in-space"}}`))
	})

	_, err := client.GetOrder(context.Background(), "x")
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestGetHistoryShapes(t *testing.T) {
	bodies := []string{
		`[{"to_status": "pending", "occurred_at": 1714557600}]`,
		`{"history": [{"toStatus": "pending", "occurredAt": "2024-05-01T10:00:00Z"}]}`,
		`{"data": {"order_status_updates": [{"new_status": "pending", "timestamp": 1714557600000}]}}`,
	}
	for _, body := range bodies {
		body := body
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/orders/o/history", r.URL.Path)
			_, _ = w.Write([]byte(body))
		})
		history, err := client.GetHistory(context.Background(), "o")
		require.NoError(t, err, body)
		require.Len(t, history, 1, body)
		assert.Equal(t, lifecycle.StatusPending, history[0].To)
		assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), history[0].OccurredAt)
	}
}

func TestGetOrderRetriesOnServiceUnavailable(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"status": "confirmed"}`))
	})

	order, err := client.GetOrder(context.Background(), "o")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusConfirmed, order.Status)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetOrderNotFoundIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message": "order not found"}`))
	})

	_, err := client.GetOrder(context.Background(), "o")
	srvErr, ok := AsServerError(err)
	require.True(t, ok)
	assert.True(t, srvErr.NotFound())
	assert.Equal(t, "order not found", srvErr.Message)
	assert.Equal(t, int32(1), calls.Load())
}

func TestUpdateStatusConflictIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/orders/o/status", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "picked-up", body["status"])
		assert.Equal(t, "at door", body["notes"])
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error": {"message": "version mismatch"}}`))
	})

	err := client.UpdateStatus(context.Background(), "o", UpdateStatusRequest{Status: lifecycle.StatusPickedUp, Notes: "at door"})
	srvErr, ok := AsServerError(err)
	require.True(t, ok)
	assert.True(t, srvErr.Conflict())
	assert.Equal(t, "version mismatch", srvErr.Message)
	assert.Equal(t, int32(1), calls.Load())
}

func TestMutationsUseForwardedToken(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer operator-token", r.Header.Get("Authorization"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		switch r.URL.Path {
		case "/orders/o/cancel":
			assert.Equal(t, "duplicate", body["reason"])
		case "/orders/o/assign":
			assert.Equal(t, "rider-1", body["riderId"])
			assert.NotContains(t, body, "vehicleId")
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	ctx := WithToken(context.Background(), "operator-token")
	require.NoError(t, client.Cancel(ctx, "o", CancelRequest{Reason: "duplicate"}))
	require.NoError(t, client.Assign(ctx, "o", AssignRequest{RiderID: "rider-1"}))
}

func TestNetworkErrorIsClassifiedRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	client, err := NewClient(Options{BaseURL: base, Timeout: time.Second})
	require.NoError(t, err)

	err = client.Cancel(context.Background(), "o", CancelRequest{Reason: "r"})
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.True(t, IsRetryable(err))
}

func TestEmptyOrderID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	_, err := client.GetOrder(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrOrderIDRequired)
}

func TestClassifyError(t *testing.T) {
	assert.Equal(t, CategoryPermanent, ClassifyError(context.Canceled))
	assert.Equal(t, CategoryRetryable, ClassifyError(&ServerError{StatusCode: http.StatusBadGateway}))
	assert.Equal(t, CategoryPermanent, ClassifyError(&ServerError{StatusCode: http.StatusUnprocessableEntity}))
	assert.Equal(t, "retryable", CategoryRetryable.String())
}
