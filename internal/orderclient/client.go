// Package orderclient provides the HTTP client for the external order-service.
package orderclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/creamcroissant/orderdesk/internal/lifecycle"
)

// Order is the normalised order record.
type Order struct {
	ID              string                   `json:"id"`
	Number          string                   `json:"order_number,omitempty"`
	Status          lifecycle.Status         `json:"status"`
	CustomerName    string                   `json:"customer_name,omitempty"`
	StoreName       string                   `json:"store_name,omitempty"`
	RiderID         string                   `json:"rider_id,omitempty"`
	VehicleID       string                   `json:"vehicle_id,omitempty"`
	CreatedAt       *time.Time               `json:"created_at,omitempty"`
	UpdatedAt       *time.Time               `json:"updated_at,omitempty"`
	History         []lifecycle.HistoryEntry `json:"history,omitempty"`
	EmbeddedHistory bool                     `json:"-"`
}

// UpdateStatusRequest is the PATCH /orders/{id}/status body.
type UpdateStatusRequest struct {
	Status lifecycle.Status `json:"status"`
	Notes  string           `json:"notes,omitempty"`
}

// CancelRequest is the POST /orders/{id}/cancel body.
type CancelRequest struct {
	Reason string `json:"reason"`
}

// AssignRequest is the POST /orders/{id}/assign body.
type AssignRequest struct {
	RiderID   string `json:"riderId"`
	VehicleID string `json:"vehicleId,omitempty"`
}

// Options configures the client.
type Options struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	Retry      RetryConfig
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client talks to the order-service REST API.
type Client struct {
	baseURL string
	token   string
	retry   RetryConfig
	client  *http.Client
	logger  *slog.Logger
}

// NewClient creates a new order-service client.
func NewClient(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("orderclient: base url is required / 基础地址不能为空")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("orderclient: parse base url: %w", err)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: base,
		token:   strings.TrimSpace(opts.Token),
		retry:   opts.Retry,
		client:  httpClient,
		logger:  logger,
	}, nil
}

type tokenKey struct{}

// WithToken makes outgoing requests made with ctx carry token instead of the configured one.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFromContext returns the forwarded token, if any.
func TokenFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

// GetOrder fetches an order, including embedded history when the service provides it.
func (c *Client) GetOrder(ctx context.Context, id string) (*Order, error) {
	path, err := orderPath(id, "")
	if err != nil {
		return nil, err
	}
	var order *Order
	err = doWithRetry(ctx, c.retry, func(ctx context.Context) error {
		body, err := c.do(ctx, "get order", http.MethodGet, path, nil)
		if err != nil {
			return err
		}
		order, err = decodeOrder(body)
		return err
	})
	if err != nil {
		return nil, err
	}
	if order.ID == "" {
		order.ID = id
	}
	return order, nil
}

// GetHistory fetches the full status history of an order.
func (c *Client) GetHistory(ctx context.Context, id string) ([]lifecycle.HistoryEntry, error) {
	path, err := orderPath(id, "/history")
	if err != nil {
		return nil, err
	}
	var history []lifecycle.HistoryEntry
	err = doWithRetry(ctx, c.retry, func(ctx context.Context) error {
		body, err := c.do(ctx, "get history", http.MethodGet, path, nil)
		if err != nil {
			return err
		}
		history, err = decodeHistory(body)
		return err
	})
	if err != nil {
		return nil, err
	}
	return history, nil
}

// UpdateStatus persists a status transition.
func (c *Client) UpdateStatus(ctx context.Context, id string, req UpdateStatusRequest) error {
	path, err := orderPath(id, "/status")
	if err != nil {
		return err
	}
	_, err = c.do(ctx, "update status", http.MethodPatch, path, req)
	return err
}

// Cancel moves an order to cancelled.
func (c *Client) Cancel(ctx context.Context, id string, req CancelRequest) error {
	path, err := orderPath(id, "/cancel")
	if err != nil {
		return err
	}
	_, err = c.do(ctx, "cancel order", http.MethodPost, path, req)
	return err
}

// Assign attaches a rider (and optionally a vehicle) to an order.
func (c *Client) Assign(ctx context.Context, id string, req AssignRequest) error {
	path, err := orderPath(id, "/assign")
	if err != nil {
		return err
	}
	_, err = c.do(ctx, "assign rider", http.MethodPost, path, req)
	return err
}

func orderPath(id, suffix string) (string, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return "", ErrOrderIDRequired
	}
	return "/orders/" + url.PathEscape(trimmed) + suffix, nil
}

func (c *Client) setHeaders(ctx context.Context, req *http.Request) {
	token := TokenFromContext(ctx)
	if token == "" {
		token = c.token
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
}

func (c *Client) do(ctx context.Context, op, method, path string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("orderclient: %s: marshal request: %w", op, err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("orderclient: %s: create request: %w", op, err)
	}
	c.setHeaders(ctx, req)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Op: op, Err: fmt.Errorf("read response: %w", err)}
	}
	c.logger.Debug("order-service call", "op", op, "method", method, "path", path, "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ServerError{Op: op, StatusCode: resp.StatusCode, Message: errorMessage(body)}
	}
	return body, nil
}
