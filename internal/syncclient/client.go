// Package syncclient tells the practice API which endpoints this device is
// subscribed on.
package syncclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tinywideclouds/go-push-subscription/internal/keycodec"
	"github.com/tinywideclouds/go-push-subscription/pkg/push"
)

const (
	DefaultTimeout = 10 * time.Second

	SubscribePath   = "/push/subscribe"
	UnsubscribePath = "/push/unsubscribe"
)

// TokenSource supplies the bearer token of the signed-in user.
type TokenSource func(ctx context.Context) (string, error)

type Client struct {
	baseURL    string
	timeout    time.Duration
	tokens     TokenSource
	httpClient *http.Client
	logger     *slog.Logger
}

// Option customises a Client.
type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

func WithTokenSource(ts TokenSource) Option {
	return func(cl *Client) { cl.tokens = ts }
}

func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		timeout:    timeout,
		httpClient: &http.Client{},
		logger:     logger.With("component", "BackendSyncClient"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type unsubscribeRequest struct {
	Endpoint string `json:"endpoint"`
}

// Save upserts the record. Any transport error, timeout or non-2xx answer is
// a BackendSyncFailed.
func (c *Client) Save(ctx context.Context, record push.SubscriptionRecord) error {
	if err := c.post(ctx, SubscribePath, keycodec.Payload(record)); err != nil {
		return &push.Error{Kind: push.KindBackendSyncFailed, Op: "syncclient.Save", Detail: record.Endpoint, Err: err}
	}
	return nil
}

// Remove retracts the record for endpoint.
func (c *Client) Remove(ctx context.Context, endpoint string) error {
	if err := c.post(ctx, UnsubscribePath, unsubscribeRequest{Endpoint: endpoint}); err != nil {
		return &push.Error{Kind: push.KindBackendSyncFailed, Op: "syncclient.Remove", Detail: endpoint, Err: err}
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	if c.tokens != nil {
		token, err := c.tokens(ctx)
		if err != nil {
			return fmt.Errorf("failed to obtain auth token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Sync request failed", "path", path, "request_id", requestID, "err", err)
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("Sync request rejected", "path", path, "request_id", requestID, "status", resp.StatusCode)
		return fmt.Errorf("%s returned status %d", path, resp.StatusCode)
	}
	c.logger.Debug("Sync request acknowledged", "path", path, "request_id", requestID, "status", resp.StatusCode)
	return nil
}
