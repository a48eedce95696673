// Package httpx is the retrying HTTP transport used for provider calls.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Retry defaults.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 500 * time.Millisecond
)

// Client wraps *http.Client with bounded exponential-backoff retries.
// Retries fire on network errors, 429 and 5xx responses; other statuses are
// returned to the caller on the first attempt.
type Client struct {
	http        *http.Client
	maxAttempts int
	baseDelay   time.Duration
	logger      *slog.Logger
}

func NewClient(timeout time.Duration, maxAttempts int, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		http:        &http.Client{Timeout: timeout},
		maxAttempts: maxAttempts,
		baseDelay:   DefaultBaseDelay,
		logger:      logger,
	}
}

// Do sends a request whose body is rebuilt per attempt via makeBody (nil for
// bodyless requests). Returns the response body and status of the last
// attempt.
func (c *Client) Do(ctx context.Context, method, url string, headers map[string]string, makeBody func() (io.Reader, error)) ([]byte, int, error) {
	reqID := uuid.New().String()
	start := time.Now()

	var lastBody []byte
	var lastStatus int
	var lastErr error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		var body io.Reader
		if makeBody != nil {
			var err error
			body, err = makeBody()
			if err != nil {
				return nil, 0, fmt.Errorf("build request body: %w", err)
			}
		}
		req, err := http.NewRequestWithContext(ctx, method, url, body)
		if err != nil {
			return nil, 0, fmt.Errorf("build request: %w", err)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			c.logger.Warn("httpx.send_error",
				"req_id", reqID, "attempt", attempt, "url", url, "error", err)
			if !c.backoff(ctx, attempt) {
				break
			}
			continue
		}

		raw, readErr := io.ReadAll(resp.Body)
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Warn("httpx.body_close_error", "req_id", reqID, "error", cerr)
		}
		if readErr != nil {
			lastErr = readErr
			if !c.backoff(ctx, attempt) {
				break
			}
			continue
		}

		lastBody, lastStatus, lastErr = raw, resp.StatusCode, nil
		if !retryableStatus(resp.StatusCode) {
			break
		}
		c.logger.Warn("httpx.retryable_status",
			"req_id", reqID, "attempt", attempt, "status", resp.StatusCode, "url", url)
		if !c.backoff(ctx, attempt) {
			break
		}
	}

	c.logger.Info("httpx.done",
		"req_id", reqID,
		"url", url,
		"status", lastStatus,
		"bytes", len(lastBody),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if lastErr != nil {
		return nil, 0, lastErr
	}
	if lastStatus/100 != 2 {
		return lastBody, lastStatus, fmt.Errorf("non-2xx status: %d", lastStatus)
	}
	return lastBody, lastStatus, nil
}

// PostJSON sends a JSON body and returns the raw response.
func (c *Client) PostJSON(ctx context.Context, url string, payload any, headers map[string]string) ([]byte, int, error) {
	bs, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, fmt.Errorf("encode json: %w", err)
	}
	h := map[string]string{"Content-Type": "application/json"}
	for k, v := range headers {
		h[k] = v
	}
	return c.Do(ctx, http.MethodPost, url, h, func() (io.Reader, error) {
		return bytes.NewReader(bs), nil
	})
}

// backoff sleeps before the next attempt; false means attempts are exhausted
// or the context is done.
func (c *Client) backoff(ctx context.Context, attempt int) bool {
	if attempt >= c.maxAttempts {
		return false
	}
	delay := c.baseDelay * (1 << (attempt - 1))
	select {
	case <-ctx.Done():
		return false
	case <-time.After(delay):
		return true
	}
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code/100 == 5
}
