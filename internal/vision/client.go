// Package vision talks to the corporate finance/partner registry. Outbound
// calls retry transient failures and leave an audit row per sync; the
// inbound poller refreshes partner master data per workspace.
package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/unicef/etools-core/internal/apperr"
	"github.com/unicef/etools-core/internal/model"
	"github.com/unicef/etools-core/internal/tenancy"
	"github.com/unicef/etools-core/pkg/config"
	"github.com/unicef/etools-core/pkg/logger"
	"github.com/unicef/etools-core/prometheus"
)

// Client issues requests against the registry API. Server errors and
// transport failures are retried with exponential backoff; every sync
// attempt group is recorded as one VisionSyncLog row.
type Client struct {
	endpoint    string
	apiKey      string
	maxAttempts int
	http        *http.Client

	// sleep is swapped out in tests.
	sleep func(time.Duration)
}

// NewClient builds a registry client from configuration.
func NewClient(cfg config.VisionConfig) *Client {
	return &Client{
		endpoint:    cfg.Endpoint,
		apiKey:      cfg.APIKey,
		maxAttempts: cfg.MaxAttempts,
		http:        &http.Client{Timeout: cfg.Timeout},
		sleep:       time.Sleep,
	}
}

// Post sends a payload to the registry and returns the response body. The
// handler name keys the audit row and the metrics series. A non-2xx
// response below 500 fails immediately; 5xx and transport errors retry up
// to the configured attempt limit.
func (c *Client) Post(ctx context.Context, handler, path string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	resp, attempts, err := c.do(ctx, http.MethodPost, path, body)
	c.record(ctx, handler, body, resp, attempts, err)
	return resp, err
}

// Get fetches a resource from the registry with the same retry policy.
func (c *Client) Get(ctx context.Context, handler, path string) ([]byte, error) {
	resp, attempts, err := c.do(ctx, http.MethodGet, path, nil)
	c.record(ctx, handler, nil, resp, attempts, err)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, int, error) {
	var lastErr error
	backoff := 500 * time.Millisecond
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			c.sleep(backoff)
			backoff *= 2
		}
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, reader)
		if err != nil {
			return nil, attempt, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Token "+c.apiKey)

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		data, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}
		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return data, attempt, nil
		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("registry returned %d", resp.StatusCode)
			continue
		default:
			return data, attempt, apperr.Newf(apperr.ExternalSystemUnavailable,
				"registry rejected %s %s with status %d", method, path, resp.StatusCode)
		}
	}
	return nil, c.maxAttempts, apperr.Wrap(apperr.ExternalSystemUnavailable,
		fmt.Sprintf("registry unreachable after %d attempts", c.maxAttempts), lastErr)
}

func (c *Client) record(ctx context.Context, handler string, payload, response []byte, attempts int, callErr error) {
	outcome := "success"
	if callErr != nil {
		outcome = "error"
	}
	prometheus.VisionSyncCounter.WithLabelValues(handler, outcome).Inc()

	row := model.VisionSyncLog{
		Handler:  handler,
		Attempts: attempts,
		Success:  callErr == nil,
		Payload:  datatypes.JSON(payload),
		Response: datatypes.JSON(response),
	}
	if ws, err := tenancy.Current(ctx); err == nil {
		row.WorkspaceID = ws.ID
	}
	if err := tenancy.Shared(ctx).Create(&row).Error; err != nil {
		logger.FromCtx(ctx).Error("failed to write vision sync log",
			zap.String("handler", handler), zap.Error(err))
	}
}
