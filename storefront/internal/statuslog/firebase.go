package statuslog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/fjod/rx_cart/pkg/circuitbreaker"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

var ErrUnavailable = errors.New("status log unavailable")

// Client talks to a Firebase Realtime Database style REST endpoint:
// POST <base>/status.json appends, GET <base>/status.json reads the whole log.
type Client struct {
	endpoint   string
	httpClient *http.Client
	breaker    *circuitbreaker.Breaker
	logger     *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		endpoint: strings.TrimSuffix(baseURL, "/") + "/status.json",
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: circuitbreaker.New(circuitbreaker.DefaultSettings("status-log"), logger),
		logger:  logger,
	}
}

func (c *Client) Append(ctx context.Context, rec Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal status record: %w", err)
	}

	err = c.breaker.Do(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return fmt.Errorf("status log returned %d", resp.StatusCode)
		}
		return nil
	})
	if err != nil {
		c.logger.Warn("status log append failed",
			zap.Error(err),
			zap.String("tracking_id", rec.TrackingID),
			zap.String("status", rec.Status))
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (c *Client) All(ctx context.Context) ([]Record, error) {
	var raw map[string]json.RawMessage
	err := c.breaker.Do(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return fmt.Errorf("status log returned %d: %s", resp.StatusCode, string(msg))
		}
		// an empty log is the JSON literal null, which leaves raw nil
		return json.NewDecoder(resp.Body).Decode(&raw)
	})
	if err != nil {
		c.logger.Warn("status log read failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	// push ids sort chronologically; use them as the tie breaker
	ids := make([]string, 0, len(raw))
	for id := range raw {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	records := make([]Record, 0, len(raw))
	for _, id := range ids {
		var rec Record
		if err := json.Unmarshal(raw[id], &rec); err != nil {
			c.logger.Warn("skipping malformed status record", zap.String("id", id), zap.Error(err))
			continue
		}
		records = append(records, rec)
	}
	sortByTimestamp(records)
	return records, nil
}
