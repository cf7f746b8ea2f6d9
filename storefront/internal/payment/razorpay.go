package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/rx_cart/pkg/circuitbreaker"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const DefaultRazorpayURL = "https://api.razorpay.com"

type RazorpayConfig struct {
	BaseURL   string
	KeyID     string
	KeySecret string
	Timeout   time.Duration
}

// Razorpay opens orders on the Razorpay Orders API and verifies checkout signatures.
type Razorpay struct {
	cfg        RazorpayConfig
	httpClient *http.Client
	breaker    *circuitbreaker.Breaker
	logger     *zap.Logger
}

func NewRazorpay(cfg RazorpayConfig, logger *zap.Logger) *Razorpay {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultRazorpayURL
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Razorpay{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: circuitbreaker.New(circuitbreaker.DefaultSettings("razorpay"), logger),
		logger:  logger,
	}
}

type createOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type createOrderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (r *Razorpay) Open(ctx context.Context, req Request) (Handle, error) {
	if r.cfg.KeyID == "" || r.cfg.KeySecret == "" {
		return Handle{}, fmt.Errorf("%w: razorpay keys not configured", ErrUnavailable)
	}

	body, err := json.Marshal(createOrderRequest{
		Amount:   req.AmountMinor,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Notes:    map[string]string{"description": req.Description},
	})
	if err != nil {
		return Handle{}, fmt.Errorf("marshal razorpay order: %w", err)
	}

	var created createOrderResponse
	err = r.breaker.Do(func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.BaseURL+"/v1/orders", bytes.NewReader(body))
		if err != nil {
			return err
		}
		httpReq.SetBasicAuth(r.cfg.KeyID, r.cfg.KeySecret)
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := r.httpClient.Do(httpReq)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return fmt.Errorf("razorpay returned %d: %s", resp.StatusCode, string(msg))
		}
		return json.NewDecoder(resp.Body).Decode(&created)
	})
	if err != nil {
		r.logger.Warn("razorpay order create failed", zap.Error(err), zap.String("receipt", req.Receipt))
		return Handle{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if created.ID == "" {
		return Handle{}, fmt.Errorf("%w: razorpay returned no order id", ErrUnavailable)
	}

	return Handle{GatewayOrderID: created.ID, KeyID: r.cfg.KeyID}, nil
}

func (r *Razorpay) Verify(h Handle, resp Response) error {
	if r.cfg.KeySecret == "" {
		return ErrUnavailable
	}
	return verifySignature(r.cfg.KeySecret, h, resp)
}
