package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"

	"github.com/lvnretest/engine/internal/netx/circuit"
	"github.com/lvnretest/engine/internal/netx/ratelimit"
	"github.com/lvnretest/engine/internal/trader"
)

// Config holds a live broker's REST connection parameters.
type Config struct {
	BaseURL        string
	RequestTimeout time.Duration
	MaxRetries     int
	RetryBackoff   time.Duration
}

// DefaultConfig fills in conservative connection defaults.
func DefaultConfig() Config {
	return Config{
		RequestTimeout: 10 * time.Second,
		MaxRetries:     3,
		RetryBackoff:   time.Second,
	}
}

// LiveExecutor submits TradeActions as REST order requests, gated by a
// circuit breaker and a rate limiter and retried with backoff on transient
// failures.
type LiveExecutor struct {
	cfg     Config
	client  *retryablehttp.Client
	breaker *circuit.Manager
	limiter *ratelimit.Limiter
	log     zerolog.Logger
}

// NewLiveExecutor creates a LiveExecutor.
func NewLiveExecutor(cfg Config, breaker *circuit.Manager, limiter *ratelimit.Limiter, log zerolog.Logger) *LiveExecutor {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://broker.example.invalid"
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = time.Second
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.MaxRetries
	rc.RetryWaitMin = cfg.RetryBackoff
	rc.RetryWaitMax = cfg.RetryBackoff * 10
	rc.HTTPClient.Timeout = cfg.RequestTimeout
	rc.Logger = nil // route all logging through zerolog below, not retryablehttp's own logger

	return &LiveExecutor{cfg: cfg, client: rc, breaker: breaker, limiter: limiter, log: log}
}

// Execute routes action to its REST endpoint through the rate limiter and
// circuit breaker.
func (e *LiveExecutor) Execute(ctx context.Context, action trader.TradeAction) error {
	endpoint, body, err := encodeAction(action)
	if err != nil {
		return err
	}

	if err := e.limiter.Wait(ctx, "broker"); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	return e.breaker.Execute(ctx, "broker", func(ctx context.Context) error {
		return e.post(ctx, endpoint, body)
	})
}

func (e *LiveExecutor) post(ctx context.Context, endpoint string, body []byte) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, e.cfg.BaseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("broker request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("broker returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func encodeAction(action trader.TradeAction) (endpoint string, body []byte, err error) {
	var payload interface{}
	switch a := action.(type) {
	case trader.Enter:
		endpoint, payload = "/orders/enter", a
	case trader.Exit:
		endpoint, payload = "/orders/exit", a
	case trader.UpdateStop:
		endpoint, payload = "/orders/update-stop", a
	case trader.SignalPending:
		endpoint, payload = "/orders/signal-pending", a
	case trader.FlattenAll:
		endpoint, payload = "/orders/flatten", a
	default:
		return "", nil, fmt.Errorf("unknown trade action type %T", action)
	}

	body, err = json.Marshal(payload)
	if err != nil {
		return "", nil, fmt.Errorf("marshal %T: %w", action, err)
	}
	return endpoint, body, nil
}
