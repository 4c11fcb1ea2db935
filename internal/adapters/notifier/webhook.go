package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"esgwatch/internal/ports"
)

// Config holds delivery settings for the escalation webhook.
type Config struct {
	URL     string
	Timeout time.Duration

	MaxFailures    uint32
	CircuitTimeout time.Duration

	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func DefaultConfig(url string) Config {
	return Config{
		URL:             url,
		Timeout:         5 * time.Second,
		MaxFailures:     5,
		CircuitTimeout:  30 * time.Second,
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}
}

// Webhook posts escalations as JSON through a circuit breaker with retry.
type Webhook struct {
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	cfg     Config
}

func NewWebhook(cfg Config, logger *slog.Logger) *Webhook {
	if logger == nil {
		logger = slog.Default()
	}
	settings := gobreaker.Settings{
		Name:        "escalation-webhook",
		MaxRequests: 1,
		Timeout:     cfg.CircuitTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	}
	return &Webhook{
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: gobreaker.NewCircuitBreaker(settings),
		cfg:     cfg,
	}
}

var _ ports.EscalationNotifier = (*Webhook)(nil)

func (w *Webhook) NotifyEscalation(ctx context.Context, n ports.Escalation) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode escalation: %w", err)
	}
	_, err = w.breaker.Execute(func() (interface{}, error) {
		return nil, w.deliver(ctx, body)
	})
	if errors.Is(err, gobreaker.ErrOpenState) {
		return fmt.Errorf("escalation webhook circuit open: %w", err)
	}
	return err
}

// deliver retries connection errors and 429/5xx; other 4xx fail immediately.
func (w *Webhook) deliver(ctx context.Context, body []byte) error {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = w.cfg.InitialInterval
	exp.MaxInterval = w.cfg.MaxInterval
	exp.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(w.cfg.MaxRetries)), ctx)

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.cfg.URL, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := w.client.Do(req)
		if err != nil {
			return err
		}
		resp.Body.Close()
		switch {
		case resp.StatusCode < 300:
			return nil
		case retryable(resp.StatusCode):
			return fmt.Errorf("escalation webhook: HTTP %d", resp.StatusCode)
		default:
			return backoff.Permanent(fmt.Errorf("escalation webhook: HTTP %d", resp.StatusCode))
		}
	}
	return backoff.Retry(op, policy)
}

func retryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
