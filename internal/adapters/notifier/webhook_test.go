package notifier

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"esgwatch/internal/ports"
)

func testConfig(url string) Config {
	cfg := DefaultConfig(url)
	cfg.InitialInterval = time.Millisecond
	cfg.MaxInterval = 2 * time.Millisecond
	cfg.Timeout = time.Second
	return cfg
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestNotifyEscalationPostsJSON(t *testing.T) {
	var got ports.Escalation
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	w := NewWebhook(testConfig(srv.URL), quiet())
	err := w.NotifyEscalation(context.Background(), ports.Escalation{AlertID: "a1", To: "board", Severity: "high"})
	require.NoError(t, err)
	assert.Equal(t, "a1", got.AlertID)
	assert.Equal(t, "board", got.To)
}

func TestNotifyEscalationRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	w := NewWebhook(testConfig(srv.URL), quiet())
	require.NoError(t, w.NotifyEscalation(context.Background(), ports.Escalation{AlertID: "a1"}))
	assert.Equal(t, int32(3), calls.Load())
}

func TestNotifyEscalationDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	w := NewWebhook(testConfig(srv.URL), quiet())
	err := w.NotifyEscalation(context.Background(), ports.Escalation{AlertID: "a1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 400")
	assert.Equal(t, int32(1), calls.Load())
}

func TestCircuitOpensAfterConsecutiveFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.MaxFailures = 2
	w := NewWebhook(cfg, quiet())
	ctx := context.Background()
	assert.Error(t, w.NotifyEscalation(ctx, ports.Escalation{}))
	assert.Error(t, w.NotifyEscalation(ctx, ports.Escalation{}))

	err := w.NotifyEscalation(ctx, ports.Escalation{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit open")
	assert.Equal(t, int32(2), calls.Load())
}
