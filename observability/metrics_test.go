package observability

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"routerclient/llmclient"
)

func TestMetricsHooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics("test", reg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	hooks := m.Hooks()
	ctx := context.Background()

	info := llmclient.RequestInfo{Operation: "chat", Method: http.MethodPost, Attempt: 1}
	ctx = hooks.OnRequestStart(ctx, info)
	if got := testutil.ToFloat64(m.inFlight.WithLabelValues("chat")); got != 1 {
		t.Errorf("expected 1 in flight, got %v", got)
	}
	hooks.OnRequestEnd(ctx, llmclient.ResponseInfo{RequestInfo: info, StatusCode: 500, Duration: time.Second, Err: errors.New("boom")})
	hooks.OnRetry(ctx, info, time.Second, errors.New("boom"))

	info.Attempt = 2
	ctx = hooks.OnRequestStart(ctx, info)
	hooks.OnRequestEnd(ctx, llmclient.ResponseInfo{RequestInfo: info, StatusCode: 200, Duration: 2 * time.Second})

	if got := testutil.ToFloat64(m.requests.WithLabelValues("chat", "5xx")); got != 1 {
		t.Errorf("expected one 5xx attempt, got %v", got)
	}
	if got := testutil.ToFloat64(m.requests.WithLabelValues("chat", "2xx")); got != 1 {
		t.Errorf("expected one 2xx attempt, got %v", got)
	}
	if got := testutil.ToFloat64(m.retries.WithLabelValues("chat")); got != 1 {
		t.Errorf("expected one retry, got %v", got)
	}
	if got := testutil.ToFloat64(m.inFlight.WithLabelValues("chat")); got != 0 {
		t.Errorf("expected 0 in flight, got %v", got)
	}
	if got := testutil.CollectAndCount(m.duration); got != 1 {
		t.Errorf("expected one duration series, got %d", got)
	}

	m.StreamSkipped("{bad", nil)
	m.StreamSkipped("{bad", nil)
	if got := testutil.ToFloat64(m.skippedLines); got != 2 {
		t.Errorf("expected 2 skipped lines, got %v", got)
	}
}

func TestNewMetrics_SharedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewMetrics("", reg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := NewMetrics("", reg)
	if err != nil {
		t.Fatalf("expected second client to reuse collectors, got %v", err)
	}

	first.StreamSkipped("", nil)
	second.StreamSkipped("", nil)
	if got := testutil.ToFloat64(first.skippedLines); got != 2 {
		t.Errorf("expected shared counter at 2, got %v", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("unexpected gather error: %v", err)
	}
	found := false
	for _, mf := range families {
		if mf.GetName() == "llmrouter_stream_skipped_lines_total" {
			found = true
		}
	}
	if !found {
		t.Error("expected llmrouter_stream_skipped_lines_total to be registered")
	}
}

func TestStatusClass(t *testing.T) {
	tests := []struct {
		status int
		err    error
		want   string
	}{
		{200, nil, "2xx"},
		{201, nil, "2xx"},
		{200, errors.New("decode"), "error"},
		{401, errors.New("auth"), "4xx"},
		{429, errors.New("rate"), "4xx"},
		{503, errors.New("down"), "5xx"},
		{0, errors.New("dial"), "error"},
	}
	for _, tt := range tests {
		if got := StatusClass(tt.status, tt.err); got != tt.want {
			t.Errorf("StatusClass(%d, %v) = %q, want %q", tt.status, tt.err, got, tt.want)
		}
	}
}
