// Package observability provides Prometheus metrics for router client calls.
package observability

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"routerclient/llmclient"
)

// DefaultNamespace prefixes every metric name
const DefaultNamespace = "llmrouter"

// LLMBuckets defines histogram buckets suited for LLM inference latencies,
// ranging from 100ms to 120s.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

// Metrics holds the collectors for one client. Use Hooks to feed it from the transport.
type Metrics struct {
	requests     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	retries      *prometheus.CounterVec
	inFlight     *prometheus.GaugeVec
	skippedLines prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewMetrics(namespace string, reg prometheus.Registerer) (*Metrics, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Router request attempts by operation and status class",
			},
			[]string{"operation", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Router request attempt duration",
				Buckets:   LLMBuckets,
			},
			[]string{"operation", "stream"},
		),
		retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retries_total",
				Help:      "Router request retries by operation",
			},
			[]string{"operation"},
		),
		inFlight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "requests_in_flight",
				Help:      "Router request attempts currently in flight",
			},
			[]string{"operation"},
		),
		skippedLines: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stream_skipped_lines_total",
				Help:      "Malformed stream lines dropped by the decoder",
			},
		),
	}

	var err error
	if m.requests, err = register(reg, m.requests); err != nil {
		return nil, err
	}
	if m.duration, err = register(reg, m.duration); err != nil {
		return nil, err
	}
	if m.retries, err = register(reg, m.retries); err != nil {
		return nil, err
	}
	if m.inFlight, err = register(reg, m.inFlight); err != nil {
		return nil, err
	}
	if m.skippedLines, err = register(reg, m.skippedLines); err != nil {
		return nil, err
	}
	return m, nil
}

// register adds c to reg, reusing an identical collector registered by another client
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// Hooks returns transport hooks that record every attempt
func (m *Metrics) Hooks() llmclient.Hooks {
	return llmclient.Hooks{
		OnRequestStart: func(ctx context.Context, info llmclient.RequestInfo) context.Context {
			m.inFlight.WithLabelValues(info.Operation).Inc()
			return ctx
		},
		OnRequestEnd: func(ctx context.Context, info llmclient.ResponseInfo) {
			m.inFlight.WithLabelValues(info.Operation).Dec()
			m.requests.WithLabelValues(info.Operation, StatusClass(info.StatusCode, info.Err)).Inc()
			m.duration.WithLabelValues(info.Operation, strconv.FormatBool(info.Stream)).Observe(info.Duration.Seconds())
		},
		OnRetry: func(ctx context.Context, info llmclient.RequestInfo, backoff time.Duration, cause error) {
			m.retries.WithLabelValues(info.Operation).Inc()
		},
	}
}

// StreamSkipped records a malformed stream line. Its signature matches streaming.OnSkip.
func (m *Metrics) StreamSkipped(payload string, err error) {
	m.skippedLines.Inc()
}

// StatusClass buckets an attempt outcome into "2xx", "4xx", "5xx" or "error"
func StatusClass(status int, err error) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 200 && status < 300 && err == nil:
		return "2xx"
	default:
		return "error"
	}
}
