// Package httpclient builds the pooled *http.Client the router transport runs on.
// Clients carry no overall timeout; attempt deadlines belong to llmclient.
package httpclient

import (
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ClientConfig tunes the connection pool and dial behaviour
type ClientConfig struct {
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
	DialTimeout         time.Duration
	KeepAlive           time.Duration
	TLSHandshakeTimeout time.Duration

	// ResponseHeaderTimeout is zero by default. llmclient bounds each attempt itself.
	ResponseHeaderTimeout time.Duration

	// Tracing wraps the transport in otelhttp
	Tracing bool
}

// envDuration reads key as whole seconds or a Go duration ("90s", "2m").
// Blank or unparsable values yield fallback.
func envDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	switch secs, err := strconv.Atoi(raw); {
	case raw == "":
		return fallback
	case err == nil:
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}

// DefaultConfig returns pool settings for one router host.
// HTTP_RESPONSE_HEADER_TIMEOUT sets the header timeout.
func DefaultConfig() ClientConfig {
	return ClientConfig{
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
		IdleConnTimeout:       90 * time.Second,
		DialTimeout:           30 * time.Second,
		KeepAlive:             30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: envDuration("HTTP_RESPONSE_HEADER_TIMEOUT", 0),
	}
}

// NewHTTPClient builds a client from config, or from DefaultConfig when config is nil
func NewHTTPClient(config *ClientConfig) *http.Client {
	if config == nil {
		defaults := DefaultConfig()
		config = &defaults
	}

	var rt http.RoundTripper = &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   config.DialTimeout,
			KeepAlive: config.KeepAlive,
		}).DialContext,
		MaxIdleConns:          config.MaxIdleConns,
		MaxIdleConnsPerHost:   config.MaxIdleConnsPerHost,
		IdleConnTimeout:       config.IdleConnTimeout,
		TLSHandshakeTimeout:   config.TLSHandshakeTimeout,
		ResponseHeaderTimeout: config.ResponseHeaderTimeout,
		ForceAttemptHTTP2:     true,
		ExpectContinueTimeout: 1 * time.Second,
	}

	if config.Tracing {
		rt = otelhttp.NewTransport(rt)
	}
	return &http.Client{Transport: rt}
}

// NewDefaultHTTPClient is NewHTTPClient(nil)
func NewDefaultHTTPClient() *http.Client {
	return NewHTTPClient(nil)
}
