// Package routerclient is a client for the LLM router service. It sends
// chat completion requests to a router, which picks the model, and returns
// OpenAI-compatible responses and streams.
package routerclient

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"routerclient/config"
	"routerclient/core"
	"routerclient/internal/cache"
	"routerclient/internal/httpclient"
	"routerclient/internal/logging"
	"routerclient/llmclient"
	"routerclient/observability"
)

// Version is sent in the default User-Agent
const Version = "0.3.0"

// Defaults applied by New
const (
	DefaultBaseURL    = config.DefaultBaseURL
	DefaultRouterID   = config.DefaultRouterID
	DefaultTimeout    = config.DefaultTimeout
	DefaultMaxRetries = config.DefaultMaxRetries
	DefaultCacheTTL   = config.DefaultCacheTTL
)

// Client talks to one router. Its configuration is fixed at construction
// and it is safe for concurrent use.
type Client struct {
	// Chat creates chat completions
	Chat *ChatService

	transport  *llmclient.Client
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *observability.Metrics

	apiKey   string
	baseURL  string
	routerID string

	cache    cache.Cache
	cacheTTL time.Duration
}

type options struct {
	baseURL        string
	routerID       string
	timeout        time.Duration
	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	userAgent      string
	compression    bool
	httpClient     *http.Client
	logger         *slog.Logger
	hooks          llmclient.Hooks
	metrics        *observability.Metrics
	cache          cache.Cache
	cacheTTL       time.Duration
}

// Option configures a Client
type Option func(*options)

// WithBaseURL overrides the router API base URL
func WithBaseURL(baseURL string) Option {
	return func(o *options) { o.baseURL = baseURL }
}

// WithRouterID selects the router. Defaults to "default".
func WithRouterID(routerID string) Option {
	return func(o *options) { o.routerID = routerID }
}

// WithTimeout sets the per-attempt timeout. For streams it bounds the wait for response headers.
func WithTimeout(timeout time.Duration) Option {
	return func(o *options) { o.timeout = timeout }
}

// WithMaxRetries sets how many times a transient failure is retried
func WithMaxRetries(n int) Option {
	return func(o *options) { o.maxRetries = n }
}

// WithBackoff overrides the initial and maximum retry backoff
func WithBackoff(initial, max time.Duration) Option {
	return func(o *options) {
		o.initialBackoff = initial
		o.maxBackoff = max
	}
}

// WithUserAgent overrides the User-Agent header
func WithUserAgent(userAgent string) Option {
	return func(o *options) { o.userAgent = userAgent }
}

// WithCompression advertises brotli for buffered responses
func WithCompression(enabled bool) Option {
	return func(o *options) { o.compression = enabled }
}

// WithHTTPClient uses httpClient instead of the default pooled client.
// The client should not set an overall Timeout or streams will be cut off.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(o *options) { o.httpClient = httpClient }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithHooks observes every request attempt
func WithHooks(hooks llmclient.Hooks) Option {
	return func(o *options) { o.hooks = hooks }
}

// WithMetrics records Prometheus metrics for requests and streams
func WithMetrics(m *observability.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithCache caches router config and model list responses for ttl.
// The client closes c on Close.
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(o *options) {
		o.cache = c
		o.cacheTTL = ttl
	}
}

// New creates a client. apiKey must carry a recognized prefix ("sk-" or "lr-").
func New(apiKey string, opts ...Option) (*Client, error) {
	if err := core.ValidateAPIKey(apiKey); err != nil {
		return nil, err
	}

	o := options{
		baseURL:    DefaultBaseURL,
		routerID:   DefaultRouterID,
		timeout:    DefaultTimeout,
		maxRetries: DefaultMaxRetries,
		userAgent:  "routerclient-go/" + Version,
		cacheTTL:   DefaultCacheTTL,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if o.baseURL == "" {
		return nil, core.NewInvalidRequestError("baseURL", "base URL is required")
	}
	if o.routerID == "" {
		return nil, core.NewInvalidRequestError("routerId", "router id is required")
	}
	if o.maxRetries < 0 {
		return nil, core.NewInvalidRequestError("maxRetries", "max retries must not be negative")
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.httpClient == nil {
		o.httpClient = httpclient.NewDefaultHTTPClient()
	}

	cfg := llmclient.DefaultConfig(o.baseURL, apiKey)
	cfg.Timeout = o.timeout
	cfg.MaxRetries = o.maxRetries
	cfg.UserAgent = o.userAgent
	cfg.Compression = o.compression
	cfg.Logger = o.logger
	if o.initialBackoff > 0 {
		cfg.InitialBackoff = o.initialBackoff
	}
	if o.maxBackoff > 0 {
		cfg.MaxBackoff = o.maxBackoff
	}
	cfg.Hooks = o.hooks
	if o.metrics != nil {
		cfg.Hooks = llmclient.ChainHooks(o.hooks, o.metrics.Hooks())
	}

	transport := llmclient.NewWithHTTPClient(o.httpClient, cfg)
	c := &Client{
		transport:  transport,
		httpClient: o.httpClient,
		logger:     o.logger,
		metrics:    o.metrics,
		apiKey:     apiKey,
		baseURL:    transport.BaseURL(),
		routerID:   o.routerID,
		cache:      o.cache,
		cacheTTL:   o.cacheTTL,
	}
	c.Chat = &ChatService{client: c}
	return c, nil
}

// NewFromConfig creates a client from loaded configuration, wiring the
// logger, HTTP client, cache and metrics it describes. opts are applied last.
func NewFromConfig(ctx context.Context, cfg *config.Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}, os.Stderr)

	httpCfg := httpclient.DefaultConfig()
	httpCfg.Tracing = cfg.HTTP.Tracing
	httpCfg.ResponseHeaderTimeout = cfg.HTTP.ResponseHeaderTimeout

	base := []Option{
		WithBaseURL(cfg.Router.BaseURL),
		WithRouterID(cfg.Router.RouterID),
		WithTimeout(cfg.Router.Timeout),
		WithMaxRetries(cfg.Router.MaxRetries),
		WithCompression(cfg.HTTP.Compression),
		WithHTTPClient(httpclient.NewHTTPClient(&httpCfg)),
		WithLogger(logger),
	}
	if cfg.Router.UserAgent != "" {
		base = append(base, WithUserAgent(cfg.Router.UserAgent))
	}

	if cfg.Metrics.Enabled {
		m, err := observability.NewMetrics(cfg.Metrics.Namespace, nil)
		if err != nil {
			return nil, err
		}
		base = append(base, WithMetrics(m))
	}

	metadataCache, err := cache.New(ctx, cache.Options{
		Type:      cfg.Cache.Type,
		LocalPath: cfg.Cache.Local.Path,
		Redis: cache.RedisConfig{
			URL:    cfg.Cache.Redis.URL,
			Key:    cfg.Cache.Redis.Key,
			TTL:    cfg.Cache.Redis.TTL,
			Logger: logger,
		},
	})
	if err != nil {
		return nil, err
	}
	if metadataCache != nil {
		base = append(base, WithCache(metadataCache, cfg.Cache.TTL))
	}

	client, err := New(cfg.Router.APIKey, append(base, opts...)...)
	if err != nil {
		if metadataCache != nil {
			_ = metadataCache.Close()
		}
		return nil, err
	}
	return client, nil
}

// RouterID returns the router this client sends requests to
func (c *Client) RouterID() string {
	return c.routerID
}

// BaseURL returns the router API base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Close releases idle connections and the metadata cache
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	if c.cache != nil {
		return c.cache.Close()
	}
	return nil
}
