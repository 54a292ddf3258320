// Package config loads router client configuration from defaults, an optional
// YAML file, a .env file, and environment variables, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"routerclient/core"
)

// Defaults
const (
	DefaultBaseURL    = "https://api.llmrouter.dev/v1"
	DefaultRouterID   = "default"
	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 3
	DefaultCacheTTL   = 5 * time.Minute
)

// Config is the full client configuration
type Config struct {
	Router  RouterConfig  `yaml:"router"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Cache   CacheConfig   `yaml:"cache"`
	HTTP    HTTPConfig    `yaml:"http"`
}

// RouterConfig identifies the router service and the retry budget
type RouterConfig struct {
	APIKey     string        `yaml:"api_key" env:"LLMROUTER_API_KEY"`
	BaseURL    string        `yaml:"base_url" env:"LLMROUTER_BASE_URL"`
	RouterID   string        `yaml:"router_id" env:"LLMROUTER_ROUTER_ID"`
	Timeout    time.Duration `yaml:"timeout" env:"LLMROUTER_TIMEOUT"`
	MaxRetries int           `yaml:"max_retries" env:"LLMROUTER_MAX_RETRIES"`
	UserAgent  string        `yaml:"user_agent" env:"LLMROUTER_USER_AGENT"`
}

// LoggingConfig selects the log level and format
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

// MetricsConfig controls Prometheus instrumentation
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" env:"METRICS_ENABLED"`
	Namespace string `yaml:"namespace" env:"METRICS_NAMESPACE"`
}

// CacheConfig controls the metadata cache
type CacheConfig struct {
	// Type is "none", "local" or "redis"
	Type  string        `yaml:"type" env:"CACHE_TYPE"`
	TTL   time.Duration `yaml:"ttl" env:"CACHE_TTL"`
	Local LocalConfig   `yaml:"local"`
	Redis RedisConfig   `yaml:"redis"`
}

// LocalConfig holds the file cache settings
type LocalConfig struct {
	Path string `yaml:"path" env:"CACHE_LOCAL_PATH"`
}

// RedisConfig holds the Redis cache settings
type RedisConfig struct {
	URL string        `yaml:"url" env:"REDIS_URL"`
	Key string        `yaml:"key" env:"REDIS_KEY"`
	TTL time.Duration `yaml:"ttl" env:"REDIS_TTL"`
}

// HTTPConfig tunes the outbound HTTP client
type HTTPConfig struct {
	Tracing               bool          `yaml:"tracing" env:"HTTP_TRACING"`
	Compression           bool          `yaml:"compression" env:"HTTP_COMPRESSION"`
	ResponseHeaderTimeout time.Duration `yaml:"response_header_timeout" env:"HTTP_RESPONSE_HEADER_TIMEOUT"`
}

// buildDefaultConfig returns the configuration used when nothing is set
func buildDefaultConfig() *Config {
	return &Config{
		Router: RouterConfig{
			BaseURL:    DefaultBaseURL,
			RouterID:   DefaultRouterID,
			Timeout:    DefaultTimeout,
			MaxRetries: DefaultMaxRetries,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Namespace: "llmrouter",
		},
		Cache: CacheConfig{
			Type: "none",
			TTL:  DefaultCacheTTL,
			Local: LocalConfig{
				Path: ".cache/llmrouter-metadata.json",
			},
		},
	}
}

// Default returns the default configuration with environment overrides applied.
// It does not read any file.
func Default() (*Config, error) {
	cfg := buildDefaultConfig()
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load builds the configuration. path names an optional YAML file; an empty
// path skips it. A .env file in the working directory is loaded when present
// and never overrides variables already set in the environment.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := buildDefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := decodeYAML([]byte(expandString(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var durationType = reflect.TypeFor[time.Duration]()

// decodeYAML unmarshals data into cfg. Integer values of duration fields
// count as seconds, matching the environment overrides.
func decodeYAML(data []byte, cfg *Config) error {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return err
	}
	if root.Kind == 0 {
		return nil
	}
	secondsToDurations(&root, reflect.TypeFor[Config]())
	return root.Decode(cfg)
}

// secondsToDurations rewrites integer scalars bound to time.Duration fields of t as duration strings
func secondsToDurations(node *yaml.Node, t reflect.Type) {
	switch node.Kind {
	case yaml.DocumentNode:
		for _, child := range node.Content {
			secondsToDurations(child, t)
		}
	case yaml.MappingNode:
		if t.Kind() != reflect.Struct {
			return
		}
		for i := 0; i+1 < len(node.Content); i += 2 {
			sf, ok := fieldByYAMLName(t, node.Content[i].Value)
			if !ok {
				continue
			}
			value := node.Content[i+1]
			if sf.Type != durationType {
				secondsToDurations(value, sf.Type)
				continue
			}
			if value.Kind != yaml.ScalarNode || value.ShortTag() != "!!int" {
				continue
			}
			if secs, err := strconv.Atoi(value.Value); err == nil {
				value.Value = (time.Duration(secs) * time.Second).String()
				value.Tag = "!!str"
			}
		}
	}
}

func fieldByYAMLName(t reflect.Type, name string) (reflect.StructField, bool) {
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		tag, _, _ := strings.Cut(sf.Tag.Get("yaml"), ",")
		if tag == name {
			return sf, true
		}
	}
	return reflect.StructField{}, false
}

// Validate checks the values that would otherwise fail at first use
func (c *Config) Validate() error {
	if err := core.ValidateAPIKey(c.Router.APIKey); err != nil {
		return err
	}
	if c.Router.BaseURL == "" {
		return core.NewInvalidRequestError("baseURL", "base URL is required")
	}
	if c.Router.RouterID == "" {
		return core.NewInvalidRequestError("routerId", "router id is required")
	}
	if c.Router.Timeout < 0 {
		return core.NewInvalidRequestError("timeout", "timeout must not be negative")
	}
	if c.Router.MaxRetries < 0 {
		return core.NewInvalidRequestError("maxRetries", "max retries must not be negative")
	}
	switch c.Cache.Type {
	case "", "none", "local", "redis":
	default:
		return fmt.Errorf("invalid cache type %q: must be none, local or redis", c.Cache.Type)
	}
	if c.Cache.Type == "redis" && c.Cache.Redis.URL == "" {
		return errors.New("REDIS_URL is required when CACHE_TYPE is redis")
	}
	return nil
}

// expandString replaces ${VAR} and ${VAR:-default} placeholders with values
// from the environment. ${VAR} is left untouched when VAR is unset or empty.
func expandString(s string) string {
	var sb strings.Builder
	for {
		start := strings.Index(s, "${")
		if start < 0 {
			sb.WriteString(s)
			return sb.String()
		}
		end := strings.IndexByte(s[start:], '}')
		if end < 0 {
			sb.WriteString(s)
			return sb.String()
		}
		end += start

		sb.WriteString(s[:start])
		expr := s[start+2 : end]
		name, def, hasDefault := strings.Cut(expr, ":-")
		switch value := os.Getenv(name); {
		case value != "":
			sb.WriteString(value)
		case hasDefault:
			sb.WriteString(def)
		default:
			sb.WriteString(s[start : end+1])
		}
		s = s[end+1:]
	}
}

// applyEnvOverrides sets every field tagged with `env` whose variable is non-empty
func applyEnvOverrides(cfg *Config) error {
	return applyEnv(reflect.ValueOf(cfg).Elem())
}

func applyEnv(v reflect.Value) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := v.Field(i)
		sf := t.Field(i)

		if field.Kind() == reflect.Struct && sf.Type != durationType {
			if err := applyEnv(field); err != nil {
				return err
			}
			continue
		}

		key := sf.Tag.Get("env")
		if key == "" {
			continue
		}
		raw := os.Getenv(key)
		if raw == "" {
			continue
		}
		if err := setField(field, raw); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
	}
	return nil
}

func setField(field reflect.Value, raw string) error {
	switch {
	case field.Type() == durationType:
		d, err := parseDuration(raw)
		if err != nil {
			return err
		}
		field.SetInt(int64(d))
	case field.Kind() == reflect.String:
		field.SetString(raw)
	case field.Kind() == reflect.Int:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return err
		}
		field.SetInt(int64(n))
	case field.Kind() == reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		field.SetBool(b)
	default:
		return fmt.Errorf("unsupported field type %s", field.Type())
	}
	return nil
}

// parseDuration accepts plain integers (seconds) or Go duration strings ("30s", "1m30s")
func parseDuration(raw string) (time.Duration, error) {
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(raw)
}
