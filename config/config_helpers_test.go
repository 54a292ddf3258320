package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestExpandString tests the expandString function with various scenarios
func TestExpandString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		envVars  map[string]string
		expected string
	}{
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
		{
			name:     "string without placeholders",
			input:    "router_id: default",
			expected: "router_id: default",
		},
		{
			name:     "simple variable expansion",
			input:    "${TEST_ROUTER_KEY}",
			envVars:  map[string]string{"TEST_ROUTER_KEY": "sk-12345"},
			expected: "sk-12345",
		},
		{
			name:     "multiple variables",
			input:    "${TEST_SCHEME}://${TEST_HOST}/v1",
			envVars:  map[string]string{"TEST_SCHEME": "https", "TEST_HOST": "api.example.com"},
			expected: "https://api.example.com/v1",
		},
		{
			name:     "variable with default value - env var exists",
			input:    "${TEST_ROUTER_KEY:-lr-default}",
			envVars:  map[string]string{"TEST_ROUTER_KEY": "sk-real"},
			expected: "sk-real",
		},
		{
			name:     "variable with default value - env var missing",
			input:    "${TEST_ROUTER_KEY:-lr-default}",
			expected: "lr-default",
		},
		{
			name:     "variable with default value - env var empty",
			input:    "${TEST_ROUTER_KEY:-lr-default}",
			envVars:  map[string]string{"TEST_ROUTER_KEY": ""},
			expected: "lr-default",
		},
		{
			name:     "unresolved variable - no default",
			input:    "${TEST_MISSING_VAR}",
			expected: "${TEST_MISSING_VAR}",
		},
		{
			name:     "mixed resolved and unresolved with defaults",
			input:    "${TEST_RESOLVED}:${TEST_UNRESOLVED:-fallback}:${TEST_MISSING}",
			envVars:  map[string]string{"TEST_RESOLVED": "value1"},
			expected: "value1:fallback:${TEST_MISSING}",
		},
		{
			name:     "default value with colon in it",
			input:    "${TEST_URL:-https://api.llmrouter.dev/v1}",
			expected: "https://api.llmrouter.dev/v1",
		},
		{
			name:     "empty default value",
			input:    "${TEST_OPTIONAL:-}",
			expected: "",
		},
		{
			name:     "unterminated placeholder",
			input:    "prefix-${TEST_ROUTER_KEY",
			envVars:  map[string]string{"TEST_ROUTER_KEY": "sk-x"},
			expected: "prefix-${TEST_ROUTER_KEY",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			result := expandString(tt.input)
			if result != tt.expected {
				t.Errorf("expandString(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

// TestApplyEnvOverrides tests the applyEnvOverrides function
func TestApplyEnvOverrides(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		check   func(t *testing.T, cfg *Config)
	}{
		{
			name:    "router overrides",
			envVars: map[string]string{"LLMROUTER_API_KEY": "sk-env", "LLMROUTER_BASE_URL": "http://localhost:9000", "LLMROUTER_ROUTER_ID": "cheap"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Router.APIKey != "sk-env" {
					t.Errorf("Router.APIKey = %q, want %q", cfg.Router.APIKey, "sk-env")
				}
				if cfg.Router.BaseURL != "http://localhost:9000" {
					t.Errorf("Router.BaseURL = %q, want %q", cfg.Router.BaseURL, "http://localhost:9000")
				}
				if cfg.Router.RouterID != "cheap" {
					t.Errorf("Router.RouterID = %q, want %q", cfg.Router.RouterID, "cheap")
				}
			},
		},
		{
			name:    "timeout as seconds and retries",
			envVars: map[string]string{"LLMROUTER_TIMEOUT": "10", "LLMROUTER_MAX_RETRIES": "5"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Router.Timeout != 10*time.Second {
					t.Errorf("Router.Timeout = %v, want 10s", cfg.Router.Timeout)
				}
				if cfg.Router.MaxRetries != 5 {
					t.Errorf("Router.MaxRetries = %d, want 5", cfg.Router.MaxRetries)
				}
			},
		},
		{
			name:    "duration strings",
			envVars: map[string]string{"CACHE_TTL": "90s", "REDIS_TTL": "1h", "HTTP_RESPONSE_HEADER_TIMEOUT": "2m"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Cache.TTL != 90*time.Second {
					t.Errorf("Cache.TTL = %v, want 90s", cfg.Cache.TTL)
				}
				if cfg.Cache.Redis.TTL != time.Hour {
					t.Errorf("Cache.Redis.TTL = %v, want 1h", cfg.Cache.Redis.TTL)
				}
				if cfg.HTTP.ResponseHeaderTimeout != 2*time.Minute {
					t.Errorf("HTTP.ResponseHeaderTimeout = %v, want 2m", cfg.HTTP.ResponseHeaderTimeout)
				}
			},
		},
		{
			name:    "bool overrides",
			envVars: map[string]string{"METRICS_ENABLED": "true", "HTTP_TRACING": "1", "HTTP_COMPRESSION": "false"},
			check: func(t *testing.T, cfg *Config) {
				if !cfg.Metrics.Enabled {
					t.Error("Metrics.Enabled should be true")
				}
				if !cfg.HTTP.Tracing {
					t.Error("HTTP.Tracing should be true")
				}
				if cfg.HTTP.Compression {
					t.Error("HTTP.Compression should be false")
				}
			},
		},
		{
			name:    "cache overrides",
			envVars: map[string]string{"CACHE_TYPE": "redis", "REDIS_URL": "redis://localhost:6379", "REDIS_KEY": "app:meta", "CACHE_LOCAL_PATH": "/tmp/m.json"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Cache.Type != "redis" {
					t.Errorf("Cache.Type = %q, want redis", cfg.Cache.Type)
				}
				if cfg.Cache.Redis.URL != "redis://localhost:6379" {
					t.Errorf("Cache.Redis.URL = %q", cfg.Cache.Redis.URL)
				}
				if cfg.Cache.Redis.Key != "app:meta" {
					t.Errorf("Cache.Redis.Key = %q", cfg.Cache.Redis.Key)
				}
				if cfg.Cache.Local.Path != "/tmp/m.json" {
					t.Errorf("Cache.Local.Path = %q", cfg.Cache.Local.Path)
				}
			},
		},
		{
			name: "no env vars set preserves defaults",
			check: func(t *testing.T, cfg *Config) {
				if cfg.Router.BaseURL != DefaultBaseURL {
					t.Errorf("Router.BaseURL = %q, want %q", cfg.Router.BaseURL, DefaultBaseURL)
				}
				if cfg.Router.RouterID != "default" {
					t.Errorf("Router.RouterID = %q, want default", cfg.Router.RouterID)
				}
				if cfg.Router.Timeout != 30*time.Second {
					t.Errorf("Router.Timeout = %v, want 30s", cfg.Router.Timeout)
				}
				if cfg.Router.MaxRetries != 3 {
					t.Errorf("Router.MaxRetries = %d, want 3", cfg.Router.MaxRetries)
				}
				if cfg.Cache.TTL != 5*time.Minute {
					t.Errorf("Cache.TTL = %v, want 5m", cfg.Cache.TTL)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearRouterEnv(t)
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg := buildDefaultConfig()
			require.NoError(t, applyEnvOverrides(cfg))
			tt.check(t, cfg)
		})
	}
}

func TestApplyEnvOverrides_InvalidValues(t *testing.T) {
	for key, value := range map[string]string{
		"LLMROUTER_MAX_RETRIES": "many",
		"METRICS_ENABLED":       "sure",
		"LLMROUTER_TIMEOUT":     "soon",
	} {
		t.Run(key, func(t *testing.T) {
			clearRouterEnv(t)
			t.Setenv(key, value)

			err := applyEnvOverrides(buildDefaultConfig())
			require.Error(t, err)
			require.Contains(t, err.Error(), key)
		})
	}
}
