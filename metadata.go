package routerclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"routerclient/core"
	"routerclient/internal/cache"
	"routerclient/llmclient"
)

// Metadata kinds, used as operation names and cache key prefixes
const (
	kindRouterConfig = "router_config"
	kindModels       = "models"
)

// GetRouterConfig fetches the configuration of the client's router
func (c *Client) GetRouterConfig(ctx context.Context) (*core.RouterConfig, error) {
	var cfg core.RouterConfig
	if err := c.fetchMetadata(ctx, kindRouterConfig, "/getRouterConfig/"+url.PathEscape(c.routerID), &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// GetModels fetches the models the router can dispatch to
func (c *Client) GetModels(ctx context.Context) (*core.ModelsResponse, error) {
	var models core.ModelsResponse
	if err := c.fetchMetadata(ctx, kindModels, "/getModels", &models); err != nil {
		return nil, err
	}
	return &models, nil
}

// fetchMetadata serves a fresh cached copy when one exists, otherwise GETs
// endpoint and stores the raw body. Cache failures are logged and ignored.
func (c *Client) fetchMetadata(ctx context.Context, kind, endpoint string, out any) error {
	key := cache.Key(kind, c.baseURL, c.apiKey, c.routerID)

	if c.cache != nil {
		entry, err := c.cache.Get(ctx, key)
		switch {
		case err != nil:
			c.logger.Warn("metadata cache read failed", "kind", kind, "error", err)
		case entry.Fresh(c.cacheTTL, time.Now()):
			if err := json.Unmarshal(entry.Data, out); err == nil {
				c.logger.Debug("metadata cache hit", "kind", kind, "stored_at", entry.StoredAt)
				return nil
			}
			c.logger.Warn("metadata cache entry is unreadable", "kind", kind)
		}
	}

	resp, err := c.transport.DoRaw(ctx, llmclient.Request{
		Operation: kind,
		Method:    http.MethodGet,
		Endpoint:  endpoint,
	})
	if err != nil {
		return err
	}
	if err := resp.Decode(out); err != nil {
		return err
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, cache.NewEntry(resp.Body)); err != nil {
			c.logger.Warn("metadata cache write failed", "kind", kind, "error", err)
		}
	}
	return nil
}
