// Package cache provides a cache abstraction for router metadata responses.
// Supports both local (file) and Redis backends so several processes can share fetched metadata.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

// EntryVersion is the current on-disk format of an Entry
const EntryVersion = 1

// Entry is one cached metadata document.
// Data holds the raw JSON body exactly as the router returned it.
type Entry struct {
	Version  int             `json:"version"`
	StoredAt time.Time       `json:"stored_at"`
	Data     json.RawMessage `json:"data"`
}

// NewEntry wraps data with the current version and timestamp
func NewEntry(data json.RawMessage) *Entry {
	return &Entry{
		Version:  EntryVersion,
		StoredAt: time.Now().UTC(),
		Data:     data,
	}
}

// Fresh reports whether the entry is younger than ttl at now.
// A non-positive ttl means entries never go stale.
func (e *Entry) Fresh(ttl time.Duration, now time.Time) bool {
	if e == nil || e.Version != EntryVersion || len(e.Data) == 0 {
		return false
	}
	if ttl <= 0 {
		return true
	}
	return now.Sub(e.StoredAt) < ttl
}

// Cache defines the interface for metadata cache storage.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get retrieves the entry stored under key.
	// Returns nil, nil if nothing is cached yet.
	Get(ctx context.Context, key string) (*Entry, error)

	// Set stores the entry under key.
	Set(ctx context.Context, key string, entry *Entry) error

	// Close releases any resources held by the cache.
	Close() error
}

// Key builds a cache key for a metadata kind. The scope parts (base URL,
// API key, router id) are hashed so keys never contain credentials.
func Key(kind string, scope ...string) string {
	h := xxhash.New()
	for _, part := range scope {
		_, _ = h.WriteString(part)
		_, _ = h.Write([]byte{0})
	}
	var sb strings.Builder
	sb.WriteString(kind)
	sb.WriteByte(':')
	sb.WriteString(strconv.FormatUint(h.Sum64(), 16))
	return sb.String()
}

// Backend names accepted by New
const (
	TypeNone  = "none"
	TypeLocal = "local"
	TypeRedis = "redis"
)

// Options selects and configures a cache backend
type Options struct {
	Type      string
	LocalPath string
	Redis     RedisConfig
}

// New creates the configured backend. TypeNone (or an empty type) returns nil, nil.
func New(ctx context.Context, opts Options) (Cache, error) {
	switch opts.Type {
	case "", TypeNone:
		return nil, nil
	case TypeLocal:
		if opts.LocalPath == "" {
			return nil, errors.New("local cache requires a file path")
		}
		return NewLocalCache(opts.LocalPath), nil
	case TypeRedis:
		if opts.Redis.URL == "" {
			return nil, errors.New("redis cache requires a URL")
		}
		c, err := NewRedisCache(ctx, opts.Redis)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown cache type %q", opts.Type)
	}
}
