// Package ratelimit provides per-key sliding-window admission control shared
// across all requests from one caller identity.
package ratelimit

import (
	"context"
	"strings"
	"time"
)

// Defaults for the admission window.
const (
	DefaultWindow  = time.Minute
	DefaultLimit   = 60
	DefaultMaxKeys = 10000
)

// Limiter decides whether a request from the given key is admitted into the
// current window. A false result is a throttling condition, never an error;
// the error return is reserved for backend failures (e.g. an unreachable
// Redis server).
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Close() error
}

// Config carries the window parameters shared by all limiter backends.
type Config struct {
	Window  time.Duration
	Limit   int
	MaxKeys int // in-memory backend only; bounds the key table
}

func (c Config) withDefaults() Config {
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}

	if c.Limit <= 0 {
		c.Limit = DefaultLimit
	}

	if c.MaxKeys <= 0 {
		c.MaxKeys = DefaultMaxKeys
	}

	return c
}

// New creates a limiter backend selected by URL scheme: "redis://..." uses the
// shared Redis backend, anything else (including the empty string) the
// process-local in-memory backend.
func New(url string, config Config) (Limiter, error) {
	if strings.HasPrefix(url, "redis://") || strings.HasPrefix(url, "rediss://") {
		return NewRedis(url, config)
	}

	return NewMemory(config), nil
}
