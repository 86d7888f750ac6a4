// Package client is the runtime entry point: it owns the connection pool
// and exposes every model operation, transactions, middlewares and the
// optional read cache.
package client

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"

	"github.com/spf13/afero"

	"github.com/satishbabariya/commerce-client/internal/logger"
	"github.com/satishbabariya/commerce-client/internal/metrics"
	"github.com/satishbabariya/commerce-client/query/cache"
	"github.com/satishbabariya/commerce-client/query/dialect"
	"github.com/satishbabariya/commerce-client/query/executor"
	"github.com/satishbabariya/commerce-client/runtime/types"
	"github.com/satishbabariya/commerce-client/schema"
)

// Client is a scoped handle on one database. Create it with New, acquire
// the pool with Connect and release it with Disconnect.
type Client struct {
	Models

	opts        options
	reg         *schema.Registry
	d           dialect.Dialect
	metrics     *metrics.Metrics
	middlewares []Middleware

	mu    sync.RWMutex
	db    *sql.DB
	exec  *executor.Executor
	cache *cache.Cache
}

// New validates the options and resolves the schema and dialect. It does
// not touch the database.
func New(opts ...Option) (*Client, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger != nil {
		logger.Set(o.logger)
	}

	reg := o.registry
	if reg == nil && o.schemaPath != "" {
		var err error
		if reg, err = schema.Load(afero.NewOsFs(), o.schemaPath); err != nil {
			return nil, err
		}
	}
	if reg == nil {
		reg = schema.Embedded()
	}

	provider := o.provider
	if provider == "" {
		provider = reg.Datasource.Provider
	}
	d, err := dialect.Lookup(provider)
	if err != nil {
		return nil, err
	}
	if o.databaseURL == "" && o.db == nil {
		o.databaseURL = reg.Datasource.URL
		if reg.Datasource.URLEnv != "" {
			o.databaseURL = os.Getenv(reg.Datasource.URLEnv)
		}
	}

	c := &Client{opts: o, reg: reg, d: d}
	if o.metricsNamespace != "" {
		if c.metrics, err = metrics.New(o.metricsNamespace, o.metricsRegistry); err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
		c.middlewares = append(c.middlewares, metricsMiddleware(c.metrics))
	}
	c.middlewares = append(c.middlewares, o.middlewares...)
	c.Models = Models{s: &session{c: c}}
	return c, nil
}

// Connect opens the pool, applies its limits, pings the server and checks
// its version. Connecting a connected client is a no-op.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db != nil {
		return nil
	}

	db := c.opts.db
	if db == nil {
		if c.opts.databaseURL == "" {
			return types.NewError(types.ErrInvalidArgument, "no database url configured")
		}
		dsn, err := c.d.PrepareDSN(c.opts.databaseURL)
		if err != nil {
			return err
		}
		if db, err = sql.Open(c.d.DriverName(), dsn); err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
	}

	maxConns := c.opts.maxConns
	if limit := c.d.MaxOpenConns(); limit > 0 {
		maxConns = limit
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(min(c.opts.maxIdleConns, maxConns))
	db.SetConnMaxLifetime(c.opts.connMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return types.Wrap(fmt.Errorf("failed to connect: %w", err), "")
	}
	if !c.opts.skipVersionCheck {
		v, err := dialect.CheckServerVersion(ctx, db, c.d)
		if err != nil {
			_ = db.Close()
			return err
		}
		logger.Debug("Connected", "provider", c.d.Name(), "serverVersion", v.String())
	}

	backend := c.opts.cacheBackend
	if backend == nil && c.opts.redisURL != "" {
		redis, err := cache.NewRedis(ctx, c.opts.redisURL, "")
		if err != nil {
			_ = db.Close()
			return err
		}
		backend = redis
	}
	if backend != nil {
		c.cache = cache.New(backend, c.opts.cacheTTL)
	}

	c.db = db
	c.exec = executor.New(db, c.d, c.reg)
	return nil
}

// Disconnect closes the pool and the cache backend. Operations issued
// afterwards fail until Connect is called again.
func (c *Client) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db == nil {
		return nil
	}
	var err error
	if c.cache != nil {
		err = c.cache.Close()
		c.cache = nil
	}
	if closeErr := c.db.Close(); closeErr != nil {
		err = closeErr
	}
	c.db, c.exec = nil, nil
	return err
}

// DB returns the underlying pool, or nil before Connect.
func (c *Client) DB() *sql.DB {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.db
}

// Registry returns the schema the client validates against.
func (c *Client) Registry() *schema.Registry {
	return c.reg
}

// Dialect returns the dialect selected by the provider.
func (c *Client) Dialect() dialect.Dialect {
	return c.d
}

// CacheStats returns the read cache counters. ok is false when the cache
// is disabled.
func (c *Client) CacheStats() (stats cache.Stats, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.cache == nil {
		return cache.Stats{}, false
	}
	return c.cache.Stats(), true
}

// Use appends a middleware. It is not safe to call concurrently with
// operations.
func (c *Client) Use(mw Middleware) {
	c.middlewares = append(c.middlewares, mw)
}

// connection returns the live executor and cache.
func (c *Client) connection() (*executor.Executor, *cache.Cache, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.exec == nil {
		return nil, nil, types.NewError(types.ErrEngine, "client is not connected")
	}
	return c.exec, c.cache, nil
}
