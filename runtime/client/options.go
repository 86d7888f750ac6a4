package client

import (
	"database/sql"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/satishbabariya/commerce-client/internal/config"
	"github.com/satishbabariya/commerce-client/query/cache"
	"github.com/satishbabariya/commerce-client/schema"
)

// options is the resolved client configuration.
type options struct {
	provider        string
	databaseURL     string
	db              *sql.DB
	registry        *schema.Registry
	schemaPath      string
	maxConns        int
	maxIdleConns    int
	connMaxLifetime time.Duration
	queryTimeout    time.Duration
	logQueries      bool
	logger          *zap.Logger
	tx              TxOptions
	middlewares     []Middleware

	cacheBackend cache.Backend
	cacheTTL     time.Duration
	redisURL     string
	maxEntries   int

	metricsNamespace string
	metricsRegistry  prometheus.Registerer

	skipVersionCheck bool
}

func defaultOptions() options {
	return options{
		maxConns:        10,
		maxIdleConns:    5,
		connMaxLifetime: time.Hour,
		queryTimeout:    30 * time.Second,
		tx:              TxOptions{MaxWait: DefaultMaxWait, Timeout: DefaultTimeout},
	}
}

// Option configures a Client.
type Option func(*options)

// WithProvider selects the dialect: postgresql, pgx, mysql or sqlite.
// Defaults to the schema's datasource provider.
func WithProvider(provider string) Option {
	return func(o *options) { o.provider = provider }
}

// WithDatabaseURL sets the connection string.
func WithDatabaseURL(url string) Option {
	return func(o *options) { o.databaseURL = url }
}

// WithDB uses an already opened pool. Disconnect still closes it.
func WithDB(db *sql.DB) Option {
	return func(o *options) { o.db = db }
}

// WithRegistry replaces the embedded schema.
func WithRegistry(reg *schema.Registry) Option {
	return func(o *options) { o.registry = reg }
}

// WithSchemaFile loads the schema from a file instead of the embedded one.
func WithSchemaFile(path string) Option {
	return func(o *options) { o.schemaPath = path }
}

// WithMaxConnections sets the pool's open and idle connection limits.
func WithMaxConnections(open, idle int) Option {
	return func(o *options) { o.maxConns, o.maxIdleConns = open, idle }
}

// WithConnMaxLifetime sets how long a pooled connection may be reused.
func WithConnMaxLifetime(d time.Duration) Option {
	return func(o *options) { o.connMaxLifetime = d }
}

// WithQueryTimeout bounds each operation run outside a transaction. Zero
// disables the bound.
func WithQueryTimeout(d time.Duration) Option {
	return func(o *options) { o.queryTimeout = d }
}

// WithLogQueries logs every operation at debug level.
func WithLogQueries(enabled bool) Option {
	return func(o *options) { o.logQueries = enabled }
}

// WithLogger routes the package logs to l.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTransactionDefaults sets the options of transactions that do not
// override them.
func WithTransactionDefaults(tx TxOptions) Option {
	return func(o *options) { o.tx = tx }
}

// WithMiddleware appends middlewares to the operation chain.
func WithMiddleware(mw ...Middleware) Option {
	return func(o *options) { o.middlewares = append(o.middlewares, mw...) }
}

// WithCache enables the read cache over backend.
func WithCache(backend cache.Backend, ttl time.Duration) Option {
	return func(o *options) { o.cacheBackend, o.cacheTTL = backend, ttl }
}

// WithRedisCache enables the read cache over the Redis server at url. The
// connection is made by Connect.
func WithRedisCache(url string, ttl time.Duration) Option {
	return func(o *options) { o.redisURL, o.cacheTTL = url, ttl }
}

// WithMetrics registers Prometheus collectors under namespace with reg.
func WithMetrics(namespace string, reg prometheus.Registerer) Option {
	return func(o *options) { o.metricsNamespace, o.metricsRegistry = namespace, reg }
}

// WithoutVersionCheck skips the server version check in Connect.
func WithoutVersionCheck() Option {
	return func(o *options) { o.skipVersionCheck = true }
}

// FromConfig translates loaded settings into options.
func FromConfig(cfg *config.Config) []Option {
	opts := []Option{
		WithProvider(cfg.Provider),
		WithDatabaseURL(cfg.DatabaseURL),
		WithMaxConnections(cfg.MaxConnections, cfg.MaxIdleConnections),
		WithConnMaxLifetime(cfg.ConnMaxLifetime),
		WithQueryTimeout(cfg.QueryTimeout),
		WithLogQueries(cfg.LogQueries),
	}
	if cfg.SchemaPath != "" {
		opts = append(opts, WithSchemaFile(cfg.SchemaPath))
	}

	tx := TxOptions{MaxWait: cfg.Transaction.MaxWait, Timeout: cfg.Transaction.Timeout}
	if level, err := ParseIsolationLevel(cfg.Transaction.IsolationLevel); err == nil {
		tx.IsolationLevel = level
	}
	opts = append(opts, WithTransactionDefaults(tx))

	if cfg.Cache.Enabled {
		switch cfg.Cache.Backend {
		case "redis":
			opts = append(opts, WithRedisCache(cfg.Cache.RedisURL, cfg.Cache.TTL))
		default:
			opts = append(opts, WithCache(cache.NewLRU(cfg.Cache.MaxEntries), cfg.Cache.TTL))
		}
	}
	if cfg.Metrics.Namespace != "" {
		opts = append(opts, WithMetrics(cfg.Metrics.Namespace, prometheus.DefaultRegisterer))
	}
	return opts
}
