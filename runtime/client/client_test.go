package client

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/commerce-client/internal/config"
	"github.com/satishbabariya/commerce-client/migrate"
	"github.com/satishbabariya/commerce-client/query/cache"
	"github.com/satishbabariya/commerce-client/runtime/types"
)

// newClient connects a client to a migrated database file private to the
// test. An in-memory database would vanish with the pool's only connection
// when a timed-out transaction discards it.
func newClient(t *testing.T, opts ...Option) *Client {
	t.Helper()
	ctx := context.Background()

	base := []Option{
		WithProvider("sqlite"),
		WithDatabaseURL("file:" + filepath.Join(t.TempDir(), "commerce.db")),
	}
	c, err := New(append(base, opts...)...)
	require.NoError(t, err)
	require.NoError(t, c.Connect(ctx))
	t.Cleanup(func() { c.Disconnect(ctx) })

	engine, err := migrate.NewEngine(c.DB(), c.Dialect())
	require.NoError(t, err)
	_, err = engine.Up(ctx)
	require.NoError(t, err)
	return c
}

func createUser(t *testing.T, m Models, name string) types.Row {
	t.Helper()
	row, err := m.User().Create(context.Background(), types.CreateArgs{
		Data: types.Data{"name": name, "email": strings.ToLower(name) + "@x.com"},
	})
	require.NoError(t, err)
	return row
}

func TestNew(t *testing.T) {
	t.Run("unknown provider", func(t *testing.T) {
		_, err := New(WithProvider("oracle"))
		assert.ErrorIs(t, err, types.ErrInvalidArgument)
	})

	t.Run("provider defaults to the schema datasource", func(t *testing.T) {
		c, err := New()
		require.NoError(t, err)
		assert.Equal(t, "postgresql", c.Dialect().Name())
	})

	t.Run("operations need a connection", func(t *testing.T) {
		c, err := New(WithProvider("sqlite"))
		require.NoError(t, err)
		_, err = c.User().FindMany(context.Background(), types.FindArgs{})
		assert.ErrorIs(t, err, types.ErrEngine)
	})

	t.Run("connect without a url", func(t *testing.T) {
		c, err := New(WithProvider("sqlite"))
		require.NoError(t, err)
		assert.ErrorIs(t, c.Connect(context.Background()), types.ErrInvalidArgument)
	})
}

func TestDisconnect(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)

	require.NoError(t, c.Disconnect(ctx))
	require.NoError(t, c.Disconnect(ctx))
	assert.Nil(t, c.DB())

	_, err := c.User().Count(ctx, types.CountArgs{})
	assert.ErrorIs(t, err, types.ErrEngine)
}

func TestModelOperations(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)

	ann := createUser(t, c.Models, "Ann")
	widget, err := c.Product().Create(ctx, types.CreateArgs{
		Data: types.Data{"name": "Widget", "category": "tools", "price": "9.99"},
	})
	require.NoError(t, err)
	order, err := c.Order().Create(ctx, types.CreateArgs{
		Data: types.Data{"userId": ann["id"], "productId": widget["id"], "status": "pending"},
	})
	require.NoError(t, err)

	got, err := c.Order().FindUnique(ctx, types.FindUniqueArgs{
		Where:   types.Where{"id": order["id"]},
		Include: types.Include{"user": true, "product": true},
	})
	require.NoError(t, err)
	assert.Equal(t, "Ann", got["user"].(types.Row)["name"])
	assert.Equal(t, "9.99", got["product"].(types.Row)["price"].(decimal.Decimal).String())

	missing, err := c.User().FindUnique(ctx, types.FindUniqueArgs{Where: types.Where{"id": 42}})
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = c.User().FindFirstOrThrow(ctx, types.FindArgs{Where: types.Where{"name": "Zed"}})
	assert.True(t, types.IsNotFound(err))

	n, err := c.User().Count(ctx, types.CountArgs{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	batch, err := c.User().UpdateMany(ctx, types.UpdateManyArgs{
		Where: types.Where{"name": "Nobody"},
		Data:  types.Data{"premiumStatus": true},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), batch.Count)

	agg, err := c.Product().Aggregate(ctx, types.AggregateArgs{Count: types.AggregateSelect{"_all": true}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), agg["_count"]["_all"])

	_, err = c.Model("Coupon").FindMany(ctx, types.FindArgs{})
	assert.ErrorIs(t, err, types.ErrUnknownModel)
}

func TestExecute(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)

	op, err := ParseOperation([]byte(`{"model":"User","action":"create","args":{"data":{"name":"Ann","email":"ann@x.com"}}}`))
	require.NoError(t, err)
	assert.Equal(t, "User.create", op.String())

	res, err := c.Execute(ctx, op)
	require.NoError(t, err)
	assert.Equal(t, "Ann", res.(types.Row)["name"])

	res, err = c.Execute(ctx, Operation{
		Model:  "User",
		Action: types.FindMany,
		Args:   map[string]any{"where": map[string]any{"email": map[string]any{"endsWith": "@x.com"}}},
	})
	require.NoError(t, err)
	assert.Len(t, res.([]types.Row), 1)

	res, err = c.Execute(ctx, Operation{Model: "User", Action: types.FindUnique, Args: types.FindUniqueArgs{Where: types.Where{"id": 7}}})
	require.NoError(t, err)
	assert.Nil(t, res)

	_, err = c.Execute(ctx, Operation{Model: "User", Action: "truncate"})
	assert.ErrorIs(t, err, types.ErrInvalidArgument)

	_, err = ParseOperation([]byte(`{"action":"findMany"}`))
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}

func TestMiddleware(t *testing.T) {
	ctx := context.Background()
	var calls []string
	var failures []error

	c := newClient(t,
		WithMiddleware(func(ctx context.Context, event *QueryEvent, next func() error) error {
			calls = append(calls, "outer:"+event.Model+"."+string(event.Action))
			err := next()
			calls = append(calls, "outer done")
			return err
		}),
		WithMiddleware(ErrorMiddleware(func(model string, action types.Action, err error) {
			failures = append(failures, err)
		})),
	)
	var timed []time.Duration
	c.Use(TimingMiddleware(func(model string, action types.Action, d time.Duration) {
		timed = append(timed, d)
	}))

	createUser(t, c.Models, "Ann")
	_, err := c.User().FindUniqueOrThrow(ctx, types.FindUniqueArgs{Where: types.Where{"id": 99}})
	require.Error(t, err)

	assert.Equal(t, []string{"outer:User.create", "outer done", "outer:User.findUniqueOrThrow", "outer done"}, calls)
	require.Len(t, failures, 1)
	assert.True(t, types.IsNotFound(failures[0]))
	assert.Len(t, timed, 2)
}

func TestMiddlewareSeesResult(t *testing.T) {
	var events []QueryEvent
	c := newClient(t, WithMiddleware(func(ctx context.Context, event *QueryEvent, next func() error) error {
		err := next()
		events = append(events, *event)
		return err
	}))

	createUser(t, c.Models, "Ann")
	require.Len(t, events, 1)
	assert.Equal(t, "Ann", events[0].Result.(types.Row)["name"])
	assert.NoError(t, events[0].Error)
	assert.Empty(t, events[0].TxID)
	assert.False(t, events[0].End.Before(events[0].Start))
}

func TestMetrics(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	c := newClient(t, WithMetrics("shop", reg))

	createUser(t, c.Models, "Ann")
	_, err := c.User().FindUniqueOrThrow(ctx, types.FindUniqueArgs{Where: types.Where{"id": 99}})
	require.Error(t, err)
	require.NoError(t, c.InteractiveTransaction(ctx, func(tx *Tx) error { return nil }))

	families, err := reg.Gather()
	require.NoError(t, err)
	found := map[string]bool{}
	for _, f := range families {
		found[f.GetName()] = true
		if f.GetName() == "shop_query_errors_total" {
			require.Len(t, f.GetMetric(), 1)
			assert.Equal(t, float64(1), f.GetMetric()[0].GetCounter().GetValue())
		}
	}
	assert.True(t, found["shop_query_duration_seconds"])
	assert.True(t, found["shop_query_errors_total"])
	assert.True(t, found["shop_transaction_total"])

	_, err = New(WithProvider("sqlite"), WithMetrics("shop", reg))
	assert.Error(t, err, "duplicate registration")
}

func TestCache(t *testing.T) {
	ctx := context.Background()
	var cached []bool
	c := newClient(t,
		WithCache(cache.NewLRU(100), time.Minute),
		WithMiddleware(func(ctx context.Context, event *QueryEvent, next func() error) error {
			err := next()
			if event.Action.IsRead() {
				cached = append(cached, event.Cached)
			}
			return err
		}),
	)
	createUser(t, c.Models, "Ann")

	for range 2 {
		rows, err := c.User().FindMany(ctx, types.FindArgs{})
		require.NoError(t, err)
		assert.Len(t, rows, 1)
	}
	assert.Equal(t, []bool{false, true}, cached)

	createUser(t, c.Models, "Bob")
	rows, err := c.User().FindMany(ctx, types.FindArgs{})
	require.NoError(t, err)
	assert.Len(t, rows, 2, "a write invalidates cached reads")

	stats, ok := c.CacheStats()
	require.True(t, ok)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(2), stats.Misses)
}

func TestCacheEmptyAndMissingResults(t *testing.T) {
	ctx := context.Background()
	c := newClient(t, WithCache(cache.NewLRU(100), time.Minute))

	for range 2 {
		rows, err := c.User().FindMany(ctx, types.FindArgs{})
		require.NoError(t, err)
		assert.NotNil(t, rows)
		assert.Empty(t, rows)

		row, err := c.User().FindUnique(ctx, types.FindUniqueArgs{Where: types.Where{"id": 1}})
		require.NoError(t, err)
		assert.Nil(t, row)
	}

	createUser(t, c.Models, "Ann")
	row, err := c.User().FindUnique(ctx, types.FindUniqueArgs{Where: types.Where{"id": 1}})
	require.NoError(t, err)
	assert.Equal(t, "Ann", row["name"], "a missing row is never cached")
}

func TestFromConfig(t *testing.T) {
	cfg := &config.Config{
		Provider:           "sqlite",
		DatabaseURL:        "file:TestFromConfig?mode=memory&cache=shared",
		MaxConnections:     4,
		MaxIdleConnections: 2,
		ConnMaxLifetime:    time.Minute,
		QueryTimeout:       time.Second,
		Transaction: config.TransactionConfig{
			MaxWait:        time.Second,
			Timeout:        3 * time.Second,
			IsolationLevel: "serializable",
		},
		Cache: config.CacheConfig{Enabled: true, Backend: "memory", TTL: time.Minute, MaxEntries: 10},
	}

	c, err := New(FromConfig(cfg)...)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", c.Dialect().Name())
	assert.Equal(t, Serializable, c.opts.tx.IsolationLevel)
	assert.Equal(t, 3*time.Second, c.opts.tx.Timeout)

	require.NoError(t, c.Connect(context.Background()))
	defer c.Disconnect(context.Background())
	_, ok := c.CacheStats()
	assert.True(t, ok)
	assert.Equal(t, 1, c.DB().Stats().MaxOpenConnections, "sqlite is limited to one connection")
}
