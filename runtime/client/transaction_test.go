package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/commerce-client/runtime/types"
)

func TestTransactionBatch(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)

	ann := createUser(t, c.Models, "Ann")
	results, err := c.Transaction(ctx, []Operation{
		c.Product().Op(types.Create, types.CreateArgs{Data: types.Data{"name": "Widget", "category": "tools", "price": "9.99"}}),
		c.Product().Op(types.Count, types.CountArgs{}),
		c.User().Op(types.Update, types.UpdateArgs{Where: types.Where{"id": ann["id"]}, Data: types.Data{"premiumStatus": true}}),
	})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "Widget", results[0].(types.Row)["name"])
	assert.Equal(t, int64(1), results[1])
	assert.Equal(t, true, results[2].(types.Row)["premiumStatus"])
}

func TestTransactionBatchIsAtomic(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)
	ann := createUser(t, c.Models, "Ann")

	_, err := c.Transaction(ctx, []Operation{
		c.User().Op(types.Create, types.CreateArgs{Data: types.Data{"name": "Bob", "email": "bob@x.com"}}),
		c.Order().Op(types.Create, types.CreateArgs{Data: types.Data{"userId": ann["id"], "productId": 999, "status": "pending"}}),
	})
	require.Error(t, err)
	assert.True(t, types.IsForeignKeyConstraint(err), "the failing operation's kind is kept: %v", err)

	n, err := c.User().Count(ctx, types.CountArgs{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "the first create was rolled back")
}

func TestInteractiveTransaction(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)

	err := c.InteractiveTransaction(ctx, func(tx *Tx) error {
		assert.NotEmpty(t, tx.ID())
		ann := createUser(t, tx.Models, "Ann")
		premium, err := tx.User().Count(ctx, types.CountArgs{Where: types.Where{"premiumStatus": true}})
		if err != nil {
			return err
		}
		if premium == 0 {
			_, err = tx.User().Update(ctx, types.UpdateArgs{
				Where: types.Where{"id": ann["id"]},
				Data:  types.Data{"premiumStatus": true},
			})
		}
		return err
	})
	require.NoError(t, err)

	ann, err := c.User().FindUniqueOrThrow(ctx, types.FindUniqueArgs{Where: types.Where{"email": "ann@x.com"}})
	require.NoError(t, err)
	assert.Equal(t, true, ann["premiumStatus"])
}

func TestInteractiveTransactionRollsBack(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)
	boom := errors.New("boom")

	err := c.InteractiveTransaction(ctx, func(tx *Tx) error {
		createUser(t, tx.Models, "Ann")
		return boom
	})
	assert.ErrorIs(t, err, boom)

	assert.Panics(t, func() {
		_ = c.InteractiveTransaction(ctx, func(tx *Tx) error {
			createUser(t, tx.Models, "Bob")
			panic("callback failed")
		})
	})

	n, err := c.User().Count(ctx, types.CountArgs{})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestTransactionTimeout(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)

	var lateErr error
	err := c.InteractiveTransaction(ctx, func(tx *Tx) error {
		createUser(t, tx.Models, "Ann")
		time.Sleep(300 * time.Millisecond)
		_, lateErr = tx.User().Count(ctx, types.CountArgs{})
		return nil
	}, WithTimeout(100*time.Millisecond))

	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrTransactionTimeout)
	assert.True(t, types.IsTimeout(lateErr))

	var te *types.Error
	require.ErrorAs(t, err, &te)
	assert.NotEmpty(t, te.Meta["txId"])

	n, err := c.User().Count(ctx, types.CountArgs{})
	require.NoError(t, err)
	assert.Zero(t, n, "effects before the timeout are rolled back")
}

func TestTransactionMaxWait(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)

	// SQLite has a single connection, so a second transaction cannot start
	// while the first one holds it.
	err := c.InteractiveTransaction(ctx, func(outer *Tx) error {
		createUser(t, outer.Models, "Ann")
		start := time.Now()
		inner := c.InteractiveTransaction(ctx, func(*Tx) error { return nil }, WithMaxWait(100*time.Millisecond))
		assert.Less(t, time.Since(start), time.Second)
		return inner
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrTransactionMaxWait)
	assert.True(t, types.IsTimeout(err))

	n, err := c.User().Count(ctx, types.CountArgs{})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestTransactionHandleClosed(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)

	var leaked *Tx
	require.NoError(t, c.InteractiveTransaction(ctx, func(tx *Tx) error {
		leaked = tx
		return nil
	}))
	_, err := leaked.User().Count(ctx, types.CountArgs{})
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}

func TestConcurrentIncrements(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)

	wallet, err := c.Wallet().Create(ctx, types.CreateArgs{Data: types.Data{"userId": 1, "balance": "0", "currency": "USD"}})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = c.InteractiveTransaction(ctx, func(tx *Tx) error {
				_, err := tx.Wallet().Update(ctx, types.UpdateArgs{
					Where: types.Where{"id": wallet["id"]},
					Data:  types.Data{"balance": map[string]any{"increment": 10}},
				})
				return err
			}, WithIsolationLevel(Serializable))
		}()
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	got, err := c.Wallet().FindUniqueOrThrow(ctx, types.FindUniqueArgs{Where: types.Where{"id": wallet["id"]}})
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(20).Equal(got["balance"].(decimal.Decimal)), "balance %v", got["balance"])
}

func TestTransact(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)

	id, err := Transact(ctx, c, func(tx *Tx) (any, error) {
		row, err := tx.User().Create(ctx, types.CreateArgs{Data: types.Data{"name": "Ann", "email": "ann@x.com"}})
		if err != nil {
			return nil, err
		}
		return row["id"], nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	_, err = Transact(ctx, c, func(tx *Tx) (int, error) {
		_, err := tx.User().Create(ctx, types.CreateArgs{Data: types.Data{"name": "Ann", "email": "ann@x.com"}})
		return 0, err
	})
	assert.True(t, types.IsUniqueConstraint(err))
}

func TestTransactionInvalidatesCacheOnCommit(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	c := newClient(t, WithRedisCache("redis://"+mr.Addr(), time.Minute))

	count := func() int64 {
		n, err := c.User().Count(ctx, types.CountArgs{})
		require.NoError(t, err)
		return n
	}
	assert.Zero(t, count())

	require.Error(t, c.InteractiveTransaction(ctx, func(tx *Tx) error {
		createUser(t, tx.Models, "Ann")
		return errors.New("abort")
	}))
	assert.Zero(t, count())

	require.NoError(t, c.InteractiveTransaction(ctx, func(tx *Tx) error {
		createUser(t, tx.Models, "Ann")
		return nil
	}))
	assert.Equal(t, int64(1), count())

	stats, ok := c.CacheStats()
	require.True(t, ok)
	assert.Equal(t, int64(1), stats.Hits)
}

func TestParseIsolationLevel(t *testing.T) {
	for name, want := range map[string]IsolationLevel{
		"":                DefaultIsolation,
		"ReadUncommitted": ReadUncommitted,
		"readcommitted":   ReadCommitted,
		"RepeatableRead":  RepeatableRead,
		"SERIALIZABLE":    Serializable,
	} {
		got, err := ParseIsolationLevel(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
	_, err := ParseIsolationLevel("snapshot")
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
	assert.Equal(t, "Serializable", Serializable.String())
}
