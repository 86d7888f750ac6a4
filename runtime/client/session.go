package client

import (
	"context"
	"errors"
	"reflect"
	"time"

	"github.com/satishbabariya/commerce-client/internal/logger"
	"github.com/satishbabariya/commerce-client/query/cache"
	"github.com/satishbabariya/commerce-client/query/executor"
	"github.com/satishbabariya/commerce-client/runtime/types"
)

// session routes operations either to the pool or to one transaction.
type session struct {
	c  *Client
	tx *txState
}

func (s *session) executor() (*executor.Executor, *cache.Cache, error) {
	if s.tx != nil {
		if err := s.tx.usable(); err != nil {
			return nil, nil, err
		}
		return s.tx.exec, nil, nil
	}
	return s.c.connection()
}

func (s *session) execute(ctx context.Context, model string, action types.Action, raw any) (any, error) {
	if !action.Valid() {
		return nil, types.Errorf(types.ErrInvalidArgument, model, "unknown action %q", action)
	}
	args, err := normalizeArgs(action, raw)
	if err != nil {
		return nil, types.Wrap(err, model)
	}
	exec, c, err := s.executor()
	if err != nil {
		return nil, err
	}

	if s.tx != nil {
		var stop func()
		ctx, stop = s.tx.bind(ctx)
		defer stop()
	} else if s.c.opts.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.c.opts.queryTimeout)
		defer cancel()
	}

	event := &QueryEvent{Model: model, Action: action, Args: args}
	if s.tx != nil {
		event.TxID = s.tx.id
	}
	err = chain(ctx, s.c.middlewares, event, func() (any, error) {
		return s.run(ctx, exec, c, event)
	})
	s.log(event, err)
	if err != nil {
		return nil, err
	}
	return event.Result, nil
}

func (s *session) run(ctx context.Context, exec *executor.Executor, c *cache.Cache, event *QueryEvent) (any, error) {
	var key string
	if c != nil && event.Action.IsRead() {
		key = s.lookup(ctx, c, event)
		if event.Cached {
			return event.Result, nil
		}
	}

	result, err := dispatch(ctx, exec, event.Model, event.Action, event.Args)
	if err != nil {
		return nil, s.fail(err, event.Model)
	}

	if key != "" && result != nil {
		if err := c.Put(ctx, key, result); err != nil {
			logger.Warn("Cache write failed", "model", event.Model, "action", event.Action, "error", err)
		}
	}
	if !event.Action.IsRead() {
		s.wrote(ctx, c)
	}
	return result, nil
}

// lookup returns the cache key of the read and fills event on a hit. An
// empty key disables the write-back.
func (s *session) lookup(ctx context.Context, c *cache.Cache, event *QueryEvent) string {
	key, err := c.Key(ctx, event.Model, string(event.Action), event.Args)
	if err != nil {
		logger.Warn("Cache key failed", "model", event.Model, "action", event.Action, "error", err)
		return ""
	}
	v, ok, err := c.Get(ctx, key)
	if err != nil {
		logger.Warn("Cache read failed", "model", event.Model, "action", event.Action, "error", err)
		return key
	}
	s.c.metrics.ObserveCache(ok)
	if ok {
		if rows, isRows := v.([]types.Row); isRows && rows == nil {
			v = []types.Row{}
		}
		event.Cached = true
		event.Result = v
	}
	return key
}

// wrote records a successful mutation. Outside a transaction the cache is
// invalidated at once; inside one, at commit.
func (s *session) wrote(ctx context.Context, c *cache.Cache) {
	if s.tx != nil {
		s.tx.wrote.Store(true)
		return
	}
	if c == nil {
		return
	}
	if err := c.Invalidate(ctx); err != nil {
		logger.Warn("Cache invalidation failed", "error", err)
	}
}

// fail reports an operation that was cut short by the transaction timeout
// as a timeout rather than as the driver error it surfaced as.
func (s *session) fail(err error, model string) error {
	if s.tx != nil && s.tx.expired() {
		return s.tx.timeoutError().WithModel(model).WithCause(err)
	}
	return types.Wrap(err, model)
}

func (s *session) log(event *QueryEvent, err error) {
	if err != nil {
		kv := []any{"model", event.Model, "action", event.Action, "error", err}
		if event.TxID != "" {
			kv = append(kv, "txId", event.TxID)
		}
		logger.Warn("Operation failed", kv...)
		return
	}
	if s.c.opts.logQueries {
		logger.Debug("Operation",
			"model", event.Model,
			"action", event.Action,
			"duration", event.Duration.Round(time.Microsecond),
			"cached", event.Cached,
			"txId", event.TxID,
		)
	}
}

// normalizeArgs turns raw into the args pointer the action expects. raw may
// be that pointer, the struct value, a map or JSON.
func normalizeArgs(action types.Action, raw any) (any, error) {
	want := action.NewArgs()
	if raw == nil {
		return want, nil
	}
	rv := reflect.ValueOf(raw)
	wt := reflect.TypeOf(want)
	switch {
	case rv.Type() == wt:
		if rv.IsNil() {
			return want, nil
		}
		return raw, nil
	case rv.Type() == wt.Elem():
		p := reflect.New(wt.Elem())
		p.Elem().Set(rv)
		return p.Interface(), nil
	}
	if err := types.Convert(raw, want); err != nil {
		return nil, err
	}
	return want, nil
}

// dispatch runs one action. Missing single rows are returned as a nil
// interface.
func dispatch(ctx context.Context, e *executor.Executor, model string, action types.Action, args any) (any, error) {
	switch action {
	case types.FindUnique:
		return row(e.FindUnique(ctx, model, *args.(*types.FindUniqueArgs)))
	case types.FindUniqueOrThrow:
		return row(e.FindUniqueOrThrow(ctx, model, *args.(*types.FindUniqueArgs)))
	case types.FindFirst:
		return row(e.FindFirst(ctx, model, *args.(*types.FindArgs)))
	case types.FindFirstOrThrow:
		return row(e.FindFirstOrThrow(ctx, model, *args.(*types.FindArgs)))
	case types.FindMany:
		return rows(e.FindMany(ctx, model, *args.(*types.FindArgs)))
	case types.Create:
		return row(e.Create(ctx, model, *args.(*types.CreateArgs)))
	case types.CreateMany:
		return e.CreateMany(ctx, model, *args.(*types.CreateManyArgs))
	case types.CreateManyAndReturn:
		return rows(e.CreateManyAndReturn(ctx, model, *args.(*types.CreateManyArgs)))
	case types.Update:
		return row(e.Update(ctx, model, *args.(*types.UpdateArgs)))
	case types.UpdateMany:
		return e.UpdateMany(ctx, model, *args.(*types.UpdateManyArgs))
	case types.UpdateManyAndReturn:
		return rows(e.UpdateManyAndReturn(ctx, model, *args.(*types.UpdateManyArgs)))
	case types.Upsert:
		return row(e.Upsert(ctx, model, *args.(*types.UpsertArgs)))
	case types.Delete:
		return row(e.Delete(ctx, model, *args.(*types.DeleteArgs)))
	case types.DeleteMany:
		return e.DeleteMany(ctx, model, *args.(*types.DeleteManyArgs))
	case types.Count:
		return e.Count(ctx, model, *args.(*types.CountArgs))
	case types.Aggregate:
		return e.Aggregate(ctx, model, *args.(*types.AggregateArgs))
	case types.GroupBy:
		return rows(e.GroupBy(ctx, model, *args.(*types.GroupByArgs)))
	}
	return nil, errors.New("unreachable action " + string(action))
}

func row(r types.Row, err error) (any, error) {
	if err != nil || r == nil {
		return nil, err
	}
	return r, nil
}

func rows(r []types.Row, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	if r == nil {
		r = []types.Row{}
	}
	return r, nil
}
