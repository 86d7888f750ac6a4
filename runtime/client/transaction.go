package client

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/satishbabariya/commerce-client/internal/logger"
	"github.com/satishbabariya/commerce-client/query/executor"
	"github.com/satishbabariya/commerce-client/runtime/types"
)

// Transaction defaults applied when neither the client nor the call sets them.
const (
	DefaultMaxWait = 2 * time.Second
	DefaultTimeout = 5 * time.Second
)

// IsolationLevel represents transaction isolation levels. The zero value
// leaves the choice to the database.
type IsolationLevel int

const (
	DefaultIsolation IsolationLevel = iota
	// ReadUncommitted allows dirty reads
	ReadUncommitted
	// ReadCommitted prevents dirty reads
	ReadCommitted
	// RepeatableRead prevents dirty reads and non-repeatable reads
	RepeatableRead
	// Serializable prevents dirty reads, non-repeatable reads, and phantom reads
	Serializable
)

var isolationNames = map[IsolationLevel]string{
	DefaultIsolation: "",
	ReadUncommitted:  "ReadUncommitted",
	ReadCommitted:    "ReadCommitted",
	RepeatableRead:   "RepeatableRead",
	Serializable:     "Serializable",
}

func (level IsolationLevel) String() string {
	return isolationNames[level]
}

// ParseIsolationLevel accepts the level names case-insensitively. An empty
// name is DefaultIsolation.
func ParseIsolationLevel(name string) (IsolationLevel, error) {
	for level, n := range isolationNames {
		if strings.EqualFold(n, name) {
			return level, nil
		}
	}
	return DefaultIsolation, types.NewError(types.ErrInvalidArgument, "unknown isolation level %q", name)
}

// ToSQLIsolationLevel converts IsolationLevel to sql.IsolationLevel
func (level IsolationLevel) ToSQLIsolationLevel() sql.IsolationLevel {
	switch level {
	case ReadUncommitted:
		return sql.LevelReadUncommitted
	case ReadCommitted:
		return sql.LevelReadCommitted
	case RepeatableRead:
		return sql.LevelRepeatableRead
	case Serializable:
		return sql.LevelSerializable
	default:
		return sql.LevelDefault
	}
}

// TxOptions configures one transaction. Zero durations fall back to the
// client defaults.
type TxOptions struct {
	IsolationLevel IsolationLevel
	// MaxWait bounds the time spent acquiring a connection and starting
	// the transaction.
	MaxWait time.Duration
	// Timeout bounds the time between start and commit.
	Timeout time.Duration
}

// TxOption overrides one transaction option.
type TxOption func(*TxOptions)

// WithIsolationLevel sets the isolation level.
func WithIsolationLevel(level IsolationLevel) TxOption {
	return func(o *TxOptions) { o.IsolationLevel = level }
}

// WithMaxWait sets how long the transaction may wait to start.
func WithMaxWait(d time.Duration) TxOption {
	return func(o *TxOptions) { o.MaxWait = d }
}

// WithTimeout sets how long the transaction may run.
func WithTimeout(d time.Duration) TxOption {
	return func(o *TxOptions) { o.Timeout = d }
}

func (c *Client) txOptions(opts []TxOption) TxOptions {
	o := c.opts.tx
	for _, opt := range opts {
		opt(&o)
	}
	if o.MaxWait <= 0 {
		o.MaxWait = DefaultMaxWait
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return o
}

var errTxTimeout = errors.New("transaction timed out")

// txState is the shared state of one open transaction.
type txState struct {
	id      string
	exec    *executor.Executor
	ctx     context.Context
	timeout time.Duration
	wrote   atomic.Bool
	closed  atomic.Bool
}

func (t *txState) expired() bool {
	return errors.Is(context.Cause(t.ctx), errTxTimeout)
}

func (t *txState) timeoutError() *types.Error {
	return types.NewError(types.ErrTransactionTimeout,
		"transaction exceeded its timeout of %v", t.timeout).WithMeta("txId", t.id)
}

func (t *txState) usable() error {
	if t.expired() {
		return t.timeoutError()
	}
	if t.closed.Load() {
		return types.NewError(types.ErrInvalidArgument,
			"transaction %s is already closed", t.id).WithMeta("txId", t.id)
	}
	return nil
}

// bind derives an operation context that is also cancelled when the
// transaction times out.
func (t *txState) bind(ctx context.Context) (context.Context, func()) {
	opCtx, cancel := context.WithCancelCause(ctx)
	stop := context.AfterFunc(t.ctx, func() { cancel(context.Cause(t.ctx)) })
	return opCtx, func() {
		stop()
		cancel(nil)
	}
}

// Tx is the handle passed to an interactive transaction. Every operation
// issued through it runs on the transaction's connection, in order.
type Tx struct {
	Models

	state *txState
}

// ID returns the transaction id used in logs and errors.
func (tx *Tx) ID() string {
	return tx.state.id
}

// InteractiveTransaction runs fn inside one database transaction. The
// transaction commits when fn returns nil and rolls back when fn returns
// an error or panics, when it cannot start within MaxWait, or when it is
// still running after Timeout.
func (c *Client) InteractiveTransaction(ctx context.Context, fn func(tx *Tx) error, opts ...TxOption) error {
	return c.transaction(ctx, "interactive", c.txOptions(opts), fn)
}

// Transact is InteractiveTransaction for callbacks that produce a value.
func Transact[T any](ctx context.Context, c *Client, fn func(tx *Tx) (T, error), opts ...TxOption) (T, error) {
	var out T
	err := c.InteractiveTransaction(ctx, func(tx *Tx) error {
		v, err := fn(tx)
		if err != nil {
			return err
		}
		out = v
		return nil
	}, opts...)
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// Transaction runs ops in order inside one database transaction and
// returns their results in the same order. Either every operation is
// applied or none is.
func (c *Client) Transaction(ctx context.Context, ops []Operation, opts ...TxOption) ([]any, error) {
	results := make([]any, len(ops))
	err := c.transaction(ctx, "batch", c.txOptions(opts), func(tx *Tx) error {
		for i, op := range ops {
			res, err := tx.Execute(ctx, op)
			if err != nil {
				return err
			}
			results[i] = res
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (c *Client) transaction(ctx context.Context, kind string, o TxOptions, fn func(tx *Tx) error) error {
	exec, cache, err := c.connection()
	if err != nil {
		return err
	}

	id := uuid.NewString()
	txCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	sqlTx, err := begin(txCtx, exec, &sql.TxOptions{Isolation: o.IsolationLevel.ToSQLIsolationLevel()}, o.MaxWait)
	if err != nil {
		cancel(err)
		outcome := "rollback"
		var te *types.Error
		if errors.As(err, &te) && errors.Is(te.Kind, types.ErrTransactionMaxWait) {
			outcome = "max_wait"
			te.WithMeta("txId", id)
		}
		c.metrics.ObserveTransaction(kind, outcome)
		logger.Warn("Transaction failed to start", "txId", id, "error", err)
		return err
	}

	state := &txState{id: id, exec: exec.WithTx(sqlTx), ctx: txCtx, timeout: o.Timeout}
	timer := time.AfterFunc(o.Timeout, func() { cancel(errTxTimeout) })
	defer timer.Stop()

	logger.Debug("Transaction started", "txId", id, "kind", kind, "isolation", o.IsolationLevel.String())

	defer func() {
		state.closed.Store(true)
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			c.metrics.ObserveTransaction(kind, "rollback")
			panic(p)
		}
	}()

	fnErr := fn(&Tx{Models: Models{s: &session{c: c, tx: state}}, state: state})
	timer.Stop()

	switch {
	case state.expired():
		_ = sqlTx.Rollback()
		c.metrics.ObserveTransaction(kind, "timeout")
		err := state.timeoutError()
		if fnErr != nil {
			err = err.WithCause(fnErr)
		}
		logger.Warn("Transaction timed out", "txId", id, "timeout", o.Timeout)
		return err
	case fnErr != nil:
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			logger.Warn("Rollback failed", "txId", id, "error", rbErr)
		}
		c.metrics.ObserveTransaction(kind, "rollback")
		logger.Debug("Transaction rolled back", "txId", id, "error", fnErr)
		return fnErr
	}

	if err := sqlTx.Commit(); err != nil {
		if state.expired() {
			c.metrics.ObserveTransaction(kind, "timeout")
			return state.timeoutError().WithCause(err)
		}
		c.metrics.ObserveTransaction(kind, "rollback")
		return c.classify(fmt.Errorf("failed to commit transaction: %w", err))
	}
	c.metrics.ObserveTransaction(kind, "commit")
	logger.Debug("Transaction committed", "txId", id)

	if state.wrote.Load() && cache != nil {
		if err := cache.Invalidate(ctx); err != nil {
			logger.Warn("Cache invalidation failed", "txId", id, "error", err)
		}
	}
	return nil
}

// begin starts a transaction, giving up after maxWait. A transaction that
// starts after the caller gave up is rolled back.
func begin(ctx context.Context, exec *executor.Executor, opts *sql.TxOptions, maxWait time.Duration) (*sql.Tx, error) {
	type started struct {
		tx  *sql.Tx
		err error
	}
	done := make(chan started, 1)
	go func() {
		tx, err := exec.Begin(ctx, opts)
		done <- started{tx, err}
	}()

	wait := time.NewTimer(maxWait)
	defer wait.Stop()

	select {
	case s := <-done:
		if s.err != nil {
			return nil, types.Wrap(fmt.Errorf("failed to begin transaction: %w", s.err), "")
		}
		return s.tx, nil
	case <-wait.C:
		go func() {
			if s := <-done; s.tx != nil {
				_ = s.tx.Rollback()
			}
		}()
		return nil, types.NewError(types.ErrTransactionMaxWait,
			"could not start a transaction within %v", maxWait)
	}
}

func (c *Client) classify(err error) error {
	if classified := c.d.Classify(err); classified != nil {
		return types.Wrap(classified, "")
	}
	return types.Wrap(err, "")
}
