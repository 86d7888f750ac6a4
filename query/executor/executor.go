// Package executor runs model operations against a SQL database. Reads honour
// ordering, cursor and offset pagination and distinct; include and select
// trees are resolved by batched relation loads; writes apply nested relation
// operations inside one transaction.
package executor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/satishbabariya/commerce-client/internal/logger"
	"github.com/satishbabariya/commerce-client/query/compiler"
	"github.com/satishbabariya/commerce-client/query/dialect"
	"github.com/satishbabariya/commerce-client/query/sqlgen"
	"github.com/satishbabariya/commerce-client/runtime/types"
	"github.com/satishbabariya/commerce-client/schema"
)

// Querier is the subset of *sql.DB and *sql.Tx the executor needs.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Executor executes queries and maps results
type Executor struct {
	reg *schema.Registry
	d   dialect.Dialect
	gen *sqlgen.Generator
	db  *sql.DB
	tx  *sql.Tx
	q   Querier

	// savepoints numbers the savepoints of the current transaction.
	savepoints *atomic.Int64
}

// New creates an executor over db.
func New(db *sql.DB, d dialect.Dialect, reg *schema.Registry) *Executor {
	return &Executor{
		reg: reg,
		d:   d,
		gen: sqlgen.NewGenerator(d),
		db:  db,
		q:   db,
	}
}

// WithTx returns an executor that runs every statement on tx.
func (e *Executor) WithTx(tx *sql.Tx) *Executor {
	return &Executor{
		reg:        e.reg,
		d:          e.d,
		gen:        e.gen,
		db:         e.db,
		tx:         tx,
		q:          tx,
		savepoints: new(atomic.Int64),
	}
}

// Begin starts a transaction on the pool. Bind it with WithTx.
func (e *Executor) Begin(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	return e.db.BeginTx(ctx, opts)
}

// InTx reports whether the executor is bound to a transaction.
func (e *Executor) InTx() bool {
	return e.tx != nil
}

// Dialect returns the executor's dialect.
func (e *Executor) Dialect() dialect.Dialect {
	return e.d
}

// Registry returns the schema the executor validates against.
func (e *Executor) Registry() *schema.Registry {
	return e.reg
}

func (e *Executor) model(name string) (*schema.Model, error) {
	return e.reg.DescribeModel(name)
}

func (e *Executor) scope() *compiler.Scope {
	return compiler.NewScope(e.reg)
}

// atomic runs fn in the current transaction, or in a new one when the
// executor is not bound to a transaction.
func (e *Executor) atomic(ctx context.Context, fn func(tx *Executor) error) error {
	if e.tx != nil {
		return fn(e)
	}

	sqlTx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return e.classify(fmt.Errorf("failed to begin transaction: %w", err), "")
	}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()

	if err := fn(e.WithTx(sqlTx)); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			logger.Warn("rollback failed", "error", rbErr)
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return e.classify(fmt.Errorf("failed to commit transaction: %w", err), "")
	}
	return nil
}

// savepoint runs fn inside a savepoint of the current transaction, rolling
// back to it when fn fails. The transaction itself stays usable.
func (e *Executor) savepoint(ctx context.Context, fn func() error) error {
	name := fmt.Sprintf("sp_%d", e.savepoints.Add(1))

	if _, err := e.q.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return e.classify(fmt.Errorf("failed to create savepoint: %w", err), "")
	}

	defer func() {
		if p := recover(); p != nil {
			_, _ = e.q.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name)
			panic(p)
		}
	}()

	if err := fn(); err != nil {
		if _, rbErr := e.q.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			return fmt.Errorf("savepoint error: %v, rollback error: %w", err, rbErr)
		}
		return err
	}
	if _, err := e.q.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return e.classify(fmt.Errorf("failed to release savepoint: %w", err), "")
	}
	return nil
}

func (e *Executor) query(ctx context.Context, model string, q *sqlgen.Query) (*sql.Rows, error) {
	start := time.Now()
	rows, err := e.q.QueryContext(ctx, q.SQL, q.Args...)
	e.trace(model, q, start, err)
	if err != nil {
		return nil, e.classify(err, model)
	}
	return rows, nil
}

func (e *Executor) exec(ctx context.Context, model string, q *sqlgen.Query) (sql.Result, error) {
	start := time.Now()
	res, err := e.q.ExecContext(ctx, q.SQL, q.Args...)
	e.trace(model, q, start, err)
	if err != nil {
		return nil, e.classify(err, model)
	}
	return res, nil
}

func (e *Executor) trace(model string, q *sqlgen.Query, start time.Time, err error) {
	if !logger.DebugEnabled() {
		return
	}
	kv := []any{"model", model, "sql", q.SQL, "args", q.Args, "duration", time.Since(start), "tx", e.tx != nil}
	if err != nil {
		kv = append(kv, "error", err)
	}
	logger.Debug("statement", kv...)
}

// classify turns driver errors into types errors.
func (e *Executor) classify(err error, model string) error {
	if err == nil {
		return nil
	}
	var te *types.Error
	if errors.As(err, &te) {
		if te.Model == "" {
			te.Model = model
		}
		return err
	}
	if classified := e.d.Classify(err); classified != nil {
		return types.Wrap(classified, model)
	}
	return types.Wrap(err, model)
}
