package executor

import (
	"context"
	"sort"

	"github.com/satishbabariya/commerce-client/query/compiler"
	"github.com/satishbabariya/commerce-client/query/sqlgen"
	"github.com/satishbabariya/commerce-client/runtime/types"
	"github.com/satishbabariya/commerce-client/schema"
)

// FindMany returns the rows of model matching args, ordered, paginated and
// with the selected relations loaded. It never returns a nil slice.
func (e *Executor) FindMany(ctx context.Context, model string, args types.FindArgs) ([]types.Row, error) {
	m, err := e.model(model)
	if err != nil {
		return nil, err
	}
	sel, err := newSelection(e.reg, m, args.Select, args.Include)
	if err != nil {
		return nil, err
	}
	p, err := e.planRead(ctx, m, e.scope(), args)
	if err != nil {
		return nil, err
	}
	rows, err := e.run(ctx, m, p)
	if err != nil {
		return nil, err
	}
	return e.hydrate(ctx, sel, rows)
}

// FindFirst returns the first row matching args, or nil.
func (e *Executor) FindFirst(ctx context.Context, model string, args types.FindArgs) (types.Row, error) {
	one := 1
	if args.Take != nil && *args.Take < 0 {
		one = -1
	}
	args.Take = &one

	rows, err := e.FindMany(ctx, model, args)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

// FindFirstOrThrow is FindFirst failing with ErrNotFound instead of nil.
func (e *Executor) FindFirstOrThrow(ctx context.Context, model string, args types.FindArgs) (types.Row, error) {
	row, err := e.FindFirst(ctx, model, args)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, notFound(model, "No %s found", model)
	}
	return row, nil
}

// FindUnique returns the row identified by a unique key in args.Where, or
// nil. Other filters may be combined with the unique key.
func (e *Executor) FindUnique(ctx context.Context, model string, args types.FindUniqueArgs) (types.Row, error) {
	m, err := e.model(model)
	if err != nil {
		return nil, err
	}
	if _, err := compiler.RequireUnique(m, args.Where); err != nil {
		return nil, err
	}
	sel, err := newSelection(e.reg, m, args.Select, args.Include)
	if err != nil {
		return nil, err
	}
	row, err := e.findUniqueRow(ctx, m, args.Where)
	if err != nil || row == nil {
		return nil, err
	}
	out, err := e.hydrate(ctx, sel, []types.Row{row})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// FindUniqueOrThrow is FindUnique failing with ErrNotFound instead of nil.
func (e *Executor) FindUniqueOrThrow(ctx context.Context, model string, args types.FindUniqueArgs) (types.Row, error) {
	row, err := e.FindUnique(ctx, model, args)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, notFound(model, "No %s found", model)
	}
	return row, nil
}

// findUniqueRow loads all scalars of the row matching where. The caller has
// checked that where pins a unique key.
func (e *Executor) findUniqueRow(ctx context.Context, m *schema.Model, where types.Where) (types.Row, error) {
	scope := e.scope()
	alias := scope.Alias()
	clause, err := scope.Where(m, alias, where)
	if err != nil {
		return nil, err
	}
	one := 1
	rows, err := e.selectRows(ctx, m, sqlgen.Select{Table: m.Name, Alias: alias, Columns: m.ScalarNames(), Where: clause, Limit: &one})
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

// Count returns the number of rows matching args. Cursor, skip and take
// limit the rows counted.
func (e *Executor) Count(ctx context.Context, model string, args types.CountArgs) (int64, error) {
	m, err := e.model(model)
	if err != nil {
		return 0, err
	}
	scope := e.scope()
	p, err := e.planRead(ctx, m, scope, types.FindArgs{
		Where:   args.Where,
		OrderBy: args.OrderBy,
		Cursor:  args.Cursor,
		Take:    args.Take,
		Skip:    args.Skip,
	})
	if err != nil {
		return 0, err
	}

	countAll := []sqlgen.AggregateFunction{{Function: "COUNT", Field: "*", Alias: "_all"}}
	var agg sqlgen.Aggregate
	switch {
	case p.empty:
		return 0, nil
	case p.memory:
		rows, err := e.run(ctx, m, p)
		return int64(len(rows)), err
	case p.sel.Limit != nil || p.sel.Offset != nil:
		source := p.sel
		source.Columns = []string{m.PrimaryKey().Name}
		agg = sqlgen.Aggregate{Alias: scope.Alias(), Source: &source, Functions: countAll}
	default:
		agg = sqlgen.Aggregate{Table: m.Name, Alias: p.sel.Alias, Where: p.sel.Where, Functions: countAll}
	}

	rows, err := e.query(ctx, m.Name, e.gen.Aggregate(agg))
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var n int64
	if rows.Next() {
		raw, err := scanValues(rows, 1)
		if err != nil {
			return 0, err
		}
		if n, err = countValue(m.Name, raw[0]); err != nil {
			return 0, err
		}
	}
	return n, e.classify(rows.Err(), m.Name)
}

func (e *Executor) selectRows(ctx context.Context, m *schema.Model, s sqlgen.Select) ([]types.Row, error) {
	rows, err := e.query(ctx, m.Name, e.gen.Select(s))
	if err != nil {
		return nil, err
	}
	out, err := scanRows(m, rows)
	if err != nil {
		return nil, e.classify(err, m.Name)
	}
	return out, nil
}

func notFound(model, format string, args ...any) error {
	return types.Errorf(types.ErrNotFound, model, format, args...)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
