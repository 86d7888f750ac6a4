package executor

import (
	"context"

	"github.com/satishbabariya/commerce-client/query/compiler"
	"github.com/satishbabariya/commerce-client/query/sqlgen"
	"github.com/satishbabariya/commerce-client/runtime/types"
	"github.com/satishbabariya/commerce-client/schema"
)

// readPlan is a validated findMany: the SELECT to run and, when the window
// cannot be expressed in SQL, the pagination still to apply in memory.
type readPlan struct {
	sel      sqlgen.Select
	orders   []compiler.Order
	backward bool
	// empty is set when the result is known to be empty without a query.
	empty bool
	// memory is set when distinct or a cursor over nullable ordering
	// columns require windowing the fully ordered result in memory.
	memory   bool
	distinct []string
	cursor   map[string]any
	skip     int
	take     *int
}

// planRead validates args and builds the statement for m aliased by a
// fresh alias of scope. A cursor row is looked up by its unique key.
func (e *Executor) planRead(ctx context.Context, m *schema.Model, scope *compiler.Scope, args types.FindArgs) (*readPlan, error) {
	orders, err := compiler.OrderBy(m, args.OrderBy)
	if err != nil {
		return nil, err
	}

	p := &readPlan{orders: orders, take: args.Take}
	if args.Skip != nil {
		if *args.Skip < 0 {
			return nil, types.Errorf(types.ErrInvalidArgument, m.Name, "skip must not be negative, got %d", *args.Skip)
		}
		p.skip = *args.Skip
	}
	for _, name := range args.Distinct {
		if _, ok := m.Field(name); !ok {
			return nil, types.Errorf(types.ErrInvalidFilterField, m.Name, "unknown distinct field %q", name).WithField(name)
		}
	}
	p.distinct = args.Distinct

	if len(args.Cursor) > 0 {
		key, err := compiler.RequireUnique(m, args.Cursor)
		if err != nil {
			return nil, err
		}
		if p.cursor, err = compiler.UniqueValues(m, key, args.Cursor); err != nil {
			return nil, err
		}
	}

	alias := scope.Alias()
	where, err := scope.Where(m, alias, args.Where)
	if err != nil {
		return nil, err
	}
	p.sel = sqlgen.Select{Table: m.Name, Alias: alias, Columns: m.ScalarNames(), Where: where}

	if len(p.distinct) > 0 || (p.cursor != nil && compiler.Nullable(m, orders)) {
		p.memory = true
		p.sel.OrderBy = compiler.SQLOrder(alias, orders)
		return p, nil
	}

	if p.take != nil && *p.take == 0 {
		p.empty = true
		return p, nil
	}

	walk := orders
	if p.take != nil && *p.take < 0 {
		p.backward = true
		walk = compiler.Reverse(orders)
	}

	if p.cursor != nil {
		pos, err := e.cursorRow(ctx, m, p.cursor)
		if err != nil {
			return nil, err
		}
		if pos == nil {
			p.empty = true
			return p, nil
		}
		p.sel.Where = sqlgen.And(where, compiler.Keyset(alias, walk, pos))
	}

	p.sel.OrderBy = compiler.SQLOrder(alias, walk)
	if p.take != nil {
		n := *p.take
		if n < 0 {
			n = -n
		}
		p.sel.Limit = &n
	}
	if p.skip > 0 {
		skip := p.skip
		p.sel.Offset = &skip
	}
	return p, nil
}

// run executes the plan and returns rows in the requested order.
func (e *Executor) run(ctx context.Context, m *schema.Model, p *readPlan) ([]types.Row, error) {
	if p.empty {
		return nil, nil
	}
	rows, err := e.selectRows(ctx, m, p.sel)
	if err != nil {
		return nil, err
	}
	if p.memory {
		return window(rows, p.distinct, p.cursor, p.skip, p.take), nil
	}
	if p.backward {
		reverseRows(rows)
	}
	return rows, nil
}

// cursorRow loads the values of the row a cursor points at, nil if none.
func (e *Executor) cursorRow(ctx context.Context, m *schema.Model, key map[string]any) (types.Row, error) {
	alias := "c0"
	where := sqlgen.NewWhereClause()
	for _, name := range sortedKeys(key) {
		where.AddCondition(sqlgen.Condition{Table: alias, Field: name, Operator: "=", Value: key[name]})
	}
	one := 1
	rows, err := e.selectRows(ctx, m, sqlgen.Select{Table: m.Name, Alias: alias, Columns: m.ScalarNames(), Where: where, Limit: &one})
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

// window applies distinct, cursor, skip and take to rows sorted in the
// requested order. A cursor that matches no row yields nothing. A negative
// take counts backwards from the cursor, or from the end without one.
func window(rows []types.Row, distinct []string, cursor map[string]any, skip int, take *int) []types.Row {
	if len(distinct) > 0 {
		rows = distinctRows(rows, distinct)
	}

	start, end := 0, len(rows)
	backward := take != nil && *take < 0
	if cursor != nil {
		idx := indexOf(rows, cursor)
		if idx < 0 {
			return nil
		}
		if backward {
			end = idx + 1
		} else {
			start = idx
		}
	}

	if backward {
		end -= skip
		if end <= start {
			return nil
		}
		if n := -*take; end-n > start {
			start = end - n
		}
		return rows[start:end]
	}

	start += skip
	if start >= end {
		return nil
	}
	if take != nil && start+*take < end {
		end = start + *take
	}
	return rows[start:end]
}

// distinctRows keeps the first row of every combination of fields.
func distinctRows(rows []types.Row, fields []string) []types.Row {
	seen := make(map[string]bool, len(rows))
	out := make([]types.Row, 0, len(rows))
	values := make([]any, len(fields))
	for _, row := range rows {
		for i, f := range fields {
			values[i] = row[f]
		}
		key := valueKey(values...)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, row)
	}
	return out
}

func indexOf(rows []types.Row, key map[string]any) int {
	for i, row := range rows {
		match := true
		for name, v := range key {
			if !sameValue(row[name], v) {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

func reverseRows(rows []types.Row) {
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
}
