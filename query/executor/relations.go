package executor

import (
	"context"

	"github.com/satishbabariya/commerce-client/query/compiler"
	"github.com/satishbabariya/commerce-client/query/sqlgen"
	"github.com/satishbabariya/commerce-client/runtime/types"
	"github.com/satishbabariya/commerce-client/schema"
)

// batchSize bounds the number of keys bound in one IN list.
const batchSize = 500

// hydrate projects rows through sel and attaches the selected relations and
// relation counts. Relations are loaded with one query per relation and
// batch of parents, never one per parent row.
func (e *Executor) hydrate(ctx context.Context, sel *selection, rows []types.Row) ([]types.Row, error) {
	out := make([]types.Row, len(rows))
	for i, row := range rows {
		out[i] = sel.project(row)
	}
	if len(rows) == 0 || sel.plain() {
		return out, nil
	}

	for _, rs := range sel.relations {
		var err error
		if rs.rel.ToMany {
			err = e.loadMany(ctx, rs, rows, out)
		} else {
			err = e.loadOne(ctx, rs, rows, out)
		}
		if err != nil {
			return nil, err
		}
	}
	if len(sel.counts) > 0 {
		if err := e.loadCounts(ctx, sel, rows, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// loadMany attaches a to-many relation. Children are fetched for all parents
// at once in the relation's order, then windowed per parent.
func (e *Executor) loadMany(ctx context.Context, rs *relationSelection, parents, out []types.Row) error {
	target, err := e.model(rs.rel.Target)
	if err != nil {
		return err
	}
	orders, err := compiler.OrderBy(target, rs.args.OrderBy)
	if err != nil {
		return err
	}
	var cursor map[string]any
	if len(rs.args.Cursor) > 0 {
		key, err := compiler.RequireUnique(target, rs.args.Cursor)
		if err != nil {
			return err
		}
		if cursor, err = compiler.UniqueValues(target, key, rs.args.Cursor); err != nil {
			return err
		}
	}
	skip := 0
	if rs.args.Skip != nil {
		if *rs.args.Skip < 0 {
			return types.Errorf(types.ErrInvalidArgument, target.Name, "skip must not be negative, got %d", *rs.args.Skip)
		}
		skip = *rs.args.Skip
	}
	for _, name := range rs.args.Distinct {
		if _, ok := target.Field(name); !ok {
			return types.Errorf(types.ErrInvalidFilterField, target.Name, "unknown distinct field %q", name).WithField(name)
		}
	}

	keys := distinctValues(parents, rs.rel.LocalField)
	children, err := e.relatedRows(ctx, target, rs.rel.ForeignField, keys, rs.args.Where, orders)
	if err != nil {
		return err
	}

	byParent := make(map[string][]types.Row)
	for _, child := range children {
		k := valueKey(child[rs.rel.ForeignField])
		byParent[k] = append(byParent[k], child)
	}

	// Window per parent, then hydrate the kept children in one pass.
	var kept []types.Row
	var owner []int
	for i, parent := range parents {
		list := window(byParent[valueKey(parent[rs.rel.LocalField])], rs.args.Distinct, cursor, skip, rs.args.Take)
		for _, child := range list {
			kept = append(kept, child)
			owner = append(owner, i)
		}
	}
	hydrated, err := e.hydrate(ctx, rs.sel, kept)
	if err != nil {
		return err
	}

	for i := range out {
		out[i][rs.rel.Name] = []types.Row{}
	}
	for j, child := range hydrated {
		i := owner[j]
		out[i][rs.rel.Name] = append(out[i][rs.rel.Name].([]types.Row), child)
	}
	return nil
}

// loadOne attaches a to-one relation. A required relation whose target row
// is missing is a broken foreign key, not an empty result.
func (e *Executor) loadOne(ctx context.Context, rs *relationSelection, parents, out []types.Row) error {
	target, err := e.model(rs.rel.Target)
	if err != nil {
		return err
	}
	keys := distinctValues(parents, rs.rel.LocalField)
	targets, err := e.relatedRows(ctx, target, rs.rel.ForeignField, keys, nil, nil)
	if err != nil {
		return err
	}
	hydrated, err := e.hydrate(ctx, rs.sel, targets)
	if err != nil {
		return err
	}
	byKey := make(map[string]types.Row, len(targets))
	for i, t := range targets {
		byKey[valueKey(t[rs.rel.ForeignField])] = hydrated[i]
	}

	for i, parent := range parents {
		fk := parent[rs.rel.LocalField]
		if fk == nil {
			out[i][rs.rel.Name] = nil
			continue
		}
		related, ok := byKey[valueKey(fk)]
		if !ok {
			if rs.rel.Optional {
				out[i][rs.rel.Name] = nil
				continue
			}
			return types.Errorf(types.ErrForeignKeyConstraint, rs.rel.Model,
				"broken relation %s: no %s with %s = %v", rs.rel.Name, target.Name, rs.rel.ForeignField, fk).
				WithField(rs.rel.LocalField)
		}
		out[i][rs.rel.Name] = related
	}
	return nil
}

// relatedRows loads the rows of target whose column is one of keys, also
// matching where, in the given order.
func (e *Executor) relatedRows(ctx context.Context, target *schema.Model, column string, keys []any, where types.Where, orders []compiler.Order) ([]types.Row, error) {
	var out []types.Row
	for start := 0; start < len(keys); start += batchSize {
		end := min(start+batchSize, len(keys))

		scope := e.scope()
		alias := scope.Alias()
		clause, err := scope.Where(target, alias, where)
		if err != nil {
			return nil, err
		}
		clause.AddCondition(sqlgen.Condition{Table: alias, Field: column, Operator: "IN", Value: keys[start:end]})

		rows, err := e.selectRows(ctx, target, sqlgen.Select{
			Table:   target.Name,
			Alias:   alias,
			Columns: target.ScalarNames(),
			Where:   clause,
			OrderBy: compiler.SQLOrder(alias, orders),
		})
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	if len(keys) > batchSize && len(orders) > 0 {
		// Batches are ordered individually; restore the global order.
		sortRows(out, orders)
	}
	return out, nil
}

// loadCounts attaches _count with one grouped count per relation.
func (e *Executor) loadCounts(ctx context.Context, sel *selection, parents, out []types.Row) error {
	counts := make([]map[string]any, len(out))
	for i := range counts {
		counts[i] = make(map[string]any, len(sel.counts))
	}

	for _, cs := range sel.counts {
		target, err := e.model(cs.rel.Target)
		if err != nil {
			return err
		}
		keys := distinctValues(parents, cs.rel.LocalField)
		byKey := make(map[string]int64, len(keys))

		for start := 0; start < len(keys); start += batchSize {
			end := min(start+batchSize, len(keys))

			scope := e.scope()
			alias := scope.Alias()
			clause, err := scope.Where(target, alias, cs.where)
			if err != nil {
				return err
			}
			clause.AddCondition(sqlgen.Condition{Table: alias, Field: cs.rel.ForeignField, Operator: "IN", Value: keys[start:end]})

			q := e.gen.Aggregate(sqlgen.Aggregate{
				Table:     target.Name,
				Alias:     alias,
				GroupBy:   []string{cs.rel.ForeignField},
				Where:     clause,
				Functions: []sqlgen.AggregateFunction{{Function: "COUNT", Field: "*", Alias: "_count"}},
			})
			if err := e.scanGroupCounts(ctx, target, cs.rel.ForeignField, q, byKey); err != nil {
				return err
			}
		}

		for i, parent := range parents {
			counts[i][cs.rel.Name] = byKey[valueKey(parent[cs.rel.LocalField])]
		}
	}

	for i := range out {
		out[i]["_count"] = counts[i]
	}
	return nil
}

func (e *Executor) scanGroupCounts(ctx context.Context, target *schema.Model, column string, q *sqlgen.Query, into map[string]int64) error {
	rows, err := e.query(ctx, target.Name, q)
	if err != nil {
		return err
	}
	defer rows.Close()

	f, _ := target.Field(column)
	for rows.Next() {
		raw, err := scanValues(rows, 2)
		if err != nil {
			return err
		}
		key, err := compiler.Coerce(target.Name, f, raw[0])
		if err != nil {
			return err
		}
		n, err := countValue(target.Name, raw[1])
		if err != nil {
			return err
		}
		into[valueKey(key)] = n
	}
	return e.classify(rows.Err(), target.Name)
}

// distinctValues collects the non-nil values of field across rows.
func distinctValues(rows []types.Row, field string) []any {
	seen := make(map[string]bool, len(rows))
	out := make([]any, 0, len(rows))
	for _, row := range rows {
		v := row[field]
		if v == nil {
			continue
		}
		k := valueKey(v)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, v)
	}
	return out
}
