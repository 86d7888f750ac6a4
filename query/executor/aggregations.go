package executor

import (
	"context"
	"strconv"
	"strings"

	"github.com/satishbabariya/commerce-client/query/compiler"
	"github.com/satishbabariya/commerce-client/query/sqlgen"
	"github.com/satishbabariya/commerce-client/runtime/types"
	"github.com/satishbabariya/commerce-client/schema"
)

// aggregateKeys maps the argument keys to SQL functions, in output order.
var aggregateKeys = []struct {
	key string
	fn  string
}{
	{"_count", "COUNT"},
	{"_avg", "AVG"},
	{"_sum", "SUM"},
	{"_min", "MIN"},
	{"_max", "MAX"},
}

func aggregateFunc(key string) (string, bool) {
	for _, k := range aggregateKeys {
		if k.key == key {
			return k.fn, true
		}
	}
	return "", false
}

// aggregate is one requested aggregate value.
type aggregate struct {
	key    string // _count, _avg, ...
	field  string // field name, or _all for COUNT(*)
	fn     string
	alias  string
	result *schema.Field // decoded as this type
}

// resultField returns the type an aggregate of f decodes to.
func resultField(fn string, f *schema.Field) *schema.Field {
	out := &schema.Field{Name: f.Name, Type: f.Type, Nullable: true}
	switch fn {
	case "COUNT":
		out.Type, out.Nullable = schema.Int, false
	case "AVG":
		if f.Type != schema.Decimal {
			out.Type = schema.Float
		}
	}
	return out
}

// checkAggregate validates that fn may be applied to field of m.
func checkAggregate(m *schema.Model, key, fn, field string) (*schema.Field, error) {
	f, ok := m.Field(field)
	if !ok {
		return nil, types.Errorf(types.ErrInvalidAggregateField, m.Name, "unknown field %q in %s", field, key).WithField(field)
	}
	switch fn {
	case "AVG", "SUM":
		if !f.Type.Numeric() {
			return nil, types.Errorf(types.ErrInvalidAggregateField, m.Name, "%s requires a numeric field, %s is %s", key, field, f.Type).WithField(field)
		}
	case "MIN", "MAX":
		if f.Type == schema.Boolean {
			return nil, types.Errorf(types.ErrInvalidAggregateField, m.Name, "%s is not supported on Boolean field %s", key, field).WithField(field)
		}
	}
	return f, nil
}

// aggregates validates the requested aggregate selections.
func aggregates(m *schema.Model, count, avg, sum, minSel, maxSel types.AggregateSelect) ([]aggregate, error) {
	selections := map[string]types.AggregateSelect{"_count": count, "_avg": avg, "_sum": sum, "_min": minSel, "_max": maxSel}

	var out []aggregate
	for _, k := range aggregateKeys {
		for _, field := range sortedKeys(selections[k.key]) {
			if !selections[k.key][field] {
				continue
			}
			agg := aggregate{key: k.key, field: field, fn: k.fn}
			if k.key == "_count" && field == "_all" {
				agg.field = "*"
				agg.result = &schema.Field{Name: "_all", Type: schema.Int}
			} else {
				f, err := checkAggregate(m, k.key, k.fn, field)
				if err != nil {
					return nil, err
				}
				agg.result = resultField(k.fn, f)
			}
			agg.alias = "a" + strconv.Itoa(len(out))
			out = append(out, agg)
		}
	}
	return out, nil
}

func sqlFunctions(aggs []aggregate) []sqlgen.AggregateFunction {
	out := make([]sqlgen.AggregateFunction, len(aggs))
	for i, a := range aggs {
		out[i] = sqlgen.AggregateFunction{Function: a.fn, Field: a.field, Alias: a.alias}
	}
	return out
}

// decodeAggregates stores the aggregate values of raw under their keys.
func decodeAggregates(model string, aggs []aggregate, raw []any, into map[string]any) error {
	for i, a := range aggs {
		v, err := compiler.Coerce(model, a.result, raw[i])
		if err != nil {
			return types.Errorf(types.ErrEngine, model, "failed to decode %s(%s)", a.fn, a.field).WithCause(err)
		}
		if a.fn == "COUNT" && v == nil {
			v = int64(0)
		}
		group, _ := into[a.key].(map[string]any)
		if group == nil {
			group = make(map[string]any)
			into[a.key] = group
		}
		name := a.field
		if name == "*" {
			name = "_all"
		}
		group[name] = v
	}
	return nil
}

// Aggregate computes _count, _avg, _sum, _min and _max over the rows
// matching args. Ordering, cursor, skip and take select the rows first.
func (e *Executor) Aggregate(ctx context.Context, model string, args types.AggregateArgs) (types.AggregateResult, error) {
	m, err := e.model(model)
	if err != nil {
		return nil, err
	}
	aggs, err := aggregates(m, args.Count, args.Avg, args.Sum, args.Min, args.Max)
	if err != nil {
		return nil, err
	}
	result := types.AggregateResult{}
	if len(aggs) == 0 {
		return result, nil
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
		return nil, err
	}

	agg := sqlgen.Aggregate{Table: m.Name, Alias: p.sel.Alias, Where: p.sel.Where, Functions: sqlFunctions(aggs)}
	switch {
	case p.empty:
		agg.Where = sqlgen.NewWhereClause()
		agg.Where.AddCondition(sqlgen.Condition{Operator: "FALSE"})
	case p.memory:
		// Window in memory, then aggregate over the kept keys.
		rows, err := e.run(ctx, m, p)
		if err != nil {
			return nil, err
		}
		pk := m.PrimaryKey().Name
		agg.Where = sqlgen.NewWhereClause()
		agg.Where.AddCondition(sqlgen.Condition{Table: p.sel.Alias, Field: pk, Operator: "IN", Value: distinctValues(rows, pk)})
	case p.sel.Limit != nil || p.sel.Offset != nil:
		source := p.sel
		agg = sqlgen.Aggregate{Alias: scope.Alias(), Source: &source, Functions: sqlFunctions(aggs)}
	}

	rows, err := e.query(ctx, m.Name, e.gen.Aggregate(agg))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]any)
	if rows.Next() {
		raw, err := scanValues(rows, len(aggs))
		if err != nil {
			return nil, err
		}
		if err := decodeAggregates(m.Name, aggs, raw, out); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, e.classify(err, m.Name)
	}
	for key, v := range out {
		result[key] = v.(map[string]any)
	}
	return result, nil
}

// GroupBy groups the rows matching args by the fields in args.By and
// computes the requested aggregates per group. having filters groups on
// by-fields or on aggregates of any field; orderBy may only use by-fields
// and aggregates.
func (e *Executor) GroupBy(ctx context.Context, model string, args types.GroupByArgs) ([]types.Row, error) {
	m, err := e.model(model)
	if err != nil {
		return nil, err
	}
	if len(args.By) == 0 {
		return nil, types.Errorf(types.ErrInvalidGroupBy, m.Name, "by must list at least one field")
	}
	by := make(map[string]*schema.Field, len(args.By))
	for _, name := range args.By {
		f, ok := m.Field(name)
		if !ok {
			return nil, types.Errorf(types.ErrInvalidGroupBy, m.Name, "cannot group by %q: not a scalar field", name).WithField(name)
		}
		by[name] = f
	}
	aggs, err := aggregates(m, args.Count, args.Avg, args.Sum, args.Min, args.Max)
	if err != nil {
		return nil, err
	}
	if args.Take != nil && *args.Take < 0 {
		return nil, types.Errorf(types.ErrInvalidArgument, m.Name, "groupBy does not support a negative take")
	}
	if args.Skip != nil && *args.Skip < 0 {
		return nil, types.Errorf(types.ErrInvalidArgument, m.Name, "skip must not be negative, got %d", *args.Skip)
	}

	scope := e.scope()
	alias := scope.Alias()
	where, err := scope.Where(m, alias, args.Where)
	if err != nil {
		return nil, err
	}
	having, err := e.having(scope, m, alias, by, args.Having)
	if err != nil {
		return nil, err
	}
	orderBy, err := groupOrder(m, alias, args.By, by, args.OrderBy)
	if err != nil {
		return nil, err
	}

	agg := sqlgen.Aggregate{
		Table:     m.Name,
		Alias:     alias,
		Functions: sqlFunctions(aggs),
		GroupBy:   args.By,
		Where:     where,
		Having:    having,
		OrderBy:   orderBy,
		Limit:     args.Take,
		Offset:    args.Skip,
	}
	rows, err := e.query(ctx, m.Name, e.gen.Aggregate(agg))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []types.Row{}
	for rows.Next() {
		raw, err := scanValues(rows, len(args.By)+len(aggs))
		if err != nil {
			return nil, err
		}
		row := make(types.Row, len(args.By)+len(aggs))
		for i, name := range args.By {
			v, err := compiler.Coerce(m.Name, by[name], raw[i])
			if err != nil {
				return nil, types.Errorf(types.ErrEngine, m.Name, "failed to decode %q", name).WithCause(err)
			}
			row[name] = v
		}
		if err := decodeAggregates(m.Name, aggs, raw[len(args.By):], row); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, e.classify(rows.Err(), m.Name)
}

// having compiles a groupBy having filter. Each field holds plain filters,
// allowed only on by-fields, and aggregate filters such as
// {"_avg": {"gt": 10}}, allowed on any scalar field.
func (e *Executor) having(scope *compiler.Scope, m *schema.Model, alias string, by map[string]*schema.Field, having types.Where) (*sqlgen.WhereClause, error) {
	clause := sqlgen.NewWhereClause()
	for _, key := range sortedKeys(having) {
		value := having[key]
		switch key {
		case "AND", "OR", "NOT":
			items, ok := types.AsList(value)
			if !ok {
				obj, isObj := types.AsMap(value)
				if !isObj {
					return nil, types.Errorf(types.ErrInvalidArgument, m.Name, "having %s expects an object or a list", key)
				}
				items = []any{obj}
			}
			group := sqlgen.NewWhereClause()
			if key == "OR" {
				group.Operator = "OR"
			}
			for _, item := range items {
				obj, ok := types.AsMap(item)
				if !ok {
					return nil, types.Errorf(types.ErrInvalidArgument, m.Name, "having %s expects objects", key)
				}
				inner, err := e.having(scope, m, alias, by, obj)
				if err != nil {
					return nil, err
				}
				if key == "NOT" {
					inner = sqlgen.Not(inner)
				}
				group.AddGroup(inner)
			}
			clause.AddGroup(group)
			continue
		}

		f, ok := m.Field(key)
		if !ok {
			return nil, types.Errorf(types.ErrInvalidGroupBy, m.Name, "having references unknown field %q", key).WithField(key)
		}

		filter, isObj := types.AsMap(value)
		plain := make(map[string]any)
		if isObj {
			for op, arg := range filter {
				fn, isAgg := aggregateFunc(op)
				if !isAgg {
					plain[op] = arg
					continue
				}
				if _, err := checkAggregate(m, op, fn, key); err != nil {
					return nil, err
				}
				inner, err := scope.FieldFilter(m, resultField(fn, f), alias, arg)
				if err != nil {
					return nil, err
				}
				applyFunc(inner, fn)
				clause.AddGroup(inner)
			}
		}
		if isObj && len(plain) == 0 {
			continue
		}
		if _, grouped := by[key]; !grouped {
			return nil, types.Errorf(types.ErrInvalidGroupBy, m.Name, "having on %q requires it in by, or an aggregate filter", key).WithField(key)
		}
		var arg any = value
		if isObj {
			arg = plain
		}
		inner, err := scope.FieldFilter(m, f, alias, arg)
		if err != nil {
			return nil, err
		}
		clause.AddGroup(inner)
	}
	return clause, nil
}

// applyFunc wraps every column of clause in fn.
func applyFunc(clause *sqlgen.WhereClause, fn string) {
	for i := range clause.Conditions {
		clause.Conditions[i].Func = fn
	}
	for _, g := range clause.Groups {
		applyFunc(g, fn)
	}
}

// groupOrder validates a groupBy ordering: by-fields, or aggregates as
// {"_avg": {"price": "desc"}}. The by-fields follow as tie-breakers.
func groupOrder(m *schema.Model, alias string, byList []string, by map[string]*schema.Field, list types.OrderByList) ([]sqlgen.OrderBy, error) {
	var out []sqlgen.OrderBy
	seen := make(map[string]bool)
	dir := func(desc bool) string {
		if desc {
			return "DESC"
		}
		return "ASC"
	}

	for _, entry := range list {
		for _, key := range sortedKeys(entry) {
			v := entry[key]
			if fn, isAgg := aggregateFunc(key); isAgg {
				fields, ok := types.AsMap(v)
				if !ok {
					return nil, types.Errorf(types.ErrInvalidGroupBy, m.Name, "orderBy %s expects {field: direction}", key)
				}
				for _, field := range sortedKeys(fields) {
					if fn == "COUNT" && field == "_all" {
						desc, err := compiler.Direction(m.Name, field, fields[field])
						if err != nil {
							return nil, err
						}
						out = append(out, sqlgen.OrderBy{Field: "*", Func: fn, Direction: dir(desc)})
						continue
					}
					if _, err := checkAggregate(m, key, fn, field); err != nil {
						return nil, types.Errorf(types.ErrInvalidGroupBy, m.Name, "cannot order by %s(%s)", strings.ToLower(fn), field).WithField(field).WithCause(err)
					}
					desc, err := compiler.Direction(m.Name, field, fields[field])
					if err != nil {
						return nil, err
					}
					out = append(out, sqlgen.OrderBy{Table: alias, Field: field, Func: fn, Direction: dir(desc)})
				}
				continue
			}

			if _, grouped := by[key]; !grouped {
				return nil, types.Errorf(types.ErrInvalidGroupBy, m.Name, "orderBy %q must be one of by %v or an aggregate", key, byList).WithField(key)
			}
			desc, err := compiler.Direction(m.Name, key, v)
			if err != nil {
				return nil, err
			}
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, sqlgen.OrderBy{Table: alias, Field: key, Direction: dir(desc)})
		}
	}
	for _, name := range byList {
		if !seen[name] {
			out = append(out, sqlgen.OrderBy{Table: alias, Field: name, Direction: "ASC"})
		}
	}
	return out, nil
}

// countValue decodes a COUNT result.
func countValue(model string, raw any) (int64, error) {
	v, err := compiler.Coerce(model, &schema.Field{Name: "_count", Type: schema.Int}, raw)
	if err != nil {
		return 0, types.Errorf(types.ErrEngine, model, "failed to decode count").WithCause(err)
	}
	if v == nil {
		return 0, nil
	}
	return v.(int64), nil
}
