package compiler

import (
	"strings"

	"github.com/satishbabariya/commerce-client/query/sqlgen"
	"github.com/satishbabariya/commerce-client/runtime/types"
	"github.com/satishbabariya/commerce-client/schema"
)

// Order is one validated ordering entry.
type Order struct {
	Field string
	Desc  bool
}

// Direction parses "asc"/"desc" or {"sort": "asc"}.
func Direction(model, field string, v any) (bool, error) {
	if obj, ok := types.AsMap(v); ok {
		if len(obj) != 1 {
			return false, types.NewError(types.ErrInvalidArgument, "only sort is supported in an ordering object").WithModel(model).WithField(field)
		}
		v = obj["sort"]
	}
	var dir string
	switch d := v.(type) {
	case string:
		dir = d
	case types.SortOrder:
		dir = string(d)
	}
	switch strings.ToLower(dir) {
	case "asc":
		return false, nil
	case "desc":
		return true, nil
	}
	return false, types.NewError(types.ErrInvalidArgument, "invalid sort direction %v", v).WithModel(model).WithField(field)
}

// OrderBy validates an ordering list and appends the primary key as the
// final tie-breaker so results are deterministic.
func OrderBy(m *schema.Model, list types.OrderByList) ([]Order, error) {
	pk := m.PrimaryKey().Name
	out := make([]Order, 0, len(list)+1)
	seen := make(map[string]bool)

	for _, entry := range list {
		if len(entry) != 1 {
			return nil, types.NewError(types.ErrInvalidArgument, "each orderBy entry must have exactly one field").WithModel(m.Name)
		}
		for field, v := range entry {
			if _, ok := m.Field(field); !ok {
				if _, isRel := m.Relation(field); isRel {
					return nil, types.NewError(types.ErrInvalidArgument, "ordering by relation %q is not supported", field).WithModel(m.Name).WithField(field)
				}
				return nil, types.NewError(types.ErrInvalidFilterField, "unknown orderBy field %q", field).WithModel(m.Name).WithField(field)
			}
			desc, err := Direction(m.Name, field, v)
			if err != nil {
				return nil, err
			}
			if seen[field] {
				continue
			}
			seen[field] = true
			out = append(out, Order{Field: field, Desc: desc})
		}
	}
	if !seen[pk] {
		out = append(out, Order{Field: pk})
	}
	return out, nil
}

// Reverse flips every direction, used to walk backwards for negative take.
func Reverse(orders []Order) []Order {
	out := make([]Order, len(orders))
	for i, o := range orders {
		out[i] = Order{Field: o.Field, Desc: !o.Desc}
	}
	return out
}

// SQLOrder converts orders to sqlgen entries qualified by alias.
func SQLOrder(alias string, orders []Order) []sqlgen.OrderBy {
	out := make([]sqlgen.OrderBy, len(orders))
	for i, o := range orders {
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		out[i] = sqlgen.OrderBy{Table: alias, Field: o.Field, Direction: dir}
	}
	return out
}

// Keyset returns the condition selecting rows at or after the cursor row in
// the given order. cursor holds the cursor row's values for every ordered
// field. Ordered fields must be non-nullable.
func Keyset(alias string, orders []Order, cursor map[string]any) *sqlgen.WhereClause {
	or := sqlgen.NewWhereClause()
	or.Operator = "OR"

	for i := range orders {
		and := sqlgen.NewWhereClause()
		for _, prev := range orders[:i] {
			and.AddCondition(sqlgen.Condition{Table: alias, Field: prev.Field, Operator: "=", Value: cursor[prev.Field]})
		}
		op := ">"
		if orders[i].Desc {
			op = "<"
		}
		and.AddCondition(sqlgen.Condition{Table: alias, Field: orders[i].Field, Operator: op, Value: cursor[orders[i].Field]})
		or.AddGroup(and)
	}

	self := sqlgen.NewWhereClause()
	for _, o := range orders {
		self.AddCondition(sqlgen.Condition{Table: alias, Field: o.Field, Operator: "=", Value: cursor[o.Field]})
	}
	or.AddGroup(self)
	return or
}

// Nullable reports whether any ordered field is nullable.
func Nullable(m *schema.Model, orders []Order) bool {
	for _, o := range orders {
		if f, ok := m.Field(o.Field); ok && f.Nullable {
			return true
		}
	}
	return false
}
