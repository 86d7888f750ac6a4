// Package compiler translates filter trees, orderings and unique lookups
// into sqlgen structures, validating field names against the registry.
package compiler

import (
	"sort"
	"strconv"

	"github.com/satishbabariya/commerce-client/query/sqlgen"
	"github.com/satishbabariya/commerce-client/runtime/types"
	"github.com/satishbabariya/commerce-client/schema"
)

// Scope compiles the parts of one statement. It hands out table aliases so
// correlated subqueries never collide. A Scope is not safe for concurrent use.
type Scope struct {
	reg  *schema.Registry
	next int
}

// NewScope creates a scope whose first alias is t0.
func NewScope(reg *schema.Registry) *Scope {
	return &Scope{reg: reg}
}

// Alias returns a fresh table alias.
func (s *Scope) Alias() string {
	a := "t" + strconv.Itoa(s.next)
	s.next++
	return a
}

// Where compiles a filter on model, whose table is aliased as alias.
func (s *Scope) Where(m *schema.Model, alias string, where map[string]any) (*sqlgen.WhereClause, error) {
	clause := sqlgen.NewWhereClause()
	// Keys are visited in sorted order so the same filter always yields the
	// same SQL and argument order.
	keys := make([]string, 0, len(where))
	for k := range where {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := where[key]
		switch key {
		case "AND":
			group, err := s.combine(m, alias, value, "AND")
			if err != nil {
				return nil, err
			}
			clause.AddGroup(group)

		case "OR":
			group, err := s.combine(m, alias, value, "OR")
			if err != nil {
				return nil, err
			}
			clause.AddGroup(group)

		case "NOT":
			items, err := s.list(m, value)
			if err != nil {
				return nil, err
			}
			for _, item := range items {
				if len(item) == 0 {
					continue
				}
				inner, err := s.Where(m, alias, item)
				if err != nil {
					return nil, err
				}
				clause.AddGroup(sqlgen.Not(inner))
			}

		default:
			if f, ok := m.Field(key); ok {
				if err := s.fieldFilter(clause, m, f, alias, value); err != nil {
					return nil, err
				}
				continue
			}
			if rel, ok := m.Relation(key); ok {
				if err := s.relationFilter(clause, m, rel, alias, value); err != nil {
					return nil, err
				}
				continue
			}
			return nil, types.NewError(types.ErrInvalidFilterField, "unknown field %q", key).WithModel(m.Name).WithField(key)
		}
	}
	return clause, nil
}

// combine compiles AND/OR operands. An empty AND is true and an empty OR is
// false, which sqlgen renders for the empty clause.
func (s *Scope) combine(m *schema.Model, alias string, value any, op string) (*sqlgen.WhereClause, error) {
	items, err := s.list(m, value)
	if err != nil {
		return nil, err
	}
	group := sqlgen.NewWhereClause()
	group.Operator = op
	for _, item := range items {
		inner, err := s.Where(m, alias, item)
		if err != nil {
			return nil, err
		}
		group.AddGroup(inner)
	}
	return group, nil
}

// list accepts a single filter object or a list of them.
func (s *Scope) list(m *schema.Model, value any) ([]map[string]any, error) {
	if obj, ok := types.AsMap(value); ok {
		return []map[string]any{obj}, nil
	}
	items, ok := types.AsList(value)
	if !ok {
		return nil, types.NewError(types.ErrInvalidArgument, "expected a filter object or list, got %T", value).WithModel(m.Name)
	}
	out := make([]map[string]any, len(items))
	for i, item := range items {
		obj, ok := types.AsMap(item)
		if !ok {
			return nil, types.NewError(types.ErrInvalidArgument, "expected a filter object, got %T", item).WithModel(m.Name)
		}
		out[i] = obj
	}
	return out, nil
}
