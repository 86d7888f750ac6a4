package compiler

import (
	"github.com/satishbabariya/commerce-client/runtime/types"
	"github.com/satishbabariya/commerce-client/schema"
)

// UniqueKey returns the first unique key of m fully covered by equality
// filters in where. Other filters may appear alongside it.
func UniqueKey(m *schema.Model, where map[string]any) ([]string, bool) {
	for _, key := range m.UniqueKeys {
		covered := true
		for _, field := range key {
			if _, ok := equality(where[field]); !ok {
				covered = false
				break
			}
		}
		if covered {
			return key, true
		}
	}
	return nil, false
}

// RequireUnique fails with ErrInvalidUniqueWhere unless where pins a unique key.
func RequireUnique(m *schema.Model, where map[string]any) ([]string, error) {
	key, ok := UniqueKey(m, where)
	if !ok {
		return nil, types.NewError(types.ErrInvalidUniqueWhere, "where must include an equality on one of %v", m.UniqueKeys).WithModel(m.Name)
	}
	return key, nil
}

// equality extracts the value of a plain equality filter.
func equality(v any) (any, bool) {
	if v == nil {
		return nil, false
	}
	if filter, ok := types.AsMap(v); ok {
		if len(filter) != 1 {
			return nil, false
		}
		eq, ok := filter["equals"]
		if !ok || eq == nil {
			return nil, false
		}
		return eq, true
	}
	if _, isList := types.AsList(v); isList {
		return nil, false
	}
	return v, true
}

// UniqueValues returns the coerced values of key taken from where.
func UniqueValues(m *schema.Model, key []string, where map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(key))
	for _, name := range key {
		raw, _ := equality(where[name])
		f, _ := m.Field(name)
		v, err := Coerce(m.Name, f, raw)
		if err != nil {
			return nil, err
		}
		out[name] = v
	}
	return out, nil
}
