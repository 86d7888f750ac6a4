package executor

import (
	"encoding/json"
	"math"
	"sort"

	"github.com/satishbabariya/commerce-client/runtime/types"
	"github.com/satishbabariya/commerce-client/schema"
)

// selection is a resolved select or include tree for one model.
type selection struct {
	model     *schema.Model
	scalars   []string
	relations []*relationSelection
	counts    []*countSelection
}

// relationSelection loads one relation. args only carries filters and
// pagination for to-many relations.
type relationSelection struct {
	rel  *schema.Relation
	args types.FindArgs
	sel  *selection
}

// countSelection is one entry of the _count pseudo-field.
type countSelection struct {
	rel   *schema.Relation
	where types.Where
}

// newSelection validates select and include against m. Without either,
// every scalar field is returned.
func newSelection(reg *schema.Registry, m *schema.Model, sel types.Select, inc types.Include) (*selection, error) {
	if len(sel) > 0 && len(inc) > 0 {
		return nil, types.Errorf(types.ErrExclusiveSelectInclude, m.Name, "select and include cannot be used together")
	}

	s := &selection{model: m}
	tree := map[string]any(inc)
	if len(sel) > 0 {
		tree = sel
	} else {
		s.scalars = m.ScalarNames()
	}

	keys := make([]string, 0, len(tree))
	for k := range tree {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	picked := make(map[string]bool)
	for _, key := range keys {
		value := tree[key]
		if key == "_count" {
			counts, err := countSelections(m, value)
			if err != nil {
				return nil, err
			}
			s.counts = counts
			continue
		}

		if _, ok := m.Field(key); ok {
			if len(sel) == 0 {
				return nil, types.Errorf(types.ErrInvalidArgument, m.Name, "include only accepts relations, got scalar field %q", key).WithField(key)
			}
			on, ok := value.(bool)
			if !ok {
				return nil, types.Errorf(types.ErrInvalidArgument, m.Name, "select of a scalar field takes a boolean, got %T", value).WithField(key)
			}
			picked[key] = on
			continue
		}

		rel, ok := m.Relation(key)
		if !ok {
			return nil, types.Errorf(types.ErrInvalidArgument, m.Name, "unknown field %q in select or include", key).WithField(key)
		}
		args, on, err := relationArgs(m, rel, value)
		if err != nil {
			return nil, err
		}
		if !on {
			continue
		}
		target, err := reg.DescribeModel(rel.Target)
		if err != nil {
			return nil, err
		}
		nested, err := newSelection(reg, target, args.Select, args.Include)
		if err != nil {
			return nil, err
		}
		s.relations = append(s.relations, &relationSelection{rel: rel, args: args, sel: nested})
	}

	if len(sel) > 0 {
		for _, name := range m.ScalarNames() {
			if picked[name] {
				s.scalars = append(s.scalars, name)
			}
		}
	}
	return s, nil
}

// relationArgs reads the value of a relation key in select or include.
func relationArgs(m *schema.Model, rel *schema.Relation, value any) (types.FindArgs, bool, error) {
	var args types.FindArgs
	switch v := value.(type) {
	case nil:
		return args, false, nil
	case bool:
		return args, v, nil
	case types.FindArgs:
		args = v
	case *types.FindArgs:
		if v == nil {
			return args, false, nil
		}
		args = *v
	default:
		obj, ok := types.AsMap(value)
		if !ok {
			return args, false, types.Errorf(types.ErrInvalidArgument, m.Name, "relation %q takes a boolean or an object, got %T", rel.Name, value).WithField(rel.Name)
		}
		var err error
		if args, err = findArgsFromMap(m.Name, rel.Name, obj); err != nil {
			return args, false, err
		}
	}

	if !rel.ToMany && (len(args.Where) > 0 || len(args.OrderBy) > 0 || len(args.Cursor) > 0 ||
		args.Take != nil || args.Skip != nil || len(args.Distinct) > 0) {
		return args, false, types.Errorf(types.ErrInvalidArgument, m.Name, "only select and include apply to to-one relation %q", rel.Name).WithField(rel.Name)
	}
	return args, true, nil
}

// findArgsFromMap decodes nested find arguments given as a plain object.
func findArgsFromMap(model, field string, obj map[string]any) (types.FindArgs, error) {
	var args types.FindArgs
	invalid := func(format string, a ...any) error {
		return types.Errorf(types.ErrInvalidArgument, model, format, a...).WithField(field)
	}

	for key, v := range obj {
		switch key {
		case "where", "cursor", "select", "include":
			m, ok := types.AsMap(v)
			if v != nil && !ok {
				return args, invalid("%s must be an object, got %T", key, v)
			}
			switch key {
			case "where":
				args.Where = m
			case "cursor":
				args.Cursor = m
			case "select":
				args.Select = m
			case "include":
				args.Include = m
			}
		case "orderBy":
			list, err := orderByList(v)
			if err != nil {
				return args, invalid("%v", err)
			}
			args.OrderBy = list
		case "take", "skip":
			n, ok := intArg(v)
			if !ok {
				return args, invalid("%s must be an integer, got %v", key, v)
			}
			if key == "take" {
				args.Take = &n
			} else {
				args.Skip = &n
			}
		case "distinct":
			fields, ok := stringList(v)
			if !ok {
				return args, invalid("distinct must be a list of field names")
			}
			args.Distinct = fields
		default:
			return args, invalid("unknown argument %q", key)
		}
	}
	return args, nil
}

// countSelections reads _count: true counts every to-many relation, an
// object {select: {relation: true | {where}}} counts the named ones.
func countSelections(m *schema.Model, value any) ([]*countSelection, error) {
	invalid := func(format string, a ...any) error {
		return types.Errorf(types.ErrInvalidArgument, m.Name, format, a...).WithField("_count")
	}

	if on, ok := value.(bool); ok {
		if !on {
			return nil, nil
		}
		var out []*countSelection
		for _, rel := range m.Relations {
			if rel.ToMany {
				out = append(out, &countSelection{rel: rel})
			}
		}
		return out, nil
	}

	obj, ok := types.AsMap(value)
	if !ok {
		return nil, invalid("_count takes a boolean or {select: ...}, got %T", value)
	}
	for key := range obj {
		if key != "select" {
			return nil, invalid("unknown _count argument %q", key)
		}
	}
	sel, ok := types.AsMap(obj["select"])
	if !ok {
		return nil, invalid("_count.select must be an object")
	}

	names := make([]string, 0, len(sel))
	for name := range sel {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []*countSelection
	for _, name := range names {
		rel, ok := m.Relation(name)
		if !ok || !rel.ToMany {
			return nil, invalid("%q is not a to-many relation", name)
		}
		switch v := sel[name].(type) {
		case bool:
			if v {
				out = append(out, &countSelection{rel: rel})
			}
		default:
			opts, ok := types.AsMap(v)
			if !ok {
				return nil, invalid("_count.select.%s takes a boolean or {where}", name)
			}
			cs := &countSelection{rel: rel}
			for k, w := range opts {
				if k != "where" {
					return nil, invalid("unknown _count.select.%s argument %q", name, k)
				}
				where, ok := types.AsMap(w)
				if !ok {
					return nil, invalid("_count.select.%s.where must be an object", name)
				}
				cs.where = where
			}
			out = append(out, cs)
		}
	}
	return out, nil
}

// orderByList accepts one ordering object or a list of them.
func orderByList(v any) (types.OrderByList, error) {
	switch o := v.(type) {
	case nil:
		return nil, nil
	case types.OrderByList:
		return o, nil
	case []types.OrderBy:
		return types.OrderByList(o), nil
	case types.OrderBy:
		return types.OrderByList{o}, nil
	}
	if m, ok := types.AsMap(v); ok {
		return types.OrderByList{types.OrderBy(m)}, nil
	}
	items, ok := types.AsList(v)
	if !ok {
		return nil, types.NewError(types.ErrInvalidArgument, "orderBy must be an object or a list, got %T", v)
	}
	out := make(types.OrderByList, 0, len(items))
	for _, item := range items {
		m, ok := types.AsMap(item)
		if !ok {
			return nil, types.NewError(types.ErrInvalidArgument, "orderBy entries must be objects, got %T", item)
		}
		out = append(out, types.OrderBy(m))
	}
	return out, nil
}

func intArg(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		return int(n), n == math.Trunc(n)
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	}
	return 0, false
}

func stringList(v any) ([]string, bool) {
	if s, ok := v.([]string); ok {
		return s, true
	}
	items, ok := types.AsList(v)
	if !ok {
		return nil, false
	}
	out := make([]string, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		out[i] = s
	}
	return out, true
}

// project copies the selected scalars of row into a new row.
func (s *selection) project(row types.Row) types.Row {
	out := make(types.Row, len(s.scalars)+len(s.relations)+1)
	for _, name := range s.scalars {
		out[name] = row[name]
	}
	return out
}

// plain reports whether the selection needs no relation loads.
func (s *selection) plain() bool {
	return len(s.relations) == 0 && len(s.counts) == 0
}
