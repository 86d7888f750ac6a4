package executor

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/satishbabariya/commerce-client/query/compiler"
	"github.com/satishbabariya/commerce-client/query/sqlgen"
	"github.com/satishbabariya/commerce-client/runtime/types"
	"github.com/satishbabariya/commerce-client/schema"
)

// nestedOp is one nested relation write inside create or update data.
type nestedOp struct {
	rel  *schema.Relation
	kind string
	args []any
}

// Nested write kinds in execution order. deleteMany and updateMany run
// before new rows are attached.
var (
	toManyCreateOps = []string{"create", "createMany", "connect"}
	toManyUpdateOps = []string{"deleteMany", "updateMany", "create", "createMany", "connect"}
	toOneOps        = []string{"connect", "create"}
)

// createData is create data split into coerced scalar values and nested
// relation writes.
type createData struct {
	values map[string]any
	toOne  []nestedOp
	toMany []nestedOp
}

// parseCreate validates create data for m.
func parseCreate(m *schema.Model, data types.Data) (*createData, error) {
	cd := &createData{values: make(map[string]any, len(data))}
	for _, key := range sortedKeys(data) {
		value := data[key]
		if f, ok := m.Field(key); ok {
			v, err := scalarValue(m, f, value)
			if err != nil {
				return nil, err
			}
			cd.values[key] = v
			continue
		}
		rel, ok := m.Relation(key)
		if !ok {
			return nil, types.Errorf(types.ErrInvalidArgument, m.Name, "unknown field %q in data", key).WithField(key)
		}
		allowed := toOneOps
		if rel.ToMany {
			allowed = toManyCreateOps
		}
		ops, err := nestedOps(m, rel, value, allowed)
		if err != nil {
			return nil, err
		}
		if rel.ToMany {
			cd.toMany = append(cd.toMany, ops...)
		} else {
			cd.toOne = append(cd.toOne, ops...)
		}
	}

	for _, op := range cd.toOne {
		if _, set := cd.values[op.rel.LocalField]; set {
			return nil, types.Errorf(types.ErrInvalidArgument, m.Name, "%s and a nested %s on %s cannot be combined", op.rel.LocalField, op.kind, op.rel.Name).WithField(op.rel.LocalField)
		}
	}
	return cd, nil
}

// scalarValue coerces a written value. null is only accepted for nullable fields.
func scalarValue(m *schema.Model, f *schema.Field, value any) (any, error) {
	if value == nil {
		if !f.Nullable {
			return nil, types.Errorf(types.ErrInvalidArgument, m.Name, "%s cannot be null", f.Name).WithField(f.Name)
		}
		return nil, nil
	}
	if _, isObj := types.AsMap(value); isObj {
		return nil, types.Errorf(types.ErrInvalidArgument, m.Name, "%s takes a value, got an object", f.Name).WithField(f.Name)
	}
	return compiler.Coerce(m.Name, f, value)
}

// applyDefaults fills absent fields from schema defaults and checks that
// every required field has a value.
func applyDefaults(m *schema.Model, values map[string]any, now time.Time) error {
	for _, f := range m.Fields {
		if _, set := values[f.Name]; set {
			continue
		}
		if f.Default != nil {
			switch f.Default.Kind {
			case schema.DefaultAutoincrement:
				continue
			case schema.DefaultNow:
				values[f.Name] = now
				continue
			case schema.DefaultLiteral:
				v, err := compiler.Coerce(m.Name, f, f.Default.Value)
				if err != nil {
					return err
				}
				values[f.Name] = v
				continue
			}
		}
		if f.Nullable {
			continue
		}
		return types.Errorf(types.ErrInvalidArgument, m.Name, "missing required field %s", f.Name).WithField(f.Name)
	}
	return nil
}

// nestedOps reads the operations object of a relation in write data.
func nestedOps(m *schema.Model, rel *schema.Relation, value any, allowed []string) ([]nestedOp, error) {
	obj, ok := types.AsMap(value)
	if !ok {
		return nil, types.Errorf(types.ErrInvalidArgument, m.Name, "relation %s takes an object of nested writes, got %T", rel.Name, value).WithField(rel.Name)
	}
	known := make(map[string]bool, len(allowed))
	for _, k := range allowed {
		known[k] = true
	}
	for k := range obj {
		if !known[k] {
			return nil, types.Errorf(types.ErrInvalidArgument, m.Name, "unsupported nested write %q on %s, expected one of %v", k, rel.Name, allowed).WithField(rel.Name)
		}
	}

	var ops []nestedOp
	for _, kind := range allowed {
		arg, ok := obj[kind]
		if !ok {
			continue
		}
		var args []any
		if list, isList := types.AsList(arg); isList && kind != "createMany" {
			if !rel.ToMany {
				return nil, types.Errorf(types.ErrInvalidArgument, m.Name, "%s on to-one relation %s takes a single object", kind, rel.Name).WithField(rel.Name)
			}
			args = list
		} else {
			args = []any{arg}
		}
		for _, a := range args {
			if _, isObj := types.AsMap(a); !isObj {
				return nil, types.Errorf(types.ErrInvalidArgument, m.Name, "%s on %s takes objects, got %T", kind, rel.Name, a).WithField(rel.Name)
			}
		}
		ops = append(ops, nestedOp{rel: rel, kind: kind, args: args})
	}
	return ops, nil
}

// updateData is update data split into SET assignments and nested writes.
type updateData struct {
	sets   []sqlgen.Assignment
	toOne  []nestedOp
	toMany []nestedOp
}

// relativeOps maps update operators to SQL.
var relativeOps = map[string]string{
	"increment": "+",
	"decrement": "-",
	"multiply":  "*",
	"divide":    "/",
}

// parseUpdate validates update data for m. Primary keys and relation
// scalars cannot be assigned; relations are changed with connect.
func (e *Executor) parseUpdate(m *schema.Model, data types.Data, nestedAllowed bool) (*updateData, error) {
	ud := &updateData{}
	for _, key := range sortedKeys(data) {
		value := data[key]
		if f, ok := m.Field(key); ok {
			if f.ID || f.ForeignKey {
				return nil, types.Errorf(types.ErrInvalidArgument, m.Name, "%s cannot be updated directly", key).WithField(key)
			}
			set, err := e.assignment(m, f, value)
			if err != nil {
				return nil, err
			}
			ud.sets = append(ud.sets, set)
			continue
		}
		rel, ok := m.Relation(key)
		if !ok {
			return nil, types.Errorf(types.ErrInvalidArgument, m.Name, "unknown field %q in data", key).WithField(key)
		}
		if !nestedAllowed {
			return nil, types.Errorf(types.ErrInvalidArgument, m.Name, "nested writes are not supported here").WithField(key)
		}
		allowed := toOneOps
		if rel.ToMany {
			allowed = toManyUpdateOps
		}
		ops, err := nestedOps(m, rel, value, allowed)
		if err != nil {
			return nil, err
		}
		if rel.ToMany {
			ud.toMany = append(ud.toMany, ops...)
		} else {
			ud.toOne = append(ud.toOne, ops...)
		}
	}
	return ud, nil
}

// assignment builds the SET entry of one field. Relative operators are
// evaluated by the database against the stored value.
func (e *Executor) assignment(m *schema.Model, f *schema.Field, value any) (sqlgen.Assignment, error) {
	set := sqlgen.Assignment{Column: f.Name, Op: "="}
	obj, isObj := types.AsMap(value)
	if !isObj {
		v, err := scalarValue(m, f, value)
		set.Value = v
		return set, err
	}
	if len(obj) != 1 {
		return set, types.Errorf(types.ErrInvalidArgument, m.Name, "exactly one update operation is allowed per field").WithField(f.Name)
	}
	for op, arg := range obj {
		if op == "set" {
			v, err := scalarValue(m, f, arg)
			set.Value = v
			return set, err
		}
		sqlOp, ok := relativeOps[op]
		if !ok {
			return set, types.Errorf(types.ErrInvalidArgument, m.Name, "unknown update operation %q", op).WithField(f.Name)
		}
		if !f.Type.Numeric() {
			return set, types.Errorf(types.ErrInvalidArgument, m.Name, "%s requires a numeric field", op).WithField(f.Name)
		}
		if arg == nil {
			return set, types.Errorf(types.ErrInvalidArgument, m.Name, "%s does not accept null", op).WithField(f.Name)
		}
		v, err := compiler.Coerce(m.Name, f, arg)
		if err != nil {
			return set, err
		}
		if op == "divide" && isZero(v) {
			return set, types.Errorf(types.ErrInvalidArgument, m.Name, "division by zero").WithField(f.Name)
		}
		if op == "divide" && f.Type == schema.Int && e.d.Name() == "mysql" {
			sqlOp = "DIV"
		}
		set.Op, set.Value = sqlOp, v
	}
	return set, nil
}

func isZero(v any) bool {
	switch n := v.(type) {
	case int64:
		return n == 0
	case float64:
		return n == 0
	case decimal.Decimal:
		return n.IsZero()
	}
	return false
}

// withParent returns a copy of data for a child row created through a
// to-many relation, with its foreign key pointing at the parent.
func withParent(target *schema.Model, rel *schema.Relation, data map[string]any, parentKey any) (types.Data, error) {
	if _, set := data[rel.ForeignField]; set {
		return nil, types.Errorf(types.ErrInvalidArgument, target.Name, "%s is set by the nested write on %s", rel.ForeignField, rel.Name).WithField(rel.ForeignField)
	}
	if rel.Inverse != "" {
		if _, set := data[rel.Inverse]; set {
			return nil, types.Errorf(types.ErrInvalidArgument, target.Name, "%s is set by the nested write on %s", rel.Inverse, rel.Name).WithField(rel.Inverse)
		}
	}
	out := make(types.Data, len(data)+1)
	for k, v := range data {
		out[k] = v
	}
	out[rel.ForeignField] = parentKey
	return out, nil
}
