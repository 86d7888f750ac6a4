package compiler

import (
	"sort"

	"github.com/satishbabariya/commerce-client/query/sqlgen"
	"github.com/satishbabariya/commerce-client/runtime/types"
	"github.com/satishbabariya/commerce-client/schema"
)

var comparisons = map[string]string{
	"equals": "=",
	"lt":     "<",
	"lte":    "<=",
	"gt":     ">",
	"gte":    ">=",
}

// FieldFilter compiles the filter of a single field into its own clause. f
// may describe a computed column, such as the AVG of a group, in which case
// the caller sets Func on the resulting conditions.
func (s *Scope) FieldFilter(m *schema.Model, f *schema.Field, alias string, value any) (*sqlgen.WhereClause, error) {
	clause := sqlgen.NewWhereClause()
	if err := s.fieldFilter(clause, m, f, alias, value); err != nil {
		return nil, err
	}
	return clause, nil
}

// fieldFilter compiles the filter for one scalar field. A bare value means
// equals and nil means IS NULL.
func (s *Scope) fieldFilter(clause *sqlgen.WhereClause, m *schema.Model, f *schema.Field, alias string, value any) error {
	if value == nil {
		clause.AddCondition(sqlgen.Condition{Table: alias, Field: f.Name, Operator: "IS NULL"})
		return nil
	}
	filter, ok := types.AsMap(value)
	if !ok {
		v, err := Coerce(m.Name, f, value)
		if err != nil {
			return err
		}
		clause.AddCondition(sqlgen.Condition{Table: alias, Field: f.Name, Operator: "=", Value: v})
		return nil
	}

	insensitive := false
	if mode, ok := filter["mode"]; ok {
		switch mode {
		case "insensitive":
			insensitive = true
		case "default":
		default:
			return types.NewError(types.ErrInvalidFilterField, "unknown mode %v", mode).WithModel(m.Name).WithField(f.Name)
		}
		if f.Type != schema.String {
			return types.NewError(types.ErrInvalidFilterField, "mode applies to String fields only").WithModel(m.Name).WithField(f.Name)
		}
	}

	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		arg := filter[key]
		cond := sqlgen.Condition{Table: alias, Field: f.Name, Insensitive: insensitive}

		switch key {
		case "mode":
			continue

		case "equals", "lt", "lte", "gt", "gte":
			if arg == nil {
				if key != "equals" {
					return types.NewError(types.ErrInvalidArgument, "%s does not accept null", key).WithModel(m.Name).WithField(f.Name)
				}
				cond.Operator = "IS NULL"
				cond.Insensitive = false
				break
			}
			v, err := Coerce(m.Name, f, arg)
			if err != nil {
				return err
			}
			cond.Operator, cond.Value = comparisons[key], v

		case "in", "notIn":
			values, err := CoerceList(m.Name, f, arg)
			if err != nil {
				return err
			}
			cond.Operator, cond.Value = "IN", values
			if key == "notIn" {
				cond.Operator = "NOT IN"
			}

		case "contains", "startsWith", "endsWith":
			if f.Type != schema.String {
				return types.NewError(types.ErrInvalidFilterField, "%s applies to String fields only", key).WithModel(m.Name).WithField(f.Name)
			}
			str, ok := arg.(string)
			if !ok {
				return types.NewError(types.ErrInvalidArgument, "%s expects a string", key).WithModel(m.Name).WithField(f.Name)
			}
			pattern := sqlgen.EscapeLike(str)
			switch key {
			case "contains":
				pattern = "%" + pattern + "%"
			case "startsWith":
				pattern += "%"
			case "endsWith":
				pattern = "%" + pattern
			}
			cond.Operator, cond.Value = "LIKE", pattern

		case "not":
			if arg == nil {
				cond.Operator = "IS NOT NULL"
				cond.Insensitive = false
				break
			}
			if nested, ok := types.AsMap(arg); ok {
				inner := sqlgen.NewWhereClause()
				if insensitive {
					if _, has := nested["mode"]; !has {
						copied := make(map[string]any, len(nested)+1)
						for k, v := range nested {
							copied[k] = v
						}
						copied["mode"] = "insensitive"
						nested = copied
					}
				}
				if err := s.fieldFilter(inner, m, f, alias, nested); err != nil {
					return err
				}
				clause.AddGroup(sqlgen.Not(inner))
				continue
			}
			v, err := Coerce(m.Name, f, arg)
			if err != nil {
				return err
			}
			cond.Operator, cond.Value = "!=", v

		default:
			return types.NewError(types.ErrInvalidFilterField, "unknown filter %q", key).WithModel(m.Name).WithField(f.Name)
		}
		clause.AddCondition(cond)
	}
	return nil
}

// relationFilter compiles some/every/none for to-many relations and
// is/isNot (or a bare nested filter) for to-one relations.
func (s *Scope) relationFilter(clause *sqlgen.WhereClause, m *schema.Model, rel *schema.Relation, alias string, value any) error {
	target, err := s.reg.DescribeModel(rel.Target)
	if err != nil {
		return err
	}
	if value == nil {
		if rel.ToMany || !rel.Optional {
			return types.NewError(types.ErrInvalidArgument, "relation %s cannot be null", rel.Name).WithModel(m.Name).WithField(rel.Name)
		}
		clause.AddCondition(sqlgen.Condition{Table: alias, Field: rel.LocalField, Operator: "IS NULL"})
		return nil
	}
	filter, ok := types.AsMap(value)
	if !ok {
		return types.NewError(types.ErrInvalidArgument, "relation filter must be an object").WithModel(m.Name).WithField(rel.Name)
	}

	if rel.ToMany {
		for _, key := range []string{"every", "none", "some"} {
			arg, ok := filter[key]
			if !ok {
				continue
			}
			nested, ok := types.AsMap(arg)
			if !ok {
				return types.NewError(types.ErrInvalidArgument, "%s expects a filter object", key).WithModel(m.Name).WithField(rel.Name)
			}
			sub, err := s.related(m, rel, target, alias, nested, key == "every")
			if err != nil {
				return err
			}
			op := "EXISTS"
			if key != "some" {
				op = "NOT EXISTS"
			}
			clause.AddCondition(sqlgen.Condition{Operator: op, Sub: sub})
		}
		for key := range filter {
			if key != "every" && key != "some" && key != "none" {
				return types.NewError(types.ErrInvalidFilterField, "unknown relation filter %q", key).WithModel(m.Name).WithField(rel.Name)
			}
		}
		return nil
	}

	_, hasIs := filter["is"]
	_, hasIsNot := filter["isNot"]
	if !hasIs && !hasIsNot {
		// {user: {name: "Ann"}} is shorthand for {user: {is: {name: "Ann"}}}.
		filter = map[string]any{"is": filter}
	}
	for _, key := range []string{"is", "isNot"} {
		arg, ok := filter[key]
		if !ok {
			continue
		}
		if arg == nil {
			if !rel.Optional {
				return types.NewError(types.ErrInvalidArgument, "relation %s is required", rel.Name).WithModel(m.Name).WithField(rel.Name)
			}
			op := "IS NULL"
			if key == "isNot" {
				op = "IS NOT NULL"
			}
			clause.AddCondition(sqlgen.Condition{Table: alias, Field: rel.LocalField, Operator: op})
			continue
		}
		nested, ok := types.AsMap(arg)
		if !ok {
			return types.NewError(types.ErrInvalidArgument, "%s expects a filter object", key).WithModel(m.Name).WithField(rel.Name)
		}
		sub, err := s.related(m, rel, target, alias, nested, false)
		if err != nil {
			return err
		}
		op := "EXISTS"
		if key == "isNot" {
			op = "NOT EXISTS"
		}
		clause.AddCondition(sqlgen.Condition{Operator: op, Sub: sub})
	}
	for key := range filter {
		if key != "is" && key != "isNot" {
			return types.NewError(types.ErrInvalidFilterField, "unknown relation filter %q", key).WithModel(m.Name).WithField(rel.Name)
		}
	}
	return nil
}

// related builds the correlated subquery selecting target rows linked to
// the outer row. With negate the nested filter must not hold, which is how
// every is expressed: no linked row fails the filter.
func (s *Scope) related(m *schema.Model, rel *schema.Relation, target *schema.Model, outer string, nested map[string]any, negate bool) (*sqlgen.Select, error) {
	inner := s.Alias()
	where := sqlgen.NewWhereClause()
	where.AddCondition(Link(rel, inner, outer))

	cond, err := s.Where(target, inner, nested)
	if err != nil {
		return nil, err
	}
	if negate {
		cond.NotTrue = true
	}
	where.AddGroup(cond)
	return &sqlgen.Select{Table: target.Name, Alias: inner, Where: where}, nil
}

// Link is the join condition between a relation's target (aliased inner)
// and its owner (aliased outer).
func Link(rel *schema.Relation, inner, outer string) sqlgen.Condition {
	return sqlgen.Condition{
		Table:    inner,
		Field:    rel.ForeignField,
		Operator: "=",
		Value:    sqlgen.ColumnRef{Table: outer, Field: rel.LocalField},
	}
}
