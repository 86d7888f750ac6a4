package sqlgen

import (
	"fmt"
	"strings"
)

// buildWhereRecursive builds a WHERE clause with support for nested conditions
func (b *binder) buildWhereRecursive(where *WhereClause) string {
	if where == nil || where.IsEmpty() {
		if where != nil && where.isOr() {
			return applyNot(where, "1=0")
		}
		return applyNot(where, "1=1")
	}

	var parts []string

	for _, cond := range where.Conditions {
		if condSQL := b.buildCondition(cond); condSQL != "" {
			parts = append(parts, condSQL)
		}
	}

	for _, group := range where.Groups {
		parts = append(parts, "("+b.buildWhereRecursive(group)+")")
	}

	op := " AND "
	if where.isOr() {
		op = " OR "
	}
	return applyNot(where, strings.Join(parts, op))
}

func applyNot(where *WhereClause, sql string) string {
	switch {
	case where == nil:
	case where.NotTrue:
		return "(" + sql + ") IS NOT TRUE"
	case where.IsNot:
		return "NOT (" + sql + ")"
	}
	return sql
}

// buildCondition builds a single condition
func (b *binder) buildCondition(cond Condition) string {
	col := b.column(cond.Table, cond.Field)
	if cond.Func != "" {
		col = fmt.Sprintf("%s(%s)", cond.Func, col)
		if cond.Field == "*" {
			col = cond.Func + "(*)"
		}
	}
	value := func(v interface{}) string {
		if ref, ok := v.(ColumnRef); ok {
			return b.column(ref.Table, ref.Field)
		}
		ph := b.bind(v)
		if cond.Insensitive {
			return "LOWER(" + ph + ")"
		}
		return ph
	}
	if cond.Insensitive {
		col = "LOWER(" + col + ")"
	}

	switch cond.Operator {
	case "=", "!=", ">", "<", ">=", "<=":
		op := cond.Operator
		if op == "!=" {
			op = "<>"
		}
		return fmt.Sprintf("%s %s %s", col, op, value(cond.Value))

	case "IN", "NOT IN":
		values, _ := cond.Value.([]interface{})
		if len(values) == 0 {
			// x IN () is always false and x NOT IN () always true.
			if cond.Operator == "IN" {
				return "1=0"
			}
			return "1=1"
		}
		placeholders := make([]string, len(values))
		for i := range values {
			placeholders[i] = value(values[i])
		}
		return fmt.Sprintf("%s %s (%s)", col, cond.Operator, strings.Join(placeholders, ", "))

	case "LIKE":
		return fmt.Sprintf("%s LIKE %s ESCAPE '%s'", col, value(cond.Value), LikeEscape)

	case "IS NULL":
		return col + " IS NULL"

	case "IS NOT NULL":
		return col + " IS NOT NULL"

	case "IN SELECT":
		return fmt.Sprintf("%s IN (SELECT %s FROM (%s) AS sub)", col, b.d.Quote(cond.Field), b.selectSQL(cond.Sub))

	case "EXISTS", "NOT EXISTS":
		return fmt.Sprintf("%s (%s)", cond.Operator, b.selectSQL(cond.Sub))

	case "TRUE":
		return "1=1"

	case "FALSE":
		return "1=0"
	}

	panic(fmt.Sprintf("sqlgen: unsupported operator %q", cond.Operator))
}

// LikeEscape is the escape character used in generated LIKE patterns.
const LikeEscape = "!"

// EscapeLike escapes the LIKE wildcards in s.
func EscapeLike(s string) string {
	r := strings.NewReplacer(LikeEscape, LikeEscape+LikeEscape, "%", LikeEscape+"%", "_", LikeEscape+"_")
	return r.Replace(s)
}
