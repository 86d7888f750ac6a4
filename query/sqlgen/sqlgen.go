// Package sqlgen generates parameterized SQL for the supported dialects.
package sqlgen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/satishbabariya/commerce-client/query/dialect"
)

// Query represents a SQL query with arguments
type Query struct {
	SQL  string
	Args []interface{}
}

// OrderBy represents an ORDER BY entry
type OrderBy struct {
	Table     string
	Field     string
	Func      string // aggregate, for groupBy ordering
	Direction string // "ASC" or "DESC"
}

// Select describes a SELECT statement. Columns are field names qualified by
// Alias; Exprs are emitted verbatim after them.
type Select struct {
	Distinct bool
	Table    string
	Alias    string
	Columns  []string
	Exprs    []string
	Where    *WhereClause
	OrderBy  []OrderBy
	Limit    *int
	Offset   *int
}

// Assignment is one SET entry. Op is "=" for a plain assignment or one of
// "+", "-", "*", "/", "DIV" to update relative to the stored value.
type Assignment struct {
	Column string
	Op     string
	Value  interface{}
}

// Generator renders statements for one dialect. It is stateless and safe
// for concurrent use.
type Generator struct {
	d dialect.Dialect
}

// NewGenerator creates a new SQL generator for the given dialect
func NewGenerator(d dialect.Dialect) *Generator {
	return &Generator{d: d}
}

// Dialect returns the generator's dialect.
func (g *Generator) Dialect() dialect.Dialect {
	return g.d
}

// binder accumulates arguments while a statement is rendered left to right.
type binder struct {
	d    dialect.Dialect
	args []interface{}
}

func (g *Generator) newBinder() *binder {
	return &binder{d: g.d}
}

func (b *binder) bind(v interface{}) string {
	b.args = append(b.args, b.d.BindArg(v))
	return b.d.Placeholder(len(b.args))
}

func (b *binder) column(table, field string) string {
	if field == "*" {
		return field
	}
	if table == "" {
		return b.d.Quote(field)
	}
	return table + "." + b.d.Quote(field)
}

func (b *binder) query(sql string) *Query {
	return &Query{SQL: sql, Args: b.args}
}

// Select renders a SELECT statement.
func (g *Generator) Select(s Select) *Query {
	b := g.newBinder()
	return b.query(b.selectSQL(&s))
}

func (b *binder) selectSQL(s *Select) string {
	var parts []string

	cols := make([]string, 0, len(s.Columns)+len(s.Exprs))
	for _, c := range s.Columns {
		cols = append(cols, b.column(s.Alias, c))
	}
	cols = append(cols, s.Exprs...)
	if len(cols) == 0 {
		cols = append(cols, "1")
	}
	verb := "SELECT "
	if s.Distinct {
		verb = "SELECT DISTINCT "
	}
	parts = append(parts, verb+strings.Join(cols, ", "))
	parts = append(parts, "FROM "+b.from(s.Table, s.Alias))

	if !s.Where.trivial() {
		parts = append(parts, "WHERE "+b.buildWhereRecursive(s.Where))
	}
	if len(s.OrderBy) > 0 {
		parts = append(parts, "ORDER BY "+b.orderBy(s.Alias, s.OrderBy))
	}
	if limit := b.limit(s.Limit, s.Offset); limit != "" {
		parts = append(parts, limit)
	}
	return strings.Join(parts, " ")
}

func (b *binder) from(table, alias string) string {
	if alias == "" {
		return b.d.Quote(table)
	}
	return b.d.Quote(table) + " AS " + alias
}

func (b *binder) orderBy(alias string, orderBy []OrderBy) string {
	orderParts := make([]string, len(orderBy))
	for i, ob := range orderBy {
		direction := "ASC"
		if ob.Direction == "DESC" || ob.Direction == "desc" {
			direction = "DESC"
		}
		table := ob.Table
		if table == "" {
			table = alias
		}
		col := b.column(table, ob.Field)
		if ob.Func != "" {
			col = fmt.Sprintf("%s(%s)", ob.Func, col)
		}
		orderParts[i] = col + " " + direction
	}
	return strings.Join(orderParts, ", ")
}

// limit renders LIMIT/OFFSET with inline integers.
func (b *binder) limit(limit, offset *int) string {
	hasOffset := offset != nil && *offset > 0
	switch {
	case limit != nil && hasOffset:
		return fmt.Sprintf("LIMIT %d OFFSET %d", *limit, *offset)
	case limit != nil:
		return "LIMIT " + strconv.Itoa(*limit)
	case hasOffset:
		return fmt.Sprintf("LIMIT %s OFFSET %d", b.d.NoLimit(), *offset)
	}
	return ""
}

// Insert renders a single or multi-row INSERT. With ignoreDuplicates rows
// violating a unique constraint are skipped. When returning is set and the
// dialect supports it, the column is returned for each inserted row.
func (g *Generator) Insert(table string, columns []string, rows [][]interface{}, ignoreDuplicates bool, returning string) *Query {
	b := g.newBinder()
	verb, suffix := "INSERT INTO", ""
	if ignoreDuplicates {
		verb, suffix = g.d.InsertIgnore()
	}

	var sb strings.Builder
	sb.WriteString(verb + " " + g.d.Quote(table))

	if len(columns) == 0 {
		sb.WriteString(" " + g.d.DefaultValues())
	} else {
		quotedCols := make([]string, len(columns))
		for i, col := range columns {
			quotedCols[i] = g.d.Quote(col)
		}
		sb.WriteString(" (" + strings.Join(quotedCols, ", ") + ") VALUES ")

		tuples := make([]string, len(rows))
		for i, row := range rows {
			placeholders := make([]string, len(row))
			for j, v := range row {
				placeholders[j] = b.bind(v)
			}
			tuples[i] = "(" + strings.Join(placeholders, ", ") + ")"
		}
		sb.WriteString(strings.Join(tuples, ", "))
	}

	sb.WriteString(suffix)
	if returning != "" && g.d.SupportsReturning() {
		sb.WriteString(" RETURNING " + g.d.Quote(returning))
	}
	return b.query(sb.String())
}

// Update renders an UPDATE of table. where references unqualified columns.
func (g *Generator) Update(table string, sets []Assignment, where *WhereClause) *Query {
	b := g.newBinder()
	setParts := make([]string, len(sets))
	for i, s := range sets {
		col := g.d.Quote(s.Column)
		switch s.Op {
		case "+", "-", "*", "/", "DIV":
			setParts[i] = fmt.Sprintf("%s = %s %s %s", col, col, s.Op, b.bind(s.Value))
		default:
			setParts[i] = fmt.Sprintf("%s = %s", col, b.bind(s.Value))
		}
	}
	sql := fmt.Sprintf("UPDATE %s SET %s WHERE %s", g.d.Quote(table), strings.Join(setParts, ", "), b.buildWhereRecursive(where))
	return b.query(sql)
}

// Delete renders a DELETE from table. where references unqualified columns.
func (g *Generator) Delete(table string, where *WhereClause) *Query {
	b := g.newBinder()
	return b.query(fmt.Sprintf("DELETE FROM %s WHERE %s", g.d.Quote(table), b.buildWhereRecursive(where)))
}

// KeysIn returns a condition matching rows whose key column is among the
// keys produced by inner. The inner select is wrapped in a derived table,
// which lets MySQL reference the table being modified and apply LIMIT.
// DISTINCT keeps MySQL from merging the derived table into the outer
// statement.
func KeysIn(key string, inner Select) Condition {
	inner.Distinct = true
	return Condition{Field: key, Operator: "IN SELECT", Sub: &inner}
}
