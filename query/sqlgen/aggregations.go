package sqlgen

import (
	"fmt"
	"strings"
)

// AggregateFunction represents an aggregation function
type AggregateFunction struct {
	Function string // "COUNT", "SUM", "AVG", "MIN", "MAX"
	Field    string // Field to aggregate on ("*" for COUNT(*))
	Alias    string // Alias for the result
}

// Aggregate describes an aggregate or grouped SELECT. When Source is set
// the aggregates run over that select (used to honour take, skip and
// cursor before aggregating) instead of the table itself.
type Aggregate struct {
	Table     string
	Alias     string
	Source    *Select
	Functions []AggregateFunction
	GroupBy   []string
	Where     *WhereClause
	Having    *WhereClause
	OrderBy   []OrderBy
	Limit     *int
	Offset    *int
}

// Aggregate renders an aggregation query. Group-by columns are selected
// before the aggregate expressions.
func (g *Generator) Aggregate(a Aggregate) *Query {
	b := g.newBinder()
	var parts []string

	selectParts := make([]string, 0, len(a.GroupBy)+len(a.Functions))
	for _, field := range a.GroupBy {
		selectParts = append(selectParts, b.column(a.Alias, field))
	}
	for _, agg := range a.Functions {
		selectParts = append(selectParts, fmt.Sprintf("%s(%s) AS %s", agg.Function, b.column(a.Alias, agg.Field), g.d.Quote(agg.Alias)))
	}
	parts = append(parts, "SELECT "+strings.Join(selectParts, ", "))

	if a.Source != nil {
		parts = append(parts, fmt.Sprintf("FROM (%s) AS %s", b.selectSQL(a.Source), a.Alias))
	} else {
		parts = append(parts, "FROM "+b.from(a.Table, a.Alias))
	}

	if !a.Where.trivial() {
		parts = append(parts, "WHERE "+b.buildWhereRecursive(a.Where))
	}

	if len(a.GroupBy) > 0 {
		groupByParts := make([]string, len(a.GroupBy))
		for i, field := range a.GroupBy {
			groupByParts[i] = b.column(a.Alias, field)
		}
		parts = append(parts, "GROUP BY "+strings.Join(groupByParts, ", "))
	}

	if !a.Having.trivial() {
		parts = append(parts, "HAVING "+b.buildWhereRecursive(a.Having))
	}

	if len(a.OrderBy) > 0 {
		parts = append(parts, "ORDER BY "+b.orderBy(a.Alias, a.OrderBy))
	}
	if limit := b.limit(a.Limit, a.Offset); limit != "" {
		parts = append(parts, limit)
	}

	return b.query(strings.Join(parts, " "))
}
