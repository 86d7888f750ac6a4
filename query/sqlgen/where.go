package sqlgen

// WhereClause represents a WHERE condition (can be nested). An empty AND
// clause renders as true and an empty OR clause as false.
type WhereClause struct {
	Conditions []Condition
	Groups     []*WhereClause // Nested WHERE clauses for AND/OR/NOT
	Operator   string         // "AND" or "OR"
	IsNot      bool           // true for NOT conditions
	// NotTrue negates with IS NOT TRUE, so rows where the clause is NULL
	// count as not matching.
	NotTrue bool
}

// Condition represents a single filter condition
type Condition struct {
	Table    string // alias qualifying Field; empty for unqualified columns
	Field    string
	Func     string // aggregate wrapping the column in HAVING, e.g. "AVG"
	Operator string // "=", "!=", ">", "<", ">=", "<=", "IN", "NOT IN", "LIKE", "IS NULL", "IS NOT NULL", "EXISTS", "NOT EXISTS"
	Value    interface{}
	// Insensitive compares LOWER(column) with LOWER(value).
	Insensitive bool
	// Sub is the correlated subquery of EXISTS and NOT EXISTS.
	Sub *Select
}

// ColumnRef is a Condition value that refers to another column instead of
// a bound argument.
type ColumnRef struct {
	Table string
	Field string
}

// NewWhereClause creates a new WHERE clause
func NewWhereClause() *WhereClause {
	return &WhereClause{
		Conditions: []Condition{},
		Groups:     []*WhereClause{},
		Operator:   "AND",
	}
}

// And returns an AND clause over the given groups, dropping nils.
func And(groups ...*WhereClause) *WhereClause {
	w := NewWhereClause()
	for _, g := range groups {
		if g != nil {
			w.AddGroup(g)
		}
	}
	return w
}

// Or returns an OR clause over the given groups.
func Or(groups ...*WhereClause) *WhereClause {
	w := And(groups...)
	w.Operator = "OR"
	return w
}

// Not negates a clause.
func Not(group *WhereClause) *WhereClause {
	w := And(group)
	w.IsNot = true
	return w
}

// AddCondition adds a condition to the WHERE clause
func (w *WhereClause) AddCondition(condition Condition) {
	w.Conditions = append(w.Conditions, condition)
}

// AddGroup adds a nested WHERE clause
func (w *WhereClause) AddGroup(group *WhereClause) {
	w.Groups = append(w.Groups, group)
}

// IsEmpty returns true if the WHERE clause is empty
func (w *WhereClause) IsEmpty() bool {
	return len(w.Conditions) == 0 && len(w.Groups) == 0
}

// isOr reports whether the clause joins its parts with OR.
func (w *WhereClause) isOr() bool {
	return w.Operator == "OR" || w.Operator == "or"
}

// trivial reports whether the clause is absent or always true.
func (w *WhereClause) trivial() bool {
	return w == nil || w.IsEmpty() && !w.isOr() && !w.IsNot && !w.NotTrue
}
