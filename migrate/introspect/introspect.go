// Package introspect reads the tables, columns, unique indexes and foreign
// keys of a live database and compares them with the schema registry.
package introspect

import (
	"context"
	"database/sql"
	"slices"

	"github.com/satishbabariya/commerce-client/query/dialect"
	"github.com/satishbabariya/commerce-client/runtime/types"
)

// Introspector reads the structure of one database.
type Introspector interface {
	Introspect(ctx context.Context) (*DatabaseSchema, error)
}

// DatabaseSchema is the introspected structure, tables sorted by name.
type DatabaseSchema struct {
	Tables []Table
}

// Table returns the named table.
func (s *DatabaseSchema) Table(name string) (*Table, bool) {
	for i := range s.Tables {
		if s.Tables[i].Name == name {
			return &s.Tables[i], true
		}
	}
	return nil, false
}

// Table represents a database table
type Table struct {
	Name        string
	Columns     []Column
	Indexes     []Index
	ForeignKeys []ForeignKey
}

// Column returns the named column.
func (t *Table) Column(name string) (*Column, bool) {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i], true
		}
	}
	return nil, false
}

// HasUnique reports whether a unique index covers exactly columns.
func (t *Table) HasUnique(columns []string) bool {
	for _, idx := range t.Indexes {
		if idx.Unique && sameColumns(idx.Columns, columns) {
			return true
		}
	}
	return false
}

// ForeignKey returns the foreign key stored in columns.
func (t *Table) ForeignKey(columns []string) (*ForeignKey, bool) {
	for i := range t.ForeignKeys {
		if sameColumns(t.ForeignKeys[i].Columns, columns) {
			return &t.ForeignKeys[i], true
		}
	}
	return nil, false
}

// Column represents a table column
type Column struct {
	Name     string
	Type     string
	Nullable bool
}

// Index represents a database index. Primary keys are not listed.
type Index struct {
	Name    string
	Columns []string
	Unique  bool
}

// ForeignKey represents a foreign key constraint
type ForeignKey struct {
	Columns           []string
	ReferencedTable   string
	ReferencedColumns []string
	OnDelete          string
}

// NewIntrospector creates a new introspector for the given database
func NewIntrospector(db *sql.DB, d dialect.Dialect) (Introspector, error) {
	switch d.(type) {
	case dialect.Postgres, dialect.PGX:
		return &PostgresIntrospector{db: db}, nil
	case dialect.MySQL:
		return &MySQLIntrospector{db: db}, nil
	case dialect.SQLite:
		return &SQLiteIntrospector{db: db}, nil
	}
	return nil, types.NewError(types.ErrInvalidArgument, "introspection is not supported for %s", d.Name())
}

func sameColumns(a, b []string) bool {
	return slices.Equal(a, b)
}

// queryStrings runs a query returning one string column.
func queryStrings(ctx context.Context, db *sql.DB, query string, args ...any) ([]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
