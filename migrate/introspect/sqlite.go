package introspect

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// SQLiteIntrospector implements introspection for SQLite through the pragma
// table-valued functions. Every query is drained before the next one starts
// because the pool holds a single connection.
type SQLiteIntrospector struct {
	db *sql.DB
}

// Introspect reads the SQLite database schema
func (i *SQLiteIntrospector) Introspect(ctx context.Context) (*DatabaseSchema, error) {
	names, err := queryStrings(ctx, i.db, `
		SELECT name
		FROM sqlite_master
		WHERE type = 'table'
		  AND name NOT LIKE 'sqlite_%'
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tables: %w", err)
	}

	schema := &DatabaseSchema{Tables: make([]Table, 0, len(names))}
	for _, name := range names {
		table := Table{Name: name}
		if table.Columns, err = i.columns(ctx, name); err != nil {
			return nil, fmt.Errorf("failed to introspect columns for %s: %w", name, err)
		}
		if table.Indexes, err = i.indexes(ctx, name); err != nil {
			return nil, fmt.Errorf("failed to introspect indexes for %s: %w", name, err)
		}
		if table.ForeignKeys, err = i.foreignKeys(ctx, name); err != nil {
			return nil, fmt.Errorf("failed to introspect foreign keys for %s: %w", name, err)
		}
		schema.Tables = append(schema.Tables, table)
	}
	return schema, nil
}

func (i *SQLiteIntrospector) columns(ctx context.Context, table string) ([]Column, error) {
	rows, err := i.db.QueryContext(ctx, `SELECT name, type, "notnull", pk FROM pragma_table_info(?) ORDER BY cid`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []Column
	for rows.Next() {
		var (
			col         Column
			notNull, pk int
		)
		if err := rows.Scan(&col.Name, &col.Type, &notNull, &pk); err != nil {
			return nil, err
		}
		col.Type = strings.ToUpper(col.Type)
		// An INTEGER PRIMARY KEY aliases the rowid and can never hold NULL.
		col.Nullable = notNull == 0 && pk == 0
		columns = append(columns, col)
	}
	return columns, rows.Err()
}

func (i *SQLiteIntrospector) indexes(ctx context.Context, table string) ([]Index, error) {
	rows, err := i.db.QueryContext(ctx, `SELECT name, "unique", origin FROM pragma_index_list(?) ORDER BY name`, table)
	if err != nil {
		return nil, err
	}
	var indexes []Index
	for rows.Next() {
		var (
			idx    Index
			unique int
			origin string
		)
		if err := rows.Scan(&idx.Name, &unique, &origin); err != nil {
			rows.Close()
			return nil, err
		}
		if origin == "pk" {
			continue
		}
		idx.Unique = unique == 1
		indexes = append(indexes, idx)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for n := range indexes {
		indexes[n].Columns, err = queryStrings(ctx, i.db, `SELECT name FROM pragma_index_info(?) ORDER BY seqno`, indexes[n].Name)
		if err != nil {
			return nil, err
		}
	}
	return indexes, nil
}

func (i *SQLiteIntrospector) foreignKeys(ctx context.Context, table string) ([]ForeignKey, error) {
	rows, err := i.db.QueryContext(ctx, `SELECT id, "table", "from", "to", on_delete FROM pragma_foreign_key_list(?) ORDER BY id, seq`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	// One row per column; rows of a composite key share an id.
	var (
		fks  []ForeignKey
		last = -1
	)
	for rows.Next() {
		var (
			id                         int
			target, from, to, onDelete string
		)
		if err := rows.Scan(&id, &target, &from, &to, &onDelete); err != nil {
			return nil, err
		}
		if id != last {
			fks = append(fks, ForeignKey{ReferencedTable: target, OnDelete: onDelete})
			last = id
		}
		fk := &fks[len(fks)-1]
		fk.Columns = append(fk.Columns, from)
		fk.ReferencedColumns = append(fk.ReferencedColumns, to)
	}
	return fks, rows.Err()
}
