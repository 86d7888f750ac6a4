package introspect

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// MySQLIntrospector implements introspection for MySQL through
// information_schema, scoped to the connection's database.
type MySQLIntrospector struct {
	db *sql.DB
}

// Introspect reads the MySQL database schema
func (i *MySQLIntrospector) Introspect(ctx context.Context) (*DatabaseSchema, error) {
	names, err := queryStrings(ctx, i.db, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = DATABASE()
		  AND table_type = 'BASE TABLE'
		ORDER BY table_name`)
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

func (i *MySQLIntrospector) columns(ctx context.Context, table string) ([]Column, error) {
	rows, err := i.db.QueryContext(ctx, `
		SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = DATABASE()
		  AND table_name = ?
		ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []Column
	for rows.Next() {
		var (
			col        Column
			isNullable string
		)
		if err := rows.Scan(&col.Name, &col.Type, &isNullable); err != nil {
			return nil, err
		}
		col.Type = strings.ToUpper(col.Type)
		col.Nullable = isNullable == "YES"
		columns = append(columns, col)
	}
	return columns, rows.Err()
}

func (i *MySQLIntrospector) indexes(ctx context.Context, table string) ([]Index, error) {
	rows, err := i.db.QueryContext(ctx, `
		SELECT
			index_name,
			GROUP_CONCAT(column_name ORDER BY seq_in_index),
			MAX(non_unique)
		FROM information_schema.statistics
		WHERE table_schema = DATABASE()
		  AND table_name = ?
		  AND index_name != 'PRIMARY'
		GROUP BY index_name
		ORDER BY index_name`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var indexes []Index
	for rows.Next() {
		var (
			idx       Index
			columns   string
			nonUnique int
		)
		if err := rows.Scan(&idx.Name, &columns, &nonUnique); err != nil {
			return nil, err
		}
		idx.Columns = strings.Split(columns, ",")
		idx.Unique = nonUnique == 0
		indexes = append(indexes, idx)
	}
	return indexes, rows.Err()
}

func (i *MySQLIntrospector) foreignKeys(ctx context.Context, table string) ([]ForeignKey, error) {
	rows, err := i.db.QueryContext(ctx, `
		SELECT
			GROUP_CONCAT(kcu.column_name ORDER BY kcu.ordinal_position),
			kcu.referenced_table_name,
			GROUP_CONCAT(kcu.referenced_column_name ORDER BY kcu.ordinal_position),
			rc.delete_rule
		FROM information_schema.key_column_usage kcu
		JOIN information_schema.referential_constraints rc
			ON kcu.constraint_name = rc.constraint_name
			AND kcu.constraint_schema = rc.constraint_schema
		WHERE kcu.table_schema = DATABASE()
		  AND kcu.table_name = ?
		  AND kcu.referenced_table_name IS NOT NULL
		GROUP BY kcu.constraint_name, kcu.referenced_table_name, rc.delete_rule
		ORDER BY kcu.constraint_name`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fks []ForeignKey
	for rows.Next() {
		var (
			fk               ForeignKey
			columns, targets string
		)
		if err := rows.Scan(&columns, &fk.ReferencedTable, &targets, &fk.OnDelete); err != nil {
			return nil, err
		}
		fk.Columns = strings.Split(columns, ",")
		fk.ReferencedColumns = strings.Split(targets, ",")
		fks = append(fks, fk)
	}
	return fks, rows.Err()
}
