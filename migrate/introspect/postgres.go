package introspect

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// PostgresIntrospector implements introspection for PostgreSQL through
// information_schema and pg_catalog. It reads the current schema only.
type PostgresIntrospector struct {
	db *sql.DB
}

// Introspect reads the PostgreSQL database schema
func (i *PostgresIntrospector) Introspect(ctx context.Context) (*DatabaseSchema, error) {
	names, err := queryStrings(ctx, i.db, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = current_schema()
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

func (i *PostgresIntrospector) columns(ctx context.Context, table string) ([]Column, error) {
	rows, err := i.db.QueryContext(ctx, `
		SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = current_schema()
		  AND table_name = $1
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

func (i *PostgresIntrospector) indexes(ctx context.Context, table string) ([]Index, error) {
	rows, err := i.db.QueryContext(ctx, `
		SELECT
			i.relname,
			array_agg(a.attname::text ORDER BY array_position(ix.indkey, a.attnum)),
			ix.indisunique
		FROM pg_class t
		JOIN pg_index ix ON t.oid = ix.indrelid
		JOIN pg_class i ON i.oid = ix.indexrelid
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(ix.indkey)
		JOIN pg_namespace n ON n.oid = t.relnamespace
		WHERE n.nspname = current_schema()
		  AND t.relname = $1
		  AND NOT ix.indisprimary
		GROUP BY i.relname, ix.indisunique
		ORDER BY i.relname`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var indexes []Index
	for rows.Next() {
		var (
			idx     Index
			columns pq.StringArray
		)
		if err := rows.Scan(&idx.Name, &columns, &idx.Unique); err != nil {
			return nil, err
		}
		idx.Columns = columns
		indexes = append(indexes, idx)
	}
	return indexes, rows.Err()
}

func (i *PostgresIntrospector) foreignKeys(ctx context.Context, table string) ([]ForeignKey, error) {
	rows, err := i.db.QueryContext(ctx, `
		SELECT
			array_agg(kcu.column_name::text ORDER BY kcu.ordinal_position),
			ccu.table_name,
			array_agg(ccu.column_name::text ORDER BY kcu.ordinal_position),
			rc.delete_rule
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
			ON ccu.constraint_name = tc.constraint_name
			AND ccu.table_schema = tc.table_schema
		JOIN information_schema.referential_constraints rc
			ON rc.constraint_name = tc.constraint_name
			AND rc.constraint_schema = tc.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
		  AND tc.table_schema = current_schema()
		  AND tc.table_name = $1
		GROUP BY tc.constraint_name, ccu.table_name, rc.delete_rule
		ORDER BY tc.constraint_name`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fks []ForeignKey
	for rows.Next() {
		var (
			fk               ForeignKey
			columns, targets pq.StringArray
		)
		if err := rows.Scan(&columns, &fk.ReferencedTable, &targets, &fk.OnDelete); err != nil {
			return nil, err
		}
		fk.Columns, fk.ReferencedColumns = columns, targets
		fks = append(fks, fk)
	}
	return fks, rows.Err()
}
