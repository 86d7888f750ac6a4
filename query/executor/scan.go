package executor

import (
	"cmp"
	"database/sql"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/satishbabariya/commerce-client/query/compiler"
	"github.com/satishbabariya/commerce-client/runtime/types"
	"github.com/satishbabariya/commerce-client/schema"
)

// scanRows reads rows whose columns are scalar fields of m and converts
// every value to the field's Go type. rows is closed.
func scanRows(m *schema.Model, rows *sql.Rows) ([]types.Row, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}
	fields := make([]*schema.Field, len(columns))
	for i, c := range columns {
		f, ok := m.Field(c)
		if !ok {
			return nil, types.Errorf(types.ErrEngine, m.Name, "unexpected column %q", c)
		}
		fields[i] = f
	}

	var out []types.Row
	for rows.Next() {
		raw, err := scanValues(rows, len(columns))
		if err != nil {
			return nil, err
		}
		row := make(types.Row, len(columns))
		for i, f := range fields {
			v, err := compiler.Coerce(m.Name, f, raw[i])
			if err != nil {
				return nil, types.Errorf(types.ErrEngine, m.Name, "failed to decode column %q", f.Name).WithCause(err)
			}
			row[f.Name] = v
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}

// scanValues scans the current row into untyped values.
func scanValues(rows *sql.Rows, n int) ([]any, error) {
	values := make([]any, n)
	ptrs := make([]any, n)
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}
	return values, nil
}

// sameValue compares two decoded field values.
func sameValue(a, b any) bool {
	switch x := a.(type) {
	case decimal.Decimal:
		y, ok := b.(decimal.Decimal)
		return ok && x.Equal(y)
	case time.Time:
		y, ok := b.(time.Time)
		return ok && x.Equal(y)
	}
	return a == b
}

// valueKey renders decoded values as a map key.
func valueKey(values ...any) string {
	var b strings.Builder
	for _, v := range values {
		switch x := v.(type) {
		case decimal.Decimal:
			fmt.Fprintf(&b, "d:%s", x.String())
		case time.Time:
			fmt.Fprintf(&b, "t:%d", x.UnixNano())
		case nil:
			b.WriteString("n:")
		default:
			fmt.Fprintf(&b, "%T:%v", v, v)
		}
		b.WriteByte(0)
	}
	return b.String()
}

// compareValues orders two decoded values of the same field. nil sorts first.
func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	switch x := a.(type) {
	case int64:
		return cmp.Compare(x, b.(int64))
	case float64:
		return cmp.Compare(x, b.(float64))
	case string:
		return strings.Compare(x, b.(string))
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		}
		return 1
	case decimal.Decimal:
		return x.Cmp(b.(decimal.Decimal))
	case time.Time:
		return x.Compare(b.(time.Time))
	}
	return 0
}

// sortRows sorts rows by orders, keeping the relative order of ties.
func sortRows(rows []types.Row, orders []compiler.Order) {
	slices.SortStableFunc(rows, func(a, b types.Row) int {
		for _, o := range orders {
			c := compareValues(a[o.Field], b[o.Field])
			if o.Desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})
}
