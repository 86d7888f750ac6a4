package compiler

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/commerce-client/query/dialect"
	"github.com/satishbabariya/commerce-client/query/sqlgen"
	"github.com/satishbabariya/commerce-client/runtime/types"
	"github.com/satishbabariya/commerce-client/schema"
)

func compile(t *testing.T, model string, where types.Where) (*sqlgen.Query, error) {
	t.Helper()
	reg := schema.Embedded()
	m, err := reg.DescribeModel(model)
	require.NoError(t, err)

	scope := NewScope(reg)
	alias := scope.Alias()
	clause, err := scope.Where(m, alias, where)
	if err != nil {
		return nil, err
	}
	return sqlgen.NewGenerator(dialect.Postgres{}).Select(sqlgen.Select{
		Table: m.Name, Alias: alias, Columns: []string{"id"}, Where: clause,
	}), nil
}

func TestWhere(t *testing.T) {
	tests := []struct {
		name  string
		model string
		where types.Where
		sql   string
		args  []interface{}
	}{
		{
			name:  "shorthand equality",
			model: "User",
			where: types.Where{"email": "ann@x.com"},
			sql:   `WHERE t0."email" = $1`,
			args:  []interface{}{"ann@x.com"},
		},
		{
			name:  "null",
			model: "SatisfactionSurvey",
			where: types.Where{"comments": nil},
			sql:   `WHERE t0."comments" IS NULL`,
		},
		{
			name:  "not null",
			model: "SatisfactionSurvey",
			where: types.Where{"comments": types.Filter{"not": nil}},
			sql:   `WHERE t0."comments" IS NOT NULL`,
		},
		{
			name:  "comparisons coerce",
			model: "SatisfactionSurvey",
			where: types.Where{"rating": types.Filter{"gte": 3, "lt": 5.0}},
			sql:   `WHERE t0."rating" >= $1 AND t0."rating" < $2`,
			args:  []interface{}{int64(3), int64(5)},
		},
		{
			name:  "in and notIn",
			model: "Order",
			where: types.Where{"status": types.Filter{"in": []string{"pending", "paid"}, "notIn": []any{"void"}}},
			sql:   `WHERE t0."status" IN ($1, $2) AND t0."status" NOT IN ($3)`,
			args:  []interface{}{"pending", "paid", "void"},
		},
		{
			name:  "insensitive contains escapes wildcards",
			model: "User",
			where: types.Where{"name": types.Filter{"contains": "50%", "mode": "insensitive"}},
			sql:   `WHERE LOWER(t0."name") LIKE LOWER($1) ESCAPE '!'`,
			args:  []interface{}{"%50!%%"},
		},
		{
			name:  "startsWith endsWith",
			model: "User",
			where: types.Where{"email": types.Filter{"startsWith": "a", "endsWith": ".com"}},
			sql:   `WHERE t0."email" LIKE $1 ESCAPE '!' AND t0."email" LIKE $2 ESCAPE '!'`,
			args:  []interface{}{"%.com", "a%"},
		},
		{
			name:  "nested not",
			model: "User",
			where: types.Where{"name": types.Filter{"not": types.Filter{"in": []string{"a"}}}},
			sql:   `WHERE (NOT ((t0."name" IN ($1))))`,
			args:  []interface{}{"a"},
		},
		{
			name:  "empty AND is true",
			model: "User",
			where: types.Where{"AND": []types.Where{}},
			sql:   `WHERE (1=1)`,
		},
		{
			name:  "empty OR is false",
			model: "User",
			where: types.Where{"OR": []types.Where{}},
			sql:   `WHERE (1=0)`,
		},
		{
			name:  "OR of filters",
			model: "User",
			where: types.Where{"OR": []types.Where{{"name": "a"}, {"name": "b"}}},
			sql:   `WHERE ((t0."name" = $1) OR (t0."name" = $2))`,
			args:  []interface{}{"a", "b"},
		},
		{
			name:  "NOT list",
			model: "User",
			where: types.Where{"NOT": []any{map[string]any{"name": "a"}, map[string]any{"premiumStatus": true}}},
			sql:   `WHERE (NOT ((t0."name" = $1))) AND (NOT ((t0."premiumStatus" = $2)))`,
			args:  []interface{}{"a", true},
		},
		{
			name:  "some",
			model: "User",
			where: types.Where{"orders": types.Where{"some": types.Where{"status": "paid"}}},
			sql:   `WHERE EXISTS (SELECT 1 FROM "Order" AS t1 WHERE t1."userId" = t0."id" AND (t1."status" = $1))`,
			args:  []interface{}{"paid"},
		},
		{
			name:  "none",
			model: "User",
			where: types.Where{"orders": types.Where{"none": types.Where{}}},
			sql:   `WHERE NOT EXISTS (SELECT 1 FROM "Order" AS t1 WHERE t1."userId" = t0."id" AND (1=1))`,
		},
		{
			name:  "every",
			model: "Ticket",
			where: types.Where{"surveys": types.Where{"every": types.Where{"rating": types.Filter{"gte": 4}}}},
			sql:   `WHERE NOT EXISTS (SELECT 1 FROM "SatisfactionSurvey" AS t1 WHERE t1."ticketId" = t0."id" AND ((t1."rating" >= $1) IS NOT TRUE))`,
			args:  []interface{}{int64(4)},
		},
		{
			name:  "to-one is",
			model: "Order",
			where: types.Where{"user": types.Where{"is": types.Where{"email": "ann@x.com"}}},
			sql:   `WHERE EXISTS (SELECT 1 FROM "User" AS t1 WHERE t1."id" = t0."userId" AND (t1."email" = $1))`,
			args:  []interface{}{"ann@x.com"},
		},
		{
			name:  "to-one shorthand",
			model: "Order",
			where: types.Where{"product": types.Where{"category": "tools"}},
			sql:   `WHERE EXISTS (SELECT 1 FROM "Product" AS t1 WHERE t1."id" = t0."productId" AND (t1."category" = $1))`,
			args:  []interface{}{"tools"},
		},
		{
			name:  "to-one isNot nested",
			model: "TrackingEvent",
			where: types.Where{"shipment": types.Where{"isNot": types.Where{"order": types.Where{"status": "void"}}}},
			sql: `WHERE NOT EXISTS (SELECT 1 FROM "Shipment" AS t1 WHERE t1."id" = t0."shipmentId" AND ` +
				`(EXISTS (SELECT 1 FROM "Order" AS t2 WHERE t2."id" = t1."orderId" AND (t2."status" = $1))))`,
			args: []interface{}{"void"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := compile(t, tt.model, tt.where)
			require.NoError(t, err)
			assert.Contains(t, q.SQL, tt.sql)
			if tt.args == nil {
				assert.Empty(t, q.Args)
			} else {
				assert.Equal(t, tt.args, q.Args)
			}
		})
	}
}

func TestWhere_Errors(t *testing.T) {
	tests := []struct {
		name  string
		model string
		where types.Where
		kind  error
	}{
		{"unknown field", "User", types.Where{"nickname": "x"}, types.ErrInvalidFilterField},
		{"unknown nested field", "User", types.Where{"OR": []types.Where{{"nickname": "x"}}}, types.ErrInvalidFilterField},
		{"unknown operator", "User", types.Where{"name": types.Filter{"like": "x"}}, types.ErrInvalidFilterField},
		{"contains on Int", "SatisfactionSurvey", types.Where{"rating": types.Filter{"contains": "1"}}, types.ErrInvalidFilterField},
		{"unknown relation op", "User", types.Where{"orders": types.Where{"any": types.Where{}}}, types.ErrInvalidFilterField},
		{"unknown field in relation", "User", types.Where{"orders": types.Where{"some": types.Where{"sku": 1}}}, types.ErrInvalidFilterField},
		{"bad value type", "SatisfactionSurvey", types.Where{"rating": "five"}, types.ErrInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compile(t, tt.model, tt.where)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.kind), err.Error())
		})
	}
}

func TestCoerce(t *testing.T) {
	product, _ := schema.Embedded().DescribeModel("Product")
	price, _ := product.Field("price")

	v, err := Coerce("Product", price, "9.99")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("9.99").Equal(v.(decimal.Decimal)))

	v, err = Coerce("Product", price, 12)
	require.NoError(t, err)
	assert.Equal(t, "12", v.(decimal.Decimal).String())

	order, _ := schema.Embedded().DescribeModel("Order")
	date, _ := order.Field("orderDate")
	v, err = Coerce("Order", date, "2024-03-01T10:00:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC), v)

	_, err = Coerce("Order", date, "yesterday")
	assert.True(t, errors.Is(err, types.ErrInvalidArgument))

	id, _ := order.Field("id")
	v, err = Coerce("Order", id, float64(3))
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)
	for _, bad := range []float64{2.5, 1e19, -1e19, 9223372036854775807} {
		_, err = Coerce("Order", id, bad)
		assert.True(t, errors.Is(err, types.ErrInvalidArgument), "%v", bad)
	}
}

func TestOrderBy(t *testing.T) {
	user, _ := schema.Embedded().DescribeModel("User")

	orders, err := OrderBy(user, types.Order("name", types.Desc))
	require.NoError(t, err)
	assert.Equal(t, []Order{{Field: "name", Desc: true}, {Field: "id"}}, orders)

	orders, err = OrderBy(user, types.OrderByList{{"id": map[string]any{"sort": "desc"}}})
	require.NoError(t, err)
	assert.Equal(t, []Order{{Field: "id", Desc: true}}, orders)

	_, err = OrderBy(user, types.Order("age", "asc"))
	assert.True(t, errors.Is(err, types.ErrInvalidFilterField))

	_, err = OrderBy(user, types.Order("name", "sideways"))
	assert.True(t, errors.Is(err, types.ErrInvalidArgument))

	reversed := Reverse([]Order{{Field: "name", Desc: true}, {Field: "id"}})
	assert.Equal(t, []Order{{Field: "name"}, {Field: "id", Desc: true}}, reversed)
}

func TestKeyset(t *testing.T) {
	orders := []Order{{Field: "name", Desc: true}, {Field: "id"}}
	where := Keyset("t0", orders, map[string]any{"name": "m", "id": int64(4)})

	q := sqlgen.NewGenerator(dialect.SQLite{}).Select(sqlgen.Select{Table: "User", Alias: "t0", Columns: []string{"id"}, Where: where})
	assert.Equal(t,
		`SELECT t0."id" FROM "User" AS t0 WHERE (t0."name" < ?) OR (t0."name" = ? AND t0."id" > ?) OR (t0."name" = ? AND t0."id" = ?)`,
		q.SQL)
	assert.Equal(t, []interface{}{"m", "m", int64(4), "m", int64(4)}, q.Args)
}

func TestUniqueKey(t *testing.T) {
	user, _ := schema.Embedded().DescribeModel("User")

	key, ok := UniqueKey(user, types.Where{"email": "a@x.com", "name": "A"})
	assert.True(t, ok)
	assert.Equal(t, []string{"email"}, key)

	key, ok = UniqueKey(user, types.Where{"id": types.Filter{"equals": 3}})
	assert.True(t, ok)
	assert.Equal(t, []string{"id"}, key)

	_, ok = UniqueKey(user, types.Where{"id": types.Filter{"in": []int{1}}})
	assert.False(t, ok)

	_, err := RequireUnique(user, types.Where{"name": "A"})
	assert.True(t, errors.Is(err, types.ErrInvalidUniqueWhere))

	values, err := UniqueValues(user, []string{"id"}, types.Where{"id": 3})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": int64(3)}, values)
}
