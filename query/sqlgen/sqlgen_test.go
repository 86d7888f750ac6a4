package sqlgen

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/satishbabariya/commerce-client/query/dialect"
)

func intp(n int) *int { return &n }

func TestSelect(t *testing.T) {
	where := NewWhereClause()
	where.AddCondition(Condition{Table: "t0", Field: "email", Operator: "LIKE", Value: "%@x.com", Insensitive: true})
	where.AddCondition(Condition{Table: "t0", Field: "id", Operator: "IN", Value: []interface{}{1, 2}})

	s := Select{
		Table:   "User",
		Alias:   "t0",
		Columns: []string{"id", "email"},
		Where:   where,
		OrderBy: []OrderBy{{Field: "name", Direction: "desc"}, {Field: "id", Direction: "ASC"}},
		Limit:   intp(2),
		Offset:  intp(4),
	}

	tests := []struct {
		name string
		d    dialect.Dialect
		sql  string
	}{
		{
			name: "postgres",
			d:    dialect.Postgres{},
			sql: `SELECT t0."id", t0."email" FROM "User" AS t0 WHERE LOWER(t0."email") LIKE LOWER($1) ESCAPE '!' AND t0."id" IN ($2, $3) ` +
				`ORDER BY t0."name" DESC, t0."id" ASC LIMIT 2 OFFSET 4`,
		},
		{
			name: "mysql",
			d:    dialect.MySQL{},
			sql: "SELECT t0.`id`, t0.`email` FROM `User` AS t0 WHERE LOWER(t0.`email`) LIKE LOWER(?) ESCAPE '!' AND t0.`id` IN (?, ?) " +
				"ORDER BY t0.`name` DESC, t0.`id` ASC LIMIT 2 OFFSET 4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := NewGenerator(tt.d).Select(s)
			assert.Equal(t, tt.sql, q.SQL)
			assert.Equal(t, []interface{}{"%@x.com", 1, 2}, q.Args)
		})
	}
}

func TestSelect_OffsetWithoutLimit(t *testing.T) {
	s := Select{Table: "User", Alias: "t0", Columns: []string{"id"}, Offset: intp(3)}

	assert.Equal(t, `SELECT t0."id" FROM "User" AS t0 LIMIT -1 OFFSET 3`, NewGenerator(dialect.SQLite{}).Select(s).SQL)
	assert.Equal(t, `SELECT t0."id" FROM "User" AS t0 LIMIT ALL OFFSET 3`, NewGenerator(dialect.Postgres{}).Select(s).SQL)
}

func TestWhere_Constants(t *testing.T) {
	g := NewGenerator(dialect.SQLite{})

	and := NewWhereClause()
	q := g.Select(Select{Table: "User", Alias: "t0", Columns: []string{"id"}, Where: And(and)})
	assert.Equal(t, `SELECT t0."id" FROM "User" AS t0 WHERE (1=1)`, q.SQL)

	or := NewWhereClause()
	or.Operator = "OR"
	q = g.Select(Select{Table: "User", Alias: "t0", Columns: []string{"id"}, Where: or})
	assert.Equal(t, `SELECT t0."id" FROM "User" AS t0 WHERE 1=0`, q.SQL)

	in := NewWhereClause()
	in.AddCondition(Condition{Table: "t0", Field: "id", Operator: "IN", Value: []interface{}{}})
	in.AddCondition(Condition{Table: "t0", Field: "id", Operator: "NOT IN", Value: []interface{}{}})
	q = g.Select(Select{Table: "User", Alias: "t0", Columns: []string{"id"}, Where: in})
	assert.Equal(t, `SELECT t0."id" FROM "User" AS t0 WHERE 1=0 AND 1=1`, q.SQL)
	assert.Empty(t, q.Args)
}

func TestWhere_NestedNotAndExists(t *testing.T) {
	sub := NewWhereClause()
	sub.AddCondition(Condition{Table: "t1", Field: "userId", Operator: "=", Value: ColumnRef{Table: "t0", Field: "id"}})
	sub.AddCondition(Condition{Table: "t1", Field: "status", Operator: "=", Value: "shipped"})

	where := NewWhereClause()
	where.AddCondition(Condition{
		Operator: "EXISTS",
		Sub:      &Select{Table: "Order", Alias: "t1", Where: sub},
	})
	nameNull := NewWhereClause()
	nameNull.AddCondition(Condition{Table: "t0", Field: "name", Operator: "IS NULL"})
	where.AddGroup(Not(nameNull))

	q := NewGenerator(dialect.Postgres{}).Select(Select{Table: "User", Alias: "t0", Columns: []string{"id"}, Where: where})
	assert.Equal(t,
		`SELECT t0."id" FROM "User" AS t0 WHERE EXISTS (SELECT 1 FROM "Order" AS t1 WHERE t1."userId" = t0."id" AND t1."status" = $1) AND (NOT ((t0."name" IS NULL)))`,
		q.SQL)
	assert.Equal(t, []interface{}{"shipped"}, q.Args)
}

func TestInsert(t *testing.T) {
	rows := [][]interface{}{{"Ann", "ann@x.com"}, {"Bob", "bob@x.com"}}

	q := NewGenerator(dialect.Postgres{}).Insert("User", []string{"name", "email"}, rows, false, "id")
	assert.Equal(t, `INSERT INTO "User" ("name", "email") VALUES ($1, $2), ($3, $4) RETURNING "id"`, q.SQL)
	assert.Len(t, q.Args, 4)

	q = NewGenerator(dialect.Postgres{}).Insert("User", []string{"name", "email"}, rows, true, "")
	assert.Equal(t, `INSERT INTO "User" ("name", "email") VALUES ($1, $2), ($3, $4) ON CONFLICT DO NOTHING`, q.SQL)

	q = NewGenerator(dialect.SQLite{}).Insert("User", []string{"name"}, [][]interface{}{{"Ann"}}, true, "id")
	assert.Equal(t, `INSERT OR IGNORE INTO "User" ("name") VALUES (?)`, q.SQL)

	q = NewGenerator(dialect.MySQL{}).Insert("User", []string{"name"}, [][]interface{}{{"Ann"}}, true, "id")
	assert.Equal(t, "INSERT IGNORE INTO `User` (`name`) VALUES (?)", q.SQL)

	q = NewGenerator(dialect.MySQL{}).Insert("Warehouse", nil, nil, false, "")
	assert.Equal(t, "INSERT INTO `Warehouse` () VALUES ()", q.SQL)
}

func TestUpdate_RelativeOperators(t *testing.T) {
	where := NewWhereClause()
	where.AddCondition(Condition{Field: "id", Operator: "=", Value: int64(7)})

	q := NewGenerator(dialect.Postgres{}).Update("Wallet", []Assignment{
		{Column: "balance", Op: "+", Value: "10"},
		{Column: "currency", Op: "=", Value: "EUR"},
	}, where)

	assert.Equal(t, `UPDATE "Wallet" SET "balance" = "balance" + $1, "currency" = $2 WHERE "id" = $3`, q.SQL)
	assert.Equal(t, []interface{}{"10", "EUR", int64(7)}, q.Args)

	q = NewGenerator(dialect.MySQL{}).Update("SatisfactionSurvey", []Assignment{
		{Column: "rating", Op: "DIV", Value: int64(2)},
	}, where)
	assert.Equal(t, "UPDATE `SatisfactionSurvey` SET `rating` = `rating` DIV ? WHERE `id` = ?", q.SQL)
}

func TestDelete_KeysIn(t *testing.T) {
	inner := NewWhereClause()
	inner.AddCondition(Condition{Table: "t0", Field: "status", Operator: "=", Value: "cancelled"})

	where := NewWhereClause()
	where.AddCondition(KeysIn("id", Select{
		Table:   "Order",
		Alias:   "t0",
		Columns: []string{"id"},
		Where:   inner,
		OrderBy: []OrderBy{{Field: "id"}},
		Limit:   intp(5),
	}))

	q := NewGenerator(dialect.MySQL{}).Delete("Order", where)
	assert.Equal(t,
		"DELETE FROM `Order` WHERE `id` IN (SELECT `id` FROM (SELECT DISTINCT t0.`id` FROM `Order` AS t0 WHERE t0.`status` = ? ORDER BY t0.`id` ASC LIMIT 5) AS sub)",
		q.SQL)
	assert.Equal(t, []interface{}{"cancelled"}, q.Args)
}

func TestAggregate(t *testing.T) {
	having := NewWhereClause()
	having.AddCondition(Condition{Table: "t0", Field: "price", Func: "AVG", Operator: ">", Value: 10})

	q := NewGenerator(dialect.Postgres{}).Aggregate(Aggregate{
		Table:   "Product",
		Alias:   "t0",
		GroupBy: []string{"category"},
		Functions: []AggregateFunction{
			{Function: "COUNT", Field: "*", Alias: "_count._all"},
			{Function: "AVG", Field: "price", Alias: "_avg.price"},
		},
		Having:  having,
		OrderBy: []OrderBy{{Field: "price", Func: "SUM", Direction: "DESC"}, {Field: "category"}},
		Limit:   intp(10),
	})

	assert.Equal(t,
		`SELECT t0."category", COUNT(*) AS "_count._all", AVG(t0."price") AS "_avg.price" FROM "Product" AS t0 `+
			`GROUP BY t0."category" HAVING AVG(t0."price") > $1 ORDER BY SUM(t0."price") DESC, t0."category" ASC LIMIT 10`,
		q.SQL)
	assert.Equal(t, []interface{}{10}, q.Args)
}

func TestAggregate_OverSource(t *testing.T) {
	q := NewGenerator(dialect.SQLite{}).Aggregate(Aggregate{
		Alias:     "t0",
		Source:    &Select{Table: "Product", Alias: "t0", Columns: []string{"id", "price"}, OrderBy: []OrderBy{{Field: "id"}}, Limit: intp(3)},
		Functions: []AggregateFunction{{Function: "SUM", Field: "price", Alias: "_sum.price"}},
	})
	assert.Equal(t,
		`SELECT SUM(t0."price") AS "_sum.price" FROM (SELECT t0."id", t0."price" FROM "Product" AS t0 ORDER BY t0."id" ASC LIMIT 3) AS t0`,
		q.SQL)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, "100!%", EscapeLike("100%"))
	assert.Equal(t, "a!_b!!c", EscapeLike("a_b!c"))
}
