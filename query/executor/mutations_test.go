package executor

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/commerce-client/runtime/types"
)

func TestNestedCreate(t *testing.T) {
	ctx := context.Background()
	e := newExecutor(t)
	widget := mustCreate(t, e, "Product", types.Data{"name": "Widget", "category": "tools", "price": "9.99"})

	user, err := e.Create(ctx, "User", types.CreateArgs{
		Data: types.Data{
			"name":  "Ann",
			"email": "ann@x.com",
			"orders": map[string]any{
				"create": []any{
					map[string]any{"product": map[string]any{"connect": map[string]any{"id": widget["id"]}}},
					map[string]any{"status": "shipped", "product": map[string]any{"create": map[string]any{
						"name": "Gadget", "category": "tools", "price": "20",
					}}},
				},
			},
		},
		Include: types.Include{"orders": map[string]any{"orderBy": map[string]any{"id": "asc"}, "include": map[string]any{"product": true}}},
	})
	require.NoError(t, err)

	orders := user["orders"].([]types.Row)
	require.Len(t, orders, 2)
	assert.Equal(t, user["id"], orders[0]["userId"])
	assert.Equal(t, "pending", orders[0]["status"])
	assert.Equal(t, "Widget", orders[0]["product"].(types.Row)["name"])
	assert.Equal(t, "Gadget", orders[1]["product"].(types.Row)["name"])

	n, err := e.Count(ctx, "Product", types.CountArgs{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestNestedCreateRollsBack(t *testing.T) {
	ctx := context.Background()
	e := newExecutor(t)

	_, err := e.Create(ctx, "User", types.CreateArgs{Data: types.Data{
		"name":  "Ann",
		"email": "ann@x.com",
		"orders": map[string]any{
			"create": map[string]any{"product": map[string]any{"connect": map[string]any{"id": 404}}},
		},
	}})
	require.Error(t, err)
	assert.True(t, types.IsNotFound(err))

	n, err := e.Count(ctx, "User", types.CountArgs{})
	require.NoError(t, err)
	assert.Zero(t, n, "the user insert must be rolled back with the failed nested write")
}

func TestNestedWriteConflicts(t *testing.T) {
	ctx := context.Background()
	e := newExecutor(t)
	f := seed(t, e)

	_, err := e.Create(ctx, "Order", types.CreateArgs{Data: types.Data{
		"userId":    f.ann["id"],
		"user":      map[string]any{"connect": map[string]any{"id": f.ann["id"]}},
		"productId": f.bolt["id"],
	}})
	assert.ErrorIs(t, err, types.ErrInvalidArgument)

	_, err = e.Create(ctx, "User", types.CreateArgs{Data: types.Data{
		"name": "Carl", "email": "carl@x.com",
		"orders": map[string]any{"upsert": map[string]any{}},
	}})
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}

func TestCreateMany(t *testing.T) {
	ctx := context.Background()
	e := newExecutor(t)
	mustCreate(t, e, "User", types.Data{"name": "Ann", "email": "ann@x.com"})

	res, err := e.CreateMany(ctx, "User", types.CreateManyArgs{Data: []types.Data{
		{"name": "Bob", "email": "bob@x.com"},
		{"name": "Carl", "email": "carl@x.com", "premiumStatus": true},
	}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Count)

	_, err = e.CreateMany(ctx, "User", types.CreateManyArgs{Data: []types.Data{
		{"name": "Dora", "email": "dora@x.com"},
		{"name": "Ann again", "email": "ann@x.com"},
	}})
	assert.True(t, types.IsUniqueConstraint(err))

	res, err = e.CreateMany(ctx, "User", types.CreateManyArgs{
		SkipDuplicates: true,
		Data: []types.Data{
			{"name": "Dora", "email": "dora@x.com"},
			{"name": "Ann again", "email": "ann@x.com"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Count)

	n, err := e.Count(ctx, "User", types.CountArgs{})
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	_, err = e.CreateMany(ctx, "User", types.CreateManyArgs{Data: []types.Data{
		{"name": "Eve", "email": "eve@x.com", "orders": map[string]any{"create": map[string]any{}}},
	}})
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}

func TestCreateManyLargeBatch(t *testing.T) {
	ctx := context.Background()
	e := newExecutor(t)
	ticket := mustCreate(t, e, "Ticket", types.Data{"userId": 1, "referenceId": 1, "issueType": "billing"})

	data := make([]types.Data, 1200)
	for i := range data {
		data[i] = types.Data{"ticketId": ticket["id"], "sender": "bot", "content": "ping"}
	}
	res, err := e.CreateMany(ctx, "TicketMessage", types.CreateManyArgs{Data: data})
	require.NoError(t, err)
	assert.Equal(t, int64(1200), res.Count)

	got, err := e.FindUnique(ctx, "Ticket", types.FindUniqueArgs{
		Where:   types.Where{"id": ticket["id"]},
		Include: types.Include{"_count": true},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"messages": int64(1200), "surveys": int64(0)}, got["_count"])
}

func TestCreateManyAndReturn(t *testing.T) {
	ctx := context.Background()
	e := newExecutor(t)
	mustCreate(t, e, "User", types.Data{"name": "Ann", "email": "ann@x.com"})

	rows, err := e.CreateManyAndReturn(ctx, "User", types.CreateManyArgs{
		SkipDuplicates: true,
		Data: []types.Data{
			{"name": "Bob", "email": "bob@x.com"},
			{"name": "Ann again", "email": "ann@x.com"},
			{"name": "Carl", "email": "carl@x.com"},
		},
		Select: types.Select{"email": true},
	})
	require.NoError(t, err)
	assert.Equal(t, []types.Row{{"email": "bob@x.com"}, {"email": "carl@x.com"}}, rows)
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	e := newExecutor(t)
	f := seed(t, e)

	row, err := e.Update(ctx, "Product", types.UpdateArgs{
		Where: types.Where{"id": f.gadget["id"]},
		Data:  types.Data{"price": map[string]any{"increment": 5}, "name": "Gadget Pro"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Gadget Pro", row["name"])
	assert.True(t, decimal.RequireFromString("25").Equal(row["price"].(decimal.Decimal)))

	_, err = e.Update(ctx, "Product", types.UpdateArgs{Where: types.Where{"id": 404}, Data: types.Data{"name": "x"}})
	assert.True(t, types.IsNotFound(err))

	_, err = e.Update(ctx, "Product", types.UpdateArgs{Where: types.Where{"category": "tools"}, Data: types.Data{"name": "x"}})
	assert.ErrorIs(t, err, types.ErrInvalidUniqueWhere)

	_, err = e.Update(ctx, "Order", types.UpdateArgs{Where: types.Where{"id": f.orders[0]["id"]}, Data: types.Data{"userId": f.bob["id"]}})
	assert.ErrorIs(t, err, types.ErrInvalidArgument)

	_, err = e.Update(ctx, "Product", types.UpdateArgs{Where: types.Where{"id": f.widget["id"]}, Data: types.Data{"price": map[string]any{"divide": 0}}})
	assert.ErrorIs(t, err, types.ErrInvalidArgument)

	_, err = e.Update(ctx, "Product", types.UpdateArgs{Where: types.Where{"id": f.widget["id"]}, Data: types.Data{"name": map[string]any{"increment": 1}}})
	assert.ErrorIs(t, err, types.ErrInvalidArgument)

	// A unique collision surfaces as a constraint error.
	_, err = e.Update(ctx, "User", types.UpdateArgs{Where: types.Where{"id": f.bob["id"]}, Data: types.Data{"email": "ann@x.com"}})
	assert.True(t, types.IsUniqueConstraint(err))
}

func TestUpdateRelations(t *testing.T) {
	ctx := context.Background()
	e := newExecutor(t)
	f := seed(t, e)

	order, err := e.Update(ctx, "Order", types.UpdateArgs{
		Where:   types.Where{"id": f.orders[0]["id"]},
		Data:    types.Data{"user": map[string]any{"connect": map[string]any{"email": "bob@x.com"}}},
		Include: types.Include{"user": true},
	})
	require.NoError(t, err)
	assert.Equal(t, f.bob["id"], order["userId"])
	assert.Equal(t, "Bob", order["user"].(types.Row)["name"])

	ticket := mustCreate(t, e, "Ticket", types.Data{
		"userId": f.ann["id"], "referenceId": f.orders[1]["id"], "issueType": "late",
		"messages": map[string]any{"create": []any{
			map[string]any{"sender": "ann", "content": "where is it?"},
			map[string]any{"sender": "bot", "content": "looking"},
		}},
	})

	updated, err := e.Update(ctx, "Ticket", types.UpdateArgs{
		Where: types.Where{"id": ticket["id"]},
		Data: types.Data{
			"status": "resolved",
			"messages": map[string]any{
				"deleteMany": map[string]any{"sender": "bot"},
				"updateMany": map[string]any{"where": map[string]any{"sender": "ann"}, "data": map[string]any{"content": "found it"}},
				"create":     map[string]any{"sender": "agent", "content": "closing"},
			},
			"surveys": map[string]any{"createMany": map[string]any{"data": []any{
				map[string]any{"rating": 5},
				map[string]any{"rating": 4, "comments": "quick"},
			}}},
		},
		Include: types.Include{
			"messages": map[string]any{"orderBy": map[string]any{"id": "asc"}},
			"surveys":  true,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "resolved", updated["status"])

	messages := updated["messages"].([]types.Row)
	require.Len(t, messages, 2)
	assert.Equal(t, "found it", messages[0]["content"])
	assert.Equal(t, "agent", messages[1]["sender"])
	assert.Len(t, updated["surveys"], 2)
}

func TestUpdateConnectMovesChild(t *testing.T) {
	ctx := context.Background()
	e := newExecutor(t)
	f := seed(t, e)

	bob, err := e.Update(ctx, "User", types.UpdateArgs{
		Where:   types.Where{"id": f.bob["id"]},
		Data:    types.Data{"orders": map[string]any{"connect": map[string]any{"id": f.orders[1]["id"]}}},
		Include: types.Include{"_count": true},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"orders": int64(3)}, bob["_count"])

	_, err = e.Update(ctx, "User", types.UpdateArgs{
		Where: types.Where{"id": f.bob["id"]},
		Data:  types.Data{"orders": map[string]any{"connect": map[string]any{"id": 404}}},
	})
	assert.True(t, types.IsNotFound(err))
}

func TestUpdateMany(t *testing.T) {
	ctx := context.Background()
	e := newExecutor(t)
	f := seed(t, e)

	res, err := e.UpdateMany(ctx, "Order", types.UpdateManyArgs{
		Where: types.Where{"status": "lost"},
		Data:  types.Data{"status": "found"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Count)

	res, err = e.UpdateMany(ctx, "Order", types.UpdateManyArgs{
		Where: types.Where{"user": map[string]any{"is": map[string]any{"name": "Ann"}}},
		Data:  types.Data{"status": "archived"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Count)

	res, err = e.UpdateMany(ctx, "Order", types.UpdateManyArgs{
		Where: types.Where{"status": "archived"},
		Data:  types.Data{"status": "purged"},
		Limit: types.Int(1),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Count)

	got, err := e.FindUnique(ctx, "Order", types.FindUniqueArgs{Where: types.Where{"id": f.orders[0]["id"]}})
	require.NoError(t, err)
	assert.Equal(t, "purged", got["status"])

	_, err = e.UpdateMany(ctx, "Order", types.UpdateManyArgs{Data: types.Data{"status": "x"}, Limit: types.Int(-1)})
	assert.ErrorIs(t, err, types.ErrInvalidArgument)

	rows, err := e.UpdateManyAndReturn(ctx, "Product", types.UpdateManyArgs{
		Where:  types.Where{"category": "tools"},
		Data:   types.Data{"category": "equipment"},
		Select: types.Select{"name": true, "category": true},
	})
	require.NoError(t, err)
	assert.Equal(t, []types.Row{
		{"name": "Widget", "category": "equipment"},
		{"name": "Gadget", "category": "equipment"},
	}, rows)
}

func TestUpsert(t *testing.T) {
	ctx := context.Background()
	e := newExecutor(t)

	args := types.UpsertArgs{
		Where:  types.Where{"email": "ann@x.com"},
		Create: types.Data{"name": "Ann", "email": "ann@x.com"},
		Update: types.Data{"premiumStatus": true},
	}
	created, err := e.Upsert(ctx, "User", args)
	require.NoError(t, err)
	assert.Equal(t, false, created["premiumStatus"])

	updated, err := e.Upsert(ctx, "User", args)
	require.NoError(t, err)
	assert.Equal(t, created["id"], updated["id"])
	assert.Equal(t, true, updated["premiumStatus"])

	n, err := e.Count(ctx, "User", types.CountArgs{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	e := newExecutor(t)
	f := seed(t, e)

	_, err := e.Delete(ctx, "User", types.DeleteArgs{Where: types.Where{"id": f.ann["id"]}})
	require.Error(t, err)
	assert.True(t, types.IsForeignKeyConstraint(err))

	order, err := e.Delete(ctx, "Order", types.DeleteArgs{
		Where:   types.Where{"id": f.orders[0]["id"]},
		Include: types.Include{"product": true},
	})
	require.NoError(t, err)
	assert.Equal(t, "Widget", order["product"].(types.Row)["name"])

	_, err = e.Delete(ctx, "Order", types.DeleteArgs{Where: types.Where{"id": f.orders[0]["id"]}})
	assert.True(t, types.IsNotFound(err))
}

func TestDeleteMany(t *testing.T) {
	ctx := context.Background()
	e := newExecutor(t)
	seed(t, e)

	res, err := e.DeleteMany(ctx, "Order", types.DeleteManyArgs{Where: types.Where{"status": "pending"}, Limit: types.Int(1)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Count)

	res, err = e.DeleteMany(ctx, "Order", types.DeleteManyArgs{Limit: types.Int(0)})
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Count)

	res, err = e.DeleteMany(ctx, "Order", types.DeleteManyArgs{
		Where: types.Where{"product": map[string]any{"is": map[string]any{"category": "tools"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Count)

	n, err := e.Count(ctx, "Order", types.CountArgs{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = e.DeleteMany(ctx, "Product", types.DeleteManyArgs{})
	assert.True(t, types.IsForeignKeyConstraint(err))
}
