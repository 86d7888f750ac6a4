package executor

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/commerce-client/runtime/types"
)

func TestAggregate(t *testing.T) {
	ctx := context.Background()
	e := newExecutor(t)
	seed(t, e)

	res, err := e.Aggregate(ctx, "Product", types.AggregateArgs{
		Count: types.AggregateSelect{"_all": true, "name": true},
		Min:   types.AggregateSelect{"price": true, "name": true},
		Max:   types.AggregateSelect{"price": true},
		Sum:   types.AggregateSelect{"price": true},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), res["_count"]["_all"])
	assert.Equal(t, int64(3), res["_count"]["name"])
	assert.Equal(t, "Bolt", res["_min"]["name"])
	assert.True(t, decimal.RequireFromString("0.5").Equal(res["_min"]["price"].(decimal.Decimal)))
	assert.True(t, decimal.RequireFromString("20").Equal(res["_max"]["price"].(decimal.Decimal)))
	assert.True(t, decimal.RequireFromString("30.49").Equal(res["_sum"]["price"].(decimal.Decimal).Round(2)))

	// Aggregates over no rows are null, counts are zero.
	res, err = e.Aggregate(ctx, "Product", types.AggregateArgs{
		Where: types.Where{"category": "toys"},
		Count: types.AggregateSelect{"_all": true},
		Avg:   types.AggregateSelect{"price": true},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), res["_count"]["_all"])
	assert.Nil(t, res["_avg"]["price"])

	// take limits the rows aggregated.
	res, err = e.Aggregate(ctx, "Product", types.AggregateArgs{
		OrderBy: types.Order("price", "asc"),
		Take:    types.Int(2),
		Max:     types.AggregateSelect{"price": true},
	})
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("9.99").Equal(res["_max"]["price"].(decimal.Decimal)))
}

func TestAggregateInvalidField(t *testing.T) {
	ctx := context.Background()
	e := newExecutor(t)

	tests := []struct {
		name string
		args types.AggregateArgs
	}{
		{"avg of string", types.AggregateArgs{Avg: types.AggregateSelect{"name": true}}},
		{"sum of unknown field", types.AggregateArgs{Sum: types.AggregateSelect{"weight": true}}},
		{"max of relation", types.AggregateArgs{Max: types.AggregateSelect{"orders": true}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Aggregate(ctx, "Product", tt.args)
			assert.ErrorIs(t, err, types.ErrInvalidAggregateField)
		})
	}
}

func TestGroupBy(t *testing.T) {
	ctx := context.Background()
	e := newExecutor(t)
	seed(t, e)

	rows, err := e.GroupBy(ctx, "Product", types.GroupByArgs{
		By:      []string{"category"},
		Count:   types.AggregateSelect{"_all": true},
		Max:     types.AggregateSelect{"price": true},
		OrderBy: types.Order("category", "asc"),
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "hardware", rows[0]["category"])
	assert.Equal(t, map[string]any{"_all": int64(1)}, rows[0]["_count"])
	assert.Equal(t, "tools", rows[1]["category"])
	assert.Equal(t, map[string]any{"_all": int64(2)}, rows[1]["_count"])
	assert.True(t, decimal.RequireFromString("20").Equal(rows[1]["_max"].(map[string]any)["price"].(decimal.Decimal)))

	rows, err = e.GroupBy(ctx, "Order", types.GroupByArgs{
		By:      []string{"userId"},
		Count:   types.AggregateSelect{"_all": true},
		Having:  types.Where{"status": map[string]any{"_count": map[string]any{"gt": 1}}},
		OrderBy: types.Order("userId", "asc"),
	})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = e.GroupBy(ctx, "Product", types.GroupByArgs{
		By:     []string{"category"},
		Having: types.Where{"price": map[string]any{"_avg": map[string]any{"gt": 10}}},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, types.Row{"category": "tools"}, rows[0])

	rows, err = e.GroupBy(ctx, "Order", types.GroupByArgs{
		By:      []string{"status"},
		Count:   types.AggregateSelect{"_all": true},
		OrderBy: types.OrderByList{{"_count": map[string]any{"_all": "desc"}}},
		Take:    types.Int(1),
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "pending", rows[0]["status"])
}

func TestGroupByErrors(t *testing.T) {
	ctx := context.Background()
	e := newExecutor(t)

	tests := []struct {
		name string
		args types.GroupByArgs
		kind error
	}{
		{"empty by", types.GroupByArgs{}, types.ErrInvalidGroupBy},
		{"by relation", types.GroupByArgs{By: []string{"orders"}}, types.ErrInvalidGroupBy},
		{"having on a field outside by", types.GroupByArgs{
			By:     []string{"category"},
			Having: types.Where{"name": "Widget"},
		}, types.ErrInvalidGroupBy},
		{"order by a field outside by", types.GroupByArgs{
			By:      []string{"category"},
			OrderBy: types.Order("name", "asc"),
		}, types.ErrInvalidGroupBy},
		{"negative take", types.GroupByArgs{By: []string{"category"}, Take: types.Int(-1)}, types.ErrInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.GroupBy(ctx, "Product", tt.args)
			assert.ErrorIs(t, err, tt.kind)
		})
	}
}
