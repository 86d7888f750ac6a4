package compiler

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/satishbabariya/commerce-client/runtime/types"
	"github.com/satishbabariya/commerce-client/schema"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02",
}

// Coerce converts v to the canonical Go type of the field: int64, float64,
// string, bool, decimal.Decimal or time.Time (UTC). nil is returned as is.
func Coerce(model string, f *schema.Field, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	out, ok := coerce(f.Type, v)
	if !ok {
		return nil, types.NewError(types.ErrInvalidArgument, "cannot use %v (%T) as %s", v, v, f.Type).
			WithModel(model).WithField(f.Name)
	}
	return out, nil
}

func coerce(t schema.ScalarType, v any) (any, bool) {
	switch t {
	case schema.Int:
		return toInt(v)
	case schema.Float:
		return toFloat(v)
	case schema.String:
		switch s := v.(type) {
		case string:
			return s, true
		case []byte:
			return string(s), true
		}
	case schema.Boolean:
		switch b := v.(type) {
		case bool:
			return b, true
		case int64:
			return b != 0, true
		case []byte:
			parsed, err := strconv.ParseBool(string(b))
			return parsed, err == nil
		}
	case schema.Decimal:
		return toDecimal(v)
	case schema.DateTime:
		return toTime(v)
	}
	return nil, false
}

func toInt(v any) (any, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), n <= math.MaxInt64
	case float64:
		return int64(n), n == math.Trunc(n) && n >= math.MinInt64 && n < math.MaxInt64
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case []byte:
		i, err := strconv.ParseInt(string(n), 10, 64)
		return i, err == nil
	}
	return nil, false
}

func toFloat(v any) (any, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case decimal.Decimal:
		f, _ := n.Float64()
		return f, true
	case []byte:
		f, err := strconv.ParseFloat(string(n), 64)
		return f, err == nil
	}
	if i, ok := toInt(v); ok {
		return float64(i.(int64)), true
	}
	return nil, false
}

func toDecimal(v any) (any, bool) {
	switch n := v.(type) {
	case decimal.Decimal:
		return n, true
	case *decimal.Decimal:
		if n == nil {
			return nil, false
		}
		return *n, true
	case string:
		d, err := decimal.NewFromString(n)
		return d, err == nil
	case []byte:
		d, err := decimal.NewFromString(string(n))
		return d, err == nil
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(n), true
	case float32:
		return decimal.NewFromFloat32(n), true
	}
	if i, ok := toInt(v); ok {
		return decimal.NewFromInt(i.(int64)), true
	}
	return nil, false
}

func toTime(v any) (any, bool) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), true
	case *time.Time:
		if t == nil {
			return nil, false
		}
		return t.UTC(), true
	case []byte:
		return toTime(string(t))
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed.UTC(), true
			}
		}
	}
	return nil, false
}

// CoerceList coerces every element of a list argument such as in/notIn.
func CoerceList(model string, f *schema.Field, v any) ([]any, error) {
	list, ok := types.AsList(v)
	if !ok {
		list, ok = anyList(v)
	}
	if !ok {
		return nil, types.NewError(types.ErrInvalidArgument, "expected a list, got %T", v).WithModel(model).WithField(f.Name)
	}
	out := make([]any, len(list))
	for i, item := range list {
		c, err := Coerce(model, f, item)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

// anyList handles typed slices of scalars such as []int64 or []string.
func anyList(v any) ([]any, bool) {
	switch l := v.(type) {
	case []int:
		return convertSlice(l), true
	case []int64:
		return convertSlice(l), true
	case []string:
		return convertSlice(l), true
	case []decimal.Decimal:
		return convertSlice(l), true
	case []time.Time:
		return convertSlice(l), true
	case []bool:
		return convertSlice(l), true
	case []float64:
		return convertSlice(l), true
	}
	return nil, false
}

func convertSlice[T any](in []T) []any {
	out := make([]any, len(in))
	for i := range in {
		out[i] = in[i]
	}
	return out
}
