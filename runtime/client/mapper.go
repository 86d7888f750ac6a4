package client

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/satishbabariya/commerce-client/runtime/types"
)

// Decode maps row onto a struct. Fields match by db tag, json tag or name
// (case-insensitively). Included relations decode into nested structs,
// struct pointers or slices of them; unmatched keys are ignored.
func Decode[T any](row types.Row) (T, error) {
	var out T
	if row == nil {
		return out, types.NewError(types.ErrNotFound, "no row to decode")
	}
	if err := decodeInto(reflect.ValueOf(&out).Elem(), row); err != nil {
		return out, err
	}
	return out, nil
}

// DecodeAll maps every row with Decode.
func DecodeAll[T any](rows []types.Row) ([]T, error) {
	out := make([]T, 0, len(rows))
	for i, row := range rows {
		v, err := Decode[T](row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func decodeInto(dst reflect.Value, row types.Row) error {
	if dst.Kind() != reflect.Struct {
		return types.NewError(types.ErrInvalidArgument, "cannot decode a row into %s", dst.Type())
	}
	typ := dst.Type()
	for key, value := range row {
		field, ok := findFieldByName(typ, key)
		if !ok {
			continue
		}
		if err := assign(dst.FieldByIndex(field.Index), value); err != nil {
			return types.NewError(types.ErrInvalidArgument, "field %s: %v", key, err).WithField(key)
		}
	}
	return nil
}

var (
	decimalType = reflect.TypeOf(decimal.Decimal{})
	timeType    = reflect.TypeOf(time.Time{})
)

func assign(dst reflect.Value, value any) error {
	if value == nil {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}
	if dst.Kind() == reflect.Pointer {
		p := reflect.New(dst.Type().Elem())
		if err := assign(p.Elem(), value); err != nil {
			return err
		}
		dst.Set(p)
		return nil
	}

	src := reflect.ValueOf(value)
	switch {
	case src.Type().AssignableTo(dst.Type()):
		dst.Set(src)
		return nil
	case dst.Type() == decimalType:
		d, err := toDecimal(value)
		if err != nil {
			return err
		}
		dst.Set(reflect.ValueOf(d))
		return nil
	case dst.Kind() == reflect.Struct && dst.Type() != timeType:
		nested, ok := value.(types.Row)
		if !ok {
			m, isMap := value.(map[string]any)
			if !isMap {
				return fmt.Errorf("cannot decode %T into %s", value, dst.Type())
			}
			nested = m
		}
		return decodeInto(dst, nested)
	case dst.Kind() == reflect.Slice:
		rows, ok := value.([]types.Row)
		if !ok {
			return fmt.Errorf("cannot decode %T into %s", value, dst.Type())
		}
		out := reflect.MakeSlice(dst.Type(), len(rows), len(rows))
		for i, r := range rows {
			if err := assign(out.Index(i), r); err != nil {
				return err
			}
		}
		dst.Set(out)
		return nil
	case numeric(src.Kind()) && numeric(dst.Kind()):
		dst.Set(src.Convert(dst.Type()))
		return nil
	}
	return fmt.Errorf("cannot decode %T into %s", value, dst.Type())
}

func numeric(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Float64
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case string:
		return decimal.NewFromString(n)
	case float64:
		return decimal.NewFromFloat(n), nil
	case int64:
		return decimal.NewFromInt(n), nil
	}
	return decimal.Decimal{}, fmt.Errorf("cannot decode %T into a decimal", v)
}

// findFieldByName finds a struct field by row key (db tag, json tag or field name)
func findFieldByName(typ reflect.Type, key string) (reflect.StructField, bool) {
	var folded *reflect.StructField
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}
		if tagName(field, "db") == key || tagName(field, "json") == key || field.Name == key {
			return field, true
		}
		if folded == nil && strings.EqualFold(field.Name, key) {
			folded = &field
		}
	}
	if folded != nil {
		return *folded, true
	}
	return reflect.StructField{}, false
}

func tagName(field reflect.StructField, tag string) string {
	name, _, _ := strings.Cut(field.Tag.Get(tag), ",")
	return name
}
