// Package types holds the argument, result and error types shared by the
// query engine and the client runtime.
package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Row is one record. Scalar fields map to Go values (int64, string, bool,
// decimal.Decimal, time.Time, float64 or nil); included relations map to Row,
// []Row or, for _count, map[string]int64.
type Row map[string]any

// Where is a filter tree: field filters, relation filters and AND/OR/NOT.
type Where map[string]any

// Data is the payload of a create or update.
type Data map[string]any

// Filter is a field-level filter such as {"gt": 3, "lt": 10}.
type Filter map[string]any

// Select picks scalar fields and relations. Values are true, false, or
// nested relation arguments (FindArgs or a map of the same shape).
type Select map[string]any

// Include attaches relations on top of all scalar fields.
type Include map[string]any

// SortOrder is the direction of an ordering.
type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

// OrderBy is a single ordering entry, {"field": "asc"}. In groupBy the key
// may also be an aggregate, {"_count": {"field": "desc"}}.
type OrderBy map[string]any

// OrderByList accepts either a single object or an array when decoded from
// JSON. A single object may name only one field, since object keys carry no
// order; use the array form to sort by several fields.
type OrderByList []OrderBy

// UnmarshalJSON implements json.Unmarshaler.
func (l *OrderByList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '{' {
		var single OrderBy
		if err := decodeJSON(b, &single); err != nil {
			return err
		}
		if len(single) > 1 {
			return fmt.Errorf("orderBy object has %d fields, use a list to order by several", len(single))
		}
		*l = OrderByList{single}
		return nil
	}
	var many []OrderBy
	if err := decodeJSON(b, &many); err != nil {
		return err
	}
	*l = many
	return nil
}

// Order builds an ordering list from field/direction pairs.
func Order(pairs ...any) OrderByList {
	out := make(OrderByList, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, OrderBy{fmt.Sprint(pairs[i]): pairs[i+1]})
	}
	return out
}

// Int returns a pointer to n, for Take, Skip and Limit.
func Int(n int) *int {
	return &n
}

// FindArgs are the arguments of findFirst and findMany, and of a to-many
// relation inside select or include.
type FindArgs struct {
	Where    Where       `json:"where,omitempty"`
	OrderBy  OrderByList `json:"orderBy,omitempty"`
	Cursor   Where       `json:"cursor,omitempty"`
	Take     *int        `json:"take,omitempty"`
	Skip     *int        `json:"skip,omitempty"`
	Distinct []string    `json:"distinct,omitempty"`
	Select   Select      `json:"select,omitempty"`
	Include  Include     `json:"include,omitempty"`
}

// FindUniqueArgs are the arguments of findUnique and findUniqueOrThrow.
type FindUniqueArgs struct {
	Where   Where   `json:"where"`
	Select  Select  `json:"select,omitempty"`
	Include Include `json:"include,omitempty"`
}

// CountArgs are the arguments of count.
type CountArgs struct {
	Where   Where       `json:"where,omitempty"`
	OrderBy OrderByList `json:"orderBy,omitempty"`
	Cursor  Where       `json:"cursor,omitempty"`
	Take    *int        `json:"take,omitempty"`
	Skip    *int        `json:"skip,omitempty"`
}

// AggregateSelect lists fields for one aggregate function. For _count the
// key "_all" counts rows.
type AggregateSelect map[string]bool

// AggregateArgs are the arguments of aggregate.
type AggregateArgs struct {
	Where   Where           `json:"where,omitempty"`
	OrderBy OrderByList     `json:"orderBy,omitempty"`
	Cursor  Where           `json:"cursor,omitempty"`
	Take    *int            `json:"take,omitempty"`
	Skip    *int            `json:"skip,omitempty"`
	Count   AggregateSelect `json:"_count,omitempty"`
	Avg     AggregateSelect `json:"_avg,omitempty"`
	Sum     AggregateSelect `json:"_sum,omitempty"`
	Min     AggregateSelect `json:"_min,omitempty"`
	Max     AggregateSelect `json:"_max,omitempty"`
}

// GroupByArgs are the arguments of groupBy. Having is keyed by a by-field
// and holds either a plain field filter or aggregate filters such as
// {"_avg": {"gt": 10}}.
type GroupByArgs struct {
	By      []string        `json:"by"`
	Where   Where           `json:"where,omitempty"`
	Having  Where           `json:"having,omitempty"`
	OrderBy OrderByList     `json:"orderBy,omitempty"`
	Take    *int            `json:"take,omitempty"`
	Skip    *int            `json:"skip,omitempty"`
	Count   AggregateSelect `json:"_count,omitempty"`
	Avg     AggregateSelect `json:"_avg,omitempty"`
	Sum     AggregateSelect `json:"_sum,omitempty"`
	Min     AggregateSelect `json:"_min,omitempty"`
	Max     AggregateSelect `json:"_max,omitempty"`
}

// CreateArgs are the arguments of create.
type CreateArgs struct {
	Data    Data    `json:"data"`
	Select  Select  `json:"select,omitempty"`
	Include Include `json:"include,omitempty"`
}

// CreateManyArgs are the arguments of createMany and createManyAndReturn.
// Select and Include only apply to createManyAndReturn.
type CreateManyArgs struct {
	Data           []Data  `json:"data"`
	SkipDuplicates bool    `json:"skipDuplicates,omitempty"`
	Select         Select  `json:"select,omitempty"`
	Include        Include `json:"include,omitempty"`
}

// UpdateArgs are the arguments of update.
type UpdateArgs struct {
	Where   Where   `json:"where"`
	Data    Data    `json:"data"`
	Select  Select  `json:"select,omitempty"`
	Include Include `json:"include,omitempty"`
}

// UpdateManyArgs are the arguments of updateMany and updateManyAndReturn.
type UpdateManyArgs struct {
	Where   Where   `json:"where,omitempty"`
	Data    Data    `json:"data"`
	Limit   *int    `json:"limit,omitempty"`
	Select  Select  `json:"select,omitempty"`
	Include Include `json:"include,omitempty"`
}

// UpsertArgs are the arguments of upsert.
type UpsertArgs struct {
	Where   Where   `json:"where"`
	Create  Data    `json:"create"`
	Update  Data    `json:"update"`
	Select  Select  `json:"select,omitempty"`
	Include Include `json:"include,omitempty"`
}

// DeleteArgs are the arguments of delete.
type DeleteArgs struct {
	Where   Where   `json:"where"`
	Select  Select  `json:"select,omitempty"`
	Include Include `json:"include,omitempty"`
}

// DeleteManyArgs are the arguments of deleteMany.
type DeleteManyArgs struct {
	Where Where `json:"where,omitempty"`
	Limit *int  `json:"limit,omitempty"`
}

// BatchPayload is the result of the count-returning batch mutations.
type BatchPayload struct {
	Count int64 `json:"count"`
}

// AggregateResult maps an aggregate function (_count, _avg, ...) to its
// per-field values.
type AggregateResult map[string]map[string]any

// AsMap returns v as a plain map when it is any of the map-shaped argument types.
func AsMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Where:
		return m, true
	case Data:
		return m, true
	case Filter:
		return m, true
	case Row:
		return m, true
	case Select:
		return m, true
	case Include:
		return m, true
	case OrderBy:
		return m, true
	default:
		return nil, false
	}
}

// AsList returns v as a slice when it is one of the list-shaped argument types.
func AsList(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case []Where:
		out := make([]any, len(l))
		for i := range l {
			out[i] = l[i]
		}
		return out, true
	case []Data:
		out := make([]any, len(l))
		for i := range l {
			out[i] = l[i]
		}
		return out, true
	case []map[string]any:
		out := make([]any, len(l))
		for i := range l {
			out[i] = l[i]
		}
		return out, true
	default:
		return nil, false
	}
}

func decodeJSON(b []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	return dec.Decode(v)
}

// Convert decodes raw arguments into the typed args struct out. raw may
// already be *T or T, a map or JSON bytes.
func Convert(raw any, out any) error {
	if raw == nil {
		return nil
	}
	var b []byte
	switch r := raw.(type) {
	case []byte:
		b = r
	case json.RawMessage:
		b = r
	case string:
		b = []byte(r)
	default:
		var err error
		if b, err = json.Marshal(raw); err != nil {
			return NewError(ErrInvalidArgument, "encode args: %v", err)
		}
	}
	if err := decodeJSON(b, out); err != nil {
		return NewError(ErrInvalidArgument, "decode args: %v", err)
	}
	return nil
}
