package client

import (
	"context"

	"github.com/satishbabariya/commerce-client/runtime/types"
)

// Models exposes the model operations of a client or a transaction.
type Models struct {
	s *session
}

// Model returns the operations of the named model. The name is checked
// when an operation runs.
func (m Models) Model(name string) *ModelClient {
	return &ModelClient{s: m.s, name: name}
}

func (m Models) User() *ModelClient               { return m.Model("User") }
func (m Models) Product() *ModelClient            { return m.Model("Product") }
func (m Models) Order() *ModelClient              { return m.Model("Order") }
func (m Models) Shipment() *ModelClient           { return m.Model("Shipment") }
func (m Models) Warehouse() *ModelClient          { return m.Model("Warehouse") }
func (m Models) TrackingEvent() *ModelClient      { return m.Model("TrackingEvent") }
func (m Models) Wallet() *ModelClient             { return m.Model("Wallet") }
func (m Models) PaymentMethod() *ModelClient      { return m.Model("PaymentMethod") }
func (m Models) Ticket() *ModelClient             { return m.Model("Ticket") }
func (m Models) TicketMessage() *ModelClient      { return m.Model("TicketMessage") }
func (m Models) SatisfactionSurvey() *ModelClient { return m.Model("SatisfactionSurvey") }

// TransactionModel returns the operations of the Transaction model. The
// name Transaction is taken by Client.Transaction.
func (m Models) TransactionModel() *ModelClient { return m.Model("Transaction") }

// ModelClient runs operations on one model.
type ModelClient struct {
	s    *session
	name string
}

// Name returns the model name.
func (m *ModelClient) Name() string {
	return m.name
}

// Op returns a descriptor for a batch Transaction.
func (m *ModelClient) Op(action types.Action, args any) Operation {
	return Operation{Model: m.name, Action: action, Args: args}
}

// FindUnique returns the row matching a unique field, or nil.
func (m *ModelClient) FindUnique(ctx context.Context, args types.FindUniqueArgs) (types.Row, error) {
	return asRow(m.s.execute(ctx, m.name, types.FindUnique, &args))
}

// FindUniqueOrThrow is FindUnique failing with ErrNotFound.
func (m *ModelClient) FindUniqueOrThrow(ctx context.Context, args types.FindUniqueArgs) (types.Row, error) {
	return asRow(m.s.execute(ctx, m.name, types.FindUniqueOrThrow, &args))
}

// FindFirst returns the first matching row, or nil.
func (m *ModelClient) FindFirst(ctx context.Context, args types.FindArgs) (types.Row, error) {
	return asRow(m.s.execute(ctx, m.name, types.FindFirst, &args))
}

// FindFirstOrThrow is FindFirst failing with ErrNotFound.
func (m *ModelClient) FindFirstOrThrow(ctx context.Context, args types.FindArgs) (types.Row, error) {
	return asRow(m.s.execute(ctx, m.name, types.FindFirstOrThrow, &args))
}

func (m *ModelClient) FindMany(ctx context.Context, args types.FindArgs) ([]types.Row, error) {
	return asRows(m.s.execute(ctx, m.name, types.FindMany, &args))
}

func (m *ModelClient) Create(ctx context.Context, args types.CreateArgs) (types.Row, error) {
	return asRow(m.s.execute(ctx, m.name, types.Create, &args))
}

func (m *ModelClient) CreateMany(ctx context.Context, args types.CreateManyArgs) (types.BatchPayload, error) {
	return asBatch(m.s.execute(ctx, m.name, types.CreateMany, &args))
}

func (m *ModelClient) CreateManyAndReturn(ctx context.Context, args types.CreateManyArgs) ([]types.Row, error) {
	return asRows(m.s.execute(ctx, m.name, types.CreateManyAndReturn, &args))
}

// Update changes the row matching a unique field and fails with
// ErrNotFound when there is none.
func (m *ModelClient) Update(ctx context.Context, args types.UpdateArgs) (types.Row, error) {
	return asRow(m.s.execute(ctx, m.name, types.Update, &args))
}

// UpdateMany returns the number of matched rows. Matching nothing is not
// an error.
func (m *ModelClient) UpdateMany(ctx context.Context, args types.UpdateManyArgs) (types.BatchPayload, error) {
	return asBatch(m.s.execute(ctx, m.name, types.UpdateMany, &args))
}

func (m *ModelClient) UpdateManyAndReturn(ctx context.Context, args types.UpdateManyArgs) ([]types.Row, error) {
	return asRows(m.s.execute(ctx, m.name, types.UpdateManyAndReturn, &args))
}

func (m *ModelClient) Upsert(ctx context.Context, args types.UpsertArgs) (types.Row, error) {
	return asRow(m.s.execute(ctx, m.name, types.Upsert, &args))
}

// Delete removes the row matching a unique field and returns it.
func (m *ModelClient) Delete(ctx context.Context, args types.DeleteArgs) (types.Row, error) {
	return asRow(m.s.execute(ctx, m.name, types.Delete, &args))
}

func (m *ModelClient) DeleteMany(ctx context.Context, args types.DeleteManyArgs) (types.BatchPayload, error) {
	return asBatch(m.s.execute(ctx, m.name, types.DeleteMany, &args))
}

func (m *ModelClient) Count(ctx context.Context, args types.CountArgs) (int64, error) {
	v, err := m.s.execute(ctx, m.name, types.Count, &args)
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

func (m *ModelClient) Aggregate(ctx context.Context, args types.AggregateArgs) (types.AggregateResult, error) {
	v, err := m.s.execute(ctx, m.name, types.Aggregate, &args)
	if err != nil {
		return nil, err
	}
	return v.(types.AggregateResult), nil
}

func (m *ModelClient) GroupBy(ctx context.Context, args types.GroupByArgs) ([]types.Row, error) {
	return asRows(m.s.execute(ctx, m.name, types.GroupBy, &args))
}

func asRow(v any, err error) (types.Row, error) {
	if err != nil || v == nil {
		return nil, err
	}
	return v.(types.Row), nil
}

func asRows(v any, err error) ([]types.Row, error) {
	if err != nil {
		return nil, err
	}
	return v.([]types.Row), nil
}

func asBatch(v any, err error) (types.BatchPayload, error) {
	if err != nil {
		return types.BatchPayload{}, err
	}
	return v.(types.BatchPayload), nil
}
