package executor

import (
	"context"
	"strings"
	"time"

	"github.com/satishbabariya/commerce-client/query/compiler"
	"github.com/satishbabariya/commerce-client/query/sqlgen"
	"github.com/satishbabariya/commerce-client/runtime/types"
	"github.com/satishbabariya/commerce-client/schema"
)

// maxParams bounds the bound arguments of one multi-row INSERT.
const maxParams = 900

func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// Create inserts a row with its nested writes and returns it.
func (e *Executor) Create(ctx context.Context, model string, args types.CreateArgs) (types.Row, error) {
	m, err := e.model(model)
	if err != nil {
		return nil, err
	}
	sel, err := newSelection(e.reg, m, args.Select, args.Include)
	if err != nil {
		return nil, err
	}

	var out types.Row
	err = e.atomic(ctx, func(tx *Executor) error {
		id, err := tx.createRow(ctx, m, args.Data, now())
		if err != nil {
			return err
		}
		out, err = tx.readBack(ctx, m, sel, id)
		return err
	})
	return out, err
}

// CreateMany inserts rows without nested writes. With skipDuplicates rows
// violating a unique constraint are left out of the count.
func (e *Executor) CreateMany(ctx context.Context, model string, args types.CreateManyArgs) (types.BatchPayload, error) {
	m, err := e.model(model)
	if err != nil {
		return types.BatchPayload{}, err
	}
	var count int64
	err = e.atomic(ctx, func(tx *Executor) error {
		count, err = tx.createManyRows(ctx, m, args.Data, args.SkipDuplicates)
		return err
	})
	return types.BatchPayload{Count: count}, err
}

// CreateManyAndReturn is CreateMany returning the inserted rows.
func (e *Executor) CreateManyAndReturn(ctx context.Context, model string, args types.CreateManyArgs) ([]types.Row, error) {
	m, err := e.model(model)
	if err != nil {
		return nil, err
	}
	sel, err := newSelection(e.reg, m, args.Select, args.Include)
	if err != nil {
		return nil, err
	}

	var out []types.Row
	err = e.atomic(ctx, func(tx *Executor) error {
		ts := now()
		ids := make([]any, 0, len(args.Data))
		for _, data := range args.Data {
			values, err := flatValues(m, data, ts)
			if err != nil {
				return err
			}
			id, inserted, err := tx.insertRow(ctx, m, values, args.SkipDuplicates)
			if err != nil {
				return err
			}
			if inserted {
				ids = append(ids, id)
			}
		}
		out, err = tx.readBackMany(ctx, m, sel, ids)
		return err
	})
	return out, err
}

// Update changes the row identified by a unique key and returns it.
func (e *Executor) Update(ctx context.Context, model string, args types.UpdateArgs) (types.Row, error) {
	m, err := e.model(model)
	if err != nil {
		return nil, err
	}
	if _, err := compiler.RequireUnique(m, args.Where); err != nil {
		return nil, err
	}
	sel, err := newSelection(e.reg, m, args.Select, args.Include)
	if err != nil {
		return nil, err
	}

	var out types.Row
	err = e.atomic(ctx, func(tx *Executor) error {
		row, err := tx.findUniqueRow(ctx, m, args.Where)
		if err != nil {
			return err
		}
		if row == nil {
			return notFound(m.Name, "Record to update not found")
		}
		id := row[m.PrimaryKey().Name]
		if err := tx.updateRow(ctx, m, id, args.Data); err != nil {
			return err
		}
		out, err = tx.readBack(ctx, m, sel, id)
		return err
	})
	return out, err
}

// UpdateMany updates the rows matching args, at most args.Limit of them in
// primary key order. Zero matches is not an error.
func (e *Executor) UpdateMany(ctx context.Context, model string, args types.UpdateManyArgs) (types.BatchPayload, error) {
	m, err := e.model(model)
	if err != nil {
		return types.BatchPayload{}, err
	}
	count, err := e.updateManyRows(ctx, m, args.Where, args.Data, args.Limit)
	return types.BatchPayload{Count: count}, err
}

// UpdateManyAndReturn is UpdateMany returning the updated rows.
func (e *Executor) UpdateManyAndReturn(ctx context.Context, model string, args types.UpdateManyArgs) ([]types.Row, error) {
	m, err := e.model(model)
	if err != nil {
		return nil, err
	}
	sel, err := newSelection(e.reg, m, args.Select, args.Include)
	if err != nil {
		return nil, err
	}
	ud, err := e.parseUpdate(m, args.Data, false)
	if err != nil {
		return nil, err
	}

	var out []types.Row
	err = e.atomic(ctx, func(tx *Executor) error {
		ids, err := tx.matchingKeys(ctx, m, args.Where, args.Limit)
		if err != nil {
			return err
		}
		pk := m.PrimaryKey().Name
		for start := 0; start < len(ids) && len(ud.sets) > 0; start += batchSize {
			end := min(start+batchSize, len(ids))
			where := sqlgen.NewWhereClause()
			where.AddCondition(sqlgen.Condition{Field: pk, Operator: "IN", Value: ids[start:end]})
			if _, err := tx.exec(ctx, m.Name, tx.gen.Update(m.Name, ud.sets, where)); err != nil {
				return err
			}
		}
		out, err = tx.readBackMany(ctx, m, sel, ids)
		return err
	})
	return out, err
}

// Upsert updates the row identified by args.Where, or creates it. A
// concurrent create of the same key is detected through the unique
// violation and turned into an update.
func (e *Executor) Upsert(ctx context.Context, model string, args types.UpsertArgs) (types.Row, error) {
	m, err := e.model(model)
	if err != nil {
		return nil, err
	}
	if _, err := compiler.RequireUnique(m, args.Where); err != nil {
		return nil, err
	}
	sel, err := newSelection(e.reg, m, args.Select, args.Include)
	if err != nil {
		return nil, err
	}
	pk := m.PrimaryKey().Name

	var out types.Row
	err = e.atomic(ctx, func(tx *Executor) error {
		row, err := tx.findUniqueRow(ctx, m, args.Where)
		if err != nil {
			return err
		}
		if row == nil {
			var id any
			err = tx.savepoint(ctx, func() error {
				var err error
				id, err = tx.createRow(ctx, m, args.Create, now())
				return err
			})
			if err == nil {
				out, err = tx.readBack(ctx, m, sel, id)
				return err
			}
			if !types.IsUniqueConstraint(err) {
				return err
			}
			// Lost the race to a concurrent create; update the winner.
			if row, _ = tx.findUniqueRow(ctx, m, args.Where); row == nil {
				return err
			}
		}
		id := row[pk]
		if err := tx.updateRow(ctx, m, id, args.Update); err != nil {
			return err
		}
		out, err = tx.readBack(ctx, m, sel, id)
		return err
	})
	return out, err
}

// Delete removes the row identified by a unique key and returns it as it
// was. Dependent rows under a restricting relation make it fail with
// ErrForeignKeyConstraint.
func (e *Executor) Delete(ctx context.Context, model string, args types.DeleteArgs) (types.Row, error) {
	m, err := e.model(model)
	if err != nil {
		return nil, err
	}
	if _, err := compiler.RequireUnique(m, args.Where); err != nil {
		return nil, err
	}
	sel, err := newSelection(e.reg, m, args.Select, args.Include)
	if err != nil {
		return nil, err
	}

	var out types.Row
	err = e.atomic(ctx, func(tx *Executor) error {
		row, err := tx.findUniqueRow(ctx, m, args.Where)
		if err != nil {
			return err
		}
		if row == nil {
			return notFound(m.Name, "Record to delete does not exist")
		}
		id := row[m.PrimaryKey().Name]
		if out, err = tx.readBack(ctx, m, sel, id); err != nil {
			return err
		}
		where := sqlgen.NewWhereClause()
		where.AddCondition(sqlgen.Condition{Field: m.PrimaryKey().Name, Operator: "=", Value: id})
		_, err = tx.exec(ctx, m.Name, tx.gen.Delete(m.Name, where))
		return err
	})
	return out, err
}

// DeleteMany removes the rows matching args, at most args.Limit of them in
// primary key order.
func (e *Executor) DeleteMany(ctx context.Context, model string, args types.DeleteManyArgs) (types.BatchPayload, error) {
	m, err := e.model(model)
	if err != nil {
		return types.BatchPayload{}, err
	}
	count, err := e.deleteManyRows(ctx, m, args.Where, args.Limit)
	return types.BatchPayload{Count: count}, err
}

// createRow inserts one row of m, running to-one nested writes first and
// to-many nested writes once the row has its key. It returns the key.
func (e *Executor) createRow(ctx context.Context, m *schema.Model, data types.Data, ts time.Time) (any, error) {
	cd, err := parseCreate(m, data)
	if err != nil {
		return nil, err
	}
	for _, op := range cd.toOne {
		key, err := e.resolveToOne(ctx, op, ts)
		if err != nil {
			return nil, err
		}
		cd.values[op.rel.LocalField] = key
	}
	if err := applyDefaults(m, cd.values, ts); err != nil {
		return nil, err
	}

	id, _, err := e.insertRow(ctx, m, cd.values, false)
	if err != nil {
		return nil, err
	}
	for _, op := range cd.toMany {
		if err := e.applyToMany(ctx, op, id, ts); err != nil {
			return nil, err
		}
	}
	return id, nil
}

// flatValues validates data of a batch create, which allows no nested writes.
func flatValues(m *schema.Model, data types.Data, ts time.Time) (map[string]any, error) {
	cd, err := parseCreate(m, data)
	if err != nil {
		return nil, err
	}
	if len(cd.toOne) > 0 || len(cd.toMany) > 0 {
		return nil, types.Errorf(types.ErrInvalidArgument, m.Name, "nested writes are not supported in createMany")
	}
	if err := applyDefaults(m, cd.values, ts); err != nil {
		return nil, err
	}
	return cd.values, nil
}

// insertRow inserts values and returns the row's primary key. With
// ignoreDuplicates, inserted is false when a unique conflict skipped it.
func (e *Executor) insertRow(ctx context.Context, m *schema.Model, values map[string]any, ignoreDuplicates bool) (any, bool, error) {
	columns, row := columnsOf(m, values)
	pk := m.PrimaryKey().Name
	q := e.gen.Insert(m.Name, columns, [][]any{row}, ignoreDuplicates, pk)

	if e.d.SupportsReturning() {
		rows, err := e.query(ctx, m.Name, q)
		if err != nil {
			return nil, false, err
		}
		defer rows.Close()
		if !rows.Next() {
			// ON CONFLICT DO NOTHING returns no key for a skipped row.
			return nil, false, e.classify(rows.Err(), m.Name)
		}
		raw, err := scanValues(rows, 1)
		if err != nil {
			return nil, false, err
		}
		f, _ := m.Field(pk)
		id, err := compiler.Coerce(m.Name, f, raw[0])
		return id, err == nil, err
	}

	res, err := e.exec(ctx, m.Name, q)
	if err != nil {
		return nil, false, err
	}
	if ignoreDuplicates {
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return nil, false, nil
		}
	}
	if id, set := values[pk]; set {
		return id, true, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, false, types.Errorf(types.ErrEngine, m.Name, "failed to read generated key").WithCause(err)
	}
	return id, true, nil
}

// createManyRows inserts rows in multi-row statements, grouping rows that
// set the same columns.
func (e *Executor) createManyRows(ctx context.Context, m *schema.Model, data []types.Data, skipDuplicates bool) (int64, error) {
	ts := now()
	type group struct {
		columns []string
		rows    [][]any
	}
	var order []string
	groups := make(map[string]*group)

	for _, d := range data {
		values, err := flatValues(m, d, ts)
		if err != nil {
			return 0, err
		}
		columns, row := columnsOf(m, values)
		sig := strings.Join(columns, ",")
		g, ok := groups[sig]
		if !ok {
			g = &group{columns: columns}
			groups[sig] = g
			order = append(order, sig)
		}
		g.rows = append(g.rows, row)
	}

	var count int64
	for _, sig := range order {
		g := groups[sig]
		per := max(1, maxParams/max(1, len(g.columns)))
		for start := 0; start < len(g.rows); start += per {
			end := min(start+per, len(g.rows))
			res, err := e.exec(ctx, m.Name, e.gen.Insert(m.Name, g.columns, g.rows[start:end], skipDuplicates, ""))
			if err != nil {
				return 0, err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return 0, types.Errorf(types.ErrEngine, m.Name, "failed to read affected rows").WithCause(err)
			}
			count += n
		}
	}
	return count, nil
}

// updateRow applies update data, including nested writes, to the row with
// primary key id.
func (e *Executor) updateRow(ctx context.Context, m *schema.Model, id any, data types.Data) error {
	ud, err := e.parseUpdate(m, data, true)
	if err != nil {
		return err
	}
	ts := now()
	sets := ud.sets
	for _, op := range ud.toOne {
		key, err := e.resolveToOne(ctx, op, ts)
		if err != nil {
			return err
		}
		sets = append(sets, sqlgen.Assignment{Column: op.rel.LocalField, Op: "=", Value: key})
	}
	if len(sets) > 0 {
		where := sqlgen.NewWhereClause()
		where.AddCondition(sqlgen.Condition{Field: m.PrimaryKey().Name, Operator: "=", Value: id})
		if _, err := e.exec(ctx, m.Name, e.gen.Update(m.Name, sets, where)); err != nil {
			return err
		}
	}
	for _, op := range ud.toMany {
		if err := e.applyToMany(ctx, op, id, ts); err != nil {
			return err
		}
	}
	return nil
}

// updateManyRows runs one UPDATE over the rows matching where.
func (e *Executor) updateManyRows(ctx context.Context, m *schema.Model, where types.Where, data types.Data, limit *int) (int64, error) {
	ud, err := e.parseUpdate(m, data, false)
	if err != nil {
		return 0, err
	}
	if len(ud.sets) == 0 {
		// Nothing to assign; report the matching rows.
		ids, err := e.matchingKeys(ctx, m, where, limit)
		return int64(len(ids)), err
	}
	clause, empty, err := e.keysClause(m, where, limit)
	if err != nil || empty {
		return 0, err
	}
	res, err := e.exec(ctx, m.Name, e.gen.Update(m.Name, ud.sets, clause))
	if err != nil {
		return 0, err
	}
	return rowsAffected(m, res)
}

// deleteManyRows runs one DELETE over the rows matching where.
func (e *Executor) deleteManyRows(ctx context.Context, m *schema.Model, where types.Where, limit *int) (int64, error) {
	clause, empty, err := e.keysClause(m, where, limit)
	if err != nil || empty {
		return 0, err
	}
	res, err := e.exec(ctx, m.Name, e.gen.Delete(m.Name, clause))
	if err != nil {
		return 0, err
	}
	return rowsAffected(m, res)
}

// keysClause selects the rows matching where, at most limit of them by
// primary key, through a key subquery. Filters on relations correlate on
// the subquery's alias, which UPDATE and DELETE cannot provide directly.
func (e *Executor) keysClause(m *schema.Model, where types.Where, limit *int) (*sqlgen.WhereClause, bool, error) {
	if limit != nil && *limit < 0 {
		return nil, false, types.Errorf(types.ErrInvalidArgument, m.Name, "limit must not be negative, got %d", *limit)
	}
	if limit != nil && *limit == 0 {
		return nil, true, nil
	}
	scope := e.scope()
	alias := scope.Alias()
	inner, err := scope.Where(m, alias, where)
	if err != nil {
		return nil, false, err
	}
	pk := m.PrimaryKey().Name
	sub := sqlgen.Select{Table: m.Name, Alias: alias, Columns: []string{pk}, Where: inner}
	if limit != nil {
		n := *limit
		sub.Limit = &n
		sub.OrderBy = []sqlgen.OrderBy{{Table: alias, Field: pk, Direction: "ASC"}}
	}
	clause := sqlgen.NewWhereClause()
	clause.AddCondition(sqlgen.KeysIn(pk, sub))
	return clause, false, nil
}

// matchingKeys returns the primary keys of the rows matching where, in key
// order, at most limit of them.
func (e *Executor) matchingKeys(ctx context.Context, m *schema.Model, where types.Where, limit *int) ([]any, error) {
	if limit != nil && *limit < 0 {
		return nil, types.Errorf(types.ErrInvalidArgument, m.Name, "limit must not be negative, got %d", *limit)
	}
	scope := e.scope()
	alias := scope.Alias()
	clause, err := scope.Where(m, alias, where)
	if err != nil {
		return nil, err
	}
	pk := m.PrimaryKey().Name
	rows, err := e.selectRows(ctx, m, sqlgen.Select{
		Table:   m.Name,
		Alias:   alias,
		Columns: []string{pk},
		Where:   clause,
		OrderBy: []sqlgen.OrderBy{{Table: alias, Field: pk, Direction: "ASC"}},
		Limit:   limit,
	})
	if err != nil {
		return nil, err
	}
	return distinctValues(rows, pk), nil
}

// readBack loads the row with primary key id through sel.
func (e *Executor) readBack(ctx context.Context, m *schema.Model, sel *selection, id any) (types.Row, error) {
	rows, err := e.readBackMany(ctx, m, sel, []any{id})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, notFound(m.Name, "%s with %s %v vanished during the write", m.Name, m.PrimaryKey().Name, id)
	}
	return rows[0], nil
}

// readBackMany loads the rows with the given primary keys, in key order.
func (e *Executor) readBackMany(ctx context.Context, m *schema.Model, sel *selection, ids []any) ([]types.Row, error) {
	pk := m.PrimaryKey().Name
	rows, err := e.relatedRows(ctx, m, pk, ids, nil, []compiler.Order{{Field: pk}})
	if err != nil {
		return nil, err
	}
	return e.hydrate(ctx, sel, rows)
}

// columnsOf lists the set fields of values in schema order.
func columnsOf(m *schema.Model, values map[string]any) ([]string, []any) {
	columns := make([]string, 0, len(values))
	row := make([]any, 0, len(values))
	for _, f := range m.Fields {
		if v, ok := values[f.Name]; ok {
			columns = append(columns, f.Name)
			row = append(row, v)
		}
	}
	return columns, row
}

func rowsAffected(m *schema.Model, res interface{ RowsAffected() (int64, error) }) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, types.Errorf(types.ErrEngine, m.Name, "failed to read affected rows").WithCause(err)
	}
	return n, nil
}
