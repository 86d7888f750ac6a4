package executor

import (
	"context"
	"time"

	"github.com/satishbabariya/commerce-client/query/compiler"
	"github.com/satishbabariya/commerce-client/query/sqlgen"
	"github.com/satishbabariya/commerce-client/runtime/types"
	"github.com/satishbabariya/commerce-client/schema"
)

// resolveToOne runs a connect or create on a to-one relation and returns
// the key to store in the relation's foreign key.
func (e *Executor) resolveToOne(ctx context.Context, op nestedOp, ts time.Time) (any, error) {
	target, err := e.model(op.rel.Target)
	if err != nil {
		return nil, err
	}
	arg, _ := types.AsMap(op.args[0])

	switch op.kind {
	case "connect":
		row, err := e.connectTarget(ctx, target, op.rel, arg)
		if err != nil {
			return nil, err
		}
		return row[op.rel.ForeignField], nil
	case "create":
		if op.rel.Inverse != "" {
			if _, set := arg[op.rel.Inverse]; set {
				return nil, types.Errorf(types.ErrInvalidArgument, target.Name, "%s is set by the nested write on %s", op.rel.Inverse, op.rel.Name).WithField(op.rel.Inverse)
			}
		}
		id, err := e.createRow(ctx, target, arg, ts)
		if err != nil {
			return nil, err
		}
		if op.rel.ForeignField == target.PrimaryKey().Name {
			return id, nil
		}
		row, err := e.findUniqueRow(ctx, target, types.Where{target.PrimaryKey().Name: id})
		if err != nil {
			return nil, err
		}
		return row[op.rel.ForeignField], nil
	}
	return nil, types.Errorf(types.ErrInvalidArgument, op.rel.Model, "unsupported nested write %q on %s", op.kind, op.rel.Name)
}

// applyToMany runs one nested write of a to-many relation for the parent
// row with key parentKey.
func (e *Executor) applyToMany(ctx context.Context, op nestedOp, parentKey any, ts time.Time) error {
	rel := op.rel
	target, err := e.model(rel.Target)
	if err != nil {
		return err
	}
	owned := types.Where{rel.ForeignField: parentKey}

	for _, raw := range op.args {
		arg, _ := types.AsMap(raw)
		switch op.kind {
		case "create":
			data, err := withParent(target, rel, arg, parentKey)
			if err != nil {
				return err
			}
			if _, err := e.createRow(ctx, target, data, ts); err != nil {
				return err
			}

		case "createMany":
			var args types.CreateManyArgs
			if err := types.Convert(arg, &args); err != nil {
				return types.Errorf(types.ErrInvalidArgument, rel.Model, "invalid createMany on %s: %v", rel.Name, err).WithField(rel.Name)
			}
			rows := make([]types.Data, len(args.Data))
			for i, d := range args.Data {
				if rows[i], err = withParent(target, rel, d, parentKey); err != nil {
					return err
				}
			}
			if _, err := e.createManyRows(ctx, target, rows, args.SkipDuplicates); err != nil {
				return err
			}

		case "connect":
			row, err := e.connectTarget(ctx, target, rel, arg)
			if err != nil {
				return err
			}
			pk := target.PrimaryKey().Name
			clause := sqlgen.NewWhereClause()
			clause.AddCondition(sqlgen.Condition{Field: pk, Operator: "=", Value: row[pk]})
			set := sqlgen.Assignment{Column: rel.ForeignField, Op: "=", Value: parentKey}
			if _, err := e.exec(ctx, target.Name, e.gen.Update(target.Name, []sqlgen.Assignment{set}, clause)); err != nil {
				return err
			}

		case "updateMany":
			var args struct {
				Where types.Where `json:"where"`
				Data  types.Data  `json:"data"`
			}
			if err := types.Convert(arg, &args); err != nil {
				return types.Errorf(types.ErrInvalidArgument, rel.Model, "invalid updateMany on %s: %v", rel.Name, err).WithField(rel.Name)
			}
			if _, err := e.updateManyRows(ctx, target, scoped(owned, args.Where), args.Data, nil); err != nil {
				return err
			}

		case "deleteMany":
			if _, err := e.deleteManyRows(ctx, target, scoped(owned, arg), nil); err != nil {
				return err
			}

		default:
			return types.Errorf(types.ErrInvalidArgument, rel.Model, "unsupported nested write %q on %s", op.kind, rel.Name)
		}
	}
	return nil
}

// connectTarget loads the row a connect refers to by unique key.
func (e *Executor) connectTarget(ctx context.Context, target *schema.Model, rel *schema.Relation, where map[string]any) (types.Row, error) {
	if _, err := compiler.RequireUnique(target, where); err != nil {
		return nil, err
	}
	row, err := e.findUniqueRow(ctx, target, where)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, notFound(target.Name, "No %s found to connect on %s.%s", target.Name, rel.Model, rel.Name)
	}
	return row, nil
}

// scoped narrows a nested filter to the parent's children.
func scoped(owned, where types.Where) types.Where {
	if len(where) == 0 {
		return owned
	}
	return types.Where{"AND": []any{map[string]any(owned), map[string]any(where)}}
}
