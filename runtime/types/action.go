package types

// Action names an operation on a model.
type Action string

const (
	FindUnique          Action = "findUnique"
	FindUniqueOrThrow   Action = "findUniqueOrThrow"
	FindFirst           Action = "findFirst"
	FindFirstOrThrow    Action = "findFirstOrThrow"
	FindMany            Action = "findMany"
	Create              Action = "create"
	CreateMany          Action = "createMany"
	CreateManyAndReturn Action = "createManyAndReturn"
	Update              Action = "update"
	UpdateMany          Action = "updateMany"
	UpdateManyAndReturn Action = "updateManyAndReturn"
	Upsert              Action = "upsert"
	Delete              Action = "delete"
	DeleteMany          Action = "deleteMany"
	Count               Action = "count"
	Aggregate           Action = "aggregate"
	GroupBy             Action = "groupBy"
)

// Actions lists every action in a stable order.
var Actions = []Action{
	FindUnique, FindUniqueOrThrow, FindFirst, FindFirstOrThrow, FindMany,
	Create, CreateMany, CreateManyAndReturn,
	Update, UpdateMany, UpdateManyAndReturn, Upsert,
	Delete, DeleteMany,
	Count, Aggregate, GroupBy,
}

// IsRead reports whether the action never writes.
func (a Action) IsRead() bool {
	switch a {
	case FindUnique, FindUniqueOrThrow, FindFirst, FindFirstOrThrow, FindMany, Count, Aggregate, GroupBy:
		return true
	}
	return false
}

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	for _, known := range Actions {
		if a == known {
			return true
		}
	}
	return false
}

// NewArgs returns a pointer to the zero args struct for the action.
func (a Action) NewArgs() any {
	switch a {
	case FindUnique, FindUniqueOrThrow:
		return &FindUniqueArgs{}
	case FindFirst, FindFirstOrThrow, FindMany:
		return &FindArgs{}
	case Create:
		return &CreateArgs{}
	case CreateMany, CreateManyAndReturn:
		return &CreateManyArgs{}
	case Update:
		return &UpdateArgs{}
	case UpdateMany, UpdateManyAndReturn:
		return &UpdateManyArgs{}
	case Upsert:
		return &UpsertArgs{}
	case Delete:
		return &DeleteArgs{}
	case DeleteMany:
		return &DeleteManyArgs{}
	case Count:
		return &CountArgs{}
	case Aggregate:
		return &AggregateArgs{}
	case GroupBy:
		return &GroupByArgs{}
	}
	return nil
}
