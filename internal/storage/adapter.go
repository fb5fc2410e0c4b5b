package storage

import "context"

// Record is the adapter's wire shape for a single row: a loosely typed
// map, the way the spec's `create<T>`/`findOne<T>` contract is
// implemented once the "T" is generic over a plain JSON object rather
// than a language-level generic class.
type Record = map[string]interface{}

// Adapter is the uniform CRUD surface storage drivers implement, per
// §4.C. It is the only DB-facing interface in the library; every
// domain operation in InternalAdapter is built on top of it.
type Adapter interface {
	Create(ctx context.Context, model string, data Record) (Record, error)
	FindOne(ctx context.Context, q Query) (Record, error)
	FindMany(ctx context.Context, q Query) ([]Record, error)
	Update(ctx context.Context, model string, where []Where, update Record) (Record, error)
	UpdateMany(ctx context.Context, model string, where []Where, update Record) (int64, error)
	Delete(ctx context.Context, model string, where []Where) error
	DeleteMany(ctx context.Context, model string, where []Where) (int64, error)
	Count(ctx context.Context, model string, where []Where) (int64, error)

	// Transaction runs fn with an Adapter scoped to one atomic unit of
	// work, per §5's linearizability requirement for refresh rotation.
	// Adapters that cannot natively transact emulate it sequentially
	// (documented per-implementation) per §4.C.
	Transaction(ctx context.Context, fn func(tx Adapter) error) error
}
