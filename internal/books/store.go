package books

import "context"

// Store describes persistence for bookkeeping entries.
type Store interface {
	Revenues(ctx context.Context) RevenueStore
	Purchases(ctx context.Context) PurchaseStore
}

// RevenueStore manages revenue rows. month filters with YYYY-MM when
// non-empty; listings are ordered by date descending.
type RevenueStore interface {
	Create(ctx context.Context, r *Revenue) error
	List(ctx context.Context, month string) ([]Revenue, error)
	DeleteAll(ctx context.Context) (int64, error)
}

// PurchaseStore manages purchase rows with the same conventions.
type PurchaseStore interface {
	Create(ctx context.Context, p *Purchase) error
	List(ctx context.Context, month string) ([]Purchase, error)
	DeleteAll(ctx context.Context) (int64, error)
}
