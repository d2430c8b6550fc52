package ledger

import (
	"context"
	"time"
)

// EntryRepository stores payment ledger entries. Only the event reconciler
// and the refund path write here; everything else is a read-only projection.
type EntryRepository interface {
	// Create inserts a new entry. The provider payment reference carries a
	// storage-level uniqueness constraint; violations surface as
	// ErrDuplicateEntry.
	Create(ctx context.Context, entry *Entry) error
	GetByID(ctx context.Context, id uint) (*Entry, error)
	GetBySID(ctx context.Context, sid string) (*Entry, error)
	GetByProviderPaymentRef(ctx context.Context, ref string) (*Entry, error)
	GetBySubscriptionID(ctx context.Context, subscriptionID uint) ([]*Entry, error)
	// Update persists outcome and refund changes with an optimistic version
	// check, returning ErrStaleEntry when the row changed underneath.
	Update(ctx context.Context, entry *Entry) error

	// Revenue projections. Read-only; never part of the write path.
	SumSucceededByCreator(ctx context.Context, creatorID uint, from, to time.Time) (int64, error)
	SumSucceededByPeriod(ctx context.Context, from, to time.Time) (int64, error)
}
