package subscription

import (
	"context"

	vo "atelier/internal/domain/subscription/valueobjects"
)

// SubscriptionRepository is the source of truth for access decisions. Writes
// come only from the lifecycle use cases and the event reconciler; read paths
// never mutate records.
type SubscriptionRepository interface {
	// Create inserts a new record. The storage layer enforces the one
	// non-terminal record per (subscriber, creator) invariant and surfaces
	// violations as ErrActiveSubscriptionExists.
	Create(ctx context.Context, sub *Subscription) error
	GetByID(ctx context.Context, id uint) (*Subscription, error)
	GetBySID(ctx context.Context, sid string) (*Subscription, error)
	GetByExternalRef(ctx context.Context, ref string) (*Subscription, error)
	// GetNonTerminalByPair returns the non-terminal record for the pair, or nil.
	// A nil creatorID selects the platform-wide subscription.
	GetNonTerminalByPair(ctx context.Context, subscriberID uint, creatorID *uint) (*Subscription, error)
	GetBySubscriberID(ctx context.Context, subscriberID uint) ([]*Subscription, error)
	// Update persists the aggregate with an optimistic version check and
	// returns ErrStaleSubscription when the row changed underneath.
	Update(ctx context.Context, sub *Subscription) error

	List(ctx context.Context, filter SubscriptionFilter) ([]*Subscription, int64, error)
	CountByStatus(ctx context.Context, status vo.SubscriptionStatus) (int64, error)
}

type SubscriptionFilter struct {
	SubscriberID *uint
	CreatorID    *uint
	Status       *vo.SubscriptionStatus
	Page         int
	PageSize     int
	SortBy       string
	SortDesc     bool
}
