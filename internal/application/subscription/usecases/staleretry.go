package usecases

import (
	"context"
	"errors"
	"fmt"

	"atelier/internal/domain/subscription"
	apperrors "atelier/internal/shared/errors"
	"atelier/internal/shared/logger"
)

// applyWithStaleRetry runs a domain command against the aggregate and
// persists it with the repository's optimistic version check. A lost race is
// retried once: re-read, re-validate (the command re-checks its own
// precondition), re-apply. A second loss surfaces the stale error.
//
// The command mutates the passed aggregate in place; on retry it runs against
// the freshly read state, so callers must treat the pointer they passed in as
// invalid afterwards and use the returned aggregate.
func applyWithStaleRetry(
	ctx context.Context,
	repo subscription.SubscriptionRepository,
	sub *subscription.Subscription,
	apply func(*subscription.Subscription) error,
	log logger.Interface,
) (*subscription.Subscription, error) {
	if err := apply(sub); err != nil {
		return nil, mapDomainError(err)
	}
	// Idempotent re-application leaves the version untouched; nothing to persist.
	if sub.Version() == sub.PersistedVersion() {
		return sub, nil
	}
	err := repo.Update(ctx, sub)
	if err == nil {
		return sub, nil
	}
	if !errors.Is(err, subscription.ErrStaleSubscription) {
		return nil, fmt.Errorf("failed to update subscription: %w", err)
	}

	log.Warnw("subscription update lost optimistic race, retrying once", "subscription_id", sub.ID())

	fresh, readErr := repo.GetByID(ctx, sub.ID())
	if readErr != nil {
		return nil, fmt.Errorf("failed to re-read subscription after stale update: %w", readErr)
	}
	if fresh == nil {
		return nil, apperrors.NewNotFoundError("subscription not found")
	}
	if applyErr := apply(fresh); applyErr != nil {
		return nil, mapDomainError(applyErr)
	}
	// The concurrent writer may have already applied the same change.
	if fresh.Version() == fresh.PersistedVersion() {
		return fresh, nil
	}
	if updateErr := repo.Update(ctx, fresh); updateErr != nil {
		if errors.Is(updateErr, subscription.ErrStaleSubscription) {
			return nil, apperrors.NewConflictError("subscription was modified concurrently", updateErr.Error())
		}
		return nil, fmt.Errorf("failed to update subscription: %w", updateErr)
	}
	return fresh, nil
}

func mapDomainError(err error) error {
	if errors.Is(err, subscription.ErrInvalidStatusTransition) || errors.Is(err, subscription.ErrInvalidStatus) {
		return apperrors.NewBadRequestError("illegal subscription transition", err.Error())
	}
	return err
}
