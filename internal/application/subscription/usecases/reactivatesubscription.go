package usecases

import (
	"context"
	"errors"
	"fmt"

	"atelier/internal/domain/billing"
	"atelier/internal/domain/subscription"
	vo "atelier/internal/domain/subscription/valueobjects"
	apperrors "atelier/internal/shared/errors"
	"atelier/internal/shared/logger"
)

type ReactivateSubscriptionCommand struct {
	SubscriptionID uint
}

// ReactivateSubscriptionUseCase resumes billing for a canceled or past-due
// subscription. Administrative pause is lifted elsewhere; reactivating a
// paused or already-active record is an illegal transition.
type ReactivateSubscriptionUseCase struct {
	subscriptionRepo subscription.SubscriptionRepository
	gateway          billing.Gateway
	logger           logger.Interface
}

func NewReactivateSubscriptionUseCase(
	subscriptionRepo subscription.SubscriptionRepository,
	gateway billing.Gateway,
	logger logger.Interface,
) *ReactivateSubscriptionUseCase {
	return &ReactivateSubscriptionUseCase{
		subscriptionRepo: subscriptionRepo,
		gateway:          gateway,
		logger:           logger,
	}
}

func (uc *ReactivateSubscriptionUseCase) Execute(ctx context.Context, cmd ReactivateSubscriptionCommand) (*subscription.Subscription, error) {
	sub, err := uc.subscriptionRepo.GetByID(ctx, cmd.SubscriptionID)
	if err != nil {
		uc.logger.Errorw("failed to get subscription", "error", err, "subscription_id", cmd.SubscriptionID)
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	if sub == nil {
		return nil, apperrors.NewNotFoundError("subscription not found")
	}

	// Check the precondition before the remote call so an obviously illegal
	// request never reaches the provider.
	if sub.Status() != vo.StatusCanceled && sub.Status() != vo.StatusPastDue {
		return nil, apperrors.NewBadRequestError(
			"illegal subscription transition",
			fmt.Sprintf("cannot reactivate subscription with status %s", sub.Status()),
		)
	}

	ref := sub.ExternalRef()
	if ref == nil {
		return nil, apperrors.NewBadRequestError("subscription has no billing provider reference")
	}

	remote, err := uc.gateway.ReactivateRemoteSubscription(ctx, *ref)
	if err != nil {
		if errors.Is(err, billing.ErrProviderUnavailable) {
			uc.logger.Warnw("billing provider unavailable during reactivate", "error", err, "subscription_id", cmd.SubscriptionID)
			return nil, apperrors.NewUnavailableError("billing provider unavailable, please retry")
		}
		uc.logger.Errorw("failed to reactivate remote subscription", "error", err, "subscription_id", cmd.SubscriptionID)
		return nil, fmt.Errorf("failed to reactivate remote subscription: %w", err)
	}

	updated, err := applyWithStaleRetry(ctx, uc.subscriptionRepo, sub, func(s *subscription.Subscription) error {
		return s.Reactivate(remote.CurrentPeriodStart, remote.CurrentPeriodEnd)
	}, uc.logger)
	if err != nil {
		return nil, err
	}

	uc.logger.Infow("subscription reactivated",
		"subscription_id", cmd.SubscriptionID,
		"period_end", updated.CurrentPeriodEnd(),
	)
	return updated, nil
}
