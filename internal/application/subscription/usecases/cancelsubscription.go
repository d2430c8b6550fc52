package usecases

import (
	"context"
	"errors"
	"fmt"

	"atelier/internal/domain/billing"
	"atelier/internal/domain/subscription"
	apperrors "atelier/internal/shared/errors"
	"atelier/internal/shared/logger"
)

type CancelSubscriptionCommand struct {
	SubscriptionID uint
	Immediate      bool
}

// CancelSubscriptionUseCase cancels a subscription, remote call first. A
// provider timeout leaves the local record unchanged except for the
// pending-reconciliation marker: the call may have succeeded provider-side,
// and the webhook stream resolves the ambiguity.
type CancelSubscriptionUseCase struct {
	subscriptionRepo subscription.SubscriptionRepository
	gateway          billing.Gateway
	logger           logger.Interface
}

func NewCancelSubscriptionUseCase(
	subscriptionRepo subscription.SubscriptionRepository,
	gateway billing.Gateway,
	logger logger.Interface,
) *CancelSubscriptionUseCase {
	return &CancelSubscriptionUseCase{
		subscriptionRepo: subscriptionRepo,
		gateway:          gateway,
		logger:           logger,
	}
}

func (uc *CancelSubscriptionUseCase) Execute(ctx context.Context, cmd CancelSubscriptionCommand) error {
	sub, err := uc.subscriptionRepo.GetByID(ctx, cmd.SubscriptionID)
	if err != nil {
		uc.logger.Errorw("failed to get subscription", "error", err, "subscription_id", cmd.SubscriptionID)
		return fmt.Errorf("failed to get subscription: %w", err)
	}
	if sub == nil {
		return apperrors.NewNotFoundError("subscription not found")
	}

	if ref := sub.ExternalRef(); ref != nil {
		if err := uc.gateway.CancelRemoteSubscription(ctx, *ref, cmd.Immediate); err != nil {
			if errors.Is(err, billing.ErrProviderUnavailable) {
				uc.markPendingReconciliation(ctx, sub)
				return apperrors.NewUnavailableError("billing provider unavailable, cancellation pending")
			}
			uc.logger.Errorw("failed to cancel remote subscription", "error", err, "subscription_id", cmd.SubscriptionID)
			return fmt.Errorf("failed to cancel remote subscription: %w", err)
		}
	}

	updated, err := applyWithStaleRetry(ctx, uc.subscriptionRepo, sub, func(s *subscription.Subscription) error {
		return s.Cancel(cmd.Immediate)
	}, uc.logger)
	if err != nil {
		return err
	}

	uc.logger.Infow("subscription canceled",
		"subscription_id", cmd.SubscriptionID,
		"immediate", cmd.Immediate,
		"status", updated.Status().String(),
	)
	return nil
}

// markPendingReconciliation flags the record after an ambiguous provider
// failure. Best effort: a flag we fail to persist only means the webhook
// arrives on an unflagged record, which it handles anyway.
func (uc *CancelSubscriptionUseCase) markPendingReconciliation(ctx context.Context, sub *subscription.Subscription) {
	sub.MarkPendingReconciliation()
	if err := uc.subscriptionRepo.Update(ctx, sub); err != nil {
		uc.logger.Warnw("failed to persist pending-reconciliation marker", "error", err, "subscription_id", sub.ID())
	}
}
