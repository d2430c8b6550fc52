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

type CreateSubscriptionCommand struct {
	SubscriberID uint
	CreatorID    *uint
	Tier         string
	AmountMinor  int64
	Currency     string
}

// CreateSubscriptionUseCase starts a subscription: remote first, then the
// local record. The remote call never runs inside a database transaction, and
// the storage-level pair constraint is the final arbiter under concurrent
// creates.
type CreateSubscriptionUseCase struct {
	subscriptionRepo subscription.SubscriptionRepository
	gateway          billing.Gateway
	logger           logger.Interface
}

func NewCreateSubscriptionUseCase(
	subscriptionRepo subscription.SubscriptionRepository,
	gateway billing.Gateway,
	logger logger.Interface,
) *CreateSubscriptionUseCase {
	return &CreateSubscriptionUseCase{
		subscriptionRepo: subscriptionRepo,
		gateway:          gateway,
		logger:           logger,
	}
}

func (uc *CreateSubscriptionUseCase) Execute(ctx context.Context, cmd CreateSubscriptionCommand) (*subscription.Subscription, error) {
	tier, err := vo.ParseTier(cmd.Tier)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid tier", err.Error())
	}

	existing, err := uc.subscriptionRepo.GetNonTerminalByPair(ctx, cmd.SubscriberID, cmd.CreatorID)
	if err != nil {
		uc.logger.Errorw("failed to check existing subscription", "error", err, "subscriber_id", cmd.SubscriberID)
		return nil, fmt.Errorf("failed to check existing subscription: %w", err)
	}
	if existing != nil {
		return nil, apperrors.NewConflictError("subscription already exists", subscription.ErrActiveSubscriptionExists.Error())
	}

	remote, err := uc.gateway.CreateRemoteSubscription(ctx, billing.CreateSubscriptionRequest{
		SubscriberID: cmd.SubscriberID,
		CreatorID:    cmd.CreatorID,
		Tier:         tier.String(),
		AmountMinor:  cmd.AmountMinor,
		Currency:     cmd.Currency,
	})
	if err != nil {
		if errors.Is(err, billing.ErrProviderUnavailable) {
			uc.logger.Warnw("billing provider unavailable during create", "error", err, "subscriber_id", cmd.SubscriberID)
			return nil, apperrors.NewUnavailableError("billing provider unavailable, please retry")
		}
		uc.logger.Errorw("failed to create remote subscription", "error", err, "subscriber_id", cmd.SubscriberID)
		return nil, fmt.Errorf("failed to create remote subscription: %w", err)
	}

	sub, err := subscription.NewSubscription(cmd.SubscriberID, cmd.CreatorID, tier, remote.Ref, remote.CurrentPeriodStart, remote.CurrentPeriodEnd)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid subscription", err.Error())
	}

	if err := uc.subscriptionRepo.Create(ctx, sub); err != nil {
		if errors.Is(err, subscription.ErrActiveSubscriptionExists) {
			// Lost the race against a concurrent create; the unique pair
			// constraint picked the winner.
			return nil, apperrors.NewConflictError("subscription already exists", err.Error())
		}
		uc.logger.Errorw("failed to persist subscription", "error", err, "subscriber_id", cmd.SubscriberID)
		return nil, fmt.Errorf("failed to persist subscription: %w", err)
	}

	uc.logger.Infow("subscription created",
		"subscription_sid", sub.SID(),
		"subscriber_id", cmd.SubscriberID,
		"tier", tier.String(),
		"external_ref", remote.Ref,
	)

	return sub, nil
}
