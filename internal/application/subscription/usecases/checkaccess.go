package usecases

import (
	"context"
	"fmt"

	"atelier/internal/domain/subscription"
	vo "atelier/internal/domain/subscription/valueobjects"
	apperrors "atelier/internal/shared/errors"
	"atelier/internal/shared/logger"
)

type CheckAccessQuery struct {
	SubscriberID uint
	CreatorID    *uint
	Tier         string
}

// CheckAccessUseCase answers "does this principal have access to this tier,
// right now" from the locally synchronized record. It runs on every content
// request, so the read path stays local and never calls the provider. Any
// lookup ambiguity resolves toward "no access".
type CheckAccessUseCase struct {
	subscriptionRepo subscription.SubscriptionRepository
	logger           logger.Interface
}

func NewCheckAccessUseCase(
	subscriptionRepo subscription.SubscriptionRepository,
	logger logger.Interface,
) *CheckAccessUseCase {
	return &CheckAccessUseCase{
		subscriptionRepo: subscriptionRepo,
		logger:           logger,
	}
}

func (uc *CheckAccessUseCase) Execute(ctx context.Context, q CheckAccessQuery) (bool, error) {
	tier, err := vo.ParseTier(q.Tier)
	if err != nil {
		return false, apperrors.NewValidationError("invalid tier", err.Error())
	}

	sub, err := uc.subscriptionRepo.GetNonTerminalByPair(ctx, q.SubscriberID, q.CreatorID)
	if err != nil {
		uc.logger.Errorw("failed to look up subscription for access check", "error", err, "subscriber_id", q.SubscriberID)
		return false, fmt.Errorf("failed to look up subscription: %w", err)
	}

	return subscription.HasAccess(sub, tier), nil
}
