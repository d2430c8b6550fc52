package usecases

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atelier/internal/shared/logger"
)

func TestCheckAccessUseCase(t *testing.T) {
	ctx := context.Background()

	t.Run("active subscription grants covered tiers", func(t *testing.T) {
		repo := setupSubscriptionRepo(t)
		gateway := &fakeGateway{}
		createUC := NewCreateSubscriptionUseCase(repo, gateway, logger.NewLogger())

		creatorID := uint(7)
		_, err := createUC.Execute(ctx, CreateSubscriptionCommand{
			SubscriberID: 1,
			CreatorID:    &creatorID,
			Tier:         "solo_video",
			AmountMinor:  1500,
			Currency:     "USD",
		})
		require.NoError(t, err)

		uc := NewCheckAccessUseCase(repo, logger.NewLogger())

		allowed, err := uc.Execute(ctx, CheckAccessQuery{SubscriberID: 1, CreatorID: &creatorID, Tier: "solo_video"})
		require.NoError(t, err)
		assert.True(t, allowed)

		// A higher tier covers the lower one.
		allowed, err = uc.Execute(ctx, CheckAccessQuery{SubscriberID: 1, CreatorID: &creatorID, Tier: "picture"})
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, err = uc.Execute(ctx, CheckAccessQuery{SubscriberID: 1, CreatorID: &creatorID, Tier: "collab_video"})
		require.NoError(t, err)
		assert.False(t, allowed)
	})

	t.Run("no subscription denies", func(t *testing.T) {
		repo := setupSubscriptionRepo(t)
		uc := NewCheckAccessUseCase(repo, logger.NewLogger())

		allowed, err := uc.Execute(ctx, CheckAccessQuery{SubscriberID: 99, Tier: "picture"})
		require.NoError(t, err)
		assert.False(t, allowed)
	})

	t.Run("access scopes to the subscribed creator", func(t *testing.T) {
		repo := setupSubscriptionRepo(t)
		gateway := &fakeGateway{}
		createUC := NewCreateSubscriptionUseCase(repo, gateway, logger.NewLogger())

		creatorID := uint(7)
		_, err := createUC.Execute(ctx, CreateSubscriptionCommand{
			SubscriberID: 1,
			CreatorID:    &creatorID,
			Tier:         "picture",
			AmountMinor:  500,
			Currency:     "USD",
		})
		require.NoError(t, err)

		uc := NewCheckAccessUseCase(repo, logger.NewLogger())

		other := uint(8)
		allowed, err := uc.Execute(ctx, CheckAccessQuery{SubscriberID: 1, CreatorID: &other, Tier: "picture"})
		require.NoError(t, err)
		assert.False(t, allowed)

		// The platform-wide slot is separate from per-creator subscriptions.
		allowed, err = uc.Execute(ctx, CheckAccessQuery{SubscriberID: 1, Tier: "picture"})
		require.NoError(t, err)
		assert.False(t, allowed)
	})

	t.Run("immediate cancel revokes access", func(t *testing.T) {
		repo := setupSubscriptionRepo(t)
		gateway := &fakeGateway{}
		sub := createSubscriptionVia(t, repo, gateway, 1, nil)

		uc := NewCheckAccessUseCase(repo, logger.NewLogger())
		allowed, err := uc.Execute(ctx, CheckAccessQuery{SubscriberID: 1, Tier: "picture"})
		require.NoError(t, err)
		assert.True(t, allowed)

		cancelUC := NewCancelSubscriptionUseCase(repo, gateway, logger.NewLogger())
		require.NoError(t, cancelUC.Execute(ctx, CancelSubscriptionCommand{SubscriptionID: sub.ID(), Immediate: true}))

		allowed, err = uc.Execute(ctx, CheckAccessQuery{SubscriberID: 1, Tier: "picture"})
		require.NoError(t, err)
		assert.False(t, allowed)
	})

	t.Run("invalid tier is a validation error", func(t *testing.T) {
		repo := setupSubscriptionRepo(t)
		uc := NewCheckAccessUseCase(repo, logger.NewLogger())

		_, err := uc.Execute(ctx, CheckAccessQuery{SubscriberID: 1, Tier: "platinum"})
		assert.Error(t, err)
	})
}
