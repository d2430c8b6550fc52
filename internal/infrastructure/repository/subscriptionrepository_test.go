package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"atelier/internal/domain/subscription"
	vo "atelier/internal/domain/subscription/valueobjects"
	"atelier/internal/infrastructure/persistence/migrations"
	"atelier/internal/shared/biztime"
	"atelier/internal/shared/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	// TranslateError matches the production connection so duplicate-key
	// detection behaves the same way.
	gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, migrations.MigrateBillingTables(gormDB))
	return gormDB
}

var testSubscriptionSeq int

func createTestSubscription(t *testing.T, subscriberID uint, creatorID *uint, tier vo.Tier) *subscription.Subscription {
	t.Helper()
	testSubscriptionSeq++
	start := biztime.NowUTC()
	sub, err := subscription.NewSubscription(subscriberID, creatorID, tier, fmt.Sprintf("sub_ext_%d", testSubscriptionSeq), start, start.AddDate(0, 1, 0))
	require.NoError(t, err)
	return sub
}

func TestSubscriptionRepository_Create(t *testing.T) {
	gormDB := setupTestDB(t)
	repo := NewSubscriptionRepository(gormDB, logger.NewLogger())
	ctx := context.Background()

	t.Run("create assigns ID", func(t *testing.T) {
		sub := createTestSubscription(t, 1, nil, vo.TierPicture)
		err := repo.Create(ctx, sub)
		assert.NoError(t, err)
		assert.NotZero(t, sub.ID())
	})

	t.Run("second active subscription for same pair fails", func(t *testing.T) {
		creatorID := uint(7)
		first := createTestSubscription(t, 2, &creatorID, vo.TierSoloVideo)
		require.NoError(t, repo.Create(ctx, first))

		second := createTestSubscription(t, 2, &creatorID, vo.TierCollabVideo)
		err := repo.Create(ctx, second)
		assert.ErrorIs(t, err, subscription.ErrActiveSubscriptionExists)
	})

	t.Run("same subscriber different creator is fine", func(t *testing.T) {
		creatorA := uint(10)
		creatorB := uint(11)
		require.NoError(t, repo.Create(ctx, createTestSubscription(t, 3, &creatorA, vo.TierPicture)))
		require.NoError(t, repo.Create(ctx, createTestSubscription(t, 3, &creatorB, vo.TierPicture)))
	})

	t.Run("create after immediate cancel succeeds", func(t *testing.T) {
		creatorID := uint(20)
		created := createTestSubscription(t, 4, &creatorID, vo.TierPicture)
		require.NoError(t, repo.Create(ctx, created))

		first, err := repo.GetByID(ctx, created.ID())
		require.NoError(t, err)
		require.NoError(t, first.Cancel(true))
		require.NoError(t, repo.Update(ctx, first))

		// Terminal records drop out of the pair index, freeing the slot.
		second := createTestSubscription(t, 4, &creatorID, vo.TierSoloVideo)
		assert.NoError(t, repo.Create(ctx, second))
	})
}

func TestSubscriptionRepository_Lookups(t *testing.T) {
	gormDB := setupTestDB(t)
	repo := NewSubscriptionRepository(gormDB, logger.NewLogger())
	ctx := context.Background()

	creatorID := uint(5)
	sub := createTestSubscription(t, 1, &creatorID, vo.TierSoloVideo)
	require.NoError(t, repo.Create(ctx, sub))

	t.Run("get by ID", func(t *testing.T) {
		found, err := repo.GetByID(ctx, sub.ID())
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, sub.SID(), found.SID())
		assert.Equal(t, vo.TierSoloVideo, found.Tier())
	})

	t.Run("get by SID", func(t *testing.T) {
		found, err := repo.GetBySID(ctx, sub.SID())
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, sub.ID(), found.ID())
	})

	t.Run("get by external ref", func(t *testing.T) {
		require.NotNil(t, sub.ExternalRef())
		found, err := repo.GetByExternalRef(ctx, *sub.ExternalRef())
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, sub.ID(), found.ID())
	})

	t.Run("get non-terminal by pair", func(t *testing.T) {
		found, err := repo.GetNonTerminalByPair(ctx, 1, &creatorID)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, sub.ID(), found.ID())
	})

	t.Run("missing records return nil without error", func(t *testing.T) {
		found, err := repo.GetByID(ctx, 99999)
		assert.NoError(t, err)
		assert.Nil(t, found)

		found, err = repo.GetByExternalRef(ctx, "sub_ext_missing")
		assert.NoError(t, err)
		assert.Nil(t, found)

		other := uint(999)
		found, err = repo.GetNonTerminalByPair(ctx, 1, &other)
		assert.NoError(t, err)
		assert.Nil(t, found)
	})
}

func TestSubscriptionRepository_Update(t *testing.T) {
	gormDB := setupTestDB(t)
	repo := NewSubscriptionRepository(gormDB, logger.NewLogger())
	ctx := context.Background()

	t.Run("update persists status change", func(t *testing.T) {
		created := createTestSubscription(t, 1, nil, vo.TierPicture)
		require.NoError(t, repo.Create(ctx, created))

		// The optimistic guard keys on the version loaded from storage, so
		// mutations happen on a freshly read aggregate.
		sub, err := repo.GetByID(ctx, created.ID())
		require.NoError(t, err)
		require.NoError(t, sub.Cancel(false))
		require.NoError(t, repo.Update(ctx, sub))

		found, err := repo.GetByID(ctx, sub.ID())
		require.NoError(t, err)
		assert.True(t, found.CancelAtPeriodEnd())
		assert.Equal(t, vo.StatusActive, found.Status())
	})

	t.Run("concurrent update loses on stale version", func(t *testing.T) {
		sub := createTestSubscription(t, 2, nil, vo.TierPicture)
		require.NoError(t, repo.Create(ctx, sub))

		copy1, err := repo.GetByID(ctx, sub.ID())
		require.NoError(t, err)
		copy2, err := repo.GetByID(ctx, sub.ID())
		require.NoError(t, err)

		require.NoError(t, copy1.Cancel(false))
		require.NoError(t, repo.Update(ctx, copy1))

		require.NoError(t, copy2.Cancel(true))
		err = repo.Update(ctx, copy2)
		assert.ErrorIs(t, err, subscription.ErrStaleSubscription)
	})
}

func TestSubscriptionRepository_List(t *testing.T) {
	gormDB := setupTestDB(t)
	repo := NewSubscriptionRepository(gormDB, logger.NewLogger())
	ctx := context.Background()

	creatorID := uint(50)
	for i := uint(1); i <= 3; i++ {
		require.NoError(t, repo.Create(ctx, createTestSubscription(t, i, &creatorID, vo.TierPicture)))
	}
	require.NoError(t, repo.Create(ctx, createTestSubscription(t, 1, nil, vo.TierSoloVideo)))

	t.Run("filter by creator", func(t *testing.T) {
		subs, total, err := repo.List(ctx, subscription.SubscriptionFilter{CreatorID: &creatorID})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Len(t, subs, 3)
	})

	t.Run("filter by subscriber", func(t *testing.T) {
		subscriberID := uint(1)
		_, total, err := repo.List(ctx, subscription.SubscriptionFilter{SubscriberID: &subscriberID})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
	})

	t.Run("pagination", func(t *testing.T) {
		subs, total, err := repo.List(ctx, subscription.SubscriptionFilter{Page: 1, PageSize: 2})
		require.NoError(t, err)
		assert.Equal(t, int64(4), total)
		assert.Len(t, subs, 2)
	})

	t.Run("count by status", func(t *testing.T) {
		count, err := repo.CountByStatus(ctx, vo.StatusActive)
		require.NoError(t, err)
		assert.Equal(t, int64(4), count)
	})
}

func TestSubscriptionRepository_GetBySubscriberID(t *testing.T) {
	gormDB := setupTestDB(t)
	repo := NewSubscriptionRepository(gormDB, logger.NewLogger())
	ctx := context.Background()

	creatorID := uint(60)
	require.NoError(t, repo.Create(ctx, createTestSubscription(t, 8, &creatorID, vo.TierPicture)))
	require.NoError(t, repo.Create(ctx, createTestSubscription(t, 8, nil, vo.TierSoloVideo)))

	subs, err := repo.GetBySubscriberID(ctx, 8)
	require.NoError(t, err)
	assert.Len(t, subs, 2)

	subs, err = repo.GetBySubscriberID(ctx, 9)
	require.NoError(t, err)
	assert.Empty(t, subs)
}

// Guard against period columns round-tripping through sqlite with lost precision.
func TestSubscriptionRepository_PeriodRoundTrip(t *testing.T) {
	gormDB := setupTestDB(t)
	repo := NewSubscriptionRepository(gormDB, logger.NewLogger())
	ctx := context.Background()

	start := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	sub, err := subscription.NewSubscription(1, nil, vo.TierPicture, "sub_ext_rt", start, start.AddDate(0, 1, 0))
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, sub))

	found, err := repo.GetByID(ctx, sub.ID())
	require.NoError(t, err)
	assert.True(t, found.CurrentPeriodStart().Equal(start))
	assert.True(t, found.CurrentPeriodEnd().Equal(start.AddDate(0, 1, 0)))
}
