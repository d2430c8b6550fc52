package usecases

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"atelier/internal/domain/billing"
	"atelier/internal/domain/subscription"
	vo "atelier/internal/domain/subscription/valueobjects"
	"atelier/internal/infrastructure/persistence/migrations"
	"atelier/internal/infrastructure/repository"
	"atelier/internal/shared/biztime"
	apperrors "atelier/internal/shared/errors"
	"atelier/internal/shared/logger"
)

// fakeGateway stands in for the billing provider. Each remote call can be
// programmed to fail, and calls are recorded for assertions.
type fakeGateway struct {
	createErr     error
	cancelErr     error
	reactivateErr error
	refundErr     error

	remote *billing.RemoteSubscription

	createCalls     int
	cancelCalls     int
	reactivateCalls int
	refundCalls     int
	lastRefundRef   string
	lastRefundMinor int64
}

func (g *fakeGateway) CreateRemoteSubscription(ctx context.Context, req billing.CreateSubscriptionRequest) (*billing.RemoteSubscription, error) {
	g.createCalls++
	if g.createErr != nil {
		return nil, g.createErr
	}
	return g.remoteOrDefault(), nil
}

func (g *fakeGateway) CancelRemoteSubscription(ctx context.Context, ref string, immediate bool) error {
	g.cancelCalls++
	return g.cancelErr
}

func (g *fakeGateway) ReactivateRemoteSubscription(ctx context.Context, ref string) (*billing.RemoteSubscription, error) {
	g.reactivateCalls++
	if g.reactivateErr != nil {
		return nil, g.reactivateErr
	}
	return g.remoteOrDefault(), nil
}

func (g *fakeGateway) CreatePaymentIntent(ctx context.Context, amountMinor int64, currency string, metadata map[string]string) (*billing.PaymentIntent, error) {
	return &billing.PaymentIntent{Ref: "pi_fake", AmountMinor: amountMinor, Currency: currency}, nil
}

func (g *fakeGateway) RefundPayment(ctx context.Context, paymentRef string, amountMinor int64) error {
	g.refundCalls++
	g.lastRefundRef = paymentRef
	g.lastRefundMinor = amountMinor
	return g.refundErr
}

func (g *fakeGateway) remoteOrDefault() *billing.RemoteSubscription {
	if g.remote != nil {
		return g.remote
	}
	start := biztime.NowUTC()
	return &billing.RemoteSubscription{
		Ref:                "sub_ext_fake",
		Status:             "active",
		CurrentPeriodStart: start,
		CurrentPeriodEnd:   start.AddDate(0, 1, 0),
	}
}

func setupSubscriptionRepo(t *testing.T) subscription.SubscriptionRepository {
	t.Helper()
	gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, migrations.MigrateBillingTables(gormDB))
	return repository.NewSubscriptionRepository(gormDB, logger.NewLogger())
}

func TestCreateSubscriptionUseCase(t *testing.T) {
	ctx := context.Background()

	t.Run("creates local record from remote confirmation", func(t *testing.T) {
		repo := setupSubscriptionRepo(t)
		gateway := &fakeGateway{remote: &billing.RemoteSubscription{
			Ref:                "sub_ext_42",
			Status:             "active",
			CurrentPeriodStart: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
			CurrentPeriodEnd:   time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
		}}
		uc := NewCreateSubscriptionUseCase(repo, gateway, logger.NewLogger())

		creatorID := uint(7)
		sub, err := uc.Execute(ctx, CreateSubscriptionCommand{
			SubscriberID: 1,
			CreatorID:    &creatorID,
			Tier:         "solo_video",
			AmountMinor:  1500,
			Currency:     "USD",
		})
		require.NoError(t, err)
		assert.Equal(t, 1, gateway.createCalls)
		assert.Equal(t, vo.StatusActive, sub.Status())
		require.NotNil(t, sub.ExternalRef())
		assert.Equal(t, "sub_ext_42", *sub.ExternalRef())

		stored, err := repo.GetByExternalRef(ctx, "sub_ext_42")
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, vo.TierSoloVideo, stored.Tier())
	})

	t.Run("rejects invalid tier before remote call", func(t *testing.T) {
		repo := setupSubscriptionRepo(t)
		gateway := &fakeGateway{}
		uc := NewCreateSubscriptionUseCase(repo, gateway, logger.NewLogger())

		_, err := uc.Execute(ctx, CreateSubscriptionCommand{SubscriberID: 1, Tier: "platinum", AmountMinor: 100, Currency: "USD"})
		require.Error(t, err)
		assert.Zero(t, gateway.createCalls)
	})

	t.Run("existing pair conflicts before remote call", func(t *testing.T) {
		repo := setupSubscriptionRepo(t)
		gateway := &fakeGateway{}
		uc := NewCreateSubscriptionUseCase(repo, gateway, logger.NewLogger())

		creatorID := uint(7)
		cmd := CreateSubscriptionCommand{SubscriberID: 1, CreatorID: &creatorID, Tier: "picture", AmountMinor: 500, Currency: "USD"}
		_, err := uc.Execute(ctx, cmd)
		require.NoError(t, err)

		_, err = uc.Execute(ctx, cmd)
		require.Error(t, err)
		assert.Equal(t, http.StatusConflict, apperrors.StatusCode(err))
		assert.Equal(t, 1, gateway.createCalls)
	})

	t.Run("provider outage maps to unavailable", func(t *testing.T) {
		repo := setupSubscriptionRepo(t)
		gateway := &fakeGateway{createErr: billing.ErrProviderUnavailable}
		uc := NewCreateSubscriptionUseCase(repo, gateway, logger.NewLogger())

		_, err := uc.Execute(ctx, CreateSubscriptionCommand{SubscriberID: 1, Tier: "picture", AmountMinor: 500, Currency: "USD"})
		require.Error(t, err)
		assert.Equal(t, http.StatusServiceUnavailable, apperrors.StatusCode(err))
	})
}
