package usecases

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

	"atelier/internal/domain/billing"
	"atelier/internal/domain/ledger"
	"atelier/internal/domain/subscription"
	subvo "atelier/internal/domain/subscription/valueobjects"
	"atelier/internal/infrastructure/persistence/migrations"
	"atelier/internal/infrastructure/repository"
	"atelier/internal/shared/biztime"
	"atelier/internal/shared/db"
	"atelier/internal/shared/logger"
)

type billingTestEnv struct {
	subscriptionRepo subscription.SubscriptionRepository
	ledgerRepo       ledger.EntryRepository
	dedup            billing.DedupStore
	ingest           *IngestProviderEventUseCase
}

func setupBillingTest(t *testing.T) *billingTestEnv {
	t.Helper()
	gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, migrations.MigrateBillingTables(gormDB))

	log := logger.NewLogger()
	env := &billingTestEnv{
		subscriptionRepo: repository.NewSubscriptionRepository(gormDB, log),
		ledgerRepo:       repository.NewLedgerEntryRepository(gormDB, log),
		dedup:            repository.NewDedupStore(gormDB, log),
	}
	env.ingest = NewIngestProviderEventUseCase(env.dedup, env.subscriptionRepo, env.ledgerRepo, db.NewTransactionManager(gormDB), log)
	return env
}

func (env *billingTestEnv) seedSubscription(t *testing.T, externalRef string) *subscription.Subscription {
	t.Helper()
	start := biztime.NowUTC()
	sub, err := subscription.NewSubscription(1, nil, subvo.TierSoloVideo, externalRef, start, start.AddDate(0, 1, 0))
	require.NoError(t, err)
	require.NoError(t, env.subscriptionRepo.Create(context.Background(), sub))
	return sub
}

func subscriptionEventPayload(eventID, eventType, ref, status string, periodStart, periodEnd time.Time) []byte {
	return []byte(fmt.Sprintf(`{
		"id": %q,
		"type": %q,
		"created": %d,
		"data": {
			"subscription": {
				"ref": %q,
				"status": %q,
				"current_period_start": %d,
				"current_period_end": %d
			}
		}
	}`, eventID, eventType, time.Now().Unix(), ref, status, periodStart.Unix(), periodEnd.Unix()))
}

func paymentEventPayload(eventID, eventType, paymentRef, subscriptionRef string, amountMinor int64) []byte {
	return []byte(fmt.Sprintf(`{
		"id": %q,
		"type": %q,
		"created": %d,
		"data": {
			"payment": {
				"ref": %q,
				"subscriber_id": 1,
				"subscription_ref": %q,
				"kind": "subscription_charge",
				"amount": %d,
				"currency": "USD",
				"failure_reason": "card_declined"
			}
		}
	}`, eventID, eventType, time.Now().Unix(), paymentRef, subscriptionRef, amountMinor))
}

func TestIngestProviderEvent_SubscriptionEvents(t *testing.T) {
	ctx := context.Background()

	t.Run("applies the provider snapshot", func(t *testing.T) {
		env := setupBillingTest(t)
		sub := env.seedSubscription(t, "sub_ext_1")

		periodStart := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
		periodEnd := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
		ack, err := env.ingest.Execute(ctx, subscriptionEventPayload("evt_1", "subscription.updated", "sub_ext_1", "past_due", periodStart, periodEnd))
		require.NoError(t, err)
		assert.Equal(t, billing.AckApplied, ack.Result)
		assert.Equal(t, "evt_1", ack.EventID)

		stored, err := env.subscriptionRepo.GetByID(ctx, sub.ID())
		require.NoError(t, err)
		assert.Equal(t, subvo.StatusPastDue, stored.Status())
		assert.True(t, stored.CurrentPeriodEnd().Equal(periodEnd))
	})

	t.Run("redelivery returns the stored ack without reapplying", func(t *testing.T) {
		env := setupBillingTest(t)
		sub := env.seedSubscription(t, "sub_ext_1")

		payload := subscriptionEventPayload("evt_dup", "subscription.updated", "sub_ext_1", "past_due", biztime.NowUTC(), biztime.NowUTC().AddDate(0, 1, 0))
		first, err := env.ingest.Execute(ctx, payload)
		require.NoError(t, err)

		afterFirst, err := env.subscriptionRepo.GetByID(ctx, sub.ID())
		require.NoError(t, err)

		second, err := env.ingest.Execute(ctx, payload)
		require.NoError(t, err)
		assert.Equal(t, first.Result, second.Result)
		assert.Equal(t, first.EventID, second.EventID)

		afterSecond, err := env.subscriptionRepo.GetByID(ctx, sub.ID())
		require.NoError(t, err)
		assert.Equal(t, afterFirst.Version(), afterSecond.Version())
	})

	t.Run("deleted event cancels, and a second distinct delivery converges", func(t *testing.T) {
		env := setupBillingTest(t)
		sub := env.seedSubscription(t, "sub_ext_1")

		periodEnd := biztime.NowUTC()
		first, err := env.ingest.Execute(ctx, subscriptionEventPayload("evt_del_1", "subscription.deleted", "sub_ext_1", "canceled", sub.CurrentPeriodStart(), periodEnd))
		require.NoError(t, err)
		assert.Equal(t, billing.AckApplied, first.Result)

		stored, err := env.subscriptionRepo.GetByID(ctx, sub.ID())
		require.NoError(t, err)
		assert.Equal(t, subvo.StatusCanceled, stored.Status())
		assert.True(t, stored.IsTerminal())

		// The provider sometimes emits both updated and deleted for one
		// cancellation. Reapplying the same snapshot is a no-op.
		second, err := env.ingest.Execute(ctx, subscriptionEventPayload("evt_del_2", "subscription.deleted", "sub_ext_1", "canceled", sub.CurrentPeriodStart(), periodEnd))
		require.NoError(t, err)
		assert.Equal(t, billing.AckApplied, second.Result)
	})

	t.Run("unknown subscription ref fails so redelivery can retry", func(t *testing.T) {
		env := setupBillingTest(t)

		payload := subscriptionEventPayload("evt_early", "subscription.updated", "sub_ext_ghost", "active", biztime.NowUTC(), biztime.NowUTC().AddDate(0, 1, 0))
		_, err := env.ingest.Execute(ctx, payload)
		require.Error(t, err)

		// Once checkout confirmation lands, the same event id succeeds: the
		// failed attempt released its claim.
		env.seedSubscription(t, "sub_ext_ghost")
		ack, err := env.ingest.Execute(ctx, payload)
		require.NoError(t, err)
		assert.Equal(t, billing.AckApplied, ack.Result)
	})

	t.Run("unrecognized event type acks as ignored", func(t *testing.T) {
		env := setupBillingTest(t)

		ack, err := env.ingest.Execute(ctx, []byte(`{"id": "evt_odd", "type": "customer.updated", "created": 1756684800, "data": {}}`))
		require.NoError(t, err)
		assert.Equal(t, billing.AckIgnored, ack.Result)
	})

	t.Run("invalid payload is rejected", func(t *testing.T) {
		env := setupBillingTest(t)

		_, err := env.ingest.Execute(ctx, []byte(`{"type": "subscription.updated"}`))
		assert.Error(t, err)
	})
}

func TestIngestProviderEvent_PaymentEvents(t *testing.T) {
	ctx := context.Background()

	t.Run("payment succeeded appends a linked ledger entry", func(t *testing.T) {
		env := setupBillingTest(t)
		sub := env.seedSubscription(t, "sub_ext_1")

		ack, err := env.ingest.Execute(ctx, paymentEventPayload("evt_pay_1", "payment.succeeded", "pi_1", "sub_ext_1", 1500))
		require.NoError(t, err)
		assert.Equal(t, billing.AckApplied, ack.Result)

		entry, err := env.ledgerRepo.GetByProviderPaymentRef(ctx, "pi_1")
		require.NoError(t, err)
		require.NotNil(t, entry)
		assert.Equal(t, "succeeded", entry.Outcome().String())
		assert.Equal(t, int64(1500), entry.Amount().AmountMinor())
		require.NotNil(t, entry.SubscriptionID())
		assert.Equal(t, sub.ID(), *entry.SubscriptionID())
	})

	t.Run("same payment via a second distinct event acks duplicate", func(t *testing.T) {
		env := setupBillingTest(t)
		env.seedSubscription(t, "sub_ext_1")

		_, err := env.ingest.Execute(ctx, paymentEventPayload("evt_pay_1", "payment.succeeded", "pi_1", "sub_ext_1", 1500))
		require.NoError(t, err)

		// invoice.paid for the same payment reference must not double-count.
		ack, err := env.ingest.Execute(ctx, paymentEventPayload("evt_inv_1", "invoice.paid", "pi_1", "sub_ext_1", 1500))
		require.NoError(t, err)
		assert.Equal(t, billing.AckDuplicate, ack.Result)
	})

	t.Run("payment failed records the reason without touching status", func(t *testing.T) {
		env := setupBillingTest(t)
		sub := env.seedSubscription(t, "sub_ext_1")

		ack, err := env.ingest.Execute(ctx, paymentEventPayload("evt_fail_1", "payment.failed", "pi_2", "sub_ext_1", 1500))
		require.NoError(t, err)
		assert.Equal(t, billing.AckApplied, ack.Result)

		entry, err := env.ledgerRepo.GetByProviderPaymentRef(ctx, "pi_2")
		require.NoError(t, err)
		require.NotNil(t, entry)
		assert.Equal(t, "failed", entry.Outcome().String())
		require.NotNil(t, entry.FailureReason())
		assert.Equal(t, "card_declined", *entry.FailureReason())

		// Status reconciliation waits for the provider's subscription event.
		stored, err := env.subscriptionRepo.GetByID(ctx, sub.ID())
		require.NoError(t, err)
		assert.Equal(t, subvo.StatusActive, stored.Status())
	})

	t.Run("payment without resolvable subscription is recorded unlinked", func(t *testing.T) {
		env := setupBillingTest(t)

		ack, err := env.ingest.Execute(ctx, paymentEventPayload("evt_pay_1", "payment.succeeded", "pi_3", "sub_ext_ghost", 900))
		require.NoError(t, err)
		assert.Equal(t, billing.AckApplied, ack.Result)

		entry, err := env.ledgerRepo.GetByProviderPaymentRef(ctx, "pi_3")
		require.NoError(t, err)
		require.NotNil(t, entry)
		assert.Nil(t, entry.SubscriptionID())
		assert.Equal(t, "one_time", entry.Kind().String())
	})
}
