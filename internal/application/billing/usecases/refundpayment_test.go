package usecases

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atelier/internal/domain/billing"
	"atelier/internal/domain/ledger"
	ledgervo "atelier/internal/domain/ledger/valueobjects"
	"atelier/internal/shared/biztime"
	apperrors "atelier/internal/shared/errors"
	"atelier/internal/shared/logger"
)

// refundFakeGateway only cares about the refund call; the rest of the
// provider surface is unreachable from this use case.
type refundFakeGateway struct {
	refundErr   error
	refundCalls int
	lastRef     string
	lastMinor   int64
}

func (g *refundFakeGateway) CreateRemoteSubscription(ctx context.Context, req billing.CreateSubscriptionRequest) (*billing.RemoteSubscription, error) {
	return nil, nil
}

func (g *refundFakeGateway) CancelRemoteSubscription(ctx context.Context, ref string, immediate bool) error {
	return nil
}

func (g *refundFakeGateway) ReactivateRemoteSubscription(ctx context.Context, ref string) (*billing.RemoteSubscription, error) {
	return nil, nil
}

func (g *refundFakeGateway) CreatePaymentIntent(ctx context.Context, amountMinor int64, currency string, metadata map[string]string) (*billing.PaymentIntent, error) {
	return nil, nil
}

func (g *refundFakeGateway) RefundPayment(ctx context.Context, paymentRef string, amountMinor int64) error {
	g.refundCalls++
	g.lastRef = paymentRef
	g.lastMinor = amountMinor
	return g.refundErr
}

// racingLedgerRepo commits a competing write between the use case's first
// read and its optimistic update, forcing the stale path deterministically.
type racingLedgerRepo struct {
	ledger.EntryRepository
	raced   bool
	compete func()
}

func (r *racingLedgerRepo) GetByProviderPaymentRef(ctx context.Context, ref string) (*ledger.Entry, error) {
	entry, err := r.EntryRepository.GetByProviderPaymentRef(ctx, ref)
	if err == nil && entry != nil && !r.raced {
		r.raced = true
		r.compete()
	}
	return entry, err
}

func (env *billingTestEnv) seedSucceededPayment(t *testing.T, ref string, amountMinor int64) {
	t.Helper()
	entry, err := ledger.NewEntry(ref, 1, nil, nil, ledgervo.KindTip, ledgervo.NewMoney(amountMinor, "USD"), biztime.NowUTC())
	require.NoError(t, err)
	require.NoError(t, entry.MarkSucceeded())
	require.NoError(t, env.ledgerRepo.Create(context.Background(), entry))
}

func TestRefundPaymentUseCase(t *testing.T) {
	ctx := context.Background()

	t.Run("partial refund updates the ledger and calls the provider", func(t *testing.T) {
		env := setupBillingTest(t)
		env.seedSucceededPayment(t, "pi_1", 1000)
		gateway := &refundFakeGateway{}
		uc := NewRefundPaymentUseCase(env.ledgerRepo, gateway, logger.NewLogger())

		err := uc.Execute(ctx, RefundPaymentCommand{ProviderPaymentRef: "pi_1", AmountMinor: 300})
		require.NoError(t, err)
		assert.Equal(t, 1, gateway.refundCalls)
		assert.Equal(t, "pi_1", gateway.lastRef)
		assert.Equal(t, int64(300), gateway.lastMinor)

		entry, err := env.ledgerRepo.GetByProviderPaymentRef(ctx, "pi_1")
		require.NoError(t, err)
		assert.Equal(t, int64(300), entry.RefundedMinor())
		assert.Equal(t, ledgervo.OutcomeSucceeded, entry.Outcome())
	})

	t.Run("full refund flips the outcome", func(t *testing.T) {
		env := setupBillingTest(t)
		env.seedSucceededPayment(t, "pi_1", 1000)
		uc := NewRefundPaymentUseCase(env.ledgerRepo, &refundFakeGateway{}, logger.NewLogger())

		require.NoError(t, uc.Execute(ctx, RefundPaymentCommand{ProviderPaymentRef: "pi_1", AmountMinor: 1000}))

		entry, err := env.ledgerRepo.GetByProviderPaymentRef(ctx, "pi_1")
		require.NoError(t, err)
		assert.Equal(t, ledgervo.OutcomeRefunded, entry.Outcome())
		assert.Zero(t, entry.AvailableMinor())
	})

	t.Run("over-refund fails before the provider call", func(t *testing.T) {
		env := setupBillingTest(t)
		env.seedSucceededPayment(t, "pi_1", 1000)
		gateway := &refundFakeGateway{}
		uc := NewRefundPaymentUseCase(env.ledgerRepo, gateway, logger.NewLogger())

		err := uc.Execute(ctx, RefundPaymentCommand{ProviderPaymentRef: "pi_1", AmountMinor: 1200})
		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, apperrors.StatusCode(err))
		assert.Zero(t, gateway.refundCalls)
	})

	t.Run("pending payment cannot be refunded", func(t *testing.T) {
		env := setupBillingTest(t)
		entry, err := ledger.NewEntry("pi_pending", 1, nil, nil, ledgervo.KindTip, ledgervo.NewMoney(1000, "USD"), biztime.NowUTC())
		require.NoError(t, err)
		require.NoError(t, env.ledgerRepo.Create(ctx, entry))

		uc := NewRefundPaymentUseCase(env.ledgerRepo, &refundFakeGateway{}, logger.NewLogger())
		err = uc.Execute(ctx, RefundPaymentCommand{ProviderPaymentRef: "pi_pending", AmountMinor: 100})
		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, apperrors.StatusCode(err))
	})

	t.Run("unknown payment is not found", func(t *testing.T) {
		env := setupBillingTest(t)
		uc := NewRefundPaymentUseCase(env.ledgerRepo, &refundFakeGateway{}, logger.NewLogger())

		err := uc.Execute(ctx, RefundPaymentCommand{ProviderPaymentRef: "pi_missing", AmountMinor: 100})
		require.Error(t, err)
		assert.Equal(t, http.StatusNotFound, apperrors.StatusCode(err))
	})

	t.Run("provider outage leaves the ledger untouched", func(t *testing.T) {
		env := setupBillingTest(t)
		env.seedSucceededPayment(t, "pi_1", 1000)
		gateway := &refundFakeGateway{refundErr: billing.ErrProviderUnavailable}
		uc := NewRefundPaymentUseCase(env.ledgerRepo, gateway, logger.NewLogger())

		err := uc.Execute(ctx, RefundPaymentCommand{ProviderPaymentRef: "pi_1", AmountMinor: 300})
		require.Error(t, err)
		assert.Equal(t, http.StatusServiceUnavailable, apperrors.StatusCode(err))

		entry, getErr := env.ledgerRepo.GetByProviderPaymentRef(ctx, "pi_1")
		require.NoError(t, getErr)
		assert.Zero(t, entry.RefundedMinor())
		assert.Equal(t, ledgervo.OutcomeSucceeded, entry.Outcome())
	})

	t.Run("rejected full refund is reversed back to succeeded", func(t *testing.T) {
		env := setupBillingTest(t)
		env.seedSucceededPayment(t, "pi_1", 1000)
		gateway := &refundFakeGateway{refundErr: billing.ErrProviderUnavailable}
		uc := NewRefundPaymentUseCase(env.ledgerRepo, gateway, logger.NewLogger())

		err := uc.Execute(ctx, RefundPaymentCommand{ProviderPaymentRef: "pi_1", AmountMinor: 1000})
		require.Error(t, err)

		entry, getErr := env.ledgerRepo.GetByProviderPaymentRef(ctx, "pi_1")
		require.NoError(t, getErr)
		assert.Equal(t, ledgervo.OutcomeSucceeded, entry.Outcome())
		assert.Equal(t, int64(1000), entry.AvailableMinor())
	})

	t.Run("concurrent refunds past the balance keep the loser off the provider", func(t *testing.T) {
		env := setupBillingTest(t)
		env.seedSucceededPayment(t, "pi_1", 1000)
		gateway := &refundFakeGateway{}
		repo := &racingLedgerRepo{EntryRepository: env.ledgerRepo}
		repo.compete = func() {
			other, err := env.ledgerRepo.GetByProviderPaymentRef(ctx, "pi_1")
			require.NoError(t, err)
			require.NoError(t, other.Refund(600))
			require.NoError(t, env.ledgerRepo.Update(ctx, other))
		}
		uc := NewRefundPaymentUseCase(repo, gateway, logger.NewLogger())

		err := uc.Execute(ctx, RefundPaymentCommand{ProviderPaymentRef: "pi_1", AmountMinor: 600})
		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, apperrors.StatusCode(err))
		assert.Zero(t, gateway.refundCalls)

		entry, getErr := env.ledgerRepo.GetByProviderPaymentRef(ctx, "pi_1")
		require.NoError(t, getErr)
		assert.Equal(t, int64(600), entry.RefundedMinor())
	})

	t.Run("stale retry commits before the provider call when balance remains", func(t *testing.T) {
		env := setupBillingTest(t)
		env.seedSucceededPayment(t, "pi_1", 1000)
		gateway := &refundFakeGateway{}
		repo := &racingLedgerRepo{EntryRepository: env.ledgerRepo}
		repo.compete = func() {
			other, err := env.ledgerRepo.GetByProviderPaymentRef(ctx, "pi_1")
			require.NoError(t, err)
			require.NoError(t, other.Refund(300))
			require.NoError(t, env.ledgerRepo.Update(ctx, other))
		}
		uc := NewRefundPaymentUseCase(repo, gateway, logger.NewLogger())

		require.NoError(t, uc.Execute(ctx, RefundPaymentCommand{ProviderPaymentRef: "pi_1", AmountMinor: 300}))
		assert.Equal(t, 1, gateway.refundCalls)

		entry, getErr := env.ledgerRepo.GetByProviderPaymentRef(ctx, "pi_1")
		require.NoError(t, getErr)
		assert.Equal(t, int64(600), entry.RefundedMinor())
	})
}

func TestRevenueSummaryUseCase(t *testing.T) {
	ctx := context.Background()
	env := setupBillingTest(t)

	creatorID := uint(7)
	seed := func(ref string, creator *uint, amount int64) {
		entry, err := ledger.NewEntry(ref, 1, creator, nil, ledgervo.KindTip, ledgervo.NewMoney(amount, "USD"), biztime.NowUTC())
		require.NoError(t, err)
		require.NoError(t, entry.MarkSucceeded())
		require.NoError(t, env.ledgerRepo.Create(ctx, entry))
	}
	seed("pi_rev_1", &creatorID, 1000)
	seed("pi_rev_2", &creatorID, 2000)
	seed("pi_rev_3", nil, 5000)

	uc := NewRevenueSummaryUseCase(env.ledgerRepo, logger.NewLogger())
	from := biztime.NowUTC().AddDate(0, 0, -1)
	to := biztime.NowUTC().AddDate(0, 0, 1)

	t.Run("per-creator total", func(t *testing.T) {
		summary, err := uc.Execute(ctx, RevenueSummaryQuery{CreatorID: &creatorID, From: from, To: to})
		require.NoError(t, err)
		assert.Equal(t, int64(3000), summary.TotalMinor)
	})

	t.Run("platform-wide total", func(t *testing.T) {
		summary, err := uc.Execute(ctx, RevenueSummaryQuery{From: from, To: to})
		require.NoError(t, err)
		assert.Equal(t, int64(8000), summary.TotalMinor)
	})
}
