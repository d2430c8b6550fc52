package usecases

import (
	"context"
	"errors"
	"fmt"

	"atelier/internal/domain/billing"
	"atelier/internal/domain/ledger"
	ledgervo "atelier/internal/domain/ledger/valueobjects"
	"atelier/internal/domain/subscription"
	subvo "atelier/internal/domain/subscription/valueobjects"
	"atelier/internal/shared/biztime"
	"atelier/internal/shared/db"
	apperrors "atelier/internal/shared/errors"
	"atelier/internal/shared/logger"
)

// IngestProviderEventUseCase is the reconciliation pipeline for inbound
// provider events. Delivery is at-least-once and may be out of order, so the
// pipeline leans on two idempotency gates: the event-id dedup claim (exactly
// one winner per redelivery burst) and, for ledger appends, the payment
// reference uniqueness constraint. Subscription events carry the provider's
// authoritative snapshot, so re-applying them converges instead of oscillating.
type IngestProviderEventUseCase struct {
	dedup            billing.DedupStore
	subscriptionRepo subscription.SubscriptionRepository
	ledgerRepo       ledger.EntryRepository
	txManager        *db.TransactionManager
	logger           logger.Interface
}

func NewIngestProviderEventUseCase(
	dedup billing.DedupStore,
	subscriptionRepo subscription.SubscriptionRepository,
	ledgerRepo ledger.EntryRepository,
	txManager *db.TransactionManager,
	logger logger.Interface,
) *IngestProviderEventUseCase {
	return &IngestProviderEventUseCase{
		dedup:            dedup,
		subscriptionRepo: subscriptionRepo,
		ledgerRepo:       ledgerRepo,
		txManager:        txManager,
		logger:           logger,
	}
}

// Execute ingests one raw webhook payload (already signature-verified
// upstream) and returns the ack. Calling it again with the same event id
// returns the prior ack without reapplying effects.
func (uc *IngestProviderEventUseCase) Execute(ctx context.Context, payload []byte) (billing.Ack, error) {
	event, err := billing.ParseProviderEvent(payload)
	if err != nil {
		return billing.Ack{}, apperrors.NewValidationError("invalid provider event payload", err.Error())
	}

	winner, prior, err := uc.dedup.Begin(ctx, event.ID)
	if err != nil {
		uc.logger.Errorw("failed to claim provider event", "error", err, "event_id", event.ID)
		return billing.Ack{}, fmt.Errorf("failed to claim provider event: %w", err)
	}
	if !winner {
		if prior != nil {
			uc.logger.Debugw("provider event already processed", "event_id", event.ID, "result", prior.Result)
			return *prior, nil
		}
		// Another delivery holds the claim right now; let the provider retry.
		return billing.Ack{}, billing.ErrEventInFlight
	}

	// Effects and the ack commit together: a crash mid-processing leaves the
	// bare claim behind, which Release below (or claim purging) hands back to
	// the provider's redelivery.
	var ack billing.Ack
	err = uc.txManager.RunInTransaction(ctx, func(txCtx context.Context) error {
		applied, applyErr := uc.apply(txCtx, event)
		if applyErr != nil {
			return applyErr
		}
		applied.EventID = event.ID
		applied.ProcessedAt = biztime.NowUTC()
		if completeErr := uc.dedup.Complete(txCtx, event.ID, applied); completeErr != nil {
			return fmt.Errorf("failed to store event ack: %w", completeErr)
		}
		ack = applied
		return nil
	})
	if err != nil {
		// Release the claim so the provider's redelivery can retry the event.
		if relErr := uc.dedup.Release(ctx, event.ID); relErr != nil {
			uc.logger.Errorw("failed to release event claim", "error", relErr, "event_id", event.ID)
		}
		return billing.Ack{}, err
	}
	return ack, nil
}

func (uc *IngestProviderEventUseCase) apply(ctx context.Context, event *billing.ProviderEvent) (billing.Ack, error) {
	switch {
	case event.IsSubscriptionEvent():
		return uc.applySubscriptionEvent(ctx, event)
	case event.IsPaymentEvent():
		return uc.applyPaymentEvent(ctx, event)
	default:
		// The provider's event union can grow; unrecognized members degrade
		// to an acknowledged no-op.
		uc.logger.Infow("ignoring unrecognized provider event type", "event_id", event.ID, "type", event.RawType)
		return billing.Ack{Result: billing.AckIgnored, Detail: fmt.Sprintf("unrecognized event type %q", event.RawType)}, nil
	}
}

func (uc *IngestProviderEventUseCase) applySubscriptionEvent(ctx context.Context, event *billing.ProviderEvent) (billing.Ack, error) {
	snapshot := event.Subscription

	sub, err := uc.subscriptionRepo.GetByExternalRef(ctx, snapshot.Ref)
	if err != nil {
		return billing.Ack{}, fmt.Errorf("failed to look up subscription by external ref: %w", err)
	}
	if sub == nil {
		// Checkout confirmation may not have landed yet. Fail the ingestion
		// so the provider's redelivery retries once the local record exists.
		uc.logger.Warnw("provider event references unknown subscription", "event_id", event.ID, "external_ref", snapshot.Ref)
		return billing.Ack{}, fmt.Errorf("no local subscription for external ref %q", snapshot.Ref)
	}

	status := snapshot.Status
	periodStart := snapshot.CurrentPeriodStart
	periodEnd := snapshot.CurrentPeriodEnd
	if event.Type == billing.EventSubscriptionDeleted {
		status = subvo.StatusCanceled
		if periodEnd.IsZero() {
			periodEnd = event.OccurredAt
		}
		if periodEnd.IsZero() {
			periodEnd = biztime.NowUTC()
		}
	}

	// ApplyProviderStatus overwrites with the authoritative snapshot, so a
	// lost optimistic race is safe to retry against the re-read state.
	for attempt := 0; ; attempt++ {
		if err := sub.ApplyProviderStatus(status, periodStart, periodEnd); err != nil {
			return billing.Ack{}, fmt.Errorf("failed to apply provider status: %w", err)
		}
		// A snapshot that matches local state leaves the version untouched.
		if sub.Version() == sub.PersistedVersion() {
			break
		}
		err := uc.subscriptionRepo.Update(ctx, sub)
		if err == nil {
			break
		}
		if !errors.Is(err, subscription.ErrStaleSubscription) || attempt >= 1 {
			return billing.Ack{}, fmt.Errorf("failed to update subscription from provider event: %w", err)
		}
		uc.logger.Warnw("subscription update lost optimistic race, retrying once", "event_id", event.ID, "subscription_id", sub.ID())
		fresh, readErr := uc.subscriptionRepo.GetByID(ctx, sub.ID())
		if readErr != nil {
			return billing.Ack{}, fmt.Errorf("failed to re-read subscription after stale update: %w", readErr)
		}
		if fresh == nil {
			return billing.Ack{}, fmt.Errorf("subscription disappeared during reconciliation")
		}
		sub = fresh
	}

	uc.logger.Infow("applied provider subscription snapshot",
		"event_id", event.ID,
		"subscription_id", sub.ID(),
		"status", status.String(),
	)
	return billing.Ack{Result: billing.AckApplied, Detail: fmt.Sprintf("subscription %s -> %s", snapshot.Ref, status)}, nil
}

func (uc *IngestProviderEventUseCase) applyPaymentEvent(ctx context.Context, event *billing.ProviderEvent) (billing.Ack, error) {
	data := event.Payment

	var subscriptionID *uint
	if data.SubscriptionRef != "" {
		sub, err := uc.subscriptionRepo.GetByExternalRef(ctx, data.SubscriptionRef)
		if err != nil {
			return billing.Ack{}, fmt.Errorf("failed to look up subscription for payment: %w", err)
		}
		if sub != nil {
			sid := sub.ID()
			subscriptionID = &sid
		}
	}

	kind := ledgervo.EntryKind(data.Kind)
	if !ledgervo.ValidKinds[kind] {
		if subscriptionID != nil {
			kind = ledgervo.KindSubscriptionCharge
		} else {
			kind = ledgervo.KindOneTime
		}
	}
	if kind == ledgervo.KindSubscriptionCharge && subscriptionID == nil {
		// Tips and one-off payments need no subscription link; a charge for a
		// subscription we cannot resolve is recorded unlinked rather than lost.
		uc.logger.Warnw("subscription charge without resolvable subscription", "event_id", event.ID, "subscription_ref", data.SubscriptionRef)
		kind = ledgervo.KindOneTime
	}

	entry, err := ledger.NewEntry(
		data.Ref,
		data.SubscriberID,
		data.CreatorID,
		subscriptionID,
		kind,
		ledgervo.NewMoney(data.AmountMinor, data.Currency),
		event.OccurredAt,
	)
	if err != nil {
		return billing.Ack{}, apperrors.NewValidationError("invalid payment data", err.Error())
	}

	switch event.Type {
	case billing.EventPaymentSucceeded, billing.EventInvoicePaid:
		if err := entry.MarkSucceeded(); err != nil {
			return billing.Ack{}, fmt.Errorf("failed to mark payment succeeded: %w", err)
		}
	case billing.EventPaymentFailed:
		// A failed payment is ledger bookkeeping only. Subscription status is
		// never guessed from it; the provider's subsequent subscription event
		// is authoritative, which avoids acting on a transient retryable failure.
		if err := entry.MarkFailed(data.FailureReason); err != nil {
			return billing.Ack{}, fmt.Errorf("failed to mark payment failed: %w", err)
		}
	}

	if err := uc.ledgerRepo.Create(ctx, entry); err != nil {
		if errors.Is(err, ledger.ErrDuplicateEntry) {
			// A single payment can generate multiple distinct events; the
			// payment reference constraint makes the append idempotent.
			uc.logger.Infow("ledger entry already recorded", "event_id", event.ID, "payment_ref", data.Ref)
			return billing.Ack{Result: billing.AckDuplicate, Detail: fmt.Sprintf("payment %s already recorded", data.Ref)}, nil
		}
		return billing.Ack{}, fmt.Errorf("failed to append ledger entry: %w", err)
	}

	uc.logger.Infow("ledger entry recorded",
		"event_id", event.ID,
		"payment_ref", data.Ref,
		"kind", kind.String(),
		"outcome", entry.Outcome().String(),
	)
	return billing.Ack{Result: billing.AckApplied, Detail: fmt.Sprintf("payment %s recorded as %s", data.Ref, entry.Outcome())}, nil
}
