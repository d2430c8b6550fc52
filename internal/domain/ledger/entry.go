package ledger

import (
	"fmt"
	"time"

	vo "atelier/internal/domain/ledger/valueobjects"
	"atelier/internal/shared/biztime"
	"atelier/internal/shared/id"
)

// Entry represents one payment attempt and its outcome, keyed by the
// provider's payment reference. The reference is the idempotency key for
// ledger appends: a payment observed through multiple provider events is
// recorded exactly once.
type Entry struct {
	id                 uint
	sid                string
	providerPaymentRef string
	subscriberID       uint
	creatorID          *uint
	subscriptionID     *uint
	kind               vo.EntryKind
	outcome            vo.Outcome
	amount             vo.Money
	refundedMinor      int64
	failureReason      *string
	occurredAt         time.Time
	metadata           map[string]interface{}
	version            int
	persistedVersion   int
	createdAt          time.Time
	updatedAt          time.Time
}

// NewEntry creates a ledger entry for a payment attempt. Subscription charges
// must carry a subscription link; tips and one-time payments need none.
func NewEntry(providerPaymentRef string, subscriberID uint, creatorID, subscriptionID *uint, kind vo.EntryKind, amount vo.Money, occurredAt time.Time) (*Entry, error) {
	if providerPaymentRef == "" {
		return nil, fmt.Errorf("provider payment reference is required")
	}
	if subscriberID == 0 {
		return nil, fmt.Errorf("subscriber ID is required")
	}
	if !vo.ValidKinds[kind] {
		return nil, fmt.Errorf("invalid entry kind: %s", kind)
	}
	if kind == vo.KindSubscriptionCharge && subscriptionID == nil {
		return nil, fmt.Errorf("subscription charge requires a subscription link")
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("amount must be positive")
	}

	sid, err := id.GenerateWithPrefix(id.PrefixLedgerEntry, id.DefaultLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ledger entry SID: %w", err)
	}

	if occurredAt.IsZero() {
		occurredAt = biztime.NowUTC()
	}

	now := biztime.NowUTC()
	return &Entry{
		sid:                sid,
		providerPaymentRef: providerPaymentRef,
		subscriberID:       subscriberID,
		creatorID:          creatorID,
		subscriptionID:     subscriptionID,
		kind:               kind,
		outcome:            vo.OutcomePending,
		amount:             amount,
		occurredAt:         occurredAt.UTC(),
		metadata:           make(map[string]interface{}),
		version:            1,
		createdAt:          now,
		updatedAt:          now,
	}, nil
}

// EntryReconstructParams carries persisted state back into the aggregate.
type EntryReconstructParams struct {
	ID                 uint
	SID                string
	ProviderPaymentRef string
	SubscriberID       uint
	CreatorID          *uint
	SubscriptionID     *uint
	Kind               vo.EntryKind
	Outcome            vo.Outcome
	Amount             vo.Money
	RefundedMinor      int64
	FailureReason      *string
	OccurredAt         time.Time
	Metadata           map[string]interface{}
	Version            int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// ReconstructEntry rebuilds a ledger entry from persistence.
func ReconstructEntry(p EntryReconstructParams) (*Entry, error) {
	if p.ID == 0 {
		return nil, fmt.Errorf("entry ID cannot be zero")
	}
	if p.ProviderPaymentRef == "" {
		return nil, fmt.Errorf("provider payment reference is required")
	}
	if !vo.ValidKinds[p.Kind] {
		return nil, fmt.Errorf("invalid entry kind: %s", p.Kind)
	}
	if !vo.ValidOutcomes[p.Outcome] {
		return nil, fmt.Errorf("invalid outcome: %s", p.Outcome)
	}
	if p.RefundedMinor < 0 || p.RefundedMinor > p.Amount.AmountMinor() {
		return nil, fmt.Errorf("refunded amount out of range")
	}

	metadata := p.Metadata
	if metadata == nil {
		metadata = make(map[string]interface{})
	}

	return &Entry{
		id:                 p.ID,
		sid:                p.SID,
		providerPaymentRef: p.ProviderPaymentRef,
		subscriberID:       p.SubscriberID,
		creatorID:          p.CreatorID,
		subscriptionID:     p.SubscriptionID,
		kind:               p.Kind,
		outcome:            p.Outcome,
		amount:             p.Amount,
		refundedMinor:      p.RefundedMinor,
		failureReason:      p.FailureReason,
		occurredAt:         p.OccurredAt,
		metadata:           metadata,
		version:            p.Version,
		persistedVersion:   p.Version,
		createdAt:          p.CreatedAt,
		updatedAt:          p.UpdatedAt,
	}, nil
}

func (e *Entry) ID() uint { return e.id }
func (e *Entry) SID() string { return e.sid }
func (e *Entry) ProviderPaymentRef() string { return e.providerPaymentRef }
func (e *Entry) SubscriberID() uint { return e.subscriberID }
func (e *Entry) CreatorID() *uint { return e.creatorID }
func (e *Entry) SubscriptionID() *uint { return e.subscriptionID }
func (e *Entry) Kind() vo.EntryKind { return e.kind }
func (e *Entry) Outcome() vo.Outcome { return e.outcome }
func (e *Entry) Amount() vo.Money { return e.amount }
func (e *Entry) RefundedMinor() int64 { return e.refundedMinor }
func (e *Entry) FailureReason() *string { return e.failureReason }
func (e *Entry) OccurredAt() time.Time { return e.occurredAt }
func (e *Entry) Metadata() map[string]interface{} {
	return e.metadata
}
func (e *Entry) Version() int { return e.version }

// PersistedVersion returns the version as last loaded from storage; the
// repository uses it as the optimistic-concurrency check value.
func (e *Entry) PersistedVersion() int { return e.persistedVersion }
func (e *Entry) CreatedAt() time.Time { return e.createdAt }
func (e *Entry) UpdatedAt() time.Time { return e.updatedAt }

// SetID sets the entry ID after persistence (used by repository after Create).
func (e *Entry) SetID(entryID uint) {
	e.id = entryID
}

// MarkSucceeded records a successful payment. Already-succeeded entries are a
// no-op so redelivered provider events stay idempotent.
func (e *Entry) MarkSucceeded() error {
	if e.outcome == vo.OutcomeSucceeded {
		return nil
	}
	if e.outcome != vo.OutcomePending {
		return fmt.Errorf("%w: cannot mark %s entry as succeeded", ErrInvalidOutcomeChange, e.outcome)
	}
	e.outcome = vo.OutcomeSucceeded
	e.touch()
	return nil
}

// MarkFailed records a failed payment attempt with the provider's reason.
func (e *Entry) MarkFailed(reason string) error {
	if e.outcome == vo.OutcomeFailed {
		return nil
	}
	if e.outcome != vo.OutcomePending {
		return fmt.Errorf("%w: cannot mark %s entry as failed", ErrInvalidOutcomeChange, e.outcome)
	}
	e.outcome = vo.OutcomeFailed
	if reason != "" {
		e.failureReason = &reason
	}
	e.touch()
	return nil
}

// Refund decrements the available amount. Partial refunds keep the entry
// succeeded with the refunded total tracked; a full refund flips the outcome
// to refunded. Over-refunding fails.
func (e *Entry) Refund(amountMinor int64) error {
	if amountMinor <= 0 {
		return fmt.Errorf("refund amount must be positive")
	}
	if e.outcome != vo.OutcomeSucceeded && e.outcome != vo.OutcomeRefunded {
		return fmt.Errorf("%w: cannot refund %s entry", ErrInvalidOutcomeChange, e.outcome)
	}
	if e.refundedMinor+amountMinor > e.amount.AmountMinor() {
		return fmt.Errorf("%w: %d + %d exceeds %d", ErrOverRefund, e.refundedMinor, amountMinor, e.amount.AmountMinor())
	}

	e.refundedMinor += amountMinor
	if e.refundedMinor == e.amount.AmountMinor() {
		e.outcome = vo.OutcomeRefunded
	}
	e.touch()
	return nil
}

// ReverseRefund backs out a recorded refund the provider never accepted. The
// inverse of Refund: the refunded total shrinks, and a fully refunded entry
// with balance restored becomes succeeded again.
func (e *Entry) ReverseRefund(amountMinor int64) error {
	if amountMinor <= 0 {
		return fmt.Errorf("reversal amount must be positive")
	}
	if e.outcome != vo.OutcomeSucceeded && e.outcome != vo.OutcomeRefunded {
		return fmt.Errorf("%w: cannot reverse refund on %s entry", ErrInvalidOutcomeChange, e.outcome)
	}
	if amountMinor > e.refundedMinor {
		return fmt.Errorf("reversal amount %d exceeds refunded total %d", amountMinor, e.refundedMinor)
	}

	e.refundedMinor -= amountMinor
	if e.outcome == vo.OutcomeRefunded {
		e.outcome = vo.OutcomeSucceeded
	}
	e.touch()
	return nil
}

// AvailableMinor returns the refundable balance.
func (e *Entry) AvailableMinor() int64 {
	return e.amount.AmountMinor() - e.refundedMinor
}

func (e *Entry) touch() {
	e.updatedAt = biztime.NowUTC()
	e.version++
}
