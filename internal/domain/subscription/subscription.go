package subscription

import (
	"fmt"
	"time"

	vo "atelier/internal/domain/subscription/valueobjects"
	"atelier/internal/shared/biztime"
	"atelier/internal/shared/id"
)

// Subscription represents the subscription aggregate root: one subscriber's
// entitlement to one creator's tiered content, kept in sync with the external
// billing provider.
type Subscription struct {
	id                    uint
	sid                   string
	subscriberID          uint
	creatorID             *uint
	tier                  vo.Tier
	externalRef           *string
	status                vo.SubscriptionStatus
	currentPeriodStart    time.Time
	currentPeriodEnd      time.Time
	cancelAtPeriodEnd     bool
	canceledAt            *time.Time
	pendingReconciliation bool
	metadata              map[string]interface{}
	version               int
	persistedVersion      int
	createdAt             time.Time
	updatedAt             time.Time
}

// NewSubscription creates an active subscription after a successful checkout
// confirmation. The external reference may be empty until the first provider
// round-trip completes.
func NewSubscription(subscriberID uint, creatorID *uint, tier vo.Tier, externalRef string, periodStart, periodEnd time.Time) (*Subscription, error) {
	if subscriberID == 0 {
		return nil, fmt.Errorf("subscriber ID is required")
	}
	if creatorID != nil && *creatorID == 0 {
		return nil, fmt.Errorf("creator ID cannot be zero")
	}
	if !tier.IsValid() {
		return nil, fmt.Errorf("invalid tier: %s", tier)
	}
	if !periodStart.Before(periodEnd) {
		return nil, fmt.Errorf("period start must be before period end")
	}

	sid, err := id.GenerateWithPrefix(id.PrefixSubscription, id.DefaultLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate subscription SID: %w", err)
	}

	var ref *string
	if externalRef != "" {
		ref = &externalRef
	}

	now := biztime.NowUTC()
	return &Subscription{
		sid:                sid,
		subscriberID:       subscriberID,
		creatorID:          creatorID,
		tier:               tier,
		externalRef:        ref,
		status:             vo.StatusActive,
		currentPeriodStart: periodStart.UTC(),
		currentPeriodEnd:   periodEnd.UTC(),
		metadata:           make(map[string]interface{}),
		version:            1,
		createdAt:          now,
		updatedAt:          now,
	}, nil
}

// SubscriptionReconstructParams carries persisted state back into the aggregate.
type SubscriptionReconstructParams struct {
	ID                    uint
	SID                   string
	SubscriberID          uint
	CreatorID             *uint
	Tier                  vo.Tier
	ExternalRef           *string
	Status                vo.SubscriptionStatus
	CurrentPeriodStart    time.Time
	CurrentPeriodEnd      time.Time
	CancelAtPeriodEnd     bool
	CanceledAt            *time.Time
	PendingReconciliation bool
	Metadata              map[string]interface{}
	Version               int
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// ReconstructSubscription rebuilds a subscription from persistence.
func ReconstructSubscription(p SubscriptionReconstructParams) (*Subscription, error) {
	if p.ID == 0 {
		return nil, fmt.Errorf("subscription ID cannot be zero")
	}
	if p.SubscriberID == 0 {
		return nil, fmt.Errorf("subscriber ID is required")
	}
	if !vo.ValidStatuses[p.Status] {
		return nil, fmt.Errorf("invalid subscription status: %s", p.Status)
	}
	if !p.Tier.IsValid() {
		return nil, fmt.Errorf("invalid tier: %s", p.Tier)
	}

	metadata := p.Metadata
	if metadata == nil {
		metadata = make(map[string]interface{})
	}

	return &Subscription{
		id:                    p.ID,
		sid:                   p.SID,
		subscriberID:          p.SubscriberID,
		creatorID:             p.CreatorID,
		tier:                  p.Tier,
		externalRef:           p.ExternalRef,
		status:                p.Status,
		currentPeriodStart:    p.CurrentPeriodStart,
		currentPeriodEnd:      p.CurrentPeriodEnd,
		cancelAtPeriodEnd:     p.CancelAtPeriodEnd,
		canceledAt:            p.CanceledAt,
		pendingReconciliation: p.PendingReconciliation,
		metadata:              metadata,
		version:               p.Version,
		persistedVersion:      p.Version,
		createdAt:             p.CreatedAt,
		updatedAt:             p.UpdatedAt,
	}, nil
}

func (s *Subscription) ID() uint { return s.id }
func (s *Subscription) SID() string { return s.sid }
func (s *Subscription) SubscriberID() uint { return s.subscriberID }
func (s *Subscription) CreatorID() *uint { return s.creatorID }
func (s *Subscription) Tier() vo.Tier { return s.tier }
func (s *Subscription) ExternalRef() *string { return s.externalRef }
func (s *Subscription) Status() vo.SubscriptionStatus { return s.status }
func (s *Subscription) CurrentPeriodStart() time.Time { return s.currentPeriodStart }
func (s *Subscription) CurrentPeriodEnd() time.Time { return s.currentPeriodEnd }
func (s *Subscription) CancelAtPeriodEnd() bool { return s.cancelAtPeriodEnd }
func (s *Subscription) CanceledAt() *time.Time { return s.canceledAt }
func (s *Subscription) PendingReconciliation() bool { return s.pendingReconciliation }
func (s *Subscription) Metadata() map[string]interface{} {
	return s.metadata
}
func (s *Subscription) Version() int { return s.version }

// PersistedVersion returns the version as last loaded from storage; the
// repository uses it as the optimistic-concurrency check value.
func (s *Subscription) PersistedVersion() int { return s.persistedVersion }
func (s *Subscription) CreatedAt() time.Time { return s.createdAt }
func (s *Subscription) UpdatedAt() time.Time { return s.updatedAt }

// SetID sets the subscription ID (only for persistence layer use)
func (s *Subscription) SetID(subscriptionID uint) error {
	if s.id != 0 {
		return fmt.Errorf("subscription ID is already set")
	}
	if subscriptionID == 0 {
		return fmt.Errorf("subscription ID cannot be zero")
	}
	s.id = subscriptionID
	return nil
}

// SetExternalRef records the provider's subscription reference once the first
// remote round-trip completes.
func (s *Subscription) SetExternalRef(ref string) error {
	if ref == "" {
		return fmt.Errorf("external reference cannot be empty")
	}
	if s.externalRef != nil && *s.externalRef == ref {
		return nil
	}
	s.externalRef = &ref
	s.touch()
	return nil
}

// Cancel applies a user-initiated cancellation. Immediate cancellation moves
// the record to canceled and truncates the current period so access is revoked
// on the next read. Otherwise only the intent is recorded: the status stays
// active and the record terminates when the provider reports the period end.
func (s *Subscription) Cancel(immediate bool) error {
	now := biztime.NowUTC()

	if immediate {
		if s.status == vo.StatusCanceled {
			return nil
		}
		if !s.status.CanTransitionTo(vo.StatusCanceled) {
			return ErrInvalidTransition(s.status.String(), vo.StatusCanceled.String())
		}
		s.status = vo.StatusCanceled
		s.canceledAt = &now
		s.currentPeriodEnd = now
		s.cancelAtPeriodEnd = false
		s.touch()
		return nil
	}

	if s.status != vo.StatusActive {
		return fmt.Errorf("%w: cannot schedule cancellation with status %s", ErrInvalidStatus, s.status)
	}
	if s.cancelAtPeriodEnd {
		return nil
	}
	s.cancelAtPeriodEnd = true
	s.canceledAt = &now
	s.touch()
	return nil
}

// Reactivate resumes billing for a canceled or past-due subscription. It is
// illegal from active (nothing to do) and from paused (administrative pause is
// lifted by a distinct operation, not by billing reactivation).
func (s *Subscription) Reactivate(periodStart, periodEnd time.Time) error {
	if s.status != vo.StatusCanceled && s.status != vo.StatusPastDue {
		return fmt.Errorf("%w: cannot reactivate subscription with status %s", ErrInvalidStatus, s.status)
	}
	if !periodStart.Before(periodEnd) {
		return fmt.Errorf("period start must be before period end")
	}

	s.status = vo.StatusActive
	s.cancelAtPeriodEnd = false
	s.canceledAt = nil
	s.currentPeriodStart = periodStart.UTC()
	s.currentPeriodEnd = periodEnd.UTC()
	s.touch()
	return nil
}

// ApplyProviderStatus overwrites status and period with the provider's
// authoritative snapshot. This is the only path into past_due, unpaid and
// paused; local code must never guess these from absence of payment.
// Re-applying an identical snapshot is a no-op, which keeps event ingestion
// idempotent and order-insensitive.
func (s *Subscription) ApplyProviderStatus(status vo.SubscriptionStatus, periodStart, periodEnd time.Time) error {
	if !vo.ValidStatuses[status] {
		return fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}

	periodStart = periodStart.UTC()
	periodEnd = periodEnd.UTC()
	// Zero values mean the event omitted that bound; keep the local one.
	if periodStart.IsZero() {
		periodStart = s.currentPeriodStart
	}
	if periodEnd.IsZero() {
		periodEnd = s.currentPeriodEnd
	}
	if periodEnd.Before(periodStart) {
		return fmt.Errorf("period end must not be before period start")
	}
	// Immediate cancellation truncates the period end to the cancel instant,
	// so a terminal snapshot may echo an empty period. Any other status needs
	// a real half-open window.
	if periodEnd.Equal(periodStart) && !status.IsTerminal() {
		return fmt.Errorf("period start must be before period end")
	}

	sameStatus := s.status == status
	samePeriod := s.currentPeriodStart.Equal(periodStart) && s.currentPeriodEnd.Equal(periodEnd)
	if sameStatus && samePeriod && !s.pendingReconciliation {
		return nil
	}

	now := biztime.NowUTC()
	if status == vo.StatusCanceled && s.canceledAt == nil {
		s.canceledAt = &now
	}
	if status == vo.StatusActive && s.status == vo.StatusCanceled {
		// Provider-side reactivation; clear local cancellation state.
		s.canceledAt = nil
		s.cancelAtPeriodEnd = false
	}

	s.status = status
	s.currentPeriodStart = periodStart
	s.currentPeriodEnd = periodEnd
	s.pendingReconciliation = false
	s.touch()
	return nil
}

// MarkPendingReconciliation flags the record after an outbound provider call
// timed out: the call may have succeeded provider-side, so local state must
// not be trusted until the webhook resolves the ambiguity.
func (s *Subscription) MarkPendingReconciliation() {
	if s.pendingReconciliation {
		return
	}
	s.pendingReconciliation = true
	s.touch()
}

// IsTerminal reports whether the record has ended its lifecycle.
func (s *Subscription) IsTerminal() bool {
	return s.status.IsTerminal()
}

// Validate performs domain-level validation.
func (s *Subscription) Validate() error {
	if s.subscriberID == 0 {
		return fmt.Errorf("subscriber ID is required")
	}
	if !vo.ValidStatuses[s.status] {
		return fmt.Errorf("invalid status: %s", s.status)
	}
	if !s.tier.IsValid() {
		return fmt.Errorf("invalid tier: %s", s.tier)
	}
	if s.currentPeriodEnd.Before(s.currentPeriodStart) {
		return fmt.Errorf("current period end must not be before current period start")
	}
	if s.canceledAt != nil && s.status != vo.StatusCanceled && !(s.status == vo.StatusActive && s.cancelAtPeriodEnd) {
		return fmt.Errorf("canceledAt set without a terminal or pending-cancel state")
	}
	return nil
}

func (s *Subscription) touch() {
	s.updatedAt = biztime.NowUTC()
	s.version++
}
