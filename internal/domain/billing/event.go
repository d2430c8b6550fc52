package billing

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	subvo "atelier/internal/domain/subscription/valueobjects"
)

// EventType is the closed set of provider event kinds this system reacts to.
// The provider's union type can grow; unrecognized members decode to
// EventUnknown and degrade to a no-op, never an error.
type EventType string

const (
	EventSubscriptionCreated EventType = "subscription.created"
	EventSubscriptionUpdated EventType = "subscription.updated"
	EventSubscriptionDeleted EventType = "subscription.deleted"
	EventPaymentSucceeded    EventType = "payment.succeeded"
	EventPaymentFailed       EventType = "payment.failed"
	EventInvoicePaid         EventType = "invoice.paid"
	EventUnknown             EventType = "unknown"
)

var knownEventTypes = map[EventType]bool{
	EventSubscriptionCreated: true,
	EventSubscriptionUpdated: true,
	EventSubscriptionDeleted: true,
	EventPaymentSucceeded:    true,
	EventPaymentFailed:       true,
	EventInvoicePaid:         true,
}

// SubscriptionSnapshot is the provider's canonical current state for a
// subscription, not a delta. Applying the same snapshot repeatedly is a no-op,
// which is what makes ingestion order-insensitive for status and period.
type SubscriptionSnapshot struct {
	Ref                string
	Status             subvo.SubscriptionStatus
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
}

// PaymentData describes a payment observed in a provider event.
type PaymentData struct {
	Ref             string
	SubscriberID    uint
	CreatorID       *uint
	SubscriptionRef string
	Kind            string
	AmountMinor     int64
	Currency        string
	FailureReason   string
}

// ProviderEvent is the decoded form of a provider webhook payload: a tagged
// union over the known event kinds plus an explicit unknown variant. Raw
// payloads are never trusted as free-form objects past this boundary.
type ProviderEvent struct {
	ID           string
	Type         EventType
	RawType      string
	OccurredAt   time.Time
	Subscription *SubscriptionSnapshot
	Payment      *PaymentData
}

// IsSubscriptionEvent reports whether the event carries a subscription snapshot.
func (e *ProviderEvent) IsSubscriptionEvent() bool {
	switch e.Type {
	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionDeleted:
		return true
	}
	return false
}

// IsPaymentEvent reports whether the event carries payment data.
func (e *ProviderEvent) IsPaymentEvent() bool {
	switch e.Type {
	case EventPaymentSucceeded, EventPaymentFailed, EventInvoicePaid:
		return true
	}
	return false
}

// wire types for decoding raw payloads

type rawEvent struct {
	ID      string  `json:"id" validate:"required"`
	Type    string  `json:"type" validate:"required"`
	Created int64   `json:"created"`
	Data    rawData `json:"data"`
}

type rawData struct {
	Subscription *rawSubscription `json:"subscription,omitempty"`
	Payment      *rawPayment      `json:"payment,omitempty"`
}

type rawSubscription struct {
	Ref                string `json:"ref" validate:"required"`
	Status             string `json:"status" validate:"required"`
	CurrentPeriodStart int64  `json:"current_period_start"`
	CurrentPeriodEnd   int64  `json:"current_period_end"`
}

type rawPayment struct {
	Ref             string `json:"ref" validate:"required"`
	SubscriberID    uint   `json:"subscriber_id" validate:"required"`
	CreatorID       *uint  `json:"creator_id,omitempty"`
	SubscriptionRef string `json:"subscription_ref,omitempty"`
	Kind            string `json:"kind,omitempty"`
	AmountMinor     int64  `json:"amount" validate:"gt=0"`
	Currency        string `json:"currency" validate:"required,len=3"`
	FailureReason   string `json:"failure_reason,omitempty"`
}

var validate = validator.New()

// ParseProviderEvent decodes and validates a raw webhook payload. Signature
// verification happens upstream; this only enforces the payload schema.
// Events of an unrecognized type parse successfully as EventUnknown.
func ParseProviderEvent(payload []byte) (*ProviderEvent, error) {
	var raw rawEvent
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode provider event: %w", err)
	}
	if err := validate.Struct(&raw); err != nil {
		return nil, fmt.Errorf("invalid provider event: %w", err)
	}

	eventType := EventType(raw.Type)
	if !knownEventTypes[eventType] {
		return &ProviderEvent{
			ID:         raw.ID,
			Type:       EventUnknown,
			RawType:    raw.Type,
			OccurredAt: unixOrZero(raw.Created),
		}, nil
	}

	event := &ProviderEvent{
		ID:         raw.ID,
		Type:       eventType,
		RawType:    raw.Type,
		OccurredAt: unixOrZero(raw.Created),
	}

	if event.IsSubscriptionEvent() {
		if raw.Data.Subscription == nil {
			return nil, fmt.Errorf("invalid provider event: %s carries no subscription snapshot", raw.Type)
		}
		if err := validate.Struct(raw.Data.Subscription); err != nil {
			return nil, fmt.Errorf("invalid subscription snapshot: %w", err)
		}
		status := subvo.SubscriptionStatus(raw.Data.Subscription.Status)
		if !subvo.ValidStatuses[status] {
			return nil, fmt.Errorf("invalid subscription snapshot: unknown status %q", raw.Data.Subscription.Status)
		}
		event.Subscription = &SubscriptionSnapshot{
			Ref:                raw.Data.Subscription.Ref,
			Status:             status,
			CurrentPeriodStart: unixOrZero(raw.Data.Subscription.CurrentPeriodStart),
			CurrentPeriodEnd:   unixOrZero(raw.Data.Subscription.CurrentPeriodEnd),
		}
	}

	if event.IsPaymentEvent() {
		if raw.Data.Payment == nil {
			return nil, fmt.Errorf("invalid provider event: %s carries no payment data", raw.Type)
		}
		if err := validate.Struct(raw.Data.Payment); err != nil {
			return nil, fmt.Errorf("invalid payment data: %w", err)
		}
		event.Payment = &PaymentData{
			Ref:             raw.Data.Payment.Ref,
			SubscriberID:    raw.Data.Payment.SubscriberID,
			CreatorID:       raw.Data.Payment.CreatorID,
			SubscriptionRef: raw.Data.Payment.SubscriptionRef,
			Kind:            raw.Data.Payment.Kind,
			AmountMinor:     raw.Data.Payment.AmountMinor,
			Currency:        raw.Data.Payment.Currency,
			FailureReason:   raw.Data.Payment.FailureReason,
		}
	}

	return event, nil
}

func unixOrZero(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
