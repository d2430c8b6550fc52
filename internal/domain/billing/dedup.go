package billing

import (
	"context"
	"time"
)

// AckResult classifies how an ingested event was handled.
type AckResult string

const (
	AckApplied   AckResult = "applied"
	AckDuplicate AckResult = "duplicate"
	AckIgnored   AckResult = "ignored"
)

// Ack is the durable acknowledgment for a processed provider event. Redelivery
// of the same event id returns the prior ack without reapplying effects.
type Ack struct {
	EventID     string    `json:"event_id"`
	Result      AckResult `json:"result"`
	Detail      string    `json:"detail,omitempty"`
	ProcessedAt time.Time `json:"processed_at"`
}

// DedupStore is the idempotency gate for event ingestion. The unique
// constraint on the event id doubles as a mutual-exclusion lock: under
// concurrent redelivery exactly one caller wins Begin and performs effects.
// Records only need to outlive the provider's redelivery window, not live
// forever.
type DedupStore interface {
	// Begin claims the event id. It returns winner=true when this caller owns
	// processing; otherwise the prior ack (nil while the winner is still in
	// flight).
	Begin(ctx context.Context, eventID string) (winner bool, prior *Ack, err error)
	// Complete stores the ack for a claimed event id.
	Complete(ctx context.Context, eventID string, ack Ack) error
	// Release abandons a claim after a processing failure so redelivery can
	// retry the event.
	Release(ctx context.Context, eventID string) error
	// PurgeOlderThan drops records outside the retention window.
	PurgeOlderThan(ctx context.Context, window time.Duration) (int64, error)
}
