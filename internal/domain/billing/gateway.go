package billing

import (
	"context"
	"time"
)

// CreateSubscriptionRequest is the outbound request to start a remote
// subscription with the provider.
type CreateSubscriptionRequest struct {
	SubscriberID uint
	CreatorID    *uint
	Tier         string
	AmountMinor  int64
	Currency     string
	Metadata     map[string]string
}

// RemoteSubscription is the provider's view of a subscription after an
// outbound call.
type RemoteSubscription struct {
	Ref                string
	Status             string
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
}

// PaymentIntent is the provider's handle for collecting a one-off payment.
type PaymentIntent struct {
	Ref          string
	ClientSecret string
	AmountMinor  int64
	Currency     string
}

// Gateway wraps outbound calls to the external billing provider. Every call
// is remote and must carry an explicit timeout; implementations return
// ErrProviderUnavailable on failure or timeout. A timed-out call may still
// have succeeded provider-side, so callers must not assume failure: the
// webhook stream is the authority that resolves the ambiguity.
type Gateway interface {
	CreateRemoteSubscription(ctx context.Context, req CreateSubscriptionRequest) (*RemoteSubscription, error)
	CancelRemoteSubscription(ctx context.Context, ref string, immediate bool) error
	ReactivateRemoteSubscription(ctx context.Context, ref string) (*RemoteSubscription, error)
	CreatePaymentIntent(ctx context.Context, amountMinor int64, currency string, metadata map[string]string) (*PaymentIntent, error)
	RefundPayment(ctx context.Context, paymentRef string, amountMinor int64) error
}
