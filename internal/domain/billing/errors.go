package billing

import "errors"

var (
	// ErrProviderUnavailable is returned by gateway calls on failure or
	// timeout. Local state must be left unchanged; the caller surfaces a
	// "try again / pending" response and waits for the webhook.
	ErrProviderUnavailable = errors.New("billing provider unavailable")
	// ErrEventInFlight is returned when another ingestion of the same event
	// id currently holds the claim.
	ErrEventInFlight = errors.New("provider event is being processed")
)
