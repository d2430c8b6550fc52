package subscription

import (
	"errors"
	"fmt"
)

var (
	ErrSubscriptionNotFound = errors.New("subscription not found")
	// ErrActiveSubscriptionExists is returned when a non-terminal record already
	// exists for the (subscriber, creator) pair.
	ErrActiveSubscriptionExists = errors.New("active subscription already exists for subscriber and creator")
	ErrInvalidStatus            = errors.New("invalid subscription status")
	ErrInvalidStatusTransition  = errors.New("invalid status transition")
	// ErrStaleSubscription is returned when an optimistic update lost a
	// concurrent race; the caller should re-read and re-validate.
	ErrStaleSubscription = errors.New("subscription was modified concurrently")
)

func ErrInvalidTransition(from, to string) error {
	return fmt.Errorf("%w: from %s to %s", ErrInvalidStatusTransition, from, to)
}
