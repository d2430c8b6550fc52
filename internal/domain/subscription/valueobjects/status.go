package valueobjects

type SubscriptionStatus string

const (
	StatusActive   SubscriptionStatus = "active"
	StatusPastDue  SubscriptionStatus = "past_due"
	StatusUnpaid   SubscriptionStatus = "unpaid"
	StatusPaused   SubscriptionStatus = "paused"
	StatusCanceled SubscriptionStatus = "canceled"
)

func (s SubscriptionStatus) String() string {
	return string(s)
}

// GrantsAccess reports whether content access is granted in this status.
// Only active grants access; a pending cancellation keeps the status active
// until the provider reports the period end.
func (s SubscriptionStatus) GrantsAccess() bool {
	return s == StatusActive
}

// IsTerminal reports whether the status ends the subscription's lifecycle.
// A terminal record can only leave this state through reactivation.
func (s SubscriptionStatus) IsTerminal() bool {
	return s == StatusCanceled
}

func (s SubscriptionStatus) CanTransitionTo(target SubscriptionStatus) bool {
	transitions := map[SubscriptionStatus][]SubscriptionStatus{
		StatusActive:   {StatusPastDue, StatusUnpaid, StatusPaused, StatusCanceled},
		StatusPastDue:  {StatusActive, StatusUnpaid, StatusCanceled},
		StatusUnpaid:   {StatusActive, StatusCanceled},
		StatusPaused:   {StatusActive, StatusCanceled},
		StatusCanceled: {StatusActive},
	}

	allowed, exists := transitions[s]
	if !exists {
		return false
	}

	for _, allowedStatus := range allowed {
		if allowedStatus == target {
			return true
		}
	}
	return false
}

var ValidStatuses = map[SubscriptionStatus]bool{
	StatusActive:   true,
	StatusPastDue:  true,
	StatusUnpaid:   true,
	StatusPaused:   true,
	StatusCanceled: true,
}
