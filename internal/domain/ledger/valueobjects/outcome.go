package valueobjects

// Outcome is the lifecycle state of a payment attempt. Transitions are
// append-only in spirit: once succeeded, only refunds may further mutate an
// entry, never a move back to pending.
type Outcome string

const (
	OutcomePending   Outcome = "pending"
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeRefunded  Outcome = "refunded"
)

func (o Outcome) String() string {
	return string(o)
}

// IsFinal reports whether the outcome accepts no further state change other
// than refund bookkeeping.
func (o Outcome) IsFinal() bool {
	return o == OutcomeFailed || o == OutcomeRefunded
}

var ValidOutcomes = map[Outcome]bool{
	OutcomePending:   true,
	OutcomeSucceeded: true,
	OutcomeFailed:    true,
	OutcomeRefunded:  true,
}
