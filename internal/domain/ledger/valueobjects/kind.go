package valueobjects

// EntryKind classifies a payment attempt.
type EntryKind string

const (
	KindSubscriptionCharge EntryKind = "subscription_charge"
	KindTip                EntryKind = "tip"
	KindOneTime            EntryKind = "one_time"
)

func (k EntryKind) String() string {
	return string(k)
}

var ValidKinds = map[EntryKind]bool{
	KindSubscriptionCharge: true,
	KindTip:                true,
	KindOneTime:            true,
}
