package subscription

import (
	vo "atelier/internal/domain/subscription/valueobjects"
)

// HasAccess reports whether the subscription grants access to content gated
// at the requested tier. Pure read over the locally synchronized record; safe
// to call on every content request without a remote call.
//
// Access requires an active status and a covering tier. A pending
// cancellation (cancelAtPeriodEnd) keeps the status active until the provider
// reports the period end, so it does not revoke access early. Any other
// status revokes immediately regardless of remaining period time: status
// transitions reflect the provider's authoritative judgment. No local
// period-end check is applied; the provider is trusted to flip status at or
// before period end.
func HasAccess(sub *Subscription, requested vo.Tier) bool {
	if sub == nil {
		return false
	}
	if !sub.Status().GrantsAccess() {
		return false
	}
	return sub.Tier().Covers(requested)
}
