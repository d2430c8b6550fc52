package valueobjects

import "fmt"

// Tier is an ordered content-access level. The order is a compile-time
// constant so access decisions are computable without I/O.
type Tier string

const (
	TierPicture     Tier = "picture"
	TierSoloVideo   Tier = "solo_video"
	TierCollabVideo Tier = "collab_video"
)

// tierRanks defines the strict total order: picture < solo_video < collab_video.
var tierRanks = map[Tier]int{
	TierPicture:     1,
	TierSoloVideo:   2,
	TierCollabVideo: 3,
}

func (t Tier) String() string {
	return string(t)
}

// Rank returns the tier's position in the total order. Unknown tiers rank zero,
// below every valid tier.
func (t Tier) Rank() int {
	return tierRanks[t]
}

// Covers reports whether a subscription at tier t grants access to content
// gated at the requested tier.
func (t Tier) Covers(requested Tier) bool {
	return t.Rank() >= requested.Rank() && requested.Rank() > 0
}

// IsValid reports whether t is a member of the closed tier set.
func (t Tier) IsValid() bool {
	_, ok := tierRanks[t]
	return ok
}

// ParseTier validates a raw string against the closed tier set.
func ParseTier(raw string) (Tier, error) {
	t := Tier(raw)
	if !t.IsValid() {
		return "", fmt.Errorf("invalid tier: %q", raw)
	}
	return t, nil
}

// AllTiers returns the tiers in ascending order.
func AllTiers() []Tier {
	return []Tier{TierPicture, TierSoloVideo, TierCollabVideo}
}
