package valueobjects

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTier_Covers(t *testing.T) {
	tests := []struct {
		name      string
		owned     Tier
		requested Tier
		expected  bool
	}{
		{"picture covers picture", TierPicture, TierPicture, true},
		{"picture does not cover solo video", TierPicture, TierSoloVideo, false},
		{"picture does not cover collab video", TierPicture, TierCollabVideo, false},
		{"solo video covers picture", TierSoloVideo, TierPicture, true},
		{"solo video covers solo video", TierSoloVideo, TierSoloVideo, true},
		{"solo video does not cover collab video", TierSoloVideo, TierCollabVideo, false},
		{"collab video covers everything", TierCollabVideo, TierPicture, true},
		{"collab video covers solo video", TierCollabVideo, TierSoloVideo, true},
		{"collab video covers collab video", TierCollabVideo, TierCollabVideo, true},
		{"unknown requested tier is never covered", TierCollabVideo, Tier("vip"), false},
		{"unknown owned tier covers nothing", Tier("vip"), TierPicture, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.owned.Covers(tt.requested))
		})
	}
}

func TestTier_RankOrdering(t *testing.T) {
	tiers := AllTiers()
	require.Len(t, tiers, 3)

	for i := 1; i < len(tiers); i++ {
		assert.Greater(t, tiers[i].Rank(), tiers[i-1].Rank(),
			"%s should rank above %s", tiers[i], tiers[i-1])
	}
	assert.Zero(t, Tier("premium").Rank())
}

func TestParseTier(t *testing.T) {
	for _, tier := range AllTiers() {
		parsed, err := ParseTier(tier.String())
		require.NoError(t, err)
		assert.Equal(t, tier, parsed)
	}

	for _, raw := range []string{"", "PICTURE", "video", "picture "} {
		_, err := ParseTier(raw)
		assert.Error(t, err, "raw %q", raw)
	}
}
