package services

// Reward boost policy: holders of the reward asset earn 1.2x, rounded half up.
const (
	boostNumerator   = 12
	boostDenominator = 10
)

// ApplyBoost returns the XP actually credited for a base gain.
func ApplyBoost(baseXP int64, ownsRewardAsset bool) int64 {
	if !ownsRewardAsset || baseXP <= 0 {
		return baseXP
	}
	return (baseXP*boostNumerator + boostDenominator/2) / boostDenominator
}
