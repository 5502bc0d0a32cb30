package valueobject

type RewardTier string

const (
	RewardTierBronze   RewardTier = "bronze"
	RewardTierSilver   RewardTier = "silver"
	RewardTierGold     RewardTier = "gold"
	RewardTierPlatinum RewardTier = "platinum"
)

// tierThresholds упорядочены по возрастанию порога.
var tierThresholds = []struct {
	tier RewardTier
	min  int64
}{
	{RewardTierBronze, 0},
	{RewardTierSilver, 100},
	{RewardTierGold, 500},
	{RewardTierPlatinum, 1500},
}

// TierForLifetime вычисляет уровень только по накопленной сумме баллов.
func TierForLifetime(lifetime int64) RewardTier {
	tier := RewardTierBronze
	for _, t := range tierThresholds {
		if lifetime >= t.min {
			tier = t.tier
		}
	}
	return tier
}

// Rank возвращает порядковый номер уровня, 0 для неизвестного значения.
func (t RewardTier) Rank() int {
	for i, th := range tierThresholds {
		if th.tier == t {
			return i + 1
		}
	}
	return 0
}

// NextThreshold возвращает порог следующего уровня; ok=false для максимального.
func NextThreshold(lifetime int64) (int64, bool) {
	for _, t := range tierThresholds {
		if lifetime < t.min {
			return t.min, true
		}
	}
	return 0, false
}
