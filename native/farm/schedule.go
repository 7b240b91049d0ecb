package farm

import (
	"math"
	"math/big"
)

type scheduleLeg struct {
	start uint64
	rate  uint64
}

// Validate checks tier ordering and the denominator.
func (s FixedRateSchedule) Validate() error {
	if s.Denominator == 0 {
		return ErrInvalidSchedule
	}
	if s.Tier1 == nil && (s.Tier2 != nil || s.Tier3 != nil) {
		return ErrInvalidSchedule
	}
	if s.Tier2 == nil && s.Tier3 != nil {
		return ErrInvalidSchedule
	}
	prev := uint64(0)
	for _, tier := range []*TierConfig{s.Tier1, s.Tier2, s.Tier3} {
		if tier == nil {
			break
		}
		if tier.RequiredTenure < prev {
			return ErrInvalidSchedule
		}
		prev = tier.RequiredTenure
	}
	return nil
}

func (s FixedRateSchedule) legs() []scheduleLeg {
	legs := []scheduleLeg{{start: 0, rate: s.BaseRate}}
	for _, tier := range []*TierConfig{s.Tier1, s.Tier2, s.Tier3} {
		if tier == nil {
			break
		}
		legs = append(legs, scheduleLeg{start: tier.RequiredTenure, rate: tier.RewardRate})
	}
	return legs
}

// rawReward integrates the per-rarity-point rate over tenure seconds [from, to)
// before scaling by rarity points and the denominator.
func (s FixedRateSchedule) rawReward(from, to uint64) *big.Int {
	total := new(big.Int)
	if to <= from {
		return total
	}
	legs := s.legs()
	for i, leg := range legs {
		end := uint64(math.MaxUint64)
		if i+1 < len(legs) {
			end = legs[i+1].start
		}
		lo := max(from, leg.start)
		hi := min(to, end)
		if hi <= lo || leg.rate == 0 {
			continue
		}
		part := new(big.Int).SetUint64(hi - lo)
		part.Mul(part, new(big.Int).SetUint64(leg.rate))
		total.Add(total, part)
	}
	return total
}

// Reward returns the amount earned by rarityPoints between tenure offsets
// from and to, floored once after scaling.
func (s FixedRateSchedule) Reward(from, to, rarityPoints uint64) *big.Int {
	raw := s.rawReward(from, to)
	if raw.Sign() == 0 || rarityPoints == 0 {
		return new(big.Int)
	}
	raw.Mul(raw, new(big.Int).SetUint64(rarityPoints))
	denominator := s.Denominator
	if denominator == 0 {
		denominator = 1
	}
	return raw.Quo(raw, new(big.Int).SetUint64(denominator))
}
