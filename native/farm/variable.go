package farm

import "math/big"

// Precision scales the variable-rate accumulator so that sub-unit rewards per
// rarity point are not lost to integer division.
var Precision = big.NewInt(1_000_000_000_000_000)

// updateVariable advances the accumulator to now. Time during which nothing
// was staked is skipped and its rewards stay pending.
func (p *RewardPool) updateVariable(now int64, staked uint64) {
	v := &p.Variable
	upto := min(now, p.Times.RewardEndTs)
	if upto > v.RewardLastUpdatedTs && staked > 0 {
		amount := new(big.Int).SetInt64(upto - v.RewardLastUpdatedTs)
		amount.Mul(amount, bigOrZero(v.RewardRate))
		if pending := p.Funds.Pending(); amount.Cmp(pending) > 0 {
			amount = pending
		}
		if amount.Sign() > 0 {
			perPoint := new(big.Int).Mul(amount, Precision)
			perPoint.Quo(perPoint, new(big.Int).SetUint64(staked))
			v.AccruedRewardPerRarityPoint = new(big.Int).Add(bigOrZero(v.AccruedRewardPerRarityPoint), perPoint)
			p.Funds.TotalAccruedToStakers = new(big.Int).Add(bigOrZero(p.Funds.TotalAccruedToStakers), amount)
		}
	}
	if now > v.RewardLastUpdatedTs {
		v.RewardLastUpdatedTs = now
	}
}

// updateFarmerVariable credits a farmer with their share of the accumulator
// growth since their last snapshot.
func (p *RewardPool) updateFarmerVariable(reward *FarmerReward, rarityPoints uint64) {
	acc := bigOrZero(p.Variable.AccruedRewardPerRarityPoint)
	last := bigOrZero(reward.Variable.LastRecordedAccruedRewardPerRarityPoint)
	if rarityPoints > 0 && acc.Cmp(last) > 0 {
		delta := new(big.Int).Sub(acc, last)
		delta.Mul(delta, new(big.Int).SetUint64(rarityPoints))
		delta.Quo(delta, Precision)
		reward.AccruedReward = new(big.Int).Add(bigOrZero(reward.AccruedReward), delta)
	}
	reward.Variable.LastRecordedAccruedRewardPerRarityPoint = new(big.Int).Set(acc)
}

// fundVariable merges the remaining obligation of the current window with the
// new amount and spreads it evenly over the new duration.
func (p *RewardPool) fundVariable(now int64, amount *big.Int, durationSec uint64, staked uint64) {
	p.updateVariable(now, staked)
	total := new(big.Int).Set(amount)
	if remaining := p.Times.RemainingDuration(now); remaining > 0 {
		leftover := new(big.Int).SetUint64(remaining)
		leftover.Mul(leftover, bigOrZero(p.Variable.RewardRate))
		total.Add(total, leftover)
	}
	p.Variable.RewardRate = total.Quo(total, new(big.Int).SetUint64(durationSec))
	p.Times.DurationSec = durationSec
	p.Times.RewardEndTs = now + int64(durationSec)
	p.Funds.TotalFunded = new(big.Int).Add(bigOrZero(p.Funds.TotalFunded), amount)
}

// cancelVariable stops accrual and returns everything not yet accrued.
func (p *RewardPool) cancelVariable(now int64, staked uint64) *big.Int {
	p.updateVariable(now, staked)
	refund := p.Funds.Pending()
	p.Funds.TotalRefunded = new(big.Int).Add(bigOrZero(p.Funds.TotalRefunded), refund)
	p.Variable.RewardRate = big.NewInt(0)
	p.endWindow(now)
	return refund
}

func (p *RewardPool) endWindow(now int64) {
	if p.Times.RewardEndTs > now {
		p.Times.RewardEndTs = now
	}
}
