package farm

import "math/big"

// fundFixed replaces the schedule offered to new enrollments. Promises
// already made are untouched.
func (p *RewardPool) fundFixed(now int64, amount *big.Int, durationSec uint64, schedule FixedRateSchedule) {
	p.Fixed.Schedule = schedule.Clone()
	p.Times.DurationSec = durationSec
	p.Times.RewardEndTs = now + int64(durationSec)
	p.Funds.TotalFunded = new(big.Int).Add(bigOrZero(p.Funds.TotalFunded), amount)
}

// unreserved is the pending balance not promised to any farmer.
func (p *RewardPool) unreserved() *big.Int {
	free := p.Funds.Pending()
	free.Sub(free, bigOrZero(p.Fixed.ReservedAmount))
	if free.Sign() < 0 {
		return big.NewInt(0)
	}
	return free
}

// cancelFixed refunds only what is not promised. Enrolled farmers keep
// accruing until they graduate or unstake.
func (p *RewardPool) cancelFixed(now int64) *big.Int {
	refund := p.unreserved()
	p.Funds.TotalRefunded = new(big.Int).Add(bigOrZero(p.Funds.TotalRefunded), refund)
	p.endWindow(now)
	return refund
}

// tenure converts an absolute timestamp into seconds since stake start.
func (r FarmerFixedReward) tenure(ts int64) uint64 {
	if ts <= r.BeginStakingTs {
		return 0
	}
	return uint64(ts - r.BeginStakingTs)
}

// promised is the full amount reserved for the farmer's current schedule.
func (r FarmerFixedReward) promised(rarityPoints uint64) *big.Int {
	start := r.tenure(r.BeginScheduleTs)
	return r.PromisedSchedule.Reward(start, start+r.PromisedDuration, rarityPoints)
}

// earned is the part of the promise accrued up to LastUpdatedTs.
func (r FarmerFixedReward) earned(rarityPoints uint64) *big.Int {
	return r.PromisedSchedule.Reward(r.tenure(r.BeginScheduleTs), r.tenure(r.LastUpdatedTs), rarityPoints)
}

// enrollFixed promises the current schedule for the rest of the funding
// window. Tenure keeps counting from beginStakingTs so tiers already reached
// stay reached.
func (p *RewardPool) enrollFixed(now int64, reward *FarmerReward, rarityPoints uint64, beginStakingTs int64) error {
	reward.Fixed = FarmerFixedReward{BeginStakingTs: beginStakingTs}
	remaining := p.Times.RemainingDuration(now)
	if remaining == 0 || rarityPoints == 0 {
		return nil
	}
	promise := FarmerFixedReward{
		BeginStakingTs:   beginStakingTs,
		BeginScheduleTs:  now,
		LastUpdatedTs:    now,
		PromisedSchedule: p.Fixed.Schedule.Clone(),
		PromisedDuration: remaining,
	}
	reserve := promise.promised(rarityPoints)
	if reserve.Cmp(p.unreserved()) > 0 {
		return ErrRewardUnderfunded
	}
	p.Fixed.ReservedAmount = new(big.Int).Add(bigOrZero(p.Fixed.ReservedAmount), reserve)
	reward.Fixed = promise
	return nil
}

// accrueFixed moves the portion of the promise earned since the last update
// from reserved to accrued.
func (p *RewardPool) accrueFixed(now int64, reward *FarmerReward, rarityPoints uint64) {
	f := &reward.Fixed
	if !f.Enrolled() {
		return
	}
	upto := min(now, f.EndScheduleTs())
	if upto <= f.LastUpdatedTs {
		return
	}
	before := f.earned(rarityPoints)
	f.LastUpdatedTs = upto
	delta := f.earned(rarityPoints)
	delta.Sub(delta, before)
	if delta.Sign() <= 0 {
		return
	}
	p.Fixed.ReservedAmount = subFloor(p.Fixed.ReservedAmount, delta)
	p.Funds.TotalAccruedToStakers = new(big.Int).Add(bigOrZero(p.Funds.TotalAccruedToStakers), delta)
	reward.AccruedReward = new(big.Int).Add(bigOrZero(reward.AccruedReward), delta)
}

// voidFixed releases the unearned part of a promise back to the pool.
func (p *RewardPool) voidFixed(reward *FarmerReward, rarityPoints uint64) {
	f := reward.Fixed
	if !f.Enrolled() {
		return
	}
	remainder := f.promised(rarityPoints)
	remainder.Sub(remainder, f.earned(rarityPoints))
	if remainder.Sign() > 0 {
		p.Fixed.ReservedAmount = subFloor(p.Fixed.ReservedAmount, remainder)
	}
	reward.Fixed = FarmerFixedReward{BeginStakingTs: f.BeginStakingTs}
}

// refreshFixed accrues, graduates a finished promise and, for staked farmers,
// rolls onto a newly funded window when the pool can cover it.
func (p *RewardPool) refreshFixed(now int64, reward *FarmerReward, rarityPoints uint64) {
	p.accrueFixed(now, reward, rarityPoints)
	if reward.Fixed.Enrolled() && now >= reward.Fixed.EndScheduleTs() {
		p.voidFixed(reward, rarityPoints)
	}
	if reward.Fixed.Enrolled() || rarityPoints == 0 || p.Times.RemainingDuration(now) == 0 {
		return
	}
	snapshot := reward.Fixed
	if err := p.enrollFixed(now, reward, rarityPoints, snapshot.BeginStakingTs); err != nil {
		reward.Fixed = snapshot
	}
}

func subFloor(a, b *big.Int) *big.Int {
	out := new(big.Int).Sub(bigOrZero(a), b)
	if out.Sign() < 0 {
		return big.NewInt(0)
	}
	return out
}
