package farm

import (
	"math/big"

	"gemfarm/core/events"
	"gemfarm/crypto"
)

// AuthorizeFunder allows funder to fund and cancel the farm's reward pools.
func (e *Engine) AuthorizeFunder(farmAddr, manager, funder crypto.Address) (*AuthorizationProof, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if funder.IsZero() {
		return nil, ErrInvalidAddress
	}
	f, err := e.loadManagedFarm(farmAddr, manager)
	if err != nil {
		return nil, err
	}
	if _, ok, err := e.state.FunderGet(farmAddr, funder); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrFunderExists
	}
	proof := &AuthorizationProof{Farm: farmAddr, Funder: funder}
	f.AuthorizedFunderCount++
	if err := e.state.FunderPut(proof); err != nil {
		return nil, err
	}
	if err := e.state.FarmPut(f); err != nil {
		return nil, err
	}
	e.emit(events.FunderAuthorizationChanged{Farm: farmAddr, Funder: funder})
	return proof, nil
}

// DeauthorizeFunder revokes a funder. Funds already deposited stay in the
// pools.
func (e *Engine) DeauthorizeFunder(farmAddr, manager, funder crypto.Address) error {
	if err := e.ready(); err != nil {
		return err
	}
	f, err := e.loadManagedFarm(farmAddr, manager)
	if err != nil {
		return err
	}
	if _, ok, err := e.state.FunderGet(farmAddr, funder); err != nil {
		return err
	} else if !ok {
		return ErrFunderNotFound
	}
	if f.AuthorizedFunderCount > 0 {
		f.AuthorizedFunderCount--
	}
	if err := e.state.FunderDelete(farmAddr, funder); err != nil {
		return err
	}
	if err := e.state.FarmPut(f); err != nil {
		return err
	}
	e.emit(events.FunderAuthorizationChanged{Revoked: true, Farm: farmAddr, Funder: funder})
	return nil
}

func (e *Engine) requireFunder(farmAddr, funder crypto.Address) error {
	_, ok, err := e.state.FunderGet(farmAddr, funder)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnauthorized
	}
	return nil
}

// FundRequest describes a deposit into a reward pool. Schedule is required
// for fixed-rate pools and ignored by variable-rate ones.
type FundRequest struct {
	Mint        crypto.Address
	Amount      *big.Int
	DurationSec uint64
	Schedule    *FixedRateSchedule
}

// FundReward moves tokens from funder into the pool's pot and opens a new
// funding window of DurationSec seconds.
func (e *Engine) FundReward(farmAddr, funder crypto.Address, req FundRequest) (*Farm, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if req.DurationSec == 0 || req.DurationSec > MaxPeriodSec {
		return nil, ErrInvalidDuration
	}
	f, err := e.loadFarm(farmAddr)
	if err != nil {
		return nil, err
	}
	if err := e.requireFunder(farmAddr, funder); err != nil {
		return nil, err
	}
	pool, err := f.Pool(req.Mint)
	if err != nil {
		return nil, err
	}
	if pool.Times.Locked() {
		return nil, ErrRewardLocked
	}
	now := e.now()
	var rate *big.Int
	switch pool.Type {
	case RewardVariable:
		pool.fundVariable(now, req.Amount, req.DurationSec, f.RarityPointsStaked)
		rate = new(big.Int).Set(pool.Variable.RewardRate)
	case RewardFixed:
		if req.Schedule == nil {
			return nil, ErrInvalidSchedule
		}
		if err := req.Schedule.Validate(); err != nil {
			return nil, err
		}
		pool.fundFixed(now, req.Amount, req.DurationSec, *req.Schedule)
	default:
		return nil, ErrInvalidRewardType
	}
	if err := e.state.Transfer(req.Mint, funder, pool.Pot, req.Amount); err != nil {
		return nil, err
	}
	if err := e.state.FarmPut(f); err != nil {
		return nil, err
	}
	e.emit(events.RewardFunded{
		Farm:        farmAddr,
		Mint:        req.Mint,
		Funder:      funder,
		Amount:      new(big.Int).Set(req.Amount),
		DurationSec: req.DurationSec,
		RewardEndTs: pool.Times.RewardEndTs,
		Rate:        rate,
	})
	return f.Clone(), nil
}

// CancelReward ends the pool's funding window and refunds the funder
// everything that is neither accrued nor promised. It returns the refund.
func (e *Engine) CancelReward(farmAddr, funder, mint crypto.Address) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	f, err := e.loadFarm(farmAddr)
	if err != nil {
		return nil, err
	}
	if err := e.requireFunder(farmAddr, funder); err != nil {
		return nil, err
	}
	pool, err := f.Pool(mint)
	if err != nil {
		return nil, err
	}
	if pool.Times.Locked() {
		return nil, ErrRewardLocked
	}
	now := e.now()
	var refund *big.Int
	switch pool.Type {
	case RewardVariable:
		refund = pool.cancelVariable(now, f.RarityPointsStaked)
	case RewardFixed:
		refund = pool.cancelFixed(now)
	default:
		return nil, ErrInvalidRewardType
	}
	if refund.Sign() > 0 {
		if err := e.state.Transfer(mint, pool.Pot, funder, refund); err != nil {
			return nil, err
		}
	}
	if err := e.state.FarmPut(f); err != nil {
		return nil, err
	}
	e.emit(events.RewardCancelled{Farm: farmAddr, Mint: mint, Funder: funder, Refund: new(big.Int).Set(refund)})
	return refund, nil
}

// LockReward freezes the pool's current funding window. Afterwards neither
// funding nor cancellation is accepted.
func (e *Engine) LockReward(farmAddr, manager, mint crypto.Address) (*Farm, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	f, err := e.loadManagedFarm(farmAddr, manager)
	if err != nil {
		return nil, err
	}
	pool, err := f.Pool(mint)
	if err != nil {
		return nil, err
	}
	if pool.Times.Locked() {
		return nil, ErrRewardLocked
	}
	if pool.Times.RemainingDuration(e.now()) == 0 {
		return nil, ErrRewardNotActive
	}
	pool.Times.LockEndTs = pool.Times.RewardEndTs
	if err := e.state.FarmPut(f); err != nil {
		return nil, err
	}
	e.emit(events.RewardLocked{Farm: farmAddr, Mint: mint, LockEndTs: pool.Times.LockEndTs})
	return f.Clone(), nil
}
