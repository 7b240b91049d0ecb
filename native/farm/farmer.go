package farm

import (
	"errors"
	"math/big"

	"gemfarm/core/events"
	"gemfarm/crypto"
)

// FarmerAddress derives the farmer record address for identity.
func FarmerAddress(farm, identity crypto.Address) crypto.Address {
	return crypto.DeriveAddress("farmer", farm, identity)
}

func (f *Farm) pools() [2]*RewardPool { return [2]*RewardPool{&f.RewardA, &f.RewardB} }

func (f *Farmer) rewards() [2]*FarmerReward { return [2]*FarmerReward{&f.RewardA, &f.RewardB} }

// checkpoint brings both pools and the farmer's snapshots up to now. It must
// run before any change to the farmer's or the farm's staked totals.
func checkpoint(f *Farm, farmer *Farmer, now int64) {
	rewards := farmer.rewards()
	points := farmer.accruingRarityPoints()
	for i, pool := range f.pools() {
		switch pool.Type {
		case RewardVariable:
			pool.updateVariable(now, f.RarityPointsStaked)
			pool.updateFarmerVariable(rewards[i], points)
		case RewardFixed:
			pool.refreshFixed(now, rewards[i], points)
		}
	}
}

// voidPromises drops all fixed-rate promises of the farmer.
func voidPromises(f *Farm, farmer *Farmer) {
	rewards := farmer.rewards()
	for i, pool := range f.pools() {
		if pool.Type == RewardFixed {
			pool.voidFixed(rewards[i], farmer.RarityPointsStaked)
		}
	}
}

// enrollPromises enrolls the farmer into every fixed-rate pool with an active
// window.
func enrollPromises(f *Farm, farmer *Farmer, now, beginStakingTs int64) error {
	rewards := farmer.rewards()
	for i, pool := range f.pools() {
		if pool.Type != RewardFixed {
			continue
		}
		if err := pool.enrollFixed(now, rewards[i], farmer.RarityPointsStaked, beginStakingTs); err != nil {
			return err
		}
	}
	return nil
}

func newFarmerReward() FarmerReward {
	return FarmerReward{
		PaidOutReward: big.NewInt(0),
		AccruedReward: big.NewInt(0),
		Variable:      FarmerVariableReward{LastRecordedAccruedRewardPerRarityPoint: big.NewInt(0)},
	}
}

// InitFarmer registers identity with the farm and opens its vault in the
// farm's bank.
func (e *Engine) InitFarmer(farmAddr, identity crypto.Address) (*Farmer, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if identity.IsZero() {
		return nil, ErrInvalidAddress
	}
	f, err := e.loadFarm(farmAddr)
	if err != nil {
		return nil, err
	}
	if _, ok, err := e.state.FarmerGet(farmAddr, identity); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrFarmerExists
	}
	vault, err := e.bank.InitVault(f.Bank, identity, identity, "")
	if err != nil {
		return nil, err
	}
	farmer := &Farmer{
		Farm:     farmAddr,
		Identity: identity,
		Vault:    vault.Address,
		State:    FarmerUnstaked,
		RewardA:  newFarmerReward(),
		RewardB:  newFarmerReward(),
	}
	f.FarmerCount++
	if err := e.persist(f, farmer); err != nil {
		return nil, err
	}
	e.emit(events.FarmerInitialized{Farm: farmAddr, Identity: identity, Vault: vault.Address})
	return farmer.Clone(), nil
}

func checkCaps(f *Farm, farmers, gems, points uint64) error {
	if f.MaxCounts.MaxFarmers > 0 && farmers > f.MaxCounts.MaxFarmers {
		return ErrCapExceeded
	}
	if f.MaxCounts.MaxGems > 0 && gems > f.MaxCounts.MaxGems {
		return ErrCapExceeded
	}
	if f.MaxCounts.MaxRarityPoints > 0 && points > f.MaxCounts.MaxRarityPoints {
		return ErrCapExceeded
	}
	return nil
}

func addCounts(a, b uint64) (uint64, error) {
	if a+b < a {
		return 0, ErrCounterOverflow
	}
	return a + b, nil
}

// Stake locks the farmer's vault and starts earning on its full contents.
func (e *Engine) Stake(farmAddr, identity crypto.Address) (*Farmer, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	f, farmer, err := e.loadFarmer(farmAddr, identity)
	if err != nil {
		return nil, err
	}
	if farmer.State != FarmerUnstaked {
		return nil, ErrFarmerAlreadyStaked
	}
	vault, err := e.bank.Vault(farmer.Vault)
	if err != nil {
		return nil, err
	}
	if vault.GemCount == 0 {
		return nil, ErrNothingToStake
	}
	farmers, err := addCounts(f.StakedFarmerCount, 1)
	if err != nil {
		return nil, err
	}
	gems, err := addCounts(f.GemsStaked, vault.GemCount)
	if err != nil {
		return nil, err
	}
	points, err := addCounts(f.RarityPointsStaked, vault.RarityPoints)
	if err != nil {
		return nil, err
	}
	if err := checkCaps(f, farmers, gems, points); err != nil {
		return nil, err
	}

	now := e.now()
	checkpoint(f, farmer, now)
	farmer.State = FarmerStaked
	farmer.GemsStaked = vault.GemCount
	farmer.RarityPointsStaked = vault.RarityPoints
	farmer.BeginStakingTs = now
	farmer.MinStakingEndsTs = now + int64(f.Config.MinStakingPeriodSec)
	farmer.CooldownEndsTs = 0
	f.StakedFarmerCount = farmers
	f.GemsStaked = gems
	f.RarityPointsStaked = points
	if err := enrollPromises(f, farmer, now, now); err != nil {
		return nil, err
	}

	if _, err := e.bank.SetVaultLock(f.Bank, farmer.Vault, f.Authority, true); err != nil {
		return nil, err
	}
	if err := e.persist(f, farmer); err != nil {
		return nil, err
	}
	e.emit(events.FarmerStaked{
		Farm:             farmAddr,
		Identity:         identity,
		GemsStaked:       farmer.GemsStaked,
		RarityPoints:     farmer.RarityPointsStaked,
		MinStakingEndsTs: farmer.MinStakingEndsTs,
	})
	return farmer.Clone(), nil
}

// Unstake is a two-step exit. The first call stops accrual and starts the
// cooldown; a call after the cooldown charges the unstaking fee and unlocks
// the vault. Calls during the cooldown leave the farmer unchanged.
func (e *Engine) Unstake(farmAddr, identity crypto.Address) (*Farmer, error) {
	farmer, err := e.unstake(farmAddr, identity)
	if errors.Is(err, ErrCooldownNotElapsed) {
		return farmer, nil
	}
	return farmer, err
}

func (e *Engine) unstake(farmAddr, identity crypto.Address) (*Farmer, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	f, farmer, err := e.loadFarmer(farmAddr, identity)
	if err != nil {
		return nil, err
	}
	now := e.now()
	switch farmer.State {
	case FarmerStaked:
		if now < farmer.MinStakingEndsTs {
			return nil, ErrMinPeriodNotElapsed
		}
		checkpoint(f, farmer, now)
		voidPromises(f, farmer)
		f.StakedFarmerCount = subCount(f.StakedFarmerCount, 1)
		f.GemsStaked = subCount(f.GemsStaked, farmer.GemsStaked)
		f.RarityPointsStaked = subCount(f.RarityPointsStaked, farmer.RarityPointsStaked)
		farmer.State = FarmerPendingCooldown
		farmer.CooldownEndsTs = now + int64(f.Config.CooldownPeriodSec)
		if err := e.persist(f, farmer); err != nil {
			return nil, err
		}
		e.emit(events.FarmerUnstaked{Farm: farmAddr, Identity: identity, CooldownEndsTs: farmer.CooldownEndsTs})
		return farmer.Clone(), nil
	case FarmerPendingCooldown:
		if now < farmer.CooldownEndsTs {
			return farmer.Clone(), ErrCooldownNotElapsed
		}
		checkpoint(f, farmer, now)
		fee := f.Config.UnstakingFeeLamp
		if fee > 0 {
			if err := e.state.Transfer(NativeMint, identity, f.Treasury, new(big.Int).SetUint64(fee)); err != nil {
				return nil, err
			}
			f.TreasuryBalance = new(big.Int).Add(bigOrZero(f.TreasuryBalance), new(big.Int).SetUint64(fee))
		}
		if _, err := e.bank.SetVaultLock(f.Bank, farmer.Vault, f.Authority, false); err != nil {
			return nil, err
		}
		farmer.State = FarmerUnstaked
		farmer.GemsStaked = 0
		farmer.RarityPointsStaked = 0
		farmer.CooldownEndsTs = 0
		if err := e.persist(f, farmer); err != nil {
			return nil, err
		}
		e.emit(events.FarmerUnstaked{Completed: true, Farm: farmAddr, Identity: identity, Fee: fee})
		return farmer.Clone(), nil
	default:
		return nil, ErrFarmerNotStaked
	}
}

func subCount(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}

// ClaimResult reports the amounts paid out by Claim.
type ClaimResult struct {
	MintA   crypto.Address
	AmountA *big.Int
	MintB   crypto.Address
	AmountB *big.Int
}

// Claim pays out everything the farmer has accrued but not yet been paid.
// It is allowed in every staking state.
func (e *Engine) Claim(farmAddr, identity crypto.Address) (*ClaimResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	f, farmer, err := e.loadFarmer(farmAddr, identity)
	if err != nil {
		return nil, err
	}
	checkpoint(f, farmer, e.now())
	rewards := farmer.rewards()
	var amounts [2]*big.Int
	for i, pool := range f.pools() {
		owed := rewards[i].Outstanding()
		amounts[i] = owed
		if owed.Sign() == 0 {
			continue
		}
		if err := e.state.Transfer(pool.Mint, pool.Pot, identity, owed); err != nil {
			return nil, err
		}
		rewards[i].PaidOutReward = new(big.Int).Add(bigOrZero(rewards[i].PaidOutReward), owed)
	}
	if err := e.persist(f, farmer); err != nil {
		return nil, err
	}
	result := &ClaimResult{
		MintA:   f.RewardA.Mint,
		AmountA: amounts[0],
		MintB:   f.RewardB.Mint,
		AmountB: amounts[1],
	}
	e.emit(events.RewardsClaimed{
		Farm:     farmAddr,
		Identity: identity,
		MintA:    result.MintA,
		AmountA:  new(big.Int).Set(result.AmountA),
		MintB:    result.MintB,
		AmountB:  new(big.Int).Set(result.AmountB),
	})
	return result, nil
}

// RefreshFarmer checkpoints a farmer's rewards without moving tokens. Anyone
// may call it.
func (e *Engine) RefreshFarmer(farmAddr, identity crypto.Address) (*Farmer, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	f, farmer, err := e.loadFarmer(farmAddr, identity)
	if err != nil {
		return nil, err
	}
	checkpoint(f, farmer, e.now())
	if err := e.persist(f, farmer); err != nil {
		return nil, err
	}
	e.emit(events.FarmerRefreshed{
		Farm:     farmAddr,
		Identity: identity,
		AccruedA: cloneBig(farmer.RewardA.AccruedReward),
		AccruedB: cloneBig(farmer.RewardB.AccruedReward),
	})
	return farmer.Clone(), nil
}

// FlashDeposit adds gems to a staked farmer's locked vault. The minimum
// staking period restarts and fixed-rate promises are renewed on the larger
// stake, keeping the original tenure.
func (e *Engine) FlashDeposit(farmAddr, identity, mint crypto.Address, amount uint64, source crypto.Address) (*Farmer, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if amount == 0 {
		return nil, ErrInvalidAmount
	}
	if source != identity {
		return nil, ErrUnauthorized
	}
	f, farmer, err := e.loadFarmer(farmAddr, identity)
	if err != nil {
		return nil, err
	}
	if farmer.State != FarmerStaked {
		return nil, ErrFarmerNotStaked
	}
	if err := e.bank.CheckDeposit(f.Bank, mint); err != nil {
		return nil, err
	}
	rarity, err := e.bank.RarityOf(f.Bank, mint)
	if err != nil {
		return nil, err
	}
	added := amount * rarity
	if rarity != 0 && added/rarity != amount {
		return nil, ErrCounterOverflow
	}
	gems, err := addCounts(f.GemsStaked, amount)
	if err != nil {
		return nil, err
	}
	points, err := addCounts(f.RarityPointsStaked, added)
	if err != nil {
		return nil, err
	}
	if err := checkCaps(f, f.StakedFarmerCount, gems, points); err != nil {
		return nil, err
	}

	now := e.now()
	checkpoint(f, farmer, now)
	voidPromises(f, farmer)
	farmer.GemsStaked += amount
	farmer.RarityPointsStaked += added
	farmer.MinStakingEndsTs = now + int64(f.Config.MinStakingPeriodSec)
	f.GemsStaked = gems
	f.RarityPointsStaked = points
	if err := enrollPromises(f, farmer, now, farmer.BeginStakingTs); err != nil {
		return nil, err
	}

	if _, err := e.bank.SetVaultLock(f.Bank, farmer.Vault, f.Authority, false); err != nil {
		return nil, err
	}
	_, depositErr := e.bank.DepositGem(f.Bank, farmer.Vault, identity, mint, amount, source)
	if _, err := e.bank.SetVaultLock(f.Bank, farmer.Vault, f.Authority, true); err != nil {
		return nil, err
	}
	if depositErr != nil {
		return nil, depositErr
	}
	if err := e.persist(f, farmer); err != nil {
		return nil, err
	}
	e.emit(events.FlashDeposited{
		Farm:               farmAddr,
		Identity:           identity,
		Mint:               mint,
		Amount:             amount,
		GemsStaked:         farmer.GemsStaked,
		RarityPointsStaked: farmer.RarityPointsStaked,
	})
	return farmer.Clone(), nil
}
