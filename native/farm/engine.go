package farm

import (
	"math/big"
	"time"

	"gemfarm/core/events"
	"gemfarm/crypto"
	"gemfarm/native/bank"
	nativecommon "gemfarm/native/common"
)

const moduleName = "farm"

type engineState interface {
	FarmGet(addr crypto.Address) (*Farm, bool, error)
	FarmPut(f *Farm) error
	FarmerGet(farm, identity crypto.Address) (*Farmer, bool, error)
	FarmerPut(f *Farmer) error
	FunderGet(farm, funder crypto.Address) (*AuthorizationProof, bool, error)
	FunderPut(p *AuthorizationProof) error
	FunderDelete(farm, funder crypto.Address) error
	Transfer(mint, from, to crypto.Address, amount *big.Int) error
}

// custody is the subset of the bank engine the farm drives through its
// authority.
type custody interface {
	InitBank(bankAddr, manager crypto.Address) (*bank.Bank, error)
	InitVault(bankAddr, creator, owner crypto.Address, name string) (*bank.Vault, error)
	SetVaultLock(bankAddr, vaultAddr, manager crypto.Address, locked bool) (*bank.Vault, error)
	DepositGem(bankAddr, vaultAddr, owner, mint crypto.Address, amount uint64, source crypto.Address) (*bank.Vault, error)
	Vault(addr crypto.Address) (*bank.Vault, error)
	RarityOf(bankAddr, mint crypto.Address) (uint64, error)
	CheckDeposit(bankAddr, mint crypto.Address) error
	AddToWhitelist(bankAddr, manager, address crypto.Address, kind bank.WhitelistType) (*bank.WhitelistProof, error)
	RemoveFromWhitelist(bankAddr, manager, address crypto.Address) error
	RecordRarityPoints(bankAddr, manager crypto.Address, configs []bank.RarityConfig) error
}

// Engine applies farm staking and reward transitions. Gem custody is
// delegated to the bank engine; the farm acts as its bank's manager.
type Engine struct {
	state   engineState
	bank    custody
	emitter events.Emitter
	pauses  nativecommon.PauseView
	nowFn   func() int64
}

// NewEngine creates a farm engine with a no-op emitter and the wall clock.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetBank wires the custody engine holding farmer vaults.
func (e *Engine) SetBank(b custody) { e.bank = b }

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.bank == nil {
		return errNilCustody
	}
	return nativecommon.Guard(e.pauses, moduleName)
}

func (e *Engine) loadFarm(addr crypto.Address) (*Farm, error) {
	f, ok, err := e.state.FarmGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrFarmNotFound
	}
	return f, nil
}

func (e *Engine) loadManagedFarm(addr, manager crypto.Address) (*Farm, error) {
	f, err := e.loadFarm(addr)
	if err != nil {
		return nil, err
	}
	if f.Manager != manager {
		return nil, ErrUnauthorized
	}
	return f, nil
}

func (e *Engine) loadFarmer(farmAddr, identity crypto.Address) (*Farm, *Farmer, error) {
	f, err := e.loadFarm(farmAddr)
	if err != nil {
		return nil, nil, err
	}
	farmer, ok, err := e.state.FarmerGet(farmAddr, identity)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, ErrFarmerNotFound
	}
	return f, farmer, nil
}

func (e *Engine) persist(f *Farm, farmer *Farmer) error {
	if farmer != nil {
		if err := e.state.FarmerPut(farmer); err != nil {
			return err
		}
	}
	return e.state.FarmPut(f)
}

// InitFarm creates a farm together with the bank it stakes from. The farm
// authority becomes the bank manager.
func (e *Engine) InitFarm(farmAddr, bankAddr, manager crypto.Address, cfg FarmConfig, caps MaxCounts, rewardA, rewardB RewardSpec) (*Farm, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if farmAddr.IsZero() || bankAddr.IsZero() || manager.IsZero() || rewardA.Mint.IsZero() || rewardB.Mint.IsZero() {
		return nil, ErrInvalidAddress
	}
	if rewardA.Mint == rewardB.Mint {
		return nil, ErrDuplicateRewardMint
	}
	if !rewardA.Type.Valid() || !rewardB.Type.Valid() {
		return nil, ErrInvalidRewardType
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if _, ok, err := e.state.FarmGet(farmAddr); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrFarmExists
	}
	authority := FarmAuthority(farmAddr)
	if _, err := e.bank.InitBank(bankAddr, authority); err != nil {
		return nil, err
	}
	f := &Farm{
		Address:         farmAddr,
		Manager:         manager,
		Authority:       authority,
		Bank:            bankAddr,
		Treasury:        FarmTreasury(farmAddr),
		Config:          cfg,
		MaxCounts:       caps,
		TreasuryBalance: big.NewInt(0),
		RewardA:         newRewardPool(farmAddr, rewardA),
		RewardB:         newRewardPool(farmAddr, rewardB),
	}
	if err := e.state.FarmPut(f); err != nil {
		return nil, err
	}
	e.emit(events.FarmInitialized{
		Farm:        farmAddr,
		Bank:        bankAddr,
		Manager:     manager,
		RewardAMint: rewardA.Mint,
		RewardAType: rewardA.Type.String(),
		RewardBMint: rewardB.Mint,
		RewardBType: rewardB.Type.String(),
	})
	return f.Clone(), nil
}

func newRewardPool(farm crypto.Address, spec RewardSpec) RewardPool {
	return RewardPool{
		Mint: spec.Mint,
		Type: spec.Type,
		Pot:  RewardPot(farm, spec.Mint),
		Funds: FundsTracker{
			TotalFunded:           big.NewInt(0),
			TotalRefunded:         big.NewInt(0),
			TotalAccruedToStakers: big.NewInt(0),
		},
		Variable: VariableRateState{
			RewardRate:                  big.NewInt(0),
			AccruedRewardPerRarityPoint: big.NewInt(0),
		},
		Fixed: FixedRateState{ReservedAmount: big.NewInt(0)},
	}
}

// FarmUpdate lists the optional changes applied by UpdateFarm.
type FarmUpdate struct {
	Config     *FarmConfig
	MaxCounts  *MaxCounts
	NewManager *crypto.Address
}

// UpdateFarm changes the farm configuration. New settings only affect
// transitions that happen afterwards.
func (e *Engine) UpdateFarm(farmAddr, manager crypto.Address, update FarmUpdate) (*Farm, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	f, err := e.loadManagedFarm(farmAddr, manager)
	if err != nil {
		return nil, err
	}
	if update.Config != nil {
		if err := update.Config.Validate(); err != nil {
			return nil, err
		}
	}
	if update.NewManager != nil {
		if update.NewManager.IsZero() {
			return nil, ErrInvalidAddress
		}
		f.Manager = *update.NewManager
	}
	if update.Config != nil {
		f.Config = *update.Config
	}
	if update.MaxCounts != nil {
		f.MaxCounts = *update.MaxCounts
	}
	if err := e.state.FarmPut(f); err != nil {
		return nil, err
	}
	e.emit(events.FarmUpdated{
		Farm:                farmAddr,
		Manager:             f.Manager,
		MinStakingPeriodSec: f.Config.MinStakingPeriodSec,
		CooldownPeriodSec:   f.Config.CooldownPeriodSec,
		UnstakingFeeLamp:    f.Config.UnstakingFeeLamp,
	})
	return f.Clone(), nil
}

// Farm returns a copy of the farm record.
func (e *Engine) Farm(addr crypto.Address) (*Farm, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	f, err := e.loadFarm(addr)
	if err != nil {
		return nil, err
	}
	return f.Clone(), nil
}

// Farmer returns a copy of the farmer record. Rewards reflect the last
// checkpoint; call RefreshFarmer for up-to-date figures.
func (e *Engine) Farmer(farmAddr, identity crypto.Address) (*Farmer, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	farmer, ok, err := e.state.FarmerGet(farmAddr, identity)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrFarmerNotFound
	}
	return farmer.Clone(), nil
}
