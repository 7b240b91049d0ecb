package state

import (
	"math/big"

	"gemfarm/crypto"
	"gemfarm/native/farm"
)

func farmKey(addr crypto.Address) []byte { return addressKey(farmPrefix, addr) }

func farmerKey(farmAddr, identity crypto.Address) []byte {
	return addressKey(farmerPrefix, farmAddr, identity)
}

func farmFarmersKey(farmAddr crypto.Address) []byte { return addressKey(farmFarmersPrefix, farmAddr) }

func funderKey(farmAddr, funder crypto.Address) []byte {
	return addressKey(funderPrefix, farmAddr, funder)
}

func farmFundersKey(farmAddr crypto.Address) []byte { return addressKey(farmFundersPrefix, farmAddr) }

// Timestamps are stored as unsigned integers; the ledger never records
// instants before the Unix epoch.
func tsToStored(ts int64) uint64 {
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

func storedToTs(v uint64) int64 { return int64(v) }

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

type storedTier struct {
	Present        bool
	RewardRate     uint64
	RequiredTenure uint64
}

func newStoredTier(t *farm.TierConfig) storedTier {
	if t == nil {
		return storedTier{}
	}
	return storedTier{Present: true, RewardRate: t.RewardRate, RequiredTenure: t.RequiredTenure}
}

func (s storedTier) toTier() *farm.TierConfig {
	if !s.Present {
		return nil
	}
	return &farm.TierConfig{RewardRate: s.RewardRate, RequiredTenure: s.RequiredTenure}
}

type storedSchedule struct {
	BaseRate    uint64
	Tier1       storedTier
	Tier2       storedTier
	Tier3       storedTier
	Denominator uint64
}

func newStoredSchedule(s farm.FixedRateSchedule) storedSchedule {
	return storedSchedule{
		BaseRate:    s.BaseRate,
		Tier1:       newStoredTier(s.Tier1),
		Tier2:       newStoredTier(s.Tier2),
		Tier3:       newStoredTier(s.Tier3),
		Denominator: s.Denominator,
	}
}

func (s storedSchedule) toSchedule() farm.FixedRateSchedule {
	return farm.FixedRateSchedule{
		BaseRate:    s.BaseRate,
		Tier1:       s.Tier1.toTier(),
		Tier2:       s.Tier2.toTier(),
		Tier3:       s.Tier3.toTier(),
		Denominator: s.Denominator,
	}
}

type storedPool struct {
	Mint                        crypto.Address
	Type                        uint8
	Pot                         crypto.Address
	TotalFunded                 *big.Int
	TotalRefunded               *big.Int
	TotalAccruedToStakers       *big.Int
	DurationSec                 uint64
	RewardEndTs                 uint64
	LockEndTs                   uint64
	RewardRate                  *big.Int
	RewardLastUpdatedTs         uint64
	AccruedRewardPerRarityPoint *big.Int
	Schedule                    storedSchedule
	ReservedAmount              *big.Int
}

func newStoredPool(p farm.RewardPool) storedPool {
	return storedPool{
		Mint:                        p.Mint,
		Type:                        uint8(p.Type),
		Pot:                         p.Pot,
		TotalFunded:                 bigOrZero(p.Funds.TotalFunded),
		TotalRefunded:               bigOrZero(p.Funds.TotalRefunded),
		TotalAccruedToStakers:       bigOrZero(p.Funds.TotalAccruedToStakers),
		DurationSec:                 p.Times.DurationSec,
		RewardEndTs:                 tsToStored(p.Times.RewardEndTs),
		LockEndTs:                   tsToStored(p.Times.LockEndTs),
		RewardRate:                  bigOrZero(p.Variable.RewardRate),
		RewardLastUpdatedTs:         tsToStored(p.Variable.RewardLastUpdatedTs),
		AccruedRewardPerRarityPoint: bigOrZero(p.Variable.AccruedRewardPerRarityPoint),
		Schedule:                    newStoredSchedule(p.Fixed.Schedule),
		ReservedAmount:              bigOrZero(p.Fixed.ReservedAmount),
	}
}

func (s storedPool) toPool() farm.RewardPool {
	return farm.RewardPool{
		Mint: s.Mint,
		Type: farm.RewardType(s.Type),
		Pot:  s.Pot,
		Funds: farm.FundsTracker{
			TotalFunded:           bigOrZero(s.TotalFunded),
			TotalRefunded:         bigOrZero(s.TotalRefunded),
			TotalAccruedToStakers: bigOrZero(s.TotalAccruedToStakers),
		},
		Times: farm.TimeTracker{
			DurationSec: s.DurationSec,
			RewardEndTs: storedToTs(s.RewardEndTs),
			LockEndTs:   storedToTs(s.LockEndTs),
		},
		Variable: farm.VariableRateState{
			RewardRate:                  bigOrZero(s.RewardRate),
			RewardLastUpdatedTs:         storedToTs(s.RewardLastUpdatedTs),
			AccruedRewardPerRarityPoint: bigOrZero(s.AccruedRewardPerRarityPoint),
		},
		Fixed: farm.FixedRateState{
			Schedule:       s.Schedule.toSchedule(),
			ReservedAmount: bigOrZero(s.ReservedAmount),
		},
	}
}

type storedFarm struct {
	Address               crypto.Address
	Manager               crypto.Address
	Authority             crypto.Address
	Bank                  crypto.Address
	Treasury              crypto.Address
	MinStakingPeriodSec   uint64
	CooldownPeriodSec     uint64
	UnstakingFeeLamp      uint64
	MaxFarmers            uint64
	MaxGems               uint64
	MaxRarityPoints       uint64
	FarmerCount           uint64
	StakedFarmerCount     uint64
	GemsStaked            uint64
	RarityPointsStaked    uint64
	AuthorizedFunderCount uint64
	TreasuryBalance       *big.Int
	RewardA               storedPool
	RewardB               storedPool
}

func newStoredFarm(f *farm.Farm) *storedFarm {
	return &storedFarm{
		Address:               f.Address,
		Manager:               f.Manager,
		Authority:             f.Authority,
		Bank:                  f.Bank,
		Treasury:              f.Treasury,
		MinStakingPeriodSec:   f.Config.MinStakingPeriodSec,
		CooldownPeriodSec:     f.Config.CooldownPeriodSec,
		UnstakingFeeLamp:      f.Config.UnstakingFeeLamp,
		MaxFarmers:            f.MaxCounts.MaxFarmers,
		MaxGems:               f.MaxCounts.MaxGems,
		MaxRarityPoints:       f.MaxCounts.MaxRarityPoints,
		FarmerCount:           f.FarmerCount,
		StakedFarmerCount:     f.StakedFarmerCount,
		GemsStaked:            f.GemsStaked,
		RarityPointsStaked:    f.RarityPointsStaked,
		AuthorizedFunderCount: f.AuthorizedFunderCount,
		TreasuryBalance:       bigOrZero(f.TreasuryBalance),
		RewardA:               newStoredPool(f.RewardA),
		RewardB:               newStoredPool(f.RewardB),
	}
}

func (s *storedFarm) toFarm() *farm.Farm {
	return &farm.Farm{
		Address:   s.Address,
		Manager:   s.Manager,
		Authority: s.Authority,
		Bank:      s.Bank,
		Treasury:  s.Treasury,
		Config: farm.FarmConfig{
			MinStakingPeriodSec: s.MinStakingPeriodSec,
			CooldownPeriodSec:   s.CooldownPeriodSec,
			UnstakingFeeLamp:    s.UnstakingFeeLamp,
		},
		MaxCounts: farm.MaxCounts{
			MaxFarmers:      s.MaxFarmers,
			MaxGems:         s.MaxGems,
			MaxRarityPoints: s.MaxRarityPoints,
		},
		FarmerCount:           s.FarmerCount,
		StakedFarmerCount:     s.StakedFarmerCount,
		GemsStaked:            s.GemsStaked,
		RarityPointsStaked:    s.RarityPointsStaked,
		AuthorizedFunderCount: s.AuthorizedFunderCount,
		TreasuryBalance:       bigOrZero(s.TreasuryBalance),
		RewardA:               s.RewardA.toPool(),
		RewardB:               s.RewardB.toPool(),
	}
}

type storedFarmerReward struct {
	PaidOutReward    *big.Int
	AccruedReward    *big.Int
	LastAccrued      *big.Int
	BeginStakingTs   uint64
	BeginScheduleTs  uint64
	LastUpdatedTs    uint64
	PromisedSchedule storedSchedule
	PromisedDuration uint64
}

func newStoredFarmerReward(r farm.FarmerReward) storedFarmerReward {
	return storedFarmerReward{
		PaidOutReward:    bigOrZero(r.PaidOutReward),
		AccruedReward:    bigOrZero(r.AccruedReward),
		LastAccrued:      bigOrZero(r.Variable.LastRecordedAccruedRewardPerRarityPoint),
		BeginStakingTs:   tsToStored(r.Fixed.BeginStakingTs),
		BeginScheduleTs:  tsToStored(r.Fixed.BeginScheduleTs),
		LastUpdatedTs:    tsToStored(r.Fixed.LastUpdatedTs),
		PromisedSchedule: newStoredSchedule(r.Fixed.PromisedSchedule),
		PromisedDuration: r.Fixed.PromisedDuration,
	}
}

func (s storedFarmerReward) toReward() farm.FarmerReward {
	return farm.FarmerReward{
		PaidOutReward: bigOrZero(s.PaidOutReward),
		AccruedReward: bigOrZero(s.AccruedReward),
		Variable: farm.FarmerVariableReward{
			LastRecordedAccruedRewardPerRarityPoint: bigOrZero(s.LastAccrued),
		},
		Fixed: farm.FarmerFixedReward{
			BeginStakingTs:   storedToTs(s.BeginStakingTs),
			BeginScheduleTs:  storedToTs(s.BeginScheduleTs),
			LastUpdatedTs:    storedToTs(s.LastUpdatedTs),
			PromisedSchedule: s.PromisedSchedule.toSchedule(),
			PromisedDuration: s.PromisedDuration,
		},
	}
}

type storedFarmer struct {
	Farm               crypto.Address
	Identity           crypto.Address
	Vault              crypto.Address
	State              uint8
	GemsStaked         uint64
	RarityPointsStaked uint64
	BeginStakingTs     uint64
	MinStakingEndsTs   uint64
	CooldownEndsTs     uint64
	RewardA            storedFarmerReward
	RewardB            storedFarmerReward
}

func newStoredFarmer(f *farm.Farmer) *storedFarmer {
	return &storedFarmer{
		Farm:               f.Farm,
		Identity:           f.Identity,
		Vault:              f.Vault,
		State:              uint8(f.State),
		GemsStaked:         f.GemsStaked,
		RarityPointsStaked: f.RarityPointsStaked,
		BeginStakingTs:     tsToStored(f.BeginStakingTs),
		MinStakingEndsTs:   tsToStored(f.MinStakingEndsTs),
		CooldownEndsTs:     tsToStored(f.CooldownEndsTs),
		RewardA:            newStoredFarmerReward(f.RewardA),
		RewardB:            newStoredFarmerReward(f.RewardB),
	}
}

func (s *storedFarmer) toFarmer() *farm.Farmer {
	return &farm.Farmer{
		Farm:               s.Farm,
		Identity:           s.Identity,
		Vault:              s.Vault,
		State:              farm.FarmerState(s.State),
		GemsStaked:         s.GemsStaked,
		RarityPointsStaked: s.RarityPointsStaked,
		BeginStakingTs:     storedToTs(s.BeginStakingTs),
		MinStakingEndsTs:   storedToTs(s.MinStakingEndsTs),
		CooldownEndsTs:     storedToTs(s.CooldownEndsTs),
		RewardA:            s.RewardA.toReward(),
		RewardB:            s.RewardB.toReward(),
	}
}

// FarmGet loads a farm record.
func (m *Manager) FarmGet(addr crypto.Address) (*farm.Farm, bool, error) {
	stored := new(storedFarm)
	ok, err := m.KVGet(farmKey(addr), stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	return stored.toFarm(), true, nil
}

// FarmPut stores a farm record and indexes its address.
func (m *Manager) FarmPut(f *farm.Farm) error {
	if err := m.KVPut(farmKey(f.Address), newStoredFarm(f)); err != nil {
		return err
	}
	return m.KVAppend(farmIndexKeyBytes, f.Address.Bytes())
}

// FarmList returns the addresses of every farm.
func (m *Manager) FarmList() ([]crypto.Address, error) {
	return m.addressList(farmIndexKeyBytes)
}

// FarmerGet loads the farmer record of identity in farmAddr.
func (m *Manager) FarmerGet(farmAddr, identity crypto.Address) (*farm.Farmer, bool, error) {
	stored := new(storedFarmer)
	ok, err := m.KVGet(farmerKey(farmAddr, identity), stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	return stored.toFarmer(), true, nil
}

// FarmerPut stores a farmer record and indexes it under its farm.
func (m *Manager) FarmerPut(f *farm.Farmer) error {
	if err := m.KVPut(farmerKey(f.Farm, f.Identity), newStoredFarmer(f)); err != nil {
		return err
	}
	return m.KVAppend(farmFarmersKey(f.Farm), f.Identity.Bytes())
}

// FarmerList returns the identities registered with farmAddr.
func (m *Manager) FarmerList(farmAddr crypto.Address) ([]crypto.Address, error) {
	return m.addressList(farmFarmersKey(farmAddr))
}

// FunderGet loads the authorization proof of funder.
func (m *Manager) FunderGet(farmAddr, funder crypto.Address) (*farm.AuthorizationProof, bool, error) {
	proof := new(farm.AuthorizationProof)
	ok, err := m.KVGet(funderKey(farmAddr, funder), proof)
	if err != nil || !ok {
		return nil, ok, err
	}
	return proof, true, nil
}

// FunderPut stores an authorization proof.
func (m *Manager) FunderPut(p *farm.AuthorizationProof) error {
	if err := m.KVPut(funderKey(p.Farm, p.Funder), p); err != nil {
		return err
	}
	return m.KVAppend(farmFundersKey(p.Farm), p.Funder.Bytes())
}

// FunderDelete revokes an authorization proof.
func (m *Manager) FunderDelete(farmAddr, funder crypto.Address) error {
	if err := m.KVDelete(funderKey(farmAddr, funder)); err != nil {
		return err
	}
	return m.KVRemove(farmFundersKey(farmAddr), funder.Bytes())
}

// FunderList returns the funders currently authorized on farmAddr.
func (m *Manager) FunderList(farmAddr crypto.Address) ([]crypto.Address, error) {
	return m.addressList(farmFundersKey(farmAddr))
}

func (m *Manager) addressList(key []byte) ([]crypto.Address, error) {
	var raw [][]byte
	if err := m.KVGetList(key, &raw); err != nil {
		return nil, err
	}
	out := make([]crypto.Address, 0, len(raw))
	for _, item := range raw {
		out = append(out, crypto.BytesToAddress(item))
	}
	return out, nil
}
