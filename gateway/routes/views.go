package routes

import (
	"gemfarm/crypto"
	"gemfarm/native/bank"
	"gemfarm/native/farm"
)

type bankView struct {
	Address             crypto.Address `json:"address"`
	Manager             crypto.Address `json:"manager"`
	Flags               uint32         `json:"flags"`
	Frozen              bool           `json:"frozen"`
	WhitelistedCreators uint32         `json:"whitelistedCreators"`
	WhitelistedMints    uint32         `json:"whitelistedMints"`
	VaultCount          uint64         `json:"vaultCount"`
}

func newBankView(b *bank.Bank) bankView {
	return bankView{
		Address:             b.Address,
		Manager:             b.Manager,
		Flags:               uint32(b.Flags),
		Frozen:              b.Frozen(),
		WhitelistedCreators: b.WhitelistedCreators,
		WhitelistedMints:    b.WhitelistedMints,
		VaultCount:          b.VaultCount,
	}
}

type vaultView struct {
	Address      crypto.Address `json:"address"`
	Bank         crypto.Address `json:"bank"`
	Owner        crypto.Address `json:"owner"`
	Creator      crypto.Address `json:"creator"`
	Authority    crypto.Address `json:"authority"`
	Name         string         `json:"name"`
	Locked       bool           `json:"locked"`
	GemBoxCount  uint64         `json:"gemBoxCount"`
	GemCount     uint64         `json:"gemCount"`
	RarityPoints uint64         `json:"rarityPoints"`
}

func newVaultView(v *bank.Vault) vaultView {
	return vaultView{
		Address:      v.Address,
		Bank:         v.Bank,
		Owner:        v.Owner,
		Creator:      v.Creator,
		Authority:    v.Authority,
		Name:         v.Name,
		Locked:       v.Locked,
		GemBoxCount:  v.GemBoxCount,
		GemCount:     v.GemCount,
		RarityPoints: v.RarityPoints,
	}
}

type receiptView struct {
	GemBox       crypto.Address `json:"gemBox"`
	GemMint      crypto.Address `json:"gemMint"`
	GemCount     uint64         `json:"gemCount"`
	RarityPoints uint64         `json:"rarityPoints"`
}

func newReceiptViews(receipts []*bank.GemDepositReceipt) []receiptView {
	out := make([]receiptView, 0, len(receipts))
	for _, r := range receipts {
		out = append(out, receiptView{
			GemBox:       r.GemBox,
			GemMint:      r.GemMint,
			GemCount:     r.GemCount,
			RarityPoints: r.RarityPoints,
		})
	}
	return out
}

type proofView struct {
	Bank    crypto.Address `json:"bank"`
	Address crypto.Address `json:"address"`
	Type    string         `json:"type"`
}

func newProofView(p *bank.WhitelistProof) proofView {
	return proofView{Bank: p.Bank, Address: p.Address, Type: p.Type.String()}
}

type farmConfigView struct {
	MinStakingPeriodSec uint64 `json:"minStakingPeriodSec"`
	CooldownPeriodSec   uint64 `json:"cooldownPeriodSec"`
	UnstakingFeeLamp    uint64 `json:"unstakingFeeLamp"`
}

type maxCountsView struct {
	MaxFarmers      uint64 `json:"maxFarmers"`
	MaxGems         uint64 `json:"maxGems"`
	MaxRarityPoints uint64 `json:"maxRarityPoints"`
}

type tierView struct {
	RewardRate     uint64 `json:"rewardRate"`
	RequiredTenure uint64 `json:"requiredTenure"`
}

type scheduleView struct {
	BaseRate    uint64    `json:"baseRate"`
	Tier1       *tierView `json:"tier1,omitempty"`
	Tier2       *tierView `json:"tier2,omitempty"`
	Tier3       *tierView `json:"tier3,omitempty"`
	Denominator uint64    `json:"denominator"`
}

func newTierView(t *farm.TierConfig) *tierView {
	if t == nil {
		return nil
	}
	return &tierView{RewardRate: t.RewardRate, RequiredTenure: t.RequiredTenure}
}

func (t *tierView) config() *farm.TierConfig {
	if t == nil {
		return nil
	}
	return &farm.TierConfig{RewardRate: t.RewardRate, RequiredTenure: t.RequiredTenure}
}

func newScheduleView(s farm.FixedRateSchedule) scheduleView {
	return scheduleView{
		BaseRate:    s.BaseRate,
		Tier1:       newTierView(s.Tier1),
		Tier2:       newTierView(s.Tier2),
		Tier3:       newTierView(s.Tier3),
		Denominator: s.Denominator,
	}
}

func (s *scheduleView) schedule() *farm.FixedRateSchedule {
	if s == nil {
		return nil
	}
	return &farm.FixedRateSchedule{
		BaseRate:    s.BaseRate,
		Tier1:       s.Tier1.config(),
		Tier2:       s.Tier2.config(),
		Tier3:       s.Tier3.config(),
		Denominator: s.Denominator,
	}
}

type poolView struct {
	Mint                        crypto.Address `json:"mint"`
	Type                        string         `json:"type"`
	Pot                         crypto.Address `json:"pot"`
	TotalFunded                 string         `json:"totalFunded"`
	TotalRefunded               string         `json:"totalRefunded"`
	TotalAccruedToStakers       string         `json:"totalAccruedToStakers"`
	DurationSec                 uint64         `json:"durationSec"`
	RewardEndTs                 int64          `json:"rewardEndTs"`
	LockEndTs                   int64          `json:"lockEndTs"`
	RewardRate                  string         `json:"rewardRate,omitempty"`
	RewardLastUpdatedTs         int64          `json:"rewardLastUpdatedTs,omitempty"`
	AccruedRewardPerRarityPoint string         `json:"accruedRewardPerRarityPoint,omitempty"`
	Schedule                    *scheduleView  `json:"schedule,omitempty"`
	ReservedAmount              string         `json:"reservedAmount,omitempty"`
}

func newPoolView(p farm.RewardPool) poolView {
	view := poolView{
		Mint:                  p.Mint,
		Type:                  p.Type.String(),
		Pot:                   p.Pot,
		TotalFunded:           formatAmount(p.Funds.TotalFunded),
		TotalRefunded:         formatAmount(p.Funds.TotalRefunded),
		TotalAccruedToStakers: formatAmount(p.Funds.TotalAccruedToStakers),
		DurationSec:           p.Times.DurationSec,
		RewardEndTs:           p.Times.RewardEndTs,
		LockEndTs:             p.Times.LockEndTs,
	}
	switch p.Type {
	case farm.RewardVariable:
		view.RewardRate = formatAmount(p.Variable.RewardRate)
		view.RewardLastUpdatedTs = p.Variable.RewardLastUpdatedTs
		view.AccruedRewardPerRarityPoint = formatAmount(p.Variable.AccruedRewardPerRarityPoint)
	case farm.RewardFixed:
		schedule := newScheduleView(p.Fixed.Schedule)
		view.Schedule = &schedule
		view.ReservedAmount = formatAmount(p.Fixed.ReservedAmount)
	}
	return view
}

type farmView struct {
	Address               crypto.Address `json:"address"`
	Manager               crypto.Address `json:"manager"`
	Authority             crypto.Address `json:"authority"`
	Bank                  crypto.Address `json:"bank"`
	Treasury              crypto.Address `json:"treasury"`
	Config                farmConfigView `json:"config"`
	MaxCounts             maxCountsView  `json:"maxCounts"`
	FarmerCount           uint64         `json:"farmerCount"`
	StakedFarmerCount     uint64         `json:"stakedFarmerCount"`
	GemsStaked            uint64         `json:"gemsStaked"`
	RarityPointsStaked    uint64         `json:"rarityPointsStaked"`
	AuthorizedFunderCount uint64         `json:"authorizedFunderCount"`
	TreasuryBalance       string         `json:"treasuryBalance"`
	RewardA               poolView       `json:"rewardA"`
	RewardB               poolView       `json:"rewardB"`
}

func newFarmView(f *farm.Farm) farmView {
	return farmView{
		Address:   f.Address,
		Manager:   f.Manager,
		Authority: f.Authority,
		Bank:      f.Bank,
		Treasury:  f.Treasury,
		Config: farmConfigView{
			MinStakingPeriodSec: f.Config.MinStakingPeriodSec,
			CooldownPeriodSec:   f.Config.CooldownPeriodSec,
			UnstakingFeeLamp:    f.Config.UnstakingFeeLamp,
		},
		MaxCounts: maxCountsView{
			MaxFarmers:      f.MaxCounts.MaxFarmers,
			MaxGems:         f.MaxCounts.MaxGems,
			MaxRarityPoints: f.MaxCounts.MaxRarityPoints,
		},
		FarmerCount:           f.FarmerCount,
		StakedFarmerCount:     f.StakedFarmerCount,
		GemsStaked:            f.GemsStaked,
		RarityPointsStaked:    f.RarityPointsStaked,
		AuthorizedFunderCount: f.AuthorizedFunderCount,
		TreasuryBalance:       formatAmount(f.TreasuryBalance),
		RewardA:               newPoolView(f.RewardA),
		RewardB:               newPoolView(f.RewardB),
	}
}

type farmerRewardView struct {
	PaidOutReward    string        `json:"paidOutReward"`
	AccruedReward    string        `json:"accruedReward"`
	Outstanding      string        `json:"outstanding"`
	BeginScheduleTs  int64         `json:"beginScheduleTs,omitempty"`
	PromisedDuration uint64        `json:"promisedDuration,omitempty"`
	PromisedSchedule *scheduleView `json:"promisedSchedule,omitempty"`
}

func newFarmerRewardView(r farm.FarmerReward) farmerRewardView {
	view := farmerRewardView{
		PaidOutReward: formatAmount(r.PaidOutReward),
		AccruedReward: formatAmount(r.AccruedReward),
		Outstanding:   formatAmount(r.Outstanding()),
	}
	if r.Fixed.Enrolled() {
		schedule := newScheduleView(r.Fixed.PromisedSchedule)
		view.BeginScheduleTs = r.Fixed.BeginScheduleTs
		view.PromisedDuration = r.Fixed.PromisedDuration
		view.PromisedSchedule = &schedule
	}
	return view
}

type farmerView struct {
	Farm               crypto.Address   `json:"farm"`
	Identity           crypto.Address   `json:"identity"`
	Vault              crypto.Address   `json:"vault"`
	State              string           `json:"state"`
	GemsStaked         uint64           `json:"gemsStaked"`
	RarityPointsStaked uint64           `json:"rarityPointsStaked"`
	BeginStakingTs     int64            `json:"beginStakingTs"`
	MinStakingEndsTs   int64            `json:"minStakingEndsTs"`
	CooldownEndsTs     int64            `json:"cooldownEndsTs"`
	RewardA            farmerRewardView `json:"rewardA"`
	RewardB            farmerRewardView `json:"rewardB"`
}

func newFarmerView(f *farm.Farmer) farmerView {
	return farmerView{
		Farm:               f.Farm,
		Identity:           f.Identity,
		Vault:              f.Vault,
		State:              f.State.String(),
		GemsStaked:         f.GemsStaked,
		RarityPointsStaked: f.RarityPointsStaked,
		BeginStakingTs:     f.BeginStakingTs,
		MinStakingEndsTs:   f.MinStakingEndsTs,
		CooldownEndsTs:     f.CooldownEndsTs,
		RewardA:            newFarmerRewardView(f.RewardA),
		RewardB:            newFarmerRewardView(f.RewardB),
	}
}
