package events

import (
	"math/big"

	"gemfarm/core/types"
	"gemfarm/crypto"
)

const (
	TypeFarmInitialized    = "farm.initialized"
	TypeFarmUpdated        = "farm.updated"
	TypeFunderAuthorized   = "farm.funderAuthorized"
	TypeFunderDeauthorized = "farm.funderDeauthorized"
	TypeRewardFunded       = "farm.rewardFunded"
	TypeRewardCancelled    = "farm.rewardCancelled"
	TypeRewardLocked       = "farm.rewardLocked"
	TypeFarmerInitialized  = "farm.farmerInitialized"
	TypeFarmerStaked       = "farm.farmerStaked"
	TypeFarmerCooldown     = "farm.farmerCooldown"
	TypeFarmerUnstaked     = "farm.farmerUnstaked"
	TypeFarmerRefreshed    = "farm.farmerRefreshed"
	TypeRewardsClaimed     = "farm.rewardsClaimed"
	TypeFlashDeposited     = "farm.flashDeposited"
	TypeTreasuryPayout     = "farm.treasuryPayout"
)

type FarmInitialized struct {
	Farm        crypto.Address
	Bank        crypto.Address
	Manager     crypto.Address
	RewardAMint crypto.Address
	RewardAType string
	RewardBMint crypto.Address
	RewardBType string
}

func (FarmInitialized) EventType() string { return TypeFarmInitialized }

func (e FarmInitialized) Event() *types.Event {
	return &types.Event{
		Type: TypeFarmInitialized,
		Attributes: map[string]string{
			"farm":        addr(e.Farm),
			"bank":        addr(e.Bank),
			"manager":     addr(e.Manager),
			"rewardAMint": addr(e.RewardAMint),
			"rewardAType": e.RewardAType,
			"rewardBMint": addr(e.RewardBMint),
			"rewardBType": e.RewardBType,
		},
	}
}

type FarmUpdated struct {
	Farm                crypto.Address
	Manager             crypto.Address
	MinStakingPeriodSec uint64
	CooldownPeriodSec   uint64
	UnstakingFeeLamp    uint64
}

func (FarmUpdated) EventType() string { return TypeFarmUpdated }

func (e FarmUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeFarmUpdated,
		Attributes: map[string]string{
			"farm":                addr(e.Farm),
			"manager":             addr(e.Manager),
			"minStakingPeriodSec": uintToString(e.MinStakingPeriodSec),
			"cooldownPeriodSec":   uintToString(e.CooldownPeriodSec),
			"unstakingFeeLamp":    uintToString(e.UnstakingFeeLamp),
		},
	}
}

// FunderAuthorizationChanged covers both granting and revoking a funder.
type FunderAuthorizationChanged struct {
	Revoked bool
	Farm    crypto.Address
	Funder  crypto.Address
}

func (e FunderAuthorizationChanged) EventType() string {
	if e.Revoked {
		return TypeFunderDeauthorized
	}
	return TypeFunderAuthorized
}

func (e FunderAuthorizationChanged) Event() *types.Event {
	return &types.Event{
		Type: e.EventType(),
		Attributes: map[string]string{
			"farm":   addr(e.Farm),
			"funder": addr(e.Funder),
		},
	}
}

type RewardFunded struct {
	Farm        crypto.Address
	Mint        crypto.Address
	Funder      crypto.Address
	Amount      *big.Int
	DurationSec uint64
	RewardEndTs int64
	// Rate is only reported for variable pools.
	Rate *big.Int
}

func (RewardFunded) EventType() string { return TypeRewardFunded }

func (e RewardFunded) Event() *types.Event {
	attrs := map[string]string{
		"farm":        addr(e.Farm),
		"mint":        addr(e.Mint),
		"funder":      addr(e.Funder),
		"amount":      formatAmount(e.Amount),
		"durationSec": uintToString(e.DurationSec),
		"rewardEndTs": intToString(e.RewardEndTs),
	}
	if e.Rate != nil {
		attrs["rate"] = formatAmount(e.Rate)
	}
	return &types.Event{Type: TypeRewardFunded, Attributes: attrs}
}

type RewardCancelled struct {
	Farm   crypto.Address
	Mint   crypto.Address
	Funder crypto.Address
	Refund *big.Int
}

func (RewardCancelled) EventType() string { return TypeRewardCancelled }

func (e RewardCancelled) Event() *types.Event {
	return &types.Event{
		Type: TypeRewardCancelled,
		Attributes: map[string]string{
			"farm":   addr(e.Farm),
			"mint":   addr(e.Mint),
			"funder": addr(e.Funder),
			"refund": formatAmount(e.Refund),
		},
	}
}

type RewardLocked struct {
	Farm      crypto.Address
	Mint      crypto.Address
	LockEndTs int64
}

func (RewardLocked) EventType() string { return TypeRewardLocked }

func (e RewardLocked) Event() *types.Event {
	return &types.Event{
		Type: TypeRewardLocked,
		Attributes: map[string]string{
			"farm":      addr(e.Farm),
			"mint":      addr(e.Mint),
			"lockEndTs": intToString(e.LockEndTs),
		},
	}
}

type FarmerInitialized struct {
	Farm     crypto.Address
	Identity crypto.Address
	Vault    crypto.Address
}

func (FarmerInitialized) EventType() string { return TypeFarmerInitialized }

func (e FarmerInitialized) Event() *types.Event {
	return &types.Event{
		Type: TypeFarmerInitialized,
		Attributes: map[string]string{
			"farm":     addr(e.Farm),
			"identity": addr(e.Identity),
			"vault":    addr(e.Vault),
		},
	}
}

type FarmerStaked struct {
	Farm             crypto.Address
	Identity         crypto.Address
	GemsStaked       uint64
	RarityPoints     uint64
	MinStakingEndsTs int64
}

func (FarmerStaked) EventType() string { return TypeFarmerStaked }

func (e FarmerStaked) Event() *types.Event {
	return &types.Event{
		Type: TypeFarmerStaked,
		Attributes: map[string]string{
			"farm":             addr(e.Farm),
			"identity":         addr(e.Identity),
			"gemsStaked":       uintToString(e.GemsStaked),
			"rarityPoints":     uintToString(e.RarityPoints),
			"minStakingEndsTs": intToString(e.MinStakingEndsTs),
		},
	}
}

// FarmerUnstaked is emitted for both unstake phases. Completed is false when
// the farmer enters cooldown and true once the vault is released.
type FarmerUnstaked struct {
	Completed      bool
	Farm           crypto.Address
	Identity       crypto.Address
	CooldownEndsTs int64
	Fee            uint64
}

func (e FarmerUnstaked) EventType() string {
	if e.Completed {
		return TypeFarmerUnstaked
	}
	return TypeFarmerCooldown
}

func (e FarmerUnstaked) Event() *types.Event {
	attrs := map[string]string{
		"farm":     addr(e.Farm),
		"identity": addr(e.Identity),
	}
	if e.Completed {
		attrs["fee"] = uintToString(e.Fee)
	} else {
		attrs["cooldownEndsTs"] = intToString(e.CooldownEndsTs)
	}
	return &types.Event{Type: e.EventType(), Attributes: attrs}
}

type FarmerRefreshed struct {
	Farm     crypto.Address
	Identity crypto.Address
	AccruedA *big.Int
	AccruedB *big.Int
}

func (FarmerRefreshed) EventType() string { return TypeFarmerRefreshed }

func (e FarmerRefreshed) Event() *types.Event {
	return &types.Event{
		Type: TypeFarmerRefreshed,
		Attributes: map[string]string{
			"farm":     addr(e.Farm),
			"identity": addr(e.Identity),
			"accruedA": formatAmount(e.AccruedA),
			"accruedB": formatAmount(e.AccruedB),
		},
	}
}

type RewardsClaimed struct {
	Farm     crypto.Address
	Identity crypto.Address
	MintA    crypto.Address
	AmountA  *big.Int
	MintB    crypto.Address
	AmountB  *big.Int
}

func (RewardsClaimed) EventType() string { return TypeRewardsClaimed }

func (e RewardsClaimed) Event() *types.Event {
	return &types.Event{
		Type: TypeRewardsClaimed,
		Attributes: map[string]string{
			"farm":     addr(e.Farm),
			"identity": addr(e.Identity),
			"mintA":    addr(e.MintA),
			"amountA":  formatAmount(e.AmountA),
			"mintB":    addr(e.MintB),
			"amountB":  formatAmount(e.AmountB),
		},
	}
}

type FlashDeposited struct {
	Farm               crypto.Address
	Identity           crypto.Address
	Mint               crypto.Address
	Amount             uint64
	GemsStaked         uint64
	RarityPointsStaked uint64
}

func (FlashDeposited) EventType() string { return TypeFlashDeposited }

func (e FlashDeposited) Event() *types.Event {
	return &types.Event{
		Type: TypeFlashDeposited,
		Attributes: map[string]string{
			"farm":               addr(e.Farm),
			"identity":           addr(e.Identity),
			"mint":               addr(e.Mint),
			"amount":             uintToString(e.Amount),
			"gemsStaked":         uintToString(e.GemsStaked),
			"rarityPointsStaked": uintToString(e.RarityPointsStaked),
		},
	}
}

type TreasuryPayout struct {
	Farm        crypto.Address
	Destination crypto.Address
	Amount      *big.Int
}

func (TreasuryPayout) EventType() string { return TypeTreasuryPayout }

func (e TreasuryPayout) Event() *types.Event {
	return &types.Event{
		Type: TypeTreasuryPayout,
		Attributes: map[string]string{
			"farm":        addr(e.Farm),
			"destination": addr(e.Destination),
			"amount":      formatAmount(e.Amount),
		},
	}
}
