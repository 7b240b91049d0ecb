package farm

import (
	"math/big"
	"strings"

	"gemfarm/crypto"
)

// RewardType selects the accrual algorithm of a reward pool. It is fixed when
// the farm is initialised.
type RewardType uint8

const (
	RewardVariable RewardType = iota
	RewardFixed
)

func (t RewardType) String() string {
	switch t {
	case RewardVariable:
		return "variable"
	case RewardFixed:
		return "fixed"
	default:
		return "unknown"
	}
}

// Valid reports whether the reward type is supported.
func (t RewardType) Valid() bool { return t == RewardVariable || t == RewardFixed }

// ParseRewardType maps the textual form back to a RewardType.
func ParseRewardType(value string) (RewardType, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "variable":
		return RewardVariable, nil
	case "fixed":
		return RewardFixed, nil
	default:
		return 0, ErrInvalidRewardType
	}
}

// FarmConfig holds the manager-tunable staking parameters.
type FarmConfig struct {
	MinStakingPeriodSec uint64
	CooldownPeriodSec   uint64
	// UnstakingFeeLamp is charged in native currency when a farmer completes
	// cooldown.
	UnstakingFeeLamp uint64
}

// MaxPeriodSec bounds funding windows and farm periods so that timestamps
// derived from them stay within int64.
const MaxPeriodSec uint64 = 1 << 32

// Validate rejects periods longer than MaxPeriodSec.
func (c FarmConfig) Validate() error {
	if c.MinStakingPeriodSec > MaxPeriodSec || c.CooldownPeriodSec > MaxPeriodSec {
		return ErrInvalidDuration
	}
	return nil
}

// MaxCounts caps admission into the farm. Zero means unlimited.
type MaxCounts struct {
	MaxFarmers      uint64
	MaxGems         uint64
	MaxRarityPoints uint64
}

// FundsTracker accounts for every token that entered a reward pot.
type FundsTracker struct {
	TotalFunded           *big.Int
	TotalRefunded         *big.Int
	TotalAccruedToStakers *big.Int
}

// Pending is the amount funded but neither refunded nor accrued.
func (f FundsTracker) Pending() *big.Int {
	pending := new(big.Int).Sub(bigOrZero(f.TotalFunded), bigOrZero(f.TotalRefunded))
	pending.Sub(pending, bigOrZero(f.TotalAccruedToStakers))
	if pending.Sign() < 0 {
		return big.NewInt(0)
	}
	return pending
}

func (f FundsTracker) clone() FundsTracker {
	return FundsTracker{
		TotalFunded:           cloneBig(f.TotalFunded),
		TotalRefunded:         cloneBig(f.TotalRefunded),
		TotalAccruedToStakers: cloneBig(f.TotalAccruedToStakers),
	}
}

// TimeTracker bounds the active funding window of a pool.
type TimeTracker struct {
	DurationSec uint64
	RewardEndTs int64
	// LockEndTs is set once by LockReward and never cleared.
	LockEndTs int64
}

// RemainingDuration returns the seconds left in the funding window.
func (t TimeTracker) RemainingDuration(now int64) uint64 {
	if t.RewardEndTs <= now {
		return 0
	}
	return uint64(t.RewardEndTs - now)
}

// Locked reports whether funding changes are permanently disabled.
func (t TimeTracker) Locked() bool { return t.LockEndTs != 0 }

// VariableRateState is the global reward-per-rarity-point accumulator.
type VariableRateState struct {
	RewardRate          *big.Int
	RewardLastUpdatedTs int64
	// AccruedRewardPerRarityPoint is scaled by Precision and never decreases.
	AccruedRewardPerRarityPoint *big.Int
}

// TierConfig is one tier of a fixed-rate schedule.
type TierConfig struct {
	RewardRate     uint64
	RequiredTenure uint64
}

// FixedRateSchedule pays BaseRate from stake start, switching to each tier
// once its required tenure is reached. All rates are divided by Denominator.
type FixedRateSchedule struct {
	BaseRate    uint64
	Tier1       *TierConfig
	Tier2       *TierConfig
	Tier3       *TierConfig
	Denominator uint64
}

// Clone returns a deep copy of the schedule.
func (s FixedRateSchedule) Clone() FixedRateSchedule {
	clone := s
	clone.Tier1 = cloneTier(s.Tier1)
	clone.Tier2 = cloneTier(s.Tier2)
	clone.Tier3 = cloneTier(s.Tier3)
	return clone
}

func cloneTier(t *TierConfig) *TierConfig {
	if t == nil {
		return nil
	}
	clone := *t
	return &clone
}

// FixedRateState tracks the schedule offered to newly enrolling farmers and
// the total still promised to enrolled ones.
type FixedRateState struct {
	Schedule       FixedRateSchedule
	ReservedAmount *big.Int
}

// RewardPool is the funding and accrual state for one reward mint. Exactly
// one of Variable or Fixed is meaningful, selected by Type.
type RewardPool struct {
	Mint     crypto.Address
	Type     RewardType
	Pot      crypto.Address
	Funds    FundsTracker
	Times    TimeTracker
	Variable VariableRateState
	Fixed    FixedRateState
}

// Unaccrued is the amount still held for future accrual or refund.
func (p *RewardPool) Unaccrued() *big.Int { return p.Funds.Pending() }

func (p *RewardPool) clone() RewardPool {
	clone := *p
	clone.Funds = p.Funds.clone()
	clone.Variable.RewardRate = cloneBig(p.Variable.RewardRate)
	clone.Variable.AccruedRewardPerRarityPoint = cloneBig(p.Variable.AccruedRewardPerRarityPoint)
	clone.Fixed.Schedule = p.Fixed.Schedule.Clone()
	clone.Fixed.ReservedAmount = cloneBig(p.Fixed.ReservedAmount)
	return clone
}

// RewardSpec selects the mint and algorithm of a pool at farm creation.
type RewardSpec struct {
	Mint crypto.Address
	Type RewardType
}

// Farm stakes the vaults of its bank into two reward pools.
type Farm struct {
	Address   crypto.Address
	Manager   crypto.Address
	Authority crypto.Address
	Bank      crypto.Address
	Treasury  crypto.Address

	Config    FarmConfig
	MaxCounts MaxCounts

	FarmerCount           uint64
	StakedFarmerCount     uint64
	GemsStaked            uint64
	RarityPointsStaked    uint64
	AuthorizedFunderCount uint64
	TreasuryBalance       *big.Int

	RewardA RewardPool
	RewardB RewardPool
}

// Clone returns a deep copy of the farm.
func (f *Farm) Clone() *Farm {
	if f == nil {
		return nil
	}
	clone := *f
	clone.TreasuryBalance = cloneBig(f.TreasuryBalance)
	clone.RewardA = f.RewardA.clone()
	clone.RewardB = f.RewardB.clone()
	return &clone
}

// Pool returns the reward pool paying out mint.
func (f *Farm) Pool(mint crypto.Address) (*RewardPool, error) {
	switch mint {
	case f.RewardA.Mint:
		return &f.RewardA, nil
	case f.RewardB.Mint:
		return &f.RewardB, nil
	default:
		return nil, ErrUnknownRewardMint
	}
}

// FarmerState is the staking state of a farmer.
type FarmerState uint8

const (
	FarmerUnstaked FarmerState = iota
	FarmerStaked
	FarmerPendingCooldown
)

func (s FarmerState) String() string {
	switch s {
	case FarmerUnstaked:
		return "unstaked"
	case FarmerStaked:
		return "staked"
	case FarmerPendingCooldown:
		return "pendingCooldown"
	default:
		return "unknown"
	}
}

// FarmerVariableReward is the accumulator snapshot for variable pools.
type FarmerVariableReward struct {
	LastRecordedAccruedRewardPerRarityPoint *big.Int
}

// FarmerFixedReward is the schedule a farmer was promised on enrollment.
type FarmerFixedReward struct {
	// BeginStakingTs anchors tenure and survives schedule roll-overs.
	BeginStakingTs   int64
	BeginScheduleTs  int64
	LastUpdatedTs    int64
	PromisedSchedule FixedRateSchedule
	PromisedDuration uint64
}

// EndScheduleTs is when the promised schedule graduates.
func (r FarmerFixedReward) EndScheduleTs() int64 {
	return r.BeginScheduleTs + int64(r.PromisedDuration)
}

// Enrolled reports whether the farmer currently holds a promise.
func (r FarmerFixedReward) Enrolled() bool { return r.PromisedDuration > 0 }

// FarmerReward is a farmer's accrual snapshot for one pool.
type FarmerReward struct {
	PaidOutReward *big.Int
	AccruedReward *big.Int
	Variable      FarmerVariableReward
	Fixed         FarmerFixedReward
}

// Outstanding is accrued but not yet paid out.
func (r *FarmerReward) Outstanding() *big.Int {
	out := new(big.Int).Sub(bigOrZero(r.AccruedReward), bigOrZero(r.PaidOutReward))
	if out.Sign() < 0 {
		return big.NewInt(0)
	}
	return out
}

func (r FarmerReward) clone() FarmerReward {
	clone := r
	clone.PaidOutReward = cloneBig(r.PaidOutReward)
	clone.AccruedReward = cloneBig(r.AccruedReward)
	clone.Variable.LastRecordedAccruedRewardPerRarityPoint = cloneBig(r.Variable.LastRecordedAccruedRewardPerRarityPoint)
	clone.Fixed.PromisedSchedule = r.Fixed.PromisedSchedule.Clone()
	return clone
}

// Farmer is the per-(farm, identity) staking record.
type Farmer struct {
	Farm     crypto.Address
	Identity crypto.Address
	Vault    crypto.Address
	State    FarmerState

	GemsStaked         uint64
	RarityPointsStaked uint64
	// BeginStakingTs is kept across flash deposits for display.
	BeginStakingTs   int64
	MinStakingEndsTs int64
	CooldownEndsTs   int64

	RewardA FarmerReward
	RewardB FarmerReward
}

// Clone returns a deep copy of the farmer.
func (f *Farmer) Clone() *Farmer {
	if f == nil {
		return nil
	}
	clone := *f
	clone.RewardA = f.RewardA.clone()
	clone.RewardB = f.RewardB.clone()
	return &clone
}

// accruingRarityPoints is the stake that earns rewards right now. Farmers in
// cooldown keep their counts for bookkeeping but no longer earn.
func (f *Farmer) accruingRarityPoints() uint64 {
	if f.State != FarmerStaked {
		return 0
	}
	return f.RarityPointsStaked
}

// AuthorizationProof lets a funder fund and cancel the farm's pools.
type AuthorizationProof struct {
	Farm   crypto.Address
	Funder crypto.Address
}

// NativeMint identifies the native currency used for unstaking fees.
var NativeMint = crypto.DeriveAddress("native-currency")

// FarmAuthority derives the signer that manages the farm's bank.
func FarmAuthority(farm crypto.Address) crypto.Address {
	return crypto.DeriveAddress("farm-authority", farm)
}

// FarmTreasury derives the account collecting unstaking fees.
func FarmTreasury(farm crypto.Address) crypto.Address {
	return crypto.DeriveAddress("farm-treasury", farm)
}

// RewardPot derives the account holding a pool's funds.
func RewardPot(farm, mint crypto.Address) crypto.Address {
	return crypto.DeriveAddress("reward-pot", farm, mint)
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}
