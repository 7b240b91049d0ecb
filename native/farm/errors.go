package farm

import "errors"

var (
	errNilState   = errors.New("farm engine: state not configured")
	errNilCustody = errors.New("farm engine: bank engine not configured")

	ErrUnauthorized        = errors.New("farm: unauthorized")
	ErrCapExceeded         = errors.New("farm: admission cap exceeded")
	ErrMinPeriodNotElapsed = errors.New("farm: minimum staking period not elapsed")
	ErrCooldownNotElapsed  = errors.New("farm: cooldown period not elapsed")
	ErrRewardLocked        = errors.New("farm: reward pool locked")

	ErrFarmExists        = errors.New("farm: farm already exists")
	ErrFarmNotFound      = errors.New("farm: farm not found")
	ErrFarmerExists      = errors.New("farm: farmer already exists")
	ErrFarmerNotFound    = errors.New("farm: farmer not found")
	ErrFunderExists      = errors.New("farm: funder already authorized")
	ErrFunderNotFound    = errors.New("farm: funder not authorized")
	ErrUnknownRewardMint = errors.New("farm: unknown reward mint")

	ErrInvalidAmount       = errors.New("farm: amount must be positive")
	ErrInvalidDuration     = errors.New("farm: duration out of range")
	ErrInvalidRewardType   = errors.New("farm: invalid reward type")
	ErrInvalidSchedule     = errors.New("farm: invalid fixed rate schedule")
	ErrInvalidAddress      = errors.New("farm: address required")
	ErrDuplicateRewardMint = errors.New("farm: reward mints must differ")
	ErrInsufficientFunds   = errors.New("farm: insufficient funds")
	ErrRewardUnderfunded   = errors.New("farm: reward pool cannot cover promised schedule")
	ErrRewardNotActive     = errors.New("farm: reward pool has no active funding window")
	ErrFarmerNotStaked     = errors.New("farm: farmer not staked")
	ErrFarmerAlreadyStaked = errors.New("farm: farmer already staked")
	ErrNothingToStake      = errors.New("farm: vault holds no gems")
	ErrCounterOverflow     = errors.New("farm: counter overflow")
)
