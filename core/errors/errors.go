// Package errors classifies ledger failures into the coarse kinds exposed to
// API clients.
package errors

import (
	stderrors "errors"

	"gemfarm/core/state"
	"gemfarm/native/bank"
	nativecommon "gemfarm/native/common"
	"gemfarm/native/farm"
)

// Kind is a client-facing failure category.
type Kind string

const (
	KindUnauthorized Kind = "unauthorized"
	KindAccessDenied Kind = "access_denied"
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "already_exists"
	KindInvalid      Kind = "invalid_argument"
	KindPrecondition Kind = "failed_precondition"
	KindLocked       Kind = "locked"
	KindPaused       Kind = "paused"
	KindInternal     Kind = "internal"
)

var classes = []struct {
	kind Kind
	errs []error
}{
	{KindUnauthorized, []error{bank.ErrUnauthorized, farm.ErrUnauthorized}},
	{KindAccessDenied, []error{bank.ErrVaultAccessDenied, bank.ErrNotWhitelisted}},
	{KindNotFound, []error{
		bank.ErrBankNotFound, bank.ErrVaultNotFound, bank.ErrReceiptNotFound, bank.ErrProofNotFound,
		farm.ErrFarmNotFound, farm.ErrFarmerNotFound, farm.ErrFunderNotFound, farm.ErrUnknownRewardMint,
	}},
	{KindConflict, []error{
		bank.ErrBankExists, bank.ErrVaultExists, farm.ErrFarmExists, farm.ErrFarmerExists, farm.ErrFunderExists,
	}},
	{KindLocked, []error{farm.ErrRewardLocked}},
	{KindPrecondition, []error{
		farm.ErrCapExceeded, farm.ErrMinPeriodNotElapsed, farm.ErrCooldownNotElapsed,
		farm.ErrRewardUnderfunded, farm.ErrRewardNotActive, farm.ErrFarmerNotStaked,
		farm.ErrFarmerAlreadyStaked, farm.ErrNothingToStake, farm.ErrInsufficientFunds,
		bank.ErrInsufficientGems, state.ErrInsufficientBalance,
	}},
	{KindInvalid, []error{
		bank.ErrInvalidAmount, bank.ErrInvalidWhitelistType, bank.ErrInvalidFlags, bank.ErrInvalidAddress,
		bank.ErrVaultBankMismatch, bank.ErrCounterOverflow, bank.ErrInvalidCreators,
		farm.ErrInvalidAmount, farm.ErrInvalidDuration, farm.ErrInvalidRewardType, farm.ErrInvalidSchedule,
		farm.ErrInvalidAddress, farm.ErrDuplicateRewardMint, farm.ErrCounterOverflow,
		state.ErrInvalidAmount, state.ErrBalanceOverflow,
	}},
	{KindPaused, []error{nativecommon.ErrModulePaused}},
}

// Classify maps err onto its Kind. Unknown errors are internal.
func Classify(err error) Kind {
	if err == nil {
		return ""
	}
	for _, class := range classes {
		for _, target := range class.errs {
			if stderrors.Is(err, target) {
				return class.kind
			}
		}
	}
	return KindInternal
}

// Is reports whether err falls into kind.
func Is(err error, kind Kind) bool {
	return err != nil && Classify(err) == kind
}
