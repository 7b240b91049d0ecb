package bank

import (
	"errors"
	"fmt"
)

var (
	errNilState = errors.New("bank engine: state not configured")

	ErrUnauthorized      = errors.New("bank: unauthorized")
	ErrVaultAccessDenied = errors.New("bank: vault access denied")
	ErrVaultLocked       = fmt.Errorf("%w: vault locked", ErrVaultAccessDenied)
	ErrBankFrozen        = fmt.Errorf("%w: bank frozen", ErrVaultAccessDenied)
	ErrNotWhitelisted    = errors.New("bank: not whitelisted")

	ErrBankExists      = errors.New("bank: bank already exists")
	ErrBankNotFound    = errors.New("bank: bank not found")
	ErrVaultExists     = errors.New("bank: vault already exists")
	ErrVaultNotFound   = errors.New("bank: vault not found")
	ErrReceiptNotFound = errors.New("bank: gem deposit receipt not found")
	ErrProofNotFound   = errors.New("bank: whitelist proof not found")

	ErrInvalidAmount        = errors.New("bank: amount must be positive")
	ErrInsufficientGems     = errors.New("bank: insufficient gems in box")
	ErrInvalidWhitelistType = errors.New("bank: invalid whitelist type")
	ErrInvalidFlags         = errors.New("bank: unknown bank flags")
	ErrInvalidAddress       = errors.New("bank: address required")
	ErrVaultBankMismatch    = errors.New("bank: vault does not belong to bank")
	ErrCounterOverflow      = errors.New("bank: counter overflow")
	ErrInvalidCreators      = errors.New("bank: invalid creator list")
)
