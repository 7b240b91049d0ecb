package events

import (
	"strconv"
	"strings"

	"gemfarm/core/types"
	"gemfarm/crypto"
)

const (
	TypeBankInitialized     = "bank.initialized"
	TypeBankFlagsUpdated    = "bank.flagsUpdated"
	TypeBankManagerUpdated  = "bank.managerUpdated"
	TypeVaultInitialized    = "bank.vaultInitialized"
	TypeVaultOwnerUpdated   = "bank.vaultOwnerUpdated"
	TypeVaultLockUpdated    = "bank.vaultLockUpdated"
	TypeGemDeposited        = "bank.gemDeposited"
	TypeGemWithdrawn        = "bank.gemWithdrawn"
	TypeWhitelistAdded      = "bank.whitelistAdded"
	TypeWhitelistRemoved    = "bank.whitelistRemoved"
	TypeRarityPointsUpdated = "bank.rarityUpdated"
	TypeCreatorsRecorded    = "bank.creatorsRecorded"
)

type BankInitialized struct {
	Bank    crypto.Address
	Manager crypto.Address
}

func (BankInitialized) EventType() string { return TypeBankInitialized }

func (e BankInitialized) Event() *types.Event {
	return &types.Event{
		Type: TypeBankInitialized,
		Attributes: map[string]string{
			"bank":    addr(e.Bank),
			"manager": addr(e.Manager),
		},
	}
}

type BankFlagsUpdated struct {
	Bank  crypto.Address
	Flags uint32
}

func (BankFlagsUpdated) EventType() string { return TypeBankFlagsUpdated }

func (e BankFlagsUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeBankFlagsUpdated,
		Attributes: map[string]string{
			"bank":  addr(e.Bank),
			"flags": strconv.FormatUint(uint64(e.Flags), 10),
		},
	}
}

type BankManagerUpdated struct {
	Bank       crypto.Address
	Manager    crypto.Address
	NewManager crypto.Address
}

func (BankManagerUpdated) EventType() string { return TypeBankManagerUpdated }

func (e BankManagerUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeBankManagerUpdated,
		Attributes: map[string]string{
			"bank":       addr(e.Bank),
			"manager":    addr(e.Manager),
			"newManager": addr(e.NewManager),
		},
	}
}

type VaultInitialized struct {
	Bank    crypto.Address
	Vault   crypto.Address
	Creator crypto.Address
	Owner   crypto.Address
}

func (VaultInitialized) EventType() string { return TypeVaultInitialized }

func (e VaultInitialized) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultInitialized,
		Attributes: map[string]string{
			"bank":    addr(e.Bank),
			"vault":   addr(e.Vault),
			"creator": addr(e.Creator),
			"owner":   addr(e.Owner),
		},
	}
}

type VaultOwnerUpdated struct {
	Vault    crypto.Address
	Owner    crypto.Address
	NewOwner crypto.Address
}

func (VaultOwnerUpdated) EventType() string { return TypeVaultOwnerUpdated }

func (e VaultOwnerUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultOwnerUpdated,
		Attributes: map[string]string{
			"vault":    addr(e.Vault),
			"owner":    addr(e.Owner),
			"newOwner": addr(e.NewOwner),
		},
	}
}

type VaultLockUpdated struct {
	Vault  crypto.Address
	Locked bool
}

func (VaultLockUpdated) EventType() string { return TypeVaultLockUpdated }

func (e VaultLockUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultLockUpdated,
		Attributes: map[string]string{
			"vault":  addr(e.Vault),
			"locked": strconv.FormatBool(e.Locked),
		},
	}
}

// GemMoved describes a deposit into or withdrawal out of a vault together
// with the resulting vault totals.
type GemMoved struct {
	Withdrawal   bool
	Bank         crypto.Address
	Vault        crypto.Address
	Mint         crypto.Address
	Amount       uint64
	VaultGems    uint64
	VaultRarity  uint64
	VaultBoxes   uint64
}

func (e GemMoved) EventType() string {
	if e.Withdrawal {
		return TypeGemWithdrawn
	}
	return TypeGemDeposited
}

func (e GemMoved) Event() *types.Event {
	return &types.Event{
		Type: e.EventType(),
		Attributes: map[string]string{
			"bank":         addr(e.Bank),
			"vault":        addr(e.Vault),
			"mint":         addr(e.Mint),
			"amount":       uintToString(e.Amount),
			"gemCount":     uintToString(e.VaultGems),
			"rarityPoints": uintToString(e.VaultRarity),
			"gemBoxCount":  uintToString(e.VaultBoxes),
		},
	}
}

type WhitelistChanged struct {
	Removed bool
	Bank    crypto.Address
	Address crypto.Address
	Kind    string
}

func (e WhitelistChanged) EventType() string {
	if e.Removed {
		return TypeWhitelistRemoved
	}
	return TypeWhitelistAdded
}

func (e WhitelistChanged) Event() *types.Event {
	return &types.Event{
		Type: e.EventType(),
		Attributes: map[string]string{
			"bank":    addr(e.Bank),
			"address": addr(e.Address),
			"type":    e.Kind,
		},
	}
}

type RarityPointsUpdated struct {
	Bank   crypto.Address
	Mint   crypto.Address
	Points uint64
}

func (RarityPointsUpdated) EventType() string { return TypeRarityPointsUpdated }

func (e RarityPointsUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeRarityPointsUpdated,
		Attributes: map[string]string{
			"bank":   addr(e.Bank),
			"mint":   addr(e.Mint),
			"points": uintToString(e.Points),
		},
	}
}

// CreatorsRecorded reports a new creator list for an NFT mint. Verified lists
// the subset of Creators the metadata authority marked as verified.
type CreatorsRecorded struct {
	Mint      crypto.Address
	Authority crypto.Address
	Creators  []crypto.Address
	Verified  []crypto.Address
}

func (CreatorsRecorded) EventType() string { return TypeCreatorsRecorded }

func (e CreatorsRecorded) Event() *types.Event {
	return &types.Event{
		Type: TypeCreatorsRecorded,
		Attributes: map[string]string{
			"mint":      addr(e.Mint),
			"authority": addr(e.Authority),
			"creators":  joinAddresses(e.Creators),
			"verified":  joinAddresses(e.Verified),
		},
	}
}

func joinAddresses(list []crypto.Address) string {
	parts := make([]string, 0, len(list))
	for _, a := range list {
		parts = append(parts, addr(a))
	}
	return strings.Join(parts, ",")
}
