package bank

import (
	"strings"

	"gemfarm/crypto"
)

// BankFlags is a bitmask of bank-wide switches.
type BankFlags uint32

const (
	// FlagFreezeVaults blocks every vault mutation under the bank.
	FlagFreezeVaults BankFlags = 1 << 0

	knownBankFlags = FlagFreezeVaults
)

// Valid reports whether only known flag bits are set.
func (f BankFlags) Valid() bool { return f&^knownBankFlags == 0 }

// Bank owns a set of vaults and the whitelist that gates deposits into them.
type Bank struct {
	Address crypto.Address
	Manager crypto.Address
	Flags   BankFlags
	// The whitelist counters decide whether the matching gate is active.
	WhitelistedCreators uint32
	WhitelistedMints    uint32
	VaultCount          uint64
}

// Frozen reports whether vault mutation is currently blocked.
func (b *Bank) Frozen() bool {
	return b != nil && b.Flags&FlagFreezeVaults != 0
}

// Clone returns a copy of the bank.
func (b *Bank) Clone() *Bank {
	if b == nil {
		return nil
	}
	clone := *b
	return &clone
}

// Vault is the per-(bank, creator) custody record.
type Vault struct {
	Address crypto.Address
	Bank    crypto.Address
	Owner   crypto.Address
	// Creator is fixed at init time and seeds the vault address.
	Creator crypto.Address
	// Authority is the derived signer holding the vault's gem boxes.
	Authority    crypto.Address
	Name         string
	Locked       bool
	GemBoxCount  uint64
	GemCount     uint64
	RarityPoints uint64
}

// Clone returns a copy of the vault.
func (v *Vault) Clone() *Vault {
	if v == nil {
		return nil
	}
	clone := *v
	return &clone
}

// GemDepositReceipt records how many gems of a single mint a vault holds.
// A receipt exists only while its gem count is positive.
type GemDepositReceipt struct {
	Vault        crypto.Address
	GemBox       crypto.Address
	GemMint      crypto.Address
	GemCount     uint64
	RarityPoints uint64
}

// Clone returns a copy of the receipt.
func (r *GemDepositReceipt) Clone() *GemDepositReceipt {
	if r == nil {
		return nil
	}
	clone := *r
	return &clone
}

// WhitelistType tags what a whitelisted address is admitted as.
type WhitelistType uint8

const (
	WhitelistCreator WhitelistType = 1 << 0
	WhitelistMint    WhitelistType = 1 << 1
	WhitelistBoth                  = WhitelistCreator | WhitelistMint
)

// Valid reports whether the type selects at least one known kind.
func (t WhitelistType) Valid() bool {
	return t != 0 && t&^WhitelistBoth == 0
}

// IsCreator reports whether the proof admits the address as a creator.
func (t WhitelistType) IsCreator() bool { return t&WhitelistCreator != 0 }

// IsMint reports whether the proof admits the address as a mint.
func (t WhitelistType) IsMint() bool { return t&WhitelistMint != 0 }

func (t WhitelistType) String() string {
	switch t {
	case WhitelistCreator:
		return "creator"
	case WhitelistMint:
		return "mint"
	case WhitelistBoth:
		return "both"
	default:
		return "unknown"
	}
}

// ParseWhitelistType maps the textual form back to a WhitelistType.
func ParseWhitelistType(value string) (WhitelistType, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "creator":
		return WhitelistCreator, nil
	case "mint":
		return WhitelistMint, nil
	case "both":
		return WhitelistBoth, nil
	default:
		return 0, ErrInvalidWhitelistType
	}
}

// WhitelistProof admits an address (creator or mint) into a bank.
type WhitelistProof struct {
	Bank    crypto.Address
	Address crypto.Address
	Type    WhitelistType
}

// Clone returns a copy of the proof.
func (p *WhitelistProof) Clone() *WhitelistProof {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}

// Rarity is the per-(bank, mint) weight applied to raw gem counts.
type Rarity struct {
	Bank   crypto.Address
	Mint   crypto.Address
	Points uint64
}

// RarityConfig is a single rarity assignment requested by a manager.
type RarityConfig struct {
	Mint   crypto.Address
	Points uint64
}

// Creator is one entry of an NFT's creator list as reported by the metadata
// oracle.
type Creator struct {
	Address  crypto.Address
	Verified bool
}

// DefaultRarity applies to mints without a rarity record.
const DefaultRarity uint64 = 1

// VaultAddress derives the vault record address for (bank, creator).
func VaultAddress(bank, creator crypto.Address) crypto.Address {
	return crypto.DeriveAddress("vault", bank, creator)
}

// VaultAuthority derives the signer that owns a vault's gem boxes.
func VaultAuthority(vault crypto.Address) crypto.Address {
	return crypto.DeriveAddress("vault-authority", vault)
}

// GemBoxAddress derives the token account holding a vault's gems of one mint.
func GemBoxAddress(vault, mint crypto.Address) crypto.Address {
	return crypto.DeriveAddress("gem-box", vault, mint)
}
