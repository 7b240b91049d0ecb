package bank

import (
	"math/big"
	"strings"

	"gemfarm/core/events"
	"gemfarm/crypto"
	nativecommon "gemfarm/native/common"
)

const moduleName = "bank"

type engineState interface {
	BankGet(addr crypto.Address) (*Bank, bool, error)
	BankPut(b *Bank) error
	VaultGet(addr crypto.Address) (*Vault, bool, error)
	VaultPut(v *Vault) error
	ReceiptGet(vault, mint crypto.Address) (*GemDepositReceipt, bool, error)
	ReceiptPut(r *GemDepositReceipt) error
	ReceiptDelete(vault, mint crypto.Address) error
	ReceiptList(vault crypto.Address) ([]*GemDepositReceipt, error)
	WhitelistGet(bank, addr crypto.Address) (*WhitelistProof, bool, error)
	WhitelistPut(p *WhitelistProof) error
	WhitelistDelete(bank, addr crypto.Address) error
	RarityGet(bank, mint crypto.Address) (*Rarity, bool, error)
	RarityPut(r *Rarity) error
	Transfer(mint, from, to crypto.Address, amount *big.Int) error
}

// MetadataOracle reports the ordered creator list recorded in an NFT's
// metadata.
type MetadataOracle interface {
	VerifiedCreators(mint crypto.Address) ([]Creator, error)
}

// Engine applies bank and vault custody transitions against external state.
type Engine struct {
	state   engineState
	oracle  MetadataOracle
	emitter events.Emitter
	pauses  nativecommon.PauseView
}

// NewEngine creates a bank engine with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetMetadataOracle wires the creator lookup used by creator whitelisting.
func (e *Engine) SetMetadataOracle(oracle MetadataOracle) { e.oracle = oracle }

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

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return nativecommon.Guard(e.pauses, moduleName)
}

func (e *Engine) loadBank(addr crypto.Address) (*Bank, error) {
	b, ok, err := e.state.BankGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrBankNotFound
	}
	return b, nil
}

func (e *Engine) loadManagedBank(addr, manager crypto.Address) (*Bank, error) {
	b, err := e.loadBank(addr)
	if err != nil {
		return nil, err
	}
	if b.Manager != manager {
		return nil, ErrUnauthorized
	}
	return b, nil
}

func (e *Engine) loadVault(bankAddr, vaultAddr crypto.Address) (*Bank, *Vault, error) {
	b, err := e.loadBank(bankAddr)
	if err != nil {
		return nil, nil, err
	}
	v, ok, err := e.state.VaultGet(vaultAddr)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, ErrVaultNotFound
	}
	if v.Bank != b.Address {
		return nil, nil, ErrVaultBankMismatch
	}
	return b, v, nil
}

// InitBank registers a new bank controlled by manager.
func (e *Engine) InitBank(bankAddr, manager crypto.Address) (*Bank, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if bankAddr.IsZero() || manager.IsZero() {
		return nil, ErrInvalidAddress
	}
	if _, ok, err := e.state.BankGet(bankAddr); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrBankExists
	}
	b := &Bank{Address: bankAddr, Manager: manager}
	if err := e.state.BankPut(b); err != nil {
		return nil, err
	}
	e.emit(events.BankInitialized{Bank: bankAddr, Manager: manager})
	return b.Clone(), nil
}

// SetBankFlags replaces the bank flag set.
func (e *Engine) SetBankFlags(bankAddr, manager crypto.Address, flags BankFlags) (*Bank, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if !flags.Valid() {
		return nil, ErrInvalidFlags
	}
	b, err := e.loadManagedBank(bankAddr, manager)
	if err != nil {
		return nil, err
	}
	b.Flags = flags
	if err := e.state.BankPut(b); err != nil {
		return nil, err
	}
	e.emit(events.BankFlagsUpdated{Bank: bankAddr, Flags: uint32(flags)})
	return b.Clone(), nil
}

// UpdateBankManager hands bank management over to newManager.
func (e *Engine) UpdateBankManager(bankAddr, manager, newManager crypto.Address) (*Bank, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if newManager.IsZero() {
		return nil, ErrInvalidAddress
	}
	b, err := e.loadManagedBank(bankAddr, manager)
	if err != nil {
		return nil, err
	}
	b.Manager = newManager
	if err := e.state.BankPut(b); err != nil {
		return nil, err
	}
	e.emit(events.BankManagerUpdated{Bank: bankAddr, Manager: manager, NewManager: newManager})
	return b.Clone(), nil
}

// InitVault creates the vault for (bank, creator) owned by owner. A creator
// can hold at most one vault per bank.
func (e *Engine) InitVault(bankAddr, creator, owner crypto.Address, name string) (*Vault, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if creator.IsZero() || owner.IsZero() {
		return nil, ErrInvalidAddress
	}
	b, err := e.loadBank(bankAddr)
	if err != nil {
		return nil, err
	}
	vaultAddr := VaultAddress(bankAddr, creator)
	if _, ok, err := e.state.VaultGet(vaultAddr); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrVaultExists
	}
	v := &Vault{
		Address:   vaultAddr,
		Bank:      bankAddr,
		Owner:     owner,
		Creator:   creator,
		Authority: VaultAuthority(vaultAddr),
		Name:      strings.TrimSpace(name),
	}
	b.VaultCount++
	if err := e.state.VaultPut(v); err != nil {
		return nil, err
	}
	if err := e.state.BankPut(b); err != nil {
		return nil, err
	}
	e.emit(events.VaultInitialized{Bank: bankAddr, Vault: vaultAddr, Creator: creator, Owner: owner})
	return v.Clone(), nil
}

// UpdateVaultOwner transfers vault ownership. Only the current owner may call
// it.
func (e *Engine) UpdateVaultOwner(bankAddr, vaultAddr, owner, newOwner crypto.Address) (*Vault, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if newOwner.IsZero() {
		return nil, ErrInvalidAddress
	}
	_, v, err := e.loadVault(bankAddr, vaultAddr)
	if err != nil {
		return nil, err
	}
	if v.Owner != owner {
		return nil, ErrUnauthorized
	}
	v.Owner = newOwner
	if err := e.state.VaultPut(v); err != nil {
		return nil, err
	}
	e.emit(events.VaultOwnerUpdated{Vault: vaultAddr, Owner: owner, NewOwner: newOwner})
	return v.Clone(), nil
}

// SetVaultLock locks or unlocks a vault. Only the bank manager may call it.
func (e *Engine) SetVaultLock(bankAddr, vaultAddr, manager crypto.Address, locked bool) (*Vault, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	b, v, err := e.loadVault(bankAddr, vaultAddr)
	if err != nil {
		return nil, err
	}
	if b.Manager != manager {
		return nil, ErrUnauthorized
	}
	if v.Locked == locked {
		return v.Clone(), nil
	}
	v.Locked = locked
	if err := e.state.VaultPut(v); err != nil {
		return nil, err
	}
	e.emit(events.VaultLockUpdated{Vault: vaultAddr, Locked: locked})
	return v.Clone(), nil
}

func checkAccess(b *Bank, v *Vault) error {
	if b.Frozen() {
		return ErrBankFrozen
	}
	if v.Locked {
		return ErrVaultLocked
	}
	return nil
}

// DepositGem moves amount gems of mint from source into the vault's gem box.
func (e *Engine) DepositGem(bankAddr, vaultAddr, owner, mint crypto.Address, amount uint64, source crypto.Address) (*Vault, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if amount == 0 {
		return nil, ErrInvalidAmount
	}
	b, v, err := e.loadVault(bankAddr, vaultAddr)
	if err != nil {
		return nil, err
	}
	// Gems only move out of the signer's own account.
	if v.Owner != owner || source != owner {
		return nil, ErrUnauthorized
	}
	if err := checkAccess(b, v); err != nil {
		return nil, err
	}
	if err := e.checkWhitelist(b, mint); err != nil {
		return nil, err
	}
	rarity, err := e.rarityOf(bankAddr, mint)
	if err != nil {
		return nil, err
	}
	points, ok := mulUint64(amount, rarity)
	if !ok {
		return nil, ErrCounterOverflow
	}
	receipt, exists, err := e.state.ReceiptGet(vaultAddr, mint)
	if err != nil {
		return nil, err
	}
	if !exists {
		receipt = &GemDepositReceipt{
			Vault:   vaultAddr,
			GemBox:  GemBoxAddress(vaultAddr, mint),
			GemMint: mint,
		}
	}
	if receipt.GemCount+amount < receipt.GemCount || v.GemCount+amount < v.GemCount || v.RarityPoints+points < v.RarityPoints {
		return nil, ErrCounterOverflow
	}
	if err := e.state.Transfer(mint, source, receipt.GemBox, new(big.Int).SetUint64(amount)); err != nil {
		return nil, err
	}
	if !exists {
		v.GemBoxCount++
	}
	receipt.GemCount += amount
	receipt.RarityPoints += points
	v.GemCount += amount
	v.RarityPoints += points
	if err := e.state.ReceiptPut(receipt); err != nil {
		return nil, err
	}
	if err := e.state.VaultPut(v); err != nil {
		return nil, err
	}
	e.emit(events.GemMoved{
		Bank:        bankAddr,
		Vault:       vaultAddr,
		Mint:        mint,
		Amount:      amount,
		VaultGems:   v.GemCount,
		VaultRarity: v.RarityPoints,
		VaultBoxes:  v.GemBoxCount,
	})
	return v.Clone(), nil
}

// WithdrawGem is the inverse of DepositGem. Emptying a gem box removes its
// receipt.
func (e *Engine) WithdrawGem(bankAddr, vaultAddr, owner, mint crypto.Address, amount uint64, receiver crypto.Address) (*Vault, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if amount == 0 {
		return nil, ErrInvalidAmount
	}
	b, v, err := e.loadVault(bankAddr, vaultAddr)
	if err != nil {
		return nil, err
	}
	if v.Owner != owner {
		return nil, ErrUnauthorized
	}
	if err := checkAccess(b, v); err != nil {
		return nil, err
	}
	receipt, ok, err := e.state.ReceiptGet(vaultAddr, mint)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrReceiptNotFound
	}
	if receipt.GemCount < amount {
		return nil, ErrInsufficientGems
	}
	points := withdrawnPoints(receipt, amount)
	if err := e.state.Transfer(mint, receipt.GemBox, receiver, new(big.Int).SetUint64(amount)); err != nil {
		return nil, err
	}
	receipt.GemCount -= amount
	receipt.RarityPoints -= points
	v.GemCount -= amount
	v.RarityPoints -= points
	if receipt.GemCount == 0 {
		v.GemBoxCount--
		if err := e.state.ReceiptDelete(vaultAddr, mint); err != nil {
			return nil, err
		}
	} else if err := e.state.ReceiptPut(receipt); err != nil {
		return nil, err
	}
	if err := e.state.VaultPut(v); err != nil {
		return nil, err
	}
	e.emit(events.GemMoved{
		Withdrawal:  true,
		Bank:        bankAddr,
		Vault:       vaultAddr,
		Mint:        mint,
		Amount:      amount,
		VaultGems:   v.GemCount,
		VaultRarity: v.RarityPoints,
		VaultBoxes:  v.GemBoxCount,
	})
	return v.Clone(), nil
}

// withdrawnPoints releases the rarity points attributed to amount gems of the
// receipt. Points are tracked per receipt so a rarity change after deposit
// never lets a vault release more points than it was credited.
func withdrawnPoints(receipt *GemDepositReceipt, amount uint64) uint64 {
	if amount >= receipt.GemCount {
		return receipt.RarityPoints
	}
	points := new(big.Int).SetUint64(receipt.RarityPoints)
	points.Mul(points, new(big.Int).SetUint64(amount))
	points.Quo(points, new(big.Int).SetUint64(receipt.GemCount))
	return points.Uint64()
}

// RecordRarityPoints assigns rarity weights to mints. Existing deposits keep
// the points they were credited with.
func (e *Engine) RecordRarityPoints(bankAddr, manager crypto.Address, configs []RarityConfig) error {
	if err := e.ready(); err != nil {
		return err
	}
	if _, err := e.loadManagedBank(bankAddr, manager); err != nil {
		return err
	}
	for _, cfg := range configs {
		if cfg.Mint.IsZero() {
			return ErrInvalidAddress
		}
	}
	for _, cfg := range configs {
		if err := e.state.RarityPut(&Rarity{Bank: bankAddr, Mint: cfg.Mint, Points: cfg.Points}); err != nil {
			return err
		}
		e.emit(events.RarityPointsUpdated{Bank: bankAddr, Mint: cfg.Mint, Points: cfg.Points})
	}
	return nil
}

// RarityOf returns the rarity weight applied to mint deposits in the bank.
func (e *Engine) RarityOf(bankAddr, mint crypto.Address) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	return e.rarityOf(bankAddr, mint)
}

func (e *Engine) rarityOf(bankAddr, mint crypto.Address) (uint64, error) {
	r, ok, err := e.state.RarityGet(bankAddr, mint)
	if err != nil {
		return 0, err
	}
	if !ok {
		return DefaultRarity, nil
	}
	return r.Points, nil
}

// Bank returns the stored bank.
func (e *Engine) Bank(addr crypto.Address) (*Bank, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.loadBank(addr)
}

// Vault returns the stored vault.
func (e *Engine) Vault(addr crypto.Address) (*Vault, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	v, ok, err := e.state.VaultGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrVaultNotFound
	}
	return v, nil
}

// Receipts lists the gem deposit receipts currently held by a vault.
func (e *Engine) Receipts(vaultAddr crypto.Address) ([]*GemDepositReceipt, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.state.ReceiptList(vaultAddr)
}

func mulUint64(a, b uint64) (uint64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	product := a * b
	if product/b != a {
		return 0, false
	}
	return product, true
}
