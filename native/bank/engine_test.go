package bank

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"gemfarm/core/events"
	"gemfarm/crypto"
)

type balanceKey struct {
	mint  crypto.Address
	owner crypto.Address
}

type receiptKey struct {
	vault crypto.Address
	mint  crypto.Address
}

type mockState struct {
	banks    map[crypto.Address]*Bank
	vaults   map[crypto.Address]*Vault
	receipts map[receiptKey]*GemDepositReceipt
	proofs   map[receiptKey]*WhitelistProof
	rarities map[receiptKey]*Rarity
	balances map[balanceKey]*big.Int
	creators map[crypto.Address][]Creator
}

func newMockState() *mockState {
	return &mockState{
		banks:    make(map[crypto.Address]*Bank),
		vaults:   make(map[crypto.Address]*Vault),
		receipts: make(map[receiptKey]*GemDepositReceipt),
		proofs:   make(map[receiptKey]*WhitelistProof),
		rarities: make(map[receiptKey]*Rarity),
		balances: make(map[balanceKey]*big.Int),
		creators: make(map[crypto.Address][]Creator),
	}
}

func (m *mockState) BankGet(addr crypto.Address) (*Bank, bool, error) {
	b, ok := m.banks[addr]
	return b.Clone(), ok, nil
}

func (m *mockState) BankPut(b *Bank) error {
	m.banks[b.Address] = b.Clone()
	return nil
}

func (m *mockState) VaultGet(addr crypto.Address) (*Vault, bool, error) {
	v, ok := m.vaults[addr]
	return v.Clone(), ok, nil
}

func (m *mockState) VaultPut(v *Vault) error {
	m.vaults[v.Address] = v.Clone()
	return nil
}

func (m *mockState) ReceiptGet(vault, mint crypto.Address) (*GemDepositReceipt, bool, error) {
	r, ok := m.receipts[receiptKey{vault, mint}]
	return r.Clone(), ok, nil
}

func (m *mockState) ReceiptPut(r *GemDepositReceipt) error {
	m.receipts[receiptKey{r.Vault, r.GemMint}] = r.Clone()
	return nil
}

func (m *mockState) ReceiptDelete(vault, mint crypto.Address) error {
	delete(m.receipts, receiptKey{vault, mint})
	return nil
}

func (m *mockState) ReceiptList(vault crypto.Address) ([]*GemDepositReceipt, error) {
	var out []*GemDepositReceipt
	for key, r := range m.receipts {
		if key.vault == vault {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

func (m *mockState) WhitelistGet(bank, addr crypto.Address) (*WhitelistProof, bool, error) {
	p, ok := m.proofs[receiptKey{bank, addr}]
	return p.Clone(), ok, nil
}

func (m *mockState) WhitelistPut(p *WhitelistProof) error {
	m.proofs[receiptKey{p.Bank, p.Address}] = p.Clone()
	return nil
}

func (m *mockState) WhitelistDelete(bank, addr crypto.Address) error {
	delete(m.proofs, receiptKey{bank, addr})
	return nil
}

func (m *mockState) RarityGet(bank, mint crypto.Address) (*Rarity, bool, error) {
	r, ok := m.rarities[receiptKey{bank, mint}]
	if !ok {
		return nil, false, nil
	}
	clone := *r
	return &clone, true, nil
}

func (m *mockState) RarityPut(r *Rarity) error {
	clone := *r
	m.rarities[receiptKey{r.Bank, r.Mint}] = &clone
	return nil
}

func (m *mockState) balance(mint, owner crypto.Address) *big.Int {
	if bal, ok := m.balances[balanceKey{mint, owner}]; ok {
		return new(big.Int).Set(bal)
	}
	return big.NewInt(0)
}

func (m *mockState) Transfer(mint, from, to crypto.Address, amount *big.Int) error {
	fromBal := m.balance(mint, from)
	if fromBal.Cmp(amount) < 0 {
		return errors.New("insufficient balance")
	}
	m.balances[balanceKey{mint, from}] = fromBal.Sub(fromBal, amount)
	toBal := m.balance(mint, to)
	m.balances[balanceKey{mint, to}] = toBal.Add(toBal, amount)
	return nil
}

func (m *mockState) VerifiedCreators(mint crypto.Address) ([]Creator, error) {
	return m.creators[mint], nil
}

type recordingEmitter struct {
	events []events.Event
}

func (r *recordingEmitter) Emit(evt events.Event) { r.events = append(r.events, evt) }

func (r *recordingEmitter) types() []string {
	out := make([]string, 0, len(r.events))
	for _, evt := range r.events {
		out = append(out, evt.EventType())
	}
	return out
}

type fixture struct {
	engine  *Engine
	state   *mockState
	emitter *recordingEmitter
	bank    crypto.Address
	manager crypto.Address
	owner   crypto.Address
	vault   crypto.Address
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := newMockState()
	emitter := &recordingEmitter{}
	engine := NewEngine()
	engine.SetState(st)
	engine.SetMetadataOracle(st)
	engine.SetEmitter(emitter)

	f := &fixture{
		engine:  engine,
		state:   st,
		emitter: emitter,
		bank:    crypto.NameAddress("bank"),
		manager: crypto.NameAddress("manager"),
		owner:   crypto.NameAddress("owner"),
	}
	_, err := engine.InitBank(f.bank, f.manager)
	require.NoError(t, err)
	vault, err := engine.InitVault(f.bank, f.owner, f.owner, "main")
	require.NoError(t, err)
	f.vault = vault.Address
	return f
}

func (f *fixture) fund(mint crypto.Address, amount int64) {
	f.state.balances[balanceKey{mint, f.owner}] = big.NewInt(amount)
}

func (f *fixture) deposit(mint crypto.Address, amount uint64) (*Vault, error) {
	return f.engine.DepositGem(f.bank, f.vault, f.owner, mint, amount, f.owner)
}

func TestInitBankAndVault(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.InitBank(f.bank, f.manager)
	require.ErrorIs(t, err, ErrBankExists)
	_, err = f.engine.InitVault(f.bank, f.owner, f.owner, "again")
	require.ErrorIs(t, err, ErrVaultExists)

	b, err := f.engine.Bank(f.bank)
	require.NoError(t, err)
	require.EqualValues(t, 1, b.VaultCount)

	v, err := f.engine.Vault(f.vault)
	require.NoError(t, err)
	require.Equal(t, VaultAddress(f.bank, f.owner), v.Address)
	require.Equal(t, VaultAuthority(v.Address), v.Authority)
	require.Equal(t, "main", v.Name)
	require.Equal(t, []string{events.TypeBankInitialized, events.TypeVaultInitialized}, f.emitter.types())
}

func TestDepositAndWithdrawLifecycle(t *testing.T) {
	f := newFixture(t)
	mint := crypto.NameAddress("gem-a")
	f.fund(mint, 10)

	v, err := f.deposit(mint, 4)
	require.NoError(t, err)
	require.EqualValues(t, 1, v.GemBoxCount)
	require.EqualValues(t, 4, v.GemCount)
	require.EqualValues(t, 4, v.RarityPoints)

	v, err = f.deposit(mint, 2)
	require.NoError(t, err)
	require.EqualValues(t, 1, v.GemBoxCount)
	require.EqualValues(t, 6, v.GemCount)

	box := GemBoxAddress(f.vault, mint)
	require.EqualValues(t, 6, f.state.balance(mint, box).Int64())
	require.EqualValues(t, 4, f.state.balance(mint, f.owner).Int64())

	_, err = f.engine.WithdrawGem(f.bank, f.vault, f.owner, mint, 7, f.owner)
	require.ErrorIs(t, err, ErrInsufficientGems)

	v, err = f.engine.WithdrawGem(f.bank, f.vault, f.owner, mint, 6, f.owner)
	require.NoError(t, err)
	require.Zero(t, v.GemBoxCount)
	require.Zero(t, v.GemCount)
	require.Zero(t, v.RarityPoints)

	receipts, err := f.engine.Receipts(f.vault)
	require.NoError(t, err)
	require.Empty(t, receipts)

	_, err = f.engine.WithdrawGem(f.bank, f.vault, f.owner, mint, 1, f.owner)
	require.ErrorIs(t, err, ErrReceiptNotFound)
}

func TestDepositRequiresOwner(t *testing.T) {
	f := newFixture(t)
	mint := crypto.NameAddress("gem-a")
	f.fund(mint, 1)

	_, err := f.engine.DepositGem(f.bank, f.vault, crypto.NameAddress("stranger"), mint, 1, f.owner)
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.deposit(mint, 0)
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestDepositRejectsForeignSource(t *testing.T) {
	f := newFixture(t)
	mint := crypto.NameAddress("gem-a")
	victim := crypto.NameAddress("victim")
	f.state.balances[balanceKey{mint, victim}] = big.NewInt(10)

	_, err := f.engine.DepositGem(f.bank, f.vault, f.owner, mint, 10, victim)
	require.ErrorIs(t, err, ErrUnauthorized)
	require.EqualValues(t, 10, f.state.balance(mint, victim).Int64())

	v, err := f.engine.Vault(f.vault)
	require.NoError(t, err)
	require.Zero(t, v.GemCount)
}

func TestRarityPointsScaleDeposits(t *testing.T) {
	f := newFixture(t)
	common := crypto.NameAddress("common")
	rare := crypto.NameAddress("rare")
	f.fund(common, 5)
	f.fund(rare, 5)

	require.ErrorIs(t, f.engine.RecordRarityPoints(f.bank, f.owner, nil), ErrUnauthorized)
	require.NoError(t, f.engine.RecordRarityPoints(f.bank, f.manager, []RarityConfig{{Mint: rare, Points: 15}}))

	_, err := f.deposit(common, 3)
	require.NoError(t, err)
	v, err := f.deposit(rare, 2)
	require.NoError(t, err)
	require.EqualValues(t, 5, v.GemCount)
	require.EqualValues(t, 3+2*15, v.RarityPoints)

	v, err = f.engine.WithdrawGem(f.bank, f.vault, f.owner, rare, 1, f.owner)
	require.NoError(t, err)
	require.EqualValues(t, 3+15, v.RarityPoints)
}

func TestRarityChangeDoesNotUnderflowWithdrawal(t *testing.T) {
	f := newFixture(t)
	mint := crypto.NameAddress("gem")
	f.fund(mint, 2)

	_, err := f.deposit(mint, 2)
	require.NoError(t, err)
	require.NoError(t, f.engine.RecordRarityPoints(f.bank, f.manager, []RarityConfig{{Mint: mint, Points: 10}}))

	v, err := f.engine.WithdrawGem(f.bank, f.vault, f.owner, mint, 2, f.owner)
	require.NoError(t, err)
	require.Zero(t, v.RarityPoints)
}

func TestVaultAccessDenied(t *testing.T) {
	f := newFixture(t)
	mint := crypto.NameAddress("gem-a")
	f.fund(mint, 10)
	_, err := f.deposit(mint, 5)
	require.NoError(t, err)

	_, err = f.engine.SetVaultLock(f.bank, f.vault, f.owner, true)
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.engine.SetVaultLock(f.bank, f.vault, f.manager, true)
	require.NoError(t, err)
	_, err = f.deposit(mint, 1)
	require.ErrorIs(t, err, ErrVaultAccessDenied)
	require.ErrorIs(t, err, ErrVaultLocked)
	_, err = f.engine.WithdrawGem(f.bank, f.vault, f.owner, mint, 1, f.owner)
	require.ErrorIs(t, err, ErrVaultLocked)

	_, err = f.engine.SetVaultLock(f.bank, f.vault, f.manager, false)
	require.NoError(t, err)
	_, err = f.engine.SetBankFlags(f.bank, f.manager, FlagFreezeVaults)
	require.NoError(t, err)
	_, err = f.deposit(mint, 1)
	require.ErrorIs(t, err, ErrBankFrozen)
	_, err = f.engine.WithdrawGem(f.bank, f.vault, f.owner, mint, 1, f.owner)
	require.ErrorIs(t, err, ErrVaultAccessDenied)

	_, err = f.engine.SetBankFlags(f.bank, f.manager, 0)
	require.NoError(t, err)
	_, err = f.engine.WithdrawGem(f.bank, f.vault, f.owner, mint, 5, f.owner)
	require.NoError(t, err)

	_, err = f.engine.SetBankFlags(f.bank, f.manager, BankFlags(1<<7))
	require.ErrorIs(t, err, ErrInvalidFlags)
}

func TestFailedDepositLeavesStateUntouched(t *testing.T) {
	f := newFixture(t)
	mint := crypto.NameAddress("gem-a")
	f.fund(mint, 1)

	_, err := f.deposit(mint, 2)
	require.Error(t, err)
	v, err := f.engine.Vault(f.vault)
	require.NoError(t, err)
	require.Zero(t, v.GemCount)
	require.Zero(t, v.GemBoxCount)
	require.EqualValues(t, 1, f.state.balance(mint, f.owner).Int64())
}

func TestUpdateVaultOwner(t *testing.T) {
	f := newFixture(t)
	next := crypto.NameAddress("next")

	_, err := f.engine.UpdateVaultOwner(f.bank, f.vault, next, next)
	require.ErrorIs(t, err, ErrUnauthorized)

	v, err := f.engine.UpdateVaultOwner(f.bank, f.vault, f.owner, next)
	require.NoError(t, err)
	require.Equal(t, next, v.Owner)
	require.Equal(t, f.owner, v.Creator)

	mint := crypto.NameAddress("gem")
	f.fund(mint, 1)
	_, err = f.deposit(mint, 1)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestUpdateBankManager(t *testing.T) {
	f := newFixture(t)
	next := crypto.NameAddress("next-manager")

	_, err := f.engine.UpdateBankManager(f.bank, next, next)
	require.ErrorIs(t, err, ErrUnauthorized)
	b, err := f.engine.UpdateBankManager(f.bank, f.manager, next)
	require.NoError(t, err)
	require.Equal(t, next, b.Manager)
	_, err = f.engine.SetBankFlags(f.bank, f.manager, FlagFreezeVaults)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestVaultMustBelongToBank(t *testing.T) {
	f := newFixture(t)
	other := crypto.NameAddress("other-bank")
	_, err := f.engine.InitBank(other, f.manager)
	require.NoError(t, err)

	_, err = f.engine.SetVaultLock(other, f.vault, f.manager, true)
	require.ErrorIs(t, err, ErrVaultBankMismatch)
}
