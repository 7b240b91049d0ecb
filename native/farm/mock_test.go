package farm

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"gemfarm/core/events"
	"gemfarm/crypto"
	"gemfarm/native/bank"
)

type pairKey struct {
	a crypto.Address
	b crypto.Address
}

// mockState backs both the farm engine and the bank engine it drives.
type mockState struct {
	farms    map[crypto.Address]*Farm
	farmers  map[pairKey]*Farmer
	funders  map[pairKey]*AuthorizationProof
	banks    map[crypto.Address]*bank.Bank
	vaults   map[crypto.Address]*bank.Vault
	receipts map[pairKey]*bank.GemDepositReceipt
	proofs   map[pairKey]*bank.WhitelistProof
	rarities map[pairKey]*bank.Rarity
	balances map[pairKey]*big.Int
}

func newMockState() *mockState {
	return &mockState{
		farms:    make(map[crypto.Address]*Farm),
		farmers:  make(map[pairKey]*Farmer),
		funders:  make(map[pairKey]*AuthorizationProof),
		banks:    make(map[crypto.Address]*bank.Bank),
		vaults:   make(map[crypto.Address]*bank.Vault),
		receipts: make(map[pairKey]*bank.GemDepositReceipt),
		proofs:   make(map[pairKey]*bank.WhitelistProof),
		rarities: make(map[pairKey]*bank.Rarity),
		balances: make(map[pairKey]*big.Int),
	}
}

func (m *mockState) FarmGet(addr crypto.Address) (*Farm, bool, error) {
	f, ok := m.farms[addr]
	return f.Clone(), ok, nil
}

func (m *mockState) FarmPut(f *Farm) error {
	m.farms[f.Address] = f.Clone()
	return nil
}

func (m *mockState) FarmerGet(farm, identity crypto.Address) (*Farmer, bool, error) {
	f, ok := m.farmers[pairKey{farm, identity}]
	return f.Clone(), ok, nil
}

func (m *mockState) FarmerPut(f *Farmer) error {
	m.farmers[pairKey{f.Farm, f.Identity}] = f.Clone()
	return nil
}

func (m *mockState) FunderGet(farm, funder crypto.Address) (*AuthorizationProof, bool, error) {
	p, ok := m.funders[pairKey{farm, funder}]
	if !ok {
		return nil, false, nil
	}
	clone := *p
	return &clone, true, nil
}

func (m *mockState) FunderPut(p *AuthorizationProof) error {
	clone := *p
	m.funders[pairKey{p.Farm, p.Funder}] = &clone
	return nil
}

func (m *mockState) FunderDelete(farm, funder crypto.Address) error {
	delete(m.funders, pairKey{farm, funder})
	return nil
}

func (m *mockState) BankGet(addr crypto.Address) (*bank.Bank, bool, error) {
	b, ok := m.banks[addr]
	return b.Clone(), ok, nil
}

func (m *mockState) BankPut(b *bank.Bank) error {
	m.banks[b.Address] = b.Clone()
	return nil
}

func (m *mockState) VaultGet(addr crypto.Address) (*bank.Vault, bool, error) {
	v, ok := m.vaults[addr]
	return v.Clone(), ok, nil
}

func (m *mockState) VaultPut(v *bank.Vault) error {
	m.vaults[v.Address] = v.Clone()
	return nil
}

func (m *mockState) ReceiptGet(vault, mint crypto.Address) (*bank.GemDepositReceipt, bool, error) {
	r, ok := m.receipts[pairKey{vault, mint}]
	return r.Clone(), ok, nil
}

func (m *mockState) ReceiptPut(r *bank.GemDepositReceipt) error {
	m.receipts[pairKey{r.Vault, r.GemMint}] = r.Clone()
	return nil
}

func (m *mockState) ReceiptDelete(vault, mint crypto.Address) error {
	delete(m.receipts, pairKey{vault, mint})
	return nil
}

func (m *mockState) ReceiptList(vault crypto.Address) ([]*bank.GemDepositReceipt, error) {
	var out []*bank.GemDepositReceipt
	for key, r := range m.receipts {
		if key.a == vault {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

func (m *mockState) WhitelistGet(bankAddr, addr crypto.Address) (*bank.WhitelistProof, bool, error) {
	p, ok := m.proofs[pairKey{bankAddr, addr}]
	return p.Clone(), ok, nil
}

func (m *mockState) WhitelistPut(p *bank.WhitelistProof) error {
	m.proofs[pairKey{p.Bank, p.Address}] = p.Clone()
	return nil
}

func (m *mockState) WhitelistDelete(bankAddr, addr crypto.Address) error {
	delete(m.proofs, pairKey{bankAddr, addr})
	return nil
}

func (m *mockState) RarityGet(bankAddr, mint crypto.Address) (*bank.Rarity, bool, error) {
	r, ok := m.rarities[pairKey{bankAddr, mint}]
	if !ok {
		return nil, false, nil
	}
	clone := *r
	return &clone, true, nil
}

func (m *mockState) RarityPut(r *bank.Rarity) error {
	clone := *r
	m.rarities[pairKey{r.Bank, r.Mint}] = &clone
	return nil
}

func (m *mockState) balance(mint, owner crypto.Address) *big.Int {
	if bal, ok := m.balances[pairKey{mint, owner}]; ok {
		return new(big.Int).Set(bal)
	}
	return big.NewInt(0)
}

func (m *mockState) credit(mint, owner crypto.Address, amount int64) {
	bal := m.balance(mint, owner)
	m.balances[pairKey{mint, owner}] = bal.Add(bal, big.NewInt(amount))
}

func (m *mockState) Transfer(mint, from, to crypto.Address, amount *big.Int) error {
	fromBal := m.balance(mint, from)
	if fromBal.Cmp(amount) < 0 {
		return errors.New("insufficient balance")
	}
	m.balances[pairKey{mint, from}] = fromBal.Sub(fromBal, amount)
	toBal := m.balance(mint, to)
	m.balances[pairKey{mint, to}] = toBal.Add(toBal, amount)
	return nil
}

type recordingEmitter struct {
	events []events.Event
}

func (r *recordingEmitter) Emit(evt events.Event) { r.events = append(r.events, evt) }

func (r *recordingEmitter) has(eventType string) bool {
	for _, evt := range r.events {
		if evt.EventType() == eventType {
			return true
		}
	}
	return false
}

type fixture struct {
	t       *testing.T
	engine  *Engine
	banks   *bank.Engine
	state   *mockState
	emitter *recordingEmitter
	clock   int64

	farm    crypto.Address
	bank    crypto.Address
	manager crypto.Address
	funder  crypto.Address
	mintA   crypto.Address
	mintB   crypto.Address
	gem     crypto.Address
}

func newFixture(t *testing.T, typeA, typeB RewardType, cfg FarmConfig, caps MaxCounts) *fixture {
	t.Helper()
	st := newMockState()
	emitter := &recordingEmitter{}
	banks := bank.NewEngine()
	banks.SetState(st)
	engine := NewEngine()
	engine.SetState(st)
	engine.SetBank(banks)
	engine.SetEmitter(emitter)

	f := &fixture{
		t:       t,
		engine:  engine,
		banks:   banks,
		state:   st,
		emitter: emitter,
		clock:   1_700_000_000,
		farm:    crypto.NameAddress("farm"),
		bank:    crypto.NameAddress("farm-bank"),
		manager: crypto.NameAddress("manager"),
		funder:  crypto.NameAddress("funder"),
		mintA:   crypto.NameAddress("reward-a"),
		mintB:   crypto.NameAddress("reward-b"),
		gem:     crypto.NameAddress("gem"),
	}
	engine.SetNowFunc(func() int64 { return f.clock })

	_, err := engine.InitFarm(f.farm, f.bank, f.manager, cfg, caps,
		RewardSpec{Mint: f.mintA, Type: typeA},
		RewardSpec{Mint: f.mintB, Type: typeB})
	require.NoError(t, err)
	_, err = engine.AuthorizeFunder(f.farm, f.manager, f.funder)
	require.NoError(t, err)
	return f
}

func (f *fixture) advance(seconds int64) { f.clock += seconds }

// join creates a farmer holding gems of mint deposited into its vault.
func (f *fixture) join(name string, mint crypto.Address, gems uint64) crypto.Address {
	f.t.Helper()
	identity := crypto.NameAddress(name)
	farmer, err := f.engine.InitFarmer(f.farm, identity)
	require.NoError(f.t, err)
	f.state.credit(mint, identity, int64(gems))
	_, err = f.banks.DepositGem(f.bank, farmer.Vault, identity, mint, gems, identity)
	require.NoError(f.t, err)
	return identity
}

func (f *fixture) fund(mint crypto.Address, amount int64, duration uint64, schedule *FixedRateSchedule) {
	f.t.Helper()
	f.state.credit(mint, f.funder, amount)
	_, err := f.engine.FundReward(f.farm, f.funder, FundRequest{
		Mint:        mint,
		Amount:      big.NewInt(amount),
		DurationSec: duration,
		Schedule:    schedule,
	})
	require.NoError(f.t, err)
}

func (f *fixture) refresh(identity crypto.Address) *Farmer {
	f.t.Helper()
	farmer, err := f.engine.RefreshFarmer(f.farm, identity)
	require.NoError(f.t, err)
	return farmer
}

func (f *fixture) loadFarm() *Farm {
	f.t.Helper()
	farm, err := f.engine.Farm(f.farm)
	require.NoError(f.t, err)
	return farm
}
