package core

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	coreerrors "gemfarm/core/errors"
	"gemfarm/core/events"
	"gemfarm/core/types"
	"gemfarm/crypto"
	"gemfarm/native/bank"
	nativecommon "gemfarm/native/common"
	"gemfarm/native/farm"
	"gemfarm/storage"
)

type recordingSink struct {
	mu      sync.Mutex
	records []types.EventRecord
	err     error
}

func (s *recordingSink) Append(_ context.Context, records []types.EventRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, records...)
	return s.err
}

func (s *recordingSink) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.records))
	for _, record := range s.records {
		out = append(out, record.Type)
	}
	return out
}

type ledgerFixture struct {
	t       *testing.T
	ledger  *Ledger
	sink    *recordingSink
	clock   time.Time
	farm    crypto.Address
	bank    crypto.Address
	manager crypto.Address
	funder  crypto.Address
	mintA   crypto.Address
	mintB   crypto.Address
	gem     crypto.Address
}

func newLedgerFixture(t *testing.T, opts ...Option) *ledgerFixture {
	t.Helper()
	f := &ledgerFixture{
		t:       t,
		sink:    &recordingSink{},
		clock:   time.Unix(1_700_000_000, 0),
		farm:    crypto.NameAddress("farm"),
		bank:    crypto.NameAddress("farm-bank"),
		manager: crypto.NameAddress("manager"),
		funder:  crypto.NameAddress("funder"),
		mintA:   crypto.NameAddress("reward-a"),
		mintB:   crypto.NameAddress("reward-b"),
		gem:     crypto.NameAddress("gem"),
	}
	opts = append([]Option{WithSink(f.sink), WithClock(func() time.Time { return f.clock })}, opts...)
	ledger, err := NewLedger(storage.NewMemDB(), opts...)
	require.NoError(t, err)
	f.ledger = ledger
	return f
}

func (f *ledgerFixture) advance(seconds int64) {
	f.clock = f.clock.Add(time.Duration(seconds) * time.Second)
}

func (f *ledgerFixture) initFarm(cfg farm.FarmConfig) {
	f.t.Helper()
	ctx := context.Background()
	_, err := Do(ctx, f.ledger, "farm.init", func(tx *Tx) (*farm.Farm, error) {
		return tx.Farm().InitFarm(f.farm, f.bank, f.manager, cfg, farm.MaxCounts{},
			farm.RewardSpec{Mint: f.mintA, Type: farm.RewardVariable},
			farm.RewardSpec{Mint: f.mintB, Type: farm.RewardVariable})
	})
	require.NoError(f.t, err)
	_, err = Do(ctx, f.ledger, "farm.authorizeFunder", func(tx *Tx) (*farm.AuthorizationProof, error) {
		return tx.Farm().AuthorizeFunder(f.farm, f.manager, f.funder)
	})
	require.NoError(f.t, err)
}

func (f *ledgerFixture) join(name string, gems uint64) crypto.Address {
	f.t.Helper()
	ctx := context.Background()
	identity := crypto.NameAddress(name)
	require.NoError(f.t, f.ledger.Mint(ctx, f.gem, identity, new(big.Int).SetUint64(gems)))
	err := f.ledger.Execute(ctx, "farm.initFarmer", func(tx *Tx) error {
		farmer, err := tx.Farm().InitFarmer(f.farm, identity)
		if err != nil {
			return err
		}
		_, err = tx.Bank().DepositGem(f.bank, farmer.Vault, identity, f.gem, gems, identity)
		return err
	})
	require.NoError(f.t, err)
	return identity
}

func (f *ledgerFixture) stake(identity crypto.Address) error {
	_, err := Do(context.Background(), f.ledger, "farm.stake", func(tx *Tx) (*farm.Farmer, error) {
		return tx.Farm().Stake(f.farm, identity)
	})
	return err
}

func (f *ledgerFixture) balance(mint, owner crypto.Address) int64 {
	f.t.Helper()
	amount, err := f.ledger.Balance(mint, owner)
	require.NoError(f.t, err)
	return amount.Int64()
}

func TestLedgerStakeFundClaimLifecycle(t *testing.T) {
	f := newLedgerFixture(t)
	f.initFarm(farm.FarmConfig{CooldownPeriodSec: 5, UnstakingFeeLamp: 2})
	ctx := context.Background()

	alice := f.join("alice", 4)
	require.NoError(t, f.stake(alice))

	require.NoError(t, f.ledger.Mint(ctx, f.mintA, f.funder, big.NewInt(1000)))
	_, err := Do(ctx, f.ledger, "farm.fund", func(tx *Tx) (*farm.Farm, error) {
		return tx.Farm().FundReward(f.farm, f.funder, farm.FundRequest{
			Mint:        f.mintA,
			Amount:      big.NewInt(1000),
			DurationSec: 10,
		})
	})
	require.NoError(t, err)
	require.Zero(t, f.balance(f.mintA, f.funder))

	f.advance(10)
	claim, err := Do(ctx, f.ledger, "farm.claim", func(tx *Tx) (*farm.ClaimResult, error) {
		return tx.Farm().Claim(f.farm, alice)
	})
	require.NoError(t, err)
	require.Equal(t, int64(1000), claim.AmountA.Int64())
	require.Equal(t, int64(1000), f.balance(f.mintA, alice))

	unstake := func() (*farm.Farmer, error) {
		return Do(ctx, f.ledger, "farm.unstake", func(tx *Tx) (*farm.Farmer, error) {
			return tx.Farm().Unstake(f.farm, alice)
		})
	}
	farmer, err := unstake()
	require.NoError(t, err)
	require.Equal(t, farm.FarmerPendingCooldown, farmer.State)

	require.NoError(t, f.ledger.Mint(ctx, farm.NativeMint, alice, big.NewInt(2)))
	f.advance(5)
	farmer, err = unstake()
	require.NoError(t, err)
	require.Equal(t, farm.FarmerUnstaked, farmer.State)
	require.Zero(t, f.balance(farm.NativeMint, alice))

	emitted := f.sink.types()
	require.Contains(t, emitted, events.TypeFarmerStaked)
	require.Contains(t, emitted, events.TypeRewardsClaimed)
	require.Contains(t, emitted, events.TypeFarmerUnstaked)
}

func TestLedgerRollsBackFailedOperation(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := f.ledger.Execute(ctx, "bank.init", func(tx *Tx) error {
		if _, err := tx.Bank().InitBank(f.bank, f.manager); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = Query(f.ledger, func(tx *Tx) (*bank.Bank, error) { return tx.Bank().Bank(f.bank) })
	require.ErrorIs(t, err, bank.ErrBankNotFound)
	require.Empty(t, f.sink.types())
	require.Zero(t, f.ledger.Stream().Sequence())
}

func TestLedgerRollsBackPartialTransfers(t *testing.T) {
	f := newLedgerFixture(t)
	f.initFarm(farm.FarmConfig{CooldownPeriodSec: 5, UnstakingFeeLamp: 2})
	alice := f.join("alice", 1)
	require.NoError(t, f.stake(alice))
	ctx := context.Background()

	// The fee cannot be paid, so the cooldown must not complete.
	_, err := Do(ctx, f.ledger, "farm.unstake", func(tx *Tx) (*farm.Farmer, error) {
		return tx.Farm().Unstake(f.farm, alice)
	})
	require.NoError(t, err)
	f.advance(5)
	before := len(f.sink.types())
	_, err = Do(ctx, f.ledger, "farm.unstake", func(tx *Tx) (*farm.Farmer, error) {
		return tx.Farm().Unstake(f.farm, alice)
	})
	require.Error(t, err)
	require.Equal(t, coreerrors.KindPrecondition, coreerrors.Classify(err))
	require.Len(t, f.sink.types(), before)

	farmer, err := Query(f.ledger, func(tx *Tx) (*farm.Farmer, error) { return tx.Farm().Farmer(f.farm, alice) })
	require.NoError(t, err)
	require.Equal(t, farm.FarmerPendingCooldown, farmer.State)
	vault, err := Query(f.ledger, func(tx *Tx) (*bank.Vault, error) { return tx.Bank().Vault(farmer.Vault) })
	require.NoError(t, err)
	require.True(t, vault.Locked)
}

func TestLedgerRecoversLockAfterPanic(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	require.Panics(t, func() {
		_ = f.ledger.Execute(ctx, "bank.init", func(tx *Tx) error {
			if _, err := tx.Bank().InitBank(f.bank, f.manager); err != nil {
				return err
			}
			panic("engine bug")
		})
	})

	_, err := Query(f.ledger, func(tx *Tx) (*bank.Bank, error) { return tx.Bank().Bank(f.bank) })
	require.ErrorIs(t, err, bank.ErrBankNotFound)
	require.Empty(t, f.sink.types())

	f.initFarm(farm.FarmConfig{})
	require.Contains(t, f.sink.types(), events.TypeFarmInitialized)
}

func TestLedgerStreamsCommittedEvents(t *testing.T) {
	f := newLedgerFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates, stop, backlog := f.ledger.Stream().Subscribe(ctx, "")
	defer stop()
	require.Empty(t, backlog)

	f.initFarm(farm.FarmConfig{})

	first := <-updates
	require.Equal(t, uint64(1), first.Sequence)
	require.Equal(t, "1", first.Cursor)
	require.Equal(t, "farm.init", first.Operation)
	require.NotEmpty(t, first.ID)
	require.Equal(t, f.clock.Unix(), first.Timestamp)

	_, _, backlog = f.ledger.Stream().Subscribe(ctx, first.Cursor)
	require.NotEmpty(t, backlog)
	for _, record := range backlog {
		require.Greater(t, record.Sequence, first.Sequence)
	}
}

func TestLedgerSinkFailureKeepsCommittedState(t *testing.T) {
	f := newLedgerFixture(t)
	f.sink.err = errors.New("unavailable")
	f.initFarm(farm.FarmConfig{})

	loaded, err := Query(f.ledger, func(tx *Tx) (*farm.Farm, error) { return tx.Farm().Farm(f.farm) })
	require.NoError(t, err)
	require.Equal(t, f.manager, loaded.Manager)
}

func TestLedgerHonoursPauses(t *testing.T) {
	pauses := nativecommon.NewPauseSet("farm")
	f := newLedgerFixture(t, WithPauses(pauses))

	_, err := Do(context.Background(), f.ledger, "farm.init", func(tx *Tx) (*farm.Farm, error) {
		return tx.Farm().InitFarm(f.farm, f.bank, f.manager, farm.FarmConfig{}, farm.MaxCounts{},
			farm.RewardSpec{Mint: f.mintA}, farm.RewardSpec{Mint: f.mintB})
	})
	require.ErrorIs(t, err, nativecommon.ErrModulePaused)
	require.True(t, coreerrors.Is(err, coreerrors.KindPaused))

	pauses.Set("farm", false)
	f.initFarm(farm.FarmConfig{})
}

func TestLedgerRejectsCancelledContext(t *testing.T) {
	f := newLedgerFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := f.ledger.Execute(ctx, "noop", func(tx *Tx) error { return nil })
	require.ErrorIs(t, err, context.Canceled)
}

func TestEventStreamTrimsHistory(t *testing.T) {
	stream := NewEventStream(2)
	records := []types.EventRecord{{Type: "a"}, {Type: "b"}, {Type: "c"}}
	stream.assign(records)
	stream.publish(records)

	_, stop, backlog := stream.Subscribe(context.Background(), "")
	defer stop()
	require.Len(t, backlog, 2)
	require.Equal(t, "b", backlog[0].Type)

	stream.Resume(10)
	next := []types.EventRecord{{Type: "d"}}
	stream.assign(next)
	require.Equal(t, uint64(11), next[0].Sequence)
}
