package farm

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"gemfarm/core/events"
)

func newVariableFixture(t *testing.T) *fixture {
	return newFixture(t, RewardVariable, RewardVariable, FarmConfig{}, MaxCounts{})
}

func TestVariableRateAccruesLinearly(t *testing.T) {
	f := newVariableFixture(t)
	alice := f.join("alice", f.gem, 1)
	_, err := f.engine.Stake(f.farm, alice)
	require.NoError(t, err)

	f.fund(f.mintA, 1000, 10, nil)
	require.Equal(t, int64(100), f.loadFarm().RewardA.Variable.RewardRate.Int64())

	f.advance(1)
	farmer := f.refresh(alice)
	require.Equal(t, int64(100), farmer.RewardA.AccruedReward.Int64())

	f.advance(4)
	farmer = f.refresh(alice)
	require.Equal(t, int64(500), farmer.RewardA.AccruedReward.Int64())
	require.Zero(t, farmer.RewardB.AccruedReward.Sign())
}

func TestVariableRateSplitsByRarityPoints(t *testing.T) {
	f := newVariableFixture(t)
	alice := f.join("alice", f.gem, 1)
	bob := f.join("bob", f.gem, 3)
	_, err := f.engine.Stake(f.farm, alice)
	require.NoError(t, err)
	_, err = f.engine.Stake(f.farm, bob)
	require.NoError(t, err)

	f.fund(f.mintA, 1000, 10, nil)
	f.advance(10)
	require.Equal(t, int64(250), f.refresh(alice).RewardA.AccruedReward.Int64())
	require.Equal(t, int64(750), f.refresh(bob).RewardA.AccruedReward.Int64())

	f.advance(10)
	require.Equal(t, int64(250), f.refresh(alice).RewardA.AccruedReward.Int64(), "no accrual after the window ends")
}

func TestVariableRateConservesFunds(t *testing.T) {
	f := newVariableFixture(t)
	alice := f.join("alice", f.gem, 3)
	bob := f.join("bob", f.gem, 7)
	_, err := f.engine.Stake(f.farm, alice)
	require.NoError(t, err)

	f.fund(f.mintA, 999, 7, nil)
	f.advance(2)
	_, err = f.engine.Stake(f.farm, bob)
	require.NoError(t, err)
	f.advance(3)
	_, err = f.engine.Claim(f.farm, alice)
	require.NoError(t, err)
	f.advance(5)

	claimedA, err := f.engine.Claim(f.farm, alice)
	require.NoError(t, err)
	claimedB, err := f.engine.Claim(f.farm, bob)
	require.NoError(t, err)

	farm := f.loadFarm()
	pool := farm.RewardA
	paid := new(big.Int).Add(f.state.balance(f.mintA, alice), f.state.balance(f.mintA, bob))
	require.LessOrEqual(t, paid.Cmp(pool.Funds.TotalAccruedToStakers), 0)
	require.LessOrEqual(t, pool.Funds.TotalAccruedToStakers.Cmp(pool.Funds.TotalFunded), 0)

	pot := f.state.balance(f.mintA, pool.Pot)
	require.Equal(t, new(big.Int).Sub(big.NewInt(999), paid).String(), pot.String())
	require.Positive(t, claimedA.AmountA.Sign())
	require.Positive(t, claimedB.AmountA.Sign())
}

func TestClaimDoesNotPayTwice(t *testing.T) {
	f := newVariableFixture(t)
	alice := f.join("alice", f.gem, 1)
	_, err := f.engine.Stake(f.farm, alice)
	require.NoError(t, err)
	f.fund(f.mintA, 100, 10, nil)
	f.advance(3)

	first, err := f.engine.Claim(f.farm, alice)
	require.NoError(t, err)
	require.Equal(t, int64(30), first.AmountA.Int64())

	second, err := f.engine.Claim(f.farm, alice)
	require.NoError(t, err)
	require.Zero(t, second.AmountA.Sign())
	require.Equal(t, int64(30), f.state.balance(f.mintA, alice).Int64())
	require.True(t, f.emitter.has(events.TypeRewardsClaimed))
}

func TestFundThenCancelRefundsEverything(t *testing.T) {
	f := newVariableFixture(t)
	f.fund(f.mintA, 1000, 100, nil)
	f.advance(10)

	refund, err := f.engine.CancelReward(f.farm, f.funder, f.mintA)
	require.NoError(t, err)
	require.Equal(t, int64(1000), refund.Int64(), "nothing was staked so nothing accrued")
	require.Equal(t, int64(1000), f.state.balance(f.mintA, f.funder).Int64())

	pool := f.loadFarm().RewardA
	require.Zero(t, pool.Variable.RewardRate.Sign())
	require.Equal(t, f.clock, pool.Times.RewardEndTs)
}

func TestCancelKeepsAccruedRewardsClaimable(t *testing.T) {
	f := newVariableFixture(t)
	alice := f.join("alice", f.gem, 1)
	_, err := f.engine.Stake(f.farm, alice)
	require.NoError(t, err)
	f.fund(f.mintA, 1000, 10, nil)
	f.advance(4)

	refund, err := f.engine.CancelReward(f.farm, f.funder, f.mintA)
	require.NoError(t, err)
	require.Equal(t, int64(600), refund.Int64())

	f.advance(5)
	claimed, err := f.engine.Claim(f.farm, alice)
	require.NoError(t, err)
	require.Equal(t, int64(400), claimed.AmountA.Int64())
}

func TestFundingMergesRemainingObligation(t *testing.T) {
	f := newVariableFixture(t)
	alice := f.join("alice", f.gem, 1)
	_, err := f.engine.Stake(f.farm, alice)
	require.NoError(t, err)

	f.fund(f.mintA, 1000, 10, nil)
	f.advance(5)
	f.fund(f.mintA, 500, 10, nil)

	pool := f.loadFarm().RewardA
	require.Equal(t, int64(100), pool.Variable.RewardRate.Int64())
	require.Equal(t, f.clock+10, pool.Times.RewardEndTs)

	f.advance(10)
	require.Equal(t, int64(1500), f.refresh(alice).RewardA.AccruedReward.Int64())
}

func TestAccumulatorNeverDecreases(t *testing.T) {
	f := newVariableFixture(t)
	alice := f.join("alice", f.gem, 2)
	_, err := f.engine.Stake(f.farm, alice)
	require.NoError(t, err)
	f.fund(f.mintA, 777, 9, nil)

	last := big.NewInt(0)
	for i := 0; i < 12; i++ {
		f.advance(1)
		f.refresh(alice)
		acc := f.loadFarm().RewardA.Variable.AccruedRewardPerRarityPoint
		require.GreaterOrEqual(t, acc.Cmp(last), 0)
		last = acc
	}
}

func TestIdlePoolTimeStaysRefundable(t *testing.T) {
	f := newVariableFixture(t)
	f.fund(f.mintA, 1000, 10, nil)
	f.advance(5)

	alice := f.join("alice", f.gem, 1)
	_, err := f.engine.Stake(f.farm, alice)
	require.NoError(t, err)
	f.advance(5)

	require.Equal(t, int64(500), f.refresh(alice).RewardA.AccruedReward.Int64())
	refund, err := f.engine.CancelReward(f.farm, f.funder, f.mintA)
	require.NoError(t, err)
	require.Equal(t, int64(500), refund.Int64())
}
