package staking

import (
	"math/rand"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tipLedger/internal/fixedpoint"
	"tipLedger/internal/journal"
	"tipLedger/internal/model"
	"tipLedger/internal/token"
)

var (
	tokenAddr    = common.HexToAddress("0x0000000000000000000000000000000000000100")
	poolAddr     = common.HexToAddress("0x0000000000000000000000000000000000000200")
	routerAddr   = common.HexToAddress("0x0000000000000000000000000000000000000300")
	treasuryAddr = common.HexToAddress("0x0000000000000000000000000000000000000400")
	alice        = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob          = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	carol        = common.HexToAddress("0x00000000000000000000000000000000000000c3")
)

type fixture struct {
	journal *journal.Journal
	token   *token.Ledger
	pool    *Pool
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	j := journal.New()
	tok := token.New(tokenAddr, j)
	pool := New(Config{Address: poolAddr, Router: routerAddr, Treasury: treasuryAddr}, tok, j, zap.NewNop())

	for _, holder := range []common.Address{alice, bob, carol} {
		require.NoError(t, tok.Mint(holder, fixedpoint.Ether(100000)))
	}
	require.NoError(t, tok.Mint(routerAddr, fixedpoint.Ether(100000)))
	j.Commit()

	return &fixture{journal: j, token: tok, pool: pool}
}

func (f *fixture) stake(t *testing.T, who common.Address, amount *uint256.Int) {
	t.Helper()
	require.NoError(t, f.token.Approve(who, poolAddr, amount))
	require.NoError(t, f.pool.Deposit(who, amount))
}

func (f *fixture) reward(t *testing.T, amount *uint256.Int) {
	t.Helper()
	require.NoError(t, f.token.Transfer(routerAddr, poolAddr, amount))
	require.NoError(t, f.pool.ReceiveReward(routerAddr, amount))
}

func (f *fixture) assertConserved(t *testing.T) {
	t.Helper()
	_, accounts := f.pool.State()
	sum := fixedpoint.Zero()
	for _, account := range accounts {
		sum = new(uint256.Int).Add(sum, fixedpoint.MustParse(account.Amount))
	}
	assert.Equal(t, f.pool.TotalStake().Dec(), sum.Dec(), "total stake must equal the sum of account stakes")
}

func TestDepositTracksTotalStake(t *testing.T) {
	f := newFixture(t)

	stakes := map[common.Address]*uint256.Int{
		alice: fixedpoint.Ether(10000),
		bob:   fixedpoint.Ether(25000),
		carol: fixedpoint.Ether(50000),
	}
	for who, amount := range stakes {
		f.stake(t, who, amount)
	}

	require.Equal(t, fixedpoint.Ether(85000).Dec(), f.pool.TotalStake().Dec())
	for who, amount := range stakes {
		assert.Equal(t, amount.Dec(), f.pool.UserInfo(who).Amount.Dec())
		spent := new(uint256.Int).Sub(fixedpoint.Ether(100000), f.token.BalanceOf(who))
		assert.Equal(t, amount.Dec(), spent.Dec())
	}
	assert.Equal(t, fixedpoint.Ether(85000).Dec(), f.token.BalanceOf(poolAddr).Dec())
	f.assertConserved(t)
}

func TestDepositWithdrawRoundTrip(t *testing.T) {
	f := newFixture(t)
	before := f.token.BalanceOf(alice)

	f.stake(t, alice, fixedpoint.Ether(10000))
	require.NoError(t, f.pool.Withdraw(alice, fixedpoint.Ether(10000)))

	assert.Equal(t, before.Dec(), f.token.BalanceOf(alice).Dec())
	assert.True(t, f.pool.UserInfo(alice).Amount.IsZero())
	assert.True(t, f.pool.TotalStake().IsZero())
	f.assertConserved(t)
}

func TestRewardSplitProportionally(t *testing.T) {
	f := newFixture(t)
	f.stake(t, alice, uint256.NewInt(1000))
	f.stake(t, bob, uint256.NewInt(2000))

	f.reward(t, uint256.NewInt(450))

	assert.Equal(t, uint64(150), f.pool.AvailableReward(alice).Uint64())
	assert.Equal(t, uint64(300), f.pool.AvailableReward(bob).Uint64())
	assert.Equal(t, uint64(150_000_000_000), f.pool.AccRewardPerShare().Uint64())
}

func TestRewardSplitProportionallyEtherUnits(t *testing.T) {
	f := newFixture(t)
	f.stake(t, alice, fixedpoint.Ether(1000))
	f.stake(t, bob, fixedpoint.Ether(2000))

	f.reward(t, fixedpoint.Ether(450))

	assert.Equal(t, fixedpoint.Ether(150).Dec(), f.pool.AvailableReward(alice).Dec())
	assert.Equal(t, fixedpoint.Ether(300).Dec(), f.pool.AvailableReward(bob).Dec())
}

func TestProportionalityWithinOneUnit(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		f := newFixture(t)
		sA := uint256.NewInt(uint64(rng.Int63n(1_000_000) + 1))
		sB := uint256.NewInt(uint64(rng.Int63n(1_000_000) + 1))
		reward := uint256.NewInt(uint64(rng.Int63n(10_000_000) + 1))

		f.stake(t, alice, sA)
		f.stake(t, bob, sB)
		f.reward(t, reward)

		rA := f.pool.AvailableReward(alice)
		rB := f.pool.AvailableReward(bob)

		// rA/sA == rB/sB up to one unit of rounding per staker.
		lhs := new(uint256.Int).Mul(rA, sB)
		rhs := new(uint256.Int).Mul(rB, sA)
		var diff *uint256.Int
		if lhs.Gt(rhs) {
			diff = new(uint256.Int).Sub(lhs, rhs)
		} else {
			diff = new(uint256.Int).Sub(rhs, lhs)
		}
		bound := new(uint256.Int).Add(sA, sB)
		require.False(t, diff.Gt(bound), "stakes %s/%s reward %s gave %s/%s", sA.Dec(), sB.Dec(), reward.Dec(), rA.Dec(), rB.Dec())

		paid := new(uint256.Int).Add(rA, rB)
		require.False(t, paid.Gt(reward), "distributed more than injected")
	}
}

func TestInterleavedStakersOnlyEarnWhileStaked(t *testing.T) {
	f := newFixture(t)

	f.stake(t, alice, uint256.NewInt(100))
	f.reward(t, uint256.NewInt(100))
	require.Equal(t, uint64(100), f.pool.AvailableReward(alice).Uint64())

	f.stake(t, bob, uint256.NewInt(100))
	require.True(t, f.pool.AvailableReward(bob).IsZero())

	f.reward(t, uint256.NewInt(100))
	require.Equal(t, uint64(150), f.pool.AvailableReward(alice).Uint64())
	require.Equal(t, uint64(50), f.pool.AvailableReward(bob).Uint64())

	before := f.token.BalanceOf(alice)
	f.stake(t, alice, uint256.NewInt(100))
	after := f.token.BalanceOf(alice)

	// deposit pays the pending 150 and pulls 100
	require.Equal(t, new(uint256.Int).Add(before, uint256.NewInt(50)).Dec(), after.Dec())
	require.True(t, f.pool.AvailableReward(alice).IsZero())
	require.Equal(t, uint64(200), f.pool.UserInfo(alice).Amount.Uint64())

	f.reward(t, uint256.NewInt(300))
	require.Equal(t, uint64(200), f.pool.AvailableReward(alice).Uint64())
	require.Equal(t, uint64(150), f.pool.AvailableReward(bob).Uint64())
	f.assertConserved(t)
}

func TestWithdrawSettlesReward(t *testing.T) {
	f := newFixture(t)
	f.stake(t, alice, uint256.NewInt(1000))
	f.reward(t, uint256.NewInt(40))

	before := f.token.BalanceOf(alice)
	require.NoError(t, f.pool.Withdraw(alice, uint256.NewInt(400)))

	require.Equal(t, new(uint256.Int).Add(before, uint256.NewInt(440)).Dec(), f.token.BalanceOf(alice).Dec())
	require.True(t, f.pool.AvailableReward(alice).IsZero())
	info := f.pool.UserInfo(alice)
	require.Equal(t, uint64(600), info.Amount.Uint64())
	require.Equal(t, uint64(24), info.RewardDebt.Uint64())
}

func TestClaim(t *testing.T) {
	f := newFixture(t)

	paid, err := f.pool.Claim(alice)
	require.NoError(t, err)
	require.True(t, paid.IsZero())

	f.stake(t, alice, uint256.NewInt(500))
	f.reward(t, uint256.NewInt(25))

	before := f.token.BalanceOf(alice)
	paid, err = f.pool.Claim(alice)
	require.NoError(t, err)
	require.Equal(t, uint64(25), paid.Uint64())
	require.Equal(t, new(uint256.Int).Add(before, paid).Dec(), f.token.BalanceOf(alice).Dec())
	require.True(t, f.pool.AvailableReward(alice).IsZero())
	require.Equal(t, uint64(500), f.pool.UserInfo(alice).Amount.Uint64())
}

func TestAvailableRewardIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.stake(t, alice, uint256.NewInt(3))
	f.reward(t, uint256.NewInt(10))

	pending := f.journal.Len()
	first := f.pool.AvailableReward(alice)
	for i := 0; i < 5; i++ {
		require.Equal(t, first.Dec(), f.pool.AvailableReward(alice).Dec())
	}
	require.Equal(t, uint64(9), first.Uint64())
	require.Equal(t, pending, f.journal.Len(), "views must not journal mutations")
}

func TestZeroStakerRewardGoesToTreasury(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.token.Transfer(routerAddr, poolAddr, uint256.NewInt(450)))
	require.NoError(t, f.pool.ReceiveReward(routerAddr, uint256.NewInt(450)))

	assert.Equal(t, uint64(450), f.token.BalanceOf(treasuryAddr).Uint64())
	assert.True(t, f.token.BalanceOf(poolAddr).IsZero())
	assert.True(t, f.pool.AccRewardPerShare().IsZero())

	// A later staker does not inherit rewards injected before they staked.
	f.stake(t, alice, uint256.NewInt(100))
	assert.True(t, f.pool.AvailableReward(alice).IsZero())
}

func TestZeroRewardIsNoop(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.pool.ReceiveReward(routerAddr, fixedpoint.Zero()))
	require.Empty(t, f.journal.Logs())
}

func TestReceiveRewardRequiresRouter(t *testing.T) {
	f := newFixture(t)
	f.stake(t, alice, uint256.NewInt(100))

	err := f.pool.ReceiveReward(alice, uint256.NewInt(10))
	require.ErrorIs(t, err, model.ErrUnauthorized)
	require.NotErrorIs(t, err, model.ErrInvalidRateConfiguration)
	require.True(t, f.pool.AccRewardPerShare().IsZero())
}

func TestDustStaysInPool(t *testing.T) {
	f := newFixture(t)
	for _, who := range []common.Address{alice, bob, carol} {
		f.stake(t, who, uint256.NewInt(1))
	}
	f.reward(t, uint256.NewInt(1))

	for _, who := range []common.Address{alice, bob, carol} {
		require.True(t, f.pool.AvailableReward(who).IsZero())
	}
	require.Equal(t, uint64(4), f.token.BalanceOf(poolAddr).Uint64())
	require.Equal(t, uint64(333_333_333_333), f.pool.AccRewardPerShare().Uint64())
}

func TestFailuresLeaveStateUnchanged(t *testing.T) {
	f := newFixture(t)
	f.stake(t, alice, uint256.NewInt(100))
	f.journal.Commit()

	err := f.pool.Deposit(bob, fixedpoint.Zero())
	require.ErrorIs(t, err, model.ErrInvalidAmount)

	err = f.pool.Deposit(bob, uint256.NewInt(10))
	require.ErrorIs(t, err, model.ErrInsufficientBalance)
	_, accounts := f.pool.State()
	require.Len(t, accounts, 1, "failed deposit must not create an account")

	err = f.pool.Withdraw(alice, uint256.NewInt(101))
	require.ErrorIs(t, err, model.ErrInsufficientStake)
	err = f.pool.Withdraw(alice, fixedpoint.Zero())
	require.ErrorIs(t, err, model.ErrInsufficientStake)
	err = f.pool.Withdraw(carol, uint256.NewInt(1))
	require.ErrorIs(t, err, model.ErrInsufficientStake)

	require.Equal(t, uint64(100), f.pool.TotalStake().Uint64())
	require.Empty(t, f.journal.Logs())
	require.Zero(t, f.journal.Len())
}

func TestReentrantWithdrawDuringRewardPayout(t *testing.T) {
	f := newFixture(t)
	f.stake(t, alice, uint256.NewInt(100))
	f.reward(t, uint256.NewInt(50))
	f.journal.Commit()

	var nested error
	f.token.SetReceiveHook(alice, func(from common.Address, amount *uint256.Int) error {
		nested = f.pool.Withdraw(alice, uint256.NewInt(100))
		return nested
	})

	balance := f.token.BalanceOf(alice)
	require.NoError(t, f.token.Approve(alice, poolAddr, uint256.NewInt(10)))
	f.journal.Commit()

	err := f.pool.Deposit(alice, uint256.NewInt(10))
	require.ErrorIs(t, err, model.ErrReentrancyDetected)
	require.ErrorIs(t, nested, model.ErrReentrancyDetected)

	require.Equal(t, balance.Dec(), f.token.BalanceOf(alice).Dec())
	require.Equal(t, uint64(50), f.pool.AvailableReward(alice).Uint64())
	require.Equal(t, uint64(100), f.pool.TotalStake().Uint64())
	require.Equal(t, uint64(10), f.token.Allowance(alice, poolAddr).Uint64())
	require.Empty(t, f.journal.Logs())

	// The lock is released after the failed call.
	f.token.SetReceiveHook(alice, nil)
	require.NoError(t, f.pool.Deposit(alice, uint256.NewInt(10)))
}

func TestStateRestore(t *testing.T) {
	f := newFixture(t)
	f.stake(t, alice, uint256.NewInt(1000))
	f.stake(t, bob, uint256.NewInt(2000))
	f.reward(t, uint256.NewInt(450))

	poolState, accounts := f.pool.State()

	restored := New(Config{Address: poolAddr, Router: routerAddr, Treasury: treasuryAddr}, f.token, journal.New(), nil)
	require.NoError(t, restored.Restore(poolState, accounts))
	require.Equal(t, f.pool.AvailableReward(alice).Dec(), restored.AvailableReward(alice).Dec())
	require.Equal(t, f.pool.AvailableReward(bob).Dec(), restored.AvailableReward(bob).Dec())
	require.Equal(t, f.pool.TotalStake().Dec(), restored.TotalStake().Dec())
	require.Equal(t, f.pool.RewardReserve().Dec(), restored.RewardReserve().Dec())

	poolState.TotalStaked = "1"
	require.Error(t, restored.Restore(poolState, accounts))
}

func (f *fixture) assertSolvent(t *testing.T) {
	t.Helper()
	owed, err := fixedpoint.Add(f.pool.TotalStake(), f.pool.RewardReserve())
	require.NoError(t, err)
	require.Equal(t, owed.Dec(), f.token.BalanceOf(poolAddr).Dec(), "pool balance must equal stake plus unpaid reward")
	for _, who := range []common.Address{alice, bob, carol} {
		require.False(t, f.pool.AvailableReward(who).Gt(f.pool.RewardReserve()), "pending reward above reserve")
	}
}

func (f *fixture) withdrawAll(t *testing.T) {
	t.Helper()
	for _, who := range []common.Address{alice, bob, carol} {
		staked := f.pool.UserInfo(who).Amount
		if staked.IsZero() {
			continue
		}
		require.NoError(t, f.pool.Withdraw(who, staked), "withdraw %s", who.Hex())
	}
	require.True(t, f.pool.TotalStake().IsZero())
	require.Equal(t, f.pool.RewardReserve().Dec(), f.token.BalanceOf(poolAddr).Dec())
}

func TestRoundingNeverSpendsStake(t *testing.T) {
	f := newFixture(t)
	f.stake(t, alice, uint256.NewInt(5))
	f.reward(t, uint256.NewInt(2))
	f.reward(t, uint256.NewInt(4))
	f.stake(t, alice, uint256.NewInt(3))
	f.stake(t, carol, uint256.NewInt(7))
	f.reward(t, uint256.NewInt(1))
	f.stake(t, bob, uint256.NewInt(6))
	f.stake(t, alice, uint256.NewInt(7))
	f.stake(t, carol, uint256.NewInt(5))
	f.reward(t, uint256.NewInt(3))
	f.stake(t, alice, uint256.NewInt(6))
	f.stake(t, bob, uint256.NewInt(2))
	f.assertSolvent(t)

	f.withdrawAll(t)
}

func TestRandomWalkStaysSolvent(t *testing.T) {
	stakers := []common.Address{alice, bob, carol}
	for seed := int64(0); seed < 20; seed++ {
		f := newFixture(t)
		rng := rand.New(rand.NewSource(seed))
		for step := 0; step < 300; step++ {
			who := stakers[rng.Intn(len(stakers))]
			amount := uint256.NewInt(uint64(rng.Intn(9) + 1))
			switch rng.Intn(4) {
			case 0:
				f.stake(t, who, amount)
			case 1:
				if staked := f.pool.UserInfo(who).Amount; !staked.Lt(amount) {
					require.NoError(t, f.pool.Withdraw(who, amount))
				}
			case 2:
				f.reward(t, amount)
			default:
				_, err := f.pool.Claim(who)
				require.NoError(t, err)
			}
			f.assertSolvent(t)
			f.journal.Commit()
		}
		f.withdrawAll(t)
	}
}
