package staking

import (
	"github.com/holiman/uint256"

	"tipLedger/internal/fixedpoint"
)

// rewardDebt is amount*acc/SCALE, the portion of the accumulator an account
// of that size has already been credited with.
func rewardDebt(info *PoolInfo, amount *uint256.Int) (*uint256.Int, error) {
	return fixedpoint.MulDiv(amount, info.AccRewardPerShare, fixedpoint.Scale())
}

// pendingReward is amount*acc/SCALE - rewardDebt. The accumulator never
// decreases, so the subtraction cannot underflow for a settled account.
func pendingReward(info *PoolInfo, user *UserInfo) (*uint256.Int, error) {
	accrued, err := rewardDebt(info, user.Amount)
	if err != nil {
		return nil, err
	}
	return fixedpoint.Sub(accrued, user.RewardDebt)
}

// accrue returns the accumulator after distributing amount over the current
// total stake. Callers must ensure TotalStaked is non-zero.
func accrue(info *PoolInfo, amount *uint256.Int) (*uint256.Int, error) {
	perShare, err := fixedpoint.MulDiv(amount, fixedpoint.Scale(), info.TotalStaked)
	if err != nil {
		return nil, err
	}
	return fixedpoint.Add(info.AccRewardPerShare, perShare)
}

// payable caps pending at the unpaid reward reserve.
func payable(info *PoolInfo, pending *uint256.Int) *uint256.Int {
	if pending.Gt(info.RewardReserve) {
		return info.RewardReserve.Clone()
	}
	return pending
}
