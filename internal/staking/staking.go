// Package staking implements the proportional reward pool. Rewards are
// distributed with a reward-per-share accumulator: each injection raises the
// accumulator by amount*SCALE/totalStaked and every account recovers its share
// lazily from the difference between the accumulator and the reward debt it
// recorded at its last settlement. No operation iterates over stakers.
package staking

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"tipLedger/internal/events"
	"tipLedger/internal/fixedpoint"
	"tipLedger/internal/guard"
	"tipLedger/internal/journal"
	"tipLedger/internal/model"
)

// TokenLedger is the token surface the pool needs.
type TokenLedger interface {
	BalanceOf(account common.Address) *uint256.Int
	Transfer(from, to common.Address, amount *uint256.Int) error
	TransferFrom(spender, owner, to common.Address, amount *uint256.Int) error
}

// Config enumerates the pool's construction-time identities.
type Config struct {
	Address  common.Address
	Router   common.Address
	Treasury common.Address
}

// PoolInfo is the shared pool record. RewardReserve is the injected reward
// not yet paid out; payouts never exceed it, so stake is always redeemable.
type PoolInfo struct {
	TotalStaked       *uint256.Int
	AccRewardPerShare *uint256.Int
	RewardReserve     *uint256.Int
}

// UserInfo is a staking account.
type UserInfo struct {
	Amount     *uint256.Int
	RewardDebt *uint256.Int
}

// Pool owns the proportional-distribution accounting.
type Pool struct {
	cfg      Config
	token    TokenLedger
	journal  *journal.Journal
	logger   *zap.Logger
	lock     *guard.Lock
	info     *PoolInfo
	accounts map[common.Address]*UserInfo
}

// New builds an empty pool.
func New(cfg Config, token TokenLedger, j *journal.Journal, logger *zap.Logger) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		cfg:     cfg,
		token:   token,
		journal: j,
		logger:  logger.Named("staking"),
		lock:    guard.New("staking"),
		info: &PoolInfo{
			TotalStaked:       fixedpoint.Zero(),
			AccRewardPerShare: fixedpoint.Zero(),
			RewardReserve:     fixedpoint.Zero(),
		},
		accounts: make(map[common.Address]*UserInfo),
	}
}

// Address returns the pool's token account.
func (p *Pool) Address() common.Address { return p.cfg.Address }

// Router returns the only identity allowed to inject rewards.
func (p *Pool) Router() common.Address { return p.cfg.Router }

// Treasury returns where rewards go while nobody is staked.
func (p *Pool) Treasury() common.Address { return p.cfg.Treasury }

// Deposit settles the caller's pending reward, then stakes amount pulled from
// the caller. The caller must have approved the pool for amount.
func (p *Pool) Deposit(caller common.Address, amount *uint256.Int) error {
	return p.guarded("deposit", func() error {
		if amount.IsZero() {
			return fmt.Errorf("deposit: %w: zero amount", model.ErrInvalidAmount)
		}
		user := p.account(caller)
		if _, err := p.settle(p.info, caller, user); err != nil {
			return fmt.Errorf("deposit: %w", err)
		}
		if err := p.token.TransferFrom(p.cfg.Address, caller, p.cfg.Address, amount); err != nil {
			return fmt.Errorf("deposit: pull stake: %w", err)
		}

		staked, err := fixedpoint.Add(user.Amount, amount)
		if err != nil {
			return fmt.Errorf("deposit: %w", err)
		}
		total, err := fixedpoint.Add(p.info.TotalStaked, amount)
		if err != nil {
			return fmt.Errorf("deposit: %w", err)
		}
		if err := p.setStake(p.info, caller, user, staked, total); err != nil {
			return fmt.Errorf("deposit: %w", err)
		}

		p.logger.Debug("deposit",
			zap.String("user", caller.Hex()),
			zap.String("amount", amount.Dec()),
			zap.String("total_staked", total.Dec()),
		)
		return events.Emit(p.journal, p.cfg.Address, events.Deposit, caller, amount)
	})
}

// Withdraw settles the caller's pending reward and returns amount of stake.
func (p *Pool) Withdraw(caller common.Address, amount *uint256.Int) error {
	return p.guarded("withdraw", func() error {
		user := p.accounts[caller]
		if amount.IsZero() {
			return fmt.Errorf("withdraw: %w: zero amount", model.ErrInsufficientStake)
		}
		if user == nil || user.Amount.Lt(amount) {
			staked := fixedpoint.Zero()
			if user != nil {
				staked = user.Amount
			}
			return fmt.Errorf("withdraw: %w: staked %s, requested %s", model.ErrInsufficientStake, staked.Dec(), amount.Dec())
		}
		if _, err := p.settle(p.info, caller, user); err != nil {
			return fmt.Errorf("withdraw: %w", err)
		}

		staked, err := fixedpoint.Sub(user.Amount, amount)
		if err != nil {
			return fmt.Errorf("withdraw: %w", model.ErrInsufficientStake)
		}
		total, err := fixedpoint.Sub(p.info.TotalStaked, amount)
		if err != nil {
			return fmt.Errorf("withdraw: %w", err)
		}
		if err := p.setStake(p.info, caller, user, staked, total); err != nil {
			return fmt.Errorf("withdraw: %w", err)
		}
		if err := p.token.Transfer(p.cfg.Address, caller, amount); err != nil {
			return fmt.Errorf("withdraw: return stake: %w", err)
		}

		p.logger.Debug("withdraw",
			zap.String("user", caller.Hex()),
			zap.String("amount", amount.Dec()),
			zap.String("total_staked", total.Dec()),
		)
		return events.Emit(p.journal, p.cfg.Address, events.Withdraw, caller, amount)
	})
}

// Claim pays out the caller's pending reward without touching the stake and
// returns the amount paid.
func (p *Pool) Claim(caller common.Address) (*uint256.Int, error) {
	var paid *uint256.Int
	err := p.guarded("claim", func() error {
		user, ok := p.accounts[caller]
		if !ok {
			paid = fixedpoint.Zero()
			return nil
		}
		var err error
		paid, err = p.settle(p.info, caller, user)
		if err != nil {
			return fmt.Errorf("claim: %w", err)
		}
		debt, err := rewardDebt(p.info, user.Amount)
		if err != nil {
			return fmt.Errorf("claim: %w", err)
		}
		p.setDebt(user, debt)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paid, nil
}

// ReceiveReward distributes amount, which the router has already transferred
// to the pool, across current stakers. With nothing staked the amount is
// forwarded to the treasury instead.
func (p *Pool) ReceiveReward(caller common.Address, amount *uint256.Int) error {
	return p.guarded("receiveReward", func() error {
		if caller != p.cfg.Router {
			return fmt.Errorf("receive reward: %w: %s is not the router", model.ErrUnauthorized, caller.Hex())
		}
		if amount.IsZero() {
			return nil
		}
		if p.info.TotalStaked.IsZero() {
			if err := p.token.Transfer(p.cfg.Address, p.cfg.Treasury, amount); err != nil {
				return fmt.Errorf("receive reward: forward to treasury: %w", err)
			}
			p.logger.Debug("reward redirected", zap.String("amount", amount.Dec()))
			return events.Emit(p.journal, p.cfg.Address, events.RewardRedirected, p.cfg.Treasury, amount)
		}

		acc, err := accrue(p.info, amount)
		if err != nil {
			return fmt.Errorf("receive reward: %w", err)
		}
		reserve, err := fixedpoint.Add(p.info.RewardReserve, amount)
		if err != nil {
			return fmt.Errorf("receive reward: %w", err)
		}
		p.setAcc(p.info, acc, reserve)

		p.logger.Debug("reward added",
			zap.String("amount", amount.Dec()),
			zap.String("acc_reward_per_share", acc.Dec()),
		)
		return events.Emit(p.journal, p.cfg.Address, events.RewardAdded, amount, acc)
	})
}

// AvailableReward returns the reward account could claim right now.
func (p *Pool) AvailableReward(account common.Address) *uint256.Int {
	user, ok := p.accounts[account]
	if !ok {
		return fixedpoint.Zero()
	}
	pending, err := pendingReward(p.info, user)
	if err != nil {
		p.logger.Warn("pending reward", zap.String("user", account.Hex()), zap.Error(err))
		return fixedpoint.Zero()
	}
	return payable(p.info, pending)
}

// RewardReserve returns the injected reward not yet paid out.
func (p *Pool) RewardReserve() *uint256.Int {
	return p.info.RewardReserve.Clone()
}

// TotalStake returns the sum of all staked amounts.
func (p *Pool) TotalStake() *uint256.Int {
	return p.info.TotalStaked.Clone()
}

// AccRewardPerShare returns the scaled reward-per-share accumulator.
func (p *Pool) AccRewardPerShare() *uint256.Int {
	return p.info.AccRewardPerShare.Clone()
}

// UserInfo returns a copy of account's stake and reward debt.
func (p *Pool) UserInfo(account common.Address) UserInfo {
	user, ok := p.accounts[account]
	if !ok {
		return UserInfo{Amount: fixedpoint.Zero(), RewardDebt: fixedpoint.Zero()}
	}
	return UserInfo{Amount: user.Amount.Clone(), RewardDebt: user.RewardDebt.Clone()}
}

// State exports the pool record and all accounts ordered by address.
func (p *Pool) State() (model.PoolState, []model.AccountState) {
	accounts := make([]model.AccountState, 0, len(p.accounts))
	for addr, user := range p.accounts {
		accounts = append(accounts, model.AccountState{
			Address:    addr.Hex(),
			Amount:     user.Amount.Dec(),
			RewardDebt: user.RewardDebt.Dec(),
		})
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Address < accounts[j].Address })

	return model.PoolState{
		TotalStaked:       p.info.TotalStaked.Dec(),
		AccRewardPerShare: p.info.AccRewardPerShare.Dec(),
		RewardReserve:     p.info.RewardReserve.Dec(),
	}, accounts
}

// Restore replaces the pool contents with a snapshot. It is not journaled.
func (p *Pool) Restore(pool model.PoolState, accounts []model.AccountState) error {
	total, err := fixedpoint.Parse(pool.TotalStaked)
	if err != nil {
		return fmt.Errorf("total staked: %w", err)
	}
	acc, err := fixedpoint.Parse(pool.AccRewardPerShare)
	if err != nil {
		return fmt.Errorf("acc reward per share: %w", err)
	}
	reserve, err := fixedpoint.Parse(pool.RewardReserve)
	if err != nil {
		return fmt.Errorf("reward reserve: %w", err)
	}

	sum := fixedpoint.Zero()
	next := make(map[common.Address]*UserInfo, len(accounts))
	for _, entry := range accounts {
		if !common.IsHexAddress(entry.Address) {
			return fmt.Errorf("invalid account address: %s", entry.Address)
		}
		amount, err := fixedpoint.Parse(entry.Amount)
		if err != nil {
			return fmt.Errorf("account %s: %w", entry.Address, err)
		}
		debt, err := fixedpoint.Parse(entry.RewardDebt)
		if err != nil {
			return fmt.Errorf("account %s: %w", entry.Address, err)
		}
		if sum, err = fixedpoint.Add(sum, amount); err != nil {
			return err
		}
		next[common.HexToAddress(entry.Address)] = &UserInfo{Amount: amount, RewardDebt: debt}
	}
	if !sum.Eq(total) {
		return fmt.Errorf("total staked %s does not match account sum %s", total.Dec(), sum.Dec())
	}

	p.info = &PoolInfo{TotalStaked: total, AccRewardPerShare: acc, RewardReserve: reserve}
	p.accounts = next
	return nil
}

func (p *Pool) guarded(op string, fn func() error) error {
	return p.lock.Do(op, func() error {
		return p.journal.Atomic(fn)
	})
}

// account returns the caller's record, creating a zero record on first touch.
func (p *Pool) account(addr common.Address) *UserInfo {
	if user, ok := p.accounts[addr]; ok {
		return user
	}
	user := &UserInfo{Amount: fixedpoint.Zero(), RewardDebt: fixedpoint.Zero()}
	p.accounts[addr] = user
	p.journal.Append(func() { delete(p.accounts, addr) })
	return user
}

// settle pays user's pending reward out of the reward reserve. Rounding can
// put the sum of pending rewards a few units above the reserve; the last
// claimant absorbs the shortfall.
func (p *Pool) settle(info *PoolInfo, addr common.Address, user *UserInfo) (*uint256.Int, error) {
	pending, err := pendingReward(info, user)
	if err != nil {
		return nil, err
	}
	pending = payable(info, pending)
	if pending.IsZero() {
		return pending, nil
	}
	reserve, err := fixedpoint.Sub(info.RewardReserve, pending)
	if err != nil {
		return nil, err
	}
	prev := info.RewardReserve
	info.RewardReserve = reserve
	p.journal.Append(func() { info.RewardReserve = prev })
	if err := p.token.Transfer(p.cfg.Address, addr, pending); err != nil {
		return nil, fmt.Errorf("pay reward: %w", err)
	}
	p.logger.Debug("reward paid", zap.String("user", addr.Hex()), zap.String("amount", pending.Dec()))
	if err := events.Emit(p.journal, p.cfg.Address, events.RewardPaid, addr, pending); err != nil {
		return nil, err
	}
	return pending, nil
}

func (p *Pool) setStake(info *PoolInfo, addr common.Address, user *UserInfo, staked, total *uint256.Int) error {
	debt, err := rewardDebt(info, staked)
	if err != nil {
		return err
	}
	prevAmount, prevTotal := user.Amount, info.TotalStaked
	user.Amount = staked
	info.TotalStaked = total
	p.journal.Append(func() {
		user.Amount = prevAmount
		info.TotalStaked = prevTotal
	})
	p.setDebt(user, debt)
	return nil
}

func (p *Pool) setDebt(user *UserInfo, debt *uint256.Int) {
	prev := user.RewardDebt
	user.RewardDebt = debt
	p.journal.Append(func() { user.RewardDebt = prev })
}

func (p *Pool) setAcc(info *PoolInfo, acc, reserve *uint256.Int) {
	prevAcc, prevReserve := info.AccRewardPerShare, info.RewardReserve
	info.AccRewardPerShare = acc
	info.RewardReserve = reserve
	p.journal.Append(func() {
		info.AccRewardPerShare = prevAcc
		info.RewardReserve = prevReserve
	})
}
