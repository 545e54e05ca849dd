// Package router implements the taxed transfer: the sender's amount is split
// into burn, treasury and reward portions by per-mille rates and the
// remainder is delivered to the recipient.
package router

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"tipLedger/internal/events"
	"tipLedger/internal/fixedpoint"
	"tipLedger/internal/guard"
	"tipLedger/internal/journal"
	"tipLedger/internal/model"
)

// RateScale is the denominator of every rate: rates are parts per thousand.
const RateScale = 1000

// TokenLedger is the token surface the router needs.
type TokenLedger interface {
	Transfer(from, to common.Address, amount *uint256.Int) error
	TransferFrom(spender, owner, to common.Address, amount *uint256.Int) error
}

// RewardPool receives the reward portion of each split.
type RewardPool interface {
	Address() common.Address
	ReceiveReward(caller common.Address, amount *uint256.Int) error
}

// Config enumerates the router's construction-time settings.
type Config struct {
	Address    common.Address
	Admin      common.Address
	Treasury   common.Address
	BurnSink   common.Address
	BurnRate   uint64
	FundRate   uint64
	RewardRate uint64
}

// Split is the four-way division of a taxed transfer. The parts always sum
// to Amount.
type Split struct {
	Amount    *uint256.Int
	Burn      *uint256.Int
	Treasury  *uint256.Int
	Reward    *uint256.Int
	Recipient *uint256.Int
}

// Router taxes transfers and feeds the reward pool.
type Router struct {
	cfg     Config
	rates   model.RateConfig
	token   TokenLedger
	pool    RewardPool
	journal *journal.Journal
	logger  *zap.Logger
	lock    *guard.Lock
}

// New validates the initial rates and builds a Router.
func New(cfg Config, token TokenLedger, pool RewardPool, j *journal.Journal, logger *zap.Logger) (*Router, error) {
	rates := model.RateConfig{BurnRate: cfg.BurnRate, FundRate: cfg.FundRate, RewardRate: cfg.RewardRate}
	if err := ValidateRates(rates); err != nil {
		return nil, err
	}
	if token == nil {
		return nil, fmt.Errorf("token ledger is nil")
	}
	if pool == nil {
		return nil, fmt.Errorf("reward pool is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		cfg:     cfg,
		rates:   rates,
		token:   token,
		pool:    pool,
		journal: j,
		logger:  logger.Named("router"),
		lock:    guard.New("router"),
	}, nil
}

// ValidateRates checks that the combined rate does not exceed RateScale.
func ValidateRates(rates model.RateConfig) error {
	if rates.BurnRate > RateScale || rates.FundRate > RateScale || rates.RewardRate > RateScale {
		return fmt.Errorf("%w: rate above %d", model.ErrInvalidRateConfiguration, RateScale)
	}
	if rates.Sum() > RateScale {
		return fmt.Errorf("%w: burn %d + fund %d + reward %d > %d",
			model.ErrInvalidRateConfiguration, rates.BurnRate, rates.FundRate, rates.RewardRate, RateScale)
	}
	return nil
}

// ComputeSplit divides amount by rates. The recipient part is derived by
// subtraction so the four parts sum exactly to amount.
func ComputeSplit(amount *uint256.Int, rates model.RateConfig) (Split, error) {
	if err := ValidateRates(rates); err != nil {
		return Split{}, err
	}
	burn, err := fixedpoint.Portion(amount, rates.BurnRate, RateScale)
	if err != nil {
		return Split{}, err
	}
	treasury, err := fixedpoint.Portion(amount, rates.FundRate, RateScale)
	if err != nil {
		return Split{}, err
	}
	reward, err := fixedpoint.Portion(amount, rates.RewardRate, RateScale)
	if err != nil {
		return Split{}, err
	}

	recipient := amount.Clone()
	for _, part := range []*uint256.Int{burn, treasury, reward} {
		if recipient, err = fixedpoint.Sub(recipient, part); err != nil {
			return Split{}, err
		}
	}

	return Split{
		Amount:    amount.Clone(),
		Burn:      burn,
		Treasury:  treasury,
		Reward:    reward,
		Recipient: recipient,
	}, nil
}

// Split computes the division of amount under the current rates.
func (r *Router) Split(amount *uint256.Int) (Split, error) {
	return ComputeSplit(amount, r.rates)
}

// Transfer pulls amount from caller and distributes it: burn to the burn
// sink, treasury to the treasury, reward into the staking pool, the rest to
// recipient. The caller must have approved the router for amount.
func (r *Router) Transfer(caller, recipient common.Address, amount *uint256.Int) (Split, error) {
	var split Split
	err := r.guarded("transfer", func() error {
		if amount.IsZero() {
			return fmt.Errorf("transfer: %w: zero amount", model.ErrInvalidAmount)
		}

		var err error
		split, err = r.Split(amount)
		if err != nil {
			return fmt.Errorf("transfer: %w", err)
		}

		if err := r.token.TransferFrom(r.cfg.Address, caller, r.cfg.Address, amount); err != nil {
			return fmt.Errorf("transfer: pull amount: %w", err)
		}
		if err := r.send(r.cfg.BurnSink, split.Burn); err != nil {
			return fmt.Errorf("transfer: burn: %w", err)
		}
		if err := r.send(r.cfg.Treasury, split.Treasury); err != nil {
			return fmt.Errorf("transfer: treasury: %w", err)
		}
		if !split.Reward.IsZero() {
			if err := r.send(r.pool.Address(), split.Reward); err != nil {
				return fmt.Errorf("transfer: reward: %w", err)
			}
			if err := r.pool.ReceiveReward(r.cfg.Address, split.Reward); err != nil {
				return fmt.Errorf("transfer: reward: %w", err)
			}
		}
		if err := r.send(recipient, split.Recipient); err != nil {
			return fmt.Errorf("transfer: deliver: %w", err)
		}

		r.logger.Debug("tip",
			zap.String("from", caller.Hex()),
			zap.String("to", recipient.Hex()),
			zap.String("amount", amount.Dec()),
			zap.String("burn", split.Burn.Dec()),
			zap.String("treasury", split.Treasury.Dec()),
			zap.String("reward", split.Reward.Dec()),
		)
		return events.Emit(r.journal, r.cfg.Address, events.Tip, caller, recipient,
			split.Amount, split.Burn, split.Treasury, split.Reward, split.Recipient)
	})
	if err != nil {
		return Split{}, err
	}
	return split, nil
}

func (r *Router) send(to common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	return r.token.Transfer(r.cfg.Address, to, amount)
}

// SetBurnRate changes the burn rate. Admin only.
func (r *Router) SetBurnRate(caller common.Address, rate uint64) error {
	return r.setRate(caller, "burn", rate, func(rates *model.RateConfig) *uint64 { return &rates.BurnRate })
}

// SetFundRate changes the treasury rate. Admin only.
func (r *Router) SetFundRate(caller common.Address, rate uint64) error {
	return r.setRate(caller, "fund", rate, func(rates *model.RateConfig) *uint64 { return &rates.FundRate })
}

// SetRewardRate changes the reward rate. Admin only.
func (r *Router) SetRewardRate(caller common.Address, rate uint64) error {
	return r.setRate(caller, "reward", rate, func(rates *model.RateConfig) *uint64 { return &rates.RewardRate })
}

func (r *Router) setRate(caller common.Address, name string, rate uint64, field func(*model.RateConfig) *uint64) error {
	return r.guarded("set"+name+"Rate", func() error {
		if caller != r.cfg.Admin {
			return fmt.Errorf("set %s rate: %w: %w: %s is not admin", name, model.ErrUnauthorized, model.ErrInvalidRateConfiguration, caller.Hex())
		}

		next := r.rates
		previous := *field(&next)
		*field(&next) = rate
		if err := ValidateRates(next); err != nil {
			return fmt.Errorf("set %s rate: %w", name, err)
		}

		prev := r.rates
		r.rates = next
		r.journal.Append(func() { r.rates = prev })

		r.logger.Info("rate updated", zap.String("rate", name), zap.Uint64("previous", previous), zap.Uint64("current", rate))
		return events.Emit(r.journal, r.cfg.Address, events.RateUpdated, name, previous, rate)
	})
}

func (r *Router) guarded(op string, fn func() error) error {
	return r.lock.Do(op, func() error {
		return r.journal.Atomic(fn)
	})
}

// Rates returns the current rate configuration.
func (r *Router) Rates() model.RateConfig { return r.rates }

// BurnRate returns the burn rate in parts per thousand.
func (r *Router) BurnRate() uint64 { return r.rates.BurnRate }

// FundRate returns the treasury rate in parts per thousand.
func (r *Router) FundRate() uint64 { return r.rates.FundRate }

// RewardRate returns the reward rate in parts per thousand.
func (r *Router) RewardRate() uint64 { return r.rates.RewardRate }

// Address returns the router's token account.
func (r *Router) Address() common.Address { return r.cfg.Address }

// Admin returns the identity allowed to change rates.
func (r *Router) Admin() common.Address { return r.cfg.Admin }

// Treasury returns the treasury address.
func (r *Router) Treasury() common.Address { return r.cfg.Treasury }

// BurnSink returns the burn sink address.
func (r *Router) BurnSink() common.Address { return r.cfg.BurnSink }

// StakingPool returns the reward pool address.
func (r *Router) StakingPool() common.Address { return r.pool.Address() }

// RestoreRates replaces the rates from a snapshot. It is not journaled.
func (r *Router) RestoreRates(rates model.RateConfig) error {
	if err := ValidateRates(rates); err != nil {
		return err
	}
	r.rates = rates
	return nil
}
