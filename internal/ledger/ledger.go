// Package ledger wires the token ledger, staking pool and reward router into a
// single-writer engine that admits operations in a total order.
package ledger

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"tipLedger/internal/events"
	"tipLedger/internal/fixedpoint"
	"tipLedger/internal/journal"
	"tipLedger/internal/model"
	"tipLedger/internal/router"
	"tipLedger/internal/staking"
	"tipLedger/internal/token"
)

// Config holds the ledger's construction-time addresses and rates.
type Config struct {
	Token       common.Address
	StakingPool common.Address
	Router      common.Address
	Treasury    common.Address
	BurnSink    common.Address
	Admin       common.Address
	BurnRate    uint64
	FundRate    uint64
	RewardRate  uint64
}

// Rates returns the configured initial rates.
func (c Config) Rates() model.RateConfig {
	return model.RateConfig{BurnRate: c.BurnRate, FundRate: c.FundRate, RewardRate: c.RewardRate}
}

// Observer receives the outcome of every executed operation.
type Observer interface {
	ObserveReceipt(receipt model.Receipt, elapsed time.Duration)
	ObserveSplit(split router.Split)
}

// Engine serializes ledger operations.
type Engine struct {
	mu       sync.Mutex
	cfg      Config
	logger   *zap.Logger
	observer Observer
	now      func() time.Time

	journal *journal.Journal
	token   *token.Ledger
	pool    *staking.Pool
	router  *router.Router
	lastSeq uint64
}

type components struct {
	journal *journal.Journal
	token   *token.Ledger
	pool    *staking.Pool
	router  *router.Router
}

// New builds an engine with empty state.
func New(cfg Config, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		cfg:    cfg,
		logger: logger.Named("ledger"),
		now:    time.Now,
	}
	c, err := e.build()
	if err != nil {
		return nil, err
	}
	e.install(c)
	return e, nil
}

func (e *Engine) build() (components, error) {
	j := journal.New()
	tok := token.New(e.cfg.Token, j)
	pool := staking.New(staking.Config{
		Address:  e.cfg.StakingPool,
		Router:   e.cfg.Router,
		Treasury: e.cfg.Treasury,
	}, tok, j, e.logger)
	r, err := router.New(router.Config{
		Address:    e.cfg.Router,
		Admin:      e.cfg.Admin,
		Treasury:   e.cfg.Treasury,
		BurnSink:   e.cfg.BurnSink,
		BurnRate:   e.cfg.BurnRate,
		FundRate:   e.cfg.FundRate,
		RewardRate: e.cfg.RewardRate,
	}, tok, pool, j, e.logger)
	if err != nil {
		return components{}, fmt.Errorf("build router: %w", err)
	}
	return components{journal: j, token: tok, pool: pool, router: r}, nil
}

func (e *Engine) install(c components) {
	e.journal = c.journal
	e.token = c.token
	e.pool = c.pool
	e.router = c.router
}

// SetObserver registers o to receive operation outcomes. Passing nil removes
// the observer.
func (e *Engine) SetObserver(o Observer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observer = o
}

// MintGenesis credits the genesis balance sheet. It must run before any
// operation is executed.
func (e *Engine) MintGenesis(genesis model.Genesis) ([]model.LogRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.lastSeq != 0 {
		return nil, fmt.Errorf("mint genesis: %w: ledger already at seq %d", model.ErrInvalidOperation, e.lastSeq)
	}
	err := e.journal.Atomic(func() error {
		for _, entry := range genesis.Balances {
			holder, err := parseAddress("holder", entry.Address)
			if err != nil {
				return err
			}
			amount, err := fixedpoint.Parse(entry.Balance)
			if err != nil {
				return fmt.Errorf("balance of %s: %w", entry.Address, err)
			}
			if amount.IsZero() {
				continue
			}
			if err := e.token.Mint(holder, amount); err != nil {
				return fmt.Errorf("mint %s: %w", entry.Address, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("mint genesis: %w", err)
	}

	payload, err := json.Marshal(genesis)
	if err != nil {
		return nil, fmt.Errorf("mint genesis: marshal: %w", err)
	}
	return e.drain(0, crypto.Keccak256Hash(payload)), nil
}

// Execute admits op, applies it atomically and returns its receipt. A failed
// operation is fully reverted and returned as a receipt with StatusReverted
// together with the cause.
func (e *Engine) Execute(op model.Operation) (model.Receipt, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := e.now()
	if op.Seq == 0 {
		op.Seq = e.lastSeq + 1
	}
	if op.Seq <= e.lastSeq {
		return model.Receipt{}, fmt.Errorf("execute: %w: seq %d not after %d", model.ErrInvalidOperation, op.Seq, e.lastSeq)
	}

	payload, err := json.Marshal(op)
	if err != nil {
		return model.Receipt{}, fmt.Errorf("execute: marshal op: %w", err)
	}
	opHash := crypto.Keccak256Hash(payload)
	e.lastSeq = op.Seq

	receipt := model.Receipt{
		Seq:    op.Seq,
		OpHash: opHash.Hex(),
		Kind:   op.Kind,
		Status: model.StatusApplied,
	}

	snap := e.journal.Snapshot()
	split, applyErr := e.apply(op)
	if applyErr != nil {
		e.journal.RevertToSnapshot(snap)
		receipt.Status = model.StatusReverted
		receipt.ErrorCode = model.ErrorCode(applyErr)
		receipt.Error = applyErr.Error()
		e.logger.Warn("operation reverted",
			zap.Uint64("seq", op.Seq),
			zap.String("kind", op.Kind),
			zap.String("caller", op.Caller),
			zap.String("code", receipt.ErrorCode),
			zap.Error(applyErr),
		)
	}
	receipt.Logs = e.drain(op.Seq, opHash)

	if e.observer != nil {
		e.observer.ObserveReceipt(receipt, e.now().Sub(start))
		if split != nil {
			e.observer.ObserveSplit(*split)
		}
	}
	return receipt, applyErr
}

func (e *Engine) drain(seq uint64, opHash common.Hash) []model.LogRecord {
	logs := e.journal.Commit()
	if len(logs) == 0 {
		return nil
	}
	ingestedAt := e.now()
	records := make([]model.LogRecord, 0, len(logs))
	for _, log := range logs {
		records = append(records, events.BuildLogRecord(seq, opHash, log, ingestedAt))
	}
	return records
}

func (e *Engine) apply(op model.Operation) (*router.Split, error) {
	caller, err := parseAddress("caller", op.Caller)
	if err != nil {
		return nil, err
	}

	switch op.Kind {
	case model.OpMint:
		if caller != e.cfg.Admin {
			return nil, fmt.Errorf("mint: %w: %s is not admin", model.ErrUnauthorized, caller.Hex())
		}
		to, amount, err := targetAndAmount(op)
		if err != nil {
			return nil, err
		}
		return nil, e.token.Mint(to, amount)
	case model.OpApprove:
		spender, err := parseAddress("spender", op.Spender)
		if err != nil {
			return nil, err
		}
		amount, err := fixedpoint.Parse(op.Amount)
		if err != nil {
			return nil, err
		}
		return nil, e.token.Approve(caller, spender, amount)
	case model.OpTransfer:
		to, amount, err := targetAndAmount(op)
		if err != nil {
			return nil, err
		}
		return nil, e.token.Transfer(caller, to, amount)
	case model.OpDeposit:
		amount, err := fixedpoint.Parse(op.Amount)
		if err != nil {
			return nil, err
		}
		return nil, e.pool.Deposit(caller, amount)
	case model.OpWithdraw:
		amount, err := fixedpoint.Parse(op.Amount)
		if err != nil {
			return nil, err
		}
		return nil, e.pool.Withdraw(caller, amount)
	case model.OpClaim:
		_, err := e.pool.Claim(caller)
		return nil, err
	case model.OpTip:
		to, amount, err := targetAndAmount(op)
		if err != nil {
			return nil, err
		}
		split, err := e.router.Transfer(caller, to, amount)
		if err != nil {
			return nil, err
		}
		return &split, nil
	case model.OpSetBurnRate:
		return nil, e.router.SetBurnRate(caller, op.Rate)
	case model.OpSetFundRate:
		return nil, e.router.SetFundRate(caller, op.Rate)
	case model.OpSetRewardRate:
		return nil, e.router.SetRewardRate(caller, op.Rate)
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", model.ErrInvalidOperation, op.Kind)
	}
}

func targetAndAmount(op model.Operation) (common.Address, *uint256.Int, error) {
	to, err := parseAddress("to", op.To)
	if err != nil {
		return common.Address{}, nil, err
	}
	amount, err := fixedpoint.Parse(op.Amount)
	if err != nil {
		return common.Address{}, nil, err
	}
	return to, amount, nil
}

func parseAddress(field, value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("%w: %s %q is not an address", model.ErrInvalidOperation, field, value)
	}
	return common.HexToAddress(value), nil
}

// Snapshot exports the full ledger state.
func (e *Engine) Snapshot() model.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	pool, accounts := e.pool.State()
	return model.Snapshot{
		LastSeq:     e.lastSeq,
		TotalSupply: e.token.TotalSupply().Dec(),
		Balances:    e.token.Balances(),
		Allowances:  e.token.Allowances(),
		Pool:        pool,
		Accounts:    accounts,
		Rates:       e.router.Rates(),
		UpdatedAt:   e.now().UTC().Format(time.RFC3339),
	}
}

// Restore replaces the ledger state with snapshot. The current state is kept
// when the snapshot is inconsistent.
func (e *Engine) Restore(snapshot model.Snapshot) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, err := e.build()
	if err != nil {
		return err
	}
	supply, err := fixedpoint.Parse(snapshot.TotalSupply)
	if err != nil {
		return fmt.Errorf("restore total supply: %w", err)
	}
	if err := c.token.Restore(supply, snapshot.Balances, snapshot.Allowances); err != nil {
		return fmt.Errorf("restore token: %w", err)
	}
	if err := c.pool.Restore(snapshot.Pool, snapshot.Accounts); err != nil {
		return fmt.Errorf("restore pool: %w", err)
	}
	if err := c.router.RestoreRates(snapshot.Rates); err != nil {
		return fmt.Errorf("restore rates: %w", err)
	}

	e.install(c)
	e.lastSeq = snapshot.LastSeq
	e.logger.Info("state restored",
		zap.Uint64("last_seq", snapshot.LastSeq),
		zap.Int("holders", len(snapshot.Balances)),
		zap.Int("stakers", len(snapshot.Accounts)),
	)
	return nil
}

// LastSeq returns the sequence number of the last admitted operation.
func (e *Engine) LastSeq() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastSeq
}

// BalanceOf returns the token balance of account.
func (e *Engine) BalanceOf(account common.Address) *uint256.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.token.BalanceOf(account)
}

// Allowance returns the spending limit owner granted spender.
func (e *Engine) Allowance(owner, spender common.Address) *uint256.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.token.Allowance(owner, spender)
}

// TotalSupply returns the minted supply.
func (e *Engine) TotalSupply() *uint256.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.token.TotalSupply()
}

// AvailableReward returns the reward account could claim now.
func (e *Engine) AvailableReward(account common.Address) *uint256.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pool.AvailableReward(account)
}

// TotalStake returns the pool's total stake.
func (e *Engine) TotalStake() *uint256.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pool.TotalStake()
}

// UserInfo returns the staking record of account.
func (e *Engine) UserInfo(account common.Address) staking.UserInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pool.UserInfo(account)
}

// Rates returns the router's current rates.
func (e *Engine) Rates() model.RateConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.router.Rates()
}

// Split previews the division of amount under the current rates.
func (e *Engine) Split(amount *uint256.Int) (router.Split, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.router.Split(amount)
}
