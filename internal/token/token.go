// Package token is an in-memory fungible-token ledger with balances,
// allowances and receive hooks. Every mutation is journaled so the ledger
// engine can revert a failed operation.
package token

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"tipLedger/internal/events"
	"tipLedger/internal/fixedpoint"
	"tipLedger/internal/journal"
	"tipLedger/internal/model"
)

// ReceiveHook is invoked after tokens are credited to the hooked account.
// A non-nil error fails and reverts the transfer.
type ReceiveHook func(from common.Address, amount *uint256.Int) error

// Ledger holds token balances and allowances.
type Ledger struct {
	address     common.Address
	journal     *journal.Journal
	totalSupply *uint256.Int
	balances    map[common.Address]*uint256.Int
	allowances  map[common.Address]map[common.Address]*uint256.Int
	hooks       map[common.Address]ReceiveHook
}

// New returns an empty ledger for the token deployed at address.
func New(address common.Address, j *journal.Journal) *Ledger {
	return &Ledger{
		address:     address,
		journal:     j,
		totalSupply: fixedpoint.Zero(),
		balances:    make(map[common.Address]*uint256.Int),
		allowances:  make(map[common.Address]map[common.Address]*uint256.Int),
		hooks:       make(map[common.Address]ReceiveHook),
	}
}

// Address returns the token address.
func (l *Ledger) Address() common.Address {
	return l.address
}

// BalanceOf returns a copy of the balance of account.
func (l *Ledger) BalanceOf(account common.Address) *uint256.Int {
	if bal, ok := l.balances[account]; ok {
		return bal.Clone()
	}
	return fixedpoint.Zero()
}

// Allowance returns how much spender may move out of owner's balance.
func (l *Ledger) Allowance(owner, spender common.Address) *uint256.Int {
	if spenders, ok := l.allowances[owner]; ok {
		if amount, ok := spenders[spender]; ok {
			return amount.Clone()
		}
	}
	return fixedpoint.Zero()
}

// TotalSupply returns the minted supply.
func (l *Ledger) TotalSupply() *uint256.Int {
	return l.totalSupply.Clone()
}

// SetReceiveHook installs a callback run whenever account receives tokens.
// A nil hook removes it.
func (l *Ledger) SetReceiveHook(account common.Address, hook ReceiveHook) {
	if hook == nil {
		delete(l.hooks, account)
		return
	}
	l.hooks[account] = hook
}

// Mint creates amount new tokens for to.
func (l *Ledger) Mint(to common.Address, amount *uint256.Int) error {
	return l.journal.Atomic(func() error {
		supply, err := fixedpoint.Add(l.totalSupply, amount)
		if err != nil {
			return fmt.Errorf("mint: %w", err)
		}
		if err := l.credit(to, amount); err != nil {
			return fmt.Errorf("mint: %w", err)
		}
		l.setSupply(supply)
		return events.Emit(l.journal, l.address, events.Transfer, common.Address{}, to, amount)
	})
}

// Transfer moves amount from from to to.
func (l *Ledger) Transfer(from, to common.Address, amount *uint256.Int) error {
	return l.journal.Atomic(func() error {
		return l.move(from, to, amount)
	})
}

// TransferFrom moves amount from owner to to on behalf of spender, consuming
// the allowance owner granted to spender.
func (l *Ledger) TransferFrom(spender, owner, to common.Address, amount *uint256.Int) error {
	return l.journal.Atomic(func() error {
		allowed := l.Allowance(owner, spender)
		if allowed.Lt(amount) {
			return fmt.Errorf("%w: allowance %s < %s", model.ErrInsufficientBalance, allowed.Dec(), amount.Dec())
		}
		l.setAllowance(owner, spender, new(uint256.Int).Sub(allowed, amount))
		return l.move(owner, to, amount)
	})
}

// Approve sets the allowance of spender over owner's tokens.
func (l *Ledger) Approve(owner, spender common.Address, amount *uint256.Int) error {
	return l.journal.Atomic(func() error {
		if owner == (common.Address{}) {
			return fmt.Errorf("%w: approve from zero address", model.ErrInsufficientBalance)
		}
		l.setAllowance(owner, spender, amount.Clone())
		return events.Emit(l.journal, l.address, events.Approval, owner, spender, amount)
	})
}

func (l *Ledger) move(from, to common.Address, amount *uint256.Int) error {
	if from == (common.Address{}) {
		return fmt.Errorf("%w: zero address cannot spend", model.ErrInsufficientBalance)
	}
	balance := l.BalanceOf(from)
	if balance.Lt(amount) {
		return fmt.Errorf("%w: %s has %s, needs %s", model.ErrInsufficientBalance, from.Hex(), balance.Dec(), amount.Dec())
	}
	l.setBalance(from, new(uint256.Int).Sub(balance, amount))
	if err := l.credit(to, amount); err != nil {
		return err
	}
	if err := events.Emit(l.journal, l.address, events.Transfer, from, to, amount); err != nil {
		return err
	}

	if hook, ok := l.hooks[to]; ok {
		if err := hook(from, amount.Clone()); err != nil {
			return fmt.Errorf("receive hook %s: %w", to.Hex(), err)
		}
	}
	return nil
}

func (l *Ledger) credit(to common.Address, amount *uint256.Int) error {
	balance, err := fixedpoint.Add(l.BalanceOf(to), amount)
	if err != nil {
		return err
	}
	l.setBalance(to, balance)
	return nil
}

func (l *Ledger) setBalance(account common.Address, value *uint256.Int) {
	prev, existed := l.balances[account]
	l.balances[account] = value
	l.journal.Append(func() {
		if existed {
			l.balances[account] = prev
		} else {
			delete(l.balances, account)
		}
	})
}

func (l *Ledger) setAllowance(owner, spender common.Address, value *uint256.Int) {
	spenders, ok := l.allowances[owner]
	if !ok {
		spenders = make(map[common.Address]*uint256.Int)
		l.allowances[owner] = spenders
	}
	prev, existed := spenders[spender]
	spenders[spender] = value
	l.journal.Append(func() {
		if existed {
			spenders[spender] = prev
		} else {
			delete(spenders, spender)
		}
	})
}

func (l *Ledger) setSupply(value *uint256.Int) {
	prev := l.totalSupply
	l.totalSupply = value
	l.journal.Append(func() { l.totalSupply = prev })
}

// Balances returns every non-zero balance ordered by address.
func (l *Ledger) Balances() []model.BalanceEntry {
	out := make([]model.BalanceEntry, 0, len(l.balances))
	for addr, bal := range l.balances {
		if bal.IsZero() {
			continue
		}
		out = append(out, model.BalanceEntry{Address: addr.Hex(), Balance: bal.Dec()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

// Allowances returns every non-zero allowance ordered by owner then spender.
func (l *Ledger) Allowances() []model.AllowanceEntry {
	out := make([]model.AllowanceEntry, 0)
	for owner, spenders := range l.allowances {
		for spender, amount := range spenders {
			if amount.IsZero() {
				continue
			}
			out = append(out, model.AllowanceEntry{Owner: owner.Hex(), Spender: spender.Hex(), Amount: amount.Dec()})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Owner != out[j].Owner {
			return out[i].Owner < out[j].Owner
		}
		return out[i].Spender < out[j].Spender
	})
	return out
}

// Restore replaces the ledger contents with a snapshot. It is not journaled.
func (l *Ledger) Restore(supply *uint256.Int, balances []model.BalanceEntry, allowances []model.AllowanceEntry) error {
	nextBalances := make(map[common.Address]*uint256.Int, len(balances))
	for _, entry := range balances {
		if !common.IsHexAddress(entry.Address) {
			return fmt.Errorf("invalid balance address: %s", entry.Address)
		}
		value, err := fixedpoint.Parse(entry.Balance)
		if err != nil {
			return fmt.Errorf("balance %s: %w", entry.Address, err)
		}
		nextBalances[common.HexToAddress(entry.Address)] = value
	}

	nextAllowances := make(map[common.Address]map[common.Address]*uint256.Int)
	for _, entry := range allowances {
		if !common.IsHexAddress(entry.Owner) || !common.IsHexAddress(entry.Spender) {
			return fmt.Errorf("invalid allowance address: %s/%s", entry.Owner, entry.Spender)
		}
		value, err := fixedpoint.Parse(entry.Amount)
		if err != nil {
			return fmt.Errorf("allowance %s/%s: %w", entry.Owner, entry.Spender, err)
		}
		owner := common.HexToAddress(entry.Owner)
		if nextAllowances[owner] == nil {
			nextAllowances[owner] = make(map[common.Address]*uint256.Int)
		}
		nextAllowances[owner][common.HexToAddress(entry.Spender)] = value
	}

	l.totalSupply = supply.Clone()
	l.balances = nextBalances
	l.allowances = nextAllowances
	return nil
}
