package model

// RateConfig holds the router split rates in parts per thousand.
type RateConfig struct {
	BurnRate   uint64 `json:"burn_rate"`
	FundRate   uint64 `json:"fund_rate"`
	RewardRate uint64 `json:"reward_rate"`
}

// Sum returns the combined rate.
func (r RateConfig) Sum() uint64 {
	return r.BurnRate + r.FundRate + r.RewardRate
}

// PoolState is the serialized staking pool record.
type PoolState struct {
	TotalStaked       string `json:"total_staked"`
	AccRewardPerShare string `json:"acc_reward_per_share"`
	RewardReserve     string `json:"reward_reserve,omitempty"`
}

// AccountState is the serialized staking account record.
type AccountState struct {
	Address    string `json:"address"`
	Amount     string `json:"amount"`
	RewardDebt string `json:"reward_debt"`
}

// BalanceEntry is a token balance for one holder.
type BalanceEntry struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
}

// AllowanceEntry is an approved spending limit.
type AllowanceEntry struct {
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

// Snapshot is a full point-in-time copy of ledger state.
type Snapshot struct {
	LastSeq     uint64           `json:"last_seq"`
	TotalSupply string           `json:"total_supply"`
	Balances    []BalanceEntry   `json:"balances"`
	Allowances  []AllowanceEntry `json:"allowances,omitempty"`
	Pool        PoolState        `json:"pool"`
	Accounts    []AccountState   `json:"accounts,omitempty"`
	Rates       RateConfig       `json:"rates"`
	// Position is the last operation-script line the checkpoint covers.
	Position  uint64 `json:"position,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// Genesis is the initial balance sheet minted before replay.
type Genesis struct {
	Token       string         `json:"token,omitempty"`
	ChainID     uint64         `json:"chain_id,omitempty"`
	BlockNumber uint64         `json:"block_number,omitempty"`
	Balances    []BalanceEntry `json:"balances"`
}
