package model

// Operation kinds accepted by the ledger engine.
const (
	OpMint          = "mint"
	OpApprove       = "approve"
	OpTransfer      = "transfer"
	OpDeposit       = "deposit"
	OpWithdraw      = "withdraw"
	OpClaim         = "claim"
	OpTip           = "tip"
	OpSetBurnRate   = "set-burn-rate"
	OpSetFundRate   = "set-fund-rate"
	OpSetRewardRate = "set-reward-rate"
)

// Operation is a single ledger instruction as read from an operation script.
// Amounts are decimal strings in token base units.
type Operation struct {
	Seq     uint64 `json:"seq,omitempty"`
	Kind    string `json:"kind"`
	Caller  string `json:"caller"`
	To      string `json:"to,omitempty"`
	Spender string `json:"spender,omitempty"`
	Amount  string `json:"amount,omitempty"`
	Rate    uint64 `json:"rate,omitempty"`
}

// Receipt status values.
const (
	StatusApplied  = "applied"
	StatusReverted = "reverted"
)

// Receipt describes the outcome of one admitted operation.
type Receipt struct {
	Seq       uint64      `json:"seq"`
	OpHash    string      `json:"op_hash"`
	Kind      string      `json:"kind"`
	Status    string      `json:"status"`
	ErrorCode string      `json:"error_code,omitempty"`
	Error     string      `json:"error,omitempty"`
	Logs      []LogRecord `json:"logs,omitempty"`
}

// OperationError records a reverted operation in the errors journal.
type OperationError struct {
	Seq       uint64 `json:"seq"`
	OpHash    string `json:"op_hash,omitempty"`
	Kind      string `json:"kind"`
	Caller    string `json:"caller"`
	ErrorCode string `json:"error_code"`
	Error     string `json:"error"`
}
