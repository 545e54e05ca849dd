package model

// TransferEventData is the decoded token Transfer payload.
type TransferEventData struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Value string `json:"value"`
}

// ApprovalEventData is the decoded token Approval payload.
type ApprovalEventData struct {
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
	Value   string `json:"value"`
}

// StakeEventData is the decoded Deposit or Withdraw payload.
type StakeEventData struct {
	User   string `json:"user"`
	Amount string `json:"amount"`
}

// RewardPaidEventData is the decoded RewardPaid payload.
type RewardPaidEventData struct {
	User   string `json:"user"`
	Amount string `json:"amount"`
}

// RewardAddedEventData is the decoded RewardAdded payload.
type RewardAddedEventData struct {
	Amount            string `json:"amount"`
	AccRewardPerShare string `json:"acc_reward_per_share"`
}

// RewardRedirectedEventData is the decoded RewardRedirected payload.
type RewardRedirectedEventData struct {
	Treasury string `json:"treasury"`
	Amount   string `json:"amount"`
}

// TipEventData is the decoded Tip payload.
type TipEventData struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Amount    string `json:"amount"`
	Burned    string `json:"burned"`
	Treasury  string `json:"treasury"`
	Reward    string `json:"reward"`
	Delivered string `json:"delivered"`
}

// RateUpdatedEventData is the decoded RateUpdated payload.
type RateUpdatedEventData struct {
	Rate     string `json:"rate"`
	Previous uint64 `json:"previous"`
	Current  uint64 `json:"current"`
}
