package model

// DepositEventData is the decoded Deposit event payload.
type DepositEventData struct {
	Sender string `json:"sender"`
	Owner  string `json:"owner"`
	Assets string `json:"assets"`
	Shares string `json:"shares"`
}

// WithdrawEventData is the decoded Withdraw event payload.
type WithdrawEventData struct {
	Sender   string `json:"sender"`
	Receiver string `json:"receiver"`
	Owner    string `json:"owner"`
	Assets   string `json:"assets"`
	Shares   string `json:"shares"`
}

// StakingEventData is the decoded payload of Staked, Unstaked and RewardsClaimed.
type StakingEventData struct {
	User   string `json:"user"`
	Amount string `json:"amount"`
}

// RebalancedEventData is the decoded Rebalanced event payload.
type RebalancedEventData struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
	Profit string `json:"profit"`
}
