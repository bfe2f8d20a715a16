package model

import (
	"fmt"
	"math/big"
)

// Deposit is the immutable record of a vault deposit.
type Deposit struct {
	ID              string   `json:"id"`
	User            string   `json:"user"`
	Assets          *big.Int `json:"assets"`
	Shares          *big.Int `json:"shares"`
	Timestamp       uint64   `json:"timestamp"`
	BlockNumber     uint64   `json:"block_number"`
	TransactionHash string   `json:"transaction_hash"`
}

// Withdrawal is the immutable record of a vault withdrawal.
type Withdrawal struct {
	ID              string   `json:"id"`
	User            string   `json:"user"`
	Assets          *big.Int `json:"assets"`
	Shares          *big.Int `json:"shares"`
	Timestamp       uint64   `json:"timestamp"`
	BlockNumber     uint64   `json:"block_number"`
	TransactionHash string   `json:"transaction_hash"`
}

// StakeEventType tags a StakeEvent as a stake or an unstake.
type StakeEventType string

const (
	StakeEventStake   StakeEventType = "STAKE"
	StakeEventUnstake StakeEventType = "UNSTAKE"
)

// ParseStakeEventType accepts only the two known tags.
func ParseStakeEventType(s string) (StakeEventType, error) {
	switch StakeEventType(s) {
	case StakeEventStake, StakeEventUnstake:
		return StakeEventType(s), nil
	default:
		return "", fmt.Errorf("unknown stake event type: %q", s)
	}
}

// UnmarshalText rejects tags outside the closed set.
func (t *StakeEventType) UnmarshalText(text []byte) error {
	parsed, err := ParseStakeEventType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// StakeEvent is the immutable record of a stake or unstake.
type StakeEvent struct {
	ID              string         `json:"id"`
	User            string         `json:"user"`
	Amount          *big.Int       `json:"amount"`
	Type            StakeEventType `json:"type"`
	Timestamp       uint64         `json:"timestamp"`
	BlockNumber     uint64         `json:"block_number"`
	TransactionHash string         `json:"transaction_hash"`
}

// Rebalance is the immutable record of a strategy rebalance.
type Rebalance struct {
	ID              string   `json:"id"`
	FromStrategy    string   `json:"from_strategy"`
	ToStrategy      string   `json:"to_strategy"`
	Amount          *big.Int `json:"amount"`
	Profit          *big.Int `json:"profit"`
	Timestamp       uint64   `json:"timestamp"`
	BlockNumber     uint64   `json:"block_number"`
	TransactionHash string   `json:"transaction_hash"`
}
