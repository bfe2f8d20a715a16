package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// EventKind discriminates the decoded contract events the reducer understands.
type EventKind string

const (
	EventDeposit        EventKind = "Deposit"
	EventWithdraw       EventKind = "Withdraw"
	EventStaked         EventKind = "Staked"
	EventUnstaked       EventKind = "Unstaked"
	EventRewardsClaimed EventKind = "RewardsClaimed"
	EventRebalanced     EventKind = "Rebalanced"
)

// EventMeta is the ordering and provenance metadata shared by every event.
type EventMeta struct {
	TxHash      common.Hash
	LogIndex    uint64
	BlockNumber uint64
	Timestamp   uint64
}

// ID returns the record key for this event occurrence.
func (m EventMeta) ID() string {
	return EventID(m.TxHash, m.LogIndex)
}

// TxHashHex returns the lowercase hex transaction hash.
func (m EventMeta) TxHashHex() string {
	return m.TxHash.Hex()
}

// Before reports whether m was emitted strictly before other in chain order.
func (m EventMeta) Before(other EventMeta) bool {
	if m.BlockNumber != other.BlockNumber {
		return m.BlockNumber < other.BlockNumber
	}
	return m.LogIndex < other.LogIndex
}

// Payload is implemented by the per-kind event parameters.
type Payload interface {
	Kind() EventKind
}

// Event is a decoded event ready for the reducer.
type Event struct {
	Meta    EventMeta
	Payload Payload
}

func (e Event) Kind() EventKind {
	if e.Payload == nil {
		return ""
	}
	return e.Payload.Kind()
}

type DepositParams struct {
	Sender common.Address
	Owner  common.Address
	Assets *big.Int
	Shares *big.Int
}

func (DepositParams) Kind() EventKind { return EventDeposit }

type WithdrawParams struct {
	Sender   common.Address
	Receiver common.Address
	Owner    common.Address
	Assets   *big.Int
	Shares   *big.Int
}

func (WithdrawParams) Kind() EventKind { return EventWithdraw }

type StakedParams struct {
	User   common.Address
	Amount *big.Int
}

func (StakedParams) Kind() EventKind { return EventStaked }

type UnstakedParams struct {
	User   common.Address
	Amount *big.Int
}

func (UnstakedParams) Kind() EventKind { return EventUnstaked }

type RewardsClaimedParams struct {
	User   common.Address
	Amount *big.Int
}

func (RewardsClaimedParams) Kind() EventKind { return EventRewardsClaimed }

type RebalancedParams struct {
	From   common.Address
	To     common.Address
	Amount *big.Int
	Profit *big.Int
}

func (RebalancedParams) Kind() EventKind { return EventRebalanced }
