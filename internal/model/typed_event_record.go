package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ErrMalformedEvent marks input that is rejected before it reaches the reducer.
var ErrMalformedEvent = errors.New("malformed event")

// TypedEventRecord is the JSON representation of a decoded contract event.
type TypedEventRecord struct {
	ChainID     uint64          `json:"chain_id"`
	BlockNumber uint64          `json:"block_number"`
	BlockHash   string          `json:"block_hash"`
	TxHash      string          `json:"tx_hash"`
	LogIndex    uint64          `json:"log_index"`
	Address     string          `json:"address"`
	EventName   string          `json:"event_name"`
	Timestamp   uint64          `json:"timestamp"`
	Decoded     json.RawMessage `json:"decoded"`
}

// ParseEvent validates a record and converts it into an Event.
func ParseEvent(record TypedEventRecord) (Event, error) {
	txHash, err := parseTxHash(record.TxHash)
	if err != nil {
		return Event{}, err
	}
	meta := EventMeta{
		TxHash:      txHash,
		LogIndex:    record.LogIndex,
		BlockNumber: record.BlockNumber,
		Timestamp:   record.Timestamp,
	}

	kind := NormalizeEventName(record.EventName)
	if kind == "" {
		return Event{}, malformed("unsupported event name: %q", record.EventName)
	}
	if len(bytes.TrimSpace(record.Decoded)) == 0 {
		return Event{}, malformed("%s: missing decoded payload", kind)
	}

	var payload Payload
	switch kind {
	case EventDeposit:
		payload, err = parseDeposit(record.Decoded)
	case EventWithdraw:
		payload, err = parseWithdraw(record.Decoded)
	case EventStaked, EventUnstaked, EventRewardsClaimed:
		payload, err = parseStaking(kind, record.Decoded)
	case EventRebalanced:
		payload, err = parseRebalanced(record.Decoded)
	}
	if err != nil {
		return Event{}, fmt.Errorf("%s: %w", kind, err)
	}

	return Event{Meta: meta, Payload: payload}, nil
}

// NormalizeEventName maps an event name to its EventKind, ignoring case.
// It returns "" for unknown names.
func NormalizeEventName(name string) EventKind {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "deposit":
		return EventDeposit
	case "withdraw":
		return EventWithdraw
	case "staked":
		return EventStaked
	case "unstaked":
		return EventUnstaked
	case "rewardsclaimed":
		return EventRewardsClaimed
	case "rebalanced":
		return EventRebalanced
	default:
		return ""
	}
}

func parseDeposit(raw json.RawMessage) (DepositParams, error) {
	var data DepositEventData
	if err := json.Unmarshal(raw, &data); err != nil {
		return DepositParams{}, malformed("decode payload: %v", err)
	}

	var (
		p   DepositParams
		err error
	)
	if p.Sender, err = parseAddress("sender", data.Sender, true); err != nil {
		return DepositParams{}, err
	}
	if p.Owner, err = parseAddress("owner", data.Owner, false); err != nil {
		return DepositParams{}, err
	}
	if p.Assets, err = parseAmount("assets", data.Assets); err != nil {
		return DepositParams{}, err
	}
	if p.Shares, err = parseAmount("shares", data.Shares); err != nil {
		return DepositParams{}, err
	}
	return p, nil
}

func parseWithdraw(raw json.RawMessage) (WithdrawParams, error) {
	var data WithdrawEventData
	if err := json.Unmarshal(raw, &data); err != nil {
		return WithdrawParams{}, malformed("decode payload: %v", err)
	}

	var (
		p   WithdrawParams
		err error
	)
	if p.Sender, err = parseAddress("sender", data.Sender, true); err != nil {
		return WithdrawParams{}, err
	}
	if p.Receiver, err = parseAddress("receiver", data.Receiver, true); err != nil {
		return WithdrawParams{}, err
	}
	if p.Owner, err = parseAddress("owner", data.Owner, false); err != nil {
		return WithdrawParams{}, err
	}
	if p.Assets, err = parseAmount("assets", data.Assets); err != nil {
		return WithdrawParams{}, err
	}
	if p.Shares, err = parseAmount("shares", data.Shares); err != nil {
		return WithdrawParams{}, err
	}
	return p, nil
}

func parseStaking(kind EventKind, raw json.RawMessage) (Payload, error) {
	var data StakingEventData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, malformed("decode payload: %v", err)
	}

	user, err := parseAddress("user", data.User, false)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount("amount", data.Amount)
	if err != nil {
		return nil, err
	}

	switch kind {
	case EventStaked:
		return StakedParams{User: user, Amount: amount}, nil
	case EventUnstaked:
		return UnstakedParams{User: user, Amount: amount}, nil
	default:
		return RewardsClaimedParams{User: user, Amount: amount}, nil
	}
}

func parseRebalanced(raw json.RawMessage) (RebalancedParams, error) {
	var data RebalancedEventData
	if err := json.Unmarshal(raw, &data); err != nil {
		return RebalancedParams{}, malformed("decode payload: %v", err)
	}

	var (
		p   RebalancedParams
		err error
	)
	if p.From, err = parseAddress("from", data.From, false); err != nil {
		return RebalancedParams{}, err
	}
	if p.To, err = parseAddress("to", data.To, false); err != nil {
		return RebalancedParams{}, err
	}
	if p.Amount, err = parseAmount("amount", data.Amount); err != nil {
		return RebalancedParams{}, err
	}
	if p.Profit, err = parseAmount("profit", data.Profit); err != nil {
		return RebalancedParams{}, err
	}
	return p, nil
}

func parseTxHash(input string) (common.Hash, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return common.Hash{}, malformed("missing tx hash")
	}
	data, err := hexutil.Decode(input)
	if err != nil {
		return common.Hash{}, malformed("invalid tx hash: %s", input)
	}
	if len(data) != common.HashLength {
		return common.Hash{}, malformed("invalid tx hash length: %s", input)
	}
	return common.BytesToHash(data), nil
}

func parseAddress(field, input string, optional bool) (common.Address, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		if optional {
			return common.Address{}, nil
		}
		return common.Address{}, malformed("missing %s", field)
	}
	if !common.IsHexAddress(input) {
		return common.Address{}, malformed("invalid %s address: %s", field, input)
	}
	return common.HexToAddress(input), nil
}

func parseAmount(field, input string) (*big.Int, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, malformed("missing %s", field)
	}
	value, ok := new(big.Int).SetString(input, 10)
	if !ok {
		return nil, malformed("invalid %s: %s", field, input)
	}
	if value.Sign() < 0 {
		return nil, malformed("negative %s: %s", field, input)
	}
	return value, nil
}

func malformed(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMalformedEvent, fmt.Sprintf(format, args...))
}
