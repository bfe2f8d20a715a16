package model

import (
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// VaultID is the key of the singleton Vault aggregate.
const VaultID = "vault"

// EventID returns the record key for an event occurrence: the lowercase tx hash,
// a dash, and the decimal log index.
func EventID(txHash common.Hash, logIndex uint64) string {
	return strings.ToLower(txHash.Hex()) + "-" + strconv.FormatUint(logIndex, 10)
}

// AccountID returns the aggregate key for an account address.
func AccountID(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}
