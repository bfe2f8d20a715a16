package model

// RejectedEvent records an input line that never reached the reducer.
type RejectedEvent struct {
	ChainID     uint64 `json:"chain_id"`
	BlockNumber uint64 `json:"block_number"`
	TxHash      string `json:"tx_hash"`
	LogIndex    uint64 `json:"log_index"`
	Address     string `json:"address"`
	EventName   string `json:"event_name"`
	Error       string `json:"error"`
}

// RejectedFromRecord copies the identifying fields of record.
func RejectedFromRecord(record TypedEventRecord, err error) RejectedEvent {
	return RejectedEvent{
		ChainID:     record.ChainID,
		BlockNumber: record.BlockNumber,
		TxHash:      record.TxHash,
		LogIndex:    record.LogIndex,
		Address:     record.Address,
		EventName:   record.EventName,
		Error:       err.Error(),
	}
}
