package reducer

import (
	"context"

	"go.uber.org/zap"

	"vaultScope/internal/model"
	"vaultScope/internal/storage"
)

// OnRebalanced appends a Rebalance record. No aggregate changes.
func (r *Reducer) OnRebalanced(ctx context.Context, tx storage.Tx, meta model.EventMeta, p model.RebalancedParams) error {
	record := &model.Rebalance{
		ID:              meta.ID(),
		FromStrategy:    model.AccountID(p.From),
		ToStrategy:      model.AccountID(p.To),
		Amount:          p.Amount,
		Profit:          p.Profit,
		Timestamp:       meta.Timestamp,
		BlockNumber:     meta.BlockNumber,
		TransactionHash: meta.TxHashHex(),
	}
	if err := tx.SaveRebalance(ctx, record); err != nil {
		return err
	}

	r.logger.Debug("rebalance recorded",
		zap.String("id", record.ID),
		zap.String("from", record.FromStrategy),
		zap.String("to", record.ToStrategy),
		zap.String("amount", p.Amount.String()),
		zap.String("profit", p.Profit.String()),
	)
	return nil
}
