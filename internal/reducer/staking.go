package reducer

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"vaultScope/internal/model"
	"vaultScope/internal/storage"
)

// OnStaked adds a stake to the staker's balance and records it.
func (r *Reducer) OnStaked(ctx context.Context, tx storage.Tx, meta model.EventMeta, p model.StakedParams) error {
	return r.applyStake(ctx, tx, meta, p.User, p.Amount, model.StakeEventStake)
}

// OnUnstaked removes an unstake from the staker's balance and records it.
func (r *Reducer) OnUnstaked(ctx context.Context, tx storage.Tx, meta model.EventMeta, p model.UnstakedParams) error {
	return r.applyStake(ctx, tx, meta, p.User, p.Amount, model.StakeEventUnstake)
}

func (r *Reducer) applyStake(ctx context.Context, tx storage.Tx, meta model.EventMeta, addr common.Address, amount *big.Int, typ model.StakeEventType) error {
	user, err := getOrCreateStakingUser(ctx, tx, model.AccountID(addr), meta.Timestamp)
	if err != nil {
		return err
	}

	record := &model.StakeEvent{
		ID:              meta.ID(),
		User:            user.ID,
		Amount:          amount,
		Type:            typ,
		Timestamp:       meta.Timestamp,
		BlockNumber:     meta.BlockNumber,
		TransactionHash: meta.TxHashHex(),
	}
	if err := tx.SaveStakeEvent(ctx, record); err != nil {
		return err
	}

	switch typ {
	case model.StakeEventStake:
		user.StakedAmount = add(user.StakedAmount, amount)
		user.StakeCount++
	case model.StakeEventUnstake:
		user.StakedAmount = sub(user.StakedAmount, amount)
		user.UnstakeCount++
	}
	user.UpdatedAt = meta.Timestamp
	if err := tx.SaveStakingUser(ctx, user); err != nil {
		return err
	}

	r.logger.Debug("stake event applied",
		zap.String("id", record.ID),
		zap.String("user", user.ID),
		zap.String("type", string(typ)),
		zap.String("amount", amount.String()),
		zap.String("staked_amount", user.StakedAmount.String()),
	)
	return nil
}

// OnRewardsClaimed credits claimed rewards. Claims leave no event record.
func (r *Reducer) OnRewardsClaimed(ctx context.Context, tx storage.Tx, meta model.EventMeta, p model.RewardsClaimedParams) error {
	user, err := getOrCreateStakingUser(ctx, tx, model.AccountID(p.User), meta.Timestamp)
	if err != nil {
		return err
	}

	user.RewardsClaimed = add(user.RewardsClaimed, p.Amount)
	user.UpdatedAt = meta.Timestamp
	if err := tx.SaveStakingUser(ctx, user); err != nil {
		return err
	}

	r.logger.Debug("rewards claimed",
		zap.String("user", user.ID),
		zap.String("amount", p.Amount.String()),
	)
	return nil
}
