// Package reducer applies decoded vault, staking and rebalance events to the entity store.
//
// Every handler is a load-or-create of the aggregates it touches, a set of
// additive updates, and a save. Handlers never validate balances: a withdrawal
// larger than the recorded position drives the position negative.
package reducer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"vaultScope/internal/model"
	"vaultScope/internal/storage"
)

// Reducer routes events to their handlers.
type Reducer struct {
	logger *zap.Logger
}

func New(logger *zap.Logger) *Reducer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reducer{logger: logger}
}

// Apply applies a single event. Every save goes through tx, so the caller decides
// whether the effects are committed.
func (r *Reducer) Apply(ctx context.Context, tx storage.Tx, ev model.Event) error {
	switch p := ev.Payload.(type) {
	case model.DepositParams:
		return r.OnDeposit(ctx, tx, ev.Meta, p)
	case model.WithdrawParams:
		return r.OnWithdraw(ctx, tx, ev.Meta, p)
	case model.StakedParams:
		return r.OnStaked(ctx, tx, ev.Meta, p)
	case model.UnstakedParams:
		return r.OnUnstaked(ctx, tx, ev.Meta, p)
	case model.RewardsClaimedParams:
		return r.OnRewardsClaimed(ctx, tx, ev.Meta, p)
	case model.RebalancedParams:
		return r.OnRebalanced(ctx, tx, ev.Meta, p)
	default:
		return fmt.Errorf("unsupported event payload %T", ev.Payload)
	}
}

func getOrCreate[T any](ctx context.Context, load func(context.Context) (*T, bool, error), factory func() *T) (*T, bool, error) {
	v, ok, err := load(ctx)
	if err != nil {
		return nil, false, err
	}
	if ok {
		return v, false, nil
	}
	return factory(), true, nil
}

func getOrCreateVault(ctx context.Context, tx storage.Tx, ts uint64) (*model.Vault, error) {
	v, created, err := getOrCreate(ctx, tx.Vault, model.NewVault)
	if err != nil {
		return nil, fmt.Errorf("load vault: %w", err)
	}
	if created {
		v.CreatedAt = ts
	}
	return v, nil
}

func getOrCreateUser(ctx context.Context, tx storage.Tx, id string, ts uint64) (*model.User, error) {
	load := func(ctx context.Context) (*model.User, bool, error) { return tx.User(ctx, id) }
	u, created, err := getOrCreate(ctx, load, func() *model.User { return model.NewUser(id) })
	if err != nil {
		return nil, fmt.Errorf("load user %s: %w", id, err)
	}
	if created {
		u.CreatedAt = ts
	}
	return u, nil
}

func getOrCreateStakingUser(ctx context.Context, tx storage.Tx, id string, ts uint64) (*model.StakingUser, error) {
	load := func(ctx context.Context) (*model.StakingUser, bool, error) { return tx.StakingUser(ctx, id) }
	u, created, err := getOrCreate(ctx, load, func() *model.StakingUser { return model.NewStakingUser(id) })
	if err != nil {
		return nil, fmt.Errorf("load staking user %s: %w", id, err)
	}
	if created {
		u.CreatedAt = ts
	}
	return u, nil
}
