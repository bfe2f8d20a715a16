package storage

import (
	"context"
	"errors"

	"vaultScope/internal/model"
)

// ErrClosed is returned by a Store after Close.
var ErrClosed = errors.New("store is closed")

// Reader loads entities by key. A missing key returns found == false and no error.
type Reader interface {
	Vault(ctx context.Context) (*model.Vault, bool, error)
	User(ctx context.Context, id string) (*model.User, bool, error)
	StakingUser(ctx context.Context, id string) (*model.StakingUser, bool, error)
	Deposit(ctx context.Context, id string) (*model.Deposit, bool, error)
	Withdrawal(ctx context.Context, id string) (*model.Withdrawal, bool, error)
	StakeEvent(ctx context.Context, id string) (*model.StakeEvent, bool, error)
	Rebalance(ctx context.Context, id string) (*model.Rebalance, bool, error)
	IsApplied(ctx context.Context, eventID string) (bool, error)
}

// Tx is a Reader that can also save entities. Saves are visible to later
// loads within the same Tx.
type Tx interface {
	Reader
	SaveVault(ctx context.Context, v *model.Vault) error
	SaveUser(ctx context.Context, u *model.User) error
	SaveStakingUser(ctx context.Context, u *model.StakingUser) error
	SaveDeposit(ctx context.Context, d *model.Deposit) error
	SaveWithdrawal(ctx context.Context, w *model.Withdrawal) error
	SaveStakeEvent(ctx context.Context, e *model.StakeEvent) error
	SaveRebalance(ctx context.Context, r *model.Rebalance) error
	MarkApplied(ctx context.Context, eventID string) error
}

// Store is the entity store. Update applies every save made by fn atomically,
// or none of them if fn returns an error.
type Store interface {
	Update(ctx context.Context, fn func(tx Tx) error) error
	View(ctx context.Context, fn func(r Reader) error) error
	Close() error
}
