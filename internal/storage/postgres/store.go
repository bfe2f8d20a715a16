package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"math/big"
	"sync/atomic"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"vaultScope/internal/model"
	"vaultScope/internal/storage"
)

//go:embed schema.sql
var schemaSQL string

// Store provides Postgres persistence for entities.
type Store struct {
	pool   *pgxpool.Pool
	closed atomic.Bool
}

var _ storage.Store = (*Store)(nil)

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// Migrate creates the entity tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Update runs fn inside a single database transaction.
func (s *Store) Update(ctx context.Context, fn func(tx storage.Tx) error) error {
	if s.closed.Load() {
		return storage.ErrClosed
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&entityTx{q: tx})
	})
}

// View runs fn in a read-only repeatable-read transaction, so every load sees
// the same snapshot.
func (s *Store) View(ctx context.Context, fn func(r storage.Reader) error) error {
	if s.closed.Load() {
		return storage.ErrClosed
	}
	opts := pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}
	return pgx.BeginTxFunc(ctx, s.pool, opts, func(tx pgx.Tx) error {
		return fn(&entityTx{q: tx})
	})
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type entityTx struct {
	q querier
}

var _ storage.Tx = (*entityTx)(nil)

func noRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func (t *entityTx) Vault(ctx context.Context) (*model.Vault, bool, error) {
	var (
		assets, supply, price pgtype.Numeric
		deposits, withdrawals int64
		createdAt, updatedAt  int64
	)
	row := t.q.QueryRow(ctx, `
		SELECT total_assets, total_supply, share_price, deposit_count, withdrawal_count, created_at, updated_at
		FROM vaults WHERE id = $1
	`, model.VaultID)
	if err := row.Scan(&assets, &supply, &price, &deposits, &withdrawals, &createdAt, &updatedAt); err != nil {
		if noRows(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("load vault: %w", err)
	}

	v := &model.Vault{
		ID:              model.VaultID,
		DepositCount:    uint64(deposits),
		WithdrawalCount: uint64(withdrawals),
		CreatedAt:       uint64(createdAt),
		UpdatedAt:       uint64(updatedAt),
	}
	var err error
	if v.TotalAssets, err = numericToInt(assets); err != nil {
		return nil, false, fmt.Errorf("vault total_assets: %w", err)
	}
	if v.TotalSupply, err = numericToInt(supply); err != nil {
		return nil, false, fmt.Errorf("vault total_supply: %w", err)
	}
	if v.SharePrice, err = numericToDecimal(price); err != nil {
		return nil, false, fmt.Errorf("vault share_price: %w", err)
	}
	return v, true, nil
}

func (t *entityTx) SaveVault(ctx context.Context, v *model.Vault) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO vaults (
			id, total_assets, total_supply, share_price, deposit_count, withdrawal_count, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id)
		DO UPDATE SET
			total_assets = EXCLUDED.total_assets,
			total_supply = EXCLUDED.total_supply,
			share_price = EXCLUDED.share_price,
			deposit_count = EXCLUDED.deposit_count,
			withdrawal_count = EXCLUDED.withdrawal_count,
			updated_at = EXCLUDED.updated_at
	`,
		v.ID,
		intToNumeric(v.TotalAssets),
		intToNumeric(v.TotalSupply),
		decimalToNumeric(v.SharePrice),
		int64(v.DepositCount),
		int64(v.WithdrawalCount),
		int64(v.CreatedAt),
		int64(v.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("save vault: %w", err)
	}
	return nil
}

func (t *entityTx) User(ctx context.Context, id string) (*model.User, bool, error) {
	var (
		shares, assets, staked, pending pgtype.Numeric
		deposited, withdrawn            pgtype.Numeric
		deposits, withdrawals           int64
		createdAt, updatedAt            int64
	)
	row := t.q.QueryRow(ctx, `
		SELECT vault_shares, vault_assets, staked_pzt, pending_rewards, deposit_count, withdrawal_count,
			total_deposited, total_withdrawn, created_at, updated_at
		FROM users WHERE id = $1
	`, id)
	err := row.Scan(&shares, &assets, &staked, &pending, &deposits, &withdrawals, &deposited, &withdrawn, &createdAt, &updatedAt)
	if err != nil {
		if noRows(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("load user %s: %w", id, err)
	}

	u := &model.User{
		ID:              id,
		DepositCount:    uint64(deposits),
		WithdrawalCount: uint64(withdrawals),
		CreatedAt:       uint64(createdAt),
		UpdatedAt:       uint64(updatedAt),
	}
	if u.VaultShares, err = numericToInt(shares); err != nil {
		return nil, false, fmt.Errorf("user vault_shares: %w", err)
	}
	if u.VaultAssets, err = numericToInt(assets); err != nil {
		return nil, false, fmt.Errorf("user vault_assets: %w", err)
	}
	if u.StakedPZT, err = numericToInt(staked); err != nil {
		return nil, false, fmt.Errorf("user staked_pzt: %w", err)
	}
	if u.PendingRewards, err = numericToInt(pending); err != nil {
		return nil, false, fmt.Errorf("user pending_rewards: %w", err)
	}
	if u.TotalDeposited, err = numericToInt(deposited); err != nil {
		return nil, false, fmt.Errorf("user total_deposited: %w", err)
	}
	if u.TotalWithdrawn, err = numericToInt(withdrawn); err != nil {
		return nil, false, fmt.Errorf("user total_withdrawn: %w", err)
	}
	return u, true, nil
}

func (t *entityTx) SaveUser(ctx context.Context, u *model.User) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO users (
			id, vault_shares, vault_assets, staked_pzt, pending_rewards, deposit_count, withdrawal_count,
			total_deposited, total_withdrawn, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id)
		DO UPDATE SET
			vault_shares = EXCLUDED.vault_shares,
			vault_assets = EXCLUDED.vault_assets,
			staked_pzt = EXCLUDED.staked_pzt,
			pending_rewards = EXCLUDED.pending_rewards,
			deposit_count = EXCLUDED.deposit_count,
			withdrawal_count = EXCLUDED.withdrawal_count,
			total_deposited = EXCLUDED.total_deposited,
			total_withdrawn = EXCLUDED.total_withdrawn,
			updated_at = EXCLUDED.updated_at
	`,
		u.ID,
		intToNumeric(u.VaultShares),
		intToNumeric(u.VaultAssets),
		intToNumeric(u.StakedPZT),
		intToNumeric(u.PendingRewards),
		int64(u.DepositCount),
		int64(u.WithdrawalCount),
		intToNumeric(u.TotalDeposited),
		intToNumeric(u.TotalWithdrawn),
		int64(u.CreatedAt),
		int64(u.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("save user %s: %w", u.ID, err)
	}
	return nil
}

func (t *entityTx) StakingUser(ctx context.Context, id string) (*model.StakingUser, bool, error) {
	var (
		staked, claimed      pgtype.Numeric
		stakes, unstakes     int64
		createdAt, updatedAt int64
	)
	row := t.q.QueryRow(ctx, `
		SELECT staked_amount, rewards_claimed, stake_count, unstake_count, created_at, updated_at
		FROM staking_users WHERE id = $1
	`, id)
	err := row.Scan(&staked, &claimed, &stakes, &unstakes, &createdAt, &updatedAt)
	if err != nil {
		if noRows(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("load staking user %s: %w", id, err)
	}

	u := &model.StakingUser{
		ID:           id,
		StakeCount:   uint64(stakes),
		UnstakeCount: uint64(unstakes),
		CreatedAt:    uint64(createdAt),
		UpdatedAt:    uint64(updatedAt),
	}
	if u.StakedAmount, err = numericToInt(staked); err != nil {
		return nil, false, fmt.Errorf("staking user staked_amount: %w", err)
	}
	if u.RewardsClaimed, err = numericToInt(claimed); err != nil {
		return nil, false, fmt.Errorf("staking user rewards_claimed: %w", err)
	}
	return u, true, nil
}

func (t *entityTx) SaveStakingUser(ctx context.Context, u *model.StakingUser) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO staking_users (
			id, staked_amount, rewards_claimed, stake_count, unstake_count, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id)
		DO UPDATE SET
			staked_amount = EXCLUDED.staked_amount,
			rewards_claimed = EXCLUDED.rewards_claimed,
			stake_count = EXCLUDED.stake_count,
			unstake_count = EXCLUDED.unstake_count,
			updated_at = EXCLUDED.updated_at
	`,
		u.ID,
		intToNumeric(u.StakedAmount),
		intToNumeric(u.RewardsClaimed),
		int64(u.StakeCount),
		int64(u.UnstakeCount),
		int64(u.CreatedAt),
		int64(u.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("save staking user %s: %w", u.ID, err)
	}
	return nil
}

// vaultFlow is the shared row shape of deposits and withdrawals.
type vaultFlow struct {
	user           string
	assets, shares *big.Int
	timestamp      uint64
	blockNumber    uint64
	txHash         string
}

func (t *entityTx) loadFlow(ctx context.Context, table, id string) (vaultFlow, bool, error) {
	var (
		f                      vaultFlow
		assets, shares         pgtype.Numeric
		timestamp, blockNumber int64
	)
	row := t.q.QueryRow(ctx, `
		SELECT user_id, assets, shares, timestamp, block_number, transaction_hash
		FROM `+table+` WHERE id = $1
	`, id)
	err := row.Scan(&f.user, &assets, &shares, &timestamp, &blockNumber, &f.txHash)
	if err != nil {
		if noRows(err) {
			return vaultFlow{}, false, nil
		}
		return vaultFlow{}, false, fmt.Errorf("load %s %s: %w", table, id, err)
	}
	if f.assets, err = numericToInt(assets); err != nil {
		return vaultFlow{}, false, fmt.Errorf("%s assets: %w", table, err)
	}
	if f.shares, err = numericToInt(shares); err != nil {
		return vaultFlow{}, false, fmt.Errorf("%s shares: %w", table, err)
	}
	f.timestamp = uint64(timestamp)
	f.blockNumber = uint64(blockNumber)
	return f, true, nil
}

func (t *entityTx) saveFlow(ctx context.Context, table, id string, f vaultFlow) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO `+table+` (
			id, user_id, assets, shares, timestamp, block_number, transaction_hash
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`,
		id,
		f.user,
		intToNumeric(f.assets),
		intToNumeric(f.shares),
		int64(f.timestamp),
		int64(f.blockNumber),
		f.txHash,
	)
	if err != nil {
		return fmt.Errorf("save %s %s: %w", table, id, err)
	}
	return nil
}

func (t *entityTx) Deposit(ctx context.Context, id string) (*model.Deposit, bool, error) {
	f, ok, err := t.loadFlow(ctx, "deposits", id)
	if err != nil || !ok {
		return nil, false, err
	}
	return &model.Deposit{
		ID:              id,
		User:            f.user,
		Assets:          f.assets,
		Shares:          f.shares,
		Timestamp:       f.timestamp,
		BlockNumber:     f.blockNumber,
		TransactionHash: f.txHash,
	}, true, nil
}

func (t *entityTx) SaveDeposit(ctx context.Context, d *model.Deposit) error {
	return t.saveFlow(ctx, "deposits", d.ID, vaultFlow{
		user:        d.User,
		assets:      d.Assets,
		shares:      d.Shares,
		timestamp:   d.Timestamp,
		blockNumber: d.BlockNumber,
		txHash:      d.TransactionHash,
	})
}

func (t *entityTx) Withdrawal(ctx context.Context, id string) (*model.Withdrawal, bool, error) {
	f, ok, err := t.loadFlow(ctx, "withdrawals", id)
	if err != nil || !ok {
		return nil, false, err
	}
	return &model.Withdrawal{
		ID:              id,
		User:            f.user,
		Assets:          f.assets,
		Shares:          f.shares,
		Timestamp:       f.timestamp,
		BlockNumber:     f.blockNumber,
		TransactionHash: f.txHash,
	}, true, nil
}

func (t *entityTx) SaveWithdrawal(ctx context.Context, w *model.Withdrawal) error {
	return t.saveFlow(ctx, "withdrawals", w.ID, vaultFlow{
		user:        w.User,
		assets:      w.Assets,
		shares:      w.Shares,
		timestamp:   w.Timestamp,
		blockNumber: w.BlockNumber,
		txHash:      w.TransactionHash,
	})
}

func (t *entityTx) StakeEvent(ctx context.Context, id string) (*model.StakeEvent, bool, error) {
	var (
		e                      model.StakeEvent
		amount                 pgtype.Numeric
		typ                    string
		timestamp, blockNumber int64
	)
	row := t.q.QueryRow(ctx, `
		SELECT user_id, amount, type, timestamp, block_number, transaction_hash
		FROM stake_events WHERE id = $1
	`, id)
	err := row.Scan(&e.User, &amount, &typ, &timestamp, &blockNumber, &e.TransactionHash)
	if err != nil {
		if noRows(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("load stake event %s: %w", id, err)
	}
	if e.Amount, err = numericToInt(amount); err != nil {
		return nil, false, fmt.Errorf("stake event amount: %w", err)
	}
	if e.Type, err = model.ParseStakeEventType(typ); err != nil {
		return nil, false, err
	}
	e.ID = id
	e.Timestamp = uint64(timestamp)
	e.BlockNumber = uint64(blockNumber)
	return &e, true, nil
}

func (t *entityTx) SaveStakeEvent(ctx context.Context, e *model.StakeEvent) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO stake_events (
			id, user_id, amount, type, timestamp, block_number, transaction_hash
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`,
		e.ID,
		e.User,
		intToNumeric(e.Amount),
		string(e.Type),
		int64(e.Timestamp),
		int64(e.BlockNumber),
		e.TransactionHash,
	)
	if err != nil {
		return fmt.Errorf("save stake event %s: %w", e.ID, err)
	}
	return nil
}

func (t *entityTx) Rebalance(ctx context.Context, id string) (*model.Rebalance, bool, error) {
	var (
		r                      model.Rebalance
		amount, profit         pgtype.Numeric
		timestamp, blockNumber int64
	)
	row := t.q.QueryRow(ctx, `
		SELECT from_strategy, to_strategy, amount, profit, timestamp, block_number, transaction_hash
		FROM rebalances WHERE id = $1
	`, id)
	err := row.Scan(&r.FromStrategy, &r.ToStrategy, &amount, &profit, &timestamp, &blockNumber, &r.TransactionHash)
	if err != nil {
		if noRows(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("load rebalance %s: %w", id, err)
	}
	if r.Amount, err = numericToInt(amount); err != nil {
		return nil, false, fmt.Errorf("rebalance amount: %w", err)
	}
	if r.Profit, err = numericToInt(profit); err != nil {
		return nil, false, fmt.Errorf("rebalance profit: %w", err)
	}
	r.ID = id
	r.Timestamp = uint64(timestamp)
	r.BlockNumber = uint64(blockNumber)
	return &r, true, nil
}

func (t *entityTx) SaveRebalance(ctx context.Context, r *model.Rebalance) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO rebalances (
			id, from_strategy, to_strategy, amount, profit, timestamp, block_number, transaction_hash
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`,
		r.ID,
		r.FromStrategy,
		r.ToStrategy,
		intToNumeric(r.Amount),
		intToNumeric(r.Profit),
		int64(r.Timestamp),
		int64(r.BlockNumber),
		r.TransactionHash,
	)
	if err != nil {
		return fmt.Errorf("save rebalance %s: %w", r.ID, err)
	}
	return nil
}

func (t *entityTx) IsApplied(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	row := t.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM applied_events WHERE id = $1)`, eventID)
	if err := row.Scan(&exists); err != nil {
		return false, fmt.Errorf("load applied %s: %w", eventID, err)
	}
	return exists, nil
}

func (t *entityTx) MarkApplied(ctx context.Context, eventID string) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO applied_events (id, applied_at) VALUES ($1, now())
		ON CONFLICT (id) DO NOTHING
	`, eventID)
	if err != nil {
		return fmt.Errorf("mark applied %s: %w", eventID, err)
	}
	return nil
}
