// Package storagetest holds the behavioural checks every storage.Store backend must pass.
package storagetest

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaultScope/internal/model"
	"vaultScope/internal/reducer"
	"vaultScope/internal/storage"
)

const (
	userA  = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	txHash = "0x1111111111111111111111111111111111111111111111111111111111111111"
)

// Run executes the suite against a fresh store returned by newStore.
func Run(t *testing.T, newStore func(t *testing.T) storage.Store) {
	t.Run("absent keys", func(t *testing.T) { testAbsent(t, newStore(t)) })
	t.Run("round trip", func(t *testing.T) { testRoundTrip(t, newStore(t)) })
	t.Run("read your writes", func(t *testing.T) { testReadYourWrites(t, newStore(t)) })
	t.Run("rollback on error", func(t *testing.T) { testRollback(t, newStore(t)) })
	t.Run("applied markers", func(t *testing.T) { testApplied(t, newStore(t)) })
	t.Run("reducer scenario", func(t *testing.T) { testReducerScenario(t, newStore(t)) })
	t.Run("closed", func(t *testing.T) { testClosed(t, newStore(t)) })
}

func bigInt(t *testing.T, s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	require.True(t, ok, s)
	return v
}

func testAbsent(t *testing.T, s storage.Store) {
	ctx := context.Background()
	err := s.View(ctx, func(r storage.Reader) error {
		_, ok, err := r.Vault(ctx)
		require.NoError(t, err)
		assert.False(t, ok)

		_, ok, err = r.User(ctx, userA)
		require.NoError(t, err)
		assert.False(t, ok)

		_, ok, err = r.StakingUser(ctx, userA)
		require.NoError(t, err)
		assert.False(t, ok)

		_, ok, err = r.Deposit(ctx, txHash+"-0")
		require.NoError(t, err)
		assert.False(t, ok)
		return nil
	})
	require.NoError(t, err)
}

func testRoundTrip(t *testing.T, s storage.Store) {
	ctx := context.Background()

	vault := model.NewVault()
	vault.TotalAssets = bigInt(t, "4000000000000000000000000000001")
	vault.TotalSupply = bigInt(t, "3000000000000000000000000000000")
	vault.SharePrice = decimal.RequireFromString("1.333333333333333333")
	vault.DepositCount = 3
	vault.WithdrawalCount = 1
	vault.CreatedAt = 1700000000
	vault.UpdatedAt = 1700000100

	user := model.NewUser(userA)
	user.VaultShares = big.NewInt(-5)
	user.VaultAssets = big.NewInt(10)
	user.TotalDeposited = big.NewInt(20)
	user.TotalWithdrawn = big.NewInt(10)
	user.DepositCount = 2
	user.WithdrawalCount = 1
	user.UpdatedAt = 1700000100

	staker := model.NewStakingUser(userA)
	staker.StakedAmount = big.NewInt(6)
	staker.RewardsClaimed = big.NewInt(3)
	staker.StakeCount = 1
	staker.UnstakeCount = 1

	deposit := &model.Deposit{ID: txHash + "-0", User: userA, Assets: big.NewInt(100), Shares: big.NewInt(99), Timestamp: 1, BlockNumber: 2, TransactionHash: txHash}
	withdrawal := &model.Withdrawal{ID: txHash + "-1", User: userA, Assets: big.NewInt(50), Shares: big.NewInt(49), Timestamp: 3, BlockNumber: 4, TransactionHash: txHash}
	stake := &model.StakeEvent{ID: txHash + "-2", User: userA, Amount: big.NewInt(7), Type: model.StakeEventUnstake, Timestamp: 5, BlockNumber: 6, TransactionHash: txHash}
	rebalance := &model.Rebalance{ID: txHash + "-3", FromStrategy: "0x01", ToStrategy: "0x02", Amount: big.NewInt(1000), Profit: big.NewInt(50), Timestamp: 7, BlockNumber: 8, TransactionHash: txHash}

	err := s.Update(ctx, func(tx storage.Tx) error {
		require.NoError(t, tx.SaveVault(ctx, vault))
		require.NoError(t, tx.SaveUser(ctx, user))
		require.NoError(t, tx.SaveStakingUser(ctx, staker))
		require.NoError(t, tx.SaveDeposit(ctx, deposit))
		require.NoError(t, tx.SaveWithdrawal(ctx, withdrawal))
		require.NoError(t, tx.SaveStakeEvent(ctx, stake))
		require.NoError(t, tx.SaveRebalance(ctx, rebalance))
		return nil
	})
	require.NoError(t, err)

	err = s.View(ctx, func(r storage.Reader) error {
		gotVault, ok, err := r.Vault(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, 0, vault.TotalAssets.Cmp(gotVault.TotalAssets))
		assert.Equal(t, 0, vault.TotalSupply.Cmp(gotVault.TotalSupply))
		assert.True(t, vault.SharePrice.Equal(gotVault.SharePrice), gotVault.SharePrice.String())
		assert.Equal(t, uint64(3), gotVault.DepositCount)
		assert.Equal(t, uint64(1), gotVault.WithdrawalCount)
		assert.Equal(t, uint64(1700000000), gotVault.CreatedAt)
		assert.Equal(t, uint64(1700000100), gotVault.UpdatedAt)

		gotUser, ok, err := r.User(ctx, userA)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, int64(-5), gotUser.VaultShares.Int64())
		assert.Equal(t, int64(10), gotUser.VaultAssets.Int64())
		assert.Equal(t, int64(0), gotUser.StakedPZT.Int64())
		assert.Equal(t, int64(20), gotUser.TotalDeposited.Int64())
		assert.Equal(t, int64(10), gotUser.TotalWithdrawn.Int64())
		assert.Equal(t, uint64(2), gotUser.DepositCount)

		gotStaker, ok, err := r.StakingUser(ctx, userA)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, int64(6), gotStaker.StakedAmount.Int64())
		assert.Equal(t, int64(3), gotStaker.RewardsClaimed.Int64())

		gotDeposit, ok, err := r.Deposit(ctx, deposit.ID)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, userA, gotDeposit.User)
		assert.Equal(t, int64(99), gotDeposit.Shares.Int64())
		assert.Equal(t, txHash, gotDeposit.TransactionHash)

		gotWithdrawal, ok, err := r.Withdrawal(ctx, withdrawal.ID)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, int64(50), gotWithdrawal.Assets.Int64())
		assert.Equal(t, uint64(4), gotWithdrawal.BlockNumber)

		gotStake, ok, err := r.StakeEvent(ctx, stake.ID)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, model.StakeEventUnstake, gotStake.Type)
		assert.Equal(t, int64(7), gotStake.Amount.Int64())

		gotRebalance, ok, err := r.Rebalance(ctx, rebalance.ID)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "0x01", gotRebalance.FromStrategy)
		assert.Equal(t, "0x02", gotRebalance.ToStrategy)
		assert.Equal(t, int64(50), gotRebalance.Profit.Int64())
		return nil
	})
	require.NoError(t, err)
}

func testReadYourWrites(t *testing.T, s storage.Store) {
	ctx := context.Background()
	err := s.Update(ctx, func(tx storage.Tx) error {
		u := model.NewUser(userA)
		u.VaultShares = big.NewInt(42)
		require.NoError(t, tx.SaveUser(ctx, u))

		got, ok, err := tx.User(ctx, userA)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, int64(42), got.VaultShares.Int64())

		u.VaultShares = big.NewInt(43)
		require.NoError(t, tx.SaveUser(ctx, u))
		got, _, err = tx.User(ctx, userA)
		require.NoError(t, err)
		assert.Equal(t, int64(43), got.VaultShares.Int64())
		return nil
	})
	require.NoError(t, err)
}

func testRollback(t *testing.T, s storage.Store) {
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.Update(ctx, func(tx storage.Tx) error {
		require.NoError(t, tx.SaveVault(ctx, model.NewVault()))
		require.NoError(t, tx.SaveDeposit(ctx, &model.Deposit{
			ID: txHash + "-0", User: userA, Assets: big.NewInt(1), Shares: big.NewInt(1), TransactionHash: txHash,
		}))
		require.NoError(t, tx.MarkApplied(ctx, txHash+"-0"))
		return boom
	})
	require.ErrorIs(t, err, boom)

	err = s.View(ctx, func(r storage.Reader) error {
		_, ok, err := r.Vault(ctx)
		require.NoError(t, err)
		assert.False(t, ok)

		_, ok, err = r.Deposit(ctx, txHash+"-0")
		require.NoError(t, err)
		assert.False(t, ok)

		applied, err := r.IsApplied(ctx, txHash+"-0")
		require.NoError(t, err)
		assert.False(t, applied)
		return nil
	})
	require.NoError(t, err)
}

func testApplied(t *testing.T, s storage.Store) {
	ctx := context.Background()
	id := txHash + "-9"

	err := s.Update(ctx, func(tx storage.Tx) error {
		applied, err := tx.IsApplied(ctx, id)
		require.NoError(t, err)
		assert.False(t, applied)
		return tx.MarkApplied(ctx, id)
	})
	require.NoError(t, err)

	err = s.View(ctx, func(r storage.Reader) error {
		applied, err := r.IsApplied(ctx, id)
		require.NoError(t, err)
		assert.True(t, applied)

		applied, err = r.IsApplied(ctx, txHash+"-10")
		require.NoError(t, err)
		assert.False(t, applied)
		return nil
	})
	require.NoError(t, err)
}

func testReducerScenario(t *testing.T, s storage.Store) {
	ctx := context.Background()
	a := common.HexToAddress(userA)
	b := common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	r := reducer.New(nil)

	meta := func(n int64) model.EventMeta {
		return model.EventMeta{
			TxHash:      common.BigToHash(big.NewInt(n)),
			BlockNumber: uint64(100 + n),
			Timestamp:   uint64(1700000000 + n),
		}
	}
	events := []model.Event{
		{Meta: meta(1), Payload: model.DepositParams{Owner: a, Assets: big.NewInt(100), Shares: big.NewInt(100)}},
		{Meta: meta(2), Payload: model.DepositParams{Owner: b, Assets: big.NewInt(50), Shares: big.NewInt(50)}},
		{Meta: meta(3), Payload: model.WithdrawParams{Owner: a, Receiver: a, Assets: big.NewInt(100), Shares: big.NewInt(100)}},
		{Meta: meta(4), Payload: model.StakedParams{User: b, Amount: big.NewInt(10)}},
		{Meta: meta(5), Payload: model.UnstakedParams{User: b, Amount: big.NewInt(4)}},
		{Meta: meta(6), Payload: model.RewardsClaimedParams{User: b, Amount: big.NewInt(2)}},
		{Meta: meta(7), Payload: model.RebalancedParams{From: a, To: b, Amount: big.NewInt(1000), Profit: big.NewInt(50)}},
	}
	for _, ev := range events {
		require.NoError(t, s.Update(ctx, func(tx storage.Tx) error {
			return r.Apply(ctx, tx, ev)
		}))
	}

	err := s.View(ctx, func(rd storage.Reader) error {
		v, ok, err := rd.Vault(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "50", v.TotalAssets.String())
		assert.Equal(t, "50", v.TotalSupply.String())
		assert.True(t, decimal.NewFromInt(1).Equal(v.SharePrice), v.SharePrice.String())
		assert.Equal(t, uint64(2), v.DepositCount)
		assert.Equal(t, uint64(1), v.WithdrawalCount)
		assert.Equal(t, uint64(1700000001), v.CreatedAt)
		assert.Equal(t, uint64(1700000003), v.UpdatedAt)

		ua, ok, err := rd.User(ctx, model.AccountID(a))
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "0", ua.VaultShares.String())
		assert.Equal(t, "100", ua.TotalWithdrawn.String())

		sb, ok, err := rd.StakingUser(ctx, model.AccountID(b))
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "6", sb.StakedAmount.String())
		assert.Equal(t, "2", sb.RewardsClaimed.String())
		assert.Equal(t, uint64(1), sb.StakeCount)
		assert.Equal(t, uint64(1), sb.UnstakeCount)

		rb, ok, err := rd.Rebalance(ctx, meta(7).ID())
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, model.AccountID(a), rb.FromStrategy)
		return nil
	})
	require.NoError(t, err)
}

func testClosed(t *testing.T, s storage.Store) {
	require.NoError(t, s.Close())

	err := s.Update(context.Background(), func(tx storage.Tx) error { return nil })
	assert.ErrorIs(t, err, storage.ErrClosed)
}
