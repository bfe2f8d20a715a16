package reducer

import (
	"context"
	"errors"
	"math/big"
	"math/rand"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaultScope/internal/model"
	"vaultScope/internal/storage"
)

var (
	addrA  = common.HexToAddress("0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")
	addrB  = common.HexToAddress("0xBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB")
	addrC  = common.HexToAddress("0xCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCC")
	strat1 = common.HexToAddress("0x1000000000000000000000000000000000000001")
	strat2 = common.HexToAddress("0x2000000000000000000000000000000000000002")
)

func tx(n int64) common.Hash {
	return common.BigToHash(big.NewInt(n))
}

func meta(txn int64, logIndex uint64) model.EventMeta {
	return model.EventMeta{
		TxHash:      tx(txn),
		LogIndex:    logIndex,
		BlockNumber: uint64(1000 + txn),
		Timestamp:   uint64(1700000000 + txn),
	}
}

func deposit(owner common.Address, assets, shares int64, m model.EventMeta) model.Event {
	return model.Event{Meta: m, Payload: model.DepositParams{Owner: owner, Assets: big.NewInt(assets), Shares: big.NewInt(shares)}}
}

func withdraw(owner common.Address, assets, shares int64, m model.EventMeta) model.Event {
	return model.Event{Meta: m, Payload: model.WithdrawParams{Owner: owner, Receiver: owner, Assets: big.NewInt(assets), Shares: big.NewInt(shares)}}
}

func apply(t *testing.T, s storage.Store, events ...model.Event) {
	t.Helper()
	r := New(nil)
	for _, ev := range events {
		err := s.Update(context.Background(), func(tx storage.Tx) error {
			return r.Apply(context.Background(), tx, ev)
		})
		require.NoError(t, err)
	}
}

func loadVault(t *testing.T, s storage.Store) *model.Vault {
	t.Helper()
	var v *model.Vault
	err := s.View(context.Background(), func(r storage.Reader) error {
		got, ok, err := r.Vault(context.Background())
		require.True(t, ok, "vault not found")
		v = got
		return err
	})
	require.NoError(t, err)
	return v
}

func loadUser(t *testing.T, s storage.Store, addr common.Address) *model.User {
	t.Helper()
	var u *model.User
	err := s.View(context.Background(), func(r storage.Reader) error {
		got, ok, err := r.User(context.Background(), model.AccountID(addr))
		require.True(t, ok, "user not found")
		u = got
		return err
	})
	require.NoError(t, err)
	return u
}

func loadStakingUser(t *testing.T, s storage.Store, addr common.Address) *model.StakingUser {
	t.Helper()
	var u *model.StakingUser
	err := s.View(context.Background(), func(r storage.Reader) error {
		got, ok, err := r.StakingUser(context.Background(), model.AccountID(addr))
		require.True(t, ok, "staking user not found")
		u = got
		return err
	})
	require.NoError(t, err)
	return u
}

func assertInt(t *testing.T, want int64, got *big.Int, msgAndArgs ...interface{}) {
	t.Helper()
	assert.Equal(t, big.NewInt(want).String(), got.String(), msgAndArgs...)
}

func assertPrice(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "share price %s, want %s", got, want)
}

func TestVaultScenarios(t *testing.T) {
	s := storage.NewMemoryStore()

	// A: first deposit on an empty vault.
	apply(t, s, deposit(addrA, 100, 100, meta(1, 0)))

	v := loadVault(t, s)
	assertInt(t, 100, v.TotalAssets)
	assertInt(t, 100, v.TotalSupply)
	assertPrice(t, "1", v.SharePrice)
	assert.Equal(t, uint64(1), v.DepositCount)
	assert.Equal(t, uint64(1700000001), v.CreatedAt)

	a := loadUser(t, s, addrA)
	assertInt(t, 100, a.VaultShares)
	assertInt(t, 100, a.VaultAssets)
	assertInt(t, 100, a.TotalDeposited)
	assert.Equal(t, uint64(1), a.DepositCount)

	err := s.View(context.Background(), func(r storage.Reader) error {
		d, ok, err := r.Deposit(context.Background(), model.EventID(tx(1), 0))
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, tx(1).Hex()+"-0", d.ID)
		assert.Equal(t, model.AccountID(addrA), d.User)
		assertInt(t, 100, d.Assets)
		assert.Equal(t, uint64(1001), d.BlockNumber)
		assert.Equal(t, tx(1).Hex(), d.TransactionHash)
		return nil
	})
	require.NoError(t, err)

	// B: second depositor.
	apply(t, s, deposit(addrB, 50, 50, meta(2, 0)))

	v = loadVault(t, s)
	assertInt(t, 150, v.TotalAssets)
	assertInt(t, 150, v.TotalSupply)
	assertPrice(t, "1", v.SharePrice)
	assert.Equal(t, uint64(2), v.DepositCount)

	// C: A withdraws everything.
	apply(t, s, withdraw(addrA, 100, 100, meta(3, 0)))

	v = loadVault(t, s)
	assertInt(t, 50, v.TotalAssets)
	assertInt(t, 50, v.TotalSupply)
	assertPrice(t, "1", v.SharePrice)
	assert.Equal(t, uint64(1), v.WithdrawalCount)
	assert.Equal(t, uint64(1700000003), v.UpdatedAt)
	assert.Equal(t, uint64(1700000001), v.CreatedAt)

	a = loadUser(t, s, addrA)
	assertInt(t, 0, a.VaultShares)
	assertInt(t, 0, a.VaultAssets)
	assertInt(t, 100, a.TotalWithdrawn)
	assert.Equal(t, uint64(1), a.WithdrawalCount)
	assert.Equal(t, uint64(1700000003), a.UpdatedAt)

	err = s.View(context.Background(), func(r storage.Reader) error {
		w, ok, err := r.Withdrawal(context.Background(), model.EventID(tx(3), 0))
		require.NoError(t, err)
		require.True(t, ok)
		assertInt(t, 100, w.Shares)
		return nil
	})
	require.NoError(t, err)
}

func TestStakingScenario(t *testing.T) {
	s := storage.NewMemoryStore()

	apply(t, s,
		model.Event{Meta: meta(4, 0), Payload: model.StakedParams{User: addrC, Amount: big.NewInt(10)}},
		model.Event{Meta: meta(5, 0), Payload: model.UnstakedParams{User: addrC, Amount: big.NewInt(4)}},
	)

	u := loadStakingUser(t, s, addrC)
	assertInt(t, 6, u.StakedAmount)
	assert.Equal(t, uint64(1), u.StakeCount)
	assert.Equal(t, uint64(1), u.UnstakeCount)
	assert.Equal(t, uint64(1700000005), u.UpdatedAt)

	err := s.View(context.Background(), func(r storage.Reader) error {
		stake, ok, err := r.StakeEvent(context.Background(), model.EventID(tx(4), 0))
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, model.StakeEventStake, stake.Type)
		assertInt(t, 10, stake.Amount)

		unstake, ok, err := r.StakeEvent(context.Background(), model.EventID(tx(5), 0))
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, model.StakeEventUnstake, unstake.Type)
		assertInt(t, 4, unstake.Amount)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, s.Count(storage.KindStakeEvent))
	assert.Equal(t, 0, s.Count(storage.KindVault))
}

func TestRewardsClaimedLeavesNoRecord(t *testing.T) {
	s := storage.NewMemoryStore()

	apply(t, s,
		model.Event{Meta: meta(7, 1), Payload: model.RewardsClaimedParams{User: addrC, Amount: big.NewInt(3)}},
		model.Event{Meta: meta(8, 1), Payload: model.RewardsClaimedParams{User: addrC, Amount: big.NewInt(4)}},
	)

	u := loadStakingUser(t, s, addrC)
	assertInt(t, 7, u.RewardsClaimed)
	assertInt(t, 0, u.StakedAmount)
	assert.Equal(t, uint64(0), u.StakeCount)
	assert.Equal(t, uint64(1700000008), u.UpdatedAt)
	assert.Equal(t, 0, s.Count(storage.KindStakeEvent))
}

func TestRebalanceScenario(t *testing.T) {
	s := storage.NewMemoryStore()

	apply(t, s, model.Event{
		Meta:    meta(6, 2),
		Payload: model.RebalancedParams{From: strat1, To: strat2, Amount: big.NewInt(1000), Profit: big.NewInt(50)},
	})

	err := s.View(context.Background(), func(r storage.Reader) error {
		rb, ok, err := r.Rebalance(context.Background(), tx(6).Hex()+"-2")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, model.AccountID(strat1), rb.FromStrategy)
		assert.Equal(t, model.AccountID(strat2), rb.ToStrategy)
		assertInt(t, 1000, rb.Amount)
		assertInt(t, 50, rb.Profit)
		assert.Equal(t, uint64(1006), rb.BlockNumber)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 1, s.Count(storage.KindRebalance))
	assert.Equal(t, 0, s.Count(storage.KindVault))
	assert.Equal(t, 0, s.Count(storage.KindUser))
	assert.Equal(t, 0, s.Count(storage.KindStakingUser))
}

func TestSharePriceZeroSupplyGuard(t *testing.T) {
	assertPrice(t, "1", SharePrice(big.NewInt(0), big.NewInt(0)))
	assertPrice(t, "1", SharePrice(big.NewInt(12345), big.NewInt(0)))
	assertPrice(t, "1", SharePrice(big.NewInt(12345), big.NewInt(-10)))

	// Assets left behind after every share is burned keep the price at one.
	s := storage.NewMemoryStore()
	apply(t, s,
		deposit(addrA, 100, 100, meta(1, 0)),
		withdraw(addrA, 90, 100, meta(2, 0)),
	)
	v := loadVault(t, s)
	assertInt(t, 10, v.TotalAssets)
	assertInt(t, 0, v.TotalSupply)
	assertPrice(t, "1", v.SharePrice)
}

func TestSharePriceSignificantDigits(t *testing.T) {
	assertPrice(t, "1.5", SharePrice(big.NewInt(3), big.NewInt(2)))
	assertPrice(t, "0.3333333333333333333333333333333333", SharePrice(big.NewInt(1), big.NewInt(3)))
	assertPrice(t, "0.6666666666666666666666666666666667", SharePrice(big.NewInt(2), big.NewInt(3)))
	assertPrice(t, "0.0003333333333333333333333333333333333", SharePrice(big.NewInt(1), big.NewInt(3000)))
	assertPrice(t, "3333.333333333333333333333333333333", SharePrice(big.NewInt(10000), big.NewInt(3)))
	assertPrice(t, "-0.3333333333333333333333333333333333", SharePrice(big.NewInt(-1), big.NewInt(3)))
	assertPrice(t, "0", SharePrice(big.NewInt(0), big.NewInt(3)))

	huge, _ := new(big.Int).SetString("1000000000000000000000000000000000000001", 10)
	supply, _ := new(big.Int).SetString("1000000000000000000000000000000000000000", 10)
	assertPrice(t, "1", SharePrice(huge, supply))
}

func TestRecomputeSharePriceIdempotent(t *testing.T) {
	v := model.NewVault()
	v.TotalAssets = big.NewInt(1000)
	v.TotalSupply = big.NewInt(7)

	RecomputeSharePrice(v)
	once := v.SharePrice
	RecomputeSharePrice(v)
	assert.True(t, once.Equal(v.SharePrice))
	assertPrice(t, "142.8571428571428571428571428571429", v.SharePrice)
}

func TestConservationAcrossInterleavings(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	s := storage.NewMemoryStore()
	users := []common.Address{addrA, addrB, addrC}

	wantAssets := big.NewInt(0)
	wantSupply := big.NewInt(0)
	var deposits, withdrawals uint64

	for i := int64(1); i <= 300; i++ {
		owner := users[rng.Intn(len(users))]
		assets := rng.Int63n(1_000_000)
		shares := rng.Int63n(1_000_000)
		if rng.Intn(3) == 0 {
			apply(t, s, withdraw(owner, assets, shares, meta(i, uint64(rng.Intn(4)))))
			wantAssets.Sub(wantAssets, big.NewInt(assets))
			wantSupply.Sub(wantSupply, big.NewInt(shares))
			withdrawals++
		} else {
			apply(t, s, deposit(owner, assets, shares, meta(i, uint64(rng.Intn(4)))))
			wantAssets.Add(wantAssets, big.NewInt(assets))
			wantSupply.Add(wantSupply, big.NewInt(shares))
			deposits++
		}
	}

	v := loadVault(t, s)
	assert.Equal(t, wantAssets.String(), v.TotalAssets.String())
	assert.Equal(t, wantSupply.String(), v.TotalSupply.String())
	assert.Equal(t, deposits, v.DepositCount)
	assert.Equal(t, withdrawals, v.WithdrawalCount)
	assert.True(t, SharePrice(wantAssets, wantSupply).Equal(v.SharePrice))

	// Per-user positions sum to the vault totals.
	sumShares := big.NewInt(0)
	for _, u := range users {
		sumShares.Add(sumShares, loadUser(t, s, u).VaultShares)
	}
	assert.Equal(t, wantSupply.String(), sumShares.String())
}

// Over-withdrawal is accepted and drives balances negative.
func TestOverWithdrawalIsPermitted(t *testing.T) {
	s := storage.NewMemoryStore()
	apply(t, s,
		deposit(addrA, 10, 10, meta(1, 0)),
		withdraw(addrB, 25, 25, meta(2, 0)),
		model.Event{Meta: meta(3, 0), Payload: model.UnstakedParams{User: addrC, Amount: big.NewInt(5)}},
	)

	b := loadUser(t, s, addrB)
	assertInt(t, -25, b.VaultShares)
	assertInt(t, -25, b.VaultAssets)
	assertInt(t, 25, b.TotalWithdrawn)
	assert.Equal(t, uint64(1700000002), b.CreatedAt)

	v := loadVault(t, s)
	assertInt(t, -15, v.TotalAssets)
	assertInt(t, -15, v.TotalSupply)
	assertPrice(t, "1", v.SharePrice)

	c := loadStakingUser(t, s, addrC)
	assertInt(t, -5, c.StakedAmount)
}

func TestLazyCreationDefaults(t *testing.T) {
	v := model.NewVault()
	assert.Equal(t, model.VaultID, v.ID)
	assertInt(t, 0, v.TotalAssets)
	assertInt(t, 0, v.TotalSupply)
	assertPrice(t, "1", v.SharePrice)
	assert.Zero(t, v.DepositCount)
	assert.Zero(t, v.WithdrawalCount)

	u := model.NewUser("0x01")
	for _, f := range []*big.Int{u.VaultShares, u.VaultAssets, u.StakedPZT, u.PendingRewards, u.TotalDeposited, u.TotalWithdrawn} {
		assertInt(t, 0, f)
	}

	su := model.NewStakingUser("0x01")
	assertInt(t, 0, su.StakedAmount)
	assertInt(t, 0, su.RewardsClaimed)

	ctx := context.Background()
	s := storage.NewMemoryStore()
	err := s.Update(ctx, func(tx storage.Tx) error {
		got, err := getOrCreateUser(ctx, tx, "0x02", 55)
		require.NoError(t, err)
		assertInt(t, 0, got.VaultShares)
		assert.Equal(t, uint64(55), got.CreatedAt)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0, s.Count(storage.KindUser), "getOrCreate must not persist by itself")
}

func TestDepositOnlyTouchesOwner(t *testing.T) {
	s := storage.NewMemoryStore()
	apply(t, s,
		deposit(addrA, 5, 5, meta(1, 0)),
		deposit(addrB, 7, 3, meta(2, 0)),
	)

	a := loadUser(t, s, addrA)
	assertInt(t, 5, a.VaultShares)
	b := loadUser(t, s, addrB)
	assertInt(t, 3, b.VaultShares)
	assertInt(t, 7, b.VaultAssets)

	v := loadVault(t, s)
	assertPrice(t, "1.5", v.SharePrice)
}

var errVaultWrite = errors.New("vault write failed")

type failingVaultTx struct {
	storage.Tx
}

func (failingVaultTx) SaveVault(context.Context, *model.Vault) error {
	return errVaultWrite
}

func TestFailedSaveRollsBackEvent(t *testing.T) {
	ctx := context.Background()
	s := storage.NewMemoryStore()
	r := New(nil)

	err := s.Update(ctx, func(tx storage.Tx) error {
		return r.Apply(ctx, failingVaultTx{Tx: tx}, deposit(addrA, 100, 100, meta(1, 0)))
	})
	require.ErrorIs(t, err, errVaultWrite)

	assert.Equal(t, 0, s.Count(storage.KindDeposit))
	assert.Equal(t, 0, s.Count(storage.KindUser))
	assert.Equal(t, 0, s.Count(storage.KindVault))
}

type unknownPayload struct{}

func (unknownPayload) Kind() model.EventKind { return "Unknown" }

func TestApplyRejectsUnknownPayload(t *testing.T) {
	ctx := context.Background()
	s := storage.NewMemoryStore()
	err := s.Update(ctx, func(tx storage.Tx) error {
		return New(nil).Apply(ctx, tx, model.Event{Meta: meta(1, 0), Payload: unknownPayload{}})
	})
	require.Error(t, err)
}
