package postgres

import (
	"context"
	"math/big"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaultScope/internal/model"
	"vaultScope/internal/storage"
	"vaultScope/internal/storage/storagetest"
)

// testDSN returns the disposable database named by INDEXER_TEST_PG_DSN.
func testDSN(t *testing.T) string {
	dsn := os.Getenv("INDEXER_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("INDEXER_TEST_PG_DSN not set")
	}
	return dsn
}

func newTestStore(t *testing.T, dsn string) *Store {
	ctx := context.Background()
	s, err := NewStore(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(ctx))
	_, err = s.pool.Exec(ctx, `TRUNCATE vaults, users, staking_users, deposits, withdrawals, stake_events, rebalances, applied_events`)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPostgresStore(t *testing.T) {
	dsn := testDSN(t)
	storagetest.Run(t, func(t *testing.T) storage.Store {
		return newTestStore(t, dsn)
	})
}

func TestPostgresViewIsSnapshot(t *testing.T) {
	s := newTestStore(t, testDSN(t))
	ctx := context.Background()

	saveAssets := func(n int64) {
		require.NoError(t, s.Update(ctx, func(tx storage.Tx) error {
			v := model.NewVault()
			v.TotalAssets = big.NewInt(n)
			return tx.SaveVault(ctx, v)
		}))
	}
	saveAssets(100)

	err := s.View(ctx, func(r storage.Reader) error {
		before, ok, err := r.Vault(ctx)
		require.NoError(t, err)
		require.True(t, ok)

		saveAssets(200)

		after, _, err := r.Vault(ctx)
		require.NoError(t, err)
		assert.Equal(t, before.TotalAssets.String(), after.TotalAssets.String())
		return nil
	})
	require.NoError(t, err)

	err = s.View(ctx, func(r storage.Reader) error {
		v, _, err := r.Vault(ctx)
		require.NoError(t, err)
		assert.Equal(t, "200", v.TotalAssets.String())
		return nil
	})
	require.NoError(t, err)
}
