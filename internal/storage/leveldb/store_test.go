package leveldb

import (
	"context"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaultScope/internal/model"
	"vaultScope/internal/storage"
	"vaultScope/internal/storage/storagetest"
)

func TestLevelDBStore(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store {
		s, err := NewMem()
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestLevelDBStoreReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entities")
	ctx := context.Background()

	s, err := Open(path, Options{Sync: true})
	require.NoError(t, err)

	err = s.Update(ctx, func(tx storage.Tx) error {
		u := model.NewStakingUser("0x01")
		u.StakedAmount = big.NewInt(12)
		return tx.SaveStakingUser(ctx, u)
	})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path, Options{})
	require.NoError(t, err)
	defer s.Close()

	err = s.View(ctx, func(r storage.Reader) error {
		u, ok, err := r.StakingUser(ctx, "0x01")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, int64(12), u.StakedAmount.Int64())
		return nil
	})
	require.NoError(t, err)
}

func TestLevelDBStoreCloseReleasesLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entities")

	for i := 0; i < 3; i++ {
		s, err := Open(path, Options{})
		require.NoError(t, err, "open #%d", i)
		require.NoError(t, s.Close())
		require.NoError(t, s.Close())
	}
}
