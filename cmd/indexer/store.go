package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"vaultScope/internal/config"
	"vaultScope/internal/storage"
	"vaultScope/internal/storage/leveldb"
	"vaultScope/internal/storage/postgres"
)

func openStore(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (storage.Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case config.StoreLevelDB:
		store, err := leveldb.Open(cfg.LevelDBPath, leveldb.Options{})
		if err != nil {
			return nil, fmt.Errorf("open leveldb: %w", err)
		}
		logger.Info("store opened", zap.String("store", cfg.Backend), zap.String("path", cfg.LevelDBPath))
		return store, nil
	case config.StorePostgres:
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, err
		}
		logger.Info("store opened", zap.String("store", cfg.Backend), zap.String("pg_dsn", redactDSN(cfg.PGDSN)))
		return store, nil
	default:
		logger.Info("store opened", zap.String("store", cfg.Backend))
		return storage.NewMemoryStore(), nil
	}
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
