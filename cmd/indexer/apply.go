package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vaultScope/internal/config"
	"vaultScope/internal/indexer"
	"vaultScope/internal/metrics"
	"vaultScope/internal/reducer"
)

func runApply(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.In == "" {
		return fmt.Errorf("input path is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	registry := prometheus.NewRegistry()
	m, err := metrics.New(registry)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	if cfg.MetricsAddr != "" {
		metricsCtx, cancelMetrics := context.WithCancel(ctx)
		defer cancelMetrics()
		go func() {
			if err := metrics.Serve(metricsCtx, cfg.MetricsAddr, registry, logger); err != nil {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	inputFile, err := os.Open(cfg.In)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer inputFile.Close()

	var rejects indexer.RejectWriter
	if cfg.Errors != "" {
		// Resumed runs keep the rejects of earlier runs.
		errWriter, err := newJSONLWriter(cfg.Errors, cfg.CheckpointEnabled)
		if err != nil {
			return err
		}
		defer errWriter.Close()
		rejects = errWriter
	}

	processor := indexer.NewProcessor(indexer.Config{
		CheckpointPath:    cfg.Checkpoint,
		CheckpointEnabled: cfg.CheckpointEnabled,
		CheckpointEvery:   cfg.CheckpointEvery,
		MaxRetries:        cfg.MaxRetries,
		RetryBackoff:      cfg.RetryBackoff,
	}, store, reducer.New(logger), m, logger)

	logger.Info("apply start",
		zap.String("in", cfg.In),
		zap.String("store", cfg.Store.Backend),
		zap.String("errors", cfg.Errors),
		zap.Bool("checkpoint_enabled", cfg.CheckpointEnabled),
		zap.String("checkpoint", cfg.Checkpoint),
		zap.String("metrics_addr", cfg.MetricsAddr),
	)

	summary, err := processor.Run(ctx, indexer.NewJSONLSource(inputFile), rejects)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}
