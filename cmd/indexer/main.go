package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "indexer",
		Short:        "Vault and staking event indexer",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	applyCmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply typed events to the entity store",
		RunE:  runApply,
	}

	addStoreFlags(applyCmd)
	applyCmd.Flags().String("in", "", "input typed events JSONL")
	applyCmd.Flags().String("errors", "./data/rejected_events.jsonl", "rejected events JSONL")
	applyCmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	applyCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	applyCmd.Flags().Int("checkpoint-every", 100, "events between checkpoint writes")
	applyCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	applyCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	applyCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9100)")
	applyCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(applyCmd)

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the vault and user entities as JSON",
		RunE:  runShow,
	}

	addStoreFlags(showCmd)
	showCmd.Flags().StringSlice("user", nil, "user addresses to print (comma-separated)")
	showCmd.Flags().String("log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(showCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addStoreFlags(cmd *cobra.Command) {
	cmd.Flags().String("store", "memory", "entity store (memory, leveldb, postgres)")
	cmd.Flags().String("leveldb-path", "./data/vault.db", "LevelDB directory")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
