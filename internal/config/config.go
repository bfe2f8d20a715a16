package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StoreLevelDB  = "leveldb"
	StorePostgres = "postgres"
)

// StoreConfig selects and locates the entity store.
type StoreConfig struct {
	Backend     string
	LevelDBPath string
	PGDSN       string
}

// Validate checks that the selected backend has what it needs to open.
func (s StoreConfig) Validate() error {
	switch s.Backend {
	case StoreMemory:
		return nil
	case StoreLevelDB:
		if s.LevelDBPath == "" {
			return fmt.Errorf("leveldb path is required")
		}
		return nil
	case StorePostgres:
		if s.PGDSN == "" {
			return fmt.Errorf("pg dsn is required")
		}
		return nil
	default:
		return fmt.Errorf("unknown store %q (want memory, leveldb or postgres)", s.Backend)
	}
}

// Config holds configuration for the apply command.
type Config struct {
	Store             StoreConfig
	In                string
	Errors            string
	Checkpoint        string
	CheckpointEnabled bool
	CheckpointEvery   int
	MaxRetries        int
	RetryBackoff      time.Duration
	MetricsAddr       string
	LogLevel          string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"errors":             "./data/rejected_events.jsonl",
		"checkpoint":         "./data/checkpoint.json",
		"checkpoint-enabled": true,
		"checkpoint-every":   100,
		"max-retries":        5,
		"retry-backoff":      500 * time.Millisecond,
	})
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Store:             storeConfig(v),
		In:                v.GetString("in"),
		Errors:            v.GetString("errors"),
		Checkpoint:        v.GetString("checkpoint"),
		CheckpointEnabled: v.GetBool("checkpoint-enabled"),
		CheckpointEvery:   v.GetInt("checkpoint-every"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		MetricsAddr:       v.GetString("metrics-addr"),
		LogLevel:          v.GetString("log-level"),
	}
	// A memory store starts empty on every run, so a checkpoint from an
	// earlier run describes state that no longer exists.
	if cfg.Store.Backend == StoreMemory {
		cfg.CheckpointEnabled = false
	}

	return cfg, nil
}

func newViper(cfgFile string, flags *pflag.FlagSet, defaults map[string]interface{}) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("INDEXER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("store", StoreMemory)
	v.SetDefault("leveldb-path", "./data/vault.db")
	v.SetDefault("log-level", "info")
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	return v, nil
}

func storeConfig(v *viper.Viper) StoreConfig {
	return StoreConfig{
		Backend:     strings.ToLower(strings.TrimSpace(v.GetString("store"))),
		LevelDBPath: v.GetString("leveldb-path"),
		PGDSN:       v.GetString("pg-dsn"),
	}
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
