package config

import (
	"github.com/spf13/pflag"
)

// ShowConfig holds configuration for the show command.
type ShowConfig struct {
	Store    StoreConfig
	Users    []string
	LogLevel string
}

// LoadShow merges config file, environment variables, and flags into ShowConfig.
func LoadShow(cfgFile string, flags *pflag.FlagSet) (ShowConfig, error) {
	v, err := newViper(cfgFile, flags, nil)
	if err != nil {
		return ShowConfig{}, err
	}

	return ShowConfig{
		Store:    storeConfig(v),
		Users:    getStringSlice(v, "user"),
		LogLevel: v.GetString("log-level"),
	}, nil
}
