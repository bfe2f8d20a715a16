package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"vaultScope/internal/config"
	"vaultScope/internal/indexer"
	"vaultScope/internal/model"
	"vaultScope/internal/storage"
)

type showOutput struct {
	Vault        *model.Vault         `json:"vault"`
	Users        []*model.User        `json:"users,omitempty"`
	StakingUsers []*model.StakingUser `json:"staking_users,omitempty"`
}

func runShow(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadShow(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	addresses, err := indexer.ParseAddresses(cfg.Users)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	out, err := collectShow(ctx, store, addresses)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// collectShow reads the vault and the requested accounts. Accounts that were
// never written are reported with their zero defaults.
func collectShow(ctx context.Context, store storage.Store, addresses []common.Address) (showOutput, error) {
	var out showOutput
	err := store.View(ctx, func(r storage.Reader) error {
		vault, ok, err := r.Vault(ctx)
		if err != nil {
			return fmt.Errorf("load vault: %w", err)
		}
		if !ok {
			vault = model.NewVault()
		}
		out.Vault = vault

		for _, addr := range addresses {
			id := model.AccountID(addr)

			user, ok, err := r.User(ctx, id)
			if err != nil {
				return fmt.Errorf("load user %s: %w", id, err)
			}
			if !ok {
				user = model.NewUser(id)
			}
			out.Users = append(out.Users, user)

			stakingUser, ok, err := r.StakingUser(ctx, id)
			if err != nil {
				return fmt.Errorf("load staking user %s: %w", id, err)
			}
			if !ok {
				stakingUser = model.NewStakingUser(id)
			}
			out.StakingUsers = append(out.StakingUsers, stakingUser)
		}
		return nil
	})
	return out, err
}
