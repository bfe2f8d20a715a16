package model

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Vault is the singleton vault aggregate.
type Vault struct {
	ID              string          `json:"id"`
	TotalAssets     *big.Int        `json:"total_assets"`
	TotalSupply     *big.Int        `json:"total_supply"`
	SharePrice      decimal.Decimal `json:"share_price"`
	DepositCount    uint64          `json:"deposit_count"`
	WithdrawalCount uint64          `json:"withdrawal_count"`
	CreatedAt       uint64          `json:"created_at"`
	UpdatedAt       uint64          `json:"updated_at"`
}

// NewVault returns a zeroed vault with a share price of one.
func NewVault() *Vault {
	return &Vault{
		ID:          VaultID,
		TotalAssets: big.NewInt(0),
		TotalSupply: big.NewInt(0),
		SharePrice:  decimal.NewFromInt(1),
	}
}

// User holds per-account vault balances.
type User struct {
	ID              string   `json:"id"`
	VaultShares     *big.Int `json:"vault_shares"`
	VaultAssets     *big.Int `json:"vault_assets"`
	StakedPZT       *big.Int `json:"staked_pzt"`
	PendingRewards  *big.Int `json:"pending_rewards"`
	DepositCount    uint64   `json:"deposit_count"`
	WithdrawalCount uint64   `json:"withdrawal_count"`
	TotalDeposited  *big.Int `json:"total_deposited"`
	TotalWithdrawn  *big.Int `json:"total_withdrawn"`
	CreatedAt       uint64   `json:"created_at"`
	UpdatedAt       uint64   `json:"updated_at"`
}

// NewUser returns a user with zero balances and counters.
func NewUser(id string) *User {
	return &User{
		ID:             id,
		VaultShares:    big.NewInt(0),
		VaultAssets:    big.NewInt(0),
		StakedPZT:      big.NewInt(0),
		PendingRewards: big.NewInt(0),
		TotalDeposited: big.NewInt(0),
		TotalWithdrawn: big.NewInt(0),
	}
}

// StakingUser holds per-account staking balances.
type StakingUser struct {
	ID             string   `json:"id"`
	StakedAmount   *big.Int `json:"staked_amount"`
	RewardsClaimed *big.Int `json:"rewards_claimed"`
	StakeCount     uint64   `json:"stake_count"`
	UnstakeCount   uint64   `json:"unstake_count"`
	CreatedAt      uint64   `json:"created_at"`
	UpdatedAt      uint64   `json:"updated_at"`
}

// NewStakingUser returns a staker with zero balances and counters.
func NewStakingUser(id string) *StakingUser {
	return &StakingUser{
		ID:             id,
		StakedAmount:   big.NewInt(0),
		RewardsClaimed: big.NewInt(0),
	}
}
