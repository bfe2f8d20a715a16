package reducer

import (
	"context"
	"math/big"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"vaultScope/internal/model"
	"vaultScope/internal/storage"
)

// SharePricePrecision is the number of significant digits kept by the share
// price division. Rounding is half away from zero.
const SharePricePrecision = 34

// SharePrice returns totalAssets/totalSupply, or 1 when there is no positive supply.
func SharePrice(totalAssets, totalSupply *big.Int) decimal.Decimal {
	if totalSupply == nil || totalSupply.Sign() <= 0 {
		return decimal.NewFromInt(1)
	}
	if totalAssets == nil || totalAssets.Sign() == 0 {
		return decimal.Zero
	}
	scale := SharePricePrecision - 1 - quotientExponent(totalAssets, totalSupply)
	return decimal.NewFromBigInt(totalAssets, 0).DivRound(decimal.NewFromBigInt(totalSupply, 0), scale)
}

// quotientExponent returns floor(log10(|a/b|)) for non-zero a and positive b.
func quotientExponent(a, b *big.Int) int32 {
	abs := new(big.Int).Abs(a)
	e := len(abs.String()) - len(b.String())

	// |a| >= b*10^e means the leading digit sits at 10^e, otherwise at 10^(e-1).
	lhs, rhs := abs, new(big.Int).Set(b)
	if e >= 0 {
		rhs.Mul(rhs, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(e)), nil))
	} else {
		lhs = new(big.Int).Mul(abs, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(-e)), nil))
	}
	if lhs.Cmp(rhs) >= 0 {
		return int32(e)
	}
	return int32(e - 1)
}

// RecomputeSharePrice refreshes the derived share price of v.
func RecomputeSharePrice(v *model.Vault) {
	v.SharePrice = SharePrice(v.TotalAssets, v.TotalSupply)
}

func add(a, b *big.Int) *big.Int { return new(big.Int).Add(a, b) }
func sub(a, b *big.Int) *big.Int { return new(big.Int).Sub(a, b) }

// OnDeposit credits a deposit to its owner and to the vault.
func (r *Reducer) OnDeposit(ctx context.Context, tx storage.Tx, meta model.EventMeta, p model.DepositParams) error {
	vault, err := getOrCreateVault(ctx, tx, meta.Timestamp)
	if err != nil {
		return err
	}
	user, err := getOrCreateUser(ctx, tx, model.AccountID(p.Owner), meta.Timestamp)
	if err != nil {
		return err
	}

	deposit := &model.Deposit{
		ID:              meta.ID(),
		User:            user.ID,
		Assets:          p.Assets,
		Shares:          p.Shares,
		Timestamp:       meta.Timestamp,
		BlockNumber:     meta.BlockNumber,
		TransactionHash: meta.TxHashHex(),
	}
	if err := tx.SaveDeposit(ctx, deposit); err != nil {
		return err
	}

	user.VaultShares = add(user.VaultShares, p.Shares)
	user.VaultAssets = add(user.VaultAssets, p.Assets)
	user.TotalDeposited = add(user.TotalDeposited, p.Assets)
	user.DepositCount++
	user.UpdatedAt = meta.Timestamp
	if err := tx.SaveUser(ctx, user); err != nil {
		return err
	}

	vault.TotalSupply = add(vault.TotalSupply, p.Shares)
	vault.TotalAssets = add(vault.TotalAssets, p.Assets)
	vault.DepositCount++
	vault.UpdatedAt = meta.Timestamp
	RecomputeSharePrice(vault)
	if err := tx.SaveVault(ctx, vault); err != nil {
		return err
	}

	r.logger.Debug("deposit applied",
		zap.String("id", deposit.ID),
		zap.String("user", user.ID),
		zap.String("assets", p.Assets.String()),
		zap.String("shares", p.Shares.String()),
		zap.String("share_price", vault.SharePrice.String()),
	)
	return nil
}

// OnWithdraw debits a withdrawal from its owner and from the vault.
func (r *Reducer) OnWithdraw(ctx context.Context, tx storage.Tx, meta model.EventMeta, p model.WithdrawParams) error {
	vault, err := getOrCreateVault(ctx, tx, meta.Timestamp)
	if err != nil {
		return err
	}
	user, err := getOrCreateUser(ctx, tx, model.AccountID(p.Owner), meta.Timestamp)
	if err != nil {
		return err
	}

	withdrawal := &model.Withdrawal{
		ID:              meta.ID(),
		User:            user.ID,
		Assets:          p.Assets,
		Shares:          p.Shares,
		Timestamp:       meta.Timestamp,
		BlockNumber:     meta.BlockNumber,
		TransactionHash: meta.TxHashHex(),
	}
	if err := tx.SaveWithdrawal(ctx, withdrawal); err != nil {
		return err
	}

	user.VaultShares = sub(user.VaultShares, p.Shares)
	user.VaultAssets = sub(user.VaultAssets, p.Assets)
	user.TotalWithdrawn = add(user.TotalWithdrawn, p.Assets)
	user.WithdrawalCount++
	user.UpdatedAt = meta.Timestamp
	if err := tx.SaveUser(ctx, user); err != nil {
		return err
	}

	vault.TotalSupply = sub(vault.TotalSupply, p.Shares)
	vault.TotalAssets = sub(vault.TotalAssets, p.Assets)
	vault.WithdrawalCount++
	vault.UpdatedAt = meta.Timestamp
	RecomputeSharePrice(vault)
	if err := tx.SaveVault(ctx, vault); err != nil {
		return err
	}

	if user.VaultShares.Sign() < 0 {
		r.logger.Warn("withdrawal left negative share balance",
			zap.String("id", withdrawal.ID),
			zap.String("user", user.ID),
			zap.String("vault_shares", user.VaultShares.String()),
		)
	}
	r.logger.Debug("withdrawal applied",
		zap.String("id", withdrawal.ID),
		zap.String("user", user.ID),
		zap.String("assets", p.Assets.String()),
		zap.String("shares", p.Shares.String()),
		zap.String("share_price", vault.SharePrice.String()),
	)
	return nil
}
