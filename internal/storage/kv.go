package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"vaultScope/internal/model"
)

// Entity kinds, used as key prefixes by key-value backends.
const (
	KindVault       = "vault"
	KindUser        = "user"
	KindStakingUser = "staking_user"
	KindDeposit     = "deposit"
	KindWithdrawal  = "withdrawal"
	KindStakeEvent  = "stake_event"
	KindRebalance   = "rebalance"
	KindApplied     = "applied"
)

// KVGetter reads committed values from a key-value backend.
type KVGetter interface {
	Get(key []byte) (value []byte, found bool, err error)
}

// KVWrite is a staged put.
type KVWrite struct {
	Key   []byte
	Value []byte
}

// KVTx implements Tx over a KVGetter, staging JSON-encoded writes in memory
// until the backend commits them.
type KVTx struct {
	src    KVGetter
	writes map[string][]byte
	order  []string
}

var _ Tx = (*KVTx)(nil)

func NewKVTx(src KVGetter) *KVTx {
	return &KVTx{
		src:    src,
		writes: make(map[string][]byte),
	}
}

// Key returns the backend key for an entity.
func Key(kind, id string) []byte {
	return []byte(kind + "/" + id)
}

// Writes returns the staged puts in first-write order.
func (t *KVTx) Writes() []KVWrite {
	out := make([]KVWrite, 0, len(t.order))
	for _, k := range t.order {
		out = append(out, KVWrite{Key: []byte(k), Value: t.writes[k]})
	}
	return out
}

func (t *KVTx) get(kind, id string) ([]byte, bool, error) {
	key := Key(kind, id)
	if v, ok := t.writes[string(key)]; ok {
		return v, true, nil
	}
	v, ok, err := t.src.Get(key)
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	return v, ok, nil
}

func (t *KVTx) put(kind, id string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s %s: %w", kind, id, err)
	}
	key := string(Key(kind, id))
	if _, ok := t.writes[key]; !ok {
		t.order = append(t.order, key)
	}
	t.writes[key] = data
	return nil
}

func load[T any](t *KVTx, kind, id string) (*T, bool, error) {
	data, ok, err := t.get(kind, id)
	if err != nil || !ok {
		return nil, false, err
	}
	out := new(T)
	if err := json.Unmarshal(data, out); err != nil {
		return nil, false, fmt.Errorf("unmarshal %s %s: %w", kind, id, err)
	}
	return out, true, nil
}

func (t *KVTx) Vault(_ context.Context) (*model.Vault, bool, error) {
	return load[model.Vault](t, KindVault, model.VaultID)
}

func (t *KVTx) User(_ context.Context, id string) (*model.User, bool, error) {
	return load[model.User](t, KindUser, id)
}

func (t *KVTx) StakingUser(_ context.Context, id string) (*model.StakingUser, bool, error) {
	return load[model.StakingUser](t, KindStakingUser, id)
}

func (t *KVTx) Deposit(_ context.Context, id string) (*model.Deposit, bool, error) {
	return load[model.Deposit](t, KindDeposit, id)
}

func (t *KVTx) Withdrawal(_ context.Context, id string) (*model.Withdrawal, bool, error) {
	return load[model.Withdrawal](t, KindWithdrawal, id)
}

func (t *KVTx) StakeEvent(_ context.Context, id string) (*model.StakeEvent, bool, error) {
	return load[model.StakeEvent](t, KindStakeEvent, id)
}

func (t *KVTx) Rebalance(_ context.Context, id string) (*model.Rebalance, bool, error) {
	return load[model.Rebalance](t, KindRebalance, id)
}

func (t *KVTx) IsApplied(_ context.Context, eventID string) (bool, error) {
	_, ok, err := t.get(KindApplied, eventID)
	return ok, err
}

func (t *KVTx) SaveVault(_ context.Context, v *model.Vault) error {
	return t.put(KindVault, v.ID, v)
}

func (t *KVTx) SaveUser(_ context.Context, u *model.User) error {
	return t.put(KindUser, u.ID, u)
}

func (t *KVTx) SaveStakingUser(_ context.Context, u *model.StakingUser) error {
	return t.put(KindStakingUser, u.ID, u)
}

func (t *KVTx) SaveDeposit(_ context.Context, d *model.Deposit) error {
	return t.put(KindDeposit, d.ID, d)
}

func (t *KVTx) SaveWithdrawal(_ context.Context, w *model.Withdrawal) error {
	return t.put(KindWithdrawal, w.ID, w)
}

func (t *KVTx) SaveStakeEvent(_ context.Context, e *model.StakeEvent) error {
	return t.put(KindStakeEvent, e.ID, e)
}

func (t *KVTx) SaveRebalance(_ context.Context, r *model.Rebalance) error {
	return t.put(KindRebalance, r.ID, r)
}

func (t *KVTx) MarkApplied(_ context.Context, eventID string) error {
	return t.put(KindApplied, eventID, struct{}{})
}
