package storage

import (
	"context"
	"strings"
	"sync"
)

// MemoryStore keeps entities in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string][]byte
	closed bool
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

type mapGetter map[string][]byte

func (m mapGetter) Get(key []byte) ([]byte, bool, error) {
	v, ok := m[string(key)]
	return v, ok, nil
}

func (s *MemoryStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tx := NewKVTx(mapGetter(s.data))
	if err := fn(tx); err != nil {
		return err
	}
	for _, w := range tx.Writes() {
		s.data[string(w.Key)] = w.Value
	}
	return nil
}

func (s *MemoryStore) View(ctx context.Context, fn func(r Reader) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(NewKVTx(mapGetter(s.data)))
}

// Count returns the number of stored entities of a kind.
func (s *MemoryStore) Count(kind string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prefix := kind + "/"
	n := 0
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			n++
		}
	}
	return n
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
