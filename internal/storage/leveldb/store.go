package leveldb

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	lvlstorage "github.com/syndtr/goleveldb/leveldb/storage"

	"vaultScope/internal/storage"
)

// Options for opening a LevelDB store.
type Options struct {
	CacheSize              int
	OpenFilesCacheCapacity int
	// Sync forces an fsync on every committed event.
	Sync bool
}

// Store persists entities in LevelDB. Each Update is committed as one batch.
type Store struct {
	db       *leveldb.DB
	stg      lvlstorage.Storage
	writeOpt *opt.WriteOptions

	mu     sync.Mutex
	closed bool
}

var _ storage.Store = (*Store)(nil)

// Open creates the database at path if it does not exist.
func Open(path string, opts Options) (*Store, error) {
	stg, err := lvlstorage.OpenFile(path, false)
	if err != nil {
		return nil, errors.Wrap(err, "open leveldb storage")
	}
	return open(stg, opts)
}

// NewMem creates a store backed by memory.
func NewMem() (*Store, error) {
	return open(lvlstorage.NewMemStorage(), Options{})
}

func open(stg lvlstorage.Storage, opts Options) (*Store, error) {
	if opts.CacheSize < 16 {
		opts.CacheSize = 16
	}
	if opts.OpenFilesCacheCapacity < 16 {
		opts.OpenFilesCacheCapacity = 16
	}

	db, err := leveldb.Open(stg, &opt.Options{
		OpenFilesCacheCapacity: opts.OpenFilesCacheCapacity,
		BlockCacheCapacity:     opts.CacheSize / 2 * opt.MiB,
		WriteBuffer:            opts.CacheSize / 4 * opt.MiB,
		Filter:                 filter.NewBloomFilter(10),
	})
	if err != nil {
		stg.Close()
		return nil, errors.Wrap(err, "open leveldb")
	}
	return &Store{
		db:       db,
		stg:      stg,
		writeOpt: &opt.WriteOptions{Sync: opts.Sync},
	}, nil
}

type reader interface {
	Get(key []byte, ro *opt.ReadOptions) ([]byte, error)
}

type getter struct {
	r reader
}

func (g getter) Get(key []byte) ([]byte, bool, error) {
	v, err := g.r.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err == leveldb.ErrClosed {
		return nil, false, storage.ErrClosed
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "leveldb get")
	}
	return v, true, nil
}

func (s *Store) Update(ctx context.Context, fn func(tx storage.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storage.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tx := storage.NewKVTx(getter{r: s.db})
	if err := fn(tx); err != nil {
		return err
	}

	writes := tx.Writes()
	if len(writes) == 0 {
		return nil
	}
	batch := new(leveldb.Batch)
	for _, w := range writes {
		batch.Put(w.Key, w.Value)
	}
	if err := s.db.Write(batch, s.writeOpt); err != nil {
		if err == leveldb.ErrClosed {
			return storage.ErrClosed
		}
		return errors.Wrap(err, "leveldb write batch")
	}
	return nil
}

// View reads from a point-in-time snapshot.
func (s *Store) View(ctx context.Context, fn func(r storage.Reader) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	snap, err := s.db.GetSnapshot()
	if err != nil {
		if err == leveldb.ErrClosed {
			return storage.ErrClosed
		}
		return errors.Wrap(err, "leveldb snapshot")
	}
	defer snap.Release()

	return fn(storage.NewKVTx(getter{r: snap}))
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	// leveldb.Open does not own stg, so the file lock is released here.
	if err := s.db.Close(); err != nil {
		s.stg.Close()
		return errors.Wrap(err, "close leveldb")
	}
	return errors.Wrap(s.stg.Close(), "close leveldb storage")
}
