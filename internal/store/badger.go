package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const badgerKeyPrefix = "img/"

// BadgerStore keeps file bytes in an embedded badger database.
type BadgerStore struct {
	db  *badger.DB
	dir string
}

type bytesReadSeekCloser struct {
	*bytes.Reader
}

func (bytesReadSeekCloser) Close() error { return nil }

// NewBadgerStore opens (or creates) a badger database at dir. An empty dir
// opens an in-memory database.
func NewBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store: %w", err)
	}
	return &BadgerStore{db: db, dir: dir}, nil
}

func badgerKey(id string) []byte {
	return []byte(badgerKeyPrefix + id)
}

func (s *BadgerStore) Put(ctx context.Context, id string, r io.Reader, size int64) (Info, error) {
	if err := ValidateID(id); err != nil {
		return Info{}, err
	}
	if err := ctx.Err(); err != nil {
		return Info{}, err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return Info{}, fmt.Errorf("failed to read content: %w", err)
	}
	if size >= 0 && int64(len(data)) != size {
		return Info{}, fmt.Errorf("short write: read %d of %d bytes", len(data), size)
	}

	now := time.Now()
	err = s.db.Update(func(txn *badger.Txn) error {
		key := badgerKey(id)
		if _, err := txn.Get(key); err == nil {
			return fmt.Errorf("%w: %s", ErrExists, id)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return Info{}, err
	}
	return Info{ID: id, Size: int64(len(data)), ModTime: now, Location: string(badgerKey(id))}, nil
}

func (s *BadgerStore) Open(ctx context.Context, id string) (io.ReadSeekCloser, Info, error) {
	if err := ValidateID(id); err != nil {
		return nil, Info{}, ErrNotFound
	}
	if err := ctx.Err(); err != nil {
		return nil, Info{}, err
	}

	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(id))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, Info{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, Info{}, fmt.Errorf("failed to read content: %w", err)
	}
	return bytesReadSeekCloser{bytes.NewReader(data)}, Info{
		ID:       id,
		Size:     int64(len(data)),
		Location: string(badgerKey(id)),
	}, nil
}

func (s *BadgerStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(badgerKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			ids = append(ids, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate badger store: %w", err)
	}
	return ids, nil
}

func (s *BadgerStore) Check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.db.IsClosed() {
		return errors.New("badger store is closed")
	}
	return nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
