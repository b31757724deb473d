// Package dbpebble is the pebble store engine.
package dbpebble

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/setavenger/walletdb-migrate/internal/database"
	"github.com/setavenger/walletdb-migrate/internal/logging"
)

type Store struct {
	DB *pebble.DB
}

var _ database.Store = (*Store)(nil)

func NewStore(db *pebble.DB) *Store {
	return &Store{DB: db}
}

func (s *Store) Get(key []byte) ([]byte, error) {
	val, closer, err := s.DB.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		logging.L.Err(err).Hex("key", key).Msg("failed to get key")
		return nil, err
	}
	defer closer.Close()

	return database.CopyBytes(val), nil
}

func (s *Store) ForEach(lower, upper []byte, fn func(key, value []byte) error) error {
	iter, err := s.DB.NewIter(&pebble.IterOptions{
		LowerBound: lower,
		UpperBound: upper,
	})
	if err != nil {
		logging.L.Err(err).Msg("failed to create iterator")
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if err := fn(iter.Key(), iter.Value()); err != nil {
			return err
		}
	}

	if err := iter.Error(); err != nil {
		logging.L.Err(err).Msg("iterator error")
		return err
	}
	return nil
}

func (s *Store) NewBatch() database.Batch {
	return &batch{b: s.DB.NewBatch()}
}

// Backup writes a pebble checkpoint. Tables are hard linked where the
// filesystem allows it, the rest is copied.
func (s *Store) Backup(dest string) error {
	err := s.DB.Checkpoint(dest, pebble.WithFlushedWAL())
	if err != nil {
		logging.L.Err(err).Str("dest", dest).Msg("failed to create checkpoint")
		return err
	}
	return nil
}

func (s *Store) Close() error {
	return s.DB.Close()
}

type batch struct {
	b *pebble.Batch

	// pebble only fails Set/Delete on a closed or indexed batch; the first
	// error is surfaced by Commit.
	err error
}

func (b *batch) Put(key, value []byte) {
	if err := b.b.Set(key, value, nil); err != nil && b.err == nil {
		b.err = err
	}
}

func (b *batch) Delete(key []byte) {
	if err := b.b.Delete(key, nil); err != nil && b.err == nil {
		b.err = err
	}
}

func (b *batch) Len() int { return int(b.b.Count()) }

func (b *batch) Commit() error {
	defer b.b.Close()

	if b.err != nil {
		return b.err
	}
	err := b.b.Commit(pebble.Sync)
	if err != nil {
		logging.L.Err(err).Msg("failed to write Batch")
		return err
	}
	return nil
}
