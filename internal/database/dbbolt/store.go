// Package dbbolt is the bbolt store engine. The whole keyspace lives in one
// bucket of a single file inside the store directory.
package dbbolt

import (
	"bytes"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/setavenger/walletdb-migrate/internal/database"
	"github.com/setavenger/walletdb-migrate/internal/logging"
	"go.etcd.io/bbolt"
)

const (
	// FileName is the bolt file inside the store directory.
	FileName = "wallet.db"

	dbFilePermission = 0600
)

var rootBucket = []byte("walletdb")

type Store struct {
	bdb *bbolt.DB
}

var _ database.Store = (*Store)(nil)

func OpenDB(dir string, o database.Options) (*Store, error) {
	file := filepath.Join(dir, FileName)

	if !o.CreateIfMissing {
		if _, err := os.Stat(file); err != nil {
			return nil, errors.Wrapf(err, "opening bolt store at %s", dir)
		}
	} else if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	bdb, err := bbolt.Open(file, dbFilePermission, &bbolt.Options{
		Timeout: time.Second,
	})
	if err != nil {
		logging.L.Err(err).Str("path", file).Msg("error opening bolt db")
		return nil, errors.Wrapf(err, "opening bolt store at %s", dir)
	}

	err = bdb.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(rootBucket)
		return err
	})
	if err != nil {
		_ = bdb.Close()
		return nil, err
	}

	return &Store{bdb: bdb}, nil
}

func (s *Store) Get(key []byte) ([]byte, error) {
	var val []byte
	err := s.bdb.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(rootBucket).Get(key)
		if v == nil {
			return database.ErrNotFound
		}
		val = database.CopyBytes(v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return val, nil
}

func (s *Store) ForEach(lower, upper []byte, fn func(key, value []byte) error) error {
	return s.bdb.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(rootBucket).Cursor()

		var k, v []byte
		if lower == nil {
			k, v = c.First()
		} else {
			k, v = c.Seek(lower)
		}
		for ; k != nil; k, v = c.Next() {
			if upper != nil && bytes.Compare(k, upper) >= 0 {
				break
			}
			if err := fn(k, v); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) NewBatch() database.Batch {
	return &batch{bdb: s.bdb}
}

// Backup copies the bolt file inside a read transaction, so the copy is a
// consistent view even while the handle stays open. A failed copy removes
// dest again.
func (s *Store) Backup(dest string) error {
	if _, err := os.Stat(dest); err == nil {
		return errors.Newf("backup destination %s already exists", dest)
	}
	if err := os.MkdirAll(dest, 0700); err != nil {
		return err
	}

	err := s.bdb.View(func(tx *bbolt.Tx) error {
		return tx.CopyFile(filepath.Join(dest, FileName), dbFilePermission)
	})
	if err != nil {
		logging.L.Err(err).Str("dest", dest).Msg("error copying bolt db")
		if rerr := os.RemoveAll(dest); rerr != nil {
			err = errors.CombineErrors(err, errors.Wrap(rerr, "removing partial backup"))
		}
		return err
	}
	return nil
}

func (s *Store) Close() error {
	return s.bdb.Close()
}

type op struct {
	key   []byte
	value []byte
	del   bool
}

type batch struct {
	bdb *bbolt.DB
	ops []op
}

func (b *batch) Put(key, value []byte) {
	b.ops = append(b.ops, op{
		key: database.CopyBytes(key), value: database.CopyBytes(value),
	})
}

func (b *batch) Delete(key []byte) {
	b.ops = append(b.ops, op{key: database.CopyBytes(key), del: true})
}

func (b *batch) Len() int { return len(b.ops) }

func (b *batch) Commit() error {
	err := b.bdb.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(rootBucket)
		for _, o := range b.ops {
			var err error
			if o.del {
				err = bucket.Delete(o.key)
			} else {
				// bolt refuses nil values
				value := o.value
				if value == nil {
					value = []byte{}
				}
				err = bucket.Put(o.key, value)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		logging.L.Err(err).Msg("error committing bolt batch")
		return err
	}
	return nil
}
