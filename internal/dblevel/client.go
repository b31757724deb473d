// Package dblevel is the goleveldb store engine. It is the default engine
// and the one legacy wallet stores were written with.
package dblevel

import (
	"io"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/setavenger/walletdb-migrate/internal/database"
	"github.com/setavenger/walletdb-migrate/internal/logging"
	"github.com/spf13/afero"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// lockFileName is held by the open handle and never copied into a backup.
const lockFileName = "LOCK"

type Store struct {
	db   *leveldb.DB
	path string
	opts *opt.Options

	// fs is used for backups only. leveldb itself always talks to the OS.
	fs afero.Fs
}

var _ database.Store = (*Store)(nil)

// OpenDBConnection opens the leveldb store at path.
func OpenDBConnection(path string, o database.Options) (*Store, error) {
	return OpenWithFs(path, o, afero.NewOsFs())
}

// OpenWithFs is OpenDBConnection with the filesystem backups are written
// through.
func OpenWithFs(path string, o database.Options, fs afero.Fs) (*Store, error) {
	opts := &opt.Options{
		ErrorIfMissing: !o.CreateIfMissing,
		Compression:    opt.SnappyCompression,
	}
	if o.CacheSize > 0 {
		opts.BlockCacheCapacity = o.CacheSize
	}

	db, err := leveldb.OpenFile(path, opts)
	if err != nil {
		logging.L.Err(err).Str("path", path).Msg("error opening db connection")
		return nil, errors.Wrapf(err, "opening leveldb at %s", path)
	}
	return &Store{db: db, path: path, opts: opts, fs: fs}, nil
}

func (s *Store) Get(key []byte) ([]byte, error) {
	data, err := s.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		logging.L.Err(err).Hex("key", key).Msg("error getting key")
		return nil, err
	}
	return data, nil
}

func (s *Store) ForEach(lower, upper []byte, fn func(key, value []byte) error) error {
	var slice *util.Range
	if lower != nil || upper != nil {
		slice = &util.Range{Start: lower, Limit: upper}
	}
	iter := s.db.NewIterator(slice, nil)
	defer iter.Release()

	for iter.Next() {
		if err := fn(iter.Key(), iter.Value()); err != nil {
			return err
		}
	}

	err := iter.Error()
	if err != nil {
		logging.L.Err(err).Msg("error iterating over db")
		return err
	}
	return nil
}

func (s *Store) NewBatch() database.Batch {
	return &batch{s: s, b: new(leveldb.Batch)}
}

// Backup closes the handle, copies every store file except the lock file to
// dest and reopens. leveldb has no online snapshot of its files, and a
// background compaction could delete a table halfway through the copy.
func (s *Store) Backup(dest string) error {
	if _, err := s.fs.Stat(dest); err == nil {
		return errors.Newf("backup destination %s already exists", dest)
	}

	if err := s.db.Close(); err != nil {
		logging.L.Err(err).Msg("error closing db before backup")
		return err
	}

	copyErr := copyDir(s.fs, s.path, dest)

	db, err := leveldb.OpenFile(s.path, s.opts)
	if err != nil {
		logging.L.Err(err).Msg("error reopening db after backup")
		return errors.CombineErrors(copyErr, err)
	}
	s.db = db

	return copyErr
}

func (s *Store) Close() error {
	return s.db.Close()
}

func copyDir(fs afero.Fs, src, dest string) error {
	if err := fs.MkdirAll(dest, 0700); err != nil {
		return errors.Wrapf(err, "creating %s", dest)
	}

	return afero.Walk(fs, src, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)

		if info.IsDir() {
			return fs.MkdirAll(target, 0700)
		}
		if info.Name() == lockFileName {
			return nil
		}
		return copyFile(fs, p, target, info.Mode())
	})
}

func copyFile(fs afero.Fs, src, dest string, mode os.FileMode) error {
	in, err := fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := fs.OpenFile(dest, os.O_CREATE|os.O_EXCL|os.O_WRONLY, mode.Perm())
	if err != nil {
		return errors.Wrapf(err, "creating %s", dest)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return errors.Wrapf(err, "copying %s", src)
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

type batch struct {
	s *Store
	b *leveldb.Batch
}

func (b *batch) Put(key, value []byte) { b.b.Put(key, value) }

func (b *batch) Delete(key []byte) { b.b.Delete(key) }

func (b *batch) Len() int { return b.b.Len() }

func (b *batch) Commit() error {
	err := b.s.db.Write(b.b, &opt.WriteOptions{Sync: true})
	if err != nil {
		logging.L.Err(err).Msg("error writing batch")
		return err
	}
	return nil
}
