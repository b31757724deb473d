// Package database defines the byte keyed store every engine in
// dblevel, dbpebble and dbbolt implements.
package database

import "github.com/cockroachdb/errors"

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("[no entry found]")

// Store is an ordered key value store with atomic batches and a physical
// backup. Keys are compared bytewise.
type Store interface {
	// Get returns a copy of the value stored under key.
	Get(key []byte) ([]byte, error)

	// ForEach calls fn for every key in [lower, upper) in ascending order.
	// A nil bound is open. The slices handed to fn are only valid for the
	// duration of the call.
	ForEach(lower, upper []byte, fn func(key, value []byte) error) error

	// NewBatch starts an empty atomic write.
	NewBatch() Batch

	// Backup writes a physical copy of the whole store to dest, which must
	// not exist yet.
	Backup(dest string) error

	Close() error
}

// Batch collects puts and deletes that are applied all together on Commit.
type Batch interface {
	Put(key, value []byte)
	Delete(key []byte)
	Len() int
	Commit() error
}

// Options are shared by all engines.
type Options struct {
	// CreateIfMissing allows opening a path that holds no store yet.
	CreateIfMissing bool

	// CacheSize in bytes. Zero keeps the engine default.
	CacheSize int
}

// Has reports whether key exists.
func Has(s Store, key []byte) (bool, error) {
	_, err := s.Get(key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// PrefixUpperBound returns the smallest key greater than every key that
// starts with prefix, or nil if there is none.
func PrefixUpperBound(prefix []byte) []byte {
	ub := make([]byte, len(prefix))
	copy(ub, prefix)
	for i := len(ub) - 1; i >= 0; i-- {
		ub[i]++
		if ub[i] != 0 {
			return ub[:i+1]
		}
	}
	return nil
}

// CountPrefix counts the keys starting with prefix.
func CountPrefix(s Store, prefix []byte) (int, error) {
	count := 0
	err := s.ForEach(prefix, PrefixUpperBound(prefix), func(_, _ []byte) error {
		count++
		return nil
	})
	return count, err
}

// CopyBytes returns a copy of b that is safe to keep after an iterator moves
// on. nil stays nil.
func CopyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
