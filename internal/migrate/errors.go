package migrate

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	// ErrMissingVersion is returned when the store has no version key.
	ErrMissingVersion = errors.New("no version")

	// ErrMalformedVersion is returned when the version value is not 4 bytes.
	ErrMalformedVersion = errors.New("malformed version value")

	// ErrBackupFailed marks every error of the backup stage. Nothing has
	// been deleted when it is returned.
	ErrBackupFailed = errors.New("backup failed")

	// ErrBatchCommitFailed marks a failed rewrite commit. The store is still
	// at version 3 when it is returned.
	ErrBatchCommitFailed = errors.New("batch commit failed")

	// ErrReplayInsertFailed marks a failed insert into the version 4
	// wallet. The legacy records are gone at that point; restore the backup
	// to retry.
	ErrReplayInsertFailed = errors.New("replay insert failed")
)

// UnexpectedVersionError is returned when the store is not at version 3.
type UnexpectedVersionError struct {
	Found uint32
}

func (e *UnexpectedVersionError) Error() string {
	return fmt.Sprintf("DB is version %d", e.Found)
}

// ReadError is returned when the store fails to read a key. Key is nil for
// failures during the full range scan.
type ReadError struct {
	Key []byte
	Err error
}

func (e *ReadError) Error() string {
	if e.Key == nil {
		return fmt.Sprintf("scanning store: %v", e.Err)
	}
	return fmt.Sprintf("reading key %x: %v", e.Key, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }
