package migrate

import (
	"github.com/cockroachdb/errors"
	"github.com/setavenger/walletdb-migrate/internal/database"
	"github.com/setavenger/walletdb-migrate/internal/logging"
	"github.com/setavenger/walletdb-migrate/internal/types"
)

// RewriteBatch collects the version bump and the namespace deletes so that
// they land in one atomic write.
type RewriteBatch struct {
	b       database.Batch
	deletes int
}

func NewRewriteBatch(store database.Store) *RewriteBatch {
	return &RewriteBatch{b: store.NewBatch()}
}

func (r *RewriteBatch) StageVersion(v uint32) {
	r.b.Put(types.VersionKey, types.EncodeVersion(v))
}

func (r *RewriteBatch) Delete(keys ...[]byte) {
	for _, k := range keys {
		r.b.Delete(k)
	}
	r.deletes += len(keys)
}

// Deletes returns the number of staged deletes.
func (r *RewriteBatch) Deletes() int {
	return r.deletes
}

// Commit writes everything or nothing.
func (r *RewriteBatch) Commit() error {
	if err := r.b.Commit(); err != nil {
		logging.L.Err(err).Int("deletes", r.deletes).Msg("rewrite commit failed")
		return errors.Mark(errors.Wrap(err, "committing rewrite"), ErrBatchCommitFailed)
	}
	return nil
}
