package migrate

import (
	"github.com/cockroachdb/errors"
	"github.com/setavenger/walletdb-migrate/internal/logging"
	"github.com/setavenger/walletdb-migrate/internal/types"
	"github.com/setavenger/walletdb-migrate/internal/walletdb"
)

// Inserter is the write path of the version 4 wallet.
type Inserter interface {
	AddTX(rec *types.ExtendedTx) error
	Close() error
}

// Opener opens the migrated store under the version 4 schema.
type Opener func() (Inserter, error)

// WalletOpener opens path with walletdb. Verification is off: every record
// was accepted by the wallet once already.
func WalletOpener(backend, path string, cacheSize int, opts walletdb.Options) Opener {
	return func() (Inserter, error) {
		opts.Verify = false
		db, err := walletdb.OpenPath(backend, path, cacheSize, opts)
		if err != nil {
			return nil, err
		}
		return db, nil
	}
}

// ReplayEngine feeds decoded records into the version 4 insert path.
type ReplayEngine struct {
	Open Opener
}

// Replay inserts every record of set and closes the wallet. It returns the
// number of inserted records.
func (e *ReplayEngine) Replay(set *TxSet) (n int, err error) {
	w, err := e.Open()
	if err != nil {
		return 0, errors.Mark(errors.Wrap(err, "opening migrated store"), ErrReplayInsertFailed)
	}
	defer func() {
		if cerr := w.Close(); cerr != nil {
			err = errors.CombineErrors(err, errors.Wrap(cerr, "closing migrated store"))
		}
	}()

	for _, rec := range set.Records() {
		if err := w.AddTX(rec); err != nil {
			logging.L.Err(err).Stringer("txid", rec.Hash()).Msg("replay insert failed")
			return n, errors.Mark(
				errors.Wrapf(err, "inserting tx %s", rec.Hash()), ErrReplayInsertFailed,
			)
		}
		n++
		if n%1000 == 0 {
			logging.L.Info().Int("done", n).Int("total", set.Len()).Msg("replaying")
		}
	}
	return n, nil
}
