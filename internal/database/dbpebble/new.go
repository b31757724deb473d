package dbpebble

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/setavenger/walletdb-migrate/internal/database"
	"github.com/setavenger/walletdb-migrate/internal/logging"
)

func OpenDB(path string, o database.Options) (*Store, error) {
	opts := (&pebble.Options{}).EnsureDefaults()
	opts.ErrorIfNotExists = !o.CreateIfMissing
	opts.BytesPerSync = 1 << 20 // smoother background flushes (1 MiB)

	var cache *pebble.Cache
	if o.CacheSize > 0 {
		cache = pebble.NewCache(int64(o.CacheSize))
		opts.Cache = cache
	}

	db, err := pebble.Open(path, opts)
	if cache != nil {
		// the db holds its own reference
		cache.Unref()
	}
	if err != nil {
		logging.L.Err(err).Str("path", path).Msg("error opening pebble db")
		return nil, errors.Wrapf(err, "opening pebble at %s", path)
	}

	return NewStore(db), nil
}
