// Package dbopen picks the store engine by its config name.
package dbopen

import (
	"github.com/cockroachdb/errors"
	"github.com/setavenger/walletdb-migrate/internal/config"
	"github.com/setavenger/walletdb-migrate/internal/database"
	"github.com/setavenger/walletdb-migrate/internal/database/dbbolt"
	"github.com/setavenger/walletdb-migrate/internal/database/dbpebble"
	"github.com/setavenger/walletdb-migrate/internal/dblevel"
)

// Open opens the store at path with the named engine.
func Open(backend, path string, o database.Options) (database.Store, error) {
	switch backend {
	case config.BackendLevelDB:
		return dblevel.OpenDBConnection(path, o)
	case config.BackendPebble:
		return dbpebble.OpenDB(path, o)
	case config.BackendBolt:
		return dbbolt.OpenDB(path, o)
	default:
		return nil, errors.Newf("unknown backend %q", backend)
	}
}

// BackupExtension is appended to backup directory names so a restored copy
// is recognisable by engine.
func BackupExtension(backend string) string {
	switch backend {
	case config.BackendPebble:
		return ".pebble"
	case config.BackendBolt:
		return ".bolt"
	default:
		return ".ldb"
	}
}
