package migrate

import (
	"path/filepath"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/setavenger/walletdb-migrate/internal/config"
	"github.com/setavenger/walletdb-migrate/internal/database"
	"github.com/setavenger/walletdb-migrate/internal/logging"
)

// BackupManager names and writes the physical copy taken before the store
// is touched. Restoring it by hand is the only way back.
type BackupManager struct {
	Dir string

	// Ext is appended after the timestamp, e.g. ".ldb".
	Ext string

	// Now defaults to time.Now.
	Now func() time.Time
}

// Path returns Dir/walletdb-bak-<unix millis><Ext> for the current time.
func (m *BackupManager) Path() string {
	now := time.Now
	if m.Now != nil {
		now = m.Now
	}
	name := config.BackupPrefix + strconv.FormatInt(now().UnixMilli(), 10) + m.Ext
	return filepath.Join(m.Dir, name)
}

// Backup copies store to a fresh path and returns it.
func (m *BackupManager) Backup(store database.Store) (string, error) {
	dest := m.Path()

	logging.L.Info().Msgf("Backing up DB to: %s.", dest)

	if err := store.Backup(dest); err != nil {
		logging.L.Err(err).Str("dest", dest).Msg("backup failed")
		return "", errors.Mark(
			errors.Wrapf(err, "backing up store to %s", dest), ErrBackupFailed,
		)
	}
	return dest, nil
}
