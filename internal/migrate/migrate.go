// Package migrate upgrades a wallet store from version 3 to version 4.
//
// The run is gate, backup, scan, decode, rewrite, replay. Nothing is written
// before the backup exists, and the version bump and the namespace deletes
// commit together. A failure after the commit leaves a version 4 store
// without tx records; the backup is the only way back.
package migrate

import (
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/cockroachdb/errors"
	"github.com/setavenger/walletdb-migrate/internal/config"
	"github.com/setavenger/walletdb-migrate/internal/database"
	"github.com/setavenger/walletdb-migrate/internal/database/dbopen"
	"github.com/setavenger/walletdb-migrate/internal/logging"
	"github.com/setavenger/walletdb-migrate/internal/walletdb"
)

type Config struct {
	Path    string
	Backend string

	// Network defaults to mainnet.
	Network *chaincfg.Params

	BackupDir string
	CacheSize int

	Now func() time.Time

	// OpenStore and OpenWallet replace the default openers.
	OpenStore  func() (database.Store, error)
	OpenWallet Opener
}

// Result summarises a finished run.
type Result struct {
	BackupPath string
	Records    int
	Deleted    int
	Replayed   int
}

type Migrator struct {
	cfg  Config
	gate VersionGate
}

func New(cfg Config) *Migrator {
	if cfg.Backend == "" {
		cfg.Backend = config.BackendLevelDB
	}
	if cfg.Network == nil {
		cfg.Network = &chaincfg.MainNetParams
	}
	if cfg.BackupDir == "" {
		cfg.BackupDir = config.DefaultBackupDirectory()
	}
	if cfg.OpenStore == nil {
		cfg.OpenStore = func() (database.Store, error) {
			return dbopen.Open(cfg.Backend, cfg.Path, database.Options{CacheSize: cfg.CacheSize})
		}
	}
	if cfg.OpenWallet == nil {
		cfg.OpenWallet = WalletOpener(cfg.Backend, cfg.Path, cfg.CacheSize, walletdb.Options{
			Network: cfg.Network,
		})
	}
	return &Migrator{cfg: cfg, gate: DefaultVersionGate}
}

// Run performs the migration. Every error aborts the run.
func (m *Migrator) Run() (*Result, error) {
	res, set, err := m.rewrite()
	if err != nil {
		return nil, err
	}

	logging.L.Info().Msgf("Replaying %d txs.", res.Records)

	replay := &ReplayEngine{Open: m.cfg.OpenWallet}
	res.Replayed, err = replay.Replay(set)
	if err != nil {
		return res, err
	}

	logging.L.Info().
		Str("backup", res.BackupPath).
		Int("deleted", res.Deleted).
		Int("replayed", res.Replayed).
		Msg("Migration complete.")
	return res, nil
}

// rewrite runs every stage that needs the legacy handle and closes it.
func (m *Migrator) rewrite() (res *Result, set *TxSet, err error) {
	logging.L.Info().Msgf("Opening %s.", m.cfg.Path)

	store, err := m.cfg.OpenStore()
	if err != nil {
		return nil, nil, errors.Wrapf(err, "opening %s", m.cfg.Path)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			err = errors.CombineErrors(err, errors.Wrap(cerr, "closing legacy store"))
		}
	}()

	logging.L.Info().Msg("Checking version.")
	if err := m.gate.Check(store); err != nil {
		return nil, nil, err
	}

	backup := &BackupManager{
		Dir: m.cfg.BackupDir,
		Ext: dbopen.BackupExtension(m.cfg.Backend),
		Now: m.cfg.Now,
	}
	res = &Result{}
	res.BackupPath, err = backup.Backup(store)
	if err != nil {
		return nil, nil, err
	}

	batch := NewRewriteBatch(store)
	m.gate.Stage(batch)

	logging.L.Info().Msg("Collecting txs.")
	scan, err := Scan(store)
	if err != nil {
		return nil, nil, err
	}

	set, err = Decode(scan.Records)
	if err != nil {
		return nil, nil, err
	}
	res.Records = set.Len()

	batch.Delete(scan.Obsolete()...)
	res.Deleted = batch.Deletes()

	logging.L.Info().Msgf("Deleting %d keys.", res.Deleted)
	if err := batch.Commit(); err != nil {
		return nil, nil, err
	}
	return res, set, nil
}
