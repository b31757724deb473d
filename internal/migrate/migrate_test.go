package migrate

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/cockroachdb/errors"
	"github.com/setavenger/walletdb-migrate/internal/config"
	"github.com/setavenger/walletdb-migrate/internal/database"
	"github.com/setavenger/walletdb-migrate/internal/database/dbopen"
	"github.com/setavenger/walletdb-migrate/internal/dblevel"
	"github.com/setavenger/walletdb-migrate/internal/testhelpers"
	"github.com/setavenger/walletdb-migrate/internal/types"
	"github.com/setavenger/walletdb-migrate/internal/walletdb"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

var backends = []string{config.BackendLevelDB, config.BackendPebble, config.BackendBolt}

// recordingStore counts the mutating calls that reach the store.
type recordingStore struct {
	database.Store

	backups   int
	commits   int
	backupErr error
	commitErr error
}

func (s *recordingStore) Backup(dest string) error {
	s.backups++
	if s.backupErr != nil {
		return s.backupErr
	}
	return s.Store.Backup(dest)
}

func (s *recordingStore) NewBatch() database.Batch {
	return &recordingBatch{Batch: s.Store.NewBatch(), s: s}
}

type recordingBatch struct {
	database.Batch
	s *recordingStore
}

func (b *recordingBatch) Commit() error {
	b.s.commits++
	if b.s.commitErr != nil {
		return b.s.commitErr
	}
	return b.Batch.Commit()
}

type failingInserter struct {
	closed bool
}

func (f *failingInserter) AddTX(*types.ExtendedTx) error { return errors.New("disk full") }
func (f *failingInserter) Close() error { f.closed = true; return nil }

func seed(t *testing.T, backend string, l *testhelpers.LegacyStore) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "walletdb")
	store, err := dbopen.Open(backend, path, database.Options{CreateIfMissing: true})
	require.NoError(t, err)
	l.Write(t, store)
	require.NoError(t, store.Close())
	return path
}

func reopen(t *testing.T, backend, path string) database.Store {
	t.Helper()

	store, err := dbopen.Open(backend, path, database.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func fixedNow() time.Time {
	return time.UnixMilli(1700000000123)
}

func testConfig(t *testing.T, backend, path string) Config {
	return Config{
		Path:      path,
		Backend:   backend,
		Network:   &chaincfg.RegressionNetParams,
		BackupDir: t.TempDir(),
		Now:       fixedNow,
	}
}

// recorded wraps the default store opener of cfg.
func recorded(t *testing.T, cfg *Config) *recordingStore {
	rec := &recordingStore{}
	cfg.OpenStore = func() (database.Store, error) {
		store, err := dbopen.Open(cfg.Backend, cfg.Path, database.Options{})
		if err != nil {
			return nil, err
		}
		rec.Store = store
		return rec, nil
	}
	return rec
}

func legacyFixture() (*testhelpers.LegacyStore, []*types.ExtendedTx) {
	parent := testhelpers.NewTx(1, 1, 3)
	child := testhelpers.Spend(parent, 0, 2)
	other := testhelpers.NewTx(2, 2, 1)

	recs := []*types.ExtendedTx{
		testhelpers.Confirmed(parent, 120, 3, 1000),
		testhelpers.Unconfirmed(child, 2000),
		testhelpers.Confirmed(other, 130, 0, 3000),
	}
	legacy := &testhelpers.LegacyStore{
		Version: testhelpers.V(3),
		Records: map[uint32][]*types.ExtendedTx{
			0: recs[:2],
			1: recs[2:],
		},
		Coins: true,
		Extra: map[string][]byte{
			"a":     []byte("account"),
			"W\x00": []byte("wallet"),
			"u\x01": []byte("unrelated"),
			"O":     {0xfa, 0xbf, 0xb5, 0xda, 0x00},
		},
	}

	// Legacy address and block indices. They use the same K bytes as the
	// version 4 wallet, one level up.
	legacy.Extra["p"+strings.Repeat("\x00", 20)] = []byte{0, 0, 0, 1}
	legacy.Extra["h\x00\x00\x00\x78"] = bytes.Repeat([]byte{0xbb}, 32)

	return legacy, recs
}

func TestMigrate(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			legacy, recs := legacyFixture()
			path := seed(t, backend, legacy)

			cfg := testConfig(t, backend, path)
			res, err := New(cfg).Run()
			require.NoError(t, err)

			require.Equal(t, len(recs), res.Records)
			require.Equal(t, len(recs), res.Replayed)
			// 3 records plus one coin per output.
			require.Equal(t, 3+3+1+1, res.Deleted)

			want := filepath.Join(cfg.BackupDir,
				"walletdb-bak-1700000000123"+dbopen.BackupExtension(backend))
			require.Equal(t, want, res.BackupPath)
			_, err = os.Stat(res.BackupPath)
			require.NoError(t, err)

			store, err := dbopen.Open(backend, path, database.Options{})
			require.NoError(t, err)

			v, err := store.Get(types.VersionKey)
			require.NoError(t, err)
			require.Equal(t, types.EncodeVersion(4), v)

			for wid, list := range legacy.Records {
				for _, rec := range list {
					ok, err := database.Has(store, types.LegacyTxKey(wid, rec.Hash()))
					require.NoError(t, err)
					require.False(t, ok)
				}
			}
			for _, k := range testhelpers.Keys(t, store) {
				if k[0] != walletdb.Namespace {
					continue
				}
				// only version 4 families are left in the namespace
				require.Contains(t, string([]byte{
					walletdb.KNetwork, walletdb.KTx, walletdb.KHeight,
					walletdb.KPending, walletdb.KCredit, walletdb.KSpent,
				}), k[1:2], "key %x", k)
			}
			for k, want := range legacy.Extra {
				got, err := store.Get([]byte(k))
				require.NoError(t, err)
				require.Equal(t, want, got)
			}
			require.NoError(t, store.Close())

			db, err := walletdb.OpenPath(backend, path, 0, walletdb.Options{
				Network: &chaincfg.RegressionNetParams,
			})
			require.NoError(t, err)
			defer db.Close()

			for _, want := range recs {
				got, err := db.TX(want.Hash())
				require.NoError(t, err)
				require.Equal(t, want.Height, got.Height)
				require.Equal(t, want.Index, got.Index)
				require.Equal(t, want.Time, got.Time)
				require.Equal(t, want.Received, got.Received)
				require.Equal(t, want.Block, got.Block)
			}

			pending, err := db.Pending()
			require.NoError(t, err)
			require.Equal(t, []chainhash.Hash{recs[1].Hash()}, pending)

			confirmed, err := db.Heights(0, math.MaxUint32)
			require.NoError(t, err)
			require.Equal(t, []chainhash.Hash{recs[0].Hash(), recs[2].Hash()}, confirmed)
		})
	}
}

func TestMigrateBackupIsLegacyCopy(t *testing.T) {
	legacy, _ := legacyFixture()
	path := seed(t, config.BackendLevelDB, legacy)

	cfg := testConfig(t, config.BackendLevelDB, path)
	res, err := New(cfg).Run()
	require.NoError(t, err)

	backup := reopen(t, config.BackendLevelDB, res.BackupPath)
	v, err := backup.Get(types.VersionKey)
	require.NoError(t, err)
	require.Equal(t, types.EncodeVersion(3), v)

	n, err := database.CountPrefix(backup, []byte{types.LegacyTxNamespace})
	require.NoError(t, err)
	require.Equal(t, res.Deleted, n)
}

func TestMigrateEmpty(t *testing.T) {
	path := seed(t, config.BackendLevelDB, &testhelpers.LegacyStore{
		Version: testhelpers.V(3),
		Extra:   map[string][]byte{"a": []byte("x")},
	})

	res, err := New(testConfig(t, config.BackendLevelDB, path)).Run()
	require.NoError(t, err)
	require.Zero(t, res.Records)
	require.Zero(t, res.Deleted)

	store := reopen(t, config.BackendLevelDB, path)
	v, err := store.Get(types.VersionKey)
	require.NoError(t, err)
	require.Equal(t, types.EncodeVersion(4), v)
}

func TestMigrateDuplicateAcrossWallets(t *testing.T) {
	tx := testhelpers.NewTx(5, 1, 2)
	first := testhelpers.Unconfirmed(tx, 10)
	last := testhelpers.Confirmed(tx, 77, 1, 20)

	path := seed(t, config.BackendLevelDB, &testhelpers.LegacyStore{
		Version: testhelpers.V(3),
		Records: map[uint32][]*types.ExtendedTx{
			1: {first},
			2: {last},
		},
	})

	res, err := New(testConfig(t, config.BackendLevelDB, path)).Run()
	require.NoError(t, err)
	require.Equal(t, 1, res.Records)
	require.Equal(t, 2, res.Deleted)

	db, err := walletdb.OpenPath(config.BackendLevelDB, path, 0, walletdb.Options{
		Network: &chaincfg.RegressionNetParams,
	})
	require.NoError(t, err)
	defer db.Close()

	// wid 2 sorts after wid 1, so its record wins.
	got, err := db.TX(tx.TxHash())
	require.NoError(t, err)
	require.Equal(t, int32(77), got.Height)
	require.Equal(t, uint32(20), got.Time)
}

func TestMigrateVersionGate(t *testing.T) {
	tests := []struct {
		name    string
		version *uint32
		check   func(t *testing.T, err error)
	}{
		{
			name:    "older",
			version: testhelpers.V(2),
			check: func(t *testing.T, err error) {
				var verErr *UnexpectedVersionError
				require.True(t, errors.As(err, &verErr))
				require.Equal(t, uint32(2), verErr.Found)
				require.Equal(t, "DB is version 2", verErr.Error())
			},
		},
		{
			name:    "newer",
			version: testhelpers.V(5),
			check: func(t *testing.T, err error) {
				var verErr *UnexpectedVersionError
				require.True(t, errors.As(err, &verErr))
				require.Equal(t, uint32(5), verErr.Found)
			},
		},
		{
			name:    "already migrated",
			version: testhelpers.V(4),
			check: func(t *testing.T, err error) {
				var verErr *UnexpectedVersionError
				require.True(t, errors.As(err, &verErr))
			},
		},
		{
			name: "missing",
			check: func(t *testing.T, err error) {
				require.True(t, errors.Is(err, ErrMissingVersion))
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			legacy, _ := legacyFixture()
			legacy.Version = tc.version
			path := seed(t, config.BackendLevelDB, legacy)

			cfg := testConfig(t, config.BackendLevelDB, path)
			store := recorded(t, &cfg)

			_, err := New(cfg).Run()
			require.Error(t, err)
			tc.check(t, err)

			require.Zero(t, store.backups)
			require.Zero(t, store.commits)

			entries, err := os.ReadDir(cfg.BackupDir)
			require.NoError(t, err)
			require.Empty(t, entries)
		})
	}
}

func TestMigrateMalformedVersion(t *testing.T) {
	path := seed(t, config.BackendLevelDB, &testhelpers.LegacyStore{
		Extra: map[string][]byte{"V": {3, 0}},
	})

	_, err := New(testConfig(t, config.BackendLevelDB, path)).Run()
	require.True(t, errors.Is(err, ErrMalformedVersion))
}

func TestMigrateBackupFailure(t *testing.T) {
	legacy, _ := legacyFixture()
	path := seed(t, config.BackendLevelDB, legacy)

	cfg := testConfig(t, config.BackendLevelDB, path)
	store := recorded(t, &cfg)
	store.backupErr = errors.New("no space left on device")

	_, err := New(cfg).Run()
	require.True(t, errors.Is(err, ErrBackupFailed))
	require.Contains(t, err.Error(), "no space left on device")
	require.Equal(t, 1, store.backups)
	require.Zero(t, store.commits)

	check := reopen(t, config.BackendLevelDB, path)
	v, err := check.Get(types.VersionKey)
	require.NoError(t, err)
	require.Equal(t, types.EncodeVersion(3), v)
}

func TestMigrateBackupReadOnlyFs(t *testing.T) {
	legacy, _ := legacyFixture()
	path := seed(t, config.BackendLevelDB, legacy)

	cfg := testConfig(t, config.BackendLevelDB, path)
	cfg.OpenStore = func() (database.Store, error) {
		return dblevel.OpenWithFs(path, database.Options{}, afero.NewReadOnlyFs(afero.NewOsFs()))
	}

	_, err := New(cfg).Run()
	require.True(t, errors.Is(err, ErrBackupFailed))

	check := reopen(t, config.BackendLevelDB, path)
	n, err := database.CountPrefix(check, []byte{types.LegacyTxNamespace})
	require.NoError(t, err)
	require.Equal(t, 8, n)
}

func TestMigrateBackupDestinationExists(t *testing.T) {
	legacy, _ := legacyFixture()
	path := seed(t, config.BackendLevelDB, legacy)

	cfg := testConfig(t, config.BackendLevelDB, path)
	taken := (&BackupManager{Dir: cfg.BackupDir, Ext: ".ldb", Now: fixedNow}).Path()
	require.NoError(t, os.MkdirAll(taken, 0o700))

	_, err := New(cfg).Run()
	require.True(t, errors.Is(err, ErrBackupFailed))
}

func TestMigrateDecodeFailure(t *testing.T) {
	legacy, _ := legacyFixture()
	legacy.Extra[string(types.LegacyTxKey(9, testhelpers.NewTx(9, 1, 1).TxHash()))] = []byte{1, 0, 0}
	path := seed(t, config.BackendLevelDB, legacy)

	cfg := testConfig(t, config.BackendLevelDB, path)
	store := recorded(t, &cfg)

	_, err := New(cfg).Run()
	var decErr *types.DecodeError
	require.True(t, errors.As(err, &decErr))
	require.Equal(t, "raw tx", decErr.Field)

	require.Equal(t, 1, store.backups)
	require.Zero(t, store.commits)

	check := reopen(t, config.BackendLevelDB, path)
	v, err := check.Get(types.VersionKey)
	require.NoError(t, err)
	require.Equal(t, types.EncodeVersion(3), v)
}

func TestMigrateCommitFailure(t *testing.T) {
	legacy, _ := legacyFixture()
	path := seed(t, config.BackendLevelDB, legacy)

	cfg := testConfig(t, config.BackendLevelDB, path)
	store := recorded(t, &cfg)
	store.commitErr = errors.New("io error")

	_, err := New(cfg).Run()
	require.True(t, errors.Is(err, ErrBatchCommitFailed))
	require.Equal(t, 1, store.commits)

	check := reopen(t, config.BackendLevelDB, path)
	v, err := check.Get(types.VersionKey)
	require.NoError(t, err)
	require.Equal(t, types.EncodeVersion(3), v)
}

func TestMigrateReplayFailure(t *testing.T) {
	legacy, _ := legacyFixture()
	path := seed(t, config.BackendLevelDB, legacy)

	inserter := &failingInserter{}
	cfg := testConfig(t, config.BackendLevelDB, path)
	cfg.OpenWallet = func() (Inserter, error) { return inserter, nil }

	res, err := New(cfg).Run()
	require.True(t, errors.Is(err, ErrReplayInsertFailed))
	require.True(t, inserter.closed)
	require.Zero(t, res.Replayed)

	// The rewrite committed before the replay started and left the tx
	// namespace empty.
	check := reopen(t, config.BackendLevelDB, path)
	v, err := check.Get(types.VersionKey)
	require.NoError(t, err)
	require.Equal(t, types.EncodeVersion(4), v)

	n, err := database.CountPrefix(check, []byte{types.LegacyTxNamespace})
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestMigrateMissingStore(t *testing.T) {
	cfg := testConfig(t, config.BackendLevelDB, filepath.Join(t.TempDir(), "nope"))
	_, err := New(cfg).Run()
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "nope"))
}
