package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/cockroachdb/errors"
)

const (
	ConfigFileName string = "walletdb.toml"

	// BackupPrefix is the fixed file name prefix of every pre-migration
	// backup. The capture time in unix milliseconds follows it.
	BackupPrefix string = "walletdb-bak-"

	// storeSuffix is stripped from the store path given on the command line.
	storeSuffix string = ".ldb"
)

// Supported store engines.
const (
	BackendLevelDB = "leveldb"
	BackendPebble  = "pebble"
	BackendBolt    = "bolt"
)

var (
	LogLevel = "info"
	LogsPath = ""

	Backend = BackendLevelDB
	Network = "main"

	// BackupDirectory defaults to the home directory of the user running the
	// migration.
	BackupDirectory = ""

	// CacheSize is the block cache handed to the store engine, in bytes.
	CacheSize = 32 << 20
)

// NormalizePath strips a trailing ".ldb" or ".ldb/" from a store path.
func NormalizePath(p string) string {
	p = strings.TrimSuffix(p, "/")
	return strings.TrimSuffix(p, storeSuffix)
}

// StorePath returns the directory the engine keeps the store in. leveldb
// stores live in "<path>.ldb"; the other engines use path as is.
func StorePath(backend, p string) string {
	p = NormalizePath(p)
	if backend == BackendLevelDB {
		return p + storeSuffix
	}
	return p
}

// ResolvePath expands a leading "~" to the home directory.
func ResolvePath(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		return filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	return p
}

// DefaultBackupDirectory is $HOME, or the working directory if no home can
// be determined.
func DefaultBackupDirectory() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return home
}

// ChainParams resolves a network name as accepted on the command line.
func ChainParams(network string) (*chaincfg.Params, error) {
	switch network {
	case "", "main", "mainnet":
		return &chaincfg.MainNetParams, nil
	case "testnet", "testnet3":
		return &chaincfg.TestNet3Params, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	case "simnet":
		return &chaincfg.SimNetParams, nil
	default:
		return nil, errors.Newf("unknown network %q", network)
	}
}

// ValidateBackend rejects engine names the store layer does not know.
func ValidateBackend(backend string) error {
	switch backend {
	case BackendLevelDB, BackendPebble, BackendBolt:
		return nil
	default:
		return errors.Newf("unknown backend %q", backend)
	}
}
