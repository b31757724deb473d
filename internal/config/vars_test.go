package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/require"
)

func TestNormalizePath(t *testing.T) {
	tests := map[string]string{
		"/data/walletdb":         "/data/walletdb",
		"/data/walletdb.ldb":     "/data/walletdb",
		"/data/walletdb.ldb/":    "/data/walletdb",
		"/data/walletdb/":        "/data/walletdb",
		"/data/walletdb.ldb.bak": "/data/walletdb.ldb.bak",
	}
	for in, want := range tests {
		require.Equal(t, want, NormalizePath(in), in)
	}
}

func TestStorePath(t *testing.T) {
	require.Equal(t, "/data/walletdb.ldb", StorePath(BackendLevelDB, "/data/walletdb"))
	require.Equal(t, "/data/walletdb.ldb", StorePath(BackendLevelDB, "/data/walletdb.ldb/"))
	require.Equal(t, "/data/walletdb", StorePath(BackendPebble, "/data/walletdb"))
	require.Equal(t, "/data/walletdb", StorePath(BackendBolt, "/data/walletdb.ldb"))
}

func TestResolvePath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	require.Equal(t, filepath.Join(home, "backups"), ResolvePath("~/backups"))
	require.Equal(t, home, ResolvePath("~"))
	require.Equal(t, "/tmp/x", ResolvePath("/tmp/x"))
	require.Equal(t, "~user/x", ResolvePath("~user/x"))
}

func TestChainParams(t *testing.T) {
	tests := []struct {
		name string
		want *chaincfg.Params
	}{
		{"", &chaincfg.MainNetParams},
		{"main", &chaincfg.MainNetParams},
		{"testnet", &chaincfg.TestNet3Params},
		{"regtest", &chaincfg.RegressionNetParams},
		{"signet", &chaincfg.SigNetParams},
		{"simnet", &chaincfg.SimNetParams},
	}
	for _, tc := range tests {
		params, err := ChainParams(tc.name)
		require.NoError(t, err)
		require.Equal(t, tc.want.Name, params.Name)
	}

	_, err := ChainParams("litecoin")
	require.Error(t, err)
}

func TestValidateBackend(t *testing.T) {
	for _, b := range []string{BackendLevelDB, BackendPebble, BackendBolt} {
		require.NoError(t, ValidateBackend(b))
	}
	require.Error(t, ValidateBackend("rocksdb"))
}
