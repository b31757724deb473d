package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/setavenger/walletdb-migrate/internal/config"
	"github.com/setavenger/walletdb-migrate/internal/testhelpers"
	"github.com/setavenger/walletdb-migrate/internal/types"
	"github.com/setavenger/walletdb-migrate/internal/walletdb"
	"github.com/stretchr/testify/require"
)

func TestExplorerLegacy(t *testing.T) {
	tx := testhelpers.NewTx(1, 1, 2)
	path := testhelpers.NewLegacyLevelDB(t, &testhelpers.LegacyStore{
		Version: testhelpers.V(3),
		Records: map[uint32][]*types.ExtendedTx{
			0: {testhelpers.Unconfirmed(tx, 1)},
		},
		Coins: true,
	})

	var out bytes.Buffer
	explorer, err := NewDatabaseExplorer(config.BackendLevelDB, path, &out)
	require.NoError(t, err)
	defer explorer.Close()

	version, err := explorer.Version()
	require.NoError(t, err)
	require.Equal(t, uint32(3), version)

	n, err := explorer.CountKeys(types.LegacyTxNamespace)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	require.NoError(t, explorer.PrintDatabaseInfo())
	require.Contains(t, out.String(), "Needs migration")
	require.Contains(t, out.String(), "LegacyTxDB")
}

func TestExplorerCurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "walletdb")
	db, err := walletdb.OpenPath(config.BackendLevelDB, path, 0, walletdb.Options{
		Network: &chaincfg.TestNet3Params,
		Create:  true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AddTX(testhelpers.Unconfirmed(testhelpers.NewTx(4, 1, 2), 1)))
	require.NoError(t, db.Close())

	var out bytes.Buffer
	explorer, err := NewDatabaseExplorer(config.BackendLevelDB, path, &out)
	require.NoError(t, err)
	defer explorer.Close()

	require.NoError(t, explorer.PrintDatabaseInfo())
	require.Contains(t, out.String(), "Network: "+chaincfg.TestNet3Params.Name)
	require.Contains(t, out.String(), "Credits: 2")
	require.Contains(t, out.String(), "1 pending")
	require.Contains(t, out.String(), "Credit                   : 2 keys")
}

func TestKeyFamily(t *testing.T) {
	require.Equal(t, "Version", keyFamily(4, []byte("V")))
	require.Equal(t, "Tx", keyFamily(4, []byte("tx0123")))
	require.Equal(t, "LegacyTxDB", keyFamily(3, []byte("tx0123")))
	require.Equal(t, "Unknown(0x68)", keyFamily(4, []byte("h\x00\x00\x00\x78")))
	require.Equal(t, "Unknown(0x56)", keyFamily(4, []byte("Vx")))
}

func TestParsePrefix(t *testing.T) {
	p, err := parsePrefix("t")
	require.NoError(t, err)
	require.Equal(t, byte('t'), p)

	p, err = parsePrefix("0x74")
	require.NoError(t, err)
	require.Equal(t, byte(0x74), p)

	_, err = parsePrefix("0x1ff")
	require.Error(t, err)
}
