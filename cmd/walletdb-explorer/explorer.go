package main

import (
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/setavenger/walletdb-migrate/internal/database"
	"github.com/setavenger/walletdb-migrate/internal/database/dbopen"
	"github.com/setavenger/walletdb-migrate/internal/types"
	"github.com/setavenger/walletdb-migrate/internal/walletdb"
)

// DatabaseExplorer provides read only views of a wallet store of either
// schema version.
type DatabaseExplorer struct {
	store database.Store
	out   io.Writer
}

// NewDatabaseExplorer opens the store at path. The store must exist.
func NewDatabaseExplorer(backend, path string, out io.Writer) (*DatabaseExplorer, error) {
	store, err := dbopen.Open(backend, path, database.Options{})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	return &DatabaseExplorer{store: store, out: out}, nil
}

func (de *DatabaseExplorer) Close() error {
	return de.store.Close()
}

// Version returns the schema version, or an error if none is stored.
func (de *DatabaseExplorer) Version() (uint32, error) {
	data, err := de.store.Get(types.VersionKey)
	if err != nil {
		return 0, err
	}
	if len(data) != 4 {
		return 0, errors.Newf("malformed version value %x", data)
	}
	return binary.LittleEndian.Uint32(data), nil
}

// CountKeys counts keys starting with prefix.
func (de *DatabaseExplorer) CountKeys(prefix byte) (int, error) {
	return database.CountPrefix(de.store, []byte{prefix})
}

// ListAllKeyTypes returns a count of keys by family name. Version 4 wallet
// keys are told apart by the byte after the namespace, everything else by
// its first byte.
func (de *DatabaseExplorer) ListAllKeyTypes(version uint32) (map[string]int, error) {
	keyCounts := make(map[string]int)
	err := de.store.ForEach(nil, nil, func(k, _ []byte) error {
		if len(k) > 0 {
			keyCounts[keyFamily(version, k)]++
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "iterator error")
	}
	return keyCounts, nil
}

var walletKeyNames = map[byte]string{
	walletdb.KNetwork: "Network",
	walletdb.KTx:      "Tx",
	walletdb.KHeight:  "Height",
	walletdb.KPending: "Pending",
	walletdb.KCredit:  "Credit",
	walletdb.KSpent:   "Spent",
}

func keyFamily(version uint32, k []byte) string {
	switch {
	case k[0] == types.VersionKey[0] && len(k) == 1:
		return "Version"
	case k[0] != types.LegacyTxNamespace:
	case version == types.SchemaVersionLegacy:
		return "LegacyTxDB"
	case len(k) > 1 && walletKeyNames[k[1]] != "":
		return walletKeyNames[k[1]]
	}
	return fmt.Sprintf("Unknown(0x%02X)", k[0])
}

// PrintKeyTypeSummary prints a summary of key types in the database
func (de *DatabaseExplorer) PrintKeyTypeSummary(version uint32) error {
	keyCounts, err := de.ListAllKeyTypes(version)
	if err != nil {
		return err
	}

	fmt.Fprintln(de.out, "Database Key Type Summary:")
	fmt.Fprintln(de.out, "=========================")

	names := make([]string, 0, len(keyCounts))
	for name := range keyCounts {
		names = append(names, name)
	}
	sort.Strings(names)

	totalKeys := 0
	for _, name := range names {
		fmt.Fprintf(de.out, "%-25s: %d keys\n", name, keyCounts[name])
		totalKeys += keyCounts[name]
	}

	fmt.Fprintf(de.out, "%-25s: %d keys\n", "TOTAL", totalKeys)
	return nil
}

// PrintDatabaseInfo prints the schema version, key summary and, for version
// 4 stores, the wallet totals.
func (de *DatabaseExplorer) PrintDatabaseInfo() error {
	fmt.Fprintln(de.out, "Wallet Database Information")
	fmt.Fprintln(de.out, "===========================")

	version, err := de.Version()
	if err != nil {
		fmt.Fprintf(de.out, "Error getting version: %v\n", err)
	} else {
		fmt.Fprintf(de.out, "Version: %d\n", version)
	}
	if version == types.SchemaVersionLegacy {
		fmt.Fprintln(de.out, "Needs migration: run walletdb-migrate")
	}

	fmt.Fprintln(de.out)

	if err := de.PrintKeyTypeSummary(version); err != nil {
		return errors.Wrap(err, "failed to print key type summary")
	}

	if version != types.SchemaVersionCurrent {
		return nil
	}

	fmt.Fprintln(de.out)
	return de.printWalletInfo()
}

// Wallet opens the version 4 wallet on top of the explorer's store. The
// explorer keeps ownership of the store; do not close the wallet.
func (de *DatabaseExplorer) Wallet() (*walletdb.DB, error) {
	params, err := walletdb.StoredNetwork(de.store)
	if err != nil {
		return nil, errors.Wrap(err, "reading network")
	}
	return walletdb.Open(de.store, walletdb.Options{Network: params})
}

func (de *DatabaseExplorer) printWalletInfo() error {
	db, err := de.Wallet()
	if err != nil {
		return err
	}
	params := db.Network()

	pending, err := db.Pending()
	if err != nil {
		return err
	}
	credits, err := db.Credits()
	if err != nil {
		return err
	}
	balance, err := db.Balance()
	if err != nil {
		return err
	}
	txs, err := database.CountPrefix(de.store, walletdb.Prefix(walletdb.KTx))
	if err != nil {
		return err
	}

	fmt.Fprintln(de.out, "Wallet:")
	fmt.Fprintf(de.out, "  Network: %s\n", params.Name)
	fmt.Fprintf(de.out, "  Txs: %d (%d pending)\n", txs, len(pending))
	fmt.Fprintf(de.out, "  Credits: %d\n", len(credits))
	fmt.Fprintf(de.out, "  Balance: %s\n", balance)
	return nil
}
