// Package testhelpers builds legacy wallet fixtures for tests.
package testhelpers

import (
	"path/filepath"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/setavenger/walletdb-migrate/internal/database"
	"github.com/setavenger/walletdb-migrate/internal/dblevel"
	"github.com/setavenger/walletdb-migrate/internal/types"
	"github.com/stretchr/testify/require"
)

// p2wpkh style script, the content does not matter to the wallet store.
var testScript = []byte{
	0x00, 0x14,
	0x4a, 0xe8, 0x15, 0x72, 0xf0, 0x6e, 0x1b, 0x88, 0xfd, 0x5c,
	0xed, 0x7a, 0x1a, 0x00, 0x09, 0x45, 0x43, 0x2e, 0x83, 0xe1,
}

// NewTx returns a deterministic tx spending nIn outputs of a fake parent
// derived from seed and creating nOut outputs.
func NewTx(seed byte, nIn, nOut int) *wire.MsgTx {
	tx := wire.NewMsgTx(2)
	for i := 0; i < nIn; i++ {
		var prev chainhash.Hash
		prev[0] = seed
		prev[1] = byte(i)
		prev[31] = 0xee
		tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&prev, uint32(i)), []byte{0x51}, nil))
	}
	for i := 0; i < nOut; i++ {
		tx.AddTxOut(wire.NewTxOut(int64(seed)*1000+int64(i)+1, testScript))
	}
	return tx
}

// Spend returns a tx spending the given outputs of parent.
func Spend(parent *wire.MsgTx, vouts ...uint32) *wire.MsgTx {
	hash := parent.TxHash()
	tx := wire.NewMsgTx(2)
	for _, vout := range vouts {
		tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&hash, vout), []byte{0x51}, nil))
	}
	tx.AddTxOut(wire.NewTxOut(1, testScript))
	return tx
}

// Unconfirmed wraps tx as an unconfirmed legacy record.
func Unconfirmed(tx *wire.MsgTx, ts uint32) *types.ExtendedTx {
	return &types.ExtendedTx{
		Tx:       tx,
		Height:   types.HeightUnconfirmed,
		Index:    types.IndexUnset,
		Time:     ts,
		Received: ts,
	}
}

// Confirmed wraps tx as a legacy record mined at height.
func Confirmed(tx *wire.MsgTx, height int32, index int32, ts uint32) *types.ExtendedTx {
	var block chainhash.Hash
	block[0] = byte(height)
	block[1] = byte(height >> 8)
	block[31] = 0xbb
	return &types.ExtendedTx{
		Tx:       tx,
		Height:   height,
		Block:    &block,
		Index:    index,
		Time:     ts,
		Received: ts + 1,
	}
}

// Extended serialises rec in the legacy layout, failing the test on error.
func Extended(t *testing.T, rec *types.ExtendedTx, saveCoins bool) []byte {
	t.Helper()

	blob, err := rec.SerialiseExtended(saveCoins)
	require.NoError(t, err)
	return blob
}

// LegacyStore describes the content of a version 3 store.
type LegacyStore struct {
	// Version is written under the version key unless nil.
	Version *uint32

	// Records maps wallet ids to their tx records.
	Records map[uint32][]*types.ExtendedTx

	// Coins writes one coin sub record per output of every record.
	Coins bool

	// Extra holds foreign keys that must survive the migration.
	Extra map[string][]byte
}

// V returns a pointer to v for LegacyStore.Version.
func V(v uint32) *uint32 { return &v }

// Write puts the described content into store.
func (l *LegacyStore) Write(t *testing.T, store database.Store) {
	t.Helper()

	b := store.NewBatch()
	if l.Version != nil {
		b.Put(types.VersionKey, types.EncodeVersion(*l.Version))
	}
	for wid, recs := range l.Records {
		for _, rec := range recs {
			hash := rec.Hash()
			b.Put(types.LegacyTxKey(wid, hash), Extended(t, rec, false))
			if !l.Coins {
				continue
			}
			for vout, out := range rec.Tx.TxOut {
				coin := &types.Coin{
					Version:  1,
					Height:   rec.Height,
					Value:    out.Value,
					PkScript: out.PkScript,
				}
				blob, err := coin.SerialiseCoin()
				require.NoError(t, err)
				b.Put(types.LegacyCoinKey(wid, hash, uint32(vout)), blob)
			}
		}
	}
	for k, v := range l.Extra {
		b.Put([]byte(k), v)
	}
	require.NoError(t, b.Commit())
}

// NewLegacyLevelDB creates a leveldb store in a temp dir filled with l and
// closes it again. It returns the store path.
func NewLegacyLevelDB(t *testing.T, l *LegacyStore) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "walletdb")
	store, err := dblevel.OpenDBConnection(path, database.Options{CreateIfMissing: true})
	require.NoError(t, err)
	l.Write(t, store)
	require.NoError(t, store.Close())
	return path
}

// Keys returns all keys in store as strings.
func Keys(t *testing.T, store database.Store) []string {
	t.Helper()

	var keys []string
	err := store.ForEach(nil, nil, func(k, _ []byte) error {
		keys = append(keys, string(k))
		return nil
	})
	require.NoError(t, err)
	return keys
}
