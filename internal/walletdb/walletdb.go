// Package walletdb is the version 4 wallet transaction store. It keeps one
// record per txid plus the height, pending, credit and spent indices that
// are derived from it.
package walletdb

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/cockroachdb/errors"
	"github.com/setavenger/walletdb-migrate/internal/database"
	"github.com/setavenger/walletdb-migrate/internal/database/dbopen"
	"github.com/setavenger/walletdb-migrate/internal/logging"
	"github.com/setavenger/walletdb-migrate/internal/types"
	"github.com/vmihailenco/msgpack/v5"
)

var (
	// ErrNetworkMismatch is returned by Open when the store was created for
	// a different network.
	ErrNetworkMismatch = errors.New("wallet store belongs to a different network")

	// ErrTxNotFound is returned by TX for unknown txids.
	ErrTxNotFound = errors.New("tx not found")
)

// VersionError is returned by Open for stores that are not at version 4.
type VersionError struct {
	Version uint32
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("wallet store is version %d, need %d",
		e.Version, types.SchemaVersionCurrent)
}

type Options struct {
	// Network defaults to mainnet.
	Network *chaincfg.Params

	// Verify runs context free sanity checks on every tx before it is
	// added. Bulk imports of txs that were accepted before turn it off.
	Verify bool

	// Create initialises an empty store at version 4.
	Create bool
}

// DB owns the store handle it was opened with.
type DB struct {
	store database.Store
	opts  Options
}

// OpenPath opens the store at path with the named engine and then the
// wallet on top of it.
func OpenPath(backend, path string, cacheSize int, opts Options) (*DB, error) {
	store, err := dbopen.Open(backend, path, database.Options{
		CreateIfMissing: opts.Create,
		CacheSize:       cacheSize,
	})
	if err != nil {
		return nil, err
	}

	db, err := Open(store, opts)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return db, nil
}

// Open checks the schema version and network of store. On success the
// returned DB owns store.
func Open(store database.Store, opts Options) (*DB, error) {
	if opts.Network == nil {
		opts.Network = &chaincfg.MainNetParams
	}
	db := &DB{store: store, opts: opts}

	if err := db.init(); err != nil {
		return nil, err
	}

	logging.L.Debug().
		Str("network", opts.Network.Name).
		Bool("verify", opts.Verify).
		Msg("wallet store opened")
	return db, nil
}

func (d *DB) init() error {
	b := d.store.NewBatch()

	data, err := d.store.Get(types.VersionKey)
	switch {
	case errors.Is(err, database.ErrNotFound) && d.opts.Create:
		b.Put(types.VersionKey, types.EncodeVersion(types.SchemaVersionCurrent))
	case errors.Is(err, database.ErrNotFound):
		return &VersionError{}
	case err != nil:
		return err
	case len(data) != 4:
		return errors.Newf("malformed version value %x", data)
	default:
		if v := binary.LittleEndian.Uint32(data); v != types.SchemaVersionCurrent {
			return &VersionError{Version: v}
		}
	}

	magic := make([]byte, 4)
	binary.LittleEndian.PutUint32(magic, uint32(d.opts.Network.Net))

	stored, err := d.store.Get(keyNetwork)
	switch {
	case errors.Is(err, database.ErrNotFound):
		b.Put(keyNetwork, magic)
	case err != nil:
		return err
	case !bytes.Equal(stored, magic):
		logging.L.Error().
			Hex("stored", stored).
			Str("network", d.opts.Network.Name).
			Msg("network mismatch")
		return ErrNetworkMismatch
	}

	if b.Len() == 0 {
		return nil
	}
	return b.Commit()
}

var knownNetworks = []*chaincfg.Params{
	&chaincfg.MainNetParams,
	&chaincfg.TestNet3Params,
	&chaincfg.RegressionNetParams,
	&chaincfg.SigNetParams,
	&chaincfg.SimNetParams,
}

// StoredNetwork reads the network a version 4 store was created for without
// opening the wallet.
func StoredNetwork(store database.Store) (*chaincfg.Params, error) {
	data, err := store.Get(keyNetwork)
	if err != nil {
		return nil, err
	}
	if len(data) != 4 {
		return nil, errors.Newf("malformed network value %x", data)
	}
	magic := wire.BitcoinNet(binary.LittleEndian.Uint32(data))
	for _, params := range knownNetworks {
		if params.Net == magic {
			return params, nil
		}
	}
	return nil, errors.Newf("unknown network magic %s", magic)
}

// Network returns the params the wallet was opened with.
func (d *DB) Network() *chaincfg.Params {
	return d.opts.Network
}

// AddTX inserts or refreshes a tx. The result does not depend on the order
// txs are added in: a spend seen before the output it spends leaves a spent
// marker that keeps the output from being credited later.
func (d *DB) AddTX(rec *types.ExtendedTx) error {
	if d.opts.Verify {
		if err := blockchain.CheckTransactionSanity(btcutil.NewTx(rec.Tx)); err != nil {
			return errors.Wrapf(err, "tx %s failed sanity check", rec.Hash())
		}
	}

	hash := rec.Hash()
	b := d.store.NewBatch()

	old, err := d.TX(hash)
	switch {
	case err == nil:
		deleteIndex(b, old, hash)
	case !errors.Is(err, ErrTxNotFound):
		return err
	}

	value, err := encodeTxRecord(rec)
	if err != nil {
		return err
	}
	b.Put(KeyTx(hash), value)
	putIndex(b, rec, hash)

	coinbase := blockchain.IsCoinBaseTx(rec.Tx)
	if !coinbase {
		for _, in := range rec.Tx.TxIn {
			b.Put(KeySpent(in.PreviousOutPoint), hash[:])
			b.Delete(KeyCredit(in.PreviousOutPoint))
		}
	}

	for vout, out := range rec.Tx.TxOut {
		op := wire.OutPoint{Hash: hash, Index: uint32(vout)}

		spent, err := database.Has(d.store, KeySpent(op))
		if err != nil {
			return err
		}
		if spent {
			continue
		}

		val, err := msgpack.Marshal(&credit{
			Value:    out.Value,
			PkScript: out.PkScript,
			Height:   rec.Height,
			Coinbase: coinbase,
		})
		if err != nil {
			return err
		}
		b.Put(KeyCredit(op), val)
	}

	if err := b.Commit(); err != nil {
		logging.L.Err(err).Stringer("txid", hash).Msg("failed to add tx")
		return err
	}

	logging.L.Trace().Stringer("txid", hash).Int32("height", rec.Height).Msg("tx added")
	return nil
}

func putIndex(b database.Batch, rec *types.ExtendedTx, hash chainhash.Hash) {
	if rec.Confirmed() {
		b.Put(KeyHeight(uint32(rec.Height), hash), nil)
		return
	}
	b.Put(KeyPending(hash), nil)
}

func deleteIndex(b database.Batch, rec *types.ExtendedTx, hash chainhash.Hash) {
	if rec.Confirmed() {
		b.Delete(KeyHeight(uint32(rec.Height), hash))
		return
	}
	b.Delete(KeyPending(hash))
}

// TX returns the record stored for hash.
func (d *DB) TX(hash chainhash.Hash) (*types.ExtendedTx, error) {
	data, err := d.store.Get(KeyTx(hash))
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrTxNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeTxRecord(data)
}

// ForEachTX calls fn for every stored tx in txid order.
func (d *DB) ForEachTX(fn func(rec *types.ExtendedTx) error) error {
	prefix := Prefix(KTx)
	return d.store.ForEach(prefix, database.PrefixUpperBound(prefix), func(_, v []byte) error {
		rec, err := decodeTxRecord(v)
		if err != nil {
			return err
		}
		return fn(rec)
	})
}

// Heights returns the txids confirmed in [start, end] ordered by height.
func (d *DB) Heights(start, end uint32) ([]chainhash.Hash, error) {
	lb, ub := BoundsHeight(start, end)

	var hashes []chainhash.Hash
	err := d.store.ForEach(lb, ub, func(k, _ []byte) error {
		h, ok := parseHashKey(k, sizePrefix+SizeHeight)
		if !ok {
			return errors.Newf("malformed height key %x", k)
		}
		hashes = append(hashes, h)
		return nil
	})
	return hashes, err
}

// Pending returns the txids of unconfirmed txs.
func (d *DB) Pending() ([]chainhash.Hash, error) {
	prefix := Prefix(KPending)

	var hashes []chainhash.Hash
	err := d.store.ForEach(prefix, database.PrefixUpperBound(prefix), func(k, _ []byte) error {
		h, ok := parseHashKey(k, sizePrefix)
		if !ok {
			return errors.Newf("malformed pending key %x", k)
		}
		hashes = append(hashes, h)
		return nil
	})
	return hashes, err
}

// Credit is an unspent wallet output.
type Credit struct {
	OutPoint wire.OutPoint
	Value    btcutil.Amount
	PkScript []byte
	Height   int32
	Coinbase bool
}

// Credits returns all unspent outputs in outpoint order.
func (d *DB) Credits() ([]Credit, error) {
	prefix := Prefix(KCredit)

	var credits []Credit
	err := d.store.ForEach(prefix, database.PrefixUpperBound(prefix), func(k, v []byte) error {
		op, ok := parseOutPointKey(k)
		if !ok {
			return errors.Newf("malformed credit key %x", k)
		}
		var c credit
		if err := msgpack.Unmarshal(v, &c); err != nil {
			return errors.Wrapf(err, "decoding credit %v", op)
		}
		credits = append(credits, Credit{
			OutPoint: op,
			Value:    btcutil.Amount(c.Value),
			PkScript: c.PkScript,
			Height:   c.Height,
			Coinbase: c.Coinbase,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return credits, nil
}

// Balance sums all credits.
func (d *DB) Balance() (btcutil.Amount, error) {
	credits, err := d.Credits()
	if err != nil {
		return 0, err
	}
	var total btcutil.Amount
	for _, c := range credits {
		total += c.Value
	}
	return total, nil
}

func (d *DB) Close() error {
	return d.store.Close()
}
