package migrate

import (
	"bytes"
	"sort"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/cockroachdb/errors"
	"github.com/setavenger/walletdb-migrate/internal/database"
	"github.com/setavenger/walletdb-migrate/internal/logging"
	"github.com/setavenger/walletdb-migrate/internal/types"
)

// KeyClass is the role of a key in the legacy keyspace.
type KeyClass int

const (
	// KeyForeign keys live outside the tx namespace and are left alone.
	KeyForeign KeyClass = iota

	// KeyOpaque keys are in the tx namespace but are not tx records. They
	// are deleted without being read.
	KeyOpaque

	// KeyRecord keys hold an extended tx record.
	KeyRecord
)

func (c KeyClass) String() string {
	switch c {
	case KeyForeign:
		return "foreign"
	case KeyOpaque:
		return "opaque"
	case KeyRecord:
		return "record"
	default:
		return "unknown"
	}
}

// Classify looks at the namespace byte and the record tag byte only.
func Classify(key []byte) KeyClass {
	if len(key) == 0 || key[0] != types.LegacyTxNamespace {
		return KeyForeign
	}
	if len(key) > types.LegacyTagOffset && key[types.LegacyTagOffset] == types.LegacyTxRecordTag {
		return KeyRecord
	}
	return KeyOpaque
}

// Entry is a copied key/value pair.
type Entry struct {
	Key   []byte
	Value []byte
}

// ScanResult splits the tx namespace into records to decode and the rest.
// The two sets are disjoint and together cover every key that starts with
// the namespace byte.
type ScanResult struct {
	Records []Entry
	Opaque  [][]byte
}

// Obsolete returns every key that the rewrite deletes.
func (r *ScanResult) Obsolete() [][]byte {
	keys := make([][]byte, 0, len(r.Records)+len(r.Opaque))
	for _, e := range r.Records {
		keys = append(keys, e.Key)
	}
	return append(keys, r.Opaque...)
}

// Scan walks the whole key range once. Foreign keys are counted but not
// kept.
func Scan(store database.Store) (*ScanResult, error) {
	res := &ScanResult{}
	foreign := 0

	err := store.ForEach(nil, nil, func(k, v []byte) error {
		switch Classify(k) {
		case KeyRecord:
			res.Records = append(res.Records, Entry{
				Key:   database.CopyBytes(k),
				Value: database.CopyBytes(v),
			})
		case KeyOpaque:
			res.Opaque = append(res.Opaque, database.CopyBytes(k))
		default:
			foreign++
		}
		return nil
	})
	if err != nil {
		return nil, &ReadError{Err: err}
	}

	logging.L.Debug().
		Int("records", len(res.Records)).
		Int("opaque", len(res.Opaque)).
		Int("foreign", foreign).
		Msg("keyspace scanned")
	return res, nil
}

// TxSet holds decoded records keyed by txid. The same tx may be stored
// under several wallet ids; a later Put for a txid replaces the earlier
// record.
type TxSet struct {
	txs map[chainhash.Hash]*types.ExtendedTx
}

func NewTxSet() *TxSet {
	return &TxSet{txs: make(map[chainhash.Hash]*types.ExtendedTx)}
}

// Put reports whether a record for the same txid was replaced.
func (s *TxSet) Put(rec *types.ExtendedTx) bool {
	hash := rec.Hash()
	_, replaced := s.txs[hash]
	s.txs[hash] = rec
	return replaced
}

func (s *TxSet) Len() int {
	return len(s.txs)
}

// Records returns the records ordered by txid bytes.
func (s *TxSet) Records() []*types.ExtendedTx {
	recs := make([]*types.ExtendedTx, 0, len(s.txs))
	for _, rec := range s.txs {
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool {
		hi, hj := recs[i].Hash(), recs[j].Hash()
		return bytes.Compare(hi[:], hj[:]) < 0
	})
	return recs
}

// Decode parses every record in scan order. The first malformed record
// aborts the whole run. The coin section is not read: the version 4 store
// derives credits from tx outputs, so legacy coins are dropped.
func Decode(entries []Entry) (*TxSet, error) {
	set := NewTxSet()
	for _, e := range entries {
		rec, err := types.DeSerialiseExtended(e.Value, false)
		if err != nil {
			logging.L.Err(err).Hex("key", e.Key).Msg("failed to decode record")
			return nil, errors.Wrapf(err, "decoding record %x", e.Key)
		}
		if set.Put(rec) {
			logging.L.Debug().Stringer("txid", rec.Hash()).Msg("duplicate record replaced")
		}
	}
	return set, nil
}
