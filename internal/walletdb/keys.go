package walletdb

import (
	"encoding/binary"
	"math"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/setavenger/walletdb-migrate/internal/types"
)

const (
	SizeHash   = chainhash.HashSize
	SizeHeight = 4
	SizeVout   = 4
)

// Namespace is the top level byte of every version 4 wallet key. It is the
// byte the legacy tx database lived under; the rewrite empties it before
// anything is inserted. The rest of the legacy keyspace (address, block and
// account indices) stays in place untouched.
const Namespace = types.LegacyTxNamespace

// Prefix Keys "K", stored right after Namespace.
const (
	// KNetwork holds the network magic the wallet was created for.
	KNetwork = 'O'

	// KTx maps txid to the tx record.
	KTx = 'x'

	// KHeight indexes confirmed txs by height: height | txid.
	KHeight = 'h'

	// KPending indexes unconfirmed txs: txid.
	KPending = 'p'

	// KCredit holds unspent wallet outputs: txid | vout.
	KCredit = 'c'

	// KSpent marks outpoints spent by a wallet tx: prev txid | prev vout ->
	// spending txid.
	KSpent = 's'
)

// sizePrefix is Namespace plus the K byte.
const sizePrefix = 2

var keyNetwork = Prefix(KNetwork)

// Prefix returns the two byte prefix of a key family.
func Prefix(k byte) []byte {
	return []byte{Namespace, k}
}

func newKey(k byte, size int) []byte {
	key := make([]byte, sizePrefix+size)
	key[0] = Namespace
	key[1] = k
	return key
}

func KeyTx(hash chainhash.Hash) []byte {
	k := newKey(KTx, SizeHash)
	copy(k[sizePrefix:], hash[:])
	return k
}

func KeyHeight(height uint32, hash chainhash.Hash) []byte {
	k := newKey(KHeight, SizeHeight+SizeHash)
	binary.BigEndian.PutUint32(k[sizePrefix:sizePrefix+SizeHeight], height)
	copy(k[sizePrefix+SizeHeight:], hash[:])
	return k
}

func KeyPending(hash chainhash.Hash) []byte {
	k := newKey(KPending, SizeHash)
	copy(k[sizePrefix:], hash[:])
	return k
}

func KeyCredit(op wire.OutPoint) []byte {
	return outPointKey(KCredit, op)
}

func KeySpent(op wire.OutPoint) []byte {
	return outPointKey(KSpent, op)
}

func outPointKey(prefix byte, op wire.OutPoint) []byte {
	k := newKey(prefix, SizeHash+SizeVout)
	copy(k[sizePrefix:sizePrefix+SizeHash], op.Hash[:])
	binary.BigEndian.PutUint32(k[sizePrefix+SizeHash:], op.Index)
	return k
}

func parseOutPointKey(k []byte) (wire.OutPoint, bool) {
	var op wire.OutPoint
	if len(k) != sizePrefix+SizeHash+SizeVout {
		return op, false
	}
	copy(op.Hash[:], k[sizePrefix:sizePrefix+SizeHash])
	op.Index = binary.BigEndian.Uint32(k[sizePrefix+SizeHash:])
	return op, true
}

// parseHashKey reads the txid of a pending or height index key.
func parseHashKey(k []byte, offset int) (chainhash.Hash, bool) {
	var h chainhash.Hash
	if len(k) != offset+SizeHash {
		return h, false
	}
	copy(h[:], k[offset:])
	return h, true
}

// BoundsHeight covers the confirmed index for heights in [start, end].
func BoundsHeight(start, end uint32) (lb, ub []byte) {
	lb = newKey(KHeight, SizeHeight)
	binary.BigEndian.PutUint32(lb[sizePrefix:], start)

	if end == math.MaxUint32 {
		return lb, Prefix(KHeight + 1)
	}
	ub = newKey(KHeight, SizeHeight)
	binary.BigEndian.PutUint32(ub[sizePrefix:], end+1)
	return lb, ub
}
