package types

import (
	"encoding/binary"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// VersionKey holds the schema version as a little endian uint32. Both the
// legacy and the current layout use it.
var VersionKey = []byte{'V'}

// Legacy (version 3) transaction keyspace. Every key of the wallet tx
// database starts with the namespace byte followed by the big endian wallet
// id; the byte after the wallet id tells the record type apart.
//
//	't' | wid | 't' | txid               extended tx record
//	't' | wid | 'c' | txid | vout        coin
//	't' | wid | ...                      other indices
const (
	LegacyTxNamespace byte = 0x74 // 't'
	LegacyTxRecordTag byte = 0x74 // 't'
	LegacyCoinTag     byte = 0x63 // 'c'

	// LegacyTagOffset is the position of the record type byte.
	LegacyTagOffset = 5
)

const (
	SchemaVersionLegacy  uint32 = 3
	SchemaVersionCurrent uint32 = 4
)

// LegacyTxKey builds the key of an extended tx record.
func LegacyTxKey(wid uint32, hash chainhash.Hash) []byte {
	k := make([]byte, LegacyTagOffset+1+chainhash.HashSize)
	k[0] = LegacyTxNamespace
	binary.BigEndian.PutUint32(k[1:LegacyTagOffset], wid)
	k[LegacyTagOffset] = LegacyTxRecordTag
	copy(k[LegacyTagOffset+1:], hash[:])
	return k
}

// LegacyCoinKey builds the key of a legacy coin record.
func LegacyCoinKey(wid uint32, hash chainhash.Hash, vout uint32) []byte {
	k := make([]byte, LegacyTagOffset+1+chainhash.HashSize+4)
	k[0] = LegacyTxNamespace
	binary.BigEndian.PutUint32(k[1:LegacyTagOffset], wid)
	k[LegacyTagOffset] = LegacyCoinTag
	copy(k[LegacyTagOffset+1:], hash[:])
	binary.BigEndian.PutUint32(k[LegacyTagOffset+1+chainhash.HashSize:], vout)
	return k
}

// EncodeVersion returns the stored form of a schema version.
func EncodeVersion(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}
