package types

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/cockroachdb/errors"
)

// Sentinels of the legacy extended record. Height and index are stored as
// unsigned 32 bit integers, the wallet works with -1 for "not in a block".
const (
	// HeightUnconfirmedSentinel is the stored height of an unconfirmed tx.
	HeightUnconfirmedSentinel uint32 = 0x7fffffff

	// IndexUnsetSentinel is the stored position in block of an unconfirmed
	// tx.
	IndexUnsetSentinel uint32 = 0x7fffffff

	HeightUnconfirmed int32 = -1
	IndexUnset        int32 = -1
)

// ErrOutOfRange is the cause of a DecodeError for a height or index above
// the sentinel. No valid record stores one.
var ErrOutOfRange = errors.New("value out of range")

// NullHash is stored in place of the block hash of an unconfirmed tx.
var NullHash chainhash.Hash

// ExtendedTx is a transaction with the wallet metadata the legacy store kept
// next to it.
type ExtendedTx struct {
	Tx *wire.MsgTx

	Height int32           // -1 while unconfirmed
	Block  *chainhash.Hash // nil while unconfirmed
	Index  int32           // position in block, -1 while unconfirmed

	Time     uint32 // creation time, unix seconds
	Received uint32 // time first seen, unix seconds

	// Coins is only filled when the coin section was decoded. It is aligned
	// with Tx.TxIn; a nil entry means no coin was recorded for that input.
	Coins []*Coin
}

// Hash returns the txid.
func (e *ExtendedTx) Hash() chainhash.Hash {
	return e.Tx.TxHash()
}

// Confirmed reports whether the record points into a block.
func (e *ExtendedTx) Confirmed() bool {
	return e.Height != HeightUnconfirmed && e.Block != nil
}

// DecodeError is returned for truncated or malformed legacy blobs.
type DecodeError struct {
	Field string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("malformed extended tx record: %s: %v", e.Field, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func decodeErr(field string, err error) error {
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return &DecodeError{Field: field, Err: err}
}

// DeSerialiseExtended parses a legacy extended tx record:
//
//	[raw tx][u32 height][32B block hash][u32 index][u32 time][u32 received]
//	[coin section, only read if saveCoins]
//
// Integers are little endian. The coin section is a varint count followed by
// that many varbytes coin blobs, one per input; an empty blob means no coin
// was recorded. Bytes after the fixed part are ignored unless saveCoins is
// set.
func DeSerialiseExtended(data []byte, saveCoins bool) (*ExtendedTx, error) {
	r := bytes.NewReader(data)

	tx := new(wire.MsgTx)
	if err := tx.Deserialize(r); err != nil {
		return nil, decodeErr("raw tx", err)
	}

	var height, index, ts, ps uint32
	var block chainhash.Hash

	if err := binary.Read(r, binary.LittleEndian, &height); err != nil {
		return nil, decodeErr("height", err)
	}
	if _, err := io.ReadFull(r, block[:]); err != nil {
		return nil, decodeErr("block hash", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &index); err != nil {
		return nil, decodeErr("index", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &ts); err != nil {
		return nil, decodeErr("time", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &ps); err != nil {
		return nil, decodeErr("received", err)
	}

	h, err := heightFromWire(height)
	if err != nil {
		return nil, decodeErr("height", err)
	}
	idx, err := indexFromWire(index)
	if err != nil {
		return nil, decodeErr("index", err)
	}

	ext := &ExtendedTx{
		Tx:       tx,
		Height:   h,
		Index:    idx,
		Time:     ts,
		Received: ps,
	}
	if block != NullHash {
		ext.Block = &block
	}

	if !saveCoins {
		return ext, nil
	}

	if err := ext.readCoins(r); err != nil {
		return nil, err
	}
	return ext, nil
}

func (e *ExtendedTx) readCoins(r *bytes.Reader) error {
	count, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return decodeErr("coin count", err)
	}
	if count > uint64(len(e.Tx.TxIn)) {
		return decodeErr("coin count", errors.Newf(
			"%d coins for %d inputs", count, len(e.Tx.TxIn),
		))
	}

	e.Coins = make([]*Coin, len(e.Tx.TxIn))
	for i := uint64(0); i < count; i++ {
		blob, err := wire.ReadVarBytes(r, 0, wire.MaxMessagePayload, "coin")
		if err != nil {
			return decodeErr(fmt.Sprintf("coin %d", i), err)
		}
		if len(blob) == 0 {
			continue
		}

		coin, err := DeSerialiseCoin(blob)
		if err != nil {
			return err
		}
		prevOut := e.Tx.TxIn[i].PreviousOutPoint
		coin.Hash = prevOut.Hash
		coin.Index = prevOut.Index
		e.Coins[i] = coin
	}
	return nil
}

// SerialiseExtended writes the record in the legacy layout read by
// DeSerialiseExtended.
func (e *ExtendedTx) SerialiseExtended(saveCoins bool) ([]byte, error) {
	var buf bytes.Buffer
	if err := e.Tx.Serialize(&buf); err != nil {
		return nil, err
	}

	block := NullHash
	if e.Block != nil {
		block = *e.Block
	}

	if err := binary.Write(&buf, binary.LittleEndian, heightToWire(e.Height)); err != nil {
		return nil, err
	}
	buf.Write(block[:])
	fields := []uint32{indexToWire(e.Index), e.Time, e.Received}
	for _, f := range fields {
		if err := binary.Write(&buf, binary.LittleEndian, f); err != nil {
			return nil, err
		}
	}

	if !saveCoins {
		return buf.Bytes(), nil
	}

	if err := wire.WriteVarInt(&buf, 0, uint64(len(e.Tx.TxIn))); err != nil {
		return nil, err
	}
	for i := range e.Tx.TxIn {
		var blob []byte
		if i < len(e.Coins) && e.Coins[i] != nil {
			var err error
			blob, err = e.Coins[i].SerialiseCoin()
			if err != nil {
				return nil, err
			}
		}
		if err := wire.WriteVarBytes(&buf, 0, blob); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func heightFromWire(h uint32) (int32, error) {
	if h == HeightUnconfirmedSentinel {
		return HeightUnconfirmed, nil
	}
	if h > math.MaxInt32 {
		return 0, errors.Wrapf(ErrOutOfRange, "height %d", h)
	}
	return int32(h), nil
}

func heightToWire(h int32) uint32 {
	if h < 0 {
		return HeightUnconfirmedSentinel
	}
	return uint32(h)
}

func indexFromWire(i uint32) (int32, error) {
	if i == IndexUnsetSentinel {
		return IndexUnset, nil
	}
	if i > math.MaxInt32 {
		return 0, errors.Wrapf(ErrOutOfRange, "index %d", i)
	}
	return int32(i), nil
}

func indexToWire(i int32) uint32 {
	if i < 0 {
		return IndexUnsetSentinel
	}
	return uint32(i)
}
