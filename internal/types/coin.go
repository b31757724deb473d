package types

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// maxScriptSize bounds the script read from a coin blob.
const maxScriptSize = wire.MaxMessagePayload

// Coin is a spendable output as the legacy wallet stored it next to the
// input that spends it. Hash and Index are not part of the serialised blob,
// they are taken from the spending input's previous outpoint.
type Coin struct {
	Hash     chainhash.Hash
	Index    uint32
	Version  int32
	Height   int32 // -1 while unconfirmed
	Value    int64
	PkScript []byte
	Coinbase bool
}

// OutPoint returns the outpoint the coin was created at.
func (c *Coin) OutPoint() wire.OutPoint {
	return wire.OutPoint{Hash: c.Hash, Index: c.Index}
}

// DeSerialiseCoin parses
// [u32 version][u32 height][u64 value][varbytes script][u8 coinbase],
// all little endian.
func DeSerialiseCoin(data []byte) (*Coin, error) {
	r := bytes.NewReader(data)
	c := new(Coin)

	var version, height uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, decodeErr("coin version", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &height); err != nil {
		return nil, decodeErr("coin height", err)
	}
	var value uint64
	if err := binary.Read(r, binary.LittleEndian, &value); err != nil {
		return nil, decodeErr("coin value", err)
	}
	script, err := wire.ReadVarBytes(r, 0, maxScriptSize, "script")
	if err != nil {
		return nil, decodeErr("coin script", err)
	}
	coinbase, err := r.ReadByte()
	if err != nil {
		return nil, decodeErr("coin flags", err)
	}

	c.Version = int32(version)
	if c.Height, err = heightFromWire(height); err != nil {
		return nil, decodeErr("coin height", err)
	}
	c.Value = int64(value)
	c.PkScript = script
	c.Coinbase = coinbase == 1

	return c, nil
}

// SerialiseCoin is the inverse of DeSerialiseCoin.
func (c *Coin) SerialiseCoin() ([]byte, error) {
	var buf bytes.Buffer
	if err := c.serialise(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *Coin) serialise(w io.Writer) error {
	var flag uint8
	if c.Coinbase {
		flag = 1
	}
	fields := []any{uint32(c.Version), heightToWire(c.Height), uint64(c.Value)}
	for _, f := range fields {
		if err := binary.Write(w, binary.LittleEndian, f); err != nil {
			return err
		}
	}
	if err := wire.WriteVarBytes(w, 0, c.PkScript); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, flag)
}
