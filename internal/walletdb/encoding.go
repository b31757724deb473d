package walletdb

import (
	"bytes"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/cockroachdb/errors"
	"github.com/setavenger/walletdb-migrate/internal/types"
	"github.com/vmihailenco/msgpack/v5"
)

type txRecord struct {
	Raw      []byte `msgpack:"raw"`
	Height   int32  `msgpack:"height"`
	Block    []byte `msgpack:"block,omitempty"`
	Index    int32  `msgpack:"index"`
	Time     uint32 `msgpack:"time"`
	Received uint32 `msgpack:"received"`
}

type credit struct {
	Value    int64  `msgpack:"value"`
	PkScript []byte `msgpack:"script"`
	Height   int32  `msgpack:"height"`
	Coinbase bool   `msgpack:"coinbase,omitempty"`
}

func encodeTxRecord(rec *types.ExtendedTx) ([]byte, error) {
	var raw bytes.Buffer
	if err := rec.Tx.Serialize(&raw); err != nil {
		return nil, err
	}

	r := txRecord{
		Raw:      raw.Bytes(),
		Height:   rec.Height,
		Index:    rec.Index,
		Time:     rec.Time,
		Received: rec.Received,
	}
	if rec.Block != nil {
		r.Block = rec.Block[:]
	}
	return msgpack.Marshal(&r)
}

func decodeTxRecord(data []byte) (*types.ExtendedTx, error) {
	var r txRecord
	if err := msgpack.Unmarshal(data, &r); err != nil {
		return nil, errors.Wrap(err, "decoding tx record")
	}

	tx := new(wire.MsgTx)
	if err := tx.Deserialize(bytes.NewReader(r.Raw)); err != nil {
		return nil, errors.Wrap(err, "decoding raw tx")
	}

	rec := &types.ExtendedTx{
		Tx:       tx,
		Height:   r.Height,
		Index:    r.Index,
		Time:     r.Time,
		Received: r.Received,
	}
	if len(r.Block) != 0 {
		block, err := chainhash.NewHash(r.Block)
		if err != nil {
			return nil, err
		}
		rec.Block = block
	}
	return rec, nil
}
