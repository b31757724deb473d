package migrate

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/setavenger/walletdb-migrate/internal/database"
	"github.com/setavenger/walletdb-migrate/internal/logging"
	"github.com/setavenger/walletdb-migrate/internal/types"
)

// VersionGate only lets a store through that is at exactly the version the
// migration starts from.
type VersionGate struct {
	From uint32
	To   uint32
}

// DefaultVersionGate is the 3 -> 4 transition.
var DefaultVersionGate = VersionGate{
	From: types.SchemaVersionLegacy,
	To:   types.SchemaVersionCurrent,
}

// Check reads the version key. It has no side effects.
func (g VersionGate) Check(store database.Store) error {
	data, err := store.Get(types.VersionKey)
	if errors.Is(err, database.ErrNotFound) {
		logging.L.Error().Msg("no version key")
		return ErrMissingVersion
	}
	if err != nil {
		return &ReadError{Key: types.VersionKey, Err: err}
	}
	if len(data) != 4 {
		logging.L.Error().Hex("value", data).Msg("malformed version")
		return errors.Wrapf(ErrMalformedVersion, "%d bytes", len(data))
	}

	found := binary.LittleEndian.Uint32(data)
	if found != g.From {
		logging.L.Error().Uint32("found", found).Uint32("expected", g.From).Msg("unexpected version")
		return &UnexpectedVersionError{Found: found}
	}
	return nil
}

// Stage adds the version bump to the pending rewrite. It is written only
// when the batch commits.
func (g VersionGate) Stage(b *RewriteBatch) {
	b.StageVersion(g.To)
}
