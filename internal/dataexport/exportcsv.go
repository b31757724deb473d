package dataexport

import (
	"encoding/csv"
	"encoding/hex"
	"os"
	"path/filepath"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/setavenger/walletdb-migrate/internal/logging"
	"github.com/setavenger/walletdb-migrate/internal/types"
	"github.com/setavenger/walletdb-migrate/internal/walletdb"
)

func writeToCSV(path string, records [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return err
	}
	logging.L.Info().Msgf("Writing to %s", path)
	file, err := os.Create(path)
	if err != nil {
		logging.L.Err(err).Msg("failed creating file")
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.WriteAll(records); err != nil {
		return err
	}
	return file.Sync()
}

/* Txs */

func ExportTxs(db *walletdb.DB, path string) error {
	var recs []*types.ExtendedTx
	err := db.ForEachTX(func(rec *types.ExtendedTx) error {
		recs = append(recs, rec)
		return nil
	})
	if err != nil {
		logging.L.Err(err).Msg("error fetching all txs")
		return errors.Wrap(err, "fetching txs")
	}
	return writeToCSV(path, convertTxsToRecords(recs))
}

func convertTxsToRecords(recs []*types.ExtendedTx) [][]string {
	records := [][]string{{
		"txid",
		"height",
		"blockHash",
		"index",
		"time",
		"received",
	}}
	for _, rec := range recs {
		block := ""
		if rec.Block != nil {
			block = rec.Block.String()
		}
		records = append(records, []string{
			rec.Hash().String(),
			strconv.FormatInt(int64(rec.Height), 10),
			block,
			strconv.FormatInt(int64(rec.Index), 10),
			strconv.FormatUint(uint64(rec.Time), 10),
			strconv.FormatUint(uint64(rec.Received), 10),
		})
	}
	return records
}

/* Credits */

func ExportCredits(db *walletdb.DB, path string) error {
	credits, err := db.Credits()
	if err != nil {
		logging.L.Err(err).Msg("error fetching all credits")
		return errors.Wrap(err, "fetching credits")
	}
	return writeToCSV(path, convertCreditsToRecords(credits))
}

func convertCreditsToRecords(credits []walletdb.Credit) [][]string {
	records := [][]string{{
		"txid",
		"vout",
		"scriptPubKey",
		"value",
		"height",
		"coinbase",
	}}
	for _, c := range credits {
		records = append(records, []string{
			c.OutPoint.Hash.String(),
			strconv.FormatUint(uint64(c.OutPoint.Index), 10),
			hex.EncodeToString(c.PkScript),
			strconv.FormatInt(int64(c.Value), 10),
			strconv.FormatInt(int64(c.Height), 10),
			strconv.FormatBool(c.Coinbase),
		})
	}
	return records
}
