package dataexport

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/setavenger/walletdb-migrate/internal/logging"
	"github.com/setavenger/walletdb-migrate/internal/walletdb"
)

// ExportAll writes txs-<unix>.csv and credits-<unix>.csv to dir.
func ExportAll(db *walletdb.DB, dir string, now time.Time) error {
	logging.L.Info().Msg("Exporting data")

	logging.L.Info().Msg("Exporting Txs")
	err := ExportTxs(db, filepath.Join(dir, fmt.Sprintf("txs-%d.csv", now.Unix())))
	if err != nil {
		logging.L.Err(err).Msg("error exporting txs")
		return err
	}
	logging.L.Info().Msg("Finished Txs")

	logging.L.Info().Msg("Exporting Credits")
	err = ExportCredits(db, filepath.Join(dir, fmt.Sprintf("credits-%d.csv", now.Unix())))
	if err != nil {
		logging.L.Err(err).Msg("error exporting credits")
		return err
	}
	logging.L.Info().Msg("Finished Credits")

	logging.L.Info().Msg("Export Done")
	return nil
}
