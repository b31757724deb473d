package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/setavenger/walletdb-migrate/internal/config"
	"github.com/setavenger/walletdb-migrate/internal/dataexport"
	"github.com/setavenger/walletdb-migrate/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	Version = "0.0.0"

	// Global flags
	configFile string
	dbPath     string

	// Count command flags
	prefix string

	// Export command flags
	exportDir string
)

func init() {
	rootCmd.PersistentFlags().StringVar(
		&configFile,
		"config",
		"",
		"Path to an optional config file",
	)
	rootCmd.PersistentFlags().StringVar(
		&dbPath,
		"db",
		"",
		"Path to the wallet database",
	)
	rootCmd.PersistentFlags().String(
		"backend",
		config.BackendLevelDB,
		"Store engine: leveldb, pebble or bolt",
	)
	viper.BindPFlag("backend", rootCmd.PersistentFlags().Lookup("backend"))

	countCmd.Flags().StringVar(
		&prefix,
		"prefix",
		"",
		"Key prefix byte, either a single character (t) or hex (0x74)",
	)

	exportCmd.Flags().StringVar(
		&exportDir,
		"out",
		"data-export",
		"Directory the csv files are written to",
	)
}

func parsePrefix(s string) (byte, error) {
	if len(s) == 1 {
		return s[0], nil
	}
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, errors.Newf("invalid prefix %q", s)
	}
	return byte(v), nil
}

var rootCmd = &cobra.Command{
	Use:   "walletdb-explorer",
	Short: "Wallet Database Explorer",
	Long: `Wallet Database Explorer shows what is stored in a wallet database of
schema version 3 or 4.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.SetOutput(os.Stderr)
		if err := config.LoadConfigs(configFile); err != nil {
			return err
		}
		if dbPath == "" {
			return errors.New("db path not provided")
		}
		dbPath = config.StorePath(config.Backend, config.ResolvePath(dbPath))
		return nil
	},
}

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Count keys under one prefix byte",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := parsePrefix(prefix)
		if err != nil {
			return err
		}

		explorer, err := NewDatabaseExplorer(config.Backend, dbPath, os.Stdout)
		if err != nil {
			return err
		}
		defer explorer.Close()

		count, err := explorer.CountKeys(p)
		if err != nil {
			return errors.Wrap(err, "error counting keys")
		}

		fmt.Printf("Found %d keys with prefix 0x%02X\n", count, p)
		return nil
	},
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show database information",
	Long: `Show database information including:
- Schema version
- Key type counts by prefix
- Network, tx, credit and balance totals for version 4 stores`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("Opening database at: %s\n", dbPath)

		explorer, err := NewDatabaseExplorer(config.Backend, dbPath, os.Stdout)
		if err != nil {
			return err
		}
		defer explorer.Close()

		if err := explorer.PrintDatabaseInfo(); err != nil {
			return errors.Wrap(err, "error printing database info")
		}
		return nil
	},
}

var listKeysCmd = &cobra.Command{
	Use:   "list-keys",
	Short: "List all key types in the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("Opening database at: %s\n", dbPath)

		explorer, err := NewDatabaseExplorer(config.Backend, dbPath, os.Stdout)
		if err != nil {
			return err
		}
		defer explorer.Close()

		version, err := explorer.Version()
		if err != nil {
			logging.L.Warn().Err(err).Msg("no schema version")
		}

		return explorer.PrintKeyTypeSummary(version)
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export txs and credits of a version 4 store as csv",
	RunE: func(cmd *cobra.Command, args []string) error {
		explorer, err := NewDatabaseExplorer(config.Backend, dbPath, os.Stdout)
		if err != nil {
			return err
		}
		defer explorer.Close()

		db, err := explorer.Wallet()
		if err != nil {
			return err
		}
		return dataexport.ExportAll(db, config.ResolvePath(exportDir), time.Now())
	},
}

func main() {
	rootCmd.AddCommand(countCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(listKeysCmd)
	rootCmd.AddCommand(exportCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
