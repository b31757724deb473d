package main

import (
	"fmt"
	"os"

	"github.com/setavenger/walletdb-migrate/internal/config"
	"github.com/setavenger/walletdb-migrate/internal/logging"
	"github.com/setavenger/walletdb-migrate/internal/migrate"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	Version = "0.0.0"

	configFile string
)

func init() {
	rootCmd.Flags().StringVar(
		&configFile,
		"config",
		"",
		"Path to an optional config file",
	)
	rootCmd.Flags().String(
		"backend",
		config.BackendLevelDB,
		"Store engine: leveldb, pebble or bolt",
	)
	rootCmd.Flags().String(
		"backup-dir",
		"",
		"Directory the pre-migration backup is written to (default: home directory)",
	)
	rootCmd.Flags().String(
		"log-level",
		config.LogLevel,
		"Log level: trace, debug, info, warn, error",
	)
	rootCmd.Flags().String(
		"log-path",
		"",
		"Directory to additionally write logs to",
	)

	viper.BindPFlag("backend", rootCmd.Flags().Lookup("backend"))
	viper.BindPFlag("backup_dir", rootCmd.Flags().Lookup("backup-dir"))
	viper.BindPFlag("log_level", rootCmd.Flags().Lookup("log-level"))
	viper.BindPFlag("log_path", rootCmd.Flags().Lookup("log-path"))
}

var rootCmd = &cobra.Command{
	Use:   "walletdb-migrate <path> [network]",
	Short: "Migrate a wallet database from version 3 to version 4",
	Long: `Migrate a wallet database from version 3 to version 4.

The store is backed up to <backup-dir>/walletdb-bak-<unix millis>.ldb before
anything is changed. The migration cannot be undone other than by restoring
that backup.`,
	Version:       Version,
	Args:          cobra.RangeArgs(1, 2),
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) > 1 {
			viper.Set("network", args[1])
		}
		if err := config.LoadConfigs(configFile); err != nil {
			return err
		}

		if config.LogsPath != "" {
			if err := logging.SetLogOutput(config.LogsPath, "walletdb-migrate.log"); err != nil {
				logging.L.Warn().Err(err).Msg("Failed to initialize file logging")
			}
			defer logging.Close()
		}

		params, err := config.ChainParams(config.Network)
		if err != nil {
			return err
		}

		m := migrate.New(migrate.Config{
			Path:      config.StorePath(config.Backend, args[0]),
			Backend:   config.Backend,
			Network:   params,
			BackupDir: config.BackupDirectory,
			CacheSize: config.CacheSize,
		})
		_, err = m.Run()
		return err
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
