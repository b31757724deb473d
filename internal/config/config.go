package config

import (
	"github.com/setavenger/walletdb-migrate/internal/logging"
	"github.com/spf13/viper"
)

// LoadConfigs reads the optional config file and the environment into the
// package variables. Flags bound to viper before the call take precedence.
func LoadConfigs(pathToConfig string) error {
	if pathToConfig != "" {
		viper.SetConfigFile(pathToConfig)
		if err := viper.ReadInConfig(); err != nil {
			logging.L.Warn().Err(err).Msg("No config file detected")
		}
	}

	/* set defaults */
	viper.SetDefault("backend", Backend)
	viper.SetDefault("network", Network)
	viper.SetDefault("backup_dir", DefaultBackupDirectory())
	viper.SetDefault("cache_size", CacheSize)
	viper.SetDefault("log_level", LogLevel)
	viper.SetDefault("log_path", "")

	viper.BindEnv("backend", "WALLETDB_BACKEND")
	viper.BindEnv("network", "WALLETDB_NETWORK")
	viper.BindEnv("backup_dir", "WALLETDB_BACKUP_DIR")
	viper.BindEnv("cache_size", "WALLETDB_CACHE_SIZE")
	viper.BindEnv("log_level", "WALLETDB_LOG_LEVEL")
	viper.BindEnv("log_path", "WALLETDB_LOG_PATH")

	/* read and set config variables */
	Backend = viper.GetString("backend")
	Network = viper.GetString("network")
	BackupDirectory = ResolvePath(viper.GetString("backup_dir"))
	CacheSize = viper.GetInt("cache_size")
	LogLevel = viper.GetString("log_level")
	LogsPath = ResolvePath(viper.GetString("log_path"))

	logging.SetLogLevel(logging.ParseLevel(LogLevel))

	if err := ValidateBackend(Backend); err != nil {
		logging.L.Err(err).Msg("invalid backend")
		return err
	}
	if _, err := ChainParams(Network); err != nil {
		logging.L.Err(err).Msg("invalid network")
		return err
	}

	logging.L.Debug().
		Str("backend", Backend).
		Str("network", Network).
		Str("backup_dir", BackupDirectory).
		Int("cache_size", CacheSize).
		Msg("config loaded")

	return nil
}
