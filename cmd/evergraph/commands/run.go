package commands

import (
	"github.com/evergraph/evergraph/src/evergraph"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

//NewRunCmd returns the command that starts an Evergraph node
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run node",
		PreRunE: loadConfig,
		RunE:    runEvergraph,
	}
	AddRunFlags(cmd)
	return cmd
}

/*******************************************************************************
* RUN
*******************************************************************************/

func runEvergraph(cmd *cobra.Command, args []string) error {
	engine := evergraph.NewEvergraph(_config)

	if err := engine.Init(); err != nil {
		_config.Logger().Error("Cannot initialize engine:", err)
		return err
	}

	engine.Run()

	return nil
}

/*******************************************************************************
* CONFIG
*******************************************************************************/

//AddRunFlags adds flags to the Run command
func AddRunFlags(cmd *cobra.Command) {

	cmd.Flags().String("datadir", _config.DataDir, "Top-level directory for configuration and data")
	cmd.Flags().String("log", _config.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.Flags().String("moniker", _config.Moniker, "Optional name")

	// Network
	cmd.Flags().StringP("listen", "l", _config.BindAddr, "Listen IP:Port for evergraph node")
	cmd.Flags().StringP("advertise", "a", _config.AdvertiseAddr, "Advertise IP:Port for evergraph node")
	cmd.Flags().DurationP("timeout", "t", _config.TCPTimeout, "TCP Timeout")
	cmd.Flags().Int("max-pool", _config.MaxPool, "Connection pool size max")

	// Service
	cmd.Flags().Bool("no-service", _config.NoService, "Disable the HTTP service")
	cmd.Flags().StringP("service-listen", "s", _config.ServiceAddr, "Listen IP:Port for HTTP service")

	// Store
	cmd.Flags().Bool("store", _config.Store, "Use badgerDB instead of in-mem DB")
	cmd.Flags().String("db", _config.DatabaseDir, "Database directory")
	cmd.Flags().Bool("bootstrap", _config.Bootstrap, "Load from database")

	// Node configuration
	cmd.Flags().Duration("heartbeat", _config.HeartbeatTimeout, "Time between anti-entropy rounds")
	cmd.Flags().Int("sync-retries", _config.SyncRetries, "Number of catch-up attempts before giving up")
	cmd.Flags().Duration("sync-retry-delay", _config.SyncRetryDelay, "Delay between catch-up attempts")
	cmd.Flags().Int("orphan-limit", _config.OrphanLimit, "Max number of events buffered while waiting for parents")
	cmd.Flags().Duration("orphan-ttl", _config.OrphanTTL, "Max age of a buffered orphan")
	cmd.Flags().Int64("legacy-timestamp-divisor", _config.LegacyTimestampDivisor, "Timestamp divisor applied when relaying to older peers")

	// Pruning
	cmd.Flags().Duration("prune-interval", _config.PruneInterval, "Period of the pruning task, 0 to disable")
	cmd.Flags().Int("prune-keep-layers", _config.PruneKeepLayers, "Number of most recent layers to preserve")
	cmd.Flags().Bool("no-replay-log", _config.NoReplayLog, "Disable the replay log of pruned events")
}

func loadConfig(cmd *cobra.Command, args []string) error {

	err := bindFlagsLoadViper(cmd)
	if err != nil {
		return err
	}

	// If --datadir was explicitely set, but not --db, this will update the
	// default database dir to be inside the new datadir
	_config.SetDataDir(_config.DataDir)

	logFields := logrus.Fields{
		"DataDir":                _config.DataDir,
		"BindAddr":               _config.BindAddr,
		"AdvertiseAddr":          _config.AdvertiseAddr,
		"ServiceAddr":            _config.ServiceAddr,
		"NoService":              _config.NoService,
		"MaxPool":                _config.MaxPool,
		"Store":                  _config.Store,
		"LogLevel":               _config.LogLevel,
		"Moniker":                _config.Moniker,
		"HeartbeatTimeout":       _config.HeartbeatTimeout,
		"TCPTimeout":             _config.TCPTimeout,
		"SyncRetries":            _config.SyncRetries,
		"SyncRetryDelay":         _config.SyncRetryDelay,
		"OrphanLimit":            _config.OrphanLimit,
		"OrphanTTL":              _config.OrphanTTL,
		"LegacyTimestampDivisor": _config.LegacyTimestampDivisor,
		"PruneInterval":          _config.PruneInterval,
		"PruneKeepLayers":        _config.PruneKeepLayers,
		"NoReplayLog":            _config.NoReplayLog,
	}

	if _config.Store {
		logFields["DatabaseDir"] = _config.DatabaseDir
		logFields["Bootstrap"] = _config.Bootstrap
	}

	_config.Logger().WithFields(logFields).Debug("RUN")

	return nil
}

// Bind all flags and read the config into viper
func bindFlagsLoadViper(cmd *cobra.Command) error {
	// Register flags with viper. Include flags from this command and all other
	// persistent flags from the parent
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// first unmarshal to read from CLI flags
	if err := viper.Unmarshal(_config); err != nil {
		return err
	}

	// look for config file in [datadir]/evergraph.toml (.json, .yaml also work)
	viper.SetConfigName("evergraph")    // name of config file (without extension)
	viper.AddConfigPath(_config.DataDir) // search root directory

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		_config.Logger().Debugf("Using config file: %s", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		_config.Logger().Debugf("No config file found in: %s", _config.DataDir)
	} else {
		return err
	}

	// second unmarshal to read from config file
	return viper.Unmarshal(_config)
}
