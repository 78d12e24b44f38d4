package config

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/evergraph/evergraph/src/common"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Default filenames.
const (
	// DefaultBadgerFile is the default name of the folder containing the Badger
	// database
	DefaultBadgerFile = "badger_db"

	// DefaultPeersFile is the default name of the file containing the list of
	// peers to gossip with.
	DefaultPeersFile = "peers.json"

	// DefaultReplayLogFile is the default name of the append-only log where the
	// pruning task records removed events.
	DefaultReplayLogFile = "prune_replay.log"
)

// Default configuration values.
const (
	DefaultLogLevel               = "debug"
	DefaultBindAddr               = "127.0.0.1:1742"
	DefaultServiceAddr            = "127.0.0.1:8000"
	DefaultHeartbeatTimeout       = 3000 * time.Millisecond
	DefaultTCPTimeout             = 1000 * time.Millisecond
	DefaultMaxPool                = 2
	DefaultStore                  = false
	DefaultSyncRetries            = 5
	DefaultSyncRetryDelay         = 2000 * time.Millisecond
	DefaultPruneInterval          = 0 * time.Second
	DefaultPruneKeepLayers        = 1000
	DefaultOrphanLimit            = 512
	DefaultOrphanTTL              = 5 * time.Minute
	DefaultLegacyTimestampDivisor = 1000
)

// Config contains all the configuration properties of an Evergraph node.
type Config struct {
	// DataDir is the top-level directory containing Evergraph configuration
	// and data
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// BindAddr is the local address:port where this node gossips with other
	// nodes. In some cases, there may be a routable address that cannot be
	// bound. Use AdvertiseAddr to advertise a different address to support
	// this.
	BindAddr string `mapstructure:"listen"`

	// AdvertiseAddr is used to change the address that we advertise to other
	// nodes.
	AdvertiseAddr string `mapstructure:"advertise"`

	// NoService disables the HTTP API service.
	NoService bool `mapstructure:"no-service"`

	// ServiceAddr is the address:port of the optional HTTP service.
	ServiceAddr string `mapstructure:"service-listen"`

	// HeartbeatTimeout is the interval between periodic anti-entropy rounds
	// with a random peer once the node is running.
	HeartbeatTimeout time.Duration `mapstructure:"heartbeat"`

	// MaxPool controls how many connections are pooled per target in the
	// gossip routines.
	MaxPool int `mapstructure:"max-pool"`

	// TCPTimeout is the timeout of gossip RPC connections.
	TCPTimeout time.Duration `mapstructure:"timeout"`

	// Store activates persistent storage.
	Store bool `mapstructure:"store"`

	// DatabaseDir is the directory containing database files.
	DatabaseDir string `mapstructure:"db"`

	// Bootstrap determines whether to reload the event graph from an existing
	// database file. Forces Store.
	Bootstrap bool `mapstructure:"bootstrap"`

	// SyncRetries is the number of attempts to catch up with peers at startup
	// before failing fatally.
	SyncRetries int `mapstructure:"sync-retries"`

	// SyncRetryDelay is the fixed delay between sync attempts.
	SyncRetryDelay time.Duration `mapstructure:"sync-retry-delay"`

	// PruneInterval is the period of the background pruning task. Zero
	// disables pruning.
	PruneInterval time.Duration `mapstructure:"prune-interval"`

	// PruneKeepLayers is the number of most recent layers that the pruning
	// task always preserves.
	PruneKeepLayers int `mapstructure:"prune-keep-layers"`

	// NoReplayLog disables the append-only log of pruned events.
	NoReplayLog bool `mapstructure:"no-replay-log"`

	// OrphanLimit is the maximum number of events buffered while waiting for
	// missing parents. Beyond the limit the oldest orphan is dropped.
	OrphanLimit int `mapstructure:"orphan-limit"`

	// OrphanTTL is the maximum age of a buffered orphan before it is dropped.
	OrphanTTL time.Duration `mapstructure:"orphan-ttl"`

	// LegacyTimestampDivisor is applied to event timestamps relayed to peers
	// whose app version predates the millisecond timestamp convention. It is
	// an explicit migration policy, not a protocol constant.
	LegacyTimestampDivisor int64 `mapstructure:"legacy-timestamp-divisor"`

	// Moniker defines the friendly name of this node
	Moniker string `mapstructure:"moniker"`

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	config := &Config{
		DataDir:                DefaultDataDir(),
		LogLevel:               DefaultLogLevel,
		BindAddr:               DefaultBindAddr,
		ServiceAddr:            DefaultServiceAddr,
		HeartbeatTimeout:       DefaultHeartbeatTimeout,
		TCPTimeout:             DefaultTCPTimeout,
		MaxPool:                DefaultMaxPool,
		Store:                  DefaultStore,
		DatabaseDir:            DefaultDatabaseDir(),
		SyncRetries:            DefaultSyncRetries,
		SyncRetryDelay:         DefaultSyncRetryDelay,
		PruneInterval:          DefaultPruneInterval,
		PruneKeepLayers:        DefaultPruneKeepLayers,
		OrphanLimit:            DefaultOrphanLimit,
		OrphanTTL:              DefaultOrphanTTL,
		LegacyTimestampDivisor: DefaultLegacyTimestampDivisor,
	}

	return config
}

// NewTestConfig returns a config object with default values and a special
// logger for debugging tests.
func NewTestConfig(t testing.TB, level logrus.Level) *Config {
	config := NewDefaultConfig()
	config.logger = common.NewTestLogger(t, level)
	return config
}

// SetDataDir sets the top-level Evergraph directory, and updates the database
// directory if it is currently set to the default value. If the database
// directory is not currently the default, it means the user has explicitly set
// it to something else, so avoid changing it again here.
func (c *Config) SetDataDir(dataDir string) {
	c.DataDir = dataDir
	if c.DatabaseDir == DefaultDatabaseDir() {
		c.DatabaseDir = filepath.Join(dataDir, DefaultBadgerFile)
	}
}

// PeersFile returns the full path of the file containing the peer list.
func (c *Config) PeersFile() string {
	return filepath.Join(c.DataDir, DefaultPeersFile)
}

// ReplayLogFile returns the full path of the pruning replay log.
func (c *Config) ReplayLogFile() string {
	return filepath.Join(c.DataDir, DefaultReplayLogFile)
}

// Logger returns a formatted logrus Entry, with prefix set to "evergraph".
func (c *Config) Logger() *logrus.Entry {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)
	}
	return c.logger.WithField("prefix", "evergraph")
}

// DefaultDatabaseDir returns the default path for the badger database files.
func DefaultDatabaseDir() string {
	return filepath.Join(DefaultDataDir(), DefaultBadgerFile)
}

// DefaultDataDir return the default directory name for top-level Evergraph
// config based on the underlying OS, attempting to respect conventions.
func DefaultDataDir() string {
	// Try to place the data folder in the user's home dir
	home := HomeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, ".Evergraph")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "Evergraph")
		} else {
			return filepath.Join(home, ".evergraph")
		}
	}
	// As we cannot guess a stable location, return empty and handle later
	return ""
}

// HomeDir returns the user's home directory.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

// LogLevel parses a string into a Logrus log level.
func LogLevel(l string) logrus.Level {
	switch l {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.DebugLevel
	}
}
