package version

// Flag contains extra info about the version. It is helpful for tracking
// versions while developing. It should always be empty on the master branch.
const Flag = "develop"

// ProtocolVersion is the version of the gossip wire protocol. It is exchanged
// during the handshake. A mismatch does not prevent two nodes from talking; it
// only selects compatibility adjustments.
const ProtocolVersion = 1

// AppVersion is the version of the event payload conventions. Starting with
// version 2, event timestamps are expressed in milliseconds; version 1 peers
// expect seconds.
const AppVersion = 2

// MillisTimestampAppVersion is the first AppVersion in which event timestamps
// are expressed in milliseconds rather than seconds.
const MillisTimestampAppVersion = 2

var (
	// Version is the full version string
	Version = "0.1.0"

	// GitCommit is set with --ldflags "-X main.gitCommit=$(git rev-parse HEAD)"
	GitCommit string
)

func init() {
	Version += "-" + Flag

	if GitCommit != "" {
		Version += "-" + GitCommit[:8]
	}
}
