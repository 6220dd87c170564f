package lifecycle

const (
	// UnsetVersionNumber is the numberHint sentinel meaning "assign the
	// next version number", i.e. largestUsedVersionNumber+1.
	UnsetVersionNumber = 0

	// IgnoreVersion is the largestUsedVersionOverride sentinel meaning
	// "don't enforce the monotonic-largest-used-version check, just keep
	// whatever the store already has recorded".
	IgnoreVersion = -1
)

// Partition-count bounds enforced by UpdateStore when a store has no
// versions yet and isn't pinned by hybrid configuration.
const (
	MinPartitionCount = 1
	MaxPartitionCount = 1024
)

// Coordinator state model and rebalancer names: one OnlineOffline
// resource per store version, rebalanced with a delay after a
// participant drop.
const (
	stateModelOnlineOffline        = "OnlineOffline"
	rebalancerDelayedAutoRebalance = "DelayedAutoRebalancer"
)

// Control messages broadcast through Coordinator.SendMessageToParticipants.
// The coordinator exposes a single participant-broadcast primitive, so
// both the addVersion start-of-push notification and the
// deleteOneStoreVersion kill notification are realized as distinct
// message bodies on that same channel rather than a second transport.
const (
	controlMessageStartOfPush = "START_OF_PUSH"
	controlMessageKill        = "KILL"
)

// defaultMessageRetries bounds SendMessageToParticipants retries for
// control-plane broadcasts issued by the engine itself.
const defaultMessageRetries = 3

// defaultVersionTopicRetentionMs is the retention a freshly created
// version topic gets: long enough to survive normal push/consume cycles,
// finite so a topic nobody ever deprecates still ages out eventually.
const defaultVersionTopicRetentionMs = int64(90 * 24 * 60 * 60 * 1000)

// reservedStoreNamePrefixes can never be used for a user store name,
// since they would collide with the system-store topic namespace.
var reservedStoreNamePrefixes = []string{
	"venice_system_store_",
	"venice_cluster_metadata_",
}
