package types

import (
	"strconv"
	"time"
)

// NonExistingVersion is the sentinel CurrentVersion for a store with no
// online version yet.
const NonExistingVersion = 0

// KeySchemaID is the fixed schema ID reserved for a store's key schema.
// Value schema IDs start at 1 and increment independently.
const KeySchemaID = 1

// Store represents a Venice store: the top-level unit of data ownership
// tracked by the cluster controller.
type Store struct {
	Name                     string
	Owner                    string
	CreatedAt                time.Time
	PartitionCount           int
	CurrentVersion           int // NonExistingVersion sentinel when no version is live
	LargestUsedVersionNumber int
	EnableReads              bool
	EnableWrites             bool
	Migrating                bool
	HybridConfig             *HybridConfig // nil => not a hybrid store
	IncrementalPushEnabled   bool
	RouterCacheEnabled       bool
	BatchGetLimit            int
	StorageQuotaBytes        int64 // -1 == unlimited
	ReadQuotaCU              int64
	NumVersionsToPreserve    int // 0 => use cluster default
	AccessControlled         bool
	CompressionStrategy      CompressionStrategy
	ChunkingEnabled          bool
	Versions                 []*Version // ordered by Number ascending
}

// VersionByNumber returns the version with the given number, or nil.
func (s *Store) VersionByNumber(number int) *Version {
	for _, v := range s.Versions {
		if v.Number == number {
			return v
		}
	}
	return nil
}

// CurrentVersionRecord returns the Version matching CurrentVersion, or nil
// if the store has no online version.
func (s *Store) CurrentVersionRecord() *Version {
	if s.CurrentVersion == NonExistingVersion {
		return nil
	}
	return s.VersionByNumber(s.CurrentVersion)
}

// IsHybrid reports whether the store is configured for hybrid ingestion
// (batch + real-time).
func (s *Store) IsHybrid() bool {
	return s.HybridConfig != nil
}

// HybridConfig enables real-time ingestion alongside batch pushes. Its
// presence forbids incremental push and router caching, per the store's
// invariants.
type HybridConfig struct {
	RewindSeconds         int64
	OffsetLagThreshold    int64
	DataReplicationPolicy string
}

// CompressionStrategy selects how a store's data is compressed on disk and
// over the wire.
type CompressionStrategy string

const (
	CompressionNone         CompressionStrategy = "no_op"
	CompressionGzip         CompressionStrategy = "gzip"
	CompressionZstd         CompressionStrategy = "zstd"
	CompressionZstdWithDict CompressionStrategy = "zstd_with_dict"
)

// VersionStatus is the state of a single store version.
type VersionStatus string

const (
	VersionStatusNotCreated VersionStatus = "not_created"
	VersionStatusStarted    VersionStatus = "started"
	VersionStatusPushed     VersionStatus = "pushed"
	VersionStatusOnline     VersionStatus = "online"
	VersionStatusError      VersionStatus = "error"
)

// IsTerminal reports whether the status cannot transition further within
// the lifetime of the Version object (it must instead be deleted).
func (s VersionStatus) IsTerminal() bool {
	return s == VersionStatusOnline || s == VersionStatusError
}

// Version represents one push generation of a Store's data.
type Version struct {
	StoreName         string
	Number            int
	PushJobID         string
	Status            VersionStatus
	PartitionCount    int
	ReplicationFactor int
	CreatedAt         time.Time
}

// ResourceName returns the coordinator-facing resource identifier for this
// version: "{storeName}_v{n}".
func (v *Version) ResourceName() string {
	return VersionResourceName(v.StoreName, v.Number)
}

// VersionTopicName returns the Kafka topic name backing this version's
// batch push: "{store}_v{n}".
func (v *Version) VersionTopicName() string {
	return VersionTopic(v.StoreName, v.Number)
}

// VersionResourceName builds the "{storeName}_v{n}" resource identifier
// used by the resource coordinator, independent of a loaded Version object.
func VersionResourceName(storeName string, number int) string {
	return storeName + "_v" + strconv.Itoa(number)
}

// VersionTopic builds the "{store}_v{n}" batch version topic name.
func VersionTopic(storeName string, number int) string {
	return storeName + "_v" + strconv.Itoa(number)
}

// RealTimeTopic builds the "{store}_rt" real-time topic name used by
// hybrid stores.
func RealTimeTopic(storeName string) string {
	return storeName + "_rt"
}

// SystemStoreTopicPrefix and SystemMetadataTopicPrefix reserve topic name
// space for system stores (push-status write-back, metadata-store-in-a-
// topic patterns) so they can never collide with a user store's version
// or real-time topic.
const (
	SystemStoreTopicPrefix    = "venice_system_store_"
	SystemMetadataTopicPrefix = "venice_cluster_metadata_"
)

// PushJobStatusTopic is the real-time topic the push-status write-back
// path produces to.
const PushJobStatusTopic = SystemStoreTopicPrefix + "push_job_status_rt"

// StoreConfig is the discovery record: exactly one row per existing store
// name, tracking which cluster currently owns it and, during a migration,
// the source/destination pair.
type StoreConfig struct {
	StoreName     string
	Cluster       string
	Deleting      bool
	MigrationSrc  string // "" unless migrating
	MigrationDest string // "" unless migrating
}

// IsMigrating reports whether this store is mid cross-cluster migration.
func (c *StoreConfig) IsMigrating() bool {
	return c.MigrationSrc != "" || c.MigrationDest != ""
}

// GraveyardEntry preserves the largest version number ever used by a
// store name, surviving a full delete/recreate cycle so version numbers
// never reuse.
type GraveyardEntry struct {
	StoreName                string
	LargestUsedVersionNumber int
}

// KeySchemaEntry holds a store's key schema. A store has exactly one,
// always at KeySchemaID.
type KeySchemaEntry struct {
	StoreName string
	ID        int
	Schema    string
	CreatedAt time.Time
}

// ValueSchemaEntry holds one version of a store's value schema. IDs start
// at 1 and increment only when a genuinely new, compatible schema is
// registered.
type ValueSchemaEntry struct {
	StoreName string
	ID        int
	Schema    string
	CreatedAt time.Time
}

// StoreSnapshot is the read-only cross-cluster view of a store's
// authoritative state, returned by the controller client during
// migration reconciliation.
type StoreSnapshot struct {
	Store         *Store
	KeySchema     *KeySchemaEntry
	ValueSchemas  []*ValueSchemaEntry
	RetrievedFrom string // cluster name the snapshot was read from
	RetrievedAt   time.Time
}
