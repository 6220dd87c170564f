// Package topics adapts the Venice cluster controller to the Kafka-backed
// version and real-time topics backing store replication.
package topics

import (
	"context"
	"time"
)

// TopicConfig describes the durability and retention knobs the lifecycle
// engine cares about. Partition count and replication factor are set at
// creation time and never changed afterward; RetentionMs is the only
// setting the engine mutates post-creation, via UpdateRetention.
type TopicConfig struct {
	PartitionCount    int
	ReplicationFactor int
	RetentionMs       int64
	CleanupPolicy     string // "delete" for version topics, "compact" for real-time topics
}

// Manager is the contract the Store Lifecycle Engine uses to provision and
// retire the Kafka topics backing store versions. Version and real-time
// topics are never deleted outright once traffic may have touched them;
// retirement happens by shrinking RetentionMs so the broker ages the data
// out, which is why DeleteTopic is reserved for system-store topics that
// never carry customer-visible offsets.
type Manager interface {
	// ListTopics returns every topic name currently known to the broker.
	ListTopics(ctx context.Context) ([]string, error)

	// ContainsTopic reports whether topic exists.
	ContainsTopic(ctx context.Context, topic string) (bool, error)

	// CreateTopic idempotently creates topic with cfg. Returns nil if the
	// topic already exists; its partition count is not compared with cfg.
	CreateTopic(ctx context.Context, topic string, cfg TopicConfig) error

	// UpdateRetention adjusts only the retention.ms config of an existing
	// topic; it is the sole mechanism for deprecating a version topic.
	UpdateRetention(ctx context.Context, topic string, retentionMs int64) error

	// GetRetention returns the current retention.ms of topic.
	GetRetention(ctx context.Context, topic string) (int64, error)

	// IsRetentionBelowThreshold reports whether topic's retention.ms is at
	// or below thresholdMs, i.e. whether it has already been marked for
	// deprecation.
	IsRetentionBelowThreshold(ctx context.Context, topic string, thresholdMs int64) (bool, error)

	// DeleteTopic deletes topic outright. Callers outside this package
	// must only invoke this for system-store topics.
	DeleteTopic(ctx context.Context, topic string) error
}

// Default retention bounds applied when a version topic is deprecated:
// retention is dropped to DeprecatedTopicRetentionMs immediately, and a
// topic whose retention sits at or below DeprecatedTopicMaxRetentionMs is
// considered already truncated. Deprecated topics age out on the broker
// rather than being deleted, so in-flight consumers can finish.
const (
	DeprecatedTopicRetentionMs    = 5 * 60 * 1000 // 5 minutes
	DeprecatedTopicMaxRetentionMs = 24 * 60 * 60 * 1000
)

// DefaultCallTimeout is a 30-second bound for broker admin RPCs. The
// Manager implementations in this package do not apply it: each call runs
// under the caller's context.
const DefaultCallTimeout = 30 * time.Second
