package topics

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/cuemby/venice/pkg/verrors"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaManager implements Manager against a real Kafka cluster via
// franz-go's admin client, kadm.
type KafkaManager struct {
	client *kgo.Client
	admin  *kadm.Client
}

// NewKafkaManager dials the given brokers and wraps them in a kadm admin
// client. The underlying kgo.Client is never used to produce or consume
// records directly; it exists only to back kadm.
func NewKafkaManager(brokers []string) (*KafkaManager, error) {
	cl, err := kgo.NewClient(kgo.SeedBrokers(brokers...))
	if err != nil {
		return nil, verrors.New(verrors.TopicManagerUnavailable, "topics.NewKafkaManager", err)
	}
	return &KafkaManager{
		client: cl,
		admin:  kadm.NewClient(cl),
	}, nil
}

func (k *KafkaManager) Close() {
	k.client.Close()
}

func (k *KafkaManager) wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return verrors.New(verrors.TopicManagerUnavailable, op, err)
}

func (k *KafkaManager) ListTopics(ctx context.Context) ([]string, error) {
	details, err := k.admin.ListTopics(ctx)
	if err != nil {
		return nil, k.wrapErr("topics.ListTopics", err)
	}
	out := make([]string, 0, len(details))
	for name := range details {
		out = append(out, name)
	}
	return out, nil
}

func (k *KafkaManager) ContainsTopic(ctx context.Context, topic string) (bool, error) {
	details, err := k.admin.ListTopics(ctx, topic)
	if err != nil {
		return false, k.wrapErr("topics.ContainsTopic", err)
	}
	td, ok := details[topic]
	if !ok {
		return false, nil
	}
	return td.Err == nil, nil
}

func (k *KafkaManager) CreateTopic(ctx context.Context, topic string, cfg TopicConfig) error {
	exists, err := k.ContainsTopic(ctx, topic)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	cleanupPolicy := cfg.CleanupPolicy
	if cleanupPolicy == "" {
		cleanupPolicy = "delete"
	}
	retention := strconv.FormatInt(cfg.RetentionMs, 10)
	configs := map[string]*string{
		"retention.ms":   &retention,
		"cleanup.policy": &cleanupPolicy,
	}

	resp, err := k.admin.CreateTopic(ctx, int32(cfg.PartitionCount), int16(cfg.ReplicationFactor), configs, topic)
	if err != nil {
		return k.wrapErr("topics.CreateTopic", err)
	}
	if resp.Err != nil {
		if errors.Is(resp.Err, kerr.TopicAlreadyExists) {
			return nil
		}
		return verrors.New(verrors.TopicManagerUnavailable, "topics.CreateTopic", resp.Err)
	}
	return nil
}

func (k *KafkaManager) UpdateRetention(ctx context.Context, topic string, retentionMs int64) error {
	retention := strconv.FormatInt(retentionMs, 10)
	alter := kadm.AlterConfig{
		Op:    kadm.SetConfig,
		Name:  "retention.ms",
		Value: &retention,
	}
	resps, err := k.admin.AlterTopicConfigs(ctx, []kadm.AlterConfig{alter}, topic)
	if err != nil {
		return k.wrapErr("topics.UpdateRetention", err)
	}
	for _, r := range resps {
		if r.Err != nil {
			return verrors.New(verrors.TopicManagerUnavailable, "topics.UpdateRetention", r.Err)
		}
	}
	return nil
}

func (k *KafkaManager) GetRetention(ctx context.Context, topic string) (int64, error) {
	resp, err := k.admin.DescribeTopicConfigs(ctx, topic)
	if err != nil {
		return 0, k.wrapErr("topics.GetRetention", err)
	}
	for _, rc := range resp {
		if rc.Name != topic {
			continue
		}
		for _, cfg := range rc.Configs {
			if cfg.Key == "retention.ms" && cfg.Value != nil {
				v, err := strconv.ParseInt(*cfg.Value, 10, 64)
				if err != nil {
					return 0, verrors.New(verrors.TopicManagerUnavailable, "topics.GetRetention", err)
				}
				return v, nil
			}
		}
	}
	return 0, verrors.New(verrors.NotFound, "topics.GetRetention", fmt.Errorf("retention.ms not set on %s", topic))
}

func (k *KafkaManager) IsRetentionBelowThreshold(ctx context.Context, topic string, thresholdMs int64) (bool, error) {
	retention, err := k.GetRetention(ctx, topic)
	if err != nil {
		return false, err
	}
	return retention <= thresholdMs, nil
}

func (k *KafkaManager) DeleteTopic(ctx context.Context, topic string) error {
	resps, err := k.admin.DeleteTopics(ctx, topic)
	if err != nil {
		return k.wrapErr("topics.DeleteTopic", err)
	}
	for _, r := range resps {
		if r.Err != nil && !errors.Is(r.Err, kerr.UnknownTopicOrPartition) {
			return verrors.New(verrors.TopicManagerUnavailable, "topics.DeleteTopic", r.Err)
		}
	}
	return nil
}
