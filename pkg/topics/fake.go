package topics

import (
	"context"
	"fmt"
	"sync"

	"github.com/cuemby/venice/pkg/verrors"
)

type fakeTopic struct {
	cfg TopicConfig
}

// FakeManager is an in-memory Manager backing lifecycle-engine unit tests.
type FakeManager struct {
	mu          sync.Mutex
	topics      map[string]*fakeTopic
	Unavailable bool
}

// NewFakeManager returns an empty FakeManager.
func NewFakeManager() *FakeManager {
	return &FakeManager{topics: make(map[string]*fakeTopic)}
}

func (f *FakeManager) unavailableErr(op string) error {
	return verrors.New(verrors.TopicManagerUnavailable, op, fmt.Errorf("fake topic manager unavailable"))
}

func (f *FakeManager) ListTopics(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Unavailable {
		return nil, f.unavailableErr("topics.ListTopics")
	}
	out := make([]string, 0, len(f.topics))
	for name := range f.topics {
		out = append(out, name)
	}
	return out, nil
}

func (f *FakeManager) ContainsTopic(ctx context.Context, topic string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Unavailable {
		return false, f.unavailableErr("topics.ContainsTopic")
	}
	_, ok := f.topics[topic]
	return ok, nil
}

func (f *FakeManager) CreateTopic(ctx context.Context, topic string, cfg TopicConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Unavailable {
		return f.unavailableErr("topics.CreateTopic")
	}
	if _, ok := f.topics[topic]; ok {
		return nil
	}
	f.topics[topic] = &fakeTopic{cfg: cfg}
	return nil
}

func (f *FakeManager) UpdateRetention(ctx context.Context, topic string, retentionMs int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Unavailable {
		return f.unavailableErr("topics.UpdateRetention")
	}
	t, ok := f.topics[topic]
	if !ok {
		return verrors.New(verrors.NotFound, "topics.UpdateRetention", fmt.Errorf("topic %s not found", topic))
	}
	t.cfg.RetentionMs = retentionMs
	return nil
}

func (f *FakeManager) GetRetention(ctx context.Context, topic string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Unavailable {
		return 0, f.unavailableErr("topics.GetRetention")
	}
	t, ok := f.topics[topic]
	if !ok {
		return 0, verrors.New(verrors.NotFound, "topics.GetRetention", fmt.Errorf("topic %s not found", topic))
	}
	return t.cfg.RetentionMs, nil
}

func (f *FakeManager) IsRetentionBelowThreshold(ctx context.Context, topic string, thresholdMs int64) (bool, error) {
	retention, err := f.GetRetention(ctx, topic)
	if err != nil {
		return false, err
	}
	return retention <= thresholdMs, nil
}

func (f *FakeManager) DeleteTopic(ctx context.Context, topic string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Unavailable {
		return f.unavailableErr("topics.DeleteTopic")
	}
	delete(f.topics, topic)
	return nil
}
