package coordinator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cuemby/venice/pkg/verrors"
)

type fakeResource struct {
	partitionCount    int
	replicationFactor int
	view              ExternalView
}

// FakeCoordinator is an in-memory Coordinator backing lifecycle-engine unit
// tests. Newly added resources auto-assign replicas to ReplicaOnline so
// WaitForAssignment returns immediately unless AutoAssign is disabled.
type FakeCoordinator struct {
	mu          sync.Mutex
	clusters    map[string]ClusterConfig
	resources   map[string]map[string]*fakeResource // cluster -> resourceName
	instances   map[string]map[string]bool          // cluster -> instanceID
	messages    []string
	AutoAssign  bool
	Unavailable bool
}

// NewFakeCoordinator returns an empty FakeCoordinator with AutoAssign on.
func NewFakeCoordinator() *FakeCoordinator {
	return &FakeCoordinator{
		clusters:   make(map[string]ClusterConfig),
		resources:  make(map[string]map[string]*fakeResource),
		instances:  make(map[string]map[string]bool),
		AutoAssign: true,
	}
}

func (f *FakeCoordinator) unavailableErr(op string) error {
	return verrors.New(verrors.CoordinatorUnavailable, op, fmt.Errorf("fake coordinator unavailable"))
}

func (f *FakeCoordinator) EnsureCluster(ctx context.Context, cluster string, cfg ClusterConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Unavailable {
		return f.unavailableErr("coordinator.EnsureCluster")
	}
	f.clusters[cluster] = cfg
	if _, ok := f.resources[cluster]; !ok {
		f.resources[cluster] = make(map[string]*fakeResource)
	}
	if _, ok := f.instances[cluster]; !ok {
		f.instances[cluster] = map[string]bool{"local": true}
	}
	return nil
}

func (f *FakeCoordinator) AddResource(ctx context.Context, cluster, resourceName string, partitionCount, replicationFactor int, stateModelName, rebalancer string, minActiveReplicas int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Unavailable {
		return f.unavailableErr("coordinator.AddResource")
	}
	res := f.resources[cluster]
	if res == nil {
		res = make(map[string]*fakeResource)
		f.resources[cluster] = res
	}
	if _, ok := res[resourceName]; ok {
		return verrors.New(verrors.AlreadyExists, "coordinator.AddResource", fmt.Errorf("resource %s exists", resourceName))
	}
	view := make(ExternalView, partitionCount)
	for p := 0; p < partitionCount; p++ {
		partName := fmt.Sprintf("%s_%d", resourceName, p)
		replicas := make(map[string]ReplicaState, replicationFactor)
		state := ReplicaOffline
		if f.AutoAssign {
			state = ReplicaOnline
		}
		for r := 0; r < replicationFactor; r++ {
			replicas[fmt.Sprintf("instance-%d", r)] = state
		}
		view[partName] = replicas
	}
	res[resourceName] = &fakeResource{
		partitionCount:    partitionCount,
		replicationFactor: replicationFactor,
		view:              view,
	}
	return nil
}

func (f *FakeCoordinator) DropResource(ctx context.Context, cluster, resourceName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Unavailable {
		return f.unavailableErr("coordinator.DropResource")
	}
	if res := f.resources[cluster]; res != nil {
		delete(res, resourceName)
	}
	return nil
}

func (f *FakeCoordinator) EnablePartition(ctx context.Context, cluster, participant, resource, partitionName string, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Unavailable {
		return f.unavailableErr("coordinator.EnablePartition")
	}
	return nil
}

func (f *FakeCoordinator) ReadExternalView(ctx context.Context, cluster, resource string) (ExternalView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Unavailable {
		return nil, f.unavailableErr("coordinator.ReadExternalView")
	}
	res := f.resources[cluster]
	if res == nil || res[resource] == nil {
		return nil, verrors.New(verrors.NotFound, "coordinator.ReadExternalView", fmt.Errorf("resource %s not found", resource))
	}
	out := make(ExternalView, len(res[resource].view))
	for part, replicas := range res[resource].view {
		cp := make(map[string]ReplicaState, len(replicas))
		for r, s := range replicas {
			cp[r] = s
		}
		out[part] = cp
	}
	return out, nil
}

func (f *FakeCoordinator) LiveInstances(ctx context.Context, cluster string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Unavailable {
		return nil, f.unavailableErr("coordinator.LiveInstances")
	}
	var out []string
	for id := range f.instances[cluster] {
		out = append(out, id)
	}
	return out, nil
}

func (f *FakeCoordinator) WaitForAssignment(ctx context.Context, cluster, resource string, replicationFactor int, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		f.mu.Lock()
		if f.Unavailable {
			f.mu.Unlock()
			return f.unavailableErr("coordinator.WaitForAssignment")
		}
		res := f.resources[cluster]
		var fr *fakeResource
		if res != nil {
			fr = res[resource]
		}
		if fr != nil {
			satisfied := true
			for _, replicas := range fr.view {
				online := 0
				for _, s := range replicas {
					if s == ReplicaOnline || s == ReplicaBootstrap {
						online++
					}
				}
				if online < replicationFactor {
					satisfied = false
					break
				}
			}
			if satisfied {
				f.mu.Unlock()
				return nil
			}
		}
		f.mu.Unlock()

		if time.Now().After(deadline) {
			return verrors.New(verrors.CoordinatorUnavailable, "coordinator.WaitForAssignment", fmt.Errorf("timed out waiting for assignment of %s", resource))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func (f *FakeCoordinator) HasResourcesWithPrefix(ctx context.Context, cluster, prefix string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Unavailable {
		return false, f.unavailableErr("coordinator.HasResourcesWithPrefix")
	}
	for name := range f.resources[cluster] {
		if strings.HasPrefix(name, prefix) {
			return true, nil
		}
	}
	return false, nil
}

func (f *FakeCoordinator) SendMessageToParticipants(ctx context.Context, cluster, resource, message string, retries int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Unavailable {
		return f.unavailableErr("coordinator.SendMessageToParticipants")
	}
	f.messages = append(f.messages, fmt.Sprintf("%s/%s:%s", cluster, resource, message))
	return nil
}

// Messages returns every message broadcast via SendMessageToParticipants,
// for test assertions.
func (f *FakeCoordinator) Messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.messages))
	copy(out, f.messages)
	return out
}

// HasResource reports whether resourceName currently exists in cluster.
func (f *FakeCoordinator) HasResource(cluster, resourceName string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	res := f.resources[cluster]
	if res == nil {
		return false
	}
	_, ok := res[resourceName]
	return ok
}
