package coordinator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cuemby/venice/pkg/log"
	"github.com/cuemby/venice/pkg/verrors"
	"github.com/google/uuid"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// EtcdCoordinator implements Coordinator against an etcd cluster. Keys are
// namespaced per managed cluster under /venice/{cluster}/...:
//
//	/venice/{cluster}/config                                -> "topology_aware=..;auto_join=..;delayed_rebalance_ms=..;min_active_replicas=.." line
//	/venice/{cluster}/participants/{instanceID}              -> lease-backed liveness marker
//	/venice/{cluster}/resources/{resource}/partitions/{p}/{replica} -> ReplicaState
//	/venice/{cluster}/messages/{resource}/{uuid}              -> fire-and-forget message, short TTL lease
//
// A participant disappearing from LiveInstances requires no explicit
// removal path: its liveness key is backed by a lease that expires when
// the holder stops renewing it.
type EtcdCoordinator struct {
	client      *clientv3.Client
	instanceID  string
	callTimeout time.Duration
}

// NewEtcdCoordinator dials etcd at the given endpoints.
func NewEtcdCoordinator(endpoints []string, dialTimeout time.Duration, instanceID string) (*EtcdCoordinator, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: dialTimeout,
	})
	if err != nil {
		return nil, verrors.New(verrors.CoordinatorUnavailable, "coordinator.NewEtcdCoordinator", err)
	}
	return &EtcdCoordinator{
		client:      cli,
		instanceID:  instanceID,
		callTimeout: 10 * time.Second,
	}, nil
}

func (e *EtcdCoordinator) Close() error {
	return e.client.Close()
}

func clusterPrefix(cluster string) string {
	return "/venice/" + cluster
}

func resourcePrefix(cluster, resource string) string {
	return fmt.Sprintf("%s/resources/%s/partitions/", clusterPrefix(cluster), resource)
}

func participantKey(cluster, instanceID string) string {
	return fmt.Sprintf("%s/participants/%s", clusterPrefix(cluster), instanceID)
}

func messageKeyPrefix(cluster, resource string) string {
	return fmt.Sprintf("%s/messages/%s/", clusterPrefix(cluster), resource)
}

func (e *EtcdCoordinator) wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return verrors.New(verrors.CoordinatorUnavailable, op, err)
}

// EnsureCluster writes the cluster-level config and registers this process
// as a live participant, renewed via a 10s-TTL lease kept alive in the
// background for the lifetime of the process.
func (e *EtcdCoordinator) EnsureCluster(ctx context.Context, cluster string, cfg ClusterConfig) error {
	ctx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()

	lease, err := e.client.Grant(ctx, 10)
	if err != nil {
		return e.wrapErr("coordinator.EnsureCluster", err)
	}
	if _, err := e.client.Put(ctx, participantKey(cluster, e.instanceID), "alive", clientv3.WithLease(lease.ID)); err != nil {
		return e.wrapErr("coordinator.EnsureCluster", err)
	}
	keepAliveCh, err := e.client.KeepAlive(context.Background(), lease.ID)
	if err != nil {
		return e.wrapErr("coordinator.EnsureCluster", err)
	}
	go func() {
		for range keepAliveCh {
			// drain responses; etcd client renews automatically
		}
	}()

	cfgLine := fmt.Sprintf("topology_aware=%t;auto_join=%t;delayed_rebalance_ms=%d;min_active_replicas=%d",
		cfg.TopologyAware, cfg.AutoJoinAllowed, cfg.DelayedRebalanceMs, cfg.MinActiveReplicas)
	if _, err := e.client.Put(ctx, clusterPrefix(cluster)+"/config", cfgLine); err != nil {
		return e.wrapErr("coordinator.EnsureCluster", err)
	}
	return nil
}

func (e *EtcdCoordinator) AddResource(ctx context.Context, cluster, resourceName string, partitionCount, replicationFactor int, stateModelName, rebalancer string, minActiveReplicas int) error {
	ctx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()

	existing, err := e.client.Get(ctx, resourcePrefix(cluster, resourceName), clientv3.WithPrefix(), clientv3.WithCountOnly())
	if err != nil {
		return e.wrapErr("coordinator.AddResource", err)
	}
	if existing.Count > 0 {
		return verrors.New(verrors.AlreadyExists, "coordinator.AddResource", fmt.Errorf("resource %s already exists in %s", resourceName, cluster))
	}

	for p := 0; p < partitionCount; p++ {
		for r := 0; r < replicationFactor; r++ {
			key := fmt.Sprintf("%s%d/replica-%d", resourcePrefix(cluster, resourceName), p, r)
			if _, err := e.client.Put(ctx, key, string(ReplicaOffline)); err != nil {
				return e.wrapErr("coordinator.AddResource", err)
			}
		}
	}
	return nil
}

func (e *EtcdCoordinator) DropResource(ctx context.Context, cluster, resourceName string) error {
	ctx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()
	_, err := e.client.Delete(ctx, fmt.Sprintf("%s/resources/%s/", clusterPrefix(cluster), resourceName), clientv3.WithPrefix())
	return e.wrapErr("coordinator.DropResource", err)
}

func (e *EtcdCoordinator) EnablePartition(ctx context.Context, cluster, participant, resource, partitionName string, enabled bool) error {
	ctx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()
	state := ReplicaOnline
	if !enabled {
		state = ReplicaOffline
	}
	key := fmt.Sprintf("%s%s/%s", resourcePrefix(cluster, resource), partitionName, participant)
	_, err := e.client.Put(ctx, key, string(state))
	return e.wrapErr("coordinator.EnablePartition", err)
}

func (e *EtcdCoordinator) ReadExternalView(ctx context.Context, cluster, resource string) (ExternalView, error) {
	ctx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()
	resp, err := e.client.Get(ctx, resourcePrefix(cluster, resource), clientv3.WithPrefix())
	if err != nil {
		return nil, e.wrapErr("coordinator.ReadExternalView", err)
	}
	if len(resp.Kvs) == 0 {
		return nil, verrors.New(verrors.NotFound, "coordinator.ReadExternalView", fmt.Errorf("resource %s not found", resource))
	}
	prefix := resourcePrefix(cluster, resource)
	view := make(ExternalView)
	for _, kv := range resp.Kvs {
		rest := strings.TrimPrefix(string(kv.Key), prefix)
		parts := strings.SplitN(rest, "/", 2)
		if len(parts) != 2 {
			continue
		}
		partition, replica := parts[0], parts[1]
		if view[partition] == nil {
			view[partition] = make(map[string]ReplicaState)
		}
		view[partition][replica] = ReplicaState(kv.Value)
	}
	return view, nil
}

func (e *EtcdCoordinator) LiveInstances(ctx context.Context, cluster string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()
	resp, err := e.client.Get(ctx, clusterPrefix(cluster)+"/participants/", clientv3.WithPrefix())
	if err != nil {
		return nil, e.wrapErr("coordinator.LiveInstances", err)
	}
	prefix := clusterPrefix(cluster) + "/participants/"
	out := make([]string, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		out = append(out, strings.TrimPrefix(string(kv.Key), prefix))
	}
	return out, nil
}

func (e *EtcdCoordinator) WaitForAssignment(ctx context.Context, cluster, resource string, replicationFactor int, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	check := func() (bool, error) {
		view, err := e.ReadExternalView(ctx, cluster, resource)
		if err != nil {
			return false, err
		}
		for _, replicas := range view {
			online := 0
			for _, s := range replicas {
				if s == ReplicaOnline || s == ReplicaBootstrap {
					online++
				}
			}
			if online < replicationFactor {
				return false, nil
			}
		}
		return true, nil
	}

	ok, err := check()
	if err == nil && ok {
		return nil
	}

	watchCh := e.client.Watch(ctx, resourcePrefix(cluster, resource), clientv3.WithPrefix())
	for {
		select {
		case <-ctx.Done():
			return verrors.New(verrors.CoordinatorUnavailable, "coordinator.WaitForAssignment", fmt.Errorf("timed out waiting for assignment of %s", resource))
		case _, chOpen := <-watchCh:
			if !chOpen {
				return verrors.New(verrors.CoordinatorUnavailable, "coordinator.WaitForAssignment", fmt.Errorf("watch closed before assignment of %s", resource))
			}
			ok, err := check()
			if err != nil {
				continue
			}
			if ok {
				return nil
			}
		}
	}
}

func (e *EtcdCoordinator) HasResourcesWithPrefix(ctx context.Context, cluster, prefix string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()
	key := fmt.Sprintf("%s/resources/%s", clusterPrefix(cluster), prefix)
	resp, err := e.client.Get(ctx, key, clientv3.WithPrefix(), clientv3.WithCountOnly())
	if err != nil {
		return false, e.wrapErr("coordinator.HasResourcesWithPrefix", err)
	}
	return resp.Count > 0, nil
}

func (e *EtcdCoordinator) SendMessageToParticipants(ctx context.Context, cluster, resource, message string, retries int) error {
	ctx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()

	lease, err := e.client.Grant(ctx, 60)
	if err != nil {
		return e.wrapErr("coordinator.SendMessageToParticipants", err)
	}
	key := messageKeyPrefix(cluster, resource) + uuid.NewString()

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		_, lastErr = e.client.Put(ctx, key, message, clientv3.WithLease(lease.ID))
		if lastErr == nil {
			return nil
		}
		log.Logger.Warn().Err(lastErr).Int("attempt", attempt).Str("resource", resource).Msg("failed to send participant message, retrying")
	}
	// Fire-and-forget: log the final failure but never block the caller's
	// primary operation on participant delivery.
	log.Logger.Error().Err(lastErr).Str("resource", resource).Msg("giving up on participant message after retries")
	return nil
}
