// Package mastership elects a single controller instance as master for
// each managed cluster, using a dedicated hashicorp/raft group per
// cluster. Every admin mutation gates on RequireLeader so only one
// controller process sequences a given cluster's metadata at a time.
package mastership

import (
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cuemby/venice/pkg/log"
	"github.com/cuemby/venice/pkg/metrics"
	"github.com/cuemby/venice/pkg/verrors"
	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
)

// Peer identifies one voter in a cluster's raft group.
type Peer struct {
	NodeID string
	Addr   string
}

// Group tracks the raft machinery for one managed cluster's mastership
// election.
type Group struct {
	cluster   string
	raft      *raft.Raft
	fsm       *nopFSM
	transport *raft.NetworkTransport
	startedAt time.Time

	mu      sync.Mutex
	lastErr error
}

// Controller manages one raft group per cluster this controller instance
// participates in.
type Controller struct {
	nodeID      string
	dataRoot    string
	joinTimeout time.Duration

	mu     sync.Mutex
	groups map[string]*Group
}

// NewController creates a mastership Controller. dataRoot holds one
// subdirectory per managed cluster's raft log/stable/snapshot stores.
func NewController(nodeID, dataRoot string, joinTimeout time.Duration) *Controller {
	if joinTimeout <= 0 {
		joinTimeout = 5 * time.Minute
	}
	return &Controller{
		nodeID:      nodeID,
		dataRoot:    dataRoot,
		joinTimeout: joinTimeout,
		groups:      make(map[string]*Group),
	}
}

// Start bootstraps (or joins) the raft group for cluster, begins
// participating in its leader election, and blocks until this node is
// leader for cluster or joinTimeout elapses (verrors.JoinTimeout, via
// WaitForLeadership). Starting a cluster that is already started returns
// nil at once. bindAddr is this node's raft
// transport address; peers lists the other voters already known for this
// cluster (empty on first bootstrap of a single-node cluster).
func (c *Controller) Start(cluster, bindAddr string, peers []Peer) error {
	c.mu.Lock()
	if _, ok := c.groups[cluster]; ok {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	dataDir := filepath.Join(c.dataRoot, cluster)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return verrors.New(verrors.Fatal, "mastership.Start", fmt.Errorf("create data dir for %s: %w", cluster, err))
	}

	config := raft.DefaultConfig()
	config.LocalID = raft.ServerID(c.nodeID)
	config.HeartbeatTimeout = 500 * time.Millisecond
	config.ElectionTimeout = 500 * time.Millisecond
	config.CommitTimeout = 50 * time.Millisecond
	config.LeaderLeaseTimeout = 250 * time.Millisecond

	addr, err := net.ResolveTCPAddr("tcp", bindAddr)
	if err != nil {
		return verrors.New(verrors.Fatal, "mastership.Start", fmt.Errorf("resolve bind addr for %s: %w", cluster, err))
	}
	transport, err := raft.NewTCPTransport(bindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return verrors.New(verrors.Fatal, "mastership.Start", fmt.Errorf("raft transport for %s: %w", cluster, err))
	}
	snapshotStore, err := raft.NewFileSnapshotStore(dataDir, 2, os.Stderr)
	if err != nil {
		return verrors.New(verrors.Fatal, "mastership.Start", fmt.Errorf("snapshot store for %s: %w", cluster, err))
	}
	logStore, err := raftboltdb.NewBoltStore(filepath.Join(dataDir, "raft-log.db"))
	if err != nil {
		return verrors.New(verrors.Fatal, "mastership.Start", fmt.Errorf("log store for %s: %w", cluster, err))
	}
	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(dataDir, "raft-stable.db"))
	if err != nil {
		return verrors.New(verrors.Fatal, "mastership.Start", fmt.Errorf("stable store for %s: %w", cluster, err))
	}

	fsm := &nopFSM{}
	r, err := raft.NewRaft(config, fsm, logStore, stableStore, snapshotStore, transport)
	if err != nil {
		return verrors.New(verrors.Fatal, "mastership.Start", fmt.Errorf("new raft for %s: %w", cluster, err))
	}

	servers := []raft.Server{{ID: config.LocalID, Address: transport.LocalAddr()}}
	for _, p := range peers {
		servers = append(servers, raft.Server{ID: raft.ServerID(p.NodeID), Address: raft.ServerAddress(p.Addr)})
	}
	if len(peers) == 0 {
		future := r.BootstrapCluster(raft.Configuration{Servers: servers})
		if err := future.Error(); err != nil && err != raft.ErrCantBootstrap {
			return verrors.New(verrors.Fatal, "mastership.Start", fmt.Errorf("bootstrap %s: %w", cluster, err))
		}
	}

	g := &Group{
		cluster:   cluster,
		raft:      r,
		fsm:       fsm,
		transport: transport,
		startedAt: time.Now(),
	}
	c.mu.Lock()
	c.groups[cluster] = g
	c.mu.Unlock()

	go c.watchLeadership(cluster, g)
	clusterLogger := log.WithCluster(cluster)
	clusterLogger.Info().Str("node_id", c.nodeID).Msg("mastership raft group started")
	return c.WaitForLeadership(cluster)
}

func (c *Controller) watchLeadership(cluster string, g *Group) {
	joinTimer := metrics.NewTimer()
	reported := false
	for {
		g.mu.Lock()
		r := g.raft
		g.mu.Unlock()
		if r == nil {
			return
		}
		isLeader := r.State() == raft.Leader
		metrics.MastershipLeader.WithLabelValues(cluster).Set(boolToFloat(isLeader))
		if isLeader && !reported {
			joinTimer.ObserveDuration(metrics.MastershipJoinDuration)
			reported = true
		}
		time.Sleep(500 * time.Millisecond)
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// AddVoter adds a new voter to cluster's raft group. Must be called on the
// current leader.
func (c *Controller) AddVoter(cluster, nodeID, addr string) error {
	g, err := c.group(cluster)
	if err != nil {
		return err
	}
	if g.raft.State() != raft.Leader {
		return verrors.New(verrors.NotLeader, "mastership.AddVoter", fmt.Errorf("not leader for %s", cluster))
	}
	future := g.raft.AddVoter(raft.ServerID(nodeID), raft.ServerAddress(addr), 0, 10*time.Second)
	if err := future.Error(); err != nil {
		return verrors.New(verrors.Fatal, "mastership.AddVoter", err)
	}
	return nil
}

// IsLeader reports whether this node currently holds mastership of cluster.
func (c *Controller) IsLeader(cluster string) bool {
	g, err := c.group(cluster)
	if err != nil {
		return false
	}
	return g.raft.State() == raft.Leader
}

// LeaderAddr returns the raft transport address of cluster's current
// leader, or "" if unknown.
func (c *Controller) LeaderAddr(cluster string) string {
	g, err := c.group(cluster)
	if err != nil {
		return ""
	}
	addr, _ := g.raft.LeaderWithID()
	return string(addr)
}

// RequireLeader returns verrors.NotFound if no group for cluster was
// started on this node, and verrors.NotLeader if one was but this node is
// not currently master for it. Every Store Lifecycle Engine write operation calls
// this first.
func (c *Controller) RequireLeader(cluster string) error {
	g, err := c.group(cluster)
	if err != nil {
		return err
	}
	if g.raft.State() != raft.Leader {
		return verrors.New(verrors.NotLeader, "mastership.RequireLeader", fmt.Errorf("not leader for cluster %s, current leader %s", cluster, c.LeaderAddr(cluster)))
	}
	return nil
}

// WaitForLeadership blocks until this node becomes leader for cluster or
// joinTimeout elapses, polling every 500ms.
func (c *Controller) WaitForLeadership(cluster string) error {
	g, err := c.group(cluster)
	if err != nil {
		return err
	}
	deadline := time.Now().Add(c.joinTimeout)
	for time.Now().Before(deadline) {
		if g.raft.State() == raft.Leader {
			return nil
		}
		time.Sleep(500 * time.Millisecond)
	}
	g.mu.Lock()
	g.lastErr = fmt.Errorf("timed out waiting for leadership of %s after %s", cluster, c.joinTimeout)
	g.mu.Unlock()
	return verrors.New(verrors.JoinTimeout, "mastership.WaitForLeadership", g.lastErr)
}

// LastException returns the last mastership error recorded for cluster,
// or nil.
func (c *Controller) LastException(cluster string) error {
	g, err := c.group(cluster)
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastErr
}

// Stop shuts down the raft group for cluster.
func (c *Controller) Stop(cluster string) error {
	c.mu.Lock()
	g, ok := c.groups[cluster]
	if ok {
		delete(c.groups, cluster)
	}
	c.mu.Unlock()
	if !ok {
		return nil
	}
	future := g.raft.Shutdown()
	g.mu.Lock()
	g.raft = nil
	g.mu.Unlock()
	if err := future.Error(); err != nil {
		return verrors.New(verrors.Fatal, "mastership.Stop", err)
	}
	return g.transport.Close()
}

func (c *Controller) group(cluster string) (*Group, error) {
	c.mu.Lock()
	g, ok := c.groups[cluster]
	c.mu.Unlock()
	if !ok {
		return nil, verrors.New(verrors.NotFound, "mastership.group", fmt.Errorf("no mastership group for cluster %s", cluster))
	}
	return g, nil
}

// nopFSM is a no-op raft.FSM: mastership groups exist purely to elect a
// leader, so no replicated log entries are ever applied through them.
type nopFSM struct{}

func (f *nopFSM) Apply(*raft.Log) interface{} { return nil }

func (f *nopFSM) Snapshot() (raft.FSMSnapshot, error) {
	return nopSnapshot{}, nil
}

func (f *nopFSM) Restore(rc io.ReadCloser) error {
	return rc.Close()
}

type nopSnapshot struct{}

func (nopSnapshot) Persist(sink raft.SnapshotSink) error { return sink.Close() }
func (nopSnapshot) Release()                             {}
