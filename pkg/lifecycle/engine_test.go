package lifecycle

import (
	"os"
	"testing"
	"time"

	"github.com/cuemby/venice/pkg/coordinator"
	"github.com/cuemby/venice/pkg/mastership"
	"github.com/cuemby/venice/pkg/storage"
	"github.com/cuemby/venice/pkg/topics"
)

// testMastership is started once for the whole package: a single-node raft
// group per cluster name used across the test files here, so every test
// can call requireLeader without paying a fresh bootstrap/election per
// test case.
var testMastership *mastership.Controller

const (
	testClusterA = "test-cluster-a"
	testClusterB = "test-cluster-b"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "venice-lifecycle-test-")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(dir)

	testMastership = mastership.NewController("test-node", dir, time.Minute)
	for _, cluster := range []string{testClusterA, testClusterB} {
		if err := testMastership.Start(cluster, "127.0.0.1:0", nil); err != nil {
			panic(err)
		}
		if err := testMastership.WaitForLeadership(cluster); err != nil {
			panic(err)
		}
	}

	os.Exit(m.Run())
}

// testEngine bundles an Engine with its fake leaf adapters so test cases
// can assert against the fakes directly (e.g. FakeCoordinator.Messages()).
type testEngine struct {
	*Engine
	metadata storage.MetadataStore
	coord    *coordinator.FakeCoordinator
}

func newTestEngine(t *testing.T) *testEngine {
	t.Helper()
	coord := coordinator.NewFakeCoordinator()
	metadata := storage.NewInMemoryMetadataStore()
	deps := Dependencies{
		Metadata:    metadata,
		Coordinator: coord,
		Topics:      topics.NewFakeManager(),
		Mastership:  testMastership,
	}
	return &testEngine{
		Engine:   New(deps, DefaultSettings()),
		metadata: metadata,
		coord:    coord,
	}
}
