package mastership

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/venice/pkg/verrors"
)

func TestSingleNodeLeadership(t *testing.T) {
	c := NewController("node-1", t.TempDir(), 30*time.Second)

	require.NoError(t, c.Start("cluster-a", "127.0.0.1:0", nil))
	require.NoError(t, c.WaitForLeadership("cluster-a"))

	assert.True(t, c.IsLeader("cluster-a"))
	assert.NoError(t, c.RequireLeader("cluster-a"))
	assert.NotEmpty(t, c.LeaderAddr("cluster-a"))
	assert.NoError(t, c.LastException("cluster-a"))

	// Starting the same cluster again is a no-op.
	require.NoError(t, c.Start("cluster-a", "127.0.0.1:0", nil))

	require.NoError(t, c.Stop("cluster-a"))
	assert.False(t, c.IsLeader("cluster-a"))
}

func TestUnknownClusterIsNotLed(t *testing.T) {
	c := NewController("node-1", t.TempDir(), time.Second)

	assert.False(t, c.IsLeader("nowhere"))

	err := c.RequireLeader("nowhere")
	require.Error(t, err)
	assert.True(t, verrors.Is(err, verrors.NotFound))
}
