// Package controllerclient lets a Venice controller call another Venice
// controller to fetch a store's snapshot during cross-cluster migration,
// without generated protobuf stubs.
package controllerclient

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/venice/pkg/types"
	"github.com/cuemby/venice/pkg/verrors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const getStoreSnapshotMethod = "/venice.ControllerAdmin/GetStoreSnapshot"

// Client talks to a peer controller's admin RPC surface.
type Client interface {
	// GetStoreSnapshot asks the controller owning store's source cluster
	// for its current state, used by migrateStore to seed the
	// destination cluster.
	GetStoreSnapshot(ctx context.Context, storeName string) (*types.StoreSnapshot, error)
	Close() error
}

type snapshotRequest struct {
	StoreName string `json:"store_name"`
}

type grpcClient struct {
	conn *grpc.ClientConn
}

// Dial connects to a peer controller at addr. Transport is plaintext;
// controller-to-controller traffic is expected to ride an already-secured
// network segment, and TLS material would be wired here if that changes.
func Dial(addr string, dialTimeout time.Duration) (Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	conn, err := grpc.DialContext(ctx, addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(jsonCodecName)),
		grpc.WithBlock(),
	)
	if err != nil {
		return nil, verrors.New(verrors.CoordinatorUnavailable, "controllerclient.Dial", fmt.Errorf("dial %s: %w", addr, err))
	}
	return &grpcClient{conn: conn}, nil
}

func (c *grpcClient) GetStoreSnapshot(ctx context.Context, storeName string) (*types.StoreSnapshot, error) {
	req := &snapshotRequest{StoreName: storeName}
	resp := &types.StoreSnapshot{}
	if err := c.conn.Invoke(ctx, getStoreSnapshotMethod, req, resp); err != nil {
		return nil, verrors.New(verrors.CoordinatorUnavailable, "controllerclient.GetStoreSnapshot", fmt.Errorf("fetch snapshot for %s: %w", storeName, err))
	}
	return resp, nil
}

func (c *grpcClient) Close() error {
	return c.conn.Close()
}
