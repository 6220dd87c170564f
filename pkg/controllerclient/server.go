package controllerclient

import (
	"context"

	"github.com/cuemby/venice/pkg/types"
	"google.golang.org/grpc"
)

// SnapshotProvider is implemented by the Store Lifecycle Engine to serve
// snapshot requests from peer controllers.
type SnapshotProvider interface {
	GetStoreSnapshot(ctx context.Context, storeName string) (*types.StoreSnapshot, error)
}

var controllerAdminServiceDesc = grpc.ServiceDesc{
	ServiceName: "venice.ControllerAdmin",
	HandlerType: (*SnapshotProvider)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetStoreSnapshot",
			Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
				req := &snapshotRequest{}
				if err := dec(req); err != nil {
					return nil, err
				}
				if interceptor == nil {
					return srv.(SnapshotProvider).GetStoreSnapshot(ctx, req.StoreName)
				}
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getStoreSnapshotMethod}
				handler := func(ctx context.Context, req interface{}) (interface{}, error) {
					return srv.(SnapshotProvider).GetStoreSnapshot(ctx, req.(*snapshotRequest).StoreName)
				}
				return interceptor(ctx, req, info, handler)
			},
		},
	},
	Streams: []grpc.StreamDesc{},
}

// RegisterServer wires a SnapshotProvider into a gRPC server so peer
// controllers can fetch store snapshots through the hand-rolled JSON
// codec registered in this package.
func RegisterServer(s *grpc.Server, provider SnapshotProvider) {
	s.RegisterService(&controllerAdminServiceDesc, provider)
}
