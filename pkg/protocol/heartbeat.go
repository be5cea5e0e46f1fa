package protocol

import (
	"context"

	"google.golang.org/grpc"
)

// HeartbeatServiceServer is the server-side interface for spec.md §6's
// HeartbeatService: a single duplex-streaming method.
type HeartbeatServiceServer interface {
	Heartbeat(HeartbeatService_HeartbeatServer) error
}

type UnimplementedHeartbeatServiceServer struct{}

func (UnimplementedHeartbeatServiceServer) Heartbeat(HeartbeatService_HeartbeatServer) error {
	return errUnimplemented("HeartbeatService.Heartbeat")
}

type HeartbeatService_HeartbeatServer interface {
	Send(*HeartbeatResponse) error
	Recv() (*HeartbeatRequest, error)
	grpc.ServerStream
}

type heartbeatServiceHeartbeatServer struct {
	grpc.ServerStream
}

func (s *heartbeatServiceHeartbeatServer) Send(m *HeartbeatResponse) error {
	return s.ServerStream.SendMsg(m)
}

func (s *heartbeatServiceHeartbeatServer) Recv() (*HeartbeatRequest, error) {
	m := new(HeartbeatRequest)
	if err := s.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func RegisterHeartbeatServiceServer(s grpc.ServiceRegistrar, srv HeartbeatServiceServer) {
	s.RegisterService(&heartbeatServiceDesc, srv)
}

var heartbeatServiceDesc = grpc.ServiceDesc{
	ServiceName: "edgeorchestra.HeartbeatService",
	HandlerType: (*HeartbeatServiceServer)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Heartbeat",
			ServerStreams: true,
			ClientStreams: true,
			Handler: func(srv any, stream grpc.ServerStream) error {
				return srv.(HeartbeatServiceServer).Heartbeat(&heartbeatServiceHeartbeatServer{stream})
			},
		},
	},
	Metadata: "edgeorchestra/heartbeat",
}

// HeartbeatServiceClient is the client-side interface.
type HeartbeatServiceClient interface {
	Heartbeat(ctx context.Context, opts ...grpc.CallOption) (HeartbeatService_HeartbeatClient, error)
}

type heartbeatServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewHeartbeatServiceClient(cc grpc.ClientConnInterface) HeartbeatServiceClient {
	return &heartbeatServiceClient{cc: cc}
}

type HeartbeatService_HeartbeatClient interface {
	Send(*HeartbeatRequest) error
	Recv() (*HeartbeatResponse, error)
	grpc.ClientStream
}

type heartbeatServiceHeartbeatClient struct {
	grpc.ClientStream
}

func (c *heartbeatServiceHeartbeatClient) Send(m *HeartbeatRequest) error {
	return c.ClientStream.SendMsg(m)
}

func (c *heartbeatServiceHeartbeatClient) Recv() (*HeartbeatResponse, error) {
	m := new(HeartbeatResponse)
	if err := c.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *heartbeatServiceClient) Heartbeat(ctx context.Context, opts ...grpc.CallOption) (HeartbeatService_HeartbeatClient, error) {
	opts = append(opts, CallOption())
	stream, err := c.cc.NewStream(ctx, &heartbeatServiceDesc.Streams[0], "/edgeorchestra.HeartbeatService/Heartbeat", opts...)
	if err != nil {
		return nil, err
	}
	return &heartbeatServiceHeartbeatClient{stream}, nil
}
