package protocol

import (
	"context"

	"google.golang.org/grpc"
)

// DeviceRegistryServer is the server-side interface for spec.md §6's
// DeviceRegistry service.
type DeviceRegistryServer interface {
	Register(context.Context, *RegisterRequest) (*RegisterResponse, error)
	Unregister(context.Context, *UnregisterRequest) (*Ack, error)
	ListDevices(*ListDevicesFilter, DeviceRegistry_ListDevicesServer) error
}

// UnimplementedDeviceRegistryServer can be embedded in a concrete server
// to satisfy the interface for methods it doesn't override, matching the
// teacher's Unimplemented*Server embedding convention.
type UnimplementedDeviceRegistryServer struct{}

func (UnimplementedDeviceRegistryServer) Register(context.Context, *RegisterRequest) (*RegisterResponse, error) {
	return nil, errUnimplemented("DeviceRegistry.Register")
}

func (UnimplementedDeviceRegistryServer) Unregister(context.Context, *UnregisterRequest) (*Ack, error) {
	return nil, errUnimplemented("DeviceRegistry.Unregister")
}

func (UnimplementedDeviceRegistryServer) ListDevices(*ListDevicesFilter, DeviceRegistry_ListDevicesServer) error {
	return errUnimplemented("DeviceRegistry.ListDevices")
}

type DeviceRegistry_ListDevicesServer interface {
	Send(*Device) error
	grpc.ServerStream
}

type deviceRegistryListDevicesServer struct {
	grpc.ServerStream
}

func (s *deviceRegistryListDevicesServer) Send(d *Device) error {
	return s.ServerStream.SendMsg(d)
}

func RegisterDeviceRegistryServer(s grpc.ServiceRegistrar, srv DeviceRegistryServer) {
	s.RegisterService(&deviceRegistryServiceDesc, srv)
}

var deviceRegistryServiceDesc = grpc.ServiceDesc{
	ServiceName: "edgeorchestra.DeviceRegistry",
	HandlerType: (*DeviceRegistryServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Register",
			Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
				in := new(RegisterRequest)
				if err := dec(in); err != nil {
					return nil, err
				}
				if interceptor == nil {
					return srv.(DeviceRegistryServer).Register(ctx, in)
				}
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/edgeorchestra.DeviceRegistry/Register"}
				handler := func(ctx context.Context, req any) (any, error) {
					return srv.(DeviceRegistryServer).Register(ctx, req.(*RegisterRequest))
				}
				return interceptor(ctx, in, info, handler)
			},
		},
		{
			MethodName: "Unregister",
			Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
				in := new(UnregisterRequest)
				if err := dec(in); err != nil {
					return nil, err
				}
				if interceptor == nil {
					return srv.(DeviceRegistryServer).Unregister(ctx, in)
				}
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/edgeorchestra.DeviceRegistry/Unregister"}
				handler := func(ctx context.Context, req any) (any, error) {
					return srv.(DeviceRegistryServer).Unregister(ctx, req.(*UnregisterRequest))
				}
				return interceptor(ctx, in, info, handler)
			},
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "ListDevices",
			ServerStreams: true,
			Handler: func(srv any, stream grpc.ServerStream) error {
				in := new(ListDevicesFilter)
				if err := stream.RecvMsg(in); err != nil {
					return err
				}
				return srv.(DeviceRegistryServer).ListDevices(in, &deviceRegistryListDevicesServer{stream})
			},
		},
	},
	Metadata: "edgeorchestra/device_registry",
}

// DeviceRegistryClient is the client-side interface for the service.
type DeviceRegistryClient interface {
	Register(ctx context.Context, in *RegisterRequest, opts ...grpc.CallOption) (*RegisterResponse, error)
	Unregister(ctx context.Context, in *UnregisterRequest, opts ...grpc.CallOption) (*Ack, error)
	ListDevices(ctx context.Context, in *ListDevicesFilter, opts ...grpc.CallOption) (DeviceRegistry_ListDevicesClient, error)
}

type deviceRegistryClient struct {
	cc grpc.ClientConnInterface
}

func NewDeviceRegistryClient(cc grpc.ClientConnInterface) DeviceRegistryClient {
	return &deviceRegistryClient{cc: cc}
}

func (c *deviceRegistryClient) Register(ctx context.Context, in *RegisterRequest, opts ...grpc.CallOption) (*RegisterResponse, error) {
	out := new(RegisterResponse)
	opts = append(opts, CallOption())
	if err := c.cc.Invoke(ctx, "/edgeorchestra.DeviceRegistry/Register", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *deviceRegistryClient) Unregister(ctx context.Context, in *UnregisterRequest, opts ...grpc.CallOption) (*Ack, error) {
	out := new(Ack)
	opts = append(opts, CallOption())
	if err := c.cc.Invoke(ctx, "/edgeorchestra.DeviceRegistry/Unregister", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

type DeviceRegistry_ListDevicesClient interface {
	Recv() (*Device, error)
	grpc.ClientStream
}

type deviceRegistryListDevicesClient struct {
	grpc.ClientStream
}

func (c *deviceRegistryListDevicesClient) Recv() (*Device, error) {
	m := new(Device)
	if err := c.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *deviceRegistryClient) ListDevices(ctx context.Context, in *ListDevicesFilter, opts ...grpc.CallOption) (DeviceRegistry_ListDevicesClient, error) {
	opts = append(opts, CallOption())
	stream, err := c.cc.NewStream(ctx, &deviceRegistryServiceDesc.Streams[0], "/edgeorchestra.DeviceRegistry/ListDevices", opts...)
	if err != nil {
		return nil, err
	}
	x := &deviceRegistryListDevicesClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
