package protocol

import (
	"context"

	"google.golang.org/grpc"
)

// ModelServiceServer is the server-side interface for spec.md §6's
// ModelService.
type ModelServiceServer interface {
	DownloadModel(*DownloadModelRequest, ModelService_DownloadModelServer) error
	SubmitGradients(context.Context, *SubmitGradientsRequest) (*SubmitGradientsResponse, error)
	UploadModel(ModelService_UploadModelServer) error
}

type UnimplementedModelServiceServer struct{}

func (UnimplementedModelServiceServer) DownloadModel(*DownloadModelRequest, ModelService_DownloadModelServer) error {
	return errUnimplemented("ModelService.DownloadModel")
}

func (UnimplementedModelServiceServer) SubmitGradients(context.Context, *SubmitGradientsRequest) (*SubmitGradientsResponse, error) {
	return nil, errUnimplemented("ModelService.SubmitGradients")
}

func (UnimplementedModelServiceServer) UploadModel(ModelService_UploadModelServer) error {
	return errUnimplemented("ModelService.UploadModel")
}

type ModelService_DownloadModelServer interface {
	Send(*ModelChunk) error
	grpc.ServerStream
}

type modelServiceDownloadModelServer struct {
	grpc.ServerStream
}

func (s *modelServiceDownloadModelServer) Send(m *ModelChunk) error {
	return s.ServerStream.SendMsg(m)
}

type ModelService_UploadModelServer interface {
	Recv() (*ModelChunk, error)
	SendAndClose(*UploadModelResponse) error
	grpc.ServerStream
}

type modelServiceUploadModelServer struct {
	grpc.ServerStream
}

func (s *modelServiceUploadModelServer) Recv() (*ModelChunk, error) {
	m := new(ModelChunk)
	if err := s.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *modelServiceUploadModelServer) SendAndClose(m *UploadModelResponse) error {
	return s.ServerStream.SendMsg(m)
}

func RegisterModelServiceServer(s grpc.ServiceRegistrar, srv ModelServiceServer) {
	s.RegisterService(&modelServiceDesc, srv)
}

var modelServiceDesc = grpc.ServiceDesc{
	ServiceName: "edgeorchestra.ModelService",
	HandlerType: (*ModelServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "SubmitGradients",
			Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
				in := new(SubmitGradientsRequest)
				if err := dec(in); err != nil {
					return nil, err
				}
				if interceptor == nil {
					return srv.(ModelServiceServer).SubmitGradients(ctx, in)
				}
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/edgeorchestra.ModelService/SubmitGradients"}
				handler := func(ctx context.Context, req any) (any, error) {
					return srv.(ModelServiceServer).SubmitGradients(ctx, req.(*SubmitGradientsRequest))
				}
				return interceptor(ctx, in, info, handler)
			},
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "DownloadModel",
			ServerStreams: true,
			Handler: func(srv any, stream grpc.ServerStream) error {
				in := new(DownloadModelRequest)
				if err := stream.RecvMsg(in); err != nil {
					return err
				}
				return srv.(ModelServiceServer).DownloadModel(in, &modelServiceDownloadModelServer{stream})
			},
		},
		{
			StreamName:    "UploadModel",
			ClientStreams: true,
			Handler: func(srv any, stream grpc.ServerStream) error {
				return srv.(ModelServiceServer).UploadModel(&modelServiceUploadModelServer{stream})
			},
		},
	},
	Metadata: "edgeorchestra/model",
}

// ModelServiceClient is the client-side interface.
type ModelServiceClient interface {
	DownloadModel(ctx context.Context, in *DownloadModelRequest, opts ...grpc.CallOption) (ModelService_DownloadModelClient, error)
	SubmitGradients(ctx context.Context, in *SubmitGradientsRequest, opts ...grpc.CallOption) (*SubmitGradientsResponse, error)
	UploadModel(ctx context.Context, opts ...grpc.CallOption) (ModelService_UploadModelClient, error)
}

type modelServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewModelServiceClient(cc grpc.ClientConnInterface) ModelServiceClient {
	return &modelServiceClient{cc: cc}
}

func (c *modelServiceClient) SubmitGradients(ctx context.Context, in *SubmitGradientsRequest, opts ...grpc.CallOption) (*SubmitGradientsResponse, error) {
	out := new(SubmitGradientsResponse)
	opts = append(opts, CallOption())
	if err := c.cc.Invoke(ctx, "/edgeorchestra.ModelService/SubmitGradients", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

type ModelService_DownloadModelClient interface {
	Recv() (*ModelChunk, error)
	grpc.ClientStream
}

type modelServiceDownloadModelClient struct {
	grpc.ClientStream
}

func (c *modelServiceDownloadModelClient) Recv() (*ModelChunk, error) {
	m := new(ModelChunk)
	if err := c.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *modelServiceClient) DownloadModel(ctx context.Context, in *DownloadModelRequest, opts ...grpc.CallOption) (ModelService_DownloadModelClient, error) {
	opts = append(opts, CallOption())
	stream, err := c.cc.NewStream(ctx, &modelServiceDesc.Streams[0], "/edgeorchestra.ModelService/DownloadModel", opts...)
	if err != nil {
		return nil, err
	}
	x := &modelServiceDownloadModelClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

type ModelService_UploadModelClient interface {
	Send(*ModelChunk) error
	CloseAndRecv() (*UploadModelResponse, error)
	grpc.ClientStream
}

type modelServiceUploadModelClient struct {
	grpc.ClientStream
}

func (c *modelServiceUploadModelClient) Send(m *ModelChunk) error {
	return c.ClientStream.SendMsg(m)
}

func (c *modelServiceUploadModelClient) CloseAndRecv() (*UploadModelResponse, error) {
	if err := c.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	m := new(UploadModelResponse)
	if err := c.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *modelServiceClient) UploadModel(ctx context.Context, opts ...grpc.CallOption) (ModelService_UploadModelClient, error) {
	opts = append(opts, CallOption())
	stream, err := c.cc.NewStream(ctx, &modelServiceDesc.Streams[1], "/edgeorchestra.ModelService/UploadModel", opts...)
	if err != nil {
		return nil, err
	}
	return &modelServiceUploadModelClient{stream}, nil
}
