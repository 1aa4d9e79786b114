package pb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	Fulfillment_OpenSession_FullMethodName = "/allshop.fulfillment.v1.Fulfillment/OpenSession"
	Fulfillment_Scan_FullMethodName        = "/allshop.fulfillment.v1.Fulfillment/Scan"
	Fulfillment_Commit_FullMethodName      = "/allshop.fulfillment.v1.Fulfillment/Commit"
	Fulfillment_Cancel_FullMethodName      = "/allshop.fulfillment.v1.Fulfillment/Cancel"
)

type FulfillmentClient interface {
	OpenSession(ctx context.Context, in *OpenSessionRequest, opts ...grpc.CallOption) (*SessionResponse, error)
	Scan(ctx context.Context, in *ScanRequest, opts ...grpc.CallOption) (*SessionResponse, error)
	Commit(ctx context.Context, in *CommitRequest, opts ...grpc.CallOption) (*CommitResponse, error)
	Cancel(ctx context.Context, in *CancelRequest, opts ...grpc.CallOption) (*CancelResponse, error)
}

type fulfillmentClient struct {
	cc grpc.ClientConnInterface
}

func NewFulfillmentClient(cc grpc.ClientConnInterface) FulfillmentClient {
	return &fulfillmentClient{cc}
}

func (c *fulfillmentClient) OpenSession(ctx context.Context, in *OpenSessionRequest, opts ...grpc.CallOption) (*SessionResponse, error) {
	out := new(SessionResponse)
	if err := c.cc.Invoke(ctx, Fulfillment_OpenSession_FullMethodName, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *fulfillmentClient) Scan(ctx context.Context, in *ScanRequest, opts ...grpc.CallOption) (*SessionResponse, error) {
	out := new(SessionResponse)
	if err := c.cc.Invoke(ctx, Fulfillment_Scan_FullMethodName, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *fulfillmentClient) Commit(ctx context.Context, in *CommitRequest, opts ...grpc.CallOption) (*CommitResponse, error) {
	out := new(CommitResponse)
	if err := c.cc.Invoke(ctx, Fulfillment_Commit_FullMethodName, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *fulfillmentClient) Cancel(ctx context.Context, in *CancelRequest, opts ...grpc.CallOption) (*CancelResponse, error) {
	out := new(CancelResponse)
	if err := c.cc.Invoke(ctx, Fulfillment_Cancel_FullMethodName, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func withCodec(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
}

// FulfillmentServer is the server API for the Fulfillment service.
// Implementations must embed UnimplementedFulfillmentServer.
type FulfillmentServer interface {
	OpenSession(context.Context, *OpenSessionRequest) (*SessionResponse, error)
	Scan(context.Context, *ScanRequest) (*SessionResponse, error)
	Commit(context.Context, *CommitRequest) (*CommitResponse, error)
	Cancel(context.Context, *CancelRequest) (*CancelResponse, error)
	mustEmbedUnimplementedFulfillmentServer()
}

type UnimplementedFulfillmentServer struct{}

func (UnimplementedFulfillmentServer) OpenSession(context.Context, *OpenSessionRequest) (*SessionResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method OpenSession not implemented")
}
func (UnimplementedFulfillmentServer) Scan(context.Context, *ScanRequest) (*SessionResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Scan not implemented")
}
func (UnimplementedFulfillmentServer) Commit(context.Context, *CommitRequest) (*CommitResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Commit not implemented")
}
func (UnimplementedFulfillmentServer) Cancel(context.Context, *CancelRequest) (*CancelResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Cancel not implemented")
}
func (UnimplementedFulfillmentServer) mustEmbedUnimplementedFulfillmentServer() {}

func RegisterFulfillmentServer(s grpc.ServiceRegistrar, srv FulfillmentServer) {
	s.RegisterService(&Fulfillment_ServiceDesc, srv)
}

func _Fulfillment_OpenSession_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(OpenSessionRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FulfillmentServer).OpenSession(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: Fulfillment_OpenSession_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(FulfillmentServer).OpenSession(ctx, req.(*OpenSessionRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Fulfillment_Scan_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ScanRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FulfillmentServer).Scan(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: Fulfillment_Scan_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(FulfillmentServer).Scan(ctx, req.(*ScanRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Fulfillment_Commit_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(CommitRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FulfillmentServer).Commit(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: Fulfillment_Commit_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(FulfillmentServer).Commit(ctx, req.(*CommitRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Fulfillment_Cancel_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(CancelRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FulfillmentServer).Cancel(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: Fulfillment_Cancel_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(FulfillmentServer).Cancel(ctx, req.(*CancelRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var Fulfillment_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "allshop.fulfillment.v1.Fulfillment",
	HandlerType: (*FulfillmentServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "OpenSession", Handler: _Fulfillment_OpenSession_Handler},
		{MethodName: "Scan", Handler: _Fulfillment_Scan_Handler},
		{MethodName: "Commit", Handler: _Fulfillment_Commit_Handler},
		{MethodName: "Cancel", Handler: _Fulfillment_Cancel_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "allshop/fulfillment/v1/fulfillment.proto",
}
