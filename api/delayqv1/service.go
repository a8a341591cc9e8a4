package delayqv1

import (
	"context"

	"google.golang.org/grpc"
)

const (
	ServiceName = "delayq.v1.DelayQueue"

	PushMethod   = "/" + ServiceName + "/Push"
	PopMethod    = "/" + ServiceName + "/Pop"
	CancelMethod = "/" + ServiceName + "/Cancel"
	StatsMethod  = "/" + ServiceName + "/Stats"
)

// DelayQueueServer is the server API for the DelayQueue service.
type DelayQueueServer interface {
	Push(context.Context, *PushRequest) (*PushResponse, error)
	Pop(context.Context, *PopRequest) (*PopResponse, error)
	Cancel(context.Context, *CancelRequest) (*CancelResponse, error)
	Stats(context.Context, *StatsRequest) (*StatsResponse, error)
}

// RegisterDelayQueueServer registers srv on s.
func RegisterDelayQueueServer(s grpc.ServiceRegistrar, srv DelayQueueServer) {
	s.RegisterService(&DelayQueue_ServiceDesc, srv)
}

// DelayQueue_ServiceDesc is the grpc.ServiceDesc for the DelayQueue service.
var DelayQueue_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DelayQueueServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Push", Handler: pushHandler},
		{MethodName: "Pop", Handler: popHandler},
		{MethodName: "Cancel", Handler: cancelHandler},
		{MethodName: "Stats", Handler: statsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "delayq/v1/delayqueue",
}

func pushHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(PushRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DelayQueueServer).Push(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: PushMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(DelayQueueServer).Push(ctx, req.(*PushRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func popHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(PopRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DelayQueueServer).Pop(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: PopMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(DelayQueueServer).Pop(ctx, req.(*PopRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func cancelHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(CancelRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DelayQueueServer).Cancel(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: CancelMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(DelayQueueServer).Cancel(ctx, req.(*CancelRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func statsHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(StatsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DelayQueueServer).Stats(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: StatsMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(DelayQueueServer).Stats(ctx, req.(*StatsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// DelayQueueClient is the client API for the DelayQueue service.
type DelayQueueClient interface {
	Push(ctx context.Context, in *PushRequest, opts ...grpc.CallOption) (*PushResponse, error)
	Pop(ctx context.Context, in *PopRequest, opts ...grpc.CallOption) (*PopResponse, error)
	Cancel(ctx context.Context, in *CancelRequest, opts ...grpc.CallOption) (*CancelResponse, error)
	Stats(ctx context.Context, in *StatsRequest, opts ...grpc.CallOption) (*StatsResponse, error)
}

type delayQueueClient struct {
	cc grpc.ClientConnInterface
}

// NewDelayQueueClient returns a stub that sends every call with the JSON codec.
func NewDelayQueueClient(cc grpc.ClientConnInterface) DelayQueueClient {
	return &delayQueueClient{cc: cc}
}

func (c *delayQueueClient) invoke(ctx context.Context, method string, in, out interface{}, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, method, in, out, opts...)
}

func (c *delayQueueClient) Push(ctx context.Context, in *PushRequest, opts ...grpc.CallOption) (*PushResponse, error) {
	out := new(PushResponse)
	if err := c.invoke(ctx, PushMethod, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *delayQueueClient) Pop(ctx context.Context, in *PopRequest, opts ...grpc.CallOption) (*PopResponse, error) {
	out := new(PopResponse)
	if err := c.invoke(ctx, PopMethod, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *delayQueueClient) Cancel(ctx context.Context, in *CancelRequest, opts ...grpc.CallOption) (*CancelResponse, error) {
	out := new(CancelResponse)
	if err := c.invoke(ctx, CancelMethod, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *delayQueueClient) Stats(ctx context.Context, in *StatsRequest, opts ...grpc.CallOption) (*StatsResponse, error) {
	out := new(StatsResponse)
	if err := c.invoke(ctx, StatsMethod, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}
