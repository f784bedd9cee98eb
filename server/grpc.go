package server

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/weisyn/bridge-go/log"
	"github.com/weisyn/bridge-go/types"
)

// grpcBridge gRPC 服务实现约束（RegisterService 据此做类型检查）
type grpcBridge interface {
	call(ctx context.Context, req *types.CallRequest) (*types.CallResponse, error)
	subscribe(filter *types.EventFilter, stream grpc.ServerStream) error
}

// GRPCService JSON 编码的 gRPC 服务：Call 一元调用与 Subscribe 服务端流
type GRPCService struct {
	dispatcher *Dispatcher
	hub        *Hub
	logger     log.Logger
}

var _ grpcBridge = (*GRPCService)(nil)

// NewGRPCService 创建 gRPC 服务
func NewGRPCService(dispatcher *Dispatcher, hub *Hub, logger log.Logger) *GRPCService {
	if logger == nil {
		logger = log.Nop()
	}
	return &GRPCService{dispatcher: dispatcher, hub: hub, logger: logger.With("component", "grpc")}
}

// NewGRPCServer 创建 gRPC 服务器并注册服务
func NewGRPCServer(svc *GRPCService, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ForceServerCodec(types.JSONCodec{}))
	server := grpc.NewServer(opts...)
	server.RegisterService(&bridgeServiceDesc, svc)
	return server
}

var bridgeServiceDesc = grpc.ServiceDesc{
	ServiceName: types.GRPCServiceName,
	HandlerType: (*grpcBridge)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Call", Handler: callHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Subscribe", Handler: subscribeHandler, ServerStreams: true},
	},
}

func callHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(types.CallRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(grpcBridge).call(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: types.GRPCMethodCall}
	h := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(grpcBridge).call(ctx, req.(*types.CallRequest))
	}
	return interceptor(ctx, req, info, h)
}

func subscribeHandler(srv interface{}, stream grpc.ServerStream) error {
	filter := new(types.EventFilter)
	if err := stream.RecvMsg(filter); err != nil {
		return err
	}
	return srv.(grpcBridge).subscribe(filter, stream)
}

// call 业务错误放入响应体，传输层错误才使用 gRPC status
func (s *GRPCService) call(ctx context.Context, req *types.CallRequest) (*types.CallResponse, error) {
	result, err := s.dispatcher.Dispatch(ctx, req.Method, req.Params)
	if err != nil {
		return &types.CallResponse{Error: types.AsBridgeError(err).ToProblemDetails()}, nil
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "marshal result: %v", err)
	}
	return &types.CallResponse{Result: raw}, nil
}

func (s *GRPCService) subscribe(filter *types.EventFilter, stream grpc.ServerStream) error {
	sub := s.hub.Subscribe(*filter)
	defer s.hub.Unsubscribe(sub.ID)

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub.Events():
			if !ok {
				if sub.Dropped() {
					return status.Error(codes.ResourceExhausted, "subscriber too slow")
				}
				return status.Error(codes.Unavailable, "subscription closed")
			}
			if err := stream.SendMsg(ev); err != nil {
				return err
			}
		}
	}
}
