package server

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/dynamicpb"
)

// ScheduleServiceServer is implemented by Dispatcher
type ScheduleServiceServer interface {
	Evaluate(ctx context.Context, req Request) (*Reply, error)
}

var _ ScheduleServiceServer = (*Dispatcher)(nil)

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ScheduleServiceServer)(nil),
	Methods: []grpc.MethodDesc{{
		MethodName: "Evaluate",
		Handler:    evaluateHandler,
	}},
	Streams:  []grpc.StreamDesc{},
	Metadata: protoFile,
}

func evaluateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := dynamicpb.NewMessage(requestDesc)
	if err := dec(in); err != nil {
		return nil, err
	}

	handler := func(ctx context.Context, req any) (any, error) {
		r, err := requestFromMessage(req.(*dynamicpb.Message))
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}

		reply, err := srv.(ScheduleServiceServer).Evaluate(ctx, r)
		if err != nil {
			return nil, err
		}
		return reply.message(), nil
	}

	if interceptor == nil {
		return handler(ctx, in)
	}

	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: EvaluateMethod}
	return interceptor(ctx, in, info, handler)
}

// Server serves the schedule and health services
type Server struct {
	grpc   *grpc.Server
	health *health.Server
	logger *zap.Logger
}

// New registers svc on a fresh gRPC server
func New(svc ScheduleServiceServer, logger *zap.Logger, opts ...grpc.ServerOption) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		health: health.NewServer(),
		logger: logger,
	}

	opts = append(opts, grpc.ChainUnaryInterceptor(s.logCall))
	s.grpc = grpc.NewServer(opts...)
	s.grpc.RegisterService(&serviceDesc, svc)
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	return s
}

// Serve accepts connections on lis until Stop or GracefulStop
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info("serving", zap.String("addr", lis.Addr().String()))
	return s.grpc.Serve(lis)
}

// GracefulStop marks the services as not serving and waits for pending
// calls to finish
func (s *Server) GracefulStop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

// Stop closes all connections immediately
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.Stop()
}

func (s *Server) logCall(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	s.logger.Debug("rpc",
		zap.String("method", info.FullMethod),
		zap.Stringer("code", status.Code(err)),
		zap.Duration("elapsed", time.Since(start)),
	)

	return resp, err
}
