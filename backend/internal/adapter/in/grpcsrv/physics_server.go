// Package grpcsrv публикует ядро симуляции и физический движок через gRPC.
// Сообщения кодируются JSON-кодеком из пакета transport.
package grpcsrv

import (
	"context"
	"log"

	"google.golang.org/grpc"

	"sentient-cities/backend/internal/core/port/out/physics"
	"sentient-cities/backend/internal/transport"
)

// PhysicsServer обслуживает любой PhysicsPort по gRPC
type PhysicsServer struct {
	engine physics.PhysicsPort
	logger *log.Logger
}

// NewPhysicsServer создает сервер поверх движка
func NewPhysicsServer(engine physics.PhysicsPort, logger *log.Logger) *PhysicsServer {
	if logger == nil {
		logger = log.Default()
	}
	return &PhysicsServer{engine: engine, logger: logger}
}

// Register регистрирует сервис физики на gRPC-сервере
func (s *PhysicsServer) Register(srv *grpc.Server) {
	srv.RegisterService(&physicsServiceDesc, s)
}

func (s *PhysicsServer) createBody(ctx context.Context, req *transport.CreateBodyRequest) (*transport.HandleMessage, error) {
	h, err := s.engine.CreateBody(ctx, req.Spec)
	if err != nil {
		return nil, transport.PhysicsStatus(err)
	}
	return &transport.HandleMessage{Handle: h}, nil
}

func (s *PhysicsServer) removeBody(ctx context.Context, req *transport.HandleMessage) (*transport.Empty, error) {
	if err := s.engine.RemoveBody(ctx, req.Handle); err != nil {
		return nil, transport.PhysicsStatus(err)
	}
	return &transport.Empty{}, nil
}

func (s *PhysicsServer) setTransform(ctx context.Context, req *transport.SetTransformRequest) (*transport.Empty, error) {
	if err := s.engine.SetTransform(ctx, req.Handle, req.Transform); err != nil {
		return nil, transport.PhysicsStatus(err)
	}
	return &transport.Empty{}, nil
}

func (s *PhysicsServer) step(ctx context.Context, req *transport.StepRequest) (*transport.Empty, error) {
	if err := s.engine.Step(ctx, req.DeltaTime); err != nil {
		s.logger.Printf("[PhysicsServer] ОШИБКА: шаг %.4f: %v", req.DeltaTime, err)
		return nil, transport.PhysicsStatus(err)
	}
	return &transport.Empty{}, nil
}

func (s *PhysicsServer) transformOf(ctx context.Context, req *transport.HandleMessage) (*transport.TransformResponse, error) {
	t, err := s.engine.TransformOf(ctx, req.Handle)
	if err != nil {
		return nil, transport.PhysicsStatus(err)
	}
	return &transport.TransformResponse{Transform: t}, nil
}

func (s *PhysicsServer) bodyCount(ctx context.Context, _ *transport.Empty) (*transport.BodyCountResponse, error) {
	n, err := s.engine.BodyCount(ctx)
	if err != nil {
		return nil, transport.PhysicsStatus(err)
	}
	return &transport.BodyCountResponse{Count: n}, nil
}

var physicsServiceDesc = grpc.ServiceDesc{
	ServiceName: transport.PhysicsServiceName,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateBody", Handler: unary((*PhysicsServer).createBody, transport.PhysicsCreateBody)},
		{MethodName: "RemoveBody", Handler: unary((*PhysicsServer).removeBody, transport.PhysicsRemoveBody)},
		{MethodName: "SetTransform", Handler: unary((*PhysicsServer).setTransform, transport.PhysicsSetTransform)},
		{MethodName: "Step", Handler: unary((*PhysicsServer).step, transport.PhysicsStep)},
		{MethodName: "TransformOf", Handler: unary((*PhysicsServer).transformOf, transport.PhysicsTransformOf)},
		{MethodName: "BodyCount", Handler: unary((*PhysicsServer).bodyCount, transport.PhysicsBodyCount)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "physics.json",
}

// unary собирает обработчик gRPC из типизированного метода сервера
func unary[S any, Req any, Resp any](method func(S, context.Context, *Req) (*Resp, error), fullMethod string) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return method(srv.(S), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return method(srv.(S), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}
