package grpcsrv

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"sentient-cities/backend/internal/core/domain/entity"
	"sentient-cities/backend/internal/core/domain/service"
	"sentient-cities/backend/internal/core/port/in/worldmanagement"
	"sentient-cities/backend/internal/transport"
)

// SimulationServer сервис симуляции для внешних контроллеров
type SimulationServer struct {
	world worldmanagement.WorldManagementPort
}

// NewSimulationServer создает сервис поверх мира
func NewSimulationServer(world worldmanagement.WorldManagementPort) *SimulationServer {
	return &SimulationServer{world: world}
}

// Register регистрирует сервис симуляции на gRPC-сервере
func (s *SimulationServer) Register(srv *grpc.Server) {
	srv.RegisterService(&simulationServiceDesc, s)
}

func (s *SimulationServer) getWorldState(ctx context.Context, _ *transport.WorldStateRequest) (*service.WorldState, error) {
	ws := s.world.WorldState(ctx)
	return &ws, nil
}

// executeAgentAction всегда отвечает результатом действия, ошибки выражаются кодом
func (s *SimulationServer) executeAgentAction(ctx context.Context, req *transport.AgentActionRequest) (*transport.AgentActionResponse, error) {
	action, err := req.ToActionRequest()
	if err != nil {
		return &transport.AgentActionResponse{Success: false, Code: entity.CodeFor(err), Message: err.Error()}, nil
	}
	resp := transport.ActionResponse(s.world.ExecuteAction(ctx, action))
	return &resp, nil
}

func (s *SimulationServer) spawnAgent(ctx context.Context, req *transport.SpawnAgentRequest) (*transport.SpawnAgentResponse, error) {
	spawn := service.SpawnRequest{Name: req.Name, Position: req.Position, WithBody: req.WithBody}
	if req.AgentID != "" {
		id, err := entity.ParseAgentID(req.AgentID)
		if err != nil {
			return nil, statusFor(err)
		}
		spawn.ID = &id
	}
	id, err := s.world.SpawnAgent(ctx, spawn)
	if err != nil {
		return nil, statusFor(err)
	}
	return &transport.SpawnAgentResponse{AgentID: id.String()}, nil
}

func (s *SimulationServer) despawnAgent(ctx context.Context, req *transport.DespawnAgentRequest) (*transport.Empty, error) {
	id, err := entity.ParseAgentID(req.AgentID)
	if err != nil {
		return nil, statusFor(err)
	}
	if err := s.world.DespawnAgent(ctx, id); err != nil {
		return nil, statusFor(err)
	}
	return &transport.Empty{}, nil
}

// statusFor переводит класс ошибки ядра в код gRPC
func statusFor(err error) error {
	switch {
	case errors.Is(err, entity.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, entity.ErrInvalidParams):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, entity.ErrPermissionDenied):
		return status.Error(codes.PermissionDenied, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

var simulationServiceDesc = grpc.ServiceDesc{
	ServiceName: transport.SimulationServiceName,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetWorldState", Handler: unary((*SimulationServer).getWorldState, transport.SimulationGetWorldState)},
		{MethodName: "ExecuteAgentAction", Handler: unary((*SimulationServer).executeAgentAction, transport.SimulationExecuteAgentAction)},
		{MethodName: "SpawnAgent", Handler: unary((*SimulationServer).spawnAgent, transport.SimulationSpawnAgent)},
		{MethodName: "DespawnAgent", Handler: unary((*SimulationServer).despawnAgent, transport.SimulationDespawnAgent)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "simulation.json",
}
