package physics

import (
	"context"
	"fmt"
	"log"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	portPhysics "sentient-cities/backend/internal/core/port/out/physics"
	"sentient-cities/backend/internal/transport"
)

// GRPCPhysicsAdapter адаптер для взаимодействия с физическим сервером через gRPC
type GRPCPhysicsAdapter struct {
	conn   *grpc.ClientConn
	logger *log.Logger
}

var _ portPhysics.PhysicsPort = (*GRPCPhysicsAdapter)(nil)

// NewGRPCPhysicsAdapter создает новый адаптер для взаимодействия с физическим сервером
func NewGRPCPhysicsAdapter(address string, logger *log.Logger, opts ...grpc.DialOption) (*GRPCPhysicsAdapter, error) {
	if logger == nil {
		logger = log.Default()
	}
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		transport.DialOption(),
	}, opts...)

	conn, err := grpc.NewClient(address, opts...)
	if err != nil {
		return nil, fmt.Errorf("не удалось подключиться к серверу физики: %w", err)
	}

	logger.Printf("[PhysicsClient] Подключено к серверу физики: %s", address)
	return &GRPCPhysicsAdapter{conn: conn, logger: logger}, nil
}

// CreateBody создает тело на сервере
func (a *GRPCPhysicsAdapter) CreateBody(ctx context.Context, spec portPhysics.BodySpec) (portPhysics.BodyHandle, error) {
	var resp transport.HandleMessage
	if err := a.invoke(ctx, transport.PhysicsCreateBody, &transport.CreateBodyRequest{Spec: spec}, &resp); err != nil {
		return portPhysics.BodyHandle{}, fmt.Errorf("ошибка при создании тела: %w", err)
	}
	return resp.Handle, nil
}

// RemoveBody удаляет тело на сервере
func (a *GRPCPhysicsAdapter) RemoveBody(ctx context.Context, handle portPhysics.BodyHandle) error {
	if err := a.invoke(ctx, transport.PhysicsRemoveBody, &transport.HandleMessage{Handle: handle}, &transport.Empty{}); err != nil {
		return fmt.Errorf("ошибка при удалении тела %s: %w", handle, err)
	}
	return nil
}

// SetTransform телепортирует тело
func (a *GRPCPhysicsAdapter) SetTransform(ctx context.Context, handle portPhysics.BodyHandle, t portPhysics.Transform) error {
	req := &transport.SetTransformRequest{Handle: handle, Transform: t}
	if err := a.invoke(ctx, transport.PhysicsSetTransform, req, &transport.Empty{}); err != nil {
		return fmt.Errorf("ошибка при перемещении тела %s: %w", handle, err)
	}
	return nil
}

// Step выполняет шаг симуляции на сервере
func (a *GRPCPhysicsAdapter) Step(ctx context.Context, deltaTime float32) error {
	if err := a.invoke(ctx, transport.PhysicsStep, &transport.StepRequest{DeltaTime: deltaTime}, &transport.Empty{}); err != nil {
		return fmt.Errorf("ошибка шага физики: %w", err)
	}
	return nil
}

// TransformOf получает трансформацию тела
func (a *GRPCPhysicsAdapter) TransformOf(ctx context.Context, handle portPhysics.BodyHandle) (portPhysics.Transform, error) {
	var resp transport.TransformResponse
	if err := a.invoke(ctx, transport.PhysicsTransformOf, &transport.HandleMessage{Handle: handle}, &resp); err != nil {
		return portPhysics.Transform{}, fmt.Errorf("ошибка при получении состояния тела %s: %w", handle, err)
	}
	return resp.Transform, nil
}

// BodyCount количество тел на сервере
func (a *GRPCPhysicsAdapter) BodyCount(ctx context.Context) (int, error) {
	var resp transport.BodyCountResponse
	if err := a.invoke(ctx, transport.PhysicsBodyCount, &transport.Empty{}, &resp); err != nil {
		return 0, fmt.Errorf("ошибка при подсчете тел: %w", err)
	}
	return resp.Count, nil
}

// Close закрывает соединение с сервером
func (a *GRPCPhysicsAdapter) Close() error {
	if err := a.conn.Close(); err != nil {
		return fmt.Errorf("ошибка при закрытии соединения с сервером физики: %w", err)
	}
	return nil
}

func (a *GRPCPhysicsAdapter) invoke(ctx context.Context, method string, req, resp any) error {
	return transport.PhysicsError(a.conn.Invoke(ctx, method, req, resp))
}
