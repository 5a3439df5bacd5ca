package worldmanagement

import (
	"context"

	"github.com/go-gl/mathgl/mgl32"

	"sentient-cities/backend/internal/core/domain/entity"
	"sentient-cities/backend/internal/core/domain/service"
)

// WorldManagementPort операции над миром, доступные внешним контроллерам
type WorldManagementPort interface {
	// WorldState возвращает снимок мира
	WorldState(ctx context.Context) service.WorldState

	// ExecuteAction выполняет действие агента
	ExecuteAction(ctx context.Context, req service.ActionRequest) service.ActionResult

	// SpawnAgent добавляет агента
	SpawnAgent(ctx context.Context, req service.SpawnRequest) (entity.AgentID, error)

	// DespawnAgent удаляет агента вместе с его телом
	DespawnAgent(ctx context.Context, id entity.AgentID) error

	// Teleport переносит агента
	Teleport(ctx context.Context, id entity.AgentID, position mgl32.Vec3) error
}

// Stepper продвижение мира во времени, используется драйвером тиков
type Stepper interface {
	Step(ctx context.Context, deltaTime float32) error
}

var (
	_ WorldManagementPort = (*service.WorldService)(nil)
	_ Stepper             = (*service.WorldService)(nil)
)
