package transport

import (
	"github.com/go-gl/mathgl/mgl32"

	"sentient-cities/backend/internal/core/domain/entity"
	"sentient-cities/backend/internal/core/domain/service"
)

// SimulationServiceName имя gRPC-сервиса симуляции
const SimulationServiceName = "simulation.Simulation"

// Полные имена методов сервиса симуляции
const (
	SimulationGetWorldState      = "/" + SimulationServiceName + "/GetWorldState"
	SimulationExecuteAgentAction = "/" + SimulationServiceName + "/ExecuteAgentAction"
	SimulationSpawnAgent         = "/" + SimulationServiceName + "/SpawnAgent"
	SimulationDespawnAgent       = "/" + SimulationServiceName + "/DespawnAgent"
)

type WorldStateRequest struct{}

// AgentActionRequest действие агента в формате транспорта
type AgentActionRequest struct {
	AgentID  string      `json:"agent_id"`
	Action   string      `json:"action"`
	Target   string      `json:"target,omitempty"`
	Position *mgl32.Vec3 `json:"position,omitempty"`
	Name     string      `json:"name,omitempty"`
	Item     string      `json:"item,omitempty"`
	Quantity uint32      `json:"quantity,omitempty"`
}

// ToActionRequest разбирает идентификатор агента и собирает запрос ядра
func (r AgentActionRequest) ToActionRequest() (service.ActionRequest, error) {
	id, err := entity.ParseAgentID(r.AgentID)
	if err != nil {
		return service.ActionRequest{}, err
	}
	return service.ActionRequest{
		AgentID:  id,
		Action:   service.ActionKind(r.Action),
		Target:   r.Target,
		Position: r.Position,
		Name:     r.Name,
		Item:     r.Item,
		Quantity: r.Quantity,
	}, nil
}

type AgentActionResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ActionResponse переводит итог действия в ответ транспорта
func ActionResponse(res service.ActionResult) AgentActionResponse {
	return AgentActionResponse{Success: res.Success, Code: res.Code, Message: res.Message}
}

type SpawnAgentRequest struct {
	AgentID  string     `json:"agent_id,omitempty"`
	Name     string     `json:"name"`
	Position mgl32.Vec3 `json:"position"`
	WithBody bool       `json:"with_body"`
}

type SpawnAgentResponse struct {
	AgentID string `json:"agent_id"`
}

type DespawnAgentRequest struct {
	AgentID string `json:"agent_id"`
}
