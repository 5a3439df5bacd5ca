package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/go-gl/mathgl/mgl32"

	"sentient-cities/backend/internal/core/domain/entity"
)

// SpawnRequest параметры нового агента
type SpawnRequest struct {
	// ID пустой - будет сгенерирован
	ID       *entity.AgentID
	Name     string
	Position mgl32.Vec3
	// WithBody создает коллайдер на следующем шаге
	WithBody bool
}

// SpawnAgent добавляет агента. Тело, если нужно, создается в начале следующего шага.
func (s *WorldService) SpawnAgent(_ context.Context, req SpawnRequest) (entity.AgentID, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return entity.AgentID{}, fmt.Errorf("%w: пустое имя агента", entity.ErrInvalidParams)
	}
	if !finiteVec(req.Position) {
		return entity.AgentID{}, fmt.Errorf("%w: некорректная позиция %v", entity.ErrInvalidParams, req.Position)
	}

	id := entity.NewAgentID()
	if req.ID != nil {
		id = *req.ID
	}
	a := entity.NewAgent(id, name, req.Position)
	if err := s.agents.Insert(id, a); err != nil {
		return entity.AgentID{}, fmt.Errorf("%w: агент %s: %w", entity.ErrInvalidParams, id, err)
	}
	if req.WithBody {
		s.enqueue(physicsCommand{kind: cmdCreateBody, agentID: id})
	}

	s.logger.Printf("[World] Агент %s (%s) создан в %v", name, id, req.Position)
	return id, nil
}

// DespawnAgent удаляет агента. Его тело освобождается на следующем шаге,
// дома, которыми он владел, остаются со ссылкой на отсутствующего агента.
func (s *WorldService) DespawnAgent(_ context.Context, id entity.AgentID) error {
	a, ok := s.agents.Remove(id)
	if !ok {
		return fmt.Errorf("%w: агент %s", entity.ErrNotFound, id)
	}
	if a.Body != nil {
		s.enqueue(physicsCommand{kind: cmdRemoveBody, agentID: id, handle: *a.Body})
	}
	s.logger.Printf("[World] Агент %s (%s) удален", a.Name, id)
	return nil
}

// Agent возвращает копию агента
func (s *WorldService) Agent(id entity.AgentID) (entity.Agent, error) {
	a, ok := s.agents.Get(id)
	if !ok {
		return entity.Agent{}, fmt.Errorf("%w: агент %s", entity.ErrNotFound, id)
	}
	return a, nil
}

// House возвращает копию дома
func (s *WorldService) House(id entity.HouseID) (entity.House, error) {
	h, ok := s.houses.Get(id)
	if !ok {
		return entity.House{}, fmt.Errorf("%w: дом %s", entity.ErrNotFound, id)
	}
	return h, nil
}

// Resource возвращает копию ресурса
func (s *WorldService) Resource(id entity.ResourceID) (entity.Resource, error) {
	r, ok := s.resources.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: ресурс %s", entity.ErrNotFound, id)
	}
	return r, nil
}

// AddHouse добавляет дом
func (s *WorldService) AddHouse(h entity.House) error {
	if err := s.houses.Insert(h.ID, h); err != nil {
		return fmt.Errorf("%w: %w", entity.ErrInvalidParams, err)
	}
	return nil
}

// AddResource добавляет ресурс
func (s *WorldService) AddResource(r entity.Resource) error {
	if r == nil {
		return fmt.Errorf("%w: пустой ресурс", entity.ErrInvalidParams)
	}
	if err := s.resources.Insert(r.ID(), r); err != nil {
		return fmt.Errorf("%w: %w", entity.ErrInvalidParams, err)
	}
	return nil
}

// RemoveResource удаляет ресурс
func (s *WorldService) RemoveResource(id entity.ResourceID) error {
	if _, ok := s.resources.Remove(id); !ok {
		return fmt.Errorf("%w: ресурс %s", entity.ErrNotFound, id)
	}
	return nil
}

// Teleport переносит агента. Позиция меняется сразу, тело - в начале следующего шага.
func (s *WorldService) Teleport(_ context.Context, id entity.AgentID, position mgl32.Vec3) error {
	if !finiteVec(position) {
		return fmt.Errorf("%w: некорректная позиция %v", entity.ErrInvalidParams, position)
	}
	hasBody := false
	found, _ := s.agents.Update(id, func(a *entity.Agent) error {
		a.Position = position
		hasBody = a.Body != nil
		return nil
	})
	if !found {
		return fmt.Errorf("%w: агент %s", entity.ErrNotFound, id)
	}
	if hasBody {
		s.enqueue(physicsCommand{kind: cmdTeleport, agentID: id, position: position})
	}
	return nil
}

// SetHouseOwner меняет владельца дома, nil снимает владельца.
// Владелец должен существовать в момент назначения.
func (s *WorldService) SetHouseOwner(houseID entity.HouseID, owner *entity.AgentID) error {
	if owner != nil && !s.agents.Has(*owner) {
		return fmt.Errorf("%w: агент %s", entity.ErrNotFound, *owner)
	}
	found, _ := s.houses.Update(houseID, func(h *entity.House) error {
		if owner == nil {
			h.Owner = nil
			return nil
		}
		o := *owner
		h.Owner = &o
		return nil
	})
	if !found {
		return fmt.Errorf("%w: дом %s", entity.ErrNotFound, houseID)
	}
	return nil
}

// HouseOwner возвращает живого владельца дома.
// Ссылка на удаленного агента читается как отсутствие владельца.
func (s *WorldService) HouseOwner(houseID entity.HouseID) (entity.AgentID, bool, error) {
	h, ok := s.houses.Get(houseID)
	if !ok {
		return entity.AgentID{}, false, fmt.Errorf("%w: дом %s", entity.ErrNotFound, houseID)
	}
	if h.Owner == nil || !s.agents.Has(*h.Owner) {
		return entity.AgentID{}, false, nil
	}
	return *h.Owner, true, nil
}

// Counts количество агентов, домов и ресурсов
func (s *WorldService) Counts() (agents, houses, resources int) {
	return s.agents.Len(), s.houses.Len(), s.resources.Len()
}

func finiteVec(v mgl32.Vec3) bool {
	for _, c := range v {
		if math.IsNaN(float64(c)) || math.IsInf(float64(c), 0) {
			return false
		}
	}
	return true
}
