package service

import (
	"context"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"sentient-cities/backend/internal/core/domain/entity"
)

// ActionKind вид действия агента
type ActionKind string

const (
	ActionMove             ActionKind = "move"
	ActionEat              ActionKind = "eat"
	ActionDrink            ActionKind = "drink"
	ActionSleep            ActionKind = "sleep"
	ActionEnterHouse       ActionKind = "enter_house"
	ActionLeaveHouse       ActionKind = "leave_house"
	ActionLockHouse        ActionKind = "lock_house"
	ActionUnlockHouse      ActionKind = "unlock_house"
	ActionRememberLocation ActionKind = "remember_location"
	ActionPickUp           ActionKind = "pick_up"
	ActionDrop             ActionKind = "drop"
)

// Дистанции взаимодействия по горизонтали
const (
	InteractReach = 3.0
	DrinkReach    = 2.0
	SleepRestore  = 30.0
)

// ActionRequest запрос на действие агента
type ActionRequest struct {
	AgentID  entity.AgentID
	Action   ActionKind
	Target   string      // id дома или ресурса, для eat/drink можно не указывать
	Position *mgl32.Vec3 // move, remember_location
	Name     string      // remember_location
	Item     string      // pick_up, drop
	Quantity uint32      // pick_up, drop
}

// ActionResult итог действия. Code - один из entity.Code*.
type ActionResult struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ExecuteAction выполняет действие агента и сообщает итог в журнал
func (s *WorldService) ExecuteAction(ctx context.Context, req ActionRequest) ActionResult {
	msg, err := s.execute(ctx, req)

	res := ActionResult{Success: err == nil, Code: entity.CodeFor(err), Message: msg}
	if err != nil {
		res.Message = err.Error()
		if res.Code == entity.CodeInternal {
			s.logger.Printf("[World] ОШИБКА: действие %s агента %s: %v", req.Action, req.AgentID, err)
		}
	}
	s.recordAction(req, res)
	return res
}

func (s *WorldService) execute(ctx context.Context, req ActionRequest) (string, error) {
	agent, err := s.Agent(req.AgentID)
	if err != nil {
		return "", err
	}

	switch req.Action {
	case ActionMove:
		if req.Position == nil {
			return "", fmt.Errorf("%w: move требует позицию", entity.ErrInvalidParams)
		}
		if err := s.Teleport(ctx, req.AgentID, *req.Position); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s перемещен в %v", agent.Name, *req.Position), nil

	case ActionEat:
		return s.eat(agent, req.Target)

	case ActionDrink:
		return s.drink(agent, req.Target)

	case ActionSleep:
		err := s.updateAgent(req.AgentID, func(a *entity.Agent) error {
			a.Needs.Replenish(entity.NeedSleep, SleepRestore)
			return nil
		})
		return fmt.Sprintf("%s поспал", agent.Name), err

	case ActionEnterHouse, ActionLeaveHouse, ActionLockHouse, ActionUnlockHouse:
		return s.houseAction(agent, req)

	case ActionRememberLocation:
		if req.Name == "" {
			return "", fmt.Errorf("%w: не указано имя места", entity.ErrInvalidParams)
		}
		pos := agent.Position
		if req.Position != nil {
			if !finiteVec(*req.Position) {
				return "", fmt.Errorf("%w: некорректная позиция", entity.ErrInvalidParams)
			}
			pos = *req.Position
		}
		err := s.updateAgent(req.AgentID, func(a *entity.Agent) error {
			a.KnownLocations[req.Name] = pos
			return nil
		})
		return fmt.Sprintf("%s запомнил %q", agent.Name, req.Name), err

	case ActionPickUp, ActionDrop:
		if req.Quantity == 0 {
			return "", fmt.Errorf("%w: количество должно быть положительным", entity.ErrInvalidParams)
		}
		delta := int64(req.Quantity)
		if req.Action == ActionDrop {
			delta = -delta
		}
		err := s.updateAgent(req.AgentID, func(a *entity.Agent) error {
			return a.Inventory.Add(req.Item, delta)
		})
		return fmt.Sprintf("%s: %s %+d", agent.Name, req.Item, delta), err

	default:
		return "", fmt.Errorf("%w: неизвестное действие %q", entity.ErrInvalidParams, req.Action)
	}
}

func (s *WorldService) eat(agent entity.Agent, target string) (string, error) {
	id, err := s.resolveResource(agent, target, entity.ResourcePlant)
	if err != nil {
		return "", err
	}

	var nutrition float32
	found, err := s.resources.Update(id, func(r *entity.Resource) error {
		p, ok := (*r).(*entity.Plant)
		if !ok {
			return fmt.Errorf("%w: ресурс %s не растение", entity.ErrInvalidParams, id)
		}
		if entity.HorizontalDistance(agent.Position, p.Pos) > InteractReach {
			return fmt.Errorf("%w: растение %s слишком далеко", entity.ErrPermissionDenied, id)
		}
		if err := p.Consume(); err != nil {
			return err
		}
		nutrition = p.Nutrition
		return nil
	})
	if !found {
		return "", fmt.Errorf("%w: ресурс %s", entity.ErrNotFound, id)
	}
	if err != nil {
		return "", err
	}

	err = s.updateAgent(agent.ID, func(a *entity.Agent) error {
		a.Needs.Replenish(entity.NeedFood, nutrition)
		return nil
	})
	if err != nil {
		// агент исчез между двумя обновлениями: единица возвращается растению
		_, _ = s.resources.Update(id, func(r *entity.Resource) error {
			if p, ok := (*r).(*entity.Plant); ok {
				p.Quantity++
			}
			return nil
		})
		return "", err
	}
	return fmt.Sprintf("%s съел растение", agent.Name), nil
}

func (s *WorldService) drink(agent entity.Agent, target string) (string, error) {
	id, err := s.resolveResource(agent, target, entity.ResourceLake)
	if err != nil {
		return "", err
	}
	r, err := s.Resource(id)
	if err != nil {
		return "", err
	}
	lake, ok := r.(*entity.Lake)
	if !ok {
		return "", fmt.Errorf("%w: ресурс %s не водоем", entity.ErrInvalidParams, id)
	}
	if !lake.Contains(agent.Position, DrinkReach) {
		return "", fmt.Errorf("%w: водоем %s слишком далеко", entity.ErrPermissionDenied, id)
	}

	err = s.updateAgent(agent.ID, func(a *entity.Agent) error {
		a.Needs.Thirst = entity.NeedMax
		return nil
	})
	return fmt.Sprintf("%s напился", agent.Name), err
}

func (s *WorldService) houseAction(agent entity.Agent, req ActionRequest) (string, error) {
	houseID, err := entity.ParseHouseID(req.Target)
	if err != nil {
		return "", err
	}
	house, err := s.House(houseID)
	if err != nil {
		return "", err
	}

	switch req.Action {
	case ActionEnterHouse:
		if entity.HorizontalDistance(agent.Position, house.Position) > InteractReach {
			return "", fmt.Errorf("%w: дом %s слишком далеко", entity.ErrPermissionDenied, houseID)
		}
		if house.Locked && !house.IsOwner(agent.ID) {
			return "", fmt.Errorf("%w: дом %s заперт", entity.ErrPermissionDenied, houseID)
		}
		err := s.updateAgent(agent.ID, func(a *entity.Agent) error {
			a.Needs.Shelter = true
			return nil
		})
		return fmt.Sprintf("%s вошел в дом", agent.Name), err

	case ActionLeaveHouse:
		err := s.updateAgent(agent.ID, func(a *entity.Agent) error {
			if !a.Needs.Shelter {
				return fmt.Errorf("%w: агент не в доме", entity.ErrInvalidParams)
			}
			a.Needs.Shelter = false
			return nil
		})
		return fmt.Sprintf("%s вышел из дома", agent.Name), err

	default:
		lock := req.Action == ActionLockHouse
		found, err := s.houses.Update(houseID, func(h *entity.House) error {
			if !h.IsOwner(agent.ID) {
				return fmt.Errorf("%w: %s не владелец дома %s", entity.ErrPermissionDenied, agent.Name, houseID)
			}
			h.Locked = lock
			return nil
		})
		if !found {
			return "", fmt.Errorf("%w: дом %s", entity.ErrNotFound, houseID)
		}
		if lock {
			return fmt.Sprintf("%s запер дом", agent.Name), err
		}
		return fmt.Sprintf("%s отпер дом", agent.Name), err
	}
}

// resolveResource разбирает target или ищет ближайший подходящий ресурс
func (s *WorldService) resolveResource(agent entity.Agent, target string, kind entity.ResourceKind) (entity.ResourceID, error) {
	if target != "" {
		return entity.ParseResourceID(target)
	}

	var (
		best     entity.ResourceID
		bestDist = float32(math.MaxFloat32)
		found    bool
	)
	s.resources.Range(func(id entity.ResourceID, r entity.Resource) bool {
		if r.Kind() != kind {
			return true
		}
		if p, ok := r.(*entity.Plant); ok && p.Quantity == 0 {
			return true
		}
		if d := entity.HorizontalDistance(agent.Position, r.Position()); d < bestDist {
			best, bestDist, found = id, d, true
		}
		return true
	})
	if !found {
		return entity.ResourceID{}, fmt.Errorf("%w: нет ресурса вида %s", entity.ErrNotFound, kind)
	}
	return best, nil
}

func (s *WorldService) updateAgent(id entity.AgentID, fn func(a *entity.Agent) error) error {
	found, err := s.agents.Update(id, fn)
	if !found {
		return fmt.Errorf("%w: агент %s", entity.ErrNotFound, id)
	}
	return err
}

