package service

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl32"

	"sentient-cities/backend/internal/core/domain/entity"
	"sentient-cities/backend/internal/core/domain/store"
	"sentient-cities/backend/internal/core/port/out/physics"
)

// Параметры стартового мира
const (
	groundHalfX = 50.0
	groundHalfY = 0.1
	groundHalfZ = 50.0

	lakeRadius      = 5.0
	plantCount      = 5
	plantRingRadius = 15.0
	plantNutrition  = 20.0
	plantQuantity   = 5
)

// Коллайдер агента: вертикальная капсула, позиция агента - точка у ног
const (
	agentHalfHeight = 0.5
	agentRadius     = 0.3
	agentMass       = 70.0
)

// rotationNormalizeEvery период перенормализации поворотов агентов в тиках
const rotationNormalizeEvery = 60

var agentBodyOffset = mgl32.Vec3{0, agentHalfHeight + agentRadius, 0}

// WorldService владеет состоянием мира и выполняет его тик.
//
// Step вызывается одним драйвером тиков, запросы приходят параллельно.
// Физический движок вызывается только из Step и Bootstrap: запросы
// ставят физические эффекты в очередь, которая разбирается в начале шага.
type WorldService struct {
	physics physics.PhysicsPort
	logger  *log.Logger

	agents    *store.Store[entity.AgentID, entity.Agent]
	houses    *store.Store[entity.HouseID, entity.House]
	resources *store.Store[entity.ResourceID, entity.Resource]

	stepMu       sync.Mutex
	bootstrapped bool
	ground       *physics.BodyHandle

	clockMu sync.RWMutex
	clock   entity.SimulationClock

	queueMu sync.Mutex
	queue   []physicsCommand

	auditMu sync.RWMutex
	audit   AuditSink
}

// NewWorldService создает пустой мир поверх физического движка
func NewWorldService(physicsPort physics.PhysicsPort, logger *log.Logger) *WorldService {
	if logger == nil {
		logger = log.Default()
	}
	return &WorldService{
		physics:   physicsPort,
		logger:    logger,
		agents:    store.New[entity.AgentID, entity.Agent](store.DefaultShardCount),
		houses:    store.New[entity.HouseID, entity.House](store.DefaultShardCount),
		resources: store.New[entity.ResourceID, entity.Resource](store.DefaultShardCount),
	}
}

// Bootstrap создает стартовый мир: землю, два дома, озеро, пять растений и двух агентов.
// Сначала создаются все тела, затем сущности; при любой ошибке созданное
// откатывается и мир остается пустым. Повторный вызов после успеха возвращает ErrInvalidState.
func (s *WorldService) Bootstrap(ctx context.Context) error {
	s.stepMu.Lock()
	defer s.stepMu.Unlock()

	if s.bootstrapped || s.agents.Len() > 0 || s.houses.Len() > 0 || s.resources.Len() > 0 {
		return fmt.Errorf("%w: мир уже заполнен", entity.ErrInvalidState)
	}

	var bodies []physics.BodyHandle
	rollbackBodies := func() {
		// в обратном порядке: земля удаляется последней
		for i := len(bodies) - 1; i >= 0; i-- {
			if err := s.physics.RemoveBody(ctx, bodies[i]); err != nil {
				s.logger.Printf("[World] ОШИБКА: откат тела %s: %v", bodies[i], err)
			}
		}
	}

	// земля создается раньше любых динамических тел
	ground, err := s.physics.CreateBody(ctx, physics.BodySpec{
		Shape:     physics.Cuboid(groundHalfX, groundHalfY, groundHalfZ),
		Transform: physics.IdentityAt(mgl32.Vec3{0, -groundHalfY, 0}),
		Fixed:     true,
	})
	if err != nil {
		return fmt.Errorf("%w: создание земли: %w", entity.ErrBackendFailure, err)
	}
	bodies = append(bodies, ground)

	alice, bob := entity.AliceID, entity.BobID
	agents := []entity.Agent{
		entity.NewAgent(alice, "Alice", mgl32.Vec3{5, 0, 5}),
		entity.NewAgent(bob, "Bob", mgl32.Vec3{-5, 0, -5}),
	}
	for i := range agents {
		h, err := s.physics.CreateBody(ctx, agentBodySpec(agents[i].Position))
		if err != nil {
			rollbackBodies()
			return fmt.Errorf("%w: тело агента %s: %w", entity.ErrBackendFailure, agents[i].Name, err)
		}
		agents[i].Body = &h
		bodies = append(bodies, h)
	}

	houses := []entity.House{
		entity.NewHouse(entity.NewHouseID(), mgl32.Vec3{10, 0, 10}, "red", &alice),
		entity.NewHouse(entity.NewHouseID(), mgl32.Vec3{-10, 0, -10}, "blue", &bob),
	}
	resources := []entity.Resource{entity.NewLake(entity.NewResourceID(), mgl32.Vec3{0, 0, 0}, lakeRadius)}
	for i := 0; i < plantCount; i++ {
		angle := float64(i) * 2 * math.Pi / plantCount
		pos := mgl32.Vec3{
			float32(math.Cos(angle) * plantRingRadius),
			0,
			float32(math.Sin(angle) * plantRingRadius),
		}
		resources = append(resources, entity.NewPlant(entity.NewResourceID(), pos, plantNutrition, plantQuantity))
	}

	var (
		insertedHouses    []entity.HouseID
		insertedResources []entity.ResourceID
		insertedAgents    []entity.AgentID
	)
	rollback := func(cause error) error {
		for _, id := range insertedAgents {
			s.agents.Remove(id)
		}
		for _, id := range insertedResources {
			s.resources.Remove(id)
		}
		for _, id := range insertedHouses {
			s.houses.Remove(id)
		}
		rollbackBodies()
		return fmt.Errorf("%w: %w", entity.ErrInvalidState, cause)
	}

	for _, h := range houses {
		if err := s.houses.Insert(h.ID, h); err != nil {
			return rollback(err)
		}
		insertedHouses = append(insertedHouses, h.ID)
	}
	for _, r := range resources {
		if err := s.resources.Insert(r.ID(), r); err != nil {
			return rollback(err)
		}
		insertedResources = append(insertedResources, r.ID())
	}
	for _, a := range agents {
		if err := s.agents.Insert(a.ID, a); err != nil {
			return rollback(err)
		}
		insertedAgents = append(insertedAgents, a.ID)
	}

	s.ground = &ground
	s.bootstrapped = true
	s.logger.Printf("[World] Стартовый мир создан: агентов %d, домов %d, ресурсов %d",
		s.agents.Len(), s.houses.Len(), s.resources.Len())
	return nil
}

// Step продвигает мир на deltaTime секунд.
//
// Порядок фаз: очередь физических команд, шаг физики с синхронизацией
// трансформаций агентов, часы, потребности. Ошибка физики возвращается как
// ErrBackendFailure, часы при этом не продвигаются.
func (s *WorldService) Step(ctx context.Context, deltaTime float32) error {
	if math.IsNaN(float64(deltaTime)) || math.IsInf(float64(deltaTime), 0) || deltaTime < 0 {
		return fmt.Errorf("%w: некорректный шаг времени %v", entity.ErrInvalidState, deltaTime)
	}

	s.stepMu.Lock()
	defer s.stepMu.Unlock()

	s.drainCommands(ctx)

	if err := s.physics.Step(ctx, deltaTime); err != nil {
		return fmt.Errorf("%w: %w", entity.ErrBackendFailure, err)
	}

	s.clockMu.RLock()
	tick := s.clock.Ticks() + 1
	s.clockMu.RUnlock()

	if err := s.syncTransforms(ctx, tick%rotationNormalizeEvery == 0); err != nil {
		return err
	}

	s.clockMu.Lock()
	s.clock.Advance(deltaTime)
	s.clockMu.Unlock()

	s.agents.UpdateAll(func(_ entity.AgentID, a *entity.Agent) {
		a.UpdateNeeds(deltaTime)
	})
	return nil
}

// syncTransforms переносит положения тел после шага в агентов.
// Движок опрашивается вне блокировок хранилища.
func (s *WorldService) syncTransforms(ctx context.Context, normalize bool) error {
	type linked struct {
		id     entity.AgentID
		handle physics.BodyHandle
	}
	var bodies []linked
	s.agents.Range(func(id entity.AgentID, a entity.Agent) bool {
		if a.Body != nil {
			bodies = append(bodies, linked{id: id, handle: *a.Body})
		}
		return true
	})

	for _, b := range bodies {
		t, err := s.physics.TransformOf(ctx, b.handle)
		if err != nil {
			return fmt.Errorf("%w: трансформация агента %s (%s): %w", entity.ErrBackendFailure, b.id, b.handle, err)
		}
		_, _ = s.agents.Update(b.id, func(a *entity.Agent) error {
			// тело могли заменить или отвязать, пока шел опрос
			if a.Body == nil || *a.Body != b.handle {
				return nil
			}
			a.Position = t.Position.Sub(agentBodyOffset)
			a.Rotation = t.Rotation
			return nil
		})
	}

	if normalize {
		s.agents.UpdateAll(func(_ entity.AgentID, a *entity.Agent) {
			a.NormalizeRotation()
		})
	}
	return nil
}

// Clock возвращает копию часов симуляции
func (s *WorldService) Clock() entity.SimulationClock {
	s.clockMu.RLock()
	defer s.clockMu.RUnlock()
	return s.clock
}

// SetAuditSink задает получателя журнала действий, nil отключает журнал
func (s *WorldService) SetAuditSink(sink AuditSink) {
	s.auditMu.Lock()
	s.audit = sink
	s.auditMu.Unlock()
}

// BodyCount количество тел в движке, включая землю.
// Значение читается между шагами.
func (s *WorldService) BodyCount(ctx context.Context) (int, error) {
	s.stepMu.Lock()
	defer s.stepMu.Unlock()
	return s.physics.BodyCount(ctx)
}

func agentBodySpec(position mgl32.Vec3) physics.BodySpec {
	return physics.BodySpec{
		Shape:     physics.Capsule(agentHalfHeight, agentRadius),
		Transform: physics.IdentityAt(position.Add(agentBodyOffset)),
		Mass:      agentMass,
	}
}
