package physics

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl32"

	port "sentient-cities/backend/internal/core/port/out/physics"
)

// ErrInvalidShape неверные параметры формы тела
var ErrInvalidShape = errors.New("неверная форма тела")

const (
	contactEpsilon = 1e-6
	// ниже этой скорости сближения отскок не применяется, тело просто ложится
	restingSpeed = 0.5
)

type body struct {
	shape    port.Shape
	fixed    bool
	invMass  float32
	radius   float32 // радиус ограничивающей сферы
	position mgl32.Vec3
	rotation mgl32.Quat
	linVel   mgl32.Vec3
	angVel   mgl32.Vec3
}

type slot struct {
	generation uint32
	body       *body
}

// Engine встроенный физический движок.
//
// Тела хранятся в арене со счетчиком поколений: ссылка на удаленное тело
// никогда не совпадет с новым телом в том же слоте. Динамические тела
// сталкиваются как ограничивающие сферы, неподвижные - как AABB.
type Engine struct {
	mu     sync.Mutex
	cfg    PhysicsConfig
	slots  []slot
	free   []uint32
	live   int
	steps  uint64
	logger *log.Logger
}

var _ port.PhysicsPort = (*Engine)(nil)

// NewEngine создает движок с заданной конфигурацией
func NewEngine(cfg PhysicsConfig, logger *log.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("конфигурация физики: %w", err)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{cfg: cfg, logger: logger}, nil
}

// Config возвращает текущую конфигурацию
func (e *Engine) Config() PhysicsConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// CreateBody создает тело
func (e *Engine) CreateBody(_ context.Context, spec port.BodySpec) (port.BodyHandle, error) {
	radius, err := boundingRadius(spec.Shape)
	if err != nil {
		return port.BodyHandle{}, err
	}

	b := &body{
		shape:    spec.Shape,
		fixed:    spec.Fixed,
		radius:   radius,
		position: spec.Transform.Position,
		rotation: normalizedOrIdent(spec.Transform.Rotation),
	}
	if !spec.Fixed {
		mass := spec.Mass
		if mass <= 0 {
			mass = 1
		}
		b.invMass = 1 / mass
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var index uint32
	if n := len(e.free); n > 0 {
		index = e.free[n-1]
		e.free = e.free[:n-1]
	} else {
		index = uint32(len(e.slots))
		e.slots = append(e.slots, slot{})
	}
	s := &e.slots[index]
	s.generation++
	s.body = b
	e.live++

	return port.BodyHandle{Index: index, Generation: s.generation}, nil
}

// RemoveBody удаляет тело, слот переиспользуется с новым поколением
func (e *Engine) RemoveBody(_ context.Context, handle port.BodyHandle) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.lookup(handle); err != nil {
		return err
	}
	s := &e.slots[handle.Index]
	s.body = nil
	s.generation++
	e.free = append(e.free, handle.Index)
	e.live--
	return nil
}

// SetTransform телепортирует тело и обнуляет его скорости
func (e *Engine) SetTransform(_ context.Context, handle port.BodyHandle, t port.Transform) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	b, err := e.lookup(handle)
	if err != nil {
		return err
	}
	b.position = t.Position
	b.rotation = normalizedOrIdent(t.Rotation)
	b.linVel = mgl32.Vec3{}
	b.angVel = mgl32.Vec3{}
	return nil
}

// SetVelocity задает линейную скорость тела
func (e *Engine) SetVelocity(handle port.BodyHandle, v mgl32.Vec3) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	b, err := e.lookup(handle)
	if err != nil {
		return err
	}
	if !b.fixed {
		b.linVel = v
	}
	return nil
}

// TransformOf возвращает трансформацию тела
func (e *Engine) TransformOf(_ context.Context, handle port.BodyHandle) (port.Transform, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	b, err := e.lookup(handle)
	if err != nil {
		return port.Transform{}, err
	}
	return port.Transform{Position: b.position, Rotation: b.rotation}, nil
}

// BodyCount количество живых тел
func (e *Engine) BodyCount(context.Context) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.live, nil
}

// Close ничего не освобождает, движок живет в памяти процесса
func (e *Engine) Close() error { return nil }

// Step продвигает симуляцию на deltaTime секунд фиксированными подшагами
func (e *Engine) Step(_ context.Context, deltaTime float32) error {
	if math.IsNaN(float64(deltaTime)) || math.IsInf(float64(deltaTime), 0) || deltaTime < 0 {
		return fmt.Errorf("%w: некорректный шаг %v", port.ErrStepFailed, deltaTime)
	}
	if deltaTime == 0 {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	subSteps := int(math.Ceil(float64(deltaTime) * float64(e.cfg.StepSimulationRate)))
	if subSteps < 1 {
		subSteps = 1
	}
	if subSteps > e.cfg.MaxSubSteps {
		e.logger.Printf("[Physics] ПРЕДУПРЕЖДЕНИЕ: шаг %.3fс требует %d подшагов, ограничено %d",
			deltaTime, subSteps, e.cfg.MaxSubSteps)
		subSteps = e.cfg.MaxSubSteps
	}
	h := deltaTime / float32(subSteps)

	dynamic := make([]*body, 0, e.live)
	static := make([]*body, 0, 4)
	for i := range e.slots {
		b := e.slots[i].body
		if b == nil {
			continue
		}
		if b.fixed {
			static = append(static, b)
		} else {
			dynamic = append(dynamic, b)
		}
	}

	for s := 0; s < subSteps; s++ {
		for _, b := range dynamic {
			e.integrate(b, h)
		}
		for i, a := range dynamic {
			for _, st := range static {
				e.resolveStatic(a, st)
			}
			for _, other := range dynamic[i+1:] {
				e.resolvePair(a, other)
			}
		}
	}
	e.steps++

	for _, b := range dynamic {
		if !finite(b.position) || !finite(b.linVel) || !finite(b.rotation.V) || !finiteScalar(b.rotation.W) {
			return fmt.Errorf("%w: нечисловое состояние тела после шага %d", port.ErrStepFailed, e.steps)
		}
	}
	return nil
}

func (e *Engine) lookup(handle port.BodyHandle) (*body, error) {
	if int(handle.Index) >= len(e.slots) {
		return nil, fmt.Errorf("%w: %s", port.ErrInvalidHandle, handle)
	}
	s := e.slots[handle.Index]
	if s.body == nil || s.generation != handle.Generation {
		return nil, fmt.Errorf("%w: %s", port.ErrInvalidHandle, handle)
	}
	return s.body, nil
}

func (e *Engine) integrate(b *body, h float32) {
	b.linVel = b.linVel.Add(e.cfg.Gravity.Mul(h))
	b.linVel = b.linVel.Mul(dampingFactor(e.cfg.LinearDamping, h))
	if speed := b.linVel.Len(); speed > e.cfg.MaxSpeed {
		b.linVel = b.linVel.Mul(e.cfg.MaxSpeed / speed)
	}
	b.position = b.position.Add(b.linVel.Mul(h))

	b.angVel = b.angVel.Mul(dampingFactor(e.cfg.AngularDamping, h))
	if b.angVel.Len() > contactEpsilon {
		// q' = q + h/2 * (0, w) * q
		spin := mgl32.Quat{W: 0, V: b.angVel}.Mul(b.rotation).Scale(0.5 * h)
		b.rotation = b.rotation.Add(spin).Normalize()
	}
}

// resolveStatic выталкивает динамическое тело из неподвижного AABB
func (e *Engine) resolveStatic(b, st *body) {
	minB, maxB := aabb(st)
	closest := mgl32.Vec3{
		clamp(b.position[0], minB[0], maxB[0]),
		clamp(b.position[1], minB[1], maxB[1]),
		clamp(b.position[2], minB[2], maxB[2]),
	}
	d := b.position.Sub(closest)
	dist := d.Len()
	if dist >= b.radius {
		return
	}

	var normal mgl32.Vec3
	var penetration float32
	if dist > contactEpsilon {
		normal = d.Mul(1 / dist)
		penetration = b.radius - dist
	} else {
		// центр внутри коробки: выталкиваем по оси с минимальным проникновением
		normal, penetration = insideNormal(b.position, minB, maxB)
		penetration += b.radius
	}

	b.position = b.position.Add(normal.Mul(penetration))
	e.applyContactVelocity(b, normal, e.cfg.TerrainRestitution)
}

func (e *Engine) applyContactVelocity(b *body, normal mgl32.Vec3, restitution float32) {
	vn := b.linVel.Dot(normal)
	if vn >= 0 {
		return
	}
	if -vn < restingSpeed {
		restitution = 0
	}
	deltaN := -vn * (1 + restitution)
	b.linVel = b.linVel.Add(normal.Mul(deltaN))

	// кулоновское трение: касательная скорость гасится пропорционально нормальному импульсу
	tangent := b.linVel.Sub(normal.Mul(b.linVel.Dot(normal)))
	if ts := tangent.Len(); ts > contactEpsilon {
		reduce := e.cfg.Friction * deltaN
		if reduce > ts {
			reduce = ts
		}
		b.linVel = b.linVel.Sub(tangent.Mul(reduce / ts))
	}
}

// resolvePair разводит два динамических тела
func (e *Engine) resolvePair(a, b *body) {
	d := b.position.Sub(a.position)
	dist := d.Len()
	sum := a.radius + b.radius
	if dist >= sum || dist <= contactEpsilon {
		return
	}
	normal := d.Mul(1 / dist)
	totalInv := a.invMass + b.invMass
	if totalInv == 0 {
		return
	}

	penetration := sum - dist
	a.position = a.position.Sub(normal.Mul(penetration * a.invMass / totalInv))
	b.position = b.position.Add(normal.Mul(penetration * b.invMass / totalInv))

	vn := b.linVel.Sub(a.linVel).Dot(normal)
	if vn >= 0 {
		return
	}
	restitution := e.cfg.Restitution
	if -vn < restingSpeed {
		restitution = 0
	}
	j := -(1 + restitution) * vn / totalInv
	a.linVel = a.linVel.Sub(normal.Mul(j * a.invMass))
	b.linVel = b.linVel.Add(normal.Mul(j * b.invMass))
}

func boundingRadius(s port.Shape) (float32, error) {
	switch s.Type {
	case port.ShapeBall:
		if s.Radius <= 0 {
			return 0, fmt.Errorf("%w: радиус шара %f", ErrInvalidShape, s.Radius)
		}
		return s.Radius, nil
	case port.ShapeCapsule:
		if s.Radius <= 0 || s.HalfHeight < 0 {
			return 0, fmt.Errorf("%w: капсула r=%f hh=%f", ErrInvalidShape, s.Radius, s.HalfHeight)
		}
		return s.HalfHeight + s.Radius, nil
	case port.ShapeCuboid:
		he := s.HalfExtents
		if he[0] <= 0 || he[1] <= 0 || he[2] <= 0 {
			return 0, fmt.Errorf("%w: полуразмеры %v", ErrInvalidShape, he)
		}
		return he.Len(), nil
	default:
		return 0, fmt.Errorf("%w: неизвестный тип %q", ErrInvalidShape, s.Type)
	}
}

func aabb(b *body) (mgl32.Vec3, mgl32.Vec3) {
	var half mgl32.Vec3
	switch b.shape.Type {
	case port.ShapeCuboid:
		half = b.shape.HalfExtents
	case port.ShapeCapsule:
		half = mgl32.Vec3{b.shape.Radius, b.shape.HalfHeight + b.shape.Radius, b.shape.Radius}
	default:
		half = mgl32.Vec3{b.radius, b.radius, b.radius}
	}
	return b.position.Sub(half), b.position.Add(half)
}

func insideNormal(p, minB, maxB mgl32.Vec3) (mgl32.Vec3, float32) {
	best := float32(math.MaxFloat32)
	var normal mgl32.Vec3
	for axis := 0; axis < 3; axis++ {
		if d := maxB[axis] - p[axis]; d < best {
			best = d
			normal = mgl32.Vec3{}
			normal[axis] = 1
		}
		if d := p[axis] - minB[axis]; d < best {
			best = d
			normal = mgl32.Vec3{}
			normal[axis] = -1
		}
	}
	return normal, best
}

func dampingFactor(damping, h float32) float32 {
	f := 1 - damping*h
	if f < 0 {
		return 0
	}
	return f
}

func normalizedOrIdent(q mgl32.Quat) mgl32.Quat {
	if q.Len() == 0 {
		return mgl32.QuatIdent()
	}
	return q.Normalize()
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func finite(v mgl32.Vec3) bool {
	return finiteScalar(v[0]) && finiteScalar(v[1]) && finiteScalar(v[2])
}

func finiteScalar(f float32) bool {
	return !math.IsNaN(float64(f)) && !math.IsInf(float64(f), 0)
}
