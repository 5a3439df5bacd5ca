// Package physicstest содержит детерминированную заглушку физического порта для тестов.
package physicstest

import (
	"context"
	"fmt"
	"sync"

	port "sentient-cities/backend/internal/core/port/out/physics"
)

// Stub хранит трансформации тел и не применяет никаких сил.
// Шаг только считает вызовы; FailNextStep заставляет следующий шаг вернуть ошибку.
type Stub struct {
	mu         sync.Mutex
	bodies     map[uint32]stubBody
	next       uint32
	generation uint32
	steps      int
	stepTime   float64
	failSteps  int
	failCreate int // номер вызова CreateBody, который завершится ошибкой; 0 - не падать
	creates    int
	created    []port.BodySpec
}

type stubBody struct {
	generation uint32
	spec       port.BodySpec
	transform  port.Transform
}

var _ port.PhysicsPort = (*Stub)(nil)

// New создает пустую заглушку
func New() *Stub {
	return &Stub{bodies: make(map[uint32]stubBody)}
}

func (s *Stub) CreateBody(_ context.Context, spec port.BodySpec) (port.BodyHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.creates++
	if s.failCreate > 0 && s.creates == s.failCreate {
		s.failCreate = 0
		return port.BodyHandle{}, fmt.Errorf("заглушка: отказ создания тела #%d", s.creates)
	}

	s.generation++
	h := port.BodyHandle{Index: s.next, Generation: s.generation}
	s.next++
	s.bodies[h.Index] = stubBody{generation: h.Generation, spec: spec, transform: spec.Transform}
	s.created = append(s.created, spec)
	return h, nil
}

func (s *Stub) RemoveBody(_ context.Context, h port.BodyHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.lookup(h); err != nil {
		return err
	}
	delete(s.bodies, h.Index)
	return nil
}

func (s *Stub) SetTransform(_ context.Context, h port.BodyHandle, t port.Transform) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.lookup(h)
	if err != nil {
		return err
	}
	b.transform = t
	s.bodies[h.Index] = b
	return nil
}

func (s *Stub) Step(_ context.Context, deltaTime float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failSteps > 0 {
		s.failSteps--
		return fmt.Errorf("%w: заглушка настроена на отказ", port.ErrStepFailed)
	}
	s.steps++
	s.stepTime += float64(deltaTime)
	return nil
}

func (s *Stub) TransformOf(_ context.Context, h port.BodyHandle) (port.Transform, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.lookup(h)
	if err != nil {
		return port.Transform{}, err
	}
	return b.transform, nil
}

func (s *Stub) BodyCount(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bodies), nil
}

func (s *Stub) Close() error { return nil }

// FailNextSteps заставляет следующие n шагов завершиться ошибкой
func (s *Stub) FailNextSteps(n int) {
	s.mu.Lock()
	s.failSteps = n
	s.mu.Unlock()
}

// FailCreateAt заставляет n-й, считая от этого момента, вызов CreateBody вернуть ошибку
func (s *Stub) FailCreateAt(n int) {
	s.mu.Lock()
	s.creates = 0
	s.failCreate = n
	s.mu.Unlock()
}

// Steps количество успешных шагов
func (s *Stub) Steps() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.steps
}

// StepTime суммарное время успешных шагов
func (s *Stub) StepTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stepTime
}

// Created описания всех созданных тел в порядке создания
func (s *Stub) Created() []port.BodySpec {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]port.BodySpec(nil), s.created...)
}

// Live проверяет, что ссылка указывает на живое тело
func (s *Stub) Live(h port.BodyHandle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.lookup(h)
	return err == nil
}

func (s *Stub) lookup(h port.BodyHandle) (stubBody, error) {
	b, ok := s.bodies[h.Index]
	if !ok || b.generation != h.Generation {
		return stubBody{}, fmt.Errorf("%w: %s", port.ErrInvalidHandle, h)
	}
	return b, nil
}
