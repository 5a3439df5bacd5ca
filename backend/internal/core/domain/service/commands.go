package service

import (
	"context"

	"github.com/go-gl/mathgl/mgl32"

	"sentient-cities/backend/internal/core/domain/entity"
	"sentient-cities/backend/internal/core/port/out/physics"
)

type commandKind int

const (
	cmdCreateBody commandKind = iota
	cmdRemoveBody
	cmdTeleport
)

// physicsCommand отложенный физический эффект запроса
type physicsCommand struct {
	kind     commandKind
	agentID  entity.AgentID
	handle   physics.BodyHandle
	position mgl32.Vec3
}

func (s *WorldService) enqueue(cmd physicsCommand) {
	s.queueMu.Lock()
	s.queue = append(s.queue, cmd)
	s.queueMu.Unlock()
}

// PendingCommands количество команд, ожидающих следующего шага
func (s *WorldService) PendingCommands() int {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	return len(s.queue)
}

// drainCommands применяет накопленные команды в порядке поступления.
// Вызывается под stepMu.
func (s *WorldService) drainCommands(ctx context.Context) {
	s.queueMu.Lock()
	cmds := s.queue
	s.queue = nil
	s.queueMu.Unlock()

	for _, cmd := range cmds {
		switch cmd.kind {
		case cmdCreateBody:
			s.applyCreateBody(ctx, cmd)
		case cmdRemoveBody:
			if err := s.physics.RemoveBody(ctx, cmd.handle); err != nil {
				s.logger.Printf("[World] ОШИБКА: удаление тела %s агента %s: %v", cmd.handle, cmd.agentID, err)
			}
		case cmdTeleport:
			s.applyTeleport(ctx, cmd)
		}
	}
}

func (s *WorldService) applyCreateBody(ctx context.Context, cmd physicsCommand) {
	a, ok := s.agents.Get(cmd.agentID)
	if !ok {
		// агент удален раньше, чем получил тело
		return
	}
	h, err := s.physics.CreateBody(ctx, agentBodySpec(a.Position))
	if err != nil {
		s.logger.Printf("[World] ОШИБКА: создание тела агента %s: %v, агент остается без коллайдера", cmd.agentID, err)
		return
	}

	attached := false
	_, _ = s.agents.Update(cmd.agentID, func(a *entity.Agent) error {
		if a.Body != nil {
			return nil
		}
		a.Body = &h
		attached = true
		return nil
	})
	if !attached {
		// агент исчез или уже связан с другим телом: тело не должно зависнуть
		if err := s.physics.RemoveBody(ctx, h); err != nil {
			s.logger.Printf("[World] ОШИБКА: удаление лишнего тела %s: %v", h, err)
		}
	}
}

func (s *WorldService) applyTeleport(ctx context.Context, cmd physicsCommand) {
	a, ok := s.agents.Get(cmd.agentID)
	if !ok || a.Body == nil {
		return
	}
	t := physics.Transform{Position: cmd.position.Add(agentBodyOffset), Rotation: a.Rotation}
	if err := s.physics.SetTransform(ctx, *a.Body, t); err != nil {
		s.logger.Printf("[World] ОШИБКА: телепорт агента %s: %v", cmd.agentID, err)
	}
}
