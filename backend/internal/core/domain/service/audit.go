package service

import (
	"time"

	"sentient-cities/backend/internal/core/domain/entity"
)

// AuditEntry запись о выполненном действии агента
type AuditEntry struct {
	Tick    uint64
	Elapsed float64
	AgentID entity.AgentID
	Action  ActionKind
	Target  string
	Code    string
	Message string
	At      time.Time
}

// AuditSink получатель журнала действий. Вызывается синхронно из обработчика
// запроса, поэтому реализация не должна блокироваться.
type AuditSink interface {
	RecordAction(entry AuditEntry)
}

func (s *WorldService) recordAction(req ActionRequest, res ActionResult) {
	s.auditMu.RLock()
	sink := s.audit
	s.auditMu.RUnlock()
	if sink == nil {
		return
	}

	clock := s.Clock()
	sink.RecordAction(AuditEntry{
		Tick:    clock.Ticks(),
		Elapsed: clock.Elapsed(),
		AgentID: req.AgentID,
		Action:  req.Action,
		Target:  req.Target,
		Code:    res.Code,
		Message: res.Message,
		At:      time.Now(),
	})
}
