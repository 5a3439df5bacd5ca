package game

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"sentient-cities/backend/internal/core/domain/service"
	"sentient-cities/backend/internal/persistence/snapshot"
)

// StateSource источник снимков мира
type StateSource interface {
	WorldState(ctx context.Context) service.WorldState
}

// Broadcaster рассылка состояния мира клиентам
type Broadcaster interface {
	BroadcastWorldState(ctx context.Context) int
}

// SnapshotRecorder индекс сохраненных снимков
type SnapshotRecorder interface {
	RecordSnapshot(tick uint64, path string, agents int)
}

// BroadcastSystem рассылает world_update подключенным клиентам
type BroadcastSystem struct {
	name        string
	priority    int
	broadcaster Broadcaster
	everyTicks  uint64
}

// NewBroadcastSystem создает систему рассылки. everyTicks 0 или 1 - каждый тик.
func NewBroadcastSystem(broadcaster Broadcaster, everyTicks uint64) *BroadcastSystem {
	if everyTicks == 0 {
		everyTicks = 1
	}
	return &BroadcastSystem{
		name:        "BroadcastSystem",
		priority:    10,
		broadcaster: broadcaster,
		everyTicks:  everyTicks,
	}
}

// Update рассылает снимок раз в everyTicks тиков
func (bs *BroadcastSystem) Update(ctx context.Context, tick uint64, _ time.Duration) error {
	if tick%bs.everyTicks != 0 {
		return nil
	}
	bs.broadcaster.BroadcastWorldState(ctx)
	return nil
}

func (bs *BroadcastSystem) GetName() string  { return bs.name }
func (bs *BroadcastSystem) GetPriority() int { return bs.priority }

// SnapshotSystem периодически сохраняет мир на диск
type SnapshotSystem struct {
	name       string
	priority   int
	source     StateSource
	dir        string
	everyTicks uint64
	recorder   SnapshotRecorder
	logger     *log.Logger

	lastPath string
}

// NewSnapshotSystem создает систему снимков. recorder может быть nil.
func NewSnapshotSystem(source StateSource, dir string, everyTicks uint64, recorder SnapshotRecorder, logger *log.Logger) *SnapshotSystem {
	if logger == nil {
		logger = log.Default()
	}
	return &SnapshotSystem{
		name:       "SnapshotSystem",
		priority:   20,
		source:     source,
		dir:        dir,
		everyTicks: everyTicks,
		recorder:   recorder,
		logger:     logger,
	}
}

// Update пишет снимок раз в everyTicks тиков
func (ss *SnapshotSystem) Update(ctx context.Context, tick uint64, _ time.Duration) error {
	if ss.everyTicks == 0 || tick%ss.everyTicks != 0 {
		return nil
	}
	state := ss.source.WorldState(ctx)
	path := filepath.Join(ss.dir, snapshot.FileName(state.Tick))
	if err := snapshot.Write(path, state); err != nil {
		return fmt.Errorf("снимок тика %d: %w", state.Tick, err)
	}
	ss.lastPath = path
	if ss.recorder != nil {
		ss.recorder.RecordSnapshot(state.Tick, path, len(state.Agents))
	}
	ss.logger.Printf("[SnapshotSystem] Снимок мира сохранен: %s (агентов: %d)", path, len(state.Agents))
	return nil
}

// LastPath путь последнего сохраненного снимка
func (ss *SnapshotSystem) LastPath() string { return ss.lastPath }

func (ss *SnapshotSystem) GetName() string  { return ss.name }
func (ss *SnapshotSystem) GetPriority() int { return ss.priority }

// MetricsSystem периодически пишет в лог сводку по миру и циклу
type MetricsSystem struct {
	name       string
	priority   int
	source     StateSource
	driver     *TickDriver
	everyTicks uint64
	logger     *log.Logger
}

// NewMetricsSystem создает систему сводок
func NewMetricsSystem(source StateSource, driver *TickDriver, everyTicks uint64, logger *log.Logger) *MetricsSystem {
	if everyTicks == 0 {
		everyTicks = 600 // раз в 30 секунд при 20 TPS
	}
	if logger == nil {
		logger = log.Default()
	}
	return &MetricsSystem{
		name:       "MetricsSystem",
		priority:   30,
		source:     source,
		driver:     driver,
		everyTicks: everyTicks,
		logger:     logger,
	}
}

// Update пишет сводку раз в everyTicks тиков
func (ms *MetricsSystem) Update(ctx context.Context, tick uint64, _ time.Duration) error {
	if tick%ms.everyTicks != 0 {
		return nil
	}
	state := ms.source.WorldState(ctx)
	summary := SummarizeNeeds(state)
	stats := ms.driver.Stats()

	ms.logger.Printf("[MetricsSystem] Тик %d, %02d:%02d: агентов %d (в критическом состоянии %d), "+
		"средние голод %.1f жажда %.1f энергия %.1f; TPS %.1f, средний тик %v",
		state.Tick, state.Hour, state.Minute, summary.Agents, summary.Critical,
		summary.Hunger, summary.Thirst, summary.Energy, stats.ActualTPS, stats.AverageTickTime)
	return nil
}

func (ms *MetricsSystem) GetName() string  { return ms.name }
func (ms *MetricsSystem) GetPriority() int { return ms.priority }

// NeedsSummary средние значения потребностей агентов
type NeedsSummary struct {
	Agents   int
	Critical int
	Hunger   float32
	Thirst   float32
	Energy   float32
}

// SummarizeNeeds усредняет потребности по всем агентам снимка
func SummarizeNeeds(state service.WorldState) NeedsSummary {
	s := NeedsSummary{Agents: len(state.Agents)}
	if s.Agents == 0 {
		return s
	}
	for _, a := range state.Agents {
		s.Hunger += a.Needs.Hunger
		s.Thirst += a.Needs.Thirst
		s.Energy += a.Needs.Energy
		if a.CriticalNeed != "" {
			s.Critical++
		}
	}
	n := float32(s.Agents)
	s.Hunger /= n
	s.Thirst /= n
	s.Energy /= n
	return s
}
