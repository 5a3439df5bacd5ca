package game

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"sentient-cities/backend/internal/core/domain/entity"
	"sentient-cities/backend/internal/core/port/in/worldmanagement"
)

// ErrAlreadyRunning повторный запуск драйвера
var ErrAlreadyRunning = errors.New("драйвер тиков уже запущен")

const (
	DefaultTargetTPS = 20
	DefaultMaxDelta  = 250 * time.Millisecond
)

// TickSystem вспомогательная система, выполняемая после каждого успешного шага мира
type TickSystem interface {
	Update(ctx context.Context, tick uint64, deltaTime time.Duration) error
	GetName() string
	GetPriority() int // Приоритет выполнения (меньше = раньше)
}

// DriverConfig параметры драйвера тиков
type DriverConfig struct {
	TargetTPS int
	MaxDelta  time.Duration
}

// DriverStats статистика игрового цикла
type DriverStats struct {
	TargetTPS       int                      `json:"target_tps"`
	ActualTPS       float64                  `json:"actual_tps"`
	TickCount       uint64                   `json:"tick_count"`
	UptimeSeconds   float64                  `json:"uptime_seconds"`
	AverageTickTime time.Duration            `json:"average_tick_time"`
	MaxObservedTick time.Duration            `json:"max_observed_tick"`
	ClampedTicks    uint64                   `json:"clamped_ticks"`
	IsRunning       bool                     `json:"is_running"`
	IsPaused        bool                     `json:"is_paused"`
	Systems         map[string]SystemMetrics `json:"systems"`
}

// TickDriver единственный вызывающий World.Step. Тикает с целевой частотой,
// реальное время между тиками ограничивается MaxDelta.
type TickDriver struct {
	// Конфигурация
	targetTPS    int
	tickDuration time.Duration
	maxDelta     time.Duration
	maxTickTime  time.Duration

	world worldmanagement.Stepper

	// Системы
	systems      []TickSystem
	systemsMutex sync.RWMutex

	perfMonitor *PerformanceMonitor

	// Состояние
	stateMu   sync.Mutex
	isRunning bool
	startTime time.Time
	cancel    context.CancelFunc
	done      chan struct{}
	err       error

	isPaused     atomic.Bool
	tickCount    atomic.Uint64
	lastTickTime time.Time

	// Метрики
	metricsMu       sync.Mutex
	averageTickTime time.Duration
	maxObservedTick time.Duration
	clampedTicks    uint64

	logger           *log.Logger
	warningThreshold time.Duration
}

// NewTickDriver создает драйвер тиков для мира
func NewTickDriver(world worldmanagement.Stepper, cfg DriverConfig, logger *log.Logger) *TickDriver {
	if cfg.TargetTPS <= 0 {
		cfg.TargetTPS = DefaultTargetTPS
	}
	if cfg.MaxDelta <= 0 {
		cfg.MaxDelta = DefaultMaxDelta
	}
	if logger == nil {
		logger = log.Default()
	}

	tickDuration := time.Second / time.Duration(cfg.TargetTPS)
	if cfg.MaxDelta < tickDuration {
		cfg.MaxDelta = tickDuration
	}

	done := make(chan struct{})
	close(done)

	return &TickDriver{
		targetTPS:        cfg.TargetTPS,
		tickDuration:     tickDuration,
		maxDelta:         cfg.MaxDelta,
		maxTickTime:      tickDuration * 2,
		world:            world,
		perfMonitor:      NewPerformanceMonitor(50, tickDuration/4),
		done:             done,
		logger:           logger,
		warningThreshold: tickDuration / 2,
	}
}

// RegisterSystem добавляет систему в игровой цикл
func (td *TickDriver) RegisterSystem(system TickSystem) {
	td.systemsMutex.Lock()
	defer td.systemsMutex.Unlock()

	td.systems = append(td.systems, system)

	// Сортируем по приоритету (меньше = выше приоритет), вставка сохраняет порядок равных
	for i := len(td.systems) - 1; i > 0; i-- {
		if td.systems[i].GetPriority() < td.systems[i-1].GetPriority() {
			td.systems[i], td.systems[i-1] = td.systems[i-1], td.systems[i]
		} else {
			break
		}
	}

	td.perfMonitor.initSystemMetrics(system.GetName())

	td.logger.Printf("[TickDriver] Зарегистрирована система: %s (приоритет: %d)",
		system.GetName(), system.GetPriority())
}

// Start запускает игровой цикл. Цикл завершается при отмене ctx, вызове Stop
// или отказе физического бэкенда.
func (td *TickDriver) Start(ctx context.Context) error {
	td.stateMu.Lock()
	defer td.stateMu.Unlock()
	if td.isRunning {
		return ErrAlreadyRunning
	}

	loopCtx, cancel := context.WithCancel(ctx)
	td.isRunning = true
	td.err = nil
	td.cancel = cancel
	td.done = make(chan struct{})
	td.startTime = time.Now()
	td.lastTickTime = td.startTime

	td.logger.Printf("[TickDriver] Запуск игрового цикла: %d TPS (тик каждые %v, предел шага %v)",
		td.targetTPS, td.tickDuration, td.maxDelta)

	go td.gameLoop(loopCtx, td.done)
	return nil
}

// Stop останавливает цикл и ждет завершения текущего шага
func (td *TickDriver) Stop() {
	td.stateMu.Lock()
	cancel, done := td.cancel, td.done
	td.stateMu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Pause приостанавливает шаги мира, цикл продолжает работать
func (td *TickDriver) Pause() {
	if !td.isPaused.Swap(true) {
		td.logger.Printf("[TickDriver] Пауза (тик %d)", td.tickCount.Load())
	}
}

// Resume возобновляет шаги после паузы
func (td *TickDriver) Resume() {
	if td.isPaused.Swap(false) {
		td.logger.Printf("[TickDriver] Возобновление (тик %d)", td.tickCount.Load())
	}
}

// Done закрывается после выхода из игрового цикла
func (td *TickDriver) Done() <-chan struct{} {
	td.stateMu.Lock()
	defer td.stateMu.Unlock()
	return td.done
}

// Err ошибка, остановившая цикл, или nil
func (td *TickDriver) Err() error {
	td.stateMu.Lock()
	defer td.stateMu.Unlock()
	return td.err
}

func (td *TickDriver) gameLoop(ctx context.Context, done chan struct{}) {
	ticker := time.NewTicker(td.tickDuration)
	defer ticker.Stop()

	var exitErr error
	defer func() {
		td.stateMu.Lock()
		td.isRunning = false
		td.err = exitErr
		// при отказе бэкенда цикл выходит сам, контекст цикла освобождается здесь
		if td.cancel != nil {
			td.cancel()
			td.cancel = nil
		}
		td.stateMu.Unlock()
		td.logger.Printf("[TickDriver] Остановка игрового цикла (выполнено тиков: %d)", td.tickCount.Load())
		close(done)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case tickTime := <-ticker.C:
			if err := td.executeTick(ctx, tickTime); err != nil {
				exitErr = err
				return
			}
		}
	}
}

// executeTick выполняет один тик: шаг мира и затем вспомогательные системы
func (td *TickDriver) executeTick(ctx context.Context, tickTime time.Time) error {
	deltaTime := tickTime.Sub(td.lastTickTime)
	td.lastTickTime = tickTime

	if td.isPaused.Load() {
		return nil
	}
	if deltaTime <= 0 {
		return nil
	}
	if deltaTime > td.maxDelta {
		td.logger.Printf("[TickDriver] ПРЕДУПРЕЖДЕНИЕ: Большая задержка между тиками: %v, шаг ограничен до %v",
			deltaTime, td.maxDelta)
		td.metricsMu.Lock()
		td.clampedTicks++
		td.metricsMu.Unlock()
		deltaTime = td.maxDelta
	}

	tickStart := time.Now()
	if err := td.world.Step(ctx, float32(deltaTime.Seconds())); err != nil {
		if errors.Is(err, entity.ErrBackendFailure) {
			td.logger.Printf("[TickDriver] КРИТИЧЕСКАЯ ОШИБКА шага мира, цикл остановлен: %v", err)
			return err
		}
		td.logger.Printf("[TickDriver] Ошибка шага мира: %v", err)
		return nil
	}
	tick := td.tickCount.Add(1)

	td.executeAllSystems(ctx, tick, deltaTime)

	totalTickTime := time.Since(tickStart)
	td.updateTickMetrics(totalTickTime)
	td.checkPerformance(totalTickTime)
	return nil
}

// executeAllSystems выполняет все зарегистрированные системы
func (td *TickDriver) executeAllSystems(ctx context.Context, tick uint64, deltaTime time.Duration) {
	td.systemsMutex.RLock()
	systems := make([]TickSystem, len(td.systems))
	copy(systems, td.systems)
	td.systemsMutex.RUnlock()

	for _, system := range systems {
		td.executeSystem(ctx, system, tick, deltaTime)
	}
}

// executeSystem выполняет одну систему с замером времени
func (td *TickDriver) executeSystem(ctx context.Context, system TickSystem, tick uint64, deltaTime time.Duration) {
	systemStart := time.Now()
	systemName := system.GetName()

	defer func() {
		if r := recover(); r != nil {
			td.logger.Printf("[TickDriver] КРИТИЧЕСКАЯ ОШИБКА в системе %s: %v", systemName, r)
			td.perfMonitor.recordError(systemName)
		}
	}()

	err := system.Update(ctx, tick, deltaTime)
	td.perfMonitor.recordExecution(systemName, time.Since(systemStart))

	if err != nil {
		td.logger.Printf("[TickDriver] Ошибка в системе %s: %v", systemName, err)
		td.perfMonitor.recordError(systemName)
	}
}

// Stats возвращает статистику игрового цикла
func (td *TickDriver) Stats() DriverStats {
	td.stateMu.Lock()
	running, start := td.isRunning, td.startTime
	td.stateMu.Unlock()

	ticks := td.tickCount.Load()
	var uptime time.Duration
	if !start.IsZero() {
		uptime = time.Since(start)
	}
	var actualTPS float64
	if uptime > 0 {
		actualTPS = float64(ticks) / uptime.Seconds()
	}

	td.metricsMu.Lock()
	defer td.metricsMu.Unlock()
	return DriverStats{
		TargetTPS:       td.targetTPS,
		ActualTPS:       actualTPS,
		TickCount:       ticks,
		UptimeSeconds:   uptime.Seconds(),
		AverageTickTime: td.averageTickTime,
		MaxObservedTick: td.maxObservedTick,
		ClampedTicks:    td.clampedTicks,
		IsRunning:       running,
		IsPaused:        td.isPaused.Load(),
		Systems:         td.perfMonitor.SystemsStats(),
	}
}

// TickCount количество успешных шагов
func (td *TickDriver) TickCount() uint64 {
	return td.tickCount.Load()
}

func (td *TickDriver) updateTickMetrics(tickTime time.Duration) {
	td.metricsMu.Lock()
	defer td.metricsMu.Unlock()

	if tickTime > td.maxObservedTick {
		td.maxObservedTick = tickTime
	}

	// Простое скользящее среднее
	if td.averageTickTime == 0 {
		td.averageTickTime = tickTime
	} else {
		td.averageTickTime = (td.averageTickTime*9 + tickTime) / 10
	}
}

func (td *TickDriver) checkPerformance(tickTime time.Duration) {
	if tickTime > td.maxTickTime {
		td.logger.Printf("[TickDriver] КРИТИЧЕСКОЕ ПРЕДУПРЕЖДЕНИЕ: Тик превысил максимальное время! %v > %v (цель: %v)",
			tickTime, td.maxTickTime, td.tickDuration)
	} else if tickTime > td.warningThreshold {
		td.logger.Printf("[TickDriver] ПРЕДУПРЕЖДЕНИЕ: Медленный тик: %v (цель: %v)",
			tickTime, td.tickDuration)
	}
}
