package game

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentient-cities/backend/internal/core/domain/entity"
	"sentient-cities/backend/internal/core/domain/service"
	"sentient-cities/backend/internal/physics/physicstest"
)

func quietLogger() *log.Logger { return log.New(io.Discard, "", 0) }

type fakeStepper struct {
	mu      sync.Mutex
	steps   []float32
	err     error
	lastCtx context.Context
}

func (f *fakeStepper) Step(ctx context.Context, dt float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastCtx = ctx
	if f.err != nil {
		return f.err
	}
	f.steps = append(f.steps, dt)
	return nil
}

func (f *fakeStepper) LastContext() context.Context {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastCtx
}

func (f *fakeStepper) Steps() []float32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]float32(nil), f.steps...)
}

type orderSystem struct {
	name     string
	priority int
	calls    *[]string
	err      error
	panics   bool
}

func (s *orderSystem) Update(_ context.Context, tick uint64, _ time.Duration) error {
	if s.panics {
		panic("сбой системы")
	}
	*s.calls = append(*s.calls, fmt.Sprintf("%s@%d", s.name, tick))
	return s.err
}
func (s *orderSystem) GetName() string  { return s.name }
func (s *orderSystem) GetPriority() int { return s.priority }

func TestTickDriver_ClampsDelta(t *testing.T) {
	st := &fakeStepper{}
	d := NewTickDriver(st, DriverConfig{TargetTPS: 20, MaxDelta: 100 * time.Millisecond}, quietLogger())
	ctx := context.Background()

	base := time.Unix(1000, 0)
	d.lastTickTime = base
	require.NoError(t, d.executeTick(ctx, base.Add(50*time.Millisecond)))
	require.NoError(t, d.executeTick(ctx, base.Add(2050*time.Millisecond)))
	// время не идет назад: тик пропускается
	require.NoError(t, d.executeTick(ctx, base.Add(2050*time.Millisecond)))

	steps := st.Steps()
	require.Len(t, steps, 2)
	assert.InDelta(t, 0.05, steps[0], 1e-6)
	assert.InDelta(t, 0.1, steps[1], 1e-6)
	assert.Equal(t, uint64(2), d.TickCount())
	assert.Equal(t, uint64(1), d.Stats().ClampedTicks)
}

func TestTickDriver_MaxDeltaNotBelowTick(t *testing.T) {
	d := NewTickDriver(&fakeStepper{}, DriverConfig{TargetTPS: 10, MaxDelta: time.Millisecond}, quietLogger())
	assert.Equal(t, 100*time.Millisecond, d.maxDelta)

	d = NewTickDriver(&fakeStepper{}, DriverConfig{}, quietLogger())
	assert.Equal(t, DefaultTargetTPS, d.Stats().TargetTPS)
	assert.Equal(t, DefaultMaxDelta, d.maxDelta)
}

func TestTickDriver_PauseSkipsSteps(t *testing.T) {
	st := &fakeStepper{}
	d := NewTickDriver(st, DriverConfig{TargetTPS: 20}, quietLogger())
	ctx := context.Background()
	base := time.Unix(1000, 0)
	d.lastTickTime = base

	d.Pause()
	assert.True(t, d.Stats().IsPaused)
	require.NoError(t, d.executeTick(ctx, base.Add(50*time.Millisecond)))
	require.NoError(t, d.executeTick(ctx, base.Add(100*time.Millisecond)))
	d.Resume()
	require.NoError(t, d.executeTick(ctx, base.Add(150*time.Millisecond)))

	steps := st.Steps()
	require.Len(t, steps, 1)
	assert.InDelta(t, 0.05, steps[0], 1e-6, "пауза не копит время")
}

func TestTickDriver_SystemsRunInPriorityOrder(t *testing.T) {
	d := NewTickDriver(&fakeStepper{}, DriverConfig{TargetTPS: 20}, quietLogger())
	var calls []string
	d.RegisterSystem(&orderSystem{name: "c", priority: 30, calls: &calls})
	d.RegisterSystem(&orderSystem{name: "a", priority: 10, calls: &calls, err: errors.New("ошибка")})
	d.RegisterSystem(&orderSystem{name: "boom", priority: 15, panics: true})
	d.RegisterSystem(&orderSystem{name: "b", priority: 20, calls: &calls})

	base := time.Unix(1000, 0)
	d.lastTickTime = base
	require.NoError(t, d.executeTick(context.Background(), base.Add(50*time.Millisecond)))

	assert.Equal(t, []string{"a@1", "b@1", "c@1"}, calls)
	stats := d.Stats().Systems
	assert.Equal(t, uint64(1), stats["a"].Errors)
	assert.Equal(t, uint64(1), stats["boom"].Errors, "паника системы не роняет цикл")
	assert.Equal(t, uint64(1), stats["c"].TotalExecutions)
}

func TestTickDriver_StepErrorWithoutBackendFailureContinues(t *testing.T) {
	st := &fakeStepper{err: fmt.Errorf("шаг: %w", entity.ErrInvalidState)}
	d := NewTickDriver(st, DriverConfig{TargetTPS: 20}, quietLogger())
	var calls []string
	d.RegisterSystem(&orderSystem{name: "a", priority: 1, calls: &calls})

	base := time.Unix(1000, 0)
	d.lastTickTime = base
	require.NoError(t, d.executeTick(context.Background(), base.Add(50*time.Millisecond)))
	assert.Empty(t, calls, "системы выполняются только после успешного шага")
	assert.Equal(t, uint64(0), d.TickCount())
}

func TestTickDriver_BackendFailureStopsLoop(t *testing.T) {
	st := &fakeStepper{err: fmt.Errorf("%w: %w", entity.ErrBackendFailure, errors.New("движок недоступен"))}
	d := NewTickDriver(st, DriverConfig{TargetTPS: 200}, quietLogger())

	require.NoError(t, d.Start(context.Background()))
	select {
	case <-d.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("цикл не остановился после отказа бэкенда")
	}
	assert.ErrorIs(t, d.Err(), entity.ErrBackendFailure)
	assert.False(t, d.Stats().IsRunning)

	// контекст цикла отменен, хотя Stop никто не вызывал
	loopCtx := st.LastContext()
	require.NotNil(t, loopCtx)
	assert.ErrorIs(t, loopCtx.Err(), context.Canceled)

	// Stop после самостоятельного выхода ничего не ждет
	d.Stop()
}

func TestTickDriver_StartStop(t *testing.T) {
	st := &fakeStepper{}
	d := NewTickDriver(st, DriverConfig{TargetTPS: 200}, quietLogger())

	select {
	case <-d.Done():
	default:
		t.Fatal("Done незапущенного драйвера должен быть закрыт")
	}

	require.NoError(t, d.Start(context.Background()))
	assert.ErrorIs(t, d.Start(context.Background()), ErrAlreadyRunning)
	require.Eventually(t, func() bool { return d.TickCount() >= 3 }, 5*time.Second, 5*time.Millisecond)

	d.Stop()
	<-d.Done()
	assert.NoError(t, d.Err())
	n := d.TickCount()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, d.TickCount(), "после Stop шаги не выполняются")
	d.Stop()

	// после остановки драйвер можно запустить снова
	require.NoError(t, d.Start(context.Background()))
	d.Stop()
}

func TestTickDriver_ContextCancelStopsLoop(t *testing.T) {
	d := NewTickDriver(&fakeStepper{}, DriverConfig{TargetTPS: 200}, quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, d.Start(ctx))
	cancel()
	select {
	case <-d.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("цикл не остановился после отмены контекста")
	}
	assert.NoError(t, d.Err())
}

func TestTickDriver_DrivesWorld(t *testing.T) {
	w := service.NewWorldService(physicstest.New(), quietLogger())
	require.NoError(t, w.Bootstrap(context.Background()))

	d := NewTickDriver(w, DriverConfig{TargetTPS: 100}, quietLogger())
	require.NoError(t, d.Start(context.Background()))
	require.Eventually(t, func() bool { return d.TickCount() >= 5 }, 5*time.Second, 5*time.Millisecond)
	d.Stop()

	clock := w.Clock()
	assert.Equal(t, d.TickCount(), clock.Ticks())
	assert.Greater(t, clock.Elapsed(), 0.0)

	alice, err := w.Agent(entity.AliceID)
	require.NoError(t, err)
	assert.Less(t, alice.Needs.Hunger, float32(75))
}
