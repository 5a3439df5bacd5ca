package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimulationClock_HalfDay(t *testing.T) {
	var c SimulationClock
	c.Advance(43200)

	assert.InDelta(t, 0.5, c.DayPhase(), 1e-6)
	assert.Equal(t, 43200.0, c.Elapsed())
	h, m := c.TimeOfDay()
	assert.Equal(t, 12, h)
	assert.Equal(t, 0, m)
	assert.False(t, c.IsNight())
}

func TestSimulationClock_FullDayReturnsToStartPhase(t *testing.T) {
	var c SimulationClock
	c.Advance(3600 * 5)
	start := c.DayPhase()

	c.Advance(86400)
	assert.InDelta(t, start, c.DayPhase(), 1e-6)

	var zero SimulationClock
	zero.Advance(86400)
	assert.Equal(t, float32(0), zero.DayPhase())
}

// Много мелких float32-шагов не должны накапливать заметный дрейф.
func TestSimulationClock_NoLongRunDrift(t *testing.T) {
	var c SimulationClock
	const dt = float32(0.1)
	for i := 0; i < 216000; i++ {
		c.Advance(dt)
	}
	assert.InDelta(t, 21600.0, c.Elapsed(), 0.05)
	assert.InDelta(t, 0.25, c.DayPhase(), 1e-5)
	assert.Equal(t, uint64(216000), c.Ticks())
}

func TestSimulationClock_PhaseAlwaysInRange(t *testing.T) {
	var c SimulationClock
	for _, dt := range []float32{0.1, 86399.9, 0.1, 12345, 86400 * 3, 0} {
		c.Advance(dt)
		assert.GreaterOrEqual(t, c.DayPhase(), float32(0))
		assert.Less(t, c.DayPhase(), float32(1))
	}
}

func TestSimulationClock_Night(t *testing.T) {
	var c SimulationClock
	assert.True(t, c.IsNight())
	c.Advance(8 * 3600)
	assert.False(t, c.IsNight())
	c.Advance(12 * 3600)
	assert.True(t, c.IsNight())
}

// Часы отдаются наружу копией, чтение работает прямо на возвращенном значении.
func TestSimulationClock_ReadableFromReturnedCopy(t *testing.T) {
	var c SimulationClock
	c.Advance(64800)
	snapshot := func() SimulationClock { return c }

	assert.Equal(t, 64800.0, snapshot().Elapsed())
	assert.InDelta(t, 0.75, snapshot().DayPhase(), 1e-6)
	assert.Equal(t, uint64(1), snapshot().Ticks())
	assert.True(t, snapshot().IsNight())
	h, m := snapshot().TimeOfDay()
	assert.Equal(t, 18, h)
	assert.Equal(t, 0, m)
}
