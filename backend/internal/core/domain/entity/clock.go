package entity

import "math"

// SecondsPerDay длительность суток симуляции
const SecondsPerDay = 86400.0

// SimulationClock накапливает время симуляции и вычисляет фазу суток.
// Время копится во float64, чтобы длинные серии float32-шагов не накапливали дрейф.
type SimulationClock struct {
	elapsed  float64
	dayPhase float32
	ticks    uint64
}

// Advance продвигает часы на deltaTime секунд
func (c *SimulationClock) Advance(deltaTime float32) {
	c.elapsed += float64(deltaTime)
	c.ticks++
	c.dayPhase = phaseOf(c.elapsed)
}

// Elapsed суммарное время симуляции в секундах
func (c SimulationClock) Elapsed() float64 { return c.elapsed }

// DayPhase доля текущих суток в [0,1)
func (c SimulationClock) DayPhase() float32 { return c.dayPhase }

// Ticks количество выполненных продвижений
func (c SimulationClock) Ticks() uint64 { return c.ticks }

// TimeOfDay возвращает час и минуту внутри текущих суток
func (c SimulationClock) TimeOfDay() (hour, minute int) {
	secs := math.Mod(c.elapsed, SecondsPerDay)
	if secs < 0 {
		secs += SecondsPerDay
	}
	total := int(secs / 60)
	return total / 60, total % 60
}

// IsNight ночь с 18:00 до 06:00
func (c SimulationClock) IsNight() bool {
	return c.dayPhase < 0.25 || c.dayPhase >= 0.75
}

func phaseOf(elapsed float64) float32 {
	p := math.Mod(elapsed/SecondsPerDay, 1.0)
	if p < 0 {
		p += 1.0
	}
	// float32-округление может дать ровно 1.0
	if f := float32(p); f < 1.0 {
		return f
	}
	return 0
}
