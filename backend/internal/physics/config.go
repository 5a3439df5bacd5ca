package physics

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// PhysicsConfig содержит настройки встроенного физического движка
type PhysicsConfig struct {
	// Gravity - постоянное ускорение свободного падения
	Gravity mgl32.Vec3

	// Restitution - коэффициент восстановления при столкновении двух динамических тел
	Restitution float32

	// TerrainRestitution - коэффициент упругости для неподвижных тел (земля, стены)
	TerrainRestitution float32

	// Friction - трение, гасящее касательную скорость при контакте
	Friction float32

	// LinearDamping - затухание линейного движения (доля в секунду)
	LinearDamping float32

	// AngularDamping - затухание углового движения (доля в секунду)
	AngularDamping float32

	// MaxSpeed - максимальная скорость тела
	MaxSpeed float32

	// StepSimulationRate - частота внутренних подшагов, Гц
	StepSimulationRate int

	// MaxSubSteps - ограничение числа подшагов за один Step
	MaxSubSteps int
}

// DefaultPhysicsConfig возвращает конфигурацию по умолчанию
func DefaultPhysicsConfig() PhysicsConfig {
	return PhysicsConfig{
		Gravity:            mgl32.Vec3{0, -9.81, 0},
		Restitution:        0.3,
		TerrainRestitution: 0.1,
		Friction:           0.5,
		LinearDamping:      0.05,
		AngularDamping:     0.3,
		MaxSpeed:           150.0,
		StepSimulationRate: 120,
		MaxSubSteps:        240,
	}
}

// Validate проверяет конфигурацию
func (c PhysicsConfig) Validate() error {
	if c.StepSimulationRate <= 0 {
		return fmt.Errorf("step_simulation_rate должен быть положительным, получено %d", c.StepSimulationRate)
	}
	if c.MaxSubSteps <= 0 {
		return fmt.Errorf("max_sub_steps должен быть положительным, получено %d", c.MaxSubSteps)
	}
	if c.Restitution < 0 || c.Restitution > 1 || c.TerrainRestitution < 0 || c.TerrainRestitution > 1 {
		return fmt.Errorf("коэффициенты упругости должны лежать в [0,1]")
	}
	if c.Friction < 0 || c.Friction > 1 {
		return fmt.Errorf("трение должно лежать в [0,1], получено %f", c.Friction)
	}
	if c.MaxSpeed <= 0 {
		return fmt.Errorf("max_speed должен быть положительным, получено %f", c.MaxSpeed)
	}
	return nil
}
