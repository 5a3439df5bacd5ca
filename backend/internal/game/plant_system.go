package game

import (
	"context"
	"fmt"
	"log"
	"math"
	"math/rand"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"sentient-cities/backend/internal/core/domain/entity"
)

// PlantWorld мир, в который система роста добавляет растения
type PlantWorld interface {
	StateSource
	AddResource(r entity.Resource) error
}

// PlantGrowthConfig параметры появления растений
type PlantGrowthConfig struct {
	MaxPlants     int           // Лимит растений с ненулевым запасом
	SpawnInterval time.Duration // Интервал появления в симуляционном времени
	MinRadius     float32       // Кольцо появления вокруг центра мира
	MaxRadius     float32
	Nutrition     float32
	Quantity      uint32
	Seed          int64
}

// DefaultPlantGrowthConfig параметры по умолчанию
func DefaultPlantGrowthConfig() PlantGrowthConfig {
	return PlantGrowthConfig{
		MaxPlants:     10,
		SpawnInterval: 30 * time.Second,
		MinRadius:     10,
		MaxRadius:     40,
		Nutrition:     20,
		Quantity:      5,
		Seed:          1,
	}
}

// PlantGrowthSystem восполняет съеденные растения: раз в SpawnInterval
// добавляет новое, пока живых растений меньше MaxPlants
type PlantGrowthSystem struct {
	name     string
	priority int
	world    PlantWorld
	cfg      PlantGrowthConfig
	rng      *rand.Rand
	logger   *log.Logger

	sinceSpawn time.Duration
	spawned    int
}

// NewPlantGrowthSystem создает систему роста растений
func NewPlantGrowthSystem(world PlantWorld, cfg PlantGrowthConfig, logger *log.Logger) *PlantGrowthSystem {
	if logger == nil {
		logger = log.Default()
	}
	if cfg.MaxRadius < cfg.MinRadius {
		cfg.MinRadius, cfg.MaxRadius = cfg.MaxRadius, cfg.MinRadius
	}
	return &PlantGrowthSystem{
		name:     "PlantGrowthSystem",
		priority: 25,
		world:    world,
		cfg:      cfg,
		rng:      rand.New(rand.NewSource(cfg.Seed)),
		logger:   logger,
	}
}

// Update копит симуляционное время и добавляет растение по истечении интервала
func (ps *PlantGrowthSystem) Update(ctx context.Context, _ uint64, deltaTime time.Duration) error {
	if ps.cfg.SpawnInterval <= 0 || ps.cfg.MaxPlants <= 0 {
		return nil
	}
	ps.sinceSpawn += deltaTime
	if ps.sinceSpawn < ps.cfg.SpawnInterval {
		return nil
	}
	ps.sinceSpawn = 0

	if ps.livePlants(ctx) >= ps.cfg.MaxPlants {
		return nil
	}

	plant := entity.NewPlant(entity.NewResourceID(), ps.randomPosition(), ps.cfg.Nutrition, ps.cfg.Quantity)
	if err := ps.world.AddResource(plant); err != nil {
		return fmt.Errorf("добавление растения: %w", err)
	}
	ps.spawned++

	pos := plant.Position()
	ps.logger.Printf("[PlantGrowthSystem] Выросло растение %s в (%.1f, %.1f, %.1f)",
		plant.ID(), pos.X(), pos.Y(), pos.Z())
	return nil
}

// Spawned количество выращенных растений
func (ps *PlantGrowthSystem) Spawned() int { return ps.spawned }

func (ps *PlantGrowthSystem) livePlants(ctx context.Context) int {
	n := 0
	for _, r := range ps.world.WorldState(ctx).Resources {
		if r.Kind == entity.ResourcePlant && r.Quantity != nil && *r.Quantity > 0 {
			n++
		}
	}
	return n
}

// randomPosition случайная точка в кольце на уровне земли
func (ps *PlantGrowthSystem) randomPosition() mgl32.Vec3 {
	angle := ps.rng.Float64() * 2 * math.Pi
	distance := float64(ps.cfg.MinRadius) + ps.rng.Float64()*float64(ps.cfg.MaxRadius-ps.cfg.MinRadius)
	return mgl32.Vec3{
		float32(math.Cos(angle) * distance),
		0,
		float32(math.Sin(angle) * distance),
	}
}

func (ps *PlantGrowthSystem) GetName() string  { return ps.name }
func (ps *PlantGrowthSystem) GetPriority() int { return ps.priority }
