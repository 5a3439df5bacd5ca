package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"gopkg.in/yaml.v3"

	"sentient-cities/backend/internal/physics"
)

// Режимы физического бэкенда
const (
	PhysicsModeLocal  = "local"
	PhysicsModeRemote = "remote"
)

// Config конфигурация сервера симуляции
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Tick        TickConfig        `yaml:"tick"`
	Physics     PhysicsSection    `yaml:"physics"`
	Persistence PersistenceConfig `yaml:"persistence"`
	World       WorldConfig       `yaml:"world"`
}

type ServerConfig struct {
	WSAddr              string `yaml:"ws_addr"`
	GRPCAddr            string `yaml:"grpc_addr"`
	BroadcastEveryTicks uint64 `yaml:"broadcast_every_ticks"`
}

type TickConfig struct {
	RateHz            int           `yaml:"rate_hz"`
	MaxDelta          time.Duration `yaml:"max_delta"`
	MetricsEveryTicks uint64        `yaml:"metrics_every_ticks"`
}

// PhysicsSection выбор бэкенда и параметры встроенного движка
type PhysicsSection struct {
	Mode       string `yaml:"mode"`
	Address    string `yaml:"address"`     // адрес удаленного сервера физики
	ListenAddr string `yaml:"listen_addr"` // адрес, который слушает physics-server

	Gravity            [3]float32 `yaml:"gravity"`
	Restitution        float32    `yaml:"restitution"`
	TerrainRestitution float32    `yaml:"terrain_restitution"`
	Friction           float32    `yaml:"friction"`
	LinearDamping      float32    `yaml:"linear_damping"`
	AngularDamping     float32    `yaml:"angular_damping"`
	MaxSpeed           float32    `yaml:"max_speed"`
	StepRate           int        `yaml:"step_rate"`
	MaxSubSteps        int        `yaml:"max_sub_steps"`
}

type PersistenceConfig struct {
	SnapshotDir        string `yaml:"snapshot_dir"`
	SnapshotEveryTicks uint64 `yaml:"snapshot_every_ticks"` // 0 - снимки выключены
	DBPath             string `yaml:"db_path"`              // пусто - индекс выключен
}

type WorldConfig struct {
	Bootstrap   bool              `yaml:"bootstrap"`
	PlantGrowth PlantGrowthConfig `yaml:"plant_growth"`
}

type PlantGrowthConfig struct {
	Enabled       bool          `yaml:"enabled"`
	MaxPlants     int           `yaml:"max_plants"`
	SpawnInterval time.Duration `yaml:"spawn_interval"`
	Seed          int64         `yaml:"seed"`
}

// Default конфигурация по умолчанию
func Default() Config {
	p := physics.DefaultPhysicsConfig()
	return Config{
		Server: ServerConfig{
			WSAddr:              ":8080",
			GRPCAddr:            ":50051",
			BroadcastEveryTicks: 1,
		},
		Tick: TickConfig{
			RateHz:            20,
			MaxDelta:          250 * time.Millisecond,
			MetricsEveryTicks: 600,
		},
		Physics: PhysicsSection{
			Mode:               PhysicsModeLocal,
			Address:            "localhost:50052",
			ListenAddr:         ":50052",
			Gravity:            [3]float32(p.Gravity),
			Restitution:        p.Restitution,
			TerrainRestitution: p.TerrainRestitution,
			Friction:           p.Friction,
			LinearDamping:      p.LinearDamping,
			AngularDamping:     p.AngularDamping,
			MaxSpeed:           p.MaxSpeed,
			StepRate:           p.StepSimulationRate,
			MaxSubSteps:        p.MaxSubSteps,
		},
		Persistence: PersistenceConfig{
			SnapshotDir:        "data/snapshots",
			SnapshotEveryTicks: 0,
			DBPath:             "",
		},
		World: WorldConfig{
			Bootstrap: true,
			PlantGrowth: PlantGrowthConfig{
				Enabled:       true,
				MaxPlants:     10,
				SpawnInterval: 30 * time.Second,
				Seed:          1,
			},
		},
	}
}

// Load читает YAML поверх значений по умолчанию. Пустой путь - только умолчания.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := Parse(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse накладывает YAML на cfg и проверяет результат. Неизвестные ключи - ошибка.
func Parse(raw []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("разбор конфигурации: %w", err)
	}
	return cfg.Validate()
}

// Validate проверяет согласованность настроек
func (c Config) Validate() error {
	switch c.Physics.Mode {
	case PhysicsModeLocal:
	case PhysicsModeRemote:
		if c.Physics.Address == "" {
			return fmt.Errorf("physics.address обязателен в режиме %s", PhysicsModeRemote)
		}
	default:
		return fmt.Errorf("physics.mode: неизвестный режим %q", c.Physics.Mode)
	}
	if c.Tick.RateHz <= 0 {
		return fmt.Errorf("tick.rate_hz должен быть положительным, получено %d", c.Tick.RateHz)
	}
	if c.Tick.MaxDelta <= 0 {
		return fmt.Errorf("tick.max_delta должен быть положительным, получено %v", c.Tick.MaxDelta)
	}
	if c.Persistence.SnapshotEveryTicks > 0 && c.Persistence.SnapshotDir == "" {
		return fmt.Errorf("persistence.snapshot_dir обязателен при включенных снимках")
	}
	if err := c.PhysicsConfig().Validate(); err != nil {
		return fmt.Errorf("physics: %w", err)
	}
	return nil
}

// PhysicsConfig параметры встроенного движка
func (c Config) PhysicsConfig() physics.PhysicsConfig {
	p := c.Physics
	return physics.PhysicsConfig{
		Gravity:            mgl32.Vec3(p.Gravity),
		Restitution:        p.Restitution,
		TerrainRestitution: p.TerrainRestitution,
		Friction:           p.Friction,
		LinearDamping:      p.LinearDamping,
		AngularDamping:     p.AngularDamping,
		MaxSpeed:           p.MaxSpeed,
		StepSimulationRate: p.StepRate,
		MaxSubSteps:        p.MaxSubSteps,
	}
}
