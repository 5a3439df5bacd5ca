package game

import (
	"context"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentient-cities/backend/internal/core/domain/entity"
	"sentient-cities/backend/internal/core/domain/service"
	"sentient-cities/backend/internal/physics/physicstest"
)

func plantsOf(t *testing.T, w *service.WorldService) []service.ResourceView {
	t.Helper()
	var out []service.ResourceView
	for _, r := range w.WorldState(context.Background()).Resources {
		if r.Kind == entity.ResourcePlant {
			out = append(out, r)
		}
	}
	return out
}

func TestPlantGrowthSystem_SpawnsUpToLimit(t *testing.T) {
	ctx := context.Background()
	w := service.NewWorldService(physicstest.New(), quietLogger())
	require.NoError(t, w.Bootstrap(ctx))
	require.Len(t, plantsOf(t, w), 5)

	cfg := DefaultPlantGrowthConfig()
	cfg.MaxPlants = 7
	cfg.SpawnInterval = time.Second
	sys := NewPlantGrowthSystem(w, cfg, quietLogger())

	// полсекунды не хватает до интервала
	require.NoError(t, sys.Update(ctx, 1, 500*time.Millisecond))
	assert.Len(t, plantsOf(t, w), 5)

	for tick := uint64(2); tick < 20; tick++ {
		require.NoError(t, sys.Update(ctx, tick, 500*time.Millisecond))
	}
	plants := plantsOf(t, w)
	assert.Len(t, plants, 7)
	assert.Equal(t, 2, sys.Spawned())

	for _, p := range plants {
		d := p.Position.Len()
		if d < 14 || d > 16 {
			assert.GreaterOrEqual(t, d, cfg.MinRadius-1e-3)
			assert.LessOrEqual(t, d, cfg.MaxRadius+1e-3)
			assert.Equal(t, float32(0), p.Position.Y())
		}
	}
}

func TestPlantGrowthSystem_ReplacesDepletedPlants(t *testing.T) {
	ctx := context.Background()
	w := service.NewWorldService(physicstest.New(), quietLogger())
	require.NoError(t, w.Bootstrap(ctx))

	cfg := DefaultPlantGrowthConfig()
	cfg.MaxPlants = 5
	cfg.SpawnInterval = time.Second
	sys := NewPlantGrowthSystem(w, cfg, quietLogger())

	require.NoError(t, sys.Update(ctx, 1, time.Second))
	assert.Equal(t, 0, sys.Spawned(), "лимит уже достигнут")

	start := mgl32.Vec3{14, 0, 0}
	// первое растение стартового мира лежит в (15, 0, 0), съедаем его запас целиком
	require.True(t, w.ExecuteAction(ctx, service.ActionRequest{AgentID: entity.BobID, Action: service.ActionMove, Position: &start}).Success)
	for i := 0; i < 5; i++ {
		require.True(t, w.ExecuteAction(ctx, service.ActionRequest{AgentID: entity.BobID, Action: service.ActionEat}).Success)
	}

	require.NoError(t, sys.Update(ctx, 2, time.Second))
	assert.Equal(t, 1, sys.Spawned())
	assert.Len(t, plantsOf(t, w), 6)
}

func TestPlantGrowthSystem_Deterministic(t *testing.T) {
	cfg := DefaultPlantGrowthConfig()
	a := NewPlantGrowthSystem(nil, cfg, quietLogger())
	b := NewPlantGrowthSystem(nil, cfg, quietLogger())
	for i := 0; i < 10; i++ {
		assert.Equal(t, a.randomPosition(), b.randomPosition())
	}
}
