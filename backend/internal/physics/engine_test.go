package physics

import (
	"context"
	"io"
	"log"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	port "sentient-cities/backend/internal/core/port/out/physics"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(DefaultPhysicsConfig(), log.New(io.Discard, "", 0))
	require.NoError(t, err)
	return e
}

func addGround(t *testing.T, e *Engine) port.BodyHandle {
	t.Helper()
	h, err := e.CreateBody(context.Background(), port.BodySpec{
		Shape:     port.Cuboid(50, 0.1, 50),
		Transform: port.IdentityAt(mgl32.Vec3{0, -0.1, 0}),
		Fixed:     true,
	})
	require.NoError(t, err)
	return h
}

func TestEngine_BodyFallsAndRestsOnGround(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	addGround(t, e)

	ball, err := e.CreateBody(ctx, port.BodySpec{
		Shape:     port.Ball(0.5),
		Transform: port.IdentityAt(mgl32.Vec3{0, 5, 0}),
		Mass:      1,
	})
	require.NoError(t, err)

	require.NoError(t, e.Step(ctx, 0.1))
	tr, err := e.TransformOf(ctx, ball)
	require.NoError(t, err)
	assert.Less(t, tr.Position.Y(), float32(5), "тело должно падать под действием гравитации")

	for i := 0; i < 300; i++ {
		require.NoError(t, e.Step(ctx, 1.0/60))
	}
	tr, err = e.TransformOf(ctx, ball)
	require.NoError(t, err)
	// верх земли на y=0, центр шара должен лежать на высоте радиуса
	assert.InDelta(t, 0.5, tr.Position.Y(), 0.05)
	assert.InDelta(t, 0, tr.Position.X(), 1e-3)
}

func TestEngine_FixedBodyDoesNotMove(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	ground := addGround(t, e)

	for i := 0; i < 10; i++ {
		require.NoError(t, e.Step(ctx, 1.0/60))
	}
	tr, err := e.TransformOf(ctx, ground)
	require.NoError(t, err)
	assert.Equal(t, mgl32.Vec3{0, -0.1, 0}, tr.Position)
}

func TestEngine_StaleHandleRejected(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	h, err := e.CreateBody(ctx, port.BodySpec{Shape: port.Capsule(0.5, 0.3), Transform: port.IdentityAt(mgl32.Vec3{})})
	require.NoError(t, err)
	require.NoError(t, e.RemoveBody(ctx, h))

	_, err = e.TransformOf(ctx, h)
	assert.ErrorIs(t, err, port.ErrInvalidHandle)
	assert.ErrorIs(t, e.RemoveBody(ctx, h), port.ErrInvalidHandle)

	// слот переиспользуется, но старая ссылка остается недействительной
	h2, err := e.CreateBody(ctx, port.BodySpec{Shape: port.Ball(1), Transform: port.IdentityAt(mgl32.Vec3{})})
	require.NoError(t, err)
	assert.Equal(t, h.Index, h2.Index)
	assert.NotEqual(t, h.Generation, h2.Generation)

	_, err = e.TransformOf(ctx, h)
	assert.ErrorIs(t, err, port.ErrInvalidHandle)
	_, err = e.TransformOf(ctx, h2)
	assert.NoError(t, err)

	_, err = e.TransformOf(ctx, port.BodyHandle{Index: 42, Generation: 1})
	assert.ErrorIs(t, err, port.ErrInvalidHandle)

	n, err := e.BodyCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestEngine_SetTransformTeleportsAndStops(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	h, err := e.CreateBody(ctx, port.BodySpec{Shape: port.Ball(0.5), Transform: port.IdentityAt(mgl32.Vec3{0, 10, 0})})
	require.NoError(t, err)
	require.NoError(t, e.SetVelocity(h, mgl32.Vec3{5, 0, 0}))
	require.NoError(t, e.Step(ctx, 0.5))

	target := mgl32.Vec3{3, 20, -4}
	require.NoError(t, e.SetTransform(ctx, h, port.IdentityAt(target)))
	tr, err := e.TransformOf(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, target, tr.Position)

	// после телепорта горизонтальная скорость погашена
	require.NoError(t, e.Step(ctx, 0.1))
	tr, err = e.TransformOf(ctx, h)
	require.NoError(t, err)
	assert.InDelta(t, 3, tr.Position.X(), 1e-4)
}

func TestEngine_DynamicBodiesSeparate(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultPhysicsConfig()
	cfg.Gravity = mgl32.Vec3{}
	e, err := NewEngine(cfg, log.New(io.Discard, "", 0))
	require.NoError(t, err)

	a, err := e.CreateBody(ctx, port.BodySpec{Shape: port.Ball(1), Transform: port.IdentityAt(mgl32.Vec3{0, 0, 0}), Mass: 1})
	require.NoError(t, err)
	b, err := e.CreateBody(ctx, port.BodySpec{Shape: port.Ball(1), Transform: port.IdentityAt(mgl32.Vec3{1, 0, 0}), Mass: 1})
	require.NoError(t, err)

	require.NoError(t, e.Step(ctx, 1.0/60))
	ta, _ := e.TransformOf(ctx, a)
	tb, _ := e.TransformOf(ctx, b)
	assert.GreaterOrEqual(t, tb.Position.Sub(ta.Position).Len(), float32(2)-1e-4)
	// равные массы расходятся симметрично
	assert.InDelta(t, -tb.Position.X()+1, ta.Position.X(), 1e-4)
}

func TestEngine_InvalidInput(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	_, err := e.CreateBody(ctx, port.BodySpec{Shape: port.Ball(0)})
	assert.ErrorIs(t, err, ErrInvalidShape)
	_, err = e.CreateBody(ctx, port.BodySpec{Shape: port.Shape{Type: "torus"}})
	assert.ErrorIs(t, err, ErrInvalidShape)

	assert.ErrorIs(t, e.Step(ctx, -1), port.ErrStepFailed)
	assert.ErrorIs(t, e.Step(ctx, float32(math.NaN())), port.ErrStepFailed)
	assert.NoError(t, e.Step(ctx, 0))

	_, err = NewEngine(PhysicsConfig{}, nil)
	assert.Error(t, err)
}

func TestEngine_LargeStepIsClampedToMaxSubSteps(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	addGround(t, e)
	h, err := e.CreateBody(ctx, port.BodySpec{Shape: port.Ball(0.5), Transform: port.IdentityAt(mgl32.Vec3{0, 1, 0})})
	require.NoError(t, err)

	require.NoError(t, e.Step(ctx, 10))
	tr, err := e.TransformOf(ctx, h)
	require.NoError(t, err)
	assert.Greater(t, tr.Position.Y(), float32(0), "тело не должно проваливаться сквозь землю")
}
