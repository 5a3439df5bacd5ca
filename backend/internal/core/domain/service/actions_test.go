package service

import (
	"context"
	"sync"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentient-cities/backend/internal/core/domain/entity"
)

type recordingSink struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (r *recordingSink) RecordAction(e AuditEntry) {
	r.mu.Lock()
	r.entries = append(r.entries, e)
	r.mu.Unlock()
}

func vec(x, y, z float32) *mgl32.Vec3 {
	v := mgl32.Vec3{x, y, z}
	return &v
}

func TestExecuteAction_UnknownAgentAndAction(t *testing.T) {
	w, _ := newBootstrapped(t)
	ctx := context.Background()

	res := w.ExecuteAction(ctx, ActionRequest{AgentID: entity.NewAgentID(), Action: ActionSleep})
	assert.False(t, res.Success)
	assert.Equal(t, entity.CodeNotFound, res.Code)

	res = w.ExecuteAction(ctx, ActionRequest{AgentID: entity.AliceID, Action: "fly"})
	assert.Equal(t, entity.CodeInvalidParam, res.Code)

	res = w.ExecuteAction(ctx, ActionRequest{AgentID: entity.AliceID, Action: ActionMove})
	assert.Equal(t, entity.CodeInvalidParam, res.Code)
}

func TestExecuteAction_EatDepletesPlant(t *testing.T) {
	w, _ := newBootstrapped(t)
	ctx := context.Background()

	plant := entity.NewPlant(entity.NewResourceID(), mgl32.Vec3{30, 0, 30}, 20, 1)
	require.NoError(t, w.AddResource(plant))
	target := plant.ID().String()

	res := w.ExecuteAction(ctx, ActionRequest{AgentID: entity.AliceID, Action: ActionEat, Target: target})
	assert.Equal(t, entity.CodeNotPermitted, res.Code, "растение вне досягаемости")

	res = w.ExecuteAction(ctx, ActionRequest{AgentID: entity.AliceID, Action: ActionMove, Position: vec(29, 0, 30)})
	require.True(t, res.Success, res.Message)

	res = w.ExecuteAction(ctx, ActionRequest{AgentID: entity.AliceID, Action: ActionEat, Target: target})
	require.True(t, res.Success, res.Message)
	assert.Equal(t, entity.CodeOK, res.Code)

	alice, err := w.Agent(entity.AliceID)
	require.NoError(t, err)
	assert.Equal(t, float32(95), alice.Needs.Hunger)

	// растение с нулевым запасом остается в мире, но есть его нельзя
	res = w.ExecuteAction(ctx, ActionRequest{AgentID: entity.AliceID, Action: ActionEat, Target: target})
	assert.Equal(t, entity.CodeNotPermitted, res.Code)

	r, err := w.Resource(plant.ID())
	require.NoError(t, err)
	assert.Equal(t, uint32(0), r.(*entity.Plant).Quantity)

	alice, err = w.Agent(entity.AliceID)
	require.NoError(t, err)
	assert.Equal(t, float32(95), alice.Needs.Hunger)
}

func TestEat_AgentDespawnedMidActionKeepsPlant(t *testing.T) {
	w, _ := newBootstrapped(t)
	ctx := context.Background()

	plant := entity.NewPlant(entity.NewResourceID(), mgl32.Vec3{5, 0, 6}, 20, 3)
	require.NoError(t, w.AddResource(plant))

	// снимок агента взят до удаления, как в обработчике, который уже прочитал агента
	alice, err := w.Agent(entity.AliceID)
	require.NoError(t, err)
	require.NoError(t, w.DespawnAgent(ctx, entity.AliceID))

	_, err = w.eat(alice, plant.ID().String())
	require.ErrorIs(t, err, entity.ErrNotFound)

	r, err := w.Resource(plant.ID())
	require.NoError(t, err)
	assert.Equal(t, uint32(3), r.(*entity.Plant).Quantity)
}

func TestExecuteAction_EatNearestPlant(t *testing.T) {
	w, _ := newBootstrapped(t)
	ctx := context.Background()

	// первое растение стартового мира лежит в (15, 0, 0)
	require.True(t, w.ExecuteAction(ctx, ActionRequest{AgentID: entity.BobID, Action: ActionMove, Position: vec(14, 0, 0)}).Success)
	res := w.ExecuteAction(ctx, ActionRequest{AgentID: entity.BobID, Action: ActionEat})
	require.True(t, res.Success, res.Message)

	var total uint32
	for _, r := range w.WorldState(ctx).Resources {
		if r.Quantity != nil {
			total += *r.Quantity
		}
	}
	assert.Equal(t, uint32(24), total)
}

func TestExecuteAction_Drink(t *testing.T) {
	w, _ := newBootstrapped(t)
	ctx := context.Background()

	// (5,0,5) в 7.07 от центра озера радиуса 5: дальше, чем 5+2
	res := w.ExecuteAction(ctx, ActionRequest{AgentID: entity.AliceID, Action: ActionDrink})
	assert.Equal(t, entity.CodeNotPermitted, res.Code)

	require.True(t, w.ExecuteAction(ctx, ActionRequest{AgentID: entity.AliceID, Action: ActionMove, Position: vec(4, 0, 4)}).Success)
	res = w.ExecuteAction(ctx, ActionRequest{AgentID: entity.AliceID, Action: ActionDrink})
	require.True(t, res.Success, res.Message)

	alice, err := w.Agent(entity.AliceID)
	require.NoError(t, err)
	assert.Equal(t, float32(100), alice.Needs.Thirst)
}

func TestExecuteAction_SleepClamps(t *testing.T) {
	w, _ := newBootstrapped(t)
	ctx := context.Background()

	require.True(t, w.ExecuteAction(ctx, ActionRequest{AgentID: entity.AliceID, Action: ActionSleep}).Success)
	alice, err := w.Agent(entity.AliceID)
	require.NoError(t, err)
	assert.Equal(t, float32(100), alice.Needs.Energy)
}

func TestExecuteAction_HouseAccess(t *testing.T) {
	w, _ := newBootstrapped(t)
	ctx := context.Background()
	blue := houseByColor(t, w, "blue").ID

	res := w.ExecuteAction(ctx, ActionRequest{AgentID: entity.AliceID, Action: ActionLockHouse, Target: blue})
	assert.Equal(t, entity.CodeNotPermitted, res.Code, "запереть может только владелец")

	res = w.ExecuteAction(ctx, ActionRequest{AgentID: entity.BobID, Action: ActionLockHouse, Target: blue})
	require.True(t, res.Success, res.Message)
	assert.True(t, houseByColor(t, w, "blue").Locked)

	require.True(t, w.ExecuteAction(ctx, ActionRequest{AgentID: entity.AliceID, Action: ActionMove, Position: vec(-9, 0, -9)}).Success)
	res = w.ExecuteAction(ctx, ActionRequest{AgentID: entity.AliceID, Action: ActionEnterHouse, Target: blue})
	assert.Equal(t, entity.CodeNotPermitted, res.Code)

	res = w.ExecuteAction(ctx, ActionRequest{AgentID: entity.BobID, Action: ActionEnterHouse, Target: blue})
	assert.Equal(t, entity.CodeNotPermitted, res.Code, "боб слишком далеко от дома")

	require.True(t, w.ExecuteAction(ctx, ActionRequest{AgentID: entity.BobID, Action: ActionMove, Position: vec(-10, 0, -9)}).Success)
	res = w.ExecuteAction(ctx, ActionRequest{AgentID: entity.BobID, Action: ActionEnterHouse, Target: blue})
	require.True(t, res.Success, res.Message)
	bob, err := w.Agent(entity.BobID)
	require.NoError(t, err)
	assert.True(t, bob.Needs.Shelter)

	require.True(t, w.ExecuteAction(ctx, ActionRequest{AgentID: entity.BobID, Action: ActionLeaveHouse, Target: blue}).Success)
	res = w.ExecuteAction(ctx, ActionRequest{AgentID: entity.BobID, Action: ActionLeaveHouse, Target: blue})
	assert.Equal(t, entity.CodeInvalidParam, res.Code)

	require.True(t, w.ExecuteAction(ctx, ActionRequest{AgentID: entity.BobID, Action: ActionUnlockHouse, Target: blue}).Success)
	res = w.ExecuteAction(ctx, ActionRequest{AgentID: entity.AliceID, Action: ActionEnterHouse, Target: blue})
	assert.True(t, res.Success, res.Message)

	res = w.ExecuteAction(ctx, ActionRequest{AgentID: entity.AliceID, Action: ActionEnterHouse, Target: "не-uuid"})
	assert.Equal(t, entity.CodeInvalidParam, res.Code)
	res = w.ExecuteAction(ctx, ActionRequest{AgentID: entity.AliceID, Action: ActionEnterHouse, Target: entity.NewHouseID().String()})
	assert.Equal(t, entity.CodeNotFound, res.Code)
}

func TestExecuteAction_InventoryAndMemory(t *testing.T) {
	w, _ := newBootstrapped(t)
	ctx := context.Background()

	require.True(t, w.ExecuteAction(ctx, ActionRequest{AgentID: entity.AliceID, Action: ActionPickUp, Item: "berry", Quantity: 3}).Success)
	res := w.ExecuteAction(ctx, ActionRequest{AgentID: entity.AliceID, Action: ActionDrop, Item: "berry", Quantity: 4})
	assert.Equal(t, entity.CodeInvalidParam, res.Code)
	require.True(t, w.ExecuteAction(ctx, ActionRequest{AgentID: entity.AliceID, Action: ActionDrop, Item: "berry", Quantity: 2}).Success)

	res = w.ExecuteAction(ctx, ActionRequest{AgentID: entity.AliceID, Action: ActionRememberLocation, Name: "home", Position: vec(10, 0, 10)})
	require.True(t, res.Success, res.Message)
	res = w.ExecuteAction(ctx, ActionRequest{AgentID: entity.AliceID, Action: ActionRememberLocation, Name: "here"})
	require.True(t, res.Success, res.Message)
	res = w.ExecuteAction(ctx, ActionRequest{AgentID: entity.AliceID, Action: ActionRememberLocation})
	assert.Equal(t, entity.CodeInvalidParam, res.Code)

	alice, err := w.Agent(entity.AliceID)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), alice.Inventory.Count("berry"))
	assert.Equal(t, mgl32.Vec3{10, 0, 10}, alice.KnownLocations["home"])
	assert.Equal(t, mgl32.Vec3{5, 0, 5}, alice.KnownLocations["here"])
}

func TestExecuteAction_ReportsToAuditSink(t *testing.T) {
	w, _ := newBootstrapped(t)
	ctx := context.Background()
	sink := &recordingSink{}
	w.SetAuditSink(sink)

	w.ExecuteAction(ctx, ActionRequest{AgentID: entity.AliceID, Action: ActionSleep})
	w.ExecuteAction(ctx, ActionRequest{AgentID: entity.BobID, Action: ActionDrop, Item: "stone", Quantity: 1})

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.entries, 2)
	assert.Equal(t, entity.AliceID, sink.entries[0].AgentID)
	assert.Equal(t, ActionSleep, sink.entries[0].Action)
	assert.Equal(t, entity.CodeOK, sink.entries[0].Code)
	assert.Equal(t, entity.CodeInvalidParam, sink.entries[1].Code)
	assert.False(t, sink.entries[1].At.IsZero())

	w.SetAuditSink(nil)
	w.ExecuteAction(ctx, ActionRequest{AgentID: entity.AliceID, Action: ActionSleep})
	assert.Len(t, sink.entries, 2)
}
