package entity

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPhysiologicalNeeds_UpdateRates(t *testing.T) {
	n := NewPhysiologicalNeeds()
	n.Update(60) // одна минута

	assert.InDelta(t, 74.0, n.Hunger, 1e-4)
	assert.InDelta(t, 73.5, n.Thirst, 1e-4)
	assert.InDelta(t, 89.5, n.Energy, 1e-4)
	assert.Equal(t, float32(100), n.Bladder)
	assert.Equal(t, float32(100), n.Hygiene)
	assert.False(t, n.Shelter)
}

func TestPhysiologicalNeeds_StayInBounds(t *testing.T) {
	n := NewPhysiologicalNeeds()
	start := n
	deltas := []float32{0, 1.0 / 60, 0.5, 3, 17.25, 600, 0, 1e4, 86400}

	for i := 0; i < 50; i++ {
		for _, dt := range deltas {
			n.Update(dt)
			assert.True(t, n.Valid(), "шкалы вышли за границы: %+v", n)
			assert.LessOrEqual(t, n.Hunger, start.Hunger)
			assert.LessOrEqual(t, n.Thirst, start.Thirst)
			assert.LessOrEqual(t, n.Energy, start.Energy)
		}
	}
	assert.Equal(t, float32(0), n.Hunger)
	assert.Equal(t, float32(0), n.Thirst)
	assert.Equal(t, float32(0), n.Energy)
}

func TestPhysiologicalNeeds_NegativeDeltaIgnored(t *testing.T) {
	n := NewPhysiologicalNeeds()
	n.Update(-100)
	assert.Equal(t, NewPhysiologicalNeeds(), n)

	n.Update(float32(math.NaN()))
	assert.Equal(t, NewPhysiologicalNeeds(), n)
}

func TestPhysiologicalNeeds_CriticalNeedPriority(t *testing.T) {
	tests := []struct {
		name   string
		needs  PhysiologicalNeeds
		want   Need
		wantOK bool
	}{
		{"жажда важнее всего", PhysiologicalNeeds{Thirst: 15, Hunger: 10, Energy: 5}, NeedWater, true},
		{"голод после жажды", PhysiologicalNeeds{Thirst: 20, Hunger: 10, Energy: 5}, NeedFood, true},
		{"сон последним", PhysiologicalNeeds{Thirst: 50, Hunger: 50, Energy: 14.9}, NeedSleep, true},
		{"пороги строгие", PhysiologicalNeeds{Thirst: 20, Hunger: 20, Energy: 15}, 0, false},
		{"все в порядке", NewPhysiologicalNeeds(), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.needs.CriticalNeed()
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPhysiologicalNeeds_CriticalNeedIsNotCached(t *testing.T) {
	n := PhysiologicalNeeds{Thirst: 10, Hunger: 50, Energy: 50}
	got, _ := n.CriticalNeed()
	assert.Equal(t, NeedWater, got)

	n.Replenish(NeedWater, 200)
	assert.Equal(t, float32(100), n.Thirst)
	_, ok := n.CriticalNeed()
	assert.False(t, ok)
}

func TestNeed_String(t *testing.T) {
	assert.Equal(t, "water", NeedWater.String())
	assert.Equal(t, "food", NeedFood.String())
	assert.Equal(t, "sleep", NeedSleep.String())
	assert.Equal(t, "none", Need(0).String())
}
