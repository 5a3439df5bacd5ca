package service

import (
	"context"
	"sort"

	"github.com/go-gl/mathgl/mgl32"

	"sentient-cities/backend/internal/core/domain/entity"
)

// AgentView снимок агента для внешних клиентов
type AgentView struct {
	ID             string                    `json:"id"`
	Name           string                    `json:"name"`
	Position       mgl32.Vec3                `json:"position"`
	Rotation       [4]float32                `json:"rotation"` // x, y, z, w
	HasBody        bool                      `json:"has_body"`
	Needs          entity.PhysiologicalNeeds `json:"needs"`
	CriticalNeed   string                    `json:"critical_need,omitempty"`
	Inventory      map[string]uint32         `json:"inventory"`
	KnownLocations map[string]mgl32.Vec3     `json:"known_locations"`
}

// HouseView снимок дома. OwnerAlive ложно, если владелец уже удален.
type HouseView struct {
	ID                  string     `json:"id"`
	Position            mgl32.Vec3 `json:"position"`
	Color               string     `json:"color"`
	Size                string     `json:"size"`
	Shape               string     `json:"shape"`
	HasDoor             bool       `json:"has_door"`
	Owner               string     `json:"owner,omitempty"`
	OwnerAlive          bool       `json:"owner_alive"`
	Locked              bool       `json:"locked"`
	InteriorTemperature float32    `json:"interior_temperature"`
}

// ResourceView снимок ресурса
type ResourceView struct {
	ID         string                    `json:"id"`
	Kind       entity.ResourceKind       `json:"kind"`
	Position   mgl32.Vec3                `json:"position"`
	Appearance entity.ResourceAppearance `json:"appearance"`
	Radius     float32                   `json:"radius,omitempty"`
	Nutrition  float32                   `json:"nutrition,omitempty"`
	Quantity   *uint32                   `json:"quantity,omitempty"`
}

// WorldState согласованный по сущностям снимок мира.
// Между сущностями атомарности нет: снимок собирается шард за шардом.
type WorldState struct {
	Tick      uint64         `json:"tick"`
	Elapsed   float64        `json:"elapsed"`
	DayPhase  float32        `json:"day_phase"`
	Hour      int            `json:"hour"`
	Minute    int            `json:"minute"`
	IsNight   bool           `json:"is_night"`
	Agents    []AgentView    `json:"agents"`
	Houses    []HouseView    `json:"houses"`
	Resources []ResourceView `json:"resources"`
}

// WorldState собирает снимок мира, сущности отсортированы по id
func (s *WorldService) WorldState(_ context.Context) WorldState {
	clock := s.Clock()
	hour, minute := clock.TimeOfDay()
	ws := WorldState{
		Tick:      clock.Ticks(),
		Elapsed:   clock.Elapsed(),
		DayPhase:  clock.DayPhase(),
		Hour:      hour,
		Minute:    minute,
		IsNight:   clock.IsNight(),
		Agents:    make([]AgentView, 0, s.agents.Len()),
		Houses:    make([]HouseView, 0, s.houses.Len()),
		Resources: make([]ResourceView, 0, s.resources.Len()),
	}

	s.agents.Range(func(_ entity.AgentID, a entity.Agent) bool {
		ws.Agents = append(ws.Agents, NewAgentView(a))
		return true
	})
	s.houses.Range(func(_ entity.HouseID, h entity.House) bool {
		v := NewHouseView(h)
		v.OwnerAlive = h.Owner != nil && s.agents.Has(*h.Owner)
		ws.Houses = append(ws.Houses, v)
		return true
	})
	s.resources.Range(func(_ entity.ResourceID, r entity.Resource) bool {
		ws.Resources = append(ws.Resources, NewResourceView(r))
		return true
	})

	sort.Slice(ws.Agents, func(i, j int) bool { return ws.Agents[i].ID < ws.Agents[j].ID })
	sort.Slice(ws.Houses, func(i, j int) bool { return ws.Houses[i].ID < ws.Houses[j].ID })
	sort.Slice(ws.Resources, func(i, j int) bool { return ws.Resources[i].ID < ws.Resources[j].ID })
	return ws
}

// NewAgentView строит снимок агента
func NewAgentView(a entity.Agent) AgentView {
	v := AgentView{
		ID:             a.ID.String(),
		Name:           a.Name,
		Position:       a.Position,
		Rotation:       [4]float32{a.Rotation.X(), a.Rotation.Y(), a.Rotation.Z(), a.Rotation.W},
		HasBody:        a.Body != nil,
		Needs:          a.Needs,
		Inventory:      a.Inventory.Items,
		KnownLocations: a.KnownLocations,
	}
	if need, ok := a.Needs.CriticalNeed(); ok {
		v.CriticalNeed = need.String()
	}
	return v
}

// NewHouseView строит снимок дома, OwnerAlive заполняет вызывающий
func NewHouseView(h entity.House) HouseView {
	v := HouseView{
		ID:                  h.ID.String(),
		Position:            h.Position,
		Color:               h.Color,
		Size:                h.Size,
		Shape:               h.Shape,
		HasDoor:             h.HasDoor,
		Locked:              h.Locked,
		InteriorTemperature: h.InteriorTemperature,
	}
	if h.Owner != nil {
		v.Owner = h.Owner.String()
	}
	return v
}

// NewResourceView строит снимок ресурса
func NewResourceView(r entity.Resource) ResourceView {
	v := ResourceView{
		ID:         r.ID().String(),
		Kind:       r.Kind(),
		Position:   r.Position(),
		Appearance: r.Appearance(),
	}
	switch res := r.(type) {
	case *entity.Lake:
		v.Radius = res.Radius
	case *entity.Plant:
		q := res.Quantity
		v.Nutrition = res.Nutrition
		v.Quantity = &q
	}
	return v
}
