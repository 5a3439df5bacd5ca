package entity

import "github.com/go-gl/mathgl/mgl32"

// House дом, которым может владеть агент
type House struct {
	ID                  HouseID
	Position            mgl32.Vec3
	Color               string
	Size                string
	Shape               string
	HasDoor             bool
	Owner               *AgentID // ссылка по идентификатору, не владение
	Locked              bool
	InteriorTemperature float32
}

// NewHouse создает дом со стандартным внешним видом
func NewHouse(id HouseID, position mgl32.Vec3, color string, owner *AgentID) House {
	h := House{
		ID:                  id,
		Position:            position,
		Color:               color,
		Size:                "large",
		Shape:               "rectangular structure",
		HasDoor:             true,
		Locked:              false,
		InteriorTemperature: 20.0,
	}
	if owner != nil {
		o := *owner
		h.Owner = &o
	}
	return h
}

// IsOwner сравнивает владельца по идентификатору
func (h House) IsOwner(agentID AgentID) bool {
	return h.Owner != nil && *h.Owner == agentID
}

// Clone возвращает копию дома
func (h House) Clone() House {
	c := h
	if h.Owner != nil {
		o := *h.Owner
		c.Owner = &o
	}
	return c
}
