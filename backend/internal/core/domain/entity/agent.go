package entity

import (
	"fmt"
	"maps"

	"github.com/go-gl/mathgl/mgl32"
)

// BodyHandle ссылка на тело в физическом движке.
// Тело принадлежит движку, агент только хранит его имя.
type BodyHandle struct {
	Index      uint32 `json:"index"`
	Generation uint32 `json:"generation"`
}

func (h BodyHandle) String() string {
	return fmt.Sprintf("body#%d.%d", h.Index, h.Generation)
}

// Inventory счетчики предметов агента, все значения неотрицательны
type Inventory struct {
	Items map[string]uint32 `json:"items"`
}

// NewInventory создает пустой инвентарь
func NewInventory() Inventory {
	return Inventory{Items: make(map[string]uint32)}
}

// Count возвращает количество предмета
func (inv Inventory) Count(item string) uint32 {
	return inv.Items[item]
}

// Add изменяет количество предмета на delta.
// Уход в минус - ошибка параметров, инвентарь при этом не меняется.
func (inv *Inventory) Add(item string, delta int64) error {
	if item == "" {
		return fmt.Errorf("%w: пустое имя предмета", ErrInvalidParams)
	}
	next := int64(inv.Items[item]) + delta
	if next < 0 {
		return fmt.Errorf("%w: у агента только %d шт. %q", ErrInvalidParams, inv.Items[item], item)
	}
	if inv.Items == nil {
		inv.Items = make(map[string]uint32)
	}
	if next == 0 {
		delete(inv.Items, item)
		return nil
	}
	inv.Items[item] = uint32(next)
	return nil
}

// Agent автономный агент мира
type Agent struct {
	ID             AgentID
	Name           string
	Position       mgl32.Vec3
	Rotation       mgl32.Quat
	Body           *BodyHandle // nil - агент без коллайдера
	Needs          PhysiologicalNeeds
	Inventory      Inventory
	KnownLocations map[string]mgl32.Vec3 // изначально пуст, заполняется извне
}

// NewAgent создает агента в заданной позиции
func NewAgent(id AgentID, name string, position mgl32.Vec3) Agent {
	return Agent{
		ID:             id,
		Name:           name,
		Position:       position,
		Rotation:       mgl32.QuatIdent(),
		Needs:          NewPhysiologicalNeeds(),
		Inventory:      NewInventory(),
		KnownLocations: make(map[string]mgl32.Vec3),
	}
}

// UpdateNeeds применяет убывание потребностей
func (a *Agent) UpdateNeeds(deltaTime float32) {
	a.Needs.Update(deltaTime)
}

// NormalizeRotation убирает накопившийся дрейф кватерниона
func (a *Agent) NormalizeRotation() {
	if a.Rotation.Len() == 0 {
		a.Rotation = mgl32.QuatIdent()
		return
	}
	a.Rotation = a.Rotation.Normalize()
}

// Clone возвращает глубокую копию агента
func (a Agent) Clone() Agent {
	c := a
	if a.Body != nil {
		h := *a.Body
		c.Body = &h
	}
	c.Inventory = Inventory{Items: maps.Clone(a.Inventory.Items)}
	if c.Inventory.Items == nil {
		c.Inventory.Items = make(map[string]uint32)
	}
	c.KnownLocations = maps.Clone(a.KnownLocations)
	if c.KnownLocations == nil {
		c.KnownLocations = make(map[string]mgl32.Vec3)
	}
	return c
}
