package entity

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// ResourceKind тип ресурса
type ResourceKind string

const (
	ResourceLake  ResourceKind = "lake"
	ResourcePlant ResourceKind = "plant"
)

// ResourceAppearance описание внешнего вида для клиентов.
// Вычисляется из варианта ресурса и отдельно не хранится.
type ResourceAppearance struct {
	Shape        string  `json:"shape"`
	Color        string  `json:"color"`
	Size         string  `json:"size"`
	Surface      *string `json:"surface,omitempty"`
	ResourceType string  `json:"resource_type"`
}

// Resource закрытый вариант: *Lake или *Plant
type Resource interface {
	ID() ResourceID
	Position() mgl32.Vec3
	Kind() ResourceKind
	Appearance() ResourceAppearance
	Clone() Resource

	isResource()
}

// Lake водоем
type Lake struct {
	LakeID ResourceID
	Pos    mgl32.Vec3
	Radius float32
}

// Plant съедобное растение
type Plant struct {
	PlantID   ResourceID
	Pos       mgl32.Vec3
	Nutrition float32
	Quantity  uint32 // 0 - допустимое конечное состояние, растение не удаляется
}

// NewLake создает водоем
func NewLake(id ResourceID, position mgl32.Vec3, radius float32) *Lake {
	return &Lake{LakeID: id, Pos: position, Radius: radius}
}

// NewPlant создает растение
func NewPlant(id ResourceID, position mgl32.Vec3, nutrition float32, quantity uint32) *Plant {
	return &Plant{PlantID: id, Pos: position, Nutrition: nutrition, Quantity: quantity}
}

func (l *Lake) ID() ResourceID       { return l.LakeID }
func (l *Lake) Position() mgl32.Vec3 { return l.Pos }
func (l *Lake) Kind() ResourceKind   { return ResourceLake }
func (l *Lake) Clone() Resource      { c := *l; return &c }
func (l *Lake) isResource()          {}

func (p *Plant) ID() ResourceID       { return p.PlantID }
func (p *Plant) Position() mgl32.Vec3 { return p.Pos }
func (p *Plant) Kind() ResourceKind   { return ResourcePlant }
func (p *Plant) Clone() Resource      { c := *p; return &c }
func (p *Plant) isResource()          {}

// Appearance водоема
func (l *Lake) Appearance() ResourceAppearance {
	surface := "reflective"
	return ResourceAppearance{
		Shape:        "large blue circle",
		Color:        "blue",
		Size:         "large",
		Surface:      &surface,
		ResourceType: string(ResourceLake),
	}
}

// Appearance растения
func (p *Plant) Appearance() ResourceAppearance {
	return ResourceAppearance{
		Shape:        "small green cluster",
		Color:        "green",
		Size:         "small",
		ResourceType: string(ResourcePlant),
	}
}

// Consume забирает одну единицу растения
func (p *Plant) Consume() error {
	if p.Quantity == 0 {
		return fmt.Errorf("%w: растение %s истощено", ErrPermissionDenied, p.PlantID)
	}
	p.Quantity--
	return nil
}

// Contains проверяет, находится ли точка в пределах досягаемости водоема
func (l *Lake) Contains(point mgl32.Vec3, reach float32) bool {
	return HorizontalDistance(l.Pos, point) <= l.Radius+reach
}

// HorizontalDistance расстояние в плоскости XZ
func HorizontalDistance(a, b mgl32.Vec3) float32 {
	d := a.Sub(b)
	d[1] = 0
	return d.Len()
}
