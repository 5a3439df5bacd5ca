package physics

import (
	"context"
	"errors"

	"github.com/go-gl/mathgl/mgl32"

	"sentient-cities/backend/internal/core/domain/entity"
)

// Ошибки физического порта
var (
	// ErrInvalidHandle - ссылка на несуществующее или удаленное тело (дефект вызывающего кода)
	ErrInvalidHandle = errors.New("недействительная ссылка на тело")

	// ErrStepFailed - шаг симуляции не дал корректного результата
	ErrStepFailed = errors.New("шаг физики не выполнен")
)

// BodyHandle ссылка на тело в движке
type BodyHandle = entity.BodyHandle

// ShapeType тип формы коллайдера
type ShapeType string

const (
	ShapeCuboid  ShapeType = "cuboid"
	ShapeBall    ShapeType = "ball"
	ShapeCapsule ShapeType = "capsule"
)

// Shape описание формы коллайдера
type Shape struct {
	Type        ShapeType  `json:"type"`
	HalfExtents mgl32.Vec3 `json:"half_extents"`          // для cuboid
	Radius      float32    `json:"radius,omitempty"`      // для ball и capsule
	HalfHeight  float32    `json:"half_height,omitempty"` // для capsule
}

// Cuboid создает форму параллелепипеда по полуразмерам
func Cuboid(hx, hy, hz float32) Shape {
	return Shape{Type: ShapeCuboid, HalfExtents: mgl32.Vec3{hx, hy, hz}}
}

// Ball создает форму шара
func Ball(radius float32) Shape {
	return Shape{Type: ShapeBall, Radius: radius}
}

// Capsule создает вертикальную капсулу
func Capsule(halfHeight, radius float32) Shape {
	return Shape{Type: ShapeCapsule, HalfHeight: halfHeight, Radius: radius}
}

// Transform позиция и ориентация тела
type Transform struct {
	Position mgl32.Vec3 `json:"position"`
	Rotation mgl32.Quat `json:"rotation"`
}

// IdentityAt возвращает трансформацию без поворота
func IdentityAt(position mgl32.Vec3) Transform {
	return Transform{Position: position, Rotation: mgl32.QuatIdent()}
}

// BodySpec параметры создаваемого тела
type BodySpec struct {
	Shape     Shape     `json:"shape"`
	Transform Transform `json:"transform"`
	Fixed     bool      `json:"fixed"`
	Mass      float32   `json:"mass"`
}

// PhysicsPort определяет интерфейс для взаимодействия с физическим движком.
// Вызывается только из тика мира, параллельные вызовы не предполагаются.
type PhysicsPort interface {
	// CreateBody создает тело и возвращает ссылку на него
	CreateBody(ctx context.Context, spec BodySpec) (BodyHandle, error)

	// RemoveBody удаляет тело вместе с его коллайдером
	RemoveBody(ctx context.Context, handle BodyHandle) error

	// SetTransform телепортирует тело и гасит его скорость
	SetTransform(ctx context.Context, handle BodyHandle, transform Transform) error

	// Step продвигает симуляцию на deltaTime секунд под действием гравитации
	Step(ctx context.Context, deltaTime float32) error

	// TransformOf возвращает текущую трансформацию тела
	TransformOf(ctx context.Context, handle BodyHandle) (Transform, error)

	// BodyCount количество живых тел
	BodyCount(ctx context.Context) (int, error)

	// Close освобождает ресурсы движка
	Close() error
}
