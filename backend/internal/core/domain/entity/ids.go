package entity

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// AgentID уникальный идентификатор агента
type AgentID struct{ uuid.UUID }

// HouseID уникальный идентификатор дома
type HouseID struct{ uuid.UUID }

// ResourceID уникальный идентификатор ресурса
type ResourceID struct{ uuid.UUID }

// Хорошо известные агенты стартового мира
var (
	AliceID = MustAgentID("00000000-0000-0000-0000-000000000001")
	BobID   = MustAgentID("00000000-0000-0000-0000-000000000002")
)

// NewAgentID генерирует новый случайный идентификатор агента
func NewAgentID() AgentID { return AgentID{uuid.New()} }

// NewHouseID генерирует новый случайный идентификатор дома
func NewHouseID() HouseID { return HouseID{uuid.New()} }

// NewResourceID генерирует новый случайный идентификатор ресурса
func NewResourceID() ResourceID { return ResourceID{uuid.New()} }

// ParseAgentID разбирает строковое представление идентификатора агента
func ParseAgentID(s string) (AgentID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return AgentID{}, fmt.Errorf("%w: неверный id агента %q", ErrInvalidParams, s)
	}
	return AgentID{u}, nil
}

// ParseHouseID разбирает строковое представление идентификатора дома
func ParseHouseID(s string) (HouseID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return HouseID{}, fmt.Errorf("%w: неверный id дома %q", ErrInvalidParams, s)
	}
	return HouseID{u}, nil
}

// ParseResourceID разбирает строковое представление идентификатора ресурса
func ParseResourceID(s string) (ResourceID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ResourceID{}, fmt.Errorf("%w: неверный id ресурса %q", ErrInvalidParams, s)
	}
	return ResourceID{u}, nil
}

// MustAgentID используется только для констант
func MustAgentID(s string) AgentID {
	return AgentID{uuid.MustParse(s)}
}

// Hash используется хранилищем для выбора шарда.
// Берем младшие 8 байт: у v4 они случайны, а у констант вида ...0001 различаются.
func (id AgentID) Hash() uint64 { return hashUUID(id.UUID) }

func (id HouseID) Hash() uint64 { return hashUUID(id.UUID) }

func (id ResourceID) Hash() uint64 { return hashUUID(id.UUID) }

func hashUUID(u uuid.UUID) uint64 {
	return binary.BigEndian.Uint64(u[8:])
}
