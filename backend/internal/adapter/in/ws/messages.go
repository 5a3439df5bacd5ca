package ws

import (
	"time"

	"sentient-cities/backend/internal/core/domain/service"
	"sentient-cities/backend/internal/transport"
)

// Типы сообщений
const (
	MessageTypeWorldUpdate   = "world_update"
	MessageTypeGetWorldState = "get_world_state"
	MessageTypeAgentAction   = "agent_action"
	MessageTypeActionResult  = "action_result"
	MessageTypePing          = "ping"
	MessageTypePong          = "pong"
	MessageTypeError         = "error"
)

// ClientMessage входящее сообщение клиента
type ClientMessage struct {
	Type       string                        `json:"type"`
	RequestID  string                        `json:"request_id,omitempty"`
	ClientTime float64                       `json:"client_time,omitempty"`
	Action     *transport.AgentActionRequest `json:"action,omitempty"`
}

// WorldUpdateMessage снимок мира для клиентов
type WorldUpdateMessage struct {
	Type       string             `json:"type"`
	ServerTime int64              `json:"server_time"`
	State      service.WorldState `json:"state"`
}

// ActionResultMessage ответ на agent_action
type ActionResultMessage struct {
	Type      string                        `json:"type"`
	RequestID string                        `json:"request_id,omitempty"`
	Result    transport.AgentActionResponse `json:"result"`
}

// PongMessage ответ на ping
type PongMessage struct {
	Type       string  `json:"type"`
	ClientTime float64 `json:"client_time"`
	ServerTime int64   `json:"server_time"`
}

// ErrorMessage сообщение об ошибке разбора запроса
type ErrorMessage struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
	Message   string `json:"message"`
}

// GetCurrentServerTime возвращает текущее серверное время в миллисекундах
func GetCurrentServerTime() int64 {
	return time.Now().UnixMilli()
}

// NewWorldUpdateMessage создает сообщение с состоянием мира
func NewWorldUpdateMessage(state service.WorldState) WorldUpdateMessage {
	return WorldUpdateMessage{Type: MessageTypeWorldUpdate, ServerTime: GetCurrentServerTime(), State: state}
}

// NewPongMessage создает новое сообщение-ответ на пинг
func NewPongMessage(clientTime float64) PongMessage {
	return PongMessage{Type: MessageTypePong, ClientTime: clientTime, ServerTime: GetCurrentServerTime()}
}

// NewErrorMessage создает сообщение об ошибке
func NewErrorMessage(requestID string, err error) ErrorMessage {
	return ErrorMessage{Type: MessageTypeError, RequestID: requestID, Message: err.Error()}
}
