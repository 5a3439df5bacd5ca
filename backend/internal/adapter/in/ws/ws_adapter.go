package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"sentient-cities/backend/internal/core/domain/entity"
	"sentient-cities/backend/internal/core/port/in/worldmanagement"
	"sentient-cities/backend/internal/transport"
)

const (
	// maxMessageSize ограничение на размер входящего сообщения
	maxMessageSize = 64 << 10
	// clientQueueSize очередь рассылки одного клиента, при переполнении обновления отбрасываются
	clientQueueSize = 8
)

// client подключение и его очередь рассылки.
// Рассылка только кладет готовые сообщения в out, пишет их отдельная горутина.
type client struct {
	writer *SafeWriter
	out    chan []byte
}

func newClient(writer *SafeWriter, queueSize int) *client {
	return &client{writer: writer, out: make(chan []byte, queueSize)}
}

// trySend ставит сообщение в очередь, не блокируясь
func (c *client) trySend(b []byte) bool {
	select {
	case c.out <- b:
		return true
	default:
		return false
	}
}

type handlerFunc func(ctx context.Context, conn *SafeWriter, msg ClientMessage) error

// WSAdapter адаптер для WebSocket соединений
type WSAdapter struct {
	upgrader  websocket.Upgrader
	handlers  map[string]handlerFunc
	world     worldmanagement.WorldManagementPort
	schema    *jsonschema.Schema
	logger    *log.Logger
	clients   map[*client]bool // Для хранения активных клиентов
	clientsMu sync.Mutex       // Мьютекс для безопасного доступа к списку клиентов

	droppedUpdates atomic.Uint64
}

// NewWSAdapter создает новый экземпляр WSAdapter
func NewWSAdapter(world worldmanagement.WorldManagementPort, logger *log.Logger) (*WSAdapter, error) {
	if logger == nil {
		logger = log.Default()
	}
	schema, err := compileClientSchema()
	if err != nil {
		return nil, err
	}
	a := &WSAdapter{
		world:  world,
		schema: schema,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients: make(map[*client]bool),
	}
	a.handlers = map[string]handlerFunc{
		MessageTypeGetWorldState: a.handleGetWorldState,
		MessageTypeAgentAction:   a.handleAgentAction,
		MessageTypePing:          a.handlePing,
	}
	return a, nil
}

// HandleWS обрабатывает WebSocket соединения
func (a *WSAdapter) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Printf("[WS] Ошибка при установке WebSocket соединения: %v", err)
		return
	}
	conn.SetReadLimit(maxMessageSize)

	writer := NewSafeWriter(conn)
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// новый клиент сразу получает текущее состояние мира, до любых рассылок
	if err := writer.WriteJSON(NewWorldUpdateMessage(a.world.WorldState(ctx))); err != nil {
		a.logger.Printf("[WS] Ошибка при отправке начального состояния: %v", err)
		_ = writer.Close()
		return
	}

	c := newClient(writer, clientQueueSize)
	a.addClient(c)
	defer func() {
		a.removeClient(c)
		_ = writer.Close()
	}()
	go a.writeLoop(ctx, c)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				a.logger.Printf("[WS] Ошибка при чтении сообщения: %v", err)
			}
			return
		}

		msg, err := decodeClientMessage(a.schema, raw)
		if err != nil {
			if werr := writer.WriteJSON(NewErrorMessage("", err)); werr != nil {
				return
			}
			continue
		}

		handler, ok := a.handlers[msg.Type]
		if !ok {
			// схема пропускает только известные типы
			continue
		}
		if err := handler(ctx, writer, msg); err != nil {
			a.logger.Printf("[WS] Ошибка обработки сообщения типа %s: %v", msg.Type, err)
			return
		}
	}
}

func (a *WSAdapter) handleGetWorldState(ctx context.Context, conn *SafeWriter, _ ClientMessage) error {
	return conn.WriteJSON(NewWorldUpdateMessage(a.world.WorldState(ctx)))
}

func (a *WSAdapter) handleAgentAction(ctx context.Context, conn *SafeWriter, msg ClientMessage) error {
	if msg.Action == nil {
		return conn.WriteJSON(NewErrorMessage(msg.RequestID, fmt.Errorf("нет описания действия")))
	}
	req, err := msg.Action.ToActionRequest()
	var result transport.AgentActionResponse
	if err != nil {
		result = transport.AgentActionResponse{Code: entity.CodeFor(err), Message: err.Error()}
	} else {
		result = transport.ActionResponse(a.world.ExecuteAction(ctx, req))
	}
	return conn.WriteJSON(ActionResultMessage{Type: MessageTypeActionResult, RequestID: msg.RequestID, Result: result})
}

func (a *WSAdapter) handlePing(_ context.Context, conn *SafeWriter, msg ClientMessage) error {
	return conn.WriteJSON(NewPongMessage(msg.ClientTime))
}

// writeLoop пишет сообщения рассылки в сокет. Ошибка записи закрывает соединение,
// после чего читающий цикл HandleWS завершается.
func (a *WSAdapter) writeLoop(ctx context.Context, c *client) {
	for {
		select {
		case <-ctx.Done():
			return
		case b := <-c.out:
			if err := c.writer.WriteMessage(websocket.TextMessage, b); err != nil {
				a.logger.Printf("[WS] Ошибка при отправке обновления клиенту: %v", err)
				_ = c.writer.Close()
				return
			}
		}
	}
}

func (a *WSAdapter) addClient(c *client) {
	a.clientsMu.Lock()
	a.clients[c] = true
	a.clientsMu.Unlock()
}

func (a *WSAdapter) removeClient(c *client) {
	a.clientsMu.Lock()
	delete(a.clients, c)
	a.clientsMu.Unlock()
}

// BroadcastWorldState ставит снимок мира в очереди всех подключенных клиентов.
// Не ждет сети: клиенту с полной очередью обновление не достается.
// Возвращает число клиентов, в чьи очереди снимок попал.
func (a *WSAdapter) BroadcastWorldState(ctx context.Context) int {
	a.clientsMu.Lock()
	clients := make([]*client, 0, len(a.clients))
	for c := range a.clients {
		clients = append(clients, c)
	}
	a.clientsMu.Unlock()
	if len(clients) == 0 {
		return 0
	}

	payload, err := json.Marshal(NewWorldUpdateMessage(a.world.WorldState(ctx)))
	if err != nil {
		a.logger.Printf("[WS] Ошибка сериализации состояния мира: %v", err)
		return 0
	}
	queued := 0
	for _, c := range clients {
		if c.trySend(payload) {
			queued++
		} else {
			a.droppedUpdates.Add(1)
		}
	}
	return queued
}

// DroppedUpdates сколько обновлений отброшено из-за переполненных очередей
func (a *WSAdapter) DroppedUpdates() uint64 {
	return a.droppedUpdates.Load()
}

// ClientCount количество подключенных клиентов
func (a *WSAdapter) ClientCount() int {
	a.clientsMu.Lock()
	defer a.clientsMu.Unlock()
	return len(a.clients)
}
