package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/wastewatch-backend/internal/goroutine"
	"github.com/ignatzorin/wastewatch-backend/internal/logger"
	"github.com/ignatzorin/wastewatch-backend/internal/service"
)

// Publisher рассылает событие всем экземплярам сервиса.
type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
}

// Envelope событие для конкретного пользователя.
type Envelope struct {
	UserID  uuid.UUID       `json:"user_id"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Hub управляет WebSocket клиентами этого экземпляра.
type Hub struct {
	mu         sync.RWMutex
	clients    map[uuid.UUID]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan Envelope
	publisher  Publisher
	ctx        context.Context
}

func NewHub(ctx context.Context) *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Envelope, 256),
		ctx:        ctx,
	}
}

var _ service.Notifier = (*Hub)(nil)

// SetPublisher включает доставку через общий канал; без него события уходят только локальным клиентам.
func (h *Hub) SetPublisher(p Publisher) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.publisher = p
}

// Run главный цикл хаба, завершается вместе с контекстом.
func (h *Hub) Run() {
	for {
		select {
		case <-h.ctx.Done():
			h.closeAll()
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case env := <-h.broadcast:
			h.send(env)
		}
	}
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.ctx.Done():
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

// NotifyUser не блокирует вызывающего: при переполненной очереди событие теряется с записью в лог.
func (h *Hub) NotifyUser(userID uuid.UUID, event string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		logger.Log.WithError(err).WithField("event", event).Error("ws: не удалось сериализовать событие")
		return
	}
	env := Envelope{UserID: userID, Event: event, Payload: raw}

	h.mu.RLock()
	pub := h.publisher
	h.mu.RUnlock()

	if pub != nil {
		goroutine.SafeGo(func() {
			if err := pub.Publish(h.ctx, env); err != nil {
				logger.Log.WithError(err).WithField("event", event).Warn("ws: публикация не удалась, доставляем локально")
				h.Deliver(env)
			}
		})
		return
	}
	h.Deliver(env)
}

// Deliver ставит событие в очередь локальной рассылки.
func (h *Hub) Deliver(env Envelope) {
	select {
	case h.broadcast <- env:
	default:
		logger.Log.WithFields(logrus.Fields{
			"user_id": env.UserID,
			"event":   env.Event,
		}).Warn("ws: очередь событий переполнена, событие пропущено")
	}
}

// ConnectedUsers число пользователей с открытыми соединениями.
func (h *Hub) ConnectedUsers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.userID]; !ok {
		h.clients[client.userID] = make(map[*Client]struct{})
	}
	h.clients[client.userID][client] = struct{}{}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.clients[client.userID]; ok {
		if _, ok := clients[client]; ok {
			delete(clients, client)
			close(client.send)
		}
		if len(clients) == 0 {
			delete(h.clients, client.userID)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, clients := range h.clients {
		for c := range clients {
			close(c.send)
		}
		delete(h.clients, userID)
	}
}

// send сообщение в формате {"type": событие, "data": данные}.
func (h *Hub) send(env Envelope) {
	raw, err := json.Marshal(struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}{Type: env.Event, Data: env.Payload})
	if err != nil {
		logger.Log.WithError(fmt.Errorf("ws: %w", err)).Error("ws: не удалось собрать сообщение")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[env.UserID] {
		select {
		case client.send <- raw:
		default:
			// медленный клиент отключается, чтобы не тормозить остальных
			goroutine.SafeGo(client.Close)
		}
	}
}
