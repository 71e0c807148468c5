package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var (
	ErrHubClosed = errors.New("realtime hub is closed")
	ErrQueueFull = errors.New("realtime event queue is full")
)

// Hub - общий для процесса вещатель событий подключенным клиентам служб.
// Реестр клиентов и комнат защищен mu; события рассылаются одной горутиной.
type Hub struct {
	auth     *Authenticator
	upgrader websocket.Upgrader
	logger   *logrus.Logger

	mu      sync.RWMutex
	clients map[*Client]struct{}
	rooms   map[string]map[*Client]struct{}

	events   chan Event
	done     chan struct{}
	wg       sync.WaitGroup
	closed   atomic.Bool
	stopOnce sync.Once
}

func NewHub(auth *Authenticator, queueSize int, logger *logrus.Logger) *Hub {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Hub{
		auth: auth,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger:  logger,
		clients: make(map[*Client]struct{}),
		rooms:   make(map[string]map[*Client]struct{}),
		events:  make(chan Event, queueSize),
		done:    make(chan struct{}),
	}
}

// Start запускает рассылку событий; остановка через Shutdown или отмену ctx
func (h *Hub) Start(ctx context.Context) {
	h.logger.Info("Starting realtime hub...")
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		for {
			select {
			case <-ctx.Done():
				h.closed.Store(true)
				h.closeClients()
				return
			case <-h.done:
				return
			case event := <-h.events:
				h.fanout(event)
			}
		}
	}()
}

// Shutdown прекращает прием событий и закрывает все соединения
func (h *Hub) Shutdown() {
	h.stopOnce.Do(func() {
		h.closed.Store(true)
		close(h.done)
		h.wg.Wait()
		h.closeClients()
		h.logger.Info("Realtime hub stopped")
	})
}

// Broadcast ставит событие в очередь и сразу возвращается.
// Подтверждения доставки и повторной отправки нет.
func (h *Hub) Broadcast(event Event) error {
	if h.closed.Load() {
		return ErrHubClosed
	}
	select {
	case h.events <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

// ClientCount возвращает число подключенных клиентов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomSize возвращает число клиентов в комнате
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// ServeHTTP проверяет токен, переводит соединение на websocket и регистрирует клиента
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.closed.Load() {
		http.Error(w, ErrHubClosed.Error(), http.StatusServiceUnavailable)
		return
	}

	claims, err := h.auth.Authenticate(r)
	if err != nil {
		h.logger.WithError(err).Warn("Rejected realtime connection")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("Failed to upgrade realtime connection")
		return
	}

	client := newClient(h, conn, claims)
	h.register(client)
	go client.writePump()
	go client.readPump()
}

func (h *Hub) fanout(event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.WithError(err).WithField("event", event.Name).Error("Failed to marshal realtime event")
		return
	}

	h.mu.RLock()
	targets := h.clients
	if event.Room != "" {
		targets = h.rooms[event.Room]
	}
	dropped := 0
	for client := range targets {
		if !client.enqueue(payload) {
			dropped++
		}
	}
	delivered := len(targets) - dropped
	h.mu.RUnlock()

	log := h.logger.WithFields(logrus.Fields{
		"event":     event.Name,
		"room":      event.Room,
		"delivered": delivered,
	})
	if dropped > 0 {
		log.WithField("dropped", dropped).Warn("Realtime event dropped for slow clients")
		return
	}
	log.Debug("Realtime event broadcast")
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.WithField("responder_id", c.responderID).Info("Realtime client connected")
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	for room, members := range h.rooms {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	h.mu.Unlock()
	c.close()
	h.logger.WithField("responder_id", c.responderID).Info("Realtime client disconnected")
}

func (h *Hub) join(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
}

func (h *Hub) leave(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

func (h *Hub) closeClients() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*Client]struct{})
	h.rooms = make(map[string]map[*Client]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.close()
	}
}
