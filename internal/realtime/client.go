package realtime

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 16
)

// Client - websocket соединение одной службы
type Client struct {
	hub         *Hub
	conn        *websocket.Conn
	send        chan []byte
	responderID string
	role        string

	mu          sync.Mutex
	closed      bool
	ambulanceID string
}

func newClient(h *Hub, conn *websocket.Conn, claims *Claims) *Client {
	return &Client{
		hub:         h,
		conn:        conn,
		send:        make(chan []byte, sendBuffer),
		responderID: claims.Responder(),
		role:        claims.Role,
	}
}

// enqueue не блокирует рассылку: медленный клиент теряет событие
func (c *Client) enqueue(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.WithError(err).WithFields(logrus.Fields{
					"responder_id": c.responderID,
					"ambulance_id": c.currentAmbulance(),
				}).Warn("Realtime connection closed unexpectedly")
			}
			return
		}
		c.handle(raw)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handle обрабатывает входящие события клиента
func (c *Client) handle(raw []byte) {
	log := c.hub.logger.WithFields(logrus.Fields{
		"responder_id": c.responderID,
		"role":         c.role,
	})

	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.WithError(err).Warn("Invalid realtime message")
		c.reply(EventError, map[string]string{"message": "invalid message"})
		return
	}
	log = log.WithField("event", msg.Event)

	switch msg.Event {
	case EventJoinZone:
		zoneID, err := field(msg.Data, "zoneId")
		if err != nil {
			c.reply(EventError, map[string]string{"message": err.Error()})
			return
		}
		c.hub.join(c, ZoneRoom(zoneID))
		log.WithField("zone_id", zoneID).Info("Client joined zone")

	case EventAmbulanceOnline:
		ambulanceID, err := field(msg.Data, "ambulanceId")
		if err != nil {
			c.reply(EventError, map[string]string{"message": err.Error()})
			return
		}
		c.mu.Lock()
		c.ambulanceID = ambulanceID
		c.mu.Unlock()
		c.hub.join(c, RoomAmbulances)
		c.hub.join(c, AmbulanceRoom(ambulanceID))
		log.WithField("ambulance_id", ambulanceID).Info("Ambulance online")

	case EventAmbulanceOffline:
		// Без ambulanceId отключается машина, объявленная клиентом ранее
		ambulanceID, err := field(msg.Data, "ambulanceId")
		if err != nil {
			ambulanceID = c.currentAmbulance()
		}
		if ambulanceID == "" {
			c.reply(EventError, map[string]string{"message": err.Error()})
			return
		}
		c.mu.Lock()
		if c.ambulanceID == ambulanceID {
			c.ambulanceID = ""
		}
		c.mu.Unlock()
		c.hub.leave(c, RoomAmbulances)
		c.hub.leave(c, AmbulanceRoom(ambulanceID))
		log.WithField("ambulance_id", ambulanceID).Info("Ambulance offline")

	case EventAcceptIncident:
		incidentID, err := field(msg.Data, "incidentId")
		if err != nil {
			c.reply(EventError, map[string]string{"message": err.Error()})
			return
		}
		event := Event{
			Name: EventIncidentAccepted,
			Data: IncidentAccepted{IncidentID: incidentID, ResponderID: c.responderID},
		}
		if err := c.hub.Broadcast(event); err != nil {
			log.WithError(err).Error("Failed to broadcast incident acceptance")
			return
		}
		log.WithField("incident_id", incidentID).Info("Incident accepted by responder")

	default:
		log.Debug("Unknown realtime event ignored")
	}
}

func (c *Client) currentAmbulance() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ambulanceID
}

func (c *Client) reply(name string, data any) {
	payload, err := json.Marshal(Event{Name: name, Data: data})
	if err != nil {
		return
	}
	c.enqueue(payload)
}

// field извлекает строковый или числовой идентификатор из данных события
func field(data json.RawMessage, key string) (string, error) {
	var values map[string]any
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	if err := decoder.Decode(&values); err != nil {
		return "", fmt.Errorf("invalid event data: %w", err)
	}
	value, ok := values[key]
	if !ok || value == nil {
		return "", fmt.Errorf("%s is required", key)
	}
	id := fmt.Sprint(value)
	if id == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return id, nil
}
