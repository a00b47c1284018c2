// Package websocket pushes roster and notification updates to connected
// assistant consoles. Hub-and-spoke: clients subscribe to topics, events are
// broadcast per topic.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Topic builders. One waiting-list stream per clinic, one roster stream and
// one notification stream per doctor.
func WaitingListTopic(clinicID string) string  { return "waitinglist/" + clinicID }
func RosterTopic(doctorID string) string       { return "roster/" + doctorID }
func NotificationTopic(doctorID string) string { return "notifications/" + doctorID }

// Event is one real-time push to subscribed clients.
type Event struct {
	Type      string          `json:"type"`
	Topic     string          `json:"topic"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewEvent marshals payload and stamps the event. A payload that cannot
// marshal yields an event with empty Data.
func NewEvent(eventType, topic string, payload interface{}) Event {
	ev := Event{Type: eventType, Topic: topic, Timestamp: time.Now().UTC()}
	if payload != nil {
		if data, err := json.Marshal(payload); err == nil {
			ev.Data = data
		}
	}
	return ev
}

// ClientMessage is an inbound subscribe/unsubscribe request.
type ClientMessage struct {
	Action string   `json:"action"`
	Topics []string `json:"topics"`
}

// EventPublisher is what domain code depends on to push events.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// Conn abstracts the underlying connection for tests.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is one connected console.
type Client struct {
	ID     string
	Topics []string
	Send   chan []byte
	conn   Conn
}

// Hub tracks clients and their topic subscriptions.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{} // topic -> subscribers
	all     map[*Client]struct{}
	logger  zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		all:     make(map[*Client]struct{}),
		logger:  logger.With().Str("component", "websocket").Logger(),
	}
}

// Register adds a client and its initial topic subscriptions.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.all[client] = struct{}{}
	for _, topic := range client.Topics {
		if h.clients[topic] == nil {
			h.clients[topic] = make(map[*Client]struct{})
		}
		h.clients[topic][client] = struct{}{}
	}
}

// Unregister removes a client from all subscriptions and closes its Send
// channel.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.all[client]; !ok {
		return
	}
	for _, topic := range client.Topics {
		if subs, ok := h.clients[topic]; ok {
			delete(subs, client)
			if len(subs) == 0 {
				delete(h.clients, topic)
			}
		}
	}
	delete(h.all, client)
	close(client.Send)
}

// Subscribe adds topics to a registered client.
func (h *Hub) Subscribe(client *Client, topics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, topic := range topics {
		if h.clients[topic] == nil {
			h.clients[topic] = make(map[*Client]struct{})
		}
		h.clients[topic][client] = struct{}{}
	}
	client.Topics = append(client.Topics, topics...)
}

// Unsubscribe removes topics from a registered client.
func (h *Hub) Unsubscribe(client *Client, topics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	removeSet := make(map[string]struct{}, len(topics))
	for _, t := range topics {
		removeSet[t] = struct{}{}
		if subs, ok := h.clients[t]; ok {
			delete(subs, client)
			if len(subs) == 0 {
				delete(h.clients, t)
			}
		}
	}

	remaining := client.Topics[:0]
	for _, t := range client.Topics {
		if _, rm := removeSet[t]; !rm {
			remaining = append(remaining, t)
		}
	}
	client.Topics = remaining
}

// ProcessMessage dispatches an inbound client message.
func (h *Hub) ProcessMessage(client *Client, msg ClientMessage) {
	switch msg.Action {
	case "subscribe":
		h.Subscribe(client, msg.Topics)
	case "unsubscribe":
		h.Unsubscribe(client, msg.Topics)
	}
}

// Broadcast sends an event to every subscriber of its topic. Slow clients
// with a full buffer are skipped, never blocked on.
func (h *Hub) Broadcast(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error().Err(err).Str("topic", event.Topic).Msg("event marshal failed")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[event.Topic] {
		select {
		case client.Send <- data:
		default:
		}
	}
}

// Publish implements EventPublisher.
func (h *Hub) Publish(_ context.Context, event Event) error {
	h.Broadcast(event)
	return nil
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.all)
}

// TopicCount returns the number of subscribers on a topic.
func (h *Hub) TopicCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}

var upgrader = gorillawebsocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler upgrades HTTP connections and runs the read/write pumps.
type Handler struct {
	hub *Hub
}

func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

func (wsh *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/ws", wsh.HandleConnect)
}

func (wsh *Handler) HandleConnect(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := &Client{
		ID:     uuid.New().String(),
		Topics: []string{},
		Send:   make(chan []byte, 256),
		conn:   &gorillaConn{ws},
	}
	wsh.hub.Register(client)

	go wsh.writePump(client, ws)
	go wsh.readPump(client, ws)
	return nil
}

func (wsh *Handler) readPump(client *Client, ws *gorillawebsocket.Conn) {
	defer func() {
		wsh.hub.Unregister(client)
		ws.Close()
	}()

	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			break
		}
		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		wsh.hub.ProcessMessage(client, msg)
	}
}

func (wsh *Handler) writePump(client *Client, ws *gorillawebsocket.Conn) {
	defer ws.Close()
	for message := range client.Send {
		if err := ws.WriteMessage(gorillawebsocket.TextMessage, message); err != nil {
			break
		}
	}
}

type gorillaConn struct {
	conn *gorillawebsocket.Conn
}

func (a *gorillaConn) ReadMessage() (int, []byte, error) {
	return a.conn.ReadMessage()
}

func (a *gorillaConn) WriteMessage(messageType int, data []byte) error {
	return a.conn.WriteMessage(messageType, data)
}

func (a *gorillaConn) Close() error {
	return a.conn.Close()
}
