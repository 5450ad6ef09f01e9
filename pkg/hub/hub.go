// Package hub links browser clients over WebSocket: their geolocation comes
// in as position fixes, view updates and notices go out.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"headsup/pkg/geo"
	"headsup/pkg/nav"
	"headsup/pkg/position"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4096
	sendBuffer     = 32
)

// Hub implements position.Source for browser geolocation, and nav.ViewSink
// and nav.Notifier for the display.
type Hub struct {
	feed     *position.Feed
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu       sync.RWMutex
	clients  map[uuid.UUID]*client
	lastView []byte
	street   []byte
}

type client struct {
	id   uuid.UUID
	conn *websocket.Conn
	send chan []byte
}

// New creates a hub.
func New(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		feed:    position.NewFeed(),
		logger:  logger.With("component", "hub"),
		clients: make(map[uuid.UUID]*client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The HUD is served from the same binary, usually on localhost.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	h.feed.OnRequest = h.requestFix
	return h
}

// ServeHTTP upgrades the connection and serves one client until it leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}

	c := &client{id: uuid.New(), conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	h.clients[c.id] = c
	// Bring the new client up to date.
	if h.lastView != nil {
		c.send <- h.lastView
	}
	if h.street != nil {
		c.send <- h.street
	}
	n := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("Client connected", "client", c.id, "clients", n)

	go h.writePump(c)
	h.readPump(c)
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		delete(h.clients, id)
		close(c.send)
	}
}

// --- position.Source ---

// Watch implements position.Source.
func (h *Hub) Watch(ctx context.Context, opts position.Options, onFix func(position.Fix), onErr func(error)) (position.Subscription, error) {
	return h.feed.Watch(ctx, opts, onFix, onErr)
}

// Current implements position.Source. Connected clients are asked for a
// fresh fix when no recent one is cached.
func (h *Hub) Current(ctx context.Context, opts position.Options) (position.Fix, error) {
	return h.feed.Current(ctx, opts)
}

// Latest returns the most recent browser fix.
func (h *Hub) Latest() (position.Fix, bool) {
	return h.feed.Latest()
}

func (h *Hub) requestFix() {
	if msg, ok := h.marshal(typed{Type: "request"}); ok {
		h.broadcast(msg, false)
	}
}

// --- nav.ViewSink / nav.Notifier ---

// Apply implements nav.ViewSink.
func (h *Hub) Apply(v nav.ViewUpdate) {
	msg, ok := h.marshal(viewMessage{
		Type:                 "view",
		Center:               v.Center,
		Zoom:                 v.Zoom,
		Animate:              v.Animate,
		MapTransitionMs:      v.MapTransition.Milliseconds(),
		Rotation:             v.RotationDeg,
		RotationTransitionMs: v.RotationTransition.Milliseconds(),
		Trail:                v.Trail,
		TrailVisible:         v.TrailVisible,
		Speed:                v.Speed,
		SpeedUnit:            string(v.SpeedUnit),
		SpeedLabel:           v.SpeedUnit.Label(),
		Heading:              v.HeadingDeg,
		Simulated:            v.Simulated,
	})
	if ok {
		h.broadcast(msg, true)
	}
}

// Notify implements nav.Notifier.
func (h *Hub) Notify(s nav.Status) {
	if msg, ok := h.marshal(statusMessage{Type: "status", Level: string(s.Level), Message: s.Message}); ok {
		h.broadcast(msg, false)
	}
}

// StreetChanged implements nav.Notifier.
func (h *Hub) StreetChanged(label string) {
	msg, ok := h.marshal(streetMessage{Type: "street", Label: label})
	if !ok {
		return
	}
	h.mu.Lock()
	h.street = msg
	h.mu.Unlock()
	h.broadcast(msg, false)
}

// broadcast queues msg for every client. Clients whose queue is full are
// dropped.
func (h *Hub) broadcast(msg []byte, isView bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if isView {
		h.lastView = msg
	}
	for id, c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.logger.Warn("Dropping slow client", "client", id)
			delete(h.clients, id)
			close(c.send)
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.id]; ok {
		delete(h.clients, c.id)
		close(c.send)
	}
}

// --- pumps ---

func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		c.conn.Close()
		h.logger.Info("Client disconnected", "client", c.id)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("WebSocket read failed", "client", c.id, "error", err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		if err := h.handle(data); err != nil {
			h.logger.Warn("Ignoring client message", "client", c.id, "error", err)
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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

// --- inbound ---

var errUnknownType = errors.New("unknown message type")

// handle applies one message from a browser.
func (h *Hub) handle(data []byte) error {
	var m inbound
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	switch m.Type {
	case "fix":
		fix := position.Fix{
			Point:    geo.Point{Lat: m.Lat, Lon: m.Lon},
			Speed:    m.Speed,
			Heading:  m.Heading,
			Accuracy: m.Accuracy,
		}
		if m.Timestamp > 0 {
			fix.Timestamp = time.UnixMilli(m.Timestamp)
		}
		if !fix.Point.Valid() {
			return fmt.Errorf("invalid coordinate %v,%v", m.Lat, m.Lon)
		}
		h.feed.Publish(fix)
	case "error":
		h.feed.PublishError(errorFromCode(m.Code, m.Message))
	default:
		return fmt.Errorf("%w: %q", errUnknownType, m.Type)
	}
	return nil
}

// errorFromCode maps GeolocationPositionError codes. Code 0 means the
// browser has no geolocation at all.
func errorFromCode(code int, msg string) error {
	switch code {
	case 0:
		return position.ErrUnavailable
	case 1:
		return position.ErrPermissionDenied
	case 2:
		return position.ErrPositionUnavailable
	case 3:
		return position.ErrTimeout
	default:
		return fmt.Errorf("geolocation error %d: %s", code, msg)
	}
}

// marshal encodes an outbound message. A message that cannot be encoded
// (a non-finite number) is logged and dropped.
func (h *Hub) marshal(v any) ([]byte, bool) {
	b, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("Dropped outbound message", "type", fmt.Sprintf("%T", v), "error", err)
		return nil, false
	}
	return b, true
}
