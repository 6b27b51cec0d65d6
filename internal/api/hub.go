package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/qubitrhythm/disensor/internal/live"
)

const (
	clientBufferSize = 16
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = pongWait * 9 / 10
	maxInboundBytes  = 512
)

// LiveMessage is pushed to websocket subscribers after every recompute.
type LiveMessage struct {
	LeaderboardResponse
	Activity []live.ActivityEntry `json:"activity"`
}

func newLiveMessage(view live.View) LiveMessage {
	activity := view.Activity
	if activity == nil {
		activity = []live.ActivityEntry{}
	}
	return LiveMessage{LeaderboardResponse: newLeaderboardResponse(view), Activity: activity}
}

type hubClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Hub fans views out to websocket subscribers. A subscriber whose buffer is
// full is disconnected rather than allowed to stall the broadcaster.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*hubClient
	closed   bool
	upgrader websocket.Upgrader
	gauge    prometheus.Gauge
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// NewHub creates a hub. gauge tracks connected clients and may be nil.
func NewHub(logger *slog.Logger, gauge prometheus.Gauge) *Hub {
	if logger == nil {
		logger = log
	}
	return &Hub{
		clients: make(map[string]*hubClient),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		gauge:  gauge,
		logger: logger,
	}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast encodes view once and queues it for every client.
func (h *Hub) Broadcast(view live.View) error {
	payload, err := json.Marshal(newLiveMessage(view))
	if err != nil {
		return err
	}

	var slow []string
	h.mu.RLock()
	for id, client := range h.clients {
		select {
		case client.send <- payload:
		default:
			slow = append(slow, id)
		}
	}
	h.mu.RUnlock()

	for _, id := range slow {
		h.logger.Warn("dropping slow live client", "client_id", id)
		h.remove(id)
	}
	return nil
}

// Serve upgrades the request and streams views until the client goes away.
// initial, when present, is sent before any broadcast.
func (h *Hub) Serve(c echo.Context, initial *live.View) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote an HTTP error to the client.
		h.logger.Debug("websocket upgrade failed", "error", err)
		return nil
	}

	client := &hubClient{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan []byte, clientBufferSize),
	}
	if initial != nil {
		if payload, err := json.Marshal(newLiveMessage(*initial)); err == nil {
			client.send <- payload
		}
	}

	if !h.add(client) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return nil
	}
	h.logger.Info("live client connected", "client_id", client.id, "ip", c.RealIP())

	go func() {
		defer h.wg.Done()
		h.writePump(client)
	}()
	h.readPump(client)

	h.logger.Info("live client disconnected", "client_id", client.id)
	return nil
}

// Close disconnects every client and waits for their writers to finish.
// Hijacked connections are not covered by http.Server.Shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	h.mu.Unlock()

	for _, id := range ids {
		h.remove(id)
	}
	h.wg.Wait()
}

// add registers client and accounts for its writer goroutine.
func (h *Hub) add(client *hubClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[client.id] = client
	h.wg.Add(1)
	if h.gauge != nil {
		h.gauge.Inc()
	}
	return true
}

// remove unregisters a client and closes its send channel, which ends its writer.
func (h *Hub) remove(id string) {
	h.mu.Lock()
	client, ok := h.clients[id]
	if ok {
		delete(h.clients, id)
	}
	h.mu.Unlock()

	if !ok {
		return
	}
	close(client.send)
	if h.gauge != nil {
		h.gauge.Dec()
	}
}

// readPump discards inbound messages; it exists to process control frames
// and notice when the peer disconnects.
func (h *Hub) readPump(client *hubClient) {
	defer h.remove(client.id)

	client.conn.SetReadLimit(maxInboundBytes)
	_ = client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("live client read error", "client_id", client.id, "error", err)
			}
			return
		}
	}
}

func (h *Hub) writePump(client *hubClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = client.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-client.send:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				h.logger.Debug("live client write failed", "client_id", client.id, "error", err)
				return
			}
		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
