package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"tradesim/internal/model"
	"tradesim/internal/notification"
)

const streamSendBuffer = 256

var streamUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// StreamHub fans out live trading events to WebSocket clients: executed
// trades, equity snapshots, and risk alerts. Each client gets a buffered
// send queue; clients that cannot keep up are dropped rather than allowed
// to stall the trading loop. The latest event of each type is replayed to
// newly connected clients so a dashboard renders immediately.
//
// StreamHub implements notification.Notifier, so it can sit alongside the
// log and webhook backends in a notification.Multi.
type StreamHub struct {
	mu      sync.Mutex
	clients map[*streamClient]bool
	latest  map[string]json.RawMessage
	seq     int64
}

type streamClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewStreamHub creates an empty hub. Register it on the router via
// Deps.Stream and as a notification backend for alert streaming.
func NewStreamHub() *StreamHub {
	return &StreamHub{
		clients: make(map[*streamClient]bool),
		latest:  make(map[string]json.RawMessage),
	}
}

// Send implements notification.Notifier by broadcasting the alert to all
// connected clients. It never fails; a stream with no listeners is fine.
func (h *StreamHub) Send(ctx context.Context, alert notification.Alert) error {
	h.Broadcast("alert", alert)
	return nil
}

// BroadcastTrade streams an executed trade.
func (h *StreamHub) BroadcastTrade(t model.Trade) {
	h.Broadcast("trade", t)
}

// BroadcastEquity streams a portfolio equity snapshot.
func (h *StreamHub) BroadcastEquity(p model.EquityPoint) {
	h.Broadcast("equity", p)
}

// Broadcast wraps payload in an envelope and sends it to every client.
// Slow clients have the message dropped; the envelope seq lets them detect
// the gap.
func (h *StreamHub) Broadcast(eventType string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[api] stream marshal %s: %v", eventType, err)
		return
	}

	h.mu.Lock()
	h.seq++
	envelope, err := json.Marshal(map[string]interface{}{
		"type": eventType,
		"data": json.RawMessage(data),
		"ts":   time.Now().UTC().Format(time.RFC3339Nano),
		"seq":  h.seq,
	})
	if err != nil {
		h.mu.Unlock()
		return
	}
	h.latest[eventType] = envelope
	for c := range h.clients {
		select {
		case c.send <- envelope:
		default:
		}
	}
	h.mu.Unlock()
}

// ClientCount returns the number of connected clients.
func (h *StreamHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// HandleWS upgrades the request and registers the client.
func (h *StreamHub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := streamUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[api] stream upgrade failed: %v", err)
		return
	}

	c := &streamClient{conn: conn, send: make(chan []byte, streamSendBuffer)}

	h.mu.Lock()
	h.clients[c] = true
	count := len(h.clients)
	// Replay the latest event of each type so the client has current state.
	for _, envelope := range h.latest {
		select {
		case c.send <- envelope:
		default:
		}
	}
	h.mu.Unlock()

	log.Printf("[api] stream client connected (%d total)", count)

	go c.writePump()
	go h.readPump(c)
}

func (h *StreamHub) remove(c *streamClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// readPump consumes inbound frames to detect disconnect. Clients do not
// send application messages on this socket.
func (h *StreamHub) readPump(c *streamClient) {
	defer func() {
		h.remove(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(90 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(90 * time.Second))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *streamClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
