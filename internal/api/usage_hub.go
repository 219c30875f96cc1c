// Package api provides the HTTP surface of the chat relay server.
// This file maintains WebSocket connections and broadcasts per-request usage
// samples to dashboard clients.
package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/sparkmatch/chatrelay/internal/usage"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // metrics dashboard runs on a different origin in dev
	},
}

// usageEvent is the wire format broadcast to connected clients.
type usageEvent struct {
	Timestamp       int64   `json:"timestamp"`
	RequestID       string  `json:"request_id"`
	Model           string  `json:"model"`
	Status          string  `json:"status"`
	InputTokens     int64   `json:"input_tokens"`
	CacheReadTokens int64   `json:"cache_read_tokens"`
	OutputTokens    int64   `json:"output_tokens"`
	CacheHitRate    float64 `json:"cache_hit_rate"`
	SavingsUSD      float64 `json:"savings_usd"`
	LatencyMs       int64   `json:"latency_ms"`
}

// UsageHub fans usage samples out to WebSocket clients.
type UsageHub struct {
	mu      sync.RWMutex
	clients map[*usageClient]bool
}

type usageClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewUsageHub creates an empty hub.
func NewUsageHub() *UsageHub {
	return &UsageHub{clients: make(map[*usageClient]bool)}
}

// Sink returns a usage sink that broadcasts each sample. Slow clients are
// dropped rather than allowed to block the accounting path.
func (h *UsageHub) Sink() usage.Sink {
	return func(sample usage.Sample, breakdown usage.CostBreakdown) {
		event := usageEvent{
			Timestamp:       time.Now().UnixMilli(),
			RequestID:       sample.RequestID,
			Model:           sample.Model,
			Status:          sample.Status,
			InputTokens:     sample.Stats.InputTokens,
			CacheReadTokens: sample.Stats.CacheReadTokens,
			OutputTokens:    sample.Stats.OutputTokens,
			CacheHitRate:    sample.Stats.CacheHitRate(),
			SavingsUSD:      breakdown.Savings,
			LatencyMs:       sample.Latency.Milliseconds(),
		}

		payload, err := json.Marshal(event)
		if err != nil {
			return
		}
		h.broadcast(payload)
	}
}

func (h *UsageHub) broadcast(payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		select {
		case client.send <- payload:
		default:
			// Client is not keeping up; it will be removed by its writer.
		}
	}
}

// Handler upgrades the connection and streams usage events.
func (h *UsageHub) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Debugf("websocket upgrade failed: %v", err)
			return
		}

		client := &usageClient{
			conn: conn,
			send: make(chan []byte, 64),
		}

		h.mu.Lock()
		h.clients[client] = true
		total := len(h.clients)
		h.mu.Unlock()
		log.Debugf("usage feed client connected, total: %d", total)

		go h.writePump(client)
		go h.readPump(client)
	}
}

func (h *UsageHub) writePump(client *usageClient) {
	defer h.remove(client)

	for payload := range client.send {
		client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := client.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}

// readPump discards inbound frames; the feed is one-directional. Reading is
// still required so close and ping frames are processed.
func (h *UsageHub) readPump(client *usageClient) {
	defer h.remove(client)

	client.conn.SetReadLimit(512)
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *UsageHub) remove(client *usageClient) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	h.mu.Unlock()
	_ = client.conn.Close()
}
