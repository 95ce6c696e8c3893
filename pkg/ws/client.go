package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"callpulse-server/pkg/analytics"
	"callpulse-server/pkg/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	historyTimeout = 10 * time.Second
)

// Client is one connected realtime subscriber. The send channel is never
// closed; teardown is signalled through done so a reply racing a disconnect
// can never hit a closed channel.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	sessionID string

	mu       sync.RWMutex
	channels []string // advisory channel selection from subscribe messages
}

// close signals both pumps to exit. Safe to call more than once.
func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// ServeHTTP upgrades the request, registers the client and seeds it with the
// initial snapshot.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Error("Failed to upgrade to WebSocket")
		return
	}

	client := &Client{
		hub:       h,
		conn:      conn,
		send:      make(chan []byte, 256),
		done:      make(chan struct{}),
		sessionID: uuid.New().String(),
	}

	h.register <- client

	client.sendMessage(TypeInitialData, h.initialData())

	go client.writePump()
	go client.readPump()
}

// sendMessage queues one typed message for this client only.
func (c *Client) sendMessage(msgType string, data interface{}) {
	payload, err := json.Marshal(Message{
		Type:      msgType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	})
	if err != nil {
		c.hub.logger.WithError(err).WithField("type", msgType).Error("Failed to marshal client message")
		return
	}

	select {
	case <-c.done:
		return
	default:
	}

	select {
	case c.send <- payload:
	default:
		metrics.BroadcastsDropped.Inc()
	}
}

// readPump consumes inbound frames until the connection drops, then
// unregisters the client.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.WithError(err).Debug("WebSocket read error")
			}
			return
		}
		c.handleMessage(payload)
	}
}

// writePump flushes queued messages and keeps the connection alive with
// protocol pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.hub.pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// handleMessage dispatches one inbound client frame. Unparseable frames are
// logged and ignored; they never terminate the connection.
func (c *Client) handleMessage(payload []byte) {
	var msg clientMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		c.hub.logger.WithError(err).Debug("Failed to parse client message")
		return
	}

	switch msg.Type {
	case "subscribe":
		c.mu.Lock()
		c.channels = msg.Channels
		c.mu.Unlock()
		c.hub.logger.WithFields(logrus.Fields{
			"session_id": c.sessionID,
			"channels":   msg.Channels,
		}).Debug("Client updated channel subscription")

	case "request_historical":
		c.handleHistorical(msg.Range)

	case "ping":
		c.sendMessage("pong", nil)

	default:
		c.hub.logger.WithField("type", msg.Type).Debug("Unknown message type from client")
	}
}

// handleHistorical serves one named-range query from the archiver's store.
// Unknown range names fall back to the one-hour window; a store failure is
// surfaced to this client only.
func (c *Client) handleHistorical(rangeName string) {
	name, window := resolveRange(rangeName)
	metrics.HistoricalQueries.WithLabelValues(name).Inc()

	ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
	defer cancel()

	from := time.Now().UTC().Add(-window)

	metricsData, err := c.hub.history.MetricsRange(ctx, from)
	if err != nil {
		c.hub.logger.WithError(err).WithField("range", name).Warn("Historical metrics query failed")
		c.sendMessage(TypeError, ErrorData{Message: "failed to load historical data"})
		return
	}

	sentimentData, err := c.hub.history.SentimentRange(ctx, from)
	if err != nil {
		c.hub.logger.WithError(err).WithField("range", name).Warn("Historical sentiment query failed")
		c.sendMessage(TypeError, ErrorData{Message: "failed to load historical data"})
		return
	}

	if metricsData == nil {
		metricsData = make([]analytics.ConversationMetrics, 0)
	}
	if sentimentData == nil {
		sentimentData = make([]analytics.SentimentData, 0)
	}

	c.sendMessage(TypeHistoricalData, HistoricalData{
		Range:     name,
		Metrics:   metricsData,
		Sentiment: sentimentData,
	})
}
