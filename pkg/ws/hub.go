package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"callpulse-server/pkg/analytics"
	"callpulse-server/pkg/metrics"
)

const (
	initialMetricsCount   = 50
	initialSentimentCount = 50
	initialAlertsCount    = 10
)

// State provides the in-memory pipeline state used to seed new clients.
// Implemented by analytics.Pipeline.
type State interface {
	RecentMetrics(n int) []analytics.ConversationMetrics
	RecentSentiment(n int) []analytics.SentimentData
	RecentAlerts(n int) []analytics.PerformanceAlert
}

// History serves the durable range queries behind request_historical.
// Implemented by the archiver's store.
type History interface {
	MetricsRange(ctx context.Context, from time.Time) ([]analytics.ConversationMetrics, error)
	SentimentRange(ctx context.Context, from time.Time) ([]analytics.SentimentData, error)
}

// Hub is the realtime client registry and broadcaster. It pushes every
// pipeline state change to all connected clients and drops clients that
// cannot keep up, without ever blocking the publishing side.
type Hub struct {
	logger   *logrus.Logger
	upgrader websocket.Upgrader

	state   State
	history History

	clients   map[*Client]bool
	clientsMu sync.RWMutex

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte

	pingInterval time.Duration
	done         chan struct{}
	closeOnce    sync.Once
}

// NewHub creates a hub. Call Run before serving connections.
func NewHub(logger *logrus.Logger, state State, history History) *Hub {
	metrics.Init()
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		state:        state,
		history:      history,
		clients:      make(map[*Client]bool),
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		broadcast:    make(chan []byte, 256),
		pingInterval: 54 * time.Second,
		done:         make(chan struct{}),
	}
}

// SetState wires the pipeline state source. The hub and the pipeline
// reference each other, so one side is attached after construction; call
// this before Run.
func (h *Hub) SetState(state State) {
	h.state = state
}

// Run starts the hub's event loop.
func (h *Hub) Run() {
	go h.run()
}

// Close terminates the event loop and disconnects all clients.
func (h *Hub) Close() error {
	h.closeOnce.Do(func() { close(h.done) })
	return nil
}

func (h *Hub) run() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case client := <-h.register:
			h.clientsMu.Lock()
			h.clients[client] = true
			metrics.ConnectedClients.Set(float64(len(h.clients)))
			h.clientsMu.Unlock()
			h.logger.WithField("session_id", client.sessionID).Debug("Realtime client registered")

		case client := <-h.unregister:
			h.cleanupClients([]*Client{client})

		case payload := <-h.broadcast:
			if stale := h.sendToAll(payload); len(stale) > 0 {
				h.cleanupClients(stale)
			}

		case <-ticker.C:
			if stale := h.pingAll(); len(stale) > 0 {
				h.cleanupClients(stale)
			}

		case <-h.done:
			h.closeAllClients()
			return
		}
	}
}

// sendToAll queues a payload on every client without blocking; clients whose
// send buffer is full are reported as stale.
func (h *Hub) sendToAll(payload []byte) []*Client {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()

	var stale []*Client
	for client := range h.clients {
		select {
		case client.send <- payload:
		default:
			metrics.BroadcastsDropped.Inc()
			stale = append(stale, client)
		}
	}
	return stale
}

// pingAll queues an application-level ping on every client, which doubles as
// a staleness probe for clients with a saturated send buffer.
func (h *Hub) pingAll() []*Client {
	payload, _ := json.Marshal(Message{Type: "ping", Timestamp: time.Now().UTC()})
	return h.sendToAll(payload)
}

// cleanupClients removes clients from the registry and signals their pumps
// to exit. The send channel stays open so a reply racing the removal cannot
// panic. Broadcast to the remaining clients continues uninterrupted.
func (h *Hub) cleanupClients(clients []*Client) {
	if len(clients) == 0 {
		return
	}

	h.clientsMu.Lock()
	for _, client := range clients {
		if _, ok := h.clients[client]; ok {
			delete(h.clients, client)
			client.close()
			h.logger.WithField("session_id", client.sessionID).Debug("Realtime client unregistered")
		}
	}
	metrics.ConnectedClients.Set(float64(len(h.clients)))
	h.clientsMu.Unlock()
}

func (h *Hub) closeAllClients() {
	h.clientsMu.Lock()
	for client := range h.clients {
		delete(h.clients, client)
		client.close()
	}
	metrics.ConnectedClients.Set(0)
	h.clientsMu.Unlock()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// publish marshals one typed message and queues it for broadcast. A full
// broadcast channel drops the message rather than blocking the pipeline.
func (h *Hub) publish(msgType string, data interface{}) {
	payload, err := json.Marshal(Message{
		Type:      msgType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	})
	if err != nil {
		h.logger.WithError(err).WithField("type", msgType).Error("Failed to marshal broadcast message")
		return
	}

	select {
	case h.broadcast <- payload:
	default:
		metrics.BroadcastsDropped.Inc()
		h.logger.WithField("type", msgType).Warn("Broadcast channel full, dropping message")
	}
}

// BroadcastMetrics implements analytics.Broadcaster.
func (h *Hub) BroadcastMetrics(sample analytics.ConversationMetrics) {
	h.publish(TypeMetricsUpdate, sample)
}

// BroadcastAudioMetrics implements analytics.Broadcaster.
func (h *Hub) BroadcastAudioMetrics(m analytics.AudioMetrics) {
	h.publish(TypeAudioMetrics, m)
}

// BroadcastSentiment implements analytics.Broadcaster.
func (h *Hub) BroadcastSentiment(data analytics.SentimentData) {
	h.publish(TypeSentimentUpdate, data)
}

// BroadcastBusinessMetrics implements analytics.Broadcaster.
func (h *Hub) BroadcastBusinessMetrics(m analytics.BusinessMetrics) {
	h.publish(TypeBusinessMetrics, m)
}

// BroadcastEscalations implements analytics.Broadcaster.
func (h *Hub) BroadcastEscalations(data []analytics.EscalationData) {
	h.publish(TypeEscalationUpdate, data)
}

// BroadcastAlert implements analytics.Broadcaster.
func (h *Hub) BroadcastAlert(alert analytics.PerformanceAlert) {
	h.publish(TypePerformanceAlert, alert)
}

// initialData assembles the connect-time snapshot for one client.
func (h *Hub) initialData() InitialData {
	return InitialData{
		Metrics:   h.state.RecentMetrics(initialMetricsCount),
		Sentiment: h.state.RecentSentiment(initialSentimentCount),
		Alerts:    h.state.RecentAlerts(initialAlertsCount),
	}
}
