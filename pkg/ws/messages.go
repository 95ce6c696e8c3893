package ws

import (
	"time"

	"callpulse-server/pkg/analytics"
)

// Outbound message types pushed to realtime clients.
const (
	TypeInitialData      = "initial_data"
	TypeMetricsUpdate    = "metrics_update"
	TypeAudioMetrics     = "audio_metrics"
	TypeSentimentUpdate  = "sentiment_update"
	TypeBusinessMetrics  = "business_metrics"
	TypeEscalationUpdate = "escalation_update"
	TypePerformanceAlert = "performance_alert"
	TypeHistoricalData   = "historical_data"
	TypeError            = "error"
)

// Message is the envelope for every frame sent to a client.
type Message struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// InitialData is sent once on connect so a late-joining client can render
// immediately. The slices are always non-nil so they marshal as empty
// arrays, never null.
type InitialData struct {
	Metrics   []analytics.ConversationMetrics `json:"metrics"`
	Sentiment []analytics.SentimentData       `json:"sentiment"`
	Alerts    []analytics.PerformanceAlert    `json:"alerts"`
}

// HistoricalData answers one request_historical message.
type HistoricalData struct {
	Range     string                          `json:"range"`
	Metrics   []analytics.ConversationMetrics `json:"metrics"`
	Sentiment []analytics.SentimentData       `json:"sentiment"`
}

// ErrorData is sent to the requesting client only; it never terminates the
// connection.
type ErrorData struct {
	Message string `json:"message"`
}

// clientMessage is an inbound frame from a client.
type clientMessage struct {
	Type     string   `json:"type"`
	Channels []string `json:"channels,omitempty"`
	Range    string   `json:"range,omitempty"`
}

// namedRanges maps historical range names to trailing window lengths.
var namedRanges = map[string]time.Duration{
	"1h":  time.Hour,
	"6h":  6 * time.Hour,
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
}

const defaultRange = "1h"

// resolveRange maps a requested range name to its window, falling back to
// one hour for unknown values.
func resolveRange(name string) (string, time.Duration) {
	if window, ok := namedRanges[name]; ok {
		return name, window
	}
	return defaultRange, namedRanges[defaultRange]
}
