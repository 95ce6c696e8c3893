package analytics

import (
	"context"
	"time"
)

// Store is the read/write contract the pipeline needs from the relational
// store. Aggregate reads cover a trailing window ending now; range reads
// return rows ordered by time ascending.
type Store interface {
	// Sampler aggregates.
	ActiveConversations(ctx context.Context, window time.Duration) (int, error)
	AverageLatency(ctx context.Context, window time.Duration) (float64, error)
	AudioQuality(ctx context.Context, window time.Duration) (float64, error)
	AverageSentiment(ctx context.Context, window time.Duration) (float64, error)
	EscalationRate(ctx context.Context, window time.Duration) (float64, error)
	ConversionRate(ctx context.Context, window time.Duration) (float64, error)

	// Business rollup aggregates.
	LeadsGenerated(ctx context.Context, window time.Duration) (int, error)
	AppointmentsScheduled(ctx context.Context, window time.Duration) (int, error)
	IssuesResolved(ctx context.Context, window time.Duration) (int, error)
	CustomerSatisfaction(ctx context.Context, window time.Duration) (float64, error)
	AverageCallDuration(ctx context.Context, window time.Duration) (float64, error)

	// Escalation aggregation.
	EscalationsByType(ctx context.Context, window time.Duration) ([]EscalationData, error)

	// Archiver contract.
	SaveSnapshot(ctx context.Context, sample ConversationMetrics) error
	SaveSentiment(ctx context.Context, data SentimentData) error
	MetricsRange(ctx context.Context, from time.Time) ([]ConversationMetrics, error)
	SentimentRange(ctx context.Context, from time.Time) ([]SentimentData, error)
}

// Cache memoizes expensive aggregates for a short TTL. A failed or absent
// cache behaves as a miss; callers fall through to the store.
type Cache interface {
	GetFloat(ctx context.Context, key string) (float64, bool)
	SetFloat(ctx context.Context, key string, value float64, ttl time.Duration)
}

// Broadcaster pushes pipeline state changes to all connected realtime
// clients. Implementations must not block the caller on slow clients.
type Broadcaster interface {
	BroadcastMetrics(sample ConversationMetrics)
	BroadcastAudioMetrics(metrics AudioMetrics)
	BroadcastSentiment(data SentimentData)
	BroadcastBusinessMetrics(metrics BusinessMetrics)
	BroadcastEscalations(data []EscalationData)
	BroadcastAlert(alert PerformanceAlert)
}

// Windows configures the trailing window of each sampled metric
// independently. The escalation and conversion windows intentionally differ;
// treat each as its own knob rather than assuming a shared period.
type Windows struct {
	ActiveConversations time.Duration
	Latency             time.Duration
	AudioQuality        time.Duration
	Sentiment           time.Duration
	EscalationRate      time.Duration
	ConversionRate      time.Duration
	BusinessRollup      time.Duration
	Escalations         time.Duration
}

// DefaultWindows returns the reference trailing windows.
func DefaultWindows() Windows {
	return Windows{
		ActiveConversations: 10 * time.Minute,
		Latency:             5 * time.Minute,
		AudioQuality:        10 * time.Minute,
		Sentiment:           10 * time.Minute,
		EscalationRate:      time.Hour,
		ConversionRate:      24 * time.Hour,
		BusinessRollup:      24 * time.Hour,
		Escalations:         24 * time.Hour,
	}
}

// Fallback values used when an adapter read fails mid-sample.
const (
	fallbackAudioQuality = 0.8
	fallbackSatisfaction = 4.0
)
