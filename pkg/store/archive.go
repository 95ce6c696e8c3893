package store

import (
	"context"
	"fmt"
	"time"

	"callpulse-server/pkg/analytics"
)

// snapshotRow maps one archived metric sample.
type snapshotRow struct {
	Timestamp           time.Time `db:"ts"`
	ActiveConversations int       `db:"active_conversations"`
	AverageLatency      float64   `db:"average_latency"`
	AudioQuality        float64   `db:"audio_quality"`
	SentimentScore      float64   `db:"sentiment_score"`
	EscalationRate      float64   `db:"escalation_rate"`
	ConversionRate      float64   `db:"conversion_rate"`
}

// sentimentRow maps one archived sentiment update.
type sentimentRow struct {
	Timestamp      time.Time `db:"ts"`
	Sentiment      float64   `db:"sentiment"`
	EmotionalState string    `db:"emotional_state"`
	EscalationRisk float64   `db:"escalation_risk"`
	Confidence     float64   `db:"confidence"`
}

// SaveSnapshot persists one metric sample keyed by its timestamp.
func (s *PostgresStore) SaveSnapshot(ctx context.Context, sample analytics.ConversationMetrics) error {
	ctx, cancel := s.getContext(ctx)
	defer cancel()

	query := `
		INSERT INTO metric_snapshots (
			ts, active_conversations, average_latency, audio_quality,
			sentiment_score, escalation_rate, conversion_rate
		) VALUES (:ts, :active_conversations, :average_latency, :audio_quality,
			:sentiment_score, :escalation_rate, :conversion_rate)
		ON CONFLICT (ts) DO NOTHING
	`

	_, err := s.db.NamedExecContext(ctx, query, snapshotRow{
		Timestamp:           sample.Timestamp,
		ActiveConversations: sample.ActiveConversations,
		AverageLatency:      sample.AverageLatency,
		AudioQuality:        sample.AudioQuality,
		SentimentScore:      sample.SentimentScore,
		EscalationRate:      sample.EscalationRate,
		ConversionRate:      sample.ConversionRate,
	})
	if err != nil {
		return fmt.Errorf("failed to insert metric snapshot: %w", err)
	}
	return nil
}

// SaveSentiment persists one sentiment update.
func (s *PostgresStore) SaveSentiment(ctx context.Context, data analytics.SentimentData) error {
	ctx, cancel := s.getContext(ctx)
	defer cancel()

	query := `
		INSERT INTO sentiment_events (ts, sentiment, emotional_state, escalation_risk, confidence)
		VALUES (:ts, :sentiment, :emotional_state, :escalation_risk, :confidence)
	`

	_, err := s.db.NamedExecContext(ctx, query, sentimentRow{
		Timestamp:      data.Timestamp,
		Sentiment:      data.Sentiment,
		EmotionalState: data.EmotionalState,
		EscalationRisk: data.EscalationRisk,
		Confidence:     data.Confidence,
	})
	if err != nil {
		return fmt.Errorf("failed to insert sentiment event: %w", err)
	}
	return nil
}

// MetricsRange returns archived samples from the given time onward, ordered
// by time ascending.
func (s *PostgresStore) MetricsRange(ctx context.Context, from time.Time) ([]analytics.ConversationMetrics, error) {
	ctx, cancel := s.getContext(ctx)
	defer cancel()

	query := `
		SELECT ts, active_conversations, average_latency, audio_quality,
		       sentiment_score, escalation_rate, conversion_rate
		FROM metric_snapshots
		WHERE ts >= $1
		ORDER BY ts ASC
	`

	var rows []snapshotRow
	if err := s.db.SelectContext(ctx, &rows, query, from); err != nil {
		return nil, fmt.Errorf("failed to query metric snapshots: %w", err)
	}

	result := make([]analytics.ConversationMetrics, 0, len(rows))
	for _, row := range rows {
		result = append(result, analytics.ConversationMetrics{
			Timestamp:           row.Timestamp,
			ActiveConversations: row.ActiveConversations,
			AverageLatency:      row.AverageLatency,
			AudioQuality:        row.AudioQuality,
			SentimentScore:      row.SentimentScore,
			EscalationRate:      row.EscalationRate,
			ConversionRate:      row.ConversionRate,
		})
	}
	return result, nil
}

// SentimentRange returns archived sentiment updates from the given time
// onward, ordered by time ascending.
func (s *PostgresStore) SentimentRange(ctx context.Context, from time.Time) ([]analytics.SentimentData, error) {
	ctx, cancel := s.getContext(ctx)
	defer cancel()

	query := `
		SELECT ts, sentiment, emotional_state, escalation_risk, confidence
		FROM sentiment_events
		WHERE ts >= $1
		ORDER BY ts ASC
	`

	var rows []sentimentRow
	if err := s.db.SelectContext(ctx, &rows, query, from); err != nil {
		return nil, fmt.Errorf("failed to query sentiment events: %w", err)
	}

	result := make([]analytics.SentimentData, 0, len(rows))
	for _, row := range rows {
		result = append(result, analytics.SentimentData{
			Timestamp:      row.Timestamp,
			Sentiment:      row.Sentiment,
			EmotionalState: row.EmotionalState,
			EscalationRisk: row.EscalationRisk,
			Confidence:     row.Confidence,
		})
	}
	return result, nil
}
