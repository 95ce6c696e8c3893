package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"callpulse-server/pkg/analytics"
)

// Trailing-window aggregate reads consumed by the sampler and the business
// rollup. Every query is bounded by a fixed time predicate ending now; the
// window for each metric is an independently configured parameter.

// ActiveConversations counts conversations with activity inside the window.
func (s *PostgresStore) ActiveConversations(ctx context.Context, window time.Duration) (int, error) {
	ctx, cancel := s.getContext(ctx)
	defer cancel()

	var count int
	query := `
		SELECT COUNT(*) FROM conversations
		WHERE status = 'active'
		  AND started_at >= NOW() - make_interval(secs => $1)
	`
	if err := s.db.QueryRowContext(ctx, query, window.Seconds()).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count active conversations: %w", err)
	}
	return count, nil
}

// AverageLatency returns the mean assistant response latency in milliseconds
// over the window, or 0 when no messages were recorded.
func (s *PostgresStore) AverageLatency(ctx context.Context, window time.Duration) (float64, error) {
	query := `
		SELECT AVG(latency_ms) FROM messages
		WHERE role = 'assistant'
		  AND latency_ms IS NOT NULL
		  AND created_at >= NOW() - make_interval(secs => $1)
	`
	return s.nullableFloat(ctx, query, 0, window)
}

// AudioQuality returns the mean audio quality score over the window, or the
// nominal 0.8 when no measurements exist yet.
func (s *PostgresStore) AudioQuality(ctx context.Context, window time.Duration) (float64, error) {
	query := `
		SELECT AVG(audio_quality) FROM messages
		WHERE audio_quality IS NOT NULL
		  AND created_at >= NOW() - make_interval(secs => $1)
	`
	return s.nullableFloat(ctx, query, 0.8, window)
}

// AverageSentiment returns the mean message sentiment over the window.
func (s *PostgresStore) AverageSentiment(ctx context.Context, window time.Duration) (float64, error) {
	query := `
		SELECT AVG(sentiment_score) FROM messages
		WHERE sentiment_score IS NOT NULL
		  AND created_at >= NOW() - make_interval(secs => $1)
	`
	return s.nullableFloat(ctx, query, 0, window)
}

// EscalationRate returns escalated conversations as a share of all
// conversations started inside the window.
func (s *PostgresStore) EscalationRate(ctx context.Context, window time.Duration) (float64, error) {
	ctx, cancel := s.getContext(ctx)
	defer cancel()

	var escalated, total int
	query := `
		SELECT COUNT(*) FILTER (WHERE escalated), COUNT(*)
		FROM conversations
		WHERE started_at >= NOW() - make_interval(secs => $1)
	`
	if err := s.db.QueryRowContext(ctx, query, window.Seconds()).Scan(&escalated, &total); err != nil {
		return 0, fmt.Errorf("failed to compute escalation rate: %w", err)
	}
	if total == 0 {
		return 0, nil
	}
	return float64(escalated) / float64(total), nil
}

// ConversionRate returns converted conversations as a share of completed
// conversations inside the window.
func (s *PostgresStore) ConversionRate(ctx context.Context, window time.Duration) (float64, error) {
	ctx, cancel := s.getContext(ctx)
	defer cancel()

	var converted, total int
	query := `
		SELECT COUNT(*) FILTER (WHERE converted), COUNT(*)
		FROM conversations
		WHERE status = 'completed'
		  AND ended_at >= NOW() - make_interval(secs => $1)
	`
	if err := s.db.QueryRowContext(ctx, query, window.Seconds()).Scan(&converted, &total); err != nil {
		return 0, fmt.Errorf("failed to compute conversion rate: %w", err)
	}
	if total == 0 {
		return 0, nil
	}
	return float64(converted) / float64(total), nil
}

// LeadsGenerated counts lead_generated business events inside the window.
func (s *PostgresStore) LeadsGenerated(ctx context.Context, window time.Duration) (int, error) {
	return s.businessEventCount(ctx, "lead_generated", window)
}

// AppointmentsScheduled counts appointment_scheduled business events inside
// the window.
func (s *PostgresStore) AppointmentsScheduled(ctx context.Context, window time.Duration) (int, error) {
	return s.businessEventCount(ctx, "appointment_scheduled", window)
}

// IssuesResolved counts issue_resolved business events inside the window.
func (s *PostgresStore) IssuesResolved(ctx context.Context, window time.Duration) (int, error) {
	return s.businessEventCount(ctx, "issue_resolved", window)
}

// CustomerSatisfaction returns the mean satisfaction score of conversations
// ended inside the window, or 4.0 when none carry a score.
func (s *PostgresStore) CustomerSatisfaction(ctx context.Context, window time.Duration) (float64, error) {
	query := `
		SELECT AVG(satisfaction_score) FROM conversations
		WHERE satisfaction_score IS NOT NULL
		  AND ended_at >= NOW() - make_interval(secs => $1)
	`
	return s.nullableFloat(ctx, query, 4.0, window)
}

// AverageCallDuration returns the mean duration in seconds of conversations
// completed inside the window.
func (s *PostgresStore) AverageCallDuration(ctx context.Context, window time.Duration) (float64, error) {
	query := `
		SELECT AVG(duration_seconds) FROM conversations
		WHERE status = 'completed'
		  AND duration_seconds IS NOT NULL
		  AND ended_at >= NOW() - make_interval(secs => $1)
	`
	return s.nullableFloat(ctx, query, 0, window)
}

// EscalationsByType aggregates escalations grouped by type over the window.
func (s *PostgresStore) EscalationsByType(ctx context.Context, window time.Duration) ([]analytics.EscalationData, error) {
	ctx, cancel := s.getContext(ctx)
	defer cancel()

	query := `
		SELECT type,
		       COUNT(*) AS count,
		       COALESCE(AVG(response_time_seconds), 0) AS avg_response_time,
		       COALESCE(AVG(CASE WHEN resolved THEN 1.0 ELSE 0.0 END), 0) AS resolution_rate
		FROM escalations
		WHERE created_at >= NOW() - make_interval(secs => $1)
		GROUP BY type
		ORDER BY count DESC, type ASC
	`

	rows, err := s.db.QueryxContext(ctx, query, window.Seconds())
	if err != nil {
		return nil, fmt.Errorf("failed to query escalations: %w", err)
	}
	defer rows.Close()

	result := make([]analytics.EscalationData, 0)
	for rows.Next() {
		var data analytics.EscalationData
		if err := rows.Scan(&data.Type, &data.Count, &data.AverageResponseTime, &data.ResolutionRate); err != nil {
			return nil, fmt.Errorf("failed to scan escalation row: %w", err)
		}
		result = append(result, data)
	}
	return result, rows.Err()
}

func (s *PostgresStore) businessEventCount(ctx context.Context, eventType string, window time.Duration) (int, error) {
	ctx, cancel := s.getContext(ctx)
	defer cancel()

	var count int
	query := `
		SELECT COUNT(*) FROM business_events
		WHERE event_type = $1
		  AND created_at >= NOW() - make_interval(secs => $2)
	`
	if err := s.db.QueryRowContext(ctx, query, eventType, window.Seconds()).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count %s events: %w", eventType, err)
	}
	return count, nil
}

// nullableFloat runs a single-value aggregate and substitutes def when the
// aggregate is NULL (no qualifying rows).
func (s *PostgresStore) nullableFloat(ctx context.Context, query string, def float64, window time.Duration) (float64, error) {
	ctx, cancel := s.getContext(ctx)
	defer cancel()

	var value sql.NullFloat64
	if err := s.db.QueryRowContext(ctx, query, window.Seconds()).Scan(&value); err != nil {
		return 0, fmt.Errorf("failed to run aggregate: %w", err)
	}
	if !value.Valid {
		return def, nil
	}
	return value.Float64, nil
}
