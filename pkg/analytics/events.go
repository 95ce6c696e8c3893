package analytics

import (
	"context"
)

// HandleAudioMetrics forwards an externally produced audio quality update to
// all connected clients. No local aggregation happens here; the sampler reads
// its own trailing average from the store.
func (p *Pipeline) HandleAudioMetrics(metrics AudioMetrics) {
	if p.broadcaster != nil {
		p.broadcaster.BroadcastAudioMetrics(metrics)
	}
}

// HandleSentiment folds one sentiment update into the bounded sentiment ring
// and broadcasts it immediately. Sentiment alerting happens only through the
// periodic sample's windowed average, never per event. The update is archived
// best-effort so historical sentiment queries have durable backing.
func (p *Pipeline) HandleSentiment(ctx context.Context, data SentimentData) {
	p.sentiment.Append(data)

	if err := p.store.SaveSentiment(ctx, data); err != nil {
		p.logger.WithError(err).Warn("Failed to archive sentiment update")
	}

	if p.broadcaster != nil {
		p.broadcaster.BroadcastSentiment(data)
	}
}

// HandleEscalationEvent recomputes the per-type escalation aggregates over
// the trailing window and broadcasts the result wholesale.
func (p *Pipeline) HandleEscalationEvent(ctx context.Context) {
	data, err := p.store.EscalationsByType(ctx, p.config.Windows.Escalations)
	if err != nil {
		p.logger.WithError(err).Warn("Failed to recompute escalation aggregates")
		return
	}
	if data == nil {
		data = make([]EscalationData, 0)
	}

	p.stateMu.Lock()
	p.escalations = data
	p.stateMu.Unlock()

	if p.broadcaster != nil {
		p.broadcaster.BroadcastEscalations(data)
	}
}
