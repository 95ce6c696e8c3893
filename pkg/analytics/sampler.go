package analytics

import (
	"context"
	"time"

	"callpulse-server/pkg/metrics"

	"github.com/sirupsen/logrus"
)

const audioQualityCacheKey = "callpulse:agg:audio_quality"

// runSampler drives the periodic sampling task. Cycles run on the loop
// goroutine itself, so a cycle that outlasts the tick delays the next one
// instead of overlapping it.
func (p *Pipeline) runSampler() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.SampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.SampleOnce(p.ctx)
		case <-p.ctx.Done():
			return
		}
	}
}

// SampleOnce performs one full sampling cycle: collect a sample, append it to
// the ring, archive it, evaluate alerts and broadcast everything. A failure in
// any side effect never aborts the cycle; the sample always reaches the ring
// and the clients.
func (p *Pipeline) SampleOnce(ctx context.Context) ConversationMetrics {
	sample := p.collectSample(ctx)

	p.metrics.Append(sample)
	metrics.SamplesTotal.Inc()

	if err := p.store.SaveSnapshot(ctx, sample); err != nil {
		metrics.SnapshotWriteFailures.Inc()
		p.logger.WithError(err).Warn("Failed to archive metrics snapshot")
	}

	for _, alert := range EvaluateThresholds(sample, p.Thresholds()) {
		p.alerts.Append(alert)
		metrics.AlertsEmitted.WithLabelValues(alert.Type).Inc()
		p.logger.WithFields(logrus.Fields{
			"metric":    alert.Metric,
			"severity":  alert.Type,
			"value":     alert.Value,
			"threshold": alert.Threshold,
		}).Warn("Performance alert")

		if p.broadcaster != nil {
			p.broadcaster.BroadcastAlert(alert)
		}
	}

	if p.broadcaster != nil {
		p.broadcaster.BroadcastMetrics(sample)
	}

	return sample
}

// collectSample reads every metric through its adapter. Each adapter failure
// falls back to a documented default so one unreachable table never voids the
// whole sample.
func (p *Pipeline) collectSample(ctx context.Context) ConversationMetrics {
	w := p.config.Windows

	sample := ConversationMetrics{Timestamp: time.Now().UTC()}
	sample.ActiveConversations = p.intAggregate(ctx, "active_conversations", w.ActiveConversations, p.store.ActiveConversations)
	sample.AverageLatency = p.floatAggregate(ctx, "average_latency", w.Latency, 0, p.store.AverageLatency)
	sample.AudioQuality = p.audioQuality(ctx, w.AudioQuality)
	sample.SentimentScore = p.floatAggregate(ctx, "sentiment_score", w.Sentiment, 0, p.store.AverageSentiment)
	sample.EscalationRate = p.floatAggregate(ctx, "escalation_rate", w.EscalationRate, 0, p.store.EscalationRate)
	sample.ConversionRate = p.floatAggregate(ctx, "conversion_rate", w.ConversionRate, 0, p.store.ConversionRate)

	return sample
}

// audioQuality memoizes the store aggregate through the cache for a short
// TTL; cache absence or failure falls through to the store transparently.
func (p *Pipeline) audioQuality(ctx context.Context, window time.Duration) float64 {
	if p.cache != nil {
		if v, ok := p.cache.GetFloat(ctx, audioQualityCacheKey); ok {
			return v
		}
	}

	v, err := p.store.AudioQuality(ctx, window)
	if err != nil {
		metrics.AdapterFailures.WithLabelValues("audio_quality").Inc()
		p.logger.WithError(err).WithField("metric", "audio_quality").Warn("Metric adapter failed, using fallback")
		return fallbackAudioQuality
	}

	if p.cache != nil {
		p.cache.SetFloat(ctx, audioQualityCacheKey, v, p.config.AudioQualityTTL)
	}
	return v
}

func (p *Pipeline) intAggregate(ctx context.Context, name string, window time.Duration, read func(context.Context, time.Duration) (int, error)) int {
	v, err := read(ctx, window)
	if err != nil {
		metrics.AdapterFailures.WithLabelValues(name).Inc()
		p.logger.WithError(err).WithField("metric", name).Warn("Metric adapter failed, using fallback")
		return 0
	}
	return v
}

func (p *Pipeline) floatAggregate(ctx context.Context, name string, window time.Duration, fallback float64, read func(context.Context, time.Duration) (float64, error)) float64 {
	v, err := read(ctx, window)
	if err != nil {
		metrics.AdapterFailures.WithLabelValues(name).Inc()
		p.logger.WithError(err).WithField("metric", name).Warn("Metric adapter failed, using fallback")
		return fallback
	}
	return v
}
