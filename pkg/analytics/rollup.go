package analytics

import (
	"context"
	"time"

	"callpulse-server/pkg/metrics"
)

// runRollup drives the periodic business rollup task.
func (p *Pipeline) runRollup() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.RollupInterval)
	defer ticker.Stop()

	// Compute once at startup so dashboards do not wait a full period.
	p.RollupOnce(p.ctx)

	for {
		select {
		case <-ticker.C:
			p.RollupOnce(p.ctx)
		case <-p.ctx.Done():
			return
		}
	}
}

// RollupOnce recomputes the 24-hour business KPIs. Each aggregate falls back
// to its documented default independently; the result replaces the previous
// value wholesale and is broadcast once.
func (p *Pipeline) RollupOnce(ctx context.Context) BusinessMetrics {
	window := p.config.Windows.BusinessRollup

	rollup := BusinessMetrics{
		LeadsGenerated:        p.intAggregate(ctx, "leads_generated", window, p.store.LeadsGenerated),
		AppointmentsScheduled: p.intAggregate(ctx, "appointments_scheduled", window, p.store.AppointmentsScheduled),
		IssuesResolved:        p.intAggregate(ctx, "issues_resolved", window, p.store.IssuesResolved),
		CustomerSatisfaction:  p.floatAggregate(ctx, "customer_satisfaction", window, fallbackSatisfaction, p.store.CustomerSatisfaction),
		AverageCallDuration:   p.floatAggregate(ctx, "average_call_duration", window, 0, p.store.AverageCallDuration),
		ConversionRate:        p.floatAggregate(ctx, "conversion_rate", window, 0, p.store.ConversionRate),
	}

	p.stateMu.Lock()
	p.business = rollup
	p.stateMu.Unlock()

	metrics.RollupsTotal.Inc()

	if p.broadcaster != nil {
		p.broadcaster.BroadcastBusinessMetrics(rollup)
	}

	return rollup
}
