package analytics

import (
	"context"
	"sync"
	"time"

	"callpulse-server/pkg/metrics"

	"github.com/sirupsen/logrus"
)

// Config holds pipeline tuning knobs. Zero values are replaced with the
// reference defaults.
type Config struct {
	SampleInterval    time.Duration
	RollupInterval    time.Duration
	Windows           Windows
	MetricsRingSize   int
	SentimentRingSize int
	AlertListSize     int
	AudioQualityTTL   time.Duration
	Thresholds        Thresholds
}

// DefaultConfig returns the reference pipeline configuration.
func DefaultConfig() Config {
	return Config{
		SampleInterval:    10 * time.Second,
		RollupInterval:    5 * time.Minute,
		Windows:           DefaultWindows(),
		MetricsRingSize:   1000,
		SentimentRingSize: 200,
		AlertListSize:     100,
		AudioQualityTTL:   60 * time.Second,
		Thresholds:        DefaultThresholds(),
	}
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.SampleInterval <= 0 {
		c.SampleInterval = def.SampleInterval
	}
	if c.RollupInterval <= 0 {
		c.RollupInterval = def.RollupInterval
	}
	if c.Windows == (Windows{}) {
		c.Windows = def.Windows
	}
	if c.MetricsRingSize <= 0 {
		c.MetricsRingSize = def.MetricsRingSize
	}
	if c.SentimentRingSize <= 0 {
		c.SentimentRingSize = def.SentimentRingSize
	}
	if c.AlertListSize <= 0 {
		c.AlertListSize = def.AlertListSize
	}
	if c.AudioQualityTTL <= 0 {
		c.AudioQualityTTL = def.AudioQualityTTL
	}
	if c.Thresholds == (Thresholds{}) {
		c.Thresholds = def.Thresholds
	}
}

// Pipeline is the realtime analytics context: the bounded in-memory
// collections, the alert threshold table, and the periodic tasks that feed
// them. One Pipeline is constructed at startup and passed by reference to
// every component that publishes into or reads from it.
type Pipeline struct {
	logger *logrus.Logger
	config Config

	store       Store
	cache       Cache
	broadcaster Broadcaster

	metrics   *Ring[ConversationMetrics]
	sentiment *Ring[SentimentData]
	alerts    *Ring[PerformanceAlert]

	thresholdsMu sync.RWMutex
	thresholds   Thresholds

	stateMu     sync.RWMutex
	business    BusinessMetrics
	escalations []EscalationData

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPipeline constructs a stopped pipeline. Call Start to begin sampling.
func NewPipeline(logger *logrus.Logger, config Config, store Store, cache Cache, broadcaster Broadcaster) *Pipeline {
	config.applyDefaults()
	metrics.Init()
	ctx, cancel := context.WithCancel(context.Background())

	return &Pipeline{
		logger:      logger,
		config:      config,
		store:       store,
		cache:       cache,
		broadcaster: broadcaster,
		metrics:     NewRing[ConversationMetrics](config.MetricsRingSize),
		sentiment:   NewRing[SentimentData](config.SentimentRingSize),
		alerts:      NewRing[PerformanceAlert](config.AlertListSize),
		thresholds:  config.Thresholds,
		business:    BusinessMetrics{CustomerSatisfaction: fallbackSatisfaction},
		escalations: make([]EscalationData, 0),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start launches the sampler and business rollup loops.
func (p *Pipeline) Start() {
	p.wg.Add(2)
	go p.runSampler()
	go p.runRollup()

	p.logger.WithFields(logrus.Fields{
		"sample_interval": p.config.SampleInterval,
		"rollup_interval": p.config.RollupInterval,
	}).Info("Analytics pipeline started")
}

// Stop terminates the periodic tasks and waits for in-flight cycles.
func (p *Pipeline) Stop(ctx context.Context) error {
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("Analytics pipeline stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Thresholds returns a copy of the live threshold table.
func (p *Pipeline) Thresholds() Thresholds {
	p.thresholdsMu.RLock()
	defer p.thresholdsMu.RUnlock()
	return p.thresholds
}

// UpdateThresholds merges a partial threshold table into the live
// configuration. The next sampling cycle picks it up without a restart.
func (p *Pipeline) UpdateThresholds(patch ThresholdsPatch) Thresholds {
	p.thresholdsMu.Lock()
	defer p.thresholdsMu.Unlock()
	p.thresholds.Merge(patch)

	p.logger.WithFields(logrus.Fields{
		"latency_warning": p.thresholds.Latency.Warning,
		"latency_error":   p.thresholds.Latency.Error,
	}).Info("Alert thresholds updated")

	return p.thresholds
}

// RecentMetrics returns up to n samples, oldest first.
func (p *Pipeline) RecentMetrics(n int) []ConversationMetrics {
	return p.metrics.Last(n)
}

// RecentSentiment returns up to n sentiment entries, oldest first.
func (p *Pipeline) RecentSentiment(n int) []SentimentData {
	return p.sentiment.Last(n)
}

// RecentAlerts returns up to n alerts, oldest first.
func (p *Pipeline) RecentAlerts(n int) []PerformanceAlert {
	return p.alerts.Last(n)
}

// BusinessSnapshot returns the latest business rollup.
func (p *Pipeline) BusinessSnapshot() BusinessMetrics {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	return p.business
}

// EscalationSnapshot returns the latest per-type escalation aggregates.
func (p *Pipeline) EscalationSnapshot() []EscalationData {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	out := make([]EscalationData, len(p.escalations))
	copy(out, p.escalations)
	return out
}
