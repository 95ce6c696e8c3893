package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func newTestPipeline(store *MockStore, cache Cache, broadcaster Broadcaster) *Pipeline {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewPipeline(logger, DefaultConfig(), store, cache, broadcaster)
}

func TestSampleOnceAppendsArchivesAndBroadcasts(t *testing.T) {
	store := NewMockStore()
	store.Active = 12
	store.Latency = 340
	store.Audio = 0.92
	store.Sentiment = 0.3
	store.Escalation = 0.05
	store.Conversion = 0.4
	broadcaster := NewMockBroadcaster()
	pipeline := newTestPipeline(store, nil, broadcaster)

	sample := pipeline.SampleOnce(context.Background())

	if sample.ActiveConversations != 12 || sample.AverageLatency != 340 {
		t.Fatalf("unexpected sample: %+v", sample)
	}
	if sample.Timestamp.IsZero() {
		t.Fatal("expected sample timestamp to be set")
	}

	recent := pipeline.RecentMetrics(10)
	if len(recent) != 1 {
		t.Fatalf("expected one sample in memory, got %d", len(recent))
	}
	if len(store.SavedSnapshots) != 1 {
		t.Fatalf("expected one archived snapshot, got %d", len(store.SavedSnapshots))
	}
	if len(broadcaster.Metrics) != 1 {
		t.Fatalf("expected one metrics broadcast, got %d", len(broadcaster.Metrics))
	}
	if len(broadcaster.Alerts) != 0 {
		t.Fatalf("expected no alerts for a healthy sample, got %d", len(broadcaster.Alerts))
	}
}

func TestSampleOnceAdapterFailureFallsBack(t *testing.T) {
	store := NewMockStore()
	store.Active = 5
	store.Audio = 0.9
	store.Errs["latency"] = errors.New("connection refused")
	store.Errs["conversion"] = errors.New("connection refused")
	pipeline := newTestPipeline(store, nil, NewMockBroadcaster())

	sample := pipeline.SampleOnce(context.Background())

	if sample.AverageLatency != 0 {
		t.Fatalf("expected latency fallback 0, got %v", sample.AverageLatency)
	}
	if sample.ConversionRate != 0 {
		t.Fatalf("expected conversion fallback 0, got %v", sample.ConversionRate)
	}
	if sample.ActiveConversations != 5 {
		t.Fatalf("expected healthy adapters to keep their values, got %d", sample.ActiveConversations)
	}
}

func TestSampleOnceAudioFailureUsesDefault(t *testing.T) {
	store := NewMockStore()
	store.Errs["audio"] = errors.New("timeout")
	pipeline := newTestPipeline(store, nil, NewMockBroadcaster())

	sample := pipeline.SampleOnce(context.Background())
	if sample.AudioQuality != 0.8 {
		t.Fatalf("expected audio quality fallback 0.8, got %v", sample.AudioQuality)
	}
}

func TestSampleOnceArchiveFailureDoesNotAbort(t *testing.T) {
	store := NewMockStore()
	store.Audio = 0.9
	store.SnapshotErr = errors.New("disk full")
	broadcaster := NewMockBroadcaster()
	pipeline := newTestPipeline(store, nil, broadcaster)

	pipeline.SampleOnce(context.Background())

	if len(pipeline.RecentMetrics(10)) != 1 {
		t.Fatal("expected sample in memory despite archive failure")
	}
	if len(broadcaster.Metrics) != 1 {
		t.Fatal("expected broadcast despite archive failure")
	}
}

func TestSampleOnceEmitsAndRetainsAlerts(t *testing.T) {
	store := NewMockStore()
	store.Latency = 2500
	store.Audio = 0.9
	broadcaster := NewMockBroadcaster()
	pipeline := newTestPipeline(store, nil, broadcaster)

	pipeline.SampleOnce(context.Background())

	if len(broadcaster.Alerts) != 1 {
		t.Fatalf("expected one alert broadcast, got %d", len(broadcaster.Alerts))
	}
	alert := broadcaster.Alerts[0]
	if alert.Metric != MetricLatency || alert.Type != AlertError {
		t.Fatalf("unexpected alert %s/%s", alert.Metric, alert.Type)
	}

	recent := pipeline.RecentAlerts(10)
	if len(recent) != 1 || recent[0].ID != alert.ID {
		t.Fatalf("expected broadcast alert retained in memory, got %+v", recent)
	}
}

func TestSampleOnceMemoizesAudioQuality(t *testing.T) {
	store := NewMockStore()
	store.Audio = 0.88
	cache := NewMockCache()
	pipeline := newTestPipeline(store, cache, NewMockBroadcaster())

	first := pipeline.SampleOnce(context.Background())
	if first.AudioQuality != 0.88 {
		t.Fatalf("expected store value on miss, got %v", first.AudioQuality)
	}
	if cache.Sets != 1 {
		t.Fatalf("expected one cache write, got %d", cache.Sets)
	}

	store.Audio = 0.2
	second := pipeline.SampleOnce(context.Background())
	if second.AudioQuality != 0.88 {
		t.Fatalf("expected cached value within TTL, got %v", second.AudioQuality)
	}
	if cache.Hits != 1 {
		t.Fatalf("expected one cache hit, got %d", cache.Hits)
	}
}

func TestRollupOnceReplacesWholesale(t *testing.T) {
	store := NewMockStore()
	store.Leads = 7
	store.Appointments = 3
	store.Issues = 11
	store.Satisfaction = 4.6
	store.CallDuration = 182
	store.Conversion = 0.31
	broadcaster := NewMockBroadcaster()
	pipeline := newTestPipeline(store, nil, broadcaster)

	rollup := pipeline.RollupOnce(context.Background())
	if rollup.LeadsGenerated != 7 || rollup.CustomerSatisfaction != 4.6 {
		t.Fatalf("unexpected rollup: %+v", rollup)
	}

	store.Leads = 0
	store.Appointments = 0
	pipeline.RollupOnce(context.Background())

	snapshot := pipeline.BusinessSnapshot()
	if snapshot.LeadsGenerated != 0 || snapshot.AppointmentsScheduled != 0 {
		t.Fatalf("expected wholesale replacement, got %+v", snapshot)
	}
	if len(broadcaster.Business) != 2 {
		t.Fatalf("expected one broadcast per rollup, got %d", len(broadcaster.Business))
	}
}

func TestRollupOnceIndependentFallbacks(t *testing.T) {
	store := NewMockStore()
	store.Leads = 9
	store.Errs["satisfaction"] = errors.New("no rows")
	store.Errs["call_duration"] = errors.New("no rows")
	pipeline := newTestPipeline(store, nil, NewMockBroadcaster())

	rollup := pipeline.RollupOnce(context.Background())
	if rollup.CustomerSatisfaction != 4.0 {
		t.Fatalf("expected satisfaction fallback 4.0, got %v", rollup.CustomerSatisfaction)
	}
	if rollup.AverageCallDuration != 0 {
		t.Fatalf("expected duration fallback 0, got %v", rollup.AverageCallDuration)
	}
	if rollup.LeadsGenerated != 9 {
		t.Fatalf("expected healthy aggregate kept, got %d", rollup.LeadsGenerated)
	}
}

func TestHandleSentimentFoldsArchivesAndBroadcasts(t *testing.T) {
	store := NewMockStore()
	broadcaster := NewMockBroadcaster()
	pipeline := newTestPipeline(store, nil, broadcaster)

	data := SentimentData{
		Timestamp:      time.Now().UTC(),
		Sentiment:      -0.4,
		EmotionalState: "frustrated",
		EscalationRisk: 0.7,
		Confidence:     0.9,
	}
	pipeline.HandleSentiment(context.Background(), data)

	recent := pipeline.RecentSentiment(10)
	if len(recent) != 1 || recent[0].EmotionalState != "frustrated" {
		t.Fatalf("expected sentiment folded into memory, got %+v", recent)
	}
	if len(store.SavedSentiment) != 1 {
		t.Fatalf("expected sentiment archived, got %d", len(store.SavedSentiment))
	}
	if len(broadcaster.Sentiment) != 1 {
		t.Fatalf("expected sentiment broadcast, got %d", len(broadcaster.Sentiment))
	}
	if len(broadcaster.Alerts) != 0 {
		t.Fatal("expected no per-event sentiment alerting")
	}
}

func TestHandleSentimentArchiveFailureNonFatal(t *testing.T) {
	store := NewMockStore()
	store.SentimentErr = errors.New("disk full")
	broadcaster := NewMockBroadcaster()
	pipeline := newTestPipeline(store, nil, broadcaster)

	pipeline.HandleSentiment(context.Background(), SentimentData{Timestamp: time.Now(), Sentiment: 0.1})

	if len(pipeline.RecentSentiment(10)) != 1 {
		t.Fatal("expected sentiment in memory despite archive failure")
	}
	if len(broadcaster.Sentiment) != 1 {
		t.Fatal("expected broadcast despite archive failure")
	}
}

func TestHandleAudioMetricsForwardsOnly(t *testing.T) {
	store := NewMockStore()
	broadcaster := NewMockBroadcaster()
	pipeline := newTestPipeline(store, nil, broadcaster)

	pipeline.HandleAudioMetrics(AudioMetrics{Clarity: 0.95, ProcessingLatency: 45})

	if len(broadcaster.Audio) != 1 {
		t.Fatalf("expected audio forwarded, got %d", len(broadcaster.Audio))
	}
	if len(store.SavedSnapshots) != 0 || len(store.SavedSentiment) != 0 {
		t.Fatal("expected no archival for audio updates")
	}
}

func TestHandleEscalationEventRecomputesAggregates(t *testing.T) {
	store := NewMockStore()
	store.Escalations = []EscalationData{
		{Type: "billing", Count: 1, AverageResponseTime: 30, ResolutionRate: 1},
	}
	broadcaster := NewMockBroadcaster()
	pipeline := newTestPipeline(store, nil, broadcaster)

	pipeline.HandleEscalationEvent(context.Background())

	snapshot := pipeline.EscalationSnapshot()
	if len(snapshot) != 1 || snapshot[0].Type != "billing" || snapshot[0].Count != 1 {
		t.Fatalf("expected billing aggregate, got %+v", snapshot)
	}
	if len(broadcaster.Escalations) != 1 {
		t.Fatalf("expected escalation broadcast, got %d", len(broadcaster.Escalations))
	}

	store.Escalations = []EscalationData{
		{Type: "billing", Count: 2},
		{Type: "technical", Count: 1},
	}
	pipeline.HandleEscalationEvent(context.Background())

	snapshot = pipeline.EscalationSnapshot()
	if len(snapshot) != 2 {
		t.Fatalf("expected wholesale replacement with two types, got %+v", snapshot)
	}
}

func TestHandleEscalationEventQueryFailureKeepsState(t *testing.T) {
	store := NewMockStore()
	store.Escalations = []EscalationData{{Type: "billing", Count: 1}}
	broadcaster := NewMockBroadcaster()
	pipeline := newTestPipeline(store, nil, broadcaster)

	pipeline.HandleEscalationEvent(context.Background())
	store.Errs["escalations_by_type"] = errors.New("timeout")
	pipeline.HandleEscalationEvent(context.Background())

	snapshot := pipeline.EscalationSnapshot()
	if len(snapshot) != 1 || snapshot[0].Type != "billing" {
		t.Fatalf("expected previous aggregates kept on failure, got %+v", snapshot)
	}
	if len(broadcaster.Escalations) != 1 {
		t.Fatalf("expected no broadcast on failure, got %d", len(broadcaster.Escalations))
	}
}

func TestUpdateThresholdsPartialMerge(t *testing.T) {
	pipeline := newTestPipeline(NewMockStore(), nil, NewMockBroadcaster())

	updated := pipeline.UpdateThresholds(ThresholdsPatch{
		Latency: &ThresholdLevels{Warning: 500, Error: 1000},
	})

	if updated.Latency.Warning != 500 || updated.Latency.Error != 1000 {
		t.Fatalf("expected latency thresholds replaced, got %+v", updated.Latency)
	}
	def := DefaultThresholds()
	if updated.AudioQuality != def.AudioQuality || updated.Sentiment != def.Sentiment {
		t.Fatalf("expected untouched metrics to keep defaults, got %+v", updated)
	}
}

func TestUpdatedThresholdsApplyToNextSample(t *testing.T) {
	store := NewMockStore()
	store.Latency = 600
	store.Audio = 0.9
	broadcaster := NewMockBroadcaster()
	pipeline := newTestPipeline(store, nil, broadcaster)

	pipeline.SampleOnce(context.Background())
	if len(broadcaster.Alerts) != 0 {
		t.Fatalf("expected no alert at 600ms under defaults, got %d", len(broadcaster.Alerts))
	}

	pipeline.UpdateThresholds(ThresholdsPatch{
		Latency: &ThresholdLevels{Warning: 500, Error: 1000},
	})
	pipeline.SampleOnce(context.Background())

	if len(broadcaster.Alerts) != 1 || broadcaster.Alerts[0].Type != AlertWarning {
		t.Fatalf("expected warning under tightened thresholds, got %+v", broadcaster.Alerts)
	}
}

func TestStopWaitsForLoops(t *testing.T) {
	store := NewMockStore()
	store.Audio = 0.9
	config := DefaultConfig()
	config.SampleInterval = 10 * time.Millisecond
	config.RollupInterval = 10 * time.Millisecond
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	pipeline := NewPipeline(logger, config, store, nil, NewMockBroadcaster())

	pipeline.Start()
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := pipeline.Stop(ctx); err != nil {
		t.Fatalf("expected clean stop, got %v", err)
	}

	if len(pipeline.RecentMetrics(1000)) == 0 {
		t.Fatal("expected at least one sample before stop")
	}
}
