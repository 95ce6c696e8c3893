package analytics

import (
	"context"
	"sync"
	"time"
)

// MockStore implements Store for tests. Every aggregate returns the value
// configured on the struct; setting Err on a field name makes that adapter
// fail.
type MockStore struct {
	mu sync.Mutex

	Active       int
	Latency      float64
	Audio        float64
	Sentiment    float64
	Escalation   float64
	Conversion   float64
	Leads        int
	Appointments int
	Issues       int
	Satisfaction float64
	CallDuration float64
	Escalations  []EscalationData

	Errs map[string]error

	SavedSnapshots []ConversationMetrics
	SavedSentiment []SentimentData
	SnapshotErr    error
	SentimentErr   error
}

func NewMockStore() *MockStore {
	return &MockStore{Errs: make(map[string]error)}
}

func (s *MockStore) fail(name string) error { return s.Errs[name] }

func (s *MockStore) ActiveConversations(ctx context.Context, window time.Duration) (int, error) {
	return s.Active, s.fail("active")
}

func (s *MockStore) AverageLatency(ctx context.Context, window time.Duration) (float64, error) {
	return s.Latency, s.fail("latency")
}

func (s *MockStore) AudioQuality(ctx context.Context, window time.Duration) (float64, error) {
	return s.Audio, s.fail("audio")
}

func (s *MockStore) AverageSentiment(ctx context.Context, window time.Duration) (float64, error) {
	return s.Sentiment, s.fail("sentiment")
}

func (s *MockStore) EscalationRate(ctx context.Context, window time.Duration) (float64, error) {
	return s.Escalation, s.fail("escalation")
}

func (s *MockStore) ConversionRate(ctx context.Context, window time.Duration) (float64, error) {
	return s.Conversion, s.fail("conversion")
}

func (s *MockStore) LeadsGenerated(ctx context.Context, window time.Duration) (int, error) {
	return s.Leads, s.fail("leads")
}

func (s *MockStore) AppointmentsScheduled(ctx context.Context, window time.Duration) (int, error) {
	return s.Appointments, s.fail("appointments")
}

func (s *MockStore) IssuesResolved(ctx context.Context, window time.Duration) (int, error) {
	return s.Issues, s.fail("issues")
}

func (s *MockStore) CustomerSatisfaction(ctx context.Context, window time.Duration) (float64, error) {
	return s.Satisfaction, s.fail("satisfaction")
}

func (s *MockStore) AverageCallDuration(ctx context.Context, window time.Duration) (float64, error) {
	return s.CallDuration, s.fail("call_duration")
}

func (s *MockStore) EscalationsByType(ctx context.Context, window time.Duration) ([]EscalationData, error) {
	return s.Escalations, s.fail("escalations_by_type")
}

func (s *MockStore) SaveSnapshot(ctx context.Context, sample ConversationMetrics) error {
	if s.SnapshotErr != nil {
		return s.SnapshotErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SavedSnapshots = append(s.SavedSnapshots, sample)
	return nil
}

func (s *MockStore) SaveSentiment(ctx context.Context, data SentimentData) error {
	if s.SentimentErr != nil {
		return s.SentimentErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SavedSentiment = append(s.SavedSentiment, data)
	return nil
}

func (s *MockStore) MetricsRange(ctx context.Context, from time.Time) ([]ConversationMetrics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ConversationMetrics, 0)
	for _, m := range s.SavedSnapshots {
		if !m.Timestamp.Before(from) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *MockStore) SentimentRange(ctx context.Context, from time.Time) ([]SentimentData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SentimentData, 0)
	for _, d := range s.SavedSentiment {
		if !d.Timestamp.Before(from) {
			out = append(out, d)
		}
	}
	return out, nil
}

// MockCache implements Cache over a plain map, ignoring TTLs.
type MockCache struct {
	mu     sync.Mutex
	values map[string]float64
	Sets   int
	Hits   int
}

func NewMockCache() *MockCache {
	return &MockCache{values: make(map[string]float64)}
}

func (c *MockCache) GetFloat(ctx context.Context, key string) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	if ok {
		c.Hits++
	}
	return v, ok
}

func (c *MockCache) SetFloat(ctx context.Context, key string, value float64, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
	c.Sets++
}

// MockBroadcaster records everything pushed through the Broadcaster contract.
type MockBroadcaster struct {
	mu          sync.Mutex
	Metrics     []ConversationMetrics
	Audio       []AudioMetrics
	Sentiment   []SentimentData
	Business    []BusinessMetrics
	Escalations [][]EscalationData
	Alerts      []PerformanceAlert
}

func NewMockBroadcaster() *MockBroadcaster {
	return &MockBroadcaster{}
}

func (b *MockBroadcaster) BroadcastMetrics(sample ConversationMetrics) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Metrics = append(b.Metrics, sample)
}

func (b *MockBroadcaster) BroadcastAudioMetrics(m AudioMetrics) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Audio = append(b.Audio, m)
}

func (b *MockBroadcaster) BroadcastSentiment(data SentimentData) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Sentiment = append(b.Sentiment, data)
}

func (b *MockBroadcaster) BroadcastBusinessMetrics(m BusinessMetrics) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Business = append(b.Business, m)
}

func (b *MockBroadcaster) BroadcastEscalations(data []EscalationData) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Escalations = append(b.Escalations, data)
}

func (b *MockBroadcaster) BroadcastAlert(alert PerformanceAlert) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Alerts = append(b.Alerts, alert)
}
