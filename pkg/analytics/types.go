package analytics

import "time"

// ConversationMetrics is one periodic sample of pipeline-wide conversation
// state. Samples are immutable once produced by the Sampler.
type ConversationMetrics struct {
	Timestamp           time.Time `json:"timestamp"`
	ActiveConversations int       `json:"activeConversations"`
	AverageLatency      float64   `json:"averageLatency"` // milliseconds
	AudioQuality        float64   `json:"audioQuality"`   // 0..1
	SentimentScore      float64   `json:"sentimentScore"` // -1..1
	EscalationRate      float64   `json:"escalationRate"` // 0..1
	ConversionRate      float64   `json:"conversionRate"` // 0..1
}

// AudioMetrics carries realtime audio quality information produced by the
// external agent processing. It is forwarded to clients as-is and never
// archived.
type AudioMetrics struct {
	SignalToNoiseRatio float64 `json:"signalToNoiseRatio"`
	Clarity            float64 `json:"clarity"`
	Naturalness        float64 `json:"naturalness"`
	Intelligibility    float64 `json:"intelligibility"`
	NoiseLevel         float64 `json:"noiseLevel"`
	ProcessingLatency  float64 `json:"processingLatency"` // milliseconds
}

// SentimentData is one sentiment update pushed by the external sentiment
// analyzer. EmotionalState is a free-form label such as "frustrated" or
// "enthusiastic".
type SentimentData struct {
	Timestamp      time.Time `json:"timestamp"`
	Sentiment      float64   `json:"sentiment"`      // -1..1
	EmotionalState string    `json:"emotionalState"` // label, e.g. "neutral"
	EscalationRisk float64   `json:"escalationRisk"` // 0..1
	Confidence     float64   `json:"confidence"`     // 0..1
}

// BusinessMetrics is the 24-hour business rollup. The whole value is
// recomputed and replaced each rollup cycle, never merged.
type BusinessMetrics struct {
	LeadsGenerated        int     `json:"leadsGenerated"`
	AppointmentsScheduled int     `json:"appointmentsScheduled"`
	IssuesResolved        int     `json:"issuesResolved"`
	CustomerSatisfaction  float64 `json:"customerSatisfaction"`
	AverageCallDuration   float64 `json:"averageCallDuration"` // seconds
	ConversionRate        float64 `json:"conversionRate"`      // 0..1
}

// EscalationData aggregates escalations of one type over the trailing
// 24-hour window.
type EscalationData struct {
	Type                string  `json:"type"`
	Count               int     `json:"count"`
	AverageResponseTime float64 `json:"averageResponseTime"` // seconds
	ResolutionRate      float64 `json:"resolutionRate"`      // 0..1
}

// Alert severities.
const (
	AlertWarning = "warning"
	AlertError   = "error"
)

// PerformanceAlert describes one threshold breach observed in a sample.
type PerformanceAlert struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"` // warning or error
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Metric    string    `json:"metric"`
	Value     float64   `json:"value"`
	Threshold float64   `json:"threshold"`
}

// ThresholdLevels holds the warning and error cutoffs for one metric.
type ThresholdLevels struct {
	Warning float64 `json:"warning"`
	Error   float64 `json:"error"`
}

// Thresholds is the alert threshold table. Latency and escalation rate alert
// when the observed value exceeds the cutoff; audio quality and sentiment
// alert when it falls below.
type Thresholds struct {
	Latency        ThresholdLevels `json:"latency"`
	AudioQuality   ThresholdLevels `json:"audioQuality"`
	EscalationRate ThresholdLevels `json:"escalationRate"`
	Sentiment      ThresholdLevels `json:"sentiment"`
}

// ThresholdsPatch is a partial threshold table used for runtime updates.
// Nil entries leave the corresponding metric untouched.
type ThresholdsPatch struct {
	Latency        *ThresholdLevels `json:"latency,omitempty"`
	AudioQuality   *ThresholdLevels `json:"audioQuality,omitempty"`
	EscalationRate *ThresholdLevels `json:"escalationRate,omitempty"`
	Sentiment      *ThresholdLevels `json:"sentiment,omitempty"`
}

// Merge applies the non-nil entries of the patch to the table.
func (t *Thresholds) Merge(patch ThresholdsPatch) {
	if patch.Latency != nil {
		t.Latency = *patch.Latency
	}
	if patch.AudioQuality != nil {
		t.AudioQuality = *patch.AudioQuality
	}
	if patch.EscalationRate != nil {
		t.EscalationRate = *patch.EscalationRate
	}
	if patch.Sentiment != nil {
		t.Sentiment = *patch.Sentiment
	}
}

// DefaultThresholds returns the threshold table used when none is configured.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Latency:        ThresholdLevels{Warning: 800, Error: 1500},
		AudioQuality:   ThresholdLevels{Warning: 0.7, Error: 0.5},
		EscalationRate: ThresholdLevels{Warning: 0.15, Error: 0.3},
		Sentiment:      ThresholdLevels{Warning: -0.3, Error: -0.6},
	}
}
