package analytics

import "fmt"

// Metric names used in alerts and threshold lookups.
const (
	MetricLatency        = "averageLatency"
	MetricAudioQuality   = "audioQuality"
	MetricEscalationRate = "escalationRate"
	MetricSentiment      = "sentimentScore"
)

// EvaluateThresholds checks one sample against the threshold table and
// returns the resulting alerts. Metrics are evaluated in a fixed order
// (latency, audio quality, escalation rate, sentiment), and for each metric
// the error cutoff is checked before the warning cutoff; at most one alert is
// emitted per metric per evaluation. Latency and escalation rate breach when
// the value exceeds the cutoff, audio quality and sentiment when it falls
// below.
func EvaluateThresholds(sample ConversationMetrics, thresholds Thresholds) []PerformanceAlert {
	var alerts []PerformanceAlert

	if alert := checkHigh(sample, MetricLatency, sample.AverageLatency, thresholds.Latency,
		"Average response latency %.0fms exceeds %s threshold %.0fms"); alert != nil {
		alerts = append(alerts, *alert)
	}
	if alert := checkLow(sample, MetricAudioQuality, sample.AudioQuality, thresholds.AudioQuality,
		"Audio quality %.2f below %s threshold %.2f"); alert != nil {
		alerts = append(alerts, *alert)
	}
	if alert := checkHigh(sample, MetricEscalationRate, sample.EscalationRate, thresholds.EscalationRate,
		"Escalation rate %.2f exceeds %s threshold %.2f"); alert != nil {
		alerts = append(alerts, *alert)
	}
	if alert := checkLow(sample, MetricSentiment, sample.SentimentScore, thresholds.Sentiment,
		"Average sentiment %.2f below %s threshold %.2f"); alert != nil {
		alerts = append(alerts, *alert)
	}

	return alerts
}

// checkHigh alerts when value exceeds the cutoff ("the higher, the worse").
func checkHigh(sample ConversationMetrics, metric string, value float64, levels ThresholdLevels, format string) *PerformanceAlert {
	switch {
	case value > levels.Error:
		return newAlert(sample, metric, AlertError, value, levels.Error, format)
	case value > levels.Warning:
		return newAlert(sample, metric, AlertWarning, value, levels.Warning, format)
	}
	return nil
}

// checkLow alerts when value falls below the cutoff ("the lower, the worse").
func checkLow(sample ConversationMetrics, metric string, value float64, levels ThresholdLevels, format string) *PerformanceAlert {
	switch {
	case value < levels.Error:
		return newAlert(sample, metric, AlertError, value, levels.Error, format)
	case value < levels.Warning:
		return newAlert(sample, metric, AlertWarning, value, levels.Warning, format)
	}
	return nil
}

func newAlert(sample ConversationMetrics, metric, severity string, value, threshold float64, format string) *PerformanceAlert {
	return &PerformanceAlert{
		ID:        fmt.Sprintf("%d-%s", sample.Timestamp.UnixNano(), metric),
		Type:      severity,
		Message:   fmt.Sprintf(format, value, severity, threshold),
		Timestamp: sample.Timestamp,
		Metric:    metric,
		Value:     value,
		Threshold: threshold,
	}
}
