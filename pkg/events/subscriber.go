package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"callpulse-server/pkg/analytics"
	"callpulse-server/pkg/metrics"

	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"
)

// Logical channel names used for instrumentation and logging.
const (
	ChannelAudio      = "audio_metrics"
	ChannelSentiment  = "sentiment"
	ChannelEscalation = "escalations"
)

// EventSink receives decoded events. Implemented by analytics.Pipeline.
type EventSink interface {
	HandleAudioMetrics(metrics analytics.AudioMetrics)
	HandleSentiment(ctx context.Context, data analytics.SentimentData)
	HandleEscalationEvent(ctx context.Context)
}

// Config holds AMQP subscription settings.
type Config struct {
	URL             string
	AudioQueue      string
	SentimentQueue  string
	EscalationQueue string
	PrefetchCount   int
}

// Subscriber consumes the three event queues published by the agent side and
// folds every event into the pipeline. Malformed payloads are dropped with a
// warning; the consume loops run for the life of the process and redial on
// connection loss.
type Subscriber struct {
	logger *logrus.Logger
	config Config
	sink   EventSink

	connMu    sync.Mutex
	conn      *amqp.Connection
	channel   *amqp.Channel
	connected bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSubscriber creates a stopped subscriber.
func NewSubscriber(logger *logrus.Logger, config Config, sink EventSink) *Subscriber {
	if config.PrefetchCount <= 0 {
		config.PrefetchCount = 10
	}
	metrics.Init()
	ctx, cancel := context.WithCancel(context.Background())

	return &Subscriber{
		logger: logger,
		config: config,
		sink:   sink,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start connects and begins consuming. A failure to establish the initial
// connection is returned to the caller and is fatal to the pipeline.
func (s *Subscriber) Start() error {
	if err := s.connect(); err != nil {
		return err
	}

	s.wg.Add(1)
	go s.superviseConnection()
	return nil
}

// Stop terminates consumption and closes the connection.
func (s *Subscriber) Stop(ctx context.Context) error {
	s.cancel()
	s.closeConnection()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Event subscriber stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// connect dials the broker, declares the three durable queues and starts one
// consume loop per queue.
func (s *Subscriber) connect() error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.config.URL == "" {
		return fmt.Errorf("AMQP URL not configured")
	}

	conn, err := dialWithTimeout(s.config.URL, 5*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to AMQP server: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open AMQP channel: %w", err)
	}

	if err := channel.Qos(s.config.PrefetchCount, 0, false); err != nil {
		s.logger.WithError(err).Warn("Failed to set QoS on AMQP channel, continuing anyway")
	}

	queues := map[string]string{
		ChannelAudio:      s.config.AudioQueue,
		ChannelSentiment:  s.config.SentimentQueue,
		ChannelEscalation: s.config.EscalationQueue,
	}

	for channelName, queueName := range queues {
		if _, err := channel.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
			channel.Close()
			conn.Close()
			return fmt.Errorf("failed to declare queue %s: %w", queueName, err)
		}

		deliveries, err := channel.Consume(queueName, "", false, false, false, false, nil)
		if err != nil {
			channel.Close()
			conn.Close()
			return fmt.Errorf("failed to consume queue %s: %w", queueName, err)
		}

		s.wg.Add(1)
		go s.consumeLoop(channelName, deliveries)
	}

	s.conn = conn
	s.channel = channel
	s.connected = true

	s.logger.WithFields(logrus.Fields{
		"audio_queue":      s.config.AudioQueue,
		"sentiment_queue":  s.config.SentimentQueue,
		"escalation_queue": s.config.EscalationQueue,
	}).Info("Subscribed to event queues")

	return nil
}

// superviseConnection redials with backoff after a dropped connection.
func (s *Subscriber) superviseConnection() {
	defer s.wg.Done()

	for {
		s.connMu.Lock()
		conn := s.conn
		s.connMu.Unlock()
		if conn == nil {
			return
		}

		closed := conn.NotifyClose(make(chan *amqp.Error, 1))
		select {
		case <-s.ctx.Done():
			return
		case err := <-closed:
			if err == nil {
				// Clean shutdown.
				return
			}
			s.logger.WithError(err).Warn("AMQP connection lost, reconnecting")
		}

		backoff := time.Second
		for {
			select {
			case <-s.ctx.Done():
				return
			case <-time.After(backoff):
			}

			if err := s.connect(); err != nil {
				s.logger.WithError(err).WithField("backoff", backoff).Warn("AMQP reconnect failed")
				if backoff < 30*time.Second {
					backoff *= 2
				}
				continue
			}
			break
		}
	}
}

// consumeLoop processes deliveries for one queue until the channel closes.
func (s *Subscriber) consumeLoop(channelName string, deliveries <-chan amqp.Delivery) {
	defer s.wg.Done()

	for delivery := range deliveries {
		if err := s.handleDelivery(channelName, delivery.Body); err != nil {
			metrics.EventsDropped.WithLabelValues(channelName).Inc()
			s.logger.WithError(err).WithField("channel", channelName).Warn("Dropping malformed event payload")
			delivery.Nack(false, false)
			continue
		}
		metrics.EventsConsumed.WithLabelValues(channelName).Inc()
		delivery.Ack(false)
	}

	s.logger.WithField("channel", channelName).Debug("Event consume loop exited")
}

// handleDelivery decodes and folds one event. A returned error means the
// payload was malformed and must be dropped.
func (s *Subscriber) handleDelivery(channelName string, body []byte) error {
	switch channelName {
	case ChannelAudio:
		return s.handleAudio(body)
	case ChannelSentiment:
		return s.handleSentiment(body)
	case ChannelEscalation:
		return s.handleEscalation(body)
	default:
		return fmt.Errorf("unknown channel %q", channelName)
	}
}

func (s *Subscriber) handleAudio(body []byte) error {
	var event analytics.AudioMetrics
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("invalid audio metrics payload: %w", err)
	}

	s.sink.HandleAudioMetrics(event)
	return nil
}

func (s *Subscriber) handleSentiment(body []byte) error {
	var event analytics.SentimentData
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("invalid sentiment payload: %w", err)
	}
	if event.Sentiment < -1 || event.Sentiment > 1 {
		return fmt.Errorf("sentiment %.2f out of range", event.Sentiment)
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	s.sink.HandleSentiment(s.ctx, event)
	return nil
}

// escalationEvent is the inbound escalation notification. Aggregation reads
// the store, so only the type is required here.
type escalationEvent struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId"`
}

func (s *Subscriber) handleEscalation(body []byte) error {
	var event escalationEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("invalid escalation payload: %w", err)
	}
	if event.Type == "" {
		return fmt.Errorf("escalation event missing type")
	}

	s.sink.HandleEscalationEvent(s.ctx)
	return nil
}

func (s *Subscriber) closeConnection() {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if !s.connected {
		return
	}
	if s.channel != nil {
		s.channel.Close()
	}
	if s.conn != nil {
		s.conn.Close()
	}
	s.connected = false
}

// dialWithTimeout bounds amqp.Dial, which can otherwise block for the full
// TCP timeout on an unreachable broker.
func dialWithTimeout(url string, timeout time.Duration) (*amqp.Connection, error) {
	type dialResult struct {
		conn *amqp.Connection
		err  error
	}

	resultChan := make(chan dialResult, 1)
	go func() {
		conn, err := amqp.Dial(url)
		resultChan <- dialResult{conn, err}
	}()

	select {
	case result := <-resultChan:
		return result.conn, result.err
	case <-time.After(timeout):
		go func() {
			if result := <-resultChan; result.conn != nil {
				result.conn.Close()
			}
		}()
		return nil, fmt.Errorf("connection timed out after %s", timeout)
	}
}
