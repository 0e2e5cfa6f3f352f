package feedback

import (
	"context"
	"log/slog"
	"time"

	"github.com/pravnik/pravnik/pkg/kafka"
	"github.com/pravnik/pravnik/pkg/metrics"
)

// Event is a single positive-feedback signal as published to Kafka.
type Event struct {
	Keyword    string    `json:"keyword"`
	DocumentID string    `json:"document_id"`
	Boost      float64   `json:"boost,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Collector buffers feedback events and publishes them to Kafka without
// blocking the request path. When the buffer is full, events are dropped.
type Collector struct {
	producer *kafka.Producer
	eventCh  chan Event
	logger   *slog.Logger
	metrics  *metrics.Metrics
	done     chan struct{}
}

// NewCollector creates a Collector. m may be nil.
func NewCollector(producer *kafka.Producer, bufferSize int, m *metrics.Metrics) *Collector {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	return &Collector{
		producer: producer,
		eventCh:  make(chan Event, bufferSize),
		logger:   slog.Default().With("component", "feedback-collector"),
		metrics:  m,
		done:     make(chan struct{}),
	}
}

// Start launches the publish loop.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		for {
			select {
			case event, ok := <-c.eventCh:
				if !ok {
					return
				}
				c.publish(ctx, event)
			case <-ctx.Done():
				c.drainRemaining()
				return
			}
		}
	}()
	c.logger.Info("feedback collector started", "buffer_size", cap(c.eventCh))
}

// Track enqueues an event, dropping it when the buffer is full.
func (c *Collector) Track(event Event) {
	select {
	case c.eventCh <- event:
	default:
		c.logger.Warn("feedback event dropped (buffer full)")
		if c.metrics != nil {
			c.metrics.FeedbackEventsTotal.WithLabelValues("dropped").Inc()
		}
	}
}

// Close stops accepting events and waits for the publish loop to finish.
func (c *Collector) Close() {
	close(c.eventCh)
	<-c.done
}

func (c *Collector) publish(ctx context.Context, event Event) {
	err := c.producer.Publish(ctx, kafka.Event{
		Key:   event.DocumentID,
		Value: event,
	})
	if err != nil {
		c.logger.Error("failed to publish feedback event", "error", err)
		if c.metrics != nil {
			c.metrics.FeedbackEventsTotal.WithLabelValues("publish_error").Inc()
		}
		return
	}
	if c.metrics != nil {
		c.metrics.FeedbackEventsTotal.WithLabelValues("published").Inc()
	}
}

func (c *Collector) drainRemaining() {
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				return
			}
			c.publish(context.Background(), event)
		default:
			return
		}
	}
}

// HandleEvent returns a Kafka handler that applies consumed feedback events
// to the ranker. Malformed messages are logged and skipped so the consumer
// keeps making progress.
func HandleEvent(r *Ranker, m *metrics.Metrics) kafka.MessageHandler {
	logger := slog.Default().With("component", "feedback-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[Event](value)
		if err != nil {
			logger.Error("failed to decode feedback event", "error", err)
			if m != nil {
				m.FeedbackEventsTotal.WithLabelValues("decode_error").Inc()
			}
			return nil
		}
		if !r.RecordPositiveFeedback(event.Keyword, event.DocumentID, event.Boost) {
			logger.Warn("ignoring feedback event with empty keyword or document",
				"document_id", event.DocumentID,
			)
			if m != nil {
				m.FeedbackEventsTotal.WithLabelValues("rejected").Inc()
			}
			return nil
		}
		if m != nil {
			m.FeedbackEventsTotal.WithLabelValues("applied").Inc()
		}
		return nil
	}
}
