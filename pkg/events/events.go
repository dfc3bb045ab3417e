// Package events publishes domain events to Kafka after the state change
// that produced them has committed. Delivery is best effort.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/JaimeStill/civic/pkg/lifecycle"
)

// Event is the envelope written to the topic. Key orders events per aggregate.
type Event struct {
	Type       string    `json:"type"`
	Key        string    `json:"key"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type kafkaPublisher struct {
	writer  messageWriter
	timeout time.Duration
	logger  *slog.Logger
}

// New returns a Kafka publisher, or a no-op publisher when no brokers are configured.
func New(cfg *Config, logger *slog.Logger) Publisher {
	logger = logger.With("system", "events")
	if !cfg.Enabled() {
		logger.Info("event publishing disabled")
		return Noop{}
	}

	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return newKafkaPublisher(w, cfg.WriteTimeoutDuration(), logger)
}

func newKafkaPublisher(w messageWriter, timeout time.Duration, logger *slog.Logger) *kafkaPublisher {
	return &kafkaPublisher{writer: w, timeout: timeout, logger: logger}
}

// Start registers a shutdown hook that flushes and closes the writer.
func Start(p Publisher, lc *lifecycle.Coordinator) {
	kp, ok := p.(*kafkaPublisher)
	if !ok {
		return
	}
	lc.OnShutdown(func() {
		<-lc.Context().Done()
		if err := kp.writer.Close(); err != nil {
			kp.logger.Error("event writer close failed", "error", err)
		}
	})
}

func (p *kafkaPublisher) Publish(ctx context.Context, events ...Event) error {
	if len(events) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(events))
	for _, e := range events {
		if e.OccurredAt.IsZero() {
			e.OccurredAt = time.Now().UTC()
		}
		value, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encode event %s: %w", e.Type, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(e.Key),
			Value: value,
			Headers: []kafka.Header{
				{Key: "type", Value: []byte(e.Type)},
			},
		})
	}

	writeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.writer.WriteMessages(writeCtx, msgs...); err != nil {
		return fmt.Errorf("publish %d events: %w", len(msgs), err)
	}
	return nil
}

type Noop struct{}

func (Noop) Publish(context.Context, ...Event) error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, events ...Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
	return nil
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// PublishAfter publishes and logs failure instead of returning it.
func PublishAfter(ctx context.Context, p Publisher, logger *slog.Logger, events ...Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, events...); err != nil {
		logger.Warn("event publish failed", "count", len(events), "error", err)
	}
}
