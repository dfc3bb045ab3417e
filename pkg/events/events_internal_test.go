package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaPublisherEncodesEnvelope(t *testing.T) {
	w := &fakeWriter{}
	p := newKafkaPublisher(w, time.Second, slog.Default())

	err := p.Publish(context.Background(), Event{
		Type:    "score.posted",
		Key:     "jurisdiction-1",
		Payload: map[string]int{"delta": 10},
	})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if len(w.msgs) != 1 {
		t.Fatalf("messages: got %d, want 1", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != "jurisdiction-1" {
		t.Errorf("key: got %s", msg.Key)
	}
	if len(msg.Headers) != 1 || string(msg.Headers[0].Value) != "score.posted" {
		t.Errorf("headers: got %+v", msg.Headers)
	}

	var decoded Event
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Type != "score.posted" || decoded.OccurredAt.IsZero() {
		t.Errorf("decoded envelope: %+v", decoded)
	}
}

func TestKafkaPublisherWrapsWriteError(t *testing.T) {
	sentinel := errors.New("broker down")
	p := newKafkaPublisher(&fakeWriter{err: sentinel}, time.Second, slog.Default())

	err := p.Publish(context.Background(), Event{Type: "issue.transitioned", Key: "i"})
	if !errors.Is(err, sentinel) {
		t.Fatalf("Publish() error = %v, want wrapped %v", err, sentinel)
	}
}

func TestNewWithoutBrokersIsNoop(t *testing.T) {
	cfg := &Config{}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}

	if _, ok := New(cfg, slog.Default()).(Noop); !ok {
		t.Fatal("expected Noop publisher when no brokers configured")
	}
}

func TestFinalizeEnvBrokers(t *testing.T) {
	t.Setenv("CIVIC_TEST_KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")

	cfg := &Config{}
	if err := cfg.Finalize(&Env{Brokers: "CIVIC_TEST_KAFKA_BROKERS"}); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}

	if len(cfg.Brokers) != 2 || cfg.Brokers[1] != "kafka-2:9092" {
		t.Errorf("brokers: got %v", cfg.Brokers)
	}
	if cfg.Topic != "civic.events" {
		t.Errorf("topic: got %s", cfg.Topic)
	}
}

func TestRecorderAndPublishAfter(t *testing.T) {
	r := &Recorder{}
	PublishAfter(context.Background(), r, slog.Default(), Event{Type: "a"}, Event{Type: "b"})

	if got := r.Events(); len(got) != 2 || got[1].Type != "b" {
		t.Errorf("recorded: %+v", got)
	}

	PublishAfter(context.Background(), newKafkaPublisher(&fakeWriter{err: errors.New("x")}, time.Second, slog.Default()), slog.Default(), Event{Type: "c"})
}
