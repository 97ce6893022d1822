package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaPublisher emits audit events to a kafka topic keyed by application ID,
// so all events for one application land on one partition in order.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// KafkaOption configures the KafkaPublisher.
type KafkaOption func(*KafkaPublisher)

// WithLogger sets a logger for emission failures.
func WithLogger(logger *slog.Logger) KafkaOption {
	return func(p *KafkaPublisher) {
		p.logger = logger
	}
}

// NewKafkaPublisher connects a producer-only client. The topic must already
// exist; this publisher does no topic administration.
func NewKafkaPublisher(brokers []string, topic string, opts ...KafkaOption) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one kafka broker is required")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	p := &KafkaPublisher{client: client, topic: topic}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

type eventEnvelope struct {
	Action        string    `json:"action"`
	Category      string    `json:"category"`
	Timestamp     time.Time `json:"timestamp"`
	ApplicationID string    `json:"application_id"`
	ActorID       string    `json:"actor_id,omitempty"`
	Subject       string    `json:"subject,omitempty"`
	Detail        string    `json:"detail,omitempty"`
	RequestID     string    `json:"request_id,omitempty"`
}

// Emit produces the event synchronously. Callers already run after the save,
// off the user's critical path, so blocking on acks is acceptable and keeps
// at-least-once semantics simple.
func (p *KafkaPublisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	payload, err := json.Marshal(eventEnvelope{
		Action:        string(event.Action),
		Category:      string(event.Action.Category()),
		Timestamp:     event.Timestamp,
		ApplicationID: event.ApplicationID.String(),
		ActorID:       event.ActorID.String(),
		Subject:       event.Subject,
		Detail:        event.Detail,
		RequestID:     event.RequestID,
	})
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.ApplicationID.String()),
		Value: payload,
	}

	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		if p.logger != nil {
			p.logger.WarnContext(ctx, "audit event emission failed",
				"action", event.Action,
				"application_id", event.ApplicationID,
				"error", err,
			)
		}
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

// Close flushes outstanding records and releases the client.
func (p *KafkaPublisher) Close() error {
	p.client.Close()
	return nil
}
