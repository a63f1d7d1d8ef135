// Package events publishes best-effort domain notifications (document
// processed, snapshot created, project deleted, …) to Kafka. Publishing
// never blocks or fails the caller: a broker outage degrades to a logged
// warning, matching spec SPEC_FULL's "side-channel, not a job queue" framing.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"kgraph/internal/config"
	"kgraph/internal/logging"
)

// Publisher emits a fire-and-forget event. A nil *Publisher (no broker
// configured) is a valid zero value: Publish becomes a no-op.
type Publisher struct {
	writer *kafka.Writer
	topic  string
}

// New builds a Publisher when Kafka is configured; returns a nil-writer
// Publisher (safe to call Publish on) otherwise.
func New(cfg config.KafkaConfig) *Publisher {
	if !cfg.Enabled {
		return &Publisher{}
	}
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers),
			Topic:        cfg.Topic,
			Balancer:     &kafka.LeastBytes{},
			Async:        true,
			WriteTimeout: 5 * time.Second,
		},
		topic: cfg.Topic,
	}
}

// Event is the envelope every published message carries.
type Event struct {
	Type      string    `json:"type"`
	Key       string    `json:"key"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// Publish writes one event asynchronously. The eventType argument becomes
// the event's "type" field (e.g. "document.processed", "snapshot.created",
// "project.deleted"); key is the Kafka partition key.
func (p *Publisher) Publish(ctx context.Context, eventType, key string, payload any) {
	if p == nil || p.writer == nil {
		return
	}
	body, err := json.Marshal(Event{Type: eventType, Key: key, Payload: payload, Timestamp: time.Now().UTC()})
	if err != nil {
		logging.Log.WithError(err).WithField("event", eventType).Warn("failed to marshal domain event")
		return
	}
	go func() {
		writeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.writer.WriteMessages(writeCtx, kafka.Message{Key: []byte(key), Value: body, Time: time.Now()}); err != nil {
			logging.Log.WithError(err).WithField("event", eventType).Warn("failed to publish domain event")
		}
	}()
}

// Close flushes and shuts down the underlying writer.
func (p *Publisher) Close() {
	if p == nil || p.writer == nil {
		return
	}
	if err := p.writer.Close(); err != nil {
		logging.Log.WithError(err).Warn("kafka writer close failed")
	}
}
