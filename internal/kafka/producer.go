package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"campus-events/internal/logger"
	"campus-events/internal/models"

	"github.com/segmentio/kafka-go"
)

// Publisher writes one message to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, value []byte) error
}

type Producer struct {
	Writer *kafka.Writer
}

// NewProducer builds a writer that routes each message to its own topic and
// hashes keys so one event's messages stay on one partition.
func NewProducer(brokers []string) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
	}
	return &Producer{Writer: writer}
}

func (p *Producer) Publish(ctx context.Context, topic, key string, value []byte) error {
	return p.Writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
	})
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}

// NoopPublisher drops messages. Used when KAFKA_ENABLED is false.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, string, []byte) error {
	return nil
}

// Emitter publishes JSON domain events after a transaction commits. Failures
// are logged; the committed state change stands.
type Emitter struct {
	Publisher Publisher
	Topics    Topics
	Logger    *logger.Logger
	// Sink, when set, also receives every notification in-process.
	Sink NotificationSink
}

type NotificationSink interface {
	Deliver(n models.Notification)
}

func NewEmitter(p Publisher, topics Topics, log *logger.Logger) *Emitter {
	if p == nil {
		p = NoopPublisher{}
	}
	return &Emitter{Publisher: p, Topics: topics, Logger: log}
}

func (e *Emitter) Emit(ctx context.Context, topic, key string, payload interface{}) {
	value, err := json.Marshal(payload)
	if err != nil {
		e.Logger.Error("KAFKA", fmt.Sprintf("Failed to marshal %T for %s: %v", payload, topic, err))
		return
	}
	if err := e.Publisher.Publish(ctx, topic, key, value); err != nil {
		e.Logger.Error("KAFKA", fmt.Sprintf("Failed to publish to %s (key %s): %v", topic, key, err))
		return
	}
	e.Logger.LogKafka("PUBLISH", topic, key)
}

func (e *Emitter) EventStatus(ctx context.Context, msg models.EventStatusMessage) {
	e.Emit(ctx, e.Topics.EventStatus, msg.EventID, msg)
}

func (e *Emitter) Registration(ctx context.Context, msg models.RegistrationMessage) {
	e.Emit(ctx, e.Topics.Registrations, msg.EventID, msg)
}

func (e *Emitter) Feedback(ctx context.Context, msg models.FeedbackMessage) {
	e.Emit(ctx, e.Topics.Feedback, msg.EventID, msg)
}

func (e *Emitter) Notifications(ctx context.Context, notifications ...models.Notification) {
	for _, n := range notifications {
		e.Emit(ctx, e.Topics.Notifications, n.UserID, models.NewNotificationMessage(n))
		if e.Sink != nil {
			e.Sink.Deliver(n)
		}
	}
}
