package events

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/DeafMist/agentic-voice/backend/internal/models"
)

// Publisher hands retrieval events to whatever archives them.
type Publisher interface {
	PublishRetrieval(ctx context.Context, ev models.RetrievalEvent) error
	Close() error
}

// NopPublisher drops events; used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) PublishRetrieval(context.Context, models.RetrievalEvent) error { return nil }
func (NopPublisher) Close() error                                                  { return nil }

// KafkaPublisher writes events asynchronously, keyed by request id.
type KafkaPublisher struct {
	w   *kafka.Writer
	log *slog.Logger
}

// NewKafkaPublisher creates an async writer. Delivery failures are logged from
// the writer's completion callback since WriteMessages returns before delivery.
func NewKafkaPublisher(brokers []string, topic string, logger *slog.Logger) *KafkaPublisher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	p := &KafkaPublisher{log: logger}
	p.w = &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		MaxAttempts:  3,
		BatchTimeout: 50 * time.Millisecond,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Warn("retrieval events not delivered",
					slog.Any("err", err),
					slog.Int("count", len(messages)),
				)
			}
		},
	}
	return p
}

func (p *KafkaPublisher) PublishRetrieval(ctx context.Context, ev models.RetrievalEvent) error {
	msg, err := Encode(ev)
	if err != nil {
		return err
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish retrieval event: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}

// Encode turns an event into a Kafka message.
func Encode(ev models.RetrievalEvent) (kafka.Message, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal retrieval event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(ev.RequestID),
		Value: payload,
		Time:  ev.Timestamp,
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte("application/json")},
		},
	}, nil
}

// Decode parses a message produced by Encode.
func Decode(msg kafka.Message) (models.RetrievalEvent, error) {
	var ev models.RetrievalEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		return ev, fmt.Errorf("unmarshal retrieval event: %w", err)
	}
	return ev, nil
}
