package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes client events to one topic. The writer is created on first publish so a
// CLI invocation that emits nothing never dials the brokers.
type KafkaPublisher struct {
	brokers   []string
	topic     string
	newWriter func(topic string) messageWriter
	now       func() time.Time

	mu     sync.Mutex
	writer messageWriter
}

// NewKafkaPublisher creates a publisher writing every event type to topic.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	p := &KafkaPublisher{
		brokers: brokers,
		topic:   topic,
		now:     time.Now,
	}
	p.newWriter = p.kafkaWriter
	return p
}

// Publish encodes payload as JSON and writes it keyed by key, with event_type and source headers.
func (p *KafkaPublisher) Publish(ctx context.Context, eventType, key string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", eventType, err)
	}
	msg := kafka.Message{
		Key:   []byte(key),
		Value: body,
		Time:  p.now().UTC(),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
			{Key: "source", Value: []byte("gym-client")},
		},
	}
	if err := p.activeWriter().WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write %s to %s: %w", eventType, p.topic, err)
	}
	return nil
}

func (p *KafkaPublisher) activeWriter() messageWriter {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writer == nil {
		p.writer = p.newWriter(p.topic)
	}
	return p.writer
}

func (p *KafkaPublisher) kafkaWriter(topic string) messageWriter {
	return &kafka.Writer{
		Addr:                   kafka.TCP(p.brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
}

// Close releases the writer if one was created.
func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writer == nil {
		return nil
	}
	err := p.writer.Close()
	p.writer = nil
	return err
}
