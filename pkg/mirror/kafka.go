package mirror

import (
	"context"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes documents keyed by bike so one bike's history stays on
// one partition.
type Kafka struct {
	w messageWriter
}

func NewKafka(brokers []string, topic string) *Kafka {
	return &Kafka{w: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}}
}

func (k *Kafka) Publish(ctx context.Context, msg Message) error {
	return k.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.Bike),
		Value: msg.Payload,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(msg.Kind)},
			{Key: "path", Value: []byte(msg.Path)},
			{Key: "session", Value: []byte(msg.SessionID)},
		},
		Time: msg.Time,
	})
}

func (k *Kafka) Close() error {
	return k.w.Close()
}
