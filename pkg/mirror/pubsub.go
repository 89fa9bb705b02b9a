package mirror

import (
	"context"
	"strconv"
	"time"

	"cloud.google.com/go/pubsub"
)

// PubSub publishes documents to a Pub/Sub topic.
type PubSub struct {
	topic *pubsub.Topic
}

// NewPubSub constructs a publisher for the given topic. If the topic is nil,
// publishes are treated as no-ops.
func NewPubSub(topic *pubsub.Topic) *PubSub {
	return &PubSub{topic: topic}
}

func (p *PubSub) Publish(ctx context.Context, msg Message) error {
	if p.topic == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := p.topic.Publish(ctx, &pubsub.Message{
		Data: msg.Payload,
		Attributes: map[string]string{
			"kind":      msg.Kind,
			"bike":      msg.Bike,
			"path":      msg.Path,
			"session":   msg.SessionID,
			"timestamp": strconv.FormatInt(msg.Timestamp, 10),
			"synced":    strconv.FormatBool(msg.Synced),
		},
	}).Get(ctx)
	return err
}
