package mirror

import (
	"context"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTT publishes documents under <prefix>/<bike>/<kind>.
type MQTT struct {
	prefix string
	send   func(ctx context.Context, topic string, payload []byte) error
}

// NewMQTTClient builds an auto-reconnecting client for broker.
func NewMQTTClient(broker, clientID string) mqtt.Client {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetKeepAlive(30 * time.Second).
		SetPingTimeout(10 * time.Second).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)
	return mqtt.NewClient(opts)
}

// NewMQTT publishes through client at QoS 1. The client must already be
// connected or connecting.
func NewMQTT(client mqtt.Client, prefix string) *MQTT {
	return &MQTT{
		prefix: strings.TrimSuffix(prefix, "/"),
		send: func(ctx context.Context, topic string, payload []byte) error {
			tok := client.Publish(topic, 1, false, payload)
			select {
			case <-tok.Done():
				return tok.Error()
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Second):
				return fmt.Errorf("mqtt publish %s: timed out", topic)
			}
		},
	}
}

func (m *MQTT) Topic(msg Message) string {
	return m.prefix + "/" + msg.Bike + "/" + msg.Kind
}

func (m *MQTT) Publish(ctx context.Context, msg Message) error {
	return m.send(ctx, m.Topic(msg), msg.Payload)
}
