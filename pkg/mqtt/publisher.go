package mqtt

import (
	"fmt"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// IPublisher publishes a serialized message to a fixed topic.
type IPublisher interface {
	PublishMessage(message interface{}) error
	Close()
}

type Publisher struct {
	client paho.Client
	topic  string
}

func NewPublisher(client paho.Client, topic string) *Publisher {
	return &Publisher{client: client, topic: topic}
}

// PublishMessage publishes a pre-serialized string payload.
func (p *Publisher) PublishMessage(message interface{}) error {
	payload, ok := message.(string)
	if !ok {
		return fmt.Errorf("invalid message format, expected string")
	}
	token := p.client.Publish(p.topic, qosFor(p.topic), false, payload)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("publish to %s: %w", p.topic, token.Error())
	}
	return nil
}

func (p *Publisher) Close() {
	if p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}
