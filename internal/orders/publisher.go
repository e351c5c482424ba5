package orders

import (
	"context"
	"strconv"

	kafkax "github.com/ariefcatur/go-storefront/internal/kafka"
	kafkago "github.com/segmentio/kafka-go"
)

// KafkaPublisher writes envelopes to TopicOrderEvents keyed by order id.
type KafkaPublisher struct {
	Producer *kafkax.Producer
}

func (p *KafkaPublisher) PublishEvent(ctx context.Context, env Envelope) error {
	b, err := kafkax.Marshal(env)
	if err != nil {
		return err
	}
	return p.Producer.Publish(ctx, PartitionKey(env.CorrelationID), b,
		kafkago.Header{Key: "x-event-type", Value: []byte(env.EventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte(strconv.Itoa(env.EventVersion))},
	)
}
