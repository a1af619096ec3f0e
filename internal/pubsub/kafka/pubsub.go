package kafka

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	wkafka "github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/prorata-io/prorata/internal/config"
	ierr "github.com/prorata-io/prorata/internal/errors"
	"github.com/prorata-io/prorata/internal/kafka"
	"github.com/prorata-io/prorata/internal/logger"
	"github.com/prorata-io/prorata/internal/pubsub"
)

type kafkaPubSub struct {
	publisher  *wkafka.Publisher
	subscriber *wkafka.Subscriber
}

// NewPubSub creates a Kafka-backed publisher/subscriber pair sharing one
// sarama configuration (TLS and SASL/SCRAM included).
func NewPubSub(cfg *config.Configuration, log *logger.Logger) (pubsub.Publisher, pubsub.Subscriber, error) {
	saramaConfig := kafka.GetSaramaConfig(cfg)
	wmLogger := pubsub.NewWatermillLogger(log)

	publisher, err := wkafka.NewPublisher(
		wkafka.PublisherConfig{
			Brokers:               cfg.Kafka.Brokers,
			Marshaler:             wkafka.DefaultMarshaler{},
			OverwriteSaramaConfig: saramaConfig,
		},
		wmLogger,
	)
	if err != nil {
		return nil, nil, ierr.WithError(err).
			WithHint("Failed to create kafka publisher").
			Mark(ierr.ErrSystem)
	}

	subscriber, err := wkafka.NewSubscriber(
		wkafka.SubscriberConfig{
			Brokers:               cfg.Kafka.Brokers,
			Unmarshaler:           wkafka.DefaultMarshaler{},
			OverwriteSaramaConfig: saramaConfig,
			ConsumerGroup:         cfg.Kafka.ConsumerGroup,
		},
		wmLogger,
	)
	if err != nil {
		return nil, nil, ierr.WithError(err).
			WithHint("Failed to create kafka subscriber").
			Mark(ierr.ErrSystem)
	}

	ps := &kafkaPubSub{publisher: publisher, subscriber: subscriber}
	return ps, ps, nil
}

func (p *kafkaPubSub) Publish(ctx context.Context, topic string, msg *message.Message) error {
	msg.SetContext(ctx)
	return p.publisher.Publish(topic, msg)
}

func (p *kafkaPubSub) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return p.subscriber.Subscribe(ctx, topic)
}

func (p *kafkaPubSub) Close() error {
	if err := p.publisher.Close(); err != nil {
		return err
	}
	return p.subscriber.Close()
}
