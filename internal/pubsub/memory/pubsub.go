package memory

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/prorata-io/prorata/internal/pubsub"
)

type memoryPubSub struct {
	channel *gochannel.GoChannel
}

// NewPubSub creates an in-process pubsub used by tests and local mode.
func NewPubSub() pubsub.PubSub {
	channel := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 128},
		watermill.NopLogger{},
	)
	return &memoryPubSub{channel: channel}
}

func (p *memoryPubSub) Publish(ctx context.Context, topic string, msg *message.Message) error {
	msg.SetContext(ctx)
	return p.channel.Publish(topic, msg)
}

func (p *memoryPubSub) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return p.channel.Subscribe(ctx, topic)
}

func (p *memoryPubSub) Close() error {
	return p.channel.Close()
}
