package testutil

import (
	"github.com/prorata-io/prorata/internal/pubsub"
	"github.com/prorata-io/prorata/internal/pubsub/memory"
)

// NewInMemoryPubSub returns a channel backed pubsub for tests.
func NewInMemoryPubSub() pubsub.PubSub {
	return memory.NewPubSub()
}
