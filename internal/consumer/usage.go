package consumer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/cenkalti/backoff/v4"
	"github.com/prorata-io/prorata/internal/config"
	"github.com/prorata-io/prorata/internal/domain/events"
	ierr "github.com/prorata-io/prorata/internal/errors"
	"github.com/prorata-io/prorata/internal/logger"
	"github.com/prorata-io/prorata/internal/pubsub"
	"github.com/prorata-io/prorata/internal/service"
	"github.com/prorata-io/prorata/internal/types"
)

// UsageConsumer drains the usage topic and applies each event to the ledger.
// Transient failures are retried with exponential backoff; events that fail
// validation are acked and dropped so they cannot wedge the partition.
type UsageConsumer struct {
	cfg          *config.Configuration
	logger       *logger.Logger
	subscriber   pubsub.Subscriber
	usageService service.UsageService
}

func NewUsageConsumer(
	cfg *config.Configuration,
	log *logger.Logger,
	subscriber pubsub.Subscriber,
	usageService service.UsageService,
) *UsageConsumer {
	return &UsageConsumer{
		cfg:          cfg,
		logger:       log,
		subscriber:   subscriber,
		usageService: usageService,
	}
}

// Run consumes until ctx is cancelled.
func (c *UsageConsumer) Run(ctx context.Context) error {
	messages, err := c.subscriber.Subscribe(ctx, c.cfg.Kafka.UsageTopic)
	if err != nil {
		return ierr.WithError(err).
			WithHintf("Failed to subscribe to %s", c.cfg.Kafka.UsageTopic).
			Mark(ierr.ErrSystem)
	}
	c.logger.Infow("usage consumer started", "topic", c.cfg.Kafka.UsageTopic)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			c.handle(ctx, msg)
		}
	}
}

func (c *UsageConsumer) handle(ctx context.Context, msg *message.Message) {
	var event events.UsageEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		c.logger.Errorw("dropping malformed usage event", "message_id", msg.UUID, "error", err)
		msg.Ack()
		return
	}
	if event.CustomerID == "" || event.FeatureID == "" {
		c.logger.Errorw("dropping usage event without customer or feature", "message_id", msg.UUID)
		msg.Ack()
		return
	}

	eventCtx := types.SetTenantID(ctx, event.TenantID)
	if event.EnvironmentID != "" {
		eventCtx = types.SetEnvironmentID(eventCtx, event.EnvironmentID)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5), eventCtx)
	err := backoff.RetryNotify(func() error {
		err := c.usageService.ProcessUsageEvent(eventCtx, &event)
		if err != nil && ierr.IsValidation(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy, func(err error, next time.Duration) {
		c.logger.Warnw("retrying usage event",
			"event_id", event.ID,
			"customer_id", event.CustomerID,
			"retry_in", next,
			"error", err)
	})
	if err != nil {
		c.logger.Errorw("failed to process usage event, nacking",
			"event_id", event.ID,
			"customer_id", event.CustomerID,
			"error", err)
		msg.Nack()
		return
	}
	msg.Ack()
}
