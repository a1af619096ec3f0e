package service

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/prorata-io/prorata/internal/api/dto"
	ierr "github.com/prorata-io/prorata/internal/errors"
	"github.com/prorata-io/prorata/internal/types"
)

// EventService accepts usage reports and hands them to the ingestion topic.
// The consumer applies them to the ledger asynchronously.
type EventService interface {
	PublishUsage(ctx context.Context, req *dto.IngestUsageRequest) (string, error)
}

type eventService struct {
	ServiceParams
}

func NewEventService(params ServiceParams) EventService {
	return &eventService{ServiceParams: params}
}

func (s *eventService) PublishUsage(ctx context.Context, req *dto.IngestUsageRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	event := req.ToUsageEvent(types.GetTenantID(ctx))
	event.EnvironmentID = types.GetEnvironmentID(ctx)

	payload, err := json.Marshal(event)
	if err != nil {
		return "", ierr.WithError(err).
			WithHint("Failed to encode usage event").
			Mark(ierr.ErrSystem)
	}

	msg := message.NewMessage(event.ID, payload)
	if err := s.Publisher.Publish(ctx, s.Config.Kafka.UsageTopic, msg); err != nil {
		return "", ierr.WithError(err).
			WithHint("Failed to publish usage event").
			WithReportableDetails(map[string]interface{}{
				"customer_id": event.CustomerID,
				"feature_id":  event.FeatureID,
			}).
			Mark(ierr.ErrSystem)
	}

	s.Logger.Debugw("published usage event",
		"event_id", event.ID,
		"customer_id", event.CustomerID,
		"feature_id", event.FeatureID)
	return event.ID, nil
}
