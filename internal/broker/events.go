package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"request-service/internal/models"

	"github.com/segmentio/kafka-go"
)

// EventPublisher publishes request lifecycle events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

func requestKey(requestID string) string {
	return fmt.Sprintf("request-%s", requestID)
}

// PublishRequestCreated publishes a RequestCreated event
func (ep *EventPublisher) PublishRequestCreated(ctx context.Context, event *models.RequestCreatedEvent) error {
	return ep.producer.PublishEvent(ctx, requestKey(event.RequestID), event)
}

// PublishRequestResolved publishes a RequestApproved or RequestRejected event
func (ep *EventPublisher) PublishRequestResolved(ctx context.Context, event *models.RequestResolvedEvent) error {
	return ep.producer.PublishEvent(ctx, requestKey(event.RequestID), event)
}

// PublishRequestRemoved publishes a RequestCancelled or RequestReaped event
func (ep *EventPublisher) PublishRequestRemoved(ctx context.Context, event *models.RequestRemovedEvent) error {
	return ep.producer.PublishEvent(ctx, requestKey(event.RequestID), event)
}

// EventHandler routes incoming request events to registered callbacks.
type EventHandler struct {
	onRequestChange func(ctx context.Context, clientID, companyID string) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnRequestChange registers a callback fired once per request event with the
// ids of the views the event invalidates.
func (eh *EventHandler) OnRequestChange(handler func(ctx context.Context, clientID, companyID string) error) {
	eh.onRequestChange = handler
}

// HandleMessage decodes a request event envelope and dispatches it.
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var envelope models.RequestChangeEnvelope
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		return fmt.Errorf("failed to unmarshal request event: %w", err)
	}

	switch envelope.EventType {
	case models.EventTypeRequestCreated,
		models.EventTypeRequestApproved,
		models.EventTypeRequestRejected,
		models.EventTypeRequestCancelled,
		models.EventTypeRequestReaped:
		if eh.onRequestChange != nil {
			return eh.onRequestChange(ctx, envelope.ClientID, envelope.CompanyID)
		}
	}

	return nil
}
