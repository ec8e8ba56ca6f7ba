package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"auditgelap-service/internal/models"
	"auditgelap-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

func userKey(userID string) string {
	return fmt.Sprintf("user-%s", userID)
}

// PublishSubscriptionActivated publishes SubscriptionActivated event
func (ep *EventPublisher) PublishSubscriptionActivated(ctx context.Context, event *models.SubscriptionActivatedEvent) error {
	return ep.producer.PublishEvent(ctx, userKey(event.UserID), event)
}

// PublishSubscriptionExpired publishes SubscriptionExpired event
func (ep *EventPublisher) PublishSubscriptionExpired(ctx context.Context, event *models.SubscriptionExpiredEvent) error {
	return ep.producer.PublishEvent(ctx, userKey(event.UserID), event)
}

// PublishAuditGenerated publishes AuditGenerated event
func (ep *EventPublisher) PublishAuditGenerated(ctx context.Context, event *models.AuditGeneratedEvent) error {
	return ep.producer.PublishEvent(ctx, userKey(event.UserID), event)
}

// PublishCommandFailed publishes CommandFailed event
func (ep *EventPublisher) PublishCommandFailed(ctx context.Context, event *models.CommandFailedEvent) error {
	return ep.producer.PublishEvent(ctx, userKey(event.UserID), event)
}

// PublishWeeklyRoastSent publishes WeeklyRoastSent event
func (ep *EventPublisher) PublishWeeklyRoastSent(ctx context.Context, event *models.WeeklyRoastSentEvent) error {
	return ep.producer.PublishEvent(ctx, userKey(event.UserID), event)
}

// EventHandler routes consumed events to registered callbacks
type EventHandler struct {
	logger *zap.Logger

	onSubscriptionActivated func(context.Context, *models.SubscriptionActivatedEvent) error
	onSubscriptionExpired   func(context.Context, *models.SubscriptionExpiredEvent) error
	onCommandFailed         func(context.Context, *models.CommandFailedEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.NamedLogger("events")}
}

// OnSubscriptionActivated registers a handler for SubscriptionActivated events
func (eh *EventHandler) OnSubscriptionActivated(handler func(context.Context, *models.SubscriptionActivatedEvent) error) {
	eh.onSubscriptionActivated = handler
}

// OnSubscriptionExpired registers a handler for SubscriptionExpired events
func (eh *EventHandler) OnSubscriptionExpired(handler func(context.Context, *models.SubscriptionExpiredEvent) error) {
	eh.onSubscriptionExpired = handler
}

// OnCommandFailed registers a handler for CommandFailed events
func (eh *EventHandler) OnCommandFailed(handler func(context.Context, *models.CommandFailedEvent) error) {
	eh.onCommandFailed = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeSubscriptionActivated:
		if eh.onSubscriptionActivated != nil {
			var event models.SubscriptionActivatedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal SubscriptionActivated event: %w", err)
			}
			return eh.onSubscriptionActivated(ctx, &event)
		}

	case models.EventTypeSubscriptionExpired:
		if eh.onSubscriptionExpired != nil {
			var event models.SubscriptionExpiredEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal SubscriptionExpired event: %w", err)
			}
			return eh.onSubscriptionExpired(ctx, &event)
		}

	case models.EventTypeCommandFailed:
		if eh.onCommandFailed != nil {
			var event models.CommandFailedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal CommandFailed event: %w", err)
			}
			return eh.onCommandFailed(ctx, &event)
		}

	default:
		eh.logger.Debug("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
