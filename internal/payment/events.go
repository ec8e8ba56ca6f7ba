package payment

import (
	"context"
	"time"

	"auditgelap-service/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func (r *Reconciler) publishActivated(ctx context.Context, userID, orderID, role string) {
	event := &models.SubscriptionActivatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeSubscriptionActivated,
			Timestamp: time.Now(),
		},
		UserID:  userID,
		OrderID: orderID,
		Role:    role,
	}
	if err := r.events.PublishSubscriptionActivated(ctx, event); err != nil {
		r.logger.Error("Failed to publish SubscriptionActivated event", zap.Error(err))
	}
}

func (r *Reconciler) publishExpired(ctx context.Context, userID, reason string) {
	event := &models.SubscriptionExpiredEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeSubscriptionExpired,
			Timestamp: time.Now(),
		},
		UserID: userID,
		Reason: reason,
	}
	if err := r.events.PublishSubscriptionExpired(ctx, event); err != nil {
		r.logger.Error("Failed to publish SubscriptionExpired event", zap.Error(err))
	}
}
