package service

import (
	"context"
	"fmt"
	"time"

	"auditgelap-service/internal/ai"
	"auditgelap-service/internal/broker"
	"auditgelap-service/internal/models"
	"auditgelap-service/internal/store"
	"auditgelap-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const roastWindow = 7 * 24 * time.Hour

// RoastService builds the weekly failure report for paid tiers.
type RoastService struct {
	store  *store.Store
	model  Model
	events *broker.EventPublisher
	logger *zap.Logger
	now    func() time.Time
}

// NewRoastService creates a new roast service
func NewRoastService(st *store.Store, model Model, events *broker.EventPublisher) *RoastService {
	return &RoastService{
		store:  st,
		model:  model,
		events: events,
		logger: util.NamedLogger("roast"),
		now:    time.Now,
	}
}

// WeeklyRoast aggregates the last seven days of failures and generates the
// roast. Free users get ErrPremiumRequired.
func (s *RoastService) WeeklyRoast(ctx context.Context, userID string) (*ai.WeeklyRoastOutput, error) {
	ctx, span := util.StartSpan(ctx, "RoastService.WeeklyRoast")
	defer span.End()

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsPremium {
		return nil, ErrPremiumRequired
	}

	since := s.now().Add(-roastWindow)
	failures, err := s.store.GetFailedCommandsSince(ctx, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load weekly failures: %w", err)
	}

	var totalLoss int64
	tasks := make([]ai.FailedTask, 0, len(failures))
	for _, f := range failures {
		totalLoss += f.LossIDR
		tasks = append(tasks, ai.FailedTask{
			Title:     f.Title,
			Excuse:    f.Excuse,
			Diagnosis: f.Diagnosis,
		})
	}

	roast, err := s.model.GenerateWeeklyRoast(ctx, ai.WeeklyRoastInput{
		UserName:          user.Name,
		TotalLossThisWeek: totalLoss,
		FailedTasks:       tasks,
		CurrentRole:       user.Role,
	})
	if err != nil {
		return nil, fmt.Errorf("weekly roast generation failed: %w", err)
	}

	s.logger.Info("Weekly roast generated",
		zap.String("user_id", userID),
		zap.Int64("weekly_loss_idr", totalLoss),
		zap.Int("failure_count", len(tasks)))

	if s.events != nil {
		event := &models.WeeklyRoastSentEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeWeeklyRoastSent,
				Timestamp: s.now(),
			},
			UserID:        userID,
			WeeklyLossIDR: totalLoss,
			FailureCount:  len(tasks),
		}
		if err := s.events.PublishWeeklyRoastSent(ctx, event); err != nil {
			s.logger.Error("Failed to publish WeeklyRoastSent event", zap.Error(err))
		}
	}

	return roast, nil
}
