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

// CommandService tracks strategic commands from issue to completion or
// failure.
type CommandService struct {
	store  *store.Store
	model  Model
	events *broker.EventPublisher
	logger *zap.Logger
	now    func() time.Time
}

// NewCommandService creates a new command service
func NewCommandService(st *store.Store, model Model, events *broker.EventPublisher) *CommandService {
	return &CommandService{
		store:  st,
		model:  model,
		events: events,
		logger: util.NamedLogger("commands"),
		now:    time.Now,
	}
}

// Pending returns a user's open commands
func (s *CommandService) Pending(ctx context.Context, userID string) ([]models.Command, error) {
	return s.store.GetPendingCommands(ctx, userID)
}

// CompleteRequest carries the user's execution proof
type CompleteRequest struct {
	ExecutionProof string `json:"execution_proof" binding:"required"`
}

// CompleteResponse reports the integrity judgement
type CompleteResponse struct {
	Completed         bool   `json:"completed"`
	IntegrityScore    int    `json:"integrity_score"`
	Analysis          string `json:"analysis"`
	ResolutionMessage string `json:"resolution_message"`
}

// Complete judges an execution claim. A valid claim completes the command and
// bumps the completion stats; an invalid one leaves the command pending and
// returns the roast.
func (s *CommandService) Complete(ctx context.Context, commandID int64, req *CompleteRequest) (*CompleteResponse, error) {
	ctx, span := util.StartSpan(ctx, "CommandService.Complete")
	defer span.End()

	cmd, err := s.store.GetCommandByID(ctx, commandID)
	if err != nil {
		return nil, err
	}
	if cmd.Status != models.CommandStatusPending {
		return nil, fmt.Errorf("command %d is not pending", commandID)
	}

	user, err := s.store.GetUserByID(ctx, cmd.UserID)
	if err != nil {
		return nil, err
	}

	verdict, err := s.model.VerifyExecution(ctx, ai.VerifyExecutionInput{
		TaskTitle:      cmd.Title,
		ExecutionProof: req.ExecutionProof,
		UserName:       user.Name,
	})
	if err != nil {
		return nil, fmt.Errorf("execution verification failed: %w", err)
	}

	if !verdict.IsValid {
		util.ExecutionClaimsRejectedTotal.Inc()
		s.logger.Info("Execution claim rejected",
			zap.Int64("command_id", commandID),
			zap.String("user_id", user.ID),
			zap.Int("integrity_score", verdict.IntegrityScore))
		return &CompleteResponse{
			Completed:         false,
			IntegrityScore:    verdict.IntegrityScore,
			Analysis:          verdict.Analysis,
			ResolutionMessage: verdict.ResolutionMessage,
		}, nil
	}

	if err := s.store.MarkCommandCompleted(ctx, commandID, s.now()); err != nil {
		return nil, fmt.Errorf("failed to complete command: %w", err)
	}

	if err := s.store.IncrementCompletedCommands(ctx, user.ID); err != nil {
		s.logger.Error("Failed to bump completion stats",
			zap.String("user_id", user.ID), zap.Error(err))
	}

	util.CommandsCompletedTotal.Inc()

	message := verdict.ResolutionMessage
	ack, err := s.model.AcknowledgeExecution(ctx, ai.AcknowledgeInput{
		TaskTitle: cmd.Title,
		UserName:  user.Name,
	})
	if err != nil {
		s.logger.Warn("Failed to generate acknowledgement, using verdict message",
			zap.Error(err))
	} else {
		message = ack.Message
	}

	s.logger.Info("Command completed",
		zap.Int64("command_id", commandID),
		zap.String("user_id", user.ID))

	return &CompleteResponse{
		Completed:         true,
		IntegrityScore:    verdict.IntegrityScore,
		Analysis:          verdict.Analysis,
		ResolutionMessage: message,
	}, nil
}

// SweepExpired marks overdue pending commands as failed, accumulates each
// user's loss and publishes the failure events. Returns the number expired.
func (s *CommandService) SweepExpired(ctx context.Context) (int, error) {
	ctx, span := util.StartSpan(ctx, "CommandService.SweepExpired")
	defer span.End()

	expired, err := s.store.ExpireDueCommands(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to expire commands: %w", err)
	}

	for _, cmd := range expired {
		util.CommandsFailedTotal.Inc()

		var lossIDR int64
		if audit, err := s.store.GetAuditByID(ctx, cmd.AuditID); err != nil {
			s.logger.Warn("Failed to load audit for expired command",
				zap.Int64("command_id", cmd.ID), zap.Error(err))
		} else if audit != nil {
			lossIDR = audit.OpportunityCostIDR
		}

		if err := s.store.AddCommandFailure(ctx, cmd.UserID, lossIDR); err != nil {
			s.logger.Error("Failed to record command failure",
				zap.String("user_id", cmd.UserID), zap.Error(err))
		}

		role := models.RoleBystander
		if user, err := s.store.GetUserByID(ctx, cmd.UserID); err == nil {
			role = user.Role
		}

		s.logger.Info("Command expired",
			zap.Int64("command_id", cmd.ID),
			zap.String("user_id", cmd.UserID),
			zap.Int64("loss_idr", lossIDR))

		if s.events != nil {
			event := &models.CommandFailedEvent{
				BaseEvent: models.BaseEvent{
					EventID:   uuid.New().String(),
					EventType: models.EventTypeCommandFailed,
					Timestamp: s.now(),
				},
				UserID:    cmd.UserID,
				CommandID: cmd.ID,
				Title:     cmd.Title,
				LossIDR:   lossIDR,
				Role:      role,
			}
			if err := s.events.PublishCommandFailed(ctx, event); err != nil {
				s.logger.Error("Failed to publish CommandFailed event", zap.Error(err))
			}
		}
	}

	return len(expired), nil
}
