package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"auditgelap-service/config"
	"auditgelap-service/internal/ai"
	"auditgelap-service/internal/broker"
	"auditgelap-service/internal/models"
	"auditgelap-service/internal/redisclient"
	"auditgelap-service/internal/store"
	"auditgelap-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrQuotaExceeded is returned when a free user exhausts the monthly audit
// quota.
var ErrQuotaExceeded = errors.New("monthly audit quota exceeded")

// ErrPremiumRequired is returned for features gated to paid tiers.
var ErrPremiumRequired = errors.New("premium subscription required")

// Strategic-command caps enforced server-side regardless of what the model
// returns.
const (
	maxCommandsFree    = 2
	maxCommandsPremium = 4
)

// AuditService generates audits, enforces the free-tier quota and persists
// the resulting commands.
type AuditService struct {
	store      *store.Store
	redis      *redisclient.Client
	model      Model
	events     *broker.EventPublisher
	logger     *zap.Logger
	freeQuota  int
	quotaTTL   time.Duration
	commandTTL time.Duration
	now        func() time.Time
}

// NewAuditService creates a new audit service
func NewAuditService(st *store.Store, redis *redisclient.Client, model Model, events *broker.EventPublisher, biz config.BusinessConfig) *AuditService {
	return &AuditService{
		store:      st,
		redis:      redis,
		model:      model,
		events:     events,
		logger:     util.NamedLogger("audit"),
		freeQuota:  biz.FreeAuditQuota,
		quotaTTL:   time.Duration(biz.QuotaWindowDaysTTL) * 24 * time.Hour,
		commandTTL: time.Duration(biz.CommandTTLHours) * time.Hour,
		now:        time.Now,
	}
}

// GenerateAuditRequest is the inbound audit request
type GenerateAuditRequest struct {
	UserID           string `json:"user_id" binding:"required"`
	SituationDetails string `json:"situation_details" binding:"required"`
	Lang             string `json:"lang,omitempty"`
}

// GenerateAuditResponse carries the audit and the commands it issued
type GenerateAuditResponse struct {
	Audit    *models.AuditLog `json:"audit"`
	Commands []models.Command `json:"commands"`
}

// GenerateAudit runs the full audit pipeline: quota, model call, persistence,
// command creation, event publication.
func (s *AuditService) GenerateAudit(ctx context.Context, req *GenerateAuditRequest) (*GenerateAuditResponse, error) {
	ctx, span := util.StartSpan(ctx, "AuditService.GenerateAudit")
	defer span.End()

	user, err := s.store.GetUserByID(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	lang := req.Lang
	if lang == "" {
		lang = user.Lang
	}

	quotaTaken := false
	if !user.IsPremium {
		ok, err := s.redis.TakeAuditQuota(ctx, user.ID, s.freeQuota, s.quotaTTL, s.now())
		if err != nil {
			return nil, fmt.Errorf("failed to check audit quota: %w", err)
		}
		if !ok {
			util.AuditQuotaRejectedTotal.Inc()
			return nil, ErrQuotaExceeded
		}
		quotaTaken = true
	}

	out, err := s.model.GenerateAudit(ctx, ai.AuditInput{
		SituationDetails: req.SituationDetails,
		Lang:             lang,
		IsPremiumUser:    user.IsPremium,
	})
	if err != nil {
		if quotaTaken {
			if rerr := s.redis.RefundAuditQuota(ctx, user.ID, s.now()); rerr != nil {
				s.logger.Warn("Failed to refund audit quota",
					zap.String("user_id", user.ID), zap.Error(rerr))
			}
		}
		return nil, fmt.Errorf("audit generation failed: %w", err)
	}

	audit := &models.AuditLog{
		UserID:             user.ID,
		SituationDetails:   req.SituationDetails,
		Lang:               lang,
		DiagnosisTitle:     out.DiagnosisTitle,
		BrutalDiagnosis:    out.BrutalDiagnosis,
		OpportunityCostIDR: out.OpportunityCostIDR,
		GrowthLossPct:      out.GrowthLossPct,
		DarkAnalogy:        out.DarkAnalogy,
		AuditType:          auditType(user.IsPremium, out.Type),
	}

	if err := s.store.CreateAuditLog(ctx, audit); err != nil {
		return nil, fmt.Errorf("failed to persist audit: %w", err)
	}

	commands := make([]models.Command, 0, len(out.StrategicCommands))
	deadline := s.now().Add(s.commandTTL)
	for _, title := range truncateCommands(out.StrategicCommands, user.IsPremium) {
		cmd := models.Command{
			UserID:   user.ID,
			AuditID:  audit.ID,
			Title:    title,
			Status:   models.CommandStatusPending,
			Deadline: deadline,
		}
		if err := s.store.CreateCommand(ctx, &cmd); err != nil {
			s.logger.Error("Failed to persist command",
				zap.Int64("audit_id", audit.ID), zap.Error(err))
			continue
		}
		commands = append(commands, cmd)
	}

	util.AuditsGeneratedTotal.WithLabelValues(audit.AuditType).Inc()
	s.logger.Info("Audit generated",
		zap.String("user_id", user.ID),
		zap.Int64("audit_id", audit.ID),
		zap.String("type", audit.AuditType),
		zap.Int64("opportunity_cost_idr", audit.OpportunityCostIDR))

	if s.events != nil {
		event := &models.AuditGeneratedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeAuditGenerated,
				Timestamp: s.now(),
			},
			UserID:             user.ID,
			AuditID:            audit.ID,
			AuditType:          audit.AuditType,
			OpportunityCostIDR: audit.OpportunityCostIDR,
			CommandCount:       len(commands),
		}
		if err := s.events.PublishAuditGenerated(ctx, event); err != nil {
			s.logger.Error("Failed to publish AuditGenerated event", zap.Error(err))
		}
	}

	return &GenerateAuditResponse{Audit: audit, Commands: commands}, nil
}

// History returns audit history. Shadow tracking is a paid feature: free
// users only see their most recent audit.
func (s *AuditService) History(ctx context.Context, userID string) ([]models.AuditLog, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	limit := 1
	if user.IsPremium {
		limit = 50
	}
	return s.store.GetAuditsByUserID(ctx, userID, limit)
}

// auditType guards the model's self-reported type against the user's tier.
func auditType(isPremium bool, reported string) string {
	if isPremium && reported == models.AuditTypeDeep {
		return models.AuditTypeDeep
	}
	return models.AuditTypeStandard
}

// truncateCommands caps the command list at the tier's allowance.
func truncateCommands(commands []string, isPremium bool) []string {
	limit := maxCommandsFree
	if isPremium {
		limit = maxCommandsPremium
	}
	if len(commands) > limit {
		return commands[:limit]
	}
	return commands
}
