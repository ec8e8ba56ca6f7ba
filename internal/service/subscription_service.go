package service

import (
	"context"
	"time"

	"auditgelap-service/internal/models"
	"auditgelap-service/internal/redisclient"
	"auditgelap-service/internal/store"
	"auditgelap-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const subscriptionCacheTTL = 5 * time.Minute

// SubscriptionService exposes the authoritative subscription view and
// handles signup. Clients poll this instead of writing subscription fields
// themselves; the webhook reconciler is the only writer.
type SubscriptionService struct {
	store  *store.Store
	redis  *redisclient.Client
	logger *zap.Logger
}

// NewSubscriptionService creates a new subscription service
func NewSubscriptionService(st *store.Store, redis *redisclient.Client) *SubscriptionService {
	return &SubscriptionService{
		store:  st,
		redis:  redis,
		logger: util.NamedLogger("subscription"),
	}
}

// SignupRequest creates a user with free-tier defaults
type SignupRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required,email"`
	Lang  string `json:"lang,omitempty"`
}

// Signup creates a new free-tier user
func (s *SubscriptionService) Signup(ctx context.Context, req *SignupRequest) (*models.User, error) {
	user := &models.User{
		ID:    uuid.New().String(),
		Name:  req.Name,
		Email: req.Email,
		Lang:  req.Lang,
		Role:  models.RoleBystander,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("User created", zap.String("user_id", user.ID))
	return user, nil
}

// GetSubscription returns the subscription view, served from cache when
// fresh. The reconciler invalidates the cache on every applied mutation.
func (s *SubscriptionService) GetSubscription(ctx context.Context, userID string) (*redisclient.SubscriptionView, error) {
	if cached, err := s.redis.GetCachedSubscription(ctx, userID); err != nil {
		s.logger.Warn("Subscription cache read failed",
			zap.String("user_id", userID), zap.Error(err))
	} else if cached != nil {
		return cached, nil
	}

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	view := &redisclient.SubscriptionView{
		UserID:    user.ID,
		State:     user.SubscriptionState(),
		Role:      user.Role,
		IsPremium: user.IsPremium,
	}

	if err := s.redis.CacheSubscription(ctx, view, subscriptionCacheTTL); err != nil {
		s.logger.Warn("Subscription cache write failed",
			zap.String("user_id", userID), zap.Error(err))
	}

	return view, nil
}
