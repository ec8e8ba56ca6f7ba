package store

import (
	"context"
	"database/sql"
	"fmt"

	"auditgelap-service/internal/models"
)

// ErrUserNotFound is returned when a user id does not resolve to a row.
var ErrUserNotFound = fmt.Errorf("user not found")

// CreateUser inserts a new user with free-tier defaults
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, name, email, lang, is_premium, role)
		VALUES ($1, $2, $3, $4, false, $5)
		RETURNING created_at, updated_at`

	if user.Role == "" {
		user.Role = models.RoleBystander
	}
	if user.Lang == "" {
		user.Lang = "id"
	}

	row := s.db.QueryRowxContext(ctx, query,
		user.ID, user.Name, user.Email, user.Lang, user.Role)
	return row.Scan(&user.CreatedAt, &user.UpdatedAt)
}

// GetUserByID retrieves a user by ID
func (s *Store) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user, "SELECT * FROM users WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// SubscriptionActivation is the full set of fields overwritten when a PAID
// notification lands. Replays of the same notification converge to the same
// row state.
type SubscriptionActivation struct {
	OrderID       string
	Role          string
	PaymentMillis int64
	EventMillis   int64
}

// ActivateSubscription overwrites a user's subscription fields to the paid
// state
func (s *Store) ActivateSubscription(ctx context.Context, userID string, act SubscriptionActivation) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET
			is_premium = true,
			subscription_status = $1,
			subscription_order_id = $2,
			last_payment_millis = $3,
			last_event_millis = $4,
			failure_reason = NULL,
			role = $5,
			updated_at = NOW()
		WHERE id = $6`,
		models.SubscriptionStatusActive, act.OrderID, act.PaymentMillis,
		act.EventMillis, act.Role, userID)
	if err != nil {
		return err
	}
	return requireOneRow(res, userID)
}

// ExpireSubscription overwrites a user's subscription fields to the expired
// state, recording the raw gateway status as the failure reason
func (s *Store) ExpireSubscription(ctx context.Context, userID, reason string, eventMillis int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET
			is_premium = false,
			subscription_status = $1,
			failure_reason = $2,
			last_event_millis = $3,
			role = $4,
			updated_at = NOW()
		WHERE id = $5`,
		models.SubscriptionStatusExpired, reason, eventMillis,
		models.RoleBystander, userID)
	if err != nil {
		return err
	}
	return requireOneRow(res, userID)
}

func requireOneRow(res sql.Result, userID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	return nil
}

// IncrementCompletedCommands bumps the completion counter
func (s *Store) IncrementCompletedCommands(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE users SET completed_commands = completed_commands + 1, updated_at = NOW() WHERE id = $1",
		userID)
	return err
}

// AddCommandFailure bumps the failure counter and accumulates the loss
func (s *Store) AddCommandFailure(ctx context.Context, userID string, lossIDR int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE users SET failed_commands = failed_commands + 1, total_loss_idr = total_loss_idr + $1, updated_at = NOW() WHERE id = $2",
		lossIDR, userID)
	return err
}
