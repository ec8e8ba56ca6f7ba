package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"auditgelap-service/internal/models"
)

// CreateCommand persists a strategic command issued by an audit
func (s *Store) CreateCommand(ctx context.Context, cmd *models.Command) error {
	query := `
		INSERT INTO active_commands (user_id, audit_id, title, status, deadline)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	row := s.db.QueryRowxContext(ctx, query,
		cmd.UserID, cmd.AuditID, cmd.Title, cmd.Status, cmd.Deadline)
	return row.Scan(&cmd.ID, &cmd.CreatedAt)
}

// GetCommandByID retrieves a command
func (s *Store) GetCommandByID(ctx context.Context, id int64) (*models.Command, error) {
	var cmd models.Command
	err := s.db.GetContext(ctx, &cmd, "SELECT * FROM active_commands WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("command not found: %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &cmd, nil
}

// GetPendingCommands retrieves a user's pending commands, earliest deadline
// first
func (s *Store) GetPendingCommands(ctx context.Context, userID string) ([]models.Command, error) {
	var cmds []models.Command
	err := s.db.SelectContext(ctx, &cmds,
		"SELECT * FROM active_commands WHERE user_id = $1 AND status = $2 ORDER BY deadline",
		userID, models.CommandStatusPending)
	return cmds, err
}

// MarkCommandCompleted transitions a pending command to completed
func (s *Store) MarkCommandCompleted(ctx context.Context, id int64, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE active_commands SET status = $1, completed_at = $2 WHERE id = $3 AND status = $4",
		models.CommandStatusCompleted, at, id, models.CommandStatusPending)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("command not pending: %d", id)
	}
	return nil
}

// ExpireDueCommands marks every pending command past its deadline as failed
// and returns the expired rows
func (s *Store) ExpireDueCommands(ctx context.Context, now time.Time) ([]models.Command, error) {
	var cmds []models.Command
	err := s.db.SelectContext(ctx, &cmds, `
		UPDATE active_commands SET status = $1
		WHERE status = $2 AND deadline < $3
		RETURNING *`,
		models.CommandStatusFailed, models.CommandStatusPending, now)
	return cmds, err
}
