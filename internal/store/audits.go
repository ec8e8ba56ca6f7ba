package store

import (
	"context"
	"database/sql"
	"time"

	"auditgelap-service/internal/models"
)

// CreateAuditLog persists a generated audit
func (s *Store) CreateAuditLog(ctx context.Context, audit *models.AuditLog) error {
	query := `
		INSERT INTO audit_logs (user_id, situation_details, lang, diagnosis_title,
			brutal_diagnosis, opportunity_cost_idr, growth_loss_pct, dark_analogy, audit_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`

	row := s.db.QueryRowxContext(ctx, query,
		audit.UserID, audit.SituationDetails, audit.Lang, audit.DiagnosisTitle,
		audit.BrutalDiagnosis, audit.OpportunityCostIDR, audit.GrowthLossPct,
		audit.DarkAnalogy, audit.AuditType)
	return row.Scan(&audit.ID, &audit.CreatedAt)
}

// GetAuditsByUserID retrieves audit history, newest first
func (s *Store) GetAuditsByUserID(ctx context.Context, userID string, limit int) ([]models.AuditLog, error) {
	var audits []models.AuditLog
	err := s.db.SelectContext(ctx, &audits,
		"SELECT * FROM audit_logs WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2",
		userID, limit)
	return audits, err
}

// GetAuditByID retrieves a single audit
func (s *Store) GetAuditByID(ctx context.Context, id int64) (*models.AuditLog, error) {
	var audit models.AuditLog
	err := s.db.GetContext(ctx, &audit, "SELECT * FROM audit_logs WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &audit, nil
}

// FailedCommandSummary is a failed command joined to the audit that issued it,
// used to build the weekly roast input.
type FailedCommandSummary struct {
	Title     string `db:"title"`
	Excuse    string `db:"situation_details"`
	Diagnosis string `db:"brutal_diagnosis"`
	LossIDR   int64  `db:"opportunity_cost_idr"`
}

// GetFailedCommandsSince retrieves a user's failed commands with their audit
// context, newest first
func (s *Store) GetFailedCommandsSince(ctx context.Context, userID string, since time.Time) ([]FailedCommandSummary, error) {
	var rows []FailedCommandSummary
	err := s.db.SelectContext(ctx, &rows, `
		SELECT c.title, a.situation_details, a.brutal_diagnosis, a.opportunity_cost_idr
		FROM active_commands c
		JOIN audit_logs a ON a.id = c.audit_id
		WHERE c.user_id = $1 AND c.status = $2 AND c.deadline >= $3
		ORDER BY c.deadline DESC`,
		userID, models.CommandStatusFailed, since)
	return rows, err
}
