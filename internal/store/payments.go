package store

import (
	"context"
	"database/sql"

	"auditgelap-service/internal/models"
)

// CreateCheckoutSession records a pending payment session for an order id
func (s *Store) CreateCheckoutSession(ctx context.Context, sess *models.CheckoutSession) error {
	query := `
		INSERT INTO checkout_sessions (order_id, user_id, plan_id, amount_idr, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`

	row := s.db.QueryRowxContext(ctx, query,
		sess.OrderID, sess.UserID, sess.PlanID, sess.AmountIDR, sess.Status)
	return row.Scan(&sess.CreatedAt, &sess.UpdatedAt)
}

// GetCheckoutSessionByOrderID retrieves the session for an order id, or nil
// when the order id was never seen
func (s *Store) GetCheckoutSessionByOrderID(ctx context.Context, orderID string) (*models.CheckoutSession, error) {
	var sess models.CheckoutSession
	err := s.db.GetContext(ctx, &sess,
		"SELECT * FROM checkout_sessions WHERE order_id = $1", orderID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// UpdateCheckoutSessionStatus moves a session to SETTLED or FAILED
func (s *Store) UpdateCheckoutSessionStatus(ctx context.Context, orderID, status string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE checkout_sessions SET status = $1, updated_at = NOW() WHERE order_id = $2",
		status, orderID)
	return err
}

// RecordPaymentNotification appends a row to the raw webhook audit trail
func (s *Store) RecordPaymentNotification(ctx context.Context, log *models.PaymentNotificationLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payment_notifications (order_id, user_id, transaction_status, fraud_status, outcome, applied)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		log.OrderID, log.UserID, log.TransactionStatus, log.FraudStatus,
		log.Outcome, log.Applied)
	return err
}

// IsEventProcessed checks if a broker event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks a broker event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
