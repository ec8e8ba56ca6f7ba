package models

import (
	"database/sql"
	"time"
)

// Membership tiers
const (
	RoleBystander   = "bystander"
	RoleExecutioner = "executioner"
	RoleWarRoom     = "war_room"
)

// Subscription statuses as stored on the user record
const (
	SubscriptionStatusActive  = "active"
	SubscriptionStatusExpired = "expired"
)

// Derived subscription states
const (
	SubscriptionStateFree    = "FREE"
	SubscriptionStateActive  = "ACTIVE"
	SubscriptionStateExpired = "EXPIRED"
)

// User represents an account with its embedded subscription record and
// gamified stats. Subscription fields are mutated only by the payment
// reconciler.
type User struct {
	ID                  string         `db:"id" json:"id"`
	Name                string         `db:"name" json:"name"`
	Email               string         `db:"email" json:"email"`
	Lang                string         `db:"lang" json:"lang"`
	IsPremium           bool           `db:"is_premium" json:"is_premium"`
	Role                string         `db:"role" json:"role"`
	SubscriptionStatus  sql.NullString `db:"subscription_status" json:"-"`
	SubscriptionOrderID sql.NullString `db:"subscription_order_id" json:"-"`
	LastPaymentMillis   sql.NullInt64  `db:"last_payment_millis" json:"-"`
	LastEventMillis     sql.NullInt64  `db:"last_event_millis" json:"-"`
	FailureReason       sql.NullString `db:"failure_reason" json:"-"`
	CompletedCommands   int            `db:"completed_commands" json:"completed_commands"`
	FailedCommands      int            `db:"failed_commands" json:"failed_commands"`
	TotalLossIDR        int64          `db:"total_loss_idr" json:"total_loss_idr"`
	CreatedAt           time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time      `db:"updated_at" json:"updated_at"`
}

// SubscriptionState derives the FREE/ACTIVE/EXPIRED state from the record.
func (u *User) SubscriptionState() string {
	switch u.SubscriptionStatus.String {
	case SubscriptionStatusActive:
		return SubscriptionStateActive
	case SubscriptionStatusExpired:
		return SubscriptionStateExpired
	default:
		return SubscriptionStateFree
	}
}

// Plan is a subscription tier from the catalog.
type Plan struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	PriceIDR int64  `json:"price_idr"`
}

// CheckoutSession correlates a Midtrans order id to the user and plan that
// initiated it. The reconciler reads it back for tier resolution.
type CheckoutSession struct {
	OrderID   string    `db:"order_id" json:"order_id"`
	UserID    string    `db:"user_id" json:"user_id"`
	PlanID    string    `db:"plan_id" json:"plan_id"`
	AmountIDR int64     `db:"amount_idr" json:"amount_idr"`
	Status    string    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Checkout session statuses
const (
	CheckoutStatusPending = "PENDING"
	CheckoutStatusSettled = "SETTLED"
	CheckoutStatusFailed  = "FAILED"
)

// AuditLog is one generated audit with its diagnosis and loss figures.
type AuditLog struct {
	ID                 int64     `db:"id" json:"id"`
	UserID             string    `db:"user_id" json:"user_id"`
	SituationDetails   string    `db:"situation_details" json:"situation_details"`
	Lang               string    `db:"lang" json:"lang"`
	DiagnosisTitle     string    `db:"diagnosis_title" json:"diagnosis_title"`
	BrutalDiagnosis    string    `db:"brutal_diagnosis" json:"brutal_diagnosis"`
	OpportunityCostIDR int64     `db:"opportunity_cost_idr" json:"opportunity_cost_idr"`
	GrowthLossPct      float64   `db:"growth_loss_pct" json:"growth_loss_pct"`
	DarkAnalogy        string    `db:"dark_analogy" json:"dark_analogy"`
	AuditType          string    `db:"audit_type" json:"audit_type"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
}

// Audit types
const (
	AuditTypeStandard = "standard"
	AuditTypeDeep     = "deep_audit"
)

// Command is a strategic command issued by an audit, tracked to a deadline.
type Command struct {
	ID          int64        `db:"id" json:"id"`
	UserID      string       `db:"user_id" json:"user_id"`
	AuditID     int64        `db:"audit_id" json:"audit_id"`
	Title       string       `db:"title" json:"title"`
	Status      string       `db:"status" json:"status"`
	Deadline    time.Time    `db:"deadline" json:"deadline"`
	CompletedAt sql.NullTime `db:"completed_at" json:"-"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
}

// Command statuses
const (
	CommandStatusPending   = "PENDING"
	CommandStatusCompleted = "COMPLETED"
	CommandStatusFailed    = "FAILED"
)

// PaymentNotificationLog is the raw audit trail of webhook deliveries.
type PaymentNotificationLog struct {
	ID                int64     `db:"id"`
	OrderID           string    `db:"order_id"`
	UserID            string    `db:"user_id"`
	TransactionStatus string    `db:"transaction_status"`
	FraudStatus       string    `db:"fraud_status"`
	Outcome           string    `db:"outcome"`
	Applied           bool      `db:"applied"`
	ReceivedAt        time.Time `db:"received_at"`
}

// ProcessedEvent for consumer-side idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
