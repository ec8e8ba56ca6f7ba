package models

import "time"

// Event types
const (
	EventTypeSubscriptionActivated = "SUBSCRIPTION_ACTIVATED"
	EventTypeSubscriptionExpired   = "SUBSCRIPTION_EXPIRED"
	EventTypeAuditGenerated        = "AUDIT_GENERATED"
	EventTypeCommandFailed         = "COMMAND_FAILED"
	EventTypeWeeklyRoastSent       = "WEEKLY_ROAST_SENT"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// SubscriptionActivatedEvent published when a verified PAID notification
// upgrades a user
type SubscriptionActivatedEvent struct {
	BaseEvent
	UserID  string `json:"user_id"`
	OrderID string `json:"order_id"`
	Role    string `json:"role"`
}

// SubscriptionExpiredEvent published when a verified FAILED notification
// downgrades a user
type SubscriptionExpiredEvent struct {
	BaseEvent
	UserID string `json:"user_id"`
	Reason string `json:"reason"`
}

// AuditGeneratedEvent published after an audit is persisted
type AuditGeneratedEvent struct {
	BaseEvent
	UserID             string `json:"user_id"`
	AuditID            int64  `json:"audit_id"`
	AuditType          string `json:"audit_type"`
	OpportunityCostIDR int64  `json:"opportunity_cost_idr"`
	CommandCount       int    `json:"command_count"`
}

// CommandFailedEvent published when the sweeper expires a pending command
type CommandFailedEvent struct {
	BaseEvent
	UserID    string `json:"user_id"`
	CommandID int64  `json:"command_id"`
	Title     string `json:"title"`
	LossIDR   int64  `json:"loss_idr"`
	Role      string `json:"role"`
}

// WeeklyRoastSentEvent published after a weekly roast is generated
type WeeklyRoastSentEvent struct {
	BaseEvent
	UserID        string `json:"user_id"`
	WeeklyLossIDR int64  `json:"weekly_loss_idr"`
	FailureCount  int    `json:"failure_count"`
}
