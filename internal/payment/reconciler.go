package payment

import (
	"context"
	"errors"
	"time"

	"auditgelap-service/internal/models"
	"auditgelap-service/internal/store"
	"auditgelap-service/internal/util"

	"go.uber.org/zap"
)

// ErrInvalidSignature is returned for notifications whose signature_key does
// not match the server key.
var ErrInvalidSignature = errors.New("invalid notification signature")

// UserStore is the subset of the store the reconciler mutates. The write
// methods overwrite the full subscription field set so redeliveries converge.
type UserStore interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	ActivateSubscription(ctx context.Context, userID string, act store.SubscriptionActivation) error
	ExpireSubscription(ctx context.Context, userID, reason string, eventMillis int64) error
}

// SessionStore resolves an order id back to the checkout session that created
// it, for tier resolution and session bookkeeping.
type SessionStore interface {
	GetCheckoutSessionByOrderID(ctx context.Context, orderID string) (*models.CheckoutSession, error)
	UpdateCheckoutSessionStatus(ctx context.Context, orderID, status string) error
	RecordPaymentNotification(ctx context.Context, log *models.PaymentNotificationLog) error
}

// SubscriptionEvents publishes subscription transitions. Implementations must
// tolerate best-effort delivery; publish failures never fail the webhook.
type SubscriptionEvents interface {
	PublishSubscriptionActivated(ctx context.Context, event *models.SubscriptionActivatedEvent) error
	PublishSubscriptionExpired(ctx context.Context, event *models.SubscriptionExpiredEvent) error
}

// CacheInvalidator drops any cached view of a user's subscription after a
// mutation.
type CacheInvalidator interface {
	InvalidateSubscription(ctx context.Context, userID string) error
}

// Reconciler converts untrusted gateway notifications into authorized,
// idempotent mutations of one user's subscription record.
type Reconciler struct {
	serverKey       string
	defaultPaidTier string
	users           UserStore
	sessions        SessionStore
	events          SubscriptionEvents
	cache           CacheInvalidator
	logger          *zap.Logger
	now             func() time.Time
}

// ReconcilerOption configures optional collaborators.
type ReconcilerOption func(*Reconciler)

// WithSubscriptionEvents wires transition events to the broker.
func WithSubscriptionEvents(ev SubscriptionEvents) ReconcilerOption {
	return func(r *Reconciler) { r.events = ev }
}

// WithCacheInvalidator wires subscription cache invalidation.
func WithCacheInvalidator(c CacheInvalidator) ReconcilerOption {
	return func(r *Reconciler) { r.cache = c }
}

// NewReconciler creates a reconciler. The server key is injected here rather
// than read from the environment so the component stays testable.
func NewReconciler(serverKey, defaultPaidTier string, users UserStore, sessions SessionStore, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		serverKey:       serverKey,
		defaultPaidTier: defaultPaidTier,
		users:           users,
		sessions:        sessions,
		logger:          util.NamedLogger("reconciler"),
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Result reports what a notification did.
type Result struct {
	Outcome Outcome
	UserID  string
	Role    string
	Applied bool
	Stale   bool
}

// HandleNotification runs the reconciliation pipeline for one notification.
//
// Error returns are limited to the two client-attributable rejections:
// ErrInvalidSignature and ErrMalformedOrderID. Downstream store failures are
// logged and swallowed; the gateway's redelivery is the recovery mechanism,
// so those still return a Result with Applied=false and a nil error.
func (r *Reconciler) HandleNotification(ctx context.Context, n *Notification) (*Result, error) {
	ctx, span := util.StartSpan(ctx, "Reconciler.HandleNotification")
	defer span.End()

	if !VerifySignature(n, r.serverKey) {
		util.WebhookSignatureFailuresTotal.Inc()
		r.logger.Warn("Rejected notification with invalid signature",
			zap.String("order_id", n.OrderID),
			zap.String("transaction_status", n.TransactionStatus))
		return nil, ErrInvalidSignature
	}

	userID, issuedAt, err := ParseOrderID(n.OrderID)
	if err != nil {
		util.WebhookNotificationsTotal.WithLabelValues("malformed").Inc()
		r.logger.Warn("Rejected notification with malformed order id",
			zap.String("order_id", n.OrderID))
		return nil, err
	}

	outcome := Classify(n.TransactionStatus, n.FraudStatus)
	util.WebhookNotificationsTotal.WithLabelValues(string(outcome)).Inc()

	result := &Result{Outcome: outcome, UserID: userID}

	r.logger.Info("Processing notification",
		zap.String("order_id", n.OrderID),
		zap.String("user_id", userID),
		zap.String("transaction_status", n.TransactionStatus),
		zap.String("fraud_status", n.FraudStatus),
		zap.String("outcome", string(outcome)))

	if outcome == OutcomeNoOp {
		r.record(ctx, n, userID, result)
		return result, nil
	}

	eventAt := n.EventTime(issuedAt)

	user, err := r.users.GetUserByID(ctx, userID)
	if err != nil {
		r.logger.Error("Failed to load user for notification, relying on gateway retry",
			zap.String("user_id", userID),
			zap.Error(err))
		r.record(ctx, n, userID, result)
		return result, nil
	}

	// Delivery order is not guaranteed. A verified notification strictly
	// older than the last applied one must not regress the record; equal
	// timestamps still apply so a same-second settlement/expire pair lands.
	if user.LastEventMillis.Valid && eventAt.UnixMilli() < user.LastEventMillis.Int64 {
		util.WebhookStaleNotificationsTotal.Inc()
		r.logger.Warn("Skipping stale notification",
			zap.String("order_id", n.OrderID),
			zap.Int64("event_millis", eventAt.UnixMilli()),
			zap.Int64("last_event_millis", user.LastEventMillis.Int64))
		result.Stale = true
		r.record(ctx, n, userID, result)
		return result, nil
	}

	switch outcome {
	case OutcomePaid:
		r.applyPaid(ctx, n, userID, eventAt, result)
	case OutcomeFailed:
		r.applyFailed(ctx, n, userID, eventAt, result)
	}

	r.record(ctx, n, userID, result)

	if result.Applied && r.cache != nil {
		if err := r.cache.InvalidateSubscription(ctx, userID); err != nil {
			r.logger.Warn("Failed to invalidate subscription cache",
				zap.String("user_id", userID), zap.Error(err))
		}
	}

	return result, nil
}

func (r *Reconciler) applyPaid(ctx context.Context, n *Notification, userID string, eventAt time.Time, result *Result) {
	role := r.resolveRole(ctx, n.OrderID)
	result.Role = role

	err := r.users.ActivateSubscription(ctx, userID, store.SubscriptionActivation{
		OrderID:       n.OrderID,
		Role:          role,
		PaymentMillis: r.now().UnixMilli(),
		EventMillis:   eventAt.UnixMilli(),
	})
	if err != nil {
		r.logger.Error("Failed to activate subscription, relying on gateway retry",
			zap.String("user_id", userID),
			zap.String("order_id", n.OrderID),
			zap.Error(err))
		return
	}

	result.Applied = true
	util.SubscriptionActivationsTotal.Inc()
	r.logger.Info("Subscription activated",
		zap.String("user_id", userID),
		zap.String("role", role),
		zap.String("order_id", n.OrderID))

	if err := r.sessions.UpdateCheckoutSessionStatus(ctx, n.OrderID, models.CheckoutStatusSettled); err != nil {
		r.logger.Warn("Failed to settle checkout session",
			zap.String("order_id", n.OrderID), zap.Error(err))
	}

	if r.events != nil {
		r.publishActivated(ctx, userID, n.OrderID, role)
	}
}

func (r *Reconciler) applyFailed(ctx context.Context, n *Notification, userID string, eventAt time.Time, result *Result) {
	err := r.users.ExpireSubscription(ctx, userID, n.TransactionStatus, eventAt.UnixMilli())
	if err != nil {
		r.logger.Error("Failed to expire subscription, relying on gateway retry",
			zap.String("user_id", userID),
			zap.String("order_id", n.OrderID),
			zap.Error(err))
		return
	}

	result.Applied = true
	util.SubscriptionExpirationsTotal.WithLabelValues(n.TransactionStatus).Inc()
	r.logger.Info("Subscription expired",
		zap.String("user_id", userID),
		zap.String("reason", n.TransactionStatus))

	if err := r.sessions.UpdateCheckoutSessionStatus(ctx, n.OrderID, models.CheckoutStatusFailed); err != nil {
		r.logger.Warn("Failed to fail checkout session",
			zap.String("order_id", n.OrderID), zap.Error(err))
	}

	if r.events != nil {
		r.publishExpired(ctx, userID, n.TransactionStatus)
	}
}

// resolveRole maps the order's checkout session to a tier, falling back to
// the default paid tier when session or plan metadata is unavailable.
func (r *Reconciler) resolveRole(ctx context.Context, orderID string) string {
	sess, err := r.sessions.GetCheckoutSessionByOrderID(ctx, orderID)
	if err != nil {
		r.logger.Warn("Failed to load checkout session, using default tier",
			zap.String("order_id", orderID), zap.Error(err))
		return r.defaultPaidTier
	}
	if sess == nil {
		return r.defaultPaidTier
	}
	if plan := models.PlanByID(sess.PlanID); plan != nil && models.IsPaidRole(plan.ID) {
		return plan.ID
	}
	return r.defaultPaidTier
}

func (r *Reconciler) record(ctx context.Context, n *Notification, userID string, result *Result) {
	log := &models.PaymentNotificationLog{
		OrderID:           n.OrderID,
		UserID:            userID,
		TransactionStatus: n.TransactionStatus,
		FraudStatus:       n.FraudStatus,
		Outcome:           string(result.Outcome),
		Applied:           result.Applied,
	}
	if err := r.sessions.RecordPaymentNotification(ctx, log); err != nil {
		r.logger.Warn("Failed to record notification audit trail",
			zap.String("order_id", n.OrderID), zap.Error(err))
	}
}
