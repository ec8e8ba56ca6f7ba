package worker

import (
	"context"
	"time"

	"auditgelap-service/internal/broker"
	"auditgelap-service/internal/models"
	"auditgelap-service/internal/service"
	"auditgelap-service/internal/store"
	"auditgelap-service/internal/util"

	"go.uber.org/zap"
)

// SweeperWorker periodically expires overdue pending commands.
type SweeperWorker struct {
	commands *service.CommandService
	interval time.Duration
	logger   *zap.Logger
}

// NewSweeperWorker creates a new sweeper worker
func NewSweeperWorker(commands *service.CommandService, interval time.Duration) *SweeperWorker {
	return &SweeperWorker{
		commands: commands,
		interval: interval,
		logger:   util.NamedLogger("sweeper"),
	}
}

// Start runs the sweep loop until the context is cancelled
func (w *SweeperWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting command sweeper", zap.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Sweeper stopping")
			return ctx.Err()
		case <-ticker.C:
			n, err := w.commands.SweepExpired(ctx)
			if err != nil {
				w.logger.Error("Sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				w.logger.Info("Swept expired commands", zap.Int("count", n))
			}
		}
	}
}

// NotifierWorker consumes domain events and delivers the out-of-band
// "scolding" notifications. Delivery is currently structured logging; the
// consumer-side idempotency guard keeps redeliveries from double-notifying
// once a push channel is attached.
type NotifierWorker struct {
	consumer *broker.Consumer
	handler  *broker.EventHandler
	store    *store.Store
	logger   *zap.Logger
}

// NewNotifierWorker creates a new notifier worker
func NewNotifierWorker(consumer *broker.Consumer, st *store.Store) *NotifierWorker {
	w := &NotifierWorker{
		consumer: consumer,
		store:    st,
		logger:   util.NamedLogger("notifier"),
	}

	handler := broker.NewEventHandler()
	handler.OnSubscriptionActivated(w.handleSubscriptionActivated)
	handler.OnSubscriptionExpired(w.handleSubscriptionExpired)
	handler.OnCommandFailed(w.handleCommandFailed)
	w.handler = handler

	return w
}

// Start starts the worker
func (w *NotifierWorker) Start(ctx context.Context) error {
	return w.consumer.StartConsuming(ctx, w.handler.HandleMessage)
}

// Stop stops the worker
func (w *NotifierWorker) Stop() error {
	w.logger.Info("Stopping notifier worker")
	return w.consumer.Close()
}

func (w *NotifierWorker) seen(ctx context.Context, eventID, eventType string) bool {
	processed, err := w.store.IsEventProcessed(ctx, eventID)
	if err != nil {
		w.logger.Error("Failed to check event processed", zap.Error(err))
		return false
	}
	if processed {
		return true
	}
	if err := w.store.MarkEventProcessed(ctx, eventID, eventType); err != nil {
		w.logger.Error("Failed to mark event processed", zap.Error(err))
	}
	return false
}

func (w *NotifierWorker) handleSubscriptionActivated(ctx context.Context, event *models.SubscriptionActivatedEvent) error {
	if w.seen(ctx, event.EventID, event.EventType) {
		return nil
	}
	w.logger.Info("Subscription activated, sending welcome scold",
		zap.String("user_id", event.UserID),
		zap.String("role", event.Role))
	return nil
}

func (w *NotifierWorker) handleSubscriptionExpired(ctx context.Context, event *models.SubscriptionExpiredEvent) error {
	if w.seen(ctx, event.EventID, event.EventType) {
		return nil
	}
	w.logger.Info("Subscription expired, notifying user",
		zap.String("user_id", event.UserID),
		zap.String("reason", event.Reason))
	return nil
}

func (w *NotifierWorker) handleCommandFailed(ctx context.Context, event *models.CommandFailedEvent) error {
	if w.seen(ctx, event.EventID, event.EventType) {
		return nil
	}
	// Paid tiers get the harsher scolding per the product copy.
	if models.IsPaidRole(event.Role) {
		w.logger.Info("Command failed, sending executioner scold",
			zap.String("user_id", event.UserID),
			zap.String("title", event.Title),
			zap.Int64("loss_idr", event.LossIDR))
		return nil
	}
	w.logger.Info("Command failed, sending generic scold",
		zap.String("user_id", event.UserID),
		zap.String("title", event.Title))
	return nil
}
