package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"auditgelap-service/internal/models"
	"auditgelap-service/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testServerKey = "SB-Mid-server-testkey"

type fakeUserStore struct {
	users      map[string]*models.User
	failWrites bool
}

func newFakeUserStore(ids ...string) *fakeUserStore {
	f := &fakeUserStore{users: map[string]*models.User{}}
	for _, id := range ids {
		f.users[id] = &models.User{ID: id, Role: models.RoleBystander}
	}
	return f
}

func (f *fakeUserStore) GetUserByID(_ context.Context, id string) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrUserNotFound, id)
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUserStore) ActivateSubscription(_ context.Context, userID string, act store.SubscriptionActivation) error {
	if f.failWrites {
		return errors.New("connection refused")
	}
	u, ok := f.users[userID]
	if !ok {
		return fmt.Errorf("%w: %s", store.ErrUserNotFound, userID)
	}
	u.IsPremium = true
	u.Role = act.Role
	u.SubscriptionStatus = sql.NullString{String: models.SubscriptionStatusActive, Valid: true}
	u.SubscriptionOrderID = sql.NullString{String: act.OrderID, Valid: true}
	u.LastPaymentMillis = sql.NullInt64{Int64: act.PaymentMillis, Valid: true}
	u.LastEventMillis = sql.NullInt64{Int64: act.EventMillis, Valid: true}
	u.FailureReason = sql.NullString{}
	return nil
}

func (f *fakeUserStore) ExpireSubscription(_ context.Context, userID, reason string, eventMillis int64) error {
	if f.failWrites {
		return errors.New("connection refused")
	}
	u, ok := f.users[userID]
	if !ok {
		return fmt.Errorf("%w: %s", store.ErrUserNotFound, userID)
	}
	u.IsPremium = false
	u.Role = models.RoleBystander
	u.SubscriptionStatus = sql.NullString{String: models.SubscriptionStatusExpired, Valid: true}
	u.FailureReason = sql.NullString{String: reason, Valid: true}
	u.LastEventMillis = sql.NullInt64{Int64: eventMillis, Valid: true}
	return nil
}

type fakeSessionStore struct {
	sessions map[string]*models.CheckoutSession
	statuses map[string]string
	logs     []*models.PaymentNotificationLog
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{
		sessions: map[string]*models.CheckoutSession{},
		statuses: map[string]string{},
	}
}

func (f *fakeSessionStore) GetCheckoutSessionByOrderID(_ context.Context, orderID string) (*models.CheckoutSession, error) {
	return f.sessions[orderID], nil
}

func (f *fakeSessionStore) UpdateCheckoutSessionStatus(_ context.Context, orderID, status string) error {
	f.statuses[orderID] = status
	return nil
}

func (f *fakeSessionStore) RecordPaymentNotification(_ context.Context, log *models.PaymentNotificationLog) error {
	f.logs = append(f.logs, log)
	return nil
}

type fakeEvents struct {
	activated []*models.SubscriptionActivatedEvent
	expired   []*models.SubscriptionExpiredEvent
}

func (f *fakeEvents) PublishSubscriptionActivated(_ context.Context, e *models.SubscriptionActivatedEvent) error {
	f.activated = append(f.activated, e)
	return nil
}

func (f *fakeEvents) PublishSubscriptionExpired(_ context.Context, e *models.SubscriptionExpiredEvent) error {
	f.expired = append(f.expired, e)
	return nil
}

type fakeCache struct {
	invalidated []string
}

func (f *fakeCache) InvalidateSubscription(_ context.Context, userID string) error {
	f.invalidated = append(f.invalidated, userID)
	return nil
}

type reconcilerFixture struct {
	reconciler *Reconciler
	users      *fakeUserStore
	sessions   *fakeSessionStore
	events     *fakeEvents
	cache      *fakeCache
}

func newReconcilerFixture(userIDs ...string) *reconcilerFixture {
	f := &reconcilerFixture{
		users:    newFakeUserStore(userIDs...),
		sessions: newFakeSessionStore(),
		events:   &fakeEvents{},
		cache:    &fakeCache{},
	}
	f.reconciler = NewReconciler(testServerKey, models.RoleExecutioner, f.users, f.sessions,
		WithSubscriptionEvents(f.events),
		WithCacheInvalidator(f.cache))
	f.reconciler.now = func() time.Time { return time.UnixMilli(1700000100000) }
	return f
}

// signed builds a notification with a valid signature for the test server key.
func signed(orderID, transactionStatus, fraudStatus string) *Notification {
	n := &Notification{
		OrderID:           orderID,
		StatusCode:        "200",
		GrossAmount:       "250000.00",
		TransactionStatus: transactionStatus,
		FraudStatus:       fraudStatus,
	}
	n.SignatureKey = Signature(n.OrderID, n.StatusCode, n.GrossAmount, testServerKey)
	return n
}

func TestHandleNotificationRejectsInvalidSignature(t *testing.T) {
	f := newReconcilerFixture("u123")

	n := signed("AUDIT-u123-1700000000000", "settlement", "")
	n.GrossAmount = "999999.00" // signature no longer matches

	result, err := f.reconciler.HandleNotification(context.Background(), n)
	require.ErrorIs(t, err, ErrInvalidSignature)
	assert.Nil(t, result)

	// Rejection must not mutate anything or leave an audit trail entry.
	assert.False(t, f.users.users["u123"].IsPremium)
	assert.Empty(t, f.sessions.logs)
	assert.Empty(t, f.cache.invalidated)
}

func TestHandleNotificationRejectsMalformedOrderID(t *testing.T) {
	f := newReconcilerFixture("u123")

	n := signed("ORDER-u123-1700000000000", "settlement", "")

	result, err := f.reconciler.HandleNotification(context.Background(), n)
	require.ErrorIs(t, err, ErrMalformedOrderID)
	assert.Nil(t, result)
	assert.False(t, f.users.users["u123"].IsPremium)
}

func TestSettlementActivatesSubscription(t *testing.T) {
	f := newReconcilerFixture("u123")
	f.sessions.sessions["AUDIT-u123-1700000000000"] = &models.CheckoutSession{
		OrderID: "AUDIT-u123-1700000000000",
		UserID:  "u123",
		PlanID:  models.RoleWarRoom,
		Status:  models.CheckoutStatusPending,
	}

	n := signed("AUDIT-u123-1700000000000", "settlement", "accept")

	result, err := f.reconciler.HandleNotification(context.Background(), n)
	require.NoError(t, err)
	assert.Equal(t, OutcomePaid, result.Outcome)
	assert.Equal(t, "u123", result.UserID)
	assert.Equal(t, models.RoleWarRoom, result.Role)
	assert.True(t, result.Applied)
	assert.False(t, result.Stale)

	user := f.users.users["u123"]
	assert.True(t, user.IsPremium)
	assert.Equal(t, models.RoleWarRoom, user.Role)
	assert.Equal(t, models.SubscriptionStateActive, user.SubscriptionState())
	assert.Equal(t, "AUDIT-u123-1700000000000", user.SubscriptionOrderID.String)
	assert.Equal(t, int64(1700000000000), user.LastEventMillis.Int64)
	assert.False(t, user.FailureReason.Valid)

	assert.Equal(t, models.CheckoutStatusSettled, f.sessions.statuses["AUDIT-u123-1700000000000"])
	require.Len(t, f.events.activated, 1)
	assert.Equal(t, models.RoleWarRoom, f.events.activated[0].Role)
	assert.Equal(t, []string{"u123"}, f.cache.invalidated)

	require.Len(t, f.sessions.logs, 1)
	assert.True(t, f.sessions.logs[0].Applied)
}

func TestCaptureAcceptActivatesWithDefaultTier(t *testing.T) {
	f := newReconcilerFixture("u123")
	// No checkout session on file: the default paid tier applies.

	n := signed("AUDIT-u123-1700000000000", "capture", "accept")

	result, err := f.reconciler.HandleNotification(context.Background(), n)
	require.NoError(t, err)
	assert.True(t, result.Applied)
	assert.Equal(t, models.RoleExecutioner, result.Role)
	assert.Equal(t, models.RoleExecutioner, f.users.users["u123"].Role)
}

func TestCaptureChallengeIsNoOp(t *testing.T) {
	f := newReconcilerFixture("u123")

	n := signed("AUDIT-u123-1700000000000", "capture", "challenge")

	result, err := f.reconciler.HandleNotification(context.Background(), n)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoOp, result.Outcome)
	assert.False(t, result.Applied)

	assert.False(t, f.users.users["u123"].IsPremium)
	assert.Empty(t, f.cache.invalidated)

	// A no-op still leaves an audit trail entry.
	require.Len(t, f.sessions.logs, 1)
	assert.Equal(t, string(OutcomeNoOp), f.sessions.logs[0].Outcome)
}

func TestPaidRedeliveryConverges(t *testing.T) {
	f := newReconcilerFixture("u123")

	n := signed("AUDIT-u123-1700000000000", "settlement", "")

	_, err := f.reconciler.HandleNotification(context.Background(), n)
	require.NoError(t, err)
	first := *f.users.users["u123"]

	result, err := f.reconciler.HandleNotification(context.Background(), n)
	require.NoError(t, err)
	assert.True(t, result.Applied)

	// Redelivery overwrites the same field set: the record converges rather
	// than drifting.
	second := *f.users.users["u123"]
	assert.Equal(t, first, second)
	assert.Len(t, f.sessions.logs, 2)
}

func TestExpireAfterSettlementDeactivates(t *testing.T) {
	f := newReconcilerFixture("u123")

	paid := signed("AUDIT-u123-1700000000000", "settlement", "")
	_, err := f.reconciler.HandleNotification(context.Background(), paid)
	require.NoError(t, err)
	require.True(t, f.users.users["u123"].IsPremium)

	failed := signed("AUDIT-u123-1700000000000", "expire", "")
	result, err := f.reconciler.HandleNotification(context.Background(), failed)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.True(t, result.Applied)

	user := f.users.users["u123"]
	assert.False(t, user.IsPremium)
	assert.Equal(t, models.RoleBystander, user.Role)
	assert.Equal(t, models.SubscriptionStateExpired, user.SubscriptionState())
	assert.Equal(t, "expire", user.FailureReason.String)

	assert.Equal(t, models.CheckoutStatusFailed, f.sessions.statuses["AUDIT-u123-1700000000000"])
	require.Len(t, f.events.expired, 1)
	assert.Equal(t, "expire", f.events.expired[0].Reason)
}

func TestStaleNotificationDoesNotRegress(t *testing.T) {
	f := newReconcilerFixture("u123")

	// Newer settlement lands first.
	newer := signed("AUDIT-u123-1700000500000", "settlement", "")
	_, err := f.reconciler.HandleNotification(context.Background(), newer)
	require.NoError(t, err)
	require.True(t, f.users.users["u123"].IsPremium)

	// An older deny arrives late, out of delivery order.
	older := signed("AUDIT-u123-1700000000000", "deny", "")
	result, err := f.reconciler.HandleNotification(context.Background(), older)
	require.NoError(t, err)
	assert.True(t, result.Stale)
	assert.False(t, result.Applied)

	user := f.users.users["u123"]
	assert.True(t, user.IsPremium)
	assert.Equal(t, models.SubscriptionStateActive, user.SubscriptionState())
	assert.Equal(t, int64(1700000500000), user.LastEventMillis.Int64)
}

func TestTransactionTimeOrdersAcrossOrderIDs(t *testing.T) {
	f := newReconcilerFixture("u123")

	newer := signed("AUDIT-u123-1700000000000", "settlement", "")
	newer.TransactionTime = time.UnixMilli(1700000500000).In(time.Local).Format(transactionTimeLayout)
	_, err := f.reconciler.HandleNotification(context.Background(), newer)
	require.NoError(t, err)

	// The order id timestamp of the second notification is newer, but its
	// transaction_time is older: the guard must use the gateway event time.
	older := signed("AUDIT-u123-1700000600000", "cancel", "")
	older.TransactionTime = time.UnixMilli(1700000400000).In(time.Local).Format(transactionTimeLayout)
	result, err := f.reconciler.HandleNotification(context.Background(), older)
	require.NoError(t, err)
	assert.True(t, result.Stale)
	assert.True(t, f.users.users["u123"].IsPremium)
}

func TestUnknownUserReliesOnRetry(t *testing.T) {
	f := newReconcilerFixture() // no users

	n := signed("AUDIT-ghost-1700000000000", "settlement", "")

	result, err := f.reconciler.HandleNotification(context.Background(), n)
	require.NoError(t, err)
	assert.Equal(t, OutcomePaid, result.Outcome)
	assert.False(t, result.Applied)
	require.Len(t, f.sessions.logs, 1)
	assert.False(t, f.sessions.logs[0].Applied)
}

func TestStoreWriteFailureReliesOnRetry(t *testing.T) {
	f := newReconcilerFixture("u123")
	f.users.failWrites = true

	n := signed("AUDIT-u123-1700000000000", "settlement", "")

	result, err := f.reconciler.HandleNotification(context.Background(), n)
	require.NoError(t, err)
	assert.False(t, result.Applied)
	assert.False(t, f.users.users["u123"].IsPremium)
	assert.Empty(t, f.cache.invalidated)
}

func TestResolveRoleIgnoresFreePlanSession(t *testing.T) {
	f := newReconcilerFixture("u123")
	f.sessions.sessions["AUDIT-u123-1700000000000"] = &models.CheckoutSession{
		OrderID: "AUDIT-u123-1700000000000",
		UserID:  "u123",
		PlanID:  models.RoleBystander,
	}

	role := f.reconciler.resolveRole(context.Background(), "AUDIT-u123-1700000000000")
	assert.Equal(t, models.RoleExecutioner, role)
}
