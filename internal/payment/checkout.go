package payment

import (
	"context"
	"fmt"
	"time"

	"auditgelap-service/config"
	"auditgelap-service/internal/models"
	"auditgelap-service/internal/util"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"
	"go.uber.org/zap"
)

// CheckoutUserStore is the read side of the user store needed to build a
// payment session.
type CheckoutUserStore interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// SessionWriter persists checkout sessions.
type SessionWriter interface {
	CreateCheckoutSession(ctx context.Context, sess *models.CheckoutSession) error
}

// CheckoutService creates Snap payment sessions for plan purchases.
type CheckoutService struct {
	snap     *snap.Client
	users    CheckoutUserStore
	sessions SessionWriter
	logger   *zap.Logger
	now      func() time.Time
}

// NewCheckoutService creates a checkout service backed by the Midtrans Snap
// API.
func NewCheckoutService(cfg config.MidtransConfig, users CheckoutUserStore, sessions SessionWriter) *CheckoutService {
	env := midtrans.Sandbox
	if cfg.Production {
		env = midtrans.Production
	}

	client := &snap.Client{}
	client.New(cfg.ServerKey, env)

	return &CheckoutService{
		snap:     client,
		users:    users,
		sessions: sessions,
		logger:   util.NamedLogger("checkout"),
		now:      time.Now,
	}
}

// CheckoutResponse carries the Snap token back to the client.
type CheckoutResponse struct {
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url"`
	OrderID     string `json:"order_id"`
}

// CreateTransaction validates the plan, requests a Snap transaction token and
// persists the session so the webhook can resolve the tier later.
func (cs *CheckoutService) CreateTransaction(ctx context.Context, userID, planID string) (*CheckoutResponse, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.CreateTransaction")
	defer span.End()

	plan := models.PlanByID(planID)
	if plan == nil {
		return nil, fmt.Errorf("unknown plan: %s", planID)
	}
	if plan.PriceIDR == 0 {
		return nil, fmt.Errorf("plan %s is free, nothing to purchase", planID)
	}

	user, err := cs.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	orderID := NewOrderID(user.ID, cs.now())

	req := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  orderID,
			GrossAmt: plan.PriceIDR,
		},
		CreditCard: &snap.CreditCardDetails{Secure: true},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: user.Name,
			Email: user.Email,
		},
		Items: &[]midtrans.ItemDetails{{
			ID:    plan.ID,
			Price: plan.PriceIDR,
			Qty:   1,
			Name:  fmt.Sprintf("Penebusan Dosa: Paket %s", plan.Name),
		}},
	}

	resp, snapErr := cs.snap.CreateTransaction(req)
	if snapErr != nil {
		return nil, fmt.Errorf("failed to create snap transaction: %w", snapErr)
	}

	sess := &models.CheckoutSession{
		OrderID:   orderID,
		UserID:    user.ID,
		PlanID:    plan.ID,
		AmountIDR: plan.PriceIDR,
		Status:    models.CheckoutStatusPending,
	}
	if err := cs.sessions.CreateCheckoutSession(ctx, sess); err != nil {
		// The token is already issued; without the session row the webhook
		// falls back to the default paid tier.
		cs.logger.Error("Failed to persist checkout session",
			zap.String("order_id", orderID), zap.Error(err))
	}

	util.CheckoutSessionsTotal.WithLabelValues(plan.ID).Inc()
	cs.logger.Info("Checkout session created",
		zap.String("order_id", orderID),
		zap.String("user_id", user.ID),
		zap.String("plan", plan.ID))

	return &CheckoutResponse{
		Token:       resp.Token,
		RedirectURL: resp.RedirectURL,
		OrderID:     orderID,
	}, nil
}
