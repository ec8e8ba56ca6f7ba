package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"auditgelap-service/internal/payment"
	"auditgelap-service/internal/service"
	"auditgelap-service/internal/store"
	"auditgelap-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	audits        *service.AuditService
	commands      *service.CommandService
	roasts        *service.RoastService
	subscriptions *service.SubscriptionService
	checkout      *payment.CheckoutService
	reconciler    *payment.Reconciler
}

// NewHandler creates a new HTTP handler
func NewHandler(
	audits *service.AuditService,
	commands *service.CommandService,
	roasts *service.RoastService,
	subscriptions *service.SubscriptionService,
	checkout *payment.CheckoutService,
	reconciler *payment.Reconciler,
) *Handler {
	return &Handler{
		audits:        audits,
		commands:      commands,
		roasts:        roasts,
		subscriptions: subscriptions,
		checkout:      checkout,
		reconciler:    reconciler,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/users", h.signup)
		v1.GET("/users/:id/subscription", h.getSubscription)
		v1.GET("/users/:id/audits", h.auditHistory)
		v1.GET("/users/:id/commands", h.pendingCommands)
		v1.GET("/users/:id/weekly-roast", h.weeklyRoast)

		v1.POST("/audits", h.generateAudit)
		v1.POST("/commands/:id/complete", h.completeCommand)

		v1.POST("/payments/checkout", h.createCheckout)
		v1.POST("/payments/notification", h.paymentNotification)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// signup handles user creation
func (h *Handler) signup(c *gin.Context) {
	var req service.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	user, err := h.subscriptions.Signup(c.Request.Context(), &req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to create user",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, user)
}

// getSubscription returns the authoritative subscription view
func (h *Handler) getSubscription(c *gin.Context) {
	view, err := h.subscriptions.GetSubscription(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load subscription"})
		return
	}

	c.JSON(http.StatusOK, view)
}

// generateAudit handles audit generation
func (h *Handler) generateAudit(c *gin.Context) {
	var req service.GenerateAuditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	resp, err := h.audits.GenerateAudit(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrQuotaExceeded):
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "Monthly audit quota exceeded",
				"hint":  "Quota resets at the start of the next month, or upgrade",
			})
		case errors.Is(err, store.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "Failed to generate audit",
				"details": err.Error(),
			})
		}
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// auditHistory returns audit history with free-tier gating
func (h *Handler) auditHistory(c *gin.Context) {
	audits, err := h.audits.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load audit history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"audits": audits})
}

// pendingCommands returns a user's open commands
func (h *Handler) pendingCommands(c *gin.Context) {
	cmds, err := h.commands.Pending(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load commands"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"commands": cmds})
}

// completeCommand judges an execution-proof claim
func (h *Handler) completeCommand(c *gin.Context) {
	commandID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid command ID"})
		return
	}

	var req service.CompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	resp, err := h.commands.Complete(c.Request.Context(), commandID, &req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to process execution claim",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// weeklyRoast returns the weekly failure report for paid tiers
func (h *Handler) weeklyRoast(c *gin.Context) {
	roast, err := h.roasts.WeeklyRoast(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPremiumRequired):
			c.JSON(http.StatusPaymentRequired, gin.H{"error": "Weekly roast requires a paid tier"})
		case errors.Is(err, store.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate weekly roast"})
		}
		return
	}

	c.JSON(http.StatusOK, roast)
}

// CheckoutRequest initiates a payment session
type CheckoutRequest struct {
	UserID string `json:"user_id" binding:"required"`
	PlanID string `json:"plan_id" binding:"required"`
}

// createCheckout creates a Snap payment session
func (h *Handler) createCheckout(c *gin.Context) {
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	resp, err := h.checkout.CreateTransaction(c.Request.Context(), req.UserID, req.PlanID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to initialize payment session",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// paymentNotification handles gateway webhook deliveries.
//
// Response contract: 403 on signature mismatch, 400 on a malformed order id,
// 500 when the payload cannot be parsed, otherwise 200 — including when the
// downstream write failed, since the gateway's retry is the recovery path.
func (h *Handler) paymentNotification(c *gin.Context) {
	var n payment.Notification
	if err := c.ShouldBindJSON(&n); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Unparseable notification payload"})
		return
	}

	result, err := h.reconciler.HandleNotification(c.Request.Context(), &n)
	if err != nil {
		switch {
		case errors.Is(err, payment.ErrInvalidSignature):
			c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden: invalid signature"})
		case errors.Is(err, payment.ErrMalformedOrderID):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Bad request: user ID missing in order_id"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "OK",
		"outcome": result.Outcome,
	})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
