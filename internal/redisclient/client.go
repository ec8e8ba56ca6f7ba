package redisclient

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

//go:embed scripts/take_quota.lua
var takeQuotaScript string

//go:embed scripts/refund_quota.lua
var refundQuotaScript string

type Client struct {
	rdb          *redis.Client
	takeScript   *redis.Script
	refundScript *redis.Script
}

// NewClient creates a new Redis client with Lua scripts loaded
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:          rdb,
		takeScript:   redis.NewScript(takeQuotaScript),
		refundScript: redis.NewScript(refundQuotaScript),
	}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// QuotaKey builds the monthly audit quota key for a user. The month component
// rolls the window over without any cleanup job.
func QuotaKey(userID string, now time.Time) string {
	return fmt.Sprintf("quota:audit:%s:%s", userID, now.Format("2006-01"))
}

// TakeAuditQuota atomically consumes one unit of the monthly audit quota.
// Returns false when the limit is already reached.
func (c *Client) TakeAuditQuota(ctx context.Context, userID string, limit int, ttl time.Duration, now time.Time) (bool, error) {
	key := QuotaKey(userID, now)

	result, err := c.takeScript.Run(ctx, c.rdb, []string{key}, limit, int(ttl.Seconds())).Result()
	if err != nil {
		return false, fmt.Errorf("take quota script failed: %w", err)
	}

	granted, ok := result.(int64)
	if !ok {
		return false, fmt.Errorf("unexpected script result type")
	}

	return granted == 1, nil
}

// RefundAuditQuota returns one quota unit, used when generation fails after
// the quota was taken.
func (c *Client) RefundAuditQuota(ctx context.Context, userID string, now time.Time) error {
	key := QuotaKey(userID, now)

	if _, err := c.refundScript.Run(ctx, c.rdb, []string{key}).Result(); err != nil {
		return fmt.Errorf("refund quota script failed: %w", err)
	}
	return nil
}

// SubscriptionView is the cached representation of a user's subscription.
type SubscriptionView struct {
	UserID    string `json:"user_id"`
	State     string `json:"state"`
	Role      string `json:"role"`
	IsPremium bool   `json:"is_premium"`
}

func subscriptionKey(userID string) string {
	return fmt.Sprintf("subscription:%s", userID)
}

// CacheSubscription stores a subscription view with TTL
func (c *Client) CacheSubscription(ctx context.Context, view *SubscriptionView, ttl time.Duration) error {
	data, err := json.Marshal(view)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, subscriptionKey(view.UserID), data, ttl).Err()
}

// GetCachedSubscription retrieves a cached subscription view, or nil on miss
func (c *Client) GetCachedSubscription(ctx context.Context, userID string) (*SubscriptionView, error) {
	data, err := c.rdb.Get(ctx, subscriptionKey(userID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var view SubscriptionView
	if err := json.Unmarshal(data, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// InvalidateSubscription drops the cached view after a reconciler mutation
func (c *Client) InvalidateSubscription(ctx context.Context, userID string) error {
	return c.rdb.Del(ctx, subscriptionKey(userID)).Err()
}
