package redisclient

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestQuotaKeyRollsMonthly(t *testing.T) {
	nov := time.Date(2023, 11, 30, 23, 59, 0, 0, time.UTC)
	dec := time.Date(2023, 12, 1, 0, 1, 0, 0, time.UTC)

	assert.Equal(t, "quota:audit:u123:2023-11", QuotaKey("u123", nov))
	assert.Equal(t, "quota:audit:u123:2023-12", QuotaKey("u123", dec))
	assert.NotEqual(t, QuotaKey("u123", nov), QuotaKey("u456", nov))
}

func TestSubscriptionKey(t *testing.T) {
	assert.Equal(t, "subscription:u123", subscriptionKey("u123"))
}
