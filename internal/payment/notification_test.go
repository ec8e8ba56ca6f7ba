package payment

import (
	"crypto/sha512"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		transactionStatus string
		fraudStatus       string
		want              Outcome
	}{
		{"settlement", "", OutcomePaid},
		{"settlement", "accept", OutcomePaid},
		{"settlement", "challenge", OutcomePaid},
		{"capture", "accept", OutcomePaid},
		{"capture", "", OutcomePaid},
		{"capture", "challenge", OutcomeNoOp},
		{"capture", "deny", OutcomeNoOp},
		{"cancel", "", OutcomeFailed},
		{"cancel", "accept", OutcomeFailed},
		{"deny", "", OutcomeFailed},
		{"expire", "", OutcomeFailed},
		{"pending", "", OutcomeNoOp},
		{"refund", "", OutcomeNoOp},
		{"", "", OutcomeNoOp},
	}

	for _, tt := range tests {
		got := Classify(tt.transactionStatus, tt.fraudStatus)
		assert.Equal(t, tt.want, got,
			"Classify(%q, %q)", tt.transactionStatus, tt.fraudStatus)
	}
}

func TestSignatureMatchesGatewayScheme(t *testing.T) {
	const (
		orderID     = "AUDIT-u123-1700000000000"
		statusCode  = "200"
		grossAmount = "250000.00"
		serverKey   = "SB-Mid-server-secret"
	)

	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	expected := hex.EncodeToString(sum[:])

	assert.Equal(t, expected, Signature(orderID, statusCode, grossAmount, serverKey))
}

func TestVerifySignatureRejectsMutations(t *testing.T) {
	const serverKey = "SB-Mid-server-secret"

	valid := &Notification{
		OrderID:     "AUDIT-u123-1700000000000",
		StatusCode:  "200",
		GrossAmount: "250000.00",
	}
	valid.SignatureKey = Signature(valid.OrderID, valid.StatusCode, valid.GrossAmount, serverKey)

	assert.True(t, VerifySignature(valid, serverKey))

	mutations := []struct {
		name   string
		mutate func(n *Notification)
	}{
		{"order_id", func(n *Notification) { n.OrderID = "AUDIT-u124-1700000000000" }},
		{"status_code", func(n *Notification) { n.StatusCode = "201" }},
		{"gross_amount", func(n *Notification) { n.GrossAmount = "250000.01" }},
		{"signature_key", func(n *Notification) { n.SignatureKey = n.SignatureKey[:len(n.SignatureKey)-1] + "0" }},
	}

	for _, tt := range mutations {
		t.Run(tt.name, func(t *testing.T) {
			mutated := *valid
			tt.mutate(&mutated)
			assert.False(t, VerifySignature(&mutated, serverKey))
		})
	}

	t.Run("server_key", func(t *testing.T) {
		assert.False(t, VerifySignature(valid, "SB-Mid-server-secret2"))
	})
}

func TestParseOrderID(t *testing.T) {
	userID, issuedAt, err := ParseOrderID("AUDIT-u123-1700000000000")
	require.NoError(t, err)
	assert.Equal(t, "u123", userID)
	assert.Equal(t, int64(1700000000000), issuedAt.UnixMilli())
}

func TestParseOrderIDHyphenatedUser(t *testing.T) {
	userID, _, err := ParseOrderID("AUDIT-user-42-abc-1700000000000")
	require.NoError(t, err)
	assert.Equal(t, "user-42-abc", userID)
}

func TestParseOrderIDRejectsMalformed(t *testing.T) {
	malformed := []string{
		"",
		"AUDIT",
		"AUDIT-",
		"AUDIT-u123",
		"AUDIT--1700000000000",
		"AUDIT-u123-notatime",
		"ORDER-u123-1700000000000",
	}

	for _, orderID := range malformed {
		_, _, err := ParseOrderID(orderID)
		assert.ErrorIs(t, err, ErrMalformedOrderID, "order id %q", orderID)
	}
}

func TestOrderIDRoundTrip(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	orderID := NewOrderID("u123", now)
	assert.Equal(t, "AUDIT-u123-1700000000000", orderID)

	userID, issuedAt, err := ParseOrderID(orderID)
	require.NoError(t, err)
	assert.Equal(t, "u123", userID)
	assert.True(t, issuedAt.Equal(now))
}

func TestEventTimePrefersTransactionTime(t *testing.T) {
	fallback := time.UnixMilli(1700000000000)

	n := &Notification{TransactionTime: "2023-11-15 10:30:00"}
	got := n.EventTime(fallback)
	assert.Equal(t, 2023, got.Year())
	assert.False(t, got.Equal(fallback))

	n = &Notification{}
	assert.True(t, n.EventTime(fallback).Equal(fallback))

	n = &Notification{TransactionTime: "garbage"}
	assert.True(t, n.EventTime(fallback).Equal(fallback))
}
