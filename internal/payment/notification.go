package payment

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Notification is the webhook payload delivered by the payment gateway.
// gross_amount arrives as a decimal-formatted string and participates in the
// signature exactly as received, so it is never parsed.
type Notification struct {
	OrderID           string `json:"order_id"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status,omitempty"`
	TransactionTime   string `json:"transaction_time,omitempty"`
	PaymentType       string `json:"payment_type,omitempty"`
}

// Outcome is the classification of a notification.
type Outcome string

const (
	OutcomePaid   Outcome = "PAID"
	OutcomeFailed Outcome = "FAILED"
	OutcomeNoOp   Outcome = "NO_OP"
)

// Gateway transaction statuses
const (
	statusSettlement = "settlement"
	statusCapture    = "capture"
	statusCancel     = "cancel"
	statusDeny       = "deny"
	statusExpire     = "expire"

	fraudAccept = "accept"
)

// Classify maps a (transaction_status, fraud_status) pair to exactly one
// outcome. A capture held for fraud review ("challenge") stays a no-op until
// the gateway sends a follow-up.
func Classify(transactionStatus, fraudStatus string) Outcome {
	switch transactionStatus {
	case statusSettlement:
		return OutcomePaid
	case statusCapture:
		if fraudStatus == fraudAccept || fraudStatus == "" {
			return OutcomePaid
		}
		return OutcomeNoOp
	case statusCancel, statusDeny, statusExpire:
		return OutcomeFailed
	default:
		return OutcomeNoOp
	}
}

// Signature computes the gateway signature: hex SHA512 over the concatenation
// of order_id, status_code, gross_amount and the server key, no delimiter.
func Signature(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

// VerifySignature checks a notification's signature_key against the server
// key in constant time.
func VerifySignature(n *Notification, serverKey string) bool {
	expected := Signature(n.OrderID, n.StatusCode, n.GrossAmount, serverKey)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(n.SignatureKey)) == 1
}

const orderIDPrefix = "AUDIT-"

// ErrMalformedOrderID is returned when an order id does not carry a user
// identity.
var ErrMalformedOrderID = errors.New("malformed order id")

// NewOrderID builds the order identifier round-tripped through the gateway.
func NewOrderID(userID string, now time.Time) string {
	return fmt.Sprintf("%s%s-%d", orderIDPrefix, userID, now.UnixMilli())
}

// ParseOrderID extracts the owning user id and issue time from an order id of
// the form AUDIT-<userId>-<millis>. It parses right to left so user ids that
// themselves contain hyphens survive the round trip.
func ParseOrderID(orderID string) (userID string, issuedAt time.Time, err error) {
	rest, ok := strings.CutPrefix(orderID, orderIDPrefix)
	if !ok {
		return "", time.Time{}, fmt.Errorf("%w: %q", ErrMalformedOrderID, orderID)
	}

	idx := strings.LastIndex(rest, "-")
	if idx <= 0 {
		return "", time.Time{}, fmt.Errorf("%w: %q", ErrMalformedOrderID, orderID)
	}

	userID = rest[:idx]
	millis, perr := strconv.ParseInt(rest[idx+1:], 10, 64)
	if perr != nil {
		return "", time.Time{}, fmt.Errorf("%w: %q", ErrMalformedOrderID, orderID)
	}

	return userID, time.UnixMilli(millis), nil
}

// transaction_time layout used by the gateway. Only relative ordering between
// notifications matters, so the zone just has to be consistent.
const transactionTimeLayout = "2006-01-02 15:04:05"

// EventTime resolves the gateway event time for ordering checks: the
// notification's transaction_time when parseable, otherwise the order id's
// issue timestamp.
func (n *Notification) EventTime(fallback time.Time) time.Time {
	if n.TransactionTime != "" {
		if t, err := time.ParseInLocation(transactionTimeLayout, n.TransactionTime, time.Local); err == nil {
			return t
		}
	}
	return fallback
}
