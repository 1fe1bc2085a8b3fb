package domain

import (
	"math"
	"time"
)

const (
	GatewayMpesa    = "mpesa"
	GatewayPaystack = "paystack"
)

// Status is the normalized outcome of a gateway confirmation or verify call.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusPending Status = "pending"
)

// Result is the normalized shape both gateways reduce to.
type Result struct {
	Status        Status
	ReceiptNumber string
	PaidAt        *time.Time
	Channel       string
	ResultDesc    string
}

const (
	SourceWebhook = "webhook"
	SourcePoll    = "poll"
)

// ConfirmationEvent is the ephemeral input to the reconciliation engine. It is
// produced by adapters from webhook payloads or verify responses and never
// persisted beyond an audit entry.
type ConfirmationEvent struct {
	Source        string
	Gateway       string
	CorrelationID string
	Status        Status
	ResultCode    string
	ResultDesc    string
	ReceiptNumber string
	PaidAt        *time.Time
	Channel       string
}

// InitiateRequest asks a gateway to start collecting payment. Phone is
// required for M-Pesa, Email for Paystack; Amount is in major units.
type InitiateRequest struct {
	Reference   string
	Amount      float64
	Currency    string
	Phone       string
	Email       string
	Description string
}

// InitiateResponse carries the gateway-assigned correlation data. For M-Pesa
// the correlation key is CheckoutRequestID; for Paystack it is the
// client-chosen Reference echoed back with the redirect URL.
type InitiateResponse struct {
	Gateway           string
	CorrelationID     string
	MerchantRequestID string
	AuthorizationURL  string
	AccessCode        string
	CustomerMessage   string
}

// MinorUnits converts a major-unit amount to integer minor units, rounding
// half-up so 1500.505 becomes 150051 and never drifts by a cent.
func MinorUnits(amount float64) int64 {
	return int64(math.Floor(amount*100 + 0.5))
}

// WholeUnits rounds a major-unit amount half-up to a whole integer, the
// representation the M-Pesa STK API expects.
func WholeUnits(amount float64) int64 {
	return int64(math.Floor(amount + 0.5))
}
