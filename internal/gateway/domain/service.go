package domain

import (
	"context"
	"net/http"
)

// Initiator starts a payment on a specific gateway.
type Initiator interface {
	Gateway() string
	Initiate(ctx context.Context, req InitiateRequest) (*InitiateResponse, error)
}

// Verifier pulls the authoritative payment state for a reference. Only
// Paystack implements this; M-Pesa confirmation is push-only.
type Verifier interface {
	Verify(ctx context.Context, reference string) (*Result, error)
}

// WebhookAdapter verifies and parses an inbound gateway callback into a
// ConfirmationEvent.
type WebhookAdapter interface {
	VerifyWebhook(payload []byte, headers http.Header) error
	ParseWebhook(payload []byte) (*ConfirmationEvent, error)
}
