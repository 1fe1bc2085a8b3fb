package domain

import "errors"

var (
	// ErrGatewayUnavailable covers network failures and 5xx responses from a
	// gateway. Callers may retry; order state is never mutated on this path.
	ErrGatewayUnavailable = errors.New("gateway_unavailable")

	// ErrInitiateRejected means the gateway answered but refused the request.
	ErrInitiateRejected = errors.New("initiate_rejected")

	// ErrInvalidCallback marks a webhook body that does not match the
	// documented shape.
	ErrInvalidCallback = errors.New("invalid_callback_payload")

	// ErrInvalidSignature marks a webhook whose signature check failed.
	ErrInvalidSignature = errors.New("invalid_signature")

	// ErrEventIgnored marks a webhook event type the platform does not act on.
	ErrEventIgnored = errors.New("event_ignored")

	// ErrGatewayNotFound means no adapter is registered for the provider.
	ErrGatewayNotFound = errors.New("gateway_not_found")

	// ErrVerifyUnsupported is returned for push-only gateways.
	ErrVerifyUnsupported = errors.New("verify_unsupported")
)
