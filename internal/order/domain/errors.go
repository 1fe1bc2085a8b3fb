package domain

import "errors"

var (
	ErrNotFound = errors.New("order_not_found")

	// ErrStoreUnavailable wraps database errors on the reconciliation path so
	// transports can distinguish "state never advanced, safe to retry" from
	// everything else.
	ErrStoreUnavailable = errors.New("store_unavailable")

	ErrInvalidItems    = errors.New("invalid_items")
	ErrInvalidHolders  = errors.New("invalid_holders")
	ErrInvalidContact  = errors.New("invalid_contact")
	ErrInvalidGateway  = errors.New("invalid_gateway")
	ErrGatewayDisabled = errors.New("gateway_disabled")

	// ErrNotCancellable means the order already left the cancellable states.
	ErrNotCancellable = errors.New("order_not_cancellable")
)
