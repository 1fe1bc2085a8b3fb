package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

// CheckoutContact is the fallback holder and payer identity for an order.
type CheckoutContact struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
}

// CheckoutRequest is the validated boundary type for starting a purchase.
type CheckoutRequest struct {
	Gateway       string
	Items         []OrderItem
	TicketHolders []TicketHolder
	Contact       CheckoutContact
}

// CheckoutResponse tells the client how to complete payment: an STK prompt
// message for M-Pesa, a redirect URL for Paystack.
type CheckoutResponse struct {
	OrderID          string  `json:"order_id"`
	Gateway          string  `json:"gateway"`
	CorrelationID    string  `json:"correlation_id"`
	AuthorizationURL string  `json:"authorization_url,omitempty"`
	CustomerMessage  string  `json:"customer_message,omitempty"`
	Amount           float64 `json:"amount"`
	Currency         string  `json:"currency"`
}

// Service owns order creation and explicit user actions on orders.
// Everything payment-confirmation related goes through the reconciliation
// engine instead.
type Service interface {
	Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResponse, error)
	Cancel(ctx context.Context, id snowflake.ID) error
	GetByID(ctx context.Context, id snowflake.ID) (*Order, error)
}
