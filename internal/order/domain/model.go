package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Status is the order lifecycle state. It only ever advances forward:
// created → awaiting_payment → paid|failed, with cancelled reachable from the
// two non-terminal states by explicit user action. paid, failed and cancelled
// are terminal.
type Status string

const (
	StatusCreated         Status = "created"
	StatusAwaitingPayment Status = "awaiting_payment"
	StatusPaid            Status = "paid"
	StatusFailed          Status = "failed"
	StatusCancelled       Status = "cancelled"
)

// Terminal reports whether no further confirmation event may change the order.
func (s Status) Terminal() bool {
	return s == StatusPaid || s == StatusFailed || s == StatusCancelled
}

// OrderItem is one purchasable line: a ticket tier of an event. EventID and
// TierID are carried as separate fields end to end and are never encoded
// into a composite string.
type OrderItem struct {
	EventID     string  `json:"event_id"`
	TierID      string  `json:"tier_id"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	VariantName string  `json:"variant_name"`
}

// TicketHolder names the attendee a single ticket is issued to. The list may
// be shorter than the total ticket quantity; the order contact fills the rest.
type TicketHolder struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

// Order is the aggregate root. Exactly one of CheckoutRequestID (M-Pesa) or
// PaystackReference is set at creation and stays immutable afterwards.
type Order struct {
	ID      snowflake.ID `json:"id" gorm:"primaryKey"`
	Gateway string       `json:"gateway" gorm:"type:text;not null"`

	CheckoutRequestID *string `json:"checkout_request_id,omitempty" gorm:"uniqueIndex"`
	PaystackReference *string `json:"paystack_reference,omitempty" gorm:"uniqueIndex"`

	Status   Status  `json:"status" gorm:"type:text;not null;index"`
	Amount   float64 `json:"amount" gorm:"not null"`
	Currency string  `json:"currency" gorm:"type:text;not null"`

	Items         []OrderItem    `json:"items" gorm:"serializer:json"`
	TicketHolders []TicketHolder `json:"ticket_holders" gorm:"serializer:json"`

	ContactName  string `json:"contact_name" gorm:"type:text;not null"`
	ContactEmail string `json:"contact_email" gorm:"type:text;not null"`
	ContactPhone string `json:"contact_phone" gorm:"type:text"`

	// Set exactly once, on the paid transition.
	ReceiptNumber  string     `json:"receipt_number" gorm:"type:text"`
	PaidAt         *time.Time `json:"paid_at"`
	PaymentChannel string     `json:"payment_channel" gorm:"type:text"`

	FailureReason string `json:"failure_reason" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Order) TableName() string { return "orders" }

// CorrelationID returns whichever gateway correlation key the order carries.
func (o *Order) CorrelationID() string {
	if o.CheckoutRequestID != nil {
		return *o.CheckoutRequestID
	}
	if o.PaystackReference != nil {
		return *o.PaystackReference
	}
	return ""
}

// TicketCount is the total number of tickets this order materializes into.
func (o *Order) TicketCount() int {
	total := 0
	for _, item := range o.Items {
		total += item.Quantity
	}
	return total
}

// TotalAmount recomputes the order total from its items.
func (o *Order) TotalAmount() float64 {
	total := 0.0
	for _, item := range o.Items {
		total += item.UnitPrice * float64(item.Quantity)
	}
	return total
}
