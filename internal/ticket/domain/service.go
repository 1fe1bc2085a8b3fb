package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	orderdomain "github.com/santuri/tikiti/internal/order/domain"
	"gorm.io/gorm"
)

// Repository is the ticket store. InsertIgnore is the idempotency primitive:
// rows whose primary key already exists are silently skipped, so re-running
// issuance for an order can only fill gaps, never duplicate.
type Repository interface {
	InsertIgnore(ctx context.Context, db *gorm.DB, tickets []Ticket) (int64, error)
	ListByOrder(ctx context.Context, db *gorm.DB, orderID snowflake.ID) ([]Ticket, error)
	FindByID(ctx context.Context, db *gorm.DB, id string) (*Ticket, error)
	FindByQRToken(ctx context.Context, db *gorm.DB, token string) (*Ticket, error)
	// MarkCheckedIn flips the checked-in flag only if it was clear; a false
	// return means the ticket had already been used.
	MarkCheckedIn(ctx context.Context, db *gorm.DB, id string, at time.Time) (bool, error)
}

// Issuer creates the tickets for a paid order. Issue is safe to call any
// number of times for the same order.
type Issuer interface {
	Issue(ctx context.Context, order *orderdomain.Order) ([]Ticket, error)
	ListByOrder(ctx context.Context, orderID snowflake.ID) ([]Ticket, error)
	FindByID(ctx context.Context, id string) (*Ticket, error)
	FindByQRToken(ctx context.Context, token string) (*Ticket, error)
	CheckIn(ctx context.Context, id string, at time.Time) (*Ticket, error)
}
