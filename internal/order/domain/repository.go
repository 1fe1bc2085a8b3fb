package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// TransitionPatch carries the fields written alongside a status change.
// Zero values are written as-is; the patch is only applied when the
// compare-and-swap succeeds.
type TransitionPatch struct {
	ReceiptNumber  string
	PaidAt         *time.Time
	PaymentChannel string
	FailureReason  string
}

// Repository is the order store. Transition is the single lock-like
// primitive in the system: a conditional write that succeeds only if the
// stored status still equals expected at write time. A false return is not
// an error — it means another worker already resolved the order.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, order *Order) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Order, error)
	FindByCorrelationID(ctx context.Context, db *gorm.DB, correlationID string) (*Order, error)
	// AttachCorrelation records the gateway correlation key and advances
	// created → awaiting_payment once the gateway accepted the request.
	AttachCorrelation(ctx context.Context, db *gorm.DB, id snowflake.ID, gateway string, correlationID string) (bool, error)
	Transition(ctx context.Context, db *gorm.DB, id snowflake.ID, expected Status, next Status, patch TransitionPatch) (bool, error)
}
