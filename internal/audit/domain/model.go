package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	ActionOrphanConfirmation = "orphan_confirmation"
	ActionOrderPaid          = "order_paid"
	ActionOrderFailed        = "order_failed"
	ActionOrderCancelled     = "order_cancelled"
	ActionTicketCheckedIn    = "ticket_checked_in"
)

// Entry is one append-only audit record. Metadata is free-form JSON; each
// action documents its own shape.
type Entry struct {
	ID         snowflake.ID   `gorm:"primaryKey" json:"id"`
	Action     string         `gorm:"index;size:64;not null" json:"action"`
	TargetType string         `gorm:"size:32" json:"target_type"`
	TargetID   string         `gorm:"index;size:64" json:"target_id"`
	Metadata   datatypes.JSON `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

func (Entry) TableName() string { return "audit_logs" }

// Recorder writes audit entries. Implementations must not fail the calling
// operation: auditing is best-effort by contract.
type Recorder interface {
	Record(ctx context.Context, action, targetType, targetID string, metadata map[string]interface{})
}
