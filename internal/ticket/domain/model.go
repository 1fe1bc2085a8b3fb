package domain

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Ticket is one admission credential. Its primary key is deterministic:
// the same order and seat index always produce the same ID, which is what
// makes issuance safe to repeat.
type Ticket struct {
	ID          string       `gorm:"primaryKey;size:40" json:"id"`
	OrderID     snowflake.ID `gorm:"index;not null" json:"order_id"`
	Seq         int          `gorm:"not null" json:"seq"`
	EventID     string       `gorm:"index;size:64;not null" json:"event_id"`
	TierID      string       `gorm:"size:64;not null" json:"tier_id"`
	VariantName string       `gorm:"size:128" json:"variant_name,omitempty"`
	HolderName  string       `gorm:"size:255;not null" json:"holder_name"`
	HolderEmail string       `gorm:"size:255" json:"holder_email,omitempty"`
	Price       float64      `gorm:"not null" json:"price"`
	QRToken     string       `gorm:"uniqueIndex;size:64;not null" json:"qr_token"`
	CheckedIn   bool         `gorm:"default:false" json:"checked_in"`
	CheckedInAt *time.Time   `json:"checked_in_at,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

func (Ticket) TableName() string { return "tickets" }

// TicketID builds the deterministic primary key for the ticket at the given
// position within an order. The position counts across all line items, not
// within one.
func TicketID(orderID snowflake.ID, seq int) string {
	return fmt.Sprintf("%s-%d", orderID, seq)
}
