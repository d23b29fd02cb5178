// internal/models/voucher.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Voucher is a member's booking of one program access. It is created active
// and ends in exactly one terminal state; the transition table in common.go
// is the only authority on which moves are legal. EventStart is copied from
// the program at booking time so cancellation classification does not change
// if the expert later reschedules.
type Voucher struct {
	BaseModel
	Code             string           `json:"code" gorm:"uniqueIndex;size:20;not null"`
	ContentID        uuid.UUID        `json:"content_id" gorm:"type:uuid;not null;index"`
	UserID           uuid.UUID        `json:"user_id" gorm:"type:uuid;not null;index"`
	Status           VoucherStatus    `json:"status" gorm:"type:varchar(20);not null;default:'active';index"`
	CancellationType CancellationType `json:"cancellation_type" gorm:"type:varchar(20);not null;default:'none'"`
	PayoutAmount     int64            `json:"payout_amount" gorm:"not null;default:0"`
	PaymentReference string           `json:"payment_reference,omitempty" gorm:"size:255;index"`
	EventStart       *time.Time       `json:"event_start"`
	ExpiresAt        *time.Time       `json:"expires_at"`
	RedeemedAt       *time.Time       `json:"redeemed_at"`
	CancelledAt      *time.Time       `json:"cancelled_at"`

	// Relationships
	Program     Program      `json:"program,omitempty" gorm:"foreignKey:ContentID"`
	User        User         `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Settlements []Settlement `json:"settlements,omitempty" gorm:"foreignKey:VoucherID"`
}
