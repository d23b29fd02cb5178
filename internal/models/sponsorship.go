// internal/models/sponsorship.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LicensePool gates how many members may redeem sponsored access to one
// program. UsedLicenses only ever moves forward, and only through the
// conditional update in the admission service; 0 <= used <= total holds at
// all times. Pools are deactivated when a sponsorship ends, never deleted.
type LicensePool struct {
	BaseModel
	ContentID     uuid.UUID `json:"content_id" gorm:"type:uuid;not null;uniqueIndex"`
	SponsorUserID uuid.UUID `json:"sponsor_user_id" gorm:"type:uuid;not null;index"`
	TotalLicenses int       `json:"total_licenses" gorm:"not null"`
	UsedLicenses  int       `json:"used_licenses" gorm:"not null;default:0"`
	IsActive      bool      `json:"is_active" gorm:"default:true"`

	// Relationships
	Program Program `json:"program,omitempty" gorm:"foreignKey:ContentID"`
	Sponsor User    `json:"sponsor,omitempty" gorm:"foreignKey:SponsorUserID"`
}

func (p *LicensePool) Remaining() int {
	return p.TotalLicenses - p.UsedLicenses
}

// CreditTransaction is one append-only entry in a sponsor's credit ledger.
// Credits are signed: purchases and refunds are positive, usage and
// deductions negative. The sponsor's available balance is always derived by
// summing entries, never stored.
type CreditTransaction struct {
	BaseModel
	SponsorUserID   uuid.UUID             `json:"sponsor_user_id" gorm:"type:uuid;not null;index"`
	Credits         int64                 `json:"credits" gorm:"not null"`
	TransactionType CreditTransactionType `json:"transaction_type" gorm:"type:varchar(20);not null;index"`
	ReferenceID     *uuid.UUID            `json:"reference_id" gorm:"type:uuid;index"`
	Description     string                `json:"description" gorm:"size:255"`

	// Relationships
	Sponsor User `json:"sponsor,omitempty" gorm:"foreignKey:SponsorUserID"`
}

// AccessGrant is the immutable proof that a user may view a program. Its
// existence is the authorization check for every later visit; at most one
// grant exists per (user, content) pair.
type AccessGrant struct {
	ID         uuid.UUID  `json:"id" gorm:"type:uuid;primary_key"`
	UserID     uuid.UUID  `json:"user_id" gorm:"type:uuid;not null;uniqueIndex:idx_access_grants_user_content"`
	ContentID  uuid.UUID  `json:"content_id" gorm:"type:uuid;not null;uniqueIndex:idx_access_grants_user_content"`
	AccessType AccessType `json:"access_type" gorm:"type:varchar(20);not null"`
	AmountPaid int64      `json:"amount_paid" gorm:"not null;default:0"`
	CreatedAt  time.Time  `json:"created_at"`

	// Relationships
	User    User    `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Program Program `json:"program,omitempty" gorm:"foreignKey:ContentID"`
}

func (g *AccessGrant) BeforeCreate(tx *gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return nil
}
