// internal/models/program.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Program is a piece of expert content members get access to. Price is in
// whole HUF; HUF has no practical sub-unit so one forint is the smallest
// currency unit everywhere in the ledger.
type Program struct {
	BaseModel
	CreatorID   uuid.UUID      `json:"creator_id" gorm:"type:uuid;not null;index"`
	Title       string         `json:"title" gorm:"size:255;not null"`
	Description string         `json:"description" gorm:"type:text"`
	Category    string         `json:"category" gorm:"size:100;index"`
	Price       int64          `json:"price" gorm:"not null;default:0"`
	AccessLevel AccessLevel    `json:"access_level" gorm:"type:varchar(20);not null;default:'free';index"`
	EventStart  *time.Time     `json:"event_start"`
	Tags        pq.StringArray `json:"tags" gorm:"type:text[]"`
	IsPublished bool           `json:"is_published" gorm:"default:false"`

	// Relationships
	Creator     User         `json:"creator,omitempty" gorm:"foreignKey:CreatorID"`
	LicensePool *LicensePool `json:"license_pool,omitempty" gorm:"foreignKey:ContentID"`
	Vouchers    []Voucher    `json:"vouchers,omitempty" gorm:"foreignKey:ContentID"`
}
