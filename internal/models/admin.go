// internal/models/admin.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// SystemSetting is singleton-per-key runtime configuration (platform fee,
// exchange rate, payout threshold, alert thresholds, refund fractions). The
// settlement core reads these as variable inputs; mutation is an admin
// concern.
type SystemSetting struct {
	BaseModel
	Key         string    `json:"key" gorm:"uniqueIndex;size:100;not null"`
	Value       JSONB     `json:"value" gorm:"type:jsonb;not null"`
	DataType    string    `json:"data_type" gorm:"size:20;not null"`
	Description string    `json:"description" gorm:"type:text"`
	UpdatedBy   uuid.UUID `json:"updated_by" gorm:"type:uuid"`
}

// Well-known setting keys.
const (
	SettingPlatformFeePercentage    = "platform_fee_percentage"
	SettingExchangeRate             = "exchange_rate"
	SettingPayoutMinimumThreshold   = "payout_minimum_threshold"
	SettingSponsorWarningThreshold  = "sponsor_warning_threshold"
	SettingSponsorCriticalThreshold = "sponsor_critical_threshold"
	SettingMediumRefundPercentage   = "medium_refund_percentage"
	SettingLateCompensationPercent  = "late_compensation_percentage"
)

type AdminNotification struct {
	BaseModel
	Type                string     `json:"type" gorm:"type:varchar(50);not null;index"`
	Title               string     `json:"title" gorm:"size:255;not null"`
	Message             string     `json:"message" gorm:"type:text;not null"`
	Priority            string     `json:"priority" gorm:"type:varchar(20);default:'medium';index"`
	Status              string     `json:"status" gorm:"type:varchar(20);default:'unread';index"`
	RelatedResourceType string     `json:"related_resource_type,omitempty" gorm:"size:50"`
	RelatedResourceID   *uuid.UUID `json:"related_resource_id" gorm:"type:uuid"`
	ReadAt              *time.Time `json:"read_at"`
}

// Notification types raised by the settlement core.
const (
	NotificationTypeInsufficientCredit     = "insufficient_credit"
	NotificationTypeSponsorBalanceWarning  = "sponsor_balance_warning"
	NotificationTypeSponsorBalanceCritical = "sponsor_balance_critical"
	NotificationTypeReconciliationMismatch = "reconciliation_mismatch"
	NotificationTypePayoutBatch            = "payout_batch"
)

type AuditLog struct {
	BaseModel
	UserID       *uuid.UUID `json:"user_id" gorm:"type:uuid;index"`
	Action       string     `json:"action" gorm:"size:100;not null;index"`
	ResourceType string     `json:"resource_type" gorm:"size:50;not null;index"`
	ResourceID   *uuid.UUID `json:"resource_id" gorm:"type:uuid;index"`
	OldValues    JSONB      `json:"old_values" gorm:"type:jsonb"`
	NewValues    JSONB      `json:"new_values" gorm:"type:jsonb"`
	IPAddress    string     `json:"ip_address" gorm:"size:45"`
	UserAgent    string     `json:"user_agent" gorm:"type:text"`

	// Relationships
	User *User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}
