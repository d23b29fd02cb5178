// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primary_key"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// BeforeCreate assigns the uuid in application code so the same models work
// against Postgres and the sqlite test driver.
func (m *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// JSONB type for PostgreSQL
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		if str, ok := value.(string); ok {
			bytes = []byte(str)
		} else {
			return nil
		}
	}

	return json.Unmarshal(bytes, j)
}

// Enums
type UserType string

const (
	UserTypeMember  UserType = "member"
	UserTypeExpert  UserType = "expert"
	UserTypeSponsor UserType = "sponsor"
	UserTypeAdmin   UserType = "admin"
)

type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
	UserStatusBanned    UserStatus = "banned"
)

type AccessLevel string

const (
	AccessLevelFree            AccessLevel = "free"
	AccessLevelRegistered      AccessLevel = "registered"
	AccessLevelPremium         AccessLevel = "premium"
	AccessLevelOneTimePurchase AccessLevel = "one_time_purchase"
	AccessLevelSponsored       AccessLevel = "sponsored"
)

type AccessType string

const (
	AccessTypeFree      AccessType = "free"
	AccessTypePurchased AccessType = "purchased"
	AccessTypeSponsored AccessType = "sponsored"
)

type VoucherStatus string

const (
	VoucherStatusActive    VoucherStatus = "active"
	VoucherStatusRedeemed  VoucherStatus = "redeemed"
	VoucherStatusCancelled VoucherStatus = "cancelled"
	VoucherStatusNoShow    VoucherStatus = "no_show"
	VoucherStatusExpired   VoucherStatus = "expired"
)

// voucherTransitions is the validated transition table: a voucher is created
// active and moves to exactly one terminal state.
var voucherTransitions = map[VoucherStatus][]VoucherStatus{
	VoucherStatusActive: {
		VoucherStatusRedeemed,
		VoucherStatusCancelled,
		VoucherStatusNoShow,
		VoucherStatusExpired,
	},
}

func (s VoucherStatus) CanTransitionTo(to VoucherStatus) bool {
	for _, next := range voucherTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s VoucherStatus) IsTerminal() bool {
	return len(voucherTransitions[s]) == 0
}

type CancellationType string

const (
	CancellationTypeNone   CancellationType = "none"
	CancellationTypeEarly  CancellationType = "early"
	CancellationTypeMedium CancellationType = "medium"
	CancellationTypeLate   CancellationType = "late"
)

type SettlementStatus string

const (
	SettlementStatusPending   SettlementStatus = "pending"
	SettlementStatusCompleted SettlementStatus = "completed"
)

type SettlementType string

const (
	SettlementTypeNormal       SettlementType = "normal"
	SettlementTypeCancellation SettlementType = "cancellation"
	SettlementTypeNoShow       SettlementType = "no_show"
)

type SponsorCreditAction string

const (
	SponsorCreditActionNone   SponsorCreditAction = "none"
	SponsorCreditActionRefund SponsorCreditAction = "refund"
)

type CreditTransactionType string

const (
	CreditTransactionTypePurchase     CreditTransactionType = "purchase"
	CreditTransactionTypeSubscription CreditTransactionType = "subscription"
	CreditTransactionTypeInitial      CreditTransactionType = "initial"
	CreditTransactionTypeRollover     CreditTransactionType = "rollover"
	CreditTransactionTypeBonus        CreditTransactionType = "bonus"
	CreditTransactionTypeDeduction    CreditTransactionType = "deduction"
	CreditTransactionTypeSponsorship  CreditTransactionType = "sponsorship"
	CreditTransactionTypeUsage        CreditTransactionType = "usage"
	CreditTransactionTypeRefund       CreditTransactionType = "refund"
)
