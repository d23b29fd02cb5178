// internal/models/settlement.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Settlement records the money split of one access event. Rows are never
// edited or deleted: corrections arrive as a second, compensating row of
// type cancellation or no_show against the same voucher. All amounts are
// whole HUF and UserPayment + SponsorContribution must always equal
// PlatformFee + ExpertPayout; WellPointsDiscount is a marketing cost outside
// that equation.
type Settlement struct {
	BaseModel
	VoucherID           uuid.UUID           `json:"voucher_id" gorm:"type:uuid;not null;uniqueIndex:idx_settlements_voucher_type"`
	SettlementType      SettlementType      `json:"settlement_type" gorm:"type:varchar(20);not null;default:'normal';uniqueIndex:idx_settlements_voucher_type;index"`
	ContentID           uuid.UUID           `json:"content_id" gorm:"type:uuid;not null;index"`
	UserID              uuid.UUID           `json:"user_id" gorm:"type:uuid;not null;index"`
	ExpertID            uuid.UUID           `json:"expert_id" gorm:"type:uuid;not null;index"`
	SponsorUserID       *uuid.UUID          `json:"sponsor_user_id" gorm:"type:uuid;index"`
	UserPayment         int64               `json:"user_payment" gorm:"not null;default:0"`
	SponsorContribution int64               `json:"sponsor_contribution" gorm:"not null;default:0"`
	PlatformFee         int64               `json:"platform_fee" gorm:"not null;default:0"`
	ExpertPayout        int64               `json:"expert_payout" gorm:"not null;default:0"`
	WellPointsDiscount  int64               `json:"wellpoints_discount" gorm:"column:wellpoints_discount;not null;default:0"`
	UserRefund          int64               `json:"user_refund" gorm:"not null;default:0"`
	SponsorCreditAction SponsorCreditAction `json:"sponsor_credit_action" gorm:"type:varchar(10);not null;default:'none'"`
	SettlementStatus    SettlementStatus    `json:"settlement_status" gorm:"type:varchar(20);not null;default:'pending';index"`
	ProcessedAt         *time.Time          `json:"processed_at"`

	// Relationships
	Voucher Voucher `json:"voucher,omitempty" gorm:"foreignKey:VoucherID"`
	Expert  User    `json:"expert,omitempty" gorm:"foreignKey:ExpertID"`
}

// GrossRevenue is what the access event earned before disposition.
func (s *Settlement) GrossRevenue() int64 {
	return s.UserPayment + s.SponsorContribution
}

// Reconciles reports whether the row satisfies the ledger equation.
func (s *Settlement) Reconciles() bool {
	return s.UserPayment+s.SponsorContribution == s.PlatformFee+s.ExpertPayout
}
