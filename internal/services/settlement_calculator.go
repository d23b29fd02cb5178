// internal/services/settlement_calculator.go
package services

import (
	"math"

	"github.com/wellpont/wellpont-backend/internal/models"
)

// SettlementSplit is the computed money split of one access event. All
// amounts are whole HUF. UserPayment + SponsorContribution always equals
// PlatformFee + ExpertPayout; the WellPoints discount is a marketing cost
// outside that equation.
type SettlementSplit struct {
	UserPayment         int64 `json:"user_payment"`
	SponsorContribution int64 `json:"sponsor_contribution"`
	PlatformFee         int64 `json:"platform_fee"`
	ExpertPayout        int64 `json:"expert_payout"`
	WellPointsDiscount  int64 `json:"wellpoints_discount"`
}

func (s SettlementSplit) GrossRevenue() int64 {
	return s.UserPayment + s.SponsorContribution
}

// CompensationSplit is what a cancellation or no-show gives back, computed
// from the original settlement. The platform fee component of the
// compensating row is derived as the balancing remainder, so the row always
// reconciles exactly.
type CompensationSplit struct {
	UserRefund             int64 `json:"user_refund"`
	SponsorCreditRefund    int64 `json:"sponsor_credit_refund"`
	ExpertPayoutAdjustment int64 `json:"expert_payout_adjustment"`
}

// PercentToBasisPoints converts a configured percentage (e.g. 20.0) to basis
// points so every split is computed in integer arithmetic.
func PercentToBasisPoints(pct float64) int64 {
	return int64(math.Round(pct * 100))
}

// applyBasisPoints takes amount * bps / 10000 rounded half-up on the forint.
// Amounts in this ledger are non-negative before signing.
func applyBasisPoints(amount, bps int64) int64 {
	return (amount*bps + 5000) / 10000
}

// ComputeSettlement maps (gross price, access type, discount, fee) to a
// split. Pure: no clock, no database.
//
//   - free and purchased access: the sponsor contributes nothing and the
//     user pays the gross price less the WellPoints discount, floored at 0.
//   - sponsored access: the user pays nothing and the sponsor contributes
//     the full gross price.
//
// The platform fee is rounded half-up from gross revenue and the expert
// payout is the exact remainder, so fee + payout == gross with no rounding
// drift in either direction.
func ComputeSettlement(grossPrice int64, accessType models.AccessType, wellPointsDiscount int64, feeBps int64) SettlementSplit {
	if grossPrice < 0 {
		grossPrice = 0
	}
	if wellPointsDiscount < 0 {
		wellPointsDiscount = 0
	}

	split := SettlementSplit{WellPointsDiscount: wellPointsDiscount}

	switch accessType {
	case models.AccessTypeSponsored:
		split.SponsorContribution = grossPrice
		split.WellPointsDiscount = 0
	default: // free, purchased
		userPayment := grossPrice - wellPointsDiscount
		if userPayment < 0 {
			userPayment = 0
		}
		split.UserPayment = userPayment
	}

	gross := split.GrossRevenue()
	split.PlatformFee = applyBasisPoints(gross, feeBps)
	split.ExpertPayout = gross - split.PlatformFee

	return split
}

// ComputeCompensation scales the original settlement by the policy
// fractions. refundBps drives the user refund and the sponsor credit
// return; expertBps drives how much of the expert payout is clawed back.
// Early cancellations pass 10000/10000 (a full reversal), medium passes the
// configured fraction for both, late passes 0 for refunds and whatever
// clawback the policy configures.
func ComputeCompensation(original *models.Settlement, refundBps, expertBps int64) CompensationSplit {
	return CompensationSplit{
		UserRefund:             applyBasisPoints(original.UserPayment, refundBps),
		SponsorCreditRefund:    applyBasisPoints(original.SponsorContribution, refundBps),
		ExpertPayoutAdjustment: applyBasisPoints(original.ExpertPayout, expertBps),
	}
}

// BuildCompensationRow turns a compensation into the appended, negative
// settlement row. The platform fee column absorbs the rounding remainder so
// the ledger equation holds on this row too.
func BuildCompensationRow(original *models.Settlement, comp CompensationSplit, settlementType models.SettlementType, creditAction models.SponsorCreditAction) models.Settlement {
	row := models.Settlement{
		VoucherID:           original.VoucherID,
		SettlementType:      settlementType,
		ContentID:           original.ContentID,
		UserID:              original.UserID,
		ExpertID:            original.ExpertID,
		SponsorUserID:       original.SponsorUserID,
		UserPayment:         -comp.UserRefund,
		SponsorContribution: -comp.SponsorCreditRefund,
		ExpertPayout:        -comp.ExpertPayoutAdjustment,
		UserRefund:          comp.UserRefund,
		SponsorCreditAction: creditAction,
		SettlementStatus:    models.SettlementStatusPending,
	}
	row.PlatformFee = row.UserPayment + row.SponsorContribution - row.ExpertPayout
	return row
}
