// internal/services/cancellation_service.go
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/wellpont/wellpont-backend/internal/database"
	"github.com/wellpont/wellpont-backend/internal/models"
)

const (
	earlyCancellationWindow  = 7 * 24 * time.Hour
	mediumCancellationWindow = 3 * 24 * time.Hour

	// Grace before the sweep marks an unredeemed event booking as no-show.
	noShowGracePeriod = 24 * time.Hour
)

// CancellationService applies the compensation policy. Lifecycle changes go
// through conditional updates on the voucher row, and money corrections are
// appended to the settlement ledger; no existing settlement row is ever
// rewritten.
type CancellationService struct {
	db                *gorm.DB
	settingsService   *SettingsService
	creditService     *CreditService
	settlementService *SettlementService
}

type CompensationResult struct {
	Voucher                *models.Voucher         `json:"voucher"`
	CancellationType       models.CancellationType `json:"cancellation_type"`
	UserRefund             int64                   `json:"user_refund"`
	SponsorCreditRefund    int64                   `json:"sponsor_credit_refund"`
	ExpertPayoutAdjustment int64                   `json:"expert_payout_adjustment"`
	Settlement             *models.Settlement      `json:"settlement"`
}

func NewCancellationService(db *gorm.DB, settingsService *SettingsService, creditService *CreditService, settlementService *SettlementService) *CancellationService {
	return &CancellationService{
		db:                db,
		settingsService:   settingsService,
		creditService:     creditService,
		settlementService: settlementService,
	}
}

// ClassifyCancellation maps the notice period to a tier. Boundaries are
// inclusive on the generous side: exactly 7 days of notice is still early,
// exactly 3 days is still medium. A cancellation at or after the event start
// is late.
func ClassifyCancellation(eventStart, cancelledAt time.Time) models.CancellationType {
	notice := eventStart.Sub(cancelledAt)
	switch {
	case notice >= earlyCancellationWindow:
		return models.CancellationTypeEarly
	case notice >= mediumCancellationWindow:
		return models.CancellationTypeMedium
	default:
		return models.CancellationTypeLate
	}
}

func (s *CancellationService) compensationRates(tier models.CancellationType) (refundBps, expertBps int64) {
	switch tier {
	case models.CancellationTypeEarly:
		return 10000, 10000
	case models.CancellationTypeMedium:
		bps := s.settingsService.MediumRefundBps()
		return bps, bps
	default:
		return 0, s.settingsService.LateCompensationBps()
	}
}

// RecordCancellation moves an active voucher to cancelled and appends the
// compensating settlement row for its tier. Bookings without a scheduled
// event get no notice period to measure, so they fall into the late tier.
func (s *CancellationService) RecordCancellation(voucherID uuid.UUID, cancelledAt time.Time) (*CompensationResult, error) {
	var voucher models.Voucher
	if err := s.db.First(&voucher, "id = ?", voucherID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("voucher not found")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if !voucher.Status.CanTransitionTo(models.VoucherStatusCancelled) {
		return nil, fmt.Errorf("%w: voucher is %s", ErrInvalidTransition, voucher.Status)
	}

	tier := models.CancellationTypeLate
	if voucher.EventStart != nil {
		tier = ClassifyCancellation(*voucher.EventStart, cancelledAt)
	}

	original, err := s.settlementService.GetNormalSettlement(voucher.ID)
	if err != nil {
		return nil, err
	}

	refundBps, expertBps := s.compensationRates(tier)
	comp := ComputeCompensation(original, refundBps, expertBps)

	creditAction := models.SponsorCreditActionNone
	if comp.SponsorCreditRefund > 0 {
		creditAction = models.SponsorCreditActionRefund
	}
	row := BuildCompensationRow(original, comp, models.SettlementTypeCancellation, creditAction)

	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		res := tx.Model(&models.Voucher{}).
			Where("id = ? AND status = ?", voucher.ID, models.VoucherStatusActive).
			Updates(map[string]interface{}{
				"status":            string(models.VoucherStatusCancelled),
				"cancellation_type": string(tier),
				"cancelled_at":      cancelledAt,
				"payout_amount":     gorm.Expr("payout_amount - ?", comp.ExpertPayoutAdjustment),
			})
		if res.Error != nil {
			return fmt.Errorf("failed to cancel voucher: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrInvalidTransition
		}

		if err := s.settlementService.AppendCompensationInTx(tx, &row); err != nil {
			return err
		}

		if creditAction == models.SponsorCreditActionRefund && original.SponsorUserID != nil {
			if _, err := s.creditService.RefundInTx(tx, *original.SponsorUserID, comp.SponsorCreditRefund, &voucher.ID,
				fmt.Sprintf("Refund for %s cancellation of voucher %s", tier, voucher.Code)); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	voucher.Status = models.VoucherStatusCancelled
	voucher.CancellationType = tier
	voucher.CancelledAt = &cancelledAt
	voucher.PayoutAmount -= comp.ExpertPayoutAdjustment

	logrus.WithFields(logrus.Fields{
		"voucher_id":          voucher.ID,
		"tier":                tier,
		"user_refund":         comp.UserRefund,
		"sponsor_refund":      comp.SponsorCreditRefund,
		"expert_adjustment":   comp.ExpertPayoutAdjustment,
	}).Info("Voucher cancelled")

	return &CompensationResult{
		Voucher:                &voucher,
		CancellationType:       tier,
		UserRefund:             comp.UserRefund,
		SponsorCreditRefund:    comp.SponsorCreditRefund,
		ExpertPayoutAdjustment: comp.ExpertPayoutAdjustment,
		Settlement:             &row,
	}, nil
}

// RecordNoShow marks an unredeemed event booking as a no-show after the
// event has passed. No money moves: the expert keeps the full payout and
// nobody is refunded. The zero-amount settlement row is the audit marker
// that the case was considered and closed. Calling it again on a voucher
// already in no_show is a no-op.
func (s *CancellationService) RecordNoShow(voucherID uuid.UUID) (*CompensationResult, error) {
	var voucher models.Voucher
	if err := s.db.First(&voucher, "id = ?", voucherID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("voucher not found")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if voucher.Status == models.VoucherStatusNoShow {
		return &CompensationResult{Voucher: &voucher, CancellationType: models.CancellationTypeNone}, nil
	}
	if !voucher.Status.CanTransitionTo(models.VoucherStatusNoShow) {
		return nil, fmt.Errorf("%w: voucher is %s", ErrInvalidTransition, voucher.Status)
	}
	if voucher.EventStart == nil || time.Now().Before(*voucher.EventStart) {
		return nil, errors.New("cannot record no-show before the event start")
	}

	original, err := s.settlementService.GetNormalSettlement(voucher.ID)
	if err != nil {
		return nil, err
	}

	row := BuildCompensationRow(original, CompensationSplit{}, models.SettlementTypeNoShow, models.SponsorCreditActionNone)

	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		res := tx.Model(&models.Voucher{}).
			Where("id = ? AND status = ?", voucher.ID, models.VoucherStatusActive).
			Update("status", string(models.VoucherStatusNoShow))
		if res.Error != nil {
			return fmt.Errorf("failed to mark no-show: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrInvalidTransition
		}

		return s.settlementService.AppendCompensationInTx(tx, &row)
	})
	if err != nil {
		return nil, err
	}

	voucher.Status = models.VoucherStatusNoShow

	logrus.WithField("voucher_id", voucher.ID).Info("Voucher marked as no-show")

	return &CompensationResult{
		Voucher:          &voucher,
		CancellationType: models.CancellationTypeNone,
		Settlement:       &row,
	}, nil
}

// SweepNoShows finds active event bookings whose event passed more than the
// grace period ago and closes each one as a no-show. Per-voucher errors are
// logged and skipped so one bad row does not stall the sweep.
func (s *CancellationService) SweepNoShows() (int, error) {
	cutoff := time.Now().Add(-noShowGracePeriod)

	var vouchers []models.Voucher
	if err := s.db.
		Where("status = ? AND event_start IS NOT NULL AND event_start < ?", models.VoucherStatusActive, cutoff).
		Find(&vouchers).Error; err != nil {
		return 0, fmt.Errorf("failed to fetch lapsed vouchers: %w", err)
	}

	swept := 0
	for i := range vouchers {
		if _, err := s.RecordNoShow(vouchers[i].ID); err != nil {
			logrus.WithError(err).WithField("voucher_id", vouchers[i].ID).Warn("No-show sweep skipped voucher")
			continue
		}
		swept++
	}

	if swept > 0 {
		logrus.WithField("count", swept).Info("No-show sweep completed")
	}
	return swept, nil
}

// SweepExpired closes active evergreen vouchers past their expiry. Expiry is
// terminal with no compensation, so this is a single bulk conditional
// update with no settlement rows.
func (s *CancellationService) SweepExpired() (int64, error) {
	res := s.db.Model(&models.Voucher{}).
		Where("status = ? AND event_start IS NULL AND expires_at IS NOT NULL AND expires_at < ?",
			models.VoucherStatusActive, time.Now()).
		Update("status", string(models.VoucherStatusExpired))
	if res.Error != nil {
		return 0, fmt.Errorf("failed to expire vouchers: %w", res.Error)
	}

	if res.RowsAffected > 0 {
		logrus.WithField("count", res.RowsAffected).Info("Expiry sweep completed")
	}
	return res.RowsAffected, nil
}
