// internal/services/voucher_service.go
package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/wellpont/wellpont-backend/internal/models"
	"github.com/wellpont/wellpont-backend/internal/utils"
)

// VoucherService covers the read side of vouchers and the redemption
// transition. Cancellation and no-show live in CancellationService because
// they carry money consequences.
type VoucherService struct {
	db *gorm.DB
}

type RedeemVoucherRequest struct {
	Code string `json:"code" validate:"required,voucher_code"`
}

func NewVoucherService(db *gorm.DB) *VoucherService {
	return &VoucherService{db: db}
}

// Redeem checks the voucher in at the venue. The transition is a conditional
// update on the active status, so two concurrent check-ins cannot both
// succeed. An expired-but-unswept voucher is rejected here rather than
// waiting for the sweep.
func (s *VoucherService) Redeem(req *RedeemVoucherRequest, expertID uuid.UUID) (*models.Voucher, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	var voucher models.Voucher
	if err := s.db.Preload("Program").
		First(&voucher, "code = ?", strings.ToUpper(strings.TrimSpace(req.Code))).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("voucher not found")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if voucher.Program.CreatorID != expertID {
		return nil, errors.New("voucher belongs to another expert's program")
	}
	if !voucher.Status.CanTransitionTo(models.VoucherStatusRedeemed) {
		return nil, fmt.Errorf("%w: voucher is %s", ErrInvalidTransition, voucher.Status)
	}
	if voucher.EventStart == nil && voucher.ExpiresAt != nil && time.Now().After(*voucher.ExpiresAt) {
		return nil, fmt.Errorf("%w: voucher expired", ErrInvalidTransition)
	}

	now := time.Now()
	res := s.db.Model(&models.Voucher{}).
		Where("id = ? AND status = ?", voucher.ID, models.VoucherStatusActive).
		Updates(map[string]interface{}{
			"status":      string(models.VoucherStatusRedeemed),
			"redeemed_at": now,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to redeem voucher: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrInvalidTransition
	}

	voucher.Status = models.VoucherStatusRedeemed
	voucher.RedeemedAt = &now

	logrus.WithFields(logrus.Fields{
		"voucher_id": voucher.ID,
		"code":       voucher.Code,
	}).Info("Voucher redeemed")

	return &voucher, nil
}

func (s *VoucherService) GetVoucher(voucherID uuid.UUID) (*models.Voucher, error) {
	var voucher models.Voucher
	if err := s.db.Preload("Program").Preload("Settlements").
		First(&voucher, "id = ?", voucherID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("voucher not found")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &voucher, nil
}

// GetUserVouchers lists a member's bookings, optionally filtered by status.
func (s *VoucherService) GetUserVouchers(userID uuid.UUID, status *models.VoucherStatus, params utils.PaginationParams) ([]models.Voucher, int64, error) {
	query := s.db.Model(&models.Voucher{}).Where("user_id = ?", userID)
	if status != nil {
		query = query.Where("status = ?", *status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count vouchers: %w", err)
	}

	allowedSortFields := []string{"created_at", "event_start", "status"}
	query = utils.ApplySort(query, params, allowedSortFields)
	query = utils.ApplyPagination(query, params)

	var vouchers []models.Voucher
	if err := query.Preload("Program").Find(&vouchers).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch vouchers: %w", err)
	}

	return vouchers, total, nil
}

// GetProgramVouchers lists bookings on one program for its expert.
func (s *VoucherService) GetProgramVouchers(contentID uuid.UUID, params utils.PaginationParams) ([]models.Voucher, int64, error) {
	query := s.db.Model(&models.Voucher{}).Where("content_id = ?", contentID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count vouchers: %w", err)
	}

	allowedSortFields := []string{"created_at", "event_start", "status"}
	query = utils.ApplySort(query, params, allowedSortFields)
	query = utils.ApplyPagination(query, params)

	var vouchers []models.Voucher
	if err := query.Find(&vouchers).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch vouchers: %w", err)
	}

	return vouchers, total, nil
}
