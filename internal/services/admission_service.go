// internal/services/admission_service.go
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
	"github.com/wellpont/wellpont-backend/internal/utils"
)

// AdmissionStatus is the outcome of one TryAdmit call.
type AdmissionStatus string

const (
	AdmissionGranted        AdmissionStatus = "granted"
	AdmissionAlreadyGranted AdmissionStatus = "already_granted"
	AdmissionExhausted      AdmissionStatus = "exhausted"
	AdmissionNotSponsored   AdmissionStatus = "not_sponsored"
)

type AdmissionResult struct {
	Status     AdmissionStatus     `json:"status"`
	Grant      *models.AccessGrant `json:"grant,omitempty"`
	Voucher    *models.Voucher     `json:"voucher,omitempty"`
	Settlement *models.Settlement  `json:"settlement,omitempty"`
}

type AccessDecision struct {
	HasAccess bool   `json:"has_access"`
	Reason    string `json:"reason"`
}

type CreateLicensePoolRequest struct {
	ContentID     uuid.UUID `json:"content_id" validate:"required"`
	SponsorUserID uuid.UUID `json:"sponsor_user_id" validate:"required"`
	TotalLicenses int       `json:"total_licenses" validate:"required,min=1"`
}

// AdmissionService is the admission controller for sponsored content. The
// capacity decision and the write that consumes capacity are one SQL
// statement; the grant, voucher, settlement and sponsor debit ride in the
// same transaction, so a member is never admitted without billing and a
// sponsor is never billed without a grant.
type AdmissionService struct {
	db                  *gorm.DB
	settingsService     *SettingsService
	creditService       *CreditService
	settlementService   *SettlementService
	notificationService *NotificationService
}

func NewAdmissionService(db *gorm.DB, settingsService *SettingsService, creditService *CreditService, settlementService *SettlementService, notificationService *NotificationService) *AdmissionService {
	return &AdmissionService{
		db:                  db,
		settingsService:     settingsService,
		creditService:       creditService,
		settlementService:   settlementService,
		notificationService: notificationService,
	}
}

// TryAdmit attempts to admit a user to sponsored content. Expected outcomes
// (granted, already granted, exhausted, not sponsored) come back in the
// result with a nil error; errors are reserved for infrastructure failures
// and programmer errors.
func (s *AdmissionService) TryAdmit(contentID, userID uuid.UUID) (*AdmissionResult, error) {
	var program models.Program
	if err := s.db.First(&program, "id = ?", contentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("content not found")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if program.AccessLevel != models.AccessLevelSponsored {
		return &AdmissionResult{Status: AdmissionNotSponsored}, nil
	}

	// Idempotent re-admission: an existing grant is success, not an error.
	var existing models.AccessGrant
	err := s.db.Where("user_id = ? AND content_id = ?", userID, contentID).First(&existing).Error
	if err == nil {
		return &AdmissionResult{Status: AdmissionAlreadyGranted, Grant: &existing}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("database error: %w", err)
	}

	// Fee is read once here and frozen into the settlement row.
	feeBps := s.settingsService.PlatformFeeBps()

	var pool models.LicensePool
	if err := s.db.Where("content_id = ?", contentID).First(&pool).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPoolInactive
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	if !pool.IsActive {
		return nil, ErrPoolInactive
	}

	result := &AdmissionResult{Status: AdmissionGranted}

	txErr := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		// The capacity check and the increment are one conditional update.
		// A prior read of used_licenses is never trusted at write time: if a
		// racing caller took the last slot, this affects zero rows.
		res := tx.Exec(`
			UPDATE license_pools
			SET used_licenses = used_licenses + 1, updated_at = ?
			WHERE content_id = ? AND is_active = ? AND used_licenses < total_licenses AND deleted_at IS NULL`,
			time.Now(), contentID, true,
		)
		if res.Error != nil {
			return fmt.Errorf("failed to consume license: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrExhausted
		}

		grant := &models.AccessGrant{
			UserID:     userID,
			ContentID:  contentID,
			AccessType: models.AccessTypeSponsored,
			AmountPaid: 0,
		}
		if err := tx.Create(grant).Error; err != nil {
			// A racing call for the same (user, content) pair created the
			// grant first; surface it as the idempotent outcome.
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyGranted
			}
			return fmt.Errorf("failed to create access grant: %w", err)
		}

		voucher, err := s.buildVoucher(&program, userID)
		if err != nil {
			return err
		}
		if err := tx.Create(voucher).Error; err != nil {
			return fmt.Errorf("failed to create voucher: %w", err)
		}

		split := ComputeSettlement(program.Price, models.AccessTypeSponsored, 0, feeBps)

		settlement, err := s.settlementService.CreatePendingInTx(tx, voucher, &program, split, &pool.SponsorUserID)
		if err != nil {
			return err
		}

		if split.SponsorContribution > 0 {
			if _, err := s.creditService.DebitInTx(tx, pool.SponsorUserID, split.SponsorContribution,
				models.CreditTransactionTypeUsage, &voucher.ID,
				fmt.Sprintf("Sponsored admission for %s", program.Title)); err != nil {
				return err
			}
		}

		voucher.PayoutAmount = split.ExpertPayout
		if err := tx.Model(voucher).Update("payout_amount", split.ExpertPayout).Error; err != nil {
			return fmt.Errorf("failed to record payout amount: %w", err)
		}

		result.Grant = grant
		result.Voucher = voucher
		result.Settlement = settlement
		return nil
	})

	switch {
	case txErr == nil:
		s.creditService.CheckBalanceAlerts(pool.SponsorUserID)
		return result, nil

	case errors.Is(txErr, ErrExhausted):
		return &AdmissionResult{Status: AdmissionExhausted}, nil

	case errors.Is(txErr, ErrAlreadyGranted):
		if err := s.db.Where("user_id = ? AND content_id = ?", userID, contentID).First(&existing).Error; err == nil {
			return &AdmissionResult{Status: AdmissionAlreadyGranted, Grant: &existing}, nil
		}
		return &AdmissionResult{Status: AdmissionAlreadyGranted}, nil

	case errors.Is(txErr, ErrInsufficientCredit):
		// The whole unit rolled back: no grant, no pool increment, no
		// settlement. Members see the exhausted outcome; the funding gap is
		// the admin's problem.
		available, _ := s.creditService.AvailableCredits(pool.SponsorUserID)
		s.notificationService.NotifyInsufficientCredit(pool.SponsorUserID, contentID, program.Price, available)
		logrus.WithFields(logrus.Fields{
			"sponsor_id": pool.SponsorUserID,
			"content_id": contentID,
			"required":   program.Price,
			"available":  available,
		}).Warn("Admission rejected: insufficient sponsor credit")
		return &AdmissionResult{Status: AdmissionExhausted}, nil

	default:
		return nil, txErr
	}
}

func (s *AdmissionService) buildVoucher(program *models.Program, userID uuid.UUID) (*models.Voucher, error) {
	code, err := utils.GenerateVoucherCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate voucher code: %w", err)
	}

	voucher := &models.Voucher{
		Code:      code,
		ContentID: program.ID,
		UserID:    userID,
		Status:    models.VoucherStatusActive,
	}

	if program.EventStart != nil {
		eventStart := *program.EventStart
		voucher.EventStart = &eventStart
		voucher.ExpiresAt = &eventStart
	} else {
		expires := time.Now().AddDate(0, 0, 90)
		voucher.ExpiresAt = &expires
	}

	return voucher, nil
}

// GetAccess answers "may this user view this content right now". A grant
// always wins; otherwise the program's access level decides.
func (s *AdmissionService) GetAccess(userID, contentID uuid.UUID) (*AccessDecision, error) {
	var grant models.AccessGrant
	err := s.db.Where("user_id = ? AND content_id = ?", userID, contentID).First(&grant).Error
	if err == nil {
		return &AccessDecision{HasAccess: true, Reason: "access_grant"}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("database error: %w", err)
	}

	var program models.Program
	if err := s.db.First(&program, "id = ?", contentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("content not found")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	switch program.AccessLevel {
	case models.AccessLevelFree:
		return &AccessDecision{HasAccess: true, Reason: "free"}, nil
	case models.AccessLevelRegistered:
		if userID != uuid.Nil {
			return &AccessDecision{HasAccess: true, Reason: "registered"}, nil
		}
		return &AccessDecision{HasAccess: false, Reason: "registration_required"}, nil
	case models.AccessLevelPremium:
		return &AccessDecision{HasAccess: false, Reason: "premium_subscription_required"}, nil
	case models.AccessLevelOneTimePurchase:
		return &AccessDecision{HasAccess: false, Reason: "purchase_required"}, nil
	case models.AccessLevelSponsored:
		return &AccessDecision{HasAccess: false, Reason: "admission_required"}, nil
	default:
		return &AccessDecision{HasAccess: false, Reason: "unknown_access_level"}, nil
	}
}

// CreateLicensePool attaches a sponsorship to content. One pool per content;
// the program flips to sponsored access.
func (s *AdmissionService) CreateLicensePool(req *CreateLicensePoolRequest) (*models.LicensePool, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	var program models.Program
	if err := s.db.First(&program, "id = ?", req.ContentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("content not found")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	pool := &models.LicensePool{
		ContentID:     req.ContentID,
		SponsorUserID: req.SponsorUserID,
		TotalLicenses: req.TotalLicenses,
		UsedLicenses:  0,
		IsActive:      true,
	}

	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := tx.Create(pool).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return errors.New("content already has a license pool")
			}
			return fmt.Errorf("failed to create license pool: %w", err)
		}

		return tx.Model(&program).Update("access_level", models.AccessLevelSponsored).Error
	})
	if err != nil {
		return nil, err
	}

	return pool, nil
}

// DeactivateLicensePool ends a sponsorship. The pool row stays: its counters
// are part of the audit trail, and grants already issued remain honored.
func (s *AdmissionService) DeactivateLicensePool(contentID uuid.UUID) error {
	res := s.db.Model(&models.LicensePool{}).
		Where("content_id = ? AND is_active = ?", contentID, true).
		Update("is_active", false)
	if res.Error != nil {
		return fmt.Errorf("failed to deactivate license pool: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return errors.New("no active license pool for content")
	}
	return nil
}
