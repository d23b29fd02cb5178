// internal/services/settlement_service.go
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

// SettlementService owns the settlement ledger. Rows are append-only: the
// only in-place mutation is the one-way pending -> completed move performed
// by the payout batch, and that is a bulk conditional update.
type SettlementService struct {
	db                  *gorm.DB
	settingsService     *SettingsService
	notificationService *NotificationService
}

type PurchaseSettlementRequest struct {
	UserID             uuid.UUID `json:"user_id" validate:"required"`
	ContentID          uuid.UUID `json:"content_id" validate:"required"`
	GrossPrice         int64     `json:"gross_price" validate:"min=0"`
	WellPointsDiscount int64     `json:"wellpoints_discount" validate:"min=0"`
	PaymentReference   string    `json:"payment_reference" validate:"required"`
}

type PayoutBatchResult struct {
	ExpertID   uuid.UUID `json:"expert_id"`
	Count      int64     `json:"count"`
	Total      int64     `json:"total"`
	Mismatched int64     `json:"mismatched"`
}

func NewSettlementService(db *gorm.DB, settingsService *SettingsService, notificationService *NotificationService) *SettlementService {
	return &SettlementService{
		db:                  db,
		settingsService:     settingsService,
		notificationService: notificationService,
	}
}

// CreatePendingInTx persists the initial pending settlement for an admission
// inside the caller's transaction. The reconciliation check here should be
// unreachable given the calculator's rounding rule; if it fires, it is a
// code defect and nothing is persisted.
func (s *SettlementService) CreatePendingInTx(tx *gorm.DB, voucher *models.Voucher, program *models.Program, split SettlementSplit, sponsorID *uuid.UUID) (*models.Settlement, error) {
	settlement := &models.Settlement{
		VoucherID:           voucher.ID,
		SettlementType:      models.SettlementTypeNormal,
		ContentID:           program.ID,
		UserID:              voucher.UserID,
		ExpertID:            program.CreatorID,
		SponsorUserID:       sponsorID,
		UserPayment:         split.UserPayment,
		SponsorContribution: split.SponsorContribution,
		PlatformFee:         split.PlatformFee,
		ExpertPayout:        split.ExpertPayout,
		WellPointsDiscount:  split.WellPointsDiscount,
		SponsorCreditAction: models.SponsorCreditActionNone,
		SettlementStatus:    models.SettlementStatusPending,
	}

	if !settlement.Reconciles() {
		return nil, ErrReconciliationMismatch
	}

	if err := tx.Create(settlement).Error; err != nil {
		return nil, fmt.Errorf("failed to create settlement: %w", err)
	}

	return settlement, nil
}

// AppendCompensationInTx appends a compensating row inside the caller's
// transaction; the original row is never touched.
func (s *SettlementService) AppendCompensationInTx(tx *gorm.DB, row *models.Settlement) error {
	if !row.Reconciles() {
		return ErrReconciliationMismatch
	}

	if err := tx.Create(row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrInvalidTransition
		}
		return fmt.Errorf("failed to append compensating settlement: %w", err)
	}

	return nil
}

// RecordPurchaseSettlement books a one_time_purchase access after the
// payment processor confirmed capture. Grant, voucher and settlement are one
// atomic unit, mirroring the sponsored admission path.
func (s *SettlementService) RecordPurchaseSettlement(req *PurchaseSettlementRequest) (*models.Settlement, error) {
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

	feeBps := s.settingsService.PlatformFeeBps()
	split := ComputeSettlement(req.GrossPrice, models.AccessTypePurchased, req.WellPointsDiscount, feeBps)

	var settlement *models.Settlement
	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		grant := &models.AccessGrant{
			UserID:     req.UserID,
			ContentID:  req.ContentID,
			AccessType: models.AccessTypePurchased,
			AmountPaid: split.UserPayment,
		}
		if err := tx.Create(grant).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyGranted
			}
			return fmt.Errorf("failed to create access grant: %w", err)
		}

		code, err := utils.GenerateVoucherCode()
		if err != nil {
			return fmt.Errorf("failed to generate voucher code: %w", err)
		}

		voucher := &models.Voucher{
			Code:             code,
			ContentID:        req.ContentID,
			UserID:           req.UserID,
			Status:           models.VoucherStatusActive,
			PaymentReference: req.PaymentReference,
			PayoutAmount:     split.ExpertPayout,
		}
		if program.EventStart != nil {
			eventStart := *program.EventStart
			voucher.EventStart = &eventStart
			voucher.ExpiresAt = &eventStart
		} else {
			expires := time.Now().AddDate(0, 0, 90)
			voucher.ExpiresAt = &expires
		}
		if err := tx.Create(voucher).Error; err != nil {
			return fmt.Errorf("failed to create voucher: %w", err)
		}

		settlement, err = s.CreatePendingInTx(tx, voucher, &program, split, nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	return settlement, nil
}

// MarkSettlementsPaid moves all of an expert's pending settlements to
// completed in one bulk conditional update. The reconciliation predicate is
// part of the statement, so a mismatched row can never be marked paid; such
// rows raise an alert instead. Safe to retry: rows already completed no
// longer match the WHERE clause, and settlements inserted concurrently start
// pending and are picked up by the next batch.
func (s *SettlementService) MarkSettlementsPaid(expertID uuid.UUID) (*PayoutBatchResult, error) {
	result := &PayoutBatchResult{ExpertID: expertID}

	var pendingTotal int64
	if err := s.db.Model(&models.Settlement{}).
		Where("expert_id = ? AND settlement_status = ?", expertID, models.SettlementStatusPending).
		Select("COALESCE(SUM(expert_payout), 0)").Scan(&pendingTotal).Error; err != nil {
		return nil, fmt.Errorf("failed to sum pending payouts: %w", err)
	}

	if minimum := s.settingsService.PayoutMinimum(); pendingTotal < minimum {
		return nil, fmt.Errorf("%w: pending %d HUF, minimum %d HUF", ErrBelowPayoutMinimum, pendingTotal, minimum)
	}

	// Alert on rows that fail the ledger equation before excluding them.
	var mismatched []models.Settlement
	if err := s.db.
		Where("expert_id = ? AND settlement_status = ? AND user_payment + sponsor_contribution <> platform_fee + expert_payout",
			expertID, models.SettlementStatusPending).
		Find(&mismatched).Error; err != nil {
		return nil, fmt.Errorf("failed to check reconciliation: %w", err)
	}
	for i := range mismatched {
		s.notificationService.NotifyReconciliationMismatch(mismatched[i].ID)
	}
	result.Mismatched = int64(len(mismatched))

	now := time.Now()
	res := s.db.Exec(`
		UPDATE settlements
		SET settlement_status = ?, processed_at = ?, updated_at = ?
		WHERE expert_id = ? AND settlement_status = ?
		  AND user_payment + sponsor_contribution = platform_fee + expert_payout
		  AND deleted_at IS NULL`,
		string(models.SettlementStatusCompleted), now, now,
		expertID, string(models.SettlementStatusPending),
	)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to mark settlements paid: %w", res.Error)
	}

	result.Count = res.RowsAffected
	result.Total = pendingTotal

	logrus.WithFields(logrus.Fields{
		"expert_id":  expertID,
		"count":      result.Count,
		"total":      result.Total,
		"mismatched": result.Mismatched,
	}).Info("Payout batch completed")

	s.notificationService.NotifyPayoutBatch(expertID, result.Count, result.Total)

	return result, nil
}

// GetVoucherSettlements returns every row appended for one voucher, oldest
// first: the normal row and any compensation.
func (s *SettlementService) GetVoucherSettlements(voucherID uuid.UUID) ([]models.Settlement, error) {
	var settlements []models.Settlement
	if err := s.db.Where("voucher_id = ?", voucherID).
		Order("created_at").Find(&settlements).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch settlements: %w", err)
	}
	return settlements, nil
}

// GetNormalSettlement returns the original settlement row of a voucher.
func (s *SettlementService) GetNormalSettlement(voucherID uuid.UUID) (*models.Settlement, error) {
	var settlement models.Settlement
	if err := s.db.Where("voucher_id = ? AND settlement_type = ?", voucherID, models.SettlementTypeNormal).
		First(&settlement).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("settlement not found for voucher")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &settlement, nil
}

// SearchSettlements is the admin listing over the ledger.
func (s *SettlementService) SearchSettlements(expertID *uuid.UUID, status *models.SettlementStatus, params utils.PaginationParams) ([]models.Settlement, int64, error) {
	query := s.db.Model(&models.Settlement{})

	if expertID != nil {
		query = query.Where("expert_id = ?", *expertID)
	}
	if status != nil {
		query = query.Where("settlement_status = ?", *status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count settlements: %w", err)
	}

	allowedSortFields := []string{"created_at", "expert_payout", "settlement_status", "processed_at"}
	query = utils.ApplySort(query, params, allowedSortFields)
	query = utils.ApplyPagination(query, params)

	var settlements []models.Settlement
	if err := query.Find(&settlements).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch settlements: %w", err)
	}

	return settlements, total, nil
}
