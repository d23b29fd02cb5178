// internal/services/credit_service.go
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wellpont/wellpont-backend/internal/models"
	"github.com/wellpont/wellpont-backend/internal/utils"
)

// CreditService owns the sponsor credit ledger. Entries are append-only and
// signed; the available balance is always derived by summation. No code
// path outside this service writes credit_transactions.
type CreditService struct {
	db                  *gorm.DB
	settingsService     *SettingsService
	notificationService *NotificationService
}

type GrantCreditsRequest struct {
	SponsorUserID   uuid.UUID                    `json:"sponsor_user_id" validate:"required"`
	Credits         int64                        `json:"credits" validate:"required,min=1"`
	TransactionType models.CreditTransactionType `json:"transaction_type" validate:"required"`
	Description     string                       `json:"description,omitempty"`
}

func NewCreditService(db *gorm.DB, settingsService *SettingsService, notificationService *NotificationService) *CreditService {
	return &CreditService{
		db:                  db,
		settingsService:     settingsService,
		notificationService: notificationService,
	}
}

// AvailableCredits derives the sponsor's balance from the entry sequence.
func (s *CreditService) AvailableCredits(sponsorID uuid.UUID) (int64, error) {
	var balance int64
	if err := s.db.Model(&models.CreditTransaction{}).
		Where("sponsor_user_id = ?", sponsorID).
		Select("COALESCE(SUM(credits), 0)").Scan(&balance).Error; err != nil {
		return 0, fmt.Errorf("failed to derive credit balance: %w", err)
	}
	return balance, nil
}

// GrantCredits appends a credit-increasing entry (purchase, subscription,
// initial, rollover, bonus, refund).
func (s *CreditService) GrantCredits(req *GrantCreditsRequest) (*models.CreditTransaction, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	switch req.TransactionType {
	case models.CreditTransactionTypePurchase, models.CreditTransactionTypeSubscription,
		models.CreditTransactionTypeInitial, models.CreditTransactionTypeRollover,
		models.CreditTransactionTypeBonus, models.CreditTransactionTypeRefund:
	default:
		return nil, errors.New("transaction type is not credit-increasing")
	}

	entry := &models.CreditTransaction{
		SponsorUserID:   req.SponsorUserID,
		Credits:         req.Credits,
		TransactionType: req.TransactionType,
		Description:     req.Description,
	}

	if err := s.db.Create(entry).Error; err != nil {
		return nil, fmt.Errorf("failed to create credit transaction: %w", err)
	}

	return entry, nil
}

// DebitInTx appends a credit-decreasing entry inside the caller's
// transaction. The insert is guarded by the derived-balance check in the
// same statement, so two racing debits can never take the balance negative:
// the losing insert affects zero rows and the whole admission unit rolls
// back with ErrInsufficientCredit.
func (s *CreditService) DebitInTx(tx *gorm.DB, sponsorID uuid.UUID, amount int64, txType models.CreditTransactionType, referenceID *uuid.UUID, description string) (*models.CreditTransaction, error) {
	if amount <= 0 {
		return nil, errors.New("debit amount must be positive")
	}

	entry := &models.CreditTransaction{
		SponsorUserID:   sponsorID,
		Credits:         -amount,
		TransactionType: txType,
		ReferenceID:     referenceID,
		Description:     description,
	}
	entry.ID = uuid.New()
	now := time.Now()

	var refID interface{}
	if referenceID != nil {
		refID = *referenceID
	}

	res := tx.Exec(`
		INSERT INTO credit_transactions (id, created_at, updated_at, sponsor_user_id, credits, transaction_type, reference_id, description)
		SELECT ?, ?, ?, ?, ?, ?, ?, ?
		WHERE (
			SELECT COALESCE(SUM(credits), 0)
			FROM credit_transactions
			WHERE sponsor_user_id = ? AND deleted_at IS NULL
		) >= ?`,
		entry.ID, now, now, sponsorID, -amount, string(txType), refID, description,
		sponsorID, amount,
	)

	if res.Error != nil {
		return nil, fmt.Errorf("failed to debit sponsor credits: %w", res.Error)
	}

	if res.RowsAffected == 0 {
		return nil, ErrInsufficientCredit
	}

	entry.CreatedAt = now
	entry.UpdatedAt = now
	return entry, nil
}

// RefundInTx re-credits a sponsor inside the caller's transaction. Refunds
// only ever increase the balance, so no guard is needed.
func (s *CreditService) RefundInTx(tx *gorm.DB, sponsorID uuid.UUID, amount int64, referenceID *uuid.UUID, description string) (*models.CreditTransaction, error) {
	if amount <= 0 {
		return nil, errors.New("refund amount must be positive")
	}

	entry := &models.CreditTransaction{
		SponsorUserID:   sponsorID,
		Credits:         amount,
		TransactionType: models.CreditTransactionTypeRefund,
		ReferenceID:     referenceID,
		Description:     description,
	}

	if err := tx.Create(entry).Error; err != nil {
		return nil, fmt.Errorf("failed to create refund credit transaction: %w", err)
	}

	return entry, nil
}

// CheckBalanceAlerts compares the derived balance against the configured
// thresholds and raises an admin alert for the tightest one crossed. Called
// after a successful debit commits.
func (s *CreditService) CheckBalanceAlerts(sponsorID uuid.UUID) {
	balance, err := s.AvailableCredits(sponsorID)
	if err != nil {
		return
	}

	warning, critical := s.settingsService.SponsorAlertThresholds()

	switch {
	case balance < critical:
		s.notificationService.NotifySponsorBalance(sponsorID, balance, critical, true)
	case balance < warning:
		s.notificationService.NotifySponsorBalance(sponsorID, balance, warning, false)
	}
}

// GetLedger returns the sponsor's entry history, newest first.
func (s *CreditService) GetLedger(sponsorID uuid.UUID, params utils.PaginationParams) ([]models.CreditTransaction, int64, error) {
	query := s.db.Model(&models.CreditTransaction{}).
		Where("sponsor_user_id = ?", sponsorID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count credit transactions: %w", err)
	}

	allowedSortFields := []string{"created_at", "credits", "transaction_type"}
	query = utils.ApplySort(query, params, allowedSortFields)
	query = utils.ApplyPagination(query, params)

	var entries []models.CreditTransaction
	if err := query.Find(&entries).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch credit transactions: %w", err)
	}

	return entries, total, nil
}
