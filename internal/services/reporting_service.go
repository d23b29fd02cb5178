// internal/services/reporting_service.go
package services

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/wellpont/wellpont-backend/internal/models"
)

// ReportingService answers the admin dashboards. Every figure is summed from
// the settlement ledger or the credit ledger at query time; there are no
// stored aggregates to drift out of sync.
type ReportingService struct {
	db              *gorm.DB
	settingsService *SettingsService
	creditService   *CreditService
	storageService  *StorageService
}

type RevenueSummary struct {
	From                time.Time `json:"from"`
	To                  time.Time `json:"to"`
	GrossRevenue        int64     `json:"gross_revenue"`
	UserPayments        int64     `json:"user_payments"`
	SponsorContribution int64     `json:"sponsor_contribution"`
	PlatformFees        int64     `json:"platform_fees"`
	ExpertPayouts       int64     `json:"expert_payouts"`
	WellPointsDiscounts int64     `json:"wellpoints_discounts"`
	UserRefunds         int64     `json:"user_refunds"`
	SettlementCount     int64     `json:"settlement_count"`
}

type ExpertPayoutSummary struct {
	ExpertID       uuid.UUID `json:"expert_id"`
	PendingAmount  int64     `json:"pending_amount"`
	PendingCount   int64     `json:"pending_count"`
	PaidAmount     int64     `json:"paid_amount"`
	PaidCount      int64     `json:"paid_count"`
	PayoutMinimum  int64     `json:"payout_minimum"`
	AboveMinimum   bool      `json:"above_minimum"`
}

type SponsorHealth struct {
	SponsorUserID     uuid.UUID `json:"sponsor_user_id"`
	Balance           int64     `json:"balance"`
	ActivePools       int64     `json:"active_pools"`
	RemainingLicenses int64     `json:"remaining_licenses"`
	Status            string    `json:"status"` // ok, warning, critical
}

type VoucherOutcomeSummary struct {
	From      time.Time `json:"from"`
	To        time.Time `json:"to"`
	Active    int64     `json:"active"`
	Redeemed  int64     `json:"redeemed"`
	Cancelled int64     `json:"cancelled"`
	NoShow    int64     `json:"no_show"`
	Expired   int64     `json:"expired"`

	CancellationsByTier map[models.CancellationType]int64 `json:"cancellations_by_tier"`
}

func NewReportingService(db *gorm.DB, settingsService *SettingsService, creditService *CreditService, storageService *StorageService) *ReportingService {
	return &ReportingService{
		db:              db,
		settingsService: settingsService,
		creditService:   creditService,
		storageService:  storageService,
	}
}

// GetRevenueSummary sums the ledger over a window. Compensating rows carry
// negative amounts, so the sums are net of corrections by construction.
func (s *ReportingService) GetRevenueSummary(from, to time.Time) (*RevenueSummary, error) {
	summary := &RevenueSummary{From: from, To: to}

	row := s.db.Model(&models.Settlement{}).
		Where("created_at >= ? AND created_at < ?", from, to).
		Select(`COALESCE(SUM(user_payment), 0),
			COALESCE(SUM(sponsor_contribution), 0),
			COALESCE(SUM(platform_fee), 0),
			COALESCE(SUM(expert_payout), 0),
			COALESCE(SUM(wellpoints_discount), 0),
			COALESCE(SUM(user_refund), 0),
			COUNT(*)`).Row()
	if err := row.Scan(&summary.UserPayments, &summary.SponsorContribution, &summary.PlatformFees,
		&summary.ExpertPayouts, &summary.WellPointsDiscounts, &summary.UserRefunds,
		&summary.SettlementCount); err != nil {
		return nil, fmt.Errorf("failed to sum settlements: %w", err)
	}

	summary.GrossRevenue = summary.UserPayments + summary.SponsorContribution
	return summary, nil
}

func (s *ReportingService) GetExpertPayoutSummary(expertID uuid.UUID) (*ExpertPayoutSummary, error) {
	summary := &ExpertPayoutSummary{
		ExpertID:      expertID,
		PayoutMinimum: s.settingsService.PayoutMinimum(),
	}

	type statusSum struct {
		SettlementStatus string
		Amount           int64
		Count            int64
	}
	var sums []statusSum
	if err := s.db.Model(&models.Settlement{}).
		Where("expert_id = ?", expertID).
		Select("settlement_status, COALESCE(SUM(expert_payout), 0) AS amount, COUNT(*) AS count").
		Group("settlement_status").Scan(&sums).Error; err != nil {
		return nil, fmt.Errorf("failed to sum expert payouts: %w", err)
	}

	for _, row := range sums {
		switch models.SettlementStatus(row.SettlementStatus) {
		case models.SettlementStatusPending:
			summary.PendingAmount = row.Amount
			summary.PendingCount = row.Count
		case models.SettlementStatusCompleted:
			summary.PaidAmount = row.Amount
			summary.PaidCount = row.Count
		}
	}

	summary.AboveMinimum = summary.PendingAmount >= summary.PayoutMinimum
	return summary, nil
}

// GetSponsorHealth reports each funding sponsor's derived balance against
// the configured alert thresholds, with their open pool inventory.
func (s *ReportingService) GetSponsorHealth() ([]SponsorHealth, error) {
	var sponsorIDs []uuid.UUID
	if err := s.db.Model(&models.LicensePool{}).
		Distinct("sponsor_user_id").Pluck("sponsor_user_id", &sponsorIDs).Error; err != nil {
		return nil, fmt.Errorf("failed to list sponsors: %w", err)
	}

	warning, critical := s.settingsService.SponsorAlertThresholds()

	health := make([]SponsorHealth, 0, len(sponsorIDs))
	for _, sponsorID := range sponsorIDs {
		balance, err := s.creditService.AvailableCredits(sponsorID)
		if err != nil {
			return nil, err
		}

		entry := SponsorHealth{SponsorUserID: sponsorID, Balance: balance, Status: "ok"}
		if balance < critical {
			entry.Status = "critical"
		} else if balance < warning {
			entry.Status = "warning"
		}

		row := s.db.Model(&models.LicensePool{}).
			Where("sponsor_user_id = ? AND is_active = ?", sponsorID, true).
			Select("COUNT(*), COALESCE(SUM(total_licenses - used_licenses), 0)").Row()
		if err := row.Scan(&entry.ActivePools, &entry.RemainingLicenses); err != nil {
			return nil, fmt.Errorf("failed to sum pools: %w", err)
		}

		health = append(health, entry)
	}

	return health, nil
}

func (s *ReportingService) GetVoucherOutcomes(from, to time.Time) (*VoucherOutcomeSummary, error) {
	summary := &VoucherOutcomeSummary{
		From: from,
		To:   to,
		CancellationsByTier: make(map[models.CancellationType]int64),
	}

	type statusCount struct {
		Status string
		Count  int64
	}
	var counts []statusCount
	if err := s.db.Model(&models.Voucher{}).
		Where("created_at >= ? AND created_at < ?", from, to).
		Select("status, COUNT(*) AS count").Group("status").Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("failed to count vouchers: %w", err)
	}

	for _, row := range counts {
		switch models.VoucherStatus(row.Status) {
		case models.VoucherStatusActive:
			summary.Active = row.Count
		case models.VoucherStatusRedeemed:
			summary.Redeemed = row.Count
		case models.VoucherStatusCancelled:
			summary.Cancelled = row.Count
		case models.VoucherStatusNoShow:
			summary.NoShow = row.Count
		case models.VoucherStatusExpired:
			summary.Expired = row.Count
		}
	}

	type tierCount struct {
		CancellationType string
		Count            int64
	}
	var tiers []tierCount
	if err := s.db.Model(&models.Voucher{}).
		Where("created_at >= ? AND created_at < ? AND status = ?", from, to, models.VoucherStatusCancelled).
		Select("cancellation_type, COUNT(*) AS count").Group("cancellation_type").Scan(&tiers).Error; err != nil {
		return nil, fmt.Errorf("failed to count cancellation tiers: %w", err)
	}
	for _, row := range tiers {
		summary.CancellationsByTier[models.CancellationType(row.CancellationType)] = row.Count
	}

	return summary, nil
}

// ExportPayoutStatement renders an expert's completed settlements for a
// window as CSV and archives it through the storage service.
func (s *ReportingService) ExportPayoutStatement(expertID uuid.UUID, from, to time.Time) (*StoredStatement, error) {
	var settlements []models.Settlement
	if err := s.db.
		Where("expert_id = ? AND settlement_status = ? AND processed_at >= ? AND processed_at < ?",
			expertID, models.SettlementStatusCompleted, from, to).
		Order("processed_at").Find(&settlements).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch settlements: %w", err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"settlement_id", "voucher_id", "type", "processed_at", "user_payment_huf", "sponsor_contribution_huf", "platform_fee_huf", "expert_payout_huf"}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write statement header: %w", err)
	}

	var total int64
	for i := range settlements {
		row := &settlements[i]
		processedAt := ""
		if row.ProcessedAt != nil {
			processedAt = row.ProcessedAt.Format(time.RFC3339)
		}
		record := []string{
			row.ID.String(),
			row.VoucherID.String(),
			string(row.SettlementType),
			processedAt,
			strconv.FormatInt(row.UserPayment, 10),
			strconv.FormatInt(row.SponsorContribution, 10),
			strconv.FormatInt(row.PlatformFee, 10),
			strconv.FormatInt(row.ExpertPayout, 10),
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write statement row: %w", err)
		}
		total += row.ExpertPayout
	}

	if err := w.Write([]string{"total", "", "", "", "", "", "", strconv.FormatInt(total, 10)}); err != nil {
		return nil, fmt.Errorf("failed to write statement total: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to render statement: %w", err)
	}

	key := fmt.Sprintf("payouts/%s/%s.csv", expertID, from.Format("2006-01"))
	stored, err := s.storageService.StoreStatement(key, buf.Bytes(), "text/csv")
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"expert_id": expertID,
		"key":       stored.Key,
		"rows":      len(settlements),
	}).Info("Payout statement exported")

	return stored, nil
}
