// internal/services/settings_service.go
package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wellpont/wellpont-backend/internal/config"
	"github.com/wellpont/wellpont-backend/internal/models"
)

// SettingsService reads singleton-per-key runtime configuration. The
// settlement core treats every value here as variable input: the fee
// percentage is read fresh at each settlement creation (and frozen into the
// row), the refund fractions at each cancellation.
type SettingsService struct {
	db     *gorm.DB
	config *config.Config
}

type UpdateSettingRequest struct {
	Key   string      `json:"key" validate:"required"`
	Value interface{} `json:"value" validate:"required"`
}

func NewSettingsService(db *gorm.DB, config *config.Config) *SettingsService {
	return &SettingsService{
		db:     db,
		config: config,
	}
}

func (s *SettingsService) getFloat(key string, fallback float64) float64 {
	var setting models.SystemSetting
	if err := s.db.Where("key = ?", key).First(&setting).Error; err != nil {
		return fallback
	}

	if raw, ok := setting.Value["value"]; ok {
		switch v := raw.(type) {
		case float64:
			return v
		case int64:
			return float64(v)
		}
	}
	return fallback
}

// PlatformFeeBps is the platform fee in basis points, looked up at
// settlement creation time.
func (s *SettingsService) PlatformFeeBps() int64 {
	return PercentToBasisPoints(s.getFloat(models.SettingPlatformFeePercentage, s.config.Settlement.PlatformFeePercent))
}

// MediumRefundBps is the partial-refund fraction for medium-tier
// cancellations, in basis points. Policy input, never hard-coded.
func (s *SettingsService) MediumRefundBps() int64 {
	return PercentToBasisPoints(s.getFloat(models.SettingMediumRefundPercentage, s.config.Settlement.MediumRefundPercent))
}

// LateCompensationBps is the expert-payout clawback fraction for late
// cancellations, in basis points.
func (s *SettingsService) LateCompensationBps() int64 {
	return PercentToBasisPoints(s.getFloat(models.SettingLateCompensationPercent, s.config.Settlement.LateCompensationPercent))
}

func (s *SettingsService) PayoutMinimum() int64 {
	return int64(s.getFloat(models.SettingPayoutMinimumThreshold, float64(s.config.Settlement.PayoutMinimum)))
}

func (s *SettingsService) SponsorAlertThresholds() (warning, critical int64) {
	warning = int64(s.getFloat(models.SettingSponsorWarningThreshold, float64(s.config.Settlement.SponsorWarningThreshold)))
	critical = int64(s.getFloat(models.SettingSponsorCriticalThreshold, float64(s.config.Settlement.SponsorCriticalThreshold)))
	return warning, critical
}

func (s *SettingsService) ExchangeRate() float64 {
	return s.getFloat(models.SettingExchangeRate, s.config.Settlement.ExchangeRate)
}

func (s *SettingsService) GetSettings() ([]models.SystemSetting, error) {
	var settings []models.SystemSetting
	if err := s.db.Order("key").Find(&settings).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch settings: %w", err)
	}
	return settings, nil
}

func (s *SettingsService) UpdateSetting(adminID uuid.UUID, req *UpdateSettingRequest) (*models.SystemSetting, error) {
	var setting models.SystemSetting
	if err := s.db.Where("key = ?", req.Key).First(&setting).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("unknown setting key")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	setting.Value = models.JSONB{"value": req.Value}
	setting.UpdatedBy = adminID

	if err := s.db.Save(&setting).Error; err != nil {
		return nil, fmt.Errorf("failed to update setting: %w", err)
	}

	return &setting, nil
}
