// internal/services/settings_service_test.go
package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wellpont/wellpont-backend/internal/models"
)

func TestSettingsFallBackToConfig(t *testing.T) {
	svc := newTestServices(t)

	assert.Equal(t, int64(2000), svc.settings.PlatformFeeBps())
	assert.Equal(t, int64(5000), svc.settings.MediumRefundBps())
	assert.Equal(t, int64(0), svc.settings.LateCompensationBps())
	assert.Equal(t, int64(10000), svc.settings.PayoutMinimum())

	warning, critical := svc.settings.SponsorAlertThresholds()
	assert.Equal(t, int64(50000), warning)
	assert.Equal(t, int64(15000), critical)
	assert.Equal(t, 395.0, svc.settings.ExchangeRate())
}

func TestSettingsRowOverridesConfig(t *testing.T) {
	svc := newTestServices(t)

	require.NoError(t, svc.db.Create(&models.SystemSetting{
		Key:      models.SettingPlatformFeePercentage,
		Value:    models.JSONB{"value": 25.0},
		DataType: "number",
	}).Error)

	assert.Equal(t, int64(2500), svc.settings.PlatformFeeBps())
}

func TestUpdateSetting(t *testing.T) {
	svc := newTestServices(t)
	admin := createTestUser(t, svc.db, models.UserTypeAdmin)

	require.NoError(t, svc.db.Create(&models.SystemSetting{
		Key:      models.SettingMediumRefundPercentage,
		Value:    models.JSONB{"value": 50.0},
		DataType: "number",
	}).Error)

	setting, err := svc.settings.UpdateSetting(admin.ID, &UpdateSettingRequest{
		Key:   models.SettingMediumRefundPercentage,
		Value: 60.0,
	})
	require.NoError(t, err)
	assert.Equal(t, admin.ID, setting.UpdatedBy)

	assert.Equal(t, int64(6000), svc.settings.MediumRefundBps())

	_, err = svc.settings.UpdateSetting(admin.ID, &UpdateSettingRequest{Key: "nope", Value: 1})
	assert.Error(t, err)
}

// Changing the fee must not disturb settlements already written; the split
// is frozen into each row at creation.
func TestFeeChangeOnlyAffectsNewSettlements(t *testing.T) {
	svc := newTestServices(t)
	program, _, _ := sponsoredProgram(t, svc, 15000, 100000, 5, nil)

	first := createTestUser(t, svc.db, models.UserTypeMember)
	before, err := svc.admission.TryAdmit(program.ID, first.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), before.Settlement.PlatformFee)

	require.NoError(t, svc.db.Create(&models.SystemSetting{
		Key:      models.SettingPlatformFeePercentage,
		Value:    models.JSONB{"value": 10.0},
		DataType: "number",
	}).Error)

	second := createTestUser(t, svc.db, models.UserTypeMember)
	after, err := svc.admission.TryAdmit(program.ID, second.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), after.Settlement.PlatformFee)
	assert.Equal(t, int64(13500), after.Settlement.ExpertPayout)

	// The earlier row is untouched.
	var original models.Settlement
	require.NoError(t, svc.db.First(&original, "id = ?", before.Settlement.ID).Error)
	assert.Equal(t, int64(3000), original.PlatformFee)
}

// A medium cancellation after a fee change compensates from the original
// row's frozen amounts, so the ledger still nets exactly.
func TestCancellationUsesFrozenSplit(t *testing.T) {
	svc := newTestServices(t)
	event := time.Now().AddDate(0, 0, 14)
	voucher, sponsor := admitted(t, svc, &event)

	require.NoError(t, svc.db.Create(&models.SystemSetting{
		Key:      models.SettingPlatformFeePercentage,
		Value:    models.JSONB{"value": 30.0},
		DataType: "number",
	}).Error)

	result, err := svc.cancellation.RecordCancellation(voucher.ID, event.AddDate(0, 0, -10))
	require.NoError(t, err)

	// Refund matches what the sponsor was actually charged at 20%.
	assert.Equal(t, int64(15000), result.SponsorCreditRefund)
	assert.Equal(t, int64(12000), result.ExpertPayoutAdjustment)

	balance, err := svc.credit.AvailableCredits(sponsor.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100000), balance)
}
