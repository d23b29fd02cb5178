// internal/services/admission_service_test.go
package services

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wellpont/wellpont-backend/internal/models"
)

func TestTryAdmitGranted(t *testing.T) {
	svc := newTestServices(t)
	eventStart := time.Now().AddDate(0, 0, 14)
	program, sponsor, expert := sponsoredProgram(t, svc, 15000, 100000, 3, &eventStart)
	member := createTestUser(t, svc.db, models.UserTypeMember)

	result, err := svc.admission.TryAdmit(program.ID, member.ID)
	require.NoError(t, err)
	require.Equal(t, AdmissionGranted, result.Status)
	require.NotNil(t, result.Grant)
	require.NotNil(t, result.Voucher)
	require.NotNil(t, result.Settlement)

	assert.Equal(t, models.AccessTypeSponsored, result.Grant.AccessType)
	assert.Equal(t, models.VoucherStatusActive, result.Voucher.Status)
	require.NotNil(t, result.Voucher.EventStart)
	assert.Equal(t, int64(12000), result.Voucher.PayoutAmount)

	assert.Equal(t, int64(15000), result.Settlement.SponsorContribution)
	assert.Equal(t, int64(3000), result.Settlement.PlatformFee)
	assert.Equal(t, int64(12000), result.Settlement.ExpertPayout)
	assert.Equal(t, expert.ID, result.Settlement.ExpertID)
	assert.True(t, result.Settlement.Reconciles())
	assert.Equal(t, models.SettlementStatusPending, result.Settlement.SettlementStatus)

	var pool models.LicensePool
	require.NoError(t, svc.db.First(&pool, "content_id = ?", program.ID).Error)
	assert.Equal(t, 1, pool.UsedLicenses)

	balance, err := svc.credit.AvailableCredits(sponsor.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(85000), balance)
}

func TestTryAdmitIdempotent(t *testing.T) {
	svc := newTestServices(t)
	program, sponsor, _ := sponsoredProgram(t, svc, 15000, 100000, 3, nil)
	member := createTestUser(t, svc.db, models.UserTypeMember)

	first, err := svc.admission.TryAdmit(program.ID, member.ID)
	require.NoError(t, err)
	require.Equal(t, AdmissionGranted, first.Status)

	second, err := svc.admission.TryAdmit(program.ID, member.ID)
	require.NoError(t, err)
	assert.Equal(t, AdmissionAlreadyGranted, second.Status)
	require.NotNil(t, second.Grant)
	assert.Equal(t, first.Grant.ID, second.Grant.ID)

	// No second debit, no second license consumed.
	var pool models.LicensePool
	require.NoError(t, svc.db.First(&pool, "content_id = ?", program.ID).Error)
	assert.Equal(t, 1, pool.UsedLicenses)

	balance, err := svc.credit.AvailableCredits(sponsor.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(85000), balance)

	var settlements int64
	require.NoError(t, svc.db.Model(&models.Settlement{}).Count(&settlements).Error)
	assert.Equal(t, int64(1), settlements)
}

func TestTryAdmitExhausted(t *testing.T) {
	svc := newTestServices(t)
	program, _, _ := sponsoredProgram(t, svc, 15000, 100000, 1, nil)
	first := createTestUser(t, svc.db, models.UserTypeMember)
	second := createTestUser(t, svc.db, models.UserTypeMember)

	result, err := svc.admission.TryAdmit(program.ID, first.ID)
	require.NoError(t, err)
	require.Equal(t, AdmissionGranted, result.Status)

	result, err = svc.admission.TryAdmit(program.ID, second.ID)
	require.NoError(t, err)
	assert.Equal(t, AdmissionExhausted, result.Status)
	assert.Nil(t, result.Voucher)

	// Exhaustion consumes nothing.
	var grants int64
	require.NoError(t, svc.db.Model(&models.AccessGrant{}).Count(&grants).Error)
	assert.Equal(t, int64(1), grants)
}

func TestTryAdmitNotSponsored(t *testing.T) {
	svc := newTestServices(t)
	expert := createTestUser(t, svc.db, models.UserTypeExpert)
	program := createTestProgram(t, svc.db, expert, 15000, models.AccessLevelPremium, nil)
	member := createTestUser(t, svc.db, models.UserTypeMember)

	result, err := svc.admission.TryAdmit(program.ID, member.ID)
	require.NoError(t, err)
	assert.Equal(t, AdmissionNotSponsored, result.Status)
}

func TestTryAdmitInactivePool(t *testing.T) {
	svc := newTestServices(t)
	program, _, _ := sponsoredProgram(t, svc, 15000, 100000, 3, nil)
	member := createTestUser(t, svc.db, models.UserTypeMember)

	require.NoError(t, svc.admission.DeactivateLicensePool(program.ID))

	_, err := svc.admission.TryAdmit(program.ID, member.ID)
	assert.ErrorIs(t, err, ErrPoolInactive)
}

func TestTryAdmitInsufficientCredit(t *testing.T) {
	svc := newTestServices(t)
	// 10000 HUF of funding cannot cover a 15000 HUF admission.
	program, sponsor, _ := sponsoredProgram(t, svc, 15000, 10000, 3, nil)
	member := createTestUser(t, svc.db, models.UserTypeMember)

	result, err := svc.admission.TryAdmit(program.ID, member.ID)
	require.NoError(t, err)
	assert.Equal(t, AdmissionExhausted, result.Status)

	// The whole unit rolled back: no grant, no license consumed, no
	// settlement, balance untouched.
	var grants, settlements int64
	require.NoError(t, svc.db.Model(&models.AccessGrant{}).Count(&grants).Error)
	require.NoError(t, svc.db.Model(&models.Settlement{}).Count(&settlements).Error)
	assert.Zero(t, grants)
	assert.Zero(t, settlements)

	var pool models.LicensePool
	require.NoError(t, svc.db.First(&pool, "content_id = ?", program.ID).Error)
	assert.Zero(t, pool.UsedLicenses)

	balance, err := svc.credit.AvailableCredits(sponsor.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), balance)

	// The funding gap surfaces to admins, not to the member.
	var notifications []models.AdminNotification
	require.NoError(t, svc.db.Where("type = ?", models.NotificationTypeInsufficientCredit).Find(&notifications).Error)
	assert.Len(t, notifications, 1)
}

func TestTryAdmitConcurrentNeverOverAdmits(t *testing.T) {
	svc := newTestServices(t)
	const licenses = 3
	const contenders = 8
	program, sponsor, _ := sponsoredProgram(t, svc, 10000, 1000000, licenses, nil)

	members := make([]uuid.UUID, contenders)
	for i := range members {
		members[i] = createTestUser(t, svc.db, models.UserTypeMember).ID
	}

	var wg sync.WaitGroup
	results := make([]AdmissionStatus, contenders)
	errs := make([]error, contenders)

	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := svc.admission.TryAdmit(program.ID, members[i])
			errs[i] = err
			if result != nil {
				results[i] = result.Status
			}
		}(i)
	}
	wg.Wait()

	granted := 0
	for i := 0; i < contenders; i++ {
		require.NoError(t, errs[i])
		if results[i] == AdmissionGranted {
			granted++
		} else {
			assert.Equal(t, AdmissionExhausted, results[i])
		}
	}
	assert.Equal(t, licenses, granted)

	var pool models.LicensePool
	require.NoError(t, svc.db.First(&pool, "content_id = ?", program.ID).Error)
	assert.Equal(t, licenses, pool.UsedLicenses)

	var grants int64
	require.NoError(t, svc.db.Model(&models.AccessGrant{}).Count(&grants).Error)
	assert.Equal(t, int64(licenses), grants)

	// Each grant debited exactly one license price.
	balance, err := svc.credit.AvailableCredits(sponsor.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000000-licenses*10000), balance)
}

func TestGetAccess(t *testing.T) {
	svc := newTestServices(t)
	program, _, _ := sponsoredProgram(t, svc, 15000, 100000, 3, nil)
	member := createTestUser(t, svc.db, models.UserTypeMember)
	other := createTestUser(t, svc.db, models.UserTypeMember)

	decision, err := svc.admission.GetAccess(member.ID, program.ID)
	require.NoError(t, err)
	assert.False(t, decision.HasAccess)
	assert.Equal(t, "admission_required", decision.Reason)

	_, err = svc.admission.TryAdmit(program.ID, member.ID)
	require.NoError(t, err)

	decision, err = svc.admission.GetAccess(member.ID, program.ID)
	require.NoError(t, err)
	assert.True(t, decision.HasAccess)
	assert.Equal(t, "access_grant", decision.Reason)

	// A grant is personal.
	decision, err = svc.admission.GetAccess(other.ID, program.ID)
	require.NoError(t, err)
	assert.False(t, decision.HasAccess)
}

func TestGetAccessFreeProgram(t *testing.T) {
	svc := newTestServices(t)
	expert := createTestUser(t, svc.db, models.UserTypeExpert)
	program := createTestProgram(t, svc.db, expert, 0, models.AccessLevelFree, nil)
	member := createTestUser(t, svc.db, models.UserTypeMember)

	decision, err := svc.admission.GetAccess(member.ID, program.ID)
	require.NoError(t, err)
	assert.True(t, decision.HasAccess)
	assert.Equal(t, "free", decision.Reason)
}

func TestCreateLicensePoolFlipsAccessLevel(t *testing.T) {
	svc := newTestServices(t)
	expert := createTestUser(t, svc.db, models.UserTypeExpert)
	sponsor := createTestUser(t, svc.db, models.UserTypeSponsor)
	program := createTestProgram(t, svc.db, expert, 15000, models.AccessLevelOneTimePurchase, nil)

	pool, err := svc.admission.CreateLicensePool(&CreateLicensePoolRequest{
		ContentID:     program.ID,
		SponsorUserID: sponsor.ID,
		TotalLicenses: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, 10, pool.Remaining())

	require.NoError(t, svc.db.First(program, "id = ?", program.ID).Error)
	assert.Equal(t, models.AccessLevelSponsored, program.AccessLevel)

	// One pool per content.
	_, err = svc.admission.CreateLicensePool(&CreateLicensePoolRequest{
		ContentID:     program.ID,
		SponsorUserID: sponsor.ID,
		TotalLicenses: 5,
	})
	assert.Error(t, err)
}
