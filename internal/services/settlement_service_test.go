// internal/services/settlement_service_test.go
package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wellpont/wellpont-backend/internal/models"
)

func TestMarkSettlementsPaid(t *testing.T) {
	svc := newTestServices(t)
	expert := createTestUser(t, svc.db, models.UserTypeExpert)
	sponsor := createTestUser(t, svc.db, models.UserTypeSponsor)
	fundSponsor(t, svc, sponsor, 100000)

	// Two admissions on the same expert across two programs.
	for i := 0; i < 2; i++ {
		program := createTestProgram(t, svc.db, expert, 15000, models.AccessLevelFree, nil)
		_, err := svc.admission.CreateLicensePool(&CreateLicensePoolRequest{
			ContentID:     program.ID,
			SponsorUserID: sponsor.ID,
			TotalLicenses: 5,
		})
		require.NoError(t, err)

		member := createTestUser(t, svc.db, models.UserTypeMember)
		result, err := svc.admission.TryAdmit(program.ID, member.ID)
		require.NoError(t, err)
		require.Equal(t, AdmissionGranted, result.Status)
	}

	batch, err := svc.settlement.MarkSettlementsPaid(expert.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), batch.Count)
	assert.Equal(t, int64(24000), batch.Total)
	assert.Zero(t, batch.Mismatched)

	var completed []models.Settlement
	require.NoError(t, svc.db.Where("expert_id = ? AND settlement_status = ?",
		expert.ID, models.SettlementStatusCompleted).Find(&completed).Error)
	require.Len(t, completed, 2)
	for _, row := range completed {
		assert.NotNil(t, row.ProcessedAt)
	}

	// Nothing pending means the next batch is below any positive minimum.
	_, err = svc.settlement.MarkSettlementsPaid(expert.ID)
	assert.ErrorIs(t, err, ErrBelowPayoutMinimum)
}

func TestMarkSettlementsPaidBelowMinimum(t *testing.T) {
	svc := newTestServices(t)
	// 5000 gross -> 4000 payout, under the 10000 HUF minimum.
	program, _, expert := sponsoredProgram(t, svc, 5000, 100000, 5, nil)
	member := createTestUser(t, svc.db, models.UserTypeMember)

	_, err := svc.admission.TryAdmit(program.ID, member.ID)
	require.NoError(t, err)

	_, err = svc.settlement.MarkSettlementsPaid(expert.ID)
	assert.ErrorIs(t, err, ErrBelowPayoutMinimum)

	var pending int64
	require.NoError(t, svc.db.Model(&models.Settlement{}).
		Where("expert_id = ? AND settlement_status = ?", expert.ID, models.SettlementStatusPending).
		Count(&pending).Error)
	assert.Equal(t, int64(1), pending)
}

func TestMarkSettlementsPaidSkipsMismatchedRows(t *testing.T) {
	svc := newTestServices(t)
	program, _, expert := sponsoredProgram(t, svc, 15000, 100000, 5, nil)
	member := createTestUser(t, svc.db, models.UserTypeMember)

	result, err := svc.admission.TryAdmit(program.ID, member.ID)
	require.NoError(t, err)

	// Corrupt a copy of the row the way a code defect would: amounts that
	// break the ledger equation. The batch must route around it.
	bad := models.Settlement{
		VoucherID:           result.Voucher.ID,
		SettlementType:      models.SettlementTypeCancellation,
		ContentID:           program.ID,
		UserID:              member.ID,
		ExpertID:            expert.ID,
		SponsorContribution: 1000,
		PlatformFee:         900,
		ExpertPayout:        9000,
		SponsorCreditAction: models.SponsorCreditActionNone,
		SettlementStatus:    models.SettlementStatusPending,
	}
	require.NoError(t, svc.db.Create(&bad).Error)

	batch, err := svc.settlement.MarkSettlementsPaid(expert.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), batch.Count)
	assert.Equal(t, int64(1), batch.Mismatched)

	var status models.Settlement
	require.NoError(t, svc.db.First(&status, "id = ?", bad.ID).Error)
	assert.Equal(t, models.SettlementStatusPending, status.SettlementStatus)

	var notifications []models.AdminNotification
	require.NoError(t, svc.db.Where("type = ?", models.NotificationTypeReconciliationMismatch).
		Find(&notifications).Error)
	assert.Len(t, notifications, 1)
}

func TestCreatePendingInTxRejectsMismatch(t *testing.T) {
	svc := newTestServices(t)
	expert := createTestUser(t, svc.db, models.UserTypeExpert)
	program := createTestProgram(t, svc.db, expert, 15000, models.AccessLevelSponsored, nil)
	voucher := &models.Voucher{BaseModel: models.BaseModel{ID: uuid.New()}, UserID: uuid.New()}

	badSplit := SettlementSplit{SponsorContribution: 15000, PlatformFee: 3000, ExpertPayout: 11999}
	_, err := svc.settlement.CreatePendingInTx(svc.db, voucher, program, badSplit, nil)
	assert.ErrorIs(t, err, ErrReconciliationMismatch)
}

func TestRecordPurchaseSettlement(t *testing.T) {
	svc := newTestServices(t)
	expert := createTestUser(t, svc.db, models.UserTypeExpert)
	program := createTestProgram(t, svc.db, expert, 10000, models.AccessLevelOneTimePurchase, nil)
	member := createTestUser(t, svc.db, models.UserTypeMember)

	settlement, err := svc.settlement.RecordPurchaseSettlement(&PurchaseSettlementRequest{
		UserID:             member.ID,
		ContentID:          program.ID,
		GrossPrice:         10000,
		WellPointsDiscount: 2000,
		PaymentReference:   "pi_test_123",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(8000), settlement.UserPayment)
	assert.Equal(t, int64(1600), settlement.PlatformFee)
	assert.Equal(t, int64(6400), settlement.ExpertPayout)
	assert.Equal(t, int64(2000), settlement.WellPointsDiscount)
	assert.Nil(t, settlement.SponsorUserID)
	assert.True(t, settlement.Reconciles())

	var voucher models.Voucher
	require.NoError(t, svc.db.First(&voucher, "id = ?", settlement.VoucherID).Error)
	assert.Equal(t, "pi_test_123", voucher.PaymentReference)
	assert.Equal(t, int64(6400), voucher.PayoutAmount)
	require.NotNil(t, voucher.ExpiresAt)
	assert.True(t, voucher.ExpiresAt.After(time.Now().AddDate(0, 0, 89)))

	var grant models.AccessGrant
	require.NoError(t, svc.db.First(&grant, "user_id = ? AND content_id = ?", member.ID, program.ID).Error)
	assert.Equal(t, models.AccessTypePurchased, grant.AccessType)
	assert.Equal(t, int64(8000), grant.AmountPaid)

	// A second confirmation of the same purchase cannot double-book.
	_, err = svc.settlement.RecordPurchaseSettlement(&PurchaseSettlementRequest{
		UserID:           member.ID,
		ContentID:        program.ID,
		GrossPrice:       10000,
		PaymentReference: "pi_test_123",
	})
	assert.ErrorIs(t, err, ErrAlreadyGranted)
}

func TestSearchSettlements(t *testing.T) {
	svc := newTestServices(t)
	program, _, expert := sponsoredProgram(t, svc, 15000, 100000, 5, nil)
	member := createTestUser(t, svc.db, models.UserTypeMember)

	_, err := svc.admission.TryAdmit(program.ID, member.ID)
	require.NoError(t, err)

	pending := models.SettlementStatusPending
	rows, total, err := svc.settlement.SearchSettlements(&expert.ID, &pending, testPagination())
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, rows, 1)
	assert.Equal(t, expert.ID, rows[0].ExpertID)

	other := uuid.New()
	_, total, err = svc.settlement.SearchSettlements(&other, nil, testPagination())
	require.NoError(t, err)
	assert.Zero(t, total)
}
