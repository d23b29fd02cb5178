// internal/services/voucher_service_test.go
package services

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wellpont/wellpont-backend/internal/models"
)

func TestRedeemVoucher(t *testing.T) {
	svc := newTestServices(t)
	event := time.Now().AddDate(0, 0, 7)
	program, _, expert := sponsoredProgram(t, svc, 15000, 100000, 5, &event)
	member := createTestUser(t, svc.db, models.UserTypeMember)

	result, err := svc.admission.TryAdmit(program.ID, member.ID)
	require.NoError(t, err)

	redeemed, err := svc.voucher.Redeem(&RedeemVoucherRequest{Code: result.Voucher.Code}, expert.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VoucherStatusRedeemed, redeemed.Status)
	require.NotNil(t, redeemed.RedeemedAt)

	// Check-in is one-shot.
	_, err = svc.voucher.Redeem(&RedeemVoucherRequest{Code: result.Voucher.Code}, expert.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRedeemVoucherNormalizesCode(t *testing.T) {
	svc := newTestServices(t)
	program, _, expert := sponsoredProgram(t, svc, 15000, 100000, 5, nil)
	member := createTestUser(t, svc.db, models.UserTypeMember)

	result, err := svc.admission.TryAdmit(program.ID, member.ID)
	require.NoError(t, err)

	scanned := "  " + strings.ToLower(result.Voucher.Code) + " "
	redeemed, err := svc.voucher.Redeem(&RedeemVoucherRequest{Code: scanned}, expert.ID)
	require.NoError(t, err)
	assert.Equal(t, result.Voucher.ID, redeemed.ID)
}

func TestRedeemVoucherWrongExpert(t *testing.T) {
	svc := newTestServices(t)
	program, _, _ := sponsoredProgram(t, svc, 15000, 100000, 5, nil)
	member := createTestUser(t, svc.db, models.UserTypeMember)
	otherExpert := createTestUser(t, svc.db, models.UserTypeExpert)

	result, err := svc.admission.TryAdmit(program.ID, member.ID)
	require.NoError(t, err)

	_, err = svc.voucher.Redeem(&RedeemVoucherRequest{Code: result.Voucher.Code}, otherExpert.ID)
	assert.Error(t, err)

	var voucher models.Voucher
	require.NoError(t, svc.db.First(&voucher, "id = ?", result.Voucher.ID).Error)
	assert.Equal(t, models.VoucherStatusActive, voucher.Status)
}

func TestRedeemCancelledVoucher(t *testing.T) {
	svc := newTestServices(t)
	event := time.Now().AddDate(0, 0, 14)
	program, _, expert := sponsoredProgram(t, svc, 15000, 100000, 5, &event)
	member := createTestUser(t, svc.db, models.UserTypeMember)

	result, err := svc.admission.TryAdmit(program.ID, member.ID)
	require.NoError(t, err)

	_, err = svc.cancellation.RecordCancellation(result.Voucher.ID, time.Now())
	require.NoError(t, err)

	_, err = svc.voucher.Redeem(&RedeemVoucherRequest{Code: result.Voucher.Code}, expert.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRedeemExpiredEvergreenVoucher(t *testing.T) {
	svc := newTestServices(t)
	program, _, expert := sponsoredProgram(t, svc, 15000, 100000, 5, nil)
	member := createTestUser(t, svc.db, models.UserTypeMember)

	result, err := svc.admission.TryAdmit(program.ID, member.ID)
	require.NoError(t, err)

	// Past expiry but not yet swept.
	require.NoError(t, svc.db.Model(&models.Voucher{}).
		Where("id = ?", result.Voucher.ID).
		Update("expires_at", time.Now().Add(-time.Hour)).Error)

	_, err = svc.voucher.Redeem(&RedeemVoucherRequest{Code: result.Voucher.Code}, expert.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestGetUserVouchers(t *testing.T) {
	svc := newTestServices(t)
	program, _, _ := sponsoredProgram(t, svc, 15000, 100000, 5, nil)
	member := createTestUser(t, svc.db, models.UserTypeMember)
	other := createTestUser(t, svc.db, models.UserTypeMember)

	_, err := svc.admission.TryAdmit(program.ID, member.ID)
	require.NoError(t, err)
	_, err = svc.admission.TryAdmit(program.ID, other.ID)
	require.NoError(t, err)

	vouchers, total, err := svc.voucher.GetUserVouchers(member.ID, nil, testPagination())
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, vouchers, 1)
	assert.Equal(t, member.ID, vouchers[0].UserID)

	active := models.VoucherStatusActive
	_, total, err = svc.voucher.GetUserVouchers(member.ID, &active, testPagination())
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	cancelled := models.VoucherStatusCancelled
	_, total, err = svc.voucher.GetUserVouchers(member.ID, &cancelled, testPagination())
	require.NoError(t, err)
	assert.Zero(t, total)
}
