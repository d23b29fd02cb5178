// internal/services/credit_service_test.go
package services

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/wellpont/wellpont-backend/internal/database"
	"github.com/wellpont/wellpont-backend/internal/models"
)

func TestGrantCreditsAndBalance(t *testing.T) {
	svc := newTestServices(t)
	sponsor := createTestUser(t, svc.db, models.UserTypeSponsor)

	balance, err := svc.credit.AvailableCredits(sponsor.ID)
	require.NoError(t, err)
	assert.Zero(t, balance)

	fundSponsor(t, svc, sponsor, 50000)
	fundSponsor(t, svc, sponsor, 25000)

	balance, err = svc.credit.AvailableCredits(sponsor.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(75000), balance)
}

func TestGrantCreditsRejectsDebitingTypes(t *testing.T) {
	svc := newTestServices(t)
	sponsor := createTestUser(t, svc.db, models.UserTypeSponsor)

	_, err := svc.credit.GrantCredits(&GrantCreditsRequest{
		SponsorUserID:   sponsor.ID,
		Credits:         1000,
		TransactionType: models.CreditTransactionTypeUsage,
	})
	assert.Error(t, err)
}

func TestDebitGuardsBalance(t *testing.T) {
	svc := newTestServices(t)
	sponsor := createTestUser(t, svc.db, models.UserTypeSponsor)
	fundSponsor(t, svc, sponsor, 20000)

	// A debit above the balance inserts nothing.
	err := database.WithTransaction(svc.db, func(tx *gorm.DB) error {
		_, err := svc.credit.DebitInTx(tx, sponsor.ID, 25000, models.CreditTransactionTypeUsage, nil, "over")
		return err
	})
	assert.ErrorIs(t, err, ErrInsufficientCredit)

	balance, err := svc.credit.AvailableCredits(sponsor.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(20000), balance)

	// Debiting down to exactly zero is allowed; going further is not.
	err = database.WithTransaction(svc.db, func(tx *gorm.DB) error {
		_, err := svc.credit.DebitInTx(tx, sponsor.ID, 20000, models.CreditTransactionTypeUsage, nil, "all")
		return err
	})
	require.NoError(t, err)

	balance, err = svc.credit.AvailableCredits(sponsor.ID)
	require.NoError(t, err)
	assert.Zero(t, balance)

	err = database.WithTransaction(svc.db, func(tx *gorm.DB) error {
		_, err := svc.credit.DebitInTx(tx, sponsor.ID, 1, models.CreditTransactionTypeUsage, nil, "one more")
		return err
	})
	assert.ErrorIs(t, err, ErrInsufficientCredit)
}

func TestRefundRestoresBalance(t *testing.T) {
	svc := newTestServices(t)
	sponsor := createTestUser(t, svc.db, models.UserTypeSponsor)
	fundSponsor(t, svc, sponsor, 30000)

	err := database.WithTransaction(svc.db, func(tx *gorm.DB) error {
		if _, err := svc.credit.DebitInTx(tx, sponsor.ID, 15000, models.CreditTransactionTypeUsage, nil, "admission"); err != nil {
			return err
		}
		_, err := svc.credit.RefundInTx(tx, sponsor.ID, 7500, nil, "partial refund")
		return err
	})
	require.NoError(t, err)

	balance, err := svc.credit.AvailableCredits(sponsor.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(22500), balance)
}

func TestConcurrentDebitsNeverGoNegative(t *testing.T) {
	svc := newTestServices(t)
	sponsor := createTestUser(t, svc.db, models.UserTypeSponsor)
	fundSponsor(t, svc, sponsor, 30000)

	const contenders = 5
	var wg sync.WaitGroup
	errs := make([]error, contenders)

	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = database.WithTransaction(svc.db, func(tx *gorm.DB) error {
				_, err := svc.credit.DebitInTx(tx, sponsor.ID, 10000, models.CreditTransactionTypeUsage, nil, "contended")
				return err
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for i := 0; i < contenders; i++ {
		if errs[i] == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, errs[i], ErrInsufficientCredit)
		}
	}
	assert.Equal(t, 3, succeeded)

	balance, err := svc.credit.AvailableCredits(sponsor.ID)
	require.NoError(t, err)
	assert.Zero(t, balance)
}

func TestBalanceAlerts(t *testing.T) {
	svc := newTestServices(t)
	sponsor := createTestUser(t, svc.db, models.UserTypeSponsor)
	fundSponsor(t, svc, sponsor, 40000)

	// 40000 is below the 50000 warning threshold but above critical.
	svc.credit.CheckBalanceAlerts(sponsor.ID)

	var notifications []models.AdminNotification
	require.NoError(t, svc.db.Where("type = ?", models.NotificationTypeSponsorBalanceWarning).Find(&notifications).Error)
	assert.Len(t, notifications, 1)

	err := database.WithTransaction(svc.db, func(tx *gorm.DB) error {
		_, err := svc.credit.DebitInTx(tx, sponsor.ID, 30000, models.CreditTransactionTypeUsage, nil, "drain")
		return err
	})
	require.NoError(t, err)

	// 10000 is below the 15000 critical threshold.
	svc.credit.CheckBalanceAlerts(sponsor.ID)

	require.NoError(t, svc.db.Where("type = ?", models.NotificationTypeSponsorBalanceCritical).Find(&notifications).Error)
	assert.Len(t, notifications, 1)
}

func TestGetLedger(t *testing.T) {
	svc := newTestServices(t)
	sponsor := createTestUser(t, svc.db, models.UserTypeSponsor)
	fundSponsor(t, svc, sponsor, 50000)

	err := database.WithTransaction(svc.db, func(tx *gorm.DB) error {
		_, err := svc.credit.DebitInTx(tx, sponsor.ID, 15000, models.CreditTransactionTypeUsage, nil, "admission")
		return err
	})
	require.NoError(t, err)

	entries, total, err := svc.credit.GetLedger(sponsor.ID, testPagination())
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, entries, 2)

	var sum int64
	for _, entry := range entries {
		sum += entry.Credits
	}
	assert.Equal(t, int64(35000), sum)
}
