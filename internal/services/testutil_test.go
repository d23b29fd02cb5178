// internal/services/testutil_test.go
package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/wellpont/wellpont-backend/internal/config"
	"github.com/wellpont/wellpont-backend/internal/models"
	"github.com/wellpont/wellpont-backend/internal/utils"
)

// testServices bundles the wired service graph over one in-memory database.
type testServices struct {
	db           *gorm.DB
	settings     *SettingsService
	notification *NotificationService
	credit       *CreditService
	settlement   *SettlementService
	admission    *AdmissionService
	cancellation *CancellationService
	voucher      *VoucherService
}

func testConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		Settlement: config.SettlementConfig{
			PlatformFeePercent:       20.0,
			ExchangeRate:             395.0,
			PayoutMinimum:            10000,
			SponsorWarningThreshold:  50000,
			SponsorCriticalThreshold: 15000,
			MediumRefundPercent:      50.0,
			LateCompensationPercent:  0.0,
		},
	}
}

// setupTestDB opens an in-memory database capped at one connection so the
// concurrency tests exercise the conditional-update logic rather than the
// driver's locking behavior.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Program{},
		&models.LicensePool{},
		&models.CreditTransaction{},
		&models.AccessGrant{},
		&models.Voucher{},
		&models.Settlement{},
		&models.SystemSetting{},
		&models.AdminNotification{},
		&models.AuditLog{},
	))

	return db
}

func newTestServices(t *testing.T) *testServices {
	t.Helper()

	db := setupTestDB(t)
	cfg := testConfig()

	settings := NewSettingsService(db, cfg)
	notification := NewNotificationService(db)
	credit := NewCreditService(db, settings, notification)
	settlement := NewSettlementService(db, settings, notification)
	admission := NewAdmissionService(db, settings, credit, settlement, notification)
	cancellation := NewCancellationService(db, settings, credit, settlement)
	voucher := NewVoucherService(db)

	return &testServices{
		db:           db,
		settings:     settings,
		notification: notification,
		credit:       credit,
		settlement:   settlement,
		admission:    admission,
		cancellation: cancellation,
		voucher:      voucher,
	}
}

func testPagination() utils.PaginationParams {
	return utils.PaginationParams{Page: 1, Limit: 20, Sort: "created_at", Order: "desc"}
}

var testUserSeq int

func createTestUser(t *testing.T, db *gorm.DB, userType models.UserType) *models.User {
	t.Helper()

	testUserSeq++
	user := &models.User{
		Username:     fmt.Sprintf("%s-%d-%s", userType, testUserSeq, uuid.NewString()[:8]),
		Email:        fmt.Sprintf("%s-%d-%s@wellpont.test", userType, testUserSeq, uuid.NewString()[:8]),
		PasswordHash: "x",
		UserType:     userType,
		Status:       models.UserStatusActive,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createTestProgram(t *testing.T, db *gorm.DB, expert *models.User, price int64, accessLevel models.AccessLevel, eventStart *time.Time) *models.Program {
	t.Helper()

	program := &models.Program{
		CreatorID:   expert.ID,
		Title:       "Breathing workshop",
		Category:    "mindfulness",
		Price:       price,
		AccessLevel: accessLevel,
		EventStart:  eventStart,
		IsPublished: true,
	}
	require.NoError(t, db.Create(program).Error)
	return program
}

func fundSponsor(t *testing.T, svc *testServices, sponsor *models.User, amount int64) {
	t.Helper()

	_, err := svc.credit.GrantCredits(&GrantCreditsRequest{
		SponsorUserID:   sponsor.ID,
		Credits:         amount,
		TransactionType: models.CreditTransactionTypePurchase,
		Description:     "test funding",
	})
	require.NoError(t, err)
}

// sponsoredProgram builds the full fixture for admission tests: expert,
// sponsor with funded credits, program flipped to sponsored by its pool.
func sponsoredProgram(t *testing.T, svc *testServices, price, funding int64, licenses int, eventStart *time.Time) (*models.Program, *models.User, *models.User) {
	t.Helper()

	expert := createTestUser(t, svc.db, models.UserTypeExpert)
	sponsor := createTestUser(t, svc.db, models.UserTypeSponsor)
	program := createTestProgram(t, svc.db, expert, price, models.AccessLevelFree, eventStart)

	if funding > 0 {
		fundSponsor(t, svc, sponsor, funding)
	}

	_, err := svc.admission.CreateLicensePool(&CreateLicensePoolRequest{
		ContentID:     program.ID,
		SponsorUserID: sponsor.ID,
		TotalLicenses: licenses,
	})
	require.NoError(t, err)

	require.NoError(t, svc.db.First(program, "id = ?", program.ID).Error)
	return program, sponsor, expert
}
