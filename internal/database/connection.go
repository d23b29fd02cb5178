// internal/database/connection.go
package database

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/wellpont/wellpont-backend/internal/config"
	"github.com/wellpont/wellpont-backend/internal/models"
)

var DB *gorm.DB

func Initialize(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var err error
	var gormConfig *gorm.Config

	// Configure GORM logger
	if cfg.LogLevel == "silent" {
		gormConfig = &gorm.Config{
			Logger:         logger.Default.LogMode(logger.Silent),
			TranslateError: true,
		}
	} else {
		gormConfig = &gorm.Config{
			Logger:         logger.Default.LogMode(logger.Info),
			TranslateError: true,
		}
	}

	// Connect to database
	DB, err = gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB
	sqlDB, err := DB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.MaxLifetime) * time.Second)

	// Test connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Database connection established successfully")
	return DB, nil
}

func Close(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Printf("Error getting underlying sql.DB: %v", err)
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Printf("Error closing database connection: %v", err)
	} else {
		log.Println("Database connection closed successfully")
	}
}

func RunMigrations(db *gorm.DB) error {
	log.Println("Running database migrations...")

	// Run auto-migrations
	err := db.AutoMigrate(
		&models.User{},
		&models.Program{},
		&models.LicensePool{},
		&models.AccessGrant{},
		&models.Voucher{},
		&models.Settlement{},
		&models.CreditTransaction{},
		&models.SystemSetting{},
		&models.AdminNotification{},
		&models.AuditLog{},
	)

	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Create indexes
	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	log.Println("Database migrations completed successfully")
	return nil
}

func createIndexes(db *gorm.DB) error {
	indexes := []string{
		// User indexes
		"CREATE INDEX IF NOT EXISTS idx_users_type_status ON users(user_type, status)",

		// Program indexes
		"CREATE INDEX IF NOT EXISTS idx_programs_creator ON programs(creator_id)",
		"CREATE INDEX IF NOT EXISTS idx_programs_access_level ON programs(access_level, is_published)",
		"CREATE INDEX IF NOT EXISTS idx_programs_event_start ON programs(event_start)",

		// Voucher indexes
		"CREATE INDEX IF NOT EXISTS idx_vouchers_user_status ON vouchers(user_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_vouchers_content_status ON vouchers(content_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_vouchers_event_start ON vouchers(event_start) WHERE status = 'active'",

		// Settlement indexes
		"CREATE INDEX IF NOT EXISTS idx_settlements_expert_status ON settlements(expert_id, settlement_status)",
		"CREATE INDEX IF NOT EXISTS idx_settlements_sponsor ON settlements(sponsor_user_id)",
		"CREATE INDEX IF NOT EXISTS idx_settlements_created_at ON settlements(created_at DESC)",

		// Credit ledger indexes
		"CREATE INDEX IF NOT EXISTS idx_credit_transactions_sponsor_created ON credit_transactions(sponsor_user_id, created_at)",
		"CREATE INDEX IF NOT EXISTS idx_credit_transactions_type ON credit_transactions(transaction_type)",

		// Admin indexes
		"CREATE INDEX IF NOT EXISTS idx_admin_notifications_status ON admin_notifications(status, priority)",
		"CREATE INDEX IF NOT EXISTS idx_audit_logs_user_action ON audit_logs(user_id, action)",
		"CREATE INDEX IF NOT EXISTS idx_audit_logs_created ON audit_logs(created_at DESC)",
	}

	for _, index := range indexes {
		if err := db.Exec(index).Error; err != nil {
			log.Printf("Warning: Failed to create index: %s, Error: %v", index, err)
			// Continue with other indexes instead of failing completely
		}
	}

	return nil
}

// Seed initial data
func SeedInitialData(db *gorm.DB, cfg *config.Config) error {
	log.Println("Seeding initial data...")

	// Create default admin user
	var adminCount int64
	db.Model(&models.User{}).Where("user_type = ?", models.UserTypeAdmin).Count(&adminCount)

	if adminCount == 0 {
		admin := &models.User{
			Username: "admin",
			Email:    "admin@wellpont.hu",
			UserType: models.UserTypeAdmin,
			Status:   models.UserStatusActive,
			ProfileData: models.JSONB{
				"first_name": "System",
				"last_name":  "Administrator",
				"role":       "super_admin",
			},
		}

		if err := admin.SetPassword("admin123!@#"); err != nil {
			return fmt.Errorf("failed to set admin password: %w", err)
		}

		if err := db.Create(admin).Error; err != nil {
			return fmt.Errorf("failed to create admin user: %w", err)
		}

		log.Println("Default admin user created successfully")
	}

	// Default settlement settings; admins tune these at runtime
	defaultSettings := []models.SystemSetting{
		{
			Key:         models.SettingPlatformFeePercentage,
			Value:       models.JSONB{"value": cfg.Settlement.PlatformFeePercent},
			DataType:    "float",
			Description: "Platform fee percentage taken from gross revenue at settlement creation",
		},
		{
			Key:         models.SettingExchangeRate,
			Value:       models.JSONB{"value": cfg.Settlement.ExchangeRate},
			DataType:    "float",
			Description: "HUF per EUR rate used for display conversion only",
		},
		{
			Key:         models.SettingPayoutMinimumThreshold,
			Value:       models.JSONB{"value": cfg.Settlement.PayoutMinimum},
			DataType:    "integer",
			Description: "Minimum pending payout (HUF) before an expert batch is run",
		},
		{
			Key:         models.SettingSponsorWarningThreshold,
			Value:       models.JSONB{"value": cfg.Settlement.SponsorWarningThreshold},
			DataType:    "integer",
			Description: "Sponsor balance (HUF) below which a warning alert is raised",
		},
		{
			Key:         models.SettingSponsorCriticalThreshold,
			Value:       models.JSONB{"value": cfg.Settlement.SponsorCriticalThreshold},
			DataType:    "integer",
			Description: "Sponsor balance (HUF) below which a critical alert is raised",
		},
		{
			Key:         models.SettingMediumRefundPercentage,
			Value:       models.JSONB{"value": cfg.Settlement.MediumRefundPercent},
			DataType:    "float",
			Description: "Refund fraction applied to medium-tier cancellations (3-7 days before event)",
		},
		{
			Key:         models.SettingLateCompensationPercent,
			Value:       models.JSONB{"value": cfg.Settlement.LateCompensationPercent},
			DataType:    "float",
			Description: "Expert payout reduction applied to late cancellations (<3 days before event)",
		},
	}

	for _, setting := range defaultSettings {
		var count int64
		db.Model(&models.SystemSetting{}).Where("key = ?", setting.Key).Count(&count)

		if count == 0 {
			if err := db.Create(&setting).Error; err != nil {
				log.Printf("Warning: Failed to create setting %s: %v", setting.Key, err)
			}
		}
	}

	log.Println("Initial data seeding completed")
	return nil
}

// Transaction helper
func WithTransaction(db *gorm.DB, fn func(*gorm.DB) error) error {
	tx := db.Begin()
	if tx.Error != nil {
		return tx.Error
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}
