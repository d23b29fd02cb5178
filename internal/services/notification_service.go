// internal/services/notification_service.go
package services

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/wellpont/wellpont-backend/internal/models"
)

// NotificationService writes the admin-facing alert rows the settlement core
// raises. Delivery (email, push) is an external concern; the rows themselves
// are the admin surface queried by the dashboard.
type NotificationService struct {
	db *gorm.DB
}

func NewNotificationService(db *gorm.DB) *NotificationService {
	return &NotificationService{db: db}
}

func (s *NotificationService) create(n *models.AdminNotification) {
	if err := s.db.Create(n).Error; err != nil {
		logrus.WithError(err).WithField("type", n.Type).Error("Failed to create admin notification")
	}
}

// NotifyInsufficientCredit is raised when a sponsor debit was rejected
// because the derived balance would have gone negative. The member-facing
// outcome is the generic exhausted message; this row is the admin's funding
// alert.
func (s *NotificationService) NotifyInsufficientCredit(sponsorID, contentID uuid.UUID, required, available int64) {
	s.create(&models.AdminNotification{
		Type:     models.NotificationTypeInsufficientCredit,
		Title:    "Sponsor credit insufficient for admission",
		Message:  fmt.Sprintf("Sponsor %s could not cover %d HUF (available: %d HUF) for content %s", sponsorID, required, available, contentID),
		Priority: "high",
		RelatedResourceType: "sponsor",
		RelatedResourceID:   &sponsorID,
	})
}

func (s *NotificationService) NotifySponsorBalance(sponsorID uuid.UUID, balance, threshold int64, critical bool) {
	notificationType := models.NotificationTypeSponsorBalanceWarning
	priority := "medium"
	if critical {
		notificationType = models.NotificationTypeSponsorBalanceCritical
		priority = "high"
	}

	s.create(&models.AdminNotification{
		Type:     notificationType,
		Title:    "Sponsor credit balance low",
		Message:  fmt.Sprintf("Sponsor %s balance %d HUF is below the %d HUF threshold", sponsorID, balance, threshold),
		Priority: priority,
		RelatedResourceType: "sponsor",
		RelatedResourceID:   &sponsorID,
	})
}

// NotifyReconciliationMismatch fires when a settlement row fails the ledger
// equation. This is unreachable if the calculator is correct, so a row here
// means a code defect, not a user error.
func (s *NotificationService) NotifyReconciliationMismatch(settlementID uuid.UUID) {
	logrus.WithField("settlement_id", settlementID).Error("Settlement reconciliation mismatch")
	s.create(&models.AdminNotification{
		Type:     models.NotificationTypeReconciliationMismatch,
		Title:    "Settlement reconciliation mismatch",
		Message:  fmt.Sprintf("Settlement %s does not reconcile and was excluded from payout", settlementID),
		Priority: "high",
		RelatedResourceType: "settlement",
		RelatedResourceID:   &settlementID,
	})
}

func (s *NotificationService) NotifyPayoutBatch(expertID uuid.UUID, count int64, total int64) {
	s.create(&models.AdminNotification{
		Type:     models.NotificationTypePayoutBatch,
		Title:    "Expert payout batch completed",
		Message:  fmt.Sprintf("Marked %d settlements (%d HUF) as paid for expert %s", count, total, expertID),
		Priority: "low",
		RelatedResourceType: "expert",
		RelatedResourceID:   &expertID,
	})
}

func (s *NotificationService) ListUnread(limit int) ([]models.AdminNotification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var notifications []models.AdminNotification
	if err := s.db.Where("status = ?", "unread").
		Order("created_at DESC").Limit(limit).
		Find(&notifications).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch notifications: %w", err)
	}
	return notifications, nil
}
