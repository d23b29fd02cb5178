// internal/services/payment_service.go
package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"
	"github.com/stripe/stripe-go/v74/webhook"
	"gorm.io/gorm"

	"github.com/wellpont/wellpont-backend/internal/config"
	"github.com/wellpont/wellpont-backend/internal/models"
	"github.com/wellpont/wellpont-backend/internal/utils"
)

// PaymentService is the Stripe boundary for one_time_purchase programs.
// Stripe holds the card flow; once an intent succeeds, the settlement core
// books the purchase, and a refund event from Stripe is relayed into the
// cancellation policy rather than mutating the ledger directly.
type PaymentService struct {
	db                  *gorm.DB
	config              *config.Config
	settlementService   *SettlementService
	cancellationService *CancellationService
}

type CreatePurchaseIntentRequest struct {
	ContentID          uuid.UUID `json:"content_id" validate:"required"`
	WellPointsDiscount int64     `json:"wellpoints_discount" validate:"min=0"`
}

type PurchaseIntentResponse struct {
	ClientSecret string `json:"client_secret"`
	PaymentID    string `json:"payment_id"`
	Amount       int64  `json:"amount"`
	Status       string `json:"status"`
}

type ConfirmPurchaseRequest struct {
	PaymentIntentID string `json:"payment_intent_id" validate:"required"`
}

func NewPaymentService(db *gorm.DB, cfg *config.Config, settlementService *SettlementService, cancellationService *CancellationService) *PaymentService {
	stripe.Key = cfg.Payment.StripeSecretKey

	return &PaymentService{
		db:                  db,
		config:              cfg,
		settlementService:   settlementService,
		cancellationService: cancellationService,
	}
}

// CreatePurchaseIntent opens a Stripe intent for a one_time_purchase
// program. Prices are whole HUF; Stripe wants fillér, hence the x100. The
// booking metadata rides on the intent so confirmation can rebuild the
// purchase without a staging table.
func (s *PaymentService) CreatePurchaseIntent(userID uuid.UUID, req *CreatePurchaseIntentRequest) (*PurchaseIntentResponse, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	var program models.Program
	if err := s.db.First(&program, "id = ? AND is_published = ?", req.ContentID, true).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("content not found")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	if program.AccessLevel != models.AccessLevelOneTimePurchase {
		return nil, errors.New("content is not sold as a one-time purchase")
	}

	discount := req.WellPointsDiscount
	if discount > program.Price {
		discount = program.Price
	}
	chargeAmount := program.Price - discount
	if chargeAmount <= 0 {
		return nil, errors.New("charge amount must be positive; use the free access path")
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(chargeAmount * 100),
		Currency: stripe.String("huf"),
	}
	params.AddMetadata("user_id", userID.String())
	params.AddMetadata("content_id", program.ID.String())
	params.AddMetadata("gross_price", fmt.Sprintf("%d", program.Price))
	params.AddMetadata("wellpoints_discount", fmt.Sprintf("%d", discount))

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"payment_id": pi.ID,
		"user_id":    userID,
		"content_id": program.ID,
		"amount":     chargeAmount,
	}).Info("Purchase intent created")

	return &PurchaseIntentResponse{
		ClientSecret: pi.ClientSecret,
		PaymentID:    pi.ID,
		Amount:       chargeAmount,
		Status:       string(pi.Status),
	}, nil
}

// ConfirmPurchase verifies the intent succeeded on Stripe's side and books
// the purchase. Re-confirming an already-booked intent fails on the access
// grant's uniqueness, so double submission cannot double-book.
func (s *PaymentService) ConfirmPurchase(req *ConfirmPurchaseRequest) (*models.Settlement, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	pi, err := paymentintent.Get(req.PaymentIntentID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment intent: %w", err)
	}
	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return nil, fmt.Errorf("payment not completed, status: %s", pi.Status)
	}

	return s.bookFromIntent(pi)
}

func (s *PaymentService) bookFromIntent(pi *stripe.PaymentIntent) (*models.Settlement, error) {
	userID, err := uuid.Parse(pi.Metadata["user_id"])
	if err != nil {
		return nil, fmt.Errorf("payment intent has invalid user metadata: %w", err)
	}
	contentID, err := uuid.Parse(pi.Metadata["content_id"])
	if err != nil {
		return nil, fmt.Errorf("payment intent has invalid content metadata: %w", err)
	}

	var grossPrice, discount int64
	fmt.Sscanf(pi.Metadata["gross_price"], "%d", &grossPrice)
	fmt.Sscanf(pi.Metadata["wellpoints_discount"], "%d", &discount)

	return s.settlementService.RecordPurchaseSettlement(&PurchaseSettlementRequest{
		UserID:             userID,
		ContentID:          contentID,
		GrossPrice:         grossPrice,
		WellPointsDiscount: discount,
		PaymentReference:   pi.ID,
	})
}

// HandleWebhook verifies the Stripe signature and dispatches the events the
// ledger cares about. A refund issued from the Stripe dashboard lands here
// and is translated into a cancellation, so external refunds still produce
// compensating rows instead of silently diverging from the ledger.
func (s *PaymentService) HandleWebhook(payload []byte, signature string) error {
	event, err := webhook.ConstructEvent(payload, signature, s.config.Payment.StripeWebhookSecret)
	if err != nil {
		return fmt.Errorf("webhook signature verification failed: %w", err)
	}

	switch event.Type {
	case "payment_intent.succeeded":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return fmt.Errorf("failed to parse payment intent event: %w", err)
		}
		if _, err := s.bookFromIntent(&pi); err != nil {
			if errors.Is(err, ErrAlreadyGranted) {
				return nil
			}
			return err
		}
		return nil

	case "charge.refunded":
		var charge stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
			return fmt.Errorf("failed to parse charge event: %w", err)
		}
		if charge.PaymentIntent == nil {
			return nil
		}
		return s.HandleRefundEvent(charge.PaymentIntent.ID)

	default:
		logrus.WithField("type", event.Type).Debug("Ignoring webhook event")
		return nil
	}
}

// HandleRefundEvent maps a processor-side refund back to the voucher it
// paid for and runs it through the cancellation policy. Already-closed
// vouchers are left alone: the ledger has its compensating rows and the
// processor event carries no new information.
func (s *PaymentService) HandleRefundEvent(paymentIntentID string) error {
	var voucher models.Voucher
	if err := s.db.First(&voucher, "payment_reference = ?", paymentIntentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logrus.WithField("payment_id", paymentIntentID).Warn("Refund event for unknown payment reference")
			return nil
		}
		return fmt.Errorf("database error: %w", err)
	}

	_, err := s.cancellationService.RecordCancellation(voucher.ID, time.Now())
	if errors.Is(err, ErrInvalidTransition) {
		logrus.WithField("voucher_id", voucher.ID).Info("Refund event on already-closed voucher")
		return nil
	}
	return err
}
