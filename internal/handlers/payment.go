// internal/handlers/payment.go
package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wellpont/wellpont-backend/internal/services"
	"github.com/wellpont/wellpont-backend/internal/utils"
)

type PaymentHandler struct {
	paymentService *services.PaymentService
}

func NewPaymentHandler(paymentService *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
	}
}

// POST /payments/intent
func (h *PaymentHandler) CreatePurchaseIntent(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req services.CreatePurchaseIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	resp, err := h.paymentService.CreatePurchaseIntent(userID, &req)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, resp)
}

// POST /payments/confirm
func (h *PaymentHandler) ConfirmPurchase(c *gin.Context) {
	if _, ok := currentUserID(c); !ok {
		return
	}

	var req services.ConfirmPurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	settlement, err := h.paymentService.ConfirmPurchase(&req)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	utils.CreatedResponse(c, settlement)
}

// POST /payments/webhook
// Stripe authenticates with the signature header, not a JWT, so this route
// is unauthenticated and returns bare status codes the way Stripe expects.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	if err := h.paymentService.HandleWebhook(payload, c.GetHeader("Stripe-Signature")); err != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	c.Status(http.StatusOK)
}
