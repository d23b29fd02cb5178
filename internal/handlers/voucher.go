// internal/handlers/voucher.go
package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wellpont/wellpont-backend/internal/models"
	"github.com/wellpont/wellpont-backend/internal/services"
	"github.com/wellpont/wellpont-backend/internal/utils"
)

type VoucherHandler struct {
	voucherService      *services.VoucherService
	cancellationService *services.CancellationService
}

func NewVoucherHandler(voucherService *services.VoucherService, cancellationService *services.CancellationService) *VoucherHandler {
	return &VoucherHandler{
		voucherService:      voucherService,
		cancellationService: cancellationService,
	}
}

// GET /vouchers
func (h *VoucherHandler) ListMyVouchers(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)

	var status *models.VoucherStatus
	if statusStr := c.Query("status"); statusStr != "" {
		s := models.VoucherStatus(statusStr)
		status = &s
	}

	vouchers, total, err := h.voucherService.GetUserVouchers(userID, status, params)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	result := utils.CreatePaginationResult(vouchers, total, params)
	utils.PaginatedResponse(c, result)
}

// GET /vouchers/:id
func (h *VoucherHandler) GetVoucher(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	voucherID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	voucher, err := h.voucherService.GetVoucher(voucherID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	userType, _ := utils.GetUserTypeFromContext(c)
	if voucher.UserID != userID && userType != string(models.UserTypeAdmin) && voucher.Program.CreatorID != userID {
		utils.ForbiddenResponse(c, "")
		return
	}

	utils.SuccessResponse(c, voucher)
}

// POST /vouchers/redeem (expert check-in by code)
func (h *VoucherHandler) Redeem(c *gin.Context) {
	expertID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req services.RedeemVoucherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	voucher, err := h.voucherService.Redeem(&req, expertID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, voucher)
}

// GET /programs/:id/vouchers (expert view of bookings on their program)
func (h *VoucherHandler) ListProgramVouchers(c *gin.Context) {
	if _, ok := currentUserID(c); !ok {
		return
	}

	contentID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)
	vouchers, total, err := h.voucherService.GetProgramVouchers(contentID, params)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	result := utils.CreatePaginationResult(vouchers, total, params)
	utils.PaginatedResponse(c, result)
}

// POST /vouchers/:id/cancel
func (h *VoucherHandler) Cancel(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	voucherID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	voucher, err := h.voucherService.GetVoucher(voucherID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	userType, _ := utils.GetUserTypeFromContext(c)
	if voucher.UserID != userID && userType != string(models.UserTypeAdmin) {
		utils.ForbiddenResponse(c, "")
		return
	}

	result, err := h.cancellationService.RecordCancellation(voucherID, time.Now())
	if err != nil {
		writeServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, result)
}
