// internal/handlers/admin.go
package handlers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/wellpont/wellpont-backend/internal/models"
	"github.com/wellpont/wellpont-backend/internal/services"
	"github.com/wellpont/wellpont-backend/internal/utils"
)

type AdminHandler struct {
	admissionService    *services.AdmissionService
	creditService       *services.CreditService
	settlementService   *services.SettlementService
	cancellationService *services.CancellationService
	reportingService    *services.ReportingService
	settingsService     *services.SettingsService
	notificationService *services.NotificationService
}

func NewAdminHandler(
	admissionService *services.AdmissionService,
	creditService *services.CreditService,
	settlementService *services.SettlementService,
	cancellationService *services.CancellationService,
	reportingService *services.ReportingService,
	settingsService *services.SettingsService,
	notificationService *services.NotificationService,
) *AdminHandler {
	return &AdminHandler{
		admissionService:    admissionService,
		creditService:       creditService,
		settlementService:   settlementService,
		cancellationService: cancellationService,
		reportingService:    reportingService,
		settingsService:     settingsService,
		notificationService: notificationService,
	}
}

// POST /admin/pools
func (h *AdminHandler) CreateLicensePool(c *gin.Context) {
	var req services.CreateLicensePoolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	pool, err := h.admissionService.CreateLicensePool(&req)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	utils.CreatedResponse(c, pool)
}

// DELETE /admin/pools/:contentID
func (h *AdminHandler) DeactivateLicensePool(c *gin.Context) {
	contentID, ok := parseUUIDParam(c, "contentID")
	if !ok {
		return
	}

	if err := h.admissionService.DeactivateLicensePool(contentID); err != nil {
		writeServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"deactivated": true})
}

// POST /admin/credits
func (h *AdminHandler) GrantCredits(c *gin.Context) {
	var req services.GrantCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	grant, err := h.creditService.GrantCredits(&req)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	utils.CreatedResponse(c, grant)
}

// GET /admin/sponsors/:sponsorID/ledger
func (h *AdminHandler) GetSponsorLedger(c *gin.Context) {
	sponsorID, ok := parseUUIDParam(c, "sponsorID")
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)
	entries, total, err := h.creditService.GetLedger(sponsorID, params)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	balance, err := h.creditService.AvailableCredits(sponsorID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	result := utils.CreatePaginationResult(entries, total, params)
	utils.SuccessResponseWithMeta(c, result, gin.H{"balance": balance})
}

// POST /admin/payouts/:expertID
func (h *AdminHandler) RunPayoutBatch(c *gin.Context) {
	expertID, ok := parseUUIDParam(c, "expertID")
	if !ok {
		return
	}

	result, err := h.settlementService.MarkSettlementsPaid(expertID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, result)
}

// GET /admin/settlements
func (h *AdminHandler) ListSettlements(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	var expertID *uuid.UUID
	if idStr := c.Query("expert_id"); idStr != "" {
		id, err := uuid.Parse(idStr)
		if err != nil {
			utils.BadRequestResponse(c, "Invalid expert_id", nil)
			return
		}
		expertID = &id
	}

	var status *models.SettlementStatus
	if statusStr := c.Query("status"); statusStr != "" {
		s := models.SettlementStatus(statusStr)
		status = &s
	}

	settlements, total, err := h.settlementService.SearchSettlements(expertID, status, params)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	result := utils.CreatePaginationResult(settlements, total, params)
	utils.PaginatedResponse(c, result)
}

// POST /admin/vouchers/:id/no-show
func (h *AdminHandler) RecordNoShow(c *gin.Context) {
	voucherID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	result, err := h.cancellationService.RecordNoShow(voucherID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, result)
}

// POST /admin/sweeps/no-shows
func (h *AdminHandler) RunNoShowSweep(c *gin.Context) {
	count, err := h.cancellationService.SweepNoShows()
	if err != nil {
		writeServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"swept": count})
}

// POST /admin/sweeps/expired
func (h *AdminHandler) RunExpirySweep(c *gin.Context) {
	count, err := h.cancellationService.SweepExpired()
	if err != nil {
		writeServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"expired": count})
}

// GET /admin/reports/revenue
func (h *AdminHandler) GetRevenueSummary(c *gin.Context) {
	from, to, ok := parseReportWindow(c)
	if !ok {
		return
	}

	summary, err := h.reportingService.GetRevenueSummary(from, to)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, summary)
}

// GET /admin/reports/payouts/:expertID
func (h *AdminHandler) GetExpertPayoutSummary(c *gin.Context) {
	expertID, ok := parseUUIDParam(c, "expertID")
	if !ok {
		return
	}

	summary, err := h.reportingService.GetExpertPayoutSummary(expertID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, summary)
}

// GET /admin/reports/sponsors
func (h *AdminHandler) GetSponsorHealth(c *gin.Context) {
	health, err := h.reportingService.GetSponsorHealth()
	if err != nil {
		writeServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, health)
}

// GET /admin/reports/vouchers
func (h *AdminHandler) GetVoucherOutcomes(c *gin.Context) {
	from, to, ok := parseReportWindow(c)
	if !ok {
		return
	}

	summary, err := h.reportingService.GetVoucherOutcomes(from, to)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, summary)
}

// POST /admin/reports/payouts/:expertID/statement
func (h *AdminHandler) ExportPayoutStatement(c *gin.Context) {
	expertID, ok := parseUUIDParam(c, "expertID")
	if !ok {
		return
	}

	from, to, ok := parseReportWindow(c)
	if !ok {
		return
	}

	stored, err := h.reportingService.ExportPayoutStatement(expertID, from, to)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	utils.CreatedResponse(c, stored)
}

// GET /admin/settings
func (h *AdminHandler) GetSettings(c *gin.Context) {
	settings, err := h.settingsService.GetSettings()
	if err != nil {
		writeServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, settings)
}

// PUT /admin/settings
func (h *AdminHandler) UpdateSetting(c *gin.Context) {
	adminID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req services.UpdateSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	setting, err := h.settingsService.UpdateSetting(adminID, &req)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, setting)
}

// GET /admin/notifications
func (h *AdminHandler) ListNotifications(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	notifications, err := h.notificationService.ListUnread(limit)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, notifications)
}

// parseReportWindow reads from/to query params (RFC3339 or YYYY-MM-DD),
// defaulting to the last 30 days.
func parseReportWindow(c *gin.Context) (time.Time, time.Time, bool) {
	now := time.Now()
	from := now.AddDate(0, 0, -30)
	to := now

	parse := func(value string) (time.Time, error) {
		if t, err := time.Parse(time.RFC3339, value); err == nil {
			return t, nil
		}
		return time.Parse("2006-01-02", value)
	}

	if fromStr := c.Query("from"); fromStr != "" {
		t, err := parse(fromStr)
		if err != nil {
			utils.BadRequestResponse(c, "Invalid from date", nil)
			return time.Time{}, time.Time{}, false
		}
		from = t
	}
	if toStr := c.Query("to"); toStr != "" {
		t, err := parse(toStr)
		if err != nil {
			utils.BadRequestResponse(c, "Invalid to date", nil)
			return time.Time{}, time.Time{}, false
		}
		to = t
	}

	return from, to, true
}
