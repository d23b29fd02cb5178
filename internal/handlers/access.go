// internal/handlers/access.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/wellpont/wellpont-backend/internal/services"
	"github.com/wellpont/wellpont-backend/internal/utils"
)

type AccessHandler struct {
	admissionService *services.AdmissionService
}

func NewAccessHandler(admissionService *services.AdmissionService) *AccessHandler {
	return &AccessHandler{
		admissionService: admissionService,
	}
}

// POST /programs/:id/admit
// Outcome statuses (granted, already_granted, exhausted, not_sponsored) all
// come back 200 with the status in the body; the client branches on that,
// not on the HTTP code.
func (h *AccessHandler) Admit(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	contentID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	result, err := h.admissionService.TryAdmit(contentID, userID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, result)
}

// GET /programs/:id/access
func (h *AccessHandler) GetAccess(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	contentID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	decision, err := h.admissionService.GetAccess(userID, contentID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, decision)
}
