// internal/handlers/common.go
package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/wellpont/wellpont-backend/internal/services"
	"github.com/wellpont/wellpont-backend/internal/utils"
)

// currentUserID pulls the authenticated user out of the gin context set by
// the auth middleware. Writes the 401 itself so callers just return.
func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	userIDStr, exists := utils.GetUserIDFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return uuid.Nil, false
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid user ID", nil)
		return uuid.Nil, false
	}

	return userID, true
}

// parseUUIDParam parses a path parameter and writes the 400 on failure.
func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid "+name, nil)
		return uuid.Nil, false
	}
	return id, true
}

// writeServiceError maps service sentinels to HTTP responses. Anything not
// recognized is a 500 with a generic message; the detail stays in the logs.
func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidTransition):
		utils.ConflictResponse(c, err.Error())
	case errors.Is(err, services.ErrAlreadyGranted):
		utils.ConflictResponse(c, "access already granted")
	case errors.Is(err, services.ErrExhausted):
		utils.ConflictResponse(c, "no sponsored licenses available")
	case errors.Is(err, services.ErrPoolInactive):
		utils.ConflictResponse(c, "sponsorship is not active")
	case errors.Is(err, services.ErrInsufficientCredit):
		utils.ConflictResponse(c, "sponsor credit insufficient")
	case errors.Is(err, services.ErrBelowPayoutMinimum):
		utils.BadRequestResponse(c, err.Error(), nil)
	case errors.Is(err, services.ErrReconciliationMismatch):
		utils.InternalErrorResponse(c, "settlement reconciliation failed")
	case err.Error() == "voucher not found" || err.Error() == "content not found" || err.Error() == "settlement not found for voucher":
		utils.NotFoundResponse(c, "resource")
	default:
		utils.InternalErrorResponse(c, "An unexpected error occurred")
	}
}
