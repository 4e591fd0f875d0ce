package handlers

import (
	"errors"
	"net/http"

	"cafe_pos_backend/internal/services"
	"cafe_pos_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// respondServiceError maps service errors onto the API error envelope. action
// names the failed operation in logs and in 500 responses.
func respondServiceError(c *gin.Context, err error, action string) {
	var (
		validationErr *services.ValidationError
		transitionErr *services.InvalidTransitionError
		stockErr      *services.InsufficientStockError
		notFoundErr   *services.NotFoundError
	)

	switch {
	case errors.As(err, &transitionErr):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusUnprocessableEntity, utils.ErrCodeInvalidTransition, "Status transition is not allowed.", err.Error()).WithMeta(transitionErr))
	case errors.As(err, &validationErr):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, validationErr.Error(), "").WithMeta(validationErr))
	case errors.Is(err, services.ErrValidation):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, err.Error(), ""))
	case errors.As(err, &stockErr):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusConflict, utils.ErrCodeInsufficientStock, "Insufficient stock for one or more items.", err.Error()).WithMeta(stockErr))
	case errors.As(err, &notFoundErr):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusNotFound, utils.ErrCodeNotFound, notFoundErr.Error(), "").WithMeta(notFoundErr))
	case errors.Is(err, services.ErrNotFound):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusNotFound, utils.ErrCodeNotFound, err.Error(), ""))
	case errors.Is(err, services.ErrConflict):
		utils.LogWarn(err, action+": conflict", requestFields(c))
		utils.RespondWithError(c, utils.NewAPIError(http.StatusConflict, utils.ErrCodeConflict, "The order was modified concurrently, retry the request.", ""))
	default:
		utils.LogError(err, action+": unexpected error", requestFields(c))
		utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Failed to "+action+".", "Internal error"))
	}
}

func requestFields(c *gin.Context) map[string]interface{} {
	return map[string]interface{}{
		"request_id": c.GetString(utils.RequestIDKey),
		"path":       c.FullPath(),
	}
}

func respondBindError(c *gin.Context, err error) {
	utils.RespondValidationFailed(c, err.Error())
}

// pathID parses the :name path parameter as a positive id.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, ok := utils.ParseIDParam(c.Param(name))
	if !ok {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid "+name+" format.", c.Param(name)))
		return 0, false
	}
	return id, true
}
