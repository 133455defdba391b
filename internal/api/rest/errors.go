package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apierrors "github.com/feral-file/ff-asset-aggregator/internal/api/shared/errors"
	"github.com/feral-file/ff-asset-aggregator/internal/logger"
)

// respondBadRequest responds with a bad request error
func respondBadRequest(c *gin.Context, message string, details ...string) {
	c.JSON(http.StatusBadRequest, apierrors.ErrorResponse{Error: apierrors.NewBadRequestError(message, details...)})
}

// respondValidationError responds with a validation error
func respondValidationError(c *gin.Context, message string) {
	c.JSON(http.StatusUnprocessableEntity, apierrors.ErrorResponse{Error: apierrors.NewValidationError(message)})
}

// respondError maps an executor error to a response; internal errors are logged and never exposed
func respondError(c *gin.Context, err error, message string, fields ...zap.Field) {
	status, apiErr := apierrors.FromError(err, message)
	if status >= http.StatusInternalServerError {
		logger.ErrorCtx(c.Request.Context(), err, fields...)
	}
	c.JSON(status, apierrors.ErrorResponse{Error: apiErr})
}

// respondErrorStatus responds with an explicit status and logs the cause
func respondErrorStatus(c *gin.Context, status int, apiErr *apierrors.APIError, cause error) {
	logger.WarnCtx(c.Request.Context(), apiErr.Message, zap.Error(cause))
	c.JSON(status, apierrors.ErrorResponse{Error: apiErr})
}
