package handler

import (
	"context"
	"errors"
	"net/http"

	"storyboard-server/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func handleServiceError(c *gin.Context, err error) {
	var statusCode int
	var errResp models.ErrorResponse

	switch {
	case errors.Is(err, models.ErrUnauthorized):
		statusCode = http.StatusUnauthorized
		errResp = models.ErrorResponse{Code: models.ErrCodeTokenInvalid, Message: "Authentication required"}
	case errors.Is(err, models.ErrForbidden):
		statusCode = http.StatusForbidden
		errResp = models.ErrorResponse{Code: models.ErrCodeForbidden, Message: err.Error()}
	case errors.Is(err, models.ErrEmptyScript):
		statusCode = http.StatusBadRequest
		errResp = models.ErrorResponse{Code: models.ErrCodeEmptyScript, Message: "Script text is empty"}
	case errors.Is(err, models.ErrFileTooLarge):
		statusCode = http.StatusRequestEntityTooLarge
		errResp = models.ErrorResponse{Code: models.ErrCodeFileTooLarge, Message: err.Error()}
	case errors.Is(err, models.ErrUnsupportedFileType):
		statusCode = http.StatusUnsupportedMediaType
		errResp = models.ErrorResponse{Code: models.ErrCodeUnsupportedType, Message: err.Error()}
	case errors.Is(err, models.ErrInvalidInput), errors.Is(err, models.ErrBadRequest):
		statusCode = http.StatusBadRequest
		errResp = models.ErrorResponse{Code: models.ErrCodeValidation, Message: err.Error()}
	case errors.Is(err, models.ErrShotNotFound):
		statusCode = http.StatusNotFound
		errResp = models.ErrorResponse{Code: models.ErrCodeShotNotFound, Message: err.Error()}
	case errors.Is(err, models.ErrNotFound):
		statusCode = http.StatusNotFound
		errResp = models.ErrorResponse{Code: models.ErrCodeNotFound, Message: "Storyboard not found"}
	case errors.Is(err, models.ErrOrphanFrame):
		statusCode = http.StatusConflict
		errResp = models.ErrorResponse{Code: models.ErrCodeOrphanFrame, Message: err.Error()}
	case errors.Is(err, models.ErrGenerationInProgress):
		statusCode = http.StatusConflict
		errResp = models.ErrorResponse{Code: models.ErrCodeGenerationActive, Message: err.Error()}
	case errors.Is(err, models.ErrAlreadyExists):
		statusCode = http.StatusConflict
		errResp = models.ErrorResponse{Code: models.ErrCodeBadRequest, Message: err.Error()}
	case errors.Is(err, models.ErrInvalidPlanSize):
		statusCode = http.StatusUnprocessableEntity
		errResp = models.ErrorResponse{Code: models.ErrCodeInvalidPlanSize, Message: err.Error()}
	case errors.Is(err, models.ErrInvalidPlan):
		statusCode = http.StatusUnprocessableEntity
		errResp = models.ErrorResponse{Code: models.ErrCodeInvalidPlan, Message: err.Error()}
	case errors.Is(err, models.ErrUpstream), errors.Is(err, context.DeadlineExceeded):
		// upstream messages are passed through verbatim
		statusCode = http.StatusBadGateway
		errResp = models.ErrorResponse{Code: models.ErrCodeUpstreamFailure, Message: err.Error()}
	default:
		zap.L().Error("Unhandled internal error in handleServiceError", zap.Error(err))
		statusCode = http.StatusInternalServerError
		errResp = models.ErrorResponse{Code: models.ErrCodeInternal, Message: "An unexpected internal error occurred"}
	}

	c.AbortWithStatusJSON(statusCode, errResp)
}

func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Code: models.ErrCodeBadRequest, Message: message})
}
