package handlers

import (
	"errors"
	"net/http"

	"mitra/models"
	"mitra/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// StatusForKind maps an error kind onto the HTTP status of the facade.
func StatusForKind(kind models.ErrorKind) int {
	switch kind {
	case models.KindInvalidArgument:
		return http.StatusBadRequest
	case models.KindUnauthorized:
		return http.StatusUnauthorized
	case models.KindInvalidState, models.KindBusy, models.KindUncertain, models.KindConflict:
		return http.StatusConflict
	case models.KindRejected:
		return http.StatusUnprocessableEntity
	case models.KindProtocol:
		return http.StatusBadGateway
	case models.KindUnavailable:
		return http.StatusServiceUnavailable
	case models.KindTransientFailure:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err in the shape every endpoint shares.
func respondError(c *gin.Context, err error) {
	logger := getLogger(c)

	var e *models.Error
	if !errors.As(err, &e) {
		logger.Error("Unexpected error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse{Message: "Internal Server Error", Details: err.Error()})
		return
	}

	status := StatusForKind(e.Kind)
	if status >= http.StatusInternalServerError {
		logger.Error("Partner API call failed", zap.String("op", e.Op), zap.String("kind", string(e.Kind)), zap.Error(err))
	} else {
		logger.Warn("Request refused", zap.String("op", e.Op), zap.String("kind", string(e.Kind)), zap.String("message", e.Message))
	}
	c.JSON(status, utils.ErrorResponse{Message: e.Message, Kind: string(e.Kind), Errors: e.Fields})
}

func badRequest(c *gin.Context, op string, err error) {
	respondError(c, models.NewError(models.KindInvalidArgument, op, "Invalid request: "+err.Error()))
}
