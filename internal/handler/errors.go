// internal/handler/errors.go
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	internalDriver "pos-device-service/internal/driver"
	"pos-device-service/internal/finalize"
	"pos-device-service/internal/hardware"
	"pos-device-service/internal/repository"
	"pos-device-service/internal/service"
	"pos-device-service/internal/utils"
)

// errorStatus maps service and hardware errors to HTTP status codes
func errorStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrUnknownRole),
		errors.Is(err, service.ErrInvalidPlan),
		errors.Is(err, service.ErrInvalidDevice),
		errors.Is(err, service.ErrNotInjectable),
		errors.Is(err, internalDriver.ErrDriverNotFound),
		errors.Is(err, finalize.ErrNoOptions),
		errors.Is(err, finalize.ErrInvalidOptions):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrReadOnlyDevices),
		errors.Is(err, service.ErrRoleNotConnected),
		errors.Is(err, finalize.ErrReceiptPrinterRequired):
		return http.StatusConflict
	}

	if hwErr, ok := hardware.AsHardwareError(err); ok {
		switch hwErr.Kind {
		case hardware.KindConnection, hardware.KindUnavailable:
			return http.StatusServiceUnavailable
		case hardware.KindConfiguration, hardware.KindFiscal, hardware.KindOperation:
			return http.StatusConflict
		}
	}
	return http.StatusInternalServerError
}

// respondError writes err with the status errorStatus picks for it
func respondError(c *gin.Context, logger *utils.ServiceLogger, message string, err error) {
	status := errorStatus(err)
	log := utils.LoggerWithRequestID(logger.Logger, c.GetString("request_id"))
	if status >= http.StatusInternalServerError {
		utils.LogError(log, message, err, zap.Int("status", status))
	} else {
		log.Warn(message, zap.Error(err), zap.Int("status", status))
	}
	utils.ErrorResponse(c, status, message, err)
}

// respondBindError reports a request body that failed to decode or validate
func respondBindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	utils.ValidationErrorResponse(c, fields)
}
