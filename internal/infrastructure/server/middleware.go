package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/studyplanner/core/internal/domain/entities"
	"github.com/studyplanner/core/internal/infrastructure/datastore"
	"github.com/studyplanner/core/internal/infrastructure/logger"
	"github.com/studyplanner/core/internal/ports"
)

var notFoundErrors = []error{
	entities.ErrTaskNotFound,
	entities.ErrSubjectNotFound,
	entities.ErrEventNotFound,
	entities.ErrAssessmentNotFound,
	entities.ErrSessionNotFound,
}

var badRequestErrors = []error{
	entities.ErrInvalidInput,
	entities.ErrInvalidBlock,
	entities.ErrDuplicateBlockID,
	entities.ErrInvalidWeekday,
	entities.ErrUnknownIntent,
	datastore.ErrUnknownCollection,
}

// statusFor maps domain and store errors to an HTTP status and response body.
func statusFor(err error) (int, ports.ErrorResponse) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, ports.ErrorResponse{Message: fmt.Sprint(he.Message)}
	}

	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		return http.StatusBadRequest, ports.ErrorResponse{
			Message: "validation failed",
			Details: map[string]interface{}{"errors": ve.Error()},
		}
	}

	for _, target := range notFoundErrors {
		if errors.Is(err, target) {
			return http.StatusNotFound, ports.ErrorResponse{Message: err.Error()}
		}
	}

	for _, target := range badRequestErrors {
		if errors.Is(err, target) {
			return http.StatusBadRequest, ports.ErrorResponse{Message: err.Error()}
		}
	}

	if errors.Is(err, datastore.ErrWriteFailed) {
		return http.StatusServiceUnavailable, ports.ErrorResponse{
			Message:   "the change could not be saved, please retry",
			Retryable: true,
		}
	}

	return http.StatusInternalServerError, ports.ErrorResponse{Message: http.StatusText(http.StatusInternalServerError)}
}

// customErrorHandler handles HTTP errors
func customErrorHandler(logger *logger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		code, body := statusFor(err)

		if code >= http.StatusInternalServerError {
			logger.Errorw("Request failed", "error", err, "path", c.Request().URL.Path, "status", code)
		}

		if c.Response().Committed {
			return
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, body)
		}
		if err != nil {
			logger.Errorw("Error sending response", "error", err)
		}
	}
}
