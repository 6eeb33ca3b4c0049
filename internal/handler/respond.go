package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/flight-seat-reservation/internal/service"
)

// retryAfterSeconds is advertised on SYSTEM_ERROR responses.
const retryAfterSeconds = "1"

// statusFor maps an error kind onto an HTTP status.
func statusFor(err error) int {
	switch kind := service.Kind(err); {
	case service.IsNotFound(err):
		return http.StatusNotFound
	case kind == "SYSTEM_ERROR":
		return http.StatusServiceUnavailable
	case kind == "CONFLICT":
		return http.StatusConflict
	case kind == "INTERNAL_ERROR":
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// fail writes the {success:false,message,code} envelope for err.
// Internal errors are logged and their message is not echoed.
func fail(c echo.Context, log logrus.FieldLogger, err error) error {
	status := statusFor(err)
	msg := err.Error()
	switch status {
	case http.StatusServiceUnavailable:
		c.Response().Header().Set("Retry-After", retryAfterSeconds)
		log.WithError(err).Warn("transient storage failure")
		msg = "temporarily unavailable, please retry"
	case http.StatusInternalServerError:
		log.WithError(err).WithField("path", c.Path()).Error("unhandled error")
		msg = "internal error"
	}
	return c.JSON(status, echo.Map{
		"success": false,
		"message": msg,
		"code":    service.Kind(err),
	})
}

// badRequest reports malformed input that never reached the services.
func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{
		"success": false,
		"message": msg,
		"code":    "VALIDATION_ERROR",
	})
}

func parseID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(c.Param(name)), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid " + name)
	}
	return id, nil
}
