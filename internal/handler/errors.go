package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/sdoering/warp/internal/middleware"
	"github.com/sdoering/warp/internal/repository"
	"github.com/sdoering/warp/internal/service"
)

// statusFor maps domain errors to an HTTP status and the message the
// client sees.  Unknown errors are 500 with a generic message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrBookingConflict):
		return http.StatusConflict, "booking conflict"
	case errors.Is(err, service.ErrSeatDisabled):
		return http.StatusConflict, "seat is disabled"
	case errors.Is(err, repository.ErrLoginExists):
		return http.StatusConflict, "login already exists"
	case errors.Is(err, repository.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, repository.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, service.ErrUnauthenticated), errors.Is(err, service.ErrBadCredentials):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, service.ErrInvalidRange):
		return http.StatusBadRequest, "invalid time range"
	case errors.Is(err, service.ErrOutsideWindow):
		return http.StatusBadRequest, "outside booking window"
	case errors.Is(err, repository.ErrBookingNotFound):
		return http.StatusNotFound, "booking not found"
	case errors.Is(err, repository.ErrSeatNotFound):
		return http.StatusNotFound, "seat not found"
	case errors.Is(err, repository.ErrZoneNotFound):
		return http.StatusNotFound, "zone not found"
	case errors.Is(err, repository.ErrUserNotFound):
		return http.StatusNotFound, "user not found"
	case errors.Is(err, repository.ErrGroupNotFound):
		return http.StatusNotFound, "group not found"
	case errors.Is(err, repository.ErrBlobNotFound):
		return http.StatusNotFound, "image not found"
	}
	return http.StatusInternalServerError, "internal error"
}

// fail writes err as {"error": msg}.  500s are logged with the request
// id; everything else is an expected outcome.
func fail(c echo.Context, log *slog.Logger, err error) error {
	status, msg := statusFor(err)
	if status == http.StatusInternalServerError {
		if log == nil {
			log = slog.Default()
		}
		log.Error("request failed",
			"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
			"method", c.Request().Method,
			"path", c.Path(),
			"error", err)
	}
	if !middleware.IsAPI(c) {
		return c.String(status, msg)
	}
	return c.JSON(status, echo.Map{"error": msg})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

// paramID parses a positive int64 path parameter.
func paramID(c echo.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

// queryInt64 parses an optional int64 query parameter; absent is 0.
func queryInt64(c echo.Context, name string) (int64, error) {
	v := c.QueryParam(name)
	if v == "" {
		return 0, nil
	}
	return strconv.ParseInt(v, 10, 64)
}

func identity(c echo.Context) service.Identity {
	id, _ := middleware.CurrentIdentity(c)
	return id
}
