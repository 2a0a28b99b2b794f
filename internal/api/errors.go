package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tgienger/tracker/internal/apperr"
	"github.com/tgienger/tracker/internal/logging"
)

type errorBody struct {
	Code    apperr.Code `json:"code"`
	Message string      `json:"message"`
}

func statusFor(code apperr.Code) int {
	switch code {
	case apperr.CodeInvalidArgument:
		return http.StatusBadRequest
	case apperr.CodeUnauthenticated:
		return http.StatusUnauthorized
	case apperr.CodePermissionDenied:
		return http.StatusForbidden
	case apperr.CodeNotFound:
		return http.StatusNotFound
	case apperr.CodeThreadClosed:
		return http.StatusConflict
	case apperr.CodeStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	body := errorBody{Code: apperr.CodeInternal, Message: "internal server error"}

	var he *echo.HTTPError
	var ae *apperr.Error
	switch {
	case errors.As(err, &ae):
		status = statusFor(ae.Code)
		body = errorBody{Code: ae.Code, Message: ae.Message}
	case errors.As(err, &he):
		status = he.Code
		body.Code = codeForStatus(he.Code)
		if msg, ok := he.Message.(string); ok {
			body.Message = msg
		} else {
			body.Message = http.StatusText(he.Code)
		}
	}

	if status >= http.StatusInternalServerError {
		lg := logging.Component("api")
		lg.Error().Err(err).Str("path", c.Path()).Msg("Request failed")
	}

	var werr error
	if c.Request().Method == http.MethodHead {
		werr = c.NoContent(status)
	} else {
		werr = c.JSON(status, map[string]errorBody{"error": body})
	}
	if werr != nil {
		lg := logging.Component("api")
		lg.Error().Err(werr).Msg("Failed to write error response")
	}
}

func codeForStatus(status int) apperr.Code {
	switch status {
	case http.StatusBadRequest:
		return apperr.CodeInvalidArgument
	case http.StatusUnauthorized:
		return apperr.CodeUnauthenticated
	case http.StatusForbidden:
		return apperr.CodePermissionDenied
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return apperr.CodeNotFound
	case http.StatusTooManyRequests:
		return "RATE_LIMITED"
	default:
		return apperr.CodeInternal
	}
}
