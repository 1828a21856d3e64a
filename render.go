package inkpost

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/eringen/inkpost/model"
)

// envelope is the JSON shape of every API response.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// loginEnvelope adds the bearer credentials to a successful login.
type loginEnvelope struct {
	envelope
	TokenType   string `json:"token_type"`
	AccessToken string `json:"access_token"`
}

// Render writes a successful envelope with status 200.
func Render(c echo.Context, message string, data any) error {
	return c.JSON(http.StatusOK, envelope{Success: true, Message: message, Data: data})
}

const (
	msgBodyTooLarge  = "Request body is too large"
	msgImageTooLarge = "Image must not exceed 5MB"
)

// statusFor maps an error to the HTTP status and client-facing message.
// An oversized body is reported as invalid input.
func statusFor(err error) (int, string) {
	var me *model.Error
	if errors.As(err, &me) {
		switch me.Kind {
		case model.KindValidation, model.KindNotFound, model.KindConflict, model.KindInvalidCredentials:
			return http.StatusBadRequest, me.Message
		case model.KindUnauthorized:
			return http.StatusUnauthorized, me.Message
		default:
			return http.StatusInternalServerError, "Internal server error"
		}
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if he.Code == http.StatusRequestEntityTooLarge {
			return http.StatusBadRequest, msgBodyTooLarge
		}
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok && s != "" {
			msg = s
		} else if he.Message != nil {
			msg = fmt.Sprint(he.Message)
		}
		if he.Code >= http.StatusInternalServerError {
			msg = "Internal server error"
		}
		return he.Code, msg
	}
	return http.StatusInternalServerError, "Internal server error"
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code, msg := statusFor(err)
	if msg == msgBodyTooLarge && strings.HasPrefix(c.Request().URL.Path, "/api/posts") {
		msg = msgImageTooLarge
	}
	if code >= http.StatusInternalServerError {
		a.log.Error("HTTP server error",
			"method", c.Request().Method,
			"uri", c.Request().RequestURI,
			"error", err.Error())
	}
	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, envelope{Success: false, Message: msg})
	}
	if err != nil {
		a.log.Error("HTTP error response failed", "error", err.Error())
	}
}
