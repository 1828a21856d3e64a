package inkpost

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/eringen/inkpost/model"
)

const (
	authCookieName = "auth"
	claimsKey      = "session_claims"
)

func (a *App) setupMiddleware() {
	e := a.Echo

	e.IPExtractor = echo.ExtractIPFromXFFHeader(
		echo.TrustLoopback(true),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(true),
	)

	e.Pre(middleware.RemoveTrailingSlash())

	e.HTTPErrorHandler = a.httpErrorHandler
	e.Validator = newRequestValidator()

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			a.log.Info("HTTP request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency.String(),
				"remote_ip", v.RemoteIP)
			return nil
		},
	}))

	e.Use(middleware.Recover())

	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
		ReferrerPolicy:     "strict-origin-when-cross-origin",
	}))

	e.Use(middleware.BodyLimit(a.Config.HTTP.BodyLimit))
	e.Use(cacheControlMiddleware)
}

func cacheControlMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if strings.HasPrefix(c.Request().URL.Path, "/uploads/") {
			c.Response().Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		} else {
			c.Response().Header().Set("Cache-Control", "no-store")
		}
		return next(c)
	}
}

// requireSession verifies the session token from the auth cookie or the
// Authorization header and stores its claims on the context.
func (a *App) requireSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw := sessionToken(c.Request())
		if raw == "" {
			return model.NewUnauthorizedError(errors.New("no session token"))
		}
		claims, err := a.tokens.Verify(raw)
		if err != nil {
			a.log.Debug("Session: rejected token", "error", err.Error())
			return model.NewUnauthorizedError(err)
		}
		c.Set(claimsKey, claims)
		return next(c)
	}
}

// sessionToken prefers the auth cookie and falls back to a bearer header.
func sessionToken(r *http.Request) string {
	if cookie, err := r.Cookie(authCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	h := strings.TrimSpace(r.Header.Get(echo.HeaderAuthorization))
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// sessionClaims returns the claims stored by requireSession.
func sessionClaims(c echo.Context) model.Claims {
	claims, _ := c.Get(claimsKey).(model.Claims)
	return claims
}

func (a *App) authCookie(value string, maxAge time.Duration) *http.Cookie {
	return sessions.NewCookie(authCookieName, value, &sessions.Options{
		Path:     "/",
		MaxAge:   int(maxAge / time.Second),
		HttpOnly: true,
		Secure:   a.Config.HTTP.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *App) setAuthCookie(c echo.Context, value string) {
	c.SetCookie(a.authCookie(value, a.Config.JWT.TTL))
}

func (a *App) clearAuthCookie(c echo.Context) {
	c.SetCookie(a.authCookie("", -time.Second))
}
