package middleware

import (
	"net/http"

	"live-auction/internal/domain"
	"live-auction/internal/infrastructure/auth"
	"live-auction/pkg/logger"

	"github.com/labstack/echo/v4"
)

const identityKey = "identity"

// Authenticate resolves the request credential and stores the identity on the context.
func Authenticate(authenticator domain.Authenticator, log logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			identity, err := authenticator.Authenticate(c.Request().Context(), auth.CredentialFromRequest(c.Request()))
			if err != nil {
				log.Info("Rejected request", "path", c.Path(), "remote_addr", c.RealIP(), "error", err)
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized", "code": "UNAUTHORIZED"})
			}
			c.Set(identityKey, identity)
			return next(c)
		}
	}
}

// RequireModerator must run after Authenticate.
func RequireModerator(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		identity, ok := IdentityFrom(c)
		if !ok || !identity.Moderator {
			return c.JSON(http.StatusForbidden, map[string]string{"error": "moderator role required", "code": "FORBIDDEN"})
		}
		return next(c)
	}
}

func IdentityFrom(c echo.Context) (*domain.Identity, bool) {
	identity, ok := c.Get(identityKey).(*domain.Identity)
	return identity, ok && identity != nil
}
