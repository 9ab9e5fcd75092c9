package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/pkg/logging"
	"github.com/Skotchmaster/storefront/pkg/tokens"
)

const (
	RoleGuest = "guest"
	RoleUser  = "user"
	RoleAdmin = "admin"
)

var ErrUnknownUser = errors.New("unknown user")

// RoleLookup resolves the current role of a user. Roles are read on every
// request so a role change applies without reissuing tokens.
type RoleLookup interface {
	RoleOf(ctx context.Context, userID string) (string, error)
}

type IdentityMiddleware struct {
	JWTSecret []byte
	Roles     RoleLookup
}

func NewIdentityMiddleware(secret []byte, roles RoleLookup) *IdentityMiddleware {
	return &IdentityMiddleware{JWTSecret: secret, Roles: roles}
}

// Identify resolves the caller. A request without a token continues as
// guest; a bad token is rejected.
func (m *IdentityMiddleware) Identify(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw := tokenFromRequest(c)
		if raw == "" {
			setUserContext(c, "", RoleGuest)
			return next(c)
		}

		ctx := c.Request().Context()
		l := logging.FromContext(ctx).With("middleware", "auth.identify")

		claims, err := tokens.AccessClaimsFromToken(raw, m.JWTSecret)
		if err != nil {
			l.Warn("identify_error", "status", 401, "reason", "invalid access token", "error", err)
			c.SetCookie(tokens.DeleteCookie(tokens.AccessCookie, "/"))
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
		}

		role, err := m.Roles.RoleOf(ctx, claims.Subject)
		if err != nil {
			if errors.Is(err, ErrUnknownUser) {
				l.Warn("identify_error", "status", 401, "reason", "unknown user", "user_id", claims.Subject)
				return echo.NewHTTPError(http.StatusUnauthorized, "unknown user")
			}
			l.Error("identify_error", "status", 500, "reason", "cannot resolve role", "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "cannot resolve role")
		}

		setUserContext(c, claims.Subject, role)
		return next(c)
	}
}

func (m *IdentityMiddleware) RequireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if UserID(c) == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
		}
		return next(c)
	}
}

func (m *IdentityMiddleware) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return m.RequireUser(func(c echo.Context) error {
		if Role(c) != RoleAdmin {
			return echo.NewHTTPError(http.StatusForbidden, "admin access required")
		}
		return next(c)
	})
}

func UserID(c echo.Context) string {
	id, _ := c.Get("user_id").(string)
	return id
}

func Role(c echo.Context) string {
	if r, ok := c.Get("role").(string); ok && r != "" {
		return r
	}
	return RoleGuest
}

func tokenFromRequest(c echo.Context) string {
	if h := c.Request().Header.Get(echo.HeaderAuthorization); h != "" {
		if tok, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(tok)
		}
	}
	if ck, err := c.Cookie(tokens.AccessCookie); err == nil {
		return ck.Value
	}
	return ""
}

func setUserContext(c echo.Context, userID, role string) {
	c.Set("user_id", userID)
	c.Set("role", role)
}
