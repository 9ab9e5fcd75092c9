package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	api "github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/pkg/logging"
	middleware "github.com/Skotchmaster/storefront/pkg/middleware/auth"
	"github.com/Skotchmaster/storefront/pkg/tokens"
	"github.com/Skotchmaster/storefront/services/backend/internal/service"
	"github.com/Skotchmaster/storefront/services/backend/internal/transport"
)

type IdentityHTTP struct {
	Svc *service.IdentityService
}

func (h *IdentityHTTP) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.register")

	var req transport.CredentialsRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "register_error", "invalid body", err)
	}
	u, err := h.Svc.Register(ctx, req.Username, req.Password)
	if err != nil {
		return fail(l, "register_error", err)
	}

	l.Info("register_success", "user_id", u.ID, "role", u.Role)
	return c.JSON(http.StatusCreated, transport.RegisterResponse{ID: u.ID, Username: u.Username, Role: u.Role})
}

func (h *IdentityHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.login")

	var req transport.CredentialsRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "login_error", "invalid body", err)
	}
	res, err := h.Svc.Login(ctx, req.Username, req.Password)
	if err != nil {
		return fail(l, "login_error", err)
	}

	c.SetCookie(tokens.CreateCookie(tokens.AccessCookie, res.AccessToken, "/", res.AccessExp))
	return c.JSON(http.StatusOK, transport.LoginResponse{
		AccessToken: res.AccessToken,
		AccessExp:   res.AccessExp.Unix(),
		Role:        res.Role,
	})
}

func (h *IdentityHTTP) Role(c echo.Context) error {
	return c.JSON(http.StatusOK, transport.RoleResponse{Role: api.UserRole(middleware.Role(c))})
}

func (h *IdentityHTTP) IsAdmin(c echo.Context) error {
	return c.JSON(http.StatusOK, transport.IsAdminResponse{IsAdmin: middleware.Role(c) == middleware.RoleAdmin})
}

func (h *IdentityHTTP) AssignRole(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.assign_role")

	var req transport.AssignRoleRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "assign_role_error", "invalid body", err)
	}
	if err := h.Svc.AssignRole(ctx, req.User, req.Role); err != nil {
		return fail(l, "assign_role_error", err)
	}

	l.Info("assign_role_success", "target", req.User, "role", req.Role)
	return c.NoContent(http.StatusNoContent)
}

// GetProfile answers 204 when the caller has no profile, guests included.
func (h *IdentityHTTP) GetProfile(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "profile.get")

	uid := middleware.UserID(c)
	if uid == "" {
		return c.NoContent(http.StatusNoContent)
	}
	p, err := h.Svc.GetProfile(ctx, uid)
	if err != nil {
		return fail(l, "get_profile_error", err)
	}
	return profileResponse(c, p)
}

func (h *IdentityHTTP) SaveProfile(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "profile.save")

	var req api.UserProfile
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "save_profile_error", "invalid body", err)
	}
	if err := h.Svc.SaveProfile(ctx, middleware.UserID(c), req); err != nil {
		return fail(l, "save_profile_error", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *IdentityHTTP) GetUserProfile(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "profile.get_user")

	p, err := h.Svc.GetUserProfile(ctx, middleware.UserID(c), middleware.Role(c) == middleware.RoleAdmin, c.Param("id"))
	if err != nil {
		return fail(l, "get_user_profile_error", err)
	}
	return profileResponse(c, p)
}

func profileResponse(c echo.Context, p api.Option[api.UserProfile]) error {
	v, ok := p.Get()
	if !ok {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, v)
}
