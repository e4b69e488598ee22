package staff

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/db"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the auth endpoints and admin account management.
// loginMW wraps the login route only, e.g. a rate limiter.
func (h *Handler) RegisterRoutes(api *echo.Group, loginMW ...echo.MiddlewareFunc) {
	api.POST("/auth/login", h.Login, loginMW...)
	api.POST("/auth/logout", h.Logout)
	api.GET("/auth/me", h.Me)
	api.POST("/auth/password", h.ChangePassword)

	admin := api.Group("", auth.RequireAdmin())
	admin.GET("/staff", h.ListAccounts)
	admin.POST("/staff", h.CreateAccount)
	admin.PATCH("/staff/:id", h.UpdateAccount)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	res, err := h.svc.Login(ctx, db.ClinicFromContext(ctx), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	h.svc.Logout(ctx, auth.SessionFromContext(ctx))
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Me(c echo.Context) error {
	sess, err := h.svc.CurrentUser(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sess)
}

type passwordChangeRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (h *Handler) ChangePassword(c echo.Context) error {
	var req passwordChangeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	if err := h.svc.ChangePassword(ctx, auth.SessionFromContext(ctx), req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListAccounts(c echo.Context) error {
	items, err := h.svc.ListAccounts(c.Request().Context())
	if err != nil {
		return err
	}
	if items == nil {
		items = []*Account{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) CreateAccount(c echo.Context) error {
	var req NewAccount
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.CreateAccount(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) UpdateAccount(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var patch AccountPatch
	if err := c.Bind(&patch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	var actor string
	if sess := auth.SessionFromContext(ctx); sess != nil {
		actor = sess.UserID
	}
	a, err := h.svc.UpdateAccount(ctx, actor, id, patch)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}
