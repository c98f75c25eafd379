package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/sdoering/warp/internal/middleware"
	"github.com/sdoering/warp/internal/repository"
	"github.com/sdoering/warp/internal/service"
	"github.com/sdoering/warp/internal/view"
)

// wrongCredentials is the only failure message a login ever shows.
const wrongCredentials = "Wrong username or password"

// AuthHandler bundles dependencies for the login endpoints.
type AuthHandler struct {
	Accounts     *service.Accounts
	Users        *repository.UserRepo
	CookieSecure bool
	Log          *slog.Logger
}

func NewAuthHandler(acc *service.Accounts, users *repository.UserRepo, cookieSecure bool, log *slog.Logger) *AuthHandler {
	return &AuthHandler{Accounts: acc, Users: users, CookieSecure: cookieSecure, Log: log}
}

type loginReq struct {
	Login    string `json:"login" form:"login"`
	Password string `json:"password" form:"password"`
}

// LoginPage renders the sign-in form.
func (h *AuthHandler) LoginPage(c echo.Context) error {
	return render(c, http.StatusOK, view.LoginPage("", ""))
}

// Login accepts a form post or a JSON body.  On success the session
// cookie is set; forms are redirected to /, JSON callers get the person.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.Login = strings.TrimSpace(req.Login)
	isJSON := strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON)

	token, p, err := h.Accounts.Login(c.Request().Context(), req.Login, req.Password)
	if err != nil {
		if !errors.Is(err, service.ErrBadCredentials) {
			h.Log.Error("login failed", "error", err)
		}
		if isJSON {
			if errors.Is(err, service.ErrBadCredentials) {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": wrongCredentials})
			}
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "login failed"})
		}
		return render(c, http.StatusUnauthorized, view.LoginPage(wrongCredentials, req.Login))
	}

	middleware.SetSessionCookie(c, token, h.CookieSecure)
	if isJSON {
		return c.JSON(http.StatusOK, echo.Map{"login": p.Login, "name": p.Name, "is_admin": p.IsAdmin()})
	}
	return c.Redirect(http.StatusSeeOther, "/")
}

// Logout drops the session cookie.
func (h *AuthHandler) Logout(c echo.Context) error {
	middleware.ClearSessionCookie(c, h.CookieSecure)
	if c.Request().Method == http.MethodPost {
		return c.NoContent(http.StatusNoContent)
	}
	return c.Redirect(http.StatusSeeOther, "/login")
}

// Me returns the authenticated person.
func (h *AuthHandler) Me(c echo.Context) error {
	id := identity(c)
	p, err := h.Users.GetPerson(c.Request().Context(), id.Login)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"login":        p.Login,
		"name":         p.Name,
		"account_type": p.AccountType.String(),
		"is_admin":     id.IsAdmin,
	})
}
