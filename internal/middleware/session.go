package middleware

import (
    "context"
    "errors"
    "log/slog"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/sdoering/warp/internal/service"
    "github.com/sdoering/warp/internal/utils"
)

// SessionCookie names the cookie carrying the signed session token.
const SessionCookie = "warp_session"

// SessionValidator re-checks parsed claims against the user store.
type SessionValidator interface {
    Validate(ctx context.Context, claims utils.SessionClaims) (service.Identity, error)
}

// publicPrefixes are served without a session.
var publicPrefixes = []string{"/login", "/logout", "/up", "/healthz", "/metrics", "/static/"}

func isPublic(path string) bool {
    for _, p := range publicPrefixes {
        if path == p || (strings.HasSuffix(p, "/") && strings.HasPrefix(path, p)) {
            return true
        }
    }
    return false
}

// IsAPI reports whether the request targets the JSON API, which answers
// with status codes instead of redirects.
func IsAPI(c echo.Context) bool {
    return strings.HasPrefix(c.Request().URL.Path, "/api/")
}

// Session authenticates every request that is not public.  The cookie
// is verified with secret, then the claims are re-validated against the
// database; the resulting identity is stored on the context.  API calls
// without a valid session get 401, pages are redirected to /login.
func Session(secret string, v SessionValidator, log *slog.Logger) echo.MiddlewareFunc {
    if log == nil {
        log = slog.Default()
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if isPublic(c.Request().URL.Path) {
                return next(c)
            }

            ck, err := c.Cookie(SessionCookie)
            if err != nil || ck.Value == "" {
                return unauthenticated(c)
            }
            claims, err := utils.ParseSession(secret, ck.Value)
            if err != nil {
                ClearSessionCookie(c, false)
                return unauthenticated(c)
            }
            id, err := v.Validate(c.Request().Context(), claims)
            if err != nil {
                if errors.Is(err, service.ErrUnauthenticated) {
                    ClearSessionCookie(c, false)
                    return unauthenticated(c)
                }
                log.Error("session validation failed", "login", claims.Login, "error", err)
                return c.JSON(http.StatusInternalServerError, echo.Map{"error": "session check failed"})
            }
            SetIdentity(c, id)
            return next(c)
        }
    }
}

func unauthenticated(c echo.Context) error {
    if IsAPI(c) {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
    }
    return c.Redirect(http.StatusSeeOther, "/login")
}

// SetSessionCookie writes token as the session cookie.
func SetSessionCookie(c echo.Context, token string, secure bool) {
    c.SetCookie(&http.Cookie{
        Name:     SessionCookie,
        Value:    token,
        Path:     "/",
        HttpOnly: true,
        Secure:   secure,
        SameSite: http.SameSiteLaxMode,
    })
}

// ClearSessionCookie expires the session cookie in the browser.
func ClearSessionCookie(c echo.Context, secure bool) {
    c.SetCookie(&http.Cookie{
        Name:     SessionCookie,
        Value:    "",
        Path:     "/",
        Expires:  time.Unix(0, 0),
        MaxAge:   -1,
        HttpOnly: true,
        Secure:   secure,
        SameSite: http.SameSiteLaxMode,
    })
}
