package middleware // middleware provides shared request processing for handlers

import (
    "errors"
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/sdoering/warp/internal/model"
    "github.com/sdoering/warp/internal/repository"
    "github.com/sdoering/warp/internal/service"
)

func forbidden(c echo.Context) error {
    if IsAPI(c) {
        return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
    }
    return c.String(http.StatusForbidden, "Forbidden")
}

// RequireAdmin lets only account admins through.  It assumes Session ran
// before it.
func RequireAdmin() echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            id, ok := CurrentIdentity(c)
            if !ok || !id.IsAdmin {
                return forbidden(c)
            }
            return next(c)
        }
    }
}

// RequireZoneRole checks that the caller holds at least min on the zone
// named by the path parameter param and stores the role on the context.
// The response never says which role was missing.
func RequireZoneRole(authz *service.Authorizer, param string, min model.Role) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            id, ok := CurrentIdentity(c)
            if !ok {
                return forbidden(c)
            }
            zid, err := strconv.ParseInt(c.Param(param), 10, 64)
            if err != nil || zid <= 0 {
                if IsAPI(c) {
                    return c.JSON(http.StatusNotFound, echo.Map{"error": "zone not found"})
                }
                return c.String(http.StatusNotFound, "Not Found")
            }
            role, err := authz.RequireZoneRole(c.Request().Context(), id, zid, min)
            if err != nil {
                if errors.Is(err, repository.ErrForbidden) {
                    return forbidden(c)
                }
                return c.JSON(http.StatusInternalServerError, echo.Map{"error": "role lookup failed"})
            }
            c.Set(zoneRoleKey, role)
            return next(c)
        }
    }
}
