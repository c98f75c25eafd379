package middleware

// identity.go holds the context accessors shared across middleware and
// handlers.  The session middleware stores a service.Identity; everything
// downstream reads it through CurrentIdentity.

import (
    "github.com/labstack/echo/v4"

    "github.com/sdoering/warp/internal/model"
    "github.com/sdoering/warp/internal/service"
)

const (
    identityKey = "identity"
    zoneRoleKey = "zone_role"
)

// SetIdentity stores the authenticated caller on c.
func SetIdentity(c echo.Context, id service.Identity) { c.Set(identityKey, id) }

// CurrentIdentity returns the caller stored by Session.
func CurrentIdentity(c echo.Context) (service.Identity, bool) {
    id, ok := c.Get(identityKey).(service.Identity)
    return id, ok && id.Login != ""
}

// ZoneRole returns the role stored by RequireZoneRole, or RoleNone.
func ZoneRole(c echo.Context) model.Role {
    r, _ := c.Get(zoneRoleKey).(model.Role)
    return r
}

// userID returns the caller's login for rate-limit keys, "anon" when
// nobody is logged in.
func userID(c echo.Context) string {
    if id, ok := CurrentIdentity(c); ok {
        return id.Login
    }
    return "anon"
}
