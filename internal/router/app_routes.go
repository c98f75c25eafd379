package router // router defines how HTTP routes are registered for the app

import (
	"github.com/labstack/echo/v4"

	"github.com/sdoering/warp/internal/middleware"
	"github.com/sdoering/warp/internal/model"
)

// registerPages registers the server-rendered pages.
func registerPages(e *echo.Echo, a *app) {
	e.GET("/", a.pages.Index)
	e.GET("/zone/:zid", a.pages.Zone, middleware.RequireZoneRole(a.authz, "zid", model.RoleViewer))
	// the cache sits behind the role check so a hit is never served to an outsider
	e.GET("/zone/image/:zid", a.zones.Image,
		middleware.RequireZoneRole(a.authz, "zid", model.RoleViewer),
		a.cache.Middleware(),
	)
	e.GET("/bookings", a.pages.MyBookings)

	adminOnly := middleware.RequireAdmin()
	e.GET("/bookings/report", a.pages.Report, adminOnly)
	e.GET("/users", a.pages.Users, adminOnly)
	e.GET("/groups", a.pages.Groups, adminOnly)
	e.GET("/zones", a.pages.Zones, adminOnly)
	e.GET("/groups/assign/:login", a.pages.GroupMembers, adminOnly)
	e.GET("/zones/assign/:zid", a.pages.ZoneAssign, adminOnly)
	e.GET("/zones/modify/:zid", a.pages.ZoneModify, adminOnly)
}

// registerAPI registers the JSON endpoints open to every logged-in user.
// Zone scoped routes check the zone role before the handler runs.
func registerAPI(e *echo.Echo, a *app) {
	g := e.Group("/api")

	// ---- Bookings ----
	g.GET("/bookings", a.bookings.List)
	g.POST("/bookings", a.bookings.Create)
	g.PUT("/bookings/:id", a.bookings.Rebook)
	g.DELETE("/bookings/:id", a.bookings.Delete)

	// ---- Zones ----
	g.GET("/zones", a.zones.MyZones)
	g.GET("/zones/:zid/seats", a.zones.Seats, middleware.RequireZoneRole(a.authz, "zid", model.RoleViewer))

	// ---- Seats (zone admin) ----
	zoneAdmin := middleware.RequireZoneRole(a.authz, "zid", model.RoleAdmin)
	g.POST("/zones/:zid/seats", a.zones.CreateSeat, zoneAdmin)
	g.PUT("/zones/:zid/seats/:sid", a.zones.UpdateSeat, zoneAdmin)
	g.DELETE("/zones/:zid/seats/:sid", a.zones.DeleteSeat, zoneAdmin)
	g.PUT("/zones/:zid/seats/:sid/assign", a.zones.AssignSeat, zoneAdmin)
}

// registerAdmin registers the account administration API under
// /api/admin.  Every route requires an account admin.
func registerAdmin(e *echo.Echo, a *app) {
	g := e.Group("/api/admin", middleware.RequireAdmin())

	// ---- Users ----
	g.GET("/users", a.admin.ListUsers)
	g.POST("/users", a.admin.CreateUser)
	g.PUT("/users/:login", a.admin.UpdateUser)
	g.DELETE("/users/:login", a.admin.DeleteUser)

	// ---- Groups ----
	g.GET("/groups", a.admin.ListGroups)
	g.POST("/groups", a.admin.CreateGroup)
	g.DELETE("/groups/:login", a.admin.DeleteGroup)
	g.GET("/groups/:login/members", a.admin.Members)
	g.POST("/groups/:login/members", a.admin.AddMember)
	g.DELETE("/groups/:login/members/:member", a.admin.RemoveMember)

	// ---- Zones ----
	g.GET("/zones", a.admin.ListZones)
	g.POST("/zones", a.admin.CreateZone)
	g.PUT("/zones/:zid", a.admin.UpdateZone)
	g.DELETE("/zones/:zid", a.admin.DeleteZone)
	g.PUT("/zones/:zid/image", a.zones.UploadImage)
	g.GET("/zones/:zid/assign", a.admin.Assignments)
	g.PUT("/zones/:zid/assign", a.admin.Assign)
	g.DELETE("/zones/:zid/assign/:login", a.admin.Unassign)
}
