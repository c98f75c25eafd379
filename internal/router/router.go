package router // package router defines how HTTP routes are registered for the app

import (
	"log/slog"
	"strconv"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/sdoering/warp/internal/config"
	"github.com/sdoering/warp/internal/handler"
	"github.com/sdoering/warp/internal/metrics"
	"github.com/sdoering/warp/internal/middleware"
	"github.com/sdoering/warp/internal/repository"
	"github.com/sdoering/warp/internal/service"
	"github.com/sdoering/warp/internal/view"
)

// Deps is everything the routes need.  Redis may be nil, in which case
// rate limiting runs in-process and the response cache is off.
type Deps struct {
	Config config.Config
	Repos  *repository.Repos
	Redis  *redis.Client
	Events service.EventPublisher
	Log    *slog.Logger
}

// app holds the handlers and shared services built from Deps.
type app struct {
	authz    *service.Authorizer
	auth     *handler.AuthHandler
	bookings *handler.BookingHandler
	zones    *handler.ZoneHandler
	admin    *handler.AdminHandler
	pages    *handler.PageHandler
	cache    *middleware.ResponseCache
}

func build(d Deps) *app {
	cfg := d.Config
	bookings := service.NewBookings(d.Repos, d.Events, d.Log, cfg.WeeksInAdvance, cfg.MaxReportRows)
	cache := middleware.NewResponseCache(cfg.Cache, d.Redis, d.Log)
	return &app{
		authz:    service.NewAuthorizer(d.Repos.Assign),
		auth:     handler.NewAuthHandler(service.NewAccounts(d.Repos.Users, cfg.SecretKey, d.Log), d.Repos.Users, cfg.CookieSecure, d.Log),
		bookings: handler.NewBookingHandler(bookings, d.Log),
		zones:    handler.NewZoneHandler(d.Repos, cache, cfg.MaxMapSize, d.Log),
		admin:    handler.NewAdminHandler(d.Repos, cache, d.Log),
		pages:    handler.NewPageHandler(d.Repos, bookings, d.Log),
		cache:    cache,
	}
}

// RegisterRoutes installs the global middleware chain and every route.
// Session runs for all requests; public paths are let through by it.
func RegisterRoutes(e *echo.Echo, d Deps) {
	if d.Log == nil {
		d.Log = slog.Default()
	}
	a := build(d)

	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLogger(d.Log))
	e.Use(echomw.Recover())
	if d.Config.MaxContentLength > 0 {
		e.Use(echomw.BodyLimitWithConfig(echomw.BodyLimitConfig{Limit: bodyLimit(d.Config.MaxContentLength)}))
	}
	e.Use(metrics.Instrument())
	e.Use(middleware.Session(d.Config.SecretKey, service.NewSessionValidator(d.Repos.Users, d.Config.SessionLifetime), d.Log))

	// health and metrics endpoints sit outside the session
	e.GET("/up", handler.Up)
	e.GET("/healthz", handler.Health(d.Repos.DB))
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
	e.StaticFS("/static", echo.MustSubFS(view.Static, "static"))

	registerAuth(e, a, middleware.RateLimit(d.Config.RateLimit, d.Redis, d.Log))
	registerPages(e, a)
	registerAPI(e, a)
	registerAdmin(e, a)
}

// registerAuth registers login, logout and the identity endpoint.  The
// limiter guards only the credential check.
func registerAuth(e *echo.Echo, a *app, limiter echo.MiddlewareFunc) {
	e.GET("/login", a.auth.LoginPage)
	e.POST("/login", a.auth.Login, limiter)
	e.GET("/logout", a.auth.Logout)
	e.POST("/logout", a.auth.Logout)
	e.GET("/api/me", a.auth.Me)
}

// bodyLimit renders a byte count for BodyLimit, which also accepts a bare
// number of bytes.
func bodyLimit(n int64) string {
	return strconv.FormatInt(n, 10)
}
