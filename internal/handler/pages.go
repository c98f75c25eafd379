package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"

	"github.com/sdoering/warp/internal/middleware"
	"github.com/sdoering/warp/internal/model"
	"github.com/sdoering/warp/internal/repository"
	"github.com/sdoering/warp/internal/service"
	"github.com/sdoering/warp/internal/view"
)

// PageHandler renders the server-side pages.
type PageHandler struct {
	Repos    *repository.Repos
	Bookings *service.Bookings
	Log      *slog.Logger

	Now func() time.Time
}

func NewPageHandler(repos *repository.Repos, bookings *service.Bookings, log *slog.Logger) *PageHandler {
	return &PageHandler{Repos: repos, Bookings: bookings, Log: log, Now: time.Now}
}

// Index renders GET /: the zones the caller has a role on.
func (h *PageHandler) Index(c echo.Context) error {
	id := identity(c)
	zones, err := h.Repos.Zones.ListForLogin(c.Request().Context(), id.Login)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return render(c, http.StatusOK, view.IndexPage(id, zones))
}

// Zone renders GET /zone/:zid with today's bookings, or the day given by
// ?day=YYYY-MM-DD.  RequireZoneRole has stored the caller's role.
func (h *PageHandler) Zone(c echo.Context) error {
	zid, ok := paramID(c, "zid")
	if !ok {
		return fail(c, h.Log, repository.ErrZoneNotFound)
	}
	day := h.Now().UTC().Truncate(24 * time.Hour)
	if v := c.QueryParam("day"); v != "" {
		t, err := time.Parse(time.DateOnly, v)
		if err != nil {
			return c.String(http.StatusBadRequest, "invalid day")
		}
		day = t
	}

	id := identity(c)
	ctx := c.Request().Context()
	d := view.ZoneData{Role: middleware.ZoneRole(c), Day: day.Format(time.DateOnly)}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		z, err := h.Repos.Zones.GetByID(gctx, zid)
		if err == nil {
			d.Zone = *z
		}
		return err
	})
	g.Go(func() error {
		var err error
		d.Seats, err = h.Repos.Seats.ListByZone(gctx, zid)
		return err
	})
	g.Go(func() error {
		var err error
		d.Assignees, err = h.Repos.Seats.AssigneesByZone(gctx, zid)
		return err
	})
	g.Go(func() error {
		var err error
		d.Bookings, _, err = h.Bookings.List(gctx, id, service.ListQuery{
			ZoneID: zid,
			From:   day.Unix(),
			To:     day.Add(24 * time.Hour).Unix(),
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return fail(c, h.Log, err)
	}
	return render(c, http.StatusOK, view.ZonePage(id, d))
}

// MyBookings renders GET /bookings: the caller's bookings from today on.
func (h *PageHandler) MyBookings(c echo.Context) error {
	id := identity(c)
	from, _ := service.BookingWindow(h.Now(), 0)
	rows, truncated, err := h.Bookings.List(c.Request().Context(), id, service.ListQuery{From: from})
	if err != nil {
		return fail(c, h.Log, err)
	}
	return render(c, http.StatusOK, view.BookingsPage(id, "My bookings", "bookings", rows, truncated))
}

// Report renders GET /bookings/report for admins.  The query string takes
// the same zone, login, from and to parameters as the JSON listing.
func (h *PageHandler) Report(c echo.Context) error {
	q, err := listQuery(c)
	if err != nil {
		return c.String(http.StatusBadRequest, "invalid query parameter")
	}
	q.Report = true
	id := identity(c)
	rows, truncated, err := h.Bookings.List(c.Request().Context(), id, q)
	if err != nil {
		return fail(c, h.Log, err)
	}
	if truncated {
		c.Response().Header().Set(TruncatedHeader, "true")
	}
	return render(c, http.StatusOK, view.BookingsPage(id, "Report", "report", rows, truncated))
}

// Users renders GET /users.
func (h *PageHandler) Users(c echo.Context) error {
	people, err := h.Repos.Users.ListPeople(c.Request().Context())
	if err != nil {
		return fail(c, h.Log, err)
	}
	return render(c, http.StatusOK, view.UsersPage(identity(c), people))
}

// Groups renders GET /groups with each group's members.
func (h *PageHandler) Groups(c echo.Context) error {
	ctx := c.Request().Context()
	groups, err := h.Repos.Users.ListGroups(ctx)
	if err != nil {
		return fail(c, h.Log, err)
	}
	members := make(map[string][]model.Person, len(groups))
	for _, g := range groups {
		if members[g.Login], err = h.Repos.Users.Members(ctx, g.Login); err != nil {
			return fail(c, h.Log, err)
		}
	}
	return render(c, http.StatusOK, view.GroupsPage(identity(c), groups, members))
}

// Zones renders GET /zones.
func (h *PageHandler) Zones(c echo.Context) error {
	zones, err := h.Repos.Zones.List(c.Request().Context())
	if err != nil {
		return fail(c, h.Log, err)
	}
	return render(c, http.StatusOK, view.ZonesPage(identity(c), zones))
}

// GroupMembers renders GET /groups/assign/:login.
func (h *PageHandler) GroupMembers(c echo.Context) error {
	ctx := c.Request().Context()
	g, err := h.Repos.Users.GetGroup(ctx, c.Param("login"))
	if err != nil {
		return fail(c, h.Log, err)
	}
	members, err := h.Repos.Users.Members(ctx, g.Login)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return render(c, http.StatusOK, view.GroupMembersPage(identity(c), g, members))
}

// ZoneAssign renders GET /zones/assign/:zid.
func (h *PageHandler) ZoneAssign(c echo.Context) error {
	zid, ok := paramID(c, "zid")
	if !ok {
		return fail(c, h.Log, repository.ErrZoneNotFound)
	}
	ctx := c.Request().Context()
	z, err := h.Repos.Zones.GetByID(ctx, zid)
	if err != nil {
		return fail(c, h.Log, err)
	}
	list, err := h.Repos.Assign.List(ctx, zid)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return render(c, http.StatusOK, view.ZoneAssignPage(identity(c), *z, list))
}

// ZoneModify renders GET /zones/modify/:zid.
func (h *PageHandler) ZoneModify(c echo.Context) error {
	zid, ok := paramID(c, "zid")
	if !ok {
		return fail(c, h.Log, repository.ErrZoneNotFound)
	}
	var (
		z         *model.Zone
		seats     []model.Seat
		assignees map[int64][]string
	)
	g, ctx := errgroup.WithContext(c.Request().Context())
	g.Go(func() (err error) {
		z, err = h.Repos.Zones.GetByID(ctx, zid)
		return err
	})
	g.Go(func() (err error) {
		seats, err = h.Repos.Seats.ListByZone(ctx, zid)
		return err
	})
	g.Go(func() (err error) {
		assignees, err = h.Repos.Seats.AssigneesByZone(ctx, zid)
		return err
	})
	if err := g.Wait(); err != nil {
		return fail(c, h.Log, err)
	}
	return render(c, http.StatusOK, view.ZoneModifyPage(identity(c), *z, seats, assignees))
}
