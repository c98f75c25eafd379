package handler

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/sdoering/warp/internal/middleware"
	"github.com/sdoering/warp/internal/model"
	"github.com/sdoering/warp/internal/repository"
)

// Purger drops a cached GET response; *middleware.ResponseCache is one.
type Purger interface {
	Purge(ctx context.Context, path string)
}

// purgeZoneImage drops the cached /zone/image/:zid response.
func purgeZoneImage(ctx context.Context, p Purger, zid int64) {
	if p == nil {
		return
	}
	p.Purge(ctx, "/zone/image/"+strconv.FormatInt(zid, 10))
}

// ZoneHandler serves zone reads, seat management and zone images.
type ZoneHandler struct {
	Repos      *repository.Repos
	Cache      Purger // may be nil
	MaxMapSize int64
	Log        *slog.Logger
}

func NewZoneHandler(repos *repository.Repos, cache Purger, maxMapSize int64, log *slog.Logger) *ZoneHandler {
	return &ZoneHandler{Repos: repos, Cache: cache, MaxMapSize: maxMapSize, Log: log}
}

type zoneJSON struct {
	ID        int64  `json:"id"`
	ZoneGroup string `json:"zone_group"`
	Name      string `json:"name"`
	Role      string `json:"role,omitempty"`
	HasImage  bool   `json:"has_image"`
}

type seatJSON struct {
	ID        int64    `json:"id"`
	ZoneID    int64    `json:"zone_id"`
	Name      string   `json:"name"`
	X         int      `json:"x"`
	Y         int      `json:"y"`
	Enabled   bool     `json:"enabled"`
	Assignees []string `json:"assignees"`
}

func toSeatJSON(s model.Seat, assignees []string) seatJSON {
	if assignees == nil {
		assignees = []string{}
	}
	return seatJSON{ID: s.ID, ZoneID: s.ZoneID, Name: s.Name, X: s.X, Y: s.Y, Enabled: s.Enabled, Assignees: assignees}
}

// MyZones handles GET /api/zones: the zones the caller has a role on.
func (h *ZoneHandler) MyZones(c echo.Context) error {
	zones, err := h.Repos.Zones.ListForLogin(c.Request().Context(), identity(c).Login)
	if err != nil {
		return fail(c, h.Log, err)
	}
	out := make([]zoneJSON, 0, len(zones))
	for _, z := range zones {
		out = append(out, zoneJSON{ID: z.ID, ZoneGroup: z.ZoneGroup, Name: z.Name, Role: z.Role.String(), HasImage: z.ImageID != nil})
	}
	return c.JSON(http.StatusOK, out)
}

// Seats handles GET /api/zones/:zid/seats.  RequireZoneRole has run.
func (h *ZoneHandler) Seats(c echo.Context) error {
	zid, _ := paramID(c, "zid")
	ctx := c.Request().Context()
	seats, err := h.Repos.Seats.ListByZone(ctx, zid)
	if err != nil {
		return fail(c, h.Log, err)
	}
	assignees, err := h.Repos.Seats.AssigneesByZone(ctx, zid)
	if err != nil {
		return fail(c, h.Log, err)
	}
	out := make([]seatJSON, 0, len(seats))
	for _, s := range seats {
		out = append(out, toSeatJSON(s, assignees[s.ID]))
	}
	return c.JSON(http.StatusOK, out)
}

type seatReq struct {
	Name    string `json:"name"`
	X       int    `json:"x"`
	Y       int    `json:"y"`
	Enabled *bool  `json:"enabled"`
}

func (r seatReq) seat(zoneID int64) (model.Seat, bool) {
	s := model.Seat{ZoneID: zoneID, Name: strings.TrimSpace(r.Name), X: r.X, Y: r.Y, Enabled: true}
	if r.Enabled != nil {
		s.Enabled = *r.Enabled
	}
	return s, s.Name != "" && s.X >= 0 && s.Y >= 0
}

// CreateSeat handles POST /api/zones/:zid/seats (zone admin).
func (h *ZoneHandler) CreateSeat(c echo.Context) error {
	zid, _ := paramID(c, "zid")
	var req seatReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	s, ok := req.seat(zid)
	if !ok {
		return badRequest(c, "name is required and coordinates must not be negative")
	}
	if err := h.Repos.Seats.Create(c.Request().Context(), &s); err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, toSeatJSON(s, nil))
}

// UpdateSeat handles PUT /api/zones/:zid/seats/:sid (zone admin).
func (h *ZoneHandler) UpdateSeat(c echo.Context) error {
	zid, _ := paramID(c, "zid")
	sid, ok := paramID(c, "sid")
	if !ok {
		return fail(c, h.Log, repository.ErrSeatNotFound)
	}
	var req seatReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	s, ok := req.seat(zid)
	if !ok {
		return badRequest(c, "name is required and coordinates must not be negative")
	}
	s.ID = sid
	ctx := c.Request().Context()
	if err := h.Repos.Seats.Update(ctx, s); err != nil {
		return fail(c, h.Log, err)
	}
	// the allow-list is untouched by an update
	list, err := h.Repos.Seats.Assignees(ctx, sid)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toSeatJSON(s, list))
}

// DeleteSeat handles DELETE /api/zones/:zid/seats/:sid (zone admin).
func (h *ZoneHandler) DeleteSeat(c echo.Context) error {
	zid, _ := paramID(c, "zid")
	sid, ok := paramID(c, "sid")
	if !ok {
		return fail(c, h.Log, repository.ErrSeatNotFound)
	}
	if err := h.Repos.Seats.Delete(c.Request().Context(), zid, sid); err != nil {
		return fail(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// AssignSeat handles PUT /api/zones/:zid/seats/:sid/assign with body
// {"logins": [...]}.  An empty list lifts the restriction.
func (h *ZoneHandler) AssignSeat(c echo.Context) error {
	zid, _ := paramID(c, "zid")
	sid, ok := paramID(c, "sid")
	if !ok {
		return fail(c, h.Log, repository.ErrSeatNotFound)
	}
	var body struct {
		Logins []string `json:"logins"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	ctx := c.Request().Context()
	if err := h.Repos.Seats.SetAssignees(ctx, zid, sid, body.Logins); err != nil {
		return fail(c, h.Log, err)
	}
	s, err := h.Repos.Seats.GetByID(ctx, sid)
	if err != nil {
		return fail(c, h.Log, err)
	}
	list, err := h.Repos.Seats.Assignees(ctx, sid)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toSeatJSON(*s, list))
}

// Image handles GET /zone/image/:zid.  Access is checked by
// RequireZoneRole in front of the response cache.
func (h *ZoneHandler) Image(c echo.Context) error {
	zid, ok := paramID(c, "zid")
	if !ok {
		return fail(c, h.Log, repository.ErrZoneNotFound)
	}
	blob, err := h.Repos.Blobs.ZoneImage(c.Request().Context(), zid)
	if err != nil {
		return fail(c, h.Log, err)
	}
	etag := `"` + blob.ETag + `"`
	hdr := c.Response().Header()
	hdr.Set("ETag", etag)
	hdr.Set("Cache-Control", "private, no-cache")
	if middleware.ETagMatches(c.Request().Header.Get("If-None-Match"), etag) {
		return c.NoContent(http.StatusNotModified)
	}
	return c.Blob(http.StatusOK, blob.MimeType, blob.Data)
}

// UploadImage handles PUT /api/admin/zones/:zid/image.  The multipart
// field "image" replaces the zone's background; the previous blob is
// deleted in the same transaction.
func (h *ZoneHandler) UploadImage(c echo.Context) error {
	zid, ok := paramID(c, "zid")
	if !ok {
		return fail(c, h.Log, repository.ErrZoneNotFound)
	}
	fh, err := c.FormFile("image")
	if err != nil {
		return badRequest(c, "multipart field image is required")
	}
	if h.MaxMapSize > 0 && fh.Size > h.MaxMapSize {
		return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{"error": "image too large"})
	}
	f, err := fh.Open()
	if err != nil {
		return badRequest(c, "unreadable upload")
	}
	defer f.Close()

	limit := h.MaxMapSize
	if limit <= 0 {
		limit = 1 << 30
	}
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return badRequest(c, "unreadable upload")
	}
	if int64(len(data)) > limit {
		return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{"error": "image too large"})
	}
	mime := fh.Header.Get(echo.HeaderContentType)
	if mime == "" || mime == echo.MIMEOctetStream {
		mime = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mime, "image/") {
		return c.JSON(http.StatusUnsupportedMediaType, echo.Map{"error": "not an image"})
	}

	ctx := c.Request().Context()
	var blob *model.Blob
	err = h.Repos.DB.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		if blob, err = h.Repos.Blobs.CreateTx(ctx, tx, mime, data); err != nil {
			return err
		}
		old, err := h.Repos.Zones.SetImageTx(ctx, tx, zid, blob.ID)
		if err != nil {
			return err
		}
		if old != nil {
			return h.Repos.Blobs.DeleteTx(ctx, tx, *old)
		}
		return nil
	})
	if err != nil {
		return fail(c, h.Log, err)
	}
	purgeZoneImage(ctx, h.Cache, zid)
	return c.JSON(http.StatusOK, echo.Map{"zone_id": zid, "image_id": blob.ID, "etag": blob.ETag})
}
