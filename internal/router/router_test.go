package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdoering/warp/internal/config"
	"github.com/sdoering/warp/internal/database"
	"github.com/sdoering/warp/internal/middleware"
	"github.com/sdoering/warp/internal/model"
	"github.com/sdoering/warp/internal/repository"
	"github.com/sdoering/warp/internal/utils"
)

const testSecret = "router-test-secret"

type site struct {
	e     *echo.Echo
	repos *repository.Repos
	zone  model.Zone
	seat  model.Seat
}

// newSite serves the full app on a fresh SQLite database.  root is an
// account admin, alice a user of "Floor 1", bob has no zone role.
func newSite(t *testing.T) site {
	t.Helper()
	ctx := context.Background()
	repos := repository.NewRepos(database.OpenTestSQLite(t))

	hash, err := utils.HashPassword("secret")
	require.NoError(t, err)
	require.NoError(t, repos.Users.CreatePerson(ctx, model.Person{Login: "root", AccountType: model.AccountAdmin, PasswordHash: hash}))
	require.NoError(t, repos.Users.CreatePerson(ctx, model.Person{Login: "alice", Name: "Alice", AccountType: model.AccountUser, PasswordHash: hash}))
	require.NoError(t, repos.Users.CreatePerson(ctx, model.Person{Login: "bob", AccountType: model.AccountUser, PasswordHash: hash}))

	z := model.Zone{ZoneGroup: "HQ", Name: "Floor 1"}
	require.NoError(t, repos.Zones.Create(ctx, &z))
	s := model.Seat{ZoneID: z.ID, Name: "A1", Enabled: true}
	require.NoError(t, repos.Seats.Create(ctx, &s))
	require.NoError(t, repos.Assign.Assign(ctx, model.ZoneAssign{ZoneID: z.ID, Login: "alice", Role: model.RoleUser}))

	cfg := config.Defaults()
	cfg.SecretKey = testSecret

	e := echo.New()
	RegisterRoutes(e, Deps{Config: cfg, Repos: repos})
	return site{e: e, repos: repos, zone: z, seat: s}
}

func (s site) do(method, path, login string, body []byte, contentType string, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	if login != "" {
		tok, _ := utils.SignSession(testSecret, login, time.Now())
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: tok})
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s site) json(method, path, login string, v any) *httptest.ResponseRecorder {
	var body []byte
	if v != nil {
		body, _ = json.Marshal(v)
	}
	return s.do(method, path, login, body, echo.MIMEApplicationJSON, nil)
}

// tomorrow returns [09:00, 10:00) UTC of the next day, which is always
// inside the booking window.
func tomorrow() (int64, int64) {
	d := time.Now().UTC().AddDate(0, 0, 1)
	from := time.Date(d.Year(), d.Month(), d.Day(), 9, 0, 0, 0, time.UTC)
	return from.Unix(), from.Add(time.Hour).Unix()
}

func TestHealthEndpoints(t *testing.T) {
	s := newSite(t)

	rec := s.do(http.MethodGet, "/up", "", nil, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = s.do(http.MethodGet, "/healthz", "", nil, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestLoginFlow(t *testing.T) {
	s := newSite(t)
	form := func(login, pw string) []byte {
		return []byte(url.Values{"login": {login}, "password": {pw}}.Encode())
	}

	rec := s.do(http.MethodPost, "/login", "", form("alice", "nope"), echo.MIMEApplicationForm, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Wrong username or password")

	// an unknown login looks exactly like a wrong password
	rec = s.do(http.MethodPost, "/login", "", form("ghost", "secret"), echo.MIMEApplicationForm, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Wrong username or password")

	rec = s.do(http.MethodPost, "/login", "", form("alice", "secret"), echo.MIMEApplicationForm, nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get(echo.HeaderLocation))

	var session *http.Cookie
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == middleware.SessionCookie {
			session = ck
		}
	}
	require.NotNil(t, session)
	assert.True(t, session.HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(session)
	page := httptest.NewRecorder()
	s.e.ServeHTTP(page, req)
	assert.Equal(t, http.StatusOK, page.Code)
	assert.Contains(t, page.Body.String(), "Floor 1")

	rec = s.do(http.MethodGet, "/", "", nil, "", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get(echo.HeaderLocation))
}

func TestLoginJSON(t *testing.T) {
	s := newSite(t)

	rec := s.json(http.MethodPost, "/login", "", map[string]string{"login": "root", "password": "secret"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"login":"root","name":"","is_admin":true}`, rec.Body.String())

	rec = s.json(http.MethodPost, "/login", "", map[string]string{"login": "root", "password": "x"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"Wrong username or password"}`, rec.Body.String())
}

func TestBookingAPI(t *testing.T) {
	s := newSite(t)
	from, to := tomorrow()
	req := map[string]int64{"seat_id": s.seat.ID, "from_ts": from, "to_ts": to}

	rec := s.json(http.MethodPost, "/api/bookings", "", req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"unauthenticated"}`, rec.Body.String())

	rec = s.json(http.MethodPost, "/api/bookings", "alice", req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotZero(t, created.ID)

	rec = s.json(http.MethodPost, "/api/bookings", "alice", map[string]int64{"seat_id": s.seat.ID, "from_ts": from + 1800, "to_ts": to + 1800})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"error":"booking conflict"}`, rec.Body.String())

	// bob has no role on the zone
	rec = s.json(http.MethodPost, "/api/bookings", "bob", map[string]int64{"seat_id": s.seat.ID, "from_ts": to, "to_ts": to + 3600})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.json(http.MethodGet, "/api/bookings", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t,
		fmt.Sprintf(`[{"id":%d,"login":"alice","seat_id":%d,"from_ts":%d,"to_ts":%d}]`, created.ID, s.seat.ID, from, to),
		rec.Body.String())

	path := fmt.Sprintf("/api/bookings/%d", created.ID)
	rec = s.json(http.MethodDelete, path, "bob", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.json(http.MethodDelete, path, "alice", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.json(http.MethodDelete, path, "alice", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReportIsAdminOnly(t *testing.T) {
	s := newSite(t)

	rec := s.json(http.MethodGet, "/api/bookings?report=1", "alice", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.json(http.MethodGet, "/api/bookings?report=1", "root", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = s.do(http.MethodGet, "/bookings/report", "alice", nil, "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminAPI(t *testing.T) {
	s := newSite(t)

	rec := s.json(http.MethodGet, "/api/admin/users", "alice", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.json(http.MethodPost, "/api/admin/users", "root", map[string]string{"login": "dora", "name": "Dora", "password": "pw"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"login":"dora","name":"Dora","account_type":"user","has_password":true}`, rec.Body.String())

	rec = s.json(http.MethodPost, "/api/admin/users", "root", map[string]string{"login": "dora"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.json(http.MethodPost, "/api/admin/groups", "root", map[string]string{"login": "ops", "name": "Ops"})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = s.json(http.MethodPost, "/api/admin/groups/ops/members", "root", map[string]string{"login": "dora"})
	require.Equal(t, http.StatusNoContent, rec.Code)

	zonePath := fmt.Sprintf("/api/admin/zones/%d/assign", s.zone.ID)
	rec = s.json(http.MethodPut, zonePath, "root", map[string]string{"login": "ops", "role": "viewer"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"login":"ops","role":"viewer"}`, rec.Body.String())

	rec = s.json(http.MethodGet, "/api/zones", "dora", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"role":"viewer"`)

	rec = s.json(http.MethodDelete, "/api/admin/users/root", "root", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSeatManagementNeedsZoneAdmin(t *testing.T) {
	s := newSite(t)
	path := fmt.Sprintf("/api/zones/%d/seats", s.zone.ID)

	rec := s.json(http.MethodPost, path, "alice", map[string]any{"name": "B1", "x": 10, "y": 20})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.json(http.MethodPost, path, "root", map[string]any{"name": "B1", "x": 10, "y": 20})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.json(http.MethodPut, fmt.Sprintf("%s/%d/assign", path, s.seat.ID), "root", map[string][]string{"logins": {"alice"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"assignees":["alice"]`)

	rec = s.json(http.MethodGet, path, "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var seats []struct {
		Name string `json:"name"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &seats))
	assert.Len(t, seats, 2)
}

func TestZoneImage(t *testing.T) {
	s := newSite(t)
	png := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 32)...)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("image", "floor.png")
	require.NoError(t, err)
	_, _ = fw.Write(png)
	require.NoError(t, mw.Close())

	upload := fmt.Sprintf("/api/admin/zones/%d/image", s.zone.ID)
	rec := s.do(http.MethodPut, upload, "alice", buf.Bytes(), mw.FormDataContentType(), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodPut, upload, "root", buf.Bytes(), mw.FormDataContentType(), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	img := fmt.Sprintf("/zone/image/%d", s.zone.ID)
	rec = s.do(http.MethodGet, img, "alice", nil, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get(echo.HeaderContentType))
	assert.Equal(t, png, rec.Body.Bytes())
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)
	assert.Equal(t, `"`+repository.ContentETag(png)+`"`, etag)

	rec = s.do(http.MethodGet, img, "alice", nil, "", map[string]string{"If-None-Match": etag})
	assert.Equal(t, http.StatusNotModified, rec.Code)

	rec = s.do(http.MethodGet, img, "bob", nil, "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestZonePageShowsSeats(t *testing.T) {
	s := newSite(t)

	rec := s.do(http.MethodGet, fmt.Sprintf("/zone/%d", s.zone.ID), "alice", nil, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "Floor 1") && strings.Contains(body, "A1"), body)

	rec = s.do(http.MethodGet, fmt.Sprintf("/zone/%d", s.zone.ID), "bob", nil, "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminDetailPages(t *testing.T) {
	s := newSite(t)
	ctx := context.Background()
	require.NoError(t, s.repos.Users.CreateGroup(ctx, model.Group{Login: "ops", Name: "Ops"}))
	require.NoError(t, s.repos.Users.AddMember(ctx, "ops", "alice"))
	require.NoError(t, s.repos.Seats.SetAssignees(ctx, s.zone.ID, s.seat.ID, []string{"alice"}))

	rec := s.do(http.MethodGet, "/groups/assign/ops", "root", nil, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Ops (ops)")
	assert.Contains(t, rec.Body.String(), "Alice")

	rec = s.do(http.MethodGet, "/groups/assign/alice", "root", nil, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodGet, fmt.Sprintf("/zones/assign/%d", s.zone.ID), "root", nil, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<td>alice</td><td>user</td>")

	rec = s.do(http.MethodGet, fmt.Sprintf("/zones/modify/%d", s.zone.ID), "root", nil, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Floor 1: seats")
	assert.Contains(t, body, "<td>A1</td>")
	assert.Contains(t, body, "<td>alice</td>")

	rec = s.do(http.MethodGet, "/zones/modify/9999", "root", nil, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	for _, path := range []string{"/groups/assign/ops", fmt.Sprintf("/zones/assign/%d", s.zone.ID), fmt.Sprintf("/zones/modify/%d", s.zone.ID)} {
		rec = s.do(http.MethodGet, path, "alice", nil, "", nil)
		assert.Equal(t, http.StatusForbidden, rec.Code, path)
	}
}
