package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdoering/warp/internal/database"
	"github.com/sdoering/warp/internal/model"
	"github.com/sdoering/warp/internal/repository"
)

type recordingPurger struct {
	mu    sync.Mutex
	paths []string
}

func (p *recordingPurger) Purge(_ context.Context, path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paths = append(p.paths, path)
}

func newZoneFixture(t *testing.T) (*repository.Repos, model.Zone, model.Seat) {
	t.Helper()
	ctx := context.Background()
	repos := repository.NewRepos(database.OpenTestSQLite(t))

	require.NoError(t, repos.Users.CreatePerson(ctx, model.Person{Login: "alice", Name: "Alice", AccountType: model.AccountUser}))
	z := model.Zone{Name: "Floor 1"}
	require.NoError(t, repos.Zones.Create(ctx, &z))
	s := model.Seat{ZoneID: z.ID, Name: "A1", X: 10, Y: 20, Enabled: true}
	require.NoError(t, repos.Seats.Create(ctx, &s))
	return repos, z, s
}

func paramContext(e *echo.Echo, req *http.Request, names []string, values ...int64) (echo.Context, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	vals := make([]string, len(values))
	for i, v := range values {
		vals[i] = strconv.FormatInt(v, 10)
	}
	c.SetParamNames(names...)
	c.SetParamValues(vals...)
	return c, rec
}

func TestDeleteZone_PurgesImageCache(t *testing.T) {
	repos, z, _ := newZoneFixture(t)
	purger := &recordingPurger{}
	h := NewAdminHandler(repos, purger, nil)

	e := echo.New()
	req := httptest.NewRequest(http.MethodDelete, "/api/admin/zones/"+strconv.FormatInt(z.ID, 10), nil)
	c, rec := paramContext(e, req, []string{"zid"}, z.ID)

	require.NoError(t, h.DeleteZone(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"/zone/image/" + strconv.FormatInt(z.ID, 10)}, purger.paths)

	_, err := repos.Zones.GetByID(context.Background(), z.ID)
	assert.ErrorIs(t, err, repository.ErrZoneNotFound)
}

func TestDeleteZone_NilCache(t *testing.T) {
	repos, z, _ := newZoneFixture(t)
	h := NewAdminHandler(repos, nil, nil)

	e := echo.New()
	req := httptest.NewRequest(http.MethodDelete, "/", nil)
	c, rec := paramContext(e, req, []string{"zid"}, z.ID)

	require.NoError(t, h.DeleteZone(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestUpdateSeat_KeepsAssignees(t *testing.T) {
	repos, z, s := newZoneFixture(t)
	ctx := context.Background()
	require.NoError(t, repos.Seats.SetAssignees(ctx, z.ID, s.ID, []string{"alice"}))
	h := NewZoneHandler(repos, nil, 0, nil)

	e := echo.New()
	body := `{"name":"A1 window","x":15,"y":25}`
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c, rec := paramContext(e, req, []string{"zid", "sid"}, z.ID, s.ID)

	require.NoError(t, h.UpdateSeat(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var got seatJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "A1 window", got.Name)
	assert.Equal(t, []string{"alice"}, got.Assignees)
}
