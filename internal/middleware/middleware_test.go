package middleware

import (
    "context"
    "net/http"
    "net/http/httptest"
    "testing"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/sdoering/warp/internal/config"
    "github.com/sdoering/warp/internal/model"
    "github.com/sdoering/warp/internal/service"
    "github.com/sdoering/warp/internal/utils"
)

const secret = "test-secret"

type fakeValidator struct {
    blocked map[string]bool
}

func (f fakeValidator) Validate(_ context.Context, claims utils.SessionClaims) (service.Identity, error) {
    if f.blocked[claims.Login] {
        return service.Identity{}, service.ErrUnauthenticated
    }
    return service.Identity{Login: claims.Login, IsAdmin: claims.Login == "root"}, nil
}

func newEcho() *echo.Echo {
    e := echo.New()
    e.Use(Session(secret, fakeValidator{blocked: map[string]bool{"mallory": true}}, nil))
    whoami := func(c echo.Context) error {
        id, _ := CurrentIdentity(c)
        return c.String(http.StatusOK, id.Login)
    }
    e.GET("/", whoami)
    e.GET("/api/me", whoami)
    e.GET("/login", func(c echo.Context) error { return c.String(http.StatusOK, "login page") })
    e.GET("/api/admin/users", whoami, RequireAdmin())
    return e
}

func do(e *echo.Echo, method, path, login string) *httptest.ResponseRecorder {
    req := httptest.NewRequest(method, path, nil)
    if login != "" {
        tok, _ := utils.SignSession(secret, login, time.Now())
        req.AddCookie(&http.Cookie{Name: SessionCookie, Value: tok})
    }
    rec := httptest.NewRecorder()
    e.ServeHTTP(rec, req)
    return rec
}

func TestSession_PagesRedirectAPIsGet401(t *testing.T) {
    e := newEcho()

    rec := do(e, http.MethodGet, "/", "")
    assert.Equal(t, http.StatusSeeOther, rec.Code)
    assert.Equal(t, "/login", rec.Header().Get(echo.HeaderLocation))

    rec = do(e, http.MethodGet, "/api/me", "")
    assert.Equal(t, http.StatusUnauthorized, rec.Code)
    assert.JSONEq(t, `{"error":"unauthenticated"}`, rec.Body.String())

    rec = do(e, http.MethodGet, "/login", "")
    assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSession_ValidCookie(t *testing.T) {
    e := newEcho()

    rec := do(e, http.MethodGet, "/api/me", "alice")
    require.Equal(t, http.StatusOK, rec.Code)
    assert.Equal(t, "alice", rec.Body.String())
}

func TestSession_RevokedAccountIsLoggedOut(t *testing.T) {
    e := newEcho()

    rec := do(e, http.MethodGet, "/", "mallory")
    assert.Equal(t, http.StatusSeeOther, rec.Code)
    assert.Contains(t, rec.Header().Get("Set-Cookie"), SessionCookie+"=;")
}

func TestSession_ForgedCookie(t *testing.T) {
    e := newEcho()
    tok, err := utils.SignSession("other-secret", "alice", time.Now())
    require.NoError(t, err)

    req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
    req.AddCookie(&http.Cookie{Name: SessionCookie, Value: tok})
    rec := httptest.NewRecorder()
    e.ServeHTTP(rec, req)
    assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAdmin(t *testing.T) {
    e := newEcho()

    rec := do(e, http.MethodGet, "/api/admin/users", "alice")
    assert.Equal(t, http.StatusForbidden, rec.Code)
    assert.JSONEq(t, `{"error":"forbidden"}`, rec.Body.String())

    rec = do(e, http.MethodGet, "/api/admin/users", "root")
    assert.Equal(t, http.StatusOK, rec.Code)
}

type fixedRoles map[string]model.Role

func (f fixedRoles) EffectiveRole(_ context.Context, login string, _ int64) (model.Role, error) {
    return f[login], nil
}

func TestRequireZoneRole(t *testing.T) {
    e := newEcho()
    authz := service.NewAuthorizer(fixedRoles{"alice": model.RoleUser, "vic": model.RoleViewer})
    e.GET("/api/zones/:zid/seats", func(c echo.Context) error {
        return c.String(http.StatusOK, ZoneRole(c).String())
    }, RequireZoneRole(authz, "zid", model.RoleViewer))
    e.POST("/api/zones/:zid/seats", func(c echo.Context) error {
        return c.NoContent(http.StatusCreated)
    }, RequireZoneRole(authz, "zid", model.RoleAdmin))

    rec := do(e, http.MethodGet, "/api/zones/1/seats", "vic")
    assert.Equal(t, http.StatusOK, rec.Code)
    assert.Equal(t, "viewer", rec.Body.String())

    rec = do(e, http.MethodGet, "/api/zones/1/seats", "nobody")
    assert.Equal(t, http.StatusForbidden, rec.Code)

    rec = do(e, http.MethodPost, "/api/zones/1/seats", "alice")
    assert.Equal(t, http.StatusForbidden, rec.Code)

    rec = do(e, http.MethodPost, "/api/zones/1/seats", "root")
    assert.Equal(t, http.StatusCreated, rec.Code)

    rec = do(e, http.MethodGet, "/api/zones/abc/seats", "alice")
    assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLocalLimiter_Returns429(t *testing.T) {
    cfg := config.RateLimitConfig{
        Enabled:        true,
        Capacity:       2,
        RefillTokens:   1,
        RefillInterval: time.Minute,
        TTL:            10 * time.Minute,
        KeyStrategy:    "ip_route",
        Prefix:         "test",
    }
    e := echo.New()
    e.POST("/login", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, RateLimit(cfg, nil, nil))

    for i := 0; i < 2; i++ {
        rec := do(e, http.MethodPost, "/login", "")
        require.Equal(t, http.StatusOK, rec.Code)
    }
    rec := do(e, http.MethodPost, "/login", "")
    assert.Equal(t, http.StatusTooManyRequests, rec.Code)
    assert.NotEmpty(t, rec.Header().Get("Retry-After"))
    assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))

    // another client has its own bucket
    req := httptest.NewRequest(http.MethodPost, "/login", nil)
    req.RemoteAddr = "10.1.2.3:5555"
    other := httptest.NewRecorder()
    e.ServeHTTP(other, req)
    assert.Equal(t, http.StatusOK, other.Code)
}

func TestRateLimitDisabledPassesThrough(t *testing.T) {
    e := echo.New()
    e.POST("/login", func(c echo.Context) error { return c.NoContent(http.StatusOK) },
        RateLimit(config.RateLimitConfig{Enabled: false}, nil, nil))
    for i := 0; i < 20; i++ {
        assert.Equal(t, http.StatusOK, do(e, http.MethodPost, "/login", "").Code)
    }
}

func TestETagMatches(t *testing.T) {
    assert.True(t, ETagMatches(`"abc"`, `"abc"`))
    assert.True(t, ETagMatches(`"x", W/"abc"`, `"abc"`))
    assert.True(t, ETagMatches(`*`, `"abc"`))
    assert.False(t, ETagMatches(``, `"abc"`))
    assert.False(t, ETagMatches(`"abd"`, `"abc"`))
}

func TestPayloadRoundTripKeepsHeaders(t *testing.T) {
    hdr := http.Header{"Content-Type": {"image/png"}, "Etag": {`"e1"`}}
    bs, err := encodePayload(http.StatusOK, hdr, []byte("png"))
    require.NoError(t, err)

    status, got, body, ok := decodePayload(bs)
    require.True(t, ok)
    assert.Equal(t, http.StatusOK, status)
    assert.Equal(t, "image/png", got.Get("Content-Type"))
    assert.Equal(t, []byte("png"), body)

    _, _, _, ok = decodePayload(bs[:5])
    assert.False(t, ok)
}

func TestDisabledCacheIsPassThrough(t *testing.T) {
    rc := NewResponseCache(config.CacheConfig{Enabled: true}, nil, nil)
    rc.Purge(context.Background(), "/zone/image/1")

    e := echo.New()
    e.GET("/x", func(c echo.Context) error { return c.String(http.StatusOK, "ok") }, rc.Middleware())
    rec := do(e, http.MethodGet, "/x", "")
    assert.Equal(t, http.StatusOK, rec.Code)
    assert.Empty(t, rec.Header().Get("X-Cache"))
}
