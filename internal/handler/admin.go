package handler // admin handlers manage people, groups, zones and zone roles

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/sdoering/warp/internal/model"
	"github.com/sdoering/warp/internal/repository"
	"github.com/sdoering/warp/internal/utils"
)

// AdminHandler bundles repositories for account administrators.  Every
// route it serves sits behind RequireAdmin.
type AdminHandler struct {
	Repos *repository.Repos
	Cache Purger // may be nil
	Log   *slog.Logger
}

func NewAdminHandler(repos *repository.Repos, cache Purger, log *slog.Logger) *AdminHandler {
	if repos == nil {
		panic("nil repositories passed to NewAdminHandler")
	}
	return &AdminHandler{Repos: repos, Cache: cache, Log: log}
}

type personJSON struct {
	Login       string `json:"login"`
	Name        string `json:"name"`
	AccountType string `json:"account_type"`
	HasPassword bool   `json:"has_password"`
}

func toPersonJSON(p model.Person) personJSON {
	return personJSON{Login: p.Login, Name: p.Name, AccountType: p.AccountType.String(), HasPassword: p.PasswordHash != ""}
}

// parseAccountType accepts the names used in responses.
func parseAccountType(s string) (model.AccountType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return model.AccountAdmin, true
	case "user", "":
		return model.AccountUser, true
	case "blocked":
		return model.AccountBlocked, true
	}
	return 0, false
}

// ListUsers handles GET /api/admin/users.
func (h *AdminHandler) ListUsers(c echo.Context) error {
	people, err := h.Repos.Users.ListPeople(c.Request().Context())
	if err != nil {
		return fail(c, h.Log, err)
	}
	out := make([]personJSON, 0, len(people))
	for _, p := range people {
		out = append(out, toPersonJSON(p))
	}
	return c.JSON(http.StatusOK, out)
}

type userReq struct {
	Login       string  `json:"login"`
	Name        *string `json:"name"`
	AccountType *string `json:"account_type"`
	Password    *string `json:"password"`
}

// CreateUser handles POST /api/admin/users.
func (h *AdminHandler) CreateUser(c echo.Context) error {
	var req userReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	p := model.Person{Login: strings.TrimSpace(req.Login), AccountType: model.AccountUser}
	if p.Login == "" {
		return badRequest(c, "login is required")
	}
	if req.Name != nil {
		p.Name = strings.TrimSpace(*req.Name)
	}
	if req.AccountType != nil {
		t, ok := parseAccountType(*req.AccountType)
		if !ok {
			return badRequest(c, "invalid account_type")
		}
		p.AccountType = t
	}
	if req.Password != nil && *req.Password != "" {
		hash, err := utils.HashPassword(*req.Password)
		if err != nil {
			return fail(c, h.Log, err)
		}
		p.PasswordHash = hash
	}
	if err := h.Repos.Users.CreatePerson(c.Request().Context(), p); err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, toPersonJSON(p))
}

// UpdateUser handles PUT /api/admin/users/:login.  Absent fields are kept;
// an empty password clears it, which disables password login.
func (h *AdminHandler) UpdateUser(c echo.Context) error {
	login := c.Param("login")
	var req userReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	var u repository.PersonUpdate
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		u.Name = &name
	}
	if req.AccountType != nil {
		t, ok := parseAccountType(*req.AccountType)
		if !ok {
			return badRequest(c, "invalid account_type")
		}
		u.AccountType = &t
	}
	if req.Password != nil {
		hash := ""
		if *req.Password != "" {
			var err error
			if hash, err = utils.HashPassword(*req.Password); err != nil {
				return fail(c, h.Log, err)
			}
		}
		u.PasswordHash = &hash
	}
	ctx := c.Request().Context()
	if err := h.Repos.Users.UpdatePerson(ctx, login, u); err != nil {
		return fail(c, h.Log, err)
	}
	p, err := h.Repos.Users.GetPerson(ctx, login)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toPersonJSON(p))
}

// DeleteUser handles DELETE /api/admin/users/:login.  Admins cannot
// delete themselves.
func (h *AdminHandler) DeleteUser(c echo.Context) error {
	login := c.Param("login")
	if login == identity(c).Login {
		return c.JSON(http.StatusConflict, echo.Map{"error": "cannot delete yourself"})
	}
	if err := h.Repos.Users.DeletePerson(c.Request().Context(), login); err != nil {
		return fail(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type groupJSON struct {
	Login string `json:"login"`
	Name  string `json:"name"`
}

// ListGroups handles GET /api/admin/groups.
func (h *AdminHandler) ListGroups(c echo.Context) error {
	groups, err := h.Repos.Users.ListGroups(c.Request().Context())
	if err != nil {
		return fail(c, h.Log, err)
	}
	out := make([]groupJSON, 0, len(groups))
	for _, g := range groups {
		out = append(out, groupJSON{Login: g.Login, Name: g.Name})
	}
	return c.JSON(http.StatusOK, out)
}

// CreateGroup handles POST /api/admin/groups.
func (h *AdminHandler) CreateGroup(c echo.Context) error {
	var req groupJSON
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	g := model.Group{Login: strings.TrimSpace(req.Login), Name: strings.TrimSpace(req.Name)}
	if g.Login == "" {
		return badRequest(c, "login is required")
	}
	if err := h.Repos.Users.CreateGroup(c.Request().Context(), g); err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, groupJSON{Login: g.Login, Name: g.Name})
}

// DeleteGroup handles DELETE /api/admin/groups/:login.
func (h *AdminHandler) DeleteGroup(c echo.Context) error {
	if err := h.Repos.Users.DeleteGroup(c.Request().Context(), c.Param("login")); err != nil {
		return fail(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Members handles GET /api/admin/groups/:login/members.
func (h *AdminHandler) Members(c echo.Context) error {
	members, err := h.Repos.Users.Members(c.Request().Context(), c.Param("login"))
	if err != nil {
		return fail(c, h.Log, err)
	}
	out := make([]personJSON, 0, len(members))
	for _, p := range members {
		out = append(out, toPersonJSON(p))
	}
	return c.JSON(http.StatusOK, out)
}

// AddMember handles POST /api/admin/groups/:login/members {"login": ...}.
func (h *AdminHandler) AddMember(c echo.Context) error {
	var body struct {
		Login string `json:"login"`
	}
	if err := c.Bind(&body); err != nil || strings.TrimSpace(body.Login) == "" {
		return badRequest(c, "login is required")
	}
	if err := h.Repos.Users.AddMember(c.Request().Context(), c.Param("login"), body.Login); err != nil {
		return fail(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// RemoveMember handles DELETE /api/admin/groups/:login/members/:member.
func (h *AdminHandler) RemoveMember(c echo.Context) error {
	if err := h.Repos.Users.RemoveMember(c.Request().Context(), c.Param("login"), c.Param("member")); err != nil {
		return fail(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type zoneReq struct {
	ZoneGroup string `json:"zone_group"`
	Name      string `json:"name"`
}

// ListZones handles GET /api/admin/zones: every zone, regardless of roles.
func (h *AdminHandler) ListZones(c echo.Context) error {
	zones, err := h.Repos.Zones.List(c.Request().Context())
	if err != nil {
		return fail(c, h.Log, err)
	}
	out := make([]zoneJSON, 0, len(zones))
	for _, z := range zones {
		out = append(out, zoneJSON{ID: z.ID, ZoneGroup: z.ZoneGroup, Name: z.Name, HasImage: z.ImageID != nil})
	}
	return c.JSON(http.StatusOK, out)
}

// CreateZone handles POST /api/admin/zones.
func (h *AdminHandler) CreateZone(c echo.Context) error {
	var req zoneReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	z := model.Zone{ZoneGroup: strings.TrimSpace(req.ZoneGroup), Name: strings.TrimSpace(req.Name)}
	if z.Name == "" {
		return badRequest(c, "name is required")
	}
	if err := h.Repos.Zones.Create(c.Request().Context(), &z); err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, zoneJSON{ID: z.ID, ZoneGroup: z.ZoneGroup, Name: z.Name})
}

// UpdateZone handles PUT /api/admin/zones/:zid.
func (h *AdminHandler) UpdateZone(c echo.Context) error {
	zid, ok := paramID(c, "zid")
	if !ok {
		return fail(c, h.Log, repository.ErrZoneNotFound)
	}
	var req zoneReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	z := model.Zone{ID: zid, ZoneGroup: strings.TrimSpace(req.ZoneGroup), Name: strings.TrimSpace(req.Name)}
	if z.Name == "" {
		return badRequest(c, "name is required")
	}
	if err := h.Repos.Zones.Update(c.Request().Context(), z); err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, zoneJSON{ID: z.ID, ZoneGroup: z.ZoneGroup, Name: z.Name})
}

// DeleteZone handles DELETE /api/admin/zones/:zid.
func (h *AdminHandler) DeleteZone(c echo.Context) error {
	zid, ok := paramID(c, "zid")
	if !ok {
		return fail(c, h.Log, repository.ErrZoneNotFound)
	}
	ctx := c.Request().Context()
	if err := h.Repos.Zones.Delete(ctx, zid); err != nil {
		return fail(c, h.Log, err)
	}
	purgeZoneImage(ctx, h.Cache, zid)
	return c.NoContent(http.StatusNoContent)
}

type assignJSON struct {
	Login string     `json:"login"`
	Role  model.Role `json:"role"`
}

// Assignments handles GET /api/admin/zones/:zid/assign.
func (h *AdminHandler) Assignments(c echo.Context) error {
	zid, ok := paramID(c, "zid")
	if !ok {
		return fail(c, h.Log, repository.ErrZoneNotFound)
	}
	list, err := h.Repos.Assign.List(c.Request().Context(), zid)
	if err != nil {
		return fail(c, h.Log, err)
	}
	out := make([]assignJSON, 0, len(list))
	for _, a := range list {
		out = append(out, assignJSON{Login: a.Login, Role: a.Role})
	}
	return c.JSON(http.StatusOK, out)
}

// Assign handles PUT /api/admin/zones/:zid/assign {"login", "role"}.
// role is one of admin, user, viewer.
func (h *AdminHandler) Assign(c echo.Context) error {
	zid, ok := paramID(c, "zid")
	if !ok {
		return fail(c, h.Log, repository.ErrZoneNotFound)
	}
	var req struct {
		Login string `json:"login"`
		Role  string `json:"role"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	role, err := model.ParseRole(req.Role)
	if err != nil || strings.TrimSpace(req.Login) == "" {
		return badRequest(c, "login and a valid role are required")
	}
	a := model.ZoneAssign{ZoneID: zid, Login: strings.TrimSpace(req.Login), Role: role}
	if err := h.Repos.Assign.Assign(c.Request().Context(), a); err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, assignJSON{Login: a.Login, Role: a.Role})
}

// Unassign handles DELETE /api/admin/zones/:zid/assign/:login.
func (h *AdminHandler) Unassign(c echo.Context) error {
	zid, ok := paramID(c, "zid")
	if !ok {
		return fail(c, h.Log, repository.ErrZoneNotFound)
	}
	if err := h.Repos.Assign.Unassign(c.Request().Context(), zid, c.Param("login")); err != nil {
		return fail(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}
