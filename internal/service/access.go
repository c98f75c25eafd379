package service

import (
	"context"

	"github.com/sdoering/warp/internal/model"
	"github.com/sdoering/warp/internal/repository"
)

// RoleSource resolves the effective zone role of a login.
type RoleSource interface {
	EffectiveRole(ctx context.Context, login string, zoneID int64) (model.Role, error)
}

// Authorizer answers zone-level permission questions.  Account admins are
// treated as zone admins everywhere.
type Authorizer struct {
	roles RoleSource
}

func NewAuthorizer(roles RoleSource) *Authorizer { return &Authorizer{roles: roles} }

// ZoneRole returns the role id holds on zoneID; RoleNone when it holds none.
func (a *Authorizer) ZoneRole(ctx context.Context, id Identity, zoneID int64) (model.Role, error) {
	if id.IsAdmin {
		return model.RoleAdmin, nil
	}
	return a.roles.EffectiveRole(ctx, id.Login, zoneID)
}

// RequireZoneRole returns the caller's role, or repository.ErrForbidden
// when it is below min.
func (a *Authorizer) RequireZoneRole(ctx context.Context, id Identity, zoneID int64, min model.Role) (model.Role, error) {
	role, err := a.ZoneRole(ctx, id, zoneID)
	if err != nil {
		return model.RoleNone, err
	}
	if !role.AtLeast(min) {
		return role, repository.ErrForbidden
	}
	return role, nil
}

// SeatAllows reports whether login may book a seat with the given
// allow-list.  An empty list puts no restriction on the seat.
func SeatAllows(assignees []string, login string) bool {
	if len(assignees) == 0 {
		return true
	}
	for _, a := range assignees {
		if a == login {
			return true
		}
	}
	return false
}

// CanBookSeat combines the zone role with the seat allow-list.
func CanBookSeat(role model.Role, assignees []string, login string) bool {
	return role.AtLeast(model.RoleUser) && SeatAllows(assignees, login)
}
