package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/sdoering/warp/internal/database"
	"github.com/sdoering/warp/internal/model"
)

// ZoneAssignRepo stores zone role assignments and resolves the effective
// role of a person on a zone.
type ZoneAssignRepo struct {
	db *database.DB
}

func NewZoneAssignRepo(db *database.DB) *ZoneAssignRepo { return &ZoneAssignRepo{db: db} }

// effectiveRoleQuery takes the minimum role over the person's own rows and
// the rows of every group the person belongs to.
const effectiveRoleQuery = `SELECT MIN(za.zone_role)
  FROM zone_assign za
 WHERE za.zid = ?
   AND (za.login = ?
        OR za.login IN (SELECT gm.group_login FROM group_members gm WHERE gm.login = ?))`

// EffectiveRole returns the most privileged role login holds on zoneID,
// or RoleNone when there is no assignment at all.
func (r *ZoneAssignRepo) EffectiveRole(ctx context.Context, login string, zoneID int64) (model.Role, error) {
	return r.effectiveRole(ctx, r.db, login, zoneID)
}

// EffectiveRoleTx is EffectiveRole inside tx.
func (r *ZoneAssignRepo) EffectiveRoleTx(ctx context.Context, tx *sql.Tx, login string, zoneID int64) (model.Role, error) {
	return r.effectiveRole(ctx, tx, login, zoneID)
}

func (r *ZoneAssignRepo) effectiveRole(ctx context.Context, q database.Querier, login string, zoneID int64) (model.Role, error) {
	var role sql.NullInt64
	if err := q.QueryRowContext(ctx, r.db.Rebind(effectiveRoleQuery), zoneID, login, login).Scan(&role); err != nil {
		return model.RoleNone, err
	}
	if !role.Valid {
		return model.RoleNone, nil
	}
	return model.Role(role.Int64), nil
}

// List returns the direct assignments of a zone ordered by role then login.
func (r *ZoneAssignRepo) List(ctx context.Context, zoneID int64) ([]model.ZoneAssign, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(
		"SELECT zid, login, zone_role FROM zone_assign WHERE zid = ? ORDER BY zone_role, login"), zoneID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ZoneAssign
	for rows.Next() {
		var (
			a    model.ZoneAssign
			role int
		)
		if err := rows.Scan(&a.ZoneID, &a.Login, &role); err != nil {
			return nil, err
		}
		a.Role = model.Role(role)
		out = append(out, a)
	}
	return out, rows.Err()
}

// Assign gives login (person or group) the role on the zone, replacing
// any previous direct assignment.
func (r *ZoneAssignRepo) Assign(ctx context.Context, a model.ZoneAssign) error {
	if !a.Role.Valid() {
		return errors.New("invalid zone role")
	}
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		var n int
		if err := tx.QueryRowContext(ctx, r.db.Rebind("SELECT COUNT(*) FROM zones WHERE id = ?"), a.ZoneID).Scan(&n); err != nil {
			return err
		}
		if n == 0 {
			return ErrZoneNotFound
		}
		if err := tx.QueryRowContext(ctx, r.db.Rebind("SELECT COUNT(*) FROM users WHERE login = ?"), a.Login).Scan(&n); err != nil {
			return err
		}
		if n == 0 {
			return ErrUserNotFound
		}
		if _, err := tx.ExecContext(ctx, r.db.Rebind(
			"DELETE FROM zone_assign WHERE zid = ? AND login = ?"), a.ZoneID, a.Login); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, r.db.Rebind(
			"INSERT INTO zone_assign (zid, login, zone_role) VALUES (?, ?, ?)"), a.ZoneID, a.Login, int(a.Role))
		return err
	})
}

// Unassign removes the direct assignment of login on the zone.
func (r *ZoneAssignRepo) Unassign(ctx context.Context, zoneID int64, login string) error {
	err := database.MustAffect(r.db.ExecContext(ctx, r.db.Rebind(
		"DELETE FROM zone_assign WHERE zid = ? AND login = ?"), zoneID, login))
	if errors.Is(err, database.ErrNoRowsAffected) {
		return ErrUserNotFound
	}
	return err
}
