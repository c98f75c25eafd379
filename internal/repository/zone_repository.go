package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/sdoering/warp/internal/database"
	"github.com/sdoering/warp/internal/model"
)

// ZoneRepo provides methods to work with zones in the database.
type ZoneRepo struct {
	db *database.DB
}

// NewZoneRepo constructs a ZoneRepo with the given DB handle.
func NewZoneRepo(db *database.DB) *ZoneRepo {
	return &ZoneRepo{db: db}
}

func scanZone(sc interface{ Scan(...any) error }, z *model.Zone) error {
	var iid sql.NullInt64
	if err := sc.Scan(&z.ID, &z.ZoneGroup, &z.Name, &iid); err != nil {
		return err
	}
	z.ImageID = nil
	if iid.Valid {
		v := iid.Int64
		z.ImageID = &v
	}
	return nil
}

// Create inserts a zone. On success the zone's ID is populated.
func (r *ZoneRepo) Create(ctx context.Context, z *model.Zone) error {
	id, err := r.db.InsertID(ctx, r.db,
		"INSERT INTO zones (zone_group, name) VALUES (?, ?)", z.ZoneGroup, z.Name)
	if err != nil {
		return err
	}
	z.ID = id
	z.ImageID = nil
	return nil
}

// GetByID retrieves a zone by its id.
func (r *ZoneRepo) GetByID(ctx context.Context, id int64) (*model.Zone, error) {
	var z model.Zone
	err := scanZone(r.db.QueryRowContext(ctx, r.db.Rebind(
		"SELECT id, zone_group, name, iid FROM zones WHERE id = ?"), id), &z)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrZoneNotFound
		}
		return nil, err
	}
	return &z, nil
}

// List returns all zones ordered by group then name.
func (r *ZoneRepo) List(ctx context.Context) ([]model.Zone, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, zone_group, name, iid FROM zones ORDER BY zone_group, name, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Zone
	for rows.Next() {
		var z model.Zone
		if err := scanZone(rows, &z); err != nil {
			return nil, err
		}
		out = append(out, z)
	}
	return out, rows.Err()
}

// ListForLogin returns the zones a person holds any role on, directly or
// through a group, together with the effective role.
func (r *ZoneRepo) ListForLogin(ctx context.Context, login string) ([]model.UserZone, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(
		`SELECT z.id, z.zone_group, z.name, z.iid, MIN(za.zone_role)
		   FROM zones z
		   JOIN zone_assign za ON za.zid = z.id
		  WHERE za.login = ?
		     OR za.login IN (SELECT gm.group_login FROM group_members gm WHERE gm.login = ?)
		  GROUP BY z.id, z.zone_group, z.name, z.iid
		  ORDER BY z.zone_group, z.name, z.id`), login, login)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.UserZone
	for rows.Next() {
		var (
			uz   model.UserZone
			iid  sql.NullInt64
			role int
		)
		if err := rows.Scan(&uz.ID, &uz.ZoneGroup, &uz.Name, &iid, &role); err != nil {
			return nil, err
		}
		if iid.Valid {
			v := iid.Int64
			uz.ImageID = &v
		}
		uz.Role = model.Role(role)
		out = append(out, uz)
	}
	return out, rows.Err()
}

// Update renames a zone and moves it to another group label.
func (r *ZoneRepo) Update(ctx context.Context, z model.Zone) error {
	err := database.MustAffect(r.db.ExecContext(ctx, r.db.Rebind(
		"UPDATE zones SET zone_group = ?, name = ? WHERE id = ?"), z.ZoneGroup, z.Name, z.ID))
	if errors.Is(err, database.ErrNoRowsAffected) {
		if _, gerr := r.GetByID(ctx, z.ID); gerr != nil {
			return gerr
		}
		return nil
	}
	return err
}

// Delete removes a zone; its seats, bookings and assignments cascade.
// The image blob is removed as well.
func (r *ZoneRepo) Delete(ctx context.Context, id int64) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		var iid sql.NullInt64
		err := tx.QueryRowContext(ctx, r.db.Rebind("SELECT iid FROM zones WHERE id = ?"+r.db.ForUpdate()), id).Scan(&iid)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrZoneNotFound
			}
			return err
		}
		if _, err := tx.ExecContext(ctx, r.db.Rebind("DELETE FROM zones WHERE id = ?"), id); err != nil {
			return err
		}
		if iid.Valid {
			if _, err := tx.ExecContext(ctx, r.db.Rebind("DELETE FROM blobs WHERE id = ?"), iid.Int64); err != nil {
				return err
			}
		}
		return nil
	})
}

// SetImageTx points the zone at a new blob and returns the previous blob
// id, if any, so the caller can delete it in the same transaction.
func (r *ZoneRepo) SetImageTx(ctx context.Context, tx *sql.Tx, zoneID, blobID int64) (*int64, error) {
	var old sql.NullInt64
	err := tx.QueryRowContext(ctx, r.db.Rebind("SELECT iid FROM zones WHERE id = ?"+r.db.ForUpdate()), zoneID).Scan(&old)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrZoneNotFound
		}
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, r.db.Rebind("UPDATE zones SET iid = ? WHERE id = ?"), blobID, zoneID); err != nil {
		return nil, err
	}
	if !old.Valid {
		return nil, nil
	}
	v := old.Int64
	return &v, nil
}
