package repository // repository defines data access for seats

import (
	"context"      // context allows query cancellation and timeouts
	"database/sql" // sql provides DB primitives
	"errors"       // errors for sentinel checks

	"github.com/sdoering/warp/internal/database"
	"github.com/sdoering/warp/internal/model"
)

// SeatRepo provides methods to work with seats and their allow-lists.
type SeatRepo struct {
	db *database.DB
}

// NewSeatRepo constructs a SeatRepo with the given DB handle.
func NewSeatRepo(db *database.DB) *SeatRepo {
	return &SeatRepo{db: db}
}

const seatColumns = "id, zid, name, x, y, enabled"

func scanSeat(sc interface{ Scan(...any) error }, s *model.Seat) error {
	return sc.Scan(&s.ID, &s.ZoneID, &s.Name, &s.X, &s.Y, &s.Enabled)
}

// Create inserts a single seat. On success the seat's ID is populated.
func (r *SeatRepo) Create(ctx context.Context, s *model.Seat) error {
	var n int
	if err := r.db.QueryRowContext(ctx, r.db.Rebind("SELECT COUNT(*) FROM zones WHERE id = ?"), s.ZoneID).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		return ErrZoneNotFound
	}
	id, err := r.db.InsertID(ctx, r.db,
		"INSERT INTO seats (zid, name, x, y, enabled) VALUES (?, ?, ?, ?, ?)",
		s.ZoneID, s.Name, s.X, s.Y, s.Enabled)
	if err != nil {
		return err
	}
	s.ID = id
	return nil
}

// GetByID retrieves a seat by its id.
func (r *SeatRepo) GetByID(ctx context.Context, id int64) (*model.Seat, error) {
	var s model.Seat
	err := scanSeat(r.db.QueryRowContext(ctx, r.db.Rebind("SELECT "+seatColumns+" FROM seats WHERE id = ?"), id), &s)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSeatNotFound
		}
		return nil, err
	}
	return &s, nil
}

// GetForUpdateTx loads a seat and locks its row until tx ends.  Every
// booking write on the seat goes through this lock first, which
// serialises concurrent bookings of the same seat.
func (r *SeatRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id int64) (*model.Seat, error) {
	var s model.Seat
	err := scanSeat(tx.QueryRowContext(ctx,
		r.db.Rebind("SELECT "+seatColumns+" FROM seats WHERE id = ?"+r.db.ForUpdate()), id), &s)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSeatNotFound
		}
		return nil, err
	}
	return &s, nil
}

// ListByZone retrieves all seats of a zone ordered by name.
func (r *SeatRepo) ListByZone(ctx context.Context, zoneID int64) ([]model.Seat, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(
		"SELECT "+seatColumns+" FROM seats WHERE zid = ? ORDER BY name, id"), zoneID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Seat
	for rows.Next() {
		var s model.Seat
		if err := scanSeat(rows, &s); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Update changes name, position and enabled flag of a seat inside its zone.
func (r *SeatRepo) Update(ctx context.Context, s model.Seat) error {
	err := database.MustAffect(r.db.ExecContext(ctx, r.db.Rebind(
		"UPDATE seats SET name = ?, x = ?, y = ?, enabled = ? WHERE id = ? AND zid = ?"),
		s.Name, s.X, s.Y, s.Enabled, s.ID, s.ZoneID))
	if errors.Is(err, database.ErrNoRowsAffected) {
		cur, gerr := r.GetByID(ctx, s.ID)
		if gerr != nil {
			return gerr
		}
		if cur.ZoneID != s.ZoneID {
			return ErrSeatNotFound
		}
		return nil
	}
	return err
}

// Delete removes a seat from a zone; its bookings cascade.
func (r *SeatRepo) Delete(ctx context.Context, zoneID, id int64) error {
	err := database.MustAffect(r.db.ExecContext(ctx, r.db.Rebind(
		"DELETE FROM seats WHERE id = ? AND zid = ?"), id, zoneID))
	if errors.Is(err, database.ErrNoRowsAffected) {
		return ErrSeatNotFound
	}
	return err
}

// Assignees returns the allow-list of a seat.  An empty list means the
// seat is open to everyone with a sufficient zone role.
func (r *SeatRepo) Assignees(ctx context.Context, seatID int64) ([]string, error) {
	return r.assignees(ctx, r.db, seatID)
}

// AssigneesTx is Assignees inside tx.
func (r *SeatRepo) AssigneesTx(ctx context.Context, tx *sql.Tx, seatID int64) ([]string, error) {
	return r.assignees(ctx, tx, seatID)
}

func (r *SeatRepo) assignees(ctx context.Context, q database.Querier, seatID int64) ([]string, error) {
	rows, err := q.QueryContext(ctx, r.db.Rebind("SELECT login FROM seat_assign WHERE sid = ? ORDER BY login"), seatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var login string
		if err := rows.Scan(&login); err != nil {
			return nil, err
		}
		out = append(out, login)
	}
	return out, rows.Err()
}

// AssigneesByZone returns the allow-lists of every seat in a zone keyed
// by seat id.  Seats without restriction are absent from the map.
func (r *SeatRepo) AssigneesByZone(ctx context.Context, zoneID int64) (map[int64][]string, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(
		`SELECT sa.sid, sa.login
		   FROM seat_assign sa
		   JOIN seats s ON s.id = sa.sid
		  WHERE s.zid = ?
		  ORDER BY sa.sid, sa.login`), zoneID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64][]string)
	for rows.Next() {
		var (
			sid   int64
			login string
		)
		if err := rows.Scan(&sid, &login); err != nil {
			return nil, err
		}
		out[sid] = append(out[sid], login)
	}
	return out, rows.Err()
}

// SetAssignees replaces the allow-list of a seat.  Passing no logins
// removes the restriction.
func (r *SeatRepo) SetAssignees(ctx context.Context, zoneID, seatID int64, logins []string) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		s, err := r.GetForUpdateTx(ctx, tx, seatID)
		if err != nil {
			return err
		}
		if s.ZoneID != zoneID {
			return ErrSeatNotFound
		}
		if _, err := tx.ExecContext(ctx, r.db.Rebind("DELETE FROM seat_assign WHERE sid = ?"), seatID); err != nil {
			return err
		}
		seen := make(map[string]struct{}, len(logins))
		for _, login := range logins {
			login = normalizeLogin(login)
			if login == "" {
				continue
			}
			if _, dup := seen[login]; dup {
				continue
			}
			seen[login] = struct{}{}
			if _, err := tx.ExecContext(ctx, r.db.Rebind(
				"INSERT INTO seat_assign (sid, login) VALUES (?, ?)"), seatID, login); err != nil {
				if database.IsForeignKeyViolation(err) {
					return ErrUserNotFound
				}
				return err
			}
		}
		return nil
	})
}
