package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/sdoering/warp/internal/database"
	"github.com/sdoering/warp/internal/model"
)

// BookingRepo stores reservations in the book table.
type BookingRepo struct {
	db *database.DB
}

// NewBookingRepo constructs a BookingRepo with the given DB handle.
func NewBookingRepo(db *database.DB) *BookingRepo {
	return &BookingRepo{db: db}
}

// DB exposes the handle so services can open transactions that span
// several repositories.
func (r *BookingRepo) DB() *database.DB { return r.db }

// HasConflictTx reports whether any booking on seatID other than
// excludeID intersects [from, to).  Pass 0 as excludeID to consider every
// booking.  It must run in the same transaction as the insert it guards.
func (r *BookingRepo) HasConflictTx(ctx context.Context, tx *sql.Tx, seatID, from, to, excludeID int64) (bool, error) {
	q := "SELECT COUNT(*) FROM book WHERE sid = ? AND fromts < ? AND tots > ?"
	args := []any{seatID, to, from}
	if excludeID != 0 {
		q += " AND id <> ?"
		args = append(args, excludeID)
	}
	var n int
	if err := tx.QueryRowContext(ctx, r.db.Rebind(q), args...).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// CreateTx inserts b and populates its ID.  Callers check conflicts first
// within the same tx.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	id, err := r.db.InsertID(ctx, tx,
		"INSERT INTO book (login, sid, fromts, tots) VALUES (?, ?, ?, ?)",
		b.Login, b.SeatID, b.FromTS, b.ToTS)
	if err != nil {
		return err
	}
	b.ID = id
	return nil
}

const bookingDetailSelect = `SELECT b.id, b.login, b.sid, b.fromts, b.tots, s.name, z.id, z.name
  FROM book b
  JOIN seats s ON s.id = b.sid
  JOIN zones z ON z.id = s.zid`

func scanBookingDetail(sc interface{ Scan(...any) error }, d *model.BookingDetail) error {
	return sc.Scan(&d.ID, &d.Login, &d.SeatID, &d.FromTS, &d.ToTS, &d.SeatName, &d.ZoneID, &d.ZoneName)
}

// GetTx loads a booking with its seat and zone inside tx.
func (r *BookingRepo) GetTx(ctx context.Context, tx *sql.Tx, id int64) (*model.BookingDetail, error) {
	var d model.BookingDetail
	if err := scanBookingDetail(tx.QueryRowContext(ctx, r.db.Rebind(bookingDetailSelect+" WHERE b.id = ?"), id), &d); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &d, nil
}

// Get loads a booking with its seat and zone.
func (r *BookingRepo) Get(ctx context.Context, id int64) (*model.BookingDetail, error) {
	var d model.BookingDetail
	if err := scanBookingDetail(r.db.QueryRowContext(ctx, r.db.Rebind(bookingDetailSelect+" WHERE b.id = ?"), id), &d); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &d, nil
}

// DeleteTx removes a booking.
func (r *BookingRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id int64) error {
	err := database.MustAffect(tx.ExecContext(ctx, r.db.Rebind("DELETE FROM book WHERE id = ?"), id))
	if errors.Is(err, database.ErrNoRowsAffected) {
		return ErrBookingNotFound
	}
	return err
}

// BookingFilter narrows List.  Zero values mean "no restriction".  From
// and To select bookings that intersect [From, To).
type BookingFilter struct {
	ZoneID int64
	SeatID int64
	Login  string
	From   int64
	To     int64
	Limit  int
}

// List returns bookings matching f ordered by start time.  When f.Limit is
// positive at most f.Limit rows are returned and truncated reports whether
// more rows matched.
func (r *BookingRepo) List(ctx context.Context, f BookingFilter) (rows []model.BookingDetail, truncated bool, err error) {
	var (
		where []string
		args  []any
	)
	if f.ZoneID != 0 {
		where = append(where, "z.id = ?")
		args = append(args, f.ZoneID)
	}
	if f.SeatID != 0 {
		where = append(where, "b.sid = ?")
		args = append(args, f.SeatID)
	}
	if f.Login != "" {
		where = append(where, "b.login = ?")
		args = append(args, f.Login)
	}
	if f.To != 0 {
		where = append(where, "b.fromts < ?")
		args = append(args, f.To)
	}
	if f.From != 0 {
		where = append(where, "b.tots > ?")
		args = append(args, f.From)
	}

	q := bookingDetailSelect
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY b.fromts, b.id"
	if f.Limit > 0 {
		// one extra row tells us whether the cap was hit
		q += " LIMIT ?"
		args = append(args, f.Limit+1)
	}

	res, err := r.db.QueryContext(ctx, r.db.Rebind(q), args...)
	if err != nil {
		return nil, false, err
	}
	defer res.Close()

	for res.Next() {
		var d model.BookingDetail
		if err := scanBookingDetail(res, &d); err != nil {
			return nil, false, err
		}
		rows = append(rows, d)
	}
	if err := res.Err(); err != nil {
		return nil, false, err
	}
	if f.Limit > 0 && len(rows) > f.Limit {
		rows = rows[:f.Limit]
		truncated = true
	}
	return rows, truncated, nil
}
