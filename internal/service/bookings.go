package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/sdoering/warp/internal/metrics"
	"github.com/sdoering/warp/internal/model"
	"github.com/sdoering/warp/internal/queue"
	"github.com/sdoering/warp/internal/repository"
)

// BookingRequest is the body of a create or re-book call.  Login names
// the person the seat is booked for and defaults to the caller.
type BookingRequest struct {
	SeatID int64  `json:"seat_id"`
	FromTS int64  `json:"from_ts"`
	ToTS   int64  `json:"to_ts"`
	Login  string `json:"login,omitempty"`
}

// ListQuery selects bookings.  With Report set every booking is visible
// (admins only); with ZoneID set the zone's bookings are listed (any zone
// role); otherwise the caller's own bookings are.
type ListQuery struct {
	ZoneID int64
	Login  string
	From   int64
	To     int64
	Report bool
}

// Bookings applies the booking rules on top of the repositories.
type Bookings struct {
	repos          *repository.Repos
	authz          *Authorizer
	events         EventPublisher
	log            *slog.Logger
	weeksInAdvance int
	maxRows        int

	Now func() time.Time
}

func NewBookings(repos *repository.Repos, events EventPublisher, log *slog.Logger, weeksInAdvance, maxRows int) *Bookings {
	if events == nil {
		events = NoopPublisher{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Bookings{
		repos:          repos,
		authz:          NewAuthorizer(repos.Assign),
		events:         events,
		log:            log,
		weeksInAdvance: weeksInAdvance,
		maxRows:        maxRows,
		Now:            time.Now,
	}
}

// BookingWindow returns the range a non-admin may book in: from the start
// of today up to the Monday that opens week weeksInAdvance+1 after the
// current one.  All in UTC.
func BookingWindow(now time.Time, weeksInAdvance int) (from, to int64) {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	sinceMonday := (int(today.Weekday()) + 6) % 7
	monday := today.AddDate(0, 0, -sinceMonday)
	horizon := monday.AddDate(0, 0, 7*(weeksInAdvance+1))
	return today.Unix(), horizon.Unix()
}

// Create books a seat.  The seat row is locked for the whole check and
// insert so two concurrent requests cannot both see a free slot.
func (s *Bookings) Create(ctx context.Context, actor Identity, req BookingRequest) (model.Booking, error) {
	var created model.BookingDetail
	err := s.validRange(req)
	if err == nil {
		err = s.repos.DB.WithTx(ctx, func(tx *sql.Tx) error {
			var err error
			created, err = s.createTx(ctx, tx, actor, req, 0)
			return err
		})
	}
	s.count("create", err)
	if err != nil {
		return model.Booking{}, err
	}
	s.publish(ctx, queue.BookingCreated, actor, created)
	return created.Booking, nil
}

// Rebook replaces booking id with a new booking in one transaction.  The
// old booking does not count as a conflict for the new range.
func (s *Bookings) Rebook(ctx context.Context, actor Identity, id int64, req BookingRequest) (model.Booking, error) {
	var old, created model.BookingDetail
	err := s.validRange(req)
	if err == nil {
		err = s.repos.DB.WithTx(ctx, func(tx *sql.Tx) error {
			// target seat lock comes first, before any plain read
			if _, err := s.repos.Seats.GetForUpdateTx(ctx, tx, req.SeatID); err != nil {
				return err
			}
			prev, err := s.repos.Bookings.GetTx(ctx, tx, id)
			if err != nil {
				return err
			}
			old = *prev
			if err := s.authorizeChangeTx(ctx, tx, actor, old); err != nil {
				return err
			}
			if req.Login == "" {
				req.Login = old.Login
			}
			if created, err = s.createTx(ctx, tx, actor, req, old.ID); err != nil {
				return err
			}
			return s.repos.Bookings.DeleteTx(ctx, tx, old.ID)
		})
	}
	s.count("rebook", err)
	if err != nil {
		return model.Booking{}, err
	}
	s.publish(ctx, queue.BookingDeleted, actor, old)
	s.publish(ctx, queue.BookingCreated, actor, created)
	return created.Booking, nil
}

// Delete removes a booking.  The owner, a zone admin of the seat's zone
// and account admins may do so.  A missing id is repository.ErrBookingNotFound.
func (s *Bookings) Delete(ctx context.Context, actor Identity, id int64) error {
	var gone model.BookingDetail
	err := s.repos.DB.WithTx(ctx, func(tx *sql.Tx) error {
		b, err := s.repos.Bookings.GetTx(ctx, tx, id)
		if err != nil {
			return err
		}
		gone = *b
		if err := s.authorizeChangeTx(ctx, tx, actor, gone); err != nil {
			return err
		}
		return s.repos.Bookings.DeleteTx(ctx, tx, id)
	})
	s.count("delete", err)
	if err != nil {
		return err
	}
	s.publish(ctx, queue.BookingDeleted, actor, gone)
	return nil
}

// List returns the bookings selected by q, at most the configured maximum.
// truncated reports whether more rows matched.
func (s *Bookings) List(ctx context.Context, actor Identity, q ListQuery) (rows []model.BookingDetail, truncated bool, err error) {
	if q.From != 0 && q.To != 0 && q.From >= q.To {
		return nil, false, ErrInvalidRange
	}
	f := repository.BookingFilter{ZoneID: q.ZoneID, Login: q.Login, From: q.From, To: q.To, Limit: s.maxRows}

	switch {
	case q.Report:
		if !actor.IsAdmin {
			return nil, false, repository.ErrForbidden
		}
	case q.ZoneID != 0:
		if _, err := s.authz.RequireZoneRole(ctx, actor, q.ZoneID, model.RoleViewer); err != nil {
			return nil, false, err
		}
	default:
		if q.Login != "" && q.Login != actor.Login && !actor.IsAdmin {
			return nil, false, repository.ErrForbidden
		}
		if f.Login == "" {
			f.Login = actor.Login
		}
	}
	return s.repos.Bookings.List(ctx, f)
}

func (s *Bookings) validRange(req BookingRequest) error {
	if req.SeatID <= 0 || req.FromTS >= req.ToTS {
		return ErrInvalidRange
	}
	return nil
}

// createTx runs every booking rule and inserts the booking.  excludeID
// is ignored by the conflict check (0 for a fresh booking).
func (s *Bookings) createTx(ctx context.Context, tx *sql.Tx, actor Identity, req BookingRequest, excludeID int64) (model.BookingDetail, error) {
	seat, err := s.repos.Seats.GetForUpdateTx(ctx, tx, req.SeatID)
	if err != nil {
		return model.BookingDetail{}, err
	}

	role, err := s.zoneRoleTx(ctx, tx, actor, seat.ZoneID)
	if err != nil {
		return model.BookingDetail{}, err
	}
	if !role.AtLeast(model.RoleUser) {
		return model.BookingDetail{}, repository.ErrForbidden
	}
	zoneAdmin := role.AtLeast(model.RoleAdmin)

	login := req.Login
	if login == "" {
		login = actor.Login
	}
	if login != actor.Login {
		if !zoneAdmin {
			return model.BookingDetail{}, repository.ErrForbidden
		}
		if _, err := s.repos.Users.GetPersonTx(ctx, tx, login); err != nil {
			return model.BookingDetail{}, err
		}
	}

	if !seat.Enabled {
		return model.BookingDetail{}, ErrSeatDisabled
	}

	assignees, err := s.repos.Seats.AssigneesTx(ctx, tx, seat.ID)
	if err != nil {
		return model.BookingDetail{}, err
	}
	if !SeatAllows(assignees, login) {
		return model.BookingDetail{}, repository.ErrForbidden
	}

	if !zoneAdmin {
		from, to := BookingWindow(s.Now(), s.weeksInAdvance)
		if req.FromTS < from || req.ToTS > to {
			return model.BookingDetail{}, ErrOutsideWindow
		}
	}

	conflict, err := s.repos.Bookings.HasConflictTx(ctx, tx, seat.ID, req.FromTS, req.ToTS, excludeID)
	if err != nil {
		return model.BookingDetail{}, err
	}
	if conflict {
		return model.BookingDetail{}, ErrBookingConflict
	}

	b := model.Booking{Login: login, SeatID: seat.ID, FromTS: req.FromTS, ToTS: req.ToTS}
	if err := s.repos.Bookings.CreateTx(ctx, tx, &b); err != nil {
		return model.BookingDetail{}, err
	}
	d, err := s.repos.Bookings.GetTx(ctx, tx, b.ID)
	if err != nil {
		return model.BookingDetail{}, err
	}
	return *d, nil
}

// authorizeChangeTx lets the owner, zone admins and account admins touch b.
func (s *Bookings) authorizeChangeTx(ctx context.Context, tx *sql.Tx, actor Identity, b model.BookingDetail) error {
	if b.Login == actor.Login || actor.IsAdmin {
		return nil
	}
	role, err := s.repos.Assign.EffectiveRoleTx(ctx, tx, actor.Login, b.ZoneID)
	if err != nil {
		return err
	}
	if !role.AtLeast(model.RoleAdmin) {
		return repository.ErrForbidden
	}
	return nil
}

func (s *Bookings) zoneRoleTx(ctx context.Context, tx *sql.Tx, actor Identity, zoneID int64) (model.Role, error) {
	if actor.IsAdmin {
		return model.RoleAdmin, nil
	}
	return s.repos.Assign.EffectiveRoleTx(ctx, tx, actor.Login, zoneID)
}

// publish hands the event to the broker in the background; the booking
// is already committed and a broker outage must not fail the request.
func (s *Bookings) publish(ctx context.Context, typ string, actor Identity, b model.BookingDetail) {
	ev := queue.BookingEvent{
		Type:      typ,
		BookingID: b.ID,
		Login:     b.Login,
		SeatID:    b.SeatID,
		SeatName:  b.SeatName,
		ZoneID:    b.ZoneID,
		ZoneName:  b.ZoneName,
		FromTS:    b.FromTS,
		ToTS:      b.ToTS,
		Actor:     actor.Login,
		At:        s.Now().UTC(),
	}
	ctx = context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := s.events.Publish(ctx, ev); err != nil {
			s.log.Warn("booking event not published", "type", typ, "booking_id", ev.BookingID, "error", err)
		}
	}()
}

func (s *Bookings) count(op string, err error) {
	metrics.BookingOps.WithLabelValues(op, outcome(err)).Inc()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrBookingConflict):
		return "conflict"
	case errors.Is(err, repository.ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrSeatDisabled):
		return "seat_disabled"
	case errors.Is(err, ErrOutsideWindow):
		return "outside_window"
	case errors.Is(err, ErrInvalidRange):
		return "invalid"
	case errors.Is(err, repository.ErrSeatNotFound),
		errors.Is(err, repository.ErrBookingNotFound),
		errors.Is(err, repository.ErrUserNotFound):
		return "not_found"
	}
	return "error"
}
