package handler // booking endpoints of the JSON API

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sdoering/warp/internal/model"
	"github.com/sdoering/warp/internal/service"
)

// TruncatedHeader is set on listings that hit the row cap.
const TruncatedHeader = "X-Result-Truncated"

// BookingHandler serves /api/bookings.
type BookingHandler struct {
	Bookings *service.Bookings
	Log      *slog.Logger
}

// NewBookingHandler panics when the service is missing so wiring errors
// show up at startup.
func NewBookingHandler(b *service.Bookings, log *slog.Logger) *BookingHandler {
	if b == nil {
		panic("nil bookings service passed to NewBookingHandler")
	}
	return &BookingHandler{Bookings: b, Log: log}
}

type bookingJSON struct {
	ID     int64  `json:"id"`
	Login  string `json:"login"`
	SeatID int64  `json:"seat_id"`
	FromTS int64  `json:"from_ts"`
	ToTS   int64  `json:"to_ts"`
}

func toBookingJSON(b model.Booking) bookingJSON {
	return bookingJSON{ID: b.ID, Login: b.Login, SeatID: b.SeatID, FromTS: b.FromTS, ToTS: b.ToTS}
}

// Create handles POST /api/bookings.
func (h *BookingHandler) Create(c echo.Context) error {
	var req service.BookingRequest
	if err := c.Bind(&req); err != nil { // malformed JSON
		return badRequest(c, "invalid request body")
	}
	b, err := h.Bookings.Create(c.Request().Context(), identity(c), req)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": b.ID})
}

// Rebook handles PUT /api/bookings/:id.  The response carries the id of
// the replacement booking.
func (h *BookingHandler) Rebook(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
	}
	var req service.BookingRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	b, err := h.Bookings.Rebook(c.Request().Context(), identity(c), id, req)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toBookingJSON(b))
}

// Delete handles DELETE /api/bookings/:id.
func (h *BookingHandler) Delete(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
	}
	if err := h.Bookings.Delete(c.Request().Context(), identity(c), id); err != nil {
		return fail(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// listQuery reads zone, login, from, to and report from the query string.
func listQuery(c echo.Context) (service.ListQuery, error) {
	var (
		q   service.ListQuery
		err error
	)
	if q.ZoneID, err = queryInt64(c, "zone"); err != nil {
		return q, err
	}
	if q.From, err = queryInt64(c, "from"); err != nil {
		return q, err
	}
	if q.To, err = queryInt64(c, "to"); err != nil {
		return q, err
	}
	q.Login = c.QueryParam("login")
	switch c.QueryParam("report") {
	case "1", "true", "yes":
		q.Report = true
	}
	return q, nil
}

// List handles GET /api/bookings.
func (h *BookingHandler) List(c echo.Context) error {
	q, err := listQuery(c)
	if err != nil {
		return badRequest(c, "invalid query parameter")
	}
	rows, truncated, err := h.Bookings.List(c.Request().Context(), identity(c), q)
	if err != nil {
		return fail(c, h.Log, err)
	}
	if truncated {
		c.Response().Header().Set(TruncatedHeader, "true")
	}
	out := make([]bookingJSON, 0, len(rows))
	for _, b := range rows {
		out = append(out, toBookingJSON(b.Booking))
	}
	return c.JSON(http.StatusOK, out)
}
