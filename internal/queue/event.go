// Package queue defines message payloads exchanged over the message broker.
package queue

import "time"

// BookingQueue is the durable queue booking events are routed to.
const BookingQueue = "warp.bookings"

// Event types.
const (
    BookingCreated = "booking.created"
    BookingDeleted = "booking.deleted"
)

// BookingEvent is published after a booking write has committed.  It
// carries enough for downstream consumers to log or notify without
// querying the primary database.
type BookingEvent struct {
    Type      string    `json:"type"`
    BookingID int64     `json:"booking_id"`
    Login     string    `json:"login"`
    SeatID    int64     `json:"seat_id"`
    SeatName  string    `json:"seat_name,omitempty"`
    ZoneID    int64     `json:"zone_id"`
    ZoneName  string    `json:"zone_name,omitempty"`
    FromTS    int64     `json:"from_ts"`
    ToTS      int64     `json:"to_ts"`
    Actor     string    `json:"actor"`
    At        time.Time `json:"at"`
}
