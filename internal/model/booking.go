package model

// Booking reserves a seat for the half-open range [FromTS, ToTS) given in
// epoch seconds.
type Booking struct {
    ID     int64  // book.id
    Login  string // book.login
    SeatID int64  // book.sid
    FromTS int64  // book.fromts
    ToTS   int64  // book.tots
}

// BookingDetail is a booking joined with its seat and zone, as returned by
// listings.
type BookingDetail struct {
    Booking
    SeatName string
    ZoneID   int64
    ZoneName string
}

// Overlaps reports whether [a,b) and [c,d) intersect.  Ranges that only
// touch (b == c) do not overlap.
func Overlaps(a, b, c, d int64) bool {
    return a < d && c < b
}

// Overlaps reports whether the booking intersects [from, to).
func (b Booking) Overlaps(from, to int64) bool {
    return Overlaps(b.FromTS, b.ToTS, from, to)
}
