package repository

import "github.com/sdoering/warp/internal/database"

// Repos bundles every repository over one DB handle.
type Repos struct {
	DB       *database.DB
	Users    *UserRepo
	Zones    *ZoneRepo
	Assign   *ZoneAssignRepo
	Seats    *SeatRepo
	Bookings *BookingRepo
	Blobs    *BlobRepo
}

func NewRepos(db *database.DB) *Repos {
	return &Repos{
		DB:       db,
		Users:    NewUserRepo(db),
		Zones:    NewZoneRepo(db),
		Assign:   NewZoneAssignRepo(db),
		Seats:    NewSeatRepo(db),
		Bookings: NewBookingRepo(db),
		Blobs:    NewBlobRepo(db),
	}
}
