package persistence

import "context"

// ReservationFilter narrows reservation queries. Empty fields match everything.
type ReservationFilter struct {
	Date    string
	PoolKey string
}

// Matches reports whether the reservation satisfies every populated field.
func (f ReservationFilter) Matches(r Reservation) bool {
	if f.Date != "" && r.Date != f.Date {
		return false
	}
	if f.PoolKey != "" && r.PoolKey != f.PoolKey {
		return false
	}
	return true
}

// ReservationRepository stores reservations and enforces the per-pool limit on insert.
//
// Insert must count the reservations sharing rec.PoolKey and write rec in one
// atomic step, returning ErrCapacityReached without writing when the count is
// already at limit. A limit of zero or less disables the check.
type ReservationRepository interface {
	QueryReservations(ctx context.Context, filter ReservationFilter) ([]Reservation, error)
	InsertReservation(ctx context.Context, rec Reservation, limit int) (Reservation, error)
	CountReservationsByDate(ctx context.Context) (map[string]int, error)
}

// ClosedDateRepository stores the blackout calendar.
type ClosedDateRepository interface {
	ListClosedDates(ctx context.Context) ([]ClosedDate, error)
	AddClosedDate(ctx context.Context, date ClosedDate) error
	DeleteClosedDate(ctx context.Context, date string) error
}
