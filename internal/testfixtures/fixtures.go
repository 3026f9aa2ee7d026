package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/class-booking/internal/persistence"
)

var reservationCounter uint64

var referenceTime = time.Date(2024, time.May, 1, 8, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ReservationOption configures a generated reservation.
type ReservationOption func(*persistence.Reservation)

// NewReservation returns a deterministic reservation pooled by date.
func NewReservation(opts ...ReservationOption) persistence.Reservation {
	idx := atomic.AddUint64(&reservationCounter, 1)
	id := fmt.Sprintf("res-%03d", idx)
	rec := persistence.Reservation{
		ID:        id,
		Name:      fmt.Sprintf("Client %03d", idx),
		Email:     id + "@example.com",
		Date:      "2024-06-01",
		Time:      "19h30",
		CreatedAt: referenceTime.Add(time.Duration(idx) * time.Minute),
	}
	for _, opt := range opts {
		opt(&rec)
	}
	if rec.PoolKey == "" {
		rec.PoolKey = rec.Date
	}
	return rec
}

// WithReservationID overrides the generated identifier.
func WithReservationID(id string) ReservationOption {
	return func(r *persistence.Reservation) { r.ID = id }
}

// WithReservationDate sets the class date.
func WithReservationDate(date string) ReservationOption {
	return func(r *persistence.Reservation) { r.Date = date }
}

// WithReservationTime sets the time-of-day label.
func WithReservationTime(label string) ReservationOption {
	return func(r *persistence.Reservation) { r.Time = label }
}

// WithReservationPool sets an explicit pool key.
func WithReservationPool(pool string) ReservationOption {
	return func(r *persistence.Reservation) { r.PoolKey = pool }
}

// WithReservationPhone sets the optional phone number.
func WithReservationPhone(phone string) ReservationOption {
	return func(r *persistence.Reservation) { r.Phone = phone }
}
