package application

import (
	"context"
	"time"
)

// SlotStore is the durable reservation store. Insert must apply limit to the
// reservations sharing rec.PoolKey atomically with the write and report
// persistence.ErrCapacityReached when the pool is already full.
type SlotStore interface {
	Query(ctx context.Context, query ReservationQuery) ([]Reservation, error)
	Insert(ctx context.Context, rec Reservation, limit int) (Reservation, error)
}

// ReservationCounter aggregates reservations by date.
type ReservationCounter interface {
	CountByDate(ctx context.Context) (map[string]int, error)
}

// Locker provides mutual exclusion per key. The returned func releases the lock.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// UnavailabilityFeed lists the dates closed for booking.
type UnavailabilityFeed interface {
	ListAll(ctx context.Context) ([]string, error)
}

// Notifier delivers booking confirmations.
type Notifier interface {
	Notify(ctx context.Context, event BookingAccepted) error
}

// ClosedDateRepository stores the blackout calendar.
type ClosedDateRepository interface {
	ListClosedDates(ctx context.Context) ([]ClosedDate, error)
	AddClosedDate(ctx context.Context, date ClosedDate) error
	DeleteClosedDate(ctx context.Context, date string) error
}

// PaymentGateway creates payment intents with an external provider.
type PaymentGateway interface {
	CreatePaymentIntent(ctx context.Context, params PaymentIntentParams) (PaymentIntent, error)
}

// Observer receives admission telemetry.
type Observer interface {
	ObserveAdmission(duration time.Duration)
	ObserveRejection(reason string)
	ObserveNotificationFailure()
}

type noopObserver struct{}

func (noopObserver) ObserveAdmission(time.Duration) {}
func (noopObserver) ObserveRejection(string) {}
func (noopObserver) ObserveNotificationFailure() {}

func observerOrNoop(o Observer) Observer {
	if o == nil {
		return noopObserver{}
	}
	return o
}
