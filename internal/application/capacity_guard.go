package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/example/class-booking/internal/persistence"
)

// CapacityGuard admits reservations into a pool without ever letting the pool
// exceed its capacity.
//
// Admissions for one pool are serialized by the Locker; the store's conditional
// insert closes the window for any writer that does not share the Locker, such
// as another process. Pools never block one another.
type CapacityGuard struct {
	store    SlotStore
	locker   Locker
	capacity int
	timeout  time.Duration
	observer Observer
	logger   *slog.Logger
}

// NewCapacityGuard constructs a guard with the provided dependencies. A nil
// locker leaves serialization entirely to the store.
func NewCapacityGuard(store SlotStore, locker Locker, capacity int, timeout time.Duration) *CapacityGuard {
	return NewCapacityGuardWithLogger(store, locker, capacity, timeout, nil, nil)
}

// NewCapacityGuardWithLogger constructs a guard with a specified observer and logger.
func NewCapacityGuardWithLogger(store SlotStore, locker Locker, capacity int, timeout time.Duration, observer Observer, logger *slog.Logger) *CapacityGuard {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &CapacityGuard{
		store:    store,
		locker:   locker,
		capacity: capacity,
		timeout:  timeout,
		observer: observerOrNoop(observer),
		logger:   defaultLogger(logger),
	}
}

// Capacity returns the number of seats per pool.
func (g *CapacityGuard) Capacity() int {
	return g.capacity
}

// TryAdmit counts rec's pool and persists rec when a seat is left.
//
// A full pool yields an Admission with Admitted=false and no write. Store,
// lock, or timeout failures are reported as ErrServiceUnavailable.
func (g *CapacityGuard) TryAdmit(ctx context.Context, rec Reservation) (adm Admission, err error) {
	if g == nil || g.store == nil {
		err = fmt.Errorf("capacity guard not configured")
		return
	}
	if rec.PoolKey == "" {
		err = fmt.Errorf("reservation %s has no pool key", rec.ID)
		return
	}

	logger := serviceLogger(ctx, g.logger, "CapacityGuard", "TryAdmit", "pool", rec.PoolKey)
	defer func() {
		switch {
		case err != nil:
			logger.ErrorContext(ctx, "admission failed", "error", err, "error_kind", ErrorKind(err))
		case !adm.Admitted:
			logger.InfoContext(ctx, "admission rejected", "reason", adm.Reason)
		default:
			logger.DebugContext(ctx, "admission granted", "reservation_id", adm.Reservation.ID, "remaining", adm.Remaining)
		}
	}()

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	start := time.Now()

	if g.locker != nil {
		var unlock func()
		unlock, err = g.locker.Lock(ctx, rec.PoolKey)
		if err != nil {
			err = fmt.Errorf("%w: lock pool %s: %w", ErrServiceUnavailable, rec.PoolKey, err)
			return
		}
		defer unlock()
	}

	existing, err := g.store.Query(ctx, ReservationQuery{PoolKey: rec.PoolKey})
	if err != nil {
		err = fmt.Errorf("%w: count pool %s: %w", ErrServiceUnavailable, rec.PoolKey, err)
		return
	}
	n := len(existing)
	if n >= g.capacity {
		adm = g.reject()
		return
	}

	stored, err := g.store.Insert(ctx, rec, g.capacity)
	if err != nil {
		if errors.Is(err, persistence.ErrCapacityReached) {
			err = nil
			adm = g.reject()
			return
		}
		err = fmt.Errorf("%w: insert reservation: %w", ErrServiceUnavailable, err)
		return
	}

	position := n + 1
	if g.locker == nil {
		position = g.positionOf(ctx, stored, position)
	}
	adm = Admission{
		Admitted:    true,
		Remaining:   max(g.capacity-position, 0),
		Reservation: stored,
	}
	g.observer.ObserveAdmission(time.Since(start))
	return
}

// positionOf rereads the pool after an unserialized insert and returns the
// 1-based rank of rec in store order, so concurrent winners report distinct
// remaining counts. fallback is used when the pool cannot be reread.
func (g *CapacityGuard) positionOf(ctx context.Context, rec Reservation, fallback int) int {
	pool, err := g.store.Query(ctx, ReservationQuery{PoolKey: rec.PoolKey})
	if err != nil {
		return fallback
	}
	if i := slices.IndexFunc(pool, func(r Reservation) bool { return r.ID == rec.ID }); i >= 0 {
		return i + 1
	}
	return max(len(pool), fallback)
}

func (g *CapacityGuard) reject() Admission {
	g.observer.ObserveRejection(string(RejectSlotFull))
	return Admission{Reason: RejectSlotFull}
}
