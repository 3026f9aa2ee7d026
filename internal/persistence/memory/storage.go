package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/example/class-booking/internal/persistence"
)

// Storage keeps reservations and closed dates in process memory.
type Storage struct {
	mu           sync.RWMutex
	reservations []persistence.Reservation
	pools        map[string]int
	closed       map[string]persistence.ClosedDate
}

// New returns an empty Storage.
func New() *Storage {
	return &Storage{
		pools:  make(map[string]int),
		closed: make(map[string]persistence.ClosedDate),
	}
}

// Close is a no-op kept for parity with the durable stores.
func (s *Storage) Close() error {
	return nil
}

// QueryReservations returns matching reservations ordered by creation time.
func (s *Storage) QueryReservations(ctx context.Context, filter persistence.ReservationFilter) ([]persistence.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]persistence.Reservation, 0)
	for _, rec := range s.reservations {
		if filter.Matches(rec) {
			matches = append(matches, rec)
		}
	}
	return matches, nil
}

// InsertReservation appends rec when its pool is below limit. The count and
// the append happen under the same write lock.
func (s *Storage) InsertReservation(ctx context.Context, rec persistence.Reservation, limit int) (persistence.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return persistence.Reservation{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.reservations {
		if existing.ID == rec.ID {
			return persistence.Reservation{}, fmt.Errorf("memory: reservation %s: %w", rec.ID, persistence.ErrDuplicate)
		}
	}
	if limit > 0 && s.pools[rec.PoolKey] >= limit {
		return persistence.Reservation{}, persistence.ErrCapacityReached
	}

	s.reservations = append(s.reservations, rec)
	s.pools[rec.PoolKey]++
	return rec, nil
}

// CountReservationsByDate groups every stored reservation by its date.
func (s *Storage) CountReservationsByDate(ctx context.Context) (map[string]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	for _, rec := range s.reservations {
		counts[rec.Date]++
	}
	return counts, nil
}

// ListClosedDates returns closed dates in ascending order.
func (s *Storage) ListClosedDates(ctx context.Context) ([]persistence.ClosedDate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	dates := make([]persistence.ClosedDate, 0, len(s.closed))
	for _, d := range s.closed {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Date < dates[j].Date })
	return dates, nil
}

// AddClosedDate records a new closed date.
func (s *Storage) AddClosedDate(ctx context.Context, date persistence.ClosedDate) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.closed[date.Date]; ok {
		return persistence.ErrDuplicate
	}
	s.closed[date.Date] = date
	return nil
}

// DeleteClosedDate removes a closed date.
func (s *Storage) DeleteClosedDate(ctx context.Context, date string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.closed[date]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.closed, date)
	return nil
}
