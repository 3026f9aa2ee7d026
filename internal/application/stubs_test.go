package application

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/example/class-booking/internal/persistence"
)

// slotStoreStub keeps reservations in memory. With enforceLimit set, Insert is
// a conditional write under one lock. Otherwise it ignores the limit and
// yields before writing, which exposes any missing serialization in the caller.
type slotStoreStub struct {
	mu           sync.Mutex
	records      []Reservation
	enforceLimit bool
	queryErr     error
	insertErr    error
	queries      int
	inserts      int
}

func (s *slotStoreStub) Query(ctx context.Context, query ReservationQuery) ([]Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	var out []Reservation
	for _, r := range s.records {
		if query.PoolKey != "" && r.PoolKey != query.PoolKey {
			continue
		}
		if query.Date != "" && r.Date != query.Date {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *slotStoreStub) Insert(ctx context.Context, rec Reservation, limit int) (Reservation, error) {
	s.mu.Lock()
	s.inserts++
	if s.insertErr != nil {
		s.mu.Unlock()
		return Reservation{}, s.insertErr
	}
	if s.enforceLimit {
		defer s.mu.Unlock()
		if limit > 0 && s.countLocked(rec.PoolKey) >= limit {
			return Reservation{}, persistence.ErrCapacityReached
		}
		s.records = append(s.records, rec)
		return rec, nil
	}
	s.mu.Unlock()

	runtime.Gosched()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return rec, nil
}

func (s *slotStoreStub) countLocked(pool string) int {
	n := 0
	for _, r := range s.records {
		if r.PoolKey == pool {
			n++
		}
	}
	return n
}

func (s *slotStoreStub) count(pool string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countLocked(pool)
}

func (s *slotStoreStub) insertCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inserts
}

// keyedLockerStub serializes callers per key.
type keyedLockerStub struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
	err   error
}

func (l *keyedLockerStub) Lock(ctx context.Context, key string) (func(), error) {
	if l.err != nil {
		return nil, l.err
	}
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]chan struct{})
	}
	ch, ok := l.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[key] = ch
	}
	l.mu.Unlock()

	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type feedStub struct {
	mu    sync.Mutex
	dates []string
	err   error
	calls int
}

func (f *feedStub) ListAll(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.dates, f.err
}

type admitterStub struct {
	mu       sync.Mutex
	calls    int
	capacity int
}

func (a *admitterStub) TryAdmit(ctx context.Context, rec Reservation) (Admission, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	return Admission{Admitted: true, Remaining: a.capacity - 1, Reservation: rec}, nil
}

func (a *admitterStub) Capacity() int { return a.capacity }

type notifierStub struct {
	mu     sync.Mutex
	events []BookingAccepted
	err    error
}

func (n *notifierStub) Notify(ctx context.Context, event BookingAccepted) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return n.err
}

func (n *notifierStub) delivered() []BookingAccepted {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]BookingAccepted(nil), n.events...)
}

type observerStub struct {
	mu                   sync.Mutex
	admissions           int
	rejections           map[string]int
	notificationFailures int
}

func (o *observerStub) ObserveAdmission(time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.admissions++
}

func (o *observerStub) ObserveRejection(reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.rejections == nil {
		o.rejections = make(map[string]int)
	}
	o.rejections[reason]++
}

func (o *observerStub) ObserveNotificationFailure() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.notificationFailures++
}
