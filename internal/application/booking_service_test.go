package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/class-booking/internal/testfixtures"
)

type bookingHarness struct {
	store    *slotStoreStub
	feed     *feedStub
	notifier *notifierStub
	observer *observerStub
	clock    *testfixtures.Clock
	service  *BookingService
}

func newBookingHarness(opts BookingOptions) *bookingHarness {
	h := &bookingHarness{
		store:    &slotStoreStub{},
		feed:     &feedStub{},
		notifier: &notifierStub{},
		observer: &observerStub{},
		clock:    testfixtures.NewClock(time.Time{}),
	}
	opts.Observer = h.observer
	guard := NewCapacityGuardWithLogger(h.store, &keyedLockerStub{}, DefaultCapacity, time.Second, h.observer, nil)
	h.service = NewBookingService(guard, h.feed, h.notifier, opts, testfixtures.NewIDGenerator("res").NextFunc(), h.clock.NowFunc())
	return h
}

func validRequest() BookingRequest {
	return BookingRequest{Name: "Camille", Email: "camille@example.com", Date: "2024-06-01"}
}

func TestBookingService_Book(t *testing.T) {
	t.Parallel()

	t.Run("accepts a booking and builds the reservation", func(t *testing.T) {
		t.Parallel()

		h := newBookingHarness(BookingOptions{})
		req := validRequest()
		req.Name = "  Camille  "
		req.Phone = " 0600000000 "

		outcome, err := h.service.Book(context.Background(), req)
		if err != nil {
			t.Fatalf("Book returned error: %v", err)
		}
		h.service.Wait()

		rec := outcome.Reservation
		if rec.ID != "res-001" || rec.Name != "Camille" || rec.Phone != "0600000000" {
			t.Fatalf("unexpected reservation: %#v", rec)
		}
		if rec.Time != DefaultTime || rec.PoolKey != "2024-06-01" {
			t.Fatalf("expected default time and date pool, got %q and %q", rec.Time, rec.PoolKey)
		}
		if !rec.CreatedAt.Equal(testfixtures.ReferenceTime()) {
			t.Fatalf("expected createdAt from clock, got %v", rec.CreatedAt)
		}
		if outcome.Remaining != 9 || outcome.Capacity != DefaultCapacity {
			t.Fatalf("unexpected outcome: %+v", outcome)
		}

		events := h.notifier.delivered()
		if len(events) != 1 || events[0].Reservation.ID != rec.ID || events[0].Remaining != 9 {
			t.Fatalf("expected exactly one confirmation, got %#v", events)
		}
	})

	t.Run("rejects the eleventh booking for a date", func(t *testing.T) {
		t.Parallel()

		h := newBookingHarness(BookingOptions{})
		for i := 0; i < DefaultCapacity; i++ {
			if _, err := h.service.Book(context.Background(), validRequest()); err != nil {
				t.Fatalf("booking %d failed: %v", i+1, err)
			}
		}

		_, err := h.service.Book(context.Background(), validRequest())
		if !errors.Is(err, ErrSlotFull) {
			t.Fatalf("expected ErrSlotFull, got %v", err)
		}
		h.service.Wait()

		if got := h.store.count("2024-06-01"); got != DefaultCapacity {
			t.Fatalf("expected %d stored reservations, got %d", DefaultCapacity, got)
		}
		if got := len(h.notifier.delivered()); got != DefaultCapacity {
			t.Fatalf("expected %d confirmations, got %d", DefaultCapacity, got)
		}
	})

	t.Run("admits exactly capacity out of fifteen concurrent bookings", func(t *testing.T) {
		t.Parallel()

		h := newBookingHarness(BookingOptions{})

		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			accepted int
			full     int
		)
		for i := 0; i < 15; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := h.service.Book(context.Background(), validRequest())
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					accepted++
				case errors.Is(err, ErrSlotFull):
					full++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()
		h.service.Wait()

		if accepted != 10 || full != 5 {
			t.Fatalf("expected 10 accepted and 5 rejected, got %d and %d", accepted, full)
		}
		if got := h.store.count("2024-06-01"); got != 10 {
			t.Fatalf("expected 10 stored reservations, got %d", got)
		}
		if got := len(h.notifier.delivered()); got != 10 {
			t.Fatalf("expected 10 confirmations, got %d", got)
		}
	})

	t.Run("validation failures never reach the store", func(t *testing.T) {
		t.Parallel()

		h := newBookingHarness(BookingOptions{})
		cases := map[string]BookingRequest{
			"name":  {Name: "", Email: "a@b.com", Date: "2024-06-01"},
			"email": {Name: "Camille", Email: "   ", Date: "2024-06-01"},
			"date":  {Name: "Camille", Email: "a@b.com", Date: "01/06/2024"},
		}
		for field, req := range cases {
			_, err := h.service.Book(context.Background(), req)
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("%s: expected ValidationError, got %v", field, err)
			}
			if _, ok := vErr.FieldErrors[field]; !ok {
				t.Fatalf("%s: expected field error, got %#v", field, vErr.FieldErrors)
			}
		}

		if h.store.insertCalls() != 0 || h.store.queries != 0 {
			t.Fatalf("expected no store access, got %d queries and %d inserts", h.store.queries, h.store.insertCalls())
		}
		if h.feed.calls != 0 {
			t.Fatalf("expected the closed-date feed not to be consulted")
		}
		if h.observer.rejections["validation"] != 3 {
			t.Fatalf("expected 3 validation rejections, got %#v", h.observer.rejections)
		}
	})

	t.Run("closed dates are rejected before any capacity check", func(t *testing.T) {
		t.Parallel()

		feed := &feedStub{dates: []string{"2024-05-25", "2024-06-01"}}
		admitter := &admitterStub{capacity: DefaultCapacity}
		notifier := &notifierStub{}
		service := NewBookingService(admitter, feed, notifier, BookingOptions{}, nil, nil)

		_, err := service.Book(context.Background(), validRequest())
		if !errors.Is(err, ErrClosedDate) {
			t.Fatalf("expected ErrClosedDate, got %v", err)
		}
		service.Wait()
		if admitter.calls != 0 {
			t.Fatalf("expected no capacity check, got %d", admitter.calls)
		}
		if len(notifier.delivered()) != 0 {
			t.Fatalf("expected no confirmation for a closed date")
		}
	})

	t.Run("feed failures surface as service unavailable", func(t *testing.T) {
		t.Parallel()

		feed := &feedStub{err: errors.New("timeout")}
		admitter := &admitterStub{capacity: DefaultCapacity}
		service := NewBookingService(admitter, feed, nil, BookingOptions{FeedTimeout: time.Second}, nil, nil)

		_, err := service.Book(context.Background(), validRequest())
		if !errors.Is(err, ErrServiceUnavailable) {
			t.Fatalf("expected ErrServiceUnavailable, got %v", err)
		}
		if admitter.calls != 0 {
			t.Fatalf("expected no capacity check after a feed failure")
		}
	})

	t.Run("notification failures do not undo the admission", func(t *testing.T) {
		t.Parallel()

		h := newBookingHarness(BookingOptions{})
		h.notifier.err = errors.New("smtp unavailable")

		outcome, err := h.service.Book(context.Background(), validRequest())
		if err != nil {
			t.Fatalf("Book returned error: %v", err)
		}
		h.service.Wait()

		if outcome.Reservation.ID == "" || h.store.count("2024-06-01") != 1 {
			t.Fatalf("expected the reservation to remain stored")
		}
		if h.observer.notificationFailures != 1 {
			t.Fatalf("expected one notification failure, got %d", h.observer.notificationFailures)
		}
	})

	t.Run("confirmation survives request cancellation", func(t *testing.T) {
		t.Parallel()

		h := newBookingHarness(BookingOptions{})
		ctx, cancel := context.WithCancel(context.Background())

		if _, err := h.service.Book(ctx, validRequest()); err != nil {
			t.Fatalf("Book returned error: %v", err)
		}
		cancel()
		h.service.Wait()

		if got := len(h.notifier.delivered()); got != 1 {
			t.Fatalf("expected one confirmation, got %d", got)
		}
	})

	t.Run("date and time pooling gives each slot its own capacity", func(t *testing.T) {
		t.Parallel()

		h := newBookingHarness(BookingOptions{PoolKey: PoolByDateAndTime, DefaultTime: "18h00"})
		for i := 0; i < DefaultCapacity; i++ {
			if _, err := h.service.Book(context.Background(), validRequest()); err != nil {
				t.Fatalf("booking %d failed: %v", i+1, err)
			}
		}

		morning := validRequest()
		morning.Time = "10h00"
		outcome, err := h.service.Book(context.Background(), morning)
		if err != nil {
			t.Fatalf("expected the morning slot to have room, got %v", err)
		}
		if outcome.Reservation.PoolKey != "2024-06-01|10h00" {
			t.Fatalf("unexpected pool key %q", outcome.Reservation.PoolKey)
		}
		if got := h.store.count("2024-06-01|18h00"); got != DefaultCapacity {
			t.Fatalf("expected evening pool to use the configured default time, got %d", got)
		}
		h.service.Wait()
	})
}
