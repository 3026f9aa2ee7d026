package application

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
)

const dateLayout = "2006-01-02"

// Admitter is the capacity check consulted by BookingService.
type Admitter interface {
	TryAdmit(ctx context.Context, rec Reservation) (Admission, error)
	Capacity() int
}

// BookingOptions tunes BookingService behaviour. Zero values select defaults.
type BookingOptions struct {
	PoolKey       PoolKeyPolicy
	DefaultTime   string
	FeedTimeout   time.Duration
	NotifyTimeout time.Duration
	Observer      Observer
}

// BookingService validates requests, consults the blackout calendar, admits
// reservations through the guard, and dispatches confirmations.
type BookingService struct {
	guard       Admitter
	feed        UnavailabilityFeed
	notifier    Notifier
	opts        BookingOptions
	observer    Observer
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
	inflight    sync.WaitGroup
}

// NewBookingService constructs a booking service with the provided dependencies.
func NewBookingService(guard Admitter, feed UnavailabilityFeed, notifier Notifier, opts BookingOptions, idGenerator func() string, now func() time.Time) *BookingService {
	return NewBookingServiceWithLogger(guard, feed, notifier, opts, idGenerator, now, nil)
}

// NewBookingServiceWithLogger constructs a booking service with a specified logger.
func NewBookingServiceWithLogger(guard Admitter, feed UnavailabilityFeed, notifier Notifier, opts BookingOptions, idGenerator func() string, now func() time.Time, logger *slog.Logger) *BookingService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if opts.PoolKey == nil {
		opts.PoolKey = PoolByDate
	}
	if strings.TrimSpace(opts.DefaultTime) == "" {
		opts.DefaultTime = DefaultTime
	}
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = 30 * time.Second
	}
	return &BookingService{
		guard:       guard,
		feed:        feed,
		notifier:    notifier,
		opts:        opts,
		observer:    observerOrNoop(opts.Observer),
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *BookingService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "BookingService", operation, attrs...)
}

// Book admits a reservation for req.Date.
//
// The blackout calendar is checked before the guard is consulted, so a closed
// date never touches the reservation store. The confirmation is dispatched in
// the background exactly once per admitted booking; its failure is logged and
// never reverses the admission.
func (s *BookingService) Book(ctx context.Context, req BookingRequest) (outcome BookingOutcome, err error) {
	if s == nil || s.guard == nil {
		err = fmt.Errorf("BookingService is not configured")
		return
	}

	req = normalizeBookingRequest(req, s.opts.DefaultTime)
	logger := s.loggerWith(ctx, "Book", "date", req.Date, "time", req.Time)
	defer func() {
		switch {
		case err == nil:
			logger.With("reservation_id", outcome.Reservation.ID).InfoContext(ctx, "booking accepted", "remaining", outcome.Remaining)
		case isRejection(err):
			logger.WarnContext(ctx, "booking rejected", "error", err, "error_kind", ErrorKind(err))
		default:
			logger.ErrorContext(ctx, "failed to book", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	if vErr := validateBookingRequest(req); vErr.HasErrors() {
		s.observer.ObserveRejection("validation")
		err = vErr
		return
	}

	closed, err := s.isClosed(ctx, req.Date)
	if err != nil {
		return
	}
	if closed {
		s.observer.ObserveRejection("closed_date")
		err = ErrClosedDate
		return
	}

	rec := Reservation{
		ID:        s.idGenerator(),
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		Date:      req.Date,
		Time:      req.Time,
		PoolKey:   s.opts.PoolKey(req.Date, req.Time),
		CreatedAt: s.now(),
	}

	adm, err := s.guard.TryAdmit(ctx, rec)
	if err != nil {
		return
	}
	if !adm.Admitted {
		err = ErrSlotFull
		return
	}

	outcome = BookingOutcome{
		Reservation: adm.Reservation,
		Remaining:   adm.Remaining,
		Capacity:    s.guard.Capacity(),
	}
	s.dispatch(ctx, BookingAccepted(outcome))
	return
}

// Wait blocks until every in-flight confirmation dispatch has returned.
func (s *BookingService) Wait() {
	if s == nil {
		return
	}
	s.inflight.Wait()
}

func (s *BookingService) isClosed(ctx context.Context, date string) (bool, error) {
	if s.feed == nil {
		return false, nil
	}
	if s.opts.FeedTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.FeedTimeout)
		defer cancel()
	}
	dates, err := s.feed.ListAll(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: read closed dates: %w", ErrServiceUnavailable, err)
	}
	return slices.Contains(dates, date), nil
}

// dispatch hands event to the notifier on a detached goroutine. The request
// context is stripped of its cancellation so a finished request does not abort
// delivery.
func (s *BookingService) dispatch(ctx context.Context, event BookingAccepted) {
	if s.notifier == nil {
		return
	}

	logger := s.loggerWith(ctx, "Notify", "reservation_id", event.Reservation.ID)
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()

		notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.NotifyTimeout)
		defer cancel()

		if err := s.notifier.Notify(notifyCtx, event); err != nil {
			s.observer.ObserveNotificationFailure()
			logger.WarnContext(notifyCtx, "confirmation dispatch failed", "error", err)
			return
		}
		logger.DebugContext(notifyCtx, "confirmation dispatched")
	}()
}

func normalizeBookingRequest(req BookingRequest, defaultTime string) BookingRequest {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)
	req.Date = strings.TrimSpace(req.Date)
	req.Time = strings.TrimSpace(req.Time)
	if req.Time == "" {
		req.Time = defaultTime
	}
	return req
}

func validateBookingRequest(req BookingRequest) *ValidationError {
	vErr := &ValidationError{}
	if req.Name == "" {
		vErr.add("name", "name is required")
	}
	if req.Email == "" {
		vErr.add("email", "email is required")
	}
	if msg := validateDate(req.Date); msg != "" {
		vErr.add("date", msg)
	}
	return vErr
}

func validateDate(date string) string {
	if date == "" {
		return "date is required"
	}
	if _, err := time.Parse(dateLayout, date); err != nil {
		return "date must use YYYY-MM-DD"
	}
	return ""
}
