package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// ReportService serves read-only views over reservations and the blackout calendar.
type ReportService struct {
	counter ReservationCounter
	feed    UnavailabilityFeed
	timeout time.Duration
	logger  *slog.Logger
}

// NewReportService constructs a report service with the provided dependencies.
func NewReportService(counter ReservationCounter, feed UnavailabilityFeed, timeout time.Duration) *ReportService {
	return NewReportServiceWithLogger(counter, feed, timeout, nil)
}

// NewReportServiceWithLogger constructs a report service with a specified logger.
func NewReportServiceWithLogger(counter ReservationCounter, feed UnavailabilityFeed, timeout time.Duration, logger *slog.Logger) *ReportService {
	return &ReportService{counter: counter, feed: feed, timeout: timeout, logger: defaultLogger(logger)}
}

func (s *ReportService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ReportService", operation, attrs...)
}

func (s *ReportService) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return context.WithCancel(ctx)
}

// CountsByDate returns the number of reservations held for each date.
func (s *ReportService) CountsByDate(ctx context.Context) (counts map[string]int, err error) {
	if s == nil || s.counter == nil {
		err = fmt.Errorf("ReportService is not configured")
		return
	}

	logger := s.loggerWith(ctx, "CountsByDate")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to count reservations", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	ctx, cancel := s.bounded(ctx)
	defer cancel()

	counts, err = s.counter.CountByDate(ctx)
	if err != nil {
		err = fmt.Errorf("%w: count reservations: %w", ErrServiceUnavailable, err)
		return
	}
	if counts == nil {
		counts = map[string]int{}
	}
	return
}

// UnavailableDates returns the blackout calendar verbatim.
func (s *ReportService) UnavailableDates(ctx context.Context) (dates []string, err error) {
	if s == nil {
		err = fmt.Errorf("ReportService is not configured")
		return
	}

	logger := s.loggerWith(ctx, "UnavailableDates")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to read closed dates", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	if s.feed == nil {
		dates = []string{}
		return
	}

	ctx, cancel := s.bounded(ctx)
	defer cancel()

	dates, err = s.feed.ListAll(ctx)
	if err != nil {
		err = fmt.Errorf("%w: read closed dates: %w", ErrServiceUnavailable, err)
		return
	}
	if dates == nil {
		dates = []string{}
	}
	return
}
