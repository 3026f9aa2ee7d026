package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/class-booking/internal/persistence"
)

// ClosedDateService manages the blackout calendar for administrators.
type ClosedDateService struct {
	repo    ClosedDateRepository
	now     func() time.Time
	timeout time.Duration
	logger  *slog.Logger
}

// NewClosedDateService constructs a closed date service with the provided dependencies.
func NewClosedDateService(repo ClosedDateRepository, now func() time.Time, timeout time.Duration) *ClosedDateService {
	return NewClosedDateServiceWithLogger(repo, now, timeout, nil)
}

// NewClosedDateServiceWithLogger constructs a closed date service with a specified logger.
func NewClosedDateServiceWithLogger(repo ClosedDateRepository, now func() time.Time, timeout time.Duration, logger *slog.Logger) *ClosedDateService {
	if now == nil {
		now = time.Now
	}
	return &ClosedDateService{repo: repo, now: now, timeout: timeout, logger: defaultLogger(logger)}
}

func (s *ClosedDateService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ClosedDateService", operation, attrs...)
}

func (s *ClosedDateService) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return context.WithCancel(ctx)
}

// List returns every closed date.
func (s *ClosedDateService) List(ctx context.Context) (dates []ClosedDate, err error) {
	if s == nil || s.repo == nil {
		err = fmt.Errorf("ClosedDateService is not configured")
		return
	}

	repoCtx, cancel := s.bounded(ctx)
	defer cancel()

	dates, err = s.repo.ListClosedDates(repoCtx)
	if err != nil {
		err = fmt.Errorf("%w: list closed dates: %w", ErrServiceUnavailable, err)
		s.loggerWith(ctx, "List").ErrorContext(ctx, "failed to list closed dates", "error", err, "error_kind", ErrorKind(err))
	}
	return
}

// Add closes a date for booking.
func (s *ClosedDateService) Add(ctx context.Context, input ClosedDateInput) (date ClosedDate, err error) {
	if s == nil || s.repo == nil {
		err = fmt.Errorf("ClosedDateService is not configured")
		return
	}

	input.Date = strings.TrimSpace(input.Date)
	logger := s.loggerWith(ctx, "Add", "date", input.Date)
	defer func() {
		switch {
		case err == nil:
			logger.InfoContext(ctx, "date closed")
		case isRejection(err):
			logger.WarnContext(ctx, "close date rejected", "error", err, "error_kind", ErrorKind(err))
		default:
			logger.ErrorContext(ctx, "failed to close date", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	if msg := validateDate(input.Date); msg != "" {
		vErr := &ValidationError{}
		vErr.add("date", msg)
		err = vErr
		return
	}

	date = ClosedDate{Date: input.Date, Reason: strings.TrimSpace(input.Reason), CreatedAt: s.now()}
	repoCtx, cancel := s.bounded(ctx)
	defer cancel()
	if err = s.repo.AddClosedDate(repoCtx, date); err != nil {
		err = mapClosedDateRepoError(err)
		date = ClosedDate{}
	}
	return
}

// Remove reopens a date for booking.
func (s *ClosedDateService) Remove(ctx context.Context, date string) (err error) {
	if s == nil || s.repo == nil {
		return fmt.Errorf("ClosedDateService is not configured")
	}

	date = strings.TrimSpace(date)
	logger := s.loggerWith(ctx, "Remove", "date", date)
	defer func() {
		switch {
		case err == nil:
			logger.InfoContext(ctx, "date reopened")
		case isRejection(err):
			logger.WarnContext(ctx, "reopen date rejected", "error", err, "error_kind", ErrorKind(err))
		default:
			logger.ErrorContext(ctx, "failed to reopen date", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	repoCtx, cancel := s.bounded(ctx)
	defer cancel()
	if err = s.repo.DeleteClosedDate(repoCtx, date); err != nil {
		err = mapClosedDateRepoError(err)
	}
	return
}

func mapClosedDateRepoError(err error) error {
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	default:
		return fmt.Errorf("%w: %w", ErrServiceUnavailable, err)
	}
}
