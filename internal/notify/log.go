package notify

import (
	"context"
	"log/slog"

	"github.com/example/class-booking/internal/application"
	"github.com/example/class-booking/internal/logging"
)

// LogNotifier records confirmations in the structured log. It is the
// fallback when no other channel is configured.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a notifier writing to logger, or to the context
// logger when logger is nil.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs event at info level.
func (n *LogNotifier) Notify(ctx context.Context, event application.BookingAccepted) error {
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = n.logger
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "booking confirmed",
		"reservation_id", event.Reservation.ID,
		"date", event.Reservation.Date,
		"time", event.Reservation.Time,
		"remaining", event.Remaining,
		"capacity", event.Capacity,
	)
	return nil
}
