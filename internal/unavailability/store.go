package unavailability

import (
	"context"

	"github.com/example/class-booking/internal/application"
)

// StoreFeed reads closed dates from the reservation store.
type StoreFeed struct {
	repo application.ClosedDateRepository
}

// NewStoreFeed wraps repo.
func NewStoreFeed(repo application.ClosedDateRepository) *StoreFeed {
	return &StoreFeed{repo: repo}
}

// ListAll returns the stored dates in repository order.
func (f *StoreFeed) ListAll(ctx context.Context) ([]string, error) {
	closed, err := f.repo.ListClosedDates(ctx)
	if err != nil {
		return nil, err
	}
	dates := make([]string, 0, len(closed))
	for _, c := range closed {
		dates = append(dates, c.Date)
	}
	return dates, nil
}
