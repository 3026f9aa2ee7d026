package notify

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/example/class-booking/internal/application"
)

// Fanout delivers each event to every notifier concurrently. One failing
// channel does not stop the others; all failures are joined.
type Fanout []application.Notifier

// Notify implements application.Notifier.
func (f Fanout) Notify(ctx context.Context, event application.BookingAccepted) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	for _, n := range f {
		if n == nil {
			continue
		}
		g.Go(func() error {
			if err := n.Notify(ctx, event); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}
