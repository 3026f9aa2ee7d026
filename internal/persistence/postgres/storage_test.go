package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/example/class-booking/internal/persistence"
	"github.com/google/uuid"
)

// newTestStorage connects to BOOKING_TEST_POSTGRES_URL or skips the test.
func newTestStorage(t *testing.T) *Storage {
	t.Helper()

	url := os.Getenv("BOOKING_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("BOOKING_TEST_POSTGRES_URL not set")
	}

	ctx := context.Background()
	storage, err := Open(ctx, url)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = storage.Close() })

	if err := storage.Migrate(ctx); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	return storage
}

func TestInsertReservation_EnforcesLimitUnderConcurrency(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	pool := "test-" + uuid.NewString()
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
		full     int
	)
	for i := 0; i < 15; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := storage.InsertReservation(ctx, persistence.Reservation{
				ID:        uuid.NewString(),
				Name:      fmt.Sprintf("Client %d", i),
				Email:     fmt.Sprintf("c%d@example.com", i),
				Date:      "2024-06-01",
				Time:      "19h30",
				PoolKey:   pool,
				CreatedAt: time.Now().UTC(),
			}, 10)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				admitted++
			case errors.Is(err, persistence.ErrCapacityReached):
				full++
			default:
				t.Errorf("unexpected insert error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if admitted != 10 || full != 5 {
		t.Fatalf("expected 10 admitted and 5 rejected, got %d and %d", admitted, full)
	}

	stored, err := storage.QueryReservations(ctx, persistence.ReservationFilter{PoolKey: pool})
	if err != nil {
		t.Fatalf("QueryReservations failed: %v", err)
	}
	if len(stored) != 10 {
		t.Fatalf("expected 10 stored reservations, got %d", len(stored))
	}
}

func TestClosedDateRepository(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	date := "2099-" + time.Now().Format("01-02")
	_ = storage.DeleteClosedDate(ctx, date)

	if err := storage.AddClosedDate(ctx, persistence.ClosedDate{Date: date, CreatedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("AddClosedDate failed: %v", err)
	}
	if err := storage.AddClosedDate(ctx, persistence.ClosedDate{Date: date, CreatedAt: time.Now().UTC()}); !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if err := storage.DeleteClosedDate(ctx, date); err != nil {
		t.Fatalf("DeleteClosedDate failed: %v", err)
	}
	if err := storage.DeleteClosedDate(ctx, date); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
