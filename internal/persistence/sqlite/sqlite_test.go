package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/example/class-booking/internal/persistence"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()

	dir := t.TempDir()
	dsn := "file:" + filepath.Join(dir, "booking.db")
	storage, err := Open(dsn)
	if err != nil {
		t.Fatalf("failed to open storage: %v", err)
	}

	t.Cleanup(func() {
		_ = storage.Close()
	})

	if err := storage.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	return storage
}

func reservation(id, date string) persistence.Reservation {
	return persistence.Reservation{
		ID:        id,
		Name:      "Client " + id,
		Email:     id + "@example.com",
		Date:      date,
		Time:      "19h30",
		PoolKey:   date,
		CreatedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestMigrate_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)

	if err := storage.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate failed: %v", err)
	}

	var applied int
	if err := storage.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&applied); err != nil {
		t.Fatalf("count schema_migrations: %v", err)
	}
	if applied != 2 {
		t.Fatalf("expected 2 applied migrations, got %d", applied)
	}
}

func TestReservationRepository(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)

	rec := reservation("r-1", "2024-06-01")
	rec.Phone = "0600000000"
	if _, err := storage.InsertReservation(ctx, rec, 10); err != nil {
		t.Fatalf("InsertReservation failed: %v", err)
	}
	if _, err := storage.InsertReservation(ctx, reservation("r-2", "2024-06-08"), 10); err != nil {
		t.Fatalf("InsertReservation failed: %v", err)
	}

	got, err := storage.QueryReservations(ctx, persistence.ReservationFilter{Date: "2024-06-01"})
	if err != nil {
		t.Fatalf("QueryReservations failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != "r-1" || got[0].Phone != "0600000000" {
		t.Fatalf("unexpected reservations: %#v", got)
	}
	if !got[0].CreatedAt.Equal(rec.CreatedAt) {
		t.Fatalf("expected created_at %s, got %s", rec.CreatedAt, got[0].CreatedAt)
	}

	all, err := storage.QueryReservations(ctx, persistence.ReservationFilter{})
	if err != nil {
		t.Fatalf("QueryReservations failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 reservations, got %d", len(all))
	}

	if _, err := storage.InsertReservation(ctx, rec, 10); !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	counts, err := storage.CountReservationsByDate(ctx)
	if err != nil {
		t.Fatalf("CountReservationsByDate failed: %v", err)
	}
	if counts["2024-06-01"] != 1 || counts["2024-06-08"] != 1 || len(counts) != 2 {
		t.Fatalf("unexpected counts: %#v", counts)
	}
}

func TestInsertReservation_EnforcesLimitUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)

	const attempts = 15
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
		full     int
		failures []error
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := storage.InsertReservation(ctx, reservation(fmt.Sprintf("r-%02d", i), "2024-06-01"), 10)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				admitted++
			case errors.Is(err, persistence.ErrCapacityReached):
				full++
			default:
				failures = append(failures, err)
			}
		}(i)
	}
	wg.Wait()

	if len(failures) > 0 {
		t.Fatalf("unexpected insert errors: %v", failures)
	}
	if admitted != 10 || full != 5 {
		t.Fatalf("expected 10 admitted and 5 rejected, got %d and %d", admitted, full)
	}

	stored, err := storage.QueryReservations(ctx, persistence.ReservationFilter{PoolKey: "2024-06-01"})
	if err != nil {
		t.Fatalf("QueryReservations failed: %v", err)
	}
	if len(stored) != 10 {
		t.Fatalf("expected 10 stored reservations, got %d", len(stored))
	}
}

func TestClosedDateRepository(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)

	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	for _, date := range []string{"2024-07-14", "2024-05-08"} {
		if err := storage.AddClosedDate(ctx, persistence.ClosedDate{Date: date, CreatedAt: now}); err != nil {
			t.Fatalf("AddClosedDate failed: %v", err)
		}
	}
	if err := storage.AddClosedDate(ctx, persistence.ClosedDate{Date: "2024-05-08", CreatedAt: now}); !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	dates, err := storage.ListClosedDates(ctx)
	if err != nil {
		t.Fatalf("ListClosedDates failed: %v", err)
	}
	if len(dates) != 2 || dates[0].Date != "2024-05-08" || dates[1].Date != "2024-07-14" {
		t.Fatalf("unexpected closed dates: %#v", dates)
	}

	if err := storage.DeleteClosedDate(ctx, "2024-05-08"); err != nil {
		t.Fatalf("DeleteClosedDate failed: %v", err)
	}
	if err := storage.DeleteClosedDate(ctx, "2024-05-08"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestWithBusyTimeout(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"file:booking.db":                     "file:booking.db?_pragma=busy_timeout(5000)",
		"file:booking.db?mode=rwc":            "file:booking.db?mode=rwc&_pragma=busy_timeout(5000)",
		"file:x.db?_pragma=busy_timeout(100)": "file:x.db?_pragma=busy_timeout(100)",
	}
	for in, want := range cases {
		if got := withBusyTimeout(in); got != want {
			t.Fatalf("withBusyTimeout(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSplitStatements(t *testing.T) {
	t.Parallel()

	got := splitStatements("-- header\nCREATE TABLE a (x INT);\n\n-- note\nCREATE INDEX i ON a (x);\n")
	if len(got) != 2 {
		t.Fatalf("expected 2 statements, got %d: %#v", len(got), got)
	}
	if got[0] != "CREATE TABLE a (x INT)" {
		t.Fatalf("unexpected first statement: %q", got[0])
	}
}
