package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/class-booking/internal/persistence"
	"github.com/example/class-booking/internal/persistence/memory"
	"github.com/example/class-booking/internal/persistence/sqlite"
)

// StoreHarness exposes one backend through the persistence interfaces.
type StoreHarness struct {
	Name         string
	Reservations persistence.ReservationRepository
	ClosedDates  persistence.ClosedDateRepository
}

// NewSQLiteHarness opens a migrated SQLite database in a temporary directory.
// The database is closed automatically when the test finishes.
func NewSQLiteHarness(tb testing.TB) StoreHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "booking.db")
	storage, err := sqlite.Open("file:" + path)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}
	tb.Cleanup(func() { _ = storage.Close() })

	if err := storage.Migrate(context.Background()); err != nil {
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	return StoreHarness{Name: "sqlite", Reservations: storage, ClosedDates: storage}
}

// NewMemoryHarness returns an empty in-memory store.
func NewMemoryHarness(tb testing.TB) StoreHarness {
	tb.Helper()

	storage := memory.New()
	return StoreHarness{Name: "memory", Reservations: storage, ClosedDates: storage}
}

// Harnesses returns one harness per embedded backend.
func Harnesses(tb testing.TB) []StoreHarness {
	tb.Helper()
	return []StoreHarness{NewMemoryHarness(tb), NewSQLiteHarness(tb)}
}
