package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/class-booking/internal/persistence"
	_ "modernc.org/sqlite"
)

const timeLayout = time.RFC3339Nano

// Storage persists reservations and closed dates in a SQLite database.
type Storage struct {
	db *sql.DB
}

// Open connects to the SQLite database described by dsn.
func Open(dsn string) (*Storage, error) {
	db, err := sql.Open("sqlite", withBusyTimeout(dsn))
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	return &Storage{db: db}, nil
}

// DB exposes the underlying handle.
func (s *Storage) DB() *sql.DB {
	return s.db
}

// Close releases the database handle.
func (s *Storage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate applies the embedded schema migrations.
func (s *Storage) Migrate(ctx context.Context) error {
	return runMigrations(ctx, s.db, migrationFiles)
}

const selectReservations = `SELECT id, name, email, phone, date, time, pool_key, created_at FROM reservations`

// QueryReservations returns reservations matching filter ordered by creation time.
func (s *Storage) QueryReservations(ctx context.Context, filter persistence.ReservationFilter) ([]persistence.Reservation, error) {
	query := selectReservations + ` WHERE (? = '' OR date = ?) AND (? = '' OR pool_key = ?) ORDER BY created_at, id`
	rows, err := s.db.QueryContext(ctx, query, filter.Date, filter.Date, filter.PoolKey, filter.PoolKey)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query reservations: %w", err)
	}
	defer rows.Close()

	reservations := make([]persistence.Reservation, 0)
	for rows.Next() {
		rec, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		reservations = append(reservations, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate reservations: %w", err)
	}
	return reservations, nil
}

// InsertReservation counts the pool and inserts rec inside one IMMEDIATE
// transaction, so no other writer can interleave between the two.
func (s *Storage) InsertReservation(ctx context.Context, rec persistence.Reservation, limit int) (persistence.Reservation, error) {
	err := withImmediateTx(ctx, s.db, func(conn *sql.Conn) error {
		if limit > 0 {
			var count int
			if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM reservations WHERE pool_key = ?`, rec.PoolKey).Scan(&count); err != nil {
				return fmt.Errorf("sqlite: count pool: %w", err)
			}
			if count >= limit {
				return persistence.ErrCapacityReached
			}
		}

		_, err := conn.ExecContext(ctx,
			`INSERT INTO reservations (id, name, email, phone, date, time, pool_key, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, rec.Name, rec.Email, rec.Phone, rec.Date, rec.Time, rec.PoolKey, rec.CreatedAt.UTC().Format(timeLayout),
		)
		if err != nil {
			return fmt.Errorf("sqlite: insert reservation: %w", mapError(err))
		}
		return nil
	})
	if err != nil {
		return persistence.Reservation{}, err
	}
	return rec, nil
}

// CountReservationsByDate groups every reservation by date.
func (s *Storage) CountReservationsByDate(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT date, COUNT(*) FROM reservations GROUP BY date`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: count by date: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			date  string
			count int
		)
		if err := rows.Scan(&date, &count); err != nil {
			return nil, fmt.Errorf("sqlite: scan count: %w", err)
		}
		counts[date] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate counts: %w", err)
	}
	return counts, nil
}

// ListClosedDates returns the blackout calendar in ascending order.
func (s *Storage) ListClosedDates(ctx context.Context) ([]persistence.ClosedDate, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT date, reason, created_at FROM closed_dates ORDER BY date`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list closed dates: %w", err)
	}
	defer rows.Close()

	dates := make([]persistence.ClosedDate, 0)
	for rows.Next() {
		var (
			d       persistence.ClosedDate
			created string
		)
		if err := rows.Scan(&d.Date, &d.Reason, &created); err != nil {
			return nil, fmt.Errorf("sqlite: scan closed date: %w", err)
		}
		d.CreatedAt, err = time.Parse(timeLayout, created)
		if err != nil {
			return nil, fmt.Errorf("sqlite: parse closed date timestamp: %w", err)
		}
		dates = append(dates, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate closed dates: %w", err)
	}
	return dates, nil
}

// AddClosedDate records a closed date.
func (s *Storage) AddClosedDate(ctx context.Context, date persistence.ClosedDate) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO closed_dates (date, reason, created_at) VALUES (?, ?, ?)`,
		date.Date, date.Reason, date.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("sqlite: add closed date: %w", mapError(err))
	}
	return nil
}

// DeleteClosedDate removes a closed date.
func (s *Storage) DeleteClosedDate(ctx context.Context, date string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM closed_dates WHERE date = ?`, date)
	if err != nil {
		return fmt.Errorf("sqlite: delete closed date: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: delete closed date: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(row rowScanner) (persistence.Reservation, error) {
	var (
		rec     persistence.Reservation
		created string
	)
	if err := row.Scan(&rec.ID, &rec.Name, &rec.Email, &rec.Phone, &rec.Date, &rec.Time, &rec.PoolKey, &created); err != nil {
		return persistence.Reservation{}, fmt.Errorf("sqlite: scan reservation: %w", mapError(err))
	}
	ts, err := time.Parse(timeLayout, created)
	if err != nil {
		return persistence.Reservation{}, fmt.Errorf("sqlite: parse reservation timestamp: %w", err)
	}
	rec.CreatedAt = ts
	return rec, nil
}
