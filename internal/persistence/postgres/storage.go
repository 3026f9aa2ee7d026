package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/example/class-booking/internal/persistence"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const uniqueViolation = "23505"

// Storage persists reservations in PostgreSQL. Admissions for one pool are
// serialized with a transaction-scoped advisory lock keyed by the pool.
type Storage struct {
	pool *pgxpool.Pool
}

// Open connects a pgx pool to databaseURL.
func Open(ctx context.Context, databaseURL string) (*Storage, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	cfg.MaxConnLifetime = 5 * time.Minute
	cfg.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	return &Storage{pool: pool}, nil
}

// Close releases every pooled connection.
func (s *Storage) Close() error {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// Ping verifies connectivity.
func (s *Storage) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}

// Migrate applies embedded migrations not yet recorded in schema_migrations.
func (s *Storage) Migrate(ctx context.Context) error {
	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("postgres: read migrations: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	if _, err := s.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY)`); err != nil {
		return fmt.Errorf("postgres: create schema_migrations: %w", err)
	}

	for _, f := range files {
		var applied bool
		if err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version=$1)`, f).Scan(&applied); err != nil {
			return fmt.Errorf("postgres: check %s: %w", f, err)
		}
		if applied {
			continue
		}
		body, err := migrationFiles.ReadFile("migrations/" + f)
		if err != nil {
			return fmt.Errorf("postgres: read %s: %w", f, err)
		}
		if _, err := s.pool.Exec(ctx, string(body)); err != nil {
			return fmt.Errorf("postgres: apply %s: %w", f, err)
		}
		if _, err := s.pool.Exec(ctx, `INSERT INTO schema_migrations(version) VALUES ($1)`, f); err != nil {
			return fmt.Errorf("postgres: record %s: %w", f, err)
		}
	}
	return nil
}

// QueryReservations returns reservations matching filter ordered by creation time.
func (s *Storage) QueryReservations(ctx context.Context, filter persistence.ReservationFilter) ([]persistence.Reservation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, email, phone, date, time, pool_key, created_at
		FROM reservations
		WHERE ($1 = '' OR date = $1) AND ($2 = '' OR pool_key = $2)
		ORDER BY created_at, id
	`, filter.Date, filter.PoolKey)
	if err != nil {
		return nil, fmt.Errorf("postgres: query reservations: %w", err)
	}
	reservations, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (persistence.Reservation, error) {
		var r persistence.Reservation
		err := row.Scan(&r.ID, &r.Name, &r.Email, &r.Phone, &r.Date, &r.Time, &r.PoolKey, &r.CreatedAt)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scan reservations: %w", err)
	}
	return reservations, nil
}

// InsertReservation takes pg_advisory_xact_lock on the pool key, counts the
// pool, and inserts rec in the same transaction.
func (s *Storage) InsertReservation(ctx context.Context, rec persistence.Reservation, limit int) (persistence.Reservation, error) {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, rec.PoolKey); err != nil {
			return fmt.Errorf("postgres: advisory lock: %w", err)
		}
		if limit > 0 {
			var count int
			if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM reservations WHERE pool_key = $1`, rec.PoolKey).Scan(&count); err != nil {
				return fmt.Errorf("postgres: count pool: %w", err)
			}
			if count >= limit {
				return persistence.ErrCapacityReached
			}
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO reservations (id, name, email, phone, date, time, pool_key, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, rec.ID, rec.Name, rec.Email, rec.Phone, rec.Date, rec.Time, rec.PoolKey, rec.CreatedAt)
		if err != nil {
			return fmt.Errorf("postgres: insert reservation: %w", mapError(err))
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
	rows, err := s.pool.Query(ctx, `SELECT date, COUNT(*) FROM reservations GROUP BY date`)
	if err != nil {
		return nil, fmt.Errorf("postgres: count by date: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			date  string
			count int
		)
		if err := rows.Scan(&date, &count); err != nil {
			return nil, fmt.Errorf("postgres: scan count: %w", err)
		}
		counts[date] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate counts: %w", err)
	}
	return counts, nil
}

// ListClosedDates returns the blackout calendar in ascending order.
func (s *Storage) ListClosedDates(ctx context.Context) ([]persistence.ClosedDate, error) {
	rows, err := s.pool.Query(ctx, `SELECT date, reason, created_at FROM closed_dates ORDER BY date`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list closed dates: %w", err)
	}
	dates, err := pgx.CollectRows(rows, pgx.RowToStructByPos[persistence.ClosedDate])
	if err != nil {
		return nil, fmt.Errorf("postgres: scan closed dates: %w", err)
	}
	return dates, nil
}

// AddClosedDate records a closed date.
func (s *Storage) AddClosedDate(ctx context.Context, date persistence.ClosedDate) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO closed_dates (date, reason, created_at) VALUES ($1, $2, $3)`,
		date.Date, date.Reason, date.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: add closed date: %w", mapError(err))
	}
	return nil
}

// DeleteClosedDate removes a closed date.
func (s *Storage) DeleteClosedDate(ctx context.Context, date string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM closed_dates WHERE date = $1`, date)
	if err != nil {
		return fmt.Errorf("postgres: delete closed date: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func mapError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return persistence.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %v", persistence.ErrDuplicate, err)
	}
	return err
}
