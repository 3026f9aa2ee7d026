package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/example/class-booking/internal/persistence"
	goredis "github.com/redis/go-redis/v9"
)

// Every key shares the {booking} hash tag so the admission script touches a
// single cluster slot.
const (
	keyPrefix    = "{booking}:"
	countsKey    = keyPrefix + "counts"
	idsKey       = keyPrefix + "ids"
	closedKey    = keyPrefix + "closed"
	scriptFull   = 0
	scriptOK     = 1
	scriptExists = 2
)

// insertScript checks the pool length and appends the record in one EVAL.
//
// KEYS[1]: pool list, KEYS[2]: date list, KEYS[3]: per-date counters, KEYS[4]: id set
// ARGV[1]: limit, ARGV[2]: encoded record, ARGV[3]: date, ARGV[4]: id
var insertScript = goredis.NewScript(`
if redis.call('sismember', KEYS[4], ARGV[4]) == 1 then
    return 2
end
local limit = tonumber(ARGV[1])
if limit > 0 and redis.call('llen', KEYS[1]) >= limit then
    return 0
end
redis.call('rpush', KEYS[1], ARGV[2])
redis.call('rpush', KEYS[2], ARGV[2])
redis.call('hincrby', KEYS[3], ARGV[3], 1)
redis.call('sadd', KEYS[4], ARGV[4])
return 1
`)

// Storage keeps reservations in Redis lists; admission atomicity comes from
// running the capacity check and the append inside a Lua script.
type Storage struct {
	client goredis.UniversalClient
}

// Open connects to the Redis server at addr.
func Open(addr string) *Storage {
	return New(goredis.NewClient(&goredis.Options{Addr: addr}))
}

// New wraps an existing client.
func New(client goredis.UniversalClient) *Storage {
	return &Storage{client: client}
}

// Close releases the client.
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ping verifies connectivity.
func (s *Storage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func poolKey(pool string) string { return keyPrefix + "pool:" + pool }
func dateKey(date string) string { return keyPrefix + "date:" + date }

type record struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Date      string    `json:"date"`
	Time      string    `json:"time"`
	PoolKey   string    `json:"pool_key"`
	CreatedAt time.Time `json:"created_at"`
}

func toRecord(r persistence.Reservation) record {
	return record(r)
}

func (r record) reservation() persistence.Reservation {
	return persistence.Reservation(r)
}

// InsertReservation runs the admission script for rec.
func (s *Storage) InsertReservation(ctx context.Context, rec persistence.Reservation, limit int) (persistence.Reservation, error) {
	payload, err := json.Marshal(toRecord(rec))
	if err != nil {
		return persistence.Reservation{}, fmt.Errorf("redis: encode reservation: %w", err)
	}

	keys := []string{poolKey(rec.PoolKey), dateKey(rec.Date), countsKey, idsKey}
	code, err := insertScript.Run(ctx, s.client, keys, limit, payload, rec.Date, rec.ID).Int64()
	if err != nil {
		return persistence.Reservation{}, fmt.Errorf("redis: run insert script: %w", err)
	}

	switch code {
	case scriptOK:
		return rec, nil
	case scriptFull:
		return persistence.Reservation{}, persistence.ErrCapacityReached
	case scriptExists:
		return persistence.Reservation{}, fmt.Errorf("redis: reservation %s: %w", rec.ID, persistence.ErrDuplicate)
	default:
		return persistence.Reservation{}, fmt.Errorf("redis: unknown result code from insert script: %d", code)
	}
}

// QueryReservations reads the narrowest list that covers filter.
func (s *Storage) QueryReservations(ctx context.Context, filter persistence.ReservationFilter) ([]persistence.Reservation, error) {
	var lists []string
	switch {
	case filter.PoolKey != "":
		lists = []string{poolKey(filter.PoolKey)}
	case filter.Date != "":
		lists = []string{dateKey(filter.Date)}
	default:
		dates, err := s.client.HKeys(ctx, countsKey).Result()
		if err != nil {
			return nil, fmt.Errorf("redis: list dates: %w", err)
		}
		sort.Strings(dates)
		for _, d := range dates {
			lists = append(lists, dateKey(d))
		}
	}

	reservations := make([]persistence.Reservation, 0)
	for _, key := range lists {
		items, err := s.client.LRange(ctx, key, 0, -1).Result()
		if err != nil {
			return nil, fmt.Errorf("redis: read %s: %w", key, err)
		}
		for _, item := range items {
			var r record
			if err := json.Unmarshal([]byte(item), &r); err != nil {
				return nil, fmt.Errorf("redis: decode reservation: %w", err)
			}
			rec := r.reservation()
			if filter.Matches(rec) {
				reservations = append(reservations, rec)
			}
		}
	}
	return reservations, nil
}

// CountReservationsByDate reads the per-date counters maintained by the insert script.
func (s *Storage) CountReservationsByDate(ctx context.Context) (map[string]int, error) {
	raw, err := s.client.HGetAll(ctx, countsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: read counts: %w", err)
	}
	counts := make(map[string]int, len(raw))
	for date, value := range raw {
		var n int
		if _, err := fmt.Sscan(value, &n); err != nil {
			return nil, fmt.Errorf("redis: parse count for %s: %w", date, err)
		}
		counts[date] = n
	}
	return counts, nil
}

type closedRecord struct {
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ListClosedDates returns the blackout calendar in ascending order.
func (s *Storage) ListClosedDates(ctx context.Context) ([]persistence.ClosedDate, error) {
	raw, err := s.client.HGetAll(ctx, closedKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: list closed dates: %w", err)
	}
	dates := make([]persistence.ClosedDate, 0, len(raw))
	for date, value := range raw {
		var c closedRecord
		if err := json.Unmarshal([]byte(value), &c); err != nil {
			return nil, fmt.Errorf("redis: decode closed date %s: %w", date, err)
		}
		dates = append(dates, persistence.ClosedDate{Date: date, Reason: c.Reason, CreatedAt: c.CreatedAt})
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Date < dates[j].Date })
	return dates, nil
}

// AddClosedDate records a closed date.
func (s *Storage) AddClosedDate(ctx context.Context, date persistence.ClosedDate) error {
	payload, err := json.Marshal(closedRecord{Reason: date.Reason, CreatedAt: date.CreatedAt})
	if err != nil {
		return fmt.Errorf("redis: encode closed date: %w", err)
	}
	added, err := s.client.HSetNX(ctx, closedKey, date.Date, payload).Result()
	if err != nil {
		return fmt.Errorf("redis: add closed date: %w", err)
	}
	if !added {
		return persistence.ErrDuplicate
	}
	return nil
}

// DeleteClosedDate removes a closed date.
func (s *Storage) DeleteClosedDate(ctx context.Context, date string) error {
	removed, err := s.client.HDel(ctx, closedKey, date).Result()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("redis: delete closed date: %w", err)
	}
	if removed == 0 {
		return persistence.ErrNotFound
	}
	return nil
}
