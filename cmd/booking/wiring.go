package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/class-booking/internal/application"
	"github.com/example/class-booking/internal/config"
	"github.com/example/class-booking/internal/locking"
	"github.com/example/class-booking/internal/notify"
	"github.com/example/class-booking/internal/persistence"
	"github.com/example/class-booking/internal/persistence/memory"
	"github.com/example/class-booking/internal/persistence/postgres"
	"github.com/example/class-booking/internal/persistence/redis"
	"github.com/example/class-booking/internal/persistence/sqlite"
	"github.com/example/class-booking/internal/unavailability"
)

const zkSessionTimeout = 10 * time.Second

type store interface {
	persistence.ReservationRepository
	persistence.ClosedDateRepository
	Close() error
}

type pinger interface {
	Ping(ctx context.Context) error
}

// openStore connects the configured backend and applies its migrations.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (store, error) {
	switch cfg.Store {
	case config.StoreMemory:
		logger.Warn("using in-memory store, reservations are lost on restart")
		return memory.New(), nil
	case config.StoreSQLite:
		s, err := sqlite.Open(cfg.SQLiteDSN)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("sqlite migrations: %w", err)
		}
		return s, nil
	case config.StorePostgres:
		s, err := postgres.Open(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("postgres migrations: %w", err)
		}
		return s, nil
	case config.StoreRedis:
		s := redis.Open(cfg.RedisAddr)
		if err := s.Ping(ctx); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

// newLocker returns the per-pool lock and a release func for its resources.
// LockNone yields a nil Locker, leaving atomicity to the store.
func newLocker(cfg config.Config, logger *slog.Logger) (application.Locker, func(), error) {
	switch cfg.Lock {
	case config.LockNone:
		return nil, func() {}, nil
	case config.LockZooKeeper:
		zkLock, err := locking.ConnectZooKeeper(cfg.ZKServers, zkSessionTimeout, logger)
		if err != nil {
			return nil, nil, err
		}
		return zkLock, zkLock.Close, nil
	default:
		return locking.NewKeyedMutex(), func() {}, nil
	}
}

// newFeed picks the blackout source. The returned invalidate func must run
// after every admin write to the closed dates.
func newFeed(cfg config.Config, repo application.ClosedDateRepository) (feed application.UnavailabilityFeed, invalidate func()) {
	if cfg.ClosedDatesFile != "" {
		return unavailability.NewFileFeed(cfg.ClosedDatesFile), func() {}
	}
	cached := unavailability.NewCached(unavailability.NewStoreFeed(repo), cfg.ClosedDatesCacheTTL, cfg.ExternalTimeout, time.Now)
	return cached, cached.Invalidate
}

// newNotifier fans confirmations out to the log and every configured channel.
// The returned func closes channels holding connections.
func newNotifier(cfg config.Config, logger *slog.Logger) (application.Notifier, func(), error) {
	channels := notify.Fanout{notify.NewLogNotifier(logger)}
	closers := []func() error{}

	if cfg.SMTP.Addr != "" {
		mailer, err := notify.NewMailer(notify.MailerConfig{
			Addr:       cfg.SMTP.Addr,
			Username:   cfg.SMTP.Username,
			Password:   cfg.SMTP.Password,
			From:       cfg.SMTP.From,
			FromName:   cfg.SMTP.FromName,
			OwnerEmail: cfg.SMTP.OwnerEmail,
			ClassName:  cfg.SMTP.FromName,
			Format:     cfg.ClassFormat,
			Price:      formatPrice(cfg.PriceCents, cfg.Currency),
			Instructor: cfg.InstructorName,
		})
		if err != nil {
			return nil, nil, err
		}
		channels = append(channels, mailer)
	}

	if len(cfg.KafkaBrokers) > 0 {
		producer := notify.NewKafkaNotifier(cfg.KafkaBrokers, cfg.KafkaTopic)
		channels = append(channels, producer)
		closers = append(closers, producer.Close)
	}

	closeAll := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				logger.Error("failed to close notifier", "error", err)
			}
		}
	}
	return channels, closeAll, nil
}

// formatPrice renders cents the way the class price is shown to clients,
// for example "15,00 EUR".
func formatPrice(cents int64, currency string) string {
	if cents <= 0 {
		return ""
	}
	return fmt.Sprintf("%d,%02d %s", cents/100, cents%100, strings.ToUpper(currency))
}

func poolKeyPolicy(cfg config.Config) (application.PoolKeyPolicy, error) {
	return application.ParsePoolKeyPolicy(cfg.PoolKey)
}
