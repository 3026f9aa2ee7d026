package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Store backends accepted by BOOKING_STORE.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// Lock backends accepted by BOOKING_LOCK.
const (
	LockLocal     = "local"
	LockZooKeeper = "zookeeper"
	LockNone      = "none"
)

// SMTP holds mailer settings. Mail is disabled when Addr is empty.
type SMTP struct {
	Addr       string
	Username   string
	Password   string
	From       string
	FromName   string
	OwnerEmail string
}

// Config captures environment driven configuration values for the booking service.
type Config struct {
	HTTPPort            int
	Store               string
	SQLiteDSN           string
	PostgresURL         string
	RedisAddr           string
	Capacity            int
	PoolKey             string
	DefaultTime         string
	ExternalTimeout     time.Duration
	Lock                string
	ZKServers           []string
	ClosedDatesFile     string
	ClosedDatesCacheTTL time.Duration
	KafkaBrokers        []string
	KafkaTopic          string
	SMTP                SMTP
	StripeSecretKey     string
	PriceCents          int64
	ClassFormat         string
	InstructorName      string
	Currency            string
	AdminUser           string
	AdminPasswordHash   string
	CORSOrigin          string
	StaticDir           string
	JaegerEndpoint      string
	LogLevel            string
	LogFormat           string
}

// Load parses configuration values from the current process environment.
//
// Defaults apply to optional fields. Missing required values and invalid
// values are collected and reported together with localized messages.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:            3000,
		Store:               StoreSQLite,
		SQLiteDSN:           "file:booking.db",
		RedisAddr:           "localhost:6379",
		Capacity:            10,
		PoolKey:             "date",
		DefaultTime:         "19h30",
		ExternalTimeout:     5 * time.Second,
		Lock:                LockLocal,
		ClosedDatesCacheTTL: 30 * time.Second,
		KafkaTopic:          "booking.accepted",
		SMTP:                SMTP{FromName: "Anima Flow"},
		PriceCents:          1500,
		ClassFormat:         "Visioconference - 60 min",
		InstructorName:      "Amina",
		Currency:            "eur",
		AdminUser:           "admin",
		CORSOrigin:          "*",
		LogLevel:            "info",
		LogFormat:           "json",
	}

	l := loader{}

	l.positiveInt("BOOKING_HTTP_PORT", &cfg.HTTPPort)
	l.choice("BOOKING_STORE", &cfg.Store, StoreMemory, StoreSQLite, StorePostgres, StoreRedis)
	l.str("BOOKING_SQLITE_DSN", &cfg.SQLiteDSN)
	l.str("BOOKING_POSTGRES_URL", &cfg.PostgresURL)
	l.str("BOOKING_REDIS_ADDR", &cfg.RedisAddr)
	l.positiveInt("BOOKING_CAPACITY", &cfg.Capacity)
	l.choice("BOOKING_POOL_KEY", &cfg.PoolKey, "date", "date_time")
	l.str("BOOKING_DEFAULT_TIME", &cfg.DefaultTime)
	l.duration("BOOKING_EXTERNAL_TIMEOUT", &cfg.ExternalTimeout)
	l.choice("BOOKING_LOCK", &cfg.Lock, LockLocal, LockZooKeeper, LockNone)
	l.list("BOOKING_ZK_SERVERS", &cfg.ZKServers)
	l.str("BOOKING_CLOSED_DATES_FILE", &cfg.ClosedDatesFile)
	l.duration("BOOKING_CLOSED_DATES_CACHE_TTL", &cfg.ClosedDatesCacheTTL)
	l.list("BOOKING_KAFKA_BROKERS", &cfg.KafkaBrokers)
	l.str("BOOKING_KAFKA_TOPIC", &cfg.KafkaTopic)
	l.str("BOOKING_SMTP_ADDR", &cfg.SMTP.Addr)
	l.str("BOOKING_SMTP_USER", &cfg.SMTP.Username)
	l.raw("BOOKING_SMTP_PASSWORD", &cfg.SMTP.Password)
	l.str("BOOKING_SMTP_FROM", &cfg.SMTP.From)
	l.str("BOOKING_SMTP_FROM_NAME", &cfg.SMTP.FromName)
	l.str("BOOKING_OWNER_EMAIL", &cfg.SMTP.OwnerEmail)
	l.str("BOOKING_STRIPE_SECRET_KEY", &cfg.StripeSecretKey)
	l.positiveInt64("BOOKING_PRICE_CENTS", &cfg.PriceCents)
	l.str("BOOKING_CURRENCY", &cfg.Currency)
	l.str("BOOKING_CLASS_FORMAT", &cfg.ClassFormat)
	l.str("BOOKING_INSTRUCTOR_NAME", &cfg.InstructorName)
	l.str("BOOKING_ADMIN_USER", &cfg.AdminUser)
	l.str("BOOKING_ADMIN_PASSWORD_HASH", &cfg.AdminPasswordHash)
	l.str("BOOKING_CORS_ORIGIN", &cfg.CORSOrigin)
	l.str("BOOKING_STATIC_DIR", &cfg.StaticDir)
	l.str("BOOKING_JAEGER_ENDPOINT", &cfg.JaegerEndpoint)
	l.choice("BOOKING_LOG_LEVEL", &cfg.LogLevel, "debug", "info", "warn", "warning", "error")
	l.choice("BOOKING_LOG_FORMAT", &cfg.LogFormat, "json", "text")

	if cfg.Store == StorePostgres && cfg.PostgresURL == "" {
		l.missing = append(l.missing, "BOOKING_POSTGRES_URL")
	}
	if cfg.Lock == LockZooKeeper && len(cfg.ZKServers) == 0 {
		l.missing = append(l.missing, "BOOKING_ZK_SERVERS")
	}
	if cfg.SMTP.Addr != "" && cfg.SMTP.From == "" {
		l.missing = append(l.missing, "BOOKING_SMTP_FROM")
	}

	if len(l.missing) > 0 {
		return Config{}, fmt.Errorf("variables d'environnement obligatoires manquantes: %s", strings.Join(l.missing, ", "))
	}
	if len(l.invalid) > 0 {
		return Config{}, fmt.Errorf("valeurs invalides pour les variables d'environnement: %s", strings.Join(l.invalid, ", "))
	}

	return cfg, nil
}

type loader struct {
	missing []string
	invalid []string
}

func (l *loader) str(key string, dst *string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func (l *loader) raw(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func (l *loader) list(key string, dst *[]string) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}

func (l *loader) positiveInt(key string, dst *int) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		l.invalid = append(l.invalid, key)
		return
	}
	*dst = n
}

func (l *loader) positiveInt64(key string, dst *int64) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		l.invalid = append(l.invalid, key)
		return
	}
	*dst = n
}

func (l *loader) duration(key string, dst *time.Duration) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		l.invalid = append(l.invalid, key)
		return
	}
	*dst = d
}

func (l *loader) choice(key string, dst *string, allowed ...string) {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		return
	}
	if !slices.Contains(allowed, v) {
		l.invalid = append(l.invalid, key)
		return
	}
	*dst = v
}
