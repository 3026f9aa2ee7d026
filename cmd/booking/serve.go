package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/example/class-booking/internal/application"
	"github.com/example/class-booking/internal/config"
	httptransport "github.com/example/class-booking/internal/http"
	"github.com/example/class-booking/internal/logging"
	"github.com/example/class-booking/internal/metrics"
	"github.com/example/class-booking/internal/payment"
	"github.com/example/class-booking/internal/tracing"
)

const (
	serviceName     = "class-booking"
	shutdownTimeout = 10 * time.Second
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the reservation API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg, logger)
		},
	}
}

// app is the assembled server: the root handler plus what must be drained
// or closed on shutdown.
type app struct {
	handler  http.Handler
	bookings *application.BookingService
	closers  []func()
}

func (a *app) close() {
	if a.bookings != nil {
		a.bookings.Wait()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// buildApp wires the store, the capacity guard and every collaborator into
// the HTTP handler. tp may be nil to use the global tracer provider.
func buildApp(ctx context.Context, cfg config.Config, logger *slog.Logger, tp trace.TracerProvider) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.closers = append(a.closers, func() {
		if cerr := st.Close(); cerr != nil {
			logger.Error("failed to close store", "error", cerr)
		}
	})

	locker, releaseLocker, err := newLocker(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect locker: %w", err)
	}
	a.closers = append(a.closers, releaseLocker)

	notifier, closeNotifier, err := newNotifier(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("configure notifications: %w", err)
	}
	a.closers = append(a.closers, closeNotifier)

	policy, err := poolKeyPolicy(cfg)
	if err != nil {
		return nil, err
	}

	recorder := metrics.NewRecorder()
	slots := newSlotStoreAdapter(st)
	feed, invalidate := newFeed(cfg, newClosedDateRepositoryAdapter(st, nil))
	closedDates := newClosedDateRepositoryAdapter(st, invalidate)

	guard := application.NewCapacityGuardWithLogger(slots, locker, cfg.Capacity, cfg.ExternalTimeout, recorder, logger)
	a.bookings = application.NewBookingServiceWithLogger(
		tracing.WrapAdmitter(guard, tp),
		feed,
		notifier,
		application.BookingOptions{
			PoolKey:     policy,
			DefaultTime: cfg.DefaultTime,
			FeedTimeout: cfg.ExternalTimeout,
			Observer:    recorder,
		},
		uuid.NewString,
		time.Now,
		logger,
	)
	reports := application.NewReportServiceWithLogger(slots, feed, cfg.ExternalTimeout, logger)

	routes := httptransport.RouterConfig{
		Reservations: httptransport.NewReservationHandler(a.bookings, reports, cfg.Capacity, logger),
		Health:       httptransport.NewHealthHandler(healthChecks(st), cfg.ExternalTimeout, logger),
		Metrics:      recorder.Handler(),
		Middleware: []func(http.Handler) http.Handler{
			httptransport.Recoverer(logger),
			tracing.Middleware(tp),
			httptransport.RequestLogger(logger),
			httptransport.CORS(cfg.CORSOrigin),
		},
	}

	if cfg.StripeSecretKey != "" {
		gateway, err := payment.NewStripeGateway(cfg.StripeSecretKey)
		if err != nil {
			return nil, err
		}
		payments := application.NewPaymentServiceWithLogger(gateway, application.PaymentOptions{
			AmountCents: cfg.PriceCents,
			Currency:    cfg.Currency,
			DefaultTime: cfg.DefaultTime,
			Timeout:     cfg.ExternalTimeout,
		}, logger)
		routes.Payments = httptransport.NewPaymentHandler(payments, logger)
	} else {
		logger.Warn("BOOKING_STRIPE_SECRET_KEY not set, payment route disabled")
	}

	if cfg.AdminPasswordHash != "" {
		closed := application.NewClosedDateServiceWithLogger(closedDates, time.Now, cfg.ExternalTimeout, logger)
		routes.Unavailability = httptransport.NewUnavailabilityHandler(closed, logger)
		routes.AdminAuth = httptransport.BasicAuth(cfg.AdminUser, cfg.AdminPasswordHash, logger)
	} else {
		logger.Warn("BOOKING_ADMIN_PASSWORD_HASH not set, admin routes disabled")
	}

	if cfg.StaticDir != "" {
		routes.Static = http.FileServer(http.Dir(cfg.StaticDir))
	}

	a.handler = httptransport.NewRouter(routes)
	return a, nil
}

func healthChecks(st store) map[string]httptransport.HealthCheck {
	checks := map[string]httptransport.HealthCheck{}
	if p, ok := st.(pinger); ok {
		checks["store"] = p.Ping
	}
	return checks
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	var tp trace.TracerProvider
	if cfg.JaegerEndpoint != "" {
		provider, err := tracing.InitTracerProvider(serviceName, cfg.JaegerEndpoint, logger)
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		tp = provider
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := tracing.Shutdown(shutdownCtx, provider); err != nil {
				logger.Error("failed to flush traces", "error", err)
			}
		}()
	}

	a, err := buildApp(ctx, cfg, logger, tp)
	if err != nil {
		return err
	}
	defer a.close()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("booking API listening", "addr", server.Addr, "store", cfg.Store, "lock", cfg.Lock, "capacity", cfg.Capacity)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("shutdown server: %w", err)
		}
		logger.Info("booking API stopped")
		return nil
	})

	return g.Wait()
}
