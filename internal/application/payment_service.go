package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// DefaultPriceCents is the class price in cents.
const DefaultPriceCents int64 = 1500

// DefaultCurrency is the ISO currency code charged.
const DefaultCurrency = "eur"

// PaymentOptions tunes PaymentService behaviour. Zero values select defaults.
type PaymentOptions struct {
	AmountCents int64
	Currency    string
	DefaultTime string
	Timeout     time.Duration
}

// PaymentService creates payment intents for a booking before it is submitted.
type PaymentService struct {
	gateway PaymentGateway
	opts    PaymentOptions
	logger  *slog.Logger
}

// NewPaymentService constructs a payment service with the provided dependencies.
func NewPaymentService(gateway PaymentGateway, opts PaymentOptions) *PaymentService {
	return NewPaymentServiceWithLogger(gateway, opts, nil)
}

// NewPaymentServiceWithLogger constructs a payment service with a specified logger.
func NewPaymentServiceWithLogger(gateway PaymentGateway, opts PaymentOptions, logger *slog.Logger) *PaymentService {
	if opts.AmountCents <= 0 {
		opts.AmountCents = DefaultPriceCents
	}
	if strings.TrimSpace(opts.Currency) == "" {
		opts.Currency = DefaultCurrency
	}
	if strings.TrimSpace(opts.DefaultTime) == "" {
		opts.DefaultTime = DefaultTime
	}
	return &PaymentService{gateway: gateway, opts: opts, logger: defaultLogger(logger)}
}

func (s *PaymentService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "PaymentService", operation, attrs...)
}

// CreateIntent asks the gateway for a payment intent for req and returns it.
func (s *PaymentService) CreateIntent(ctx context.Context, req PaymentRequest) (intent PaymentIntent, err error) {
	if s == nil || s.gateway == nil {
		err = fmt.Errorf("PaymentService is not configured")
		return
	}

	booking := normalizeBookingRequest(BookingRequest{Name: req.Name, Email: req.Email, Date: req.Date, Time: req.Time}, s.opts.DefaultTime)
	logger := s.loggerWith(ctx, "CreateIntent", "date", booking.Date)
	defer func() {
		switch {
		case err == nil:
			logger.InfoContext(ctx, "payment intent created")
		case isRejection(err):
			logger.WarnContext(ctx, "payment intent rejected", "error", err, "error_kind", ErrorKind(err))
		default:
			logger.ErrorContext(ctx, "failed to create payment intent", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	if vErr := validateBookingRequest(booking); vErr.HasErrors() {
		err = vErr
		return
	}

	params := PaymentIntentParams{
		AmountCents:  s.opts.AmountCents,
		Currency:     s.opts.Currency,
		ReceiptEmail: booking.Email,
		Metadata: map[string]string{
			"nom":   booking.Name,
			"email": booking.Email,
			"date":  booking.Date,
			"heure": booking.Time,
		},
	}

	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	intent, err = s.gateway.CreatePaymentIntent(ctx, params)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrPaymentFailed, err)
		intent = PaymentIntent{}
	}
	return
}
