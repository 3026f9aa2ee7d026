package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/example/class-booking/internal/application"
)

const maxBodyBytes = 1 << 20

type bookingService interface {
	Book(ctx context.Context, req application.BookingRequest) (application.BookingOutcome, error)
}

type reportService interface {
	CountsByDate(ctx context.Context) (map[string]int, error)
	UnavailableDates(ctx context.Context) ([]string, error)
}

// ReservationHandler serves the public booking endpoints.
type ReservationHandler struct {
	bookings  bookingService
	reports   reportService
	responder responder
	logger    *slog.Logger
}

// NewReservationHandler wires the booking and report services. capacity is
// quoted in the full-slot message.
func NewReservationHandler(bookings bookingService, reports reportService, capacity int, logger *slog.Logger) *ReservationHandler {
	base := defaultLogger(logger)
	return &ReservationHandler{bookings: bookings, reports: reports, responder: newResponder(base, capacity), logger: base}
}

func (h *ReservationHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "ReservationHandler", operation, attrs...)
}

// Create handles POST /api/reservations.
func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.bookings == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req reservationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.log(r.Context(), "Create", "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode reservation request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Create", "date", req.Date)

	outcome, err := h.bookings.Book(r.Context(), req.toInput())
	if err != nil {
		logger.InfoContext(r.Context(), "reservation refused", "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("reservation_id", outcome.Reservation.ID).InfoContext(r.Context(), "reservation created")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, reservationResponse{Success: true, PlacesRestantes: outcome.Remaining})
}

// Counts handles GET /api/reservations/count.
func (h *ReservationHandler) Counts(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.reports == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	counts, err := h.reports.CountsByDate(r.Context())
	if err != nil {
		h.log(r.Context(), "Counts").ErrorContext(r.Context(), "failed to count reservations", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, counts)
}

// Unavailable handles GET /api/indisponibilites.
func (h *ReservationHandler) Unavailable(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.reports == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	dates, err := h.reports.UnavailableDates(r.Context())
	if err != nil {
		h.log(r.Context(), "Unavailable").ErrorContext(r.Context(), "failed to read closed dates", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, dates)
}

type reservationRequest struct {
	Nom       string `json:"nom"`
	Email     string `json:"email"`
	Telephone string `json:"telephone"`
	Date      string `json:"date"`
	Heure     string `json:"heure"`
}

func (r reservationRequest) toInput() application.BookingRequest {
	return application.BookingRequest{
		Name:  r.Nom,
		Email: r.Email,
		Phone: r.Telephone,
		Date:  r.Date,
		Time:  r.Heure,
	}
}

type reservationResponse struct {
	Success         bool `json:"success"`
	PlacesRestantes int  `json:"placesRestantes"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(dst)
}
