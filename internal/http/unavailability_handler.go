package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/class-booking/internal/application"
)

type closedDateService interface {
	List(ctx context.Context) ([]application.ClosedDate, error)
	Add(ctx context.Context, input application.ClosedDateInput) (application.ClosedDate, error)
	Remove(ctx context.Context, date string) error
}

// UnavailabilityHandler serves the admin blackout calendar endpoints.
type UnavailabilityHandler struct {
	service   closedDateService
	responder responder
	logger    *slog.Logger
}

// NewUnavailabilityHandler wires the closed date service.
func NewUnavailabilityHandler(service closedDateService, logger *slog.Logger) *UnavailabilityHandler {
	base := defaultLogger(logger)
	return &UnavailabilityHandler{service: service, responder: newResponder(base, 0), logger: base}
}

func (h *UnavailabilityHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "UnavailabilityHandler", operation, attrs...)
}

// List handles GET /api/admin/indisponibilites.
func (h *UnavailabilityHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	dates, err := h.service.List(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	payload := make([]closedDateDTO, 0, len(dates))
	for _, d := range dates {
		payload = append(payload, toClosedDateDTO(d))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, payload)
}

// Create handles POST /api/admin/indisponibilites.
func (h *UnavailabilityHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req closedDateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.log(r.Context(), "Create", "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode closed date", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	created, err := h.service.Add(r.Context(), application.ClosedDateInput{Date: req.Date, Reason: req.Raison})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "Create", "date", created.Date).InfoContext(r.Context(), "closed date added")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toClosedDateDTO(created))
}

// Delete handles DELETE /api/admin/indisponibilites/{date}.
func (h *UnavailabilityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	date, ok := ClosedDateFromContext(r.Context())
	if !ok || strings.TrimSpace(date) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingDate)
		return
	}

	if err := h.service.Remove(r.Context(), date); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "Delete", "date", date).InfoContext(r.Context(), "closed date removed")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type closedDateRequest struct {
	Date   string `json:"date"`
	Raison string `json:"raison"`
}

type closedDateDTO struct {
	Date      string    `json:"date"`
	Raison    string    `json:"raison,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func toClosedDateDTO(d application.ClosedDate) closedDateDTO {
	return closedDateDTO{Date: d.Date, Raison: d.Reason, CreatedAt: d.CreatedAt}
}
