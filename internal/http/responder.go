package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/class-booking/internal/application"
)

const (
	msgRequiredFields   = "Nom, email et date sont requis."
	msgInvalidDate      = "La date doit etre au format AAAA-MM-JJ."
	msgDateUnavailable  = "Cette date n'est pas disponible."
	msgSlotFull         = "Ce cours est complet (%d/%d places)."
	msgServerError      = "Erreur serveur."
	msgPaymentFailed    = "Erreur lors de la creation du paiement."
	msgNotFound         = "Ressource introuvable."
	msgAlreadyClosed    = "Cette date est deja fermee."
	msgMethodNotAllowed = "Method not allowed"
)

var (
	errBadRequestBody  = errors.New("Requete invalide.")
	errMissingDate     = errors.New("Date manquante.")
	errUnauthenticated = errors.New("Authentification requise.")
)

type responder struct {
	logger   *slog.Logger
	capacity int
}

func newResponder(logger *slog.Logger, capacity int) responder {
	if logger == nil {
		logger = slog.Default()
	}
	if capacity <= 0 {
		capacity = application.DefaultCapacity
	}
	return responder{logger: logger, capacity: capacity}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// writeError sends err's text to the client. Only user-facing sentinel
// messages should reach it.
func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := http.StatusText(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).WarnContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Error: message})
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Error: msgServerError})
		return
	}

	switch {
	case errors.Is(err, application.ErrSlotFull):
		r.writeJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf(msgSlotFull, r.capacity, r.capacity)})
	case errors.Is(err, application.ErrClosedDate):
		r.writeJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: msgDateUnavailable})
	case errors.Is(err, application.ErrPaymentFailed):
		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Error: msgPaymentFailed})
	case errors.Is(err, application.ErrNotFound):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{Error: msgNotFound})
	case errors.Is(err, application.ErrAlreadyExists):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{Error: msgAlreadyClosed})
	default:
		var vErr *application.ValidationError
		if errors.As(err, &vErr) {
			r.writeJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: validationMessage(vErr)})
			return
		}

		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Error: msgServerError})
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

// validationMessage collapses field errors into the single message the
// front end displays. Missing fields win over malformed ones.
func validationMessage(vErr *application.ValidationError) string {
	if vErr == nil {
		return msgRequiredFields
	}
	for _, msg := range vErr.FieldErrors {
		if strings.HasSuffix(msg, "is required") {
			return msgRequiredFields
		}
	}
	if _, ok := vErr.FieldErrors["date"]; ok {
		return msgInvalidDate
	}
	return msgRequiredFields
}

type errorResponse struct {
	Error string `json:"error"`
}
