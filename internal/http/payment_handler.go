package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/example/class-booking/internal/application"
)

type paymentService interface {
	CreateIntent(ctx context.Context, req application.PaymentRequest) (application.PaymentIntent, error)
}

// PaymentHandler serves POST /api/create-payment-intent.
type PaymentHandler struct {
	service   paymentService
	responder responder
	logger    *slog.Logger
}

// NewPaymentHandler wires the payment service.
func NewPaymentHandler(service paymentService, logger *slog.Logger) *PaymentHandler {
	base := defaultLogger(logger)
	return &PaymentHandler{service: service, responder: newResponder(base, 0), logger: base}
}

// CreateIntent returns the client secret the front end confirms the card payment with.
func (h *PaymentHandler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req paymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handlerLogger(r.Context(), h.logger, "PaymentHandler", "CreateIntent", "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode payment request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	intent, err := h.service.CreateIntent(r.Context(), application.PaymentRequest{
		Name:  req.Nom,
		Email: req.Email,
		Date:  req.Date,
		Time:  req.Heure,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, paymentResponse{ClientSecret: intent.ClientSecret})
}

type paymentRequest struct {
	Nom   string `json:"nom"`
	Email string `json:"email"`
	Date  string `json:"date"`
	Heure string `json:"heure"`
}

type paymentResponse struct {
	ClientSecret string `json:"clientSecret"`
}
