package http

import (
	"encoding/json"
	"net/http"
	"strings"
)

// RouterConfig lists the handlers mounted by NewRouter. Nil entries leave
// their routes unregistered.
type RouterConfig struct {
	Reservations   *ReservationHandler
	Payments       *PaymentHandler
	Unavailability *UnavailabilityHandler
	AdminAuth      func(http.Handler) http.Handler
	Health         http.Handler
	Metrics        http.Handler
	Static         http.Handler
	Middleware     []func(http.Handler) http.Handler
}

// NewRouter builds the API mux wrapped in cfg.Middleware, outermost first.
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	if cfg.Reservations != nil {
		mux.HandleFunc("/api/reservations", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Reservations.Create(w, r)
		})
		mux.HandleFunc("/api/reservations/count", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Reservations.Counts(w, r)
		})
		mux.HandleFunc("/api/indisponibilites", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Reservations.Unavailable(w, r)
		})
	}

	if cfg.Payments != nil {
		mux.HandleFunc("/api/create-payment-intent", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Payments.CreateIntent(w, r)
		})
	}

	if cfg.Unavailability != nil && cfg.AdminAuth != nil {
		mux.Handle("/api/admin/indisponibilites", cfg.AdminAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Unavailability.List(w, r)
			case http.MethodPost:
				cfg.Unavailability.Create(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		})))
		mux.Handle("/api/admin/indisponibilites/", cfg.AdminAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			date := strings.TrimPrefix(r.URL.Path, "/api/admin/indisponibilites/")
			if date == "" || strings.Contains(date, "/") {
				http.NotFound(w, r)
				return
			}
			if r.Method != http.MethodDelete {
				methodNotAllowed(w, http.MethodDelete)
				return
			}
			cfg.Unavailability.Delete(w, r.WithContext(ContextWithClosedDate(r.Context(), date)))
		})))
	}

	if cfg.Health != nil {
		mux.Handle("/healthz", cfg.Health)
	}
	if cfg.Metrics != nil {
		mux.Handle("/metrics", cfg.Metrics)
	}
	if cfg.Static != nil {
		mux.Handle("/", cfg.Static)
	}

	var handler http.Handler = mux
	for i := len(cfg.Middleware) - 1; i >= 0; i-- {
		if cfg.Middleware[i] != nil {
			handler = cfg.Middleware[i](handler)
		}
	}

	return handler
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusMethodNotAllowed)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: msgMethodNotAllowed})
}
