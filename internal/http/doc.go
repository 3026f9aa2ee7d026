// Package http provides HTTP handlers and middleware for the booking API.
//
// The router exposes the following endpoints:
//   - POST /api/reservations: admits a booking. Body: {"nom","email","telephone","date","heure"}.
//     Response: {"success":true,"placesRestantes":n}. Full slots, closed dates and
//     missing fields answer 400 with {"error": message}.
//   - GET /api/reservations/count: {"<YYYY-MM-DD>": count, ...}.
//   - GET /api/indisponibilites: array of closed dates.
//   - POST /api/create-payment-intent: Body {"nom","email","date","heure"}. Response
//     {"clientSecret"}.
//   - GET, POST /api/admin/indisponibilites and DELETE /api/admin/indisponibilites/{date}:
//     blackout calendar management behind HTTP basic auth, exchanging the
//     `closedDateDTO` payload defined in unavailability_handler.go.
//   - GET /healthz, GET /metrics, and static front-end files under /.
//
// Every API route answers 405 {"error":"Method not allowed"} for other methods.
package http
