// Package unavailability provides the sources of the blackout calendar that
// BookingService consults before admitting a reservation.
package unavailability
