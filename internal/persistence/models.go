package persistence

import "time"

// Reservation is one admitted seat in a class occurrence.
type Reservation struct {
	ID        string
	Name      string
	Email     string
	Phone     string
	Date      string
	Time      string
	PoolKey   string
	CreatedAt time.Time
}

// ClosedDate marks a calendar day on which no booking is accepted.
type ClosedDate struct {
	Date      string
	Reason    string
	CreatedAt time.Time
}
