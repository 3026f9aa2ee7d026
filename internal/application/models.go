package application

import "time"

// DefaultTime is the time-of-day label used when a request omits one.
const DefaultTime = "19h30"

// DefaultCapacity is the number of seats per pool.
const DefaultCapacity = 10

// Reservation is an admitted booking for a class occurrence.
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

// ReservationQuery narrows store reads. Empty fields match everything.
type ReservationQuery struct {
	Date    string
	PoolKey string
}

// BookingRequest carries the client-supplied booking fields.
type BookingRequest struct {
	Name  string
	Email string
	Phone string
	Date  string
	Time  string
}

// BookingOutcome describes an accepted booking.
type BookingOutcome struct {
	Reservation Reservation
	Remaining   int
	Capacity    int
}

// RejectReason labels why an admission was refused.
type RejectReason string

// RejectSlotFull means the pool had no seat left.
const RejectSlotFull RejectReason = "slot_full"

// Admission is the result of a capacity check.
type Admission struct {
	Admitted    bool
	Remaining   int
	Reason      RejectReason
	Reservation Reservation
}

// BookingAccepted is emitted once per admitted booking.
type BookingAccepted struct {
	Reservation Reservation
	Remaining   int
	Capacity    int
}

// ClosedDate is a day on which bookings are refused.
type ClosedDate struct {
	Date      string
	Reason    string
	CreatedAt time.Time
}

// ClosedDateInput carries administrator input for a new closed date.
type ClosedDateInput struct {
	Date   string
	Reason string
}

// PaymentRequest carries the client fields sent with a payment intent request.
type PaymentRequest struct {
	Name  string
	Email string
	Date  string
	Time  string
}

// PaymentIntentParams is what the payment provider is asked to create.
type PaymentIntentParams struct {
	AmountCents  int64
	Currency     string
	ReceiptEmail string
	Metadata     map[string]string
}

// PaymentIntent is the provider's answer the client needs to confirm payment.
type PaymentIntent struct {
	ClientSecret string
}
