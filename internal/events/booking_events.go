package events

import (
	"time"

	"github.com/google/uuid"
)

// Topics. Booking lifecycle events are additionally fanned out to the
// realtime topics, keyed per user and per driver, for delivery to connected
// clients.
const (
	TopicBookingEvents   = "booking.events"
	TopicPaymentEvents   = "payment.events"
	TopicRealtimeUsers   = "realtime.user.events"
	TopicRealtimeDrivers = "realtime.driver.events"
)

// Booking lifecycle event types.
const (
	BookingCreated         = "booking.created"
	BookingConfirmed       = "booking.confirmed"
	BookingRejected        = "booking.rejected"
	BookingDriverAssigned  = "booking.driver_assigned"
	BookingTripStarted     = "booking.trip_started"
	BookingTripCompleted   = "booking.trip_completed"
	BookingCancelled       = "booking.cancelled"
	BookingDiscountApplied = "booking.discount_applied"
	BookingRated           = "booking.rated"
)

// Payment event types consumed from the payment topic.
const (
	PaymentCaptured = "payment.captured"
)

// BookingLifecycleEvent is the shared payload for booking lifecycle events.
type BookingLifecycleEvent struct {
	BookingID     uuid.UUID  `json:"booking_id"`
	BookingNumber string     `json:"booking_number"`
	UserID        uuid.UUID  `json:"user_id"`
	DriverID      *uuid.UUID `json:"driver_id,omitempty"`
	Status        string     `json:"status"`
	BookingType   string     `json:"booking_type"`
	VehicleType   string     `json:"vehicle_type"`
	FinalAmount   int64      `json:"final_amount"`
	OccurredAt    time.Time  `json:"occurred_at"`
}

// BookingCancelledEvent extends the lifecycle payload with cancellation
// economics.
type BookingCancelledEvent struct {
	BookingLifecycleEvent
	CancelledBy  string `json:"cancelled_by"`
	Reason       string `json:"reason"`
	Charge       int64  `json:"charge"`
	RefundAmount int64  `json:"refund_amount"`
}

// PaymentCapturedEvent is emitted by the payment service once the gateway
// captures a payment for a booking.
type PaymentCapturedEvent struct {
	BookingID  uuid.UUID `json:"booking_id"`
	OrderID    string    `json:"order_id"`
	PaymentID  string    `json:"payment_id"`
	Signature  string    `json:"signature"`
	Amount     int64     `json:"amount"`
	OccurredAt time.Time `json:"occurred_at"`
}
