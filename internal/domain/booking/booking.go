package booking

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/urbancab/service-booking/internal/domain"
	"github.com/urbancab/service-booking/internal/domain/pricing"
)

const bookingNumberChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// DuplicateWindow is the ± window around a requested start within which a
// second active booking by the same user is treated as a duplicate.
const DuplicateWindow = 30 * time.Minute

// TripRecord holds the actual trip timestamps, stamped exactly once each.
type TripRecord struct {
	ActualStart *time.Time `json:"actual_start,omitempty"`
	ActualEnd   *time.Time `json:"actual_end,omitempty"`
}

// PaymentRecord links a booking to its captured gateway payment.
type PaymentRecord struct {
	OrderID    string    `json:"order_id"`
	PaymentID  string    `json:"payment_id"`
	CapturedAt time.Time `json:"captured_at"`
}

// Booking is the aggregate root for the booking domain. Status and
// driver assignment are mutated only through its lifecycle methods, each of
// which enforces the transition table and the initiating role.
type Booking struct {
	id            uuid.UUID
	bookingNumber string
	userID        uuid.UUID
	driverID      *uuid.UUID
	bookingType   pricing.BookingType
	status        BookingStatus
	pickup        Location
	drop          Location
	startDateTime time.Time
	endDateTime   *time.Time
	vehicleType   pricing.VehicleType
	fare          pricing.FareBreakdown
	trip          TripRecord
	cancellation  *CancellationRecord
	rating        *Rating
	payment       *PaymentRecord

	version   int64
	createdAt time.Time
	updatedAt time.Time
}

// generateBookingNumber creates a booking number in the format "CB-XXXXXX".
func generateBookingNumber() (string, error) {
	result := make([]byte, 6)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(bookingNumberChars))))
		if err != nil {
			return "", fmt.Errorf("failed to generate booking number: %w", err)
		}
		result[i] = bookingNumberChars[n.Int64()]
	}
	return "CB-" + string(result), nil
}

// NewBooking creates a new Booking aggregate. The common path confirms
// directly; callers wanting an admin-approval flow pass confirmed=false to
// start in PENDING.
func NewBooking(
	userID uuid.UUID,
	bookingType pricing.BookingType,
	pickup Location,
	drop Location,
	startDateTime time.Time,
	endDateTime *time.Time,
	vehicleType pricing.VehicleType,
	fare pricing.FareBreakdown,
	confirmed bool,
) (*Booking, error) {
	if userID == uuid.Nil {
		return nil, domain.NewValidationError("user ID is required")
	}
	if pickup.IsZero() {
		return nil, domain.NewValidationError("pickup location is required")
	}
	if bookingType != pricing.BookingLocal && drop.IsZero() {
		return nil, domain.NewValidationError("drop location is required")
	}
	if startDateTime.IsZero() {
		return nil, domain.NewValidationError("start date/time is required")
	}
	if fare.FinalAmount <= 0 {
		return nil, domain.NewValidationError("fare must be positive")
	}
	if fare.VehicleType != vehicleType || fare.BookingType != bookingType {
		return nil, domain.NewValidationError("fare breakdown does not match the requested trip")
	}

	bookingNumber, err := generateBookingNumber()
	if err != nil {
		return nil, err
	}

	status := StatusPending
	if confirmed {
		status = StatusConfirmed
	}

	now := time.Now().UTC()
	return &Booking{
		id:            uuid.New(),
		bookingNumber: bookingNumber,
		userID:        userID,
		bookingType:   bookingType,
		status:        status,
		pickup:        pickup,
		drop:          drop,
		startDateTime: startDateTime,
		endDateTime:   endDateTime,
		vehicleType:   vehicleType,
		fare:          fare,
		version:       1,
		createdAt:     now,
		updatedAt:     now,
	}, nil
}

// ReconstructBooking rebuilds a Booking from persistence data (no validation).
func ReconstructBooking(
	id uuid.UUID,
	bookingNumber string,
	userID uuid.UUID,
	driverID *uuid.UUID,
	bookingType pricing.BookingType,
	status BookingStatus,
	pickup Location,
	drop Location,
	startDateTime time.Time,
	endDateTime *time.Time,
	vehicleType pricing.VehicleType,
	fare pricing.FareBreakdown,
	trip TripRecord,
	cancellation *CancellationRecord,
	rating *Rating,
	payment *PaymentRecord,
	version int64,
	createdAt time.Time,
	updatedAt time.Time,
) *Booking {
	return &Booking{
		id:            id,
		bookingNumber: bookingNumber,
		userID:        userID,
		driverID:      driverID,
		bookingType:   bookingType,
		status:        status,
		pickup:        pickup,
		drop:          drop,
		startDateTime: startDateTime,
		endDateTime:   endDateTime,
		vehicleType:   vehicleType,
		fare:          fare,
		trip:          trip,
		cancellation:  cancellation,
		rating:        rating,
		payment:       payment,
		version:       version,
		createdAt:     createdAt,
		updatedAt:     updatedAt,
	}
}

// --- Getters ---

// ID returns the booking's unique identifier.
func (b *Booking) ID() uuid.UUID { return b.id }

// BookingNumber returns the human-readable booking number.
func (b *Booking) BookingNumber() string { return b.bookingNumber }

// UserID returns the owning customer's user ID.
func (b *Booking) UserID() uuid.UUID { return b.userID }

// DriverID returns the assigned driver's ID, or nil if unassigned.
func (b *Booking) DriverID() *uuid.UUID { return b.driverID }

// BookingType returns the trip type.
func (b *Booking) BookingType() pricing.BookingType { return b.bookingType }

// Status returns the current booking status.
func (b *Booking) Status() BookingStatus { return b.status }

// Pickup returns the pickup location.
func (b *Booking) Pickup() Location { return b.pickup }

// Drop returns the drop location.
func (b *Booking) Drop() Location { return b.drop }

// StartDateTime returns the scheduled start.
func (b *Booking) StartDateTime() time.Time { return b.startDateTime }

// EndDateTime returns the scheduled end, or nil.
func (b *Booking) EndDateTime() *time.Time { return b.endDateTime }

// VehicleType returns the requested vehicle class.
func (b *Booking) VehicleType() pricing.VehicleType { return b.vehicleType }

// Fare returns the fare breakdown attached to the booking.
func (b *Booking) Fare() pricing.FareBreakdown { return b.fare }

// Trip returns the actual trip timestamps.
func (b *Booking) Trip() TripRecord { return b.trip }

// Cancellation returns the cancellation record, or nil.
func (b *Booking) Cancellation() *CancellationRecord { return b.cancellation }

// Rating returns the customer's rating, or nil if not yet rated.
func (b *Booking) Rating() *Rating { return b.rating }

// Payment returns the captured payment record, or nil.
func (b *Booking) Payment() *PaymentRecord { return b.payment }

// Version returns the entity version for optimistic locking.
func (b *Booking) Version() int64 { return b.version }

// CreatedAt returns the creation timestamp.
func (b *Booking) CreatedAt() time.Time { return b.createdAt }

// UpdatedAt returns the last-updated timestamp.
func (b *Booking) UpdatedAt() time.Time { return b.updatedAt }

// --- Behavior ---

// Confirm transitions a pending booking to confirmed.
func (b *Booking) Confirm(role ActorRole) error {
	if err := Authorize(b.status, StatusConfirmed, role); err != nil {
		return err
	}
	b.status = StatusConfirmed
	b.touch()
	return nil
}

// Reject transitions a pending booking to rejected.
func (b *Booking) Reject(role ActorRole) error {
	if err := Authorize(b.status, StatusRejected, role); err != nil {
		return err
	}
	b.status = StatusRejected
	b.touch()
	return nil
}

// AssignDriver transitions a confirmed booking to assigned with the given
// driver. Driver eligibility (availability, verification, vehicle class) is
// the caller's check; the concurrent-acceptance race is resolved by the
// repository's conditional update.
func (b *Booking) AssignDriver(role ActorRole, driverID uuid.UUID) error {
	if err := Authorize(b.status, StatusAssigned, role); err != nil {
		return err
	}
	if driverID == uuid.Nil {
		return domain.NewValidationError("driver ID is required")
	}
	b.driverID = &driverID
	b.status = StatusAssigned
	b.touch()
	return nil
}

// StartTrip transitions an assigned booking to in progress and stamps the
// actual start exactly once.
func (b *Booking) StartTrip(role ActorRole) error {
	if err := Authorize(b.status, StatusInProgress, role); err != nil {
		return err
	}
	b.status = StatusInProgress
	if b.trip.ActualStart == nil {
		now := time.Now().UTC()
		b.trip.ActualStart = &now
	}
	b.touch()
	return nil
}

// CompleteTrip transitions an in-progress booking to completed and stamps
// the actual end exactly once. The driver's completed-ride counter is the
// caller's side effect.
func (b *Booking) CompleteTrip(role ActorRole) error {
	if err := Authorize(b.status, StatusCompleted, role); err != nil {
		return err
	}
	b.status = StatusCompleted
	if b.trip.ActualEnd == nil {
		now := time.Now().UTC()
		b.trip.ActualEnd = &now
	}
	b.touch()
	return nil
}

// Cancel transitions the booking to cancelled and creates its cancellation
// record exactly once. A second cancellation attempt fails the transition
// check, since CANCELLED is terminal, and is never reapplied.
func (b *Booking) Cancel(role ActorRole, reason string, charge int64) error {
	if err := Authorize(b.status, StatusCancelled, role); err != nil {
		return err
	}
	now := time.Now().UTC()
	b.status = StatusCancelled
	b.cancellation = &CancellationRecord{
		CancelledBy: role,
		CancelledAt: now,
		Reason:      reason,
		Charge:      charge,
	}
	b.touch()
	return nil
}

// ApplyDiscount replaces the fare breakdown through the single controlled
// discount path. The booking must not have started and the fare must not
// already carry a discount.
func (b *Booking) ApplyDiscount(discounted pricing.FareBreakdown) error {
	switch b.status {
	case StatusPending, StatusConfirmed, StatusAssigned:
	default:
		return domain.NewInvalidStateError(string(b.status), "discount application")
	}
	if b.fare.DiscountAmount != 0 || b.fare.DiscountCode != "" {
		return domain.NewConflictError("a discount has already been applied to this booking")
	}
	b.fare = discounted
	b.touch()
	return nil
}

// Rate records the customer's score for a completed booking, exactly once.
func (b *Booking) Rate(score int, comment string) error {
	if b.status != StatusCompleted {
		return domain.NewInvalidStateError(string(b.status), "rating")
	}
	if b.rating != nil {
		return domain.NewConflictError("this booking has already been rated")
	}
	if score < 1 || score > 5 {
		return domain.NewValidationError("rating must be between 1 and 5")
	}
	b.rating = &Rating{Score: score, Comment: comment, RatedAt: time.Now().UTC()}
	b.touch()
	return nil
}

// RecordPayment attaches the captured gateway payment, exactly once.
func (b *Booking) RecordPayment(orderID, paymentID string) error {
	if b.payment != nil {
		return domain.NewConflictError("a payment has already been recorded for this booking")
	}
	b.payment = &PaymentRecord{OrderID: orderID, PaymentID: paymentID, CapturedAt: time.Now().UTC()}
	b.touch()
	return nil
}

// IncrementVersion bumps the version for optimistic locking.
func (b *Booking) IncrementVersion() {
	b.version++
	b.touch()
}

// IsActive reports whether the booking still occupies the user's schedule
// for duplicate-booking purposes.
func (b *Booking) IsActive() bool {
	switch b.status {
	case StatusCancelled, StatusCompleted, StatusRejected:
		return false
	}
	return true
}

func (b *Booking) touch() {
	b.updatedAt = time.Now().UTC()
}
