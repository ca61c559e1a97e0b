package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// BookingRepository defines the persistence contract for booking aggregates.
type BookingRepository interface {
	// FindByID retrieves a booking by its unique identifier.
	FindByID(ctx context.Context, id uuid.UUID) (*Booking, error)

	// FindByNumber retrieves a booking by its human-readable booking number.
	FindByNumber(ctx context.Context, number string) (*Booking, error)

	// FindByUserID retrieves bookings belonging to a customer with pagination.
	FindByUserID(ctx context.Context, userID uuid.UUID, page, limit int) ([]*Booking, int64, error)

	// FindByDriverID retrieves bookings assigned to a driver with pagination.
	FindByDriverID(ctx context.Context, driverID uuid.UUID, page, limit int) ([]*Booking, int64, error)

	// FindActiveByUserAround returns the user's active bookings (status not
	// terminal) whose start falls within ± window of start. Used by the
	// duplicate-booking guard.
	FindActiveByUserAround(ctx context.Context, userID uuid.UUID, start time.Time, window time.Duration) ([]*Booking, error)

	// CountCompletedByUser returns how many bookings the user has completed.
	// Discount eligibility checks read this.
	CountCompletedByUser(ctx context.Context, userID uuid.UUID) (int64, error)

	// ListAll retrieves all bookings with pagination (admin).
	ListAll(ctx context.Context, page, limit int) ([]*Booking, int64, error)

	// CountByStatus returns booking counts grouped by status (admin).
	CountByStatus(ctx context.Context) (map[string]int64, error)

	// Save persists a new booking.
	Save(ctx context.Context, booking *Booking) error

	// Update persists changes to an existing booking with optimistic locking.
	Update(ctx context.Context, booking *Booking) error

	// AssignDriver persists the CONFIRMED -> ASSIGNED transition as an
	// atomic conditional update filtered on the current status, so exactly
	// one concurrent acceptance wins. A losing attempt gets a conflict
	// error, never a silent overwrite.
	AssignDriver(ctx context.Context, booking *Booking) error
}
