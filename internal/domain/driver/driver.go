package driver

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/urbancab/service-booking/internal/domain"
	"github.com/urbancab/service-booking/internal/domain/pricing"
)

// Driver is the aggregate root for a driver profile. Assignment eligibility
// (availability, verification, vehicle class) lives here; the booking
// lifecycle consults it before entering ASSIGNED.
type Driver struct {
	id            uuid.UUID
	name          string
	phone         string
	licenseNumber string
	vehicleType   pricing.VehicleType
	vehicleNumber string
	available     bool
	verified      bool

	// completedRides counts finished trips. Rating aggregation keeps its
	// own ratedRideCount and ratingSum so the two never drift apart.
	completedRides int64
	ratedRideCount int64
	ratingSum      int64

	version   int64
	createdAt time.Time
	updatedAt time.Time
}

// NewDriver creates a new, unverified and unavailable driver profile. The id
// is the driver's account identity, so tokens issued to that account resolve
// directly to this profile.
func NewDriver(id uuid.UUID, name, phone, licenseNumber string, vehicleType pricing.VehicleType, vehicleNumber string) (*Driver, error) {
	if id == uuid.Nil {
		return nil, domain.NewValidationError("driver ID is required")
	}
	if name == "" {
		return nil, domain.NewValidationError("driver name is required")
	}
	if licenseNumber == "" {
		return nil, domain.NewValidationError("license number is required")
	}
	if _, err := pricing.ParseVehicleType(string(vehicleType)); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &Driver{
		id:            id,
		name:          name,
		phone:         phone,
		licenseNumber: licenseNumber,
		vehicleType:   vehicleType,
		vehicleNumber: vehicleNumber,
		version:       1,
		createdAt:     now,
		updatedAt:     now,
	}, nil
}

// Reconstruct rebuilds a Driver from persistence data (no validation).
func Reconstruct(
	id uuid.UUID,
	name, phone, licenseNumber string,
	vehicleType pricing.VehicleType,
	vehicleNumber string,
	available, verified bool,
	completedRides, ratedRideCount, ratingSum int64,
	version int64,
	createdAt, updatedAt time.Time,
) *Driver {
	return &Driver{
		id:             id,
		name:           name,
		phone:          phone,
		licenseNumber:  licenseNumber,
		vehicleType:    vehicleType,
		vehicleNumber:  vehicleNumber,
		available:      available,
		verified:       verified,
		completedRides: completedRides,
		ratedRideCount: ratedRideCount,
		ratingSum:      ratingSum,
		version:        version,
		createdAt:      createdAt,
		updatedAt:      updatedAt,
	}
}

// --- Getters ---

func (d *Driver) ID() uuid.UUID                    { return d.id }
func (d *Driver) Name() string                     { return d.name }
func (d *Driver) Phone() string                    { return d.phone }
func (d *Driver) LicenseNumber() string            { return d.licenseNumber }
func (d *Driver) VehicleType() pricing.VehicleType { return d.vehicleType }
func (d *Driver) VehicleNumber() string            { return d.vehicleNumber }
func (d *Driver) Available() bool                  { return d.available }
func (d *Driver) Verified() bool                   { return d.verified }
func (d *Driver) CompletedRides() int64            { return d.completedRides }
func (d *Driver) RatedRideCount() int64            { return d.ratedRideCount }
func (d *Driver) RatingSum() int64                 { return d.ratingSum }
func (d *Driver) Version() int64                   { return d.version }
func (d *Driver) CreatedAt() time.Time             { return d.createdAt }
func (d *Driver) UpdatedAt() time.Time             { return d.updatedAt }

// AverageRating returns the mean of received ratings, or 0 when unrated.
func (d *Driver) AverageRating() float64 {
	if d.ratedRideCount == 0 {
		return 0
	}
	return float64(d.ratingSum) / float64(d.ratedRideCount)
}

// --- Behavior ---

// CanAccept checks assignment eligibility for a booking of the given vehicle
// class.
func (d *Driver) CanAccept(vehicleType pricing.VehicleType) error {
	if !d.verified {
		return domain.NewValidationError(fmt.Sprintf("driver %s is not verified", d.name))
	}
	if !d.available {
		return domain.NewConflictError(fmt.Sprintf("driver %s is not available", d.name))
	}
	if d.vehicleType != vehicleType {
		return domain.NewValidationError(fmt.Sprintf("driver %s holds a %s, booking needs a %s", d.name, d.vehicleType, vehicleType))
	}
	return nil
}

// SetAvailability flips the driver's availability.
func (d *Driver) SetAvailability(available bool) {
	d.available = available
	d.touch()
}

// Verify marks the driver's documents as verified.
func (d *Driver) Verify() {
	d.verified = true
	d.touch()
}

// RecordCompletedRide increments the completed-ride counter, once per
// completed trip.
func (d *Driver) RecordCompletedRide() {
	d.completedRides++
	d.touch()
}

// AddRating folds a new rating score into the aggregates.
func (d *Driver) AddRating(score int) error {
	if score < 1 || score > 5 {
		return domain.NewValidationError("rating must be between 1 and 5")
	}
	d.ratedRideCount++
	d.ratingSum += int64(score)
	d.touch()
	return nil
}

func (d *Driver) touch() {
	d.version++
	d.updatedAt = time.Now().UTC()
}
