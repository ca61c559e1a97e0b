package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/urbancab/service-booking/internal/domain"
	bookingDomain "github.com/urbancab/service-booking/internal/domain/booking"
	"github.com/urbancab/service-booking/internal/domain/pricing"
)

// BookingModel is the GORM model for the bookings table.
type BookingModel struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey"`
	BookingNumber string          `gorm:"uniqueIndex;not null;size:20"`
	UserID        uuid.UUID       `gorm:"type:uuid;index;not null"`
	DriverID      *uuid.UUID      `gorm:"type:uuid;index"`
	BookingType   string          `gorm:"not null;size:20"`
	Status        string          `gorm:"not null;size:30;index"`
	Pickup        json.RawMessage `gorm:"column:pickup_location;type:jsonb;not null"`
	Drop          json.RawMessage `gorm:"column:drop_location;type:jsonb"`
	StartDateTime time.Time       `gorm:"not null;index"`
	EndDateTime   *time.Time      `gorm:""`
	VehicleType   string          `gorm:"not null;size:20"`
	Fare          json.RawMessage `gorm:"type:jsonb;not null"`
	Trip          json.RawMessage `gorm:"type:jsonb"`
	Cancellation  json.RawMessage `gorm:"type:jsonb"`
	Rating        json.RawMessage `gorm:"type:jsonb"`
	Payment       json.RawMessage `gorm:"type:jsonb"`
	Version       int64           `gorm:"not null;default:1"`
	CreatedAt     time.Time       `gorm:"not null"`
	UpdatedAt     time.Time       `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (BookingModel) TableName() string {
	return "bookings"
}

// GormBookingRepository is the GORM-based implementation of BookingRepository.
type GormBookingRepository struct {
	db *gorm.DB
}

// NewGormBookingRepository creates a new GormBookingRepository.
func NewGormBookingRepository(db *gorm.DB) *GormBookingRepository {
	return &GormBookingRepository{db: db}
}

// FindByID retrieves a booking by its unique identifier.
func (r *GormBookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	var model BookingModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Booking", id.String())
		}
		return nil, fmt.Errorf("failed to find booking by ID: %w", err)
	}
	return toDomainBooking(&model)
}

// FindByNumber retrieves a booking by its booking number.
func (r *GormBookingRepository) FindByNumber(ctx context.Context, number string) (*bookingDomain.Booking, error) {
	var model BookingModel
	if err := r.db.WithContext(ctx).Where("booking_number = ?", number).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Booking", number)
		}
		return nil, fmt.Errorf("failed to find booking by number: %w", err)
	}
	return toDomainBooking(&model)
}

// FindByUserID retrieves bookings for a specific customer with pagination.
func (r *GormBookingRepository) FindByUserID(ctx context.Context, userID uuid.UUID, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&BookingModel{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count user bookings: %w", err)
	}

	var models []BookingModel
	offset := (page - 1) * limit
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to find user bookings: %w", err)
	}

	return toDomainBookings(models, total)
}

// FindByDriverID retrieves bookings assigned to a specific driver with pagination.
func (r *GormBookingRepository) FindByDriverID(ctx context.Context, driverID uuid.UUID, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&BookingModel{}).Where("driver_id = ?", driverID).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count driver bookings: %w", err)
	}

	var models []BookingModel
	offset := (page - 1) * limit
	if err := r.db.WithContext(ctx).
		Where("driver_id = ?", driverID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to find driver bookings: %w", err)
	}

	return toDomainBookings(models, total)
}

// FindActiveByUserAround returns the user's non-terminal bookings whose
// scheduled start falls within the given window around start.
func (r *GormBookingRepository) FindActiveByUserAround(ctx context.Context, userID uuid.UUID, start time.Time, window time.Duration) ([]*bookingDomain.Booking, error) {
	var models []BookingModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Where("status NOT IN ?", []string{
			string(bookingDomain.StatusCancelled),
			string(bookingDomain.StatusCompleted),
			string(bookingDomain.StatusRejected),
		}).
		Where("start_date_time BETWEEN ? AND ?", start.Add(-window), start.Add(window)).
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find active bookings around start: %w", err)
	}

	bookings, _, err := toDomainBookings(models, int64(len(models)))
	return bookings, err
}

// CountCompletedByUser returns how many bookings the user has completed.
func (r *GormBookingRepository) CountCompletedByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&BookingModel{}).
		Where("user_id = ? AND status = ?", userID, string(bookingDomain.StatusCompleted)).
		Count(&total).Error; err != nil {
		return 0, fmt.Errorf("failed to count completed bookings: %w", err)
	}
	return total, nil
}

// Save persists a new booking.
func (r *GormBookingRepository) Save(ctx context.Context, bk *bookingDomain.Booking) error {
	model, err := toBookingModel(bk)
	if err != nil {
		return fmt.Errorf("failed to convert booking to model: %w", err)
	}

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to save booking: %w", err)
	}
	return nil
}

// Update persists changes to an existing booking with optimistic locking.
func (r *GormBookingRepository) Update(ctx context.Context, bk *bookingDomain.Booking) error {
	model, err := toBookingModel(bk)
	if err != nil {
		return fmt.Errorf("failed to convert booking to model: %w", err)
	}

	// Optimistic locking: only update if the version matches (current version - 1 since IncrementVersion was called)
	expectedVersion := bk.Version() - 1
	result := r.db.WithContext(ctx).
		Model(&BookingModel{}).
		Where("id = ? AND version = ?", model.ID, expectedVersion).
		Updates(map[string]interface{}{
			"driver_id":       model.DriverID,
			"status":          model.Status,
			"pickup_location": model.Pickup,
			"drop_location":   model.Drop,
			"start_date_time": model.StartDateTime,
			"end_date_time":   model.EndDateTime,
			"vehicle_type":    model.VehicleType,
			"fare":            model.Fare,
			"trip":            model.Trip,
			"cancellation":    model.Cancellation,
			"rating":          model.Rating,
			"payment":         model.Payment,
			"version":         model.Version,
			"updated_at":      model.UpdatedAt,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update booking: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return domain.NewConflictError("booking was modified by another transaction")
	}

	return nil
}

// AssignDriver persists a driver assignment as a conditional update on the
// confirmed, unassigned row. With two concurrent acceptances exactly one
// matches; the other sees zero rows and gets a conflict.
func (r *GormBookingRepository) AssignDriver(ctx context.Context, bk *bookingDomain.Booking) error {
	model, err := toBookingModel(bk)
	if err != nil {
		return fmt.Errorf("failed to convert booking to model: %w", err)
	}

	result := r.db.WithContext(ctx).
		Model(&BookingModel{}).
		Where("id = ? AND status = ? AND driver_id IS NULL", model.ID, string(bookingDomain.StatusConfirmed)).
		Updates(map[string]interface{}{
			"driver_id":  model.DriverID,
			"status":     model.Status,
			"version":    model.Version,
			"updated_at": model.UpdatedAt,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to assign driver: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return domain.NewConflictError("booking has already been accepted by another driver")
	}

	return nil
}

// ListAll retrieves all bookings with pagination (admin).
func (r *GormBookingRepository) ListAll(ctx context.Context, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&BookingModel{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count bookings: %w", err)
	}

	var models []BookingModel
	offset := (page - 1) * limit
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list bookings: %w", err)
	}

	return toDomainBookings(models, total)
}

// CountByStatus returns booking counts grouped by status (admin).
func (r *GormBookingRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}
	var results []statusCount
	if err := r.db.WithContext(ctx).Model(&BookingModel{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to count by status: %w", err)
	}

	counts := make(map[string]int64)
	for _, sc := range results {
		counts[sc.Status] = sc.Count
	}
	return counts, nil
}

// --- Conversion Helpers ---

func toBookingModel(bk *bookingDomain.Booking) (*BookingModel, error) {
	pickupJSON, err := json.Marshal(bk.Pickup())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal pickup location: %w", err)
	}

	var dropJSON json.RawMessage
	if !bk.Drop().IsZero() {
		dropJSON, err = json.Marshal(bk.Drop())
		if err != nil {
			return nil, fmt.Errorf("failed to marshal drop location: %w", err)
		}
	}

	fareJSON, err := json.Marshal(bk.Fare())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal fare breakdown: %w", err)
	}

	tripJSON, err := json.Marshal(bk.Trip())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal trip record: %w", err)
	}

	var cancellationJSON json.RawMessage
	if bk.Cancellation() != nil {
		cancellationJSON, err = json.Marshal(bk.Cancellation())
		if err != nil {
			return nil, fmt.Errorf("failed to marshal cancellation record: %w", err)
		}
	}

	var ratingJSON json.RawMessage
	if bk.Rating() != nil {
		ratingJSON, err = json.Marshal(bk.Rating())
		if err != nil {
			return nil, fmt.Errorf("failed to marshal rating: %w", err)
		}
	}

	var paymentJSON json.RawMessage
	if bk.Payment() != nil {
		paymentJSON, err = json.Marshal(bk.Payment())
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payment record: %w", err)
		}
	}

	return &BookingModel{
		ID:            bk.ID(),
		BookingNumber: bk.BookingNumber(),
		UserID:        bk.UserID(),
		DriverID:      bk.DriverID(),
		BookingType:   string(bk.BookingType()),
		Status:        string(bk.Status()),
		Pickup:        pickupJSON,
		Drop:          dropJSON,
		StartDateTime: bk.StartDateTime(),
		EndDateTime:   bk.EndDateTime(),
		VehicleType:   string(bk.VehicleType()),
		Fare:          fareJSON,
		Trip:          tripJSON,
		Cancellation:  cancellationJSON,
		Rating:        ratingJSON,
		Payment:       paymentJSON,
		Version:       bk.Version(),
		CreatedAt:     bk.CreatedAt(),
		UpdatedAt:     bk.UpdatedAt(),
	}, nil
}

func toDomainBooking(m *BookingModel) (*bookingDomain.Booking, error) {
	var pickup bookingDomain.Location
	if err := json.Unmarshal(m.Pickup, &pickup); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pickup location: %w", err)
	}

	var drop bookingDomain.Location
	if len(m.Drop) > 0 {
		if err := json.Unmarshal(m.Drop, &drop); err != nil {
			return nil, fmt.Errorf("failed to unmarshal drop location: %w", err)
		}
	}

	var fare pricing.FareBreakdown
	if err := json.Unmarshal(m.Fare, &fare); err != nil {
		return nil, fmt.Errorf("failed to unmarshal fare breakdown: %w", err)
	}

	var trip bookingDomain.TripRecord
	if len(m.Trip) > 0 {
		if err := json.Unmarshal(m.Trip, &trip); err != nil {
			return nil, fmt.Errorf("failed to unmarshal trip record: %w", err)
		}
	}

	var cancellation *bookingDomain.CancellationRecord
	if len(m.Cancellation) > 0 {
		cancellation = &bookingDomain.CancellationRecord{}
		if err := json.Unmarshal(m.Cancellation, cancellation); err != nil {
			return nil, fmt.Errorf("failed to unmarshal cancellation record: %w", err)
		}
	}

	var rating *bookingDomain.Rating
	if len(m.Rating) > 0 {
		rating = &bookingDomain.Rating{}
		if err := json.Unmarshal(m.Rating, rating); err != nil {
			return nil, fmt.Errorf("failed to unmarshal rating: %w", err)
		}
	}

	var payment *bookingDomain.PaymentRecord
	if len(m.Payment) > 0 {
		payment = &bookingDomain.PaymentRecord{}
		if err := json.Unmarshal(m.Payment, payment); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payment record: %w", err)
		}
	}

	status, err := bookingDomain.ParseBookingStatus(m.Status)
	if err != nil {
		return nil, err
	}

	return bookingDomain.ReconstructBooking(
		m.ID,
		m.BookingNumber,
		m.UserID,
		m.DriverID,
		pricing.BookingType(m.BookingType),
		status,
		pickup,
		drop,
		m.StartDateTime,
		m.EndDateTime,
		pricing.VehicleType(m.VehicleType),
		fare,
		trip,
		cancellation,
		rating,
		payment,
		m.Version,
		m.CreatedAt,
		m.UpdatedAt,
	), nil
}

func toDomainBookings(models []BookingModel, total int64) ([]*bookingDomain.Booking, int64, error) {
	bookings := make([]*bookingDomain.Booking, len(models))
	for i, m := range models {
		bk, err := toDomainBooking(&m)
		if err != nil {
			return nil, 0, err
		}
		bookings[i] = bk
	}
	return bookings, total, nil
}
