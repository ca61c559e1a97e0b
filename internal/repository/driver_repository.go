package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/urbancab/service-booking/internal/domain"
	driverDomain "github.com/urbancab/service-booking/internal/domain/driver"
	"github.com/urbancab/service-booking/internal/domain/pricing"
)

// DriverModel is the GORM model for the drivers table.
type DriverModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name           string    `gorm:"type:varchar(100);not null"`
	Phone          string    `gorm:"type:varchar(20);not null;uniqueIndex"`
	LicenseNumber  string    `gorm:"type:varchar(50);not null"`
	VehicleType    string    `gorm:"type:varchar(20);not null;index"`
	VehicleNumber  string    `gorm:"type:varchar(20);not null"`
	Available      bool      `gorm:"not null;default:false"`
	Verified       bool      `gorm:"not null;default:false"`
	CompletedRides int64     `gorm:"not null;default:0"`
	RatedRideCount int64     `gorm:"not null;default:0"`
	RatingSum      int64     `gorm:"not null;default:0"`
	Version        int64     `gorm:"not null;default:1"`
	CreatedAt      time.Time `gorm:"type:timestamptz;not null;default:now()"`
	UpdatedAt      time.Time `gorm:"type:timestamptz;not null;default:now()"`
}

func (DriverModel) TableName() string { return "drivers" }

// GormDriverRepository implements DriverRepository using GORM.
type GormDriverRepository struct {
	db *gorm.DB
}

func NewGormDriverRepository(db *gorm.DB) *GormDriverRepository {
	return &GormDriverRepository{db: db}
}

func (r *GormDriverRepository) FindByID(ctx context.Context, id uuid.UUID) (*driverDomain.Driver, error) {
	var model DriverModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Driver", id.String())
		}
		return nil, err
	}
	return toDriverDomain(&model), nil
}

func (r *GormDriverRepository) FindAvailable(ctx context.Context, vehicleType string) ([]*driverDomain.Driver, error) {
	var models []DriverModel
	if err := r.db.WithContext(ctx).
		Where("available = ? AND verified = ? AND vehicle_type = ?", true, true, vehicleType).
		Order("completed_rides DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	drivers := make([]*driverDomain.Driver, len(models))
	for i, m := range models {
		drivers[i] = toDriverDomain(&m)
	}
	return drivers, nil
}

func (r *GormDriverRepository) Save(ctx context.Context, d *driverDomain.Driver) error {
	model := toDriverModel(d)
	return r.db.WithContext(ctx).Create(model).Error
}

func (r *GormDriverRepository) Update(ctx context.Context, d *driverDomain.Driver) error {
	model := toDriverModel(d)
	previousVersion := d.Version() - 1

	result := r.db.WithContext(ctx).
		Model(&DriverModel{}).
		Where("id = ? AND version = ?", model.ID, previousVersion).
		Updates(map[string]interface{}{
			"name":             model.Name,
			"phone":            model.Phone,
			"license_number":   model.LicenseNumber,
			"vehicle_type":     model.VehicleType,
			"vehicle_number":   model.VehicleNumber,
			"available":        model.Available,
			"verified":         model.Verified,
			"completed_rides":  model.CompletedRides,
			"rated_ride_count": model.RatedRideCount,
			"rating_sum":       model.RatingSum,
			"version":          model.Version,
			"updated_at":       model.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.NewConflictError("driver was modified by another transaction")
	}
	return nil
}

// --- Conversions ---

func toDriverModel(d *driverDomain.Driver) *DriverModel {
	return &DriverModel{
		ID:             d.ID(),
		Name:           d.Name(),
		Phone:          d.Phone(),
		LicenseNumber:  d.LicenseNumber(),
		VehicleType:    string(d.VehicleType()),
		VehicleNumber:  d.VehicleNumber(),
		Available:      d.Available(),
		Verified:       d.Verified(),
		CompletedRides: d.CompletedRides(),
		RatedRideCount: d.RatedRideCount(),
		RatingSum:      d.RatingSum(),
		Version:        d.Version(),
		CreatedAt:      d.CreatedAt(),
		UpdatedAt:      d.UpdatedAt(),
	}
}

func toDriverDomain(m *DriverModel) *driverDomain.Driver {
	return driverDomain.Reconstruct(
		m.ID,
		m.Name, m.Phone, m.LicenseNumber,
		pricing.VehicleType(m.VehicleType),
		m.VehicleNumber,
		m.Available, m.Verified,
		m.CompletedRides, m.RatedRideCount, m.RatingSum,
		m.Version,
		m.CreatedAt, m.UpdatedAt,
	)
}
