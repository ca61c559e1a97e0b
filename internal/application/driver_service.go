package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/urbancab/service-booking/internal/domain"
	driverDomain "github.com/urbancab/service-booking/internal/domain/driver"
	"github.com/urbancab/service-booking/internal/domain/pricing"
)

// RegisterDriverRequest is the request DTO for registering a driver profile.
type RegisterDriverRequest struct {
	Name          string `json:"name" binding:"required"`
	Phone         string `json:"phone" binding:"required"`
	LicenseNumber string `json:"license_number" binding:"required"`
	VehicleType   string `json:"vehicle_type" binding:"required"`
	VehicleNumber string `json:"vehicle_number" binding:"required"`
}

// SetAvailabilityRequest toggles a driver's availability.
type SetAvailabilityRequest struct {
	Available bool `json:"available"`
}

// DriverDTO is the API response representation of a driver profile.
type DriverDTO struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Phone          string    `json:"phone"`
	LicenseNumber  string    `json:"license_number"`
	VehicleType    string    `json:"vehicle_type"`
	VehicleNumber  string    `json:"vehicle_number"`
	Available      bool      `json:"available"`
	Verified       bool      `json:"verified"`
	CompletedRides int64     `json:"completed_rides"`
	AverageRating  float64   `json:"average_rating"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// DriverService implements use cases for driver profile management.
type DriverService struct {
	repo   driverDomain.DriverRepository
	logger *zap.Logger
}

// NewDriverService creates a new DriverService.
func NewDriverService(repo driverDomain.DriverRepository, logger *zap.Logger) *DriverService {
	return &DriverService{repo: repo, logger: logger}
}

// RegisterDriver creates an unverified driver profile keyed by the
// authenticated account's ID, so trip endpoints can resolve the caller's
// profile straight from the token subject.
func (s *DriverService) RegisterDriver(ctx context.Context, userID uuid.UUID, req RegisterDriverRequest) (*DriverDTO, error) {
	vehicleType, err := pricing.ParseVehicleType(req.VehicleType)
	if err != nil {
		return nil, err
	}

	if existing, err := s.repo.FindByID(ctx, userID); err == nil && existing != nil {
		return nil, domain.NewConflictError("a driver profile already exists for this account")
	} else if err != nil && !domain.IsKind(err, domain.KindNotFound) {
		return nil, err
	}

	drv, err := driverDomain.NewDriver(userID, req.Name, req.Phone, req.LicenseNumber, vehicleType, req.VehicleNumber)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, drv); err != nil {
		s.logger.Error("failed to register driver", zap.Error(err))
		return nil, fmt.Errorf("failed to register driver: %w", err)
	}

	s.logger.Info("driver registered",
		zap.String("driver_id", drv.ID().String()),
		zap.String("vehicle_type", string(drv.VehicleType())),
	)
	result := toDriverDTO(drv)
	return &result, nil
}

// GetDriver returns a single driver profile by ID.
func (s *DriverService) GetDriver(ctx context.Context, driverID uuid.UUID) (*DriverDTO, error) {
	drv, err := s.repo.FindByID(ctx, driverID)
	if err != nil {
		return nil, err
	}
	result := toDriverDTO(drv)
	return &result, nil
}

// ListAvailableDrivers returns verified, available drivers for a vehicle class.
func (s *DriverService) ListAvailableDrivers(ctx context.Context, vehicleType string) ([]DriverDTO, error) {
	vt, err := pricing.ParseVehicleType(vehicleType)
	if err != nil {
		return nil, err
	}

	drivers, err := s.repo.FindAvailable(ctx, string(vt))
	if err != nil {
		return nil, fmt.Errorf("failed to list available drivers: %w", err)
	}
	dtos := make([]DriverDTO, len(drivers))
	for i, d := range drivers {
		dtos[i] = toDriverDTO(d)
	}
	return dtos, nil
}

// SetAvailability flips the driver's own availability flag.
func (s *DriverService) SetAvailability(ctx context.Context, driverID uuid.UUID, available bool) (*DriverDTO, error) {
	drv, err := s.repo.FindByID(ctx, driverID)
	if err != nil {
		return nil, err
	}

	drv.SetAvailability(available)
	if err := s.repo.Update(ctx, drv); err != nil {
		s.logger.Error("failed to update driver availability", zap.Error(err))
		return nil, fmt.Errorf("failed to update driver availability: %w", err)
	}

	result := toDriverDTO(drv)
	return &result, nil
}

// VerifyDriver marks the driver's documents as verified (admin).
func (s *DriverService) VerifyDriver(ctx context.Context, driverID uuid.UUID) (*DriverDTO, error) {
	drv, err := s.repo.FindByID(ctx, driverID)
	if err != nil {
		return nil, err
	}

	drv.Verify()
	if err := s.repo.Update(ctx, drv); err != nil {
		s.logger.Error("failed to verify driver", zap.Error(err))
		return nil, fmt.Errorf("failed to verify driver: %w", err)
	}

	s.logger.Info("driver verified", zap.String("driver_id", driverID.String()))
	result := toDriverDTO(drv)
	return &result, nil
}

func toDriverDTO(d *driverDomain.Driver) DriverDTO {
	return DriverDTO{
		ID:             d.ID(),
		Name:           d.Name(),
		Phone:          d.Phone(),
		LicenseNumber:  d.LicenseNumber(),
		VehicleType:    string(d.VehicleType()),
		VehicleNumber:  d.VehicleNumber(),
		Available:      d.Available(),
		Verified:       d.Verified(),
		CompletedRides: d.CompletedRides(),
		AverageRating:  d.AverageRating(),
		CreatedAt:      d.CreatedAt(),
		UpdatedAt:      d.UpdatedAt(),
	}
}
