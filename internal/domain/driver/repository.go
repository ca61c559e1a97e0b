package driver

import (
	"context"

	"github.com/google/uuid"
)

// DriverRepository defines persistence operations for driver profiles.
type DriverRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Driver, error)
	FindAvailable(ctx context.Context, vehicleType string) ([]*Driver, error)
	Save(ctx context.Context, d *Driver) error
	Update(ctx context.Context, d *Driver) error
}
