// internal/repository/interfaces.go
package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"pos-device-service/internal/hardware"
	"pos-device-service/internal/model"
)

// ErrNotFound is returned when a looked up row does not exist
var ErrNotFound = errors.New("not found")

// DeviceRepository defines device data access operations. It is also the
// device source of the hardware manager when devices live in the database.
type DeviceRepository interface {
	hardware.DeviceSource

	// CRUD operations
	GetByID(ctx context.Context, id uuid.UUID) (*model.Device, error)
	List(ctx context.Context) ([]*model.Device, error)
	Upsert(ctx context.Context, device *model.Device) error
	Delete(ctx context.Context, id uuid.UUID) error

	// Seed inserts devices when the table is empty and reports how many
	// were written
	Seed(ctx context.Context, devices []*model.Device) (int, error)
}

// SaleReader reads committed sales back
type SaleReader interface {
	GetSale(ctx context.Context, id uuid.UUID) (*model.Sale, error)
	GetSaleByNumber(ctx context.Context, number int64) (*model.Sale, error)
}
