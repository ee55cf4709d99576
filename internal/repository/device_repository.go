// internal/repository/device_repository.go
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"pos-device-service/internal/database"
	"pos-device-service/internal/model"
	"pos-device-service/internal/utils"
)

const deviceColumns = `id, name, roles, driver_type, port, baud_rate, data_bits,
	stop_bits, parity, enabled, item_groups`

// deviceRepository implements DeviceRepository interface
type deviceRepository struct {
	db     *database.DB
	logger *utils.ServiceLogger
}

// NewDeviceRepository creates a new device repository
func NewDeviceRepository(db *database.DB, logger *zap.Logger) DeviceRepository {
	return &deviceRepository{
		db:     db,
		logger: utils.NewServiceLogger(logger, "device-repository"),
	}
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDevice(row rowScanner) (*model.Device, error) {
	var (
		device model.Device
		roles  int64
		groups pq.StringArray
	)
	err := row.Scan(
		&device.ID, &device.Name, &roles, &device.DriverType, &device.Port,
		&device.Serial.BaudRate, &device.Serial.DataBits, &device.Serial.StopBits,
		&device.Serial.Parity, &device.Enabled, &groups,
	)
	if err != nil {
		return nil, err
	}
	device.Roles = model.DeviceRole(roles)
	if len(groups) > 0 {
		device.ItemGroups = []string(groups)
	}
	return &device, nil
}

// GetByID retrieves a device by its UUID
func (r *deviceRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE id = $1`

	device, err := scanDevice(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("device %s: %w", id, ErrNotFound)
		}
		r.logger.Error("Failed to get device by ID", zap.Error(err), zap.String("id", id.String()))
		return nil, fmt.Errorf("failed to get device: %w", err)
	}
	return device, nil
}

// List returns every device ordered by creation
func (r *deviceRepository) List(ctx context.Context) ([]*model.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices ORDER BY created_at, name`
	return r.query(ctx, "list devices", query)
}

// DeviceForRole returns the enabled device carrying the role. A disabled one
// is returned when no enabled device has the role, nil when none has it.
func (r *deviceRepository) DeviceForRole(ctx context.Context, role model.DeviceRole) (*model.Device, error) {
	query := `
		SELECT ` + deviceColumns + `
		FROM devices
		WHERE roles & $1 = $1
		ORDER BY enabled DESC, created_at, name
		LIMIT 1
	`

	device, err := scanDevice(r.db.QueryRowContext(ctx, query, int64(role)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get device for role", zap.Error(err), zap.Stringer("role", role))
		return nil, fmt.Errorf("failed to get device for role %s: %w", role, err)
	}
	return device, nil
}

// KitchenPrinters returns every kitchen printer, enabled or not
func (r *deviceRepository) KitchenPrinters(ctx context.Context) ([]*model.Device, error) {
	query := `
		SELECT ` + deviceColumns + `
		FROM devices
		WHERE roles & $1 = $1
		ORDER BY created_at, name
	`
	return r.query(ctx, "list kitchen printers", query, int64(model.RolePrintKitchenOrder))
}

func (r *deviceRepository) query(ctx context.Context, action, query string, args ...interface{}) ([]*model.Device, error) {
	start := time.Now()
	rows, err := r.db.QueryContext(ctx, query, args...)
	r.logger.LogDatabaseQuery(action, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to %s: %w", action, err)
	}
	defer rows.Close()

	var devices []*model.Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		devices = append(devices, device)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to %s: %w", action, err)
	}
	return devices, nil
}

// Upsert inserts the device or replaces the stored row with the same id
func (r *deviceRepository) Upsert(ctx context.Context, device *model.Device) error {
	if err := upsertDevice(ctx, r.db, device); err != nil {
		r.logger.Error("Failed to upsert device", zap.Error(err), zap.String("name", device.Name))
		return fmt.Errorf("failed to upsert device: %w", err)
	}

	r.logger.Info("Device saved", zap.String("id", device.ID.String()), zap.String("name", device.Name))
	return nil
}

// execer is satisfied by *database.DB and *sql.Tx
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func upsertDevice(ctx context.Context, db execer, device *model.Device) error {
	query := `
		INSERT INTO devices (
			id, name, roles, driver_type, port, baud_rate, data_bits,
			stop_bits, parity, enabled, item_groups
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			roles = EXCLUDED.roles,
			driver_type = EXCLUDED.driver_type,
			port = EXCLUDED.port,
			baud_rate = EXCLUDED.baud_rate,
			data_bits = EXCLUDED.data_bits,
			stop_bits = EXCLUDED.stop_bits,
			parity = EXCLUDED.parity,
			enabled = EXCLUDED.enabled,
			item_groups = EXCLUDED.item_groups,
			updated_at = CURRENT_TIMESTAMP
	`

	groups := device.ItemGroups
	if groups == nil {
		groups = []string{}
	}
	_, err := db.ExecContext(ctx, query,
		device.ID, device.Name, int64(device.Roles), device.DriverType, device.Port,
		device.Serial.BaudRate, device.Serial.DataBits, device.Serial.StopBits,
		device.Serial.Parity, device.Enabled, pq.Array(groups),
	)
	return err
}

// Delete removes a device
func (r *deviceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM devices WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		r.logger.Error("Failed to delete device", zap.Error(err), zap.String("id", id.String()))
		return fmt.Errorf("failed to delete device: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("device %s: %w", id, ErrNotFound)
	}

	r.logger.Info("Device deleted successfully", zap.String("id", id.String()))
	return nil
}

// Seed writes the configured devices into an empty table
func (r *deviceRepository) Seed(ctx context.Context, devices []*model.Device) (int, error) {
	if len(devices) == 0 {
		return 0, nil
	}

	seeded := 0
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		var count int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM devices`).Scan(&count); err != nil {
			return fmt.Errorf("failed to count devices: %w", err)
		}
		if count > 0 {
			return nil
		}
		for _, device := range devices {
			if err := upsertDevice(ctx, tx, device); err != nil {
				return fmt.Errorf("failed to seed device %s: %w", device.Name, err)
			}
			seeded++
		}
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to seed devices", zap.Error(err))
		return 0, err
	}

	if seeded > 0 {
		r.logger.Info("Devices seeded from configuration", zap.Int("count", seeded))
	}
	return seeded, nil
}
