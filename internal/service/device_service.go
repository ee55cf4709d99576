// internal/service/device_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	internalDriver "pos-device-service/internal/driver"
	"pos-device-service/internal/driver/virtual"
	"pos-device-service/internal/hardware"
	"pos-device-service/internal/model"
	"pos-device-service/internal/repository"
	"pos-device-service/internal/utils"
	"pos-device-service/pkg/driver"
)

var (
	ErrUnknownRole      = errors.New("unknown device role")
	ErrReadOnlyDevices  = errors.New("devices are loaded from the configuration file")
	ErrRoleNotConnected = errors.New("role has no connected device")
	ErrNotInjectable    = errors.New("device does not accept injected input")
	ErrInvalidDevice    = errors.New("invalid device")
)

// DeviceLister lists the configured devices
type DeviceLister interface {
	List(ctx context.Context) ([]*model.Device, error)
}

// DeviceService exposes the hardware manager and device configuration
type DeviceService struct {
	manager        *hardware.Manager
	devices        DeviceLister
	deviceRepo     repository.DeviceRepository
	driverRegistry *internalDriver.Registry
	logger         *utils.ServiceLogger
	auditLogger    *utils.AuditLogger
}

// NewDeviceService creates a new device service instance. deviceRepo is nil
// when devices come from the configuration file; devices then lists them.
func NewDeviceService(
	manager *hardware.Manager,
	devices DeviceLister,
	deviceRepo repository.DeviceRepository,
	driverRegistry *internalDriver.Registry,
	logger *zap.Logger,
) *DeviceService {
	return &DeviceService{
		manager:        manager,
		devices:        devices,
		deviceRepo:     deviceRepo,
		driverRegistry: driverRegistry,
		logger:         utils.NewServiceLogger(logger, "device-service"),
		auditLogger:    utils.NewAuditLogger(logger),
	}
}

// ParseRole maps a role name from a request path to its flag
func ParseRole(name string) (model.DeviceRole, error) {
	role, ok := model.ParseDeviceRole(strings.ToLower(strings.TrimSpace(name)))
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownRole, name)
	}
	return role, nil
}

// Status returns the worker state and every role's connection
func (ds *DeviceService) Status() *HardwareStatus {
	worker := ds.manager.Worker()
	return &HardwareStatus{
		Running:  worker.IsRunning(),
		Degraded: worker.IsDegraded(),
		Roles:    ds.manager.Status(),
		Ports:    ds.manager.Registry().Ports(),
	}
}

// Connect connects the device of the named role
func (ds *DeviceService) Connect(ctx context.Context, roleName string) error {
	role, err := ParseRole(roleName)
	if err != nil {
		return err
	}

	if role == model.RolePrintKitchenOrder {
		_, err = ds.manager.InitKitchenPrinters(ctx)
	} else {
		_, err = ds.manager.Init(ctx, role)
	}
	if err != nil {
		ds.logger.Warn("Failed to connect role", zap.String("role", role.String()), zap.Error(err))
		return err
	}
	return nil
}

// Disconnect releases the device of the named role
func (ds *DeviceService) Disconnect(ctx context.Context, roleName string) error {
	role, err := ParseRole(roleName)
	if err != nil {
		return err
	}
	return ds.manager.Disconnect(ctx, role)
}

// Reconnect drops and connects the named role again
func (ds *DeviceService) Reconnect(ctx context.Context, roleName string) error {
	role, err := ParseRole(roleName)
	if err != nil {
		return err
	}
	return ds.manager.Reconnect(ctx, role)
}

// ConnectAll connects every enabled role. Failures are logged and skipped.
func (ds *DeviceService) ConnectAll(ctx context.Context) int {
	connected := 0
	for _, role := range model.AllRoles() {
		enabled, err := ds.manager.RoleEnabled(ctx, role)
		if err != nil {
			ds.logger.Warn("Failed to check role", zap.String("role", role.String()), zap.Error(err))
			continue
		}
		if !enabled {
			continue
		}
		if err := ds.Connect(ctx, role.String()); err != nil {
			continue
		}
		connected++
	}
	ds.logger.Info("Devices connected on start", zap.Int("roles", connected))
	return connected
}

// ResolveStatusError resumes status polling after an operator fixed a device
func (ds *DeviceService) ResolveStatusError() {
	ds.manager.ResolveStatusError()
	ds.logger.Info("Device status error resolved")
}

// Drivers lists the registered driver types
func (ds *DeviceService) Drivers() []*driver.DriverInfo {
	return ds.driverRegistry.ListDrivers()
}

// ListDevices returns the configured devices
func (ds *DeviceService) ListDevices(ctx context.Context) ([]*model.Device, error) {
	devices, err := ds.devices.List(ctx)
	if err != nil {
		return nil, err
	}
	if devices == nil {
		devices = []*model.Device{}
	}
	return devices, nil
}

// SaveDevice validates and stores a device. Connected roles of the device
// are released so the next use connects with the new settings.
func (ds *DeviceService) SaveDevice(ctx context.Context, req *SaveDeviceRequest) (*model.Device, error) {
	if ds.deviceRepo == nil {
		return nil, ErrReadOnlyDevices
	}

	device, err := ds.buildDevice(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDevice, err)
	}

	var old *model.Device
	if req.ID != nil {
		old, err = ds.deviceRepo.GetByID(ctx, *req.ID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
	}

	if err := ds.deviceRepo.Upsert(ctx, device); err != nil {
		return nil, err
	}

	action := "create"
	if old != nil {
		action = "update"
		ds.releaseRoles(ctx, old.Roles)
	}
	ds.releaseRoles(ctx, device.Roles)
	ds.auditLogger.LogDeviceConfiguration(device.ID.String(), action, old, device)
	return device, nil
}

// DeleteDevice removes a device and releases its roles
func (ds *DeviceService) DeleteDevice(ctx context.Context, id uuid.UUID) error {
	if ds.deviceRepo == nil {
		return ErrReadOnlyDevices
	}

	old, err := ds.deviceRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := ds.deviceRepo.Delete(ctx, id); err != nil {
		return err
	}

	ds.releaseRoles(ctx, old.Roles)
	ds.auditLogger.LogDeviceConfiguration(id.String(), "delete", old, nil)
	return nil
}

func (ds *DeviceService) releaseRoles(ctx context.Context, roles model.DeviceRole) {
	for _, role := range model.AllRoles() {
		if !roles.Has(role) || !ds.manager.IsConnected(role) {
			continue
		}
		if err := ds.manager.Disconnect(ctx, role); err != nil {
			ds.logger.Warn("Failed to release role", zap.String("role", role.String()), zap.Error(err))
		}
	}
}

func (ds *DeviceService) buildDevice(req *SaveDeviceRequest) (*model.Device, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if strings.TrimSpace(req.Port) == "" {
		return nil, fmt.Errorf("port is required")
	}
	if !ds.driverRegistry.IsSupported(req.DriverType) {
		return nil, fmt.Errorf("%w: %q", internalDriver.ErrDriverNotFound, req.DriverType)
	}

	var roles model.DeviceRole
	for _, roleName := range req.Roles {
		role, err := ParseRole(roleName)
		if err != nil {
			return nil, err
		}
		roles |= role
	}
	if roles == 0 {
		return nil, fmt.Errorf("at least one role is required")
	}

	id := uuid.New()
	if req.ID != nil {
		id = *req.ID
	}
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	return &model.Device{
		ID:         id,
		Name:       name,
		Roles:      roles,
		DriverType: strings.ToLower(strings.TrimSpace(req.DriverType)),
		Port:       strings.TrimSpace(req.Port),
		Serial:     req.Serial,
		Enabled:    enabled,
		ItemGroups: req.ItemGroups,
	}, nil
}

// Inject feeds a value into a simulated input device of the named role, as
// if a card was swiped, a barcode scanned or a weight measured
func (ds *DeviceService) Inject(ctx context.Context, roleName, value string) error {
	role, err := ParseRole(roleName)
	if err != nil {
		return err
	}
	if role == model.RolePrintKitchenOrder {
		return fmt.Errorf("%w: %s", ErrNotInjectable, role)
	}

	h, err := ds.manager.Connect(ctx, role)
	if err != nil {
		return err
	}
	if h == nil {
		return fmt.Errorf("%w: %s", ErrRoleNotConnected, role)
	}

	injector, ok := h.Driver().(virtual.Injector)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotInjectable, h.Device().DriverType)
	}
	return ds.manager.Execute(ctx, "inject "+role.String(), func(ctx context.Context) error {
		return injector.Inject(value)
	}, true)
}

// SaveDeviceRequest creates or replaces a device
type SaveDeviceRequest struct {
	ID         *uuid.UUID         `json:"id,omitempty"`
	Name       string             `json:"name" binding:"required"`
	Roles      []string           `json:"roles" binding:"required,min=1"`
	DriverType string             `json:"driver_type" binding:"required"`
	Port       string             `json:"port" binding:"required"`
	Serial     model.SerialConfig `json:"serial"`
	Enabled    *bool              `json:"enabled,omitempty"`
	ItemGroups []string           `json:"item_groups,omitempty"`
}

// HardwareStatus is the connection state reported to clients
type HardwareStatus struct {
	Running  bool                  `json:"running"`
	Degraded bool                  `json:"degraded"`
	Roles    []hardware.RoleStatus `json:"roles"`
	Ports    []string              `json:"ports"`
}
