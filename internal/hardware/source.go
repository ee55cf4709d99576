// internal/hardware/source.go
package hardware

import (
	"context"
	"sync"

	"pos-device-service/internal/model"
)

// DeviceSource is the read-only device configuration consumed by the manager
type DeviceSource interface {
	// DeviceForRole returns the device configured for role, or nil when the
	// role has no device
	DeviceForRole(ctx context.Context, role model.DeviceRole) (*model.Device, error)
	// KitchenPrinters returns every device carrying the kitchen printer role
	KitchenPrinters(ctx context.Context) ([]*model.Device, error)
}

// StaticDeviceSource serves a fixed device list, typically loaded from the
// configuration file
type StaticDeviceSource struct {
	mu      sync.RWMutex
	devices []*model.Device
}

// NewStaticDeviceSource creates a source over devices
func NewStaticDeviceSource(devices []*model.Device) *StaticDeviceSource {
	return &StaticDeviceSource{devices: devices}
}

// Replace swaps the device list
func (s *StaticDeviceSource) Replace(devices []*model.Device) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices = devices
}

// List returns the devices in configuration order
func (s *StaticDeviceSource) List(_ context.Context) ([]*model.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	devices := make([]*model.Device, len(s.devices))
	copy(devices, s.devices)
	return devices, nil
}

// DeviceForRole returns the first enabled device with the role, falling back
// to a disabled one so callers can tell "disabled" from "unconfigured"
func (s *StaticDeviceSource) DeviceForRole(_ context.Context, role model.DeviceRole) (*model.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var disabled *model.Device
	for _, d := range s.devices {
		if !d.Roles.Has(role) {
			continue
		}
		if d.Enabled {
			return d, nil
		}
		if disabled == nil {
			disabled = d
		}
	}
	return disabled, nil
}

// KitchenPrinters returns the kitchen printers in configuration order
func (s *StaticDeviceSource) KitchenPrinters(_ context.Context) ([]*model.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var printers []*model.Device
	for _, d := range s.devices {
		if d.Roles.Has(model.RolePrintKitchenOrder) {
			printers = append(printers, d)
		}
	}
	return printers, nil
}
