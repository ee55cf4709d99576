// internal/driver/registry.go
package driver

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"pos-device-service/internal/model"
	"pos-device-service/internal/protocol"
	"pos-device-service/pkg/driver"
)

// ErrDriverNotFound is returned for an unregistered driver type
var ErrDriverNotFound = errors.New("driver not found")

// Environment carries what concrete drivers need besides the device
type Environment struct {
	Transports   *protocol.Factory
	CodePage     string
	ReceiptWidth int
	// TaxRates is the tax table programmed into simulated fiscal devices
	TaxRates []driver.TaxRate
	Logger   *zap.Logger
}

// DriverFactory creates an unconnected driver. info is shared by every
// instance of the driver type.
type DriverFactory func(info *driver.DriverInfo, device *model.Device, env *Environment) (driver.Driver, error)

type registration struct {
	info    *driver.DriverInfo
	factory DriverFactory
}

// Registry manages device driver registration and creation
type Registry struct {
	drivers map[string]*registration
	env     *Environment
	mu      sync.RWMutex
	logger  *zap.Logger
}

// NewRegistry creates a new driver registry
func NewRegistry(env *Environment, logger *zap.Logger) *Registry {
	return &Registry{
		drivers: make(map[string]*registration),
		env:     env,
		logger:  logger,
	}
}

func driverKey(driverType string) string {
	return strings.ToLower(strings.TrimSpace(driverType))
}

// Register registers a driver factory under info.Type. A later registration
// of the same type replaces the earlier one.
func (r *Registry) Register(info driver.DriverInfo, factory DriverFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cached := info
	cached.Commands = append([]driver.Command(nil), info.Commands...)
	r.drivers[driverKey(info.Type)] = &registration{info: &cached, factory: factory}

	r.logger.Info("Driver registered",
		zap.String("driver_type", info.Type),
		zap.String("name", info.Name),
		zap.Int("commands", len(info.Commands)),
	)
}

// Create creates a driver instance for the device
func (r *Registry) Create(driverType string, device *model.Device) (driver.Driver, error) {
	r.mu.RLock()
	reg, ok := r.drivers[driverKey(driverType)]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrDriverNotFound, driverType)
	}
	drv, err := reg.factory(reg.info, device, r.env)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s driver for %s: %w", reg.info.Type, device.Name, err)
	}
	return drv, nil
}

// Info returns the cached info of a driver type
func (r *Registry) Info(driverType string) (*driver.DriverInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.drivers[driverKey(driverType)]
	if !ok {
		return nil, false
	}
	return reg.info, true
}

// ListDrivers returns all registered drivers ordered by type
func (r *Registry) ListDrivers() []*driver.DriverInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]*driver.DriverInfo, 0, len(r.drivers))
	for _, reg := range r.drivers {
		infos = append(infos, reg.info)
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Type < infos[j].Type
	})
	return infos
}

// IsSupported checks if a driver type is registered
func (r *Registry) IsSupported(driverType string) bool {
	_, ok := r.Info(driverType)
	return ok
}
