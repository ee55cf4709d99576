// internal/hardware/registry.go
package hardware

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"pos-device-service/internal/model"
	"pos-device-service/pkg/driver"
)

// DriverFactory creates a new, unconnected driver for a driver type id
type DriverFactory interface {
	Create(driverType string, device *model.Device) (driver.Driver, error)
}

// DriverFactoryFunc adapts a function to DriverFactory
type DriverFactoryFunc func(driverType string, device *model.Device) (driver.Driver, error)

// Create calls f
func (f DriverFactoryFunc) Create(driverType string, device *model.Device) (driver.Driver, error) {
	return f(driverType, device)
}

// Handle is a connected driver bound to a port. Roles resolving to the same
// port share one handle through its reference count.
type Handle struct {
	registry *Registry
	port     string
	device   *model.Device
	driver   driver.Driver
	refs     int

	// ready is non-nil while the first owner is still connecting
	ready chan struct{}
}

// Driver returns the live driver
func (h *Handle) Driver() driver.Driver {
	return h.driver
}

// Port returns the normalized port the handle occupies
func (h *Handle) Port() string {
	return h.port
}

// Device returns the device that opened the port
func (h *Handle) Device() *model.Device {
	return h.device
}

// RefCount returns the number of roles holding the handle
func (h *Handle) RefCount() int {
	h.registry.mu.Lock()
	defer h.registry.mu.Unlock()
	return h.refs
}

// Registry maps ports to connected driver handles. At most one live driver
// exists per port.
type Registry struct {
	factory DriverFactory
	worker  *Worker
	logger  *zap.Logger

	mu      sync.Mutex
	handles map[string]*Handle
}

// NewRegistry creates an empty registry that connects drivers through worker
func NewRegistry(factory DriverFactory, worker *Worker, logger *zap.Logger) *Registry {
	return &Registry{
		factory: factory,
		worker:  worker,
		logger:  logger.With(zap.String("component", "connection_registry")),
		handles: make(map[string]*Handle),
	}
}

// Acquire returns the handle occupying the device's port, connecting a new
// driver when the port is free
func (r *Registry) Acquire(ctx context.Context, role model.DeviceRole, device *model.Device) (*Handle, error) {
	port := device.NormalizedPort()

	for {
		r.mu.Lock()
		h, ok := r.handles[port]
		if !ok {
			break
		}
		if h.ready != nil {
			ready := h.ready
			r.mu.Unlock()
			// the reserving caller needs the worker to finish connecting
			if r.worker.onWorker(ctx) {
				return nil, NewHardwareError(KindConnection, role, disconnectedCause(role),
					fmt.Errorf("port %s is being connected by another role", port))
			}
			select {
			case <-ready:
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		if err := checkShared(h, role, device); err != nil {
			r.mu.Unlock()
			return nil, err
		}
		h.refs++
		refs := h.refs
		r.mu.Unlock()

		r.logger.Info("Reusing connected driver",
			zap.String("port", port),
			zap.String("role", role.String()),
			zap.Int("ref_count", refs),
		)
		return h, nil
	}

	// reserve the port so concurrent roles wait instead of opening it twice
	h := &Handle{
		registry: r,
		port:     port,
		device:   device,
		ready:    make(chan struct{}),
	}
	r.handles[port] = h
	r.mu.Unlock()

	drv, err := r.connect(ctx, role, device)

	r.mu.Lock()
	ready := h.ready
	h.ready = nil
	if err != nil {
		delete(r.handles, port)
	} else {
		h.driver = drv
		h.refs = 1
	}
	r.mu.Unlock()
	close(ready)

	if err != nil {
		return nil, err
	}

	r.logger.Info("Driver connected",
		zap.String("port", port),
		zap.String("role", role.String()),
		zap.String("driver_type", device.DriverType),
	)
	return h, nil
}

func checkShared(h *Handle, role model.DeviceRole, device *model.Device) error {
	if h.device.DriverType != device.DriverType {
		return NewHardwareError(KindConfiguration, role, driver.CauseDriverMismatch,
			fmt.Errorf("port %s is bound to driver %q, %s requires %q",
				h.port, h.device.DriverType, role, device.DriverType))
	}
	if device.UsesSerialTransport() && h.device.Serial != device.Serial {
		return NewHardwareError(KindConfiguration, role, driver.CausePortParametersMismatch,
			fmt.Errorf("port %s is open with %+v, %s requires %+v",
				h.port, h.device.Serial, role, device.Serial))
	}
	return nil
}

func (r *Registry) connect(ctx context.Context, role model.DeviceRole, device *model.Device) (driver.Driver, error) {
	drv, err := r.factory.Create(device.DriverType, device)
	if err != nil {
		return nil, NewHardwareError(KindConfiguration, role, driver.CauseDriverNotFound,
			fmt.Errorf("failed to create driver %q: %w", device.DriverType, err))
	}

	err = r.worker.Execute(ctx, "connect "+role.String(), func(ctx context.Context) error {
		return drv.Connect(ctx, device)
	}, true)
	if err == nil {
		return drv, nil
	}

	if IsTransportError(err) {
		return nil, NewHardwareError(KindConnection, role, disconnectedCause(role), err)
	}

	// not a link failure: close whatever the driver managed to open
	if derr := r.worker.Execute(ctx, "disconnect "+role.String(), drv.Disconnect, true); derr != nil {
		r.logger.Warn("Failed to disconnect half-connected driver",
			zap.String("port", device.NormalizedPort()),
			zap.Error(derr),
		)
	}
	return nil, err
}

// Release drops one reference. The last reference disconnects the driver
// and frees the port.
func (r *Registry) Release(ctx context.Context, h *Handle) error {
	if h == nil {
		return nil
	}

	r.mu.Lock()
	if h.refs <= 0 {
		r.mu.Unlock()
		return nil
	}
	h.refs--
	if h.refs > 0 {
		refs := h.refs
		r.mu.Unlock()
		r.logger.Debug("Driver reference released",
			zap.String("port", h.port),
			zap.Int("ref_count", refs),
		)
		return nil
	}
	if r.handles[h.port] == h {
		delete(r.handles, h.port)
	}
	r.mu.Unlock()

	err := r.worker.Execute(ctx, "disconnect "+h.port, h.driver.Disconnect, true)
	if err != nil {
		return fmt.Errorf("failed to disconnect driver on %s: %w", h.port, err)
	}
	r.logger.Info("Driver disconnected", zap.String("port", h.port))
	return nil
}

// SharesPort reports whether device occupies the port held by h
func (r *Registry) SharesPort(device *model.Device, h *Handle) bool {
	return device != nil && h != nil && device.NormalizedPort() == h.port
}

// Lookup returns the handle bound to a port
func (r *Registry) Lookup(port string) (*Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handles[port]
	if !ok || h.ready != nil {
		return nil, false
	}
	return h, true
}

// Ports lists the occupied ports in order
func (r *Registry) Ports() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ports := make([]string, 0, len(r.handles))
	for port, h := range r.handles {
		if h.ready == nil {
			ports = append(ports, port)
		}
	}
	sort.Strings(ports)
	return ports
}
