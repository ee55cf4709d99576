// internal/hardware/manager.go
package hardware

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pos-device-service/internal/model"
	"pos-device-service/internal/utils"
	"pos-device-service/pkg/driver"
)

// singleRoles are the roles served by at most one device. Kitchen printers
// are handled as a group.
var singleRoles = []model.DeviceRole{
	model.RolePrintCashReceipt,
	model.RolePrintCustomerOrder,
	model.RoleExternalDisplay,
	model.RoleReadCard,
	model.RoleMeasureWeight,
	model.RoleCollectSalesData,
	model.RoleScanBarcode,
}

// ManagerConfig holds the collaborators of a Manager
type ManagerConfig struct {
	Worker       WorkerConfig
	Devices      DeviceSource
	Drivers      DriverFactory
	Retry        RetryDecider
	Events       EventSink
	FinalizeLock *sync.Mutex
}

type roleSlot struct {
	mu     sync.Mutex
	role   model.DeviceRole
	device *model.Device
	handle *Handle
}

type kitchenEntry struct {
	device *model.Device
	handle *Handle
}

type kitchenSlot struct {
	mu       sync.Mutex
	printers map[uuid.UUID]*kitchenEntry
}

// KitchenPrinter is a connected kitchen printer with its configuration
type KitchenPrinter struct {
	Device  *model.Device
	Printer driver.KitchenPrinter
}

// RoleStatus is a snapshot of one role's connection
type RoleStatus struct {
	Role       string `json:"role"`
	Device     string `json:"device,omitempty"`
	DriverType string `json:"driver_type,omitempty"`
	Port       string `json:"port,omitempty"`
	Connected  bool   `json:"connected"`
	RefCount   int    `json:"ref_count,omitempty"`
}

// Manager owns the per-role driver slots, the connection registry and the
// command worker
type Manager struct {
	devices DeviceSource
	retry   RetryDecider
	events  EventSink
	logger  *zap.Logger

	worker   *Worker
	registry *Registry

	slots   map[model.DeviceRole]*roleSlot
	kitchen kitchenSlot
}

// NewManager creates a manager. Call Start before connecting devices.
func NewManager(cfg ManagerConfig, logger *zap.Logger) *Manager {
	if cfg.Events == nil {
		cfg.Events = NopEventSink
	}
	if cfg.Retry == nil {
		cfg.Retry = AbortDecider{}
	}
	if cfg.FinalizeLock == nil {
		cfg.FinalizeLock = &sync.Mutex{}
	}

	logger = logger.With(zap.String("component", "hardware_manager"))
	worker := NewWorker(cfg.Worker, cfg.FinalizeLock, cfg.Events, logger)

	m := &Manager{
		devices:  cfg.Devices,
		retry:    cfg.Retry,
		events:   cfg.Events,
		logger:   logger,
		worker:   worker,
		registry: NewRegistry(cfg.Drivers, worker, logger),
		slots:    make(map[model.DeviceRole]*roleSlot, len(singleRoles)),
		kitchen:  kitchenSlot{printers: make(map[uuid.UUID]*kitchenEntry)},
	}
	for _, role := range singleRoles {
		m.slots[role] = &roleSlot{role: role}
	}
	worker.SetStatusPoller(m)
	return m
}

// Start launches the command worker
func (m *Manager) Start() {
	m.worker.Start()
}

// Stop disconnects every role and stops the worker
func (m *Manager) Stop(ctx context.Context) error {
	err := m.DisconnectAll(ctx)
	m.worker.Stop()
	return err
}

// Worker returns the command worker
func (m *Manager) Worker() *Worker {
	return m.worker
}

// Registry returns the connection registry
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Execute runs cmd on the command worker
func (m *Manager) Execute(ctx context.Context, label string, cmd Command, silent bool) error {
	return m.worker.Execute(ctx, label, cmd, silent)
}

// ResolveStatusError resumes status polling after a reported failure
func (m *Manager) ResolveStatusError() {
	m.worker.ResolveStatusError()
}

func (m *Manager) slot(role model.DeviceRole) (*roleSlot, error) {
	s, ok := m.slots[role]
	if !ok {
		return nil, fmt.Errorf("role %s has no single device slot", role)
	}
	return s, nil
}

// Connect returns the handle of role, connecting its device when needed.
// A disabled or unconfigured role yields a nil handle and no error.
func (m *Manager) Connect(ctx context.Context, role model.DeviceRole) (*Handle, error) {
	s, err := m.slot(role)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return m.connectLocked(ctx, s)
}

// connectLocked connects the slot's device. The slot must be locked.
func (m *Manager) connectLocked(ctx context.Context, s *roleSlot) (*Handle, error) {
	role := s.role
	if s.handle != nil {
		return s.handle, nil
	}

	device, err := m.devices.DeviceForRole(ctx, role)
	if err != nil {
		return nil, fmt.Errorf("failed to load device for %s: %w", role, err)
	}
	if device == nil || !device.Enabled {
		return nil, nil
	}

	h, err := m.registry.Acquire(ctx, role, device)
	if err != nil {
		return nil, err
	}

	s.device, s.handle = device, h
	m.attachListeners(role, h)
	m.publishConnection(role, device, true)
	return h, nil
}

// Init connects role, asking the RetryDecider after each retriable failure
func (m *Manager) Init(ctx context.Context, role model.DeviceRole) (*Handle, error) {
	h, _, err := m.withRetry(ctx, role, func() (*Handle, error) {
		return m.Connect(ctx, role)
	})
	return h, err
}

func (m *Manager) withRetry(ctx context.Context, role model.DeviceRole, connect func() (*Handle, error)) (*Handle, RetryDecision, error) {
	for attempt := 1; ; attempt++ {
		h, err := connect()
		if err == nil {
			return h, RetryDecisionRetry, nil
		}

		herr, ok := AsHardwareError(err)
		if !ok || herr.Kind != KindConnection {
			return nil, RetryDecisionAbort, err
		}
		herr.Attempt = attempt
		m.events.Publish(ErrorEvent(herr))

		decision := m.retry.DecideRetry(ctx, herr)
		m.logger.Warn("Device connection failed",
			zap.String("role", role.String()),
			zap.Int("attempt", attempt),
			zap.String("decision", decision.String()),
			zap.Error(err),
		)
		if decision != RetryDecisionRetry {
			return nil, decision, err
		}
		if ctx.Err() != nil {
			return nil, RetryDecisionAbort, err
		}
	}
}

func initAs[T any](ctx context.Context, m *Manager, role model.DeviceRole) (T, error) {
	var zero T
	h, err := m.Init(ctx, role)
	if err != nil || h == nil {
		return zero, err
	}
	d, ok := h.Driver().(T)
	if !ok {
		return zero, NewHardwareError(KindConfiguration, role, driver.CauseDriverMismatch,
			fmt.Errorf("driver %q cannot serve as %s", h.Device().DriverType, role))
	}
	return d, nil
}

// InitCashReceiptPrinter connects the fiscal printer. Nil when not configured.
func (m *Manager) InitCashReceiptPrinter(ctx context.Context) (driver.CashReceiptPrinter, error) {
	return initAs[driver.CashReceiptPrinter](ctx, m, model.RolePrintCashReceipt)
}

// InitCustomerOrderPrinter connects the customer order printer
func (m *Manager) InitCustomerOrderPrinter(ctx context.Context) (driver.NonFiscalPrinter, error) {
	return initAs[driver.NonFiscalPrinter](ctx, m, model.RolePrintCustomerOrder)
}

// InitExternalDisplay connects the customer display
func (m *Manager) InitExternalDisplay(ctx context.Context) (driver.CustomerDisplay, error) {
	return initAs[driver.CustomerDisplay](ctx, m, model.RoleExternalDisplay)
}

// InitCardReader connects the card reader
func (m *Manager) InitCardReader(ctx context.Context) (driver.CardReader, error) {
	return initAs[driver.CardReader](ctx, m, model.RoleReadCard)
}

// InitElectronicScale connects the scale
func (m *Manager) InitElectronicScale(ctx context.Context) (driver.Scale, error) {
	return initAs[driver.Scale](ctx, m, model.RoleMeasureWeight)
}

// InitSalesDataController connects the sales data controller
func (m *Manager) InitSalesDataController(ctx context.Context) (driver.SalesDataController, error) {
	return initAs[driver.SalesDataController](ctx, m, model.RoleCollectSalesData)
}

// InitBarcodeScanner connects the barcode scanner
func (m *Manager) InitBarcodeScanner(ctx context.Context) (driver.BarcodeScanner, error) {
	return initAs[driver.BarcodeScanner](ctx, m, model.RoleScanBarcode)
}

// InitKitchenPrinters connects every enabled kitchen printer. A printer whose
// connection failure is answered with Fallback is skipped.
func (m *Manager) InitKitchenPrinters(ctx context.Context) ([]KitchenPrinter, error) {
	devices, err := m.devices.KitchenPrinters(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load kitchen printers: %w", err)
	}

	m.kitchen.mu.Lock()
	defer m.kitchen.mu.Unlock()
	return m.initKitchenLocked(ctx, devices)
}

// initKitchenLocked connects the given kitchen printers. The kitchen slot
// must be locked.
func (m *Manager) initKitchenLocked(ctx context.Context, devices []*model.Device) ([]KitchenPrinter, error) {
	role := model.RolePrintKitchenOrder
	seen := make(map[uuid.UUID]bool, len(devices))
	printers := make([]KitchenPrinter, 0, len(devices))

	for _, device := range devices {
		if !device.Enabled {
			continue
		}
		seen[device.ID] = true

		entry, ok := m.kitchen.printers[device.ID]
		if !ok {
			device := device
			h, decision, err := m.withRetry(ctx, role, func() (*Handle, error) {
				return m.registry.Acquire(ctx, role, device)
			})
			if err != nil {
				if decision == RetryDecisionFallback {
					e := newEvent(EventKitchenPrinterError, role)
					e.Device = device.Name
					e.Message = err.Error()
					m.events.Publish(e)
					m.logger.Warn("Kitchen printer skipped",
						zap.String("device", device.Name),
						zap.Error(err),
					)
					continue
				}
				return nil, err
			}
			entry = &kitchenEntry{device: device, handle: h}
			m.kitchen.printers[device.ID] = entry
			m.publishConnection(role, device, true)
		}

		p, ok := entry.handle.Driver().(driver.KitchenPrinter)
		if !ok {
			return nil, NewHardwareError(KindConfiguration, role, driver.CauseDriverMismatch,
				fmt.Errorf("driver %q cannot serve as %s", device.DriverType, role))
		}
		printers = append(printers, KitchenPrinter{Device: device, Printer: p})
	}

	for id, entry := range m.kitchen.printers {
		if !seen[id] {
			m.releaseKitchen(ctx, id, entry)
		}
	}
	return printers, nil
}

// Disconnect releases the role's handle
func (m *Manager) Disconnect(ctx context.Context, role model.DeviceRole) error {
	if role == model.RolePrintKitchenOrder {
		return m.DisconnectKitchenPrinters(ctx)
	}
	s, err := m.slot(role)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return m.releaseSlot(ctx, s)
}

// DisconnectKitchenPrinters releases every kitchen printer
func (m *Manager) DisconnectKitchenPrinters(ctx context.Context) error {
	m.kitchen.mu.Lock()
	defer m.kitchen.mu.Unlock()

	var errs []error
	for id, entry := range m.kitchen.printers {
		if err := m.releaseKitchen(ctx, id, entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DisconnectAll releases every role
func (m *Manager) DisconnectAll(ctx context.Context) error {
	var errs []error
	for _, role := range singleRoles {
		if err := m.Disconnect(ctx, role); err != nil {
			errs = append(errs, err)
		}
	}
	if err := m.DisconnectKitchenPrinters(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// DisconnectConflicting disconnects every role other than except whose
// handle occupies the device's port with an incompatible driver
func (m *Manager) DisconnectConflicting(ctx context.Context, device *model.Device, except model.DeviceRole) error {
	if device == nil {
		return nil
	}

	var errs []error
	for _, role := range singleRoles {
		if role == except {
			continue
		}
		s := m.slots[role]
		s.mu.Lock()
		if m.registry.SharesPort(device, s.handle) && checkShared(s.handle, except, device) != nil {
			m.logger.Info("Disconnecting conflicting role",
				zap.String("role", role.String()),
				zap.String("port", s.handle.Port()),
			)
			if err := m.releaseSlot(ctx, s); err != nil {
				errs = append(errs, err)
			}
		}
		s.mu.Unlock()
	}

	if except != model.RolePrintKitchenOrder {
		m.kitchen.mu.Lock()
		for id, entry := range m.kitchen.printers {
			if m.registry.SharesPort(device, entry.handle) && checkShared(entry.handle, except, device) != nil {
				if err := m.releaseKitchen(ctx, id, entry); err != nil {
					errs = append(errs, err)
				}
			}
		}
		m.kitchen.mu.Unlock()
	}
	return errors.Join(errs...)
}

// Reconnect drops the role, clears port conflicts with its configured device
// and connects again
func (m *Manager) Reconnect(ctx context.Context, role model.DeviceRole) error {
	if err := m.Disconnect(ctx, role); err != nil {
		m.logger.Warn("Disconnect before reconnect failed",
			zap.String("role", role.String()),
			zap.Error(err),
		)
	}

	if role == model.RolePrintKitchenOrder {
		devices, err := m.devices.KitchenPrinters(ctx)
		if err != nil {
			return fmt.Errorf("failed to load kitchen printers: %w", err)
		}
		for _, d := range devices {
			if err := m.DisconnectConflicting(ctx, d, role); err != nil {
				return err
			}
		}
		_, err = m.InitKitchenPrinters(ctx)
		return err
	}

	device, err := m.devices.DeviceForRole(ctx, role)
	if err != nil {
		return fmt.Errorf("failed to load device for %s: %w", role, err)
	}
	if err := m.DisconnectConflicting(ctx, device, role); err != nil {
		return err
	}
	_, err = m.Init(ctx, role)
	return err
}

// IsConnected reports whether the role currently holds a live handle
func (m *Manager) IsConnected(role model.DeviceRole) bool {
	if role == model.RolePrintKitchenOrder {
		m.kitchen.mu.Lock()
		defer m.kitchen.mu.Unlock()
		return len(m.kitchen.printers) > 0
	}
	s, err := m.slot(role)
	if err != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle != nil
}

// RoleEnabled reports whether an enabled device is configured for role
func (m *Manager) RoleEnabled(ctx context.Context, role model.DeviceRole) (bool, error) {
	if role == model.RolePrintKitchenOrder {
		devices, err := m.devices.KitchenPrinters(ctx)
		if err != nil {
			return false, fmt.Errorf("failed to load kitchen printers: %w", err)
		}
		for _, d := range devices {
			if d.Enabled {
				return true, nil
			}
		}
		return false, nil
	}

	device, err := m.devices.DeviceForRole(ctx, role)
	if err != nil {
		return false, fmt.Errorf("failed to load device for %s: %w", role, err)
	}
	return device != nil && device.Enabled, nil
}

// Status returns a snapshot of every role's connection
func (m *Manager) Status() []RoleStatus {
	statuses := make([]RoleStatus, 0, len(singleRoles)+1)
	for _, role := range singleRoles {
		s := m.slots[role]
		s.mu.Lock()
		st := RoleStatus{Role: role.String()}
		if s.handle != nil {
			st = handleStatus(role, s.device, s.handle)
		}
		s.mu.Unlock()
		statuses = append(statuses, st)
	}

	m.kitchen.mu.Lock()
	for _, entry := range m.kitchen.printers {
		statuses = append(statuses, handleStatus(model.RolePrintKitchenOrder, entry.device, entry.handle))
	}
	m.kitchen.mu.Unlock()
	return statuses
}

func handleStatus(role model.DeviceRole, device *model.Device, h *Handle) RoleStatus {
	return RoleStatus{
		Role:       role.String(),
		Device:     device.Name,
		DriverType: device.DriverType,
		Port:       h.Port(),
		Connected:  true,
		RefCount:   h.RefCount(),
	}
}

// PollStatus pings every connected device whose driver supports it and
// reconnects the ones that dropped. It runs on the worker goroutine; busy
// slots are skipped.
func (m *Manager) PollStatus(ctx context.Context) error {
	var errs []error

	for _, role := range singleRoles {
		s := m.slots[role]
		if !s.mu.TryLock() {
			continue
		}
		// reconnect while still holding the slot: a caller blocked on the
		// slot lock may be waiting for this goroutine
		if m.checkSlot(ctx, s) {
			_, _, err := m.withRetry(ctx, role, func() (*Handle, error) {
				return m.connectLocked(ctx, s)
			})
			if err != nil {
				errs = append(errs, err)
			}
		}
		s.mu.Unlock()
	}

	if m.kitchen.mu.TryLock() {
		if err := m.pollKitchenLocked(ctx); err != nil {
			errs = append(errs, err)
		}
		m.kitchen.mu.Unlock()
	}

	return errors.Join(errs...)
}

func (m *Manager) pollKitchenLocked(ctx context.Context) error {
	lost := false
	for id, entry := range m.kitchen.printers {
		if err := m.ping(ctx, entry.handle); err != nil {
			m.reportLost(model.RolePrintKitchenOrder, entry.device, err)
			if rerr := m.releaseKitchen(ctx, id, entry); rerr != nil {
				m.logger.Warn("Failed to release lost kitchen printer", zap.Error(rerr))
			}
			lost = true
		}
	}
	if !lost {
		return nil
	}

	devices, err := m.devices.KitchenPrinters(ctx)
	if err != nil {
		return fmt.Errorf("failed to load kitchen printers: %w", err)
	}
	_, err = m.initKitchenLocked(ctx, devices)
	return err
}

// checkSlot pings the slot's driver and releases it when the ping fails.
// The slot must be locked.
func (m *Manager) checkSlot(ctx context.Context, s *roleSlot) bool {
	if s.handle == nil {
		return false
	}
	err := m.ping(ctx, s.handle)
	if err == nil {
		return false
	}
	m.reportLost(s.role, s.device, err)
	if rerr := m.releaseSlot(ctx, s); rerr != nil {
		m.logger.Warn("Failed to release lost device", zap.String("role", s.role.String()), zap.Error(rerr))
	}
	return true
}

func (m *Manager) reportLost(role model.DeviceRole, device *model.Device, err error) {
	m.logger.Warn("Device status check failed",
		zap.String("role", role.String()),
		zap.String("device", device.Name),
		zap.Error(err),
	)
	m.events.Publish(ErrorEvent(NewHardwareError(KindConnection, role, disconnectedCause(role), err)))
}

func (m *Manager) ping(ctx context.Context, h *Handle) error {
	if !h.Driver().Info().Supports(driver.CmdPing) {
		return nil
	}
	p, ok := h.Driver().(driver.Pinger)
	if !ok {
		return nil
	}
	return m.worker.Execute(ctx, "ping "+h.Port(), p.Ping, true)
}

// releaseSlot drops the slot's handle. The slot must be locked.
func (m *Manager) releaseSlot(ctx context.Context, s *roleSlot) error {
	h, device := s.handle, s.device
	if h == nil {
		return nil
	}
	s.handle, s.device = nil, nil

	err := m.registry.Release(ctx, h)
	m.publishConnection(s.role, device, false)
	return err
}

// releaseKitchen drops a kitchen printer. The kitchen slot must be locked.
func (m *Manager) releaseKitchen(ctx context.Context, id uuid.UUID, entry *kitchenEntry) error {
	delete(m.kitchen.printers, id)
	err := m.registry.Release(ctx, entry.handle)
	m.publishConnection(model.RolePrintKitchenOrder, entry.device, false)
	return err
}

func (m *Manager) attachListeners(role model.DeviceRole, h *Handle) {
	switch role {
	case model.RoleReadCard:
		if r, ok := h.Driver().(driver.CardReader); ok {
			r.SetCardListener(func(cardID string) {
				e := newEvent(EventCardRecognized, role)
				e.Value = cardID
				m.events.Publish(e)
			})
		}
	case model.RoleScanBarcode:
		if s, ok := h.Driver().(driver.BarcodeScanner); ok {
			s.SetBarcodeListener(func(code string) {
				e := newEvent(EventBarcodeScanned, role)
				e.Value = code
				m.events.Publish(e)
			})
		}
	}
}

func (m *Manager) publishConnection(role model.DeviceRole, device *model.Device, connected bool) {
	e := newEvent(EventConnectionChanged, role)
	e.Connected = connected
	if device == nil {
		m.events.Publish(e)
		return
	}
	e.Device = device.Name
	m.events.Publish(e)

	action := "disconnected"
	if connected {
		action = "connected"
	}
	utils.NewDeviceLogger(m.logger, device.ID.String(), role.String(), device.DriverType).
		LogConnection(action, true, nil)
}
