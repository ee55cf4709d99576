package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	internalDriver "pos-device-service/internal/driver"
	"pos-device-service/internal/driver/virtual"
	"pos-device-service/internal/hardware"
	"pos-device-service/internal/model"
	"pos-device-service/internal/protocol"
)

type eventLog struct {
	mu     sync.Mutex
	events []hardware.Event
}

func (l *eventLog) Publish(e hardware.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) ofType(t hardware.EventType) []hardware.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []hardware.Event
	for _, e := range l.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func virtualDevice(name string, roles model.DeviceRole, driverType string) *model.Device {
	return &model.Device{
		ID:         uuid.New(),
		Name:       name,
		Roles:      roles,
		DriverType: driverType,
		Port:       "virtual://" + name,
		Enabled:    true,
	}
}

func newTestDeviceService(t *testing.T, devices ...*model.Device) (*DeviceService, *eventLog) {
	t.Helper()
	logger := zap.NewNop()

	registry := internalDriver.NewRegistry(&internalDriver.Environment{
		Transports: protocol.NewFactory(protocol.DefaultTimeouts(), logger),
		Logger:     logger,
	}, logger)
	internalDriver.RegisterDefaultDrivers(registry, logger)

	events := &eventLog{}
	source := hardware.NewStaticDeviceSource(devices)
	manager := hardware.NewManager(hardware.ManagerConfig{
		Worker:  hardware.WorkerConfig{PollInterval: time.Hour},
		Devices: source,
		Drivers: registry,
		Events:  events,
	}, logger)
	manager.Start()
	t.Cleanup(func() {
		require.NoError(t, manager.Stop(context.Background()))
	})

	return NewDeviceService(manager, source, nil, registry, logger), events
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole(" Card_Reader ")
	require.NoError(t, err)
	assert.Equal(t, model.RoleReadCard, role)

	_, err = ParseRole("coffee_machine")
	assert.ErrorIs(t, err, ErrUnknownRole)
}

func TestDeviceService_ConnectAndStatus(t *testing.T) {
	ds, events := newTestDeviceService(t,
		virtualDevice("till", model.RolePrintCashReceipt, virtual.TypeFiscalPrinter),
		virtualDevice("pole", model.RoleExternalDisplay, virtual.TypeDisplay),
	)
	ctx := context.Background()

	require.NoError(t, ds.Connect(ctx, "cash_receipt_printer"))

	status := ds.Status()
	assert.True(t, status.Running)
	assert.False(t, status.Degraded)
	assert.Equal(t, []string{"VIRTUAL://TILL"}, status.Ports)

	var connected []string
	for _, r := range status.Roles {
		if r.Connected {
			connected = append(connected, r.Role)
		}
	}
	assert.Equal(t, []string{"cash_receipt_printer"}, connected)
	assert.Len(t, events.ofType(hardware.EventConnectionChanged), 1)

	require.NoError(t, ds.Disconnect(ctx, "cash_receipt_printer"))
	assert.Empty(t, ds.Status().Ports)
}

func TestDeviceService_ConnectAll(t *testing.T) {
	disabled := virtualDevice("scale", model.RoleMeasureWeight, virtual.TypeScale)
	disabled.Enabled = false
	ds, _ := newTestDeviceService(t,
		virtualDevice("till", model.RolePrintCashReceipt, virtual.TypeFiscalPrinter),
		virtualDevice("kitchen", model.RolePrintKitchenOrder, virtual.TypePrinter),
		disabled,
	)

	assert.Equal(t, 2, ds.ConnectAll(context.Background()))
}

func TestDeviceService_InjectCard(t *testing.T) {
	ds, events := newTestDeviceService(t,
		virtualDevice("reader", model.RoleReadCard, virtual.TypeCardReader),
	)
	ctx := context.Background()

	require.NoError(t, ds.Inject(ctx, "card_reader", " 4000-1234 "))

	cards := events.ofType(hardware.EventCardRecognized)
	require.Len(t, cards, 1)
	assert.Equal(t, "4000-1234", cards[0].Value)
	assert.Equal(t, "card_reader", cards[0].Role)
}

func TestDeviceService_InjectErrors(t *testing.T) {
	ds, _ := newTestDeviceService(t,
		virtualDevice("till", model.RolePrintCashReceipt, virtual.TypeFiscalPrinter),
	)
	ctx := context.Background()

	assert.ErrorIs(t, ds.Inject(ctx, "cash_receipt_printer", "x"), ErrNotInjectable)
	assert.ErrorIs(t, ds.Inject(ctx, "barcode_scanner", "x"), ErrRoleNotConnected)
	assert.ErrorIs(t, ds.Inject(ctx, "kitchen_printer", "x"), ErrNotInjectable)
	assert.ErrorIs(t, ds.Inject(ctx, "toaster", "x"), ErrUnknownRole)
}

func TestDeviceService_ReadOnlyDevices(t *testing.T) {
	till := virtualDevice("till", model.RolePrintCashReceipt, virtual.TypeFiscalPrinter)
	ds, _ := newTestDeviceService(t, till)
	ctx := context.Background()

	devices, err := ds.ListDevices(ctx)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "till", devices[0].Name)

	_, err = ds.SaveDevice(ctx, &SaveDeviceRequest{Name: "x"})
	assert.ErrorIs(t, err, ErrReadOnlyDevices)
	assert.ErrorIs(t, ds.DeleteDevice(ctx, till.ID), ErrReadOnlyDevices)
}

func TestDeviceService_BuildDevice(t *testing.T) {
	ds, _ := newTestDeviceService(t)

	device, err := ds.buildDevice(&SaveDeviceRequest{
		Name:       " kitchen ",
		Roles:      []string{"kitchen_printer", "customer_order_printer"},
		DriverType: "ESCPOS",
		Port:       "tcp://10.0.0.9:9100",
		ItemGroups: []string{"grill"},
	})
	require.NoError(t, err)
	assert.Equal(t, "kitchen", device.Name)
	assert.Equal(t, "escpos", device.DriverType)
	assert.True(t, device.Enabled)
	assert.True(t, device.Roles.Has(model.RolePrintKitchenOrder|model.RolePrintCustomerOrder))
	assert.NotEqual(t, uuid.Nil, device.ID)

	_, err = ds.buildDevice(&SaveDeviceRequest{Name: "a", Roles: []string{"kitchen_printer"}, DriverType: "nope", Port: "COM1"})
	assert.ErrorIs(t, err, internalDriver.ErrDriverNotFound)

	_, err = ds.buildDevice(&SaveDeviceRequest{Name: "a", DriverType: "escpos", Port: "COM1"})
	assert.Error(t, err)
}

func TestDeviceService_Drivers(t *testing.T) {
	ds, _ := newTestDeviceService(t)

	drivers := ds.Drivers()
	require.NotEmpty(t, drivers)
	assert.Equal(t, "escpos", drivers[0].Type)
}
