package hardware

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pos-device-service/internal/model"
	"pos-device-service/pkg/driver"
)

type fakeDriver struct {
	mu sync.Mutex

	info        *driver.DriverInfo
	connectErr  error
	pingErr     error
	connects    int
	disconnects int
	pings       int
	printed     []*driver.Receipt

	cardListener func(string)
}

func newFakeDriver(driverType string) *fakeDriver {
	return &fakeDriver{
		info: &driver.DriverInfo{
			Type:     driverType,
			Name:     "Fake " + driverType,
			Commands: []driver.Command{driver.CmdConnect, driver.CmdPing, driver.CmdPrintNonFiscal, driver.CmdPrintKitchen},
		},
	}
}

func (d *fakeDriver) Info() *driver.DriverInfo { return d.info }

func (d *fakeDriver) Connect(context.Context, *model.Device) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connects++
	return d.connectErr
}

func (d *fakeDriver) Disconnect(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.disconnects++
	return nil
}

func (d *fakeDriver) Ping(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pings++
	return d.pingErr
}

func (d *fakeDriver) PrintReceipt(_ context.Context, r *driver.Receipt) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.printed = append(d.printed, r)
	return nil
}

func (d *fakeDriver) PrintKitchenReceipt(ctx context.Context, r *driver.Receipt) error {
	return d.PrintReceipt(ctx, r)
}

func (d *fakeDriver) DisplayLines(context.Context, string, string) error { return nil }

func (d *fakeDriver) ClearDisplay(context.Context) error { return nil }

func (d *fakeDriver) SetCardListener(listener func(string)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cardListener = listener
}

func (d *fakeDriver) setPingErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pingErr = err
}

func (d *fakeDriver) counts() (connects, disconnects, pings int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connects, d.disconnects, d.pings
}

type fakeFactory struct {
	mu      sync.Mutex
	created []*fakeDriver

	// prepare configures each new driver before it is returned
	prepare func(n int, d *fakeDriver)
}

func (f *fakeFactory) Create(driverType string, _ *model.Device) (driver.Driver, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	d := newFakeDriver(driverType)
	if f.prepare != nil {
		f.prepare(len(f.created), d)
	}
	f.created = append(f.created, d)
	return d, nil
}

func (f *fakeFactory) drivers() []*fakeDriver {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakeDriver(nil), f.created...)
}

type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) Publish(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) ofType(t EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func testDevice(name string, roles model.DeviceRole, port string) *model.Device {
	return &model.Device{
		ID:         uuid.New(),
		Name:       name,
		Roles:      roles,
		DriverType: "fake",
		Port:       port,
		Serial:     model.SerialConfig{BaudRate: 9600, DataBits: 8, StopBits: 1, Parity: "none"},
		Enabled:    true,
	}
}

func newTestManager(t *testing.T, devices []*model.Device, factory *fakeFactory, retry RetryDecider) (*Manager, *eventRecorder) {
	t.Helper()

	events := &eventRecorder{}
	m := NewManager(ManagerConfig{
		Worker:  WorkerConfig{PollInterval: time.Hour},
		Devices: NewStaticDeviceSource(devices),
		Drivers: factory,
		Retry:   retry,
		Events:  events,
	}, zap.NewNop())
	m.Start()
	t.Cleanup(func() {
		require.NoError(t, m.Stop(context.Background()))
	})
	return m, events
}
