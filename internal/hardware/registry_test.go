package hardware

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pos-device-service/internal/model"
	"pos-device-service/pkg/driver"
)

func TestSharedPortReturnsSameHandle(t *testing.T) {
	ctx := context.Background()
	factory := &fakeFactory{}
	orderPrinter := testDevice("Order printer", model.RolePrintCustomerOrder, "/dev/ttyS0")
	display := testDevice("Display", model.RoleExternalDisplay, " /dev/ttyS0 ")
	m, _ := newTestManager(t, []*model.Device{orderPrinter, display}, factory, nil)

	first, err := m.Connect(ctx, model.RolePrintCustomerOrder)
	require.NoError(t, err)
	second, err := m.Connect(ctx, model.RoleExternalDisplay)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 2, first.RefCount())
	require.Len(t, factory.drivers(), 1)

	drv := factory.drivers()[0]
	connects, _, _ := drv.counts()
	assert.Equal(t, 1, connects)
}

func TestReleaseTearsDownOnLastReference(t *testing.T) {
	ctx := context.Background()
	factory := &fakeFactory{}
	m, _ := newTestManager(t, []*model.Device{
		testDevice("Order printer", model.RolePrintCustomerOrder, "COM1"),
		testDevice("Display", model.RoleExternalDisplay, "COM1"),
	}, factory, nil)

	h, err := m.Connect(ctx, model.RolePrintCustomerOrder)
	require.NoError(t, err)
	_, err = m.Connect(ctx, model.RoleExternalDisplay)
	require.NoError(t, err)
	drv := factory.drivers()[0]

	require.NoError(t, m.Disconnect(ctx, model.RolePrintCustomerOrder))
	_, disconnects, _ := drv.counts()
	assert.Equal(t, 0, disconnects)
	assert.Equal(t, 1, h.RefCount())
	assert.True(t, m.IsConnected(model.RoleExternalDisplay))

	require.NoError(t, m.Disconnect(ctx, model.RoleExternalDisplay))
	_, disconnects, _ = drv.counts()
	assert.Equal(t, 1, disconnects)
	assert.Empty(t, m.Registry().Ports())

	// releasing again never tears down twice
	require.NoError(t, m.Registry().Release(ctx, h))
	_, disconnects, _ = drv.counts()
	assert.Equal(t, 1, disconnects)
}

func TestCaseDifferentUnixPathsAreSeparatePorts(t *testing.T) {
	ctx := context.Background()
	factory := &fakeFactory{}
	m, _ := newTestManager(t, []*model.Device{
		testDevice("Order printer", model.RolePrintCustomerOrder, "/dev/ttyUSB0"),
		testDevice("Display", model.RoleExternalDisplay, "/dev/ttyusb0"),
	}, factory, nil)

	first, err := m.Connect(ctx, model.RolePrintCustomerOrder)
	require.NoError(t, err)
	second, err := m.Connect(ctx, model.RoleExternalDisplay)
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Len(t, factory.drivers(), 2)
	assert.ElementsMatch(t, []string{"/dev/ttyUSB0", "/dev/ttyusb0"}, m.Registry().Ports())
}

func TestAcquireOnWorkerDoesNotWaitForReservedPort(t *testing.T) {
	w := NewWorker(WorkerConfig{PollInterval: time.Hour}, nil, nil, zap.NewNop())
	r := NewRegistry(&fakeFactory{}, w, zap.NewNop())
	device := testDevice("Display", model.RoleExternalDisplay, "COM4")

	// another role is still connecting the port
	ready := make(chan struct{})
	r.mu.Lock()
	r.handles["COM4"] = &Handle{registry: r, port: "COM4", device: device, ready: ready}
	r.mu.Unlock()
	defer close(ready)

	ctx, cancel := context.WithTimeout(w.markContext(context.Background()), time.Second)
	defer cancel()
	start := time.Now()
	h, err := r.Acquire(ctx, model.RoleExternalDisplay, device)

	assert.Nil(t, h)
	assert.Less(t, time.Since(start), time.Second)
	var hwErr *HardwareError
	require.ErrorAs(t, err, &hwErr)
	assert.Equal(t, KindConnection, hwErr.Kind)
	assert.True(t, hwErr.Retriable())
}

func TestSharedPortDriverMismatchIsConfigurationError(t *testing.T) {
	ctx := context.Background()
	display := testDevice("Display", model.RoleExternalDisplay, "COM2")
	display.DriverType = "other"
	m, _ := newTestManager(t, []*model.Device{
		testDevice("Order printer", model.RolePrintCustomerOrder, "COM2"),
		display,
	}, &fakeFactory{}, nil)

	_, err := m.Connect(ctx, model.RolePrintCustomerOrder)
	require.NoError(t, err)

	_, err = m.Init(ctx, model.RoleExternalDisplay)
	require.Error(t, err)
	herr, ok := AsHardwareError(err)
	require.True(t, ok)
	assert.Equal(t, KindConfiguration, herr.Kind)
	assert.Equal(t, driver.CauseDriverMismatch, herr.Cause())
	assert.False(t, herr.Retriable())
}

func TestSharedSerialPortParameterMismatch(t *testing.T) {
	ctx := context.Background()
	display := testDevice("Display", model.RoleExternalDisplay, "COM3")
	display.Serial.BaudRate = 19200
	m, _ := newTestManager(t, []*model.Device{
		testDevice("Order printer", model.RolePrintCustomerOrder, "COM3"),
		display,
	}, &fakeFactory{}, nil)

	_, err := m.Connect(ctx, model.RolePrintCustomerOrder)
	require.NoError(t, err)

	_, err = m.Connect(ctx, model.RoleExternalDisplay)
	herr, ok := AsHardwareError(err)
	require.True(t, ok)
	assert.Equal(t, driver.CausePortParametersMismatch, herr.Cause())
}

func TestNetworkPortIgnoresSerialParameters(t *testing.T) {
	ctx := context.Background()
	display := testDevice("Display", model.RoleExternalDisplay, "tcp://10.0.0.5:9100")
	display.Serial = model.SerialConfig{}
	m, _ := newTestManager(t, []*model.Device{
		testDevice("Order printer", model.RolePrintCustomerOrder, "tcp://10.0.0.5:9100"),
		display,
	}, &fakeFactory{}, nil)

	_, err := m.Connect(ctx, model.RolePrintCustomerOrder)
	require.NoError(t, err)
	_, err = m.Connect(ctx, model.RoleExternalDisplay)
	assert.NoError(t, err)
}

func TestTransportFailureIsRetriedThroughDecider(t *testing.T) {
	ctx := context.Background()
	factory := &fakeFactory{prepare: func(_ int, d *fakeDriver) {
		d.connectErr = &driver.TransportError{Port: "COM4", Err: io.EOF}
	}}
	var decisions atomic.Int32
	decider := RetryDeciderFunc(func(_ context.Context, herr *HardwareError) RetryDecision {
		decisions.Add(1)
		if herr.Attempt < 3 {
			return RetryDecisionRetry
		}
		return RetryDecisionAbort
	})
	m, events := newTestManager(t, []*model.Device{
		testDevice("Fiscal", model.RolePrintCashReceipt, "COM4"),
	}, factory, decider)

	_, err := m.Init(ctx, model.RolePrintCashReceipt)
	require.Error(t, err)

	herr, ok := AsHardwareError(err)
	require.True(t, ok)
	assert.Equal(t, KindConnection, herr.Kind)
	assert.Equal(t, driver.CauseCashReceiptPrinterDisconnected, herr.Cause())
	assert.Equal(t, int32(3), decisions.Load())
	assert.Len(t, factory.drivers(), 3)
	assert.Len(t, events.ofType(EventHardwareError), 3)
	assert.Empty(t, m.Registry().Ports())

	// transport failures leave nothing open to close
	_, disconnects, _ := factory.drivers()[0].counts()
	assert.Equal(t, 0, disconnects)
}

func TestNonTransportFailureDisconnectsHalfConnectedDriver(t *testing.T) {
	ctx := context.Background()
	factory := &fakeFactory{prepare: func(_ int, d *fakeDriver) {
		d.connectErr = errors.New("unexpected firmware")
	}}
	m, events := newTestManager(t, []*model.Device{
		testDevice("Fiscal", model.RolePrintCashReceipt, "COM5"),
	}, factory, RetryDeciderFunc(func(context.Context, *HardwareError) RetryDecision {
		return RetryDecisionRetry
	}))

	_, err := m.Connect(ctx, model.RolePrintCashReceipt)
	require.Error(t, err)
	assert.False(t, IsKind(err, KindConnection))

	require.Len(t, factory.drivers(), 1)
	_, disconnects, _ := factory.drivers()[0].counts()
	assert.Equal(t, 1, disconnects)
	assert.Empty(t, events.ofType(EventHardwareError))
	assert.False(t, m.IsConnected(model.RolePrintCashReceipt))
}

func TestDisabledRoleIsNotRequired(t *testing.T) {
	ctx := context.Background()
	device := testDevice("Scale", model.RoleMeasureWeight, "COM6")
	device.Enabled = false
	factory := &fakeFactory{}
	m, _ := newTestManager(t, []*model.Device{device}, factory, nil)

	h, err := m.Connect(ctx, model.RoleMeasureWeight)
	assert.NoError(t, err)
	assert.Nil(t, h)

	h, err = m.Connect(ctx, model.RoleReadCard)
	assert.NoError(t, err)
	assert.Nil(t, h)
	assert.Empty(t, factory.drivers())

	enabled, err := m.RoleEnabled(ctx, model.RoleMeasureWeight)
	require.NoError(t, err)
	assert.False(t, enabled)
}

func TestSharesPort(t *testing.T) {
	ctx := context.Background()
	printer := testDevice("Order printer", model.RolePrintCustomerOrder, "COM7")
	m, _ := newTestManager(t, []*model.Device{printer}, &fakeFactory{}, nil)

	h, err := m.Connect(ctx, model.RolePrintCustomerOrder)
	require.NoError(t, err)

	assert.True(t, m.Registry().SharesPort(testDevice("Other", model.RoleExternalDisplay, "com7"), h))
	assert.False(t, m.Registry().SharesPort(testDevice("Other", model.RoleExternalDisplay, "COM8"), h))
	assert.False(t, m.Registry().SharesPort(nil, h))
}
