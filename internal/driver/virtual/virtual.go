// internal/driver/virtual/virtual.go
package virtual

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"pos-device-service/internal/model"
	"pos-device-service/internal/utils"
	"pos-device-service/pkg/driver"
)

// Driver type ids of the simulated device family
const (
	TypeFiscalPrinter  = "virtual-fiscal"
	TypePrinter        = "virtual-printer"
	TypeDisplay        = "virtual-display"
	TypeCardReader     = "virtual-card-reader"
	TypeScale          = "virtual-scale"
	TypeSalesData      = "virtual-sdc"
	TypeBarcodeScanner = "virtual-barcode-scanner"
)

const journalSize = 50

// ErrNotConnected is returned by commands issued before Connect
var ErrNotConnected = errors.New("virtual device not connected")

// Injector is implemented by simulated input devices. The value is a card
// id, a barcode or a weight depending on the device.
type Injector interface {
	Inject(value string) error
}

// base holds the lifecycle shared by every virtual driver
type base struct {
	info      *driver.DriverInfo
	logger    *zap.Logger
	device    *model.Device
	mu        sync.Mutex
	connected bool
}

func (b *base) Info() *driver.DriverInfo {
	return b.info
}

func (b *base) Connect(_ context.Context, device *model.Device) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.device = device
	b.connected = true
	utils.NewDeviceLogger(b.logger, device.ID.String(), device.Roles.String(), b.info.Type).
		LogConnection("open", true, nil)
	return nil
}

func (b *base) Disconnect(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.connected = false
	return nil
}

func (b *base) Ping(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.connected {
		return ErrNotConnected
	}
	return nil
}

// Connected reports whether Connect was called without a later Disconnect
func (b *base) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

// check must be called with mu held
func (b *base) check() error {
	if !b.connected {
		return ErrNotConnected
	}
	return nil
}

func (b *base) deviceName() string {
	if b.device == nil {
		return ""
	}
	return b.device.Name
}

// journal keeps the most recent printed receipts
type journal struct {
	receipts []driver.Receipt
}

func (j *journal) add(r driver.Receipt) {
	j.receipts = append(j.receipts, r)
	if len(j.receipts) > journalSize {
		j.receipts = j.receipts[len(j.receipts)-journalSize:]
	}
}

func (j *journal) snapshot() []driver.Receipt {
	return append([]driver.Receipt(nil), j.receipts...)
}

func commands(extra ...driver.Command) []driver.Command {
	return append([]driver.Command{driver.CmdConnect, driver.CmdDisconnect, driver.CmdPing}, extra...)
}
