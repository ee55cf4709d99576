// pkg/driver/interfaces.go
package driver

import (
	"context"

	"github.com/shopspring/decimal"

	"pos-device-service/internal/model"
)

// Driver is the lifecycle every hardware driver implements. Drivers are not
// safe for concurrent use; the hardware worker serializes every call.
type Driver interface {
	Info() *DriverInfo
	Connect(ctx context.Context, device *model.Device) error
	Disconnect(ctx context.Context) error
}

// Pinger is implemented by drivers that can cheaply check the link
type Pinger interface {
	Ping(ctx context.Context) error
}

// StatusReporter is implemented by drivers that report paper/cover/memory state
type StatusReporter interface {
	Status(ctx context.Context) (*ErrorState, error)
}

// TaxRateReader reads the tax table programmed into a fiscal device
type TaxRateReader interface {
	TaxRates(ctx context.Context) ([]TaxRate, error)
}

// CashDrawer kicks the drawer attached to a printer
type CashDrawer interface {
	OpenCashDrawer(ctx context.Context) error
}

// CashReceiptPrinter is a fiscal printer
type CashReceiptPrinter interface {
	Driver
	TaxRateReader

	OpenFiscalReceipt(ctx context.Context, header *FiscalHeader) error
	AddItem(ctx context.Context, item *FiscalItem) error
	AddPayment(ctx context.Context, payment *FiscalPayment) error
	PrintFiscalText(ctx context.Context, text string) error
	PrintBarcode(ctx context.Context, code string) error
	CloseFiscalReceipt(ctx context.Context) error

	// PrintNonFiscal prints a slip outside the fiscal memory (invoice copies)
	PrintNonFiscal(ctx context.Context, receipt *Receipt) error
}

// NonFiscalPrinter prints customer orders and other slips
type NonFiscalPrinter interface {
	Driver
	PrintReceipt(ctx context.Context, receipt *Receipt) error
}

// KitchenPrinter prints kitchen tickets
type KitchenPrinter interface {
	Driver
	PrintKitchenReceipt(ctx context.Context, receipt *Receipt) error
}

// CustomerDisplay drives a pole display
type CustomerDisplay interface {
	Driver
	DisplayLines(ctx context.Context, upper, lower string) error
	ClearDisplay(ctx context.Context) error
}

// CardReader reports recognized cards through a listener
type CardReader interface {
	Driver
	SetCardListener(listener func(cardID string))
}

// Scale reads a weight
type Scale interface {
	Driver
	ReadWeight(ctx context.Context) (decimal.Decimal, error)
}

// SalesDataController stores sale records for the tax authority
type SalesDataController interface {
	Driver
	TaxRateReader
	RecordSale(ctx context.Context, record *SaleRecord) error
}

// BarcodeScanner reports scanned codes through a listener
type BarcodeScanner interface {
	Driver
	SetBarcodeListener(listener func(code string))
}
