// internal/finalize/interfaces.go
package finalize

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"pos-device-service/internal/hardware"
	"pos-device-service/internal/model"
	"pos-device-service/pkg/driver"
)

// Devices is the part of the hardware manager the orchestrator uses
type Devices interface {
	RoleEnabled(ctx context.Context, role model.DeviceRole) (bool, error)
	InitCashReceiptPrinter(ctx context.Context) (driver.CashReceiptPrinter, error)
	InitCustomerOrderPrinter(ctx context.Context) (driver.NonFiscalPrinter, error)
	InitSalesDataController(ctx context.Context) (driver.SalesDataController, error)
	InitExternalDisplay(ctx context.Context) (driver.CustomerDisplay, error)
	InitKitchenPrinters(ctx context.Context) ([]hardware.KitchenPrinter, error)
	Execute(ctx context.Context, label string, cmd hardware.Command, silent bool) error
}

// Store opens data transactions
type Store interface {
	BeginTransaction(ctx context.Context) (Transaction, error)
}

// Transaction is the data boundary around the commit steps. Nothing is
// visible to other readers before Complete.
type Transaction interface {
	// Snapshot records the state of an entity before it is changed
	Snapshot(ctx context.Context, entityType string, entityID string, entity interface{}) error
	CommitOrder(ctx context.Context, order *model.Order) error
	// CommitSale persists the sale with its lines and payments and assigns
	// its number
	CommitSale(ctx context.Context, sale *model.Sale) error
	CommitPayment(ctx context.Context, payment *model.Payment) error
	CommitDocument(ctx context.Context, document *model.Document) error
	Complete(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TextFormatter supplies every human readable string printed by the
// orchestrator
type TextFormatter interface {
	Text(key string) string
	Money(amount decimal.Decimal) string
	Quantity(quantity decimal.Decimal) string
	DateTime(t time.Time) string
}

// Text keys requested from the TextFormatter
const (
	TextKitchenOrder    = "kitchen_order"
	TextCustomerOrder   = "customer_order"
	TextReceiptAnnulled = "receipt_annulled"
	TextInvoice         = "invoice"
	TextCopy            = "copy"
	TextSale            = "sale"
	TextLocation        = "location"
	TextOperator        = "operator"
	TextPartner         = "partner"
	TextTotal           = "total"
	TextVAT             = "vat"
	TextNote            = "note"
)

// Settings is the configuration snapshot used by one orchestrator
type Settings struct {
	AllowSaleWithoutReceipt bool
	PrintSaleBarcode        bool
	ReceiptSignature        string
	HeaderLines             []string
	VATGroups               []model.VATGroup
	InvoiceCopies           int
	ReceiptWidth            int
	ShowTotalOnDisplay      bool
}
