// internal/driver/virtual/fiscal.go
package virtual

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"pos-device-service/internal/model"
	"pos-device-service/pkg/driver"
)

// FiscalPrinterInfo describes the simulated fiscal printer
var FiscalPrinterInfo = driver.DriverInfo{
	Type:         TypeFiscalPrinter,
	Name:         "Virtual fiscal printer",
	Manufacturer: "Simulated",
	Commands: commands(
		driver.CmdStatus,
		driver.CmdReadTaxRates,
		driver.CmdOpenFiscal,
		driver.CmdAddItem,
		driver.CmdAddPayment,
		driver.CmdPrintFiscalText,
		driver.CmdPrintBarcode,
		driver.CmdCloseFiscal,
		driver.CmdPrintNonFiscal,
		driver.CmdOpenDrawer,
	),
}

var (
	ErrReceiptOpen       = errors.New("fiscal receipt already open")
	ErrNoReceipt         = errors.New("no fiscal receipt open")
	ErrUnknownTaxGroup   = errors.New("unknown tax group")
	ErrInsufficientFunds = errors.New("payments do not cover the receipt total")
)

// FiscalReceipt is a receipt closed by the virtual fiscal printer
type FiscalReceipt struct {
	Number   int64
	Header   driver.FiscalHeader
	Items    []driver.FiscalItem
	Payments []driver.FiscalPayment
	Texts    []string
	Barcode  string
	Total    decimal.Decimal
}

// FiscalPrinter simulates a fiscal printer with a programmed tax table
type FiscalPrinter struct {
	base
	rates     []driver.TaxRate
	open      *FiscalReceipt
	closed    []FiscalReceipt
	nonFiscal journal
	number    int64
	drawer    int
}

// NewFiscalPrinter creates a fiscal printer holding rates
func NewFiscalPrinter(info *driver.DriverInfo, rates []driver.TaxRate, logger *zap.Logger) *FiscalPrinter {
	if info == nil {
		info = &FiscalPrinterInfo
	}
	return &FiscalPrinter{
		base:  base{info: info, logger: logger},
		rates: append([]driver.TaxRate(nil), rates...),
	}
}

// TaxRates returns the programmed tax table
func (p *FiscalPrinter) TaxRates(context.Context) ([]driver.TaxRate, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.check(); err != nil {
		return nil, err
	}
	return append([]driver.TaxRate(nil), p.rates...), nil
}

// Status reports an open receipt as a warning
func (p *FiscalPrinter) Status(context.Context) (*driver.ErrorState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.check(); err != nil {
		return nil, err
	}
	state := &driver.ErrorState{}
	if p.open != nil {
		state.Add(driver.SeverityWarning, driver.CauseNone, fmt.Sprintf("receipt %d is open", p.open.Number))
	}
	return state, nil
}

func (p *FiscalPrinter) OpenFiscalReceipt(_ context.Context, header *driver.FiscalHeader) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.check(); err != nil {
		return err
	}
	if p.open != nil {
		return ErrReceiptOpen
	}
	p.number++
	p.open = &FiscalReceipt{Number: p.number, Header: *header, Total: decimal.Zero}
	return nil
}

func (p *FiscalPrinter) AddItem(_ context.Context, item *driver.FiscalItem) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.requireOpen(); err != nil {
		return err
	}
	if !p.knowsGroup(item.VATGroup) {
		return fmt.Errorf("%w: %q", ErrUnknownTaxGroup, item.VATGroup)
	}
	p.open.Items = append(p.open.Items, *item)
	p.open.Total = p.open.Total.Add(item.Quantity.Mul(item.Price).Sub(item.Discount))
	return nil
}

func (p *FiscalPrinter) AddPayment(_ context.Context, payment *driver.FiscalPayment) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.requireOpen(); err != nil {
		return err
	}
	p.open.Payments = append(p.open.Payments, *payment)
	return nil
}

func (p *FiscalPrinter) PrintFiscalText(_ context.Context, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.requireOpen(); err != nil {
		return err
	}
	p.open.Texts = append(p.open.Texts, text)
	return nil
}

func (p *FiscalPrinter) PrintBarcode(_ context.Context, code string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.requireOpen(); err != nil {
		return err
	}
	p.open.Barcode = code
	return nil
}

// CloseFiscalReceipt stores the receipt. Registered payments must cover the
// total; a receipt without payments is settled in cash.
func (p *FiscalPrinter) CloseFiscalReceipt(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.requireOpen(); err != nil {
		return err
	}
	receipt := p.open
	if len(receipt.Payments) == 0 {
		receipt.Payments = []driver.FiscalPayment{{Type: model.PaymentTypeCash, Amount: receipt.Total}}
	}
	paid := decimal.Zero
	for _, pay := range receipt.Payments {
		paid = paid.Add(pay.Amount)
	}
	if paid.LessThan(receipt.Total) {
		return fmt.Errorf("%w: paid %s of %s", ErrInsufficientFunds, paid.StringFixed(2), receipt.Total.StringFixed(2))
	}

	p.closed = append(p.closed, *receipt)
	if len(p.closed) > journalSize {
		p.closed = p.closed[len(p.closed)-journalSize:]
	}
	p.open = nil

	p.logger.Info("Virtual fiscal receipt closed",
		zap.String("device", p.deviceName()),
		zap.Int64("receipt_number", receipt.Number),
		zap.Int64("sale_number", receipt.Header.SaleNumber),
		zap.String("total", receipt.Total.StringFixed(2)),
	)
	return nil
}

func (p *FiscalPrinter) PrintNonFiscal(_ context.Context, receipt *driver.Receipt) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.check(); err != nil {
		return err
	}
	p.nonFiscal.add(*receipt)
	return nil
}

func (p *FiscalPrinter) OpenCashDrawer(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.check(); err != nil {
		return err
	}
	p.drawer++
	return nil
}

// Receipts returns the closed fiscal receipts
func (p *FiscalPrinter) Receipts() []FiscalReceipt {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]FiscalReceipt(nil), p.closed...)
}

// NonFiscalReceipts returns the printed non-fiscal slips
func (p *FiscalPrinter) NonFiscalReceipts() []driver.Receipt {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.nonFiscal.snapshot()
}

// DrawerOpenings counts drawer kicks
func (p *FiscalPrinter) DrawerOpenings() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.drawer
}

func (p *FiscalPrinter) requireOpen() error {
	if err := p.check(); err != nil {
		return err
	}
	if p.open == nil {
		return ErrNoReceipt
	}
	return nil
}

func (p *FiscalPrinter) knowsGroup(group string) bool {
	for _, r := range p.rates {
		if r.Group == group {
			return true
		}
	}
	return false
}

var (
	_ driver.CashReceiptPrinter = (*FiscalPrinter)(nil)
	_ driver.CashDrawer         = (*FiscalPrinter)(nil)
	_ driver.StatusReporter     = (*FiscalPrinter)(nil)
	_ driver.Pinger             = (*FiscalPrinter)(nil)
)
