// internal/driver/virtual/devices.go
package virtual

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"pos-device-service/pkg/driver"
)

var (
	PrinterInfo = driver.DriverInfo{
		Type:         TypePrinter,
		Name:         "Virtual receipt printer",
		Manufacturer: "Simulated",
		Commands:     commands(driver.CmdPrintNonFiscal, driver.CmdPrintKitchen, driver.CmdCutPaper, driver.CmdOpenDrawer),
	}
	DisplayInfo = driver.DriverInfo{
		Type:         TypeDisplay,
		Name:         "Virtual customer display",
		Manufacturer: "Simulated",
		Commands:     commands(driver.CmdDisplayText, driver.CmdClearDisplay),
	}
	CardReaderInfo = driver.DriverInfo{
		Type:         TypeCardReader,
		Name:         "Virtual card reader",
		Manufacturer: "Simulated",
		Commands:     commands(driver.CmdReadCard),
	}
	ScaleInfo = driver.DriverInfo{
		Type:         TypeScale,
		Name:         "Virtual electronic scale",
		Manufacturer: "Simulated",
		Commands:     commands(driver.CmdReadWeight),
	}
	SalesDataInfo = driver.DriverInfo{
		Type:         TypeSalesData,
		Name:         "Virtual sales data controller",
		Manufacturer: "Simulated",
		Commands:     commands(driver.CmdReadTaxRates, driver.CmdRecordSale),
	}
	BarcodeScannerInfo = driver.DriverInfo{
		Type:         TypeBarcodeScanner,
		Name:         "Virtual barcode scanner",
		Manufacturer: "Simulated",
		Commands:     commands(driver.CmdScanBarcode),
	}
)

// Printer simulates a non-fiscal printer serving customer orders, kitchen
// tickets and a cash drawer
type Printer struct {
	base
	printed journal
	drawer  int
}

func NewPrinter(info *driver.DriverInfo, logger *zap.Logger) *Printer {
	if info == nil {
		info = &PrinterInfo
	}
	return &Printer{base: base{info: info, logger: logger}}
}

func (p *Printer) PrintReceipt(_ context.Context, receipt *driver.Receipt) error {
	return p.print("receipt", receipt)
}

func (p *Printer) PrintKitchenReceipt(_ context.Context, receipt *driver.Receipt) error {
	return p.print("kitchen receipt", receipt)
}

func (p *Printer) print(kind string, receipt *driver.Receipt) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.check(); err != nil {
		return err
	}
	p.printed.add(*receipt)
	p.logger.Info("Virtual "+kind+" printed",
		zap.String("device", p.deviceName()),
		zap.String("title", receipt.Title),
		zap.Int("lines", len(receipt.Lines)),
	)
	return nil
}

func (p *Printer) OpenCashDrawer(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.check(); err != nil {
		return err
	}
	p.drawer++
	return nil
}

// Printed returns the most recent receipts
func (p *Printer) Printed() []driver.Receipt {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.printed.snapshot()
}

// Display simulates a two-line pole display
type Display struct {
	base
	upper, lower string
}

func NewDisplay(info *driver.DriverInfo, logger *zap.Logger) *Display {
	if info == nil {
		info = &DisplayInfo
	}
	return &Display{base: base{info: info, logger: logger}}
}

func (d *Display) DisplayLines(_ context.Context, upper, lower string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.check(); err != nil {
		return err
	}
	d.upper, d.lower = upper, lower
	d.logger.Debug("Virtual display updated", zap.String("upper", upper), zap.String("lower", lower))
	return nil
}

func (d *Display) ClearDisplay(ctx context.Context) error {
	return d.DisplayLines(ctx, "", "")
}

// Lines returns what the display shows
func (d *Display) Lines() (string, string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.upper, d.lower
}

// listenerBase delivers injected values to the registered listener
type listenerBase struct {
	base
	listener func(string)
}

func (l *listenerBase) setListener(listener func(string)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listener = listener
}

func (l *listenerBase) Inject(value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return fmt.Errorf("empty value")
	}

	l.mu.Lock()
	listener := l.listener
	err := l.check()
	l.mu.Unlock()

	if err != nil {
		return err
	}
	if listener != nil {
		listener(value)
	}
	return nil
}

// CardReader simulates a card reader; Inject presents a card
type CardReader struct {
	listenerBase
}

func NewCardReader(info *driver.DriverInfo, logger *zap.Logger) *CardReader {
	if info == nil {
		info = &CardReaderInfo
	}
	return &CardReader{listenerBase{base: base{info: info, logger: logger}}}
}

func (r *CardReader) SetCardListener(listener func(cardID string)) {
	r.setListener(listener)
}

// BarcodeScanner simulates a scanner; Inject scans a code
type BarcodeScanner struct {
	listenerBase
}

func NewBarcodeScanner(info *driver.DriverInfo, logger *zap.Logger) *BarcodeScanner {
	if info == nil {
		info = &BarcodeScannerInfo
	}
	return &BarcodeScanner{listenerBase{base: base{info: info, logger: logger}}}
}

func (s *BarcodeScanner) SetBarcodeListener(listener func(code string)) {
	s.setListener(listener)
}

// Scale simulates a scale; Inject places a weight in kilograms
type Scale struct {
	base
	weight decimal.Decimal
}

func NewScale(info *driver.DriverInfo, logger *zap.Logger) *Scale {
	if info == nil {
		info = &ScaleInfo
	}
	return &Scale{base: base{info: info, logger: logger}, weight: decimal.Zero}
}

func (s *Scale) Inject(value string) error {
	weight, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("invalid weight %q: %w", value, err)
	}
	if weight.IsNegative() {
		return fmt.Errorf("invalid weight %q: negative", value)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.weight = weight
	return nil
}

func (s *Scale) ReadWeight(context.Context) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(); err != nil {
		return decimal.Zero, err
	}
	return s.weight, nil
}

// SalesData simulates a sales-data controller
type SalesData struct {
	base
	rates   []driver.TaxRate
	records []driver.SaleRecord
}

func NewSalesData(info *driver.DriverInfo, rates []driver.TaxRate, logger *zap.Logger) *SalesData {
	if info == nil {
		info = &SalesDataInfo
	}
	return &SalesData{base: base{info: info, logger: logger}, rates: append([]driver.TaxRate(nil), rates...)}
}

func (c *SalesData) TaxRates(context.Context) ([]driver.TaxRate, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.check(); err != nil {
		return nil, err
	}
	return append([]driver.TaxRate(nil), c.rates...), nil
}

func (c *SalesData) RecordSale(_ context.Context, record *driver.SaleRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.check(); err != nil {
		return err
	}
	c.records = append(c.records, *record)
	if len(c.records) > journalSize {
		c.records = c.records[len(c.records)-journalSize:]
	}
	return nil
}

// Records returns the stored sale records
func (c *SalesData) Records() []driver.SaleRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]driver.SaleRecord(nil), c.records...)
}

var (
	_ driver.NonFiscalPrinter    = (*Printer)(nil)
	_ driver.KitchenPrinter      = (*Printer)(nil)
	_ driver.CashDrawer          = (*Printer)(nil)
	_ driver.CustomerDisplay     = (*Display)(nil)
	_ driver.CardReader          = (*CardReader)(nil)
	_ driver.BarcodeScanner      = (*BarcodeScanner)(nil)
	_ driver.Scale               = (*Scale)(nil)
	_ driver.SalesDataController = (*SalesData)(nil)
	_ Injector                   = (*CardReader)(nil)
	_ Injector                   = (*BarcodeScanner)(nil)
	_ Injector                   = (*Scale)(nil)
)
