package finalize

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"pos-device-service/internal/hardware"
	"pos-device-service/internal/model"
	"pos-device-service/pkg/driver"
)

type stubFormatter struct{}

func (stubFormatter) Text(key string) string { return key }
func (stubFormatter) Money(amount decimal.Decimal) string { return amount.StringFixed(2) }
func (stubFormatter) Quantity(q decimal.Decimal) string { return q.String() }
func (stubFormatter) DateTime(t time.Time) string { return t.Format("2006-01-02 15:04") }

type fakeBase struct{}

func (fakeBase) Info() *driver.DriverInfo { return &driver.DriverInfo{Type: "fake"} }
func (fakeBase) Connect(ctx context.Context, d *model.Device) error { return nil }
func (fakeBase) Disconnect(ctx context.Context) error { return nil }

// recordingPrinter serves both the kitchen and the customer order role
type recordingPrinter struct {
	fakeBase
	name string

	mu       sync.Mutex
	receipts []*driver.Receipt
	failures int
	err      error
	panics   bool
}

func (p *recordingPrinter) print(r *driver.Receipt) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.panics {
		panic("print buffer corrupted")
	}
	if p.err != nil && p.failures != 0 {
		if p.failures > 0 {
			p.failures--
		}
		return p.err
	}
	p.receipts = append(p.receipts, r)
	return nil
}

func (p *recordingPrinter) PrintReceipt(ctx context.Context, r *driver.Receipt) error {
	return p.print(r)
}

func (p *recordingPrinter) PrintKitchenReceipt(ctx context.Context, r *driver.Receipt) error {
	return p.print(r)
}

func (p *recordingPrinter) titles() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var titles []string
	for _, r := range p.receipts {
		titles = append(titles, r.Title)
	}
	return titles
}

type fakeCashPrinter struct {
	fakeBase
	rates  []driver.TaxRate
	failOn string

	calls     []string
	payments  []driver.FiscalPayment
	nonFiscal []*driver.Receipt
	drawer    int
}

func (p *fakeCashPrinter) call(name string) error {
	p.calls = append(p.calls, name)
	if name == p.failOn {
		return fmt.Errorf("%s failed", name)
	}
	return nil
}

func (p *fakeCashPrinter) TaxRates(ctx context.Context) ([]driver.TaxRate, error) {
	return p.rates, p.call("tax_rates")
}

func (p *fakeCashPrinter) OpenFiscalReceipt(ctx context.Context, h *driver.FiscalHeader) error {
	return p.call("open")
}

func (p *fakeCashPrinter) AddItem(ctx context.Context, item *driver.FiscalItem) error {
	return p.call("item")
}

func (p *fakeCashPrinter) AddPayment(ctx context.Context, payment *driver.FiscalPayment) error {
	p.payments = append(p.payments, *payment)
	return p.call("payment")
}

func (p *fakeCashPrinter) PrintFiscalText(ctx context.Context, text string) error {
	return p.call("text")
}

func (p *fakeCashPrinter) PrintBarcode(ctx context.Context, code string) error {
	return p.call("barcode:" + code)
}

func (p *fakeCashPrinter) CloseFiscalReceipt(ctx context.Context) error {
	return p.call("close")
}

func (p *fakeCashPrinter) PrintNonFiscal(ctx context.Context, r *driver.Receipt) error {
	p.nonFiscal = append(p.nonFiscal, r)
	return p.call("non_fiscal")
}

func (p *fakeCashPrinter) OpenCashDrawer(ctx context.Context) error {
	p.drawer++
	return p.call("drawer")
}

type fakeSalesData struct {
	fakeBase
	rates   []driver.TaxRate
	records []*driver.SaleRecord
}

func (s *fakeSalesData) TaxRates(ctx context.Context) ([]driver.TaxRate, error) {
	return s.rates, nil
}

func (s *fakeSalesData) RecordSale(ctx context.Context, record *driver.SaleRecord) error {
	s.records = append(s.records, record)
	return nil
}

type fakeDisplay struct {
	fakeBase
	upper, lower string
}

func (d *fakeDisplay) DisplayLines(ctx context.Context, upper, lower string) error {
	d.upper, d.lower = upper, lower
	return nil
}

func (d *fakeDisplay) ClearDisplay(ctx context.Context) error { return nil }

// fakeDevices runs commands inline and wraps failures the way the hardware
// worker does
type fakeDevices struct {
	cashDisabled bool
	cashErr      error
	cash         *fakeCashPrinter
	order        *recordingPrinter
	salesData    *fakeSalesData
	display      *fakeDisplay
	kitchen      []hardware.KitchenPrinter

	mu       sync.Mutex
	executed []string
}

func (d *fakeDevices) RoleEnabled(ctx context.Context, role model.DeviceRole) (bool, error) {
	if role == model.RolePrintCashReceipt {
		return !d.cashDisabled && (d.cash != nil || d.cashErr != nil), nil
	}
	return true, nil
}

func (d *fakeDevices) InitCashReceiptPrinter(ctx context.Context) (driver.CashReceiptPrinter, error) {
	if d.cashErr != nil {
		return nil, d.cashErr
	}
	if d.cash == nil {
		return nil, errors.New("no cash receipt printer")
	}
	return d.cash, nil
}

func (d *fakeDevices) InitCustomerOrderPrinter(ctx context.Context) (driver.NonFiscalPrinter, error) {
	if d.order == nil {
		return nil, nil
	}
	return d.order, nil
}

func (d *fakeDevices) InitSalesDataController(ctx context.Context) (driver.SalesDataController, error) {
	if d.salesData == nil {
		return nil, nil
	}
	return d.salesData, nil
}

func (d *fakeDevices) InitExternalDisplay(ctx context.Context) (driver.CustomerDisplay, error) {
	if d.display == nil {
		return nil, nil
	}
	return d.display, nil
}

func (d *fakeDevices) InitKitchenPrinters(ctx context.Context) ([]hardware.KitchenPrinter, error) {
	return d.kitchen, nil
}

func (d *fakeDevices) Execute(ctx context.Context, label string, cmd hardware.Command, silent bool) error {
	d.mu.Lock()
	d.executed = append(d.executed, label)
	d.mu.Unlock()

	err := cmd(ctx)
	if err == nil {
		return nil
	}
	if _, ok := hardware.AsHardwareError(err); ok {
		return err
	}
	return hardware.NewHardwareError(hardware.KindOperation, 0, driver.CauseCommandFailed, err)
}

func (d *fakeDevices) labels() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.executed...)
}

type fakeStore struct {
	mu         sync.Mutex
	calls      []string
	begun      int
	failOn     string
	nextNumber int64
	committed  *model.Sale
}

func (s *fakeStore) BeginTransaction(ctx context.Context) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.begun++
	return &fakeTx{store: s}, nil
}

func (s *fakeStore) record(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, name)
	if name == s.failOn {
		return fmt.Errorf("%s failed", name)
	}
	return nil
}

func (s *fakeStore) history() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

type fakeTx struct {
	store *fakeStore
}

func (t *fakeTx) Snapshot(ctx context.Context, entityType, entityID string, entity interface{}) error {
	return t.store.record("snapshot:" + entityType)
}

func (t *fakeTx) CommitOrder(ctx context.Context, order *model.Order) error {
	return t.store.record("commit_order")
}

func (t *fakeTx) CommitSale(ctx context.Context, sale *model.Sale) error {
	if err := t.store.record("commit_sale"); err != nil {
		return err
	}
	t.store.mu.Lock()
	t.store.nextNumber++
	sale.Number = t.store.nextNumber
	t.store.committed = sale
	t.store.mu.Unlock()
	return nil
}

func (t *fakeTx) CommitPayment(ctx context.Context, payment *model.Payment) error {
	return t.store.record("commit_payment")
}

func (t *fakeTx) CommitDocument(ctx context.Context, document *model.Document) error {
	return t.store.record("commit_document")
}

func (t *fakeTx) Complete(ctx context.Context) error {
	return t.store.record("complete")
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	return t.store.record("rollback")
}

type eventRecorder struct {
	mu     sync.Mutex
	events []hardware.Event
}

func (r *eventRecorder) Publish(e hardware.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) ofType(t hardware.EventType) []hardware.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []hardware.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func kitchenPrinter(name string, groups ...string) (hardware.KitchenPrinter, *recordingPrinter) {
	p := &recordingPrinter{name: name}
	return hardware.KitchenPrinter{
		Device: &model.Device{
			ID:         uuid.New(),
			Name:       name,
			Roles:      model.RolePrintKitchenOrder,
			DriverType: "fake",
			Enabled:    true,
			ItemGroups: groups,
		},
		Printer: p,
	}, p
}

func testSale() *model.Sale {
	return &model.Sale{
		ID:       uuid.New(),
		State:    model.SaleStateDraft,
		Location: "Table 4",
		User:     "anna",
		Details: []*model.SaleDetail{
			{ID: uuid.New(), ItemName: "Soup", ItemGroup: "food", Quantity: decimal.NewFromInt(2), Price: decimal.RequireFromString("3.50"), VATGroup: "B", VATRate: decimal.NewFromInt(20)},
			{ID: uuid.New(), ItemName: "Beer", ItemGroup: "drinks", Quantity: decimal.NewFromInt(1), Price: decimal.RequireFromString("2.00"), VATGroup: "B", VATRate: decimal.NewFromInt(20)},
		},
	}
}

func newTestOrchestrator(t *testing.T, devices *fakeDevices, store *fakeStore, events hardware.EventSink, retry hardware.RetryDecider, settings Settings) *Orchestrator {
	t.Helper()
	return NewOrchestrator(Dependencies{
		Devices:   devices,
		Store:     store,
		Formatter: stubFormatter{},
		Settings:  settings,
		Events:    events,
		Retry:     retry,
	}, zap.NewNop())
}
