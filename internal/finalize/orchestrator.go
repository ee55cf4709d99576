// internal/finalize/orchestrator.go
package finalize

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pos-device-service/internal/hardware"
	"pos-device-service/internal/model"
	"pos-device-service/internal/utils"
	"pos-device-service/pkg/driver"
)

var (
	ErrNoOptions              = errors.New("finalize options carry no sale, order or document")
	ErrReceiptPrinterRequired = errors.New("cash receipt printer is required for this sale")
	ErrInvalidOptions         = errors.New("invalid finalize options")
	ErrPanicked               = errors.New("finalize operation panicked")
)

// Dependencies are the collaborators of an Orchestrator
type Dependencies struct {
	Devices   Devices
	Store     Store
	Formatter TextFormatter
	Settings  Settings
	Events    hardware.EventSink
	Retry     hardware.RetryDecider

	// FinalizeLock must be the lock given to the hardware worker
	FinalizeLock *sync.Mutex
}

// Orchestrator executes finalize action plans
type Orchestrator struct {
	devices  Devices
	store    Store
	settings Settings
	events   hardware.EventSink
	retry    hardware.RetryDecider
	lock     *sync.Mutex
	builder  receiptBuilder
	text     TextFormatter

	logger *zap.Logger
	audit  *utils.AuditLogger
}

// NewOrchestrator creates an orchestrator
func NewOrchestrator(deps Dependencies, logger *zap.Logger) *Orchestrator {
	if deps.Events == nil {
		deps.Events = hardware.NopEventSink
	}
	if deps.Retry == nil {
		deps.Retry = hardware.AbortDecider{}
	}
	if deps.FinalizeLock == nil {
		deps.FinalizeLock = &sync.Mutex{}
	}

	o := &Orchestrator{
		devices:  deps.Devices,
		store:    deps.Store,
		settings: deps.Settings,
		events:   deps.Events,
		retry:    deps.Retry,
		lock:     deps.FinalizeLock,
		text:     deps.Formatter,
		logger:   logger.With(zap.String("component", "finalize")),
		audit:    utils.NewAuditLogger(logger),
	}
	o.builder = receiptBuilder{text: deps.Formatter, settings: &o.settings, now: time.Now}
	return o
}

type receiptKind int

const (
	receiptKitchen receiptKind = iota
	receiptCustomerOrder
)

// ReceiptInfo records a kitchen or customer order receipt that was printed
// during the current call, so it can be annulled if a later step fails
type ReceiptInfo struct {
	Destination string
	Title       string
	Sale        *model.Sale
	DeltaSale   *model.Sale
	Lines       []*model.SaleDetail
	Print       func(ctx context.Context, receipt *driver.Receipt) error

	kind receiptKind
	role model.DeviceRole
}

// FinalizeOperation runs the plan in opts. On failure the data transaction
// is rolled back, every kitchen and customer order receipt printed in this
// call is reprinted as annulled and the original error is returned.
func (o *Orchestrator) FinalizeOperation(ctx context.Context, opts *Options) error {
	if opts == nil || (opts.Sale == nil && opts.Order == nil && opts.Document == nil) {
		return ErrNoOptions
	}
	if err := opts.Validate(); err != nil {
		return err
	}

	o.lock.Lock()
	defer o.lock.Unlock()

	operationID := uuid.NewString()
	opLog := utils.NewOperationLogger(o.logger, "finalize_operation", operationID)
	opLog.Start(zap.String("actions", opts.Actions.String()))

	r := &run{
		o:        o,
		opts:     opts,
		sale:     opts.Sale,
		logger:   o.logger.With(zap.String("operation_id", operationID)),
		progress: progress{events: o.events, log: opLog, silent: opts.SilentMode},
	}
	if err := r.execute(ctx); err != nil {
		opLog.Error(err)
		return err
	}

	opLog.Success(zap.Int("receipts", len(r.printed)))
	return nil
}

// run holds the state of one FinalizeOperation call
type run struct {
	o        *Orchestrator
	opts     *Options
	logger   *zap.Logger
	progress progress

	// printed is the compensation log of this call
	printed []ReceiptInfo

	cashPrinter  driver.CashReceiptPrinter
	orderPrinter driver.NonFiscalPrinter
	salesData    driver.SalesDataController
	display      driver.CustomerDisplay
	kitchen      []hardware.KitchenPrinter

	sale          *model.Sale
	saleCommitted bool
}

func (r *run) execute(ctx context.Context) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = r.recovered(p)
		}
	}()

	if err := r.prepareDevices(ctx); err != nil {
		return err
	}
	if err := r.checkTaxRates(ctx); err != nil {
		return err
	}

	tx, err := r.o.store.BeginTransaction(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			err = r.recovered(p)
		}
		r.progress.end()
		if err == nil {
			return
		}
		r.compensate(ctx)
		if rerr := tx.Rollback(context.WithoutCancel(ctx)); rerr != nil {
			r.logger.Error("Failed to roll back finalize transaction", zap.Error(rerr))
		}
	}()

	commitSteps := []func(context.Context, Transaction) error{
		r.commitOrder,
		r.commitSale,
		r.commitDocument,
	}
	for _, step := range commitSteps {
		if err = step(ctx, tx); err != nil {
			return err
		}
	}

	r.progress.start(r.countLines())

	printSteps := []func(context.Context) error{
		r.printKitchen,
		r.printCustomerOrder,
		r.recordSaleData,
		r.printCashReceipt,
		r.printInvoices,
		r.openCashDrawer,
	}
	for _, step := range printSteps {
		if err = step(ctx); err != nil {
			return err
		}
	}

	if err = tx.Complete(ctx); err != nil {
		return fmt.Errorf("failed to complete transaction: %w", err)
	}

	r.afterComplete(ctx)
	return nil
}

// recovered turns a panic on the calling goroutine into an error so the
// transaction is rolled back and printed receipts are annulled
func (r *run) recovered(p interface{}) error {
	r.logger.Error("Finalize operation panicked",
		zap.Any("panic", p),
		zap.Stack("stacktrace"),
	)
	return fmt.Errorf("%w: %v", ErrPanicked, p)
}

func (r *run) actions() Action {
	return r.opts.Actions
}

func (r *run) exec(ctx context.Context, label string, cmd hardware.Command) error {
	return r.o.devices.Execute(ctx, label, cmd, r.opts.SilentMode)
}

// prepareDevices validates and connects every device the plan needs
func (r *run) prepareDevices(ctx context.Context) error {
	a := r.actions()
	d := r.o.devices

	if a.Has(ActionPrintCashReceipt | ActionPrintCashReceiptInvoice) {
		enabled, err := d.RoleEnabled(ctx, model.RolePrintCashReceipt)
		if err != nil {
			return err
		}
		if !enabled {
			if !r.o.settings.AllowSaleWithoutReceipt {
				return hardware.NewHardwareError(hardware.KindUnavailable, model.RolePrintCashReceipt,
					driver.CauseReceiptPrinterRequired, ErrReceiptPrinterRequired)
			}
			r.logger.Info("Cash receipt printer disabled, finalizing without receipt")
		} else {
			p, err := d.InitCashReceiptPrinter(ctx)
			if err != nil {
				return fmt.Errorf("failed to connect cash receipt printer: %w", err)
			}
			r.cashPrinter = p
		}
	}

	if a.Has(ActionCollectSaleData) {
		sdc, err := d.InitSalesDataController(ctx)
		if err != nil {
			return fmt.Errorf("failed to connect sales data controller: %w", err)
		}
		r.salesData = sdc
	}

	if a.Has(ActionPrintCustomerOrder | ActionPrintCustomerOrderInvoice) {
		p, err := d.InitCustomerOrderPrinter(ctx)
		if err != nil {
			return fmt.Errorf("failed to connect customer order printer: %w", err)
		}
		r.orderPrinter = p
	}

	if a.Has(ActionPrintKitchen) {
		printers, err := d.InitKitchenPrinters(ctx)
		if err != nil {
			return fmt.Errorf("failed to connect kitchen printers: %w", err)
		}
		r.kitchen = printers

		// fallback target for failed kitchen receipts
		if r.orderPrinter == nil {
			p, err := d.InitCustomerOrderPrinter(ctx)
			if err != nil {
				r.logger.Warn("Customer order printer unavailable for kitchen fallback", zap.Error(err))
			}
			r.orderPrinter = p
		}
	}

	if r.o.settings.ShowTotalOnDisplay && a.Has(ActionCommitSale) {
		display, err := d.InitExternalDisplay(ctx)
		if err != nil {
			r.logger.Warn("Customer display unavailable", zap.Error(err))
		}
		r.display = display
	}
	return nil
}

// checkTaxRates compares the configured VAT groups with the tax table of
// every fiscal device used by the plan
func (r *run) checkTaxRates(ctx context.Context) error {
	if len(r.o.settings.VATGroups) == 0 {
		return nil
	}
	if r.cashPrinter != nil && r.actions().Has(ActionPrintCashReceipt) {
		if err := r.checkDeviceTaxRates(ctx, model.RolePrintCashReceipt, r.cashPrinter); err != nil {
			return err
		}
	}
	if r.salesData != nil {
		if err := r.checkDeviceTaxRates(ctx, model.RoleCollectSalesData, r.salesData); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) checkDeviceTaxRates(ctx context.Context, role model.DeviceRole, reader driver.TaxRateReader) error {
	var rates []driver.TaxRate
	err := r.exec(ctx, "read tax rates "+role.String(), func(ctx context.Context) error {
		var err error
		rates, err = reader.TaxRates(ctx)
		return err
	})
	if err != nil {
		return err
	}
	if err := compareTaxRates(r.o.settings.VATGroups, rates); err != nil {
		return hardware.NewHardwareError(hardware.KindFiscal, role, driver.CauseVATMismatch, err)
	}
	return nil
}

func compareTaxRates(configured []model.VATGroup, reported []driver.TaxRate) error {
	byGroup := make(map[string]driver.TaxRate, len(reported))
	for _, rate := range reported {
		byGroup[rate.Group] = rate
	}
	for _, g := range configured {
		rate, ok := byGroup[g.Code]
		if !ok {
			return fmt.Errorf("tax group %s is not programmed in the device", g.Code)
		}
		if !rate.Rate.Equal(g.Rate) {
			return fmt.Errorf("tax group %s is %s%% in the device, configured %s%%", g.Code, rate.Rate, g.Rate)
		}
	}
	return nil
}

// commitOrder releases the order's reservations before the sale consumes them
func (r *run) commitOrder(ctx context.Context, tx Transaction) error {
	order := r.opts.Order
	if !r.actions().Has(ActionCommitOrder) || order == nil {
		return nil
	}
	if err := tx.Snapshot(ctx, "order", order.ID.String(), order); err != nil {
		return fmt.Errorf("failed to snapshot order: %w", err)
	}

	cleared := order.Clone()
	cleared.Details = nil
	cleared.UpdatedAt = time.Now()
	if err := tx.CommitOrder(ctx, cleared); err != nil {
		return fmt.Errorf("failed to commit order: %w", err)
	}
	return nil
}

func (r *run) commitSale(ctx context.Context, tx Transaction) error {
	if !r.actions().Has(ActionCommitSale) || r.opts.Sale == nil {
		return nil
	}
	if err := tx.Snapshot(ctx, "sale", r.opts.Sale.ID.String(), r.opts.Sale); err != nil {
		return fmt.Errorf("failed to snapshot sale: %w", err)
	}

	sale := r.opts.Sale.Clone()
	if sale.State.IsDraft() {
		sale.State = model.SaleStateNew
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now()
	}
	if err := tx.CommitSale(ctx, sale); err != nil {
		return fmt.Errorf("failed to commit sale: %w", err)
	}

	for _, p := range r.opts.EditedAdvancePayments {
		payment := *p
		payment.SaleID = sale.ID
		if err := tx.CommitPayment(ctx, &payment); err != nil {
			return fmt.Errorf("failed to commit advance payment: %w", err)
		}
	}

	if r.opts.AfterSaleCommit != nil {
		if err := r.opts.AfterSaleCommit(ctx, sale); err != nil {
			return fmt.Errorf("post commit hook failed: %w", err)
		}
	}

	r.sale = sale
	r.saleCommitted = true
	return nil
}

func (r *run) commitDocument(ctx context.Context, tx Transaction) error {
	doc := r.opts.Document
	if !r.actions().Has(ActionCommitDocument) || doc == nil {
		return nil
	}
	if err := tx.Snapshot(ctx, "document", doc.ID.String(), doc); err != nil {
		return fmt.Errorf("failed to snapshot document: %w", err)
	}

	committed := *doc
	if r.sale != nil {
		committed.SaleID = r.sale.ID
	}
	if committed.IssuedAt.IsZero() {
		committed.IssuedAt = time.Now()
	}
	if err := tx.CommitDocument(ctx, &committed); err != nil {
		return fmt.Errorf("failed to commit document: %w", err)
	}
	return nil
}

func (r *run) kitchenSource() (*model.Sale, []*model.SaleDetail) {
	sale := pick(r.opts.KitchenSale, r.sale)
	if sale == nil {
		return nil, nil
	}
	if r.opts.KitchenDeltaSale != nil {
		return sale, r.opts.KitchenDeltaSale.Details
	}
	return sale, sale.Details
}

func (r *run) customerOrderSource() (*model.Sale, []*model.SaleDetail) {
	sale := pick(r.opts.CustomerOrderSale, r.sale)
	if sale == nil {
		return nil, nil
	}
	if r.opts.CustomerOrderDeltaSale != nil {
		return sale, r.opts.CustomerOrderDeltaSale.Details
	}
	return sale, sale.Details
}

func (r *run) invoiceCopies() int {
	if r.opts.InvoiceCopies < 0 {
		return r.o.settings.InvoiceCopies
	}
	return r.opts.InvoiceCopies
}

// countLines sums the lines of every receipt this call will print
func (r *run) countLines() int {
	a := r.actions()
	total := 0
	if a.Has(ActionPrintKitchen) {
		_, lines := r.kitchenSource()
		for _, kp := range r.kitchen {
			total += len(kitchenLines(kp.Device, lines))
		}
	}
	if a.Has(ActionPrintCustomerOrder) && r.orderPrinter != nil {
		_, lines := r.customerOrderSource()
		total += len(lines)
	}
	if a.Has(ActionPrintCashReceipt) && r.cashPrinter != nil {
		if sale := pick(r.opts.CashReceiptSale, r.sale); sale != nil {
			total += len(sale.Details)
		}
	}
	if r.sale != nil {
		copies := r.invoiceCopies() + 1
		if a.Has(ActionPrintCustomerOrderInvoice) && r.orderPrinter != nil {
			total += copies * len(r.sale.Details)
		}
		if a.Has(ActionPrintCashReceiptInvoice) && r.cashPrinter != nil {
			total += copies * len(r.sale.Details)
		}
	}
	return total
}

func (r *run) printKitchen(ctx context.Context) error {
	if !r.actions().Has(ActionPrintKitchen) {
		return nil
	}
	sale, lines := r.kitchenSource()
	if sale == nil || len(lines) == 0 {
		return nil
	}

	title := r.opts.KitchenTitle
	if title == "" {
		title = r.o.text.Text(TextKitchenOrder)
	}

	for _, kp := range r.kitchen {
		printerLines := kitchenLines(kp.Device, lines)
		if len(printerLines) == 0 {
			continue
		}
		info := &ReceiptInfo{
			Destination: kp.Device.Name,
			Title:       title,
			Sale:        sale,
			DeltaSale:   r.opts.KitchenDeltaSale,
			Lines:       printerLines,
			Print:       kp.Printer.PrintKitchenReceipt,
			kind:        receiptKitchen,
			role:        model.RolePrintKitchenOrder,
		}
		if err := r.printReceipt(ctx, info); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) printCustomerOrder(ctx context.Context) error {
	if !r.actions().Has(ActionPrintCustomerOrder) || r.orderPrinter == nil {
		return nil
	}
	sale, lines := r.customerOrderSource()
	if sale == nil || len(lines) == 0 {
		return nil
	}

	title := r.opts.CustomerOrderTitle
	if title == "" {
		title = r.o.text.Text(TextCustomerOrder)
	}
	return r.printReceipt(ctx, &ReceiptInfo{
		Destination: model.RolePrintCustomerOrder.String(),
		Title:       title,
		Sale:        sale,
		DeltaSale:   r.opts.CustomerOrderDeltaSale,
		Lines:       lines,
		Print:       r.orderPrinter.PrintReceipt,
		kind:        receiptCustomerOrder,
		role:        model.RolePrintCustomerOrder,
	})
}

func (r *run) buildReceipt(info *ReceiptInfo) *driver.Receipt {
	if info.kind == receiptKitchen {
		return r.o.builder.kitchenReceipt(info.Title, info.Sale, info.Lines)
	}
	return r.o.builder.orderReceipt(info.Title, info.Sale, info.Lines)
}

// printReceipt prints a kitchen or customer order receipt, asking the retry
// decider after each hardware failure, and records it for compensation
func (r *run) printReceipt(ctx context.Context, info *ReceiptInfo) error {
	for attempt := 1; ; attempt++ {
		receipt := r.buildReceipt(info)
		printFn := info.Print
		err := r.exec(ctx, "print receipt "+info.Destination, func(ctx context.Context) error {
			return printFn(ctx, receipt)
		})
		if err == nil {
			r.printed = append(r.printed, *info)
			r.progress.step(len(info.Lines), info.Destination)
			return nil
		}

		herr, ok := hardware.AsHardwareError(err)
		if !ok {
			return err
		}
		herr.Role = info.role
		herr.Attempt = attempt

		e := hardware.ErrorEvent(herr)
		if info.kind == receiptKitchen {
			e.Type = hardware.EventKitchenPrinterError
		}
		e.Device = info.Destination
		r.o.events.Publish(e)

		decision := r.o.retry.DecideRetry(ctx, herr)
		r.logger.Warn("Receipt print failed",
			zap.String("destination", info.Destination),
			zap.Int("attempt", attempt),
			zap.String("decision", decision.String()),
			zap.Error(err),
		)

		switch decision {
		case hardware.RetryDecisionRetry:
			continue
		case hardware.RetryDecisionFallback:
			if info.kind != receiptKitchen || r.orderPrinter == nil {
				return err
			}
			info.Destination = model.RolePrintCustomerOrder.String()
			info.Print = r.orderPrinter.PrintReceipt
			info.role = model.RolePrintCustomerOrder
		default:
			return err
		}
	}
}

func (r *run) recordSaleData(ctx context.Context) error {
	if !r.actions().Has(ActionCollectSaleData) || r.salesData == nil || r.sale == nil {
		return nil
	}
	record := &driver.SaleRecord{
		SaleNumber: r.sale.Number,
		Total:      r.sale.Total(),
		VATTotals:  r.sale.VATTotals(),
		Payments:   fiscalPayments(r.sale),
	}
	sdc := r.salesData
	return r.exec(ctx, "record sale data", func(ctx context.Context) error {
		return sdc.RecordSale(ctx, record)
	})
}

// fiscalPayments lists the sale payments with cash last, since fiscal
// devices compute change against the final payment
func fiscalPayments(sale *model.Sale) []driver.FiscalPayment {
	if len(sale.Payments) == 0 {
		return []driver.FiscalPayment{{Type: model.PaymentTypeCash, Amount: sale.Total()}}
	}

	payments := make([]*model.Payment, len(sale.Payments))
	copy(payments, sale.Payments)
	sort.SliceStable(payments, func(i, j int) bool {
		return !payments[i].IsCash() && payments[j].IsCash()
	})

	out := make([]driver.FiscalPayment, 0, len(payments))
	for _, p := range payments {
		out = append(out, driver.FiscalPayment{Type: p.Type, Amount: p.Amount})
	}
	return out
}

func (r *run) printCashReceipt(ctx context.Context) error {
	if !r.actions().Has(ActionPrintCashReceipt) || r.cashPrinter == nil {
		return nil
	}
	sale := pick(r.opts.CashReceiptSale, r.sale)
	if sale.IsEmpty() {
		return nil
	}

	p := r.cashPrinter
	settings := r.o.settings
	payments := fiscalPayments(sale)

	return r.exec(ctx, "print cash receipt", func(ctx context.Context) error {
		header := &driver.FiscalHeader{
			SaleNumber: sale.Number,
			Operator:   sale.User,
			Partner:    sale.Partner,
		}
		if err := p.OpenFiscalReceipt(ctx, header); err != nil {
			return fmt.Errorf("failed to open fiscal receipt: %w", err)
		}
		for _, d := range sale.Details {
			item := &driver.FiscalItem{
				Name:     d.ItemName,
				Quantity: d.Quantity,
				Price:    d.Price,
				Discount: d.Discount,
				VATGroup: d.VATGroup,
			}
			if err := p.AddItem(ctx, item); err != nil {
				return fmt.Errorf("failed to add fiscal item %s: %w", d.ItemCode, err)
			}
			r.progress.step(1, d.ItemName)
		}
		for i := range payments {
			if err := p.AddPayment(ctx, &payments[i]); err != nil {
				return fmt.Errorf("failed to add fiscal payment: %w", err)
			}
		}
		if settings.ReceiptSignature != "" {
			if err := p.PrintFiscalText(ctx, settings.ReceiptSignature); err != nil {
				return fmt.Errorf("failed to print signature: %w", err)
			}
		}
		if settings.PrintSaleBarcode {
			if err := p.PrintBarcode(ctx, fmt.Sprintf("%012d", sale.Number)); err != nil {
				return fmt.Errorf("failed to print sale barcode: %w", err)
			}
		}
		if err := p.CloseFiscalReceipt(ctx); err != nil {
			return fmt.Errorf("failed to close fiscal receipt: %w", err)
		}
		return nil
	})
}

// printInvoices prints the original and the copies of the sale invoice
func (r *run) printInvoices(ctx context.Context) error {
	a := r.actions()
	toOrder := a.Has(ActionPrintCustomerOrderInvoice) && r.orderPrinter != nil
	toCash := a.Has(ActionPrintCashReceiptInvoice) && r.cashPrinter != nil
	if (!toOrder && !toCash) || r.sale == nil {
		return nil
	}

	if !r.opts.SilentMode {
		r.o.events.Publish(hardware.NewEvent(hardware.EventPrintDialogShown, 0, r.o.text.Text(TextInvoice)))
	}

	copies := r.invoiceCopies()
	for i := 0; i <= copies; i++ {
		title := r.o.text.Text(TextInvoice)
		if i > 0 {
			title = fmt.Sprintf("%s %d", r.o.text.Text(TextCopy), i)
		}

		if toOrder {
			receipt := r.o.builder.invoiceReceipt(title, r.sale, r.opts.Document)
			p := r.orderPrinter
			if err := r.exec(ctx, "print invoice", func(ctx context.Context) error {
				return p.PrintReceipt(ctx, receipt)
			}); err != nil {
				return err
			}
			r.progress.step(len(r.sale.Details), title)
		}
		if toCash {
			cashTitle := title
			if i == 0 && r.opts.CashReceiptTitle != "" {
				cashTitle = r.opts.CashReceiptTitle
			}
			receipt := r.o.builder.invoiceReceipt(cashTitle, r.sale, r.opts.Document)
			p := r.cashPrinter
			if err := r.exec(ctx, "print invoice on cash receipt printer", func(ctx context.Context) error {
				return p.PrintNonFiscal(ctx, receipt)
			}); err != nil {
				return err
			}
			r.progress.step(len(r.sale.Details), cashTitle)
		}
	}
	return nil
}

func (r *run) openCashDrawer(ctx context.Context) error {
	if !r.saleCommitted || r.cashPrinter == nil {
		return nil
	}
	drawer, ok := r.cashPrinter.(driver.CashDrawer)
	if !ok {
		return nil
	}
	if err := r.exec(ctx, "open cash drawer", drawer.OpenCashDrawer); err != nil {
		return err
	}
	r.o.audit.LogCashDrawerOpened(r.sale.ID.String(), r.sale.Number, r.sale.User)
	return nil
}

// compensate reprints every recorded receipt as annulled. Failures are
// logged per receipt and never replace the original error.
func (r *run) compensate(ctx context.Context) {
	if len(r.printed) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)

	for _, info := range r.printed {
		receipt := r.o.builder.annulled(r.buildReceipt(&info))
		printFn := info.Print
		err := r.o.devices.Execute(ctx, "annul receipt "+info.Destination, func(ctx context.Context) error {
			return printFn(ctx, receipt)
		}, true)
		if err != nil {
			r.logger.Error("Failed to print annulment",
				zap.String("destination", info.Destination),
				zap.Error(err),
			)
			continue
		}
		r.o.audit.LogReceiptAnnulled(info.Destination, info.Sale.Number, len(info.Lines))
	}
}

func (r *run) afterComplete(ctx context.Context) {
	if r.saleCommitted {
		r.opts.Sale.State = r.sale.State
		r.opts.Sale.Number = r.sale.Number
		r.o.audit.LogSaleCommitted(r.sale.ID.String(), r.sale.Number, r.sale.Total().String(), r.sale.User)
	}

	if r.display == nil || r.sale == nil {
		return
	}
	display := r.display
	upper := r.o.text.Text(TextTotal)
	lower := r.o.text.Money(r.sale.Total())
	if err := r.o.devices.Execute(ctx, "display total", func(ctx context.Context) error {
		return display.DisplayLines(ctx, upper, lower)
	}, true); err != nil {
		r.logger.Warn("Failed to show total on customer display", zap.Error(err))
	}
}
