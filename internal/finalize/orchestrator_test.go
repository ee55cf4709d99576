package finalize

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pos-device-service/internal/hardware"
	"pos-device-service/internal/model"
	"pos-device-service/pkg/driver"
)

func TestFinalizeOperation_NoPayload(t *testing.T) {
	o := newTestOrchestrator(t, &fakeDevices{}, &fakeStore{}, nil, nil, Settings{})

	assert.ErrorIs(t, o.FinalizeOperation(context.Background(), nil), ErrNoOptions)
	assert.ErrorIs(t, o.FinalizeOperation(context.Background(), &Options{Actions: ActionCommitSale}), ErrNoOptions)
}

func TestFinalizeOperation_CommitsOrderBeforeSale(t *testing.T) {
	store := &fakeStore{}
	o := newTestOrchestrator(t, &fakeDevices{}, store, nil, nil, Settings{})

	sale := testSale()
	order := &model.Order{ID: uuid.New(), Details: sale.Clone().Details}
	doc := &model.Document{ID: uuid.New(), Kind: model.DocumentKindInvoice, Number: "F-1"}

	err := o.FinalizeOperation(context.Background(), &Options{
		Sale:     sale,
		Order:    order,
		Document: doc,
		Actions:  ActionCommitOrder | ActionCommitSale | ActionCommitDocument,
		EditedAdvancePayments: []*model.Payment{
			{ID: uuid.New(), Type: model.PaymentTypeAdvance, Amount: decimal.NewFromInt(5)},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"snapshot:order", "commit_order",
		"snapshot:sale", "commit_sale", "commit_payment",
		"snapshot:document", "commit_document",
		"complete",
	}, store.history())

	assert.Equal(t, model.SaleStateNew, sale.State)
	assert.Equal(t, int64(1), sale.Number)
	assert.Len(t, order.Details, 2, "caller's order is not modified")
}

func TestFinalizeOperation_FailedSaleKeepsCallerState(t *testing.T) {
	store := &fakeStore{failOn: "complete"}
	o := newTestOrchestrator(t, &fakeDevices{}, store, nil, nil, Settings{})

	sale := testSale()
	err := o.FinalizeOperation(context.Background(), &Options{Sale: sale, Actions: ActionCommitSale})
	require.Error(t, err)

	assert.Equal(t, model.SaleStateDraft, sale.State)
	assert.Zero(t, sale.Number)
	assert.Contains(t, store.history(), "rollback")
}

func TestFinalizeOperation_HookFailureRollsBack(t *testing.T) {
	store := &fakeStore{}
	o := newTestOrchestrator(t, &fakeDevices{}, store, nil, nil, Settings{})

	hookErr := errors.New("stock unavailable")
	err := o.FinalizeOperation(context.Background(), &Options{
		Sale:    testSale(),
		Actions: ActionCommitSale,
		AfterSaleCommit: func(ctx context.Context, sale *model.Sale) error {
			assert.Equal(t, int64(1), sale.Number)
			return hookErr
		},
	})

	assert.ErrorIs(t, err, hookErr)
	assert.Equal(t, []string{"snapshot:sale", "commit_sale", "rollback"}, store.history())
}

func TestFinalizeOperation_PrintsEveryDestination(t *testing.T) {
	grill, grillPrinter := kitchenPrinter("grill", "food")
	bar, barPrinter := kitchenPrinter("bar", "drinks")
	cash := &fakeCashPrinter{}
	display := &fakeDisplay{}
	devices := &fakeDevices{
		cash:    cash,
		order:   &recordingPrinter{name: "order"},
		display: display,
		kitchen: []hardware.KitchenPrinter{grill, bar},
	}
	store := &fakeStore{}
	events := &eventRecorder{}
	o := newTestOrchestrator(t, devices, store, events, nil, Settings{
		ReceiptSignature:   "thank you",
		PrintSaleBarcode:   true,
		ShowTotalOnDisplay: true,
	})

	err := o.FinalizeOperation(context.Background(), &Options{
		Sale:    testSale(),
		Actions: ActionCommitSale | ActionPrintKitchen | ActionPrintCustomerOrder | ActionPrintCashReceipt,
	})
	require.NoError(t, err)

	require.Len(t, grillPrinter.receipts, 1)
	assert.Len(t, grillPrinter.receipts[0].Lines, 1, "only food lines reach the grill")
	require.Len(t, barPrinter.receipts, 1)
	assert.Equal(t, []string{TextCustomerOrder}, devices.order.titles())

	assert.Equal(t, []string{
		"open", "item", "item", "payment", "text", "barcode:000000000001", "close", "drawer",
	}, cash.calls)
	assert.Equal(t, 1, cash.drawer)

	assert.Equal(t, TextTotal, display.upper)
	assert.Equal(t, "9.00", display.lower)

	assert.Len(t, events.ofType(hardware.EventReceiptPrintStart), 1)
	assert.Len(t, events.ofType(hardware.EventReceiptPrintEnd), 1)
	steps := events.ofType(hardware.EventReceiptPrintStep)
	require.NotEmpty(t, steps)
	assert.Equal(t, 1.0, steps[len(steps)-1].Progress)
}

func TestFinalizeOperation_SilentModePublishesNoProgress(t *testing.T) {
	grill, _ := kitchenPrinter("grill")
	events := &eventRecorder{}
	o := newTestOrchestrator(t, &fakeDevices{kitchen: []hardware.KitchenPrinter{grill}}, &fakeStore{}, events, nil, Settings{})

	err := o.FinalizeOperation(context.Background(), &Options{
		Sale:       testSale(),
		Actions:    ActionCommitSale | ActionPrintKitchen,
		SilentMode: true,
	})
	require.NoError(t, err)

	assert.Empty(t, events.ofType(hardware.EventReceiptPrintStart))
	assert.Empty(t, events.ofType(hardware.EventReceiptPrintStep))
	assert.Empty(t, events.ofType(hardware.EventReceiptPrintEnd))
}

func TestFinalizeOperation_AnnulsPrintedReceiptsOnFailure(t *testing.T) {
	grill, grillPrinter := kitchenPrinter("grill")
	bar, barPrinter := kitchenPrinter("bar")
	jam := errors.New("paper jam")
	barPrinter.err, barPrinter.failures = jam, -1

	store := &fakeStore{}
	events := &eventRecorder{}
	devices := &fakeDevices{kitchen: []hardware.KitchenPrinter{grill, bar}}
	o := newTestOrchestrator(t, devices, store, events, nil, Settings{})

	err := o.FinalizeOperation(context.Background(), &Options{
		Sale:    testSale(),
		Actions: ActionCommitSale | ActionPrintKitchen,
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, jam)
	assert.Equal(t, []string{TextKitchenOrder, TextReceiptAnnulled}, grillPrinter.titles())
	assert.Empty(t, barPrinter.titles())
	assert.Contains(t, devices.labels(), "annul receipt grill")
	assert.Equal(t, "rollback", store.history()[len(store.history())-1])
	assert.NotContains(t, store.history(), "complete")

	kitchenErrors := events.ofType(hardware.EventKitchenPrinterError)
	require.Len(t, kitchenErrors, 1)
	assert.Equal(t, "bar", kitchenErrors[0].Device)
	assert.Len(t, events.ofType(hardware.EventReceiptPrintEnd), 1)
}

func TestFinalizeOperation_CashReceiptFailureAnnulsOrderReceipts(t *testing.T) {
	grill, grillPrinter := kitchenPrinter("grill")
	order := &recordingPrinter{name: "order"}
	cash := &fakeCashPrinter{failOn: "item"}
	store := &fakeStore{}
	devices := &fakeDevices{cash: cash, order: order, kitchen: []hardware.KitchenPrinter{grill}}
	o := newTestOrchestrator(t, devices, store, nil, nil, Settings{})

	sale := testSale()
	err := o.FinalizeOperation(context.Background(), &Options{
		Sale:    sale,
		Actions: ActionCommitSale | ActionPrintKitchen | ActionPrintCustomerOrder | ActionPrintCashReceipt,
	})

	require.Error(t, err)
	assert.True(t, hardware.IsKind(err, hardware.KindOperation))
	assert.Contains(t, err.Error(), "item failed")

	assert.Equal(t, []string{TextKitchenOrder, TextReceiptAnnulled}, grillPrinter.titles())
	assert.Equal(t, []string{TextCustomerOrder, TextReceiptAnnulled}, order.titles())
	assert.Zero(t, cash.drawer)
	assert.Equal(t, model.SaleStateDraft, sale.State)
}

func TestFinalizeOperation_AnnulmentFailureKeepsOriginalError(t *testing.T) {
	grill, grillPrinter := kitchenPrinter("grill")
	cash := &fakeCashPrinter{failOn: "close"}
	devices := &fakeDevices{cash: cash, kitchen: []hardware.KitchenPrinter{grill}}
	o := newTestOrchestrator(t, devices, &fakeStore{}, nil, nil, Settings{})

	// the first print succeeds, the annulment fails
	printed := false
	wrapped := hardware.KitchenPrinter{Device: grill.Device, Printer: &flakyKitchen{
		recordingPrinter: grillPrinter,
		fail:             func() bool { defer func() { printed = true }(); return printed },
	}}
	devices.kitchen = []hardware.KitchenPrinter{wrapped}

	err := o.FinalizeOperation(context.Background(), &Options{
		Sale:    testSale(),
		Actions: ActionCommitSale | ActionPrintKitchen | ActionPrintCashReceipt,
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "close failed")
	assert.Equal(t, []string{TextKitchenOrder}, grillPrinter.titles())
}

type flakyKitchen struct {
	*recordingPrinter
	fail func() bool
}

func (k *flakyKitchen) PrintKitchenReceipt(ctx context.Context, r *driver.Receipt) error {
	if k.fail() {
		return errors.New("printer offline")
	}
	return k.recordingPrinter.PrintKitchenReceipt(ctx, r)
}

func TestFinalizeOperation_RetriesKitchenPrint(t *testing.T) {
	grill, grillPrinter := kitchenPrinter("grill")
	grillPrinter.err, grillPrinter.failures = errors.New("busy"), 1
	o := newTestOrchestrator(t, &fakeDevices{kitchen: []hardware.KitchenPrinter{grill}}, &fakeStore{}, nil,
		&hardware.BoundedRetryDecider{MaxAttempts: 3}, Settings{})

	err := o.FinalizeOperation(context.Background(), &Options{
		Sale:    testSale(),
		Actions: ActionCommitSale | ActionPrintKitchen,
	})

	require.NoError(t, err)
	assert.Equal(t, []string{TextKitchenOrder}, grillPrinter.titles())
}

func TestFinalizeOperation_KitchenFallbackToOrderPrinter(t *testing.T) {
	grill, grillPrinter := kitchenPrinter("grill")
	grillPrinter.err, grillPrinter.failures = errors.New("offline"), -1
	order := &recordingPrinter{name: "order"}
	decider := hardware.RetryDeciderFunc(func(ctx context.Context, herr *hardware.HardwareError) hardware.RetryDecision {
		return hardware.RetryDecisionFallback
	})
	o := newTestOrchestrator(t, &fakeDevices{order: order, kitchen: []hardware.KitchenPrinter{grill}}, &fakeStore{}, nil, decider, Settings{})

	err := o.FinalizeOperation(context.Background(), &Options{
		Sale:         testSale(),
		Actions:      ActionCommitSale | ActionPrintKitchen,
		KitchenTitle: "Table 4",
	})

	require.NoError(t, err)
	assert.Empty(t, grillPrinter.titles())
	assert.Equal(t, []string{"Table 4"}, order.titles())
}

func TestFinalizeOperation_MissingReceiptPrinter(t *testing.T) {
	store := &fakeStore{}
	o := newTestOrchestrator(t, &fakeDevices{}, store, nil, nil, Settings{})

	err := o.FinalizeOperation(context.Background(), &Options{
		Sale:    testSale(),
		Actions: ActionCommitSale | ActionPrintCashReceipt,
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrReceiptPrinterRequired)
	herr, ok := hardware.AsHardwareError(err)
	require.True(t, ok)
	assert.Equal(t, hardware.KindUnavailable, herr.Kind)
	assert.Equal(t, driver.CauseReceiptPrinterRequired, herr.Cause())
	assert.Zero(t, store.begun)
}

func TestFinalizeOperation_DisconnectedReceiptPrinter(t *testing.T) {
	tests := []struct {
		name  string
		allow bool
	}{
		{"receipt required", false},
		{"sale without receipt allowed", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			offline := hardware.NewHardwareError(hardware.KindConnection, model.RolePrintCashReceipt,
				driver.CauseNone, errors.New("port closed"))
			grill, grillPrinter := kitchenPrinter("grill")
			devices := &fakeDevices{cashErr: offline, kitchen: []hardware.KitchenPrinter{grill}}
			store := &fakeStore{}
			o := newTestOrchestrator(t, devices, store, nil, nil, Settings{AllowSaleWithoutReceipt: tt.allow})

			err := o.FinalizeOperation(context.Background(), &Options{
				Sale:    testSale(),
				Actions: ActionCommitSale | ActionPrintKitchen | ActionPrintCashReceipt,
			})

			require.Error(t, err)
			assert.ErrorIs(t, err, offline)
			assert.Zero(t, store.begun)
			assert.Empty(t, grillPrinter.titles())
			assert.Empty(t, devices.labels())
		})
	}
}

func TestFinalizeOperation_RejectsNullEntries(t *testing.T) {
	withNullLine := func() *model.Sale {
		s := testSale()
		s.Details = append(s.Details, nil)
		return s
	}
	tests := []struct {
		name string
		opts *Options
	}{
		{"sale line", &Options{Sale: withNullLine(), Actions: ActionCommitSale}},
		{"sale payment", &Options{Sale: &model.Sale{ID: uuid.New(), Payments: []*model.Payment{nil}}, Actions: ActionCommitSale}},
		{"advance payment", &Options{Sale: testSale(), Actions: ActionCommitSale, EditedAdvancePayments: []*model.Payment{nil}}},
		{"kitchen delta line", &Options{Sale: testSale(), KitchenDeltaSale: withNullLine(), Actions: ActionPrintKitchen}},
		{"order line", &Options{Order: &model.Order{ID: uuid.New(), Details: []*model.SaleDetail{nil}}, Actions: ActionCommitOrder}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{}
			o := newTestOrchestrator(t, &fakeDevices{}, store, nil, nil, Settings{})

			err := o.FinalizeOperation(context.Background(), tt.opts)

			assert.ErrorIs(t, err, ErrInvalidOptions)
			assert.Zero(t, store.begun)
		})
	}
}

func TestFinalizeOperation_PanicAnnulsPrintedReceipts(t *testing.T) {
	grill, grillPrinter := kitchenPrinter("grill")
	bar, barPrinter := kitchenPrinter("bar")
	barPrinter.panics = true

	store := &fakeStore{}
	events := &eventRecorder{}
	devices := &fakeDevices{kitchen: []hardware.KitchenPrinter{grill, bar}}
	o := newTestOrchestrator(t, devices, store, events, nil, Settings{})

	var err error
	require.NotPanics(t, func() {
		err = o.FinalizeOperation(context.Background(), &Options{
			Sale:    testSale(),
			Actions: ActionCommitSale | ActionPrintKitchen,
		})
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPanicked)
	assert.Equal(t, []string{TextKitchenOrder, TextReceiptAnnulled}, grillPrinter.titles())
	assert.Equal(t, "rollback", store.history()[len(store.history())-1])
	assert.NotContains(t, store.history(), "complete")
	assert.Len(t, events.ofType(hardware.EventReceiptPrintEnd), 1)
}

func TestFinalizeOperation_HookPanicRollsBack(t *testing.T) {
	store := &fakeStore{}
	o := newTestOrchestrator(t, &fakeDevices{}, store, nil, nil, Settings{})

	err := o.FinalizeOperation(context.Background(), &Options{
		Sale:    testSale(),
		Actions: ActionCommitSale,
		AfterSaleCommit: func(ctx context.Context, sale *model.Sale) error {
			panic("hook failed")
		},
	})

	assert.ErrorIs(t, err, ErrPanicked)
	assert.Equal(t, "rollback", store.history()[len(store.history())-1])
}

func TestFinalizeOperation_SaleWithoutReceiptAllowed(t *testing.T) {
	store := &fakeStore{}
	o := newTestOrchestrator(t, &fakeDevices{}, store, nil, nil, Settings{AllowSaleWithoutReceipt: true})

	err := o.FinalizeOperation(context.Background(), &Options{
		Sale:    testSale(),
		Actions: ActionCommitSale | ActionPrintCashReceipt,
	})

	require.NoError(t, err)
	assert.Contains(t, store.history(), "complete")
}

func TestFinalizeOperation_VATMismatchIsFatal(t *testing.T) {
	store := &fakeStore{}
	cash := &fakeCashPrinter{rates: []driver.TaxRate{{Group: "B", Rate: decimal.NewFromInt(9)}}}
	o := newTestOrchestrator(t, &fakeDevices{cash: cash}, store, nil, nil, Settings{
		VATGroups: []model.VATGroup{{Code: "B", Rate: decimal.NewFromInt(20)}},
	})

	err := o.FinalizeOperation(context.Background(), &Options{
		Sale:    testSale(),
		Actions: ActionCommitSale | ActionPrintCashReceipt,
	})

	require.Error(t, err)
	herr, ok := hardware.AsHardwareError(err)
	require.True(t, ok)
	assert.Equal(t, hardware.KindFiscal, herr.Kind)
	assert.Equal(t, driver.CauseVATMismatch, herr.Cause())
	assert.Zero(t, store.begun)
	assert.Equal(t, []string{"tax_rates"}, cash.calls)
}

func TestFinalizeOperation_CashPaymentsLast(t *testing.T) {
	cash := &fakeCashPrinter{}
	sale := testSale()
	sale.Payments = []*model.Payment{
		{Type: model.PaymentTypeCash, Amount: decimal.NewFromInt(4)},
		{Type: model.PaymentTypeCard, Amount: decimal.NewFromInt(5)},
	}
	o := newTestOrchestrator(t, &fakeDevices{cash: cash}, &fakeStore{}, nil, nil, Settings{})

	err := o.FinalizeOperation(context.Background(), &Options{
		Sale:    sale,
		Actions: ActionCommitSale | ActionPrintCashReceipt,
	})

	require.NoError(t, err)
	require.Len(t, cash.payments, 2)
	assert.Equal(t, model.PaymentTypeCard, cash.payments[0].Type)
	assert.Equal(t, model.PaymentTypeCash, cash.payments[1].Type)
}

func TestFinalizeOperation_InvoiceCopies(t *testing.T) {
	order := &recordingPrinter{name: "order"}
	events := &eventRecorder{}
	o := newTestOrchestrator(t, &fakeDevices{order: order}, &fakeStore{}, events, nil, Settings{InvoiceCopies: 2})

	err := o.FinalizeOperation(context.Background(), &Options{
		Sale:          testSale(),
		Document:      &model.Document{ID: uuid.New(), Number: "F-7", Recipient: "ACME"},
		Actions:       ActionCommitSale | ActionCommitDocument | ActionPrintCustomerOrderInvoice,
		InvoiceCopies: -1,
	})

	require.NoError(t, err)
	assert.Equal(t, []string{TextInvoice, TextCopy + " 1", TextCopy + " 2"}, order.titles())
	assert.Len(t, events.ofType(hardware.EventPrintDialogShown), 1)
}

func TestFinalizeOperation_RecordsSaleData(t *testing.T) {
	rates := []driver.TaxRate{{Group: "B", Rate: decimal.NewFromInt(20)}}
	sdc := &fakeSalesData{rates: rates}
	o := newTestOrchestrator(t, &fakeDevices{salesData: sdc}, &fakeStore{}, nil, nil, Settings{
		VATGroups: []model.VATGroup{{Code: "B", Rate: decimal.NewFromInt(20)}},
	})

	err := o.FinalizeOperation(context.Background(), &Options{
		Sale:    testSale(),
		Actions: ActionCommitSale | ActionCollectSaleData,
	})

	require.NoError(t, err)
	require.Len(t, sdc.records, 1)
	assert.Equal(t, int64(1), sdc.records[0].SaleNumber)
	assert.True(t, decimal.NewFromInt(9).Equal(sdc.records[0].Total))
	require.Len(t, sdc.records[0].Payments, 1)
	assert.Equal(t, model.PaymentTypeCash, sdc.records[0].Payments[0].Type)
}

func TestFinalizeOperation_DeltaSalePrintsOnlyNewLines(t *testing.T) {
	grill, grillPrinter := kitchenPrinter("grill")
	o := newTestOrchestrator(t, &fakeDevices{kitchen: []hardware.KitchenPrinter{grill}}, &fakeStore{}, nil, nil, Settings{})

	sale := testSale()
	delta := sale.WithDetails(sale.Details[1:])
	err := o.FinalizeOperation(context.Background(), &Options{
		Sale:             sale,
		KitchenDeltaSale: delta,
		Actions:          ActionPrintKitchen,
	})

	require.NoError(t, err)
	require.Len(t, grillPrinter.receipts, 1)
	assert.Len(t, grillPrinter.receipts[0].Lines, 1)
}

func TestCompareTaxRates(t *testing.T) {
	configured := []model.VATGroup{
		{Code: "A", Rate: decimal.Zero},
		{Code: "B", Rate: decimal.NewFromInt(20)},
	}

	assert.NoError(t, compareTaxRates(configured, []driver.TaxRate{
		{Group: "A", Rate: decimal.Zero},
		{Group: "B", Rate: decimal.RequireFromString("20.00")},
		{Group: "C", Rate: decimal.NewFromInt(9)},
	}))
	assert.Error(t, compareTaxRates(configured, []driver.TaxRate{{Group: "B", Rate: decimal.NewFromInt(20)}}))
	assert.Error(t, compareTaxRates(configured, []driver.TaxRate{
		{Group: "A", Rate: decimal.Zero},
		{Group: "B", Rate: decimal.NewFromInt(9)},
	}))
}

func TestParseActions(t *testing.T) {
	a, err := ParseActions([]string{"commit_sale", "print_kitchen"})
	require.NoError(t, err)
	assert.True(t, a.Has(ActionCommitSale))
	assert.True(t, a.Has(ActionPrintKitchen))
	assert.False(t, a.Has(ActionPrintCashReceipt))
	assert.Equal(t, "commit_sale|print_kitchen", a.String())

	_, err = ParseActions([]string{"print_everything"})
	assert.Error(t, err)
}

func TestOptionsClone(t *testing.T) {
	opts := &Options{Sale: testSale(), Actions: ActionCommitSale}
	c := opts.Clone()
	c.Sale.Details[0].ItemName = "Changed"

	assert.Equal(t, "Soup", opts.Sale.Details[0].ItemName)
	assert.Equal(t, opts.Actions, c.Actions)
}
