package virtual

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pos-device-service/internal/model"
	"pos-device-service/pkg/driver"
)

func testDevice(role model.DeviceRole) *model.Device {
	return &model.Device{ID: uuid.New(), Name: "virtual", Roles: role, Port: "VIRTUAL", Enabled: true}
}

func testRates() []driver.TaxRate {
	return []driver.TaxRate{
		{Group: "A", Rate: decimal.Zero},
		{Group: "B", Rate: decimal.NewFromInt(20)},
	}
}

func connectedFiscal(t *testing.T) *FiscalPrinter {
	t.Helper()
	p := NewFiscalPrinter(nil, testRates(), zap.NewNop())
	require.NoError(t, p.Connect(context.Background(), testDevice(model.RolePrintCashReceipt)))
	return p
}

func TestFiscalPrinter_Receipt(t *testing.T) {
	ctx := context.Background()
	p := connectedFiscal(t)

	require.NoError(t, p.OpenFiscalReceipt(ctx, &driver.FiscalHeader{SaleNumber: 7, Operator: "anna"}))
	require.NoError(t, p.AddItem(ctx, &driver.FiscalItem{
		Name: "Soup", Quantity: decimal.NewFromInt(2), Price: decimal.RequireFromString("3.50"),
		Discount: decimal.Zero, VATGroup: "B",
	}))
	require.NoError(t, p.AddItem(ctx, &driver.FiscalItem{
		Name: "Beer", Quantity: decimal.NewFromInt(1), Price: decimal.NewFromInt(2),
		Discount: decimal.RequireFromString("0.50"), VATGroup: "A",
	}))
	require.NoError(t, p.AddPayment(ctx, &driver.FiscalPayment{Type: model.PaymentTypeCard, Amount: decimal.NewFromInt(5)}))
	require.NoError(t, p.AddPayment(ctx, &driver.FiscalPayment{Type: model.PaymentTypeCash, Amount: decimal.NewFromInt(5)}))
	require.NoError(t, p.PrintBarcode(ctx, "000000000007"))
	require.NoError(t, p.CloseFiscalReceipt(ctx))

	receipts := p.Receipts()
	require.Len(t, receipts, 1)
	assert.Equal(t, int64(1), receipts[0].Number)
	assert.Equal(t, int64(7), receipts[0].Header.SaleNumber)
	assert.Equal(t, "8.5", receipts[0].Total.String())
	assert.Equal(t, "000000000007", receipts[0].Barcode)
}

func TestFiscalPrinter_Errors(t *testing.T) {
	ctx := context.Background()
	p := connectedFiscal(t)

	assert.ErrorIs(t, p.AddItem(ctx, &driver.FiscalItem{VATGroup: "A"}), ErrNoReceipt)

	require.NoError(t, p.OpenFiscalReceipt(ctx, &driver.FiscalHeader{}))
	assert.ErrorIs(t, p.OpenFiscalReceipt(ctx, &driver.FiscalHeader{}), ErrReceiptOpen)
	assert.ErrorIs(t, p.AddItem(ctx, &driver.FiscalItem{
		Quantity: decimal.NewFromInt(1), Price: decimal.NewFromInt(1), VATGroup: "Z",
	}), ErrUnknownTaxGroup)

	require.NoError(t, p.AddItem(ctx, &driver.FiscalItem{
		Quantity: decimal.NewFromInt(1), Price: decimal.NewFromInt(10), VATGroup: "B",
	}))
	require.NoError(t, p.AddPayment(ctx, &driver.FiscalPayment{Type: model.PaymentTypeCash, Amount: decimal.NewFromInt(4)}))
	assert.ErrorIs(t, p.CloseFiscalReceipt(ctx), ErrInsufficientFunds)

	state, err := p.Status(ctx)
	require.NoError(t, err)
	assert.True(t, state.HasWarnings())
}

func TestFiscalPrinter_SettlesInCashWithoutPayments(t *testing.T) {
	ctx := context.Background()
	p := connectedFiscal(t)

	require.NoError(t, p.OpenFiscalReceipt(ctx, &driver.FiscalHeader{}))
	require.NoError(t, p.AddItem(ctx, &driver.FiscalItem{
		Quantity: decimal.NewFromInt(1), Price: decimal.NewFromInt(3), VATGroup: "A",
	}))
	require.NoError(t, p.CloseFiscalReceipt(ctx))

	receipts := p.Receipts()
	require.Len(t, receipts, 1)
	require.Len(t, receipts[0].Payments, 1)
	assert.Equal(t, model.PaymentTypeCash, receipts[0].Payments[0].Type)
}

func TestFiscalPrinter_RequiresConnection(t *testing.T) {
	ctx := context.Background()
	p := NewFiscalPrinter(nil, testRates(), zap.NewNop())

	_, err := p.TaxRates(ctx)
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.ErrorIs(t, p.Ping(ctx), ErrNotConnected)

	require.NoError(t, p.Connect(ctx, testDevice(model.RolePrintCashReceipt)))
	rates, err := p.TaxRates(ctx)
	require.NoError(t, err)
	assert.Len(t, rates, 2)

	require.NoError(t, p.Disconnect(ctx))
	assert.False(t, p.Connected())
}

func TestPrinter_Journal(t *testing.T) {
	ctx := context.Background()
	p := NewPrinter(nil, zap.NewNop())
	require.NoError(t, p.Connect(ctx, testDevice(model.RolePrintKitchenOrder)))

	for i := 0; i < journalSize+5; i++ {
		require.NoError(t, p.PrintKitchenReceipt(ctx, &driver.Receipt{Title: "KITCHEN ORDER"}))
	}
	require.NoError(t, p.PrintReceipt(ctx, &driver.Receipt{Title: "CUSTOMER ORDER"}))

	printed := p.Printed()
	assert.Len(t, printed, journalSize)
	assert.Equal(t, "CUSTOMER ORDER", printed[len(printed)-1].Title)
	assert.True(t, p.Info().Supports(driver.CmdPrintKitchen))
}

func TestDisplay_Lines(t *testing.T) {
	ctx := context.Background()
	d := NewDisplay(nil, zap.NewNop())
	require.NoError(t, d.Connect(ctx, testDevice(model.RoleExternalDisplay)))

	require.NoError(t, d.DisplayLines(ctx, "TOTAL", "9.00"))
	upper, lower := d.Lines()
	assert.Equal(t, "TOTAL", upper)
	assert.Equal(t, "9.00", lower)

	require.NoError(t, d.ClearDisplay(ctx))
	upper, lower = d.Lines()
	assert.Empty(t, upper)
	assert.Empty(t, lower)
}

func TestInputDevices_Inject(t *testing.T) {
	ctx := context.Background()

	reader := NewCardReader(nil, zap.NewNop())
	var card string
	reader.SetCardListener(func(id string) { card = id })
	assert.ErrorIs(t, reader.Inject("CARD-1"), ErrNotConnected)

	require.NoError(t, reader.Connect(ctx, testDevice(model.RoleReadCard)))
	require.NoError(t, reader.Inject(" CARD-1 "))
	assert.Equal(t, "CARD-1", card)
	assert.Error(t, reader.Inject("  "))

	scanner := NewBarcodeScanner(nil, zap.NewNop())
	var code string
	scanner.SetBarcodeListener(func(c string) { code = c })
	require.NoError(t, scanner.Connect(ctx, testDevice(model.RoleScanBarcode)))
	require.NoError(t, scanner.Inject("4006381333931"))
	assert.Equal(t, "4006381333931", code)
}

func TestScale_ReadWeight(t *testing.T) {
	ctx := context.Background()
	s := NewScale(nil, zap.NewNop())
	require.NoError(t, s.Connect(ctx, testDevice(model.RoleMeasureWeight)))

	require.NoError(t, s.Inject("1.250"))
	w, err := s.ReadWeight(ctx)
	require.NoError(t, err)
	assert.True(t, w.Equal(decimal.RequireFromString("1.25")))

	assert.Error(t, s.Inject("-1"))
	assert.Error(t, s.Inject("heavy"))
}

func TestSalesData_RecordSale(t *testing.T) {
	ctx := context.Background()
	c := NewSalesData(nil, testRates(), zap.NewNop())
	require.NoError(t, c.Connect(ctx, testDevice(model.RoleCollectSalesData)))

	require.NoError(t, c.RecordSale(ctx, &driver.SaleRecord{SaleNumber: 3, Total: decimal.NewFromInt(9)}))
	records := c.Records()
	require.Len(t, records, 1)
	assert.Equal(t, int64(3), records[0].SaleNumber)

	rates, err := c.TaxRates(ctx)
	require.NoError(t, err)
	assert.Equal(t, "B", rates[1].Group)
}
