package driver

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pos-device-service/internal/driver/escpos"
	"pos-device-service/internal/driver/virtual"
	"pos-device-service/internal/model"
	"pos-device-service/internal/protocol"
	"pos-device-service/pkg/driver"
)

func testEnvironment() *Environment {
	logger := zap.NewNop()
	return &Environment{
		Transports:   protocol.NewFactory(protocol.DefaultTimeouts(), logger),
		CodePage:     "cp850",
		ReceiptWidth: 48,
		TaxRates:     []driver.TaxRate{{Group: "B", Rate: decimal.NewFromInt(20)}},
		Logger:       logger,
	}
}

func testDevice(driverType string) *model.Device {
	return &model.Device{
		ID:         uuid.New(),
		Name:       "till",
		Roles:      model.RolePrintCashReceipt,
		DriverType: driverType,
		Port:       "tcp://127.0.0.1:9100",
		Enabled:    true,
	}
}

func TestRegistry_CreateSharesInfo(t *testing.T) {
	r := NewRegistry(testEnvironment(), zap.NewNop())
	RegisterDefaultDrivers(r, zap.NewNop())

	first, err := r.Create("VIRTUAL-FISCAL", testDevice("virtual-fiscal"))
	require.NoError(t, err)
	second, err := r.Create("virtual-fiscal", testDevice("virtual-fiscal"))
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Same(t, first.Info(), second.Info())

	info, ok := r.Info("virtual-fiscal")
	require.True(t, ok)
	assert.Same(t, info, first.Info())
}

func TestRegistry_CreateUnknown(t *testing.T) {
	r := NewRegistry(testEnvironment(), zap.NewNop())

	_, err := r.Create("star-tsp", testDevice("star-tsp"))
	assert.ErrorIs(t, err, ErrDriverNotFound)
	assert.False(t, r.IsSupported("star-tsp"))
}

func TestRegistry_ListDriversSorted(t *testing.T) {
	r := NewRegistry(testEnvironment(), zap.NewNop())
	RegisterDefaultDrivers(r, zap.NewNop())

	infos := r.ListDrivers()
	require.Len(t, infos, 8)
	for i := 1; i < len(infos); i++ {
		assert.Less(t, infos[i-1].Type, infos[i].Type)
	}
	assert.True(t, r.IsSupported("escpos"))
}

func TestRegistry_RegisterCopiesInfo(t *testing.T) {
	r := NewRegistry(testEnvironment(), zap.NewNop())
	info := driver.DriverInfo{Type: "custom", Commands: []driver.Command{driver.CmdPing}}
	r.Register(info, func(info *driver.DriverInfo, _ *model.Device, env *Environment) (driver.Driver, error) {
		return virtual.NewPrinter(info, env.Logger), nil
	})
	info.Commands[0] = driver.CmdCutPaper

	cached, ok := r.Info("custom")
	require.True(t, ok)
	assert.True(t, cached.Supports(driver.CmdPing))
}

func TestDefaultDrivers_Environment(t *testing.T) {
	r := NewRegistry(testEnvironment(), zap.NewNop())
	RegisterDefaultDrivers(r, zap.NewNop())

	drv, err := r.Create("escpos", testDevice("escpos"))
	require.NoError(t, err)
	assert.IsType(t, &escpos.Printer{}, drv)

	drv, err = r.Create("virtual-fiscal", testDevice("virtual-fiscal"))
	require.NoError(t, err)
	fiscal, ok := drv.(driver.CashReceiptPrinter)
	require.True(t, ok)

	ctx := context.Background()
	require.NoError(t, fiscal.Connect(ctx, testDevice("virtual-fiscal")))
	rates, err := fiscal.TaxRates(ctx)
	require.NoError(t, err)
	require.Len(t, rates, 1)
	assert.Equal(t, "B", rates[0].Group)
}

func TestDefaultDrivers_BadCodePage(t *testing.T) {
	env := testEnvironment()
	env.CodePage = "klingon"
	r := NewRegistry(env, zap.NewNop())
	RegisterDefaultDrivers(r, zap.NewNop())

	_, err := r.Create("escpos", testDevice("escpos"))
	assert.Error(t, err)
}
