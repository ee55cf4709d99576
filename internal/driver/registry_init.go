// internal/driver/registry_init.go
package driver

import (
	"go.uber.org/zap"

	"pos-device-service/internal/driver/escpos"
	"pos-device-service/internal/driver/virtual"
	"pos-device-service/internal/model"
	"pos-device-service/pkg/driver"
)

// RegisterDefaultDrivers registers all default device drivers
func RegisterDefaultDrivers(registry *Registry, logger *zap.Logger) {
	registerESCPOSDrivers(registry)
	registerVirtualDrivers(registry)

	logger.Info("Default drivers registered",
		zap.Int("drivers", len(registry.ListDrivers())),
	)
}

// registerESCPOSDrivers registers the ESC/POS printer family
func registerESCPOSDrivers(registry *Registry) {
	registry.Register(escpos.Info, func(info *driver.DriverInfo, device *model.Device, env *Environment) (driver.Driver, error) {
		options := escpos.DefaultOptions()
		if env.CodePage != "" {
			options.CodePage = env.CodePage
		}
		if env.ReceiptWidth > 0 {
			options.Width = env.ReceiptWidth
		}
		return escpos.New(info, device, env.Transports, options, env.Logger)
	})
}

// registerVirtualDrivers registers the simulated device family
func registerVirtualDrivers(registry *Registry) {
	registry.Register(virtual.FiscalPrinterInfo, func(info *driver.DriverInfo, _ *model.Device, env *Environment) (driver.Driver, error) {
		return virtual.NewFiscalPrinter(info, env.TaxRates, env.Logger), nil
	})
	registry.Register(virtual.PrinterInfo, func(info *driver.DriverInfo, _ *model.Device, env *Environment) (driver.Driver, error) {
		return virtual.NewPrinter(info, env.Logger), nil
	})
	registry.Register(virtual.DisplayInfo, func(info *driver.DriverInfo, _ *model.Device, env *Environment) (driver.Driver, error) {
		return virtual.NewDisplay(info, env.Logger), nil
	})
	registry.Register(virtual.CardReaderInfo, func(info *driver.DriverInfo, _ *model.Device, env *Environment) (driver.Driver, error) {
		return virtual.NewCardReader(info, env.Logger), nil
	})
	registry.Register(virtual.ScaleInfo, func(info *driver.DriverInfo, _ *model.Device, env *Environment) (driver.Driver, error) {
		return virtual.NewScale(info, env.Logger), nil
	})
	registry.Register(virtual.SalesDataInfo, func(info *driver.DriverInfo, _ *model.Device, env *Environment) (driver.Driver, error) {
		return virtual.NewSalesData(info, env.TaxRates, env.Logger), nil
	})
	registry.Register(virtual.BarcodeScannerInfo, func(info *driver.DriverInfo, _ *model.Device, env *Environment) (driver.Driver, error) {
		return virtual.NewBarcodeScanner(info, env.Logger), nil
	})
}
