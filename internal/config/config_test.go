package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pos-device-service/internal/model"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o600))
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "app:\n  name: till\n"))
	require.NoError(t, err)

	assert.Equal(t, "till", cfg.App.Name)
	assert.Equal(t, "database", cfg.Hardware.DeviceSource)
	assert.Equal(t, 3, cfg.Hardware.RetryAttempts)
	assert.Equal(t, 2*time.Second, cfg.Hardware.RetryDelay)
	assert.True(t, cfg.Hardware.KitchenFallback)
	assert.Equal(t, 3*time.Second, cfg.Worker.PollInterval)
	assert.Equal(t, 42, cfg.Fiscal.ReceiptWidth)
	assert.Equal(t, []int{9100}, cfg.Discovery.TCPPorts)
	assert.Equal(t, "0.0.0.0:8084", cfg.GetServerAddr())
}

func TestLoad_Devices(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
hardware:
  device_source: config
  devices:
    - name: till
      roles: [cash_receipt_printer, external_display]
      driver: virtual-fiscal
      port: virtual://till
      enabled: true
    - name: grill
      roles: [kitchen_printer]
      driver: escpos
      port: COM3
      serial:
        baud_rate: 19200
      item_groups: [grill]
fiscal:
  vat_groups:
    - code: A
      rate: "20"
`))
	require.NoError(t, err)

	devices, err := cfg.Hardware.ToDevices()
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.True(t, devices[0].Roles.Has(model.RolePrintCashReceipt|model.RoleExternalDisplay))
	assert.Equal(t, 19200, devices[1].Serial.BaudRate)
	assert.Equal(t, []string{"grill"}, devices[1].ItemGroups)

	again, err := cfg.Hardware.Devices[0].ToDevice()
	require.NoError(t, err)
	assert.Equal(t, devices[0].ID, again.ID)

	groups, err := cfg.Fiscal.ParseVATGroups()
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.True(t, decimal.NewFromInt(20).Equal(groups[0].Rate))
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"device source", "hardware:\n  device_source: ftp\n"},
		{"unknown role", "hardware:\n  devices:\n    - {name: a, roles: [toaster], driver: escpos, port: COM1}\n"},
		{"missing port", "hardware:\n  devices:\n    - {name: a, roles: [kitchen_printer], driver: escpos}\n"},
		{"vat rate", "fiscal:\n  vat_groups:\n    - {code: A, rate: abc}\n"},
		{"invoice copies", "fiscal:\n  invoice_copies: -1\n"},
		{"environment", "app:\n  environment: moon\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: 5433, User: "pos", Password: "secret", DBName: "till", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5433 user=pos password=secret dbname=till sslmode=disable", c.DSN())
}
