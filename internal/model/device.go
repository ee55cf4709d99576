// internal/model/device.go
package model

import (
	"strings"

	"github.com/google/uuid"
)

// DeviceRole is a bit set of the functions a configured device performs
type DeviceRole uint32

const (
	RolePrintCashReceipt DeviceRole = 1 << iota
	RolePrintCustomerOrder
	RolePrintKitchenOrder
	RoleExternalDisplay
	RoleReadCard
	RoleMeasureWeight
	RoleCollectSalesData
	RoleScanBarcode
)

var roleNames = []struct {
	role DeviceRole
	name string
}{
	{RolePrintCashReceipt, "cash_receipt_printer"},
	{RolePrintCustomerOrder, "customer_order_printer"},
	{RolePrintKitchenOrder, "kitchen_printer"},
	{RoleExternalDisplay, "external_display"},
	{RoleReadCard, "card_reader"},
	{RoleMeasureWeight, "electronic_scale"},
	{RoleCollectSalesData, "sales_data_controller"},
	{RoleScanBarcode, "barcode_scanner"},
}

// AllRoles returns every role in declaration order
func AllRoles() []DeviceRole {
	roles := make([]DeviceRole, len(roleNames))
	for i, rn := range roleNames {
		roles[i] = rn.role
	}
	return roles
}

// Has reports whether every bit of other is set
func (r DeviceRole) Has(other DeviceRole) bool {
	return other != 0 && r&other == other
}

// String returns the role names joined with '|'
func (r DeviceRole) String() string {
	var names []string
	for _, rn := range roleNames {
		if r&rn.role != 0 {
			names = append(names, rn.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// ParseDeviceRole maps a single role name to its flag
func ParseDeviceRole(name string) (DeviceRole, bool) {
	for _, rn := range roleNames {
		if rn.name == name {
			return rn.role, true
		}
	}
	return 0, false
}

// SerialConfig holds the line parameters used when the port is a serial device
type SerialConfig struct {
	BaudRate int    `json:"baud_rate" mapstructure:"baud_rate"`
	DataBits int    `json:"data_bits" mapstructure:"data_bits"`
	StopBits int    `json:"stop_bits" mapstructure:"stop_bits"`
	Parity   string `json:"parity" mapstructure:"parity"`
}

// Device is a configured peripheral. The hardware layer only reads it.
type Device struct {
	ID         uuid.UUID    `json:"id" db:"id"`
	Name       string       `json:"name" db:"name"`
	Roles      DeviceRole   `json:"roles" db:"roles"`
	DriverType string       `json:"driver_type" db:"driver_type"`
	Port       string       `json:"port" db:"port"`
	Serial     SerialConfig `json:"serial" db:"-"`
	Enabled    bool         `json:"enabled" db:"enabled"`

	// ItemGroups restricts a kitchen printer to sale lines of these item groups.
	// Empty means every line.
	ItemGroups []string `json:"item_groups,omitempty" db:"item_groups"`
}

// NormalizedPort returns the port assignment used as the registry key.
// Windows COM names and tcp:// or usb:// addresses are case-insensitive;
// other schemes fold only the scheme. Unix device paths keep their case.
func (d *Device) NormalizedPort() string {
	port := strings.TrimSpace(d.Port)

	if scheme, rest, ok := strings.Cut(port, "://"); ok {
		scheme = strings.ToLower(scheme)
		if scheme == "tcp" || scheme == "usb" {
			rest = strings.ToLower(rest)
		}
		return scheme + "://" + rest
	}

	if isCOMPort(port) {
		return strings.ToUpper(port)
	}
	return port
}

// isCOMPort matches COMn and \\.\COMn
func isCOMPort(port string) bool {
	name := strings.TrimPrefix(port, `\\.\`)
	if len(name) < 4 || !strings.EqualFold(name[:3], "com") {
		return false
	}
	for _, c := range name[3:] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// UsesSerialTransport reports whether the port names a serial device rather
// than a tcp:// or usb:// address
func (d *Device) UsesSerialTransport() bool {
	return !strings.Contains(d.Port, "://")
}

// AcceptsItemGroup reports whether a kitchen printer prints lines of the given group
func (d *Device) AcceptsItemGroup(group string) bool {
	if len(d.ItemGroups) == 0 {
		return true
	}
	for _, g := range d.ItemGroups {
		if strings.EqualFold(g, group) {
			return true
		}
	}
	return false
}
