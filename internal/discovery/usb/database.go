// internal/discovery/usb/database.go
package usb

import "github.com/google/gousb"

// VendorDatabase names the vendors of known POS peripherals
type VendorDatabase struct {
	vendors map[gousb.ID]string
}

// NewVendorDatabase creates the database of known POS vendors
func NewVendorDatabase() *VendorDatabase {
	return &VendorDatabase{
		vendors: map[gousb.ID]string{
			0x04B8: "Seiko Epson Corporation",
			0x0519: "Star Micronics Co., Ltd.",
			0x1CBE: "Citizen Systems Japan Co., Ltd.",
			0x1504: "BIXOLON Co., Ltd.",
			0x0DD4: "Custom Engineering SPA",
			0x0FE6: "ICS Advent (generic ESC/POS)",
			0x0C2E: "Honeywell (Metrologic) scanners",
			0x05E0: "Zebra (Symbol) scanners",
		},
	}
}

// IsKnownVendor checks if a vendor ID is in the database
func (db *VendorDatabase) IsKnownVendor(vendorID gousb.ID) bool {
	_, exists := db.vendors[vendorID]
	return exists
}

// VendorName returns the vendor name, empty when unknown
func (db *VendorDatabase) VendorName(vendorID gousb.ID) string {
	return db.vendors[vendorID]
}

// AddVendor adds a vendor to the database
func (db *VendorDatabase) AddVendor(vendorID gousb.ID, name string) {
	db.vendors[vendorID] = name
}
