// internal/discovery/usb/scanner.go
package usb

import (
	"context"
	"fmt"
	"runtime"
	"sort"

	"github.com/google/gousb"
	"go.uber.org/zap"

	"pos-device-service/internal/discovery"
)

// Scanner lists USB devices that look like POS peripherals. Devices are
// identified from their descriptors and never opened.
type Scanner struct {
	logger       *zap.Logger
	knownVendors *VendorDatabase

	// enumerate walks the device descriptors; tests replace it
	enumerate func(visit func(desc *gousb.DeviceDesc)) error
}

// NewScanner creates a new USB scanner
func NewScanner(logger *zap.Logger) *Scanner {
	return &Scanner{
		logger:       logger.With(zap.String("scanner", "usb")),
		knownVendors: NewVendorDatabase(),
		enumerate:    enumerateLibUSB,
	}
}

func enumerateLibUSB(visit func(desc *gousb.DeviceDesc)) error {
	usbCtx := gousb.NewContext()
	defer usbCtx.Close()

	_, err := usbCtx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		visit(desc)
		return false
	})
	return err
}

// ScannerType returns scanner type identifier
func (s *Scanner) ScannerType() string {
	return "usb"
}

// IsAvailable checks if USB scanning is supported on this system
func (s *Scanner) IsAvailable() bool {
	switch runtime.GOOS {
	case "linux", "darwin", "windows":
		return true
	default:
		return false
	}
}

// Scan performs USB device discovery
func (s *Scanner) Scan(ctx context.Context) ([]*discovery.DiscoveredPort, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var ports []*discovery.DiscoveredPort
	err := s.enumerate(func(desc *gousb.DeviceDesc) {
		if !s.shouldExamineDevice(desc) {
			return
		}
		ports = append(ports, s.describe(desc))
	})
	if err != nil && len(ports) == 0 {
		return nil, fmt.Errorf("failed to enumerate USB devices: %w", err)
	}
	if err != nil {
		s.logger.Warn("USB enumeration incomplete", zap.Error(err))
	}

	sort.Slice(ports, func(i, j int) bool { return ports[i].Port < ports[j].Port })
	return ports, nil
}

// shouldExamineDevice accepts known vendors and printer-class interfaces
func (s *Scanner) shouldExamineDevice(desc *gousb.DeviceDesc) bool {
	if s.knownVendors.IsKnownVendor(desc.Vendor) {
		return true
	}
	if desc.Class == gousb.ClassPrinter {
		return true
	}
	for _, cfg := range desc.Configs {
		for _, intf := range cfg.Interfaces {
			for _, alt := range intf.AltSettings {
				if alt.Class == gousb.ClassPrinter {
					return true
				}
			}
		}
	}
	return false
}

func (s *Scanner) describe(desc *gousb.DeviceDesc) *discovery.DiscoveredPort {
	vendor := s.knownVendors.VendorName(desc.Vendor)
	return &discovery.DiscoveredPort{
		Port:        fmt.Sprintf("usb://%s:%s", desc.Vendor, desc.Product),
		Transport:   "usb",
		Description: fmt.Sprintf("bus %d address %d", desc.Bus, desc.Address),
		Vendor:      vendor,
		VendorID:    desc.Vendor.String(),
		ProductID:   desc.Product.String(),
	}
}
