// internal/discovery/scanner.go
package discovery

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// PortScanner lists the ports a device can be assigned to
type PortScanner interface {
	Scan(ctx context.Context) ([]*DiscoveredPort, error)
	ScannerType() string
	IsAvailable() bool
}

// DiscoveredPort is a candidate port assignment. Port is usable as the port
// of a configured device.
type DiscoveredPort struct {
	Port         string `json:"port"`
	Transport    string `json:"transport"`
	Description  string `json:"description,omitempty"`
	Vendor       string `json:"vendor,omitempty"`
	VendorID     string `json:"vendor_id,omitempty"`
	ProductID    string `json:"product_id,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
}

// ScannerManager manages all port scanners
type ScannerManager struct {
	mu       sync.RWMutex
	scanners map[string]PortScanner
	logger   *zap.Logger
}

// NewScannerManager creates a new scanner manager
func NewScannerManager(logger *zap.Logger) *ScannerManager {
	return &ScannerManager{
		scanners: make(map[string]PortScanner),
		logger:   logger.With(zap.String("component", "discovery")),
	}
}

// RegisterScanner registers a port scanner
func (sm *ScannerManager) RegisterScanner(scanner PortScanner) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	scannerType := scanner.ScannerType()
	sm.scanners[scannerType] = scanner
	sm.logger.Info("Scanner registered", zap.String("type", scannerType))
}

// ScanAll runs every available scanner. A failing scanner contributes no
// ports; the result is never nil.
func (sm *ScannerManager) ScanAll(ctx context.Context) []*DiscoveredPort {
	all := []*DiscoveredPort{}

	for _, scannerType := range sm.scannerTypes() {
		ports, err := sm.scan(ctx, scannerType)
		if err != nil {
			sm.logger.Warn("Scanner failed", zap.String("type", scannerType), zap.Error(err))
			continue
		}
		all = append(all, ports...)
	}
	return all
}

// ScanByType runs one scanner. Scan failures degrade to an empty list.
func (sm *ScannerManager) ScanByType(ctx context.Context, scannerType string) ([]*DiscoveredPort, error) {
	sm.mu.RLock()
	_, exists := sm.scanners[scannerType]
	sm.mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("scanner type not found: %s", scannerType)
	}

	ports, err := sm.scan(ctx, scannerType)
	if err != nil {
		sm.logger.Warn("Scanner failed", zap.String("type", scannerType), zap.Error(err))
		return []*DiscoveredPort{}, nil
	}
	return ports, nil
}

func (sm *ScannerManager) scan(ctx context.Context, scannerType string) ([]*DiscoveredPort, error) {
	sm.mu.RLock()
	scanner := sm.scanners[scannerType]
	sm.mu.RUnlock()

	if !scanner.IsAvailable() {
		sm.logger.Debug("Scanner not available, skipping", zap.String("type", scannerType))
		return []*DiscoveredPort{}, nil
	}

	ports, err := scanner.Scan(ctx)
	if err != nil {
		return nil, err
	}
	sm.logger.Info("Scanner completed",
		zap.String("type", scannerType),
		zap.Int("ports_found", len(ports)),
	)
	if ports == nil {
		ports = []*DiscoveredPort{}
	}
	return ports, nil
}

// AvailableScanners returns the available scanner types in order
func (sm *ScannerManager) AvailableScanners() []string {
	var available []string
	for _, scannerType := range sm.scannerTypes() {
		sm.mu.RLock()
		scanner := sm.scanners[scannerType]
		sm.mu.RUnlock()
		if scanner.IsAvailable() {
			available = append(available, scannerType)
		}
	}
	return available
}

func (sm *ScannerManager) scannerTypes() []string {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	types := make([]string, 0, len(sm.scanners))
	for scannerType := range sm.scanners {
		types = append(types, scannerType)
	}
	sort.Strings(types)
	return types
}
