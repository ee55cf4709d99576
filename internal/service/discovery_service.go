// internal/service/discovery_service.go
package service

import (
	"context"

	"go.uber.org/zap"

	"pos-device-service/internal/config"
	"pos-device-service/internal/discovery"
	"pos-device-service/internal/discovery/serial"
	"pos-device-service/internal/discovery/tcp"
	"pos-device-service/internal/discovery/usb"
	"pos-device-service/internal/utils"
)

// DiscoveryService lists the ports devices can be assigned to
type DiscoveryService struct {
	scannerManager *discovery.ScannerManager
	config         *config.DiscoveryConfig
	logger         *utils.ServiceLogger
}

// NewDiscoveryService creates a new discovery service with the configured
// scanners registered
func NewDiscoveryService(cfg *config.DiscoveryConfig, logger *zap.Logger) *DiscoveryService {
	ds := &DiscoveryService{
		scannerManager: discovery.NewScannerManager(logger),
		config:         cfg,
		logger:         utils.NewServiceLogger(logger, "discovery-service"),
	}
	ds.initializeScanners(logger)
	return ds
}

// initializeScanners registers the scanners enabled in the configuration
func (ds *DiscoveryService) initializeScanners(logger *zap.Logger) {
	if ds.config.SerialEnabled {
		ds.scannerManager.RegisterScanner(serial.NewScanner(logger))
	}
	if ds.config.USBEnabled {
		ds.scannerManager.RegisterScanner(usb.NewScanner(logger))
	}
	if len(ds.config.TCPHosts) > 0 {
		ds.scannerManager.RegisterScanner(tcp.NewScanner(logger, &tcp.Config{
			Hosts:       ds.config.TCPHosts,
			CommonPorts: ds.config.TCPPorts,
			ConnTimeout: ds.config.TCPTimeout,
		}))
	}
}

// ScanPorts runs one scanner, or all of them when scanType is empty or "all"
func (ds *DiscoveryService) ScanPorts(ctx context.Context, scanType string) ([]*discovery.DiscoveredPort, error) {
	if scanType == "" || scanType == "all" {
		return ds.scannerManager.ScanAll(ctx), nil
	}
	return ds.scannerManager.ScanByType(ctx, scanType)
}

// Scanners returns the available scanner types
func (ds *DiscoveryService) Scanners() []string {
	scanners := ds.scannerManager.AvailableScanners()
	if scanners == nil {
		scanners = []string{}
	}
	return scanners
}
