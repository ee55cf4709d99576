// internal/discovery/serial/scanner.go
package serial

import (
	"context"
	"fmt"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
	"go.uber.org/zap"

	"pos-device-service/internal/discovery"
)

// Scanner lists the serial ports of the host
type Scanner struct {
	logger *zap.Logger

	// detailed and plain are the enumeration sources; tests replace them
	detailed func() ([]*enumerator.PortDetails, error)
	plain    func() ([]string, error)
}

// NewScanner creates a new serial scanner
func NewScanner(logger *zap.Logger) *Scanner {
	return &Scanner{
		logger:   logger.With(zap.String("scanner", "serial")),
		detailed: enumerator.GetDetailedPortsList,
		plain:    serial.GetPortsList,
	}
}

// ScannerType returns scanner type
func (s *Scanner) ScannerType() string {
	return "serial"
}

// IsAvailable checks if serial scanning is available
func (s *Scanner) IsAvailable() bool {
	return true
}

// Scan lists the serial ports. Detailed enumeration falls back to the plain
// port list; when both fail the error is returned.
func (s *Scanner) Scan(ctx context.Context) ([]*discovery.DiscoveredPort, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	details, err := s.detailed()
	if err == nil {
		return fromDetails(details), nil
	}
	s.logger.Debug("Detailed serial enumeration failed", zap.Error(err))

	names, err := s.plain()
	if err != nil {
		return nil, fmt.Errorf("failed to get serial ports: %w", err)
	}
	ports := make([]*discovery.DiscoveredPort, 0, len(names))
	for _, name := range names {
		ports = append(ports, &discovery.DiscoveredPort{Port: name, Transport: "serial"})
	}
	return ports, nil
}

func fromDetails(details []*enumerator.PortDetails) []*discovery.DiscoveredPort {
	ports := make([]*discovery.DiscoveredPort, 0, len(details))
	for _, d := range details {
		port := &discovery.DiscoveredPort{
			Port:        d.Name,
			Transport:   "serial",
			Description: d.Product,
		}
		if d.IsUSB {
			port.VendorID = d.VID
			port.ProductID = d.PID
			port.SerialNumber = d.SerialNumber
			if port.Description == "" {
				port.Description = "USB serial adapter"
			}
		}
		ports = append(ports, port)
	}
	return ports
}
