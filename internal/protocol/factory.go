// internal/protocol/factory.go
package protocol

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"pos-device-service/internal/model"
	"pos-device-service/pkg/driver"
)

// Factory creates transports for devices
type Factory struct {
	timeouts Timeouts
	logger   *zap.Logger
}

// NewFactory creates a transport factory
func NewFactory(timeouts Timeouts, logger *zap.Logger) *Factory {
	return &Factory{timeouts: timeouts, logger: logger}
}

// Create builds an unopened transport for the device's port assignment
func (f *Factory) Create(device *model.Device) (DeviceProtocol, error) {
	addr, err := ParseAddress(device.Port)
	if err != nil {
		return nil, err
	}

	switch addr.Kind {
	case TransportTCP:
		return f.createTCPProtocol(addr), nil
	case TransportUSB:
		return f.createUSBProtocol(addr), nil
	default:
		return f.createSerialProtocol(addr, device.Serial), nil
	}
}

// Dial creates and opens the transport of a device
func (f *Factory) Dial(ctx context.Context, device *model.Device) (DeviceProtocol, error) {
	p, err := f.Create(device)
	if err != nil {
		return nil, fmt.Errorf("device %s: %w", device.Name, err)
	}
	if err := p.Open(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

// createSerialProtocol creates a serial protocol
func (f *Factory) createSerialProtocol(addr *Address, params model.SerialConfig) DeviceProtocol {
	serialConfig := &SerialConfig{
		Port:     addr.Path,
		BaudRate: 9600,
		DataBits: 8,
		StopBits: 1,
		Parity:   "none",
		Timeout:  f.timeouts.Read,
	}
	if params.BaudRate > 0 {
		serialConfig.BaudRate = params.BaudRate
	}
	if params.DataBits > 0 {
		serialConfig.DataBits = params.DataBits
	}
	if params.StopBits > 0 {
		serialConfig.StopBits = params.StopBits
	}
	if params.Parity != "" {
		serialConfig.Parity = params.Parity
	}

	f.logger.Debug("Creating serial protocol",
		zap.String("port", serialConfig.Port),
		zap.Int("baud_rate", serialConfig.BaudRate),
	)
	return NewSerialConnection(serialConfig, f.logger)
}

// createUSBProtocol creates a USB protocol
func (f *Factory) createUSBProtocol(addr *Address) DeviceProtocol {
	usbConfig := &USBConfig{
		VendorID:  addr.VendorID,
		ProductID: addr.ProductID,
		Endpoint:  1,
		Timeout:   f.timeouts.USB,
	}

	f.logger.Debug("Creating USB protocol",
		zap.String("vendor_id", usbConfig.VendorID),
		zap.String("product_id", usbConfig.ProductID),
	)
	return NewUSBConnection(usbConfig, f.logger)
}

// createTCPProtocol creates a TCP protocol
func (f *Factory) createTCPProtocol(addr *Address) DeviceProtocol {
	tcpConfig := &TCPConfig{
		Host:         addr.Host,
		Port:         addr.Port,
		KeepAlive:    true,
		Timeout:      f.timeouts.Connect,
		ReadTimeout:  f.timeouts.Read,
		WriteTimeout: f.timeouts.Write,
	}

	f.logger.Debug("Creating TCP protocol",
		zap.String("host", tcpConfig.Host),
		zap.Int("port", tcpConfig.Port),
	)
	return NewTCPConnection(tcpConfig, f.logger)
}

func transportError(port string, err error) error {
	return &driver.TransportError{Port: port, Err: err}
}
