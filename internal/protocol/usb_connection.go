// internal/protocol/usb_connection.go
package protocol

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/google/gousb"
	"go.uber.org/zap"
)

// USBConnection implements DeviceProtocol for USB connections
type USBConnection struct {
	config   *USBConfig
	address  string
	ctx      *gousb.Context
	device   *gousb.Device
	intf     *gousb.Interface
	release  func()
	outEndpt *gousb.OutEndpoint
	inEndpt  *gousb.InEndpoint
	logger   *zap.Logger
	mutex    sync.RWMutex
	isOpen   bool
}

// NewUSBConnection creates a new USB connection
func NewUSBConnection(config *USBConfig, logger *zap.Logger) DeviceProtocol {
	address := fmt.Sprintf("usb://%s:%s", config.VendorID, config.ProductID)
	return &USBConnection{
		config:  config,
		address: address,
		logger: logger.With(
			zap.String("protocol", "usb"),
			zap.String("address", address),
		),
	}
}

// Open opens the USB connection
func (uc *USBConnection) Open(ctx context.Context) error {
	uc.mutex.Lock()
	defer uc.mutex.Unlock()

	if uc.isOpen {
		return nil
	}

	uc.logger.Info("Opening USB connection")

	vendorID, err := parseHexID(uc.config.VendorID)
	if err != nil {
		return fmt.Errorf("invalid vendor ID: %w", err)
	}
	productID, err := parseHexID(uc.config.ProductID)
	if err != nil {
		return fmt.Errorf("invalid product ID: %w", err)
	}

	usbCtx := gousb.NewContext()

	device, err := uc.findAndOpenDevice(usbCtx, vendorID, productID)
	if err != nil {
		usbCtx.Close()
		return transportError(uc.address, err)
	}
	if err := device.SetAutoDetach(true); err != nil {
		uc.logger.Warn("Failed to enable kernel driver auto detach", zap.Error(err))
	}

	intf, done, err := device.DefaultInterface()
	if err != nil {
		device.Close()
		usbCtx.Close()
		return transportError(uc.address, fmt.Errorf("failed to claim interface: %w", err))
	}

	outEndpt, err := intf.OutEndpoint(uc.config.Endpoint)
	if err != nil {
		done()
		device.Close()
		usbCtx.Close()
		return transportError(uc.address, fmt.Errorf("failed to get out endpoint: %w", err))
	}

	// printers without a status channel have no in endpoint
	inEndpt, err := intf.InEndpoint(uc.config.Endpoint)
	if err != nil {
		uc.logger.Debug("No in endpoint found", zap.Error(err))
		inEndpt = nil
	}

	uc.ctx = usbCtx
	uc.device = device
	uc.intf = intf
	uc.release = done
	uc.outEndpt = outEndpt
	uc.inEndpt = inEndpt
	uc.isOpen = true

	uc.logger.Info("USB connection opened successfully")
	return nil
}

// Close closes the USB connection
func (uc *USBConnection) Close() error {
	uc.mutex.Lock()
	defer uc.mutex.Unlock()

	if !uc.isOpen {
		return nil
	}

	if uc.release != nil {
		uc.release()
		uc.release = nil
	}
	uc.intf = nil

	var err error
	if uc.device != nil {
		err = uc.device.Close()
		uc.device = nil
	}
	if uc.ctx != nil {
		uc.ctx.Close()
		uc.ctx = nil
	}

	uc.outEndpt = nil
	uc.inEndpt = nil
	uc.isOpen = false

	if err != nil {
		return transportError(uc.address, fmt.Errorf("failed to close USB device: %w", err))
	}
	uc.logger.Info("USB connection closed successfully")
	return nil
}

// IsOpen returns whether the connection is open
func (uc *USBConnection) IsOpen() bool {
	uc.mutex.RLock()
	defer uc.mutex.RUnlock()
	return uc.isOpen && uc.device != nil && uc.outEndpt != nil
}

// Write writes data to the USB connection
func (uc *USBConnection) Write(ctx context.Context, data []byte) error {
	uc.mutex.RLock()
	defer uc.mutex.RUnlock()

	if !uc.isOpen || uc.outEndpt == nil {
		return transportError(uc.address, errors.New("USB connection not open"))
	}

	wctx := ctx
	if uc.config.Timeout > 0 {
		var cancel context.CancelFunc
		wctx, cancel = context.WithTimeout(ctx, uc.config.Timeout)
		defer cancel()
	}

	n, err := uc.outEndpt.WriteContext(wctx, data)
	if err != nil {
		uc.logger.Error("USB write failed", zap.Error(err))
		return transportError(uc.address, fmt.Errorf("failed to write to USB device: %w", err))
	}
	if n != len(data) {
		return transportError(uc.address, fmt.Errorf("incomplete write: wrote %d of %d bytes", n, len(data)))
	}

	uc.logger.Debug("USB write completed", zap.Int("bytes", len(data)))
	return nil
}

// Read reads data from the USB connection
func (uc *USBConnection) Read(ctx context.Context, maxBytes int) ([]byte, error) {
	uc.mutex.RLock()
	defer uc.mutex.RUnlock()

	if !uc.isOpen || uc.inEndpt == nil {
		return nil, transportError(uc.address, errors.New("USB connection not open or no in endpoint"))
	}

	rctx := ctx
	if uc.config.Timeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(ctx, uc.config.Timeout)
		defer cancel()
	}

	buffer := make([]byte, maxBytes)
	n, err := uc.inEndpt.ReadContext(rctx, buffer)
	if err != nil {
		return nil, transportError(uc.address, fmt.Errorf("failed to read from USB device: %w", err))
	}
	return buffer[:n], nil
}

func (uc *USBConnection) Kind() TransportKind {
	return TransportUSB
}

func (uc *USBConnection) Address() string {
	return uc.address
}

// parseHexID parses hex ID string (0x1234 or 1234)
func parseHexID(hexStr string) (gousb.ID, error) {
	hexStr = strings.TrimPrefix(strings.ToLower(hexStr), "0x")

	id, err := strconv.ParseUint(hexStr, 16, 16)
	if err != nil {
		return 0, err
	}
	return gousb.ID(id), nil
}

// findAndOpenDevice finds and opens the first matching USB device
func (uc *USBConnection) findAndOpenDevice(usbCtx *gousb.Context, vendorID, productID gousb.ID) (*gousb.Device, error) {
	devices, err := usbCtx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == vendorID && desc.Product == productID
	})
	if err != nil && len(devices) == 0 {
		return nil, fmt.Errorf("failed to enumerate USB devices: %w", err)
	}

	if len(devices) == 0 {
		return nil, fmt.Errorf("USB device not found (VID: %s, PID: %s)", vendorID, productID)
	}

	if len(devices) > 1 {
		for i := 1; i < len(devices); i++ {
			devices[i].Close()
		}
		uc.logger.Warn("Multiple matching USB devices found, using first one")
	}

	return devices[0], nil
}
