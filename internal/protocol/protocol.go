// internal/protocol/protocol.go
package protocol

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// TransportKind identifies the physical link of a device
type TransportKind string

const (
	TransportSerial TransportKind = "serial"
	TransportTCP    TransportKind = "tcp"
	TransportUSB    TransportKind = "usb"
)

const defaultTCPPort = 9100

// DeviceProtocol represents a byte stream to a device. Implementations
// report link failures as *driver.TransportError.
type DeviceProtocol interface {
	// Connection lifecycle
	Open(ctx context.Context) error
	Close() error
	IsOpen() bool

	// Data communication
	Write(ctx context.Context, data []byte) error
	Read(ctx context.Context, maxBytes int) ([]byte, error)

	Kind() TransportKind
	Address() string
}

// Address is a parsed device port assignment
type Address struct {
	Kind TransportKind
	// Path is the serial device path
	Path string
	Host string
	Port int
	// VendorID and ProductID are hex strings of a USB device
	VendorID  string
	ProductID string
}

// ParseAddress resolves a port assignment: tcp://host[:port],
// usb://VID:PID, anything else is a serial device path
func ParseAddress(port string) (*Address, error) {
	port = strings.TrimSpace(port)
	if port == "" {
		return nil, fmt.Errorf("port is required")
	}

	scheme, rest, found := strings.Cut(port, "://")
	if !found {
		return &Address{Kind: TransportSerial, Path: port}, nil
	}

	switch strings.ToLower(scheme) {
	case "tcp":
		host, portStr, hasPort := strings.Cut(rest, ":")
		if host == "" {
			return nil, fmt.Errorf("tcp address %q has no host", port)
		}
		addr := &Address{Kind: TransportTCP, Host: host, Port: defaultTCPPort}
		if hasPort {
			p, err := strconv.Atoi(portStr)
			if err != nil || p <= 0 || p > 65535 {
				return nil, fmt.Errorf("tcp address %q has invalid port", port)
			}
			addr.Port = p
		}
		return addr, nil
	case "usb":
		vid, pid, ok := strings.Cut(rest, ":")
		if !ok || vid == "" || pid == "" {
			return nil, fmt.Errorf("usb address %q must be usb://VID:PID", port)
		}
		if _, err := parseHexID(vid); err != nil {
			return nil, fmt.Errorf("usb address %q has invalid vendor id: %w", port, err)
		}
		if _, err := parseHexID(pid); err != nil {
			return nil, fmt.Errorf("usb address %q has invalid product id: %w", port, err)
		}
		return &Address{Kind: TransportUSB, VendorID: vid, ProductID: pid}, nil
	default:
		return nil, fmt.Errorf("unsupported transport %q", scheme)
	}
}
