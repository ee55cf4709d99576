// internal/protocol/tcp_connection.go
package protocol

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TCPConnection implements DeviceProtocol for TCP connections
type TCPConnection struct {
	config  *TCPConfig
	address string
	conn    net.Conn
	logger  *zap.Logger
	mutex   sync.RWMutex
	isOpen  bool
}

// NewTCPConnection creates a new TCP connection
func NewTCPConnection(config *TCPConfig, logger *zap.Logger) DeviceProtocol {
	address := net.JoinHostPort(config.Host, fmt.Sprintf("%d", config.Port))
	return &TCPConnection{
		config:  config,
		address: address,
		logger: logger.With(
			zap.String("protocol", "tcp"),
			zap.String("address", address),
		),
	}
}

// Open opens the TCP connection
func (tc *TCPConnection) Open(ctx context.Context) error {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()

	if tc.isOpen {
		return nil
	}

	tc.logger.Info("Opening TCP connection")

	dialer := &net.Dialer{
		Timeout: tc.config.Timeout,
	}
	if tc.config.KeepAlive {
		dialer.KeepAlive = 30 * time.Second
	}

	conn, err := dialer.DialContext(ctx, "tcp", tc.address)
	if err != nil {
		tc.logger.Error("Failed to open TCP connection", zap.Error(err))
		return transportError(tc.address, fmt.Errorf("failed to connect: %w", err))
	}

	tc.conn = conn
	tc.isOpen = true

	tc.logger.Info("TCP connection opened successfully")
	return nil
}

// Close closes the TCP connection
func (tc *TCPConnection) Close() error {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()

	if !tc.isOpen || tc.conn == nil {
		return nil
	}

	err := tc.conn.Close()
	tc.conn = nil
	tc.isOpen = false
	if err != nil {
		tc.logger.Error("Failed to close TCP connection", zap.Error(err))
		return transportError(tc.address, fmt.Errorf("failed to close TCP connection: %w", err))
	}

	tc.logger.Info("TCP connection closed successfully")
	return nil
}

// IsOpen returns whether the connection is open
func (tc *TCPConnection) IsOpen() bool {
	tc.mutex.RLock()
	defer tc.mutex.RUnlock()
	return tc.isOpen && tc.conn != nil
}

// Write writes data to the TCP connection
func (tc *TCPConnection) Write(ctx context.Context, data []byte) error {
	tc.mutex.RLock()
	defer tc.mutex.RUnlock()

	if !tc.isOpen || tc.conn == nil {
		return transportError(tc.address, errors.New("TCP connection not open"))
	}

	deadline := time.Time{}
	if tc.config.WriteTimeout > 0 {
		deadline = time.Now().Add(tc.config.WriteTimeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	tc.conn.SetWriteDeadline(deadline)

	n, err := tc.conn.Write(data)
	if err != nil {
		tc.logger.Error("TCP write failed", zap.Error(err))
		return transportError(tc.address, fmt.Errorf("failed to write to TCP connection: %w", err))
	}
	if n != len(data) {
		return transportError(tc.address, fmt.Errorf("incomplete write: wrote %d of %d bytes", n, len(data)))
	}

	tc.logger.Debug("TCP write completed", zap.Int("bytes", len(data)))
	return nil
}

// Read reads data from the TCP connection
func (tc *TCPConnection) Read(ctx context.Context, maxBytes int) ([]byte, error) {
	tc.mutex.RLock()
	defer tc.mutex.RUnlock()

	if !tc.isOpen || tc.conn == nil {
		return nil, transportError(tc.address, errors.New("TCP connection not open"))
	}

	deadline := time.Time{}
	if tc.config.ReadTimeout > 0 {
		deadline = time.Now().Add(tc.config.ReadTimeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	tc.conn.SetReadDeadline(deadline)

	buffer := make([]byte, maxBytes)
	n, err := tc.conn.Read(buffer)
	if err != nil {
		return nil, transportError(tc.address, fmt.Errorf("failed to read from TCP connection: %w", err))
	}
	return buffer[:n], nil
}

func (tc *TCPConnection) Kind() TransportKind {
	return TransportTCP
}

func (tc *TCPConnection) Address() string {
	return tc.address
}
