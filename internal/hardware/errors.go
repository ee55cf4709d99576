// internal/hardware/errors.go
package hardware

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"go.bug.st/serial"

	"pos-device-service/internal/model"
	"pos-device-service/pkg/driver"
)

// ErrorKind classifies a HardwareError. Retry loops inspect the kind.
type ErrorKind int

const (
	// KindConnection is a transport failure while connecting; retriable
	KindConnection ErrorKind = iota + 1
	// KindConfiguration covers driver mismatches and missing drivers
	KindConfiguration
	// KindFiscal is a tax table mismatch between configuration and device
	KindFiscal
	// KindOperation is a failure while a command was running
	KindOperation
	// KindUnavailable means a required device role is disabled or missing
	KindUnavailable
)

func (k ErrorKind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindConfiguration:
		return "configuration"
	case KindFiscal:
		return "fiscal"
	case KindOperation:
		return "operation"
	case KindUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// HardwareError is the tagged error produced by the hardware layer
type HardwareError struct {
	Kind  ErrorKind
	Role  model.DeviceRole
	State *driver.ErrorState
	Err   error

	// Attempt is set by retry loops before asking the RetryDecider
	Attempt int
}

// NewHardwareError builds an error with a single-entry state
func NewHardwareError(kind ErrorKind, role model.DeviceRole, cause driver.Cause, err error) *HardwareError {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &HardwareError{
		Kind:  kind,
		Role:  role,
		State: driver.NewErrorState(driver.SeverityError, cause, msg),
		Err:   err,
	}
}

func (e *HardwareError) Error() string {
	cause := driver.CauseNone
	if e.State != nil {
		cause = e.State.Cause
	}
	if e.Err == nil {
		return fmt.Sprintf("hardware %s error: %s", e.Kind, cause)
	}
	return fmt.Sprintf("hardware %s error: %s: %v", e.Kind, cause, e.Err)
}

func (e *HardwareError) Unwrap() error {
	return e.Err
}

// Cause returns the symbolic cause of the error
func (e *HardwareError) Cause() driver.Cause {
	if e.State == nil {
		return driver.CauseNone
	}
	return e.State.Cause
}

// Retriable reports whether asking the operator to retry makes sense
func (e *HardwareError) Retriable() bool {
	return e.Kind == KindConnection || e.Kind == KindOperation
}

// AsHardwareError extracts a HardwareError from an error chain
func AsHardwareError(err error) (*HardwareError, bool) {
	var herr *HardwareError
	if errors.As(err, &herr) {
		return herr, true
	}
	return nil, false
}

// IsKind reports whether err carries a HardwareError of the given kind
func IsKind(err error, kind ErrorKind) bool {
	herr, ok := AsHardwareError(err)
	return ok && herr.Kind == kind
}

// IsTransportError reports whether err is a failure of the physical link
func IsTransportError(err error) bool {
	if err == nil {
		return false
	}
	var transportErr *driver.TransportError
	if errors.As(err, &transportErr) {
		return true
	}
	var portErr *serial.PortError
	if errors.As(err, &portErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, context.DeadlineExceeded)
}

// disconnectedCause maps a role to the cause reported when its device drops
func disconnectedCause(role model.DeviceRole) driver.Cause {
	switch role {
	case model.RolePrintCashReceipt:
		return driver.CauseCashReceiptPrinterDisconnected
	case model.RolePrintCustomerOrder:
		return driver.CauseCustomerOrderPrinterDisconnected
	case model.RolePrintKitchenOrder:
		return driver.CauseKitchenPrinterDisconnected
	case model.RoleExternalDisplay:
		return driver.CauseExternalDisplayDisconnected
	case model.RoleReadCard:
		return driver.CauseCardReaderDisconnected
	case model.RoleMeasureWeight:
		return driver.CauseScaleDisconnected
	case model.RoleCollectSalesData:
		return driver.CauseSalesDataControllerDisconnected
	case model.RoleScanBarcode:
		return driver.CauseBarcodeScannerDisconnected
	default:
		return driver.CauseCommandFailed
	}
}
