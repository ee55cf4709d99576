// pkg/driver/types.go
package driver

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"pos-device-service/internal/model"
)

// Command identifies one capability a driver can execute
type Command string

const (
	CmdConnect         Command = "CONNECT"
	CmdDisconnect      Command = "DISCONNECT"
	CmdPing            Command = "PING"
	CmdStatus          Command = "STATUS"
	CmdReadTaxRates    Command = "READ_TAX_RATES"
	CmdOpenFiscal      Command = "OPEN_FISCAL_RECEIPT"
	CmdAddItem         Command = "ADD_ITEM"
	CmdAddPayment      Command = "ADD_PAYMENT"
	CmdPrintFiscalText Command = "PRINT_FISCAL_TEXT"
	CmdCloseFiscal     Command = "CLOSE_FISCAL_RECEIPT"
	CmdPrintNonFiscal  Command = "PRINT_NON_FISCAL"
	CmdPrintKitchen    Command = "PRINT_KITCHEN"
	CmdPrintBarcode    Command = "PRINT_BARCODE"
	CmdCutPaper        Command = "CUT_PAPER"
	CmdOpenDrawer      Command = "OPEN_DRAWER"
	CmdDisplayText     Command = "DISPLAY_TEXT"
	CmdClearDisplay    Command = "CLEAR_DISPLAY"
	CmdReadWeight      Command = "READ_WEIGHT"
	CmdReadCard        Command = "READ_CARD"
	CmdScanBarcode     Command = "SCAN_BARCODE"
	CmdRecordSale      Command = "RECORD_SALE"
)

// DriverInfo describes a driver type and the commands it claims to support.
// The driver registry creates one per type and shares it between instances.
type DriverInfo struct {
	Type         string    `json:"type"`
	Name         string    `json:"name"`
	Manufacturer string    `json:"manufacturer,omitempty"`
	Commands     []Command `json:"commands"`
}

// Supports reports whether the driver type advertises the command
func (i *DriverInfo) Supports(cmd Command) bool {
	if i == nil {
		return false
	}
	for _, c := range i.Commands {
		if c == cmd {
			return true
		}
	}
	return false
}

// Severity of an ErrorState entry
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "info"
	}
}

// Cause is the symbolic reason of a device problem
type Cause string

const (
	CauseNone                             Cause = ""
	CauseCashReceiptPrinterDisconnected   Cause = "cash_receipt_printer_disconnected"
	CauseCustomerOrderPrinterDisconnected Cause = "customer_order_printer_disconnected"
	CauseKitchenPrinterDisconnected       Cause = "kitchen_printer_disconnected"
	CauseExternalDisplayDisconnected      Cause = "external_display_disconnected"
	CauseCardReaderDisconnected           Cause = "card_reader_disconnected"
	CauseScaleDisconnected                Cause = "electronic_scale_disconnected"
	CauseSalesDataControllerDisconnected  Cause = "sales_data_controller_disconnected"
	CauseBarcodeScannerDisconnected       Cause = "barcode_scanner_disconnected"
	CauseVATMismatch                      Cause = "vat_mismatch"
	CauseDriverMismatch                   Cause = "driver_mismatch"
	CauseDriverNotFound                   Cause = "driver_not_found"
	CausePortParametersMismatch           Cause = "port_parameters_mismatch"
	CauseReceiptPrinterRequired           Cause = "receipt_printer_required"
	CausePaperOut                         Cause = "paper_out"
	CausePaperLow                         Cause = "paper_low"
	CauseCoverOpen                        Cause = "cover_open"
	CauseFiscalMemoryFull                 Cause = "fiscal_memory_full"
	CauseCommandFailed                    Cause = "command_failed"
)

// ErrorState is a bag of warnings and errors reported by a driver or by the
// orchestrator. Severity and Cause track the worst entry.
type ErrorState struct {
	Severity Severity `json:"severity"`
	Cause    Cause    `json:"cause"`
	Messages []string `json:"messages,omitempty"`
}

// NewErrorState returns a state holding a single entry
func NewErrorState(severity Severity, cause Cause, message string) *ErrorState {
	s := &ErrorState{}
	s.Add(severity, cause, message)
	return s
}

// Add records an entry, keeping the most severe cause
func (s *ErrorState) Add(severity Severity, cause Cause, message string) {
	if message != "" {
		s.Messages = append(s.Messages, message)
	}
	if severity > s.Severity || s.Cause == CauseNone {
		s.Severity = severity
		s.Cause = cause
	}
}

// HasErrors reports whether any entry is an error
func (s *ErrorState) HasErrors() bool {
	return s != nil && s.Severity >= SeverityError
}

// HasWarnings reports whether the worst entry is a warning
func (s *ErrorState) HasWarnings() bool {
	return s != nil && s.Severity == SeverityWarning
}

func (s *ErrorState) String() string {
	if s == nil {
		return ""
	}
	if len(s.Messages) == 0 {
		return fmt.Sprintf("%s: %s", s.Severity, s.Cause)
	}
	return fmt.Sprintf("%s: %s (%s)", s.Severity, s.Cause, strings.Join(s.Messages, "; "))
}

// TransportError marks a failure of the physical link (serial, socket, USB).
// Connection managers treat it as retriable.
type TransportError struct {
	Port string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error on %s: %v", e.Port, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// TaxRate is one entry of a fiscal device tax table
type TaxRate struct {
	Group string          `json:"group"`
	Rate  decimal.Decimal `json:"rate"`
}

// Alignment of a receipt line
type Alignment int

const (
	AlignLeft Alignment = iota
	AlignCenter
	AlignRight
)

// ReceiptLine is one pre-formatted line of a non-fiscal receipt
type ReceiptLine struct {
	Text   string    `json:"text"`
	Bold   bool      `json:"bold,omitempty"`
	Double bool      `json:"double,omitempty"`
	Align  Alignment `json:"align,omitempty"`
}

// Receipt is a non-fiscal slip. All text is formatted by the caller.
type Receipt struct {
	Title   string        `json:"title"`
	Header  []ReceiptLine `json:"header,omitempty"`
	Lines   []ReceiptLine `json:"lines"`
	Footer  []ReceiptLine `json:"footer,omitempty"`
	Barcode string        `json:"barcode,omitempty"`
}

// FiscalHeader opens a fiscal receipt
type FiscalHeader struct {
	SaleNumber int64  `json:"sale_number"`
	Operator   string `json:"operator"`
	Partner    string `json:"partner,omitempty"`
}

// FiscalItem is one registered line of a fiscal receipt
type FiscalItem struct {
	Name     string          `json:"name"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Discount decimal.Decimal `json:"discount"`
	VATGroup string          `json:"vat_group"`
}

// FiscalPayment is one payment registered on a fiscal receipt
type FiscalPayment struct {
	Type   model.PaymentType `json:"type"`
	Amount decimal.Decimal   `json:"amount"`
}

// SaleRecord is what a sales-data controller stores for one sale
type SaleRecord struct {
	SaleNumber int64            `json:"sale_number"`
	Total      decimal.Decimal  `json:"total"`
	VATTotals  []model.VATTotal `json:"vat_totals"`
	Payments   []FiscalPayment  `json:"payments"`
}
