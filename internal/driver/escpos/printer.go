// internal/driver/escpos/printer.go
package escpos

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"pos-device-service/internal/model"
	"pos-device-service/internal/protocol"
	"pos-device-service/internal/utils"
	"pos-device-service/pkg/driver"
)

// Info describes the ESC/POS printer driver type
var Info = driver.DriverInfo{
	Type:         "escpos",
	Name:         "ESC/POS receipt printer",
	Manufacturer: "Generic",
	Commands: []driver.Command{
		driver.CmdConnect,
		driver.CmdDisconnect,
		driver.CmdPing,
		driver.CmdStatus,
		driver.CmdPrintNonFiscal,
		driver.CmdPrintKitchen,
		driver.CmdPrintBarcode,
		driver.CmdCutPaper,
		driver.CmdOpenDrawer,
	},
}

// Dialer opens the transport of a device
type Dialer interface {
	Dial(ctx context.Context, device *model.Device) (protocol.DeviceProtocol, error)
}

// Options holds the printer layout settings
type Options struct {
	Width     int    // characters per line in normal size
	FeedLines byte   // lines fed before the cut
	Cut       bool   // cut after every receipt
	DrawerPin int    // 2 or 5
	CodePage  string // cp437, cp850, cp852, cp858, cp866, cp1252
}

// DefaultOptions returns the layout of an 80mm printer
func DefaultOptions() Options {
	return Options{
		Width:     42,
		FeedLines: 4,
		Cut:       true,
		DrawerPin: 2,
		CodePage:  "cp437",
	}
}

// Printer drives an ESC/POS printer used as customer-order printer, kitchen
// printer or cash drawer controller. Calls are serialized by the hardware
// worker.
type Printer struct {
	info    *driver.DriverInfo
	dialer  Dialer
	options Options
	encoder *textEncoder
	base    *zap.Logger
	logger  *utils.DeviceLogger
	conn    protocol.DeviceProtocol
}

// New creates an unconnected printer driver
func New(info *driver.DriverInfo, device *model.Device, dialer Dialer, options Options, logger *zap.Logger) (*Printer, error) {
	encoder, err := newTextEncoder(options.CodePage)
	if err != nil {
		return nil, err
	}
	if options.Width <= 0 {
		options.Width = DefaultOptions().Width
	}
	if info == nil {
		info = &Info
	}

	return &Printer{
		info:    info,
		dialer:  dialer,
		options: options,
		encoder: encoder,
		base:    logger,
		logger:  utils.NewDeviceLogger(logger, device.ID.String(), device.Roles.String(), info.Type),
	}, nil
}

// Info returns the driver type description
func (p *Printer) Info() *driver.DriverInfo {
	return p.info
}

// Connect opens the transport and resets the printer
func (p *Printer) Connect(ctx context.Context, device *model.Device) error {
	if p.conn != nil && p.conn.IsOpen() {
		return nil
	}
	p.logger = utils.NewDeviceLogger(p.base, device.ID.String(), device.Roles.String(), p.info.Type)

	conn, err := p.dialer.Dial(ctx, device)
	if err != nil {
		p.logger.LogConnection("open", false, err)
		return err
	}
	p.conn = conn

	if err := p.send(ctx, "initialize", [][]byte{ESC_POS_COMMANDS.INITIALIZE, p.encoder.selectCommand()}); err != nil {
		p.closeConn()
		return fmt.Errorf("failed to initialize printer: %w", err)
	}

	p.logger.Info("ESC/POS printer connected",
		zap.String("address", conn.Address()),
		zap.String("transport", string(conn.Kind())),
	)
	return nil
}

// Disconnect closes the transport
func (p *Printer) Disconnect(ctx context.Context) error {
	if p.conn == nil {
		return nil
	}
	err := p.closeConn()
	p.logger.LogConnection("close", err == nil, err)
	return err
}

func (p *Printer) closeConn() error {
	conn := p.conn
	p.conn = nil
	return conn.Close()
}

// Ping requests the printer status byte. USB printers without a status
// channel only get the write.
func (p *Printer) Ping(ctx context.Context) error {
	if p.conn == nil {
		return errNotConnected
	}
	if p.conn.Kind() == protocol.TransportUSB {
		return p.send(ctx, "ping", [][]byte{ESC_POS_COMMANDS.STATUS_PRINTER})
	}
	_, err := p.queryStatus(ctx, ESC_POS_COMMANDS.STATUS_PRINTER)
	return err
}

// Status reads the cover and paper sensors
func (p *Printer) Status(ctx context.Context) (*driver.ErrorState, error) {
	state := &driver.ErrorState{}

	offline, err := p.queryStatus(ctx, ESC_POS_COMMANDS.STATUS_OFFLINE)
	if err != nil {
		return nil, err
	}
	paper, err := p.queryStatus(ctx, ESC_POS_COMMANDS.STATUS_PAPER)
	if err != nil {
		return nil, err
	}

	if offline&offlineCoverOpen != 0 {
		state.Add(driver.SeverityError, driver.CauseCoverOpen, "printer cover is open")
	}
	if paper&paperEnd != 0 {
		state.Add(driver.SeverityError, driver.CausePaperOut, "paper roll is empty")
	} else if paper&paperNearEnd != 0 {
		state.Add(driver.SeverityWarning, driver.CausePaperLow, "paper roll is near its end")
	}
	if offline&offlineError != 0 && !state.HasErrors() {
		state.Add(driver.SeverityError, driver.CauseCommandFailed, "printer reports an error condition")
	}
	return state, nil
}

// PrintReceipt prints a customer order or other slip
func (p *Printer) PrintReceipt(ctx context.Context, receipt *driver.Receipt) error {
	return p.print(ctx, "print receipt", receipt)
}

// PrintKitchenReceipt prints a kitchen ticket
func (p *Printer) PrintKitchenReceipt(ctx context.Context, receipt *driver.Receipt) error {
	return p.print(ctx, "print kitchen receipt", receipt)
}

// OpenCashDrawer pulses the drawer kick connector
func (p *Printer) OpenCashDrawer(ctx context.Context) error {
	kick := ESC_POS_COMMANDS.DRAWER_KICK_PIN2
	if p.options.DrawerPin == 5 {
		kick = ESC_POS_COMMANDS.DRAWER_KICK_PIN5
	}
	return p.send(ctx, "open drawer", [][]byte{kick})
}

func (p *Printer) print(ctx context.Context, label string, receipt *driver.Receipt) error {
	if receipt == nil {
		return errors.New("receipt is nil")
	}
	commands, err := p.buildReceiptCommands(receipt)
	if err != nil {
		return fmt.Errorf("failed to render receipt: %w", err)
	}
	return p.send(ctx, label, commands)
}

// send writes the commands as one buffer
func (p *Printer) send(ctx context.Context, label string, commands [][]byte) error {
	if p.conn == nil {
		return errNotConnected
	}
	start := time.Now()
	err := p.conn.Write(ctx, bytes.Join(commands, nil))
	p.logger.LogCommand(label, time.Since(start), err)
	return err
}

// queryStatus sends a real-time status request and returns the status byte
func (p *Printer) queryStatus(ctx context.Context, request []byte) (byte, error) {
	if err := p.send(ctx, "status", [][]byte{request}); err != nil {
		return 0, err
	}
	response, err := p.conn.Read(ctx, 1)
	if err != nil {
		return 0, err
	}
	if len(response) == 0 {
		return 0, &driver.TransportError{Port: p.conn.Address(), Err: errors.New("no status response")}
	}
	return response[0], nil
}

var errNotConnected = errors.New("printer not connected")

var (
	_ driver.NonFiscalPrinter = (*Printer)(nil)
	_ driver.KitchenPrinter   = (*Printer)(nil)
	_ driver.CashDrawer       = (*Printer)(nil)
	_ driver.Pinger           = (*Printer)(nil)
	_ driver.StatusReporter   = (*Printer)(nil)
)
