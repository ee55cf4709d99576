// internal/driver/escpos/command.go
package escpos

// ESC_POS_COMMANDS contains the ESC/POS command set used by the printer driver
var ESC_POS_COMMANDS = struct {
	// Basic commands
	INITIALIZE []byte

	// Real-time status (DLE EOT n)
	STATUS_PRINTER []byte
	STATUS_OFFLINE []byte
	STATUS_PAPER   []byte

	// Text formatting
	TEXT_BOLD_ON  []byte
	TEXT_BOLD_OFF []byte
	TEXT_RESET    []byte

	// Text size
	TEXT_SIZE_NORMAL      []byte
	TEXT_SIZE_DOUBLE_BOTH []byte

	// Text alignment
	ALIGN_LEFT   []byte
	ALIGN_CENTER []byte
	ALIGN_RIGHT  []byte

	// Character table, followed by the table number
	SELECT_CHARSET []byte

	// Paper handling
	LINE_FEED  []byte
	FEED_LINES []byte // + line count byte

	// Cutting
	CUT_FULL    []byte
	CUT_PARTIAL []byte

	// Cash drawer
	DRAWER_KICK_PIN2 []byte
	DRAWER_KICK_PIN5 []byte

	// Barcodes
	BARCODE_HEIGHT  []byte // + height in dots
	BARCODE_HRI     []byte // + position
	BARCODE_CODE128 []byte // + length + data
}{
	INITIALIZE: []byte{0x1B, 0x40}, // ESC @

	STATUS_PRINTER: []byte{0x10, 0x04, 0x01}, // DLE EOT 1
	STATUS_OFFLINE: []byte{0x10, 0x04, 0x02}, // DLE EOT 2
	STATUS_PAPER:   []byte{0x10, 0x04, 0x04}, // DLE EOT 4

	TEXT_BOLD_ON:  []byte{0x1B, 0x45, 0x01}, // ESC E 1
	TEXT_BOLD_OFF: []byte{0x1B, 0x45, 0x00}, // ESC E 0
	TEXT_RESET:    []byte{0x1B, 0x21, 0x00}, // ESC ! 0

	TEXT_SIZE_NORMAL:      []byte{0x1D, 0x21, 0x00}, // GS ! 0
	TEXT_SIZE_DOUBLE_BOTH: []byte{0x1D, 0x21, 0x11}, // GS ! 17

	ALIGN_LEFT:   []byte{0x1B, 0x61, 0x00}, // ESC a 0
	ALIGN_CENTER: []byte{0x1B, 0x61, 0x01}, // ESC a 1
	ALIGN_RIGHT:  []byte{0x1B, 0x61, 0x02}, // ESC a 2

	SELECT_CHARSET: []byte{0x1B, 0x74}, // ESC t

	LINE_FEED:  []byte{0x0A},       // LF
	FEED_LINES: []byte{0x1B, 0x64}, // ESC d

	CUT_FULL:    []byte{0x1D, 0x56, 0x00}, // GS V 0
	CUT_PARTIAL: []byte{0x1D, 0x56, 0x01}, // GS V 1

	DRAWER_KICK_PIN2: []byte{0x1B, 0x70, 0x00, 0x19, 0x19}, // ESC p 0 25 25
	DRAWER_KICK_PIN5: []byte{0x1B, 0x70, 0x01, 0x19, 0x19}, // ESC p 1 25 25

	BARCODE_HEIGHT:  []byte{0x1D, 0x68},       // GS h
	BARCODE_HRI:     []byte{0x1D, 0x48},       // GS H
	BARCODE_CODE128: []byte{0x1D, 0x6B, 0x49}, // GS k I
}

// Status bits of the DLE EOT responses
const (
	statusOffline    = 0x08 // DLE EOT 1
	offlineCoverOpen = 0x04 // DLE EOT 2
	offlineError     = 0x40 // DLE EOT 2
	paperNearEnd     = 0x0C // DLE EOT 4
	paperEnd         = 0x60 // DLE EOT 4
)

func withArg(cmd []byte, args ...byte) []byte {
	out := make([]byte, 0, len(cmd)+len(args))
	out = append(out, cmd...)
	return append(out, args...)
}
